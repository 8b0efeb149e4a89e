package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/abdshekho/msa-sub001/internal/domain"
	"github.com/abdshekho/msa-sub001/internal/i18n"
	"github.com/abdshekho/msa-sub001/internal/store"
)

type contextKey string

const claimsContextKey contextKey = "auth.claims"

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext returns the claims of the authenticated caller, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok && claims != nil
}

// UserSource looks up the account behind a session.
type UserSource interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// Authenticator resolves the caller's session and enforces route access.
// With a UserSource, RequireUser and RequireAdmin use the account's current
// role instead of the one signed into the token; a nil UserSource trusts
// the token.
type Authenticator struct {
	tokens     *TokenManager
	revoker    *Revoker
	users      UserSource
	cookieName string
	signInURL  string
}

func NewAuthenticator(tokens *TokenManager, revoker *Revoker, users UserSource, cookieName, signInURL string) *Authenticator {
	return &Authenticator{
		tokens:     tokens,
		revoker:    revoker,
		users:      users,
		cookieName: cookieName,
		signInURL:  signInURL,
	}
}

// TokenFromRequest reads a bearer token, falling back to the session cookie.
func (a *Authenticator) TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(a.cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// Resolve validates the request's token and checks it was not signed out.
func (a *Authenticator) Resolve(r *http.Request) (*Claims, error) {
	raw := a.TokenFromRequest(r)
	if raw == "" {
		return nil, ErrInvalidToken
	}
	claims, err := a.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	revoked, err := a.revoker.IsRevoked(r.Context(), claims.ID)
	if err != nil {
		log.Printf("WARN: %v", err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Authenticate attaches the caller's claims to the request context when a
// valid session is present. Anonymous requests pass through unchanged.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, err := a.Resolve(r); err == nil {
			r = r.WithContext(WithClaims(r.Context(), claims))
		}
		next.ServeHTTP(w, r)
	})
}

// currentClaims returns the caller's claims with the role refreshed from the
// user store. It answers the request itself and returns false when the
// caller has no session, the account is gone, or the lookup fails.
func (a *Authenticator) currentClaims(w http.ResponseWriter, r *http.Request) (*http.Request, *Claims, bool) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		a.deny(w, r, http.StatusUnauthorized, i18n.Unauthorized)
		return r, nil, false
	}
	if a.users == nil {
		return r, claims, true
	}

	user, err := a.users.GetUserByID(r.Context(), claims.UserID())
	if errors.Is(err, store.ErrUserNotFound) {
		a.deny(w, r, http.StatusUnauthorized, i18n.InvalidToken)
		return r, nil, false
	}
	if err != nil {
		log.Printf("ERROR: failed to load user %s for session check: %v", claims.UserID(), err)
		a.deny(w, r, http.StatusServiceUnavailable, i18n.SessionUnavailable)
		return r, nil, false
	}
	if user.Role != claims.Role {
		refreshed := *claims
		refreshed.Role = user.Role
		claims = &refreshed
		r = r.WithContext(WithClaims(r.Context(), claims))
	}
	return r, claims, true
}

// RequireUser rejects requests without a valid session.
func (a *Authenticator) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, _, ok := a.currentClaims(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose account lacks the admin role.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, claims, ok := a.currentClaims(w, r)
		if !ok {
			return
		}
		if !claims.IsAdmin() {
			a.deny(w, r, http.StatusForbidden, i18n.Forbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// deny answers browsers with a redirect to the sign-in page and API
// clients with a JSON error.
func (a *Authenticator) deny(w http.ResponseWriter, r *http.Request, status int, key i18n.Key) {
	if wantsHTML(r) {
		http.Redirect(w, r, a.signInRedirect(r), http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": i18n.Message(r, key)}); err != nil {
		log.Printf("ERROR: Failed to encode JSON response: %v", err)
	}
}

func (a *Authenticator) signInRedirect(r *http.Request) string {
	target, err := url.Parse(a.signInURL)
	if err != nil {
		return a.signInURL
	}
	q := target.Query()
	q.Set("callbackUrl", r.URL.RequestURI())
	target.RawQuery = q.Encode()
	return target.String()
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
