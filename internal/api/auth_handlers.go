package api

import (
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abdshekho/msa-sub001/internal/auth"
	"github.com/abdshekho/msa-sub001/internal/domain"
	"github.com/abdshekho/msa-sub001/internal/i18n"
	"github.com/abdshekho/msa-sub001/internal/store"
)

const (
	oauthStateCookie = "storefront_oauth_state"
	oauthStateTTL    = 10 * time.Minute
	defaultUserLimit = 20
	maxUserLimit     = 100
)

// RegisterInput is the body of POST /auth/register.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=255"`
}

// SignInInput is the body of POST /auth/signin.
type SignInInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileInput is the body of PUT /me.
type UpdateProfileInput struct {
	Name  string  `json:"name" validate:"required,max=255"`
	Image *string `json:"image" validate:"omitempty,max=2048"`
}

// UpdateUserRoleInput is the body of PUT /admin/users/{userId}/role.
type UpdateUserRoleInput struct {
	Role string `json:"role" validate:"required"`
}

// SessionResponse is returned whenever a session token is issued.
type SessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

// MessageResponse carries a localized confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// clientIP expects chi's RealIP middleware to have rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimit counts requests per client IP under action and answers 429
// once the window's budget is spent.
func (h *HTTPHandler) rateLimit(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !h.limiter.Allow(r.Context(), action+":"+clientIP(r)) {
				log.Printf("WARN: rate limit exceeded for %s from %s", action, clientIP(r))
				respondWithError(w, http.StatusTooManyRequests, i18n.Message(r, i18n.TooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// startSession issues a token for user and sets the session cookie.
func (h *HTTPHandler) startSession(w http.ResponseWriter, user *domain.User) (*SessionResponse, error) {
	token, claims, err := h.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	expiresAt := claims.ExpiresAt.Time
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return &SessionResponse{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (h *HTTPHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// Register handles POST /auth/register.
func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input RegisterInput
	if err := decodeJSON(r, &input); err != nil || h.validate.Struct(input) != nil {
		respondWithError(w, http.StatusBadRequest, i18n.Message(r, i18n.InvalidRegistration))
		return
	}
	if len(input.Password) < auth.MinPasswordLength {
		respondWithError(w, http.StatusBadRequest, i18n.Message(r, i18n.InvalidRegistration))
		return
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		log.Printf("ERROR: Register failed to hash password: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to register")
		return
	}

	user, err := h.userStore.CreateUser(r.Context(), &domain.User{
		Email:        input.Email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(input.Name),
		Role:         domain.RoleUser,
		Provider:     domain.ProviderCredentials,
	})
	if errors.Is(err, store.ErrEmailExists) {
		respondWithError(w, http.StatusConflict, i18n.Message(r, i18n.EmailExists))
		return
	}
	if err != nil {
		respondWithStoreError(w, "Register", err, "Failed to register")
		return
	}

	session, err := h.startSession(w, user)
	if err != nil {
		log.Printf("ERROR: Register failed to issue token for %s: %v", user.ID, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to register")
		return
	}
	log.Printf("INFO: user %s registered", user.ID)
	respondWithJSON(w, http.StatusCreated, session)
}

// SignIn handles POST /auth/signin.
func (h *HTTPHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var input SignInInput
	if err := decodeJSON(r, &input); err != nil || h.validate.Struct(input) != nil {
		respondWithError(w, http.StatusUnauthorized, i18n.Message(r, i18n.InvalidCredentials))
		return
	}

	user, err := h.userStore.GetUserByEmail(r.Context(), input.Email)
	if errors.Is(err, store.ErrUserNotFound) {
		respondWithError(w, http.StatusUnauthorized, i18n.Message(r, i18n.InvalidCredentials))
		return
	}
	if err != nil {
		respondWithStoreError(w, "SignIn", err, "Failed to sign in")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, input.Password) {
		respondWithError(w, http.StatusUnauthorized, i18n.Message(r, i18n.InvalidCredentials))
		return
	}

	session, err := h.startSession(w, user)
	if err != nil {
		log.Printf("ERROR: SignIn failed to issue token for %s: %v", user.ID, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}
	respondWithJSON(w, http.StatusOK, session)
}

// SignOut handles POST /auth/signout. It always clears the cookie; a valid
// token is also denylisted until it expires.
func (h *HTTPHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if claims, err := h.gate.Resolve(r); err == nil {
		if err := h.revoker.Revoke(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
			log.Printf("WARN: SignOut could not revoke token %s: %v", claims.ID, err)
		}
	}
	h.clearCookie(w, h.cookieName)
	respondWithJSON(w, http.StatusOK, MessageResponse{Message: i18n.Message(r, i18n.SignedOut)})
}

// GetSession handles GET /auth/session.
func (h *HTTPHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	user, err := h.userStore.GetUserByID(r.Context(), claims.UserID())
	if err != nil {
		respondWithStoreError(w, "GetSession "+claims.UserID(), err, "Failed to load session")
		return
	}
	respondWithJSON(w, http.StatusOK, struct {
		User      *domain.User `json:"user"`
		ExpiresAt time.Time    `json:"expires_at"`
	}{User: user, ExpiresAt: claims.ExpiresAt.Time})
}

// GetProfile handles GET /me.
func (h *HTTPHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	user, err := h.userStore.GetUserByID(r.Context(), claims.UserID())
	if err != nil {
		respondWithStoreError(w, "GetProfile "+claims.UserID(), err, "Failed to load profile")
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// UpdateProfile handles PUT /me.
func (h *HTTPHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	var input UpdateProfileInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	user, err := h.userStore.UpdateProfile(r.Context(), claims.UserID(), strings.TrimSpace(input.Name), input.Image)
	if err != nil {
		respondWithStoreError(w, "UpdateProfile "+claims.UserID(), err, "Failed to update profile")
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// GoogleSignIn handles GET /auth/oauth/google by redirecting to the consent page.
func (h *HTTPHandler) GoogleSignIn(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		respondWithError(w, http.StatusNotFound, i18n.Message(r, i18n.OAuthUnavailable))
		return
	}
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.google.AuthCodeURL(state), http.StatusFound)
}

// GoogleCallback handles GET /auth/oauth/google/callback.
func (h *HTTPHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		respondWithError(w, http.StatusNotFound, i18n.Message(r, i18n.OAuthUnavailable))
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	state := r.URL.Query().Get("state")
	if err != nil || state == "" || stateCookie.Value != state {
		log.Printf("WARN: Google callback with missing or mismatched state")
		respondWithError(w, http.StatusBadRequest, i18n.Message(r, i18n.OAuthFailed))
		return
	}
	h.clearCookie(w, oauthStateCookie)

	code := r.URL.Query().Get("code")
	if code == "" {
		respondWithError(w, http.StatusBadRequest, i18n.Message(r, i18n.OAuthFailed))
		return
	}

	profile, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		log.Printf("ERROR: Google code exchange failed: %v", err)
		respondWithError(w, http.StatusBadGateway, i18n.Message(r, i18n.OAuthFailed))
		return
	}

	user, err := h.resolveGoogleUser(r, profile)
	if errors.Is(err, store.ErrEmailExists) {
		respondWithError(w, http.StatusConflict, i18n.Message(r, i18n.EmailExists))
		return
	}
	if err != nil {
		respondWithStoreError(w, "GoogleCallback", err, i18n.Message(r, i18n.OAuthFailed))
		return
	}

	if _, err := h.startSession(w, user); err != nil {
		log.Printf("ERROR: GoogleCallback failed to issue token for %s: %v", user.ID, err)
		respondWithError(w, http.StatusInternalServerError, i18n.Message(r, i18n.OAuthFailed))
		return
	}
	http.Redirect(w, r, h.oauthSuccessURL, http.StatusFound)
}

// resolveGoogleUser finds the account for a Google identity: by provider
// subject, then by verified email (linking the identity), otherwise a new
// user-role account is created.
func (h *HTTPHandler) resolveGoogleUser(r *http.Request, profile *auth.GoogleProfile) (*domain.User, error) {
	ctx := r.Context()
	user, err := h.userStore.GetUserByProvider(ctx, domain.ProviderGoogle, profile.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return nil, err
	}

	if profile.EmailVerified {
		existing, err := h.userStore.GetUserByEmail(ctx, profile.Email)
		switch {
		case err == nil:
			log.Printf("INFO: linking Google identity to user %s", existing.ID)
			return h.userStore.LinkProvider(ctx, existing.ID, domain.ProviderGoogle, profile.Subject)
		case !errors.Is(err, store.ErrUserNotFound):
			return nil, err
		}
	}

	subject := profile.Subject
	newUser := &domain.User{
		Email:           profile.Email,
		Name:            profile.Name,
		Role:            domain.RoleUser,
		Provider:        domain.ProviderGoogle,
		ProviderSubject: &subject,
	}
	if newUser.Name == "" {
		newUser.Name = strings.SplitN(profile.Email, "@", 2)[0]
	}
	if profile.Picture != "" {
		picture := profile.Picture
		newUser.Image = &picture
	}
	created, err := h.userStore.CreateUser(ctx, newUser)
	if err != nil {
		return nil, err
	}
	log.Printf("INFO: provisioned user %s from Google sign-in", created.ID)
	return created, nil
}

// ListUsers handles GET /admin/users.
func (h *HTTPHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := pageParams(r, defaultUserLimit, maxUserLimit)
	users, totalCount, err := h.userStore.ListUsers(r.Context(), limit, offset)
	if err != nil {
		respondWithStoreError(w, "ListUsers", err, "Failed to retrieve users")
		return
	}
	respondWithJSON(w, http.StatusOK, ListResponse{Data: users, Pagination: newPagination(page, limit, totalCount)})
}

// UpdateUserRole handles PUT /admin/users/{userId}/role.
func (h *HTTPHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	userID, ok := uuidParam(w, r, "userId", "user")
	if !ok {
		return
	}
	var input UpdateUserRoleInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	role, err := domain.ParseRole(input.Role)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, publicMessage(err))
		return
	}
	if userID == claims.UserID() && role != domain.RoleAdmin {
		respondWithError(w, http.StatusConflict, "Admins cannot remove their own admin role")
		return
	}

	user, err := h.userStore.UpdateRole(r.Context(), userID, role)
	if err != nil {
		respondWithStoreError(w, "UpdateUserRole "+userID, err, "Failed to update user role")
		return
	}
	log.Printf("INFO: user %s role set to %s by %s", userID, role, claims.UserID())
	respondWithJSON(w, http.StatusOK, user)
}
