package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/abdshekho/msa-sub001/internal/auth"
	"github.com/abdshekho/msa-sub001/internal/domain"
	"github.com/abdshekho/msa-sub001/internal/media"
	"github.com/abdshekho/msa-sub001/internal/store"
)

// Dependencies groups everything the HTTP handlers need.
type Dependencies struct {
	Categories store.CategoryStorer
	Brands     store.BrandStorer
	Products   store.ProductStorer
	Carts      store.CartStorer
	Orders     store.OrderStorer
	Users      store.UserStorer

	Tokens  *auth.TokenManager
	Gate    *auth.Authenticator
	Revoker *auth.Revoker
	Limiter *auth.RateLimiter
	Google  *auth.GoogleProvider // nil disables Google sign-in

	Media          *media.Store
	MaxUploadBytes int64

	CookieName      string
	SecureCookie    bool
	OAuthSuccessURL string
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	categoryStore store.CategoryStorer
	brandStore    store.BrandStorer
	productStore  store.ProductStorer
	cartStore     store.CartStorer
	orderStore    store.OrderStorer
	userStore     store.UserStorer

	tokens  *auth.TokenManager
	gate    *auth.Authenticator
	revoker *auth.Revoker
	limiter *auth.RateLimiter
	google  *auth.GoogleProvider

	media          *media.Store
	maxUploadBytes int64

	cookieName      string
	secureCookie    bool
	oauthSuccessURL string

	validate *validator.Validate
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(deps Dependencies) *HTTPHandler {
	v := validator.New()
	if err := v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return domain.IsValidSlug(fl.Field().String())
	}); err != nil {
		log.Fatalf("FATAL: failed to register slug validator: %v", err)
	}

	return &HTTPHandler{
		categoryStore:   deps.Categories,
		brandStore:      deps.Brands,
		productStore:    deps.Products,
		cartStore:       deps.Carts,
		orderStore:      deps.Orders,
		userStore:       deps.Users,
		tokens:          deps.Tokens,
		gate:            deps.Gate,
		revoker:         deps.Revoker,
		limiter:         deps.Limiter,
		google:          deps.Google,
		media:           deps.Media,
		maxUploadBytes:  deps.MaxUploadBytes,
		cookieName:      deps.CookieName,
		secureCookie:    deps.SecureCookie,
		oauthSuccessURL: deps.OAuthSuccessURL,
		validate:        v,
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	if payload == nil {
		w.WriteHeader(code)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("ERROR: Failed to encode JSON response: %v", err)
	}
}

// decodeAndValidate reads a JSON body into input and runs its validate tags.
// It writes the 400 response itself and reports whether the handler may continue.
func (h *HTTPHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, input interface{}) bool {
	if err := decodeJSON(r, input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return false
	}
	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return false
	}
	return true
}

func decodeJSON(r *http.Request, input interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(input)
}

// uuidParam reads a UUID path parameter, answering 400 when it is malformed.
func uuidParam(w http.ResponseWriter, r *http.Request, name, label string) (string, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid "+label+" ID format")
		return "", false
	}
	return id.String(), true
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// Pagination matches the envelope used by every list endpoint.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// ListResponse is the {data, pagination} envelope.
type ListResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

func newPagination(page, limit, totalCount int) Pagination {
	totalPages := 0
	if totalCount > 0 && limit > 0 {
		totalPages = (totalCount + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, TotalItems: totalCount, TotalPages: totalPages}
}

// pageParams parses page and limit. A missing limit falls back to defaultLimit;
// limits are capped at maxLimit.
func pageParams(r *http.Request, defaultLimit, maxLimit int) (page, limit, offset int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	page, err = strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page <= 0 {
		page = 1
	}
	return page, limit, (page - 1) * limit
}

// errorStatuses maps sentinel errors to HTTP status codes. Order matters
// only where one error wraps another.
var errorStatuses = []struct {
	err    error
	status int
}{
	{store.ErrCategoryNotFound, http.StatusNotFound},
	{store.ErrBrandNotFound, http.StatusNotFound},
	{store.ErrProductNotFound, http.StatusNotFound},
	{store.ErrCartNotFound, http.StatusNotFound},
	{store.ErrOrderNotFound, http.StatusNotFound},
	{store.ErrUserNotFound, http.StatusNotFound},
	{domain.ErrCartItemNotFound, http.StatusNotFound},

	{store.ErrCategorySlugExists, http.StatusConflict},
	{store.ErrCategoryHasChildren, http.StatusConflict},
	{store.ErrCategoryInUse, http.StatusConflict},
	{store.ErrCategoryCycle, http.StatusConflict},
	{store.ErrBrandSlugExists, http.StatusConflict},
	{store.ErrBrandInUse, http.StatusConflict},
	{store.ErrProductSlugExists, http.StatusConflict},
	{store.ErrOrderStatusConflict, http.StatusConflict},
	{store.ErrCartChanged, http.StatusConflict},
	{store.ErrEmailExists, http.StatusConflict},
	{store.ErrProviderIdentityExists, http.StatusConflict},
	{domain.ErrInvalidTransition, http.StatusConflict},

	{store.ErrParentCategoryNotFound, http.StatusBadRequest},
	{domain.ErrInvalidQuantity, http.StatusBadRequest},
	{domain.ErrQuantityTooLarge, http.StatusBadRequest},
	{domain.ErrCartTotalTooLarge, http.StatusBadRequest},
	{domain.ErrNegativePrice, http.StatusBadRequest},
	{domain.ErrInvalidSpecTable, http.StatusBadRequest},
	{domain.ErrEmptyCart, http.StatusBadRequest},
	{domain.ErrInvalidStatus, http.StatusBadRequest},
	{domain.ErrInvalidRole, http.StatusBadRequest},
}

// publicMessage drops the "store: " / "domain: " package prefix.
func publicMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// respondWithStoreError logs err and answers with the status of the first
// matching sentinel, or 500 with fallback.
func respondWithStoreError(w http.ResponseWriter, op string, err error, fallback string) {
	log.Printf("ERROR: %s failed: %v", op, err)
	for _, m := range errorStatuses {
		if errors.Is(err, m.err) {
			respondWithError(w, m.status, publicMessage(m.err))
			return
		}
	}
	respondWithError(w, http.StatusInternalServerError, fallback)
}

// claimsFrom returns the authenticated caller. Routes using it sit behind
// RequireUser, so a missing session is a wiring bug.
func claimsFrom(r *http.Request) *auth.Claims {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		panic("api: handler reached without authenticated claims")
	}
	return claims
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.gate.Authenticate)

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Get("/{categoryId}", h.GetCategoryByID)
		})
		r.Route("/brands", func(r chi.Router) {
			r.Get("/", h.ListBrands)
			r.Get("/{brandId}", h.GetBrandByID)
		})
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			// Registered before {productId} so it is not parsed as an ID.
			r.Get("/recommendations", h.GetProductRecommendations)
			r.Get("/{productId}", h.GetProductByID)
		})

		r.Route("/auth", func(r chi.Router) {
			r.With(h.rateLimit("register")).Post("/register", h.Register)
			r.With(h.rateLimit("signin")).Post("/signin", h.SignIn)
			r.Post("/signout", h.SignOut)
			r.Get("/oauth/google", h.GoogleSignIn)
			r.Get("/oauth/google/callback", h.GoogleCallback)
			r.With(h.gate.RequireUser).Get("/session", h.GetSession)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.gate.RequireUser)

			r.Get("/me", h.GetProfile)
			r.Put("/me", h.UpdateProfile)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.GetCart)
				r.Delete("/", h.ClearCart)
				r.Post("/items", h.AddCartItem)
				r.Put("/items/{itemId}", h.UpdateCartItem)
				r.Delete("/items/{itemId}", h.RemoveCartItem)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.CreateOrder)
				r.Get("/", h.ListMyOrders)
				r.Get("/{orderId}", h.GetOrderByID)
			})

			r.Post("/uploads", h.UploadImage)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.gate.RequireAdmin)

			r.Route("/categories", func(r chi.Router) {
				r.Post("/", h.CreateCategory)
				r.Put("/{categoryId}", h.UpdateCategory)
				r.Delete("/{categoryId}", h.DeleteCategory)
			})
			r.Route("/brands", func(r chi.Router) {
				r.Post("/", h.CreateBrand)
				r.Put("/{brandId}", h.UpdateBrand)
				r.Delete("/{brandId}", h.DeleteBrand)
			})
			r.Route("/products", func(r chi.Router) {
				r.Post("/", h.CreateProduct)
				r.Get("/export", h.ExportProducts)
				r.Post("/import", h.ImportProducts)
				r.Put("/{productId}", h.UpdateProduct)
				r.Delete("/{productId}", h.DeleteProduct)
			})
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.ListAllOrders)
				r.Put("/{orderId}/status", h.UpdateOrderStatus)
			})
			r.Route("/users", func(r chi.Router) {
				r.Get("/", h.ListUsers)
				r.Put("/{userId}/role", h.UpdateUserRole)
			})
		})
	})
}
