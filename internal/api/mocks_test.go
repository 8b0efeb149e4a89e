package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/abdshekho/msa-sub001/internal/auth"
	"github.com/abdshekho/msa-sub001/internal/domain"
	"github.com/abdshekho/msa-sub001/internal/media"
	"github.com/abdshekho/msa-sub001/internal/store"
)

// MockCategoryStorer is a mock implementation of store.CategoryStorer
type MockCategoryStorer struct {
	mock.Mock
}

func (m *MockCategoryStorer) CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *MockCategoryStorer) GetCategoryByID(ctx context.Context, id string) (*domain.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *MockCategoryStorer) ListCategories(ctx context.Context, params store.ListCategoriesParams) ([]domain.Category, int, error) {
	args := m.Called(ctx, params)
	var categories []domain.Category
	if arg0 := args.Get(0); arg0 != nil {
		categories = arg0.([]domain.Category)
	}
	return categories, args.Int(1), args.Error(2)
}

func (m *MockCategoryStorer) UpdateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *MockCategoryStorer) DeleteCategory(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockBrandStorer is a mock implementation of store.BrandStorer
type MockBrandStorer struct {
	mock.Mock
}

func (m *MockBrandStorer) CreateBrand(ctx context.Context, brand *domain.Brand) (*domain.Brand, error) {
	args := m.Called(ctx, brand)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Brand), args.Error(1)
}

func (m *MockBrandStorer) GetBrandByID(ctx context.Context, id string) (*domain.Brand, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Brand), args.Error(1)
}

func (m *MockBrandStorer) ListBrands(ctx context.Context, params store.ListBrandsParams) ([]domain.Brand, int, error) {
	args := m.Called(ctx, params)
	var brands []domain.Brand
	if arg0 := args.Get(0); arg0 != nil {
		brands = arg0.([]domain.Brand)
	}
	return brands, args.Int(1), args.Error(2)
}

func (m *MockBrandStorer) UpdateBrand(ctx context.Context, brand *domain.Brand) (*domain.Brand, error) {
	args := m.Called(ctx, brand)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Brand), args.Error(1)
}

func (m *MockBrandStorer) DeleteBrand(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockProductStorer is a mock implementation of store.ProductStorer
type MockProductStorer struct {
	mock.Mock
}

func (m *MockProductStorer) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	args := m.Called(ctx, product)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductStorer) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductStorer) GetProductsByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	args := m.Called(ctx, ids)
	var products []domain.Product
	if arg0 := args.Get(0); arg0 != nil {
		products = arg0.([]domain.Product)
	}
	return products, args.Error(1)
}

func (m *MockProductStorer) ListProducts(ctx context.Context, params store.ListProductsParams) ([]domain.Product, int, error) {
	args := m.Called(ctx, params)
	var products []domain.Product
	if arg0 := args.Get(0); arg0 != nil {
		products = arg0.([]domain.Product)
	}
	return products, args.Int(1), args.Error(2)
}

func (m *MockProductStorer) UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	args := m.Called(ctx, product)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductStorer) DeleteProduct(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockCartStorer is a mock implementation of store.CartStorer. Return
// values may be a func(*domain.Cart) *domain.Cart to echo the saved cart.
type MockCartStorer struct {
	mock.Mock
}

func (m *MockCartStorer) GetCartByUserID(ctx context.Context, userID string) (*domain.Cart, error) {
	args := m.Called(ctx, userID)
	if fn, ok := args.Get(0).(func() *domain.Cart); ok {
		return fn(), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *MockCartStorer) SaveCart(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	args := m.Called(ctx, cart)
	if fn, ok := args.Get(0).(func(*domain.Cart) *domain.Cart); ok {
		return fn(cart), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

// MockOrderStorer is a mock implementation of store.OrderStorer
type MockOrderStorer struct {
	mock.Mock
}

func (m *MockOrderStorer) PlaceOrder(ctx context.Context, order *domain.Order, cartUpdatedAt time.Time) (*domain.Order, error) {
	args := m.Called(ctx, order, cartUpdatedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderStorer) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderStorer) ListOrders(ctx context.Context, params store.ListOrdersParams) ([]domain.Order, int, error) {
	args := m.Called(ctx, params)
	var orders []domain.Order
	if arg0 := args.Get(0); arg0 != nil {
		orders = arg0.([]domain.Order)
	}
	return orders, args.Int(1), args.Error(2)
}

func (m *MockOrderStorer) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	args := m.Called(ctx, id, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

// MockUserStorer is a mock implementation of store.UserStorer
type MockUserStorer struct {
	mock.Mock
}

func (m *MockUserStorer) userResult(args mock.Arguments) (*domain.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserStorer) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	return m.userResult(m.Called(ctx, user))
}

func (m *MockUserStorer) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return m.userResult(m.Called(ctx, id))
}

func (m *MockUserStorer) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.userResult(m.Called(ctx, email))
}

func (m *MockUserStorer) GetUserByProvider(ctx context.Context, provider, subject string) (*domain.User, error) {
	return m.userResult(m.Called(ctx, provider, subject))
}

func (m *MockUserStorer) LinkProvider(ctx context.Context, userID, provider, subject string) (*domain.User, error) {
	return m.userResult(m.Called(ctx, userID, provider, subject))
}

func (m *MockUserStorer) UpdateProfile(ctx context.Context, id, name string, image *string) (*domain.User, error) {
	return m.userResult(m.Called(ctx, id, name, image))
}

func (m *MockUserStorer) UpdateRole(ctx context.Context, id string, role domain.Role) (*domain.User, error) {
	return m.userResult(m.Called(ctx, id, role))
}

func (m *MockUserStorer) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, int, error) {
	args := m.Called(ctx, limit, offset)
	var users []domain.User
	if arg0 := args.Get(0); arg0 != nil {
		users = arg0.([]domain.User)
	}
	return users, args.Int(1), args.Error(2)
}

const (
	testSecret      = "test-secret-that-is-at-least-32-bytes-long"
	testCookieName  = "storefront_session"
	testUserID      = "11111111-1111-4111-8111-111111111111"
	testAdminID     = "22222222-2222-4222-8222-222222222222"
	testCategoryID  = "33333333-3333-4333-8333-333333333333"
	testBrandID     = "44444444-4444-4444-8444-444444444444"
	testProductAID  = "55555555-5555-4555-8555-555555555555"
	testProductBID  = "66666666-6666-4666-8666-666666666666"
	testOrderID     = "77777777-7777-4777-8777-777777777777"
	testMissingUUID = "99999999-9999-4999-8999-999999999999"
	testMaxPixels   = 4_000_000
)

// testEnv is a running router backed by mocks, plus tokens for a regular
// user and an admin.
type testEnv struct {
	server     *httptest.Server
	categories *MockCategoryStorer
	brands     *MockBrandStorer
	products   *MockProductStorer
	carts      *MockCartStorer
	orders     *MockOrderStorer
	users      *MockUserStorer
	tokens     *auth.TokenManager
	uploadRoot string
	userToken  string
	adminToken string
}

func (e *testEnv) assertExpectations(t *testing.T) {
	t.Helper()
	e.categories.AssertExpectations(t)
	e.brands.AssertExpectations(t)
	e.products.AssertExpectations(t)
	e.carts.AssertExpectations(t)
	e.orders.AssertExpectations(t)
	e.users.AssertExpectations(t)
}

// setupTestChiServer wires NewHTTPHandler with mock stores. Optional
// overrides adjust the dependencies before the handler is built.
func setupTestChiServer(t *testing.T, overrides ...func(*Dependencies)) *testEnv {
	t.Helper()
	env := &testEnv{
		categories: new(MockCategoryStorer),
		brands:     new(MockBrandStorer),
		products:   new(MockProductStorer),
		carts:      new(MockCartStorer),
		orders:     new(MockOrderStorer),
		users:      new(MockUserStorer),
		tokens:     auth.NewTokenManager(testSecret, "storefront-test", time.Hour),
		uploadRoot: t.TempDir(),
	}

	deps := Dependencies{
		Categories:      env.categories,
		Brands:          env.brands,
		Products:        env.products,
		Carts:           env.carts,
		Orders:          env.orders,
		Users:           env.users,
		Tokens:          env.tokens,
		Gate:            auth.NewAuthenticator(env.tokens, nil, nil, testCookieName, "/signin"),
		Media:           media.NewStore(env.uploadRoot, "/uploads", 80, 400, testMaxPixels),
		MaxUploadBytes:  1 << 20,
		CookieName:      testCookieName,
		OAuthSuccessURL: "/account",
	}
	for _, override := range overrides {
		override(&deps)
	}

	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	NewHTTPHandler(deps).RegisterRoutes(router)
	env.server = httptest.NewServer(router)
	t.Cleanup(env.server.Close)

	env.userToken = issueTestToken(t, env.tokens, testUserID, domain.RoleUser)
	env.adminToken = issueTestToken(t, env.tokens, testAdminID, domain.RoleAdmin)
	return env
}

func issueTestToken(t *testing.T, tokens *auth.TokenManager, userID string, role domain.Role) string {
	t.Helper()
	token, _, err := tokens.Issue(&domain.User{ID: userID, Role: role})
	require.NoError(t, err)
	return token
}

// doRequest sends body as JSON with an optional bearer token.
func (e *testEnv) doRequest(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func decodeBody(t *testing.T, res *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(res.Body).Decode(v))
}

func decodeError(t *testing.T, res *http.Response) string {
	t.Helper()
	var errResp ErrorResponse
	decodeBody(t, res, &errResp)
	return errResp.Error
}

// PtrTo returns a pointer to v.
func PtrTo[T any](v T) *T {
	return &v
}
