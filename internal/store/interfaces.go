package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/abdshekho/msa-sub001/internal/domain"
)

// ListCategoriesParams holds parameters for listing categories.
// A zero Limit returns every matching row (used for nested trees).
type ListCategoriesParams struct {
	Limit     int
	Offset    int
	ParentID  *string // Only direct children of this category
	RootsOnly bool    // Only categories without a parent
	Slug      *string
}

// CategoryStorer defines the database operations for categories.
type CategoryStorer interface {
	CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error)
	GetCategoryByID(ctx context.Context, id string) (*domain.Category, error)
	ListCategories(ctx context.Context, params ListCategoriesParams) ([]domain.Category, int, error)
	UpdateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// ListBrandsParams holds parameters for listing brands.
type ListBrandsParams struct {
	Limit  int
	Offset int
	Slug   *string
}

// BrandStorer defines the database operations for brands.
type BrandStorer interface {
	CreateBrand(ctx context.Context, brand *domain.Brand) (*domain.Brand, error)
	GetBrandByID(ctx context.Context, id string) (*domain.Brand, error)
	ListBrands(ctx context.Context, params ListBrandsParams) ([]domain.Brand, int, error)
	UpdateBrand(ctx context.Context, brand *domain.Brand) (*domain.Brand, error)
	DeleteBrand(ctx context.Context, id string) error
}

// ListProductsParams holds parameters for listing products (pagination, filtering, sorting).
type ListProductsParams struct {
	Limit        int
	Offset       int
	SearchQuery  *string // Matches English/Arabic name and English description
	CategoryID   *string
	CategorySlug *string
	BrandID      *string
	BrandSlug    *string
	Slug         *string
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	SortBy       string // "name", "price", "created_at", "updated_at"
	SortOrder    string // "asc" or "desc"
}

// ProductStorer defines the database operations for products.
type ProductStorer interface {
	CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
	ListProducts(ctx context.Context, params ListProductsParams) ([]domain.Product, int, error)
	UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

// CartStorer persists the single cart document owned by each user.
type CartStorer interface {
	GetCartByUserID(ctx context.Context, userID string) (*domain.Cart, error)
	SaveCart(ctx context.Context, cart *domain.Cart) (*domain.Cart, error)
}

// ListOrdersParams holds parameters for listing orders.
type ListOrdersParams struct {
	Limit  int
	Offset int
	UserID *string
	Status *domain.OrderStatus
}

// OrderStorer defines the database operations for orders.
type OrderStorer interface {
	// PlaceOrder inserts the order and empties the owner's cart atomically,
	// failing with ErrCartChanged if the cart was modified after cartUpdatedAt.
	PlaceOrder(ctx context.Context, order *domain.Order, cartUpdatedAt time.Time) (*domain.Order, error)
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, params ListOrdersParams) ([]domain.Order, int, error)
	// UpdateOrderStatus changes the status only if it still equals from.
	UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error)
}

// UserStorer defines the database operations for user accounts.
type UserStorer interface {
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByProvider(ctx context.Context, provider, subject string) (*domain.User, error)
	LinkProvider(ctx context.Context, userID, provider, subject string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id, name string, image *string) (*domain.User, error)
	UpdateRole(ctx context.Context, id string, role domain.Role) (*domain.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, int, error)
}
