package domain

import (
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

// LocalizedText carries the English and Arabic variants of a display string.
type LocalizedText struct {
	EN string `json:"en"`
	AR string `json:"ar"`
}

// Category represents a node of the self-referential category tree.
type Category struct {
	ID        string        `json:"id"`
	Name      LocalizedText `json:"name"`
	Slug      string        `json:"slug"`
	ParentID  *string       `json:"parent_id,omitempty"`
	Image     *string       `json:"image,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// CategoryNode is a category together with its direct children, used for nested listings.
type CategoryNode struct {
	Category
	Children []*CategoryNode `json:"children"`
}

// BuildCategoryTree arranges a flat list of categories into a forest.
// Categories whose parent is absent from the list become roots, so a
// filtered listing never silently drops records. Sibling order follows
// the order of the input slice.
func BuildCategoryTree(categories []Category) []*CategoryNode {
	nodes := make(map[string]*CategoryNode, len(categories))
	for _, c := range categories {
		nodes[c.ID] = &CategoryNode{Category: c, Children: []*CategoryNode{}}
	}

	roots := make([]*CategoryNode, 0)
	for _, c := range categories {
		node := nodes[c.ID]
		if c.ParentID != nil {
			if parent, ok := nodes[*c.ParentID]; ok && parent != node {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}

// Brand represents a product brand.
type Brand struct {
	ID          string        `json:"id"`
	Name        LocalizedText `json:"name"`
	Description LocalizedText `json:"description"`
	Slug        string        `json:"slug"`
	Image       *string       `json:"image,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// SpecCell is one cell of a product spec table. ColSpan > 1 marks a merged cell.
type SpecCell struct {
	Value   string `json:"value"`
	ColSpan int    `json:"colspan,omitempty"`
}

// Span returns the number of columns the cell covers.
func (c SpecCell) Span() int {
	if c.ColSpan < 1 {
		return 1
	}
	return c.ColSpan
}

// SpecTable is the structured specification table shown on a product page.
type SpecTable struct {
	Headers []string     `json:"headers"`
	Rows    [][]SpecCell `json:"rows"`
}

// Validate checks that every row covers exactly the header columns.
func (t *SpecTable) Validate() error {
	if t == nil {
		return nil
	}
	if len(t.Rows) > 0 && len(t.Headers) == 0 {
		return ErrInvalidSpecTable
	}
	for _, row := range t.Rows {
		width := 0
		for _, cell := range row {
			width += cell.Span()
		}
		if width != len(t.Headers) {
			return ErrInvalidSpecTable
		}
	}
	return nil
}

// Product represents a product in the catalog.
// Price is stored with two decimal places; line items copy it at add time.
type Product struct {
	ID          string          `json:"id"`
	Slug        string          `json:"slug"`
	Name        LocalizedText   `json:"name"`
	Description LocalizedText   `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Images      []string        `json:"images"`
	CategoryID  string          `json:"category_id"`
	BrandID     *string         `json:"brand_id,omitempty"`
	Specs       *SpecTable      `json:"specs,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Validate enforces the product invariants that do not need the store.
func (p *Product) Validate() error {
	if p.Price.IsNegative() {
		return ErrNegativePrice
	}
	return p.Specs.Validate()
}

// Summary returns the snapshot used to decorate cart and order lines.
func (p *Product) Summary() ProductSummary {
	return ProductSummary{
		ID:    p.ID,
		Slug:  p.Slug,
		Name:  p.Name,
		Image: p.Image,
		Price: p.Price,
	}
}

// ProductSummary is the subset of a product shown next to a cart line.
type ProductSummary struct {
	ID    string          `json:"id"`
	Slug  string          `json:"slug"`
	Name  LocalizedText   `json:"name"`
	Image string          `json:"image"`
	Price decimal.Decimal `json:"price"`
}

// SlugFor derives a URL-safe slug from a localized name, preferring English.
func SlugFor(name LocalizedText) string {
	if s := slug.Make(strings.TrimSpace(name.EN)); s != "" {
		return s
	}
	return slug.Make(strings.TrimSpace(name.AR))
}

// IsValidSlug reports whether s is already in canonical slug form.
func IsValidSlug(s string) bool {
	return slug.IsSlug(s)
}
