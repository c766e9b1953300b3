package store

import (
	"context"

	"storefront-catalog-service/internal/domain"
)

// ProductFilter narrows a paginated product listing. The zero value matches
// every product. Type and Categories are mutually exclusive in practice: the
// reserved Free/Paid tags filter by type, a concrete category selection
// filters by name (one name, or a parent plus its direct children).
type ProductFilter struct {
	Type       string   // "free" or "paid"; empty for no type filter
	Categories []string // exact category names; empty for no category filter
}

// ProductPage is one page of a cursor-paginated listing. NextCursor is an
// opaque token; it is only meaningful when HasMore is true.
type ProductPage struct {
	Items      []domain.Product
	NextCursor string
	HasMore    bool
}

// ProductStorer defines the remote store operations for the products collection.
type ProductStorer interface {
	// ListProducts returns one page of products matching filter, ordered
	// newest-first by creation time. An empty cursor starts from the top.
	ListProducts(ctx context.Context, filter ProductFilter, cursor string, pageSize int) (*ProductPage, error)
	// ListAllProducts returns the full collection, newest-first. Used by
	// admin views and search suggestion matching.
	ListAllProducts(ctx context.Context) ([]domain.Product, error)
	// CreateProduct stores a new product. The store assigns ID and CreatedAt.
	CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product *domain.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

// CategoryStorer defines the remote store operations for the categories collection.
type CategoryStorer interface {
	// ListCategories returns all categories ordered by name.
	ListCategories(ctx context.Context) ([]domain.Category, error)
	// CreateCategory stores a new category. The store assigns the ID.
	CreateCategory(ctx context.Context, name string, parent *string) (*domain.Category, error)
	// UpdateCategory renames the category. Product references are not
	// touched here; the cascade is the synchronizer's job.
	UpdateCategory(ctx context.Context, id, newName string) error
	// DeleteCategory moves the category to trash and returns the removed
	// record so the caller can run the product cascade.
	DeleteCategory(ctx context.Context, id string) (*domain.Category, error)
}

// TrashStorer defines the remote store operations for the trash collection.
type TrashStorer interface {
	// ListTrash returns all trash entries, most recently deleted first.
	ListTrash(ctx context.Context) ([]domain.TrashEntry, error)
	// MoveProductToTrash writes the product to trash and removes it from
	// the products collection, keeping the same id.
	MoveProductToTrash(ctx context.Context, product *domain.Product) (*domain.TrashEntry, error)
	// Restore writes the entry back to its origin collection and removes it
	// from trash, returning the restored entry.
	Restore(ctx context.Context, id string) (*domain.TrashEntry, error)
	// PermanentlyDelete removes an entry from trash for good.
	PermanentlyDelete(ctx context.Context, id string) error
	// EmptyTrash removes every entry from trash.
	EmptyTrash(ctx context.Context) error
}
