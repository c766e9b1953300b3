// Package storetest provides an in-memory implementation of the store
// interfaces for tests: stateful, order-preserving, with per-operation call
// counting and failure injection.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront-catalog-service/internal/domain"
	"storefront-catalog-service/internal/store"
)

// MemStore implements store.ProductStorer, store.CategoryStorer and
// store.TrashStorer over in-memory slices. Products are kept newest-first,
// mirroring the Postgres ordering. Cursors are the id of the last row of the
// previous page, resolved against the filtered sequence.
type MemStore struct {
	mu         sync.Mutex
	products   []domain.Product
	categories []domain.Category
	trash      []domain.TrashEntry
	calls      map[string]int
	seq        int

	// Failure injection. Err* fields fail the whole operation; the per-id
	// maps fail individual cascade calls.
	ErrListProducts    error
	ErrCreateProduct   error
	ErrCreateCategory  error
	ErrUpdateCategory  error
	ErrDeleteCategory  error
	ErrEmptyTrash      error
	FailUpdateProduct  map[string]error
	FailMoveToTrash    map[string]error
	OnListProducts     func() // called at the start of ListProducts, before any work
}

// New returns an empty MemStore.
func New() *MemStore {
	return &MemStore{calls: make(map[string]int)}
}

// Calls returns how many times the named operation ran.
func (m *MemStore) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MemStore) record(op string) {
	m.calls[op]++
}

// SeedProduct inserts a product directly, bypassing call counting. Products
// seed oldest-first; each one gets a later CreatedAt than the previous.
func (m *MemStore) SeedProduct(p domain.Product) domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if p.ID == "" {
		p.ID = fmt.Sprintf("p%03d", m.seq)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Unix(int64(m.seq), 0).UTC()
	}
	m.products = append([]domain.Product{p}, m.products...)
	return p
}

// SeedCategory inserts a category directly, bypassing call counting.
func (m *MemStore) SeedCategory(c domain.Category) domain.Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if c.ID == "" {
		c.ID = fmt.Sprintf("c%03d", m.seq)
	}
	m.categories = append(m.categories, c)
	return c
}

// ProductIDs returns the live product ids, newest-first.
func (m *MemStore) ProductIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.products))
	for i, p := range m.products {
		ids[i] = p.ID
	}
	return ids
}

// TrashIDs returns the ids currently in trash.
func (m *MemStore) TrashIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.trash))
	for i, entry := range m.trash {
		ids[i] = entry.ID
	}
	return ids
}

// --- store.ProductStorer ---

func (m *MemStore) ListProducts(ctx context.Context, filter store.ProductFilter, cursor string, pageSize int) (*store.ProductPage, error) {
	if m.OnListProducts != nil {
		m.OnListProducts()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ListProducts")
	if m.ErrListProducts != nil {
		return nil, m.ErrListProducts
	}

	var filtered []domain.Product
	for _, p := range m.products {
		if filter.Type != "" && p.Type != filter.Type {
			continue
		}
		if len(filter.Categories) > 0 && !contains(filter.Categories, p.Category) {
			continue
		}
		filtered = append(filtered, p)
	}

	start := 0
	if cursor != "" {
		for i, p := range filtered {
			if p.ID == cursor {
				start = i + 1
				break
			}
		}
	}
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	page := &store.ProductPage{Items: append([]domain.Product(nil), filtered[start:end]...)}
	if end < len(filtered) {
		page.HasMore = true
		page.NextCursor = filtered[end-1].ID
	}
	return page, nil
}

func (m *MemStore) ListAllProducts(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ListAllProducts")
	return append([]domain.Product(nil), m.products...), nil
}

func (m *MemStore) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CreateProduct")
	if m.ErrCreateProduct != nil {
		return nil, m.ErrCreateProduct
	}
	created := *product
	created.ID = uuid.NewString()
	m.seq++
	created.CreatedAt = time.Unix(int64(m.seq), 0).UTC()
	m.products = append([]domain.Product{created}, m.products...)
	return &created, nil
}

func (m *MemStore) UpdateProduct(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("UpdateProduct")
	if err := m.FailUpdateProduct[product.ID]; err != nil {
		return err
	}
	for i := range m.products {
		if m.products[i].ID == product.ID {
			updated := *product
			updated.CreatedAt = m.products[i].CreatedAt
			m.products[i] = updated
			return nil
		}
	}
	return store.ErrProductNotFound
}

func (m *MemStore) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("DeleteProduct")
	for i := range m.products {
		if m.products[i].ID == id {
			m.products = append(m.products[:i], m.products[i+1:]...)
			return nil
		}
	}
	return store.ErrProductNotFound
}

// --- store.CategoryStorer ---

func (m *MemStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ListCategories")
	out := append([]domain.Category(nil), m.categories...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemStore) CreateCategory(ctx context.Context, name string, parent *string) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CreateCategory")
	if m.ErrCreateCategory != nil {
		return nil, m.ErrCreateCategory
	}
	for _, c := range m.categories {
		if c.Name == name {
			return nil, store.ErrCategoryNameExists
		}
	}
	m.seq++
	created := domain.Category{ID: fmt.Sprintf("c%03d", m.seq), Name: name, Parent: parent}
	m.categories = append(m.categories, created)
	return &created, nil
}

func (m *MemStore) UpdateCategory(ctx context.Context, id, newName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("UpdateCategory")
	if m.ErrUpdateCategory != nil {
		return m.ErrUpdateCategory
	}
	for i := range m.categories {
		if m.categories[i].ID == id {
			m.categories[i].Name = newName
			return nil
		}
	}
	return store.ErrCategoryNotFound
}

func (m *MemStore) DeleteCategory(ctx context.Context, id string) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("DeleteCategory")
	if m.ErrDeleteCategory != nil {
		return nil, m.ErrDeleteCategory
	}
	for i := range m.categories {
		if m.categories[i].ID == id {
			captured := m.categories[i]
			m.categories = append(m.categories[:i], m.categories[i+1:]...)
			m.trash = append([]domain.TrashEntry{{
				ID:        captured.ID,
				Kind:      domain.TrashKindCategory,
				Label:     captured.Name + " (Category)",
				DeletedAt: time.Now().UTC(),
				Category:  &captured,
			}}, m.trash...)
			return &captured, nil
		}
	}
	return nil, store.ErrCategoryNotFound
}

// --- store.TrashStorer ---

func (m *MemStore) ListTrash(ctx context.Context) ([]domain.TrashEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ListTrash")
	return append([]domain.TrashEntry(nil), m.trash...), nil
}

func (m *MemStore) MoveProductToTrash(ctx context.Context, product *domain.Product) (*domain.TrashEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("MoveProductToTrash")
	if err := m.FailMoveToTrash[product.ID]; err != nil {
		return nil, err
	}
	for i := range m.products {
		if m.products[i].ID == product.ID {
			captured := m.products[i]
			m.products = append(m.products[:i], m.products[i+1:]...)
			entry := domain.TrashEntry{
				ID:        captured.ID,
				Kind:      domain.TrashKindProduct,
				Label:     captured.Title,
				DeletedAt: time.Now().UTC(),
				Product:   &captured,
			}
			m.trash = append([]domain.TrashEntry{entry}, m.trash...)
			return &entry, nil
		}
	}
	return nil, store.ErrProductNotFound
}

func (m *MemStore) Restore(ctx context.Context, id string) (*domain.TrashEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Restore")
	for i := range m.trash {
		if m.trash[i].ID != id {
			continue
		}
		entry := m.trash[i]
		m.trash = append(m.trash[:i], m.trash[i+1:]...)
		switch entry.Kind {
		case domain.TrashKindProduct:
			m.products = append([]domain.Product{*entry.Product}, m.products...)
		case domain.TrashKindCategory:
			m.categories = append(m.categories, *entry.Category)
		}
		return &entry, nil
	}
	return nil, store.ErrTrashEntryNotFound
}

func (m *MemStore) PermanentlyDelete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("PermanentlyDelete")
	for i := range m.trash {
		if m.trash[i].ID == id {
			m.trash = append(m.trash[:i], m.trash[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemStore) EmptyTrash(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("EmptyTrash")
	if m.ErrEmptyTrash != nil {
		return m.ErrEmptyTrash
	}
	m.trash = nil
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
