// Package catalog implements the synchronizer between the remote store and
// the in-memory catalog state: products, categories and trash. Every mutation
// is remote-first; local state only changes after the remote call succeeds,
// so a failed single-item operation always leaves prior state intact.
package catalog

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"storefront-catalog-service/internal/domain"
	"storefront-catalog-service/internal/store"
)

// Defaults mirror the storefront's observed behavior: small pages for the
// public listing, a modest bound on cascade fan-out.
const (
	DefaultPageSize       = 3
	DefaultCascadeWorkers = 4
)

// Options configures a Catalog.
type Options struct {
	PageSize       int
	CascadeWorkers int
	Logger         *log.Logger
}

// Catalog owns the in-memory collections and exposes the mutation operations.
// Products are kept newest-first. The mutex guards the local state only;
// remote calls run outside it, so independent operations can overlap. Two
// racing mutations of the same id are not serialized: the last remote call to
// complete wins in local state.
type Catalog struct {
	productStore  store.ProductStorer
	categoryStore store.CategoryStorer
	trashStore    store.TrashStorer

	pageSize       int
	cascadeWorkers int
	logger         *log.Logger

	mu         sync.Mutex
	products   []domain.Product
	categories []domain.Category
	trash      []domain.TrashEntry

	activeFilter string
	pageState    PageState
	cursor       string
	hasMore      bool
	gen          uint64 // bumped on every filter restart; stale page loads are dropped
}

// New creates a Catalog over the given store implementations.
func New(ps store.ProductStorer, cs store.CategoryStorer, ts store.TrashStorer, opts Options) *Catalog {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.CascadeWorkers <= 0 {
		opts.CascadeWorkers = DefaultCascadeWorkers
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Catalog{
		productStore:   ps,
		categoryStore:  cs,
		trashStore:     ts,
		pageSize:       opts.PageSize,
		cascadeWorkers: opts.CascadeWorkers,
		logger:         opts.Logger,
		activeFilter:   domain.TagAll,
		pageState:      PageIdle,
	}
}

// Load populates categories, trash and the first product page.
func (c *Catalog) Load(ctx context.Context) error {
	categories, err := c.categoryStore.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("catalog: load categories: %w", err)
	}
	trash, err := c.trashStore.ListTrash(ctx)
	if err != nil {
		return fmt.Errorf("catalog: load trash: %w", err)
	}
	c.mu.Lock()
	c.categories = categories
	c.trash = trash
	c.mu.Unlock()
	return c.loadPage(ctx, true)
}

// --- Snapshot accessors ---

// Products returns a copy of the currently loaded product window, newest-first.
func (c *Catalog) Products() []domain.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Product, len(c.products))
	copy(out, c.products)
	return out
}

// Categories returns a copy of the custom category records.
func (c *Catalog) Categories() []domain.Category {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Category, len(c.categories))
	copy(out, c.categories)
	return out
}

// CategoryNames returns the reserved tags followed by the custom category
// names. This is the merged list the storefront sidebar shows and the list
// duplicate checks run against.
func (c *Catalog) CategoryNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.categoryNamesLocked()
}

func (c *Catalog) categoryNamesLocked() []string {
	names := make([]string, 0, len(domain.ReservedTags)+len(c.categories))
	names = append(names, domain.ReservedTags...)
	for _, cat := range c.categories {
		names = append(names, cat.Name)
	}
	return names
}

// Trash returns a copy of the trash entries, most recently deleted first.
func (c *Catalog) Trash() []domain.TrashEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.TrashEntry, len(c.trash))
	copy(out, c.trash)
	return out
}

// ActiveFilter returns the currently selected category name or reserved tag.
func (c *Catalog) ActiveFilter() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeFilter
}

// PageState returns the pagination state of the product listing.
func (c *Catalog) PageState() PageState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageState
}

// HasMore reports whether another product page can be loaded.
func (c *Catalog) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

// --- Product operations ---

// AddProduct creates the product remotely and, on success, prepends the
// store-assigned record to the loaded window.
func (c *Catalog) AddProduct(ctx context.Context, draft domain.Product) (*domain.Product, error) {
	created, err := c.productStore.CreateProduct(ctx, &draft)
	if err != nil {
		return nil, fmt.Errorf("catalog: add product: %w", err)
	}
	c.mu.Lock()
	c.products = append([]domain.Product{*created}, c.products...)
	c.mu.Unlock()
	return created, nil
}

// UpdateProduct pushes the full draft to the store and, on success, replaces
// the matching local entry by id. The local state echoes the caller's draft;
// it is not re-fetched, so any server-side transformation would drift until
// the next load.
func (c *Catalog) UpdateProduct(ctx context.Context, product domain.Product) error {
	if err := c.productStore.UpdateProduct(ctx, &product); err != nil {
		return fmt.Errorf("catalog: update product: %w", err)
	}
	c.mu.Lock()
	for i := range c.products {
		if c.products[i].ID == product.ID {
			c.products[i] = product
			break
		}
	}
	c.mu.Unlock()
	return nil
}

// DeleteProduct soft-deletes the product: it moves to trash remotely, then
// locally. Deleting an id that is not in the loaded window is a no-op, which
// tolerates duplicate UI events.
func (c *Catalog) DeleteProduct(ctx context.Context, id string) error {
	c.mu.Lock()
	var target *domain.Product
	for i := range c.products {
		if c.products[i].ID == id {
			p := c.products[i]
			target = &p
			break
		}
	}
	c.mu.Unlock()
	if target == nil {
		return nil
	}

	entry, err := c.trashStore.MoveProductToTrash(ctx, target)
	if err != nil {
		return fmt.Errorf("catalog: delete product: %w", err)
	}

	c.mu.Lock()
	c.removeProductLocked(id)
	c.trash = append([]domain.TrashEntry{*entry}, c.trash...)
	c.mu.Unlock()
	return nil
}

// RestoreProduct moves a trashed product back into the catalog. Restoring an
// id that is not in trash is a no-op.
func (c *Catalog) RestoreProduct(ctx context.Context, id string) error {
	if c.findTrashEntry(id, domain.TrashKindProduct) == nil {
		return nil
	}
	entry, err := c.trashStore.Restore(ctx, id)
	if err != nil {
		return fmt.Errorf("catalog: restore product: %w", err)
	}
	c.mu.Lock()
	c.removeTrashLocked(id)
	if entry.Product != nil {
		c.products = append([]domain.Product{*entry.Product}, c.products...)
	}
	c.mu.Unlock()
	return nil
}

// RestoreCategory moves a trashed category back into the category list.
// Restoring an id that is not in trash is a no-op. Products that were trashed
// by the category's delete cascade stay in trash; they are restored one by one.
func (c *Catalog) RestoreCategory(ctx context.Context, id string) error {
	if c.findTrashEntry(id, domain.TrashKindCategory) == nil {
		return nil
	}
	entry, err := c.trashStore.Restore(ctx, id)
	if err != nil {
		return fmt.Errorf("catalog: restore category: %w", err)
	}
	c.mu.Lock()
	c.removeTrashLocked(id)
	if entry.Category != nil {
		c.categories = append(c.categories, *entry.Category)
		sort.Slice(c.categories, func(i, j int) bool { return c.categories[i].Name < c.categories[j].Name })
	}
	c.mu.Unlock()
	return nil
}

// PermanentlyDelete destroys a trash entry for good. The local removal is
// keyed on remote success, not on local presence.
func (c *Catalog) PermanentlyDelete(ctx context.Context, id string) error {
	if err := c.trashStore.PermanentlyDelete(ctx, id); err != nil {
		return fmt.Errorf("catalog: permanently delete: %w", err)
	}
	c.mu.Lock()
	c.removeTrashLocked(id)
	c.mu.Unlock()
	return nil
}

// EmptyTrash destroys every trash entry. The store-side delete-all is not
// atomic; a failure mid-batch can leave the store and local state out of step,
// and no partial recovery is attempted here.
func (c *Catalog) EmptyTrash(ctx context.Context) error {
	if err := c.trashStore.EmptyTrash(ctx); err != nil {
		return fmt.Errorf("catalog: empty trash: %w", err)
	}
	c.mu.Lock()
	c.trash = nil
	c.mu.Unlock()
	return nil
}

// ReorderProducts rearranges the loaded window to match the given id order.
// This is local-only: the order is not persisted and is lost on reload.
func (c *Catalog) ReorderProducts(order []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byID := make(map[string]domain.Product, len(c.products))
	for _, p := range c.products {
		byID[p.ID] = p
	}
	reordered := make([]domain.Product, 0, len(c.products))
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if p, ok := byID[id]; ok && !seen[id] {
			reordered = append(reordered, p)
			seen[id] = true
		}
	}
	// Products the caller did not mention keep their relative order at the end.
	for _, p := range c.products {
		if !seen[p.ID] {
			reordered = append(reordered, p)
		}
	}
	c.products = reordered
}

// AllProducts returns the full remote collection, newest-first. Used by admin
// views and search suggestion matching; it bypasses the paginated window.
func (c *Catalog) AllProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := c.productStore.ListAllProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: list all products: %w", err)
	}
	return products, nil
}

// FindProduct looks the product up in the loaded window first and falls back
// to a full remote scan.
func (c *Catalog) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	c.mu.Lock()
	for i := range c.products {
		if c.products[i].ID == id {
			p := c.products[i]
			c.mu.Unlock()
			return &p, nil
		}
	}
	c.mu.Unlock()

	all, err := c.productStore.ListAllProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: find product: %w", err)
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, store.ErrProductNotFound
}

// --- Category operations ---

// AddCategory creates a category after an advisory duplicate check against
// the merged reserved+custom name list (case-sensitive). A duplicate performs
// no remote call. Parent, when given, must name an existing top-level custom
// category; deeper chains are rejected.
func (c *Catalog) AddCategory(ctx context.Context, name string, parent *string) (*domain.Category, error) {
	c.mu.Lock()
	for _, existing := range c.categoryNamesLocked() {
		if existing == name {
			c.mu.Unlock()
			return nil, ErrDuplicateCategory
		}
	}
	if parent != nil {
		valid := false
		for _, cat := range c.categories {
			if cat.Name == *parent && cat.Parent == nil {
				valid = true
				break
			}
		}
		if !valid {
			c.mu.Unlock()
			return nil, ErrInvalidParent
		}
	}
	c.mu.Unlock()

	created, err := c.categoryStore.CreateCategory(ctx, name, parent)
	if err != nil {
		return nil, fmt.Errorf("catalog: add category: %w", err)
	}
	c.mu.Lock()
	c.categories = append(c.categories, *created)
	c.mu.Unlock()
	return created, nil
}

// RenameCategory renames the category and cascades the new name to every
// product referencing the old one. Three phases: remote rename, local rename
// (retargeting the active filter when it pointed at the old name), then a
// bounded-concurrency remote update of each affected product. A partial
// cascade failure returns a *CascadeError naming the products left behind;
// there is no rollback.
func (c *Catalog) RenameCategory(ctx context.Context, id, oldName, newName string) error {
	if err := c.categoryStore.UpdateCategory(ctx, id, newName); err != nil {
		return fmt.Errorf("catalog: rename category: %w", err)
	}

	c.mu.Lock()
	for i := range c.categories {
		if c.categories[i].ID == id {
			c.categories[i].Name = newName
			break
		}
	}
	if c.activeFilter == oldName {
		c.activeFilter = newName
	}
	c.mu.Unlock()

	affected, err := c.productsInCategory(ctx, oldName)
	if err != nil {
		return err
	}
	if len(affected) == 0 {
		return nil
	}

	failures := runBatch(ctx, affected, c.cascadeWorkers, func(ctx context.Context, p domain.Product) error {
		p.Category = newName
		return c.productStore.UpdateProduct(ctx, &p)
	})

	c.mu.Lock()
	for i := range c.products {
		if c.products[i].Category != oldName {
			continue
		}
		if _, failed := failures[c.products[i].ID]; !failed {
			c.products[i].Category = newName
		}
	}
	c.mu.Unlock()

	if len(failures) > 0 {
		return &CascadeError{Op: "rename", Total: len(affected), Failures: failures}
	}
	return nil
}

// DeleteCategory soft-deletes the category and every product in it. Phases:
// remote delete-and-capture, local removal (resetting the active filter to
// All when it pointed at the deleted name), a synthetic trash entry for the
// category, then a bounded-concurrency move-to-trash of each affected
// product. Partial cascade failure returns a *CascadeError; products whose
// move failed remain live and still reference the deleted category's name.
func (c *Catalog) DeleteCategory(ctx context.Context, id, name string) error {
	captured, err := c.categoryStore.DeleteCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("catalog: delete category: %w", err)
	}

	c.mu.Lock()
	kept := c.categories[:0]
	for _, cat := range c.categories {
		if cat.ID != id {
			kept = append(kept, cat)
		}
	}
	c.categories = kept
	if c.activeFilter == name {
		c.activeFilter = domain.TagAll
		c.invalidatePagerLocked()
	}
	c.trash = append([]domain.TrashEntry{{
		ID:        captured.ID,
		Kind:      domain.TrashKindCategory,
		Label:     captured.Name + " (Category)",
		DeletedAt: time.Now().UTC(),
		Category:  captured,
	}}, c.trash...)
	c.mu.Unlock()

	affected, err := c.productsInCategory(ctx, name)
	if err != nil {
		return err
	}
	if len(affected) == 0 {
		return nil
	}

	var entryMu sync.Mutex
	entries := make([]domain.TrashEntry, 0, len(affected))
	failures := runBatch(ctx, affected, c.cascadeWorkers, func(ctx context.Context, p domain.Product) error {
		entry, err := c.trashStore.MoveProductToTrash(ctx, &p)
		if err != nil {
			return err
		}
		entryMu.Lock()
		entries = append(entries, *entry)
		entryMu.Unlock()
		return nil
	})

	c.mu.Lock()
	for _, entry := range entries {
		c.removeProductLocked(entry.ID)
	}
	c.trash = append(entries, c.trash...)
	c.mu.Unlock()

	if len(failures) > 0 {
		return &CascadeError{Op: "delete", Total: len(affected), Failures: failures}
	}
	return nil
}

// productsInCategory scans the full remote collection rather than the loaded
// window, so cascades cover products beyond the current page.
func (c *Catalog) productsInCategory(ctx context.Context, name string) ([]domain.Product, error) {
	all, err := c.productStore.ListAllProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: list products for cascade: %w", err)
	}
	var affected []domain.Product
	for _, p := range all {
		if p.Category == name {
			affected = append(affected, p)
		}
	}
	return affected, nil
}

// --- Pagination & filtering ---

// SetFilter switches the active category filter and restarts pagination from
// the top. Any in-flight page load for the previous filter is discarded when
// it completes.
func (c *Catalog) SetFilter(ctx context.Context, name string) error {
	c.mu.Lock()
	c.activeFilter = name
	c.mu.Unlock()
	return c.loadPage(ctx, true)
}

// LoadFirstPage loads the first page for the active filter, discarding the
// current window.
func (c *Catalog) LoadFirstPage(ctx context.Context) error {
	return c.loadPage(ctx, true)
}

// LoadMore appends the next page. A call when the listing is exhausted is a
// no-op.
func (c *Catalog) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if !c.hasMore || c.pageState == PageExhausted {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.loadPage(ctx, false)
}

// Retry re-enters loading after an error, resuming from the last known cursor
// or restarting from the top when there is none.
func (c *Catalog) Retry(ctx context.Context) error {
	c.mu.Lock()
	restart := c.cursor == ""
	c.mu.Unlock()
	return c.loadPage(ctx, restart)
}

func (c *Catalog) loadPage(ctx context.Context, restart bool) error {
	c.mu.Lock()
	if restart {
		c.gen++
		c.cursor = ""
		c.pageState = PageLoading
	} else {
		c.pageState = PageLoadingMore
	}
	gen := c.gen
	cursor := c.cursor
	filter := c.buildFilterLocked()
	c.mu.Unlock()

	page, err := c.productStore.ListProducts(ctx, filter, cursor, c.pageSize)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		// The filter changed while this load was in flight; drop the page.
		return nil
	}
	if err != nil {
		c.pageState = PageError
		return fmt.Errorf("catalog: load products: %w", err)
	}
	if restart {
		c.products = append([]domain.Product(nil), page.Items...)
	} else {
		c.products = append(c.products, page.Items...)
	}
	c.cursor = page.NextCursor
	c.hasMore = page.HasMore
	if page.HasMore {
		c.pageState = PageLoaded
	} else {
		c.pageState = PageExhausted
	}
	return nil
}

// buildFilterLocked translates the active filter into a store filter. The
// reserved Free/Paid tags select by product type; a parent category expands
// to itself plus its direct children (one level only).
func (c *Catalog) buildFilterLocked() store.ProductFilter {
	switch c.activeFilter {
	case domain.TagAll, "":
		return store.ProductFilter{}
	case domain.TagFree:
		return store.ProductFilter{Type: domain.ProductTypeFree}
	case domain.TagPaid:
		return store.ProductFilter{Type: domain.ProductTypePaid}
	}
	names := []string{c.activeFilter}
	for _, cat := range c.categories {
		if cat.Parent != nil && *cat.Parent == c.activeFilter {
			names = append(names, cat.Name)
		}
	}
	return store.ProductFilter{Categories: names}
}

func (c *Catalog) invalidatePagerLocked() {
	c.gen++
	c.cursor = ""
	c.hasMore = false
	c.pageState = PageIdle
}

// --- internal helpers ---

func (c *Catalog) removeProductLocked(id string) {
	kept := c.products[:0]
	for _, p := range c.products {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	c.products = kept
}

func (c *Catalog) removeTrashLocked(id string) {
	kept := c.trash[:0]
	for _, entry := range c.trash {
		if entry.ID != id {
			kept = append(kept, entry)
		}
	}
	c.trash = kept
}

func (c *Catalog) findTrashEntry(id, kind string) *domain.TrashEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.trash {
		if c.trash[i].ID == id && c.trash[i].Kind == kind {
			entry := c.trash[i]
			return &entry
		}
	}
	return nil
}
