package domain

import "time"

// Reserved tag names. These are synthetic categories used only for filtering;
// they never exist as stored Category records. Free and Paid partition products
// by Type rather than by Category.
const (
	TagAll  = "All"
	TagFree = "Free"
	TagPaid = "Paid"
)

// ReservedTags lists the reserved tag names in display order.
var ReservedTags = []string{TagAll, TagFree, TagPaid}

// IsReservedTag reports whether name is one of the reserved tag names.
func IsReservedTag(name string) bool {
	return name == TagAll || name == TagFree || name == TagPaid
}

// Product types.
const (
	ProductTypeFree = "free"
	ProductTypePaid = "paid"
)

// Product is a catalog item. The Category field is a free-text reference to a
// Category's Name (not its ID); renaming a category therefore has to be
// cascaded to every product that references the old name.
type Product struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Category     string    `json:"category"`
	Type         string    `json:"type"` // "free" or "paid"
	Price        string    `json:"price"`
	Image        string    `json:"image"`
	Excerpt      string    `json:"excerpt"`
	Content      string    `json:"content"` // sanitized HTML
	Tags         []string  `json:"tags"`
	WhatsappText string    `json:"whatsappText"`
	DownloadURL  string    `json:"downloadUrl"`
	Author       string    `json:"author"`
	Date         string    `json:"date"`
	CreatedAt    time.Time `json:"created_at"` // stable sort key for pagination
}

// Category is an admin-managed product grouping. Parent, when non-nil, holds
// the Name of another category; nesting is limited to a single level.
type Category struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Parent *string `json:"parent,omitempty"`
}

// Trash entry kinds.
const (
	TrashKindProduct  = "product"
	TrashKindCategory = "category"
)

// TrashEntry is a soft-deleted product or category. It keeps the id the record
// had in its origin collection; an id must never be present in trash and in
// its origin collection at the same time.
type TrashEntry struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"` // "product" or "category"
	Label     string    `json:"label"`
	DeletedAt time.Time `json:"deleted_at"`
	Product   *Product  `json:"product,omitempty"`
	Category  *Category `json:"category,omitempty"`
}

// Settings holds the storefront configuration that lives outside the remote
// store. There is no remote counterpart; it is local to one deployment.
type Settings struct {
	Logo           string `json:"logo"`
	WhatsappNumber string `json:"whatsappNumber"`
	WhatsappGroup  string `json:"whatsappGroup"`
}

// CategoryButton is the per-category checkout button configuration shown by
// the presentation layer. Keyed by category name or reserved tag.
type CategoryButton struct {
	Text    string `json:"text"`
	Price   string `json:"price"`
	Message string `json:"message"`
}
