package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"storefront-catalog-service/internal/catalog"
	"storefront-catalog-service/internal/domain"
	"storefront-catalog-service/internal/settings"
	"storefront-catalog-service/internal/store"
)

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	catalog  *catalog.Catalog
	settings *settings.Store
	validate *validator.Validate
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(c *catalog.Catalog, s *settings.Store) *HTTPHandler {
	return &HTTPHandler{
		catalog:  c,
		settings: s,
		validate: validator.New(),
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error     string   `json:"error"`
	FailedIDs []string `json:"failed_ids,omitempty"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Printf("ERROR: Failed to encode JSON response: %v", err)
		}
	}
}

// respondWithCatalogError maps synchronizer errors onto HTTP statuses. A
// partial cascade failure is not an ordinary 5xx: some products migrated and
// some did not, so the response names the ids that were left behind.
func respondWithCatalogError(w http.ResponseWriter, err error) {
	var cascadeErr *catalog.CascadeError
	switch {
	case errors.As(err, &cascadeErr):
		respondWithJSON(w, http.StatusMultiStatus, ErrorResponse{
			Error:     cascadeErr.Error(),
			FailedIDs: cascadeErr.FailedIDs(),
		})
	case errors.Is(err, store.ErrProductNotFound):
		respondWithError(w, http.StatusNotFound, store.ErrProductNotFound.Error())
	case errors.Is(err, store.ErrCategoryNotFound):
		respondWithError(w, http.StatusNotFound, store.ErrCategoryNotFound.Error())
	case errors.Is(err, store.ErrTrashEntryNotFound):
		respondWithError(w, http.StatusNotFound, store.ErrTrashEntryNotFound.Error())
	case errors.Is(err, store.ErrCategoryNameExists), errors.Is(err, catalog.ErrDuplicateCategory):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, catalog.ErrInvalidParent):
		respondWithError(w, http.StatusBadRequest, catalog.ErrInvalidParent.Error())
	default:
		log.Printf("ERROR: catalog operation failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Operation failed")
	}
}

// --- Product handlers ---

// ProductInput defines the expected input for creating or updating a product.
type ProductInput struct {
	Title        string   `json:"title" validate:"required,max=255"`
	Category     string   `json:"category" validate:"required,max=255"`
	Type         string   `json:"type" validate:"required,oneof=free paid"`
	Price        string   `json:"price" validate:"max=100"`
	Image        string   `json:"image" validate:"max=2048"`
	Excerpt      string   `json:"excerpt"`
	Content      string   `json:"content"`
	Tags         []string `json:"tags"`
	WhatsappText string   `json:"whatsappText"`
	DownloadURL  string   `json:"downloadUrl" validate:"omitempty,url,max=2048"`
	Author       string   `json:"author" validate:"max=255"`
	Date         string   `json:"date" validate:"max=64"`
}

func (in *ProductInput) toDomain() domain.Product {
	return domain.Product{
		Title:        in.Title,
		Category:     in.Category,
		Type:         in.Type,
		Price:        in.Price,
		Image:        in.Image,
		Excerpt:      in.Excerpt,
		Content:      in.Content,
		Tags:         in.Tags,
		WhatsappText: in.WhatsappText,
		DownloadURL:  in.DownloadURL,
		Author:       in.Author,
		Date:         in.Date,
	}
}

// ListingResponse carries the loaded product window plus pagination state.
type ListingResponse struct {
	Data         []domain.Product `json:"data"`
	ActiveFilter string           `json:"active_filter"`
	State        string           `json:"state"`
	HasMore      bool             `json:"has_more"`
}

func (h *HTTPHandler) listingResponse() ListingResponse {
	return ListingResponse{
		Data:         h.catalog.Products(),
		ActiveFilter: h.catalog.ActiveFilter(),
		State:        h.catalog.PageState().String(),
		HasMore:      h.catalog.HasMore(),
	}
}

func (h *HTTPHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	if h.catalog.PageState() == catalog.PageIdle {
		if err := h.catalog.LoadFirstPage(r.Context()); err != nil {
			respondWithCatalogError(w, err)
			return
		}
	}
	respondWithJSON(w, http.StatusOK, h.listingResponse())
}

// FilterInput selects the active category filter.
type FilterInput struct {
	Name string `json:"name" validate:"required,max=255"`
}

func (h *HTTPHandler) SetFilter(w http.ResponseWriter, r *http.Request) {
	var input FilterInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()
	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}
	if err := h.catalog.SetFilter(r.Context(), input.Name); err != nil {
		respondWithCatalogError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, h.listingResponse())
}

func (h *HTTPHandler) LoadMore(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.LoadMore(r.Context()); err != nil {
		respondWithCatalogError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, h.listingResponse())
}

func (h *HTTPHandler) RetryListing(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Retry(r.Context()); err != nil {
		respondWithCatalogError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, h.listingResponse())
}

// ListAllProducts serves the admin view and search suggestions: the full
// collection, optionally narrowed by a case-insensitive substring match on
// title and tags.
func (h *HTTPHandler) ListAllProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.AllProducts(r.Context())
	if err != nil {
		respondWithCatalogError(w, err)
		return
	}
	if q := strings.ToLower(r.URL.Query().Get("q")); q != "" {
		matched := make([]domain.Product, 0, len(products))
		for _, p := range products {
			if matchesQuery(p, q) {
				matched = append(matched, p)
			}
		}
		products = matched
	}
	if products == nil {
		products = []domain.Product{}
	}
	respondWithJSON(w, http.StatusOK, products)
}

func matchesQuery(p domain.Product, q string) bool {
	if strings.Contains(strings.ToLower(p.Title), q) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

func (h *HTTPHandler) GetProductByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productId")
	product, err := h.catalog.FindProduct(r.Context(), id)
	if err != nil {
		respondWithCatalogError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var input ProductInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()
	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	created, err := h.catalog.AddProduct(r.Context(), input.toDomain())
	if err != nil {
		respondWithCatalogError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productId")

	var input ProductInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()
	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	product := input.toDomain()
	product.ID = id
	if err := h.catalog.UpdateProduct(r.Context(), product); err != nil {
		respondWithCatalogError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productId")
	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		respondWithCatalogError(w, err)
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

// ReorderInput carries the new display order as a list of product ids.
type ReorderInput struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

// ReorderProducts updates the in-memory order only. The order is not
// persisted remotely and is lost on restart.
func (h *HTTPHandler) ReorderProducts(w http.ResponseWriter, r *http.Request) {
	var input ReorderInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()
	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}
	h.catalog.ReorderProducts(input.IDs)
	respondWithJSON(w, http.StatusOK, h.listingResponse())
}

// --- Category handlers ---

// CategoriesResponse lists the merged sidebar names plus the custom records.
type CategoriesResponse struct {
	Names      []string          `json:"names"`
	Categories []domain.Category `json:"categories"`
}

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, CategoriesResponse{
		Names:      h.catalog.CategoryNames(),
		Categories: h.catalog.Categories(),
	})
}

// CategoryCreateInput defines the expected input for creating a category.
type CategoryCreateInput struct {
	Name   string  `json:"name" validate:"required,max=255"`
	Parent *string `json:"parent" validate:"omitempty,max=255"`
}

func (h *HTTPHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var input CategoryCreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()
	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	created, err := h.catalog.AddCategory(r.Context(), input.Name, input.Parent)
	if err != nil {
		respondWithCatalogError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// CategoryRenameInput defines the expected input for renaming a category.
type CategoryRenameInput struct {
	OldName string `json:"old_name" validate:"required,max=255"`
	NewName string `json:"new_name" validate:"required,max=255"`
}

func (h *HTTPHandler) RenameCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "categoryId")

	var input CategoryRenameInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()
	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	if err := h.catalog.RenameCategory(r.Context(), id, input.OldName, input.NewName); err != nil {
		respondWithCatalogError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, CategoriesResponse{
		Names:      h.catalog.CategoryNames(),
		Categories: h.catalog.Categories(),
	})
}

func (h *HTTPHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "categoryId")
	name := r.URL.Query().Get("name")
	if name == "" {
		respondWithError(w, http.StatusBadRequest, "Missing required query parameter: name")
		return
	}

	if err := h.catalog.DeleteCategory(r.Context(), id, name); err != nil {
		respondWithCatalogError(w, err)
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

// --- Trash handlers ---

func (h *HTTPHandler) ListTrash(w http.ResponseWriter, r *http.Request) {
	trash := h.catalog.Trash()
	if trash == nil {
		trash = []domain.TrashEntry{}
	}
	respondWithJSON(w, http.StatusOK, trash)
}

func (h *HTTPHandler) RestoreTrashEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "trashId")

	// Restore dispatches on the entry's kind; an id that is not in the local
	// trash view is a tolerated no-op for both kinds.
	kind := domain.TrashKindProduct
	for _, entry := range h.catalog.Trash() {
		if entry.ID == id {
			kind = entry.Kind
			break
		}
	}

	var err error
	if kind == domain.TrashKindCategory {
		err = h.catalog.RestoreCategory(r.Context(), id)
	} else {
		err = h.catalog.RestoreProduct(r.Context(), id)
	}
	if err != nil {
		respondWithCatalogError(w, err)
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

func (h *HTTPHandler) PermanentlyDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "trashId")
	if err := h.catalog.PermanentlyDelete(r.Context(), id); err != nil {
		respondWithCatalogError(w, err)
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

func (h *HTTPHandler) EmptyTrash(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.EmptyTrash(r.Context()); err != nil {
		respondWithCatalogError(w, err)
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

// --- Settings handlers ---

func (h *HTTPHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.settings.Settings())
}

// SettingsInput defines the expected input for saving storefront settings.
type SettingsInput struct {
	Logo           string `json:"logo" validate:"max=2048"`
	WhatsappNumber string `json:"whatsappNumber" validate:"required,max=32"`
	WhatsappGroup  string `json:"whatsappGroup" validate:"omitempty,url,max=2048"`
}

func (h *HTTPHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var input SettingsInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()
	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	saved := domain.Settings{
		Logo:           input.Logo,
		WhatsappNumber: input.WhatsappNumber,
		WhatsappGroup:  input.WhatsappGroup,
	}
	if err := h.settings.SaveSettings(saved); err != nil {
		log.Printf("ERROR: SaveSettings failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}
	respondWithJSON(w, http.StatusOK, saved)
}

func (h *HTTPHandler) GetCategoryButtons(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.settings.CategoryButtons())
}

func (h *HTTPHandler) SaveCategoryButtons(w http.ResponseWriter, r *http.Request) {
	var buttons map[string]domain.CategoryButton
	if err := json.NewDecoder(r.Body).Decode(&buttons); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.settings.SaveCategoryButtons(buttons); err != nil {
		log.Printf("ERROR: SaveCategoryButtons failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to save buttons")
		return
	}
	respondWithJSON(w, http.StatusOK, buttons)
}

func (h *HTTPHandler) ResetSettings(w http.ResponseWriter, r *http.Request) {
	if err := h.settings.ResetDefaults(); err != nil {
		log.Printf("ERROR: ResetSettings failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to reset settings")
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

// --- Checkout handlers ---

// CheckoutResponse carries the data a client needs to open a WhatsApp
// conversation: the configured number, the message, and the assembled link.
type CheckoutResponse struct {
	Number  string `json:"number"`
	Message string `json:"message"`
	Link    string `json:"link"`
}

func buildWhatsAppLink(number, message string) string {
	return "https://wa.me/" + number + "?text=" + url.QueryEscape(message)
}

func (h *HTTPHandler) ProductCheckout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productId")
	product, err := h.catalog.FindProduct(r.Context(), id)
	if err != nil {
		respondWithCatalogError(w, err)
		return
	}

	message := product.WhatsappText
	if message == "" {
		message = "I want to buy " + product.Title
	}
	number := h.settings.Settings().WhatsappNumber
	respondWithJSON(w, http.StatusOK, CheckoutResponse{
		Number:  number,
		Message: message,
		Link:    buildWhatsAppLink(number, message),
	})
}

// CategoryCheckout builds the bundle-deal link for a category or reserved
// tag, using its configured button message when one exists.
func (h *HTTPHandler) CategoryCheckout(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("category")
	if name == "" {
		respondWithError(w, http.StatusBadRequest, "Missing required query parameter: category")
		return
	}

	message := "I want to see all " + name + " products"
	if btn, ok := h.settings.CategoryButtons()[name]; ok && btn.Message != "" {
		message = btn.Message
	}
	number := h.settings.Settings().WhatsappNumber
	respondWithJSON(w, http.StatusOK, CheckoutResponse{
		Number:  number,
		Message: message,
		Link:    buildWhatsAppLink(number, message),
	})
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", h.GetListing)
		r.Post("/", h.CreateProduct)
		r.Get("/all", h.ListAllProducts)
		r.Post("/filter", h.SetFilter)
		r.Post("/more", h.LoadMore)
		r.Post("/retry", h.RetryListing)
		r.Post("/reorder", h.ReorderProducts)
		r.Route("/{productId}", func(r chi.Router) {
			r.Get("/", h.GetProductByID)
			r.Put("/", h.UpdateProduct)
			r.Delete("/", h.DeleteProduct)
			r.Get("/checkout", h.ProductCheckout)
		})
	})

	r.Route("/api/v1/categories", func(r chi.Router) {
		r.Get("/", h.ListCategories)
		r.Post("/", h.CreateCategory)
		r.Route("/{categoryId}", func(r chi.Router) {
			r.Put("/", h.RenameCategory)
			r.Delete("/", h.DeleteCategory)
		})
	})

	r.Route("/api/v1/trash", func(r chi.Router) {
		r.Get("/", h.ListTrash)
		r.Delete("/", h.EmptyTrash)
		r.Route("/{trashId}", func(r chi.Router) {
			r.Post("/restore", h.RestoreTrashEntry)
			r.Delete("/", h.PermanentlyDelete)
		})
	})

	r.Route("/api/v1/settings", func(r chi.Router) {
		r.Get("/", h.GetSettings)
		r.Put("/", h.SaveSettings)
		r.Delete("/", h.ResetSettings)
		r.Get("/buttons", h.GetCategoryButtons)
		r.Put("/buttons", h.SaveCategoryButtons)
	})

	r.Get("/api/v1/checkout", h.CategoryCheckout)
}
