package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"storefront-catalog-service/internal/domain"
)

// Predefined errors for store operations
var (
	ErrProductNotFound    = errors.New("store: product not found")
	ErrCategoryNotFound   = errors.New("store: category not found")
	ErrCategoryNameExists = errors.New("store: category name already exists")
	ErrTrashEntryNotFound = errors.New("store: trash entry not found")
)

// PostgresStore implements ProductStorer, CategoryStorer and TrashStorer
// against PostgreSQL. The three collections of the remote store boundary map
// onto the products, categories and trash tables; trash keeps the full origin
// record as a JSONB payload so a restore can rebuild it.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the collection tables if they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id            TEXT PRIMARY KEY,
		title         TEXT NOT NULL,
		category      TEXT NOT NULL DEFAULT 'All',
		type          TEXT NOT NULL DEFAULT 'paid',
		price         TEXT NOT NULL DEFAULT '',
		image         TEXT NOT NULL DEFAULT '',
		excerpt       TEXT NOT NULL DEFAULT '',
		content       TEXT NOT NULL DEFAULT '',
		tags          TEXT[] NOT NULL DEFAULT '{}',
		whatsapp_text TEXT NOT NULL DEFAULT '',
		download_url  TEXT NOT NULL DEFAULT '',
		author        TEXT NOT NULL DEFAULT '',
		date          TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS products_created_at_id_idx ON products (created_at DESC, id DESC);
	CREATE TABLE IF NOT EXISTS categories (
		id     TEXT PRIMARY KEY,
		name   TEXT NOT NULL UNIQUE,
		parent TEXT
	);
	CREATE TABLE IF NOT EXISTS trash (
		id         TEXT PRIMARY KEY,
		kind       TEXT NOT NULL,
		label      TEXT NOT NULL DEFAULT '',
		payload    JSONB NOT NULL,
		deleted_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: EnsureSchema failed: %w", err)
	}
	return nil
}

const productColumns = "id, title, category, type, price, image, excerpt, content, tags, whatsapp_text, download_url, author, date, created_at"

func scanProduct(row interface{ Scan(...interface{}) error }) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID, &p.Title, &p.Category, &p.Type, &p.Price, &p.Image, &p.Excerpt,
		&p.Content, pq.Array(&p.Tags), &p.WhatsappText, &p.DownloadURL,
		&p.Author, &p.Date, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// --- ProductStorer Implementation ---

// ListProducts pages through the products collection ordered newest-first.
// The ordering key is (created_at, id); id breaks ties so the cursor stays
// stable across rows created in the same instant.
func (s *PostgresStore) ListProducts(ctx context.Context, filter ProductFilter, cursor string, pageSize int) (*ProductPage, error) {
	if pageSize <= 0 {
		return &ProductPage{Items: []domain.Product{}}, nil
	}

	var queryArgs []interface{}
	var whereClauses []string
	argID := 1

	if filter.Type != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("type = $%d", argID))
		queryArgs = append(queryArgs, filter.Type)
		argID++
	}
	if len(filter.Categories) > 0 {
		whereClauses = append(whereClauses, fmt.Sprintf("category = ANY($%d)", argID))
		queryArgs = append(queryArgs, pq.Array(filter.Categories))
		argID++
	}
	if cursor != "" {
		pos, err := decodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		whereClauses = append(whereClauses, fmt.Sprintf("(created_at, id) < ($%d, $%d)", argID, argID+1))
		queryArgs = append(queryArgs, pos.CreatedAt, pos.ID)
		argID += 2
	}

	whereCondition := ""
	if len(whereClauses) > 0 {
		whereCondition = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Fetch one extra row to learn whether another page exists.
	query := fmt.Sprintf("SELECT %s FROM products%s ORDER BY created_at DESC, id DESC LIMIT $%d",
		productColumns, whereCondition, argID)
	queryArgs = append(queryArgs, pageSize+1)

	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("store: ListProducts failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, pageSize+1)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("store: ListProducts failed to scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListProducts iteration error: %w", err)
	}

	page := &ProductPage{Items: products}
	if len(products) > pageSize {
		page.Items = products[:pageSize]
		last := page.Items[pageSize-1]
		page.NextCursor = encodeCursor(pageCursor{CreatedAt: last.CreatedAt, ID: last.ID})
		page.HasMore = true
	}
	return page, nil
}

func (s *PostgresStore) ListAllProducts(ctx context.Context) ([]domain.Product, error) {
	query := fmt.Sprintf("SELECT %s FROM products ORDER BY created_at DESC, id DESC", productColumns)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: ListAllProducts failed to query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("store: ListAllProducts failed to scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListAllProducts iteration error: %w", err)
	}
	return products, nil
}

func (s *PostgresStore) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	created := *product
	created.ID = uuid.NewString()
	created.CreatedAt = time.Now().UTC()
	if created.Tags == nil {
		created.Tags = []string{}
	}

	query := `
		INSERT INTO products (id, title, category, type, price, image, excerpt, content, tags, whatsapp_text, download_url, author, date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		created.ID, created.Title, created.Category, created.Type, created.Price,
		created.Image, created.Excerpt, created.Content, pq.Array(created.Tags),
		created.WhatsappText, created.DownloadURL, created.Author, created.Date,
		created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("store: CreateProduct failed to insert: %w", err)
	}
	return &created, nil
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET title = $1, category = $2, type = $3, price = $4, image = $5, excerpt = $6,
			content = $7, tags = $8, whatsapp_text = $9, download_url = $10, author = $11, date = $12
		WHERE id = $13
	`
	tags := product.Tags
	if tags == nil {
		tags = []string{}
	}
	result, err := s.db.ExecContext(ctx, query,
		product.Title, product.Category, product.Type, product.Price, product.Image,
		product.Excerpt, product.Content, pq.Array(tags), product.WhatsappText,
		product.DownloadURL, product.Author, product.Date, product.ID,
	)
	if err != nil {
		return fmt.Errorf("store: UpdateProduct failed to execute update: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: UpdateProduct failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// --- CategoryStorer Implementation ---

func (s *PostgresStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, parent FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: ListCategories failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Parent); err != nil {
			return nil, fmt.Errorf("store: ListCategories failed to scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListCategories iteration error: %w", err)
	}
	return categories, nil
}

func (s *PostgresStore) CreateCategory(ctx context.Context, name string, parent *string) (*domain.Category, error) {
	created := domain.Category{
		ID:     uuid.NewString(),
		Name:   name,
		Parent: parent,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, parent) VALUES ($1, $2, $3)`,
		created.ID, created.Name, created.Parent,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // Unique violation
			return nil, ErrCategoryNameExists
		}
		return nil, fmt.Errorf("store: CreateCategory failed to insert: %w", err)
	}
	return &created, nil
}

func (s *PostgresStore) UpdateCategory(ctx context.Context, id, newName string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE categories SET name = $1 WHERE id = $2`, newName, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrCategoryNameExists
		}
		return fmt.Errorf("store: UpdateCategory failed to execute update: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: UpdateCategory failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// DeleteCategory moves the category into trash and returns the removed record.
// The trash write and the origin delete run in one transaction, so the
// exclusivity of an id between trash and its origin holds even on failure.
func (s *PostgresStore) DeleteCategory(ctx context.Context, id string) (*domain.Category, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: DeleteCategory failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var captured domain.Category
	err = tx.QueryRowContext(ctx, `SELECT id, name, parent FROM categories WHERE id = $1`, id).
		Scan(&captured.ID, &captured.Name, &captured.Parent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("store: DeleteCategory failed to read category: %w", err)
	}

	payload, err := json.Marshal(captured)
	if err != nil {
		return nil, fmt.Errorf("store: DeleteCategory failed to encode payload: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO trash (id, kind, label, payload, deleted_at) VALUES ($1, $2, $3, $4, $5)`,
		captured.ID, domain.TrashKindCategory, captured.Name+" (Category)", payload, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("store: DeleteCategory failed to write trash entry: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("store: DeleteCategory failed to delete origin record: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: DeleteCategory failed to commit: %w", err)
	}
	return &captured, nil
}

// --- TrashStorer Implementation ---

func (s *PostgresStore) ListTrash(ctx context.Context) ([]domain.TrashEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, kind, label, payload, deleted_at FROM trash ORDER BY deleted_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: ListTrash failed to query trash: %w", err)
	}
	defer rows.Close()

	var entries []domain.TrashEntry
	for rows.Next() {
		entry, err := scanTrashEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("store: ListTrash failed to scan trash row: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListTrash iteration error: %w", err)
	}
	return entries, nil
}

func scanTrashEntry(row interface{ Scan(...interface{}) error }) (*domain.TrashEntry, error) {
	var entry domain.TrashEntry
	var payload []byte
	if err := row.Scan(&entry.ID, &entry.Kind, &entry.Label, &payload, &entry.DeletedAt); err != nil {
		return nil, err
	}
	switch entry.Kind {
	case domain.TrashKindProduct:
		var p domain.Product
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decode product payload: %w", err)
		}
		entry.Product = &p
	case domain.TrashKindCategory:
		var c domain.Category
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, fmt.Errorf("decode category payload: %w", err)
		}
		entry.Category = &c
	default:
		return nil, fmt.Errorf("unknown trash kind %q", entry.Kind)
	}
	return &entry, nil
}

// MoveProductToTrash writes the product to trash and deletes it from the
// products collection in one transaction.
func (s *PostgresStore) MoveProductToTrash(ctx context.Context, product *domain.Product) (*domain.TrashEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: MoveProductToTrash failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	payload, err := json.Marshal(product)
	if err != nil {
		return nil, fmt.Errorf("store: MoveProductToTrash failed to encode payload: %w", err)
	}
	entry := domain.TrashEntry{
		ID:        product.ID,
		Kind:      domain.TrashKindProduct,
		Label:     product.Title,
		DeletedAt: time.Now().UTC(),
		Product:   product,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO trash (id, kind, label, payload, deleted_at) VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.Kind, entry.Label, payload, entry.DeletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("store: MoveProductToTrash failed to write trash entry: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, product.ID)
	if err != nil {
		return nil, fmt.Errorf("store: MoveProductToTrash failed to delete origin record: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("store: MoveProductToTrash failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrProductNotFound
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: MoveProductToTrash failed to commit: %w", err)
	}
	return &entry, nil
}

// Restore writes a trash entry back to its origin collection and removes it
// from trash, in one transaction.
func (s *PostgresStore) Restore(ctx context.Context, id string) (*domain.TrashEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: Restore failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT id, kind, label, payload, deleted_at FROM trash WHERE id = $1`, id)
	entry, err := scanTrashEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTrashEntryNotFound
		}
		return nil, fmt.Errorf("store: Restore failed to read trash entry: %w", err)
	}

	switch entry.Kind {
	case domain.TrashKindProduct:
		p := entry.Product
		tags := p.Tags
		if tags == nil {
			tags = []string{}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO products (id, title, category, type, price, image, excerpt, content, tags, whatsapp_text, download_url, author, date, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			p.ID, p.Title, p.Category, p.Type, p.Price, p.Image, p.Excerpt, p.Content,
			pq.Array(tags), p.WhatsappText, p.DownloadURL, p.Author, p.Date, p.CreatedAt,
		)
	case domain.TrashKindCategory:
		c := entry.Category
		_, err = tx.ExecContext(ctx,
			`INSERT INTO categories (id, name, parent) VALUES ($1, $2, $3)`,
			c.ID, c.Name, c.Parent,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("store: Restore failed to write origin record: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM trash WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("store: Restore failed to delete trash entry: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: Restore failed to commit: %w", err)
	}
	return entry, nil
}

// PermanentlyDelete removes an entry from trash. Deleting an id that is no
// longer in trash is not an error; the operation is idempotent.
func (s *PostgresStore) PermanentlyDelete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM trash WHERE id = $1`, id); err != nil {
		return fmt.Errorf("store: PermanentlyDelete failed to execute delete: %w", err)
	}
	return nil
}

func (s *PostgresStore) EmptyTrash(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM trash`); err != nil {
		return fmt.Errorf("store: EmptyTrash failed to execute delete: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		log.Println("INFO: Closing database connection pool...")
		if err := s.db.Close(); err != nil {
			log.Printf("ERROR: Failed to close database connection pool: %v", err)
			return err
		}
	}
	return nil
}
