package store

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-catalog-service/internal/domain"
)

// newMockStore is a helper to create a PostgresStore with a sqlmock database.
func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "failed to open sqlmock database")
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

var productColumnList = []string{
	"id", "title", "category", "type", "price", "image", "excerpt", "content",
	"tags", "whatsapp_text", "download_url", "author", "date", "created_at",
}

func addProductRow(rows *sqlmock.Rows, id, title, category, productType string, createdAt time.Time) {
	rows.AddRow(id, title, category, productType, "", "", "", "", "{}", "", "", "", "", createdAt)
}

func TestListProducts_FirstPageWithMore(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	// pageSize+1 rows come back; the extra row becomes the HasMore signal.
	rows := sqlmock.NewRows(productColumnList)
	addProductRow(rows, "id-3", "C", "Tools", "paid", now)
	addProductRow(rows, "id-2", "B", "Tools", "paid", now.Add(-time.Minute))
	addProductRow(rows, "id-1", "A", "Tools", "paid", now.Add(-2*time.Minute))

	expectedSQL := regexp.QuoteMeta("SELECT " + productColumns + " FROM products ORDER BY created_at DESC, id DESC LIMIT $1")
	mock.ExpectQuery(expectedSQL).WithArgs(3).WillReturnRows(rows)

	page, err := s.ListProducts(context.Background(), ProductFilter{}, "", 2)

	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "id-3", page.Items[0].ID)
	assert.Equal(t, "id-2", page.Items[1].ID)
	assert.True(t, page.HasMore)

	// The cursor points at the last kept row, not the peeked one.
	pos, err := decodeCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, "id-2", pos.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListProducts_LastPageHasNoCursor(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows(productColumnList)
	addProductRow(rows, "id-1", "A", "Tools", "paid", time.Now().UTC())

	expectedSQL := regexp.QuoteMeta("SELECT " + productColumns + " FROM products ORDER BY created_at DESC, id DESC LIMIT $1")
	mock.ExpectQuery(expectedSQL).WithArgs(3).WillReturnRows(rows)

	page, err := s.ListProducts(context.Background(), ProductFilter{}, "", 2)

	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.NextCursor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListProducts_TypeFilter(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows(productColumnList)
	addProductRow(rows, "id-1", "A", "Tools", "free", time.Now().UTC())

	expectedSQL := regexp.QuoteMeta("SELECT " + productColumns + " FROM products WHERE type = $1 ORDER BY created_at DESC, id DESC LIMIT $2")
	mock.ExpectQuery(expectedSQL).WithArgs("free", 4).WillReturnRows(rows)

	page, err := s.ListProducts(context.Background(), ProductFilter{Type: "free"}, "", 3)

	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListProducts_CategoryAndCursorFilter(t *testing.T) {
	s, mock := newMockStore(t)
	pivot := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cursor := encodeCursor(pageCursor{CreatedAt: pivot, ID: "id-5"})

	rows := sqlmock.NewRows(productColumnList)
	addProductRow(rows, "id-4", "D", "Tools", "paid", pivot.Add(-time.Minute))

	expectedSQL := regexp.QuoteMeta("SELECT " + productColumns + " FROM products WHERE category = ANY($1) AND (created_at, id) < ($2, $3) ORDER BY created_at DESC, id DESC LIMIT $4")
	mock.ExpectQuery(expectedSQL).
		WithArgs(pq.Array([]string{"Tools", "Mods"}), pivot, "id-5", 4).
		WillReturnRows(rows)

	page, err := s.ListProducts(context.Background(), ProductFilter{Categories: []string{"Tools", "Mods"}}, cursor, 3)

	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListProducts_MalformedCursor(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.ListProducts(context.Background(), ProductFilter{}, "not-a-cursor", 3)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed cursor")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProduct_Success(t *testing.T) {
	s, mock := newMockStore(t)

	expectedSQL := regexp.QuoteMeta("INSERT INTO products")
	mock.ExpectExec(expectedSQL).
		WithArgs(
			sqlmock.AnyArg(), "VPN 1 Year", "Tools", "paid", "Rs. 500", "", "", "",
			pq.Array([]string{"vpn"}), "", "", "", "", sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := s.CreateProduct(context.Background(), &domain.Product{
		Title: "VPN 1 Year", Category: "Tools", Type: "paid", Price: "Rs. 500", Tags: []string{"vpn"},
	})

	require.NoError(t, err)
	assert.NotEmpty(t, created.ID, "store assigns the id")
	assert.False(t, created.CreatedAt.IsZero(), "store assigns the creation time")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProduct_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	expectedSQL := regexp.QuoteMeta("UPDATE products")
	mock.ExpectExec(expectedSQL).
		WithArgs("T", "C", "paid", "", "", "", "", pq.Array([]string{}), "", "", "", "", "missing-id").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateProduct(context.Background(), &domain.Product{ID: "missing-id", Title: "T", Category: "C", Type: "paid"})

	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCategory_DuplicateName(t *testing.T) {
	s, mock := newMockStore(t)

	expectedSQL := regexp.QuoteMeta("INSERT INTO categories (id, name, parent) VALUES ($1, $2, $3)")
	mock.ExpectExec(expectedSQL).
		WithArgs(sqlmock.AnyArg(), "Tools", nil).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := s.CreateCategory(context.Background(), "Tools", nil)

	assert.ErrorIs(t, err, ErrCategoryNameExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCategory_DuplicateName(t *testing.T) {
	s, mock := newMockStore(t)

	expectedSQL := regexp.QuoteMeta("UPDATE categories SET name = $1 WHERE id = $2")
	mock.ExpectExec(expectedSQL).
		WithArgs("Tools", "cat-1").
		WillReturnError(&pq.Error{Code: "23505"})

	err := s.UpdateCategory(context.Background(), "cat-1", "Tools")

	assert.ErrorIs(t, err, ErrCategoryNameExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCategory_TransactionalMove(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, parent FROM categories WHERE id = $1")).
		WithArgs("cat-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "parent"}).AddRow("cat-1", "Tools", nil))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO trash (id, kind, label, payload, deleted_at) VALUES ($1, $2, $3, $4, $5)")).
		WithArgs("cat-1", domain.TrashKindCategory, "Tools (Category)", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM categories WHERE id = $1")).
		WithArgs("cat-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	captured, err := s.DeleteCategory(context.Background(), "cat-1")

	require.NoError(t, err)
	assert.Equal(t, "Tools", captured.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCategory_NotFoundRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, parent FROM categories WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "parent"}))
	mock.ExpectRollback()

	_, err := s.DeleteCategory(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrCategoryNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveProductToTrash_TransactionalMove(t *testing.T) {
	s, mock := newMockStore(t)
	product := &domain.Product{ID: "id-1", Title: "VPN 1 Year", Category: "Tools", Type: "paid"}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO trash (id, kind, label, payload, deleted_at) VALUES ($1, $2, $3, $4, $5)")).
		WithArgs("id-1", domain.TrashKindProduct, "VPN 1 Year", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM products WHERE id = $1")).
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entry, err := s.MoveProductToTrash(context.Background(), product)

	require.NoError(t, err)
	assert.Equal(t, "id-1", entry.ID)
	assert.Equal(t, domain.TrashKindProduct, entry.Kind)
	assert.Equal(t, "VPN 1 Year", entry.Label)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveProductToTrash_MissingProductRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	product := &domain.Product{ID: "missing", Title: "Gone"}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO trash")).
		WithArgs("missing", domain.TrashKindProduct, "Gone", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM products WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := s.MoveProductToTrash(context.Background(), product)

	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRestore_ProductGoesBackToOrigin(t *testing.T) {
	s, mock := newMockStore(t)
	deletedAt := time.Now().UTC()
	product := domain.Product{ID: "id-1", Title: "VPN 1 Year", Category: "Tools", Type: "paid", CreatedAt: deletedAt.Add(-time.Hour)}
	payload, err := json.Marshal(product)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, kind, label, payload, deleted_at FROM trash WHERE id = $1")).
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "label", "payload", "deleted_at"}).
			AddRow("id-1", domain.TrashKindProduct, "VPN 1 Year", payload, deletedAt))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).
		WithArgs(
			"id-1", "VPN 1 Year", "Tools", "paid", "", "", "", "",
			pq.Array([]string{}), "", "", "", "", product.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM trash WHERE id = $1")).
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entry, err := s.Restore(context.Background(), "id-1")

	require.NoError(t, err)
	require.NotNil(t, entry.Product)
	assert.Equal(t, "VPN 1 Year", entry.Product.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRestore_MissingEntry(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, kind, label, payload, deleted_at FROM trash WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "label", "payload", "deleted_at"}))
	mock.ExpectRollback()

	_, err := s.Restore(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrTrashEntryNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermanentlyDelete_IsIdempotent(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM trash WHERE id = $1")).
		WithArgs("already-gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.PermanentlyDelete(context.Background(), "already-gone")

	assert.NoError(t, err, "deleting an absent trash entry is not an error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmptyTrash_PropagatesError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM trash")).
		WillReturnError(errors.New("connection reset"))

	err := s.EmptyTrash(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "EmptyTrash")
	assert.NoError(t, mock.ExpectationsWereMet())
}
