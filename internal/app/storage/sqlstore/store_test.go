package sqlstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/souschef/internal/app/domain/logbook"
	"github.com/R3E-Network/souschef/internal/app/domain/note"
	"github.com/R3E-Network/souschef/internal/app/domain/receipt"
	"github.com/R3E-Network/souschef/internal/app/domain/recipe"
	"github.com/R3E-Network/souschef/internal/app/storage"
	"github.com/R3E-Network/souschef/internal/app/storage/storagetest"
	"github.com/R3E-Network/souschef/internal/app/watch"
)

func openSQLite(t *testing.T, opts ...Option) *Store {
	t.Helper()
	ctx := context.Background()
	cfg := Config{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "data", "souschef.db")}
	require.NoError(t, Migrate(ctx, cfg))

	db, err := Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, opts...)
}

func TestSQLiteContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Stores { return openSQLite(t) })
}

func TestPostgresContract(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	cfg := Config{Driver: DriverPostgres, DSN: dsn}

	storagetest.Run(t, func(t *testing.T) storage.Stores {
		require.NoError(t, Rollback(ctx, cfg))
		require.NoError(t, Migrate(ctx, cfg))
		db, err := Open(ctx, cfg)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		return New(db)
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Driver: "sqlite3", DSN: filepath.Join(t.TempDir(), "m.db")}

	v, _, err := Version(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)

	require.NoError(t, Migrate(ctx, cfg))
	require.NoError(t, Migrate(ctx, cfg))

	v, dirty, err := Version(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)

	require.NoError(t, Rollback(ctx, cfg))
	v, _, err = Version(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"})
	assert.Error(t, err)

	_, err = Open(context.Background(), Config{Driver: DriverPostgres})
	assert.Error(t, err)
}

func TestSQLiteRoundTripsStructuredColumns(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	r, err := s.CreateReceipt(ctx, receipt.Receipt{
		OwnerID:     "alice",
		PurchasedOn: "2024-03-02",
		Total:       decimal.RequireFromString("12.40"),
		Currency:    "EUR",
		Lines: []receipt.Line{
			{Description: "Bread", Amount: decimal.RequireFromString("2.40")},
			{Description: "Cheese", Amount: decimal.RequireFromString("10")},
		},
	})
	require.NoError(t, err)

	got, err := s.GetReceipt(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "Cheese", got.Lines[1].Description)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("12.4")))
	assert.True(t, got.LinesTotal().Equal(got.Total))

	rec, err := s.CreateRecipe(ctx, recipe.Recipe{OwnerID: "alice", Name: "Toast"})
	require.NoError(t, err)
	assert.NotNil(t, rec.Tags)
	assert.NotNil(t, rec.Instructions)
}

func TestSQLiteDuplicateLogDateConflicts(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	_, err := s.CreateLog(ctx, logbook.Log{OwnerID: "alice", Date: "2024-01-01"})
	require.NoError(t, err)
	_, err = s.CreateLog(ctx, logbook.Log{OwnerID: "alice", Date: "2024-01-01"})
	assert.True(t, storage.IsConflict(err), "got %v", err)

	_, err = s.CreateLog(ctx, logbook.Log{OwnerID: "bob", Date: "2024-01-01"})
	assert.NoError(t, err)
}

func TestSQLitePublishesChanges(t *testing.T) {
	var changes []watch.Change
	s := openSQLite(t, WithPublisher(watch.PublisherFunc(func(c watch.Change) { changes = append(changes, c) })))
	ctx := context.Background()

	ing, err := s.CreateIngredient(ctx, recipe.Ingredient{OwnerID: "alice", RecipeID: "r1", Name: "Salt"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteIngredient(ctx, ing.ID))
	assert.True(t, storage.IsNotFound(s.DeleteIngredient(ctx, ing.ID)))

	require.Len(t, changes, 2)
	assert.Equal(t, watch.OpCreate, changes[0].Op)
	assert.Equal(t, watch.OpDelete, changes[1].Op)
	assert.Equal(t, "alice", changes[1].OwnerID)
	assert.Equal(t, storage.CollectionIngredients, changes[1].Collection)
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return New(sqlx.NewDb(raw, "sqlmock")), mock
}

func TestGetPropagatesDriverErrors(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta(selectRecipe + " WHERE id = ?")).WithArgs("r1").WillReturnError(boom)

	_, err := s.GetRecipe(context.Background(), "r1")
	assert.ErrorIs(t, err, boom)
	assert.False(t, storage.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMissingRowIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT owner_id FROM notes WHERE id = ?")).
		WithArgs("n1").
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}))

	err := s.DeleteNote(context.Background(), "n1")
	assert.True(t, storage.IsNotFound(err), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWithNoAffectedRowsIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	now := s.now()
	mock.ExpectQuery(regexp.QuoteMeta(selectNote + " WHERE id = ?")).
		WithArgs("n1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "title", "body", "pinned", "created_at", "updated_at"}).
			AddRow("n1", "alice", "Old", "", false, now, now))
	mock.ExpectExec("UPDATE notes SET").WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := s.UpdateNote(context.Background(), noteFixture())
	assert.True(t, storage.IsNotFound(err), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func noteFixture() note.Note {
	return note.Note{ID: "n1", OwnerID: "alice", Title: "New"}
}
