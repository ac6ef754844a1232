package sqlstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/R3E-Network/souschef/internal/app/domain/note"
	"github.com/R3E-Network/souschef/internal/app/domain/product"
	"github.com/R3E-Network/souschef/internal/app/domain/shopping"
	"github.com/R3E-Network/souschef/internal/app/storage"
	"github.com/R3E-Network/souschef/internal/app/watch"
)

// Notes -----------------------------------------------------------------------

var noteColumns = []string{"id", "owner_id", "title", "body", "pinned", "created_at", "updated_at"}

type noteRow struct {
	ID        string    `db:"id"`
	OwnerID   string    `db:"owner_id"`
	Title     string    `db:"title"`
	Body      string    `db:"body"`
	Pinned    bool      `db:"pinned"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r noteRow) domain() note.Note {
	return note.Note{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Title:     r.Title,
		Body:      r.Body,
		Pinned:    r.Pinned,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func toNoteRow(n note.Note) noteRow {
	return noteRow{ID: n.ID, OwnerID: n.OwnerID, Title: n.Title, Body: n.Body, Pinned: n.Pinned, CreatedAt: n.CreatedAt, UpdatedAt: n.UpdatedAt}
}

const selectNote = "SELECT id, owner_id, title, body, pinned, created_at, updated_at FROM notes"

func (s *Store) CreateNote(ctx context.Context, n note.Note) (note.Note, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := s.now()
	n.CreatedAt = now
	n.UpdatedAt = now

	if err := s.insert(ctx, "notes", noteColumns, toNoteRow(n)); err != nil {
		return note.Note{}, err
	}
	s.notify(n.OwnerID, storage.CollectionNotes, n.ID, watch.OpCreate)
	return n, nil
}

func (s *Store) UpdateNote(ctx context.Context, n note.Note) (note.Note, error) {
	existing, err := s.GetNote(ctx, n.ID)
	if err != nil {
		return note.Note{}, err
	}
	n.CreatedAt = existing.CreatedAt
	n.UpdatedAt = s.now()

	ok, err := s.update(ctx, "notes", noteColumns, toNoteRow(n))
	if err != nil {
		return note.Note{}, err
	}
	if !ok {
		return note.Note{}, storage.NotFound("note", n.ID)
	}
	s.notify(n.OwnerID, storage.CollectionNotes, n.ID, watch.OpUpdate)
	return n, nil
}

func (s *Store) GetNote(ctx context.Context, id string) (note.Note, error) {
	var row noteRow
	if err := s.get(ctx, &row, "note", id, selectNote+" WHERE id = ?", id); err != nil {
		return note.Note{}, err
	}
	return row.domain(), nil
}

func (s *Store) ListNotes(ctx context.Context, ownerID string) ([]note.Note, error) {
	var rows []noteRow
	if err := s.selectRows(ctx, &rows, selectNote+" WHERE owner_id = ? ORDER BY created_at, id", ownerID); err != nil {
		return nil, err
	}
	out := make([]note.Note, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.domain())
	}
	return out, nil
}

func (s *Store) DeleteNote(ctx context.Context, id string) error {
	owner, err := s.ownerOf(ctx, "notes", id)
	if err != nil {
		return s.missing(err, "note", id)
	}
	if _, err := s.remove(ctx, "notes", id); err != nil {
		return err
	}
	s.notify(owner, storage.CollectionNotes, id, watch.OpDelete)
	return nil
}

// Products --------------------------------------------------------------------

var productColumns = []string{"id", "owner_id", "name", "store", "price", "currency", "created_at", "updated_at"}

type productRow struct {
	ID        string          `db:"id"`
	OwnerID   string          `db:"owner_id"`
	Name      string          `db:"name"`
	Store     string          `db:"store"`
	Price     decimal.Decimal `db:"price"`
	Currency  string          `db:"currency"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r productRow) domain() product.Product {
	return product.Product{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Name:      r.Name,
		Store:     r.Store,
		Price:     r.Price,
		Currency:  r.Currency,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func toProductRow(p product.Product) productRow {
	return productRow{ID: p.ID, OwnerID: p.OwnerID, Name: p.Name, Store: p.Store, Price: p.Price, Currency: p.Currency, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt}
}

const selectProduct = "SELECT id, owner_id, name, store, price, currency, created_at, updated_at FROM products"

func (s *Store) CreateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.insert(ctx, "products", productColumns, toProductRow(p)); err != nil {
		return product.Product{}, err
	}
	s.notify(p.OwnerID, storage.CollectionProducts, p.ID, watch.OpCreate)
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	existing, err := s.GetProduct(ctx, p.ID)
	if err != nil {
		return product.Product{}, err
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now()

	ok, err := s.update(ctx, "products", productColumns, toProductRow(p))
	if err != nil {
		return product.Product{}, err
	}
	if !ok {
		return product.Product{}, storage.NotFound("product", p.ID)
	}
	s.notify(p.OwnerID, storage.CollectionProducts, p.ID, watch.OpUpdate)
	return p, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (product.Product, error) {
	var row productRow
	if err := s.get(ctx, &row, "product", id, selectProduct+" WHERE id = ?", id); err != nil {
		return product.Product{}, err
	}
	return row.domain(), nil
}

func (s *Store) ListProducts(ctx context.Context, ownerID string) ([]product.Product, error) {
	var rows []productRow
	if err := s.selectRows(ctx, &rows, selectProduct+" WHERE owner_id = ? ORDER BY created_at, id", ownerID); err != nil {
		return nil, err
	}
	out := make([]product.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.domain())
	}
	return out, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	owner, err := s.ownerOf(ctx, "products", id)
	if err != nil {
		return s.missing(err, "product", id)
	}
	if _, err := s.remove(ctx, "products", id); err != nil {
		return err
	}
	s.notify(owner, storage.CollectionProducts, id, watch.OpDelete)
	return nil
}

// Shopping items --------------------------------------------------------------

var shoppingColumns = []string{"id", "owner_id", "name", "quantity", "unit", "checked", "source_recipe_id", "created_at", "updated_at"}

type shoppingRow struct {
	ID             string          `db:"id"`
	OwnerID        string          `db:"owner_id"`
	Name           string          `db:"name"`
	Quantity       decimal.Decimal `db:"quantity"`
	Unit           string          `db:"unit"`
	Checked        bool            `db:"checked"`
	SourceRecipeID string          `db:"source_recipe_id"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func (r shoppingRow) domain() shopping.Item {
	return shopping.Item{
		ID:             r.ID,
		OwnerID:        r.OwnerID,
		Name:           r.Name,
		Quantity:       r.Quantity,
		Unit:           r.Unit,
		Checked:        r.Checked,
		SourceRecipeID: r.SourceRecipeID,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func toShoppingRow(i shopping.Item) shoppingRow {
	return shoppingRow{
		ID:             i.ID,
		OwnerID:        i.OwnerID,
		Name:           i.Name,
		Quantity:       i.Quantity,
		Unit:           i.Unit,
		Checked:        i.Checked,
		SourceRecipeID: i.SourceRecipeID,
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
}

const selectShopping = "SELECT id, owner_id, name, quantity, unit, checked, source_recipe_id, created_at, updated_at FROM shopping_items"

func (s *Store) CreateShoppingItem(ctx context.Context, item shopping.Item) (shopping.Item, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := s.now()
	item.CreatedAt = now
	item.UpdatedAt = now

	if err := s.insert(ctx, "shopping_items", shoppingColumns, toShoppingRow(item)); err != nil {
		return shopping.Item{}, err
	}
	s.notify(item.OwnerID, storage.CollectionShopping, item.ID, watch.OpCreate)
	return item, nil
}

func (s *Store) UpdateShoppingItem(ctx context.Context, item shopping.Item) (shopping.Item, error) {
	existing, err := s.GetShoppingItem(ctx, item.ID)
	if err != nil {
		return shopping.Item{}, err
	}
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = s.now()

	ok, err := s.update(ctx, "shopping_items", shoppingColumns, toShoppingRow(item))
	if err != nil {
		return shopping.Item{}, err
	}
	if !ok {
		return shopping.Item{}, storage.NotFound("shopping item", item.ID)
	}
	s.notify(item.OwnerID, storage.CollectionShopping, item.ID, watch.OpUpdate)
	return item, nil
}

func (s *Store) GetShoppingItem(ctx context.Context, id string) (shopping.Item, error) {
	var row shoppingRow
	if err := s.get(ctx, &row, "shopping item", id, selectShopping+" WHERE id = ?", id); err != nil {
		return shopping.Item{}, err
	}
	return row.domain(), nil
}

func (s *Store) ListShoppingItems(ctx context.Context, ownerID string) ([]shopping.Item, error) {
	var rows []shoppingRow
	if err := s.selectRows(ctx, &rows, selectShopping+" WHERE owner_id = ? ORDER BY created_at, id", ownerID); err != nil {
		return nil, err
	}
	out := make([]shopping.Item, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.domain())
	}
	return out, nil
}

func (s *Store) DeleteShoppingItem(ctx context.Context, id string) error {
	owner, err := s.ownerOf(ctx, "shopping_items", id)
	if err != nil {
		return s.missing(err, "shopping item", id)
	}
	if _, err := s.remove(ctx, "shopping_items", id); err != nil {
		return err
	}
	s.notify(owner, storage.CollectionShopping, id, watch.OpDelete)
	return nil
}
