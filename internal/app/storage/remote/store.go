package remote

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/R3E-Network/souschef/internal/app/domain/account"
	"github.com/R3E-Network/souschef/internal/app/domain/logbook"
	"github.com/R3E-Network/souschef/internal/app/domain/note"
	"github.com/R3E-Network/souschef/internal/app/domain/product"
	"github.com/R3E-Network/souschef/internal/app/domain/receipt"
	"github.com/R3E-Network/souschef/internal/app/domain/recipe"
	"github.com/R3E-Network/souschef/internal/app/domain/shopping"
	"github.com/R3E-Network/souschef/internal/app/storage"
	"github.com/R3E-Network/souschef/internal/app/watch"
	"github.com/R3E-Network/souschef/supabase/client"
)

// Table names of the document collections.
var Tables = map[string]string{
	storage.CollectionAccounts:    "accounts",
	storage.CollectionRecipes:     "recipes",
	storage.CollectionIngredients: "ingredients",
	storage.CollectionLogs:        "logs",
	storage.CollectionNotes:       "notes",
	storage.CollectionProducts:    "products",
	storage.CollectionShopping:    "shopping_items",
	storage.CollectionReceipts:    "receipts",
}

// accountDocument keeps the password hash, which account.Account hides
// from JSON.
type accountDocument struct {
	ID            string          `json:"id"`
	Email         string          `json:"email"`
	EmailKey      string          `json:"email_key"`
	DisplayName   string          `json:"display_name"`
	PasswordHash  string          `json:"password_hash,omitempty"`
	Currency      string          `json:"currency"`
	MonthlyBudget decimal.Decimal `json:"monthly_budget"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

var accountCodec = Codec[account.Account]{
	ID:        func(a account.Account) string { return a.ID },
	Owner:     func(a account.Account) string { return a.ID },
	UpdatedAt: func(a account.Account) time.Time { return a.UpdatedAt },
	Encode: func(a account.Account) ([]byte, error) {
		return json.Marshal(accountDocument{
			ID:            a.ID,
			Email:         a.Email,
			EmailKey:      emailKey(a.Email),
			DisplayName:   a.DisplayName,
			PasswordHash:  a.PasswordHash,
			Currency:      a.Currency,
			MonthlyBudget: a.MonthlyBudget,
			CreatedAt:     a.CreatedAt,
			UpdatedAt:     a.UpdatedAt,
		})
	},
	Decode: func(raw []byte) (account.Account, error) {
		var d accountDocument
		if err := json.Unmarshal(raw, &d); err != nil {
			return account.Account{}, err
		}
		return account.Account{
			ID:            d.ID,
			Email:         d.Email,
			DisplayName:   d.DisplayName,
			PasswordHash:  d.PasswordHash,
			Currency:      d.Currency,
			MonthlyBudget: d.MonthlyBudget,
			CreatedAt:     d.CreatedAt.UTC(),
			UpdatedAt:     d.UpdatedAt.UTC(),
		}, nil
	},
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Store adapts the document collections to storage.Stores so services can
// run against Supabase directly.
type Store struct {
	client    *client.Client
	publisher watch.Publisher
	now       func() time.Time

	Accounts    *Collection[account.Account]
	Recipes     *Collection[recipe.Recipe]
	Ingredients *Collection[recipe.Ingredient]
	Logs        *Collection[logbook.Log]
	Notes       *Collection[note.Note]
	Products    *Collection[product.Product]
	Shopping    *Collection[shopping.Item]
	Receipts    *Collection[receipt.Receipt]
}

var _ storage.Stores = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPublisher attaches a change publisher notified after every write.
func WithPublisher(p watch.Publisher) Option {
	return func(s *Store) {
		if p != nil {
			s.publisher = p
		}
	}
}

// New builds a Store on c.
func New(c *client.Client, opts ...Option) *Store {
	s := &Store{
		client:    c,
		publisher: watch.Nop,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },

		Accounts: NewCollection(c, Tables[storage.CollectionAccounts], storage.CollectionAccounts, accountCodec),
		Recipes: NewCollection(c, Tables[storage.CollectionRecipes], storage.CollectionRecipes, Codec[recipe.Recipe]{
			ID:        func(r recipe.Recipe) string { return r.ID },
			Owner:     func(r recipe.Recipe) string { return r.OwnerID },
			UpdatedAt: func(r recipe.Recipe) time.Time { return r.UpdatedAt },
			Decode:    decodeWith(normalizeRecipe),
		}),
		Ingredients: NewCollection(c, Tables[storage.CollectionIngredients], storage.CollectionIngredients, Codec[recipe.Ingredient]{
			ID:        func(i recipe.Ingredient) string { return i.ID },
			Owner:     func(i recipe.Ingredient) string { return i.OwnerID },
			UpdatedAt: func(i recipe.Ingredient) time.Time { return i.UpdatedAt },
		}),
		Logs: NewCollection(c, Tables[storage.CollectionLogs], storage.CollectionLogs, Codec[logbook.Log]{
			ID:        func(l logbook.Log) string { return l.ID },
			Owner:     func(l logbook.Log) string { return l.OwnerID },
			UpdatedAt: func(l logbook.Log) time.Time { return l.UpdatedAt },
			Decode:    decodeWith(normalizeLog),
		}),
		Notes: NewCollection(c, Tables[storage.CollectionNotes], storage.CollectionNotes, Codec[note.Note]{
			ID:        func(n note.Note) string { return n.ID },
			Owner:     func(n note.Note) string { return n.OwnerID },
			UpdatedAt: func(n note.Note) time.Time { return n.UpdatedAt },
		}),
		Products: NewCollection(c, Tables[storage.CollectionProducts], storage.CollectionProducts, Codec[product.Product]{
			ID:        func(p product.Product) string { return p.ID },
			Owner:     func(p product.Product) string { return p.OwnerID },
			UpdatedAt: func(p product.Product) time.Time { return p.UpdatedAt },
		}),
		Shopping: NewCollection(c, Tables[storage.CollectionShopping], storage.CollectionShopping, Codec[shopping.Item]{
			ID:        func(i shopping.Item) string { return i.ID },
			Owner:     func(i shopping.Item) string { return i.OwnerID },
			UpdatedAt: func(i shopping.Item) time.Time { return i.UpdatedAt },
		}),
		Receipts: NewCollection(c, Tables[storage.CollectionReceipts], storage.CollectionReceipts, Codec[receipt.Receipt]{
			ID:        func(r receipt.Receipt) string { return r.ID },
			Owner:     func(r receipt.Receipt) string { return r.OwnerID },
			UpdatedAt: func(r receipt.Receipt) time.Time { return r.UpdatedAt },
			Decode:    decodeWith(normalizeReceipt),
		}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client returns the underlying Supabase client.
func (s *Store) Client() *client.Client { return s.client }

func decodeWith[T any](normalize func(T) T) func([]byte) (T, error) {
	return func(raw []byte) (T, error) {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return v, err
		}
		return normalize(v), nil
	}
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func normalizeRecipe(r recipe.Recipe) recipe.Recipe {
	r.Instructions = nonNil(r.Instructions)
	r.Tags = nonNil(r.Tags)
	return r
}

func normalizeLog(l logbook.Log) logbook.Log {
	l.RecipeIDs = nonNil(l.RecipeIDs)
	l.ProductIDs = nonNil(l.ProductIDs)
	return l
}

func normalizeReceipt(r receipt.Receipt) receipt.Receipt {
	if r.Lines == nil {
		r.Lines = []receipt.Line{}
	}
	return r
}

func (s *Store) notify(owner, collection, id string, op watch.Op) {
	s.publisher.Publish(watch.Change{OwnerID: owner, Collection: collection, ID: id, Op: op, At: s.now()})
}

func (s *Store) stamp(id *string, created, updated *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	now := s.now()
	*created = now
	*updated = now
}

func byCreated(a, b time.Time, idA, idB string) bool {
	if !a.Equal(b) {
		return a.Before(b)
	}
	return idA < idB
}

// Accounts --------------------------------------------------------------------

func (s *Store) CreateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	if _, found, err := s.Accounts.Find(ctx, DataEq("email_key", emailKey(acct.Email))); err != nil {
		return account.Account{}, err
	} else if found {
		return account.Account{}, storage.Conflict("email %s already registered", acct.Email)
	}
	s.stamp(&acct.ID, &acct.CreatedAt, &acct.UpdatedAt)
	if err := s.Accounts.Insert(ctx, acct); err != nil {
		return account.Account{}, err
	}
	s.notify(acct.ID, storage.CollectionAccounts, acct.ID, watch.OpCreate)
	return acct, nil
}

func (s *Store) UpdateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	existing, err := s.Accounts.Get(ctx, acct.ID)
	if err != nil {
		return account.Account{}, err
	}
	if emailKey(existing.Email) != emailKey(acct.Email) {
		if other, found, err := s.Accounts.Find(ctx, DataEq("email_key", emailKey(acct.Email))); err != nil {
			return account.Account{}, err
		} else if found && other.ID != acct.ID {
			return account.Account{}, storage.Conflict("email %s already registered", acct.Email)
		}
	}
	acct.CreatedAt = existing.CreatedAt
	acct.UpdatedAt = s.now()
	if ok, err := s.Accounts.Replace(ctx, acct); err != nil {
		return account.Account{}, err
	} else if !ok {
		return account.Account{}, storage.NotFound("account", acct.ID)
	}
	s.notify(acct.ID, storage.CollectionAccounts, acct.ID, watch.OpUpdate)
	return acct, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (account.Account, error) {
	return s.Accounts.Get(ctx, id)
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (account.Account, error) {
	acct, found, err := s.Accounts.Find(ctx, DataEq("email_key", emailKey(email)))
	if err != nil {
		return account.Account{}, err
	}
	if !found {
		return account.Account{}, storage.NotFound("account", email)
	}
	return acct, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]account.Account, error) {
	items, err := s.Accounts.List(ctx, "")
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	if _, err := s.Accounts.Delete(ctx, id); err != nil {
		return err
	}
	s.notify(id, storage.CollectionAccounts, id, watch.OpDelete)
	return nil
}

// Recipes ---------------------------------------------------------------------

func (s *Store) CreateRecipe(ctx context.Context, r recipe.Recipe) (recipe.Recipe, error) {
	s.stamp(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	r = normalizeRecipe(r)
	if err := s.Recipes.Insert(ctx, r); err != nil {
		return recipe.Recipe{}, err
	}
	s.notify(r.OwnerID, storage.CollectionRecipes, r.ID, watch.OpCreate)
	return r, nil
}

func (s *Store) UpdateRecipe(ctx context.Context, r recipe.Recipe) (recipe.Recipe, error) {
	existing, err := s.Recipes.Get(ctx, r.ID)
	if err != nil {
		return recipe.Recipe{}, err
	}
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = s.now()
	r = normalizeRecipe(r)
	if ok, err := s.Recipes.Replace(ctx, r); err != nil {
		return recipe.Recipe{}, err
	} else if !ok {
		return recipe.Recipe{}, storage.NotFound("recipe", r.ID)
	}
	s.notify(r.OwnerID, storage.CollectionRecipes, r.ID, watch.OpUpdate)
	return r, nil
}

func (s *Store) GetRecipe(ctx context.Context, id string) (recipe.Recipe, error) {
	return s.Recipes.Get(ctx, id)
}

func (s *Store) ListRecipes(ctx context.Context, ownerID string) ([]recipe.Recipe, error) {
	items, err := s.Recipes.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return byCreated(items[i].CreatedAt, items[j].CreatedAt, items[i].ID, items[j].ID) })
	return items, nil
}

func (s *Store) DeleteRecipe(ctx context.Context, id string) error {
	owner, err := s.Recipes.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.notify(owner, storage.CollectionRecipes, id, watch.OpDelete)
	return nil
}

// Ingredients -----------------------------------------------------------------

func (s *Store) CreateIngredient(ctx context.Context, ing recipe.Ingredient) (recipe.Ingredient, error) {
	s.stamp(&ing.ID, &ing.CreatedAt, &ing.UpdatedAt)
	if err := s.Ingredients.Insert(ctx, ing); err != nil {
		return recipe.Ingredient{}, err
	}
	s.notify(ing.OwnerID, storage.CollectionIngredients, ing.ID, watch.OpCreate)
	return ing, nil
}

func (s *Store) UpdateIngredient(ctx context.Context, ing recipe.Ingredient) (recipe.Ingredient, error) {
	existing, err := s.Ingredients.Get(ctx, ing.ID)
	if err != nil {
		return recipe.Ingredient{}, err
	}
	ing.CreatedAt = existing.CreatedAt
	ing.UpdatedAt = s.now()
	if ok, err := s.Ingredients.Replace(ctx, ing); err != nil {
		return recipe.Ingredient{}, err
	} else if !ok {
		return recipe.Ingredient{}, storage.NotFound("ingredient", ing.ID)
	}
	s.notify(ing.OwnerID, storage.CollectionIngredients, ing.ID, watch.OpUpdate)
	return ing, nil
}

func (s *Store) GetIngredient(ctx context.Context, id string) (recipe.Ingredient, error) {
	return s.Ingredients.Get(ctx, id)
}

func (s *Store) ListIngredients(ctx context.Context, recipeID string) ([]recipe.Ingredient, error) {
	items, err := s.Ingredients.List(ctx, "", DataEq("recipe_id", recipeID))
	if err != nil {
		return nil, err
	}
	recipe.SortIngredients(items)
	return items, nil
}

func (s *Store) ListOwnerIngredients(ctx context.Context, ownerID string) ([]recipe.Ingredient, error) {
	items, err := s.Ingredients.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].RecipeID != items[j].RecipeID {
			return items[i].RecipeID < items[j].RecipeID
		}
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (s *Store) DeleteIngredient(ctx context.Context, id string) error {
	owner, err := s.Ingredients.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.notify(owner, storage.CollectionIngredients, id, watch.OpDelete)
	return nil
}

// Logs ------------------------------------------------------------------------

func (s *Store) dateTaken(ctx context.Context, l logbook.Log) error {
	other, found, err := s.Logs.Find(ctx, func(q *client.QueryBuilder) *client.QueryBuilder {
		return q.Eq("owner_id", l.OwnerID)
	}, DataEq("date", l.Date))
	if err != nil {
		return err
	}
	if found && other.ID != l.ID {
		return storage.Conflict("log for %s already exists", l.Date)
	}
	return nil
}

func (s *Store) CreateLog(ctx context.Context, l logbook.Log) (logbook.Log, error) {
	if err := s.dateTaken(ctx, l); err != nil {
		return logbook.Log{}, err
	}
	s.stamp(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	l = normalizeLog(l)
	if err := s.Logs.Insert(ctx, l); err != nil {
		return logbook.Log{}, err
	}
	s.notify(l.OwnerID, storage.CollectionLogs, l.ID, watch.OpCreate)
	return l, nil
}

func (s *Store) UpdateLog(ctx context.Context, l logbook.Log) (logbook.Log, error) {
	existing, err := s.Logs.Get(ctx, l.ID)
	if err != nil {
		return logbook.Log{}, err
	}
	if existing.Date != l.Date {
		if err := s.dateTaken(ctx, l); err != nil {
			return logbook.Log{}, err
		}
	}
	l.CreatedAt = existing.CreatedAt
	l.UpdatedAt = s.now()
	l = normalizeLog(l)
	if ok, err := s.Logs.Replace(ctx, l); err != nil {
		return logbook.Log{}, err
	} else if !ok {
		return logbook.Log{}, storage.NotFound("log", l.ID)
	}
	s.notify(l.OwnerID, storage.CollectionLogs, l.ID, watch.OpUpdate)
	return l, nil
}

func (s *Store) GetLog(ctx context.Context, id string) (logbook.Log, error) {
	return s.Logs.Get(ctx, id)
}

func (s *Store) GetLogByDate(ctx context.Context, ownerID, date string) (logbook.Log, error) {
	items, err := s.Logs.List(ctx, ownerID, DataEq("date", date))
	if err != nil {
		return logbook.Log{}, err
	}
	if len(items) == 0 {
		return logbook.Log{}, storage.NotFound("log", date)
	}
	return items[0], nil
}

func (s *Store) ListLogs(ctx context.Context, ownerID string) ([]logbook.Log, error) {
	return s.ListLogsBetween(ctx, ownerID, "", "")
}

func (s *Store) ListLogsBetween(ctx context.Context, ownerID, from, to string) ([]logbook.Log, error) {
	items, err := s.Logs.List(ctx, ownerID, DataBetween("date", from, to))
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Date < items[j].Date })
	return items, nil
}

func (s *Store) DeleteLog(ctx context.Context, id string) error {
	owner, err := s.Logs.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.notify(owner, storage.CollectionLogs, id, watch.OpDelete)
	return nil
}

// Notes -----------------------------------------------------------------------

func (s *Store) CreateNote(ctx context.Context, n note.Note) (note.Note, error) {
	s.stamp(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	if err := s.Notes.Insert(ctx, n); err != nil {
		return note.Note{}, err
	}
	s.notify(n.OwnerID, storage.CollectionNotes, n.ID, watch.OpCreate)
	return n, nil
}

func (s *Store) UpdateNote(ctx context.Context, n note.Note) (note.Note, error) {
	existing, err := s.Notes.Get(ctx, n.ID)
	if err != nil {
		return note.Note{}, err
	}
	n.CreatedAt = existing.CreatedAt
	n.UpdatedAt = s.now()
	if ok, err := s.Notes.Replace(ctx, n); err != nil {
		return note.Note{}, err
	} else if !ok {
		return note.Note{}, storage.NotFound("note", n.ID)
	}
	s.notify(n.OwnerID, storage.CollectionNotes, n.ID, watch.OpUpdate)
	return n, nil
}

func (s *Store) GetNote(ctx context.Context, id string) (note.Note, error) {
	return s.Notes.Get(ctx, id)
}

func (s *Store) ListNotes(ctx context.Context, ownerID string) ([]note.Note, error) {
	items, err := s.Notes.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return byCreated(items[i].CreatedAt, items[j].CreatedAt, items[i].ID, items[j].ID) })
	return items, nil
}

func (s *Store) DeleteNote(ctx context.Context, id string) error {
	owner, err := s.Notes.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.notify(owner, storage.CollectionNotes, id, watch.OpDelete)
	return nil
}

// Products --------------------------------------------------------------------

func (s *Store) CreateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	s.stamp(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err := s.Products.Insert(ctx, p); err != nil {
		return product.Product{}, err
	}
	s.notify(p.OwnerID, storage.CollectionProducts, p.ID, watch.OpCreate)
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	existing, err := s.Products.Get(ctx, p.ID)
	if err != nil {
		return product.Product{}, err
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now()
	if ok, err := s.Products.Replace(ctx, p); err != nil {
		return product.Product{}, err
	} else if !ok {
		return product.Product{}, storage.NotFound("product", p.ID)
	}
	s.notify(p.OwnerID, storage.CollectionProducts, p.ID, watch.OpUpdate)
	return p, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (product.Product, error) {
	return s.Products.Get(ctx, id)
}

func (s *Store) ListProducts(ctx context.Context, ownerID string) ([]product.Product, error) {
	items, err := s.Products.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return byCreated(items[i].CreatedAt, items[j].CreatedAt, items[i].ID, items[j].ID) })
	return items, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	owner, err := s.Products.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.notify(owner, storage.CollectionProducts, id, watch.OpDelete)
	return nil
}

// Shopping items --------------------------------------------------------------

func (s *Store) CreateShoppingItem(ctx context.Context, item shopping.Item) (shopping.Item, error) {
	s.stamp(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err := s.Shopping.Insert(ctx, item); err != nil {
		return shopping.Item{}, err
	}
	s.notify(item.OwnerID, storage.CollectionShopping, item.ID, watch.OpCreate)
	return item, nil
}

func (s *Store) UpdateShoppingItem(ctx context.Context, item shopping.Item) (shopping.Item, error) {
	existing, err := s.Shopping.Get(ctx, item.ID)
	if err != nil {
		return shopping.Item{}, err
	}
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = s.now()
	if ok, err := s.Shopping.Replace(ctx, item); err != nil {
		return shopping.Item{}, err
	} else if !ok {
		return shopping.Item{}, storage.NotFound("shopping item", item.ID)
	}
	s.notify(item.OwnerID, storage.CollectionShopping, item.ID, watch.OpUpdate)
	return item, nil
}

func (s *Store) GetShoppingItem(ctx context.Context, id string) (shopping.Item, error) {
	return s.Shopping.Get(ctx, id)
}

func (s *Store) ListShoppingItems(ctx context.Context, ownerID string) ([]shopping.Item, error) {
	items, err := s.Shopping.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return byCreated(items[i].CreatedAt, items[j].CreatedAt, items[i].ID, items[j].ID) })
	return items, nil
}

func (s *Store) DeleteShoppingItem(ctx context.Context, id string) error {
	owner, err := s.Shopping.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.notify(owner, storage.CollectionShopping, id, watch.OpDelete)
	return nil
}

// Receipts --------------------------------------------------------------------

func (s *Store) CreateReceipt(ctx context.Context, r receipt.Receipt) (receipt.Receipt, error) {
	s.stamp(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	r = normalizeReceipt(r)
	if err := s.Receipts.Insert(ctx, r); err != nil {
		return receipt.Receipt{}, err
	}
	s.notify(r.OwnerID, storage.CollectionReceipts, r.ID, watch.OpCreate)
	return r, nil
}

func (s *Store) UpdateReceipt(ctx context.Context, r receipt.Receipt) (receipt.Receipt, error) {
	existing, err := s.Receipts.Get(ctx, r.ID)
	if err != nil {
		return receipt.Receipt{}, err
	}
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = s.now()
	r = normalizeReceipt(r)
	if ok, err := s.Receipts.Replace(ctx, r); err != nil {
		return receipt.Receipt{}, err
	} else if !ok {
		return receipt.Receipt{}, storage.NotFound("receipt", r.ID)
	}
	s.notify(r.OwnerID, storage.CollectionReceipts, r.ID, watch.OpUpdate)
	return r, nil
}

func (s *Store) GetReceipt(ctx context.Context, id string) (receipt.Receipt, error) {
	return s.Receipts.Get(ctx, id)
}

func (s *Store) ListReceipts(ctx context.Context, ownerID string) ([]receipt.Receipt, error) {
	return s.ListReceiptsBetween(ctx, ownerID, "", "")
}

func (s *Store) ListReceiptsBetween(ctx context.Context, ownerID, from, to string) ([]receipt.Receipt, error) {
	items, err := s.Receipts.List(ctx, ownerID, DataBetween("purchased_on", from, to))
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].PurchasedOn != items[j].PurchasedOn {
			return items[i].PurchasedOn < items[j].PurchasedOn
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (s *Store) DeleteReceipt(ctx context.Context, id string) error {
	owner, err := s.Receipts.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.notify(owner, storage.CollectionReceipts, id, watch.OpDelete)
	return nil
}
