package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/souschef/internal/app/domain/account"
	"github.com/R3E-Network/souschef/internal/app/domain/logbook"
	"github.com/R3E-Network/souschef/internal/app/domain/note"
	"github.com/R3E-Network/souschef/internal/app/domain/product"
	"github.com/R3E-Network/souschef/internal/app/domain/receipt"
	"github.com/R3E-Network/souschef/internal/app/domain/recipe"
	"github.com/R3E-Network/souschef/internal/app/domain/shopping"
	"github.com/R3E-Network/souschef/internal/app/storage"
	"github.com/R3E-Network/souschef/internal/app/watch"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu          sync.RWMutex
	publisher   watch.Publisher
	now         func() time.Time
	accounts    map[string]account.Account
	recipes     map[string]recipe.Recipe
	ingredients map[string]recipe.Ingredient
	logs        map[string]logbook.Log
	notes       map[string]note.Note
	products    map[string]product.Product
	shopping    map[string]shopping.Item
	receipts    map[string]receipt.Receipt
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

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		publisher:   watch.Nop,
		now:         func() time.Time { return time.Now().UTC() },
		accounts:    make(map[string]account.Account),
		recipes:     make(map[string]recipe.Recipe),
		ingredients: make(map[string]recipe.Ingredient),
		logs:        make(map[string]logbook.Log),
		notes:       make(map[string]note.Note),
		products:    make(map[string]product.Product),
		shopping:    make(map[string]shopping.Item),
		receipts:    make(map[string]receipt.Receipt),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) notify(owner, collection, id string, op watch.Op) {
	s.publisher.Publish(watch.Change{OwnerID: owner, Collection: collection, ID: id, Op: op, At: s.now()})
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// AccountStore implementation -------------------------------------------------

func (s *Store) CreateAccount(_ context.Context, acct account.Account) (account.Account, error) {
	s.mu.Lock()
	if _, exists := s.accounts[acct.ID]; exists && acct.ID != "" {
		s.mu.Unlock()
		return account.Account{}, storage.Conflict("account %s already exists", acct.ID)
	}
	for _, existing := range s.accounts {
		if strings.EqualFold(existing.Email, acct.Email) {
			s.mu.Unlock()
			return account.Account{}, storage.Conflict("email %s already registered", acct.Email)
		}
	}
	acct.ID = newID(acct.ID)
	now := s.now()
	acct.CreatedAt = now
	acct.UpdatedAt = now
	s.accounts[acct.ID] = acct
	s.mu.Unlock()

	s.notify(acct.ID, storage.CollectionAccounts, acct.ID, watch.OpCreate)
	return acct, nil
}

func (s *Store) UpdateAccount(_ context.Context, acct account.Account) (account.Account, error) {
	s.mu.Lock()
	original, ok := s.accounts[acct.ID]
	if !ok {
		s.mu.Unlock()
		return account.Account{}, storage.NotFound("account", acct.ID)
	}
	for id, existing := range s.accounts {
		if id != acct.ID && strings.EqualFold(existing.Email, acct.Email) {
			s.mu.Unlock()
			return account.Account{}, storage.Conflict("email %s already registered", acct.Email)
		}
	}
	acct.CreatedAt = original.CreatedAt
	acct.UpdatedAt = s.now()
	s.accounts[acct.ID] = acct
	s.mu.Unlock()

	s.notify(acct.ID, storage.CollectionAccounts, acct.ID, watch.OpUpdate)
	return acct, nil
}

func (s *Store) GetAccount(_ context.Context, id string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[id]
	if !ok {
		return account.Account{}, storage.NotFound("account", id)
	}
	return acct, nil
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acct := range s.accounts {
		if strings.EqualFold(acct.Email, email) {
			return acct, nil
		}
	}
	return account.Account{}, storage.NotFound("account", email)
}

func (s *Store) ListAccounts(_ context.Context) ([]account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]account.Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		result = append(result, acct)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.accounts[id]; !ok {
		s.mu.Unlock()
		return storage.NotFound("account", id)
	}
	delete(s.accounts, id)
	s.mu.Unlock()

	s.notify(id, storage.CollectionAccounts, id, watch.OpDelete)
	return nil
}

// RecipeStore implementation --------------------------------------------------

func (s *Store) CreateRecipe(_ context.Context, r recipe.Recipe) (recipe.Recipe, error) {
	s.mu.Lock()
	if _, exists := s.recipes[r.ID]; exists && r.ID != "" {
		s.mu.Unlock()
		return recipe.Recipe{}, storage.Conflict("recipe %s already exists", r.ID)
	}
	r.ID = newID(r.ID)
	now := s.now()
	r.CreatedAt = now
	r.UpdatedAt = now
	r = cloneRecipe(r)
	s.recipes[r.ID] = r
	s.mu.Unlock()

	s.notify(r.OwnerID, storage.CollectionRecipes, r.ID, watch.OpCreate)
	return cloneRecipe(r), nil
}

func (s *Store) UpdateRecipe(_ context.Context, r recipe.Recipe) (recipe.Recipe, error) {
	s.mu.Lock()
	original, ok := s.recipes[r.ID]
	if !ok {
		s.mu.Unlock()
		return recipe.Recipe{}, storage.NotFound("recipe", r.ID)
	}
	r.CreatedAt = original.CreatedAt
	r.UpdatedAt = s.now()
	r = cloneRecipe(r)
	s.recipes[r.ID] = r
	s.mu.Unlock()

	s.notify(r.OwnerID, storage.CollectionRecipes, r.ID, watch.OpUpdate)
	return cloneRecipe(r), nil
}

func (s *Store) GetRecipe(_ context.Context, id string) (recipe.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.recipes[id]
	if !ok {
		return recipe.Recipe{}, storage.NotFound("recipe", id)
	}
	return cloneRecipe(r), nil
}

func (s *Store) ListRecipes(_ context.Context, ownerID string) ([]recipe.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]recipe.Recipe, 0)
	for _, r := range s.recipes {
		if r.OwnerID == ownerID {
			result = append(result, cloneRecipe(r))
		}
	}
	sort.Slice(result, func(i, j int) bool { return byCreated(result[i].CreatedAt, result[j].CreatedAt, result[i].ID, result[j].ID) })
	return result, nil
}

func (s *Store) DeleteRecipe(_ context.Context, id string) error {
	s.mu.Lock()
	r, ok := s.recipes[id]
	if !ok {
		s.mu.Unlock()
		return storage.NotFound("recipe", id)
	}
	delete(s.recipes, id)
	s.mu.Unlock()

	s.notify(r.OwnerID, storage.CollectionRecipes, id, watch.OpDelete)
	return nil
}

// IngredientStore implementation ----------------------------------------------

func (s *Store) CreateIngredient(_ context.Context, ing recipe.Ingredient) (recipe.Ingredient, error) {
	s.mu.Lock()
	if _, exists := s.ingredients[ing.ID]; exists && ing.ID != "" {
		s.mu.Unlock()
		return recipe.Ingredient{}, storage.Conflict("ingredient %s already exists", ing.ID)
	}
	ing.ID = newID(ing.ID)
	now := s.now()
	ing.CreatedAt = now
	ing.UpdatedAt = now
	s.ingredients[ing.ID] = ing
	s.mu.Unlock()

	s.notify(ing.OwnerID, storage.CollectionIngredients, ing.ID, watch.OpCreate)
	return ing, nil
}

func (s *Store) UpdateIngredient(_ context.Context, ing recipe.Ingredient) (recipe.Ingredient, error) {
	s.mu.Lock()
	original, ok := s.ingredients[ing.ID]
	if !ok {
		s.mu.Unlock()
		return recipe.Ingredient{}, storage.NotFound("ingredient", ing.ID)
	}
	ing.CreatedAt = original.CreatedAt
	ing.UpdatedAt = s.now()
	s.ingredients[ing.ID] = ing
	s.mu.Unlock()

	s.notify(ing.OwnerID, storage.CollectionIngredients, ing.ID, watch.OpUpdate)
	return ing, nil
}

func (s *Store) GetIngredient(_ context.Context, id string) (recipe.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ing, ok := s.ingredients[id]
	if !ok {
		return recipe.Ingredient{}, storage.NotFound("ingredient", id)
	}
	return ing, nil
}

func (s *Store) ListIngredients(_ context.Context, recipeID string) ([]recipe.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]recipe.Ingredient, 0)
	for _, ing := range s.ingredients {
		if ing.RecipeID == recipeID {
			result = append(result, ing)
		}
	}
	recipe.SortIngredients(result)
	return result, nil
}

func (s *Store) ListOwnerIngredients(_ context.Context, ownerID string) ([]recipe.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]recipe.Ingredient, 0)
	for _, ing := range s.ingredients {
		if ing.OwnerID == ownerID {
			result = append(result, ing)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].RecipeID != result[j].RecipeID {
			return result[i].RecipeID < result[j].RecipeID
		}
		if result[i].Position != result[j].Position {
			return result[i].Position < result[j].Position
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *Store) DeleteIngredient(_ context.Context, id string) error {
	s.mu.Lock()
	ing, ok := s.ingredients[id]
	if !ok {
		s.mu.Unlock()
		return storage.NotFound("ingredient", id)
	}
	delete(s.ingredients, id)
	s.mu.Unlock()

	s.notify(ing.OwnerID, storage.CollectionIngredients, id, watch.OpDelete)
	return nil
}

// LogStore implementation -----------------------------------------------------

func (s *Store) logByDateLocked(ownerID, date string) (logbook.Log, bool) {
	for _, l := range s.logs {
		if l.OwnerID == ownerID && l.Date == date {
			return l, true
		}
	}
	return logbook.Log{}, false
}

func (s *Store) CreateLog(_ context.Context, l logbook.Log) (logbook.Log, error) {
	s.mu.Lock()
	if _, exists := s.logs[l.ID]; exists && l.ID != "" {
		s.mu.Unlock()
		return logbook.Log{}, storage.Conflict("log %s already exists", l.ID)
	}
	if _, exists := s.logByDateLocked(l.OwnerID, l.Date); exists {
		s.mu.Unlock()
		return logbook.Log{}, storage.Conflict("log for %s already exists", l.Date)
	}
	l.ID = newID(l.ID)
	now := s.now()
	l.CreatedAt = now
	l.UpdatedAt = now
	l = cloneLog(l)
	s.logs[l.ID] = l
	s.mu.Unlock()

	s.notify(l.OwnerID, storage.CollectionLogs, l.ID, watch.OpCreate)
	return cloneLog(l), nil
}

func (s *Store) UpdateLog(_ context.Context, l logbook.Log) (logbook.Log, error) {
	s.mu.Lock()
	original, ok := s.logs[l.ID]
	if !ok {
		s.mu.Unlock()
		return logbook.Log{}, storage.NotFound("log", l.ID)
	}
	if other, exists := s.logByDateLocked(l.OwnerID, l.Date); exists && other.ID != l.ID {
		s.mu.Unlock()
		return logbook.Log{}, storage.Conflict("log for %s already exists", l.Date)
	}
	l.CreatedAt = original.CreatedAt
	l.UpdatedAt = s.now()
	l = cloneLog(l)
	s.logs[l.ID] = l
	s.mu.Unlock()

	s.notify(l.OwnerID, storage.CollectionLogs, l.ID, watch.OpUpdate)
	return cloneLog(l), nil
}

func (s *Store) GetLog(_ context.Context, id string) (logbook.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.logs[id]
	if !ok {
		return logbook.Log{}, storage.NotFound("log", id)
	}
	return cloneLog(l), nil
}

func (s *Store) GetLogByDate(_ context.Context, ownerID, date string) (logbook.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.logByDateLocked(ownerID, date)
	if !ok {
		return logbook.Log{}, storage.NotFound("log", date)
	}
	return cloneLog(l), nil
}

func (s *Store) ListLogs(ctx context.Context, ownerID string) ([]logbook.Log, error) {
	return s.ListLogsBetween(ctx, ownerID, "", "")
}

func (s *Store) ListLogsBetween(_ context.Context, ownerID, from, to string) ([]logbook.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]logbook.Log, 0)
	for _, l := range s.logs {
		if l.OwnerID != ownerID || !inRange(l.Date, from, to) {
			continue
		}
		result = append(result, cloneLog(l))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}

func (s *Store) DeleteLog(_ context.Context, id string) error {
	s.mu.Lock()
	l, ok := s.logs[id]
	if !ok {
		s.mu.Unlock()
		return storage.NotFound("log", id)
	}
	delete(s.logs, id)
	s.mu.Unlock()

	s.notify(l.OwnerID, storage.CollectionLogs, id, watch.OpDelete)
	return nil
}

// NoteStore implementation ----------------------------------------------------

func (s *Store) CreateNote(_ context.Context, n note.Note) (note.Note, error) {
	s.mu.Lock()
	if _, exists := s.notes[n.ID]; exists && n.ID != "" {
		s.mu.Unlock()
		return note.Note{}, storage.Conflict("note %s already exists", n.ID)
	}
	n.ID = newID(n.ID)
	now := s.now()
	n.CreatedAt = now
	n.UpdatedAt = now
	s.notes[n.ID] = n
	s.mu.Unlock()

	s.notify(n.OwnerID, storage.CollectionNotes, n.ID, watch.OpCreate)
	return n, nil
}

func (s *Store) UpdateNote(_ context.Context, n note.Note) (note.Note, error) {
	s.mu.Lock()
	original, ok := s.notes[n.ID]
	if !ok {
		s.mu.Unlock()
		return note.Note{}, storage.NotFound("note", n.ID)
	}
	n.CreatedAt = original.CreatedAt
	n.UpdatedAt = s.now()
	s.notes[n.ID] = n
	s.mu.Unlock()

	s.notify(n.OwnerID, storage.CollectionNotes, n.ID, watch.OpUpdate)
	return n, nil
}

func (s *Store) GetNote(_ context.Context, id string) (note.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notes[id]
	if !ok {
		return note.Note{}, storage.NotFound("note", id)
	}
	return n, nil
}

func (s *Store) ListNotes(_ context.Context, ownerID string) ([]note.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]note.Note, 0)
	for _, n := range s.notes {
		if n.OwnerID == ownerID {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return byCreated(result[i].CreatedAt, result[j].CreatedAt, result[i].ID, result[j].ID) })
	return result, nil
}

func (s *Store) DeleteNote(_ context.Context, id string) error {
	s.mu.Lock()
	n, ok := s.notes[id]
	if !ok {
		s.mu.Unlock()
		return storage.NotFound("note", id)
	}
	delete(s.notes, id)
	s.mu.Unlock()

	s.notify(n.OwnerID, storage.CollectionNotes, id, watch.OpDelete)
	return nil
}

// ProductStore implementation -------------------------------------------------

func (s *Store) CreateProduct(_ context.Context, p product.Product) (product.Product, error) {
	s.mu.Lock()
	if _, exists := s.products[p.ID]; exists && p.ID != "" {
		s.mu.Unlock()
		return product.Product{}, storage.Conflict("product %s already exists", p.ID)
	}
	p.ID = newID(p.ID)
	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.products[p.ID] = p
	s.mu.Unlock()

	s.notify(p.OwnerID, storage.CollectionProducts, p.ID, watch.OpCreate)
	return p, nil
}

func (s *Store) UpdateProduct(_ context.Context, p product.Product) (product.Product, error) {
	s.mu.Lock()
	original, ok := s.products[p.ID]
	if !ok {
		s.mu.Unlock()
		return product.Product{}, storage.NotFound("product", p.ID)
	}
	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = s.now()
	s.products[p.ID] = p
	s.mu.Unlock()

	s.notify(p.OwnerID, storage.CollectionProducts, p.ID, watch.OpUpdate)
	return p, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return product.Product{}, storage.NotFound("product", id)
	}
	return p, nil
}

func (s *Store) ListProducts(_ context.Context, ownerID string) ([]product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]product.Product, 0)
	for _, p := range s.products {
		if p.OwnerID == ownerID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return byCreated(result[i].CreatedAt, result[j].CreatedAt, result[i].ID, result[j].ID) })
	return result, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	p, ok := s.products[id]
	if !ok {
		s.mu.Unlock()
		return storage.NotFound("product", id)
	}
	delete(s.products, id)
	s.mu.Unlock()

	s.notify(p.OwnerID, storage.CollectionProducts, id, watch.OpDelete)
	return nil
}

// ShoppingStore implementation ------------------------------------------------

func (s *Store) CreateShoppingItem(_ context.Context, item shopping.Item) (shopping.Item, error) {
	s.mu.Lock()
	if _, exists := s.shopping[item.ID]; exists && item.ID != "" {
		s.mu.Unlock()
		return shopping.Item{}, storage.Conflict("shopping item %s already exists", item.ID)
	}
	item.ID = newID(item.ID)
	now := s.now()
	item.CreatedAt = now
	item.UpdatedAt = now
	s.shopping[item.ID] = item
	s.mu.Unlock()

	s.notify(item.OwnerID, storage.CollectionShopping, item.ID, watch.OpCreate)
	return item, nil
}

func (s *Store) UpdateShoppingItem(_ context.Context, item shopping.Item) (shopping.Item, error) {
	s.mu.Lock()
	original, ok := s.shopping[item.ID]
	if !ok {
		s.mu.Unlock()
		return shopping.Item{}, storage.NotFound("shopping item", item.ID)
	}
	item.CreatedAt = original.CreatedAt
	item.UpdatedAt = s.now()
	s.shopping[item.ID] = item
	s.mu.Unlock()

	s.notify(item.OwnerID, storage.CollectionShopping, item.ID, watch.OpUpdate)
	return item, nil
}

func (s *Store) GetShoppingItem(_ context.Context, id string) (shopping.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.shopping[id]
	if !ok {
		return shopping.Item{}, storage.NotFound("shopping item", id)
	}
	return item, nil
}

func (s *Store) ListShoppingItems(_ context.Context, ownerID string) ([]shopping.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]shopping.Item, 0)
	for _, item := range s.shopping {
		if item.OwnerID == ownerID {
			result = append(result, item)
		}
	}
	sort.Slice(result, func(i, j int) bool { return byCreated(result[i].CreatedAt, result[j].CreatedAt, result[i].ID, result[j].ID) })
	return result, nil
}

func (s *Store) DeleteShoppingItem(_ context.Context, id string) error {
	s.mu.Lock()
	item, ok := s.shopping[id]
	if !ok {
		s.mu.Unlock()
		return storage.NotFound("shopping item", id)
	}
	delete(s.shopping, id)
	s.mu.Unlock()

	s.notify(item.OwnerID, storage.CollectionShopping, id, watch.OpDelete)
	return nil
}

// ReceiptStore implementation -------------------------------------------------

func (s *Store) CreateReceipt(_ context.Context, r receipt.Receipt) (receipt.Receipt, error) {
	s.mu.Lock()
	if _, exists := s.receipts[r.ID]; exists && r.ID != "" {
		s.mu.Unlock()
		return receipt.Receipt{}, storage.Conflict("receipt %s already exists", r.ID)
	}
	r.ID = newID(r.ID)
	now := s.now()
	r.CreatedAt = now
	r.UpdatedAt = now
	r = cloneReceipt(r)
	s.receipts[r.ID] = r
	s.mu.Unlock()

	s.notify(r.OwnerID, storage.CollectionReceipts, r.ID, watch.OpCreate)
	return cloneReceipt(r), nil
}

func (s *Store) UpdateReceipt(_ context.Context, r receipt.Receipt) (receipt.Receipt, error) {
	s.mu.Lock()
	original, ok := s.receipts[r.ID]
	if !ok {
		s.mu.Unlock()
		return receipt.Receipt{}, storage.NotFound("receipt", r.ID)
	}
	r.CreatedAt = original.CreatedAt
	r.UpdatedAt = s.now()
	r = cloneReceipt(r)
	s.receipts[r.ID] = r
	s.mu.Unlock()

	s.notify(r.OwnerID, storage.CollectionReceipts, r.ID, watch.OpUpdate)
	return cloneReceipt(r), nil
}

func (s *Store) GetReceipt(_ context.Context, id string) (receipt.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.receipts[id]
	if !ok {
		return receipt.Receipt{}, storage.NotFound("receipt", id)
	}
	return cloneReceipt(r), nil
}

func (s *Store) ListReceipts(ctx context.Context, ownerID string) ([]receipt.Receipt, error) {
	return s.ListReceiptsBetween(ctx, ownerID, "", "")
}

func (s *Store) ListReceiptsBetween(_ context.Context, ownerID, from, to string) ([]receipt.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]receipt.Receipt, 0)
	for _, r := range s.receipts {
		if r.OwnerID != ownerID || !inRange(r.PurchasedOn, from, to) {
			continue
		}
		result = append(result, cloneReceipt(r))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].PurchasedOn != result[j].PurchasedOn {
			return result[i].PurchasedOn < result[j].PurchasedOn
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *Store) DeleteReceipt(_ context.Context, id string) error {
	s.mu.Lock()
	r, ok := s.receipts[id]
	if !ok {
		s.mu.Unlock()
		return storage.NotFound("receipt", id)
	}
	delete(s.receipts, id)
	s.mu.Unlock()

	s.notify(r.OwnerID, storage.CollectionReceipts, id, watch.OpDelete)
	return nil
}

// helpers ---------------------------------------------------------------------

// inRange compares YYYY-MM-DD strings; empty bounds are open.
func inRange(date, from, to string) bool {
	if from != "" && date < from {
		return false
	}
	if to != "" && date > to {
		return false
	}
	return true
}

func byCreated(a, b time.Time, idA, idB string) bool {
	if !a.Equal(b) {
		return a.Before(b)
	}
	return idA < idB
}

func cloneStrings(src []string) []string {
	out := make([]string, len(src))
	copy(out, src)
	return out
}

func cloneRecipe(r recipe.Recipe) recipe.Recipe {
	r.Instructions = cloneStrings(r.Instructions)
	r.Tags = cloneStrings(r.Tags)
	return r
}

func cloneLog(l logbook.Log) logbook.Log {
	l.RecipeIDs = cloneStrings(l.RecipeIDs)
	l.ProductIDs = cloneStrings(l.ProductIDs)
	return l
}

func cloneReceipt(r receipt.Receipt) receipt.Receipt {
	lines := make([]receipt.Line, len(r.Lines))
	copy(lines, r.Lines)
	r.Lines = lines
	return r
}
