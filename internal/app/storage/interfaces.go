package storage

import (
	"context"
	"errors"

	"github.com/R3E-Network/souschef/internal/app/domain/account"
	"github.com/R3E-Network/souschef/internal/app/domain/logbook"
	"github.com/R3E-Network/souschef/internal/app/domain/note"
	"github.com/R3E-Network/souschef/internal/app/domain/product"
	"github.com/R3E-Network/souschef/internal/app/domain/receipt"
	"github.com/R3E-Network/souschef/internal/app/domain/recipe"
	"github.com/R3E-Network/souschef/internal/app/domain/shopping"
)

var (
	// ErrNotFound is returned (possibly wrapped) when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write would violate a unique key.
	ErrConflict = errors.New("conflict")
)

// Collection names used for change notifications and sync.
const (
	CollectionAccounts    = "accounts"
	CollectionRecipes     = "recipes"
	CollectionIngredients = "ingredients"
	CollectionLogs        = "logs"
	CollectionNotes       = "notes"
	CollectionProducts    = "products"
	CollectionShopping    = "shopping"
	CollectionReceipts    = "receipts"
)

// OwnedCollections lists the per-owner collections in dependency order.
var OwnedCollections = []string{
	CollectionRecipes,
	CollectionIngredients,
	CollectionProducts,
	CollectionLogs,
	CollectionNotes,
	CollectionShopping,
	CollectionReceipts,
}

// AccountStore persists account records.
type AccountStore interface {
	CreateAccount(ctx context.Context, acct account.Account) (account.Account, error)
	UpdateAccount(ctx context.Context, acct account.Account) (account.Account, error)
	GetAccount(ctx context.Context, id string) (account.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (account.Account, error)
	ListAccounts(ctx context.Context) ([]account.Account, error)
	DeleteAccount(ctx context.Context, id string) error
}

// RecipeStore persists recipes.
type RecipeStore interface {
	CreateRecipe(ctx context.Context, r recipe.Recipe) (recipe.Recipe, error)
	UpdateRecipe(ctx context.Context, r recipe.Recipe) (recipe.Recipe, error)
	GetRecipe(ctx context.Context, id string) (recipe.Recipe, error)
	ListRecipes(ctx context.Context, ownerID string) ([]recipe.Recipe, error)
	DeleteRecipe(ctx context.Context, id string) error
}

// IngredientStore persists recipe ingredients.
type IngredientStore interface {
	CreateIngredient(ctx context.Context, ing recipe.Ingredient) (recipe.Ingredient, error)
	UpdateIngredient(ctx context.Context, ing recipe.Ingredient) (recipe.Ingredient, error)
	GetIngredient(ctx context.Context, id string) (recipe.Ingredient, error)
	// ListIngredients returns a recipe's ingredients ordered by position.
	ListIngredients(ctx context.Context, recipeID string) ([]recipe.Ingredient, error)
	ListOwnerIngredients(ctx context.Context, ownerID string) ([]recipe.Ingredient, error)
	DeleteIngredient(ctx context.Context, id string) error
}

// LogStore persists daily logs. (OwnerID, Date) is unique.
type LogStore interface {
	CreateLog(ctx context.Context, l logbook.Log) (logbook.Log, error)
	UpdateLog(ctx context.Context, l logbook.Log) (logbook.Log, error)
	GetLog(ctx context.Context, id string) (logbook.Log, error)
	GetLogByDate(ctx context.Context, ownerID, date string) (logbook.Log, error)
	ListLogs(ctx context.Context, ownerID string) ([]logbook.Log, error)
	// ListLogsBetween returns logs with from <= date <= to, oldest first.
	ListLogsBetween(ctx context.Context, ownerID, from, to string) ([]logbook.Log, error)
	DeleteLog(ctx context.Context, id string) error
}

// NoteStore persists notes.
type NoteStore interface {
	CreateNote(ctx context.Context, n note.Note) (note.Note, error)
	UpdateNote(ctx context.Context, n note.Note) (note.Note, error)
	GetNote(ctx context.Context, id string) (note.Note, error)
	ListNotes(ctx context.Context, ownerID string) ([]note.Note, error)
	DeleteNote(ctx context.Context, id string) error
}

// ProductStore persists products.
type ProductStore interface {
	CreateProduct(ctx context.Context, p product.Product) (product.Product, error)
	UpdateProduct(ctx context.Context, p product.Product) (product.Product, error)
	GetProduct(ctx context.Context, id string) (product.Product, error)
	ListProducts(ctx context.Context, ownerID string) ([]product.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

// ShoppingStore persists shopping list items.
type ShoppingStore interface {
	CreateShoppingItem(ctx context.Context, item shopping.Item) (shopping.Item, error)
	UpdateShoppingItem(ctx context.Context, item shopping.Item) (shopping.Item, error)
	GetShoppingItem(ctx context.Context, id string) (shopping.Item, error)
	ListShoppingItems(ctx context.Context, ownerID string) ([]shopping.Item, error)
	DeleteShoppingItem(ctx context.Context, id string) error
}

// ReceiptStore persists receipts.
type ReceiptStore interface {
	CreateReceipt(ctx context.Context, r receipt.Receipt) (receipt.Receipt, error)
	UpdateReceipt(ctx context.Context, r receipt.Receipt) (receipt.Receipt, error)
	GetReceipt(ctx context.Context, id string) (receipt.Receipt, error)
	ListReceipts(ctx context.Context, ownerID string) ([]receipt.Receipt, error)
	// ListReceiptsBetween returns receipts purchased on from..to inclusive.
	ListReceiptsBetween(ctx context.Context, ownerID, from, to string) ([]receipt.Receipt, error)
	DeleteReceipt(ctx context.Context, id string) error
}

// Stores bundles every store interface. Memory, SQL and remote backends all
// implement it.
type Stores interface {
	AccountStore
	RecipeStore
	IngredientStore
	LogStore
	NoteStore
	ProductStore
	ShoppingStore
	ReceiptStore
}
