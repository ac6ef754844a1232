// Package storagetest is a behavioural test suite shared by every storage
// backend.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/souschef/internal/app/domain/account"
	"github.com/R3E-Network/souschef/internal/app/domain/logbook"
	"github.com/R3E-Network/souschef/internal/app/domain/note"
	"github.com/R3E-Network/souschef/internal/app/domain/product"
	"github.com/R3E-Network/souschef/internal/app/domain/receipt"
	"github.com/R3E-Network/souschef/internal/app/domain/recipe"
	"github.com/R3E-Network/souschef/internal/app/domain/shopping"
	"github.com/R3E-Network/souschef/internal/app/storage"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) storage.Stores

// Run exercises the storage contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("accounts", func(t *testing.T) { testAccounts(t, newStore(t)) })
	t.Run("recipes", func(t *testing.T) { testRecipes(t, newStore(t)) })
	t.Run("ingredients", func(t *testing.T) { testIngredients(t, newStore(t)) })
	t.Run("logs", func(t *testing.T) { testLogs(t, newStore(t)) })
	t.Run("notes", func(t *testing.T) { testNotes(t, newStore(t)) })
	t.Run("products", func(t *testing.T) { testProducts(t, newStore(t)) })
	t.Run("shopping", func(t *testing.T) { testShopping(t, newStore(t)) })
	t.Run("receipts", func(t *testing.T) { testReceipts(t, newStore(t)) })
}

func testAccounts(t *testing.T, s storage.Stores) {
	ctx := context.Background()
	acct, err := s.CreateAccount(ctx, account.Account{
		Email:         "Cook@Example.com",
		DisplayName:   "Cook",
		PasswordHash:  "hash",
		Currency:      "EUR",
		MonthlyBudget: decimal.RequireFromString("250.50"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, acct.ID)
	assert.False(t, acct.CreatedAt.IsZero())

	_, err = s.CreateAccount(ctx, account.Account{Email: "cook@example.com"})
	assert.True(t, storage.IsConflict(err), "duplicate email should conflict, got %v", err)

	byEmail, err := s.GetAccountByEmail(ctx, "COOK@example.com")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)
	assert.True(t, byEmail.MonthlyBudget.Equal(decimal.RequireFromString("250.5")))

	acct.DisplayName = "Chef"
	updated, err := s.UpdateAccount(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, "Chef", updated.DisplayName)
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))

	all, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteAccount(ctx, acct.ID))
	_, err = s.GetAccount(ctx, acct.ID)
	assert.True(t, storage.IsNotFound(err))
	assert.True(t, storage.IsNotFound(s.DeleteAccount(ctx, acct.ID)))
}

func testRecipes(t *testing.T, s storage.Stores) {
	ctx := context.Background()
	r, err := s.CreateRecipe(ctx, recipe.Recipe{
		OwnerID:      "alice",
		Name:         "Pancakes",
		Servings:     4,
		Instructions: []string{"mix", "fry"},
		Tags:         []string{"breakfast"},
		Rating:       4,
	})
	require.NoError(t, err)

	got, err := s.GetRecipe(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"mix", "fry"}, got.Instructions)
	assert.Equal(t, []string{"breakfast"}, got.Tags)
	assert.Equal(t, 4, got.Servings)

	_, err = s.CreateRecipe(ctx, recipe.Recipe{ID: r.ID, OwnerID: "alice", Name: "dup", Servings: 1})
	assert.True(t, storage.IsConflict(err))

	_, err = s.CreateRecipe(ctx, recipe.Recipe{OwnerID: "bob", Name: "Soup", Servings: 1})
	require.NoError(t, err)

	list, err := s.ListRecipes(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Pancakes", list[0].Name)

	got.Instructions = append(got.Instructions, "serve")
	_, err = s.UpdateRecipe(ctx, got)
	require.NoError(t, err)
	again, err := s.GetRecipe(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, again.Instructions, 3)

	_, err = s.UpdateRecipe(ctx, recipe.Recipe{ID: "missing"})
	assert.True(t, storage.IsNotFound(err))

	require.NoError(t, s.DeleteRecipe(ctx, r.ID))
	_, err = s.GetRecipe(ctx, r.ID)
	assert.True(t, storage.IsNotFound(err))
}

func testIngredients(t *testing.T, s storage.Stores) {
	ctx := context.Background()
	for i, name := range []string{"flour", "milk", "egg"} {
		_, err := s.CreateIngredient(ctx, recipe.Ingredient{
			OwnerID:  "alice",
			RecipeID: "r1",
			Name:     name,
			Quantity: decimal.NewFromInt(int64(i + 1)),
			Unit:     "g",
			Position: 2 - i,
		})
		require.NoError(t, err)
	}
	_, err := s.CreateIngredient(ctx, recipe.Ingredient{OwnerID: "alice", RecipeID: "r2", Name: "salt", Quantity: decimal.RequireFromString("0.5")})
	require.NoError(t, err)

	list, err := s.ListIngredients(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "egg", list[0].Name)
	assert.Equal(t, "flour", list[2].Name)

	owned, err := s.ListOwnerIngredients(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, owned, 4)

	salt := owned[len(owned)-1]
	for _, ing := range owned {
		if ing.Name == "salt" {
			salt = ing
		}
	}
	assert.True(t, salt.Quantity.Equal(decimal.RequireFromString("0.5")))

	salt.Quantity = decimal.NewFromInt(2)
	_, err = s.UpdateIngredient(ctx, salt)
	require.NoError(t, err)
	got, err := s.GetIngredient(ctx, salt.ID)
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(decimal.NewFromInt(2)))

	require.NoError(t, s.DeleteIngredient(ctx, salt.ID))
	assert.True(t, storage.IsNotFound(s.DeleteIngredient(ctx, salt.ID)))
}

func testLogs(t *testing.T, s storage.Stores) {
	ctx := context.Background()
	for _, date := range []string{"2024-03-03", "2024-03-01", "2024-03-02"} {
		_, err := s.CreateLog(ctx, logbook.Log{OwnerID: "alice", Date: date, RecipeIDs: []string{"r1"}, Rating: 3, Note: "ok"})
		require.NoError(t, err)
	}
	_, err := s.CreateLog(ctx, logbook.Log{OwnerID: "alice", Date: "2024-03-01"})
	assert.True(t, storage.IsConflict(err), "second log for the same day should conflict, got %v", err)

	_, err = s.CreateLog(ctx, logbook.Log{OwnerID: "bob", Date: "2024-03-01"})
	require.NoError(t, err)

	day, err := s.GetLogByDate(ctx, "alice", "2024-03-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, day.RecipeIDs)
	assert.Equal(t, 3, day.Rating)

	_, err = s.GetLogByDate(ctx, "alice", "2024-04-01")
	assert.True(t, storage.IsNotFound(err))

	between, err := s.ListLogsBetween(ctx, "alice", "2024-03-02", "2024-03-03")
	require.NoError(t, err)
	require.Len(t, between, 2)
	assert.Equal(t, "2024-03-02", between[0].Date)

	all, err := s.ListLogs(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-03-01", all[0].Date)

	day.ProductIDs = []string{"p1"}
	_, err = s.UpdateLog(ctx, day)
	require.NoError(t, err)
	got, err := s.GetLog(ctx, day.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, got.ProductIDs)

	require.NoError(t, s.DeleteLog(ctx, day.ID))
	_, err = s.GetLog(ctx, day.ID)
	assert.True(t, storage.IsNotFound(err))
}

func testNotes(t *testing.T, s storage.Stores) {
	ctx := context.Background()
	n, err := s.CreateNote(ctx, note.Note{OwnerID: "alice", Title: "Oven", Body: "runs hot", Pinned: true})
	require.NoError(t, err)

	got, err := s.GetNote(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, got.Pinned)

	got.Pinned = false
	_, err = s.UpdateNote(ctx, got)
	require.NoError(t, err)

	list, err := s.ListNotes(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Pinned)

	require.NoError(t, s.DeleteNote(ctx, n.ID))
	list, err = s.ListNotes(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testProducts(t *testing.T, s storage.Stores) {
	ctx := context.Background()
	p, err := s.CreateProduct(ctx, product.Product{OwnerID: "alice", Name: "Oat milk", Store: "Corner", Price: decimal.RequireFromString("2.49"), Currency: "USD"})
	require.NoError(t, err)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("2.49")))

	got.Price = decimal.RequireFromString("2.99")
	_, err = s.UpdateProduct(ctx, got)
	require.NoError(t, err)

	list, err := s.ListProducts(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Price.Equal(decimal.RequireFromString("2.99")))

	require.NoError(t, s.DeleteProduct(ctx, p.ID))
	_, err = s.GetProduct(ctx, p.ID)
	assert.True(t, storage.IsNotFound(err))
}

func testShopping(t *testing.T, s storage.Stores) {
	ctx := context.Background()
	item, err := s.CreateShoppingItem(ctx, shopping.Item{OwnerID: "alice", Name: "flour", Quantity: decimal.NewFromInt(500), Unit: "g", SourceRecipeID: "r1"})
	require.NoError(t, err)

	item.Checked = true
	_, err = s.UpdateShoppingItem(ctx, item)
	require.NoError(t, err)

	got, err := s.GetShoppingItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, got.Checked)
	assert.Equal(t, "r1", got.SourceRecipeID)

	list, err := s.ListShoppingItems(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteShoppingItem(ctx, item.ID))
	assert.True(t, storage.IsNotFound(s.DeleteShoppingItem(ctx, item.ID)))
}

func testReceipts(t *testing.T, s storage.Stores) {
	ctx := context.Background()
	for _, date := range []string{"2024-02-28", "2024-03-05", "2024-03-31"} {
		_, err := s.CreateReceipt(ctx, receipt.Receipt{
			OwnerID:     "alice",
			Store:       "Market",
			PurchasedOn: date,
			Total:       decimal.RequireFromString("10.25"),
			Currency:    "USD",
			Lines:       []receipt.Line{{Description: "bread", Amount: decimal.RequireFromString("10.25")}},
		})
		require.NoError(t, err)
	}

	march, err := s.ListReceiptsBetween(ctx, "alice", "2024-03-01", "2024-03-31")
	require.NoError(t, err)
	require.Len(t, march, 2)
	assert.Equal(t, "2024-03-05", march[0].PurchasedOn)
	require.Len(t, march[0].Lines, 1)
	assert.Equal(t, "bread", march[0].Lines[0].Description)

	all, err := s.ListReceipts(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	r := all[0]
	r.Store = "Bakery"
	_, err = s.UpdateReceipt(ctx, r)
	require.NoError(t, err)
	got, err := s.GetReceipt(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bakery", got.Store)
	assert.WithinDuration(t, got.CreatedAt, got.UpdatedAt, time.Minute)

	require.NoError(t, s.DeleteReceipt(ctx, r.ID))
	_, err = s.GetReceipt(ctx, r.ID)
	assert.True(t, storage.IsNotFound(err))
}
