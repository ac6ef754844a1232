package shopping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/souschef/internal/app/domain/logbook"
	"github.com/R3E-Network/souschef/internal/app/domain/recipe"
	domain "github.com/R3E-Network/souschef/internal/app/domain/shopping"
	"github.com/R3E-Network/souschef/internal/app/services/logs"
	"github.com/R3E-Network/souschef/internal/app/storage/memory"
	svcerrors "github.com/R3E-Network/souschef/internal/errors"
	"github.com/R3E-Network/souschef/internal/logging"
)

func seeded(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	pancakes, err := store.CreateRecipe(ctx, recipe.Recipe{OwnerID: "alice", Name: "Pancakes", Servings: 2})
	require.NoError(t, err)
	for i, ing := range []recipe.Ingredient{
		{Name: "Flour", Quantity: qty("0.25"), Unit: "kg"},
		{Name: "Milk", Quantity: qty("300"), Unit: "ml"},
	} {
		ing.OwnerID, ing.RecipeID, ing.Position = "alice", pancakes.ID, i
		_, err := store.CreateIngredient(ctx, ing)
		require.NoError(t, err)
	}
	foreign, err := store.CreateRecipe(ctx, recipe.Recipe{OwnerID: "bob", Name: "Stew", Servings: 1})
	require.NoError(t, err)
	_, err = store.CreateIngredient(ctx, recipe.Ingredient{OwnerID: "bob", RecipeID: foreign.ID, Name: "Beef", Quantity: qty("1"), Unit: "kg"})
	require.NoError(t, err)

	for _, date := range []string{"2024-03-01", "2024-03-02"} {
		_, err := store.CreateLog(ctx, logbook.Log{OwnerID: "alice", Date: date, RecipeIDs: []string{pancakes.ID, foreign.ID}})
		require.NoError(t, err)
	}
	days := logs.New(store, store, store, logging.Discard())
	return New(store, days, store, store, logging.Discard()), store
}

func byName(items []domain.Item) map[string]domain.Item {
	out := make(map[string]domain.Item, len(items))
	for _, item := range items {
		out[item.Name] = item
	}
	return out
}

func TestManualItems(t *testing.T) {
	svc, _ := seeded(t)
	ctx := context.Background()

	item, err := svc.Create(ctx, "alice", Input{Name: " Eggs ", Quantity: qty("6")})
	require.NoError(t, err)
	assert.Equal(t, "Eggs", item.Name)
	assert.False(t, item.Generated())

	_, err = svc.Create(ctx, "alice", Input{Name: ""})
	assert.True(t, svcerrors.HasCode(err, svcerrors.CodeInvalidInput), "%v", err)
	_, err = svc.Create(ctx, "alice", Input{Name: "Negative", Quantity: qty("-1")})
	assert.True(t, svcerrors.HasCode(err, svcerrors.CodeInvalidFormat), "%v", err)

	toggled, err := svc.Toggle(ctx, "alice", item.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Checked)

	_, err = svc.Toggle(ctx, "bob", item.ID)
	assert.True(t, svcerrors.HasCode(err, svcerrors.CodeNotFound))

	_, err = svc.Create(ctx, "alice", Input{Name: "Bread"})
	require.NoError(t, err)
	removed, err := svc.ClearChecked(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	items, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Bread", items[0].Name)

	require.NoError(t, svc.Delete(ctx, "alice", items[0].ID))
	assert.True(t, svcerrors.HasCode(svc.Delete(ctx, "alice", items[0].ID), svcerrors.CodeNotFound))
}

func TestFromDaysBuildsGeneratedItems(t *testing.T) {
	svc, _ := seeded(t)
	ctx := context.Background()

	manual, err := svc.Create(ctx, "alice", Input{Name: "Coffee"})
	require.NoError(t, err)

	res, err := svc.FromDays(ctx, "alice", []string{"2024-03-01", "2024-03-02", "2024-03-02", "2024-03-05"}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
	require.Len(t, res.Needs, 2)

	items := byName(res.Items)
	require.Len(t, items, 3)
	assert.True(t, items["flour"].Quantity.Equal(qty("500")), items["flour"].Quantity.String())
	assert.Equal(t, "g", items["flour"].Unit)
	assert.True(t, items["milk"].Quantity.Equal(qty("600")))
	assert.True(t, items["flour"].Generated())
	assert.Equal(t, manual.ID, items["Coffee"].ID)
	_, leaked := items["beef"]
	assert.False(t, leaked, "foreign recipe must not contribute")

	checked, err := svc.Toggle(ctx, "alice", items["milk"].ID)
	require.NoError(t, err)
	require.True(t, checked.Checked)

	again, err := svc.FromDays(ctx, "alice", []string{"2024-03-01", "2024-03-02"}, 0)
	require.NoError(t, err)
	assert.Zero(t, again.Added+again.Updated+again.Deleted)
	assert.True(t, byName(again.Items)["milk"].Checked)

	one, err := svc.FromDays(ctx, "alice", []string{"2024-03-01"}, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, one.Added)
	assert.Equal(t, 2, one.Updated)
	after := byName(one.Items)
	assert.Equal(t, items["milk"].ID, after["milk"].ID)
	assert.True(t, after["milk"].Quantity.Equal(qty("150")), after["milk"].Quantity.String())
	assert.False(t, after["milk"].Checked, "a changed quantity clears the check")
	assert.True(t, after["flour"].Quantity.Equal(qty("125")))

	none, err := svc.FromDays(ctx, "alice", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, none.Deleted)
	require.Len(t, none.Items, 1)
	assert.Equal(t, "Coffee", none.Items[0].Name)
}

func TestFromDaysRejectsBadInput(t *testing.T) {
	svc, _ := seeded(t)
	ctx := context.Background()

	_, err := svc.FromDays(ctx, "alice", []string{"03/01/2024"}, 0)
	assert.True(t, svcerrors.HasCode(err, svcerrors.CodeInvalidFormat))
	_, err = svc.FromDays(ctx, "alice", []string{"2024-03-01"}, -1)
	assert.True(t, svcerrors.HasCode(err, svcerrors.CodeInvalidFormat))
}

func TestReconcileReplacesWholeList(t *testing.T) {
	svc, _ := seeded(t)
	ctx := context.Background()

	keep, err := svc.Create(ctx, "alice", Input{Name: "Tea", Quantity: qty("1"), Unit: "box"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "alice", Input{Name: "Sugar"})
	require.NoError(t, err)

	res, err := svc.Reconcile(ctx, "alice", []Input{
		{Name: "tea", Quantity: qty("2"), Unit: "Box"},
		{Name: "Lemons", Quantity: qty("3")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Deleted)

	items := byName(res.Items)
	require.Len(t, items, 2)
	assert.Equal(t, keep.ID, items["tea"].ID)
	assert.True(t, items["tea"].Quantity.Equal(qty("2")))

	_, err = svc.Reconcile(ctx, "alice", []Input{{Name: "ok"}, {Name: " "}})
	assert.Error(t, err)
}

func TestReconcileCollapsesManualAndGeneratedTwins(t *testing.T) {
	svc, store := seeded(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "alice", Input{Name: "Flour", Quantity: qty("1000"), Unit: "g"})
	require.NoError(t, err)
	built, err := svc.FromDays(ctx, "alice", []string{"2024-03-01"}, 0)
	require.NoError(t, err)
	require.Len(t, built.Items, 3, "the manual flour stays next to the generated one")

	res, err := svc.Reconcile(ctx, "alice", []Input{{Name: "Flour", Quantity: qty("2"), Unit: "G"}})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.True(t, res.Items[0].Quantity.Equal(qty("2")))
	assert.False(t, res.Items[0].Generated())
	assert.Equal(t, 2, res.Deleted)

	left, err := store.ListShoppingItems(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestFromDaysKeepsUnknownUnitSpellingsTogether(t *testing.T) {
	svc, store := seeded(t)
	ctx := context.Background()

	pesto, err := store.CreateRecipe(ctx, recipe.Recipe{OwnerID: "alice", Name: "Pesto", Servings: 1})
	require.NoError(t, err)
	for i, ing := range []recipe.Ingredient{
		{Name: "Basil", Quantity: qty("1"), Unit: "Handful"},
		{Name: "Basil", Quantity: qty("2"), Unit: "handful"},
		{Name: "Basil", Quantity: qty("5"), Unit: "leaves"},
	} {
		ing.OwnerID, ing.RecipeID, ing.Position = "alice", pesto.ID, i
		_, err := store.CreateIngredient(ctx, ing)
		require.NoError(t, err)
	}
	_, err = store.CreateLog(ctx, logbook.Log{OwnerID: "alice", Date: "2024-03-09", RecipeIDs: []string{pesto.ID}})
	require.NoError(t, err)

	res, err := svc.FromDays(ctx, "alice", []string{"2024-03-09"}, 0)
	require.NoError(t, err)
	require.Len(t, res.Needs, 2)
	require.Len(t, res.Items, len(res.Needs), "every need gets its own item")
	for _, item := range res.Items {
		switch item.Unit {
		case "Handful":
			assert.True(t, item.Quantity.Equal(qty("3")), item.Quantity.String())
		case "leaves":
			assert.True(t, item.Quantity.Equal(qty("5")))
		default:
			t.Fatalf("unexpected item %+v", item)
		}
	}
}
