package ingredients

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/souschef/internal/app/domain/recipe"
	"github.com/R3E-Network/souschef/internal/app/storage/memory"
	svcerrors "github.com/R3E-Network/souschef/internal/errors"
	"github.com/R3E-Network/souschef/internal/logging"
)

func setup(t *testing.T) (*Service, recipe.Recipe) {
	t.Helper()
	store := memory.New()
	r, err := store.CreateRecipe(context.Background(), recipe.Recipe{OwnerID: "alice", Name: "Pancakes", Servings: 4})
	if err != nil {
		t.Fatalf("create recipe: %v", err)
	}
	return New(store, store, logging.Discard()), r
}

func TestAddAppendsInPositionOrder(t *testing.T) {
	svc, r := setup(t)
	ctx := context.Background()

	for _, name := range []string{"flour", "milk", "egg"} {
		if _, err := svc.Add(ctx, "alice", r.ID, Input{Name: name, Quantity: decimal.NewFromInt(1)}); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	items, err := svc.List(ctx, "alice", r.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 || items[0].Name != "flour" || items[2].Name != "egg" || items[2].Position != 2 {
		t.Fatalf("unexpected order: %+v", items)
	}

	if _, err := svc.Add(ctx, "alice", r.ID, Input{Name: "salt", Quantity: decimal.NewFromInt(-1)}); !svcerrors.HasCode(err, svcerrors.CodeInvalidFormat) {
		t.Fatalf("expected negative quantity error, got %v", err)
	}
	if _, err := svc.Add(ctx, "bob", r.ID, Input{Name: "salt"}); !svcerrors.HasCode(err, svcerrors.CodeNotFound) {
		t.Fatalf("expected other owner to be rejected, got %v", err)
	}
}

func TestUpdateAndRemoveCheckRecipe(t *testing.T) {
	svc, r := setup(t)
	ctx := context.Background()

	ing, err := svc.Add(ctx, "alice", r.ID, Input{Name: "flour", Quantity: decimal.NewFromInt(200), Unit: "g"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	pos := 5
	updated, err := svc.Update(ctx, "alice", r.ID, ing.ID, Input{Name: "spelt flour", Quantity: decimal.NewFromInt(250), Unit: "g", Position: &pos})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "spelt flour" || updated.Position != 5 {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if err := svc.Remove(ctx, "alice", "other-recipe", ing.ID); !svcerrors.HasCode(err, svcerrors.CodeNotFound) {
		t.Fatalf("expected not found for wrong recipe, got %v", err)
	}
	if err := svc.Remove(ctx, "alice", r.ID, ing.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if items, _ := svc.List(ctx, "alice", r.ID); len(items) != 0 {
		t.Fatalf("expected empty list, got %+v", items)
	}
}

func TestScaled(t *testing.T) {
	svc, r := setup(t)
	ctx := context.Background()
	if _, err := svc.Add(ctx, "alice", r.ID, Input{Name: "flour", Quantity: decimal.NewFromInt(300), Unit: "g"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	cases := map[int]string{0: "300", 4: "300", 2: "150", 6: "450", 3: "225"}
	for servings, want := range cases {
		items, err := svc.Scaled(ctx, "alice", r.ID, servings)
		if err != nil {
			t.Fatalf("scaled(%d): %v", servings, err)
		}
		if !items[0].Quantity.Equal(decimal.RequireFromString(want)) {
			t.Errorf("scaled(%d) = %s, want %s", servings, items[0].Quantity, want)
		}
	}
	if _, err := svc.Scaled(ctx, "alice", r.ID, -1); !svcerrors.HasCode(err, svcerrors.CodeInvalidFormat) {
		t.Fatalf("expected invalid servings, got %v", err)
	}
}

func TestScaleRounds(t *testing.T) {
	got := Scale(decimal.NewFromInt(100), 3, 1)
	if !got.Equal(decimal.RequireFromString("33.3333")) {
		t.Fatalf("Scale = %s", got)
	}
}
