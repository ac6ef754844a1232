package memory

import (
	"context"
	"testing"

	"github.com/R3E-Network/souschef/internal/app/domain/recipe"
	"github.com/R3E-Network/souschef/internal/app/storage"
	"github.com/R3E-Network/souschef/internal/app/storage/storagetest"
	"github.com/R3E-Network/souschef/internal/app/watch"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Stores { return New() })
}

func TestStorePublishesChanges(t *testing.T) {
	var changes []watch.Change
	store := New(WithPublisher(watch.PublisherFunc(func(c watch.Change) { changes = append(changes, c) })))
	ctx := context.Background()

	r, err := store.CreateRecipe(ctx, recipe.Recipe{OwnerID: "alice", Name: "Soup", Servings: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	r.Name = "Tomato soup"
	if _, err := store.UpdateRecipe(ctx, r); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.DeleteRecipe(ctx, r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetRecipe(ctx, "missing"); err == nil {
		t.Fatalf("expected not found")
	}

	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(changes))
	}
	wantOps := []watch.Op{watch.OpCreate, watch.OpUpdate, watch.OpDelete}
	for i, c := range changes {
		if c.Op != wantOps[i] || c.OwnerID != "alice" || c.Collection != storage.CollectionRecipes || c.ID != r.ID {
			t.Fatalf("unexpected change %d: %+v", i, c)
		}
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	store := New()
	ctx := context.Background()
	r, _ := store.CreateRecipe(ctx, recipe.Recipe{OwnerID: "alice", Name: "Soup", Servings: 1, Tags: []string{"a"}})
	r.Tags[0] = "mutated"

	got, _ := store.GetRecipe(ctx, r.ID)
	if got.Tags[0] != "a" {
		t.Fatalf("store state was mutated through returned value: %v", got.Tags)
	}
}
