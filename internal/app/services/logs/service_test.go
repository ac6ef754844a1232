package logs

import (
	"context"
	"testing"

	"github.com/R3E-Network/souschef/internal/app/domain/logbook"
	"github.com/R3E-Network/souschef/internal/app/domain/product"
	"github.com/R3E-Network/souschef/internal/app/domain/recipe"
	"github.com/R3E-Network/souschef/internal/app/storage"
	"github.com/R3E-Network/souschef/internal/app/storage/memory"
	svcerrors "github.com/R3E-Network/souschef/internal/errors"
	"github.com/R3E-Network/souschef/internal/logging"
)

func TestSaveUpsertsPerDay(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, logging.Discard())
	ctx := context.Background()

	r, _ := store.CreateRecipe(ctx, recipe.Recipe{OwnerID: "alice", Name: "Soup", Servings: 2})
	p, _ := store.CreateProduct(ctx, product.Product{OwnerID: "alice", Name: "Bread"})

	first, err := svc.Save(ctx, "alice", "2024-05-01", Entry{RecipeIDs: []string{r.ID, r.ID}, Note: " tasty "})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(first.RecipeIDs) != 1 || first.Note != "tasty" || first.ProductIDs == nil {
		t.Fatalf("unexpected log: %+v", first)
	}

	second, err := svc.Save(ctx, "alice", "2024-05-01", Entry{RecipeIDs: []string{r.ID}, ProductIDs: []string{p.ID}, Rating: 3})
	if err != nil {
		t.Fatalf("save again: %v", err)
	}
	if second.ID != first.ID || second.Rating != 3 || len(second.ProductIDs) != 1 {
		t.Fatalf("expected same log updated, got %+v", second)
	}

	all, _ := svc.List(ctx, "alice")
	if len(all) != 1 {
		t.Fatalf("expected one log, got %d", len(all))
	}
}

func TestSaveRejectsForeignReferencesAndBadInput(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, logging.Discard())
	ctx := context.Background()
	bobs, _ := store.CreateRecipe(ctx, recipe.Recipe{OwnerID: "bob", Name: "Secret"})

	if _, err := svc.Save(ctx, "alice", "2024-05-01", Entry{RecipeIDs: []string{bobs.ID}}); !svcerrors.HasCode(err, svcerrors.CodeInvalidInput) {
		t.Fatalf("expected foreign recipe to be rejected, got %v", err)
	}
	if _, err := svc.Save(ctx, "alice", "2024-05-01", Entry{ProductIDs: []string{"nope"}}); !svcerrors.HasCode(err, svcerrors.CodeInvalidInput) {
		t.Fatalf("expected unknown product to be rejected, got %v", err)
	}
	if _, err := svc.Save(ctx, "alice", "05/01/2024", Entry{}); !svcerrors.HasCode(err, svcerrors.CodeInvalidFormat) {
		t.Fatalf("expected bad date, got %v", err)
	}
	if _, err := svc.Save(ctx, "alice", "2024-05-01", Entry{Rating: 9}); !svcerrors.HasCode(err, svcerrors.CodeInvalidFormat) {
		t.Fatalf("expected bad rating, got %v", err)
	}
}

func TestForDateRateBetweenDelete(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, logging.Discard())
	ctx := context.Background()

	if _, err := svc.ForDate(ctx, "alice", "2024-05-01"); !svcerrors.HasCode(err, svcerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	rated, err := svc.Rate(ctx, "alice", "2024-05-01", 5)
	if err != nil || rated.Rating != 5 {
		t.Fatalf("rate missing day: %+v %v", rated, err)
	}
	rated, err = svc.Rate(ctx, "alice", "2024-05-01", 2)
	if err != nil || rated.Rating != 2 {
		t.Fatalf("rate existing day: %+v %v", rated, err)
	}

	for _, d := range []string{"2024-05-03", "2024-04-30", "2024-05-10"} {
		if _, err := svc.Save(ctx, "alice", d, Entry{}); err != nil {
			t.Fatalf("save %s: %v", d, err)
		}
	}
	between, err := svc.Between(ctx, "alice", "2024-05-01", "2024-05-05")
	if err != nil {
		t.Fatalf("between: %v", err)
	}
	if len(between) != 2 || between[0].Date != "2024-05-01" || between[1].Date != "2024-05-03" {
		t.Fatalf("unexpected range: %+v", between)
	}
	open, _ := svc.Between(ctx, "alice", "2024-05-03", "")
	if len(open) != 2 {
		t.Fatalf("expected open range of 2, got %d", len(open))
	}
	if _, err := svc.Between(ctx, "alice", "2024-06-01", "2024-05-01"); !svcerrors.HasCode(err, svcerrors.CodeInvalidInput) {
		t.Fatalf("expected inverted range error, got %v", err)
	}

	days, err := svc.Dates(ctx, "alice", []string{"2024-05-10", "2024-05-02", "2024-05-10"})
	if err != nil || len(days) != 1 || days[0].Date != "2024-05-10" {
		t.Fatalf("dates: %+v %v", days, err)
	}

	if err := svc.Delete(ctx, "alice", "2024-05-01"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, "alice", "2024-05-01"); !svcerrors.HasCode(err, svcerrors.CodeNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

// lateLogStore reports the day as empty once, after another writer has
// already created it.
type lateLogStore struct {
	*memory.Store
	raced bool
}

func (s *lateLogStore) GetLogByDate(ctx context.Context, owner, date string) (logbook.Log, error) {
	if !s.raced {
		s.raced = true
		if _, err := s.Store.CreateLog(ctx, logbook.Log{OwnerID: owner, Date: date, Note: "other writer"}); err != nil {
			return logbook.Log{}, err
		}
		return logbook.Log{}, storage.NotFound("log", date)
	}
	return s.Store.GetLogByDate(ctx, owner, date)
}

func TestSaveUpdatesLogCreatedConcurrently(t *testing.T) {
	store := &lateLogStore{Store: memory.New()}
	svc := New(store, store, store, logging.Discard())
	ctx := context.Background()

	saved, err := svc.Save(ctx, "alice", "2024-05-03", Entry{Rating: 4, Note: "mine"})
	if err != nil {
		t.Fatalf("save after a concurrent create: %v", err)
	}
	if saved.Note != "mine" || saved.Rating != 4 {
		t.Fatalf("expected own entry to win, got %+v", saved)
	}
	all, _ := svc.List(ctx, "alice")
	if len(all) != 1 || all[0].ID != saved.ID {
		t.Fatalf("expected a single log for the day, got %+v", all)
	}
}
