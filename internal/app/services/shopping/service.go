package shopping

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/souschef/internal/app/domain/logbook"
	"github.com/R3E-Network/souschef/internal/app/domain/recipe"
	domain "github.com/R3E-Network/souschef/internal/app/domain/shopping"
	"github.com/R3E-Network/souschef/internal/app/mirror"
	"github.com/R3E-Network/souschef/internal/app/services/common"
	"github.com/R3E-Network/souschef/internal/app/storage"
	svcerrors "github.com/R3E-Network/souschef/internal/errors"
	"github.com/R3E-Network/souschef/internal/logging"
)

// Input carries the editable item fields.
type Input struct {
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit"`
	Checked  bool            `json:"checked"`
}

// Result reports what a reconciliation changed and the list afterwards.
type Result struct {
	Added   int           `json:"added"`
	Updated int           `json:"updated"`
	Deleted int           `json:"deleted"`
	Items   []domain.Item `json:"items"`
	Needs   []Need        `json:"needs,omitempty"`
}

// DayLogs looks up an owner's logs for a set of days, skipping days without
// one. The logs service implements it.
type DayLogs interface {
	Dates(ctx context.Context, owner string, dates []string) ([]logbook.Log, error)
}

// Service manages the shopping list.
type Service struct {
	store       storage.ShoppingStore
	days        DayLogs
	recipes     storage.RecipeStore
	ingredients storage.IngredientStore
	log         *logging.Logger
}

// New constructs a shopping service.
func New(store storage.ShoppingStore, days DayLogs, recipes storage.RecipeStore, ingredients storage.IngredientStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("shopping")
	}
	return &Service{store: store, days: days, recipes: recipes, ingredients: ingredients, log: log}
}

func (in Input) apply(item *domain.Item) error {
	name, err := common.Required("name", in.Name)
	if err != nil {
		return err
	}
	if err := common.NonNegative("quantity", in.Quantity); err != nil {
		return err
	}
	item.Name = name
	item.Quantity = in.Quantity
	item.Unit = strings.TrimSpace(in.Unit)
	item.Checked = in.Checked
	return nil
}

// List returns owner's items, oldest first.
func (s *Service) List(ctx context.Context, owner string) ([]domain.Item, error) {
	items, err := s.store.ListShoppingItems(ctx, owner)
	if err != nil {
		return nil, common.StoreError(err, "shopping item", "")
	}
	return items, nil
}

func (s *Service) Create(ctx context.Context, owner string, in Input) (domain.Item, error) {
	if owner == "" {
		return domain.Item{}, svcerrors.Unauthorized("")
	}
	item := domain.Item{OwnerID: owner}
	if err := in.apply(&item); err != nil {
		return domain.Item{}, err
	}
	created, err := s.store.CreateShoppingItem(ctx, item)
	return created, common.StoreError(err, "shopping item", item.ID)
}

func (s *Service) get(ctx context.Context, owner, id string) (domain.Item, error) {
	item, err := s.store.GetShoppingItem(ctx, id)
	if err != nil {
		return domain.Item{}, common.StoreError(err, "shopping item", id)
	}
	if err := common.Owned(owner, item.OwnerID, "shopping item", id); err != nil {
		return domain.Item{}, err
	}
	return item, nil
}

// Update replaces an item's fields. Editing a generated item makes it a
// manual one, so later reconciliations leave it alone.
func (s *Service) Update(ctx context.Context, owner, id string, in Input) (domain.Item, error) {
	item, err := s.get(ctx, owner, id)
	if err != nil {
		return domain.Item{}, err
	}
	if err := in.apply(&item); err != nil {
		return domain.Item{}, err
	}
	item.SourceRecipeID = ""
	updated, err := s.store.UpdateShoppingItem(ctx, item)
	return updated, common.StoreError(err, "shopping item", id)
}

// Toggle flips an item's checked state.
func (s *Service) Toggle(ctx context.Context, owner, id string) (domain.Item, error) {
	item, err := s.get(ctx, owner, id)
	if err != nil {
		return domain.Item{}, err
	}
	item.Checked = !item.Checked
	updated, err := s.store.UpdateShoppingItem(ctx, item)
	return updated, common.StoreError(err, "shopping item", id)
}

func (s *Service) Delete(ctx context.Context, owner, id string) error {
	if _, err := s.get(ctx, owner, id); err != nil {
		return err
	}
	return common.StoreError(s.store.DeleteShoppingItem(ctx, id), "shopping item", id)
}

// ClearChecked deletes every checked item and returns how many went.
func (s *Service) ClearChecked(ctx context.Context, owner string) (int, error) {
	items, err := s.List(ctx, owner)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, item := range items {
		if !item.Checked {
			continue
		}
		if err := s.store.DeleteShoppingItem(ctx, item.ID); err != nil && !storage.IsNotFound(err) {
			return removed, common.StoreError(err, "shopping item", item.ID)
		}
		removed++
	}
	return removed, nil
}

// Needs aggregates the ingredients of the recipes logged on dates. Days
// without a log contribute nothing.
func (s *Service) Needs(ctx context.Context, owner string, dates []string, servings int) ([]Need, error) {
	if servings < 0 {
		return nil, svcerrors.InvalidFormat("servings", "must not be negative")
	}
	logs, err := s.days.Dates(ctx, owner, dates)
	if err != nil {
		return nil, err
	}

	recipes := make(map[string]recipe.Recipe)
	items := make(map[string][]recipe.Ingredient)
	for _, l := range logs {
		for _, id := range l.RecipeIDs {
			if _, done := recipes[id]; done {
				continue
			}
			r, err := s.recipes.GetRecipe(ctx, id)
			if storage.IsNotFound(err) || (err == nil && r.OwnerID != owner) {
				continue
			}
			if err != nil {
				return nil, common.StoreError(err, "recipe", id)
			}
			ings, err := s.ingredients.ListIngredients(ctx, id)
			if err != nil {
				return nil, common.StoreError(err, "ingredient", "")
			}
			recipes[id] = r
			items[id] = ings
		}
	}
	return Aggregate(logs, recipes, items, servings), nil
}

// FromDays rebuilds the generated part of the list from the recipes logged
// on dates. Items added or edited by hand are kept as they are, so a manual
// and a generated item may share a key; generated items keep their checked
// state when their quantity is unchanged.
func (s *Service) FromDays(ctx context.Context, owner string, dates []string, servings int) (Result, error) {
	needs, err := s.Needs(ctx, owner, dates, servings)
	if err != nil {
		return Result{}, err
	}
	current, err := s.List(ctx, owner)
	if err != nil {
		return Result{}, err
	}

	generated := make([]domain.Item, 0, len(current))
	for _, item := range current {
		if item.Generated() {
			generated = append(generated, item)
		}
	}
	desired := make([]domain.Item, 0, len(needs))
	for _, n := range needs {
		desired = append(desired, domain.Item{
			OwnerID:        owner,
			Name:           n.Name,
			Quantity:       n.Quantity,
			Unit:           n.Unit,
			SourceRecipeID: n.RecipeIDs[0],
		})
	}

	plan := mirror.Diff(desired, generated, domain.Item.Key, func(want, have domain.Item) bool {
		return want.Quantity.Equal(have.Quantity) && want.Name == have.Name && want.Unit == have.Unit &&
			want.SourceRecipeID == have.SourceRecipeID
	})
	res, err := s.apply(ctx, owner, plan, generated, true)
	if err != nil {
		return Result{}, err
	}
	res.Needs = needs
	s.log.WithContext(ctx).WithField("added", res.Added).WithField("updated", res.Updated).
		WithField("deleted", res.Deleted).Info("shopping list rebuilt from logs")
	return res, nil
}

// Reconcile makes the whole list equal to desired, matching items by name
// and unit. Matched items keep their ids; further items under a matched key
// are deleted.
func (s *Service) Reconcile(ctx context.Context, owner string, desired []Input) (Result, error) {
	if owner == "" {
		return Result{}, svcerrors.Unauthorized("")
	}
	want := make([]domain.Item, 0, len(desired))
	for i, in := range desired {
		item := domain.Item{OwnerID: owner}
		if err := in.apply(&item); err != nil {
			return Result{}, svcerrors.GetServiceError(err).WithDetails("index", i)
		}
		want = append(want, item)
	}
	current, err := s.List(ctx, owner)
	if err != nil {
		return Result{}, err
	}
	plan := mirror.Diff(want, current, domain.Item.Key, func(a, b domain.Item) bool {
		return a.Quantity.Equal(b.Quantity) && a.Name == b.Name && a.Unit == b.Unit &&
			a.Checked == b.Checked && b.SourceRecipeID == ""
	})
	return s.apply(ctx, owner, plan, current, false)
}

// apply executes plan against target. Target items shadowed by a later item
// with the same key are deleted too, so every key ends up with one item.
// keepChecked carries the checked flag of matched items over to their
// replacements.
func (s *Service) apply(ctx context.Context, owner string, plan mirror.Plan[domain.Item], target []domain.Item, keepChecked bool) (Result, error) {
	existing := make(map[string]domain.Item, len(target))
	for _, item := range target {
		existing[item.Key()] = item
	}

	deletes := append(mirror.Shadowed(target, domain.Item.Key), plan.Delete...)
	for _, item := range deletes {
		if err := s.store.DeleteShoppingItem(ctx, item.ID); err != nil && !storage.IsNotFound(err) {
			return Result{}, common.StoreError(err, "shopping item", item.ID)
		}
	}
	for _, want := range plan.Update {
		have := existing[want.Key()]
		if keepChecked {
			have.Checked = have.Checked && have.Quantity.Equal(want.Quantity)
		} else {
			have.Checked = want.Checked
		}
		have.Name = want.Name
		have.Quantity = want.Quantity
		have.Unit = want.Unit
		have.SourceRecipeID = want.SourceRecipeID
		if _, err := s.store.UpdateShoppingItem(ctx, have); err != nil {
			return Result{}, common.StoreError(err, "shopping item", have.ID)
		}
	}
	for _, want := range plan.Add {
		if _, err := s.store.CreateShoppingItem(ctx, want); err != nil {
			return Result{}, common.StoreError(err, "shopping item", "")
		}
	}

	items, err := s.List(ctx, owner)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Added:   len(plan.Add),
		Updated: len(plan.Update),
		Deleted: len(deletes),
		Items:   items,
	}, nil
}
