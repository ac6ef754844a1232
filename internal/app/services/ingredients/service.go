package ingredients

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/souschef/internal/app/domain/recipe"
	"github.com/R3E-Network/souschef/internal/app/services/common"
	"github.com/R3E-Network/souschef/internal/app/storage"
	svcerrors "github.com/R3E-Network/souschef/internal/errors"
	"github.com/R3E-Network/souschef/internal/logging"
)

// Input carries the editable ingredient fields. A nil Position appends the
// ingredient after the existing ones.
type Input struct {
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit"`
	Position *int            `json:"position"`
}

// Service manages the ingredients of recipes.
type Service struct {
	recipes storage.RecipeStore
	store   storage.IngredientStore
	log     *logging.Logger
}

// New constructs an ingredient service.
func New(recipes storage.RecipeStore, store storage.IngredientStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("ingredients")
	}
	return &Service{recipes: recipes, store: store, log: log}
}

func (s *Service) recipe(ctx context.Context, owner, recipeID string) (recipe.Recipe, error) {
	r, err := s.recipes.GetRecipe(ctx, recipeID)
	if err != nil {
		return recipe.Recipe{}, common.StoreError(err, "recipe", recipeID)
	}
	if err := common.Owned(owner, r.OwnerID, "recipe", recipeID); err != nil {
		return recipe.Recipe{}, err
	}
	return r, nil
}

func (s *Service) ingredient(ctx context.Context, owner, recipeID, id string) (recipe.Ingredient, error) {
	if _, err := s.recipe(ctx, owner, recipeID); err != nil {
		return recipe.Ingredient{}, err
	}
	ing, err := s.store.GetIngredient(ctx, id)
	if err != nil {
		return recipe.Ingredient{}, common.StoreError(err, "ingredient", id)
	}
	if ing.RecipeID != recipeID || ing.OwnerID != owner {
		return recipe.Ingredient{}, svcerrors.NotFound("ingredient", id)
	}
	return ing, nil
}

func (in Input) apply(ing *recipe.Ingredient) error {
	name, err := common.Required("name", in.Name)
	if err != nil {
		return err
	}
	if err := common.NonNegative("quantity", in.Quantity); err != nil {
		return err
	}
	if in.Position != nil && *in.Position < 0 {
		return svcerrors.InvalidFormat("position", "must not be negative")
	}
	ing.Name = name
	ing.Quantity = in.Quantity
	ing.Unit = strings.TrimSpace(in.Unit)
	if in.Position != nil {
		ing.Position = *in.Position
	}
	return nil
}

// List returns a recipe's ingredients in position order.
func (s *Service) List(ctx context.Context, owner, recipeID string) ([]recipe.Ingredient, error) {
	if _, err := s.recipe(ctx, owner, recipeID); err != nil {
		return nil, err
	}
	items, err := s.store.ListIngredients(ctx, recipeID)
	if err != nil {
		return nil, common.StoreError(err, "ingredient", "")
	}
	return items, nil
}

// Add appends an ingredient to a recipe.
func (s *Service) Add(ctx context.Context, owner, recipeID string, in Input) (recipe.Ingredient, error) {
	existing, err := s.List(ctx, owner, recipeID)
	if err != nil {
		return recipe.Ingredient{}, err
	}
	ing := recipe.Ingredient{OwnerID: owner, RecipeID: recipeID}
	if in.Position == nil {
		next := 0
		for _, e := range existing {
			if e.Position >= next {
				next = e.Position + 1
			}
		}
		ing.Position = next
	}
	if err := in.apply(&ing); err != nil {
		return recipe.Ingredient{}, err
	}
	created, err := s.store.CreateIngredient(ctx, ing)
	if err != nil {
		return recipe.Ingredient{}, common.StoreError(err, "ingredient", ing.ID)
	}
	return created, nil
}

// Update replaces an ingredient's fields.
func (s *Service) Update(ctx context.Context, owner, recipeID, id string, in Input) (recipe.Ingredient, error) {
	ing, err := s.ingredient(ctx, owner, recipeID, id)
	if err != nil {
		return recipe.Ingredient{}, err
	}
	if err := in.apply(&ing); err != nil {
		return recipe.Ingredient{}, err
	}
	updated, err := s.store.UpdateIngredient(ctx, ing)
	return updated, common.StoreError(err, "ingredient", id)
}

// Remove deletes an ingredient.
func (s *Service) Remove(ctx context.Context, owner, recipeID, id string) error {
	if _, err := s.ingredient(ctx, owner, recipeID, id); err != nil {
		return err
	}
	return common.StoreError(s.store.DeleteIngredient(ctx, id), "ingredient", id)
}

// Scaled returns the ingredients with quantities multiplied by
// servings / recipe.Servings. Servings of zero returns them unscaled.
func (s *Service) Scaled(ctx context.Context, owner, recipeID string, servings int) ([]recipe.Ingredient, error) {
	if servings < 0 {
		return nil, svcerrors.InvalidFormat("servings", "must not be negative")
	}
	r, err := s.recipe(ctx, owner, recipeID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListIngredients(ctx, recipeID)
	if err != nil {
		return nil, common.StoreError(err, "ingredient", "")
	}
	for i := range items {
		items[i].Quantity = Scale(items[i].Quantity, r.Servings, servings)
	}
	return items, nil
}

// Scale converts quantity from base servings to servings, rounding to four
// decimal places. It returns quantity unchanged when either count is not
// positive.
func Scale(quantity decimal.Decimal, base, servings int) decimal.Decimal {
	if servings <= 0 || base <= 0 || servings == base {
		return quantity
	}
	return quantity.Mul(decimal.NewFromInt(int64(servings))).DivRound(decimal.NewFromInt(int64(base)), 4)
}
