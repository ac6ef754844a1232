package recipes

import (
	"context"
	"strings"

	"github.com/R3E-Network/souschef/internal/app/domain/recipe"
	"github.com/R3E-Network/souschef/internal/app/services/common"
	"github.com/R3E-Network/souschef/internal/app/storage"
	svcerrors "github.com/R3E-Network/souschef/internal/errors"
	"github.com/R3E-Network/souschef/internal/logging"
)

// Input carries the editable recipe fields.
type Input struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Servings     int      `json:"servings"`
	Instructions []string `json:"instructions"`
	Tags         []string `json:"tags"`
	Rating       int      `json:"rating"`
}

// Filter narrows List. Tag matches exactly after normalisation; Query is a
// case-insensitive substring of the name.
type Filter struct {
	Tag   string
	Query string
}

// Service manages recipes.
type Service struct {
	store       storage.RecipeStore
	ingredients storage.IngredientStore
	log         *logging.Logger
}

// New constructs a recipe service. Deleting a recipe also deletes its
// ingredients from ingredients.
func New(store storage.RecipeStore, ingredients storage.IngredientStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("recipes")
	}
	return &Service{store: store, ingredients: ingredients, log: log}
}

func (in Input) apply(r *recipe.Recipe) error {
	name, err := common.Required("name", in.Name)
	if err != nil {
		return err
	}
	if in.Servings < 0 {
		return svcerrors.InvalidFormat("servings", "must be at least 1")
	}
	if err := common.Rating(in.Rating, recipe.MaxRating); err != nil {
		return err
	}
	servings := in.Servings
	if servings == 0 {
		servings = 1
	}
	steps := make([]string, 0, len(in.Instructions))
	for _, step := range in.Instructions {
		if step = strings.TrimSpace(step); step != "" {
			steps = append(steps, step)
		}
	}

	r.Name = name
	r.Description = strings.TrimSpace(in.Description)
	r.Servings = servings
	r.Instructions = steps
	r.Tags = recipe.NormalizeTags(in.Tags)
	r.Rating = in.Rating
	return nil
}

// Create stores a new recipe for owner.
func (s *Service) Create(ctx context.Context, owner string, in Input) (recipe.Recipe, error) {
	if owner == "" {
		return recipe.Recipe{}, svcerrors.Unauthorized("")
	}
	r := recipe.Recipe{OwnerID: owner}
	if err := in.apply(&r); err != nil {
		return recipe.Recipe{}, err
	}
	created, err := s.store.CreateRecipe(ctx, r)
	if err != nil {
		return recipe.Recipe{}, common.StoreError(err, "recipe", r.ID)
	}
	s.log.WithContext(ctx).WithField("recipe_id", created.ID).Info("recipe created")
	return created, nil
}

// Get returns one of owner's recipes.
func (s *Service) Get(ctx context.Context, owner, id string) (recipe.Recipe, error) {
	r, err := s.store.GetRecipe(ctx, id)
	if err != nil {
		return recipe.Recipe{}, common.StoreError(err, "recipe", id)
	}
	if err := common.Owned(owner, r.OwnerID, "recipe", id); err != nil {
		return recipe.Recipe{}, err
	}
	return r, nil
}

// Update replaces the editable fields of a recipe.
func (s *Service) Update(ctx context.Context, owner, id string, in Input) (recipe.Recipe, error) {
	r, err := s.Get(ctx, owner, id)
	if err != nil {
		return recipe.Recipe{}, err
	}
	if err := in.apply(&r); err != nil {
		return recipe.Recipe{}, err
	}
	updated, err := s.store.UpdateRecipe(ctx, r)
	return updated, common.StoreError(err, "recipe", id)
}

// Rate sets the recipe rating; zero clears it.
func (s *Service) Rate(ctx context.Context, owner, id string, rating int) (recipe.Recipe, error) {
	if err := common.Rating(rating, recipe.MaxRating); err != nil {
		return recipe.Recipe{}, err
	}
	r, err := s.Get(ctx, owner, id)
	if err != nil {
		return recipe.Recipe{}, err
	}
	r.Rating = rating
	updated, err := s.store.UpdateRecipe(ctx, r)
	return updated, common.StoreError(err, "recipe", id)
}

// List returns owner's recipes matching f, oldest first.
func (s *Service) List(ctx context.Context, owner string, f Filter) ([]recipe.Recipe, error) {
	all, err := s.store.ListRecipes(ctx, owner)
	if err != nil {
		return nil, common.StoreError(err, "recipe", "")
	}
	tag := strings.ToLower(strings.TrimSpace(f.Tag))
	query := strings.ToLower(strings.TrimSpace(f.Query))
	if tag == "" && query == "" {
		return all, nil
	}
	out := make([]recipe.Recipe, 0, len(all))
	for _, r := range all {
		if tag != "" && !r.HasTag(tag) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(r.Name), query) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Delete removes a recipe and its ingredients.
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	if _, err := s.Get(ctx, owner, id); err != nil {
		return err
	}
	if s.ingredients != nil {
		items, err := s.ingredients.ListIngredients(ctx, id)
		if err != nil {
			return common.StoreError(err, "ingredient", "")
		}
		for _, ing := range items {
			if err := s.ingredients.DeleteIngredient(ctx, ing.ID); err != nil && !storage.IsNotFound(err) {
				return common.StoreError(err, "ingredient", ing.ID)
			}
		}
	}
	if err := s.store.DeleteRecipe(ctx, id); err != nil {
		return common.StoreError(err, "recipe", id)
	}
	s.log.WithContext(ctx).WithField("recipe_id", id).Info("recipe deleted")
	return nil
}
