package sqlstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/R3E-Network/souschef/internal/app/domain/recipe"
	"github.com/R3E-Network/souschef/internal/app/storage"
	"github.com/R3E-Network/souschef/internal/app/watch"
)

var recipeColumns = []string{"id", "owner_id", "name", "description", "servings", "instructions", "tags", "rating", "created_at", "updated_at"}

type recipeRow struct {
	ID           string               `db:"id"`
	OwnerID      string               `db:"owner_id"`
	Name         string               `db:"name"`
	Description  string               `db:"description"`
	Servings     int                  `db:"servings"`
	Instructions jsonColumn[[]string] `db:"instructions"`
	Tags         jsonColumn[[]string] `db:"tags"`
	Rating       int                  `db:"rating"`
	CreatedAt    time.Time            `db:"created_at"`
	UpdatedAt    time.Time            `db:"updated_at"`
}

func toRecipeRow(r recipe.Recipe) recipeRow {
	return recipeRow{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		Name:         r.Name,
		Description:  r.Description,
		Servings:     r.Servings,
		Instructions: jsonColumn[[]string]{V: nonNil(r.Instructions)},
		Tags:         jsonColumn[[]string]{V: nonNil(r.Tags)},
		Rating:       r.Rating,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (r recipeRow) domain() recipe.Recipe {
	return recipe.Recipe{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		Name:         r.Name,
		Description:  r.Description,
		Servings:     r.Servings,
		Instructions: nonNil(r.Instructions.V),
		Tags:         nonNil(r.Tags.V),
		Rating:       r.Rating,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

const selectRecipe = "SELECT id, owner_id, name, description, servings, instructions, tags, rating, created_at, updated_at FROM recipes"

func (s *Store) CreateRecipe(ctx context.Context, r recipe.Recipe) (recipe.Recipe, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := s.now()
	r.CreatedAt = now
	r.UpdatedAt = now

	row := toRecipeRow(r)
	if err := s.insert(ctx, "recipes", recipeColumns, row); err != nil {
		return recipe.Recipe{}, err
	}
	s.notify(r.OwnerID, storage.CollectionRecipes, r.ID, watch.OpCreate)
	return row.domain(), nil
}

func (s *Store) UpdateRecipe(ctx context.Context, r recipe.Recipe) (recipe.Recipe, error) {
	existing, err := s.GetRecipe(ctx, r.ID)
	if err != nil {
		return recipe.Recipe{}, err
	}
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = s.now()

	row := toRecipeRow(r)
	ok, err := s.update(ctx, "recipes", recipeColumns, row)
	if err != nil {
		return recipe.Recipe{}, err
	}
	if !ok {
		return recipe.Recipe{}, storage.NotFound("recipe", r.ID)
	}
	s.notify(r.OwnerID, storage.CollectionRecipes, r.ID, watch.OpUpdate)
	return row.domain(), nil
}

func (s *Store) GetRecipe(ctx context.Context, id string) (recipe.Recipe, error) {
	var row recipeRow
	if err := s.get(ctx, &row, "recipe", id, selectRecipe+" WHERE id = ?", id); err != nil {
		return recipe.Recipe{}, err
	}
	return row.domain(), nil
}

func (s *Store) ListRecipes(ctx context.Context, ownerID string) ([]recipe.Recipe, error) {
	var rows []recipeRow
	if err := s.selectRows(ctx, &rows, selectRecipe+" WHERE owner_id = ? ORDER BY created_at, id", ownerID); err != nil {
		return nil, err
	}
	out := make([]recipe.Recipe, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.domain())
	}
	return out, nil
}

func (s *Store) DeleteRecipe(ctx context.Context, id string) error {
	owner, err := s.ownerOf(ctx, "recipes", id)
	if err != nil {
		return s.missing(err, "recipe", id)
	}
	if _, err := s.remove(ctx, "recipes", id); err != nil {
		return err
	}
	s.notify(owner, storage.CollectionRecipes, id, watch.OpDelete)
	return nil
}

// Ingredients -----------------------------------------------------------------

var ingredientColumns = []string{"id", "owner_id", "recipe_id", "name", "quantity", "unit", "position", "created_at", "updated_at"}

type ingredientRow struct {
	ID        string          `db:"id"`
	OwnerID   string          `db:"owner_id"`
	RecipeID  string          `db:"recipe_id"`
	Name      string          `db:"name"`
	Quantity  decimal.Decimal `db:"quantity"`
	Unit      string          `db:"unit"`
	Position  int             `db:"position"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r ingredientRow) domain() recipe.Ingredient {
	return recipe.Ingredient{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		RecipeID:  r.RecipeID,
		Name:      r.Name,
		Quantity:  r.Quantity,
		Unit:      r.Unit,
		Position:  r.Position,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func toIngredientRow(i recipe.Ingredient) ingredientRow {
	return ingredientRow{
		ID:        i.ID,
		OwnerID:   i.OwnerID,
		RecipeID:  i.RecipeID,
		Name:      i.Name,
		Quantity:  i.Quantity,
		Unit:      i.Unit,
		Position:  i.Position,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

const selectIngredient = "SELECT id, owner_id, recipe_id, name, quantity, unit, position, created_at, updated_at FROM ingredients"

func (s *Store) CreateIngredient(ctx context.Context, ing recipe.Ingredient) (recipe.Ingredient, error) {
	if ing.ID == "" {
		ing.ID = uuid.NewString()
	}
	now := s.now()
	ing.CreatedAt = now
	ing.UpdatedAt = now

	if err := s.insert(ctx, "ingredients", ingredientColumns, toIngredientRow(ing)); err != nil {
		return recipe.Ingredient{}, err
	}
	s.notify(ing.OwnerID, storage.CollectionIngredients, ing.ID, watch.OpCreate)
	return ing, nil
}

func (s *Store) UpdateIngredient(ctx context.Context, ing recipe.Ingredient) (recipe.Ingredient, error) {
	existing, err := s.GetIngredient(ctx, ing.ID)
	if err != nil {
		return recipe.Ingredient{}, err
	}
	ing.CreatedAt = existing.CreatedAt
	ing.UpdatedAt = s.now()

	ok, err := s.update(ctx, "ingredients", ingredientColumns, toIngredientRow(ing))
	if err != nil {
		return recipe.Ingredient{}, err
	}
	if !ok {
		return recipe.Ingredient{}, storage.NotFound("ingredient", ing.ID)
	}
	s.notify(ing.OwnerID, storage.CollectionIngredients, ing.ID, watch.OpUpdate)
	return ing, nil
}

func (s *Store) GetIngredient(ctx context.Context, id string) (recipe.Ingredient, error) {
	var row ingredientRow
	if err := s.get(ctx, &row, "ingredient", id, selectIngredient+" WHERE id = ?", id); err != nil {
		return recipe.Ingredient{}, err
	}
	return row.domain(), nil
}

func (s *Store) ListIngredients(ctx context.Context, recipeID string) ([]recipe.Ingredient, error) {
	return s.listIngredients(ctx, selectIngredient+" WHERE recipe_id = ? ORDER BY position, id", recipeID)
}

func (s *Store) ListOwnerIngredients(ctx context.Context, ownerID string) ([]recipe.Ingredient, error) {
	return s.listIngredients(ctx, selectIngredient+" WHERE owner_id = ? ORDER BY recipe_id, position, id", ownerID)
}

func (s *Store) listIngredients(ctx context.Context, query string, arg string) ([]recipe.Ingredient, error) {
	var rows []ingredientRow
	if err := s.selectRows(ctx, &rows, query, arg); err != nil {
		return nil, err
	}
	out := make([]recipe.Ingredient, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.domain())
	}
	return out, nil
}

func (s *Store) DeleteIngredient(ctx context.Context, id string) error {
	owner, err := s.ownerOf(ctx, "ingredients", id)
	if err != nil {
		return s.missing(err, "ingredient", id)
	}
	if _, err := s.remove(ctx, "ingredients", id); err != nil {
		return err
	}
	s.notify(owner, storage.CollectionIngredients, id, watch.OpDelete)
	return nil
}
