package accounts

import (
	"context"
	"fmt"

	"github.com/R3E-Network/souschef/internal/app/storage"
)

// ImageRemover deletes stored receipt images by object path.
type ImageRemover interface {
	Delete(ctx context.Context, objectPath string) error
}

// StorePurger deletes an owner's records collection by collection. With
// Images set, receipt images go with their receipts.
type StorePurger struct {
	Stores storage.Stores
	Images ImageRemover
}

// PurgeOwner removes every record owned by ownerID. Ingredients go first so a
// failure part way never leaves orphans behind deleted recipes.
func (p StorePurger) PurgeOwner(ctx context.Context, ownerID string) error {
	s := p.Stores

	ingredients, err := s.ListOwnerIngredients(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("list ingredients: %w", err)
	}
	for _, ing := range ingredients {
		if err := ignoreMissing(s.DeleteIngredient(ctx, ing.ID)); err != nil {
			return fmt.Errorf("delete ingredient %s: %w", ing.ID, err)
		}
	}

	recipes, err := s.ListRecipes(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("list recipes: %w", err)
	}
	for _, r := range recipes {
		if err := ignoreMissing(s.DeleteRecipe(ctx, r.ID)); err != nil {
			return fmt.Errorf("delete recipe %s: %w", r.ID, err)
		}
	}

	logs, err := s.ListLogs(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("list logs: %w", err)
	}
	for _, l := range logs {
		if err := ignoreMissing(s.DeleteLog(ctx, l.ID)); err != nil {
			return fmt.Errorf("delete log %s: %w", l.ID, err)
		}
	}

	notes, err := s.ListNotes(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("list notes: %w", err)
	}
	for _, n := range notes {
		if err := ignoreMissing(s.DeleteNote(ctx, n.ID)); err != nil {
			return fmt.Errorf("delete note %s: %w", n.ID, err)
		}
	}

	products, err := s.ListProducts(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	for _, pr := range products {
		if err := ignoreMissing(s.DeleteProduct(ctx, pr.ID)); err != nil {
			return fmt.Errorf("delete product %s: %w", pr.ID, err)
		}
	}

	items, err := s.ListShoppingItems(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("list shopping items: %w", err)
	}
	for _, it := range items {
		if err := ignoreMissing(s.DeleteShoppingItem(ctx, it.ID)); err != nil {
			return fmt.Errorf("delete shopping item %s: %w", it.ID, err)
		}
	}

	receipts, err := s.ListReceipts(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("list receipts: %w", err)
	}
	for _, r := range receipts {
		if r.ImagePath != "" && p.Images != nil {
			if err := ignoreMissing(p.Images.Delete(ctx, r.ImagePath)); err != nil {
				return fmt.Errorf("delete receipt image %s: %w", r.ImagePath, err)
			}
		}
		if err := ignoreMissing(s.DeleteReceipt(ctx, r.ID)); err != nil {
			return fmt.Errorf("delete receipt %s: %w", r.ID, err)
		}
	}
	return nil
}

func ignoreMissing(err error) error {
	if storage.IsNotFound(err) {
		return nil
	}
	return err
}
