package logs

import (
	"context"
	"strings"

	"github.com/R3E-Network/souschef/internal/app/domain/logbook"
	"github.com/R3E-Network/souschef/internal/app/domain/recipe"
	"github.com/R3E-Network/souschef/internal/app/services/common"
	"github.com/R3E-Network/souschef/internal/app/storage"
	svcerrors "github.com/R3E-Network/souschef/internal/errors"
	"github.com/R3E-Network/souschef/internal/logging"
)

// Entry is the content of one day's log.
type Entry struct {
	RecipeIDs  []string `json:"recipe_ids"`
	ProductIDs []string `json:"product_ids"`
	Rating     int      `json:"rating"`
	Note       string   `json:"note"`
}

// Service manages the daily log.
type Service struct {
	store    storage.LogStore
	recipes  storage.RecipeStore
	products storage.ProductStore
	log      *logging.Logger
}

// New constructs a log service. recipes and products are used to check
// that referenced records belong to the owner.
func New(store storage.LogStore, recipes storage.RecipeStore, products storage.ProductStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("logs")
	}
	return &Service{store: store, recipes: recipes, products: products, log: log}
}

func parseDate(raw string) (string, error) {
	date, err := logbook.ParseDate(raw)
	if err != nil {
		return "", svcerrors.InvalidFormat("date", err.Error())
	}
	return date, nil
}

// ForDate returns owner's log for date.
func (s *Service) ForDate(ctx context.Context, owner, date string) (logbook.Log, error) {
	date, err := parseDate(date)
	if err != nil {
		return logbook.Log{}, err
	}
	l, err := s.store.GetLogByDate(ctx, owner, date)
	return l, common.StoreError(err, "log", date)
}

// Save creates or replaces the log for date.
func (s *Service) Save(ctx context.Context, owner, date string, e Entry) (logbook.Log, error) {
	if owner == "" {
		return logbook.Log{}, svcerrors.Unauthorized("")
	}
	date, err := parseDate(date)
	if err != nil {
		return logbook.Log{}, err
	}
	if err := common.Rating(e.Rating, recipe.MaxRating); err != nil {
		return logbook.Log{}, err
	}
	recipeIDs := common.UniqueIDs(e.RecipeIDs)
	productIDs := common.UniqueIDs(e.ProductIDs)
	if err := s.checkReferences(ctx, owner, recipeIDs, productIDs); err != nil {
		return logbook.Log{}, err
	}

	l, err := s.store.GetLogByDate(ctx, owner, date)
	if storage.IsNotFound(err) {
		created, createErr := s.store.CreateLog(ctx, logbook.Log{
			OwnerID:    owner,
			Date:       date,
			RecipeIDs:  recipeIDs,
			ProductIDs: productIDs,
			Rating:     e.Rating,
			Note:       strings.TrimSpace(e.Note),
		})
		if createErr == nil {
			s.log.WithContext(ctx).WithField("date", date).Debug("log created")
			return created, nil
		}
		if !storage.IsConflict(createErr) {
			return logbook.Log{}, common.StoreError(createErr, "log", date)
		}
		// A concurrent save created the day first; update that log instead.
		l, err = s.store.GetLogByDate(ctx, owner, date)
	}
	if err != nil {
		return logbook.Log{}, common.StoreError(err, "log", date)
	}

	l.RecipeIDs = recipeIDs
	l.ProductIDs = productIDs
	l.Rating = e.Rating
	l.Note = strings.TrimSpace(e.Note)
	updated, err := s.store.UpdateLog(ctx, l)
	return updated, common.StoreError(err, "log", date)
}

// Rate sets the rating of the log for date, creating an empty log when the
// day has none.
func (s *Service) Rate(ctx context.Context, owner, date string, rating int) (logbook.Log, error) {
	if err := common.Rating(rating, recipe.MaxRating); err != nil {
		return logbook.Log{}, err
	}
	l, err := s.ForDate(ctx, owner, date)
	if svcerrors.HasCode(err, svcerrors.CodeNotFound) {
		return s.Save(ctx, owner, date, Entry{Rating: rating})
	}
	if err != nil {
		return logbook.Log{}, err
	}
	l.Rating = rating
	updated, err := s.store.UpdateLog(ctx, l)
	return updated, common.StoreError(err, "log", l.Date)
}

// List returns all of owner's logs, oldest first.
func (s *Service) List(ctx context.Context, owner string) ([]logbook.Log, error) {
	items, err := s.store.ListLogs(ctx, owner)
	if err != nil {
		return nil, common.StoreError(err, "log", "")
	}
	return items, nil
}

// Between returns logs dated from..to inclusive. Either bound may be empty.
func (s *Service) Between(ctx context.Context, owner, from, to string) ([]logbook.Log, error) {
	var err error
	if from != "" {
		if from, err = parseDate(from); err != nil {
			return nil, err
		}
	}
	if to != "" {
		if to, err = parseDate(to); err != nil {
			return nil, err
		}
	}
	if from != "" && to != "" && from > to {
		return nil, svcerrors.InvalidInput("from must not be after to")
	}
	items, err := s.store.ListLogsBetween(ctx, owner, from, to)
	if err != nil {
		return nil, common.StoreError(err, "log", "")
	}
	return items, nil
}

// Dates returns the logs for the given days, skipping days without one.
func (s *Service) Dates(ctx context.Context, owner string, dates []string) ([]logbook.Log, error) {
	out := make([]logbook.Log, 0, len(dates))
	seen := make(map[string]bool, len(dates))
	for _, raw := range dates {
		date, err := parseDate(raw)
		if err != nil {
			return nil, err
		}
		if seen[date] {
			continue
		}
		seen[date] = true
		l, err := s.store.GetLogByDate(ctx, owner, date)
		if storage.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, common.StoreError(err, "log", date)
		}
		out = append(out, l)
	}
	return out, nil
}

// Delete removes the log for date.
func (s *Service) Delete(ctx context.Context, owner, date string) error {
	l, err := s.ForDate(ctx, owner, date)
	if err != nil {
		return err
	}
	return common.StoreError(s.store.DeleteLog(ctx, l.ID), "log", l.Date)
}

func (s *Service) checkReferences(ctx context.Context, owner string, recipeIDs, productIDs []string) error {
	for _, id := range recipeIDs {
		r, err := s.recipes.GetRecipe(ctx, id)
		if err == nil && r.OwnerID != owner {
			err = storage.NotFound("recipe", id)
		}
		if err != nil {
			if storage.IsNotFound(err) {
				return svcerrors.InvalidInput("unknown recipe " + id).WithDetails("recipe_id", id)
			}
			return common.StoreError(err, "recipe", id)
		}
	}
	for _, id := range productIDs {
		p, err := s.products.GetProduct(ctx, id)
		if err == nil && p.OwnerID != owner {
			err = storage.NotFound("product", id)
		}
		if err != nil {
			if storage.IsNotFound(err) {
				return svcerrors.InvalidInput("unknown product " + id).WithDetails("product_id", id)
			}
			return common.StoreError(err, "product", id)
		}
	}
	return nil
}
