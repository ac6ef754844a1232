package sqlstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/souschef/internal/app/domain/logbook"
	"github.com/R3E-Network/souschef/internal/app/storage"
	"github.com/R3E-Network/souschef/internal/app/watch"
)

var logColumns = []string{"id", "owner_id", "log_date", "recipe_ids", "product_ids", "rating", "note", "created_at", "updated_at"}

type logRow struct {
	ID         string               `db:"id"`
	OwnerID    string               `db:"owner_id"`
	Date       string               `db:"log_date"`
	RecipeIDs  jsonColumn[[]string] `db:"recipe_ids"`
	ProductIDs jsonColumn[[]string] `db:"product_ids"`
	Rating     int                  `db:"rating"`
	Note       string               `db:"note"`
	CreatedAt  time.Time            `db:"created_at"`
	UpdatedAt  time.Time            `db:"updated_at"`
}

func toLogRow(l logbook.Log) logRow {
	return logRow{
		ID:         l.ID,
		OwnerID:    l.OwnerID,
		Date:       l.Date,
		RecipeIDs:  jsonColumn[[]string]{V: nonNil(l.RecipeIDs)},
		ProductIDs: jsonColumn[[]string]{V: nonNil(l.ProductIDs)},
		Rating:     l.Rating,
		Note:       l.Note,
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
	}
}

func (r logRow) domain() logbook.Log {
	return logbook.Log{
		ID:         r.ID,
		OwnerID:    r.OwnerID,
		Date:       r.Date,
		RecipeIDs:  nonNil(r.RecipeIDs.V),
		ProductIDs: nonNil(r.ProductIDs.V),
		Rating:     r.Rating,
		Note:       r.Note,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

const selectLog = "SELECT id, owner_id, log_date, recipe_ids, product_ids, rating, note, created_at, updated_at FROM logs"

func (s *Store) CreateLog(ctx context.Context, l logbook.Log) (logbook.Log, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := s.now()
	l.CreatedAt = now
	l.UpdatedAt = now

	row := toLogRow(l)
	if err := s.insert(ctx, "logs", logColumns, row); err != nil {
		return logbook.Log{}, err
	}
	s.notify(l.OwnerID, storage.CollectionLogs, l.ID, watch.OpCreate)
	return row.domain(), nil
}

func (s *Store) UpdateLog(ctx context.Context, l logbook.Log) (logbook.Log, error) {
	existing, err := s.GetLog(ctx, l.ID)
	if err != nil {
		return logbook.Log{}, err
	}
	l.CreatedAt = existing.CreatedAt
	l.UpdatedAt = s.now()

	row := toLogRow(l)
	ok, err := s.update(ctx, "logs", logColumns, row)
	if err != nil {
		return logbook.Log{}, err
	}
	if !ok {
		return logbook.Log{}, storage.NotFound("log", l.ID)
	}
	s.notify(l.OwnerID, storage.CollectionLogs, l.ID, watch.OpUpdate)
	return row.domain(), nil
}

func (s *Store) GetLog(ctx context.Context, id string) (logbook.Log, error) {
	var row logRow
	if err := s.get(ctx, &row, "log", id, selectLog+" WHERE id = ?", id); err != nil {
		return logbook.Log{}, err
	}
	return row.domain(), nil
}

func (s *Store) GetLogByDate(ctx context.Context, ownerID, date string) (logbook.Log, error) {
	var row logRow
	if err := s.get(ctx, &row, "log", date, selectLog+" WHERE owner_id = ? AND log_date = ?", ownerID, date); err != nil {
		return logbook.Log{}, err
	}
	return row.domain(), nil
}

func (s *Store) ListLogs(ctx context.Context, ownerID string) ([]logbook.Log, error) {
	return s.ListLogsBetween(ctx, ownerID, "", "")
}

// ListLogsBetween treats an empty bound as open.
func (s *Store) ListLogsBetween(ctx context.Context, ownerID, from, to string) ([]logbook.Log, error) {
	query := selectLog + " WHERE owner_id = ?"
	args := []interface{}{ownerID}
	if from != "" {
		query += " AND log_date >= ?"
		args = append(args, from)
	}
	if to != "" {
		query += " AND log_date <= ?"
		args = append(args, to)
	}
	query += " ORDER BY log_date"

	var rows []logRow
	if err := s.selectRows(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]logbook.Log, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.domain())
	}
	return out, nil
}

func (s *Store) DeleteLog(ctx context.Context, id string) error {
	owner, err := s.ownerOf(ctx, "logs", id)
	if err != nil {
		return s.missing(err, "log", id)
	}
	if _, err := s.remove(ctx, "logs", id); err != nil {
		return err
	}
	s.notify(owner, storage.CollectionLogs, id, watch.OpDelete)
	return nil
}
