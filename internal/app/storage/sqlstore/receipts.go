package sqlstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/R3E-Network/souschef/internal/app/domain/receipt"
	"github.com/R3E-Network/souschef/internal/app/storage"
	"github.com/R3E-Network/souschef/internal/app/watch"
)

var receiptColumns = []string{"id", "owner_id", "store", "purchased_on", "total", "currency", "lines", "image_path", "raw_text", "created_at", "updated_at"}

type receiptRow struct {
	ID          string                     `db:"id"`
	OwnerID     string                     `db:"owner_id"`
	Store       string                     `db:"store"`
	PurchasedOn string                     `db:"purchased_on"`
	Total       decimal.Decimal            `db:"total"`
	Currency    string                     `db:"currency"`
	Lines       jsonColumn[[]receipt.Line] `db:"lines"`
	ImagePath   string                     `db:"image_path"`
	RawText     string                     `db:"raw_text"`
	CreatedAt   time.Time                  `db:"created_at"`
	UpdatedAt   time.Time                  `db:"updated_at"`
}

func nonNilLines(v []receipt.Line) []receipt.Line {
	if v == nil {
		return []receipt.Line{}
	}
	return v
}

func toReceiptRow(r receipt.Receipt) receiptRow {
	return receiptRow{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Store:       r.Store,
		PurchasedOn: r.PurchasedOn,
		Total:       r.Total,
		Currency:    r.Currency,
		Lines:       jsonColumn[[]receipt.Line]{V: nonNilLines(r.Lines)},
		ImagePath:   r.ImagePath,
		RawText:     r.RawText,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (r receiptRow) domain() receipt.Receipt {
	return receipt.Receipt{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Store:       r.Store,
		PurchasedOn: r.PurchasedOn,
		Total:       r.Total,
		Currency:    r.Currency,
		Lines:       nonNilLines(r.Lines.V),
		ImagePath:   r.ImagePath,
		RawText:     r.RawText,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

const selectReceipt = "SELECT id, owner_id, store, purchased_on, total, currency, lines, image_path, raw_text, created_at, updated_at FROM receipts"

func (s *Store) CreateReceipt(ctx context.Context, r receipt.Receipt) (receipt.Receipt, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := s.now()
	r.CreatedAt = now
	r.UpdatedAt = now

	row := toReceiptRow(r)
	if err := s.insert(ctx, "receipts", receiptColumns, row); err != nil {
		return receipt.Receipt{}, err
	}
	s.notify(r.OwnerID, storage.CollectionReceipts, r.ID, watch.OpCreate)
	return row.domain(), nil
}

func (s *Store) UpdateReceipt(ctx context.Context, r receipt.Receipt) (receipt.Receipt, error) {
	existing, err := s.GetReceipt(ctx, r.ID)
	if err != nil {
		return receipt.Receipt{}, err
	}
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = s.now()

	row := toReceiptRow(r)
	ok, err := s.update(ctx, "receipts", receiptColumns, row)
	if err != nil {
		return receipt.Receipt{}, err
	}
	if !ok {
		return receipt.Receipt{}, storage.NotFound("receipt", r.ID)
	}
	s.notify(r.OwnerID, storage.CollectionReceipts, r.ID, watch.OpUpdate)
	return row.domain(), nil
}

func (s *Store) GetReceipt(ctx context.Context, id string) (receipt.Receipt, error) {
	var row receiptRow
	if err := s.get(ctx, &row, "receipt", id, selectReceipt+" WHERE id = ?", id); err != nil {
		return receipt.Receipt{}, err
	}
	return row.domain(), nil
}

func (s *Store) ListReceipts(ctx context.Context, ownerID string) ([]receipt.Receipt, error) {
	return s.ListReceiptsBetween(ctx, ownerID, "", "")
}

func (s *Store) ListReceiptsBetween(ctx context.Context, ownerID, from, to string) ([]receipt.Receipt, error) {
	query := selectReceipt + " WHERE owner_id = ?"
	args := []interface{}{ownerID}
	if from != "" {
		query += " AND purchased_on >= ?"
		args = append(args, from)
	}
	if to != "" {
		query += " AND purchased_on <= ?"
		args = append(args, to)
	}
	query += " ORDER BY purchased_on, id"

	var rows []receiptRow
	if err := s.selectRows(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]receipt.Receipt, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.domain())
	}
	return out, nil
}

func (s *Store) DeleteReceipt(ctx context.Context, id string) error {
	owner, err := s.ownerOf(ctx, "receipts", id)
	if err != nil {
		return s.missing(err, "receipt", id)
	}
	if _, err := s.remove(ctx, "receipts", id); err != nil {
		return err
	}
	s.notify(owner, storage.CollectionReceipts, id, watch.OpDelete)
	return nil
}
