package sqlstore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/R3E-Network/souschef/internal/app/domain/account"
	"github.com/R3E-Network/souschef/internal/app/storage"
	"github.com/R3E-Network/souschef/internal/app/watch"
)

var accountColumns = []string{"id", "email", "email_key", "display_name", "password_hash", "currency", "monthly_budget", "created_at", "updated_at"}

type accountRow struct {
	ID            string          `db:"id"`
	Email         string          `db:"email"`
	EmailKey      string          `db:"email_key"`
	DisplayName   string          `db:"display_name"`
	PasswordHash  string          `db:"password_hash"`
	Currency      string          `db:"currency"`
	MonthlyBudget decimal.Decimal `db:"monthly_budget"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func toAccountRow(a account.Account) accountRow {
	return accountRow{
		ID:            a.ID,
		Email:         a.Email,
		EmailKey:      strings.ToLower(strings.TrimSpace(a.Email)),
		DisplayName:   a.DisplayName,
		PasswordHash:  a.PasswordHash,
		Currency:      a.Currency,
		MonthlyBudget: a.MonthlyBudget,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func (r accountRow) domain() account.Account {
	return account.Account{
		ID:            r.ID,
		Email:         r.Email,
		DisplayName:   r.DisplayName,
		PasswordHash:  r.PasswordHash,
		Currency:      r.Currency,
		MonthlyBudget: r.MonthlyBudget,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

const selectAccount = "SELECT id, email, email_key, display_name, password_hash, currency, monthly_budget, created_at, updated_at FROM accounts"

func (s *Store) CreateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	now := s.now()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	if err := s.insert(ctx, "accounts", accountColumns, toAccountRow(acct)); err != nil {
		return account.Account{}, err
	}
	s.notify(acct.ID, storage.CollectionAccounts, acct.ID, watch.OpCreate)
	return acct, nil
}

func (s *Store) UpdateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	existing, err := s.GetAccount(ctx, acct.ID)
	if err != nil {
		return account.Account{}, err
	}
	acct.CreatedAt = existing.CreatedAt
	acct.UpdatedAt = s.now()

	ok, err := s.update(ctx, "accounts", accountColumns, toAccountRow(acct))
	if err != nil {
		return account.Account{}, err
	}
	if !ok {
		return account.Account{}, storage.NotFound("account", acct.ID)
	}
	s.notify(acct.ID, storage.CollectionAccounts, acct.ID, watch.OpUpdate)
	return acct, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (account.Account, error) {
	var row accountRow
	if err := s.get(ctx, &row, "account", id, selectAccount+" WHERE id = ?", id); err != nil {
		return account.Account{}, err
	}
	return row.domain(), nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (account.Account, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	var row accountRow
	if err := s.get(ctx, &row, "account", email, selectAccount+" WHERE email_key = ?", key); err != nil {
		return account.Account{}, err
	}
	return row.domain(), nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]account.Account, error) {
	var rows []accountRow
	if err := s.selectRows(ctx, &rows, selectAccount+" ORDER BY id"); err != nil {
		return nil, err
	}
	out := make([]account.Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.domain())
	}
	return out, nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	ok, err := s.remove(ctx, "accounts", id)
	if err != nil {
		return err
	}
	if !ok {
		return storage.NotFound("account", id)
	}
	s.notify(id, storage.CollectionAccounts, id, watch.OpDelete)
	return nil
}
