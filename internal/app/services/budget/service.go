// Package budget stores shop receipts, reads them from images and reports
// monthly spending against the account budget.
package budget

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/R3E-Network/souschef/internal/app/domain/account"
	"github.com/R3E-Network/souschef/internal/app/domain/logbook"
	"github.com/R3E-Network/souschef/internal/app/domain/receipt"
	"github.com/R3E-Network/souschef/internal/app/metrics"
	"github.com/R3E-Network/souschef/internal/app/services/common"
	"github.com/R3E-Network/souschef/internal/app/storage"
	svcerrors "github.com/R3E-Network/souschef/internal/errors"
	"github.com/R3E-Network/souschef/internal/logging"
)

// MaxImageBytes bounds scanned images.
const MaxImageBytes = 10 << 20

// MonthLayout is the format of Summary's month argument.
const MonthLayout = "2006-01"

// ImageStore keeps receipt images. remote.Images satisfies it.
type ImageStore interface {
	Put(ctx context.Context, owner, receiptID string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, objectPath string) error
}

// Input carries the editable receipt fields.
type Input struct {
	Store       string          `json:"store"`
	PurchasedOn string          `json:"purchased_on"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	Lines       []receipt.Line  `json:"lines"`
	RawText     string          `json:"raw_text"`
}

// StoreTotal is the spending at one store within a month.
type StoreTotal struct {
	Store    string          `json:"store"`
	Total    decimal.Decimal `json:"total"`
	Receipts int             `json:"receipts"`
	Display  string          `json:"display"`
}

// Display holds Summary amounts formatted for the account currency.
type Display struct {
	Budget    string `json:"budget"`
	Spent     string `json:"spent"`
	Remaining string `json:"remaining"`
}

// Summary is a month's spending. Receipts in another currency than the
// account's are counted in Excluded and left out of the totals.
type Summary struct {
	Month      string          `json:"month"`
	Currency   string          `json:"currency"`
	Budget     decimal.Decimal `json:"budget"`
	Spent      decimal.Decimal `json:"spent"`
	Remaining  decimal.Decimal `json:"remaining"`
	OverBudget bool            `json:"over_budget"`
	Receipts   int             `json:"receipts"`
	Excluded   int             `json:"excluded"`
	Stores     []StoreTotal    `json:"stores"`
	Display    Display         `json:"display"`
}

// Option configures the service.
type Option func(*Service)

// WithImages keeps scanned images in store.
func WithImages(store ImageStore) Option {
	return func(s *Service) { s.images = store }
}

// WithClock replaces the clock used for default dates and months.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service manages receipts and budgets.
type Service struct {
	receipts storage.ReceiptStore
	accounts storage.AccountStore
	scanner  Scanner
	images   ImageStore
	now      func() time.Time
	log      *logging.Logger
}

// New constructs a budget service. scanner may be nil, in which case Scan
// reports the feature as unavailable.
func New(receipts storage.ReceiptStore, accounts storage.AccountStore, scanner Scanner, log *logging.Logger, opts ...Option) *Service {
	if log == nil {
		log = logging.NewDefault("budget")
	}
	s := &Service{receipts: receipts, accounts: accounts, scanner: scanner, now: time.Now, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) currencyFor(ctx context.Context, owner string) string {
	acct, err := s.accounts.GetAccount(ctx, owner)
	if err != nil || acct.Currency == "" {
		return account.DefaultCurrency
	}
	return acct.Currency
}

func (s *Service) build(ctx context.Context, owner string, in Input, r *receipt.Receipt) error {
	date := strings.TrimSpace(in.PurchasedOn)
	if date == "" {
		date = logbook.FormatDate(s.now())
	}
	parsed, err := logbook.ParseDate(date)
	if err != nil {
		return svcerrors.InvalidFormat("purchased_on", err.Error())
	}
	currency, err := common.Currency(in.Currency, "")
	if err != nil {
		return err
	}
	if currency == "" {
		currency = s.currencyFor(ctx, owner)
	}
	lines := make([]receipt.Line, 0, len(in.Lines))
	for _, l := range in.Lines {
		desc := strings.TrimSpace(l.Description)
		if desc == "" {
			continue
		}
		lines = append(lines, receipt.Line{Description: desc, Amount: l.Amount})
	}

	r.Store = strings.TrimSpace(in.Store)
	r.PurchasedOn = parsed
	r.Currency = currency
	r.Lines = lines
	r.RawText = strings.TrimSpace(in.RawText)
	r.Total = in.Total
	if r.Total.IsZero() {
		r.Total = r.LinesTotal()
	}
	return common.NonNegative("total", r.Total)
}

func (s *Service) Create(ctx context.Context, owner string, in Input) (receipt.Receipt, error) {
	if owner == "" {
		return receipt.Receipt{}, svcerrors.Unauthorized("")
	}
	r := receipt.Receipt{OwnerID: owner}
	if err := s.build(ctx, owner, in, &r); err != nil {
		return receipt.Receipt{}, err
	}
	created, err := s.receipts.CreateReceipt(ctx, r)
	return created, common.StoreError(err, "receipt", "")
}

// Update replaces a receipt's fields. The stored image is kept.
func (s *Service) Update(ctx context.Context, owner, id string, in Input) (receipt.Receipt, error) {
	r, err := s.Get(ctx, owner, id)
	if err != nil {
		return receipt.Receipt{}, err
	}
	if err := s.build(ctx, owner, in, &r); err != nil {
		return receipt.Receipt{}, err
	}
	updated, err := s.receipts.UpdateReceipt(ctx, r)
	return updated, common.StoreError(err, "receipt", id)
}

func (s *Service) Get(ctx context.Context, owner, id string) (receipt.Receipt, error) {
	r, err := s.receipts.GetReceipt(ctx, id)
	if err != nil {
		return receipt.Receipt{}, common.StoreError(err, "receipt", id)
	}
	if err := common.Owned(owner, r.OwnerID, "receipt", id); err != nil {
		return receipt.Receipt{}, err
	}
	return r, nil
}

// List returns owner's receipts, restricted to month (YYYY-MM) when set.
func (s *Service) List(ctx context.Context, owner, month string) ([]receipt.Receipt, error) {
	if month == "" {
		list, err := s.receipts.ListReceipts(ctx, owner)
		return list, common.StoreError(err, "receipt", "")
	}
	from, to, err := monthRange(month)
	if err != nil {
		return nil, err
	}
	list, err := s.receipts.ListReceiptsBetween(ctx, owner, from, to)
	return list, common.StoreError(err, "receipt", "")
}

// Delete removes the receipt and, best effort, its image.
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	r, err := s.Get(ctx, owner, id)
	if err != nil {
		return err
	}
	if err := s.receipts.DeleteReceipt(ctx, id); err != nil {
		return common.StoreError(err, "receipt", id)
	}
	if r.ImagePath != "" && s.images != nil {
		if err := s.images.Delete(ctx, r.ImagePath); err != nil {
			s.log.WithContext(ctx).WithError(err).WithField("path", r.ImagePath).Warn("delete receipt image")
		}
	}
	return nil
}

// Scan reads a receipt from image and stores it. Fields the scanner could
// not read fall back to today and the account currency. When an image store
// is configured the image is kept alongside the receipt; an upload failure
// does not fail the scan.
func (s *Service) Scan(ctx context.Context, owner string, image []byte, mime string) (receipt.Receipt, error) {
	if owner == "" {
		return receipt.Receipt{}, svcerrors.Unauthorized("")
	}
	if s.scanner == nil {
		return receipt.Receipt{}, svcerrors.Unavailable("receipt scanning is not configured", nil)
	}
	if len(image) == 0 {
		return receipt.Receipt{}, svcerrors.InvalidInput("image is required")
	}
	if len(image) > MaxImageBytes {
		return receipt.Receipt{}, svcerrors.InvalidInput("image is too large").WithDetails("max_bytes", MaxImageBytes)
	}
	mime = strings.ToLower(strings.TrimSpace(mime))
	if !strings.HasPrefix(mime, "image/") {
		return receipt.Receipt{}, svcerrors.InvalidFormat("mime", "must be an image type")
	}

	start := time.Now()
	parsed, err := s.scanner.Scan(ctx, image, mime)
	metrics.RecordReceiptScan(s.scanner.Name(), time.Since(start), err == nil)
	if err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("scanner", s.scanner.Name()).Warn("receipt scan failed")
		return receipt.Receipt{}, svcerrors.Unavailable("receipt scan failed", err)
	}

	in := Input{
		Store:       parsed.Store,
		PurchasedOn: parsed.PurchasedOn,
		Total:       parsed.Total,
		Currency:    parsed.Currency,
		Lines:       parsed.Lines,
		RawText:     parsed.RawText,
	}
	if _, err := logbook.ParseDate(in.PurchasedOn); err != nil {
		in.PurchasedOn = ""
	}
	if _, err := common.Currency(in.Currency, ""); err != nil {
		in.Currency = ""
	}
	if in.Total.IsNegative() {
		in.Total = decimal.Zero
	}
	created, err := s.Create(ctx, owner, in)
	if err != nil {
		return receipt.Receipt{}, err
	}

	if s.images != nil {
		path, err := s.images.Put(ctx, owner, created.ID, image, mime)
		if err != nil {
			s.log.WithContext(ctx).WithError(err).WithField("receipt_id", created.ID).Warn("store receipt image")
			return created, nil
		}
		created.ImagePath = path
		id := created.ID
		if created, err = s.receipts.UpdateReceipt(ctx, created); err != nil {
			return receipt.Receipt{}, common.StoreError(err, "receipt", id)
		}
	}
	s.log.WithContext(ctx).WithField("receipt_id", created.ID).WithField("scanner", s.scanner.Name()).Info("receipt scanned")
	return created, nil
}

// Summary totals month's receipts against the account budget. An empty
// month means the current one.
func (s *Service) Summary(ctx context.Context, owner, month string) (Summary, error) {
	if month == "" {
		month = s.now().UTC().Format(MonthLayout)
	}
	from, to, err := monthRange(month)
	if err != nil {
		return Summary{}, err
	}
	acct, err := s.accounts.GetAccount(ctx, owner)
	if err != nil {
		return Summary{}, common.StoreError(err, "account", owner)
	}
	currency := acct.Currency
	if currency == "" {
		currency = account.DefaultCurrency
	}
	list, err := s.receipts.ListReceiptsBetween(ctx, owner, from, to)
	if err != nil {
		return Summary{}, common.StoreError(err, "receipt", "")
	}

	sum := Summary{
		Month:    month,
		Currency: currency,
		Budget:   acct.MonthlyBudget,
		Spent:    decimal.Zero,
		Stores:   []StoreTotal{},
	}
	byStore := make(map[string]*StoreTotal)
	for _, r := range list {
		if r.Currency != "" && r.Currency != currency {
			sum.Excluded++
			continue
		}
		sum.Receipts++
		sum.Spent = sum.Spent.Add(r.Total)
		name := r.Store
		if name == "" {
			name = "Unknown"
		}
		st, ok := byStore[name]
		if !ok {
			st = &StoreTotal{Store: name, Total: decimal.Zero}
			byStore[name] = st
		}
		st.Total = st.Total.Add(r.Total)
		st.Receipts++
	}
	for _, st := range byStore {
		st.Display = Format(st.Total, currency)
		sum.Stores = append(sum.Stores, *st)
	}
	sort.Slice(sum.Stores, func(i, j int) bool {
		if !sum.Stores[i].Total.Equal(sum.Stores[j].Total) {
			return sum.Stores[i].Total.GreaterThan(sum.Stores[j].Total)
		}
		return sum.Stores[i].Store < sum.Stores[j].Store
	})

	sum.Remaining = sum.Budget.Sub(sum.Spent)
	sum.OverBudget = sum.Budget.IsPositive() && sum.Remaining.IsNegative()
	sum.Display = Display{
		Budget:    Format(sum.Budget, currency),
		Spent:     Format(sum.Spent, currency),
		Remaining: Format(sum.Remaining, currency),
	}
	return sum, nil
}

// Format renders amount in currency's conventional notation, rounding to
// the currency's minor unit. Codes unknown to go-money fall back to two
// decimals followed by the code.
func Format(amount decimal.Decimal, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	cur := money.GetCurrency(code)
	if cur == nil {
		return strings.TrimSpace(amount.StringFixed(2) + " " + code)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

func monthRange(month string) (string, string, error) {
	start, err := time.Parse(MonthLayout, strings.TrimSpace(month))
	if err != nil {
		return "", "", svcerrors.InvalidFormat("month", "must be YYYY-MM")
	}
	end := start.AddDate(0, 1, -1)
	return logbook.FormatDate(start), logbook.FormatDate(end), nil
}
