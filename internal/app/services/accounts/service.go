package accounts

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/R3E-Network/souschef/internal/app/domain/account"
	"github.com/R3E-Network/souschef/internal/app/services/common"
	"github.com/R3E-Network/souschef/internal/app/storage"
	svcerrors "github.com/R3E-Network/souschef/internal/errors"
	"github.com/R3E-Network/souschef/internal/logging"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var errBadCredentials = svcerrors.Unauthorized("invalid email or password")

// TokenIssuer signs session tokens for authenticated accounts.
type TokenIssuer interface {
	Issue(userID, email string) (string, time.Time, error)
}

// IdentityProvider delegates credential checks to an external auth service.
// The returned id becomes the local account id.
type IdentityProvider interface {
	Register(ctx context.Context, email, password, displayName string) (string, error)
	Authenticate(ctx context.Context, email, password string) (string, error)
	Remove(ctx context.Context, id string) error
}

// Purger removes everything an account owns.
type Purger interface {
	PurgeOwner(ctx context.Context, ownerID string) error
}

// Session is the result of a successful sign in.
type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   account.Account `json:"account"`
}

// Profile lists the editable account fields; nil fields are left alone.
type Profile struct {
	DisplayName   *string          `json:"display_name"`
	Currency      *string          `json:"currency"`
	MonthlyBudget *decimal.Decimal `json:"monthly_budget"`
}

// Service manages accounts and sign in.
type Service struct {
	store      storage.AccountStore
	tokens     TokenIssuer
	identity   IdentityProvider
	purger     Purger
	bcryptCost int
	log        *logging.Logger
	dummyHash  []byte
}

// Option configures the service.
type Option func(*Service)

// WithIdentityProvider delegates passwords to an external provider.
func WithIdentityProvider(p IdentityProvider) Option {
	return func(s *Service) { s.identity = p }
}

// WithPurger sets the component that deletes owned data with the account.
func WithPurger(p Purger) Option {
	return func(s *Service) { s.purger = p }
}

// WithBcryptCost overrides the hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// New constructs an account service.
func New(store storage.AccountStore, tokens TokenIssuer, log *logging.Logger, opts ...Option) *Service {
	if log == nil {
		log = logging.NewDefault("accounts")
	}
	s := &Service{store: store, tokens: tokens, log: log, bcryptCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.bcryptCost)
	return s
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", svcerrors.InvalidInput("email is required").WithDetails("field", "email")
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw || !strings.Contains(raw[strings.LastIndex(raw, "@")+1:], ".") {
		return "", svcerrors.InvalidFormat("email", "must be a valid address")
	}
	return raw, nil
}

// SignUp registers an account.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (account.Account, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return account.Account{}, err
	}
	if len(password) < MinPasswordLength {
		return account.Account{}, svcerrors.InvalidFormat("password", "must be at least 8 characters")
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = email[:strings.Index(email, "@")]
	}

	if _, err := s.store.GetAccountByEmail(ctx, email); err == nil {
		return account.Account{}, svcerrors.Conflict("email already registered").WithDetails("field", "email")
	} else if !storage.IsNotFound(err) {
		return account.Account{}, common.StoreError(err, "account", email)
	}

	acct := account.Account{
		Email:         email,
		DisplayName:   displayName,
		Currency:      account.DefaultCurrency,
		MonthlyBudget: decimal.Zero,
	}
	if s.identity != nil {
		id, err := s.identity.Register(ctx, email, password, displayName)
		if err != nil {
			return account.Account{}, identityError(err)
		}
		acct.ID = id
	} else {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
		if err != nil {
			return account.Account{}, svcerrors.Internal("hash password", err)
		}
		acct.PasswordHash = string(hash)
	}

	created, err := s.store.CreateAccount(ctx, acct)
	if err != nil {
		if storage.IsConflict(err) {
			return account.Account{}, svcerrors.Conflict("email already registered").WithDetails("field", "email")
		}
		return account.Account{}, common.StoreError(err, "account", email)
	}
	s.log.WithContext(ctx).WithField("account_id", created.ID).Info("account created")
	return created, nil
}

// SignIn checks credentials and issues a session token.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, errBadCredentials
	}

	acct, err := s.store.GetAccountByEmail(ctx, email)
	if err != nil && !storage.IsNotFound(err) {
		return Session{}, common.StoreError(err, "account", email)
	}
	found := err == nil

	if s.identity != nil {
		id, err := s.identity.Authenticate(ctx, email, password)
		if err != nil {
			return Session{}, identityError(err)
		}
		if !found || acct.ID != id {
			return Session{}, errBadCredentials
		}
	} else {
		hash := s.dummyHash
		if found && acct.PasswordHash != "" {
			hash = []byte(acct.PasswordHash)
		}
		if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil || !found {
			s.log.LogSecurityEvent(ctx, "signin_failed", map[string]interface{}{"email": email})
			return Session{}, errBadCredentials
		}
	}

	token, expires, err := s.tokens.Issue(acct.ID, acct.Email)
	if err != nil {
		return Session{}, svcerrors.Internal("issue token", err)
	}
	return Session{Token: token, ExpiresAt: expires, Account: acct}, nil
}

// Get returns an account.
func (s *Service) Get(ctx context.Context, id string) (account.Account, error) {
	acct, err := s.store.GetAccount(ctx, id)
	return acct, common.StoreError(err, "account", id)
}

// UpdateProfile applies the non-nil profile fields.
func (s *Service) UpdateProfile(ctx context.Context, id string, p Profile) (account.Account, error) {
	acct, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return account.Account{}, common.StoreError(err, "account", id)
	}
	if p.DisplayName != nil {
		name, err := common.Required("display_name", *p.DisplayName)
		if err != nil {
			return account.Account{}, err
		}
		acct.DisplayName = name
	}
	if p.Currency != nil {
		code, err := common.Currency(*p.Currency, account.DefaultCurrency)
		if err != nil {
			return account.Account{}, err
		}
		acct.Currency = code
	}
	if p.MonthlyBudget != nil {
		if err := common.NonNegative("monthly_budget", *p.MonthlyBudget); err != nil {
			return account.Account{}, err
		}
		acct.MonthlyBudget = *p.MonthlyBudget
	}
	updated, err := s.store.UpdateAccount(ctx, acct)
	return updated, common.StoreError(err, "account", id)
}

// Delete removes the account and everything it owns.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.store.GetAccount(ctx, id); err != nil {
		return common.StoreError(err, "account", id)
	}
	if s.purger != nil {
		if err := s.purger.PurgeOwner(ctx, id); err != nil {
			return svcerrors.Internal("delete account data", err)
		}
	}
	if err := s.store.DeleteAccount(ctx, id); err != nil {
		return common.StoreError(err, "account", id)
	}
	if s.identity != nil {
		if err := s.identity.Remove(ctx, id); err != nil {
			s.log.WithContext(ctx).WithError(err).WithField("account_id", id).Warn("identity removal failed")
		}
	}
	s.log.WithContext(ctx).WithField("account_id", id).Info("account deleted")
	return nil
}

func identityError(err error) error {
	if se := svcerrors.GetServiceError(err); se != nil {
		return err
	}
	return svcerrors.Unavailable("identity provider unavailable", err)
}
