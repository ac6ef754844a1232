package products

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/souschef/internal/app/domain/account"
	"github.com/R3E-Network/souschef/internal/app/domain/product"
	"github.com/R3E-Network/souschef/internal/app/services/common"
	"github.com/R3E-Network/souschef/internal/app/storage"
	svcerrors "github.com/R3E-Network/souschef/internal/errors"
	"github.com/R3E-Network/souschef/internal/logging"
)

// Input carries the editable product fields.
type Input struct {
	Name     string          `json:"name"`
	Store    string          `json:"store"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
}

// Service manages products.
type Service struct {
	store storage.ProductStore
	log   *logging.Logger
}

// New constructs a product service.
func New(store storage.ProductStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("products")
	}
	return &Service{store: store, log: log}
}

func (in Input) apply(p *product.Product) error {
	name, err := common.Required("name", in.Name)
	if err != nil {
		return err
	}
	if err := common.NonNegative("price", in.Price); err != nil {
		return err
	}
	currency, err := common.Currency(in.Currency, account.DefaultCurrency)
	if err != nil {
		return err
	}
	p.Name = name
	p.Store = strings.TrimSpace(in.Store)
	p.Price = in.Price
	p.Currency = currency
	return nil
}

func (s *Service) Create(ctx context.Context, owner string, in Input) (product.Product, error) {
	if owner == "" {
		return product.Product{}, svcerrors.Unauthorized("")
	}
	p := product.Product{OwnerID: owner}
	if err := in.apply(&p); err != nil {
		return product.Product{}, err
	}
	created, err := s.store.CreateProduct(ctx, p)
	return created, common.StoreError(err, "product", p.ID)
}

func (s *Service) Get(ctx context.Context, owner, id string) (product.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return product.Product{}, common.StoreError(err, "product", id)
	}
	if err := common.Owned(owner, p.OwnerID, "product", id); err != nil {
		return product.Product{}, err
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, owner, id string, in Input) (product.Product, error) {
	p, err := s.Get(ctx, owner, id)
	if err != nil {
		return product.Product{}, err
	}
	if err := in.apply(&p); err != nil {
		return product.Product{}, err
	}
	updated, err := s.store.UpdateProduct(ctx, p)
	return updated, common.StoreError(err, "product", id)
}

// List returns owner's products, oldest first.
func (s *Service) List(ctx context.Context, owner string) ([]product.Product, error) {
	items, err := s.store.ListProducts(ctx, owner)
	if err != nil {
		return nil, common.StoreError(err, "product", "")
	}
	return items, nil
}

func (s *Service) Delete(ctx context.Context, owner, id string) error {
	if _, err := s.Get(ctx, owner, id); err != nil {
		return err
	}
	return common.StoreError(s.store.DeleteProduct(ctx, id), "product", id)
}
