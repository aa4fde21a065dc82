package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fxtoolworks/licensebot/pkg/db/models"
	pkgerrors "github.com/fxtoolworks/licensebot/pkg/errors"
)

type productsRepository interface {
	List(ctx context.Context) ([]models.Product, error)
	FindByID(ctx context.Context, id string) (*models.Product, error)
	ListIDs(ctx context.Context) ([]string, error)
	Upsert(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
}

// Service exposes catalog listing and admin mutations.
type Service interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
	SaveProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

// TierInput is one pricing tier supplied by the admin.
type TierInput struct {
	TierID     string
	PriceUSD   decimal.Decimal
	PriceXLM   decimal.Decimal
	ExpiryDays int
}

// CreateProductInput holds the fields collected by the add-product flow.
type CreateProductInput struct {
	Name            string
	FileRef         string
	IsTrial         bool
	TrialExpiryDays int
	Tiers           []TierInput
}

type service struct {
	repo productsRepository
}

// NewService builds the catalog service.
func NewService(repo productsRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return products, nil
}

func (s *service) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup product")
	}
	return product, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if input.FileRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product file is required")
	}

	id, err := s.nextID(ctx)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		ID:              id,
		Name:            input.Name,
		FileRef:         input.FileRef,
		IsTrial:         input.IsTrial,
		TrialExpiryDays: input.TrialExpiryDays,
	}
	for _, tier := range input.Tiers {
		product.Tiers = append(product.Tiers, models.PricingTier{
			ProductID:  id,
			TierID:     tier.TierID,
			PriceUSD:   tier.PriceUSD,
			PriceXLM:   tier.PriceXLM,
			ExpiryDays: tier.ExpiryDays,
		})
	}

	if err := ValidateShape(product); err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return product, nil
}

// SaveProduct persists an edited product after re-checking its shape.
func (s *service) SaveProduct(ctx context.Context, product *models.Product) error {
	if product == nil || product.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if err := ValidateShape(product); err != nil {
		return err
	}
	if err := s.repo.Upsert(ctx, product); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save product")
	}
	return nil
}

func (s *service) DeleteProduct(ctx context.Context, id string) error {
	if id == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

// nextID assigns max(existing numeric ids)+1, starting at 1.
func (s *service) nextID(ctx context.Context) (string, error) {
	ids, err := s.repo.ListIDs(ctx)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list product ids")
	}
	max := 0
	for _, id := range ids {
		n, err := strconv.Atoi(id)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return strconv.Itoa(max + 1), nil
}

// ValidateShape enforces the product invariant: a trial product has an expiry
// window and no tiers, a paid product has at least one tier and no trial
// settings.
func ValidateShape(product *models.Product) error {
	if product.IsTrial {
		if len(product.Tiers) > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "trial products cannot carry pricing tiers")
		}
		if product.TrialExpiryDays < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "trial expiry days must not be negative")
		}
		return nil
	}

	if product.TrialExpiryDays != 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "paid products cannot carry trial settings")
	}
	if len(product.Tiers) == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "paid products need at least one pricing tier")
	}
	seen := map[string]bool{}
	for _, tier := range product.Tiers {
		if tier.TierID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "tier id is required")
		}
		if seen[tier.TierID] {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("duplicate tier id %q", tier.TierID))
		}
		seen[tier.TierID] = true
		if tier.PriceUSD.IsNegative() || tier.PriceXLM.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "tier prices must not be negative")
		}
		if tier.ExpiryDays < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "tier expiry days must not be negative")
		}
	}
	return nil
}
