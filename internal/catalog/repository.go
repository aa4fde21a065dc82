package catalog

import (
	"context"

	"gorm.io/gorm"

	"github.com/fxtoolworks/licensebot/pkg/db/models"
)

// Repository persists catalog products and their pricing tiers.
type Repository struct {
	db *gorm.DB
}

// NewRepository wires the catalog repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List returns all products with tiers, ordered by id.
func (r *Repository) List(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Preload("Tiers").
		Order("id").
		Find(&products).Error
	return products, err
}

// FindByID loads one product with its tiers.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Tiers").
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListIDs returns every product id.
func (r *Repository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Pluck("id", &ids).Error
	return ids, err
}

// Upsert writes one product row and replaces its tier set, touching no other
// product. Runs in a single transaction.
func (r *Repository) Upsert(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := *product
		tiers := row.Tiers
		row.Tiers = nil
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", row.ID).Delete(&models.PricingTier{}).Error; err != nil {
			return err
		}
		if len(tiers) == 0 {
			return nil
		}
		return tx.Create(&tiers).Error
	})
}

// Delete removes a product; its tiers go with it.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.PricingTier{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Product{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
