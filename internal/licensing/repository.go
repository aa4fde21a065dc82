package licensing

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/fxtoolworks/licensebot/pkg/db"
	"github.com/fxtoolworks/licensebot/pkg/db/models"
)

// Repository persists licenses and their issuance records.
type Repository struct {
	client *db.Client
}

// NewRepository wires the licensing repository.
func NewRepository(client *db.Client) *Repository {
	return &Repository{client: client}
}

// FindLicense loads a license by key.
func (r *Repository) FindLicense(ctx context.Context, key string) (*models.License, error) {
	var license models.License
	err := r.client.DB().WithContext(ctx).
		First(&license, "license_key = ?", key).Error
	if err != nil {
		return nil, err
	}
	return &license, nil
}

// FindTransaction loads the issuance record for a key.
func (r *Repository) FindTransaction(ctx context.Context, key string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.client.DB().WithContext(ctx).
		First(&txn, "license_key = ?", key).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// CreateIssuance writes the license and its transaction record atomically.
func (r *Repository) CreateIssuance(ctx context.Context, license *models.License, txn *models.Transaction) error {
	return r.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(license).Error; err != nil {
			return err
		}
		return tx.Create(txn).Error
	})
}

// ErrHwidAlreadyBound reports a BindHwid call that found the stored hwid no
// longer empty, usually because a concurrent first validation won the bind.
var ErrHwidAlreadyBound = errors.New("hwid already bound")

// BindHwid records the first hardware id seen for a license. It only writes
// when the stored hwid is still empty and returns ErrHwidAlreadyBound when
// that guard matched no row.
func (r *Repository) BindHwid(ctx context.Context, key, hwid string) error {
	result := r.client.DB().WithContext(ctx).
		Model(&models.License{}).
		Where("license_key = ? AND hwid = ''", key).
		Update("hwid", hwid)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrHwidAlreadyBound
	}
	return nil
}

// SetActive flips the active flag on a license.
func (r *Repository) SetActive(ctx context.Context, key string, active bool) error {
	result := r.client.DB().WithContext(ctx).
		Model(&models.License{}).
		Where("license_key = ?", key).
		Update("active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListActiveExpiringBetween returns active licenses whose expiry falls inside
// the half-open window [from, to).
func (r *Repository) ListActiveExpiringBetween(ctx context.Context, from, to time.Time) ([]models.License, error) {
	var licenses []models.License
	err := r.client.DB().WithContext(ctx).
		Where("active = ? AND expiry >= ? AND expiry < ?", true, from, to).
		Order("expiry").
		Find(&licenses).Error
	return licenses, err
}

// ListActiveExpired returns active licenses whose expiry lies before the cutoff.
func (r *Repository) ListActiveExpired(ctx context.Context, cutoff time.Time) ([]models.License, error) {
	var licenses []models.License
	err := r.client.DB().WithContext(ctx).
		Where("active = ? AND expiry < ?", true, cutoff).
		Order("expiry").
		Find(&licenses).Error
	return licenses, err
}
