package models

import "time"

// TrialTxHash marks licenses issued without payment.
const TrialTxHash = "trial-no-payment"

// License is an issued key. Hwid stays empty until the first validation
// that supplies one; after that it never changes through validation.
type License struct {
	LicenseKey string    `gorm:"column:license_key;primaryKey"`
	Username   string    `gorm:"column:username;not null"`
	Hwid       string    `gorm:"column:hwid;not null;default:''"`
	Expiry     time.Time `gorm:"column:expiry;not null"`
	Active     bool      `gorm:"column:active;not null;default:true"`
	TxHash     string    `gorm:"column:tx_hash;not null"`
	Product    string    `gorm:"column:product;not null"`
	IsTrial    bool      `gorm:"column:is_trial;not null;default:false"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Expired reports whether the license expiry date lies strictly before the
// given day.
func (l License) Expired(now time.Time) bool {
	day := now.UTC().Truncate(24 * time.Hour)
	expiry := l.Expiry.UTC().Truncate(24 * time.Hour)
	return expiry.Before(day)
}
