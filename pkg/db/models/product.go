package models

import "time"

// Product is a catalog entry for a downloadable Expert Advisor build.
// A product is either a trial (TrialExpiryDays set, no tiers) or a paid
// product carrying at least one pricing tier.
type Product struct {
	ID              string        `gorm:"column:id;primaryKey"`
	Name            string        `gorm:"column:name;not null"`
	FileRef         string        `gorm:"column:file_ref;not null"`
	IsTrial         bool          `gorm:"column:is_trial;not null;default:false"`
	TrialExpiryDays int           `gorm:"column:trial_expiry_days;not null;default:0"`
	Tiers           []PricingTier `gorm:"foreignKey:ProductID;references:ID"`
	CreatedAt       time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}
