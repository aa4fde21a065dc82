package models

import "time"

// Transaction is the immutable issuance record backing /resend. It stores
// the exact artifact refs that were delivered with the license.
type Transaction struct {
	LicenseKey      string    `gorm:"column:license_key;primaryKey"`
	Username        string    `gorm:"column:username;not null"`
	Product         string    `gorm:"column:product;not null"`
	ProductFile     string    `gorm:"column:product_file;not null"`
	CertificateFile string    `gorm:"column:certificate_file;not null"`
	IsTrial         bool      `gorm:"column:is_trial;not null;default:false"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}
