package models

import "github.com/shopspring/decimal"

// PricingTier is one purchasable option of a paid product.
type PricingTier struct {
	ProductID  string          `gorm:"column:product_id;primaryKey"`
	TierID     string          `gorm:"column:tier_id;primaryKey"`
	PriceUSD   decimal.Decimal `gorm:"column:price_usd;type:numeric;not null"`
	PriceXLM   decimal.Decimal `gorm:"column:price_xlm;type:numeric;not null"`
	ExpiryDays int             `gorm:"column:expiry_days;not null"`
}
