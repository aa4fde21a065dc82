package conversation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fxtoolworks/licensebot/internal/catalog"
)

const (
	tierEntryFormat  = "tier_id,price_usd,price_xlm,expiry_days"
	tierValuesFormat = "price_usd,price_xlm,expiry_days"
)

// parseTierEntry parses a full tier line, e.g. "basic,10,50,30".
func parseTierEntry(text string) (catalog.TierInput, error) {
	parts := splitFields(text)
	if len(parts) != 4 {
		return catalog.TierInput{}, fmt.Errorf("expected %s", tierEntryFormat)
	}
	if parts[0] == "" {
		return catalog.TierInput{}, fmt.Errorf("tier id must not be empty")
	}
	usd, xlm, days, err := parseTierNumbers(parts[1], parts[2], parts[3])
	if err != nil {
		return catalog.TierInput{}, err
	}
	return catalog.TierInput{
		TierID:     parts[0],
		PriceUSD:   usd,
		PriceXLM:   xlm,
		ExpiryDays: days,
	}, nil
}

// parseTierValues parses a tier replacement line, e.g. "10,50,30".
func parseTierValues(text string) (decimal.Decimal, decimal.Decimal, int, error) {
	parts := splitFields(text)
	if len(parts) != 3 {
		return decimal.Decimal{}, decimal.Decimal{}, 0, fmt.Errorf("expected %s", tierValuesFormat)
	}
	return parseTierNumbers(parts[0], parts[1], parts[2])
}

func parseTierNumbers(usdRaw, xlmRaw, daysRaw string) (decimal.Decimal, decimal.Decimal, int, error) {
	usd, err := decimal.NewFromString(usdRaw)
	if err != nil || usd.IsNegative() {
		return decimal.Decimal{}, decimal.Decimal{}, 0, fmt.Errorf("price_usd must be a non-negative number")
	}
	xlm, err := decimal.NewFromString(xlmRaw)
	if err != nil || xlm.IsNegative() {
		return decimal.Decimal{}, decimal.Decimal{}, 0, fmt.Errorf("price_xlm must be a non-negative number")
	}
	days, err := strconv.Atoi(daysRaw)
	if err != nil || days < 0 {
		return decimal.Decimal{}, decimal.Decimal{}, 0, fmt.Errorf("expiry_days must be a non-negative integer")
	}
	return usd, xlm, days, nil
}

func splitFields(text string) []string {
	parts := strings.Split(text, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
