package enums

import "fmt"

// LicenseVerdict is the outcome of checking a license key against a hardware id.
type LicenseVerdict string

const (
	VerdictValid        LicenseVerdict = "valid"
	VerdictNotFound     LicenseVerdict = "not_found"
	VerdictHwidMismatch LicenseVerdict = "hwid_mismatch"
	VerdictDeactivated  LicenseVerdict = "deactivated"
	VerdictExpired      LicenseVerdict = "expired"
)

var validLicenseVerdicts = []LicenseVerdict{
	VerdictValid,
	VerdictNotFound,
	VerdictHwidMismatch,
	VerdictDeactivated,
	VerdictExpired,
}

// String implements fmt.Stringer.
func (v LicenseVerdict) String() string {
	return string(v)
}

// IsValid reports whether the value is a known verdict.
func (v LicenseVerdict) IsValid() bool {
	for _, candidate := range validLicenseVerdicts {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseLicenseVerdict converts raw input into LicenseVerdict.
func ParseLicenseVerdict(value string) (LicenseVerdict, error) {
	for _, candidate := range validLicenseVerdicts {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid license verdict %q", value)
}
