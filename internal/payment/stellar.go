package payment

import (
	"strings"

	pkgerrors "github.com/fxtoolworks/licensebot/pkg/errors"
)

const addressLength = 56

// NormalizeAddress uppercases the input and strips everything outside ASCII
// A-Z and 0-9, the only characters a Stellar public key can contain. Users
// paste addresses with whitespace, dashes, and copied punctuation;
// normalization happens before any shape check.
func NormalizeAddress(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToUpper(raw) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseAddress normalizes and shape-checks a Stellar public key: exactly 56
// characters starting with 'G'. It returns the normalized form.
func ParseAddress(raw string) (string, error) {
	addr := NormalizeAddress(raw)
	if len(addr) != addressLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "stellar address must be 56 characters")
	}
	if addr[0] != 'G' {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "stellar address must start with G")
	}
	return addr, nil
}
