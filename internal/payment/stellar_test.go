package payment

import (
	"strings"
	"testing"

	pkgerrors "github.com/fxtoolworks/licensebot/pkg/errors"
)

const goodAddress = "GABCDEFGHIJKLMNOPQRSTUVWXYZ234567ABCDEFGHIJKLMNOPQRSTUVW"

func TestNormalizeAddressStripsNoise(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercase", in: strings.ToLower(goodAddress), want: goodAddress},
		{name: "whitespace", in: "  " + goodAddress + "\n", want: goodAddress},
		{name: "dashes", in: goodAddress[:8] + "-" + goodAddress[8:], want: goodAddress},
		{name: "punctuation", in: "<" + goodAddress + ">!", want: goodAddress},
		{name: "non-ascii letters", in: "É" + goodAddress + "ñ", want: goodAddress},
		{name: "unicode digits", in: goodAddress + "٣", want: goodAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeAddress(tt.in); got != tt.want {
				t.Fatalf("NormalizeAddress(%q) = %q", tt.in, got)
			}
		})
	}
}

func TestParseAddressShapeChecks(t *testing.T) {
	if _, err := ParseAddress(goodAddress); err != nil {
		t.Fatalf("valid address rejected: %v", err)
	}

	if _, err := ParseAddress(goodAddress[:40]); err == nil {
		t.Fatal("short address should be rejected")
	}

	wrongPrefix := "A" + goodAddress[1:]
	if _, err := ParseAddress(wrongPrefix); err == nil {
		t.Fatal("address not starting with G should be rejected")
	}

	_, err := ParseAddress("nonsense")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
