package payment

import (
	"context"
	"testing"

	"github.com/fxtoolworks/licensebot/pkg/config"
)

func TestSimulatedOracleVerifiesOnlyTestAddress(t *testing.T) {
	oracle, err := NewSimulatedOracle(config.StellarConfig{TestAddress: goodAddress})
	if err != nil {
		t.Fatalf("NewSimulatedOracle: %v", err)
	}

	result, err := oracle.Check(context.Background(), goodAddress)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !result.Verified {
		t.Fatal("expected test address to verify")
	}
	if result.TxRef != SimulatedTxRef {
		t.Fatalf("unexpected tx ref %q", result.TxRef)
	}

	other := "G" + goodAddress[2:] + "7"
	result, err = oracle.Check(context.Background(), other)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if result.Verified {
		t.Fatal("expected non-test address to be rejected")
	}
	if result.TxRef != "" {
		t.Fatalf("rejected check should carry no tx ref, got %q", result.TxRef)
	}
}

func TestSimulatedOracleRejectsMalformedConfig(t *testing.T) {
	if _, err := NewSimulatedOracle(config.StellarConfig{TestAddress: "short"}); err == nil {
		t.Fatal("expected malformed test address to fail construction")
	}
}
