package payment

import (
	"context"
	"fmt"

	"github.com/fxtoolworks/licensebot/pkg/config"
)

// SimulatedTxRef is recorded on licenses paid through the simulated oracle.
const SimulatedTxRef = "simulated-tx-hash-1234567890"

// Verification is the oracle's answer for a claimed sender address.
type Verification struct {
	Verified bool
	TxRef    string
}

// Oracle decides whether a payment from the given sender address settled.
type Oracle interface {
	Check(ctx context.Context, senderAddress string) (Verification, error)
}

// SimulatedOracle verifies exactly one configured address. It stands in for
// ledger settlement, which is out of scope.
type SimulatedOracle struct {
	testAddress string
}

// NewSimulatedOracle builds the oracle from the Stellar configuration.
func NewSimulatedOracle(cfg config.StellarConfig) (*SimulatedOracle, error) {
	addr, err := ParseAddress(cfg.TestAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid test address: %w", err)
	}
	return &SimulatedOracle{testAddress: addr}, nil
}

// Check reports verified only for the configured test address.
func (o *SimulatedOracle) Check(ctx context.Context, senderAddress string) (Verification, error) {
	if senderAddress == o.testAddress {
		return Verification{Verified: true, TxRef: SimulatedTxRef}, nil
	}
	return Verification{}, nil
}
