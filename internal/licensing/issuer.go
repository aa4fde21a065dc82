package licensing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fxtoolworks/licensebot/pkg/certificate"
	"github.com/fxtoolworks/licensebot/pkg/db/models"
	pkgerrors "github.com/fxtoolworks/licensebot/pkg/errors"
	"github.com/fxtoolworks/licensebot/pkg/logger"
	"github.com/fxtoolworks/licensebot/pkg/metrics"
)

type issuanceRepository interface {
	CreateIssuance(ctx context.Context, license *models.License, txn *models.Transaction) error
}

type certificateRenderer interface {
	Render(ctx context.Context, req certificate.RenderRequest) (string, error)
}

// IssueInput describes a license to mint. Tier is nil for trial products and
// TxRef carries the verified payment reference for paid ones.
type IssueInput struct {
	Username string
	Product  models.Product
	Tier     *models.PricingTier
	TxRef    string
}

// Issuance is a freshly minted license with its immutable delivery record.
type Issuance struct {
	License     models.License
	Transaction models.Transaction
}

// Issuer mints licenses. The records persist first in one transaction; the
// certificate renders afterwards, and a render failure returns the persisted
// issuance alongside the error so the key can still reach the user. Artifact
// delivery never rolls an issuance back.
type Issuer interface {
	Issue(ctx context.Context, input IssueInput) (*Issuance, error)
}

type issuer struct {
	repo     issuanceRepository
	renderer certificateRenderer
	logger   *logger.Logger
	metrics  *metrics.LicensingMetrics
	now      func() time.Time
}

// NewIssuer builds the license issuer.
func NewIssuer(repo issuanceRepository, renderer certificateRenderer, logg *logger.Logger, licMetrics *metrics.LicensingMetrics) (Issuer, error) {
	if repo == nil {
		return nil, fmt.Errorf("licensing repository required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("certificate renderer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &issuer{
		repo:     repo,
		renderer: renderer,
		logger:   logg,
		metrics:  licMetrics,
		now:      time.Now,
	}, nil
}

func (i *issuer) Issue(ctx context.Context, input IssueInput) (*Issuance, error) {
	if input.Username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username is required")
	}

	expiryDays, txHash, err := issuanceTerms(input)
	if err != nil {
		return nil, err
	}

	key := uuid.NewString()
	expiry := i.now().UTC().AddDate(0, 0, expiryDays)

	ctx = i.logger.WithLicenseKey(ctx, key)

	license := models.License{
		LicenseKey: key,
		Username:   input.Username,
		Expiry:     expiry,
		Active:     true,
		TxHash:     txHash,
		Product:    input.Product.Name,
		IsTrial:    input.Product.IsTrial,
	}
	txn := models.Transaction{
		LicenseKey:      key,
		Username:        input.Username,
		Product:         input.Product.Name,
		ProductFile:     input.Product.FileRef,
		CertificateFile: certificateRef(key),
		IsTrial:         input.Product.IsTrial,
	}

	if err := i.repo.CreateIssuance(ctx, &license, &txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist issuance")
	}

	i.metrics.IncIssued(license.IsTrial)
	i.logger.Info(ctx, "license issued")

	issuance := &Issuance{License: license, Transaction: txn}

	if _, err := i.renderer.Render(ctx, certificate.RenderRequest{
		LicenseKey: key,
		Username:   input.Username,
		Product:    input.Product.Name,
		Expiry:     expiry,
		IsTrial:    input.Product.IsTrial,
	}); err != nil {
		i.logger.Error(ctx, "rendering certificate", err)
		return issuance, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "render certificate")
	}

	return issuance, nil
}

// certificateRef is the stable artifact path for a license certificate. It is
// recorded on the transaction before rendering, so a renderer outage never
// costs the user their issuance.
func certificateRef(key string) string {
	return fmt.Sprintf("certs/license_%s.pdf", key)
}

// issuanceTerms resolves the expiry window and transaction hash for the input.
func issuanceTerms(input IssueInput) (int, string, error) {
	if input.Product.IsTrial {
		if input.Tier != nil {
			return 0, "", pkgerrors.New(pkgerrors.CodeStateConflict, "trial issuance cannot carry a pricing tier")
		}
		return input.Product.TrialExpiryDays, models.TrialTxHash, nil
	}
	if input.Tier == nil {
		return 0, "", pkgerrors.New(pkgerrors.CodeStateConflict, "paid issuance requires a pricing tier")
	}
	if input.TxRef == "" {
		return 0, "", pkgerrors.New(pkgerrors.CodeValidation, "paid issuance requires a verified payment reference")
	}
	return input.Tier.ExpiryDays, input.TxRef, nil
}
