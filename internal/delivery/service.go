package delivery

import (
	"context"
	"errors"
	"fmt"
	"path"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/fxtoolworks/licensebot/pkg/chat"
	"github.com/fxtoolworks/licensebot/pkg/config"
	"github.com/fxtoolworks/licensebot/pkg/db/models"
	"github.com/fxtoolworks/licensebot/pkg/enums"
	pkgerrors "github.com/fxtoolworks/licensebot/pkg/errors"
	"github.com/fxtoolworks/licensebot/pkg/logger"
	"github.com/fxtoolworks/licensebot/pkg/metrics"
)

type transactionsRepository interface {
	FindTransaction(ctx context.Context, key string) (*models.Transaction, error)
}

// Service sends license artifacts to a chat. Delivery always follows the
// issuance record, so /resend replays exactly what was sent the first time.
type Service interface {
	Deliver(ctx context.Context, chatID int64, txn *models.Transaction) error
	Resend(ctx context.Context, chatID int64, licenseKey string) error
}

type service struct {
	repo          transactionsRepository
	gateway       chat.Gateway
	usageGuideRef string
	logger        *logger.Logger
	metrics       *metrics.LicensingMetrics
}

// NewService builds the delivery service.
func NewService(repo transactionsRepository, gateway chat.Gateway, cfg config.DeliveryConfig, logg *logger.Logger, licMetrics *metrics.LicensingMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("chat gateway required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:          repo,
		gateway:       gateway,
		usageGuideRef: cfg.UsageGuideRef,
		logger:        logg,
		metrics:       licMetrics,
	}, nil
}

type artifact struct {
	kind    enums.ArtifactKind
	doc     chat.Document
	caption string
}

// Deliver sends the certificate, the product file, and the usage guide, in
// that order. A failed artifact does not stop the later ones; all failures
// are reported together. Issuance records are already committed by the time
// this runs, so delivery errors never undo them.
func (s *service) Deliver(ctx context.Context, chatID int64, txn *models.Transaction) error {
	if txn == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction is required")
	}

	ctx = s.logger.WithLicenseKey(s.logger.WithChatID(ctx, chatID), txn.LicenseKey)

	var errs error
	for _, a := range s.artifacts(txn) {
		if err := s.gateway.SendDocument(ctx, chatID, a.doc, a.caption); err != nil {
			s.logger.Error(ctx, "artifact delivery failed", err)
			errs = multierr.Append(errs, fmt.Errorf("send %s: %w", a.kind, err))
		}
	}
	if errs != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "deliver artifacts")
	}

	s.logger.Info(ctx, "license artifacts delivered")
	return nil
}

// Resend replays the artifacts recorded for a license key.
func (s *service) Resend(ctx context.Context, chatID int64, licenseKey string) error {
	if licenseKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "license key is required")
	}

	txn, err := s.repo.FindTransaction(ctx, licenseKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no delivery record for this license key")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup delivery record")
	}

	if err := s.Deliver(ctx, chatID, txn); err != nil {
		return err
	}

	s.metrics.IncResend()
	return nil
}

func (s *service) artifacts(txn *models.Transaction) []artifact {
	certCaption := fmt.Sprintf("License certificate for %s", txn.Product)
	if txn.IsTrial {
		certCaption = fmt.Sprintf("Trial license certificate for %s", txn.Product)
	}
	return []artifact{
		{
			kind:    enums.ArtifactCertificate,
			doc:     chat.Document{FileRef: txn.CertificateFile, FileName: path.Base(txn.CertificateFile)},
			caption: certCaption,
		},
		{
			kind:    enums.ArtifactProductFile,
			doc:     chat.Document{FileRef: txn.ProductFile, FileName: path.Base(txn.ProductFile)},
			caption: txn.Product,
		},
		{
			kind:    enums.ArtifactUsageGuide,
			doc:     chat.Document{FileRef: s.usageGuideRef, FileName: path.Base(s.usageGuideRef)},
			caption: "Usage guide",
		},
	}
}
