package licensing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fxtoolworks/licensebot/pkg/db/models"
	"github.com/fxtoolworks/licensebot/pkg/enums"
	pkgerrors "github.com/fxtoolworks/licensebot/pkg/errors"
	"github.com/fxtoolworks/licensebot/pkg/logger"
	"github.com/fxtoolworks/licensebot/pkg/metrics"
)

type licensesRepository interface {
	FindLicense(ctx context.Context, key string) (*models.License, error)
	BindHwid(ctx context.Context, key, hwid string) error
	SetActive(ctx context.Context, key string, active bool) error
}

// Verdict is the outcome of a validation check. Message carries user-facing
// detail, such as the upsell note for an expired trial.
type Verdict struct {
	Result  enums.LicenseVerdict
	License *models.License
	Message string
}

// Validator checks license keys and manages their active flag.
type Validator interface {
	Validate(ctx context.Context, key, hwid string) (Verdict, error)
	Deactivate(ctx context.Context, key string) error
	Reactivate(ctx context.Context, key string) error
}

type validator struct {
	repo    licensesRepository
	logger  *logger.Logger
	metrics *metrics.LicensingMetrics
	botLink string
	now     func() time.Time
}

// NewValidator builds the license validator. botLink appears in the upsell
// message shown when a trial license has expired.
func NewValidator(repo licensesRepository, logg *logger.Logger, licMetrics *metrics.LicensingMetrics, botLink string) (Validator, error) {
	if repo == nil {
		return nil, fmt.Errorf("licensing repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &validator{
		repo:    repo,
		logger:  logg,
		metrics: licMetrics,
		botLink: botLink,
		now:     time.Now,
	}, nil
}

// Validate runs the verdict checks in order: unknown key, hardware mismatch,
// deactivation, expiry. A valid check against an unbound license binds the
// supplied hardware id permanently; an empty hwid skips the hardware check.
func (v *validator) Validate(ctx context.Context, key, hwid string) (Verdict, error) {
	if key == "" {
		return Verdict{}, pkgerrors.New(pkgerrors.CodeValidation, "license key is required")
	}

	ctx = v.logger.WithLicenseKey(ctx, key)

	license, err := v.repo.FindLicense(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return v.verdict(ctx, Verdict{Result: enums.VerdictNotFound})
		}
		return Verdict{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
	}

	if hwid != "" && license.Hwid != "" && license.Hwid != hwid {
		return v.verdict(ctx, Verdict{Result: enums.VerdictHwidMismatch, License: license})
	}

	if !license.Active {
		return v.verdict(ctx, Verdict{Result: enums.VerdictDeactivated, License: license})
	}

	if license.Expired(v.now()) {
		result := Verdict{Result: enums.VerdictExpired, License: license}
		if license.IsTrial {
			result.Message = fmt.Sprintf("Your trial has expired. Purchase a full license at %s", v.botLink)
		}
		return v.verdict(ctx, result)
	}

	if hwid != "" && license.Hwid == "" {
		switch err := v.repo.BindHwid(ctx, key, hwid); {
		case errors.Is(err, ErrHwidAlreadyBound):
			// a concurrent validation won the bind; re-read to see what stuck
			license, err = v.repo.FindLicense(ctx, key)
			if err != nil {
				return Verdict{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload license")
			}
			if license.Hwid != hwid {
				return v.verdict(ctx, Verdict{Result: enums.VerdictHwidMismatch, License: license})
			}
		case err != nil:
			return Verdict{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bind hwid")
		default:
			license.Hwid = hwid
			v.logger.Info(ctx, "hardware id bound to license")
		}
	}

	return v.verdict(ctx, Verdict{Result: enums.VerdictValid, License: license})
}

func (v *validator) verdict(ctx context.Context, result Verdict) (Verdict, error) {
	v.metrics.IncValidated(result.Result)
	v.logger.Info(v.logger.WithField(ctx, "verdict", result.Result.String()), "license validated")
	return result, nil
}

// Deactivate turns a license off without touching its expiry.
func (v *validator) Deactivate(ctx context.Context, key string) error {
	return v.setActive(ctx, key, false)
}

// Reactivate turns a previously deactivated license back on.
func (v *validator) Reactivate(ctx context.Context, key string) error {
	return v.setActive(ctx, key, true)
}

func (v *validator) setActive(ctx context.Context, key string, active bool) error {
	if key == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "license key is required")
	}
	if err := v.repo.SetActive(ctx, key, active); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update license active flag")
	}
	return nil
}
