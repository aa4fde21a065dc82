package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/fxtoolworks/licensebot/pkg/db/models"
	"github.com/fxtoolworks/licensebot/pkg/logger"
)

const defaultWarningDays = 7

// ExpiryReportJobParams configure the scheduled expiry report.
type ExpiryReportJobParams struct {
	Logger      *logger.Logger
	Repo        licensesReporter
	Notifier    adminNotifier
	AdminChatID int64
	WarningDays int
}

type licensesReporter interface {
	ListActiveExpiringBetween(ctx context.Context, from, to time.Time) ([]models.License, error)
	ListActiveExpired(ctx context.Context, cutoff time.Time) ([]models.License, error)
}

type adminNotifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// NewExpiryReportJob constructs the daily license expiry report. The job only
// reads and notifies; it never flips the active flag, so a deactivated
// license stays distinguishable from a merely expired one.
func NewExpiryReportJob(params ExpiryReportJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("licensing repository required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("admin notifier required")
	}
	if params.AdminChatID == 0 {
		return nil, fmt.Errorf("admin chat id required")
	}
	warningDays := params.WarningDays
	if warningDays <= 0 {
		warningDays = defaultWarningDays
	}
	return &expiryReportJob{
		logg:        params.Logger,
		repo:        params.Repo,
		notifier:    params.Notifier,
		adminChatID: params.AdminChatID,
		warningDays: warningDays,
		now:         time.Now,
	}, nil
}

type expiryReportJob struct {
	logg        *logger.Logger
	repo        licensesReporter
	notifier    adminNotifier
	adminChatID int64
	warningDays int
	now         func() time.Time
}

func (j *expiryReportJob) Name() string { return "expiry-report" }

func (j *expiryReportJob) Run(ctx context.Context) error {
	var errs []error
	if err := j.warnExpiring(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := j.reportExpired(ctx); err != nil {
		errs = append(errs, err)
	}
	return multierr.Combine(errs...)
}

func (j *expiryReportJob) warnExpiring(ctx context.Context) error {
	target := j.now().UTC().AddDate(0, 0, j.warningDays)
	start := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	licenses, err := j.repo.ListActiveExpiringBetween(ctx, start, end)
	if err != nil {
		return fmt.Errorf("query expiring licenses: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "count", len(licenses))
	if len(licenses) == 0 {
		j.logg.Info(logCtx, "no licenses approaching expiry")
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d license(s) expire in %d days:\n", len(licenses), j.warningDays)
	writeLicenseLines(&b, licenses)
	if err := j.notifier.SendText(ctx, j.adminChatID, strings.TrimRight(b.String(), "\n")); err != nil {
		return fmt.Errorf("send expiry warning: %w", err)
	}

	j.logg.Info(logCtx, "expiry warning sent")
	return nil
}

func (j *expiryReportJob) reportExpired(ctx context.Context) error {
	cutoff := j.now().UTC().Truncate(24 * time.Hour)

	licenses, err := j.repo.ListActiveExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query expired licenses: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "count", len(licenses))
	if len(licenses) == 0 {
		j.logg.Info(logCtx, "no expired licenses outstanding")
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d license(s) have passed their expiry:\n", len(licenses))
	writeLicenseLines(&b, licenses)
	if err := j.notifier.SendText(ctx, j.adminChatID, strings.TrimRight(b.String(), "\n")); err != nil {
		return fmt.Errorf("send expired report: %w", err)
	}

	j.logg.Info(logCtx, "expired report sent")
	return nil
}

func writeLicenseLines(b *strings.Builder, licenses []models.License) {
	for _, lic := range licenses {
		fmt.Fprintf(b, "  %s - %s (%s), expires %s\n",
			lic.LicenseKey, lic.Username, lic.Product, lic.Expiry.UTC().Format("2006-01-02"))
	}
}
