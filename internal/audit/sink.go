package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fxtoolworks/licensebot/pkg/db/models"
	"github.com/fxtoolworks/licensebot/pkg/logger"
)

// Sink records administrative actions. Implementations must be append-only.
type Sink interface {
	Record(ctx context.Context, actorID int64, action, detail string) error
}

type eventsRepository interface {
	Create(ctx context.Context, event *models.AuditEvent) error
}

type sink struct {
	repo eventsRepository
	logg *logger.Logger
}

// NewSink builds an audit sink backed by the events repository.
func NewSink(repo eventsRepository, logg *logger.Logger) (Sink, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &sink{repo: repo, logg: logg}, nil
}

// Record persists the event and mirrors it to the structured log. Sink
// failures are logged, never surfaced to the admin conversation.
func (s *sink) Record(ctx context.Context, actorID int64, action, detail string) error {
	event := &models.AuditEvent{
		ID:      uuid.New(),
		ActorID: actorID,
		Action:  action,
		Detail:  detail,
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"actor_id": actorID,
		"action":   action,
		"detail":   detail,
	})
	if err := s.repo.Create(ctx, event); err != nil {
		s.logg.Error(logCtx, "audit.record_failed", err)
		return err
	}
	s.logg.Info(logCtx, "audit.recorded")
	return nil
}

// Repository persists audit events with GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository wires the audit repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new audit event row.
func (r *Repository) Create(ctx context.Context, event *models.AuditEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
