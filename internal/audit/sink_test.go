package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/fxtoolworks/licensebot/pkg/db/models"
	"github.com/fxtoolworks/licensebot/pkg/logger"
)

type stubEventsRepo struct {
	created []*models.AuditEvent
	err     error
}

func (s *stubEventsRepo) Create(ctx context.Context, event *models.AuditEvent) error {
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, event)
	return nil
}

func TestRecordPersistsEvent(t *testing.T) {
	repo := &stubEventsRepo{}
	sink, err := NewSink(repo, logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}

	if err := sink.Record(context.Background(), 42, "product.create", "id=3 name=Scalper EA"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 event, got %d", len(repo.created))
	}
	event := repo.created[0]
	if event.ActorID != 42 || event.Action != "product.create" {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Fatal("expected generated event id")
	}
}

func TestRecordSurfacesRepoError(t *testing.T) {
	repo := &stubEventsRepo{err: errors.New("db down")}
	sink, err := NewSink(repo, logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	if err := sink.Record(context.Background(), 42, "product.delete", ""); err == nil {
		t.Fatal("expected repo error to propagate")
	}
}
