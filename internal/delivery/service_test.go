package delivery

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/fxtoolworks/licensebot/pkg/chat"
	"github.com/fxtoolworks/licensebot/pkg/config"
	"github.com/fxtoolworks/licensebot/pkg/db/models"
	pkgerrors "github.com/fxtoolworks/licensebot/pkg/errors"
	"github.com/fxtoolworks/licensebot/pkg/logger"
)

type stubTxnRepo struct {
	txns map[string]*models.Transaction
}

func (s *stubTxnRepo) FindTransaction(ctx context.Context, key string) (*models.Transaction, error) {
	if txn, ok := s.txns[key]; ok {
		return txn, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type sentDoc struct {
	chatID  int64
	doc     chat.Document
	caption string
}

type stubGateway struct {
	sent    []sentDoc
	failRef string
}

func (s *stubGateway) SendText(ctx context.Context, chatID int64, text string) error {
	return nil
}

func (s *stubGateway) SendDocument(ctx context.Context, chatID int64, doc chat.Document, caption string) error {
	if s.failRef != "" && doc.FileRef == s.failRef {
		return errors.New("transport error")
	}
	s.sent = append(s.sent, sentDoc{chatID: chatID, doc: doc, caption: caption})
	return nil
}

func sampleTxn() *models.Transaction {
	return &models.Transaction{
		LicenseKey:      "key-1",
		Username:        "alice",
		Product:         "Scalper EA",
		ProductFile:     "files/scalper.ex5",
		CertificateFile: "certs/key-1.pdf",
	}
}

func newTestService(t *testing.T, repo *stubTxnRepo, gateway *stubGateway) Service {
	t.Helper()
	svc, err := NewService(repo, gateway, config.DeliveryConfig{
		UsageGuideRef: "docs/ea_usage_guide.pdf",
	}, logger.New(logger.Options{ServiceName: "test"}), nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestDeliverSendsArtifactsInOrder(t *testing.T) {
	gateway := &stubGateway{}
	svc := newTestService(t, &stubTxnRepo{}, gateway)

	if err := svc.Deliver(context.Background(), 99, sampleTxn()); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if len(gateway.sent) != 3 {
		t.Fatalf("expected 3 artifacts, got %d", len(gateway.sent))
	}
	refs := []string{"certs/key-1.pdf", "files/scalper.ex5", "docs/ea_usage_guide.pdf"}
	for i, ref := range refs {
		if gateway.sent[i].doc.FileRef != ref {
			t.Fatalf("artifact %d: expected %s, got %s", i, ref, gateway.sent[i].doc.FileRef)
		}
		if gateway.sent[i].chatID != 99 {
			t.Fatalf("artifact %d went to chat %d", i, gateway.sent[i].chatID)
		}
	}
	if gateway.sent[0].doc.FileName != "key-1.pdf" {
		t.Fatalf("expected base file name, got %s", gateway.sent[0].doc.FileName)
	}
}

func TestDeliverContinuesPastFailedArtifact(t *testing.T) {
	gateway := &stubGateway{failRef: "files/scalper.ex5"}
	svc := newTestService(t, &stubTxnRepo{}, gateway)

	err := svc.Deliver(context.Background(), 99, sampleTxn())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}

	// certificate and usage guide still went out
	if len(gateway.sent) != 2 {
		t.Fatalf("expected 2 delivered artifacts, got %d", len(gateway.sent))
	}
	if gateway.sent[1].doc.FileRef != "docs/ea_usage_guide.pdf" {
		t.Fatalf("expected usage guide after failure, got %s", gateway.sent[1].doc.FileRef)
	}
}

func TestResendReplaysRecordedArtifacts(t *testing.T) {
	gateway := &stubGateway{}
	repo := &stubTxnRepo{txns: map[string]*models.Transaction{"key-1": sampleTxn()}}
	svc := newTestService(t, repo, gateway)

	if err := svc.Resend(context.Background(), 42, "key-1"); err != nil {
		t.Fatalf("Resend: %v", err)
	}
	if err := svc.Resend(context.Background(), 42, "key-1"); err != nil {
		t.Fatalf("second Resend: %v", err)
	}

	// each resend replays the same three documents
	if len(gateway.sent) != 6 {
		t.Fatalf("expected 6 sends across two resends, got %d", len(gateway.sent))
	}
	if gateway.sent[0].doc.FileRef != gateway.sent[3].doc.FileRef {
		t.Fatal("resends must replay identical artifacts")
	}
}

func TestResendUnknownKey(t *testing.T) {
	svc := newTestService(t, &stubTxnRepo{}, &stubGateway{})

	err := svc.Resend(context.Background(), 42, "missing")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
