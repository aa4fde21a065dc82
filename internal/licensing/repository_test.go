package licensing

import (
	"context"
	"errors"
	"testing"

	"github.com/fxtoolworks/licensebot/pkg/config"
	"github.com/fxtoolworks/licensebot/pkg/db"
	"github.com/fxtoolworks/licensebot/pkg/db/models"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	client, err := db.New(context.Background(), config.DBConfig{Driver: "sqlite", DSN: "file::memory:"}, testLogger())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	if err := client.DB().AutoMigrate(&models.License{}, &models.Transaction{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewRepository(client)
}

func TestBindHwidFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	license := activeLicense("key-1")
	txn := &models.Transaction{LicenseKey: "key-1", Username: "alice", Product: "Trend EA"}
	if err := repo.CreateIssuance(ctx, license, txn); err != nil {
		t.Fatalf("create issuance: %v", err)
	}

	if err := repo.BindHwid(ctx, "key-1", "HW-1"); err != nil {
		t.Fatalf("first bind: %v", err)
	}
	if err := repo.BindHwid(ctx, "key-1", "HW-2"); !errors.Is(err, ErrHwidAlreadyBound) {
		t.Fatalf("expected ErrHwidAlreadyBound, got %v", err)
	}

	got, err := repo.FindLicense(ctx, "key-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Hwid != "HW-1" {
		t.Fatalf("expected the first hwid kept, got %q", got.Hwid)
	}
}

func TestBindHwidUnknownKey(t *testing.T) {
	repo := newTestRepository(t)

	err := repo.BindHwid(context.Background(), "missing", "HW-1")
	if !errors.Is(err, ErrHwidAlreadyBound) {
		t.Fatalf("expected ErrHwidAlreadyBound, got %v", err)
	}
}
