package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitSchemaMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_init_schema.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no init schema migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE products",
		"CREATE TABLE pricing_tiers",
		"REFERENCES products (id) ON DELETE CASCADE",
		"CHECK (price_usd >= 0)",
		"CHECK (expiry_days >= 0)",
		"CREATE TABLE licenses",
		"license_key TEXT PRIMARY KEY",
		"CREATE TABLE transactions",
		"REFERENCES licenses (license_key)",
		"CREATE TABLE audit_events",
		"DROP TABLE IF EXISTS licenses",
	}
	for _, check := range checks {
		if !strings.Contains(content, check) {
			t.Errorf("migration missing %q", check)
		}
	}
}
