package db

import (
	"strings"
	"testing"
)

func TestMigrateIdempotent(t *testing.T) {
	database := NewTestDB(t)

	if err := Migrate(database); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	var n int
	err := database.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_loan_keys_key'`,
	).Scan(&n)
	if err != nil {
		t.Fatalf("querying indexes: %v", err)
	}
	if n != 1 {
		t.Errorf("expected migration index to exist once, got %d", n)
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	database := NewTestDB(t)

	var on int
	if err := database.QueryRow(`PRAGMA foreign_keys`).Scan(&on); err != nil {
		t.Fatalf("reading pragma: %v", err)
	}
	if on != 1 {
		t.Error("expected foreign keys to be enforced")
	}
}

func TestDSN(t *testing.T) {
	tests := []struct {
		path   string
		prefix string
	}{
		{"nycklar.db", "nycklar.db?_pragma="},
		{"file:nycklar.db?mode=rwc", "file:nycklar.db?mode=rwc&_pragma="},
	}
	for _, tt := range tests {
		if got := dsn(tt.path); !strings.HasPrefix(got, tt.prefix) {
			t.Errorf("dsn(%q) = %q, want prefix %q", tt.path, got, tt.prefix)
		}
	}
}
