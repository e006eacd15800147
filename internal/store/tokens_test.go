package store

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/nycklar/internal/db"
)

func TestRevokeToken(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	for i := 0; i < 2; i++ {
		if err := RevokeToken(ctx, database, "jti-a", expires); err != nil {
			t.Fatalf("RevokeToken #%d: %v", i+1, err)
		}
	}

	tests := []struct {
		jti  string
		want bool
	}{
		{"jti-a", true},
		{"jti-b", false},
	}
	for _, tt := range tests {
		got, err := IsTokenRevoked(ctx, database, tt.jti)
		if err != nil {
			t.Fatalf("IsTokenRevoked(%q): %v", tt.jti, err)
		}
		if got != tt.want {
			t.Errorf("IsTokenRevoked(%q) = %v, want %v", tt.jti, got, tt.want)
		}
	}
}

func TestPurgeRevokedTokens(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := RevokeToken(ctx, database, "old", now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := RevokeToken(ctx, database, "live", now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	n, err := PurgeRevokedTokens(ctx, database, now)
	if err != nil {
		t.Fatalf("PurgeRevokedTokens: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged token, got %d", n)
	}

	if revoked, _ := IsTokenRevoked(ctx, database, "live"); !revoked {
		t.Error("unexpired revocation was purged")
	}
	if revoked, _ := IsTokenRevoked(ctx, database, "old"); revoked {
		t.Error("expired revocation was kept")
	}
}
