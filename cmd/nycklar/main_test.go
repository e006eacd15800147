package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/erazemk/nycklar/internal/blob"
	"github.com/erazemk/nycklar/internal/db"
	"github.com/erazemk/nycklar/internal/store"
)

func TestLevelRouter(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := slog.New(newLevelRouter(&stdout, &stderr, slog.LevelInfo))

	logger.Info("hello")
	logger.Warn("careful")
	logger.Error("broken")
	logger.Debug("hidden")

	if !strings.Contains(stdout.String(), "hello") || !strings.Contains(stdout.String(), "careful") {
		t.Errorf("expected info and warn on stdout, got %q", stdout.String())
	}
	if strings.Contains(stdout.String(), "broken") {
		t.Error("errors should not go to stdout")
	}
	if !strings.Contains(stderr.String(), "broken") {
		t.Errorf("expected error on stderr, got %q", stderr.String())
	}
	if strings.Contains(stdout.String()+stderr.String(), "hidden") {
		t.Error("debug should be dropped")
	}
}

func TestLevelRouterDebug(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := slog.New(newLevelRouter(&stdout, &stderr, slog.LevelDebug)).With("component", "test")

	logger.Debug("details")
	if !strings.Contains(stdout.String(), "details") || !strings.Contains(stdout.String(), "component=test") {
		t.Errorf("expected debug record with attrs on stdout, got %q", stdout.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"info", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warn", slog.LevelWarn, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOpenFileStore(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	for _, driver := range []string{"", driverDB} {
		files, err := openFileStore(ctx, driver, database)
		if err != nil {
			t.Fatalf("openFileStore(%q): %v", driver, err)
		}
		if _, ok := files.(*blob.DBStore); !ok {
			t.Errorf("openFileStore(%q): expected *blob.DBStore, got %T", driver, files)
		}
	}

	if _, err := openFileStore(ctx, "ftp", database); err == nil {
		t.Error("expected error for unknown driver")
	}

	t.Setenv("NYCKLAR_BLOB_S3_BUCKET", "")
	if _, err := openFileStore(ctx, driverS3, database); err == nil {
		t.Error("expected error for s3 without bucket")
	}
}

func TestInitDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sqlite3")

	database, password, err := initDatabase(context.Background(), path, "admin")
	if err != nil {
		t.Fatalf("initDatabase: %v", err)
	}
	defer database.Close()

	if len(password) != 26 {
		t.Errorf("expected 26 character password, got %d", len(password))
	}

	user, err := store.GetUserByUsername(context.Background(), database, "admin")
	if err != nil || user == nil {
		t.Fatalf("expected admin user, got %v, %v", user, err)
	}
	if user.Role != "admin" {
		t.Errorf("expected admin role, got %q", user.Role)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	database := db.NewTestDB(t)
	server := httptest.NewServer(newHandler(database, "secret", blob.NewDBStore(database)))
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/keys")
	if err != nil {
		t.Fatalf("GET /api/keys: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp, err = http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `nycklar_http_requests_total{route="GET /api/keys",status="401"}`) {
		t.Errorf("expected request counter in metrics output, got:\n%s", body)
	}
}
