package blob

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/nycklar/internal/db"
)

func TestDBStoreRoundTrip(t *testing.T) {
	store := NewDBStore(db.NewTestDB(t))
	ctx := context.Background()

	if err := store.Put(ctx, "a", []byte("first"), "application/pdf"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	data, mime, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "first" || mime != "application/pdf" {
		t.Errorf("got %q (%s), want \"first\" (application/pdf)", data, mime)
	}
}

func TestDBStorePutReplaces(t *testing.T) {
	store := NewDBStore(db.NewTestDB(t))
	ctx := context.Background()

	store.Put(ctx, "a", []byte("first"), "application/pdf")
	if err := store.Put(ctx, "a", []byte("second"), "image/jpeg"); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	data, mime, _ := store.Get(ctx, "a")
	if string(data) != "second" || mime != "image/jpeg" {
		t.Errorf("expected replaced file, got %q (%s)", data, mime)
	}
}

func TestDBStoreDelete(t *testing.T) {
	store := NewDBStore(db.NewTestDB(t))
	ctx := context.Background()

	store.Put(ctx, "a", []byte("x"), "application/pdf")
	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, _, err := store.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	if err := store.Delete(ctx, "missing"); err != nil {
		t.Errorf("deleting a missing file should succeed, got %v", err)
	}
}
