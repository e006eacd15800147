package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/erazemk/nycklar/internal/db"
	"github.com/erazemk/nycklar/internal/model"
)

func createTestKey(t *testing.T, database *sql.DB, name, keyType string) *model.Key {
	t.Helper()
	k, err := CreateKey(context.Background(), database, KeyInput{Name: name, Type: keyType, RentalObjectCode: "705-011-01-0101"})
	if err != nil {
		t.Fatalf("CreateKey(%s): %v", name, err)
	}
	return k
}

func TestCreateAndGetKey(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	seq := 2
	key, err := CreateKey(ctx, database, KeyInput{
		Name:             "Lägenhet 1101",
		Type:             model.KeyTypeApartment,
		SequenceNumber:   &seq,
		RentalObjectCode: "705-011-01-0101",
	})
	if err != nil {
		t.Fatalf("CreateKey: %v", err)
	}
	if key.Kind != model.KeyKindKey {
		t.Errorf("expected default kind %q, got %q", model.KeyKindKey, key.Kind)
	}
	if key.SequenceNumber == nil || *key.SequenceNumber != 2 {
		t.Errorf("expected sequence number 2, got %v", key.SequenceNumber)
	}

	got, err := GetKey(ctx, database, key.ID)
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if got.Name != "Lägenhet 1101" || got.Disposed {
		t.Errorf("unexpected key %+v", got)
	}
	if len(got.Loans) != 0 {
		t.Errorf("new key should have no loans, got %d", len(got.Loans))
	}
}

func TestGetKeyNotFound(t *testing.T) {
	database := db.NewTestDB(t)

	key, err := GetKey(context.Background(), database, 999)
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if key != nil {
		t.Error("expected nil for nonexistent key")
	}
}

func TestCreateKeyWithoutSequence(t *testing.T) {
	database := db.NewTestDB(t)

	key := createTestKey(t, database, "Postbox", model.KeyTypeMailbox)
	if key.SequenceNumber != nil {
		t.Errorf("expected no sequence number, got %d", *key.SequenceNumber)
	}
}

func TestListKeysFilter(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	createTestKey(t, database, "A", model.KeyTypeApartment)
	b := createTestKey(t, database, "B", model.KeyTypeMailbox)
	CreateKey(ctx, database, KeyInput{Name: "C", Type: model.KeyTypeApartment, RentalObjectCode: "other"})

	if err := SetKeyDisposed(ctx, database, b.ID, true); err != nil {
		t.Fatalf("SetKeyDisposed: %v", err)
	}

	all, _ := ListKeys(ctx, database, KeyFilter{})
	if len(all) != 3 {
		t.Errorf("expected 3 keys, got %d", len(all))
	}

	byObject, _ := ListKeys(ctx, database, KeyFilter{RentalObjectCode: "705-011-01-0101"})
	if len(byObject) != 2 {
		t.Errorf("expected 2 keys for rental object, got %d", len(byObject))
	}

	byType, _ := ListKeys(ctx, database, KeyFilter{Type: model.KeyTypeApartment})
	if len(byType) != 2 {
		t.Errorf("expected 2 apartment keys, got %d", len(byType))
	}

	disposed := true
	gone, _ := ListKeys(ctx, database, KeyFilter{Disposed: &disposed})
	if len(gone) != 1 || gone[0].ID != b.ID {
		t.Errorf("expected only key %d disposed, got %v", b.ID, gone)
	}
}

func TestUpdateKey(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	key := createTestKey(t, database, "Old", model.KeyTypeApartment)
	seq := 3
	err := UpdateKey(ctx, database, key.ID, KeyInput{Name: "New", Kind: model.KeyKindCard, Type: model.KeyTypeProperty, SequenceNumber: &seq})
	if err != nil {
		t.Fatalf("UpdateKey: %v", err)
	}

	got, _ := GetKey(ctx, database, key.ID)
	if got.Name != "New" || got.Kind != model.KeyKindCard || got.Type != model.KeyTypeProperty {
		t.Errorf("update not applied: %+v", got)
	}
	if got.SequenceNumber == nil || *got.SequenceNumber != 3 {
		t.Errorf("expected sequence number 3, got %v", got.SequenceNumber)
	}

	if err := UpdateKey(ctx, database, 999, KeyInput{Name: "x", Kind: model.KeyKindKey}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetKeyLatestEvent(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	key := createTestKey(t, database, "A", model.KeyTypeApartment)
	if err := SetKeyLatestEvent(ctx, database, key.ID, model.KeyEventOrdered); err != nil {
		t.Fatalf("SetKeyLatestEvent: %v", err)
	}

	got, _ := GetKey(ctx, database, key.ID)
	if got.LatestEvent != model.KeyEventOrdered {
		t.Errorf("expected %q, got %q", model.KeyEventOrdered, got.LatestEvent)
	}
}

func TestDeleteKey(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	key := createTestKey(t, database, "A", model.KeyTypeApartment)
	bundle, _ := CreateBundle(ctx, database, "Trapphus", "")
	AddBundleKeys(ctx, database, bundle.ID, []int64{key.ID})

	if err := DeleteKey(ctx, database, key.ID); err != nil {
		t.Fatalf("DeleteKey: %v", err)
	}

	got, _ := GetKey(ctx, database, key.ID)
	if got != nil {
		t.Error("deleted key should not be returned")
	}

	b, _ := GetBundle(ctx, database, bundle.ID)
	if len(b.KeyIDs) != 0 {
		t.Errorf("deleted key should leave its bundle, got %v", b.KeyIDs)
	}
}

func TestDeleteKeyOnLoanRejected(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	key := createTestKey(t, database, "A", model.KeyTypeApartment)
	CreateLoan(ctx, database, LoanInput{HolderCode: "P1", KeyIDs: []int64{key.ID}})

	if err := DeleteKey(ctx, database, key.ID); !errors.Is(err, ErrKeyOnLoan) {
		t.Errorf("expected ErrKeyOnLoan, got %v", err)
	}
}

func TestListKeysWithLoans(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := createTestKey(t, database, "A", model.KeyTypeApartment)
	b := createTestKey(t, database, "B", model.KeyTypeApartment)
	createTestKey(t, database, "C", model.KeyTypeApartment)

	first, _ := CreateLoan(ctx, database, LoanInput{HolderCode: "P1", KeyIDs: []int64{a.ID, b.ID}})
	ReturnLoan(ctx, database, first.ID, first.CreatedAt, nil)
	CreateLoan(ctx, database, LoanInput{HolderCode: "P2", KeyIDs: []int64{a.ID}})

	keys, err := ListKeysWithLoans(ctx, database, KeyFilter{})
	if err != nil {
		t.Fatalf("ListKeysWithLoans: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("expected 3 keys, got %d", len(keys))
	}

	want := map[int64]int{a.ID: 2, b.ID: 1}
	for _, k := range keys {
		if len(k.Loans) != want[k.ID] {
			t.Errorf("key %s: expected %d loans, got %d", k.Name, want[k.ID], len(k.Loans))
		}
	}
}
