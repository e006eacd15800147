package store

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/erazemk/nycklar/internal/db"
	"github.com/erazemk/nycklar/internal/model"
)

func TestBundleAddKeys(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := createTestKey(t, database, "A", model.KeyTypeApartment)
	b := createTestKey(t, database, "B", model.KeyTypeApartment)
	c := createTestKey(t, database, "C", model.KeyTypeApartment)

	bundle, err := CreateBundle(ctx, database, "Trapphus 3", "entrance keys")
	if err != nil {
		t.Fatalf("CreateBundle: %v", err)
	}
	if len(bundle.KeyIDs) != 0 {
		t.Errorf("new bundle should be empty, got %v", bundle.KeyIDs)
	}

	bundle, err = AddBundleKeys(ctx, database, bundle.ID, []int64{b.ID, a.ID})
	if err != nil {
		t.Fatalf("AddBundleKeys: %v", err)
	}
	bundle, err = AddBundleKeys(ctx, database, bundle.ID, []int64{a.ID, c.ID})
	if err != nil {
		t.Fatalf("second AddBundleKeys: %v", err)
	}

	want := []int64{b.ID, a.ID, c.ID}
	if !slices.Equal(bundle.KeyIDs, want) {
		t.Errorf("expected %v, got %v", want, bundle.KeyIDs)
	}
}

func TestBundleAddAfterRemoveAppends(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	k1 := createTestKey(t, database, "K1", model.KeyTypeApartment)
	k2 := createTestKey(t, database, "K2", model.KeyTypeApartment)
	k3 := createTestKey(t, database, "K3", model.KeyTypeApartment)
	k4 := createTestKey(t, database, "K4", model.KeyTypeApartment)

	bundle, err := CreateBundle(ctx, database, "Trapphus 1", "")
	if err != nil {
		t.Fatalf("CreateBundle: %v", err)
	}
	if _, err := AddBundleKeys(ctx, database, bundle.ID, []int64{k2.ID, k3.ID, k4.ID}); err != nil {
		t.Fatalf("AddBundleKeys: %v", err)
	}
	if _, err := RemoveBundleKeys(ctx, database, bundle.ID, []int64{k2.ID}, false); err != nil {
		t.Fatalf("RemoveBundleKeys: %v", err)
	}
	bundle, err = AddBundleKeys(ctx, database, bundle.ID, []int64{k1.ID})
	if err != nil {
		t.Fatalf("AddBundleKeys after remove: %v", err)
	}

	want := []int64{k3.ID, k4.ID, k1.ID}
	if !slices.Equal(bundle.KeyIDs, want) {
		t.Errorf("expected %v, got %v", want, bundle.KeyIDs)
	}
}

func TestBundleAddKeyFromOtherBundle(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := createTestKey(t, database, "A", model.KeyTypeApartment)
	first, _ := CreateBundle(ctx, database, "First", "")
	second, _ := CreateBundle(ctx, database, "Second", "")
	AddBundleKeys(ctx, database, first.ID, []int64{a.ID})

	if _, err := AddBundleKeys(ctx, database, second.ID, []int64{a.ID}); !errors.Is(err, ErrKeyInOtherBundle) {
		t.Errorf("expected ErrKeyInOtherBundle, got %v", err)
	}
	if _, err := AddBundleKeys(ctx, database, second.ID, []int64{999}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing key, got %v", err)
	}
	if _, err := AddBundleKeys(ctx, database, 999, []int64{a.ID}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing bundle, got %v", err)
	}
}

func TestBundleRemoveKeysNeedsConfirmation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := createTestKey(t, database, "A", model.KeyTypeApartment)
	b := createTestKey(t, database, "B", model.KeyTypeApartment)
	c := createTestKey(t, database, "C", model.KeyTypeApartment)

	bundle, _ := CreateBundle(ctx, database, "Bundle", "")
	AddBundleKeys(ctx, database, bundle.ID, []int64{a.ID, b.ID, c.ID})

	loan, _ := CreateLoan(ctx, database, LoanInput{HolderCode: "P1", KeyIDs: []int64{b.ID}})
	PickUpLoan(ctx, database, loan.ID, time.Now())

	plan, err := RemoveBundleKeys(ctx, database, bundle.ID, []int64{a.ID, b.ID}, false)
	if !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired, got %v", err)
	}
	if !slices.Equal(plan.Safe, []int64{a.ID}) || !slices.Equal(plan.Warn, []int64{b.ID}) {
		t.Errorf("unexpected plan %+v", plan)
	}

	got, _ := GetBundle(ctx, database, bundle.ID)
	if len(got.KeyIDs) != 3 {
		t.Errorf("nothing should be removed without confirmation, got %v", got.KeyIDs)
	}

	if _, err := RemoveBundleKeys(ctx, database, bundle.ID, []int64{a.ID, b.ID}, true); err != nil {
		t.Fatalf("confirmed RemoveBundleKeys: %v", err)
	}
	got, _ = GetBundle(ctx, database, bundle.ID)
	if !slices.Equal(got.KeyIDs, []int64{c.ID}) {
		t.Errorf("expected only %d left, got %v", c.ID, got.KeyIDs)
	}
}

func TestBundleRemoveSafeKeys(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := createTestKey(t, database, "A", model.KeyTypeApartment)
	bundle, _ := CreateBundle(ctx, database, "Bundle", "")
	AddBundleKeys(ctx, database, bundle.ID, []int64{a.ID})

	plan, err := RemoveBundleKeys(ctx, database, bundle.ID, []int64{a.ID}, false)
	if err != nil {
		t.Fatalf("RemoveBundleKeys: %v", err)
	}
	if plan.NeedsConfirmation() {
		t.Errorf("unexpected warn ids %v", plan.Warn)
	}

	got, _ := GetBundle(ctx, database, bundle.ID)
	if len(got.KeyIDs) != 0 {
		t.Errorf("expected empty bundle, got %v", got.KeyIDs)
	}
}

func TestDeleteBundleReleasesKeys(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := createTestKey(t, database, "A", model.KeyTypeApartment)
	first, _ := CreateBundle(ctx, database, "First", "")
	AddBundleKeys(ctx, database, first.ID, []int64{a.ID})

	if err := DeleteBundle(ctx, database, first.ID); err != nil {
		t.Fatalf("DeleteBundle: %v", err)
	}

	second, _ := CreateBundle(ctx, database, "Second", "")
	if _, err := AddBundleKeys(ctx, database, second.ID, []int64{a.ID}); err != nil {
		t.Errorf("key should be free after bundle delete, got %v", err)
	}

	if key, _ := GetKey(ctx, database, a.ID); key == nil {
		t.Error("deleting a bundle must not delete its keys")
	}

	bundles, _ := ListBundles(ctx, database)
	if len(bundles) != 1 || bundles[0].Name != "Second" {
		t.Errorf("expected only 'Second', got %v", bundles)
	}
}
