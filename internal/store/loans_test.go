package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erazemk/nycklar/internal/blob"
	"github.com/erazemk/nycklar/internal/db"
	"github.com/erazemk/nycklar/internal/lending"
	"github.com/erazemk/nycklar/internal/model"
)

func TestCreateLoan(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := createTestKey(t, database, "A", model.KeyTypeApartment)
	b := createTestKey(t, database, "B", model.KeyTypeMailbox)

	loan, err := CreateLoan(ctx, database, LoanInput{
		HolderCode: " P1 ",
		Notes:      "two keys",
		KeyIDs:     []int64{b.ID, a.ID, a.ID},
	})
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	if loan.HolderCode != "P1" {
		t.Errorf("expected trimmed holder 'P1', got %q", loan.HolderCode)
	}
	if loan.Kind != model.LoanKindTenant {
		t.Errorf("expected default kind %q, got %q", model.LoanKindTenant, loan.Kind)
	}
	if len(loan.KeyIDs) != 2 || loan.KeyIDs[0] != a.ID || loan.KeyIDs[1] != b.ID {
		t.Errorf("expected key ids [%d %d], got %v", a.ID, b.ID, loan.KeyIDs)
	}
	if got := lending.Classify(loan); got != lending.StatusNotPickedUp {
		t.Errorf("new loan should be %s, got %s", lending.StatusNotPickedUp, got)
	}
}

func TestCreateLoanRejects(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	onLoan := createTestKey(t, database, "On loan", model.KeyTypeApartment)
	disposed := createTestKey(t, database, "Disposed", model.KeyTypeApartment)
	free := createTestKey(t, database, "Free", model.KeyTypeApartment)

	CreateLoan(ctx, database, LoanInput{HolderCode: "P1", KeyIDs: []int64{onLoan.ID}})
	SetKeyDisposed(ctx, database, disposed.ID, true)

	tests := []struct {
		name   string
		keyIDs []int64
		want   error
	}{
		{"active loan", []int64{free.ID, onLoan.ID}, ErrKeyOnLoan},
		{"disposed", []int64{disposed.ID}, ErrKeyDisposed},
		{"missing", []int64{999}, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateLoan(ctx, database, LoanInput{HolderCode: "P2", KeyIDs: tt.keyIDs})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	// Failed loans leave nothing behind.
	loans, _ := ListLoans(ctx, database, LoanFilter{HolderCode: "P2"})
	if len(loans) != 0 {
		t.Errorf("expected no loans for P2, got %d", len(loans))
	}

	reserved := LoanInput{HolderCode: "P2", SecondaryHolderCode: "~x", KeyIDs: []int64{free.ID}}
	if _, err := CreateLoan(ctx, database, reserved); !errors.Is(err, ErrReservedHolderCode) {
		t.Errorf("expected ErrReservedHolderCode, got %v", err)
	}

	if _, err := CreateLoan(ctx, database, LoanInput{HolderCode: "P2"}); err == nil {
		t.Error("expected error for loan without keys")
	}
}

func TestLoanLifecycle(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	key := createTestKey(t, database, "A", model.KeyTypeApartment)
	loan, _ := CreateLoan(ctx, database, LoanInput{HolderCode: "P1", KeyIDs: []int64{key.ID}})

	pickedUp := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := PickUpLoan(ctx, database, loan.ID, pickedUp); err != nil {
		t.Fatalf("PickUpLoan: %v", err)
	}
	// A second pickup keeps the first time.
	PickUpLoan(ctx, database, loan.ID, pickedUp.Add(time.Hour))

	got, _ := GetLoan(ctx, database, loan.ID)
	if got.PickedUpAt == nil || !got.PickedUpAt.Equal(pickedUp) {
		t.Errorf("expected picked up at %v, got %v", pickedUp, got.PickedUpAt)
	}
	if lending.Classify(got) != lending.StatusActive {
		t.Errorf("expected ACTIVE, got %s", lending.Classify(got))
	}

	returned := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	availableFrom := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	if err := ReturnLoan(ctx, database, loan.ID, returned, &availableFrom); err != nil {
		t.Fatalf("ReturnLoan: %v", err)
	}

	got, _ = GetLoan(ctx, database, loan.ID)
	if lending.Classify(got) != lending.StatusReturned {
		t.Errorf("expected RETURNED, got %s", lending.Classify(got))
	}
	if got.AvailableToNextTenantFrom == nil || !got.AvailableToNextTenantFrom.Equal(availableFrom) {
		t.Errorf("expected available from %v, got %v", availableFrom, got.AvailableToNextTenantFrom)
	}

	// Returning twice is a no-op.
	if err := ReturnLoan(ctx, database, loan.ID, returned.Add(time.Hour), nil); err != nil {
		t.Errorf("second ReturnLoan: %v", err)
	}
	got, _ = GetLoan(ctx, database, loan.ID)
	if !got.ReturnedAt.Equal(returned) {
		t.Errorf("second return should keep %v, got %v", returned, got.ReturnedAt)
	}

	if err := PickUpLoan(ctx, database, loan.ID, returned); !errors.Is(err, ErrLoanReturned) {
		t.Errorf("expected ErrLoanReturned, got %v", err)
	}

	// The key is free again and shows as blocked until the given date.
	k, _ := GetKey(ctx, database, key.ID)
	status := lending.Describe(*k, time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC))
	if status.Loaned || status.Availability.Kind != lending.AvailabilityBlockedUntil {
		t.Errorf("expected blocked key, got %+v", status)
	}

	if _, err := CreateLoan(ctx, database, LoanInput{HolderCode: "P2", KeyIDs: []int64{key.ID}}); err != nil {
		t.Errorf("returned key should be loanable, got %v", err)
	}
}

func TestLoanNotFound(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()

	if err := PickUpLoan(ctx, database, 999, now); !errors.Is(err, ErrNotFound) {
		t.Errorf("PickUpLoan: expected ErrNotFound, got %v", err)
	}
	if err := ReturnLoan(ctx, database, 999, now, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReturnLoan: expected ErrNotFound, got %v", err)
	}
	loan, err := GetLoan(ctx, database, 999)
	if err != nil || loan != nil {
		t.Errorf("GetLoan: expected nil, nil, got %v, %v", loan, err)
	}
}

func TestListLoansFilter(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := createTestKey(t, database, "A", model.KeyTypeApartment)
	b := createTestKey(t, database, "B", model.KeyTypeApartment)

	first, _ := CreateLoan(ctx, database, LoanInput{HolderCode: "P1", KeyIDs: []int64{a.ID}})
	ReturnLoan(ctx, database, first.ID, time.Now(), nil)
	second, _ := CreateLoan(ctx, database, LoanInput{HolderCode: "P1", KeyIDs: []int64{a.ID}})
	CreateLoan(ctx, database, LoanInput{HolderCode: "P2", SecondaryHolderCode: "P1", KeyIDs: []int64{b.ID}})

	tests := []struct {
		name   string
		filter LoanFilter
		want   int
	}{
		{"all", LoanFilter{}, 3},
		{"holder incl. secondary", LoanFilter{HolderCode: "P1"}, 3},
		{"holder P2", LoanFilter{HolderCode: "P2"}, 1},
		{"open", LoanFilter{Status: LoanFilterOpen}, 2},
		{"returned", LoanFilter{Status: LoanFilterReturned}, 1},
		{"by key", LoanFilter{KeyID: a.ID}, 2},
		{"open by key", LoanFilter{KeyID: a.ID, Status: LoanFilterOpen}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loans, err := ListLoans(ctx, database, tt.filter)
			if err != nil {
				t.Fatalf("ListLoans: %v", err)
			}
			if len(loans) != tt.want {
				t.Errorf("expected %d loans, got %d", tt.want, len(loans))
			}
		})
	}

	open, _ := ListLoans(ctx, database, LoanFilter{KeyID: a.ID, Status: LoanFilterOpen})
	if len(open) == 1 && open[0].ID != second.ID {
		t.Errorf("expected open loan %d, got %d", second.ID, open[0].ID)
	}

	if _, err := ListLoans(ctx, database, LoanFilter{Status: "bogus"}); err == nil {
		t.Error("expected error for invalid status")
	}
}

func TestDeleteLoan(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	files := blob.NewDBStore(database)

	key := createTestKey(t, database, "A", model.KeyTypeApartment)
	loan, _ := CreateLoan(ctx, database, LoanInput{HolderCode: "P1", KeyIDs: []int64{key.ID}})
	receipt, _ := CreateReceipt(ctx, database, loan.ID, model.ReceiptTypeLoan)
	receipt, err := AttachReceiptFile(ctx, database, files, receipt.ID, testPDF())
	if err != nil {
		t.Fatalf("AttachReceiptFile: %v", err)
	}

	if err := DeleteLoan(ctx, database, files, loan.ID); err != nil {
		t.Fatalf("DeleteLoan: %v", err)
	}

	if got, _ := GetLoan(ctx, database, loan.ID); got != nil {
		t.Error("deleted loan should not be returned")
	}
	if got, _ := GetReceipt(ctx, database, receipt.ID); got != nil {
		t.Error("receipts should be deleted with the loan")
	}
	if _, _, err := files.Get(ctx, *receipt.FileID); !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("receipt file should be deleted, got %v", err)
	}

	if _, err := CreateLoan(ctx, database, LoanInput{HolderCode: "P2", KeyIDs: []int64{key.ID}}); err != nil {
		t.Errorf("key should be free after loan delete, got %v", err)
	}
}
