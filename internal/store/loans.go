package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/erazemk/nycklar/internal/blob"
	"github.com/erazemk/nycklar/internal/model"
)

const loanColumns = `id, holder_code, secondary_holder_code, kind, notes, created_at, picked_up_at, returned_at, available_to_next_tenant_from, created_by`

const qualifiedLoanColumns = `l.id, l.holder_code, l.secondary_holder_code, l.kind, l.notes, l.created_at, l.picked_up_at, l.returned_at, l.available_to_next_tenant_from, l.created_by`

// scanLoan scans a loan row. Any lead destinations are scanned first.
func scanLoan(row rowScanner, lead ...any) (model.Loan, error) {
	var l model.Loan
	var notes sql.NullString
	dest := append(lead, &l.ID, &l.HolderCode, &l.SecondaryHolderCode, &l.Kind, &notes,
		&l.CreatedAt, &l.PickedUpAt, &l.ReturnedAt, &l.AvailableToNextTenantFrom, &l.CreatedBy)
	if err := row.Scan(dest...); err != nil {
		return l, err
	}
	l.Notes = notes.String
	return l, nil
}

// LoanInput describes a new loan.
type LoanInput struct {
	HolderCode          string
	SecondaryHolderCode string
	Kind                string
	Notes               string
	KeyIDs              []int64
	CreatedBy           *int64
}

// LoanFilter narrows ListLoans. Status is "open", "returned" or empty.
type LoanFilter struct {
	HolderCode string
	Status     string
	KeyID      int64
}

// Loan filter statuses.
const (
	LoanFilterOpen     = "open"
	LoanFilterReturned = "returned"
)

// CreateLoan creates a loan for the given keys in a single transaction.
// Every key must exist, must not be disposed and must not already be on an
// unreturned loan.
func CreateLoan(ctx context.Context, db *sql.DB, in LoanInput) (*model.Loan, error) {
	if len(in.KeyIDs) == 0 {
		return nil, fmt.Errorf("loan needs at least one key")
	}
	if in.Kind == "" {
		in.Kind = model.LoanKindTenant
	}
	for _, code := range []string{in.HolderCode, in.SecondaryHolderCode} {
		if err := checkHolderCode(code); err != nil {
			return nil, err
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	seen := make(map[int64]bool, len(in.KeyIDs))
	for _, keyID := range in.KeyIDs {
		if seen[keyID] {
			continue
		}
		seen[keyID] = true

		var disposed bool
		err := tx.QueryRowContext(ctx,
			`SELECT disposed FROM keys WHERE id = ? AND deleted_at IS NULL`, keyID,
		).Scan(&disposed)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("key %d: %w", keyID, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("checking key %d: %w", keyID, err)
		}
		if disposed {
			return nil, fmt.Errorf("key %d: %w", keyID, ErrKeyDisposed)
		}

		onLoan, err := keyOnLoan(ctx, tx, keyID)
		if err != nil {
			return nil, err
		}
		if onLoan {
			return nil, fmt.Errorf("key %d: %w", keyID, ErrKeyOnLoan)
		}
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO loans (holder_code, secondary_holder_code, kind, notes, created_at, created_by)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(in.HolderCode), strings.TrimSpace(in.SecondaryHolderCode),
		in.Kind, in.Notes, time.Now().UTC(), in.CreatedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("creating loan: %w", err)
	}
	loanID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting loan id: %w", err)
	}

	for keyID := range seen {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO loan_keys (loan_id, key_id) VALUES (?, ?)`, loanID, keyID,
		); err != nil {
			return nil, fmt.Errorf("adding key %d to loan: %w", keyID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing loan: %w", err)
	}

	return GetLoan(ctx, db, loanID)
}

// GetLoan returns a loan by ID with its key IDs.
func GetLoan(ctx context.Context, db *sql.DB, id int64) (*model.Loan, error) {
	l, err := scanLoan(db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting loan: %w", err)
	}

	loans := []model.Loan{l}
	if err := attachKeyIDs(ctx, db, loans); err != nil {
		return nil, err
	}
	return &loans[0], nil
}

// ListLoans returns loans matching the filter, newest first.
func ListLoans(ctx context.Context, db *sql.DB, f LoanFilter) ([]model.Loan, error) {
	var where []string
	var args []any
	if f.HolderCode != "" {
		where = append(where, "(l.holder_code = ? OR l.secondary_holder_code = ?)")
		args = append(args, f.HolderCode, f.HolderCode)
	}
	switch f.Status {
	case LoanFilterOpen:
		where = append(where, "l.returned_at IS NULL")
	case LoanFilterReturned:
		where = append(where, "l.returned_at IS NOT NULL")
	case "":
	default:
		return nil, fmt.Errorf("invalid loan status filter %q", f.Status)
	}
	if f.KeyID != 0 {
		where = append(where, "l.id IN (SELECT loan_id FROM loan_keys WHERE key_id = ?)")
		args = append(args, f.KeyID)
	}

	query := `SELECT ` + qualifiedLoanColumns + ` FROM loans l`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY l.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing loans: %w", err)
	}

	var loans []model.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning loan: %w", err)
		}
		loans = append(loans, l)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	if err := attachKeyIDs(ctx, db, loans); err != nil {
		return nil, err
	}
	return loans, nil
}

// attachKeyIDs fills KeyIDs on every loan in place.
func attachKeyIDs(ctx context.Context, db *sql.DB, loans []model.Loan) error {
	if len(loans) == 0 {
		return nil
	}
	ids := make([]int64, len(loans))
	for i, l := range loans {
		ids[i] = l.ID
	}

	rows, err := db.QueryContext(ctx,
		`SELECT loan_id, key_id FROM loan_keys WHERE loan_id IN (`+placeholders(len(ids))+`) ORDER BY key_id`,
		int64Args(ids)...,
	)
	if err != nil {
		return fmt.Errorf("loading loan keys: %w", err)
	}
	defer rows.Close()

	byLoan := make(map[int64][]int64)
	for rows.Next() {
		var loanID, keyID int64
		if err := rows.Scan(&loanID, &keyID); err != nil {
			return fmt.Errorf("scanning loan key: %w", err)
		}
		byLoan[loanID] = append(byLoan[loanID], keyID)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range loans {
		loans[i].KeyIDs = byLoan[loans[i].ID]
	}
	return nil
}

// PickUpLoan records the physical handover of a loan's keys.
// Picking up an already picked up loan keeps the original time.
func PickUpLoan(ctx context.Context, db *sql.DB, id int64, at time.Time) error {
	loan, err := GetLoan(ctx, db, id)
	if err != nil {
		return err
	}
	if loan == nil {
		return ErrNotFound
	}
	if loan.ReturnedAt != nil {
		return ErrLoanReturned
	}

	_, err = db.ExecContext(ctx,
		`UPDATE loans SET picked_up_at = COALESCE(picked_up_at, ?) WHERE id = ? AND returned_at IS NULL`,
		at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("picking up loan: %w", err)
	}
	return nil
}

// ReturnLoan marks a loan as returned. availableFrom optionally blocks the
// keys from being handed to the next tenant before that time.
// Returning an already returned loan is a no-op.
func ReturnLoan(ctx context.Context, db *sql.DB, id int64, at time.Time, availableFrom *time.Time) error {
	loan, err := GetLoan(ctx, db, id)
	if err != nil {
		return err
	}
	if loan == nil {
		return ErrNotFound
	}
	if loan.ReturnedAt != nil {
		return nil
	}

	var from any
	if availableFrom != nil {
		from = availableFrom.UTC()
	}
	_, err = db.ExecContext(ctx,
		`UPDATE loans SET returned_at = ?, available_to_next_tenant_from = ? WHERE id = ? AND returned_at IS NULL`,
		at.UTC(), from, id,
	)
	if err != nil {
		return fmt.Errorf("returning loan: %w", err)
	}
	return nil
}

// DeleteLoan removes a loan together with its receipts and their files.
func DeleteLoan(ctx context.Context, db *sql.DB, files blob.Store, id int64) error {
	receipts, err := ListReceipts(ctx, db, id)
	if err != nil {
		return err
	}

	result, err := db.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting loan: %w", err)
	}
	if err := expectRow(result); err != nil {
		return err
	}

	for _, r := range receipts {
		if r.FileID == nil {
			continue
		}
		if err := files.Delete(ctx, *r.FileID); err != nil {
			slog.Warn("failed to delete receipt file", "loan", id, "file", *r.FileID, "error", err)
		}
	}
	return nil
}
