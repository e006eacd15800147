package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/nycklar/internal/blob"
	"github.com/erazemk/nycklar/internal/imaging"
	"github.com/erazemk/nycklar/internal/model"
)

const receiptColumns = `id, loan_id, type, file_id, file_mime, created_at, updated_at`

func scanReceipt(row rowScanner) (model.Receipt, error) {
	var r model.Receipt
	var mime sql.NullString
	err := row.Scan(&r.ID, &r.LoanID, &r.Type, &r.FileID, &mime, &r.CreatedAt, &r.UpdatedAt)
	r.FileMime = mime.String
	return r, err
}

// CreateReceipt creates the receipt of the given type for a loan. A loan has
// at most one receipt per type; creating it again returns the existing one.
func CreateReceipt(ctx context.Context, db *sql.DB, loanID int64, receiptType string) (*model.Receipt, error) {
	if receiptType != model.ReceiptTypeLoan && receiptType != model.ReceiptTypeReturn {
		return nil, fmt.Errorf("invalid receipt type %q", receiptType)
	}

	loan, err := GetLoan(ctx, db, loanID)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, ErrNotFound
	}

	_, err = db.ExecContext(ctx,
		`INSERT OR IGNORE INTO receipts (loan_id, type) VALUES (?, ?)`,
		loanID, receiptType,
	)
	if err != nil {
		return nil, fmt.Errorf("creating receipt: %w", err)
	}

	r, err := scanReceipt(db.QueryRowContext(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE loan_id = ? AND type = ?`,
		loanID, receiptType,
	))
	if err != nil {
		return nil, fmt.Errorf("reading receipt: %w", err)
	}
	return &r, nil
}

// GetReceipt returns a receipt by ID.
func GetReceipt(ctx context.Context, db *sql.DB, id int64) (*model.Receipt, error) {
	r, err := scanReceipt(db.QueryRowContext(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return &r, nil
}

// ListReceipts returns the receipts of a loan, LOAN before RETURN.
func ListReceipts(ctx context.Context, db *sql.DB, loanID int64) ([]model.Receipt, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE loan_id = ? ORDER BY type, id`, loanID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	defer rows.Close()

	var receipts []model.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning receipt: %w", err)
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

// AttachReceiptFile stores a signed scan for a receipt, replacing any earlier
// file. A signed LOAN receipt is proof of pickup, so attaching one also marks
// an unreturned loan as picked up.
func AttachReceiptFile(ctx context.Context, db *sql.DB, files blob.Store, id int64, r io.Reader) (*model.Receipt, error) {
	receipt, err := GetReceipt(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, ErrNotFound
	}

	scan, err := imaging.ProcessScan(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	fileID := uuid.NewString()
	if err := files.Put(ctx, fileID, scan.Data, scan.MIME); err != nil {
		return nil, err
	}

	if err := setReceiptFile(ctx, db, receipt, &fileID, scan.MIME); err != nil {
		if delErr := files.Delete(ctx, fileID); delErr != nil {
			slog.Warn("failed to clean up receipt file", "file", fileID, "error", delErr)
		}
		return nil, err
	}

	if receipt.FileID != nil {
		if err := files.Delete(ctx, *receipt.FileID); err != nil {
			slog.Warn("failed to delete replaced receipt file", "receipt", id, "file", *receipt.FileID, "error", err)
		}
	}

	return GetReceipt(ctx, db, id)
}

// GetReceiptFile returns the attached file of a receipt.
func GetReceiptFile(ctx context.Context, db *sql.DB, files blob.Store, id int64) ([]byte, string, error) {
	receipt, err := GetReceipt(ctx, db, id)
	if err != nil {
		return nil, "", err
	}
	if receipt == nil {
		return nil, "", ErrNotFound
	}
	if receipt.FileID == nil || *receipt.FileID == "" {
		return nil, "", ErrNoFile
	}

	data, mime, err := files.Get(ctx, *receipt.FileID)
	if err != nil {
		return nil, "", err
	}
	if mime == "" {
		mime = receipt.FileMime
	}
	return data, mime, nil
}

// DeleteReceiptFile detaches and deletes a receipt's file. Removing the file
// of a LOAN receipt withdraws the proof of pickup, so the loan's pickup time
// is cleared in the same transaction.
func DeleteReceiptFile(ctx context.Context, db *sql.DB, files blob.Store, id int64) error {
	receipt, err := GetReceipt(ctx, db, id)
	if err != nil {
		return err
	}
	if receipt == nil {
		return ErrNotFound
	}
	if receipt.FileID == nil {
		return ErrNoFile
	}

	if err := setReceiptFile(ctx, db, receipt, nil, ""); err != nil {
		return err
	}

	if err := files.Delete(ctx, *receipt.FileID); err != nil {
		slog.Warn("failed to delete receipt file", "receipt", id, "file", *receipt.FileID, "error", err)
	}
	return nil
}

// setReceiptFile points a receipt at fileID (nil to detach) and keeps the
// loan's pickup time consistent with the LOAN receipt.
func setReceiptFile(ctx context.Context, db *sql.DB, receipt *model.Receipt, fileID *string, mime string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var fileMime any
	if fileID != nil {
		fileMime = mime
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE receipts SET file_id = ?, file_mime = ?, updated_at = ? WHERE id = ?`,
		fileID, fileMime, now, receipt.ID,
	); err != nil {
		return fmt.Errorf("updating receipt file: %w", err)
	}

	if receipt.Type == model.ReceiptTypeLoan {
		var err error
		if fileID != nil {
			_, err = tx.ExecContext(ctx,
				`UPDATE loans SET picked_up_at = COALESCE(picked_up_at, ?) WHERE id = ? AND returned_at IS NULL`,
				now, receipt.LoanID,
			)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE loans SET picked_up_at = NULL WHERE id = ?`, receipt.LoanID,
			)
		}
		if err != nil {
			return fmt.Errorf("updating loan pickup: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing receipt file: %w", err)
	}
	return nil
}
