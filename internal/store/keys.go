package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/nycklar/internal/model"
)

const keyColumns = `id, name, kind, type, sequence_number, rental_object_code, disposed, latest_event, created_at, updated_at, deleted_at`

// KeyInput holds the editable fields of a key.
type KeyInput struct {
	Name             string
	Kind             string
	Type             string
	SequenceNumber   *int
	RentalObjectCode string
}

// KeyFilter narrows ListKeys. Zero values match everything.
type KeyFilter struct {
	RentalObjectCode string
	Type             string
	Disposed         *bool
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKey(row rowScanner) (model.Key, error) {
	var k model.Key
	var seq sql.NullInt64
	err := row.Scan(&k.ID, &k.Name, &k.Kind, &k.Type, &seq, &k.RentalObjectCode,
		&k.Disposed, &k.LatestEvent, &k.CreatedAt, &k.UpdatedAt, &k.DeletedAt)
	if err != nil {
		return k, err
	}
	if seq.Valid {
		n := int(seq.Int64)
		k.SequenceNumber = &n
	}
	return k, nil
}

func nullSequence(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

// CreateKey creates a new key.
func CreateKey(ctx context.Context, db *sql.DB, in KeyInput) (*model.Key, error) {
	if in.Kind == "" {
		in.Kind = model.KeyKindKey
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO keys (name, kind, type, sequence_number, rental_object_code) VALUES (?, ?, ?, ?, ?)`,
		in.Name, in.Kind, in.Type, nullSequence(in.SequenceNumber), in.RentalObjectCode,
	)
	if err != nil {
		return nil, fmt.Errorf("creating key: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting key id: %w", err)
	}

	return GetKey(ctx, db, id)
}

// GetKey returns a non-deleted key by ID with its loans attached.
func GetKey(ctx context.Context, db *sql.DB, id int64) (*model.Key, error) {
	k, err := scanKey(db.QueryRowContext(ctx,
		`SELECT `+keyColumns+` FROM keys WHERE id = ? AND deleted_at IS NULL`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting key: %w", err)
	}

	keys := []model.Key{k}
	if err := attachLoans(ctx, db, keys); err != nil {
		return nil, err
	}
	return &keys[0], nil
}

// ListKeys returns all non-deleted keys matching the filter, ordered by ID.
// Loans are not attached.
func ListKeys(ctx context.Context, db *sql.DB, f KeyFilter) ([]model.Key, error) {
	where := []string{"deleted_at IS NULL"}
	var args []any
	if f.RentalObjectCode != "" {
		where = append(where, "rental_object_code = ?")
		args = append(args, f.RentalObjectCode)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.Disposed != nil {
		where = append(where, "disposed = ?")
		args = append(args, *f.Disposed)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+keyColumns+` FROM keys WHERE `+strings.Join(where, " AND ")+` ORDER BY id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer rows.Close()

	var keys []model.Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// ListKeysWithLoans is ListKeys with each key's loans attached.
func ListKeysWithLoans(ctx context.Context, db *sql.DB, f KeyFilter) ([]model.Key, error) {
	keys, err := ListKeys(ctx, db, f)
	if err != nil {
		return nil, err
	}
	if err := attachLoans(ctx, db, keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// keysByIDs returns the non-deleted keys among ids, with loans attached.
func keysByIDs(ctx context.Context, db *sql.DB, ids []int64) ([]model.Key, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+keyColumns+` FROM keys WHERE deleted_at IS NULL AND id IN (`+placeholders(len(ids))+`) ORDER BY id`,
		int64Args(ids)...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing keys by id: %w", err)
	}

	var keys []model.Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	if err := attachLoans(ctx, db, keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// attachLoans fills Loans on every key in place.
func attachLoans(ctx context.Context, db *sql.DB, keys []model.Key) error {
	if len(keys) == 0 {
		return nil
	}
	ids := make([]int64, len(keys))
	for i, k := range keys {
		ids[i] = k.ID
	}

	rows, err := db.QueryContext(ctx,
		`SELECT lk.key_id, `+qualifiedLoanColumns+`
		 FROM loan_keys lk JOIN loans l ON l.id = lk.loan_id
		 WHERE lk.key_id IN (`+placeholders(len(ids))+`)
		 ORDER BY l.id`,
		int64Args(ids)...,
	)
	if err != nil {
		return fmt.Errorf("loading key loans: %w", err)
	}
	defer rows.Close()

	byKey := make(map[int64][]model.Loan)
	for rows.Next() {
		var keyID int64
		l, err := scanLoan(rows, &keyID)
		if err != nil {
			return fmt.Errorf("scanning key loan: %w", err)
		}
		byKey[keyID] = append(byKey[keyID], l)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range keys {
		keys[i].Loans = byKey[keys[i].ID]
	}
	return nil
}

// UpdateKey updates a key's editable fields.
func UpdateKey(ctx context.Context, db *sql.DB, id int64, in KeyInput) error {
	result, err := db.ExecContext(ctx,
		`UPDATE keys SET name = ?, kind = ?, type = ?, sequence_number = ?, rental_object_code = ?, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		in.Name, in.Kind, in.Type, nullSequence(in.SequenceNumber), in.RentalObjectCode, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating key: %w", err)
	}
	return expectRow(result)
}

// SetKeyDisposed marks a key as disposed (or not).
func SetKeyDisposed(ctx context.Context, db *sql.DB, id int64, disposed bool) error {
	result, err := db.ExecContext(ctx,
		`UPDATE keys SET disposed = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		disposed, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("setting key disposed: %w", err)
	}
	return expectRow(result)
}

// SetKeyLatestEvent records the latest event marker shown next to a key.
func SetKeyLatestEvent(ctx context.Context, db *sql.DB, id int64, event string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE keys SET latest_event = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		event, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("setting key event: %w", err)
	}
	return expectRow(result)
}

// DeleteKey soft-deletes a key and drops it from its bundle.
// Keys that are out on loan cannot be deleted.
func DeleteKey(ctx context.Context, db *sql.DB, id int64) error {
	onLoan, err := keyOnLoan(ctx, db, id)
	if err != nil {
		return err
	}
	if onLoan {
		return ErrKeyOnLoan
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE keys SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("deleting key: %w", err)
	}
	if err := expectRow(result); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM bundle_keys WHERE key_id = ?`, id); err != nil {
		return fmt.Errorf("removing key from bundle: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing key delete: %w", err)
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// keyOnLoan reports whether the key is part of any unreturned loan.
func keyOnLoan(ctx context.Context, q queryRower, keyID int64) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loan_keys lk JOIN loans l ON l.id = lk.loan_id
		 WHERE lk.key_id = ? AND l.returned_at IS NULL`, keyID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking key loans: %w", err)
	}
	return count > 0, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func expectRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
