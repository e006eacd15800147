package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/nycklar/internal/lending"
	"github.com/erazemk/nycklar/internal/model"
)

// CreateBundle creates an empty bundle.
func CreateBundle(ctx context.Context, db *sql.DB, name, description string) (*model.Bundle, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO bundles (name, description) VALUES (?, ?)`,
		name, description,
	)
	if err != nil {
		return nil, fmt.Errorf("creating bundle: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting bundle id: %w", err)
	}

	return GetBundle(ctx, db, id)
}

// GetBundle returns a bundle by ID with its key IDs in bundle order.
func GetBundle(ctx context.Context, db *sql.DB, id int64) (*model.Bundle, error) {
	b := &model.Bundle{}
	var description sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM bundles WHERE id = ?`, id,
	).Scan(&b.ID, &b.Name, &description, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting bundle: %w", err)
	}
	b.Description = description.String

	b.KeyIDs, err = bundleKeyIDs(ctx, db, id)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListBundles returns all bundles ordered by name. Key IDs are not loaded.
func ListBundles(ctx context.Context, db *sql.DB) ([]model.Bundle, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, description, created_at FROM bundles ORDER BY name, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing bundles: %w", err)
	}
	defer rows.Close()

	var bundles []model.Bundle
	for rows.Next() {
		var b model.Bundle
		var description sql.NullString
		if err := rows.Scan(&b.ID, &b.Name, &description, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning bundle: %w", err)
		}
		b.Description = description.String
		bundles = append(bundles, b)
	}
	return bundles, rows.Err()
}

// DeleteBundle deletes a bundle. Its keys are released, not deleted.
func DeleteBundle(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM bundles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting bundle: %w", err)
	}
	return expectRow(result)
}

func bundleKeyIDs(ctx context.Context, db *sql.DB, bundleID int64) ([]int64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT key_id FROM bundle_keys WHERE bundle_id = ? ORDER BY position`, bundleID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing bundle keys: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning bundle key: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddBundleKeys appends keys to a bundle, keeping existing order. Keys
// already in the bundle are ignored; keys in another bundle are rejected.
func AddBundleKeys(ctx context.Context, db *sql.DB, bundleID int64, keyIDs []int64) (*model.Bundle, error) {
	bundle, err := GetBundle(ctx, db, bundleID)
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		return nil, ErrNotFound
	}

	current := bundle.KeyIDs
	updated := lending.PlanAddition(current, keyIDs)
	added := updated[len(current):]
	if len(added) == 0 {
		return bundle, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Removals leave gaps, so new keys go after the highest position in use.
	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM bundle_keys WHERE bundle_id = ?`, bundleID,
	).Scan(&next); err != nil {
		return nil, fmt.Errorf("reading bundle positions: %w", err)
	}

	for i, keyID := range added {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM keys WHERE id = ? AND deleted_at IS NULL`, keyID,
		).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("checking key %d: %w", keyID, err)
		}
		if exists == 0 {
			return nil, fmt.Errorf("key %d: %w", keyID, ErrNotFound)
		}

		var owner int64
		err = tx.QueryRowContext(ctx,
			`SELECT bundle_id FROM bundle_keys WHERE key_id = ?`, keyID,
		).Scan(&owner)
		if err == nil {
			return nil, fmt.Errorf("key %d in bundle %d: %w", keyID, owner, ErrKeyInOtherBundle)
		}
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("checking key %d bundle: %w", keyID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bundle_keys (bundle_id, key_id, position) VALUES (?, ?, ?)`,
			bundleID, keyID, next+i,
		); err != nil {
			return nil, fmt.Errorf("adding key %d to bundle: %w", keyID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing bundle keys: %w", err)
	}

	return GetBundle(ctx, db, bundleID)
}

// RemoveBundleKeys removes keys from a bundle. When any of them is out on
// loan and confirm is false nothing is removed and ErrConfirmationRequired is
// returned together with the plan.
func RemoveBundleKeys(ctx context.Context, db *sql.DB, bundleID int64, keyIDs []int64, confirm bool) (lending.RemovalPlan, error) {
	bundle, err := GetBundle(ctx, db, bundleID)
	if err != nil {
		return lending.RemovalPlan{}, err
	}
	if bundle == nil {
		return lending.RemovalPlan{}, ErrNotFound
	}

	keys, err := keysByIDs(ctx, db, keyIDs)
	if err != nil {
		return lending.RemovalPlan{}, err
	}

	plan := lending.PlanRemoval(keyIDs, keys)
	if plan.NeedsConfirmation() && !confirm {
		return plan, ErrConfirmationRequired
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return plan, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, ids := range [][]int64{plan.Safe, plan.Warn} {
		for _, keyID := range ids {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM bundle_keys WHERE bundle_id = ? AND key_id = ?`, bundleID, keyID,
			); err != nil {
				return plan, fmt.Errorf("removing key %d from bundle: %w", keyID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return plan, fmt.Errorf("committing bundle removal: %w", err)
	}
	return plan, nil
}
