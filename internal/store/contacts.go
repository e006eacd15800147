package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/nycklar/internal/lending"
	"github.com/erazemk/nycklar/internal/model"
)

const contactColumns = `id, code, name, type, created_at, deleted_at`

func scanContact(row rowScanner) (model.Contact, error) {
	var c model.Contact
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Type, &c.CreatedAt, &c.DeletedAt)
	return c, err
}

// CreateContact creates a new contact. Codes are unique among non-deleted contacts.
func CreateContact(ctx context.Context, db *sql.DB, code, name, contactType string) (*model.Contact, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("contact code required")
	}
	if err := checkHolderCode(code); err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO contacts (code, name, type) VALUES (?, ?, ?)`,
		code, name, contactType,
	)
	if err != nil {
		return nil, fmt.Errorf("creating contact: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting contact id: %w", err)
	}

	return GetContact(ctx, db, id)
}

// GetContact returns a non-deleted contact by ID.
func GetContact(ctx context.Context, db *sql.DB, id int64) (*model.Contact, error) {
	c, err := scanContact(db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = ? AND deleted_at IS NULL`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting contact: %w", err)
	}
	return &c, nil
}

// GetContactByCode returns a non-deleted contact by its code.
func GetContactByCode(ctx context.Context, db *sql.DB, code string) (*model.Contact, error) {
	c, err := scanContact(db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE code = ? AND deleted_at IS NULL`,
		strings.TrimSpace(code),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting contact by code: %w", err)
	}
	return &c, nil
}

// ListContacts returns all non-deleted contacts, optionally filtered by type.
func ListContacts(ctx context.Context, db *sql.DB, contactType string) ([]model.Contact, error) {
	var rows *sql.Rows
	var err error

	if contactType != "" {
		rows, err = db.QueryContext(ctx,
			`SELECT `+contactColumns+` FROM contacts WHERE deleted_at IS NULL AND type = ? ORDER BY code`,
			contactType,
		)
	} else {
		rows, err = db.QueryContext(ctx,
			`SELECT `+contactColumns+` FROM contacts WHERE deleted_at IS NULL ORDER BY code`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing contacts: %w", err)
	}
	defer rows.Close()

	var contacts []model.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// UpdateContact updates a contact's name and type. The code is immutable
// because loans refer to it.
func UpdateContact(ctx context.Context, db *sql.DB, id int64, name, contactType string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE contacts SET name = ?, type = ? WHERE id = ? AND deleted_at IS NULL`,
		name, contactType, id,
	)
	if err != nil {
		return fmt.Errorf("updating contact: %w", err)
	}
	return expectRow(result)
}

// DeleteContact soft-deletes a contact that holds no unreturned loan.
func DeleteContact(ctx context.Context, db *sql.DB, id int64) error {
	c, err := GetContact(ctx, db, id)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrNotFound
	}

	var open int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loans
		 WHERE returned_at IS NULL AND (holder_code = ? OR secondary_holder_code = ?)`,
		c.Code, c.Code,
	).Scan(&open)
	if err != nil {
		return fmt.Errorf("checking contact loans: %w", err)
	}
	if open > 0 {
		return ErrContactHasActiveLoan
	}

	_, err = db.ExecContext(ctx,
		`UPDATE contacts SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`, id,
	)
	if err != nil {
		return fmt.Errorf("deleting contact: %w", err)
	}
	return nil
}

// HolderNames maps every non-deleted contact code to its display name.
func HolderNames(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT code, name FROM contacts WHERE deleted_at IS NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing holder names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var code, name string
		if err := rows.Scan(&code, &name); err != nil {
			return nil, fmt.Errorf("scanning holder name: %w", err)
		}
		names[code] = name
	}
	return names, rows.Err()
}

// checkHolderCode keeps real codes out of the grouping sentinel namespace.
func checkHolderCode(code string) error {
	if strings.HasPrefix(strings.TrimSpace(code), lending.HolderCodeReserved) {
		return fmt.Errorf("%q: %w", code, ErrReservedHolderCode)
	}
	return nil
}
