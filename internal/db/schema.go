package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'manager', 'user')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
    id         INTEGER PRIMARY KEY,
    code       TEXT NOT NULL,
    name       TEXT NOT NULL,
    type       TEXT NOT NULL CHECK (type IN ('person', 'company')),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_code_active
    ON contacts(code) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS keys (
    id                 INTEGER PRIMARY KEY,
    name               TEXT NOT NULL,
    kind               TEXT NOT NULL DEFAULT 'key' CHECK (kind IN ('key', 'card')),
    type               TEXT NOT NULL DEFAULT '',
    sequence_number    INTEGER,
    rental_object_code TEXT NOT NULL DEFAULT '',
    disposed           INTEGER NOT NULL DEFAULT 0,
    latest_event       TEXT NOT NULL DEFAULT '',
    created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at         DATETIME
);

CREATE TABLE IF NOT EXISTS loans (
    id                            INTEGER PRIMARY KEY,
    holder_code                   TEXT NOT NULL DEFAULT '',
    secondary_holder_code         TEXT NOT NULL DEFAULT '',
    kind                          TEXT NOT NULL DEFAULT 'tenant' CHECK (kind IN ('tenant', 'maintenance')),
    notes                         TEXT,
    created_at                    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    picked_up_at                  DATETIME,
    returned_at                   DATETIME,
    available_to_next_tenant_from DATETIME,
    created_by                    INTEGER REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_loans_holder_open
    ON loans(holder_code) WHERE returned_at IS NULL;

CREATE TABLE IF NOT EXISTS loan_keys (
    loan_id INTEGER NOT NULL REFERENCES loans(id) ON DELETE CASCADE,
    key_id  INTEGER NOT NULL REFERENCES keys(id),
    PRIMARY KEY (loan_id, key_id)
);

CREATE TABLE IF NOT EXISTS bundles (
    id          INTEGER PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS bundle_keys (
    bundle_id INTEGER NOT NULL REFERENCES bundles(id) ON DELETE CASCADE,
    key_id    INTEGER NOT NULL UNIQUE REFERENCES keys(id),
    position  INTEGER NOT NULL,
    PRIMARY KEY (bundle_id, key_id)
);

CREATE TABLE IF NOT EXISTS receipts (
    id         INTEGER PRIMARY KEY,
    loan_id    INTEGER NOT NULL REFERENCES loans(id) ON DELETE CASCADE,
    type       TEXT NOT NULL CHECK (type IN ('LOAN', 'RETURN')),
    file_id    TEXT,
    file_mime  TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (loan_id, type)
);

CREATE TABLE IF NOT EXISTS files (
    id           TEXT PRIMARY KEY,
    content_type TEXT NOT NULL,
    data         BLOB NOT NULL,
    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: look up a key's loans without scanning loan_keys.
	`CREATE INDEX IF NOT EXISTS idx_loan_keys_key ON loan_keys(key_id)`,
}

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Migrate ensures the schema and applies all migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return err
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
