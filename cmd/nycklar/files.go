package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/nycklar/internal/blob"
	"github.com/erazemk/nycklar/internal/blob/s3"
)

// Receipt file drivers.
const (
	driverDB = "db"
	driverS3 = "s3"
)

// openFileStore returns the receipt file store for the named driver.
func openFileStore(ctx context.Context, driver string, database *sql.DB) (blob.Store, error) {
	switch driver {
	case "", driverDB:
		return blob.NewDBStore(database), nil
	case driverS3:
		cfg, err := s3.ConfigFromEnv()
		if err != nil {
			return nil, err
		}
		return s3.New(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown file driver %q (want %s or %s)", driver, driverDB, driverS3)
	}
}
