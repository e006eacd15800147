package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/nycklar/internal/db"
	"github.com/erazemk/nycklar/internal/model"
	"github.com/erazemk/nycklar/internal/store"
)

// initDatabase creates the database file with an admin account and returns
// the generated admin password. A half-created file is removed on failure.
func initDatabase(ctx context.Context, path, adminUsername string) (database *sql.DB, password string, err error) {
	database, err = db.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer func() {
		if err != nil {
			database.Close()
			os.Remove(path)
			database = nil
		}
	}()

	if err = db.Migrate(database); err != nil {
		return database, "", fmt.Errorf("migrating schema: %w", err)
	}

	password = rand.Text()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return database, "", fmt.Errorf("hashing password: %w", err)
	}
	if _, err = store.CreateUser(ctx, database, adminUsername, string(hash), model.RoleAdmin); err != nil {
		return database, "", fmt.Errorf("creating admin user: %w", err)
	}
	return database, password, nil
}

func printInitResult(dbPath, username, password string) {
	fmt.Printf("Created %s with admin account:\n\n", dbPath)
	fmt.Printf("  username  %s\n", username)
	fmt.Printf("  password  %s\n\n", password)
	fmt.Println("The password is shown once. Change it after signing in.")
}
