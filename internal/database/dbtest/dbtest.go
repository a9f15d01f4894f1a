// Package dbtest opens migrated SQLite databases for tests.
package dbtest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"brainpulse/internal/database"
)

// New returns a migrated SQLite database stored in the test's temp dir
func New(tb testing.TB) *database.DB {
	tb.Helper()

	db, err := database.Initialize(filepath.Join(tb.TempDir(), "brainpulse_test.db"))
	if err != nil {
		tb.Fatalf("failed to open test database: %v", err)
	}
	tb.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(context.Background()); err != nil {
		tb.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// CreateUser inserts a user with a unique email and returns its ID
func CreateUser(tb testing.TB, db *database.DB, name string) int64 {
	tb.Helper()

	id, err := db.ExecReturningID(context.Background(),
		"INSERT INTO users (email, password_hash, name) VALUES (?, ?, ?)",
		fmt.Sprintf("%s@example.com", name), "not-a-hash", name)
	if err != nil {
		tb.Fatalf("failed to create user %s: %v", name, err)
	}
	return id
}
