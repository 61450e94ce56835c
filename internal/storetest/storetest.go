// Package storetest provides a migrated in-memory SQLite backend for tests.
package storetest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/nasirmalek/FamilyCircle/internal/backend"
	"github.com/nasirmalek/FamilyCircle/internal/config"
)

// Logger returns a logger that only reports panics.
func Logger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// New opens a fresh in-memory database, applies the migrations and returns a
// Backend bound to it. The database is closed when the test ends.
func New(t testing.TB) *backend.Backend {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// a single connection keeps every statement on the same in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := config.Migrate(db, backend.SQLite, Logger()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return backend.New(db, backend.SQLite, Logger())
}

// Profile inserts a user profile and returns its id.
func Profile(t testing.TB, b *backend.Backend, username string) string {
	t.Helper()
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := b.Exec(context.Background(), b.Insert("user_profiles", backend.Row{
		"id":         id,
		"username":   username,
		"email":      username + "@example.com",
		"created_at": now,
		"updated_at": now,
	}))
	if err != nil {
		t.Fatalf("insert profile %q: %v", username, err)
	}
	return id
}

// Family inserts a family and returns its id.
func Family(t testing.TB, b *backend.Backend, name string) string {
	t.Helper()
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := b.Exec(context.Background(), b.Insert("families", backend.Row{
		"id":         id,
		"name":       name,
		"created_at": now,
		"updated_at": now,
	}))
	if err != nil {
		t.Fatalf("insert family %q: %v", name, err)
	}
	return id
}

// Member adds userID to familyID.
func Member(t testing.TB, b *backend.Backend, familyID, userID string) {
	t.Helper()
	_, err := b.Exec(context.Background(), b.Insert("family_members", backend.Row{
		"family_id": familyID,
		"user_id":   userID,
		"role":      "member",
	}))
	if err != nil {
		t.Fatalf("insert member: %v", err)
	}
}
