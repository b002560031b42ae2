// Package dbtest provides an in-memory SQLite database with the embedded
// migrations applied, for tests of code that talks to the metadata store.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	_ "github.com/glebarez/go-sqlite"

	"reimagine-studio/internal/database"
)

var seq atomic.Int64

// New returns a migrated database that is closed when the test ends.
func New(t testing.TB) *sql.DB {
	t.Helper()

	// Named shared-cache databases keep parallel tests isolated.
	dsn := fmt.Sprintf("file:dbtest%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", seq.Add(1))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := database.NewMigrator(db, nil).Run(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}
