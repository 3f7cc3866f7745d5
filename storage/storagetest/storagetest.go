// Package storagetest provides an in-memory repository for tests
package storagetest

import (
	"testing"

	"github.com/Zakerman110/master-work-644/storage"
	"github.com/Zakerman110/master-work-644/utils"
)

// NewRepository opens a fresh in-memory SQLite database with all tables migrated
func NewRepository(tb testing.TB) *storage.GormRepository {
	tb.Helper()
	db, err := storage.OpenSQLite(":memory:", utils.NewNopLogger())
	if err != nil {
		tb.Fatalf("open test database: %v", err)
	}
	if err := storage.Migrate(db); err != nil {
		tb.Fatalf("migrate test database: %v", err)
	}
	tb.Cleanup(func() { storage.Close(db) })
	return storage.NewGormRepository(db)
}
