package testutil

import (
	"context"
	"testing"

	"github.com/delvicier/fixagent/internal/services"
	"github.com/delvicier/fixagent/internal/store"
)

// NewStore creates an in-memory SQLiteStore for testing.
// The store is automatically closed when the test completes.
func NewStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("testutil.NewStore: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// NewSettingsRepo returns a migrated settings repository on a fresh
// in-memory store.
func NewSettingsRepo(t *testing.T) *services.SQLiteSettingsRepository {
	t.Helper()
	repo, err := services.NewSQLiteSettingsRepository(context.Background(), NewStore(t))
	if err != nil {
		t.Fatalf("testutil.NewSettingsRepo: %v", err)
	}
	return repo
}

// NewScanRepo returns a migrated scan history repository on a fresh
// in-memory store.
func NewScanRepo(t *testing.T) *services.SQLiteScanRepository {
	t.Helper()
	repo, err := services.NewSQLiteScanRepository(context.Background(), NewStore(t))
	if err != nil {
		t.Fatalf("testutil.NewScanRepo: %v", err)
	}
	return repo
}
