package migrations

import (
	"context"
	"testing"

	"github.com/nerrad567/gray-logic-nodes/internal/infrastructure/database"
)

func TestEmbeddedMigrationsApply(t *testing.T) {
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx, FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='input_log'",
	).Scan(&count); err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	if count != 1 {
		t.Fatal("input_log table not created")
	}

	if err := db.Rollback(ctx, FS); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if err := db.Migrate(ctx, FS); err != nil {
		t.Fatalf("Migrate() after rollback error = %v", err)
	}
}
