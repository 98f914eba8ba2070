package conduit_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/realworld-apps/conduit"
)

var testDBCounter int64

// setupTestDB opens a private in-memory store and applies the schema
// migration the server ships with, so tests run against the real constraints.
func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:conduit_test_%d?mode=memory&cache=shared",
		atomic.AddInt64(&testDBCounter, 1),
	)

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	// a shared-cache memory db lives as long as one connection stays open
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		db.Close()
	})

	schema, err := conduit.GetMigrationsFS().ReadFile("data/sql/migrations/sqlite/0001_conduit_schema.up.sql")
	if err != nil {
		t.Fatalf("failed to read schema migration: %v", err)
	}

	ctx := context.Background()
	for _, stmt := range strings.Split(string(schema), "--bun:split") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("failed to apply schema statement: %v", err)
		}
	}

	return db
}

func seedTags(t *testing.T, db *bun.DB, names ...string) {
	t.Helper()

	ctx := context.Background()
	for _, name := range names {
		tag := &conduit.Tag{Name: name}
		if _, err := db.NewInsert().Model(tag).Exec(ctx); err != nil {
			t.Fatalf("failed to seed tag %q: %v", name, err)
		}
	}
}
