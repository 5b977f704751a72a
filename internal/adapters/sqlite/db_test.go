package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "animeloader.db")

	for i := 0; i < 2; i++ {
		db, err := Open(ctx, path)
		if err != nil {
			t.Fatalf("Open #%d: %v", i+1, err)
		}
		var n int
		if err := db.SQL.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
			t.Fatalf("count migrations: %v", err)
		}
		if n != 1 {
			t.Fatalf("applied migrations: want 1, got %d", n)
		}
		_ = db.Close()
	}
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0002_items.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE b(x);\n-- +migrate Down\nDROP TABLE b;\n")},
		"migrations/0001_init.sql":  {Data: []byte("-- +migrate Up\nCREATE TABLE a(x);\n")},
		"migrations/README":         {Data: []byte("ignored")},
	}
	got, err := loadMigrations(fsys)
	if err != nil {
		t.Fatalf("loadMigrations: %v", err)
	}
	if len(got) != 2 || got[0].version != 1 || got[1].version != 2 {
		t.Fatalf("unexpected order: %+v", got)
	}
	if strings.Contains(got[1].up, "DROP") || !strings.Contains(got[1].up, "CREATE TABLE b") {
		t.Fatalf("up section: %q", got[1].up)
	}

	fsys["migrations/0001_dup.sql"] = &fstest.MapFile{Data: []byte("-- +migrate Up\n")}
	if _, err := loadMigrations(fsys); err == nil {
		t.Fatalf("expected duplicate version error")
	}
}
