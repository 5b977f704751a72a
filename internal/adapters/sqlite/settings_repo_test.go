package sqlite

import (
	"context"
	"testing"

	"github.com/insomniacdoll/animeloader/internal/domain"
)

func TestSettingsRepository_DefaultsAndPersist(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := NewSettingsRepository(db.SQL)

	got, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get(default): %v", err)
	}
	if got.DefaultIntervalSeconds != domain.DefaultIntervalSeconds {
		t.Fatalf("expected default interval %d, got %d", domain.DefaultIntervalSeconds, got.DefaultIntervalSeconds)
	}

	want := domain.DefaultSettings()
	want.MaxWorkers = 3
	want.MaxConcurrentDownloads = 6
	want.DefaultIntervalSeconds = 900

	updated, err := repo.Put(ctx, want)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if updated.MaxWorkers != want.MaxWorkers {
		t.Fatalf("MaxWorkers: want %d, got %d", want.MaxWorkers, updated.MaxWorkers)
	}
	if updated.MaxConcurrentDownloads != want.MaxConcurrentDownloads {
		t.Fatalf("MaxConcurrentDownloads: want %d, got %d", want.MaxConcurrentDownloads, updated.MaxConcurrentDownloads)
	}

	got2, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get(after Put): %v", err)
	}
	if got2.DefaultIntervalSeconds != 900 {
		t.Fatalf("DefaultIntervalSeconds after Put: want %d, got %d", 900, got2.DefaultIntervalSeconds)
	}
}

func TestSettingsRepository_PartialRowKeepsDefaults(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.SQL.ExecContext(ctx,
		`INSERT INTO settings(key, value_json, updated_at) VALUES('runtime', '{"maxWorkers":5}', '2026-01-01T00:00:00Z')`,
	); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := NewSettingsRepository(db.SQL).Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.MaxWorkers != 5 {
		t.Fatalf("MaxWorkers: want %d, got %d", 5, got.MaxWorkers)
	}
	if got.DefaultIntervalSeconds != domain.DefaultIntervalSeconds {
		t.Fatalf("DefaultIntervalSeconds: want default %d, got %d", domain.DefaultIntervalSeconds, got.DefaultIntervalSeconds)
	}
}
