package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/insomniacdoll/animeloader/internal/domain"
)

// Une seule ligne : les réglages runtime sont stockés en JSON sous cette clé.
const runtimeSettingsKey = "runtime"

type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get part des valeurs par défaut et y applique le JSON stocké : une clé
// absente (ligne écrite par une version antérieure) garde sa valeur par défaut.
func (r *SettingsRepository) Get(ctx context.Context) (domain.Settings, error) {
	settings := domain.DefaultSettings()

	var raw []byte
	err := r.db.QueryRowContext(ctx, `SELECT value_json FROM settings WHERE key = ?`, runtimeSettingsKey).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return settings, nil
	case err != nil:
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	if err := json.Unmarshal(raw, &settings); err != nil {
		// Ligne illisible : on repart des défauts, le prochain Put l'écrase.
		return domain.DefaultSettings(), nil
	}
	return settings, nil
}

func (r *SettingsRepository) Put(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	raw, err := json.Marshal(settings)
	if err != nil {
		return domain.Settings{}, err
	}
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO settings(key, value_json, updated_at) VALUES(?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value_json = excluded.value_json, updated_at = excluded.updated_at`,
		runtimeSettingsKey, raw, formatTime(time.Now()),
	); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return r.Get(ctx)
}
