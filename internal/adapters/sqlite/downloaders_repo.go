package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/ports"
)

type DownloadersRepository struct {
	db *sql.DB
}

func NewDownloadersRepository(db *sql.DB) *DownloadersRepository {
	return &DownloadersRepository{db: db}
}

const downloaderColumns = `id, name, type, enabled, is_default, config, created_at`

func (r *DownloadersRepository) Insert(ctx context.Context, d domain.Downloader) (domain.Downloader, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO downloaders(name, type, enabled, is_default, config, created_at)
		VALUES(?, ?, ?, ?, ?, ?)
	`, d.Name, d.Type, boolInt(d.Enabled), boolInt(d.IsDefault), d.Config, formatTime(time.Now()))
	if err != nil {
		return domain.Downloader{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Downloader{}, err
	}
	return r.Get(ctx, id)
}

func (r *DownloadersRepository) Get(ctx context.Context, id int64) (domain.Downloader, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+downloaderColumns+` FROM downloaders WHERE id = ?`, id)
	return scanDownloader(row)
}

// GetDefaultEnabled : le downloader marqué par défaut s'il est actif, sinon le premier actif.
func (r *DownloadersRepository) GetDefaultEnabled(ctx context.Context) (domain.Downloader, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+downloaderColumns+`
		FROM downloaders
		WHERE enabled = 1
		ORDER BY is_default DESC, id ASC
		LIMIT 1
	`)
	return scanDownloader(row)
}

func (r *DownloadersRepository) List(ctx context.Context) ([]domain.Downloader, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+downloaderColumns+` FROM downloaders ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Downloader{}
	for rows.Next() {
		d, err := scanDownloader(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDownloader(row rowScanner) (domain.Downloader, error) {
	var d domain.Downloader
	var created string
	err := row.Scan(&d.ID, &d.Name, &d.Type, &d.Enabled, &d.IsDefault, &d.Config, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Downloader{}, ports.ErrNotFound
		}
		return domain.Downloader{}, err
	}
	d.CreatedAt = parseTime(created)
	return d, nil
}
