package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/ports"
)

type FeedSourcesRepository struct {
	db *sql.DB
}

func NewFeedSourcesRepository(db *sql.DB) *FeedSourcesRepository {
	return &FeedSourcesRepository{db: db}
}

const feedSourceColumns = `id, subject_id, name, url, quality, active, auto_download, last_checked, created_at, updated_at`

func (r *FeedSourcesRepository) Insert(ctx context.Context, fs domain.FeedSource) (domain.FeedSource, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO feed_sources(subject_id, name, url, quality, active, auto_download, last_checked, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, fs.SubjectID, fs.Name, fs.URL, fs.Quality, boolInt(fs.Active), boolInt(fs.AutoDownload), nullTime(fs.LastChecked),
		formatTime(now), formatTime(now))
	if err != nil {
		if isUniqueViolation(err, "feed_sources") {
			return domain.FeedSource{}, ports.ErrConflict
		}
		return domain.FeedSource{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.FeedSource{}, err
	}
	return r.Get(ctx, id)
}

func (r *FeedSourcesRepository) Get(ctx context.Context, id int64) (domain.FeedSource, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+feedSourceColumns+` FROM feed_sources WHERE id = ?`, id)
	return scanFeedSource(row)
}

func (r *FeedSourcesRepository) GetByOwnerAndURL(ctx context.Context, subjectID int64, url string) (domain.FeedSource, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+feedSourceColumns+` FROM feed_sources WHERE subject_id = ? AND url = ?`, subjectID, url)
	return scanFeedSource(row)
}

func (r *FeedSourcesRepository) List(ctx context.Context) ([]domain.FeedSource, error) {
	return r.query(ctx, `SELECT `+feedSourceColumns+` FROM feed_sources ORDER BY id ASC`)
}

func (r *FeedSourcesRepository) ListByOwner(ctx context.Context, subjectID int64) ([]domain.FeedSource, error) {
	return r.query(ctx, `SELECT `+feedSourceColumns+` FROM feed_sources WHERE subject_id = ? ORDER BY id ASC`, subjectID)
}

func (r *FeedSourcesRepository) ListAutoDownload(ctx context.Context) ([]domain.FeedSource, error) {
	return r.query(ctx, `SELECT `+feedSourceColumns+` FROM feed_sources WHERE active = 1 AND auto_download = 1 ORDER BY id ASC`)
}

func (r *FeedSourcesRepository) UpdateLastChecked(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE feed_sources SET last_checked = ?, updated_at = ? WHERE id = ?
	`, formatTime(at), formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *FeedSourcesRepository) UpdateAutoDownload(ctx context.Context, id int64, enabled bool) (domain.FeedSource, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE feed_sources SET auto_download = ?, updated_at = ? WHERE id = ?
	`, boolInt(enabled), formatTime(time.Now()), id)
	if err != nil {
		return domain.FeedSource{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.FeedSource{}, ports.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *FeedSourcesRepository) query(ctx context.Context, q string, args ...any) ([]domain.FeedSource, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.FeedSource{}
	for rows.Next() {
		fs, err := scanFeedSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fs)
	}
	return out, rows.Err()
}

func scanFeedSource(row rowScanner) (domain.FeedSource, error) {
	var fs domain.FeedSource
	var lastChecked sql.NullString
	var created, updated string
	err := row.Scan(&fs.ID, &fs.SubjectID, &fs.Name, &fs.URL, &fs.Quality, &fs.Active, &fs.AutoDownload, &lastChecked, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.FeedSource{}, ports.ErrNotFound
		}
		return domain.FeedSource{}, err
	}
	fs.LastChecked = timePtr(lastChecked)
	fs.CreatedAt = parseTime(created)
	fs.UpdatedAt = parseTime(updated)
	return fs, nil
}
