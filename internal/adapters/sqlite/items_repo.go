package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/ports"
)

type ItemsRepository struct {
	db *sql.DB
}

func NewItemsRepository(db *sql.DB) *ItemsRepository {
	return &ItemsRepository{db: db}
}

const itemColumns = `id, feed_source_id, episode, episode_title, link_type, url, source_url, size, published_at, downloaded, available, metadata, created_at`

func (r *ItemsRepository) Insert(ctx context.Context, it domain.Item) (domain.Item, error) {
	if !it.LinkType.Persistable() {
		return domain.Item{}, fmt.Errorf("link type %q is not persistable", it.LinkType)
	}
	var episode sql.NullInt64
	if it.Episode != nil {
		episode = sql.NullInt64{Int64: int64(*it.Episode), Valid: true}
	}
	var size sql.NullInt64
	if it.Size != nil {
		size = sql.NullInt64{Int64: *it.Size, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO items(feed_source_id, episode, episode_title, link_type, url, source_url, size, published_at, downloaded, available, metadata, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, it.FeedSourceID, episode, it.EpisodeTitle, string(it.LinkType), it.URL, it.SourceURL, size, nullTime(it.PublishedAt),
		boolInt(it.Downloaded), boolInt(it.Available), it.Metadata, formatTime(time.Now()))
	if err != nil {
		if isUniqueViolation(err, "items") {
			return domain.Item{}, ports.ErrConflict
		}
		return domain.Item{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Item{}, err
	}
	return r.Get(ctx, id)
}

func (r *ItemsRepository) Get(ctx context.Context, id int64) (domain.Item, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	return scanItem(row)
}

func (r *ItemsRepository) GetByFeedSourceAndURL(ctx context.Context, feedSourceID int64, url string) (domain.Item, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE feed_source_id = ? AND url = ?`, feedSourceID, url)
	return scanItem(row)
}

func (r *ItemsRepository) ListByFeedSource(ctx context.Context, feedSourceID int64) ([]domain.Item, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items WHERE feed_source_id = ? ORDER BY id ASC`, feedSourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *ItemsRepository) KnownURLs(ctx context.Context, feedSourceID int64) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT url, source_url FROM items WHERE feed_source_id = ?`, feedSourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var u, src string
		if err := rows.Scan(&u, &src); err != nil {
			return nil, err
		}
		out[u] = struct{}{}
		if src != "" {
			out[src] = struct{}{}
		}
	}
	return out, rows.Err()
}

func (r *ItemsRepository) MarkDownloaded(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE items SET downloaded = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func scanItem(row rowScanner) (domain.Item, error) {
	var it domain.Item
	var episode, size sql.NullInt64
	var published sql.NullString
	var linkType, created string
	err := row.Scan(&it.ID, &it.FeedSourceID, &episode, &it.EpisodeTitle, &linkType, &it.URL, &it.SourceURL, &size, &published,
		&it.Downloaded, &it.Available, &it.Metadata, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Item{}, ports.ErrNotFound
		}
		return domain.Item{}, err
	}
	if episode.Valid {
		ep := int(episode.Int64)
		it.Episode = &ep
	}
	if size.Valid {
		sz := size.Int64
		it.Size = &sz
	}
	it.LinkType = domain.LinkType(linkType)
	it.PublishedAt = timePtr(published)
	it.CreatedAt = parseTime(created)
	return it, nil
}
