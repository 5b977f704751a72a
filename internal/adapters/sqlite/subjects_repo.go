package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/ports"
)

type SubjectsRepository struct {
	db *sql.DB
}

func NewSubjectsRepository(db *sql.DB) *SubjectsRepository {
	return &SubjectsRepository{db: db}
}

const subjectColumns = `id, title, alt_title, description, cover_url, origin_url, status, total_episodes, created_at, updated_at`

func (r *SubjectsRepository) Insert(ctx context.Context, s domain.Subject) (domain.Subject, error) {
	now := time.Now().UTC()
	if s.Status == "" {
		s.Status = domain.SubjectUnknown
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO subjects(title, alt_title, description, cover_url, origin_url, status, total_episodes, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.Title, s.AltTitle, s.Description, s.CoverURL, nullString(s.OriginURL), string(s.Status), s.TotalEpisodes,
		formatTime(now), formatTime(now))
	if err != nil {
		if isUniqueViolation(err, "subjects") {
			return domain.Subject{}, ports.ErrConflict
		}
		return domain.Subject{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Subject{}, err
	}
	return r.Get(ctx, id)
}

func (r *SubjectsRepository) Get(ctx context.Context, id int64) (domain.Subject, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE id = ?`, id)
	return scanSubject(row)
}

func (r *SubjectsRepository) GetByOriginURL(ctx context.Context, originURL string) (domain.Subject, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE origin_url = ?`, originURL)
	return scanSubject(row)
}

func (r *SubjectsRepository) List(ctx context.Context) ([]domain.Subject, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+subjectColumns+` FROM subjects ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Subject{}
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSubject(row rowScanner) (domain.Subject, error) {
	var s domain.Subject
	var origin sql.NullString
	var status, created, updated string
	err := row.Scan(&s.ID, &s.Title, &s.AltTitle, &s.Description, &s.CoverURL, &origin, &status, &s.TotalEpisodes, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Subject{}, ports.ErrNotFound
		}
		return domain.Subject{}, err
	}
	s.OriginURL = origin.String
	s.Status = domain.SubjectStatus(status)
	s.CreatedAt = parseTime(created)
	s.UpdatedAt = parseTime(updated)
	return s, nil
}
