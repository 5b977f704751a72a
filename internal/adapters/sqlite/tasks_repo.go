package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/ports"
)

type TasksRepository struct {
	db *sql.DB
}

func NewTasksRepository(db *sql.DB) *TasksRepository {
	return &TasksRepository{db: db}
}

const taskColumns = `id, item_id, downloader_id, status, progress, external_id, error_code, error_message, created_at, updated_at`

func (r *TasksRepository) Create(ctx context.Context, task domain.Task) (domain.Task, error) {
	now := time.Now().UTC()
	if task.Status == "" {
		task.Status = domain.TaskPending
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO download_tasks(item_id, downloader_id, status, progress, external_id, error_code, error_message, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, task.ItemID, task.DownloaderID, string(task.Status), task.Progress, task.ExternalID, task.ErrorCode, task.ErrorMessage,
		formatTime(now), formatTime(now))
	if err != nil {
		return domain.Task{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Task{}, err
	}
	return r.Get(ctx, id)
}

func (r *TasksRepository) Get(ctx context.Context, id int64) (domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM download_tasks WHERE id = ?`, id)
	return scanTask(row)
}

func (r *TasksRepository) List(ctx context.Context, limit int) ([]domain.Task, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM download_tasks ORDER BY updated_at DESC, id DESC LIMIT ?`, limit)
	return collectTasks(rows, err)
}

func (r *TasksRepository) ListByStatus(ctx context.Context, status domain.TaskStatus) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM download_tasks WHERE status = ? ORDER BY id ASC`, string(status))
	return collectTasks(rows, err)
}

func collectTasks(rows *sql.Rows, err error) ([]domain.Task, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TasksRepository) ClaimNextQueued(ctx context.Context) (domain.Task, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, `
		SELECT id
		FROM download_tasks
		WHERE status = ?
		ORDER BY id ASC
		LIMIT 1
	`, string(domain.TaskQueued)).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, ports.ErrNotFound
		}
		return domain.Task{}, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE download_tasks
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(domain.TaskDownloading), formatTime(time.Now()), id, string(domain.TaskQueued))
	if err != nil {
		return domain.Task{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.Task{}, ports.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return r.Get(ctx, id)
}

func (r *TasksRepository) UpdateStatus(ctx context.Context, id int64, expected domain.TaskStatus, next domain.TaskStatus) (domain.Task, error) {
	if !domain.CanTransition(expected, next) {
		return domain.Task{}, domain.ErrInvalidTransition
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE download_tasks
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(next), formatTime(time.Now()), id, string(expected))
	if err != nil {
		return domain.Task{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.Task{}, ports.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *TasksRepository) UpdateProgress(ctx context.Context, id int64, progress float64) (domain.Task, error) {
	return r.update(ctx, id, `progress = ?`, progress)
}

func (r *TasksRepository) UpdateExternalID(ctx context.Context, id int64, externalID string) (domain.Task, error) {
	return r.update(ctx, id, `external_id = ?`, externalID)
}

func (r *TasksRepository) UpdateError(ctx context.Context, id int64, code string, message string) (domain.Task, error) {
	return r.update(ctx, id, `error_code = ?, error_message = ?`, code, message)
}

func (r *TasksRepository) update(ctx context.Context, id int64, set string, args ...any) (domain.Task, error) {
	args = append(args, formatTime(time.Now()), id)
	res, err := r.db.ExecContext(ctx, `UPDATE download_tasks SET `+set+`, updated_at = ? WHERE id = ?`, args...)
	if err != nil {
		return domain.Task{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.Task{}, ports.ErrNotFound
	}
	return r.Get(ctx, id)
}

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var status, created, updated string
	err := row.Scan(&t.ID, &t.ItemID, &t.DownloaderID, &status, &t.Progress, &t.ExternalID, &t.ErrorCode, &t.ErrorMessage, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, ports.ErrNotFound
		}
		return domain.Task{}, err
	}
	t.Status = domain.TaskStatus(status)
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return t, nil
}
