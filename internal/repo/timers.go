package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
)

// InsertTimer starts a timer. The user_id primary key makes a second running
// timer fail with ErrDuplicate even under concurrent inserts.
func (r Repo) InsertTimer(ctx context.Context, q DBTX, t domain.Timer) error {
	_, err := q.ExecContext(ctx, `INSERT INTO timers(user_id, project_id, task_id, started_at, description) VALUES (?,?,?,?,?)`,
		t.UserID, t.ProjectID, nullableStringPtr(t.TaskID), t.StartedAt, nullable(t.Description))
	if isUniqueViolation(err) {
		return fmt.Errorf("timer for %s: %w", t.UserID, ErrDuplicate)
	}
	return err
}

func (r Repo) GetTimer(ctx context.Context, q DBTX, userID string) (domain.Timer, error) {
	var t domain.Timer
	var taskID, description sql.NullString
	err := q.QueryRowContext(ctx, `SELECT user_id, project_id, task_id, started_at, description FROM timers WHERE user_id=?`, userID).
		Scan(&t.UserID, &t.ProjectID, &taskID, &t.StartedAt, &description)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.TaskID = stringPtr(taskID)
	t.Description = description.String
	return t, nil
}

// DeleteTimer removes the timer started at startedAt. ErrConflict means it was
// already stopped or replaced.
func (r Repo) DeleteTimer(ctx context.Context, q DBTX, userID, startedAt string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM timers WHERE user_id=? AND started_at=?`, userID, startedAt)
	return affectedOrConflict(res, err)
}

func (r Repo) CountTimers(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM timers`).Scan(&n)
	return n, err
}
