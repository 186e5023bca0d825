package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
)

const timeEntryColumns = `id,user_id,project_id,task_id,date,duration_minutes,description,source,created_at,deleted_at`

func scanTimeEntry(row rowScanner) (domain.TimeEntry, error) {
	var te domain.TimeEntry
	var taskID, description, deletedAt sql.NullString
	err := row.Scan(&te.ID, &te.UserID, &te.ProjectID, &taskID, &te.Date, &te.DurationMinutes, &description, &te.Source, &te.CreatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return te, ErrNotFound
	}
	if err != nil {
		return te, err
	}
	te.TaskID = stringPtr(taskID)
	te.Description = description.String
	te.DeletedAt = stringPtr(deletedAt)
	return te, nil
}

func (r Repo) InsertTimeEntry(ctx context.Context, q DBTX, te domain.TimeEntry) error {
	_, err := q.ExecContext(ctx, `INSERT INTO time_entries(`+timeEntryColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		te.ID, te.UserID, te.ProjectID, nullableStringPtr(te.TaskID), te.Date, te.DurationMinutes,
		nullable(te.Description), te.Source, te.CreatedAt, nullableStringPtr(te.DeletedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("time entry %s: %w", te.ID, ErrDuplicate)
	}
	return err
}

// GetTimeEntry returns an entry including soft-deleted ones.
func (r Repo) GetTimeEntry(ctx context.Context, q DBTX, id string) (domain.TimeEntry, error) {
	return scanTimeEntry(q.QueryRowContext(ctx, `SELECT `+timeEntryColumns+` FROM time_entries WHERE id=?`, id))
}

// SoftDeleteTimeEntry stamps deleted_at on a live entry; ErrNotFound otherwise.
func (r Repo) SoftDeleteTimeEntry(ctx context.Context, q DBTX, id, deletedAt string) error {
	res, err := q.ExecContext(ctx, `UPDATE time_entries SET deleted_at=? WHERE id=? AND deleted_at IS NULL`, deletedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type TimeEntryFilters struct {
	UserID    string
	ProjectID string
	TaskID    string
	From      string
	To        string
	// IncludeDeleted returns soft-deleted rows as well.
	IncludeDeleted bool
	Limit          int
}

func (r Repo) ListTimeEntries(ctx context.Context, f TimeEntryFilters) ([]domain.TimeEntry, error) {
	var clauses []string
	var args []any
	if !f.IncludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}
	if f.UserID != "" {
		clauses = append(clauses, "user_id=?")
		args = append(args, f.UserID)
	}
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.TaskID != "" {
		clauses = append(clauses, "task_id=?")
		args = append(args, f.TaskID)
	}
	if f.From != "" {
		clauses = append(clauses, "date>=?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "date<=?")
		args = append(args, f.To)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries ` + where + ` ORDER BY date ASC, created_at ASC, id ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TimeEntry
	for rows.Next() {
		te, err := scanTimeEntry(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, te)
	}
	return res, rows.Err()
}

// MinutesByUser sums live minutes on a project per user.
func (r Repo) MinutesByUser(ctx context.Context, projectID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT user_id, SUM(duration_minutes) FROM time_entries
WHERE project_id=? AND deleted_at IS NULL GROUP BY user_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var user string
		var minutes int
		if err := rows.Scan(&user, &minutes); err != nil {
			return nil, err
		}
		res[user] = minutes
	}
	return res, rows.Err()
}
