package repo

import (
	"context"
	"database/sql"
	"fmt"
)

// AppendDecisionTask records taskID at the end of the decision's task list.
func (r Repo) AppendDecisionTask(ctx context.Context, q DBTX, decisionID, taskID string) error {
	_, err := q.ExecContext(ctx, `INSERT INTO decision_tasks(decision_id, task_id, seq)
SELECT ?, ?, COALESCE(MAX(seq), 0) + 1 FROM decision_tasks WHERE decision_id=?`, decisionID, taskID, decisionID)
	if isUniqueViolation(err) {
		return fmt.Errorf("decision %s task %s: %w", decisionID, taskID, ErrDuplicate)
	}
	return err
}

func (r Repo) ListDecisionTasksTx(ctx context.Context, q DBTX, decisionID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT task_id FROM decision_tasks WHERE decision_id=? ORDER BY seq ASC`, decisionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type PlaybookApplication struct {
	ProjectID   string `json:"project_id"`
	PlaybookKey string `json:"playbook_key"`
	AppliedBy   string `json:"applied_by"`
	AppliedAt   string `json:"applied_at"`
}

// InsertPlaybookApplication claims the project for a playbook. A second claim
// returns ErrDuplicate.
func (r Repo) InsertPlaybookApplication(ctx context.Context, q DBTX, a PlaybookApplication) error {
	_, err := q.ExecContext(ctx, `INSERT INTO playbook_applications(project_id, playbook_key, applied_by, applied_at) VALUES (?,?,?,?)`,
		a.ProjectID, a.PlaybookKey, a.AppliedBy, a.AppliedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("playbook for project %s: %w", a.ProjectID, ErrDuplicate)
	}
	return err
}

func (r Repo) GetPlaybookApplication(ctx context.Context, q DBTX, projectID string) (PlaybookApplication, error) {
	var a PlaybookApplication
	err := q.QueryRowContext(ctx, `SELECT project_id, playbook_key, applied_by, applied_at FROM playbook_applications WHERE project_id=?`, projectID).
		Scan(&a.ProjectID, &a.PlaybookKey, &a.AppliedBy, &a.AppliedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}
