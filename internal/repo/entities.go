package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
)

const entityColumns = `id,type,status,title,project_id,owner_id,phase,playbook_key,due_date,priority,fields_json,revision,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (domain.Entity, error) {
	var e domain.Entity
	var projectID, ownerID, phase, playbookKey, dueDate, fieldsJSON sql.NullString
	var priority sql.NullInt64
	err := row.Scan(&e.ID, &e.Type, &e.Status, &e.Title, &projectID, &ownerID, &phase, &playbookKey,
		&dueDate, &priority, &fieldsJSON, &e.Revision, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	e.ProjectID = stringPtr(projectID)
	e.OwnerID = stringPtr(ownerID)
	e.DueDate = stringPtr(dueDate)
	e.Phase = phase.String
	e.PlaybookKey = playbookKey.String
	if priority.Valid {
		p := int(priority.Int64)
		e.Priority = &p
	}
	if fieldsJSON.Valid && fieldsJSON.String != "" {
		if err := json.Unmarshal([]byte(fieldsJSON.String), &e.Fields); err != nil {
			return e, fmt.Errorf("decode fields for %s: %w", e.ID, err)
		}
	}
	return e, nil
}

func encodeFields(fields map[string]any) (any, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return string(b), nil
}

func (r Repo) InsertEntity(ctx context.Context, q DBTX, e domain.Entity) error {
	fields, err := encodeFields(e.Fields)
	if err != nil {
		return err
	}
	if e.Revision == 0 {
		e.Revision = 1
	}
	_, err = q.ExecContext(ctx, `INSERT INTO entities(`+entityColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.Type, e.Status, e.Title, nullableStringPtr(e.ProjectID), nullableStringPtr(e.OwnerID),
		nullable(e.Phase), nullable(e.PlaybookKey), nullableStringPtr(e.DueDate), nullableIntPtr(e.Priority),
		fields, e.Revision, e.CreatedAt, e.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("entity %s: %w", e.ID, ErrDuplicate)
	}
	return err
}

// GetEntity loads an entity with its versions (deliverables) or created tasks (decisions).
func (r Repo) GetEntity(ctx context.Context, id string) (domain.Entity, error) {
	return r.GetEntityTx(ctx, r.DB, id)
}

func (r Repo) GetEntityTx(ctx context.Context, q DBTX, id string) (domain.Entity, error) {
	e, err := scanEntity(q.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id=?`, id))
	if err != nil {
		return e, err
	}
	if err := r.attachChildren(ctx, q, &e); err != nil {
		return e, err
	}
	return e, nil
}

func (r Repo) attachChildren(ctx context.Context, q DBTX, e *domain.Entity) error {
	switch e.Type {
	case domain.EntityDeliverable:
		versions, err := r.ListVersionsTx(ctx, q, e.ID)
		if err != nil {
			return err
		}
		e.Versions = versions
	case domain.EntityDecision:
		tasks, err := r.ListDecisionTasksTx(ctx, q, e.ID)
		if err != nil {
			return err
		}
		e.TasksCreated = tasks
	}
	return nil
}

type EntityFilters struct {
	Type      domain.EntityType
	ProjectID string
	Status    domain.Status
	OwnerID   string
	Limit     int
}

func (r Repo) ListEntities(ctx context.Context, f EntityFilters) ([]domain.Entity, error) {
	var clauses []string
	var args []any
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id=?")
		args = append(args, f.OwnerID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + entityColumns + ` FROM entities ` + where + ` ORDER BY created_at ASC, id ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var res []domain.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	for i := range res {
		if err := r.attachChildren(ctx, r.DB, &res[i]); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// UpdateEntityStatus moves an entity from one status to another. It fails with
// ErrConflict when the stored status is no longer from.
func (r Repo) UpdateEntityStatus(ctx context.Context, q DBTX, id string, from, to domain.Status, updatedAt string) error {
	res, err := q.ExecContext(ctx, `UPDATE entities SET status=?, updated_at=?, revision=revision+1 WHERE id=? AND status=?`,
		to, updatedAt, id, from)
	return affectedOrConflict(res, err)
}

// UpdateEntityFields replaces the fields document if the row is still at revision.
func (r Repo) UpdateEntityFields(ctx context.Context, q DBTX, id string, revision int64, fields map[string]any, updatedAt string) error {
	encoded, err := encodeFields(fields)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `UPDATE entities SET fields_json=?, updated_at=?, revision=revision+1 WHERE id=? AND revision=?`,
		encoded, updatedAt, id, revision)
	return affectedOrConflict(res, err)
}

// TouchEntity bumps revision and updated_at, guarding on revision.
func (r Repo) TouchEntity(ctx context.Context, q DBTX, id string, revision int64, updatedAt string) error {
	res, err := q.ExecContext(ctx, `UPDATE entities SET updated_at=?, revision=revision+1 WHERE id=? AND revision=?`,
		updatedAt, id, revision)
	return affectedOrConflict(res, err)
}

// CountByStatus groups entities of a type, optionally within a project.
func (r Repo) CountByStatus(ctx context.Context, entityType domain.EntityType, projectID string) (map[domain.Status]int, error) {
	query := `SELECT status, count(*) FROM entities WHERE type=?`
	args := []any{entityType}
	if projectID != "" {
		query += ` AND project_id=?`
		args = append(args, projectID)
	}
	rows, err := r.DB.QueryContext(ctx, query+` GROUP BY status`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[domain.Status]int{}
	for rows.Next() {
		var status domain.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}
