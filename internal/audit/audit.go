// Package audit persists the append-only log of status changes.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Append records one transition. It must run in the same transaction as the
// status update it describes. There is no update or delete path.
func Append(ctx context.Context, tx execer, entry domain.AuditLogEntry) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO audit_log(entity_type, entity_id, from_state, to_state, actor_id, ts) VALUES (?,?,?,?,?,?)`,
		entry.EntityType, entry.EntityID, entry.FromState, entry.ToState, entry.ActorID, entry.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("append audit entry: %w", err)
	}
	return res.LastInsertId()
}

type Filter struct {
	EntityType domain.EntityType
	EntityID   string
	ActorID    string
	// After returns entries with a greater id, for incremental reads.
	After int64
	Limit int
}

// List returns entries in commit order.
func List(ctx context.Context, q querier, f Filter) ([]domain.AuditLogEntry, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.EntityType != "" {
		clauses = append(clauses, "entity_type=?")
		args = append(args, f.EntityType)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.ActorID != "" {
		clauses = append(clauses, "actor_id=?")
		args = append(args, f.ActorID)
	}
	if f.After > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, f.After)
	}
	query := `SELECT id, entity_type, entity_id, from_state, to_state, actor_id, ts FROM audit_log WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY id ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AuditLogEntry
	for rows.Next() {
		var e domain.AuditLogEntry
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.FromState, &e.ToState, &e.ActorID, &e.Timestamp); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
