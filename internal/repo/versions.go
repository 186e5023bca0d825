package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
)

func (r Repo) InsertVersion(ctx context.Context, q DBTX, v domain.DeliverableVersion) error {
	notes, err := json.Marshal(v.Notes)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT INTO deliverable_versions(deliverable_id, seq, code, status, description, notes_json, created_at, decided_at, decided_by)
VALUES (?,?,?,?,?,?,?,?,?)`,
		v.DeliverableID, v.Seq, v.Code, v.Status, nullable(v.Description), string(notes), v.CreatedAt,
		nullableStringPtr(v.DecidedAt), nullableStringPtr(v.DecidedBy))
	if isUniqueViolation(err) {
		return fmt.Errorf("version %s/%s: %w", v.DeliverableID, v.Code, ErrDuplicate)
	}
	return err
}

// DecideVersion records a verdict on a draft version. A version that already
// has a verdict is left untouched and ErrConflict is returned.
func (r Repo) DecideVersion(ctx context.Context, q DBTX, v domain.DeliverableVersion) error {
	notes, err := json.Marshal(v.Notes)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `UPDATE deliverable_versions SET status=?, notes_json=?, decided_at=?, decided_by=?
WHERE deliverable_id=? AND seq=? AND status=?`,
		v.Status, string(notes), nullableStringPtr(v.DecidedAt), nullableStringPtr(v.DecidedBy),
		v.DeliverableID, v.Seq, domain.VersionDraft)
	return affectedOrConflict(res, err)
}

func (r Repo) ListVersionsTx(ctx context.Context, q DBTX, deliverableID string) ([]domain.DeliverableVersion, error) {
	rows, err := q.QueryContext(ctx, `SELECT deliverable_id, seq, code, status, description, notes_json, created_at, decided_at, decided_by
FROM deliverable_versions WHERE deliverable_id=? ORDER BY seq ASC`, deliverableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.DeliverableVersion
	for rows.Next() {
		var v domain.DeliverableVersion
		var description, notesJSON, decidedAt, decidedBy sql.NullString
		if err := rows.Scan(&v.DeliverableID, &v.Seq, &v.Code, &v.Status, &description, &notesJSON, &v.CreatedAt, &decidedAt, &decidedBy); err != nil {
			return nil, err
		}
		v.Description = description.String
		if notesJSON.Valid && notesJSON.String != "" && notesJSON.String != "null" {
			if err := json.Unmarshal([]byte(notesJSON.String), &v.Notes); err != nil {
				return nil, fmt.Errorf("decode notes for %s/%s: %w", v.DeliverableID, v.Code, err)
			}
		}
		v.DecidedAt = stringPtr(decidedAt)
		v.DecidedBy = stringPtr(decidedBy)
		res = append(res, v)
	}
	return res, rows.Err()
}

// UpdateVersionDescription rewrites a draft's description before resubmission.
func (r Repo) UpdateVersionDescription(ctx context.Context, q DBTX, deliverableID string, seq int, description string) error {
	res, err := q.ExecContext(ctx, `UPDATE deliverable_versions SET description=? WHERE deliverable_id=? AND seq=? AND status=?`,
		nullable(description), deliverableID, seq, domain.VersionDraft)
	return affectedOrConflict(res, err)
}
