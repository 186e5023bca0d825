// Package events writes the activity feed shown next to entities.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Activity event types.
const (
	EntityCreated       = "entity.created"
	EntityFieldsUpdated = "entity.fields.updated"
	PlaybookApplied     = "playbook.applied"
	VersionSubmitted    = "deliverable.version.submitted"
	VersionApproved     = "deliverable.version.approved"
	RevisionRequested   = "deliverable.revision.requested"
	DecisionTaskCreated = "decision.task.created"
	TimerStarted        = "timer.started"
	TimerStopped        = "timer.stopped"
	EntryAdded          = "time_entry.added"
	EntryDeleted        = "time_entry.deleted"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append writes one event inside the caller's transaction.
func (w Writer) Append(ctx context.Context, tx execer, evtType, projectID, entityKind, entityID, actorID string, payload EventPayload) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,project_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullable(projectID), entityKind, nullable(entityID), actorID, string(data))
	if err != nil {
		return fmt.Errorf("append %s event: %w", evtType, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
