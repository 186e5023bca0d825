package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/audit"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/repo"
)

// Transition moves an entity to target if its machine declares the edge.
// The status change and its audit entry commit together or not at all.
func (e Engine) Transition(ctx context.Context, entityType domain.EntityType, entityID string, target domain.Status, actorID string) (domain.Entity, error) {
	if strings.TrimSpace(actorID) == "" {
		return domain.Entity{}, invalid("actor_id", "is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Entity{}, err
	}
	defer tx.Rollback()

	ent, from, err := e.transitionTx(ctx, tx, entityType, entityID, target, actorID)
	if err != nil {
		e.Metrics.RecordTransition(string(entityType), transitionResult(err))
		return domain.Entity{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Entity{}, err
	}
	e.Metrics.RecordTransition(string(entityType), "ok")
	e.log().Debug("transition",
		zap.String("type", string(entityType)),
		zap.String("id", entityID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("actor", actorID))
	return ent, nil
}

// transitionTx performs the checked status update inside tx and returns the
// updated entity and its previous status.
func (e Engine) transitionTx(ctx context.Context, tx *sql.Tx, entityType domain.EntityType, entityID string, target domain.Status, actorID string) (domain.Entity, domain.Status, error) {
	m, ok := e.machines().Machine(entityType)
	if !ok {
		return domain.Entity{}, "", fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}
	ent, err := e.requireEntity(ctx, tx, entityType, entityID)
	if err != nil {
		return domain.Entity{}, "", err
	}
	from := ent.Status
	if !m.CanTransition(from, target) {
		return domain.Entity{}, from, &TransitionError{EntityType: entityType, EntityID: entityID, From: from, To: target}
	}
	if err := m.Check(ent, target); err != nil {
		return domain.Entity{}, from, &TransitionError{EntityType: entityType, EntityID: entityID, From: from, To: target, Reason: err}
	}
	now := e.timestamp()
	if err := e.Repo.UpdateEntityStatus(ctx, tx, entityID, from, target, now); err != nil {
		return domain.Entity{}, from, conflictErr(err, fmt.Sprintf("transition %s %s", entityType, entityID))
	}
	if _, err := audit.Append(ctx, tx, domain.AuditLogEntry{
		EntityType: entityType,
		EntityID:   entityID,
		FromState:  from,
		ToState:    target,
		ActorID:    actorID,
		Timestamp:  now,
	}); err != nil {
		return domain.Entity{}, from, err
	}
	ent.Status = target
	ent.UpdatedAt = now
	ent.Revision++
	return ent, from, nil
}

func transitionResult(err error) string {
	switch {
	case errors.Is(err, ErrGuardRejected):
		return "guard_rejected"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid"
	case errors.Is(err, ErrEntityNotFound), errors.Is(err, ErrUnknownEntityType):
		return "not_found"
	case errors.Is(err, ErrConcurrentModification), errors.Is(err, repo.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
