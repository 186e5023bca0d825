package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/events"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/repo"
)

func codeFor(seq int) string {
	return fmt.Sprintf("v%d", seq)
}

// SubmitVersion sends a deliverable for client approval. The first call creates
// v1; after a revision request it resubmits the pending draft.
func (e Engine) SubmitVersion(ctx context.Context, deliverableID, description, actorID string) (domain.DeliverableVersion, error) {
	if strings.TrimSpace(actorID) == "" {
		return domain.DeliverableVersion{}, invalid("actor_id", "is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.DeliverableVersion{}, err
	}
	defer tx.Rollback()

	d, err := e.requireEntity(ctx, tx, domain.EntityDeliverable, deliverableID)
	if err != nil {
		return domain.DeliverableVersion{}, err
	}
	versions, err := e.Repo.ListVersionsTx(ctx, tx, deliverableID)
	if err != nil {
		return domain.DeliverableVersion{}, err
	}
	var v domain.DeliverableVersion
	switch {
	case len(versions) == 0:
		v = domain.DeliverableVersion{
			DeliverableID: deliverableID,
			Seq:           1,
			Code:          codeFor(1),
			Status:        domain.VersionDraft,
			Description:   description,
			CreatedAt:     e.timestamp(),
		}
		if err := e.Repo.InsertVersion(ctx, tx, v); err != nil {
			return domain.DeliverableVersion{}, conflictErr(err, "submit "+deliverableID)
		}
	default:
		v = versions[len(versions)-1]
		if v.Status == domain.VersionApproved {
			return domain.DeliverableVersion{}, invalid("version", v.Code+" is already approved")
		}
		if v.Status != domain.VersionDraft || d.Status != domain.DeliverableInRevision {
			return domain.DeliverableVersion{}, invalid("version", v.Code+" is awaiting a verdict")
		}
		if description != "" {
			if err := e.Repo.UpdateVersionDescription(ctx, tx, deliverableID, v.Seq, description); err != nil {
				return domain.DeliverableVersion{}, conflictErr(err, "submit "+deliverableID)
			}
			v.Description = description
		}
	}
	if _, _, err := e.transitionTx(ctx, tx, domain.EntityDeliverable, deliverableID, domain.DeliverableInApproval, actorID); err != nil {
		return domain.DeliverableVersion{}, err
	}
	if err := e.emit(ctx, tx, events.VersionSubmitted, d.ProjectRef(), string(domain.EntityDeliverable), deliverableID, actorID, events.EventPayload{
		"version": v.Code,
	}); err != nil {
		return domain.DeliverableVersion{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.DeliverableVersion{}, err
	}
	e.Metrics.RecordTransition(string(domain.EntityDeliverable), "ok")
	e.log().Debug("version submitted", zap.String("deliverable", deliverableID), zap.String("version", v.Code))
	return v, nil
}

// ApproveVersion records the client's approval of the latest draft and moves
// the deliverable to aprovado.
func (e Engine) ApproveVersion(ctx context.Context, deliverableID, versionCode, actorID string) (domain.Entity, error) {
	if strings.TrimSpace(actorID) == "" {
		return domain.Entity{}, invalid("actor_id", "is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Entity{}, err
	}
	defer tx.Rollback()

	d, v, err := e.pendingVersion(ctx, tx, deliverableID, versionCode)
	if err != nil {
		return domain.Entity{}, err
	}
	now := e.timestamp()
	v.Status = domain.VersionApproved
	v.DecidedAt = &now
	v.DecidedBy = &actorID
	if err := e.Repo.DecideVersion(ctx, tx, v); err != nil {
		return domain.Entity{}, staleErr(err, deliverableID, versionCode)
	}
	if _, _, err := e.transitionTx(ctx, tx, domain.EntityDeliverable, deliverableID, domain.DeliverableApproved, actorID); err != nil {
		return domain.Entity{}, err
	}
	if err := e.emit(ctx, tx, events.VersionApproved, d.ProjectRef(), string(domain.EntityDeliverable), deliverableID, actorID, events.EventPayload{
		"version": v.Code,
	}); err != nil {
		return domain.Entity{}, err
	}
	out, err := e.Repo.GetEntityTx(ctx, tx, deliverableID)
	if err != nil {
		return domain.Entity{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Entity{}, err
	}
	e.Metrics.RecordVerdict("approved")
	e.Metrics.RecordTransition(string(domain.EntityDeliverable), "ok")
	return out, nil
}

// RequestRevision rejects the latest draft with a reason, opens the next draft
// version and moves the deliverable to em_revisao.
func (e Engine) RequestRevision(ctx context.Context, deliverableID, versionCode, reason, actorID string) (domain.Entity, error) {
	if strings.TrimSpace(actorID) == "" {
		return domain.Entity{}, invalid("actor_id", "is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Entity{}, invalid("reason", "is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Entity{}, err
	}
	defer tx.Rollback()

	d, v, err := e.pendingVersion(ctx, tx, deliverableID, versionCode)
	if err != nil {
		return domain.Entity{}, err
	}
	now := e.timestamp()
	v.Status = domain.VersionRevisionRequested
	v.Notes = append(v.Notes, reason)
	v.DecidedAt = &now
	v.DecidedBy = &actorID
	if err := e.Repo.DecideVersion(ctx, tx, v); err != nil {
		return domain.Entity{}, staleErr(err, deliverableID, versionCode)
	}
	if _, _, err := e.transitionTx(ctx, tx, domain.EntityDeliverable, deliverableID, domain.DeliverableInRevision, actorID); err != nil {
		return domain.Entity{}, err
	}
	next := domain.DeliverableVersion{
		DeliverableID: deliverableID,
		Seq:           v.Seq + 1,
		Code:          codeFor(v.Seq + 1),
		Status:        domain.VersionDraft,
		CreatedAt:     now,
	}
	if err := e.Repo.InsertVersion(ctx, tx, next); err != nil {
		return domain.Entity{}, staleErr(err, deliverableID, versionCode)
	}
	if err := e.emit(ctx, tx, events.RevisionRequested, d.ProjectRef(), string(domain.EntityDeliverable), deliverableID, actorID, events.EventPayload{
		"version": v.Code,
		"next":    next.Code,
		"reason":  reason,
	}); err != nil {
		return domain.Entity{}, err
	}
	out, err := e.Repo.GetEntityTx(ctx, tx, deliverableID)
	if err != nil {
		return domain.Entity{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Entity{}, err
	}
	e.Metrics.RecordVerdict("revision_requested")
	e.Metrics.RecordTransition(string(domain.EntityDeliverable), "ok")
	return out, nil
}

// pendingVersion resolves code on the deliverable and checks it is the latest
// version and still awaiting a verdict.
func (e Engine) pendingVersion(ctx context.Context, tx *sql.Tx, deliverableID, code string) (domain.Entity, domain.DeliverableVersion, error) {
	d, err := e.requireEntity(ctx, tx, domain.EntityDeliverable, deliverableID)
	if err != nil {
		return domain.Entity{}, domain.DeliverableVersion{}, err
	}
	versions, err := e.Repo.ListVersionsTx(ctx, tx, deliverableID)
	if err != nil {
		return domain.Entity{}, domain.DeliverableVersion{}, err
	}
	for i, v := range versions {
		if v.Code != code {
			continue
		}
		if i != len(versions)-1 || v.Status != domain.VersionDraft {
			return domain.Entity{}, domain.DeliverableVersion{}, fmt.Errorf("%w: %s %s (latest %s)", ErrStaleVersion, deliverableID, code, versions[len(versions)-1].Code)
		}
		return d, v, nil
	}
	return domain.Entity{}, domain.DeliverableVersion{}, fmt.Errorf("%w: version %s of %s", ErrEntityNotFound, code, deliverableID)
}

func staleErr(err error, deliverableID, code string) error {
	if errors.Is(err, repo.ErrConflict) || errors.Is(err, repo.ErrDuplicate) {
		return fmt.Errorf("%w: %s %s", ErrStaleVersion, deliverableID, code)
	}
	return err
}
