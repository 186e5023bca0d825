package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/events"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/repo"
)

// TaskFields describes a task spawned from a decision.
type TaskFields struct {
	Title       string
	ProjectID   string
	OwnerID     string
	DueDate     string
	Priority    *int
	Description string
	Status      domain.Status
}

// CreateTaskFromDecision creates a task and links it to the decision's
// tasks_created list in one transaction.
func (e Engine) CreateTaskFromDecision(ctx context.Context, decisionID string, f TaskFields, actorID string) (domain.Entity, error) {
	if strings.TrimSpace(actorID) == "" {
		return domain.Entity{}, invalid("actor_id", "is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Entity{}, err
	}
	defer tx.Rollback()

	decision, err := e.Repo.GetEntityTx(ctx, tx, decisionID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && decision.Type != domain.EntityDecision) {
		return domain.Entity{}, fmt.Errorf("%w: %s", ErrDecisionNotFound, decisionID)
	}
	if err != nil {
		return domain.Entity{}, err
	}
	projectID := f.ProjectID
	if projectID == "" {
		projectID = decision.ProjectRef()
	}
	if projectID == "" {
		return domain.Entity{}, invalid("project_id", "decision has no project; pass one explicitly")
	}
	fields := map[string]any{"decision_id": decisionID}
	if f.Description != "" {
		fields["description"] = f.Description
	}
	task, err := e.createEntityTx(ctx, tx, EntityCreateOptions{
		Type:      domain.EntityTask,
		Title:     f.Title,
		Status:    f.Status,
		ProjectID: projectID,
		OwnerID:   f.OwnerID,
		DueDate:   f.DueDate,
		Priority:  f.Priority,
		Fields:    fields,
	})
	if err != nil {
		return domain.Entity{}, err
	}
	if err := e.Repo.AppendDecisionTask(ctx, tx, decisionID, task.ID); err != nil {
		return domain.Entity{}, err
	}
	if err := e.Repo.TouchEntity(ctx, tx, decisionID, decision.Revision, e.timestamp()); err != nil {
		return domain.Entity{}, conflictErr(err, "link decision "+decisionID)
	}
	if err := e.emit(ctx, tx, events.DecisionTaskCreated, projectID, string(domain.EntityDecision), decisionID, actorID, events.EventPayload{
		"task_id": task.ID,
		"title":   task.Title,
	}); err != nil {
		return domain.Entity{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Entity{}, err
	}
	e.log().Debug("decision task created", zap.String("decision", decisionID), zap.String("task", task.ID))
	return task, nil
}
