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

type PlaybookResult struct {
	ProjectID        string   `json:"project_id"`
	PlaybookKey      string   `json:"playbook_key"`
	TaskCount        int      `json:"task_count"`
	DeliverableCount int      `json:"deliverable_count"`
	TaskIDs          []string `json:"task_ids"`
	DeliverableIDs   []string `json:"deliverable_ids"`
}

// Playbooks returns the configured catalog.
func (e Engine) Playbooks() []domain.Playbook {
	if e.Config == nil {
		return nil
	}
	return e.Config.Playbooks
}

// ApplyPlaybook instantiates a playbook's tasks and deliverables under a
// project. Everything is created in one transaction; a project accepts one playbook.
func (e Engine) ApplyPlaybook(ctx context.Context, projectID, playbookKey, actorID string) (PlaybookResult, error) {
	if strings.TrimSpace(actorID) == "" {
		return PlaybookResult{}, invalid("actor_id", "is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return PlaybookResult{}, err
	}
	defer tx.Rollback()

	if _, err := e.requireProject(ctx, tx, projectID); err != nil {
		return PlaybookResult{}, err
	}
	pb, ok := e.Config.Playbook(playbookKey)
	if !ok {
		return PlaybookResult{}, fmt.Errorf("%w: %q", ErrUnknownPlaybook, playbookKey)
	}
	err = e.Repo.InsertPlaybookApplication(ctx, tx, repo.PlaybookApplication{
		ProjectID:   projectID,
		PlaybookKey: pb.Key,
		AppliedBy:   actorID,
		AppliedAt:   e.timestamp(),
	})
	if errors.Is(err, repo.ErrDuplicate) {
		existing, _ := e.Repo.GetPlaybookApplication(ctx, tx, projectID)
		return PlaybookResult{}, fmt.Errorf("%w: project %s already has playbook %q", ErrAlreadyApplied, projectID, existing.PlaybookKey)
	}
	if err != nil {
		return PlaybookResult{}, err
	}

	taskMachine, ok := e.machines().Machine(domain.EntityTask)
	if !ok {
		return PlaybookResult{}, fmt.Errorf("%w: %q", ErrUnknownEntityType, domain.EntityTask)
	}
	res := PlaybookResult{ProjectID: projectID, PlaybookKey: pb.Key, TaskIDs: []string{}, DeliverableIDs: []string{}}
	for _, phase := range pb.Phases {
		if !taskMachine.HasState(phase.Status) {
			return PlaybookResult{}, invalid("playbook."+pb.Key+".phase."+phase.Name+".status",
				fmt.Sprintf("%q is not a task state", phase.Status))
		}
		for _, title := range phase.Tasks {
			task, err := e.createEntityTx(ctx, tx, EntityCreateOptions{
				Type:        domain.EntityTask,
				Title:       title,
				Status:      phase.Status,
				ProjectID:   projectID,
				Phase:       phase.Name,
				playbookKey: pb.Key,
			})
			if err != nil {
				return PlaybookResult{}, fmt.Errorf("playbook %s phase %s: %w", pb.Key, phase.Name, err)
			}
			res.TaskIDs = append(res.TaskIDs, task.ID)
		}
	}
	for _, name := range pb.Deliverables {
		d, err := e.createEntityTx(ctx, tx, EntityCreateOptions{
			Type:        domain.EntityDeliverable,
			Title:       name,
			ProjectID:   projectID,
			playbookKey: pb.Key,
		})
		if err != nil {
			return PlaybookResult{}, fmt.Errorf("playbook %s deliverable %s: %w", pb.Key, name, err)
		}
		res.DeliverableIDs = append(res.DeliverableIDs, d.ID)
	}
	res.TaskCount = len(res.TaskIDs)
	res.DeliverableCount = len(res.DeliverableIDs)

	if err := e.emit(ctx, tx, events.PlaybookApplied, projectID, string(domain.EntityProject), projectID, actorID, events.EventPayload{
		"playbook":          pb.Key,
		"task_count":        res.TaskCount,
		"deliverable_count": res.DeliverableCount,
	}); err != nil {
		return PlaybookResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return PlaybookResult{}, err
	}
	e.Metrics.RecordPlaybook(pb.Key)
	e.log().Info("playbook applied",
		zap.String("project", projectID),
		zap.String("playbook", pb.Key),
		zap.Int("tasks", res.TaskCount),
		zap.Int("deliverables", res.DeliverableCount))
	return res, nil
}
