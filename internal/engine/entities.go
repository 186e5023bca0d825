package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/events"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/repo"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/timesheet"
)

// EntityCreateOptions are parameters for creating any workflow entity.
type EntityCreateOptions struct {
	ID        string
	Type      domain.EntityType
	Title     string
	Status    domain.Status
	ProjectID string
	OwnerID   string
	Phase     string
	DueDate   string
	Priority  *int
	Fields    map[string]any
	ActorID   string

	playbookKey string
}

func (e Engine) CreateEntity(ctx context.Context, opts EntityCreateOptions) (domain.Entity, error) {
	if strings.TrimSpace(opts.ActorID) == "" {
		return domain.Entity{}, invalid("actor_id", "is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Entity{}, err
	}
	defer tx.Rollback()

	ent, err := e.createEntityTx(ctx, tx, opts)
	if err != nil {
		return domain.Entity{}, err
	}
	if err := e.emit(ctx, tx, events.EntityCreated, projectScope(ent), string(ent.Type), ent.ID, opts.ActorID, events.EventPayload{
		"title":  ent.Title,
		"status": ent.Status,
	}); err != nil {
		return domain.Entity{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Entity{}, err
	}
	e.log().Debug("entity created", zap.String("type", string(ent.Type)), zap.String("id", ent.ID), zap.String("actor", opts.ActorID))
	return ent, nil
}

func (e Engine) createEntityTx(ctx context.Context, tx *sql.Tx, opts EntityCreateOptions) (domain.Entity, error) {
	m, ok := e.machines().Machine(opts.Type)
	if !ok {
		return domain.Entity{}, fmt.Errorf("%w: %q", ErrUnknownEntityType, opts.Type)
	}
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return domain.Entity{}, invalid("title", "is required")
	}
	status := opts.Status
	if status == "" {
		status = m.Initial
	} else if !m.HasState(status) {
		return domain.Entity{}, invalid("status", fmt.Sprintf("%q is not a %s state", status, opts.Type))
	}
	if _, ok := opts.Fields["status"]; ok {
		return domain.Entity{}, invalid("fields.status", "status changes go through transitions")
	}
	if opts.DueDate != "" {
		if _, err := timesheet.ParseDate(opts.DueDate); err != nil {
			return domain.Entity{}, invalid("due_date", "must be YYYY-MM-DD")
		}
	}
	switch {
	case opts.Type == domain.EntityProject && opts.ProjectID != "":
		return domain.Entity{}, invalid("project_id", "not allowed on a project")
	case (opts.Type == domain.EntityTask || opts.Type == domain.EntityDeliverable) && opts.ProjectID == "":
		return domain.Entity{}, invalid("project_id", "is required for "+string(opts.Type))
	}
	if opts.ProjectID != "" {
		if _, err := e.requireProject(ctx, tx, opts.ProjectID); err != nil {
			return domain.Entity{}, err
		}
	}
	id := opts.ID
	if id == "" {
		id = e.newID()
	}
	now := e.timestamp()
	ent := domain.Entity{
		ID:          id,
		Type:        opts.Type,
		Status:      status,
		Title:       title,
		ProjectID:   optionalString(opts.ProjectID),
		OwnerID:     optionalString(opts.OwnerID),
		Phase:       opts.Phase,
		PlaybookKey: opts.playbookKey,
		DueDate:     optionalString(opts.DueDate),
		Priority:    opts.Priority,
		Fields:      opts.Fields,
		Revision:    1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.InsertEntity(ctx, tx, ent); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return domain.Entity{}, invalid("id", "already exists")
		}
		return domain.Entity{}, err
	}
	return ent, nil
}

// requireProject loads id and checks it is a project.
func (e Engine) requireProject(ctx context.Context, q repo.DBTX, id string) (domain.Entity, error) {
	p, err := e.Repo.GetEntityTx(ctx, q, id)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && p.Type != domain.EntityProject) {
		return domain.Entity{}, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return p, err
}

// requireEntity loads id and checks its type.
func (e Engine) requireEntity(ctx context.Context, q repo.DBTX, t domain.EntityType, id string) (domain.Entity, error) {
	ent, err := e.Repo.GetEntityTx(ctx, q, id)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && ent.Type != t) {
		return domain.Entity{}, fmt.Errorf("%w: %s %s", ErrEntityNotFound, t, id)
	}
	return ent, err
}

func (e Engine) GetEntity(ctx context.Context, id string) (domain.Entity, error) {
	ent, err := e.Repo.GetEntity(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Entity{}, entityNotFound(id)
	}
	return ent, err
}

func (e Engine) ListEntities(ctx context.Context, f repo.EntityFilters) ([]domain.Entity, error) {
	if f.Type != "" {
		if _, ok := e.machines().Machine(f.Type); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, f.Type)
		}
	}
	return e.Repo.ListEntities(ctx, f)
}

// UpdateFields merges patch into the entity's fields. A nil value removes the key.
// Status is never writable here.
func (e Engine) UpdateFields(ctx context.Context, id string, patch map[string]any, actorID string) (domain.Entity, error) {
	if strings.TrimSpace(actorID) == "" {
		return domain.Entity{}, invalid("actor_id", "is required")
	}
	if _, ok := patch["status"]; ok {
		return domain.Entity{}, invalid("fields.status", "status changes go through transitions")
	}
	if len(patch) == 0 {
		return domain.Entity{}, invalid("fields", "patch is empty")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Entity{}, err
	}
	defer tx.Rollback()

	ent, err := e.Repo.GetEntityTx(ctx, tx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Entity{}, entityNotFound(id)
	}
	if err != nil {
		return domain.Entity{}, err
	}
	merged := make(map[string]any, len(ent.Fields)+len(patch))
	for k, v := range ent.Fields {
		merged[k] = v
	}
	keys := make([]string, 0, len(patch))
	for k, v := range patch {
		keys = append(keys, k)
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	sort.Strings(keys)
	now := e.timestamp()
	if err := e.Repo.UpdateEntityFields(ctx, tx, id, ent.Revision, merged, now); err != nil {
		return domain.Entity{}, conflictErr(err, "update fields "+id)
	}
	if err := e.emit(ctx, tx, events.EntityFieldsUpdated, projectScope(ent), string(ent.Type), ent.ID, actorID, events.EventPayload{
		"keys": keys,
	}); err != nil {
		return domain.Entity{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Entity{}, err
	}
	ent.Fields = merged
	ent.Revision++
	ent.UpdatedAt = now
	return ent, nil
}

// MachineInfo describes one registered state machine.
type MachineInfo struct {
	Type        domain.EntityType                 `json:"type"`
	Initial     domain.Status                     `json:"initial"`
	States      []domain.Status                   `json:"states"`
	Transitions map[domain.Status][]domain.Status `json:"transitions"`
}

// MachineInfos lists the registry for collaborators that render or validate statuses.
func (e Engine) MachineInfos() []MachineInfo {
	reg := e.machines()
	var out []MachineInfo
	for _, t := range reg.Types() {
		m, _ := reg.Machine(t)
		info := MachineInfo{Type: t, Initial: m.Initial, States: m.States, Transitions: map[domain.Status][]domain.Status{}}
		for _, s := range m.States {
			if targets := m.Targets(s); len(targets) > 0 {
				info.Transitions[s] = targets
			}
		}
		out = append(out, info)
	}
	return out
}

// projectScope is the project an entity's events belong to.
func projectScope(ent domain.Entity) string {
	if ent.Type == domain.EntityProject {
		return ent.ID
	}
	return ent.ProjectRef()
}
