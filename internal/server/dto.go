package server

import (
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/engine"
)

// Request payloads

type CreateEntityRequest struct {
	ID        string         `json:"id,omitempty"`
	Type      string         `json:"type" enum:"project,task,deliverable,proposal,meeting,decision"`
	Title     string         `json:"title"`
	Status    string         `json:"status,omitempty"`
	ProjectID string         `json:"project_id,omitempty"`
	OwnerID   string         `json:"owner_id,omitempty"`
	Phase     string         `json:"phase,omitempty"`
	DueDate   string         `json:"due_date,omitempty" format:"date"`
	Priority  *int           `json:"priority,omitempty"`
	Fields    map[string]any `json:"fields,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type TransitionRequest struct {
	// Type is optional; the stored entity type is used when empty.
	Type string `json:"type,omitempty"`
	To   string `json:"to"`
}

type ApplyPlaybookRequest struct {
	Playbook string `json:"playbook" example:"branding"`
}

type SubmitVersionRequest struct {
	Description string `json:"description,omitempty"`
}

type RevisionRequest struct {
	Reason string `json:"reason"`
}

type DecisionTaskRequest struct {
	Title       string `json:"title"`
	ProjectID   string `json:"project_id,omitempty"`
	OwnerID     string `json:"owner_id,omitempty"`
	DueDate     string `json:"due_date,omitempty" format:"date"`
	Priority    *int   `json:"priority,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
}

type StartTimerRequest struct {
	// UserID defaults to the authenticated actor.
	UserID      string `json:"user_id,omitempty"`
	ProjectID   string `json:"project_id"`
	TaskID      string `json:"task_id,omitempty"`
	Description string `json:"description,omitempty"`
}

type StopTimerRequest struct {
	UserID string `json:"user_id,omitempty"`
}

type AddEntryRequest struct {
	UserID          string `json:"user_id,omitempty"`
	ProjectID       string `json:"project_id"`
	TaskID          string `json:"task_id,omitempty"`
	Date            string `json:"date" format:"date"`
	DurationMinutes int    `json:"duration_minutes"`
	Description     string `json:"description,omitempty"`
}

type DevLoginRequest struct {
	ActorID string   `json:"actor_id"`
	Roles   []string `json:"roles,omitempty"`
}

// Response payloads

type DevLoginResponse struct {
	Token string `json:"token"`
}

type MissingDaysResponse struct {
	UserID    string   `json:"user_id"`
	WeekStart string   `json:"week_start" format:"date"`
	Days      []string `json:"days"`
}

type WhoAmIResponse struct {
	ActorID string   `json:"actor_id"`
	Roles   []string `json:"roles"`
	Source  string   `json:"source"`
}

type paginatedEvents struct {
	Items      []domain.Event `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func (r CreateEntityRequest) options(actorID string) engine.EntityCreateOptions {
	return engine.EntityCreateOptions{
		ID:        r.ID,
		Type:      domain.EntityType(r.Type),
		Title:     r.Title,
		Status:    domain.Status(r.Status),
		ProjectID: r.ProjectID,
		OwnerID:   r.OwnerID,
		Phase:     r.Phase,
		DueDate:   r.DueDate,
		Priority:  r.Priority,
		Fields:    r.Fields,
		ActorID:   actorID,
	}
}

func (r DecisionTaskRequest) fields() engine.TaskFields {
	return engine.TaskFields{
		Title:       r.Title,
		ProjectID:   r.ProjectID,
		OwnerID:     r.OwnerID,
		DueDate:     r.DueDate,
		Priority:    r.Priority,
		Description: r.Description,
		Status:      domain.Status(r.Status),
	}
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
