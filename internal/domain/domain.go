package domain

// EntityType names a workflow-bearing entity kind.
type EntityType string

const (
	EntityProject     EntityType = "project"
	EntityTask        EntityType = "task"
	EntityDeliverable EntityType = "deliverable"
	EntityProposal    EntityType = "proposal"
	EntityMeeting     EntityType = "meeting"
	EntityDecision    EntityType = "decision"
)

// Status is a workflow state value. Valid values depend on the entity type.
type Status string

type Entity struct {
	ID           string               `json:"id"`
	Type         EntityType           `json:"type" enum:"project,task,deliverable,proposal,meeting,decision"`
	Status       Status               `json:"status"`
	Title        string               `json:"title"`
	ProjectID    *string              `json:"project_id,omitempty"`
	OwnerID      *string              `json:"owner_id,omitempty"`
	Phase        string               `json:"phase,omitempty"`
	PlaybookKey  string               `json:"playbook_key,omitempty"`
	DueDate      *string              `json:"due_date,omitempty" format:"date"`
	Priority     *int                 `json:"priority,omitempty"`
	Fields       map[string]any       `json:"fields,omitempty"`
	TasksCreated []string             `json:"tasks_created,omitempty"`
	Versions     []DeliverableVersion `json:"versions,omitempty"`
	Revision     int64                `json:"revision"`
	CreatedAt    string               `json:"created_at" format:"date-time"`
	UpdatedAt    string               `json:"updated_at" format:"date-time"`
}

// ProjectRef returns the owning project id or "".
func (e Entity) ProjectRef() string {
	if e.ProjectID == nil {
		return ""
	}
	return *e.ProjectID
}

// Number reads a numeric field, tolerating ints and JSON floats.
func (e Entity) Number(key string) (float64, bool) {
	if e.Fields == nil {
		return 0, false
	}
	switch v := e.Fields[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

type VersionStatus string

const (
	VersionDraft             VersionStatus = "draft"
	VersionRevisionRequested VersionStatus = "revisao_solicitada"
	VersionApproved          VersionStatus = "aprovada"
)

type DeliverableVersion struct {
	DeliverableID string        `json:"deliverable_id"`
	Seq           int           `json:"seq"`
	Code          string        `json:"code" example:"v1"`
	Status        VersionStatus `json:"status" enum:"draft,revisao_solicitada,aprovada"`
	Description   string        `json:"description,omitempty"`
	Notes         []string      `json:"notes,omitempty"`
	CreatedAt     string        `json:"created_at" format:"date-time"`
	DecidedAt     *string       `json:"decided_at,omitempty" format:"date-time"`
	DecidedBy     *string       `json:"decided_by,omitempty"`
}

type EntrySource string

const (
	SourceManual EntrySource = "manual"
	SourceTimer  EntrySource = "timer"
)

type TimeEntry struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	ProjectID       string      `json:"project_id"`
	TaskID          *string     `json:"task_id,omitempty"`
	Date            string      `json:"date" format:"date"`
	DurationMinutes int         `json:"duration_minutes"`
	Description     string      `json:"description,omitempty"`
	Source          EntrySource `json:"source" enum:"manual,timer"`
	CreatedAt       string      `json:"created_at" format:"date-time"`
	DeletedAt       *string     `json:"deleted_at,omitempty" format:"date-time"`
}

type Timer struct {
	UserID      string  `json:"user_id"`
	ProjectID   string  `json:"project_id"`
	TaskID      *string `json:"task_id,omitempty"`
	StartedAt   string  `json:"started_at" format:"date-time"`
	Description string  `json:"description,omitempty"`
}

type AuditLogEntry struct {
	ID         int64      `json:"id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	FromState  Status     `json:"from_state"`
	ToState    Status     `json:"to_state"`
	ActorID    string     `json:"actor_id"`
	Timestamp  string     `json:"timestamp" format:"date-time"`
}

// Event is an activity feed row. Status changes are in the audit log, not here.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type PlaybookPhase struct {
	Name   string   `yaml:"name" json:"name"`
	Status Status   `yaml:"status" json:"status"`
	Tasks  []string `yaml:"tasks" json:"tasks"`
}

type Playbook struct {
	Key          string          `yaml:"key" json:"key"`
	Name         string          `yaml:"name" json:"name"`
	Phases       []PlaybookPhase `yaml:"phases" json:"phases"`
	Deliverables []string        `yaml:"deliverables" json:"deliverables"`
}
