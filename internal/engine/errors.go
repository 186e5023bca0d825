package engine

import (
	"errors"
	"fmt"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/repo"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/workflow"
)

var (
	ErrEntityNotFound         = errors.New("entity not found")
	ErrUnknownEntityType      = errors.New("unknown entity type")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrGuardRejected          = workflow.ErrGuardRejected
	ErrUnknownPlaybook        = errors.New("unknown playbook")
	ErrAlreadyApplied         = errors.New("playbook already applied")
	ErrStaleVersion           = errors.New("stale version")
	ErrTimerAlreadyRunning    = errors.New("timer already running")
	ErrNoActiveTimer          = errors.New("no active timer")
	ErrValidation             = errors.New("validation failed")
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrProjectNotFound and ErrDecisionNotFound also match ErrEntityNotFound.
	ErrProjectNotFound  error = kindNotFound("project")
	ErrDecisionNotFound error = kindNotFound("decision")
)

type kindNotFound string

func (k kindNotFound) Error() string { return string(k) + " not found" }

func (k kindNotFound) Is(target error) bool { return target == ErrEntityNotFound }

// TransitionError reports a refused status change.
type TransitionError struct {
	EntityType domain.EntityType
	EntityID   string
	From       domain.Status
	To         domain.Status
	// Reason is set when a guard refused a declared edge.
	Reason error
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("invalid %s transition %s -> %s (id %s)", e.EntityType, e.From, e.To, e.EntityID)
	if e.Reason != nil {
		msg += ": " + e.Reason.Error()
	}
	return msg
}

func (e *TransitionError) Unwrap() []error {
	if e.Reason != nil {
		return []error{ErrInvalidTransition, e.Reason}
	}
	return []error{ErrInvalidTransition}
}

// ValidationError names the offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// conflictErr maps a lost compare-and-set to ErrConcurrentModification.
func conflictErr(err error, what string) error {
	if errors.Is(err, repo.ErrConflict) {
		return fmt.Errorf("%s: %w", what, ErrConcurrentModification)
	}
	return err
}

func entityNotFound(id string) error {
	return fmt.Errorf("%w: %s", ErrEntityNotFound, id)
}
