// Package workflow holds the per-entity-type state machine tables.
package workflow

import (
	"errors"
	"fmt"
	"sort"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
)

// ErrGuardRejected is returned by guards that refuse a declared edge.
var ErrGuardRejected = errors.New("transition guard rejected")

type Edge struct {
	From domain.Status
	To   domain.Status
}

// Guard inspects the entity before an edge is taken. A non-nil error blocks it.
type Guard func(e domain.Entity) error

type Machine struct {
	Type        domain.EntityType
	Initial     domain.Status
	States      []domain.Status
	Transitions map[domain.Status][]domain.Status
	Guards      map[Edge]Guard
}

func (m Machine) HasState(s domain.Status) bool {
	for _, st := range m.States {
		if st == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether from -> to is a declared edge.
func (m Machine) CanTransition(from, to domain.Status) bool {
	for _, t := range m.Transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Targets lists the states reachable in one step from s.
func (m Machine) Targets(s domain.Status) []domain.Status {
	out := make([]domain.Status, len(m.Transitions[s]))
	copy(out, m.Transitions[s])
	return out
}

// Check runs the edge's guard, if any, against the entity.
func (m Machine) Check(e domain.Entity, to domain.Status) error {
	g, ok := m.Guards[Edge{From: e.Status, To: to}]
	if !ok || g == nil {
		return nil
	}
	if err := g(e); err != nil {
		return fmt.Errorf("%w: %v", ErrGuardRejected, err)
	}
	return nil
}

// Validate checks that the initial state and every edge endpoint are declared.
func (m Machine) Validate() error {
	if m.Type == "" {
		return errors.New("machine type is required")
	}
	if len(m.States) == 0 {
		return fmt.Errorf("machine %s has no states", m.Type)
	}
	seen := map[domain.Status]bool{}
	for _, s := range m.States {
		if s == "" {
			return fmt.Errorf("machine %s has empty state", m.Type)
		}
		if seen[s] {
			return fmt.Errorf("machine %s declares state %s twice", m.Type, s)
		}
		seen[s] = true
	}
	if !seen[m.Initial] {
		return fmt.Errorf("machine %s initial state %q not declared", m.Type, m.Initial)
	}
	for from, tos := range m.Transitions {
		if !seen[from] {
			return fmt.Errorf("machine %s edge from undeclared state %s", m.Type, from)
		}
		for _, to := range tos {
			if !seen[to] {
				return fmt.Errorf("machine %s edge %s -> undeclared state %s", m.Type, from, to)
			}
		}
	}
	for edge := range m.Guards {
		if !m.CanTransition(edge.From, edge.To) {
			return fmt.Errorf("machine %s guard on undeclared edge %s -> %s", m.Type, edge.From, edge.To)
		}
	}
	return nil
}

// Registry maps entity types to their machines. It is immutable after construction.
type Registry struct {
	machines map[domain.EntityType]Machine
}

func NewRegistry(machines ...Machine) (*Registry, error) {
	r := &Registry{machines: make(map[domain.EntityType]Machine, len(machines))}
	for _, m := range machines {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.machines[m.Type]; dup {
			return nil, fmt.Errorf("duplicate machine for %s", m.Type)
		}
		r.machines[m.Type] = m
	}
	return r, nil
}

// Machine returns the machine for t.
func (r *Registry) Machine(t domain.EntityType) (Machine, bool) {
	if r == nil {
		return Machine{}, false
	}
	m, ok := r.machines[t]
	return m, ok
}

// Types returns the registered entity types in sorted order.
func (r *Registry) Types() []domain.EntityType {
	out := make([]domain.EntityType, 0, len(r.machines))
	for t := range r.machines {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
