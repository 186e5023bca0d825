package workflow

import (
	"errors"
	"fmt"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
)

// Default returns the built-in registry used by the agency dashboard.
func Default() *Registry {
	r, err := NewRegistry(
		ProjectMachine(),
		TaskMachine(),
		DeliverableMachine(),
		ProposalMachine(),
		MeetingMachine(),
		DecisionMachine(),
	)
	if err != nil {
		panic(err)
	}
	return r
}

func ProjectMachine() Machine {
	return Machine{
		Type:    domain.EntityProject,
		Initial: domain.ProjectPlanning,
		States: []domain.Status{
			domain.ProjectPlanning, domain.ProjectInProgress, domain.ProjectPaused,
			domain.ProjectDone, domain.ProjectCanceled,
		},
		Transitions: map[domain.Status][]domain.Status{
			domain.ProjectPlanning:   {domain.ProjectInProgress, domain.ProjectCanceled},
			domain.ProjectInProgress: {domain.ProjectPaused, domain.ProjectDone, domain.ProjectCanceled},
			domain.ProjectPaused:     {domain.ProjectInProgress, domain.ProjectCanceled},
			domain.ProjectDone:       {domain.ProjectInProgress},
		},
	}
}

func TaskMachine() Machine {
	return Machine{
		Type:    domain.EntityTask,
		Initial: domain.TaskTodo,
		States: []domain.Status{
			domain.TaskBacklog, domain.TaskTodo, domain.TaskInProgress, domain.TaskReview,
			domain.TaskDone, domain.TaskBlocked, domain.TaskCanceled,
		},
		Transitions: map[domain.Status][]domain.Status{
			domain.TaskBacklog:    {domain.TaskTodo, domain.TaskCanceled},
			domain.TaskTodo:       {domain.TaskInProgress, domain.TaskBlocked, domain.TaskCanceled},
			domain.TaskInProgress: {domain.TaskReview, domain.TaskBlocked, domain.TaskDone, domain.TaskCanceled},
			domain.TaskReview:     {domain.TaskInProgress, domain.TaskDone},
			domain.TaskBlocked:    {domain.TaskTodo, domain.TaskInProgress, domain.TaskCanceled},
			domain.TaskDone:       {domain.TaskInProgress},
		},
	}
}

func DeliverableMachine() Machine {
	return Machine{
		Type:    domain.EntityDeliverable,
		Initial: domain.DeliverablePending,
		States: []domain.Status{
			domain.DeliverablePending, domain.DeliverableProducing, domain.DeliverableInApproval,
			domain.DeliverableInRevision, domain.DeliverableApproved, domain.DeliverableDelivered,
			domain.DeliverableCanceled,
		},
		Transitions: map[domain.Status][]domain.Status{
			domain.DeliverablePending:    {domain.DeliverableProducing, domain.DeliverableInApproval, domain.DeliverableCanceled},
			domain.DeliverableProducing:  {domain.DeliverableInApproval, domain.DeliverableCanceled},
			domain.DeliverableInApproval: {domain.DeliverableApproved, domain.DeliverableInRevision},
			domain.DeliverableInRevision: {domain.DeliverableInApproval, domain.DeliverableApproved, domain.DeliverableCanceled},
			domain.DeliverableApproved:   {domain.DeliverableDelivered},
		},
		// The deliverable's status follows its latest version; only the
		// version cycle produces the matching verdicts.
		Guards: map[Edge]Guard{
			{From: domain.DeliverablePending, To: domain.DeliverableInApproval}:    latestVersion(domain.VersionDraft),
			{From: domain.DeliverableProducing, To: domain.DeliverableInApproval}:  latestVersion(domain.VersionDraft),
			{From: domain.DeliverableInRevision, To: domain.DeliverableInApproval}: latestVersion(domain.VersionDraft),
			{From: domain.DeliverableInApproval, To: domain.DeliverableApproved}:   latestVersion(domain.VersionApproved),
			{From: domain.DeliverableInRevision, To: domain.DeliverableApproved}:   latestVersion(domain.VersionApproved),
			{From: domain.DeliverableInApproval, To: domain.DeliverableInRevision}: latestVersion(domain.VersionRevisionRequested),
		},
	}
}

func ProposalMachine() Machine {
	return Machine{
		Type:    domain.EntityProposal,
		Initial: domain.ProposalDraft,
		States: []domain.Status{
			domain.ProposalDraft, domain.ProposalSent, domain.ProposalNegotiating,
			domain.ProposalApproved, domain.ProposalRejected, domain.ProposalExpired,
		},
		Transitions: map[domain.Status][]domain.Status{
			domain.ProposalDraft:       {domain.ProposalSent},
			domain.ProposalSent:        {domain.ProposalNegotiating, domain.ProposalApproved, domain.ProposalRejected, domain.ProposalExpired},
			domain.ProposalNegotiating: {domain.ProposalSent, domain.ProposalApproved, domain.ProposalRejected},
			domain.ProposalRejected:    {domain.ProposalDraft},
			domain.ProposalExpired:     {domain.ProposalDraft},
		},
		Guards: map[Edge]Guard{
			{From: domain.ProposalDraft, To: domain.ProposalSent}: requirePositive("value"),
		},
	}
}

func MeetingMachine() Machine {
	return Machine{
		Type:    domain.EntityMeeting,
		Initial: domain.MeetingScheduled,
		States: []domain.Status{
			domain.MeetingScheduled, domain.MeetingHeld, domain.MeetingCanceled, domain.MeetingRescheduled,
		},
		Transitions: map[domain.Status][]domain.Status{
			domain.MeetingScheduled:   {domain.MeetingHeld, domain.MeetingCanceled, domain.MeetingRescheduled},
			domain.MeetingRescheduled: {domain.MeetingHeld, domain.MeetingCanceled},
		},
	}
}

func DecisionMachine() Machine {
	return Machine{
		Type:    domain.EntityDecision,
		Initial: domain.DecisionPending,
		States: []domain.Status{
			domain.DecisionPending, domain.DecisionApproved, domain.DecisionRejected, domain.DecisionRevoked,
		},
		Transitions: map[domain.Status][]domain.Status{
			domain.DecisionPending:  {domain.DecisionApproved, domain.DecisionRejected},
			domain.DecisionApproved: {domain.DecisionRevoked},
		},
	}
}

func requirePositive(field string) Guard {
	return func(e domain.Entity) error {
		v, ok := e.Number(field)
		if !ok || v <= 0 {
			return errors.New(field + " must be a positive number")
		}
		return nil
	}
}

func latestVersion(want domain.VersionStatus) Guard {
	return func(e domain.Entity) error {
		if len(e.Versions) == 0 {
			return fmt.Errorf("deliverable has no versions, latest must be %s", want)
		}
		latest := e.Versions[len(e.Versions)-1]
		if latest.Status != want {
			return fmt.Errorf("latest version %s is %s, want %s", latest.Code, latest.Status, want)
		}
		return nil
	}
}
