package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/config"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/engine"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/repo"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/workflow"
)

// Every (from, to) pair of every machine: the move succeeds exactly when the
// edge is declared and its guard passes.
func TestTransitionSucceedsIffEdge(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.project(t, nil)
	reg := workflow.Default()

	for _, typ := range reg.Types() {
		m, _ := reg.Machine(typ)
		for _, from := range m.States {
			for _, to := range m.States {
				opts := engine.EntityCreateOptions{
					Type:    typ,
					Title:   string(from) + " to " + string(to),
					Status:  from,
					Fields:  map[string]any{"value": 1},
					ActorID: actor,
				}
				if typ == domain.EntityTask || typ == domain.EntityDeliverable {
					opts.ProjectID = p.ID
				}
				ent, err := env.Engine.CreateEntity(env.Ctx, opts)
				require.NoError(t, err)

				_, err = env.Engine.Transition(env.Ctx, typ, ent.ID, to, actor)
				got, gerr := env.Engine.GetEntity(env.Ctx, ent.ID)
				require.NoError(t, gerr)
				switch {
				case m.CanTransition(from, to) && m.Check(ent, to) != nil:
					// A fresh deliverable has no versions to satisfy its guards.
					assert.ErrorIs(t, err, engine.ErrGuardRejected, "%s %s -> %s", typ, from, to)
					assert.Equal(t, from, got.Status)
				case m.CanTransition(from, to):
					assert.NoError(t, err, "%s %s -> %s", typ, from, to)
					assert.Equal(t, to, got.Status)
				default:
					assert.ErrorIs(t, err, engine.ErrInvalidTransition, "%s %s -> %s", typ, from, to)
					assert.Equal(t, from, got.Status)
				}
			}
		}
	}
}

func TestScenarioPlaybookExpansion(t *testing.T) {
	cfg := config.Default()
	cfg.Playbooks = []domain.Playbook{{
		Key:  "social",
		Name: "Social",
		Phases: []domain.PlaybookPhase{
			{Name: "Pauta", Status: domain.TaskTodo, Tasks: []string{"a", "b", "c"}},
			{Name: "Producao", Status: domain.TaskBacklog, Tasks: []string{"d", "e"}},
		},
		Deliverables: []string{"Calendario", "Posts"},
	}}
	env := newTestEnv(t, cfg)
	p := env.project(t, nil)

	res, err := env.Engine.ApplyPlaybook(env.Ctx, p.ID, "social", actor)
	require.NoError(t, err)
	assert.Equal(t, 5, res.TaskCount)
	assert.Equal(t, 2, res.DeliverableCount)
	for _, id := range res.TaskIDs {
		task, err := env.Engine.GetEntity(env.Ctx, id)
		require.NoError(t, err)
		assert.Equal(t, p.ID, task.ProjectRef())
	}
}

func TestScenarioTimerFortyFiveMinutes(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.project(t, nil)
	*env.Clock = time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)

	_, err := env.Engine.StartTimer(env.Ctx, engine.StartTimerOptions{UserID: "u1", ProjectID: p.ID})
	require.NoError(t, err)
	*env.Clock = env.Clock.Add(45 * time.Minute)
	entry, err := env.Engine.StopTimer(env.Ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 45, entry.DurationMinutes)
	assert.Equal(t, domain.SourceTimer, entry.Source)
	assert.Equal(t, "2025-03-12", entry.Date)

	entries, err := env.Engine.ListEntries(env.Ctx, repo.TimeEntryFilters{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestScenarioOverBudget(t *testing.T) {
	cfg := config.Default()
	cfg.Costs.DefaultHourlyRate = 100
	env := newTestEnv(t, cfg)

	over := env.project(t, map[string]any{"planned_cost": 10000})
	under := env.project(t, map[string]any{"planned_cost": 10000})
	// 130h and 110h at 100/h.
	env.log(t, "u1", over.ID, 130*60)
	env.log(t, "u1", under.ID, 110*60)

	m, err := env.Engine.GetProjectCostMetrics(env.Ctx, over.ID)
	require.NoError(t, err)
	assert.Equal(t, 13000.0, m.TrackedCost)
	assert.True(t, m.IsOverBudget)

	m, err = env.Engine.GetProjectCostMetrics(env.Ctx, under.ID)
	require.NoError(t, err)
	assert.Equal(t, 11000.0, m.TrackedCost)
	assert.False(t, m.IsOverBudget)
}

func TestScenarioApprovedVersionIsStale(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.project(t, nil)
	d := env.create(t, domain.EntityDeliverable, p.ID)
	_, err := env.Engine.SubmitVersion(env.Ctx, d.ID, "", actor)
	require.NoError(t, err)

	ent, err := env.Engine.ApproveVersion(env.Ctx, d.ID, "v1", "cliente")
	require.NoError(t, err)
	assert.Equal(t, domain.DeliverableApproved, ent.Status)

	_, err = env.Engine.RequestRevision(env.Ctx, d.ID, "v1", "changed my mind", "cliente")
	require.ErrorIs(t, err, engine.ErrStaleVersion)
}

// log adds manual entries of at most a day each, spread across consecutive dates.
func (env testEnv) log(t *testing.T, user, projectID string, minutes int) {
	t.Helper()
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for minutes > 0 {
		chunk := minutes
		if chunk > 600 {
			chunk = 600
		}
		_, err := env.Engine.AddManualEntry(env.Ctx, engine.ManualEntryOptions{
			UserID:          user,
			ProjectID:       projectID,
			Date:            day.Format("2006-01-02"),
			DurationMinutes: chunk,
		})
		require.NoError(t, err)
		minutes -= chunk
		day = day.AddDate(0, 0, 1)
	}
}
