package engine_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/config"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/engine"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/repo"
)

func TestSingleTimerPerUser(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.project(t, nil)
	task := env.create(t, domain.EntityTask, p.ID)

	timer, err := env.Engine.StartTimer(env.Ctx, engine.StartTimerOptions{UserID: "u1", ProjectID: p.ID, TaskID: task.ID, Description: "layout"})
	require.NoError(t, err)
	require.NotNil(t, timer.TaskID)

	_, err = env.Engine.StartTimer(env.Ctx, engine.StartTimerOptions{UserID: "u1", ProjectID: p.ID})
	require.ErrorIs(t, err, engine.ErrTimerAlreadyRunning)

	// Other users are independent.
	_, err = env.Engine.StartTimer(env.Ctx, engine.StartTimerOptions{UserID: "u2", ProjectID: p.ID})
	require.NoError(t, err)

	active, err := env.Engine.ActiveTimer(env.Ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "layout", active.Description)

	*env.Clock = env.Clock.Add(90 * time.Second)
	entry, err := env.Engine.StopTimer(env.Ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, entry.DurationMinutes, "90s rounds to nearest")
	assert.Equal(t, task.ID, *entry.TaskID)

	_, err = env.Engine.StopTimer(env.Ctx, "u1")
	require.ErrorIs(t, err, engine.ErrNoActiveTimer)
	active, err = env.Engine.ActiveTimer(env.Ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, active)

	_, err = env.Engine.StartTimer(env.Ctx, engine.StartTimerOptions{UserID: "u1", ProjectID: p.ID})
	require.NoError(t, err, "a stopped timer frees the slot")
}

func TestStartTimerRejects(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.project(t, nil)

	_, err := env.Engine.StartTimer(env.Ctx, engine.StartTimerOptions{ProjectID: p.ID})
	require.ErrorIs(t, err, engine.ErrValidation)
	_, err = env.Engine.StartTimer(env.Ctx, engine.StartTimerOptions{UserID: "u1", ProjectID: "nope"})
	require.ErrorIs(t, err, engine.ErrProjectNotFound)
	_, err = env.Engine.StartTimer(env.Ctx, engine.StartTimerOptions{UserID: "u1", ProjectID: p.ID, TaskID: p.ID})
	require.ErrorIs(t, err, engine.ErrEntityNotFound)

	active, err := env.Engine.ActiveTimer(env.Ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestStopTimerRoundingPolicy(t *testing.T) {
	cases := []struct {
		policy  string
		min     int
		elapsed time.Duration
		want    int
	}{
		{config.RoundNearest, 1, 10 * time.Second, 1},
		{config.RoundUp, 1, 61 * time.Second, 2},
		{config.RoundDown, 1, 119 * time.Second, 1},
		{config.RoundDown, 15, 5 * time.Minute, 15},
	}
	for _, tc := range cases {
		t.Run(tc.policy, func(t *testing.T) {
			cfg := config.Default()
			cfg.Timer.Rounding = tc.policy
			cfg.Timer.MinMinutes = tc.min
			env := newTestEnv(t, cfg)
			p := env.project(t, nil)
			_, err := env.Engine.StartTimer(env.Ctx, engine.StartTimerOptions{UserID: "u1", ProjectID: p.ID})
			require.NoError(t, err)
			*env.Clock = env.Clock.Add(tc.elapsed)
			entry, err := env.Engine.StopTimer(env.Ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, entry.DurationMinutes)
		})
	}
}

func TestTimerEntryDatedInConfiguredZone(t *testing.T) {
	cfg := config.Default()
	cfg.Timezone = "America/Sao_Paulo"
	env := newTestEnv(t, cfg)
	p := env.project(t, nil)
	// 01:30 UTC on the 13th is 22:30 on the 12th in Sao Paulo.
	*env.Clock = time.Date(2025, 3, 13, 1, 30, 0, 0, time.UTC)
	_, err := env.Engine.StartTimer(env.Ctx, engine.StartTimerOptions{UserID: "u1", ProjectID: p.ID})
	require.NoError(t, err)
	*env.Clock = env.Clock.Add(time.Hour)
	entry, err := env.Engine.StopTimer(env.Ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-12", entry.Date)
}

func TestManualEntryRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.project(t, nil)

	entry, err := env.Engine.AddManualEntry(env.Ctx, engine.ManualEntryOptions{
		UserID: "u1", ProjectID: p.ID, Date: "2025-03-11", DurationMinutes: 95, Description: "reuniao",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceManual, entry.Source)

	week, err := env.Engine.GetWeeklyTimesheet(env.Ctx, "u1", time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, week.Entries, 1)
	if diff := cmp.Diff(entry, week.Entries[0]); diff != "" {
		t.Fatalf("round trip mismatch (-added +fetched):\n%s", diff)
	}
	assert.Equal(t, 95, week.DayTotals["2025-03-11"])
}

func TestManualEntryRejects(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.project(t, nil)
	base := engine.ManualEntryOptions{UserID: "u1", ProjectID: p.ID, Date: "2025-03-11", DurationMinutes: 30}

	cases := map[string]func(o *engine.ManualEntryOptions){
		"no user":       func(o *engine.ManualEntryOptions) { o.UserID = "" },
		"zero minutes":  func(o *engine.ManualEntryOptions) { o.DurationMinutes = 0 },
		"over a day":    func(o *engine.ManualEntryOptions) { o.DurationMinutes = 1441 },
		"bad date":      func(o *engine.ManualEntryOptions) { o.Date = "11/03/2025" },
		"no project":    func(o *engine.ManualEntryOptions) { o.ProjectID = "nope" },
		"task not task": func(o *engine.ManualEntryOptions) { o.TaskID = p.ID },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			opts := base
			mutate(&opts)
			_, err := env.Engine.AddManualEntry(env.Ctx, opts)
			require.ErrorIs(t, err, engine.ErrValidation)
		})
	}
	entries, err := env.Engine.ListEntries(env.Ctx, repo.TimeEntryFilters{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDeleteEntry(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.project(t, nil)
	entry, err := env.Engine.AddManualEntry(env.Ctx, engine.ManualEntryOptions{UserID: "u1", ProjectID: p.ID, Date: "2025-03-11", DurationMinutes: 30})
	require.NoError(t, err)
	_, err = env.Engine.StartTimer(env.Ctx, engine.StartTimerOptions{UserID: "u1", ProjectID: p.ID})
	require.NoError(t, err)

	require.NoError(t, env.Engine.DeleteEntry(env.Ctx, entry.ID, "u1"))
	require.ErrorIs(t, env.Engine.DeleteEntry(env.Ctx, entry.ID, "u1"), engine.ErrEntityNotFound)
	require.ErrorIs(t, env.Engine.DeleteEntry(env.Ctx, "missing", "u1"), engine.ErrEntityNotFound)

	live, err := env.Engine.ListEntries(env.Ctx, repo.TimeEntryFilters{UserID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, live)
	all, err := env.Engine.ListEntries(env.Ctx, repo.TimeEntryFilters{UserID: "u1", IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.NotNil(t, all[0].DeletedAt)

	active, err := env.Engine.ActiveTimer(env.Ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, active, "deleting an entry leaves timers alone")
}
