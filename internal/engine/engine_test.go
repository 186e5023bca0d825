package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/audit"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/config"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/db"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/engine"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/migrate"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/repo"
)

const actor = "ana"

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	// Clock is read by the engine on every call; tests move it forward.
	Clock *time.Time
}

func newTestEnv(t *testing.T, cfg *config.Config) testEnv {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err, "open db")
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(ctx, conn), "migrate")

	eng := engine.New(conn, cfg)
	clock := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC) // a Wednesday
	eng.Now = func() time.Time { return clock }
	return testEnv{Engine: eng, Ctx: ctx, Clock: &clock}
}

func (env testEnv) project(t *testing.T, fields map[string]any) domain.Entity {
	t.Helper()
	p, err := env.Engine.CreateEntity(env.Ctx, engine.EntityCreateOptions{
		Type:    domain.EntityProject,
		Title:   "Rebrand Acme",
		Fields:  fields,
		ActorID: actor,
	})
	require.NoError(t, err)
	return p
}

func (env testEnv) create(t *testing.T, typ domain.EntityType, projectID string) domain.Entity {
	t.Helper()
	ent, err := env.Engine.CreateEntity(env.Ctx, engine.EntityCreateOptions{
		Type:      typ,
		Title:     string(typ) + " one",
		ProjectID: projectID,
		ActorID:   actor,
	})
	require.NoError(t, err)
	return ent
}

func TestCreateEntityDefaults(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.project(t, nil)
	assert.Equal(t, domain.ProjectPlanning, p.Status)
	assert.Equal(t, int64(1), p.Revision)

	task := env.create(t, domain.EntityTask, p.ID)
	assert.Equal(t, domain.TaskTodo, task.Status)
	assert.Equal(t, p.ID, task.ProjectRef())

	got, err := env.Engine.GetEntity(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Title, got.Title)
	assert.Equal(t, task.Status, got.Status)

	list, err := env.Engine.ListEntities(env.Ctx, repo.EntityFilters{Type: domain.EntityTask, ProjectID: p.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, task.ID, list[0].ID)
}

func TestCreateEntityRejects(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.project(t, nil)

	cases := []struct {
		name string
		opts engine.EntityCreateOptions
		want error
	}{
		{"unknown type", engine.EntityCreateOptions{Type: "invoice", Title: "x"}, engine.ErrUnknownEntityType},
		{"missing title", engine.EntityCreateOptions{Type: domain.EntityTask, ProjectID: p.ID}, engine.ErrValidation},
		{"foreign status", engine.EntityCreateOptions{Type: domain.EntityTask, Title: "x", ProjectID: p.ID, Status: "aprovado"}, engine.ErrValidation},
		{"status in fields", engine.EntityCreateOptions{Type: domain.EntityMeeting, Title: "x", Fields: map[string]any{"status": "realizada"}}, engine.ErrValidation},
		{"bad due date", engine.EntityCreateOptions{Type: domain.EntityTask, Title: "x", ProjectID: p.ID, DueDate: "12/03/2025"}, engine.ErrValidation},
		{"task without project", engine.EntityCreateOptions{Type: domain.EntityTask, Title: "x"}, engine.ErrValidation},
		{"unknown project", engine.EntityCreateOptions{Type: domain.EntityDeliverable, Title: "x", ProjectID: "nope"}, engine.ErrProjectNotFound},
		{"duplicate id", engine.EntityCreateOptions{ID: p.ID, Type: domain.EntityProject, Title: "x"}, engine.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.opts.ActorID = actor
			_, err := env.Engine.CreateEntity(env.Ctx, tc.opts)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestTransitionFollowsMachineAndAudits(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.project(t, nil)
	task := env.create(t, domain.EntityTask, p.ID)

	for _, to := range []domain.Status{domain.TaskInProgress, domain.TaskReview, domain.TaskDone} {
		ent, err := env.Engine.Transition(env.Ctx, domain.EntityTask, task.ID, to, actor)
		require.NoError(t, err, "to %s", to)
		assert.Equal(t, to, ent.Status)
	}

	_, err := env.Engine.Transition(env.Ctx, domain.EntityTask, task.ID, domain.TaskBacklog, actor)
	var te *engine.TransitionError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
	assert.Equal(t, domain.TaskDone, te.From)
	assert.Equal(t, domain.TaskBacklog, te.To)

	got, err := env.Engine.GetEntity(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskDone, got.Status, "refused transition leaves status")

	log, err := env.Engine.GetAuditLog(env.Ctx, audit.Filter{EntityID: task.ID})
	require.NoError(t, err)
	require.Len(t, log, 3)
	assert.Equal(t, domain.TaskTodo, log[0].FromState)
	assert.Equal(t, domain.TaskInProgress, log[0].ToState)
	assert.Equal(t, domain.TaskDone, log[2].ToState)
	for i := 1; i < len(log); i++ {
		assert.Equal(t, log[i-1].ToState, log[i].FromState, "audit chain")
		assert.Greater(t, log[i].ID, log[i-1].ID)
	}
	assert.Equal(t, actor, log[0].ActorID)
}

func TestTransitionErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.project(t, nil)

	_, err := env.Engine.Transition(env.Ctx, domain.EntityTask, "missing", domain.TaskDone, actor)
	require.ErrorIs(t, err, engine.ErrEntityNotFound)

	_, err = env.Engine.Transition(env.Ctx, "invoice", p.ID, "paid", actor)
	require.ErrorIs(t, err, engine.ErrUnknownEntityType)

	_, err = env.Engine.Transition(env.Ctx, domain.EntityTask, p.ID, domain.TaskDone, actor)
	require.ErrorIs(t, err, engine.ErrEntityNotFound, "type mismatch")

	_, err = env.Engine.Transition(env.Ctx, domain.EntityProject, p.ID, domain.ProjectInProgress, "")
	require.ErrorIs(t, err, engine.ErrValidation)
}

func TestProposalGuard(t *testing.T) {
	env := newTestEnv(t, nil)
	prop := env.create(t, domain.EntityProposal, "")

	_, err := env.Engine.Transition(env.Ctx, domain.EntityProposal, prop.ID, domain.ProposalSent, actor)
	require.ErrorIs(t, err, engine.ErrGuardRejected)
	require.ErrorIs(t, err, engine.ErrInvalidTransition)

	_, err = env.Engine.UpdateFields(env.Ctx, prop.ID, map[string]any{"value": 15000}, actor)
	require.NoError(t, err)
	ent, err := env.Engine.Transition(env.Ctx, domain.EntityProposal, prop.ID, domain.ProposalSent, actor)
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalSent, ent.Status)
}

func TestUpdateFields(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.project(t, map[string]any{"client": "Acme", "revenue": 1000})

	_, err := env.Engine.UpdateFields(env.Ctx, p.ID, map[string]any{"status": "concluido"}, actor)
	require.ErrorIs(t, err, engine.ErrValidation)
	_, err = env.Engine.UpdateFields(env.Ctx, p.ID, map[string]any{"client": "Other"}, " ")
	require.ErrorIs(t, err, engine.ErrValidation)

	ent, err := env.Engine.UpdateFields(env.Ctx, p.ID, map[string]any{"client": nil, "revenue": 2000}, actor)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ent.Revision)
	assert.NotContains(t, ent.Fields, "client")

	got, err := env.Engine.GetEntity(env.Ctx, p.ID)
	require.NoError(t, err)
	rev, ok := got.Number("revenue")
	require.True(t, ok)
	assert.Equal(t, 2000.0, rev)
	assert.Equal(t, domain.ProjectPlanning, got.Status)

	_, err = env.Engine.UpdateFields(env.Ctx, "missing", map[string]any{"a": 1}, actor)
	require.ErrorIs(t, err, engine.ErrEntityNotFound)
}

func TestConcurrentTransitionLosesCompareAndSet(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.project(t, nil)
	task := env.create(t, domain.EntityTask, p.ID)

	// A writer that read the old status loses once someone else moved it.
	require.NoError(t, env.Engine.Repo.UpdateEntityStatus(env.Ctx, env.Engine.DB, task.ID, domain.TaskTodo, domain.TaskBlocked, "2025-03-12T10:00:00Z"))
	err := env.Engine.Repo.UpdateEntityStatus(env.Ctx, env.Engine.DB, task.ID, domain.TaskTodo, domain.TaskInProgress, "2025-03-12T10:00:00Z")
	require.ErrorIs(t, err, repo.ErrConflict)

	got, err := env.Engine.GetEntity(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskBlocked, got.Status)
}

func TestMachineInfos(t *testing.T) {
	env := newTestEnv(t, nil)
	infos := env.Engine.MachineInfos()
	require.Len(t, infos, 6)
	for _, info := range infos {
		assert.Contains(t, info.States, info.Initial, info.Type)
	}
}

func TestTransitionLogsAtDebug(t *testing.T) {
	env := newTestEnv(t, nil)
	core, logs := observer.New(zapcore.DebugLevel)
	env.Engine.Log = zap.New(core)
	p := env.project(t, nil)

	_, err := env.Engine.Transition(env.Ctx, domain.EntityProject, p.ID, domain.ProjectInProgress, actor)
	require.NoError(t, err)

	entries := logs.FilterMessage("transition").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, string(domain.ProjectPlanning), fields["from"])
	assert.Equal(t, string(domain.ProjectInProgress), fields["to"])
	assert.Equal(t, actor, fields["actor"])
}

func TestErrorKinds(t *testing.T) {
	assert.True(t, errors.Is(engine.ErrProjectNotFound, engine.ErrEntityNotFound))
	assert.True(t, errors.Is(engine.ErrDecisionNotFound, engine.ErrEntityNotFound))
	assert.False(t, errors.Is(engine.ErrEntityNotFound, engine.ErrProjectNotFound))
}
