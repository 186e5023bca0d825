package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/audit"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/engine"
)

func TestVersionCycleRevisionThenApproval(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.project(t, nil)
	d := env.create(t, domain.EntityDeliverable, p.ID)

	v1, err := env.Engine.SubmitVersion(env.Ctx, d.ID, "first cut", actor)
	require.NoError(t, err)
	assert.Equal(t, "v1", v1.Code)
	assert.Equal(t, domain.VersionDraft, v1.Status)

	ent, err := env.Engine.RequestRevision(env.Ctx, d.ID, "v1", "logo too small", "cliente")
	require.NoError(t, err)
	assert.Equal(t, domain.DeliverableInRevision, ent.Status)
	require.Len(t, ent.Versions, 2)
	assert.Equal(t, domain.VersionRevisionRequested, ent.Versions[0].Status)
	assert.Equal(t, []string{"logo too small"}, ent.Versions[0].Notes)
	assert.Equal(t, "v2", ent.Versions[1].Code)
	assert.Equal(t, domain.VersionDraft, ent.Versions[1].Status)

	v2, err := env.Engine.SubmitVersion(env.Ctx, d.ID, "bigger logo", actor)
	require.NoError(t, err)
	assert.Equal(t, "v2", v2.Code)

	ent, err = env.Engine.ApproveVersion(env.Ctx, d.ID, "v2", "cliente")
	require.NoError(t, err)
	assert.Equal(t, domain.DeliverableApproved, ent.Status)
	require.Len(t, ent.Versions, 2)
	assert.Equal(t, domain.VersionApproved, ent.Versions[1].Status)
	assert.Equal(t, "bigger logo", ent.Versions[1].Description)
	require.NotNil(t, ent.Versions[1].DecidedBy)
	assert.Equal(t, "cliente", *ent.Versions[1].DecidedBy)

	log, err := env.Engine.GetAuditLog(env.Ctx, audit.Filter{EntityType: domain.EntityDeliverable, EntityID: d.ID})
	require.NoError(t, err)
	var path []domain.Status
	for _, entry := range log {
		path = append(path, entry.ToState)
	}
	assert.Equal(t, []domain.Status{
		domain.DeliverableInApproval, domain.DeliverableInRevision,
		domain.DeliverableInApproval, domain.DeliverableApproved,
	}, path)
}

func TestVersionVerdictOnStaleVersion(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.project(t, nil)
	d := env.create(t, domain.EntityDeliverable, p.ID)
	_, err := env.Engine.SubmitVersion(env.Ctx, d.ID, "", actor)
	require.NoError(t, err)
	_, err = env.Engine.RequestRevision(env.Ctx, d.ID, "v1", "again", "cliente")
	require.NoError(t, err)

	_, err = env.Engine.ApproveVersion(env.Ctx, d.ID, "v1", "cliente")
	require.ErrorIs(t, err, engine.ErrStaleVersion)
	_, err = env.Engine.RequestRevision(env.Ctx, d.ID, "v1", "again", "cliente")
	require.ErrorIs(t, err, engine.ErrStaleVersion)

	_, err = env.Engine.ApproveVersion(env.Ctx, d.ID, "v9", "cliente")
	require.ErrorIs(t, err, engine.ErrEntityNotFound)
	_, err = env.Engine.ApproveVersion(env.Ctx, "missing", "v1", "cliente")
	require.ErrorIs(t, err, engine.ErrEntityNotFound)

	got, err := env.Engine.GetEntity(env.Ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliverableInRevision, got.Status)
	assert.Len(t, got.Versions, 2)
}

func TestSubmitVersionRejects(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.project(t, nil)
	d := env.create(t, domain.EntityDeliverable, p.ID)
	_, err := env.Engine.SubmitVersion(env.Ctx, d.ID, "", actor)
	require.NoError(t, err)

	_, err = env.Engine.SubmitVersion(env.Ctx, d.ID, "", actor)
	require.ErrorIs(t, err, engine.ErrValidation, "draft awaiting a verdict")

	_, err = env.Engine.ApproveVersion(env.Ctx, d.ID, "v1", "cliente")
	require.NoError(t, err)
	_, err = env.Engine.SubmitVersion(env.Ctx, d.ID, "", actor)
	require.ErrorIs(t, err, engine.ErrValidation, "already approved")

	_, err = env.Engine.RequestRevision(env.Ctx, d.ID, "v1", " ", "cliente")
	require.ErrorIs(t, err, engine.ErrValidation, "reason required")
}

func TestCreateTaskFromDecision(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.project(t, nil)
	dec := env.create(t, domain.EntityDecision, p.ID)

	first, err := env.Engine.CreateTaskFromDecision(env.Ctx, dec.ID, engine.TaskFields{Title: "Update contract", Description: "per meeting"}, actor)
	require.NoError(t, err)
	assert.Equal(t, p.ID, first.ProjectRef())
	assert.Equal(t, dec.ID, first.Fields["decision_id"])
	assert.Equal(t, "per meeting", first.Fields["description"])

	second, err := env.Engine.CreateTaskFromDecision(env.Ctx, dec.ID, engine.TaskFields{Title: "Notify client"}, actor)
	require.NoError(t, err)

	got, err := env.Engine.GetEntity(env.Ctx, dec.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID}, got.TasksCreated)
	assert.Equal(t, dec.Revision+2, got.Revision)

	_, err = env.Engine.CreateTaskFromDecision(env.Ctx, p.ID, engine.TaskFields{Title: "x"}, actor)
	require.ErrorIs(t, err, engine.ErrDecisionNotFound)

	_, err = env.Engine.CreateTaskFromDecision(env.Ctx, dec.ID, engine.TaskFields{}, actor)
	require.ErrorIs(t, err, engine.ErrValidation)
	got, err = env.Engine.GetEntity(env.Ctx, dec.ID)
	require.NoError(t, err)
	assert.Len(t, got.TasksCreated, 2, "failed create leaves links untouched")

	orphan := env.create(t, domain.EntityDecision, "")
	_, err = env.Engine.CreateTaskFromDecision(env.Ctx, orphan.ID, engine.TaskFields{Title: "x"}, actor)
	require.ErrorIs(t, err, engine.ErrValidation)
	_, err = env.Engine.CreateTaskFromDecision(env.Ctx, orphan.ID, engine.TaskFields{Title: "x", ProjectID: "nope"}, actor)
	require.ErrorIs(t, err, engine.ErrProjectNotFound)
}

func TestDirectTransitionCannotBypassVersionVerdict(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.project(t, nil)
	d := env.create(t, domain.EntityDeliverable, p.ID)

	_, err := env.Engine.Transition(env.Ctx, domain.EntityDeliverable, d.ID, domain.DeliverableInApproval, actor)
	require.ErrorIs(t, err, engine.ErrGuardRejected)

	_, err = env.Engine.SubmitVersion(env.Ctx, d.ID, "", actor)
	require.NoError(t, err)
	for _, to := range []domain.Status{domain.DeliverableApproved, domain.DeliverableInRevision} {
		_, err = env.Engine.Transition(env.Ctx, domain.EntityDeliverable, d.ID, to, actor)
		require.ErrorIs(t, err, engine.ErrGuardRejected, to)
		require.ErrorIs(t, err, engine.ErrInvalidTransition, to)
	}

	got, err := env.Engine.GetEntity(env.Ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliverableInApproval, got.Status)
	require.Len(t, got.Versions, 1)
	assert.Equal(t, domain.VersionDraft, got.Versions[0].Status)

	ent, err := env.Engine.ApproveVersion(env.Ctx, d.ID, "v1", "cliente")
	require.NoError(t, err)
	assert.Equal(t, domain.DeliverableApproved, ent.Status)
	ent, err = env.Engine.Transition(env.Ctx, domain.EntityDeliverable, d.ID, domain.DeliverableDelivered, actor)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliverableDelivered, ent.Status)
}
