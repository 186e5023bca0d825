package audit_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/audit"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/db"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/migrate"
)

func TestAppendAndList(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, migrate.Migrate(ctx, conn))

	tx, err := conn.BeginTx(ctx, nil)
	require.NoError(t, err)
	steps := []struct {
		id       string
		from, to domain.Status
		actor    string
	}{
		{"t1", domain.TaskTodo, domain.TaskInProgress, "ana"},
		{"t2", domain.TaskTodo, domain.TaskBlocked, "bruno"},
		{"t1", domain.TaskInProgress, domain.TaskDone, "ana"},
	}
	var last int64
	for _, s := range steps {
		id, err := audit.Append(ctx, tx, domain.AuditLogEntry{
			EntityType: domain.EntityTask, EntityID: s.id, FromState: s.from, ToState: s.to,
			ActorID: s.actor, Timestamp: "2025-03-12T10:00:00Z",
		})
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}
	require.NoError(t, tx.Commit())

	all, err := audit.List(ctx, conn, audit.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	t1, err := audit.List(ctx, conn, audit.Filter{EntityType: domain.EntityTask, EntityID: "t1"})
	require.NoError(t, err)
	require.Len(t, t1, 2)
	assert.Equal(t, domain.TaskDone, t1[1].ToState)

	byActor, err := audit.List(ctx, conn, audit.Filter{ActorID: "bruno"})
	require.NoError(t, err)
	require.Len(t, byActor, 1)

	after, err := audit.List(ctx, conn, audit.Filter{After: all[0].ID, Limit: 1})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, all[1].ID, after[0].ID)
}

func TestRolledBackAppendLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, migrate.Migrate(ctx, conn))

	tx, err := conn.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = audit.Append(ctx, tx, domain.AuditLogEntry{EntityType: domain.EntityProject, EntityID: "p", FromState: domain.ProjectPlanning, ToState: domain.ProjectInProgress, ActorID: "ana", Timestamp: "x"})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	all, err := audit.List(ctx, conn, audit.Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}
