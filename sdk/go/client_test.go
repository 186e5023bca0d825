package erpsdk

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/db"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/engine"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/migrate"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/server"
)

func newClient(t *testing.T) *Client {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(context.Background(), conn))
	e := engine.New(conn, nil)
	e.Now = func() time.Time { return time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC) }
	handler, err := server.New(server.Config{
		Engine: e,
		Auth:   server.AuthConfig{AllowLegacyActorHeader: true},
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(srv.URL)
	c.ActorID = "ana"
	return c
}

func TestClientWorkflowRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	project, err := c.CreateEntity(ctx, "project", "Acme", "", map[string]any{"revenue": 1000})
	require.NoError(t, err)
	assert.Equal(t, "planejamento", project.Status)

	res, err := c.ApplyPlaybook(ctx, project.ID, "campanha")
	require.NoError(t, err)
	assert.Equal(t, 5, res.TaskCount)
	require.Len(t, res.DeliverableIDs, 2)

	v, err := c.SubmitVersion(ctx, res.DeliverableIDs[0], "primeira")
	require.NoError(t, err)
	assert.Equal(t, "v1", v.Code)
	d, err := c.RequestRevision(ctx, res.DeliverableIDs[0], "v1", "ajustar cores")
	require.NoError(t, err)
	assert.Equal(t, "em_revisao", d.Status)

	_, err = c.ApplyPlaybook(ctx, project.ID, "campanha")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "already_applied", apiErr.Code)

	events, err := c.Events(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestClientTimeTracking(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	project, err := c.CreateEntity(ctx, "project", "Acme", "", nil)
	require.NoError(t, err)

	_, err = c.StartTimer(ctx, project.ID, "")
	require.NoError(t, err)
	entry, err := c.StopTimer(ctx)
	require.NoError(t, err)
	assert.Equal(t, "timer", entry.Source)
	assert.Equal(t, "2025-03-12", entry.Date)

	_, err = c.AddEntry(ctx, project.ID, "2025-03-10", 120, "kickoff")
	require.NoError(t, err)

	week, err := c.Timesheet(ctx, "ana", "2025-03-12")
	require.NoError(t, err)
	assert.Equal(t, entry.DurationMinutes+120, week.WeekTotal)

	costs, err := c.ProjectCosts(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, week.WeekTotal, costs.TrackedMinutes)
}
