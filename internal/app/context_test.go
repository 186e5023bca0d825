package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/config"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/db"
)

func TestOpenWithoutConfigUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	ws, err := Open(context.Background(), Options{Workspace: dir})
	require.NoError(t, err)
	defer ws.Close()

	assert.Equal(t, config.Default().Capacity.DefaultWeeklyMinutes, ws.Config.Capacity.DefaultWeeklyMinutes)
	assert.Len(t, ws.Engine.Playbooks(), 3)
	_, err = os.Stat(db.Path(dir))
	assert.NoError(t, err, "database created")
}

func TestOpenReadsWorkspaceConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "erp.yml"), []byte("timezone: America/Sao_Paulo\n"), 0o644))
	ws, err := Open(context.Background(), Options{Workspace: dir})
	require.NoError(t, err)
	defer ws.Close()
	assert.Equal(t, "America/Sao_Paulo", ws.Config.Location().String())
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "erp.yml"), []byte("timer:\n  rounding: sideways\n"), 0o644))
	_, err := Open(context.Background(), Options{Workspace: dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rounding")
}
