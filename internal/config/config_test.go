package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2400, cfg.Capacity.DefaultWeeklyMinutes)
	assert.Equal(t, 1.2, cfg.Costs.OverBudgetThreshold)
	assert.Equal(t, time.UTC, cfg.Location())
	_, ok := cfg.Playbook("branding")
	assert.True(t, ok)
}

func TestFromYAMLOverridesKeepDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
timezone: America/Sao_Paulo
capacity:
  users:
    ana: 1200
costs:
  default_hourly_rate: 80
  roles:
    designer: 120
  user_roles:
    bia: designer
  users:
    caio: 200
playbooks:
  - key: social
    name: Social
    phases:
      - name: Setup
        status: a_fazer
        tasks: [Calendario]
`))
	require.NoError(t, err)
	assert.Equal(t, "America/Sao_Paulo", cfg.Location().String())
	assert.Equal(t, RoundNearest, cfg.Timer.Rounding)

	ctx := context.Background()
	capAna, _ := cfg.WeeklyCapacityMinutes(ctx, "ana")
	capOther, _ := cfg.WeeklyCapacityMinutes(ctx, "zeca")
	assert.Equal(t, 1200, capAna)
	assert.Equal(t, 2400, capOther)

	rateBia, _ := cfg.HourlyRate(ctx, "bia")
	rateCaio, _ := cfg.HourlyRate(ctx, "caio")
	rateOther, _ := cfg.HourlyRate(ctx, "zeca")
	assert.Equal(t, 120.0, rateBia)
	assert.Equal(t, 200.0, rateCaio)
	assert.Equal(t, 80.0, rateOther)

	require.Len(t, cfg.Playbooks, 1)
	_, ok := cfg.Playbook("branding")
	assert.False(t, ok)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"rounding":  "timer:\n  rounding: sideways\n",
		"timezone":  "timezone: Mars/Olympus\n",
		"role":      "costs:\n  user_roles:\n    ana: ghost\n",
		"workday":   "capacity:\n  workdays: [funday]\n",
		"duplicate": "playbooks:\n  - key: a\n  - key: a\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadOptionalMissingFile(t *testing.T) {
	cfg, err := LoadOptional(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestLoadFromWorkspace(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir), []byte(GenerateDefault()), 0o644))
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Len(t, cfg.Workdays(), 5)
}
