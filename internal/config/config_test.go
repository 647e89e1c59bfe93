package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 120.0, cfg.Fallbacks.AvgFare)
	assert.Equal(t, 4, cfg.Constraints.MinPilotsUpgauge)
	assert.Equal(t, 8, cfg.Constraints.ShortStaffedBelow)
	assert.Equal(t, 1.2, cfg.Rule("rm_action").Param("elasticity", 0))
	assert.Equal(t, 2, cfg.Rule("downgauge").TopN(9))
	for _, name := range RuleNames {
		assert.True(t, cfg.Rule(name).On(), name)
	}
}

func TestFromYAMLOverridesKeepDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
rules:
  retiming:
    enabled: false
constraints:
  min_pilots_upgauge: 6
`))
	require.NoError(t, err)
	assert.False(t, cfg.Rule("retiming").On())
	assert.Equal(t, 6, cfg.Constraints.MinPilotsUpgauge)
	assert.Equal(t, 8, cfg.Constraints.ShortStaffedBelow)
	assert.Equal(t, 0.5, cfg.Rule("retiming").Param("yield_factor", 0.5))
	assert.True(t, cfg.Rule("upgauge").On())
}

func TestValidateRejectsUnknownRule(t *testing.T) {
	_, err := FromYAML([]byte("rules:\n  teleport:\n    top: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown rule teleport")
}

func TestValidateRejectsBadFeedThresholds(t *testing.T) {
	_, err := FromYAML([]byte("feeds:\n  live_seconds: 300\n  aging_seconds: 60\n"))
	require.Error(t, err)
}

func TestLoadOptionalFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, "A321neo", cfg.Constraints.UpgaugeEquipment)

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("outcomes:\n  tracking_period_days: 45\n"), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 45, cfg.Outcomes.TrackingPeriodDays)
}

func TestRolePermissions(t *testing.T) {
	cfg := Default()
	perms := cfg.RolePermissions([]string{"planner", "viewer", "ghost"})
	assert.Equal(t, []string{"alert.manage", "decision.read", "decision.simulate", "refresh.run"}, perms)
}
