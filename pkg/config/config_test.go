package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.DefaultInterval())
	assert.Equal(t, 5, cfg.WorkerThreads())
	assert.Equal(t, 30, cfg.RetentionDays())
	assert.True(t, cfg.AutoCleanup())
	assert.True(t, cfg.AlertsEnabled())
	assert.False(t, cfg.AutoStart())
	assert.Empty(t, cfg.AlertRules())
	assert.True(t, cfg.NotifyOn("device_offline"))
	assert.False(t, cfg.NotifyOn("device_update"))
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
monitor:
  default_interval: 30
  worker_threads: 3
  auto_start: true
  device_intervals:
    sensor: 10
    light: 120
database:
  retention_days: 7
  auto_cleanup: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.DefaultInterval())
	assert.Equal(t, 3, cfg.WorkerThreads())
	assert.True(t, cfg.AutoStart())
	assert.Equal(t, 7, cfg.RetentionDays())
	assert.False(t, cfg.AutoCleanup())

	assert.Equal(t, 10, cfg.DeviceInterval("sensor"))
	assert.Equal(t, 120, cfg.DeviceInterval("light"))
	// Unconfigured type falls back to the global default.
	assert.Equal(t, 30, cfg.DeviceInterval("vacuum"))
}

func TestLoadRules(t *testing.T) {
	path := writeConfig(t, `
alerts:
  enabled: true
  rules:
    - name: high temperature
      device_type: sensor
      property: temperature
      condition: ">"
      threshold: 30
    - name: low humidity
      device_type: sensor
      property: humidity
      condition: "<"
      threshold: 20
      enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	rules := cfg.AlertRules()
	require.Len(t, rules, 2)

	assert.Equal(t, "high temperature", rules[0].Name)
	assert.Equal(t, "sensor", rules[0].DeviceType)
	assert.Equal(t, ">", rules[0].Condition)
	assert.Equal(t, 30.0, rules[0].Threshold)
	assert.True(t, rules[0].IsEnabled())

	assert.False(t, rules[1].IsEnabled())
}

func TestLoadRulesInvalidOperator(t *testing.T) {
	path := writeConfig(t, `
alerts:
  rules:
    - name: bad rule
      device_type: sensor
      property: temperature
      condition: "!="
      threshold: 30
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRulesMissingField(t *testing.T) {
	path := writeConfig(t, `
alerts:
  rules:
    - name: incomplete
      device_type: sensor
      condition: ">"
      threshold: 30
`)

	_, err := Load(path)
	assert.Error(t, err)
}
