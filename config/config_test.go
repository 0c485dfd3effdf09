package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsPerEnvironment(t *testing.T) {
	dev, err := Load(EnvDev, "")
	require.NoError(t, err)
	assert.Equal(t, 100.0, dev.Cost.MonthlyBudgetLimit)
	assert.Equal(t, 30, dev.Logging.RetentionDays)
	assert.Equal(t, 85.0, dev.Alerting.CPUThreshold)
	assert.Equal(t, "platform-team", dev.Tags["Owner"])

	prod, err := Load(EnvProd, "")
	require.NoError(t, err)
	assert.Equal(t, 2000.0, prod.Cost.MonthlyBudgetLimit)
	assert.Equal(t, 365, prod.Logging.RetentionDays)
	assert.Equal(t, "warn", prod.Logging.Level)
	assert.Equal(t, 3, prod.Alerting.DatapointsToAlarm)
	assert.Equal(t, "required", prod.Tags["Compliance"])
}

func TestLoadUnknownEnvironment(t *testing.T) {
	_, err := Load("production", "")
	assert.Error(t, err)

	_, err = Load("", "")
	assert.Error(t, err)
}

func TestLoadFileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"cost:\n  monthly_budget_limit: 750\nalert_email: oncall@example.com\n"), 0o644))

	cfg, err := Load(EnvDev, path)
	require.NoError(t, err)
	assert.Equal(t, 750.0, cfg.Cost.MonthlyBudgetLimit)
	assert.Equal(t, "oncall@example.com", cfg.AlertEmail)
	// Untouched keys keep their defaults.
	assert.Equal(t, 85.0, cfg.Alerting.CPUThreshold)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("OBS_COST_MONTHLY_BUDGET_LIMIT", "1234")
	t.Setenv("OBS_ALERTING_CPU_THRESHOLD", "70.5")
	t.Setenv("OBS_ALERT_EMAIL", "oncall-env@example.com")

	cfg, err := Load(EnvDev, "")
	require.NoError(t, err)
	assert.Equal(t, 1234.0, cfg.Cost.MonthlyBudgetLimit)
	assert.Equal(t, 70.5, cfg.Alerting.CPUThreshold)
	assert.Equal(t, "oncall-env@example.com", cfg.AlertEmail)
	// Untouched keys keep their defaults.
	assert.Equal(t, 30, cfg.Logging.RetentionDays)
}

func TestEnvKeyMapping(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"OBS_COST_MONTHLY_BUDGET_LIMIT", "cost.monthly_budget_limit"},
		{"OBS_ALERTING_DATAPOINTS_TO_ALARM", "alerting.datapoints_to_alarm"},
		{"OBS_LOGGING_RETENTION_DAYS", "logging.retention_days"},
		{"OBS_RUNBOOK_BASE_URL", "runbook_base_url"},
		{"OBS_ALERT_EMAIL", "alert_email"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, envKey(tt.in), tt.in)
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv("OBS_TEST_REGION", "eu-west-1")
	assert.Equal(t, "eu-west-1", EnvOr("OBS_TEST_REGION", "us-east-1"))
	assert.Equal(t, "us-east-1", EnvOr("OBS_TEST_REGION_UNSET", "us-east-1"))
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(EnvDev, "")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero budget", func(c *Config) { c.Cost.MonthlyBudgetLimit = 0 }},
		{"negative budget", func(c *Config) { c.Cost.MonthlyBudgetLimit = -10 }},
		{"zero retention", func(c *Config) { c.Logging.RetentionDays = 0 }},
		{"cpu threshold over 100", func(c *Config) { c.Alerting.CPUThreshold = 150 }},
		{"zero evaluation periods", func(c *Config) { c.Alerting.EvaluationPeriods = 0 }},
		{"datapoints above periods", func(c *Config) { c.Alerting.DatapointsToAlarm = 5 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"zero anomaly threshold", func(c *Config) { c.Cost.AnomalyThresholdPct = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
