// Package config carries the environment-scoped settings for the
// observability platform. Defaults are keyed by environment name and can be
// overridden by a YAML file and OBS_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Known deployment environments.
const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

// AlertingConfig holds alarm thresholds and evaluation settings.
type AlertingConfig struct {
	CPUThreshold        float64 `koanf:"cpu_threshold"`
	ErrorRateThreshold  float64 `koanf:"error_rate_threshold"`
	DurationThresholdMs float64 `koanf:"duration_threshold_ms"`
	EvaluationPeriods   int     `koanf:"evaluation_periods"`
	DatapointsToAlarm   int     `koanf:"datapoints_to_alarm"`
}

// LoggingConfig holds log retention and level settings.
type LoggingConfig struct {
	RetentionDays int    `koanf:"retention_days"`
	Level         string `koanf:"level"`
}

// CostConfig holds budget and anomaly detection settings.
type CostConfig struct {
	MonthlyBudgetLimit    float64 `koanf:"monthly_budget_limit"`
	AnomalyThresholdPct   float64 `koanf:"anomaly_threshold_percent"`
	AnomalyScheduleHours  int     `koanf:"anomaly_schedule_hours"`
	BudgetAlertPercentage float64 `koanf:"budget_alert_percentage"`
}

// Config is the complete configuration for one environment.
type Config struct {
	Environment    string            `koanf:"environment"`
	Alerting       AlertingConfig    `koanf:"alerting"`
	Logging        LoggingConfig     `koanf:"logging"`
	Cost           CostConfig        `koanf:"cost"`
	AlertEmail     string            `koanf:"alert_email"`
	RunbookBaseURL string            `koanf:"runbook_base_url"`
	Tags           map[string]string `koanf:"tags"`
}

func defaults(environment string) map[string]interface{} {
	d := map[string]interface{}{
		"environment":                    environment,
		"alerting.cpu_threshold":         85.0,
		"alerting.error_rate_threshold":  10.0,
		"alerting.duration_threshold_ms": 15000.0,
		"alerting.evaluation_periods":    2,
		"alerting.datapoints_to_alarm":   2,
		"logging.retention_days":         30,
		"logging.level":                  "info",
		"cost.monthly_budget_limit":      100.0,
		"cost.anomaly_threshold_percent": 50.0,
		"cost.anomaly_schedule_hours":    6,
		"cost.budget_alert_percentage":   80.0,
		"alert_email":                    "",
		"runbook_base_url":               "https://runbooks.example.com",
		"tags.Environment":               environment,
		"tags.Project":                   "observability-platform",
		"tags.Owner":                     "platform-team",
		"tags.CostCenter":                "engineering",
	}

	switch environment {
	case EnvStaging:
		d["alerting.cpu_threshold"] = 80.0
		d["alerting.error_rate_threshold"] = 5.0
		d["alerting.duration_threshold_ms"] = 12000.0
		d["alerting.evaluation_periods"] = 3
		d["logging.retention_days"] = 90
		d["cost.monthly_budget_limit"] = 500.0
		d["cost.anomaly_threshold_percent"] = 30.0
	case EnvProd:
		d["alerting.cpu_threshold"] = 75.0
		d["alerting.error_rate_threshold"] = 1.0
		d["alerting.duration_threshold_ms"] = 10000.0
		d["alerting.evaluation_periods"] = 3
		d["alerting.datapoints_to_alarm"] = 3
		d["logging.retention_days"] = 365
		d["logging.level"] = "warn"
		d["cost.monthly_budget_limit"] = 2000.0
		d["cost.anomaly_threshold_percent"] = 20.0
		d["tags.Compliance"] = "required"
	}

	return d
}

// Load builds the configuration for the given environment. A non-empty path
// names a YAML file layered over the defaults; OBS_-prefixed environment
// variables are layered over both (OBS_COST_MONTHLY_BUDGET_LIMIT ->
// cost.monthly_budget_limit).
func Load(environment, path string) (*Config, error) {
	switch environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return nil, fmt.Errorf("unknown environment %q", environment)
	}

	k := koanf.New(".")
	for key, val := range defaults(environment) {
		if err := k.Set(key, val); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("OBS_", ".", envKey), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	cfg.Environment = environment

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps an OBS_-prefixed variable name onto a koanf path. Only a
// known section name becomes a path segment; the rest of the key keeps
// its underscores (OBS_COST_MONTHLY_BUDGET_LIMIT -> cost.monthly_budget_limit,
// OBS_ALERT_EMAIL -> alert_email).
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, "OBS_"))
	for _, section := range []string{"alerting", "logging", "cost", "tags"} {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + key[len(section)+1:]
		}
	}
	return key
}

// Validate rejects configurations that would synthesize broken stacks.
func (c *Config) Validate() error {
	if c.Cost.MonthlyBudgetLimit <= 0 {
		return fmt.Errorf("cost.monthly_budget_limit must be positive, got %v", c.Cost.MonthlyBudgetLimit)
	}
	if c.Cost.AnomalyThresholdPct <= 0 {
		return fmt.Errorf("cost.anomaly_threshold_percent must be positive, got %v", c.Cost.AnomalyThresholdPct)
	}
	if c.Logging.RetentionDays <= 0 {
		return fmt.Errorf("logging.retention_days must be positive, got %d", c.Logging.RetentionDays)
	}
	if c.Alerting.CPUThreshold <= 0 || c.Alerting.CPUThreshold > 100 {
		return fmt.Errorf("alerting.cpu_threshold must be in (0, 100], got %v", c.Alerting.CPUThreshold)
	}
	if c.Alerting.EvaluationPeriods < 1 {
		return fmt.Errorf("alerting.evaluation_periods must be at least 1, got %d", c.Alerting.EvaluationPeriods)
	}
	if c.Alerting.DatapointsToAlarm < 1 || c.Alerting.DatapointsToAlarm > c.Alerting.EvaluationPeriods {
		return fmt.Errorf("alerting.datapoints_to_alarm must be in [1, evaluation_periods], got %d", c.Alerting.DatapointsToAlarm)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}
	return nil
}
