package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platform-team/observability/events"
)

// Keyword tables for deriving a severity tier from an alarm name. Checked
// in order, most urgent first.
var severityKeywords = []struct {
	severity string
	keywords []string
}{
	{events.SeverityCritical, []string{"critical", "fatal", "down", "outage"}},
	{events.SeverityHigh, []string{"error", "high", "failed", "timeout"}},
	{events.SeverityMedium, []string{"warning", "medium", "slow"}},
}

func (p *Processor) enrichAlarm(alarm events.AlarmDetail) events.Alert {
	return events.Alert{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		AlertType:    events.AlertTypeAlarm,
		Severity:     severityFromAlarmName(alarm.AlarmName),
		Environment:  p.environment,
		AlarmName:    alarm.AlarmName,
		State:        alarm.State.Value,
		Reason:       alarm.State.Reason,
		RunbookURL:   p.runbookURL(alarm.AlarmName),
		DashboardURL: p.dashboardURL(),
	}
}

func (p *Processor) enrichCustom(custom events.CustomAlertDetail) events.Alert {
	severity, known := events.NormalizeSeverity(custom.Severity)
	if !known {
		p.log.Warn().Str("severity", custom.Severity).Msg("Unknown severity, defaulting to low")
	}

	source := custom.Source
	if source == "" {
		source = "unknown"
	}

	return events.Alert{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		AlertType:   events.AlertTypeCustom,
		Severity:    severity,
		Environment: p.environment,
		Message:     custom.Message,
		Source:      source,
		ResourceID:  custom.ResourceID,
		RunbookURL:  p.runbookURL("custom-" + source),
	}
}

func severityFromAlarmName(name string) string {
	lower := strings.ToLower(name)
	for _, entry := range severityKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(lower, keyword) {
				return entry.severity
			}
		}
	}
	return events.SeverityLow
}

func (p *Processor) runbookURL(identifier string) string {
	slug := strings.ToLower(identifier)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "_", "-")
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(p.runbookBase, "/"), slug)
}

func (p *Processor) dashboardURL() string {
	return fmt.Sprintf("https://console.aws.amazon.com/cloudwatch/home?region=%s#dashboards:", p.region)
}
