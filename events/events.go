// Package events holds the event types and wire constants shared by the
// observability stacks and their Lambda handlers.
package events

import "time"

// Event sources and detail types used on the platform event bus.
const (
	SourcePlatform = "observability.platform"
	SourceCustom   = "observability.custom"
	SourceAlerts   = "observability.alerts"

	DetailTypeAlarmStateChange = "CloudWatch Alarm State Change"
	DetailTypeCustomAlert      = "Custom Metric Alert"
	DetailTypeAlertProcessed   = "Alert Processed"
	DetailTypeCostAnomaly      = "Cost Anomaly Detected"
	DetailTypeLogAnomaly       = "Log Anomaly Detected"
)

// Severity tiers, ordered from most to least urgent. Each tier maps to a
// dedicated SNS topic.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Severities lists all tiers in routing order.
var Severities = []string{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// AlarmState mirrors the state block of a CloudWatch alarm state change.
type AlarmState struct {
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// AlarmDetail is the detail payload of a "CloudWatch Alarm State Change"
// event as delivered by EventBridge.
type AlarmDetail struct {
	AlarmName     string     `json:"alarmName"`
	State         AlarmState `json:"state"`
	PreviousState AlarmState `json:"previousState"`
}

// CustomAlertDetail is the detail payload of a "Custom Metric Alert" event
// published by instrumented applications.
type CustomAlertDetail struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Source   string `json:"source"`

	// ResourceID optionally names the resource the alert is about, so
	// remediation can act on it.
	ResourceID string `json:"resource_id,omitempty"`
}

// Alert is the enriched form produced by the alert processor and forwarded
// on the bus as an "Alert Processed" event.
type Alert struct {
	ID           string    `json:"alert_id"`
	Timestamp    time.Time `json:"timestamp"`
	AlertType    string    `json:"alert_type"` // cloudwatch_alarm or custom
	Severity     string    `json:"severity"`
	Environment  string    `json:"environment"`
	AlarmName    string    `json:"alarm_name,omitempty"`
	State        string    `json:"state,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Message      string    `json:"message,omitempty"`
	Source       string    `json:"source,omitempty"`
	ResourceID   string    `json:"resource_id,omitempty"`
	RunbookURL   string    `json:"runbook_url"`
	DashboardURL string    `json:"dashboard_url,omitempty"`
}

// Alert types carried in Alert.AlertType.
const (
	AlertTypeAlarm  = "cloudwatch_alarm"
	AlertTypeCustom = "custom"
)

// NormalizeSeverity maps an arbitrary severity string onto a known tier.
// Anything unrecognized lands on low so it is never dropped silently.
func NormalizeSeverity(s string) (string, bool) {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return s, true
	}
	return SeverityLow, false
}
