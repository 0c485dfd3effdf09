package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/platform-team/observability/events"
)

// notify publishes the alert to the SNS topic matching its severity. Alarm
// alerts only notify on ALARM and INSUFFICIENT_DATA; OK transitions are
// recorded on the bus but kept out of inboxes.
func (p *Processor) notify(ctx context.Context, alert events.Alert) error {
	topicARN := p.topicARNs[alert.Severity]
	if topicARN == "" {
		p.log.Warn().Str("severity", alert.Severity).Msg("No topic ARN configured for severity")
		return nil
	}

	if !shouldNotify(alert) {
		p.log.Info().Str("state", alert.State).Msg("Skipping notification for alarm state")
		return nil
	}

	body, err := json.MarshalIndent(alert, "", "  ")
	if err != nil {
		return err
	}

	_, err = p.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(topicARN),
		Subject:  aws.String(subject(alert)),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"severity": {
				DataType:    aws.String("String"),
				StringValue: aws.String(alert.Severity),
			},
			"environment": {
				DataType:    aws.String("String"),
				StringValue: aws.String(alert.Environment),
			},
			"alert_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(alert.AlertType),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s alert: %w", alert.Severity, err)
	}

	p.log.Info().Str("severity", alert.Severity).Str("topic", topicARN).Msg("Sent alert notification")
	return nil
}

// forward puts the enriched alert on the platform bus so the automation
// stack can react to it.
func (p *Processor) forward(ctx context.Context, alert events.Alert) error {
	if p.eventBusName == "" {
		p.log.Warn().Msg("No event bus configured, skipping forward")
		return nil
	}

	detail, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	_, err = p.eventbridge.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{
			{
				Source:       aws.String(events.SourceAlerts),
				DetailType:   aws.String(events.DetailTypeAlertProcessed),
				Detail:       aws.String(string(detail)),
				EventBusName: aws.String(p.eventBusName),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("forward alert to event bus: %w", err)
	}

	p.log.Info().Str("alert_id", alert.ID).Msg("Forwarded alert for automation")
	return nil
}

func shouldNotify(alert events.Alert) bool {
	if alert.AlertType == events.AlertTypeCustom {
		return true
	}
	return alert.State == "ALARM" || alert.State == "INSUFFICIENT_DATA"
}

func subject(alert events.Alert) string {
	severity := strings.ToUpper(alert.Severity)
	environment := strings.ToUpper(alert.Environment)

	if alert.AlertType == events.AlertTypeAlarm {
		return fmt.Sprintf("[%s] [%s] %s", severity, environment, alert.AlarmName)
	}
	return fmt.Sprintf("[%s] [%s] Custom Alert from %s", severity, environment, alert.Source)
}
