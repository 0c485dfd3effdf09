package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog"

	"github.com/platform-team/observability/events"
)

// SNSAPI is the subset of the SNS client used by the processor.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// EventBridgeAPI is the subset of the EventBridge client used by the processor.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Processor enriches incoming alarm and custom alert events and routes them
// to the SNS topic for their severity tier.
type Processor struct {
	sns          SNSAPI
	eventbridge  EventBridgeAPI
	topicARNs    map[string]string
	eventBusName string
	environment  string
	runbookBase  string
	region       string
	log          zerolog.Logger
}

// NewProcessor wires the processor from the Lambda environment.
func NewProcessor(ctx context.Context) (*Processor, error) {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("handler", "alert-processor").Logger()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	return &Processor{
		sns:         sns.NewFromConfig(cfg),
		eventbridge: eventbridge.NewFromConfig(cfg),
		topicARNs: map[string]string{
			events.SeverityCritical: os.Getenv("TOPIC_ARN_CRITICAL"),
			events.SeverityHigh:     os.Getenv("TOPIC_ARN_HIGH"),
			events.SeverityMedium:   os.Getenv("TOPIC_ARN_MEDIUM"),
			events.SeverityLow:      os.Getenv("TOPIC_ARN_LOW"),
		},
		eventBusName: os.Getenv("EVENT_BUS_NAME"),
		environment:  os.Getenv("ENVIRONMENT"),
		runbookBase:  envOr("RUNBOOK_BASE_URL", "https://runbooks.example.com"),
		region:       envOr("AWS_REGION", "us-east-1"),
		log:          log,
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Handle processes one EventBridge event. Malformed payloads are logged and
// dropped rather than returned as errors, so the bus never retries them
// into an alert storm.
func (p *Processor) Handle(ctx context.Context, event awsevents.CloudWatchEvent) error {
	switch {
	case event.Source == "aws.cloudwatch" && event.DetailType == events.DetailTypeAlarmStateChange:
		return p.processAlarm(ctx, event.Detail)
	case strings.Contains(event.DetailType, "Custom"):
		return p.processCustomAlert(ctx, event.Detail)
	default:
		p.log.Warn().Str("source", event.Source).Str("detail_type", event.DetailType).
			Msg("Unknown event type, dropping")
		return nil
	}
}

func (p *Processor) processAlarm(ctx context.Context, detail json.RawMessage) error {
	var alarm events.AlarmDetail
	if err := json.Unmarshal(detail, &alarm); err != nil || alarm.AlarmName == "" {
		p.log.Error().Err(err).Msg("Malformed alarm detail, dropping")
		return nil
	}

	alert := p.enrichAlarm(alarm)
	p.log.Info().Str("alarm", alert.AlarmName).Str("severity", alert.Severity).
		Str("state", alert.State).Msg("Processing alarm state change")

	if err := p.notify(ctx, alert); err != nil {
		return err
	}
	return p.forward(ctx, alert)
}

func (p *Processor) processCustomAlert(ctx context.Context, detail json.RawMessage) error {
	var custom events.CustomAlertDetail
	if err := json.Unmarshal(detail, &custom); err != nil {
		p.log.Error().Err(err).Msg("Malformed custom alert detail, dropping")
		return nil
	}

	alert := p.enrichCustom(custom)
	p.log.Info().Str("source", alert.Source).Str("severity", alert.Severity).
		Msg("Processing custom alert")

	if err := p.notify(ctx, alert); err != nil {
		return err
	}
	return p.forward(ctx, alert)
}

func main() {
	processor, err := NewProcessor(context.Background())
	if err != nil {
		panic(err)
	}
	lambda.Start(processor.Handle)
}
