// Incident responder. Listens for processed alerts on the platform bus and,
// for critical and high severities, kicks off the remediation workflow and
// pages the critical topic.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog"

	"github.com/platform-team/observability/events"
)

// SFNAPI is the subset of the Step Functions client used by the responder.
type SFNAPI interface {
	StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
}

// SNSAPI is the subset of the SNS client used by the responder.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Responder starts remediation for severe alerts.
type Responder struct {
	sfn         SFNAPI
	sns         SNSAPI
	workflowARN string
	topicARN    string
	log         zerolog.Logger
}

// NewResponder wires the responder from the Lambda environment.
func NewResponder(ctx context.Context) (*Responder, error) {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("handler", "incident").Logger()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	return &Responder{
		sfn:         sfn.NewFromConfig(cfg),
		sns:         sns.NewFromConfig(cfg),
		workflowARN: os.Getenv("REMEDIATION_WORKFLOW_ARN"),
		topicARN:    os.Getenv("INCIDENT_TOPIC_ARN"),
		log:         log,
	}, nil
}

// Handle reacts to an "Alert Processed" event. Severities below high are
// acknowledged and ignored; the EventBridge rule already filters them, this
// is the second line of defense.
func (r *Responder) Handle(ctx context.Context, event awsevents.CloudWatchEvent) error {
	var alert events.Alert
	if err := json.Unmarshal(event.Detail, &alert); err != nil {
		r.log.Error().Err(err).Msg("Malformed alert detail, dropping")
		return nil
	}

	if alert.Severity != events.SeverityCritical && alert.Severity != events.SeverityHigh {
		r.log.Info().Str("severity", alert.Severity).Msg("Severity below incident threshold, ignoring")
		return nil
	}

	r.log.Info().Str("alert_id", alert.ID).Str("severity", alert.Severity).Msg("Handling incident")

	if err := r.startRemediation(ctx, alert); err != nil {
		return err
	}
	return r.notifyIncident(ctx, alert)
}

func (r *Responder) startRemediation(ctx context.Context, alert events.Alert) error {
	if r.workflowARN == "" {
		r.log.Warn().Msg("No remediation workflow configured")
		return nil
	}
	if alert.ResourceID == "" {
		r.log.Info().Str("alert_id", alert.ID).Msg("Alert names no resource, skipping remediation")
		return nil
	}

	input, err := json.Marshal(map[string]string{"resource_id": alert.ResourceID})
	if err != nil {
		return err
	}

	_, err = r.sfn.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: aws.String(r.workflowARN),
		Input:           aws.String(string(input)),
	})
	if err != nil {
		return fmt.Errorf("start remediation workflow: %w", err)
	}

	r.log.Info().Str("resource_id", alert.ResourceID).Msg("Started remediation workflow")
	return nil
}

func (r *Responder) notifyIncident(ctx context.Context, alert events.Alert) error {
	if r.topicARN == "" {
		r.log.Warn().Msg("No incident topic configured")
		return nil
	}

	body, err := json.MarshalIndent(alert, "", "  ")
	if err != nil {
		return err
	}

	name := alert.AlarmName
	if name == "" {
		name = alert.Source
	}

	_, err = r.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(r.topicARN),
		Subject:  aws.String(fmt.Sprintf("INCIDENT: %s", name)),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("send incident notification: %w", err)
	}

	r.log.Info().Str("alert_id", alert.ID).Msg("Sent incident notification")
	return nil
}

func main() {
	responder, err := NewResponder(context.Background())
	if err != nil {
		panic(err)
	}
	lambda.Start(responder.Handle)
}
