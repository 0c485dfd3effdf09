// Remediation handler for EC2 instances. Invoked by the remediation state
// machine with an action and a resource ID.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/rs/zerolog"
)

// Actions accepted in Request.Action.
const (
	ActionCheckHealth = "check_health"
	ActionRestart     = "restart"
	ActionVerify      = "verify"
)

// Statuses returned in Response.Status. The state machine branches on them.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusSuccess   = "success"
	StatusSkipped   = "skipped"
	StatusError     = "error"
)

// Request is the payload the state machine passes to each task.
type Request struct {
	Action     string `json:"action"`
	ResourceID string `json:"resource_id"`
	InstanceID string `json:"instance_id,omitempty"`
}

// Response reports the outcome of one remediation action.
type Response struct {
	Status        string `json:"status"`
	InstanceID    string `json:"instance_id,omitempty"`
	InstanceState string `json:"instance_state,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Error         string `json:"error,omitempty"`
}

// EC2API is the subset of the EC2 client used for remediation.
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	RebootInstances(ctx context.Context, params *ec2.RebootInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RebootInstancesOutput, error)
}

// CloudWatchAPI is the subset of the CloudWatch client used for remediation.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Remediator executes corrective actions against EC2 instances.
type Remediator struct {
	ec2        EC2API
	cloudwatch CloudWatchAPI
	log        zerolog.Logger
}

// NewRemediator wires the remediator from the Lambda environment.
func NewRemediator(ctx context.Context) (*Remediator, error) {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("handler", "remediation").Logger()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	return &Remediator{
		ec2:        ec2.NewFromConfig(cfg),
		cloudwatch: cloudwatch.NewFromConfig(cfg),
		log:        log,
	}, nil
}

// Handle dispatches a remediation action. Errors are reported in the
// response rather than returned, so the state machine can branch on the
// status instead of failing the task.
func (r *Remediator) Handle(ctx context.Context, req Request) (Response, error) {
	instanceID := req.InstanceID
	if instanceID == "" {
		instanceID = req.ResourceID
	}
	if instanceID == "" {
		return Response{Status: StatusError, Error: "no instance_id provided"}, nil
	}

	r.log.Info().Str("action", req.Action).Str("instance_id", instanceID).Msg("Remediation request")

	switch req.Action {
	case ActionRestart:
		return r.restart(ctx, instanceID), nil
	case ActionCheckHealth, ActionVerify:
		return r.checkHealth(ctx, instanceID), nil
	default:
		return Response{Status: StatusError, Error: fmt.Sprintf("unknown action: %s", req.Action)}, nil
	}
}

func (r *Remediator) restart(ctx context.Context, instanceID string) Response {
	state, err := r.instanceState(ctx, instanceID)
	if err != nil {
		return Response{Status: StatusError, InstanceID: instanceID, Error: err.Error()}
	}

	if state != ec2types.InstanceStateNameRunning {
		r.log.Info().Str("instance_id", instanceID).Str("state", string(state)).
			Msg("Instance not running, skipping restart")
		return Response{Status: StatusSkipped, InstanceID: instanceID, Reason: "instance_not_running"}
	}

	if _, err := r.ec2.RebootInstances(ctx, &ec2.RebootInstancesInput{
		InstanceIds: []string{instanceID},
	}); err != nil {
		return Response{Status: StatusError, InstanceID: instanceID, Error: err.Error()}
	}

	if err := r.recordRestart(ctx, instanceID); err != nil {
		// The restart itself succeeded; a metric failure is not worth
		// failing the workflow over.
		r.log.Warn().Err(err).Msg("Failed to record restart metric")
	}

	r.log.Info().Str("instance_id", instanceID).Msg("Instance restarted")
	return Response{Status: StatusSuccess, InstanceID: instanceID}
}

func (r *Remediator) checkHealth(ctx context.Context, instanceID string) Response {
	state, err := r.instanceState(ctx, instanceID)
	if err != nil {
		return Response{Status: StatusError, InstanceID: instanceID, Error: err.Error()}
	}

	status := StatusUnhealthy
	if state == ec2types.InstanceStateNameRunning {
		status = StatusHealthy
	}
	return Response{Status: status, InstanceID: instanceID, InstanceState: string(state)}
}

func (r *Remediator) instanceState(ctx context.Context, instanceID string) (ec2types.InstanceStateName, error) {
	out, err := r.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return "", fmt.Errorf("describe instance %s: %w", instanceID, err)
	}
	if len(out.Reservations) == 0 || len(out.Reservations[0].Instances) == 0 {
		return "", fmt.Errorf("instance %s not found", instanceID)
	}
	return out.Reservations[0].Instances[0].State.Name, nil
}

func (r *Remediator) recordRestart(ctx context.Context, instanceID string) error {
	_, err := r.cloudwatch.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String("Observability/Automation"),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String("InstanceRestart"),
				Value:      aws.Float64(1),
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String("InstanceId"), Value: aws.String(instanceID)},
				},
			},
		},
	})
	return err
}

func main() {
	remediator, err := NewRemediator(context.Background())
	if err != nil {
		panic(err)
	}
	lambda.Start(remediator.Handle)
}
