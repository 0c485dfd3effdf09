// Dashboard updater. Runs on a schedule, discovers the account's EC2
// instances and Lambda functions and rewrites the auto-generated
// dashboards so new resources show up without a deploy.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/rs/zerolog"
)

const (
	ec2DashboardName    = "Observability-EC2-Auto"
	lambdaDashboardName = "Observability-Lambda-Auto"

	// Widgets get unreadable past this, the curated dashboards cover the
	// long tail.
	maxResourcesPerDashboard = 10
)

// EC2API is the subset of the EC2 client used by discovery.
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// LambdaAPI is the subset of the Lambda client used by discovery.
type LambdaAPI interface {
	ListFunctions(ctx context.Context, params *awslambda.ListFunctionsInput, optFns ...func(*awslambda.Options)) (*awslambda.ListFunctionsOutput, error)
}

// CloudWatchAPI is the subset of the CloudWatch client used here.
type CloudWatchAPI interface {
	PutDashboard(ctx context.Context, params *cloudwatch.PutDashboardInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutDashboardOutput, error)
}

// Updater rebuilds the auto-generated dashboards.
type Updater struct {
	ec2         EC2API
	lambda      LambdaAPI
	cloudwatch  CloudWatchAPI
	region      string
	environment string
	log         zerolog.Logger
}

// Result reports what each run published.
type Result struct {
	Instances  int `json:"instances"`
	Functions  int `json:"functions"`
	Dashboards int `json:"dashboards"`
}

// NewUpdater wires the updater from the Lambda environment.
func NewUpdater(ctx context.Context) (*Updater, error) {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("handler", "dashboard-updater").Logger()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	return &Updater{
		ec2:         ec2.NewFromConfig(cfg),
		lambda:      awslambda.NewFromConfig(cfg),
		cloudwatch:  cloudwatch.NewFromConfig(cfg),
		region:      cfg.Region,
		environment: os.Getenv("ENVIRONMENT"),
		log:         log,
	}, nil
}

// Handle runs one discovery and publish pass. A failure on one dashboard
// does not block the other.
func (u *Updater) Handle(ctx context.Context) (Result, error) {
	var result Result

	instances, err := u.discoverInstances(ctx)
	if err != nil {
		u.log.Error().Err(err).Msg("EC2 discovery failed")
	} else {
		result.Instances = len(instances)
		if err := u.putDashboard(ctx, ec2DashboardName, ec2DashboardBody(instances, u.region)); err != nil {
			u.log.Error().Err(err).Str("dashboard", ec2DashboardName).Msg("Dashboard update failed")
		} else {
			result.Dashboards++
		}
	}

	functions, err := u.discoverFunctions(ctx)
	if err != nil {
		u.log.Error().Err(err).Msg("Lambda discovery failed")
	} else {
		result.Functions = len(functions)
		if err := u.putDashboard(ctx, lambdaDashboardName, lambdaDashboardBody(functions, u.region)); err != nil {
			u.log.Error().Err(err).Str("dashboard", lambdaDashboardName).Msg("Dashboard update failed")
		} else {
			result.Dashboards++
		}
	}

	u.log.Info().
		Int("instances", result.Instances).
		Int("functions", result.Functions).
		Int("dashboards", result.Dashboards).
		Msg("Dashboard refresh complete")
	return result, nil
}

func (u *Updater) putDashboard(ctx context.Context, name, body string) error {
	_, err := u.cloudwatch.PutDashboard(ctx, &cloudwatch.PutDashboardInput{
		DashboardName: aws.String(name),
		DashboardBody: aws.String(body),
	})
	return err
}

func main() {
	updater, err := NewUpdater(context.Background())
	if err != nil {
		panic(err)
	}
	lambda.Start(updater.Handle)
}
