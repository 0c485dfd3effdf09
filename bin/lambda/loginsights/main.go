// Logs Insights runner. Executes the platform error-count query over the
// trailing hour and publishes the result as a CloudWatch metric.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/rs/zerolog"
)

const (
	errorCountQuery = `filter @message like /(?i)(error|exception|fail)/ | stats count() as error_count`

	pollInterval = 2 * time.Second
	pollTimeout  = 2 * time.Minute
)

// CloudWatchLogsAPI is the subset of the Logs client used by the runner.
type CloudWatchLogsAPI interface {
	StartQuery(ctx context.Context, params *cloudwatchlogs.StartQueryInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.StartQueryOutput, error)
	GetQueryResults(ctx context.Context, params *cloudwatchlogs.GetQueryResultsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetQueryResultsOutput, error)
}

// CloudWatchAPI is the subset of the CloudWatch client used by the runner.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Runner executes scheduled Logs Insights queries.
type Runner struct {
	logs        CloudWatchLogsAPI
	cloudwatch  CloudWatchAPI
	logGroups   []string
	environment string
	now         func() time.Time
	sleep       func(time.Duration)
	log         zerolog.Logger
}

// NewRunner wires the runner from the Lambda environment. LOG_GROUP_NAMES
// is a comma-separated list.
func NewRunner(ctx context.Context) (*Runner, error) {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("handler", "log-insights").Logger()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	groups := strings.Split(os.Getenv("LOG_GROUP_NAMES"), ",")
	var logGroups []string
	for _, g := range groups {
		if g = strings.TrimSpace(g); g != "" {
			logGroups = append(logGroups, g)
		}
	}

	return &Runner{
		logs:        cloudwatchlogs.NewFromConfig(cfg),
		cloudwatch:  cloudwatch.NewFromConfig(cfg),
		logGroups:   logGroups,
		environment: os.Getenv("ENVIRONMENT"),
		now:         time.Now,
		sleep:       time.Sleep,
		log:         log,
	}, nil
}

// Handle runs the error-count query and publishes the result.
func (r *Runner) Handle(ctx context.Context) error {
	if len(r.logGroups) == 0 {
		r.log.Warn().Msg("No log groups configured")
		return nil
	}

	count, err := r.errorCount(ctx)
	if err != nil {
		return err
	}

	r.log.Info().Float64("error_count", count).Msg("Insights query complete")

	_, err = r.cloudwatch.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String("Observability/Logs"),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String("ErrorCount"),
				Value:      aws.Float64(count),
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String("Environment"), Value: aws.String(r.environment)},
				},
			},
		},
	})
	return err
}

// errorCount starts the query over the trailing hour and polls until it
// completes.
func (r *Runner) errorCount(ctx context.Context) (float64, error) {
	end := r.now().UTC()
	start := end.Add(-time.Hour)

	out, err := r.logs.StartQuery(ctx, &cloudwatchlogs.StartQueryInput{
		LogGroupNames: r.logGroups,
		StartTime:     aws.Int64(start.Unix()),
		EndTime:       aws.Int64(end.Unix()),
		QueryString:   aws.String(errorCountQuery),
	})
	if err != nil {
		return 0, fmt.Errorf("start insights query: %w", err)
	}

	deadline := r.now().Add(pollTimeout)
	for {
		results, err := r.logs.GetQueryResults(ctx, &cloudwatchlogs.GetQueryResultsInput{
			QueryId: out.QueryId,
		})
		if err != nil {
			return 0, fmt.Errorf("get query results: %w", err)
		}

		switch results.Status {
		case cwltypes.QueryStatusComplete:
			return parseErrorCount(results.Results), nil
		case cwltypes.QueryStatusFailed, cwltypes.QueryStatusCancelled, cwltypes.QueryStatusTimeout:
			return 0, fmt.Errorf("insights query ended with status %s", results.Status)
		}

		if r.now().After(deadline) {
			return 0, fmt.Errorf("insights query did not complete within %s", pollTimeout)
		}
		r.sleep(pollInterval)
	}
}

func parseErrorCount(results [][]cwltypes.ResultField) float64 {
	for _, row := range results {
		for _, field := range row {
			if field.Field != nil && *field.Field == "error_count" && field.Value != nil {
				if v, err := strconv.ParseFloat(*field.Value, 64); err == nil {
					return v
				}
			}
		}
	}
	return 0
}

func main() {
	runner, err := NewRunner(context.Background())
	if err != nil {
		panic(err)
	}
	lambda.Start(runner.Handle)
}
