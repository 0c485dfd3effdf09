// Log anomaly detector. Runs on a schedule, pulls the recent error-count
// history from CloudWatch and raises a platform event when the latest
// window is statistically out of line with the baseline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog"

	"github.com/platform-team/observability/events"
	"github.com/platform-team/observability/metrics"
)

const (
	// Hourly buckets over the trailing day feed the baseline.
	lookback = 24 * time.Hour
	period   = time.Hour

	defaultSensitivity = 2.5
)

// CloudWatchAPI is the subset of the CloudWatch client used here.
type CloudWatchAPI interface {
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// EventBridgeAPI is the subset of the EventBridge client used here.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Detector compares the latest error-count window against its baseline.
type Detector struct {
	cloudwatch   CloudWatchAPI
	eventbridge  EventBridgeAPI
	eventBusName string
	environment  string
	sensitivity  float64
	now          func() time.Time
	log          zerolog.Logger
}

// Finding summarizes one detection pass.
type Finding struct {
	LatestErrorCount  float64 `json:"latest_error_count"`
	BaselineThreshold float64 `json:"baseline_threshold"`
	Trend             string  `json:"trend"`
	Anomalous         bool    `json:"anomalous"`
}

// NewDetector wires the detector from the Lambda environment.
func NewDetector(ctx context.Context) (*Detector, error) {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("handler", "log-anomaly").Logger()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	return &Detector{
		cloudwatch:   cloudwatch.NewFromConfig(cfg),
		eventbridge:  eventbridge.NewFromConfig(cfg),
		eventBusName: os.Getenv("EVENT_BUS_NAME"),
		environment:  os.Getenv("ENVIRONMENT"),
		sensitivity:  defaultSensitivity,
		now:          time.Now,
		log:          log,
	}, nil
}

// Handle runs one detection pass.
func (d *Detector) Handle(ctx context.Context) (Finding, error) {
	history, err := d.errorCounts(ctx)
	if err != nil {
		return Finding{}, err
	}
	if len(history) < 3 {
		d.log.Warn().Int("datapoints", len(history)).Msg("Not enough history to evaluate")
		return Finding{}, nil
	}

	finding := d.evaluate(history)
	d.log.Info().
		Float64("latest", finding.LatestErrorCount).
		Float64("threshold", finding.BaselineThreshold).
		Str("trend", finding.Trend).
		Bool("anomalous", finding.Anomalous).
		Msg("Log evaluation complete")

	if finding.Anomalous {
		if err := d.emitAnomalyEvent(ctx, finding); err != nil {
			return finding, err
		}
	}
	return finding, nil
}

// evaluate applies the baseline check to the hourly error counts, oldest
// first.
func (d *Detector) evaluate(history []float64) Finding {
	latest := history[len(history)-1]
	threshold := metrics.AnomalyThreshold(history[:len(history)-1], d.sensitivity)

	return Finding{
		LatestErrorCount:  latest,
		BaselineThreshold: threshold,
		Trend:             metrics.DetectTrend(history, 3),
		Anomalous:         threshold > 0 && latest > threshold,
	}
}

func (d *Detector) errorCounts(ctx context.Context) ([]float64, error) {
	end := d.now().UTC()
	start := end.Add(-lookback)

	out, err := d.cloudwatch.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String("Observability/Logs"),
		MetricName: aws.String("ErrorCount"),
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String("Environment"), Value: aws.String(d.environment)},
		},
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(int32(period.Seconds())),
		Statistics: []cwtypes.Statistic{cwtypes.StatisticSum},
	})
	if err != nil {
		return nil, fmt.Errorf("get error count history: %w", err)
	}

	datapoints := out.Datapoints
	// Datapoints arrive unordered.
	sort.Slice(datapoints, func(i, j int) bool {
		a, b := datapoints[i].Timestamp, datapoints[j].Timestamp
		if a == nil || b == nil {
			return false
		}
		return a.Before(*b)
	})

	var history []float64
	for _, dp := range datapoints {
		if dp.Sum != nil {
			history = append(history, *dp.Sum)
		}
	}
	return history, nil
}

func (d *Detector) emitAnomalyEvent(ctx context.Context, finding Finding) error {
	if d.eventBusName == "" {
		d.log.Warn().Msg("No event bus configured, skipping anomaly event")
		return nil
	}

	detail, err := json.Marshal(finding)
	if err != nil {
		return err
	}

	_, err = d.eventbridge.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{
			{
				Source:       aws.String(events.SourcePlatform),
				DetailType:   aws.String(events.DetailTypeLogAnomaly),
				Detail:       aws.String(string(detail)),
				EventBusName: aws.String(d.eventBusName),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("emit log anomaly event: %w", err)
	}

	d.log.Info().Msg("Emitted log anomaly event")
	return nil
}

func main() {
	detector, err := NewDetector(context.Background())
	if err != nil {
		panic(err)
	}
	lambda.Start(detector.Handle)
}
