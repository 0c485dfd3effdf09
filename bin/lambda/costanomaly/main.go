// Cost anomaly detector. Runs on a schedule, compares the latest day of
// spend against a statistical baseline and the configured monthly budget,
// and raises events on the platform bus when either is breached.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog"

	"github.com/platform-team/observability/events"
	"github.com/platform-team/observability/metrics"
)

const (
	costDateLayout = "2006-01-02"

	// How many trailing days feed the anomaly baseline.
	lookbackDays = 14

	// Standard deviations above the mean before a day counts as anomalous.
	defaultSensitivity = 2.0
)

// CostExplorerAPI is the subset of the Cost Explorer client used here.
type CostExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// EventBridgeAPI is the subset of the EventBridge client used here.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// CloudWatchAPI is the subset of the CloudWatch client used here.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Detector compares actual spend against budget and baseline.
type Detector struct {
	costexplorer CostExplorerAPI
	eventbridge  EventBridgeAPI
	cloudwatch   CloudWatchAPI
	eventBusName string
	environment  string
	budgetLimit  float64
	sensitivity  float64
	now          func() time.Time
	log          zerolog.Logger
}

// Finding summarizes one detector run.
type Finding struct {
	LatestDailyCost   float64 `json:"latest_daily_cost"`
	BaselineThreshold float64 `json:"baseline_threshold"`
	MonthToDateCost   float64 `json:"month_to_date_cost"`
	BudgetLimit       float64 `json:"budget_limit"`
	Trend             string  `json:"trend"`
	Anomalous         bool    `json:"anomalous"`
	OverBudget        bool    `json:"over_budget"`
}

// NewDetector wires the detector from the Lambda environment.
func NewDetector(ctx context.Context) (*Detector, error) {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("handler", "cost-anomaly").Logger()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	budgetLimit := 0.0
	if v := os.Getenv("MONTHLY_BUDGET_LIMIT"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			budgetLimit = parsed
		}
	}

	return &Detector{
		costexplorer: costexplorer.NewFromConfig(cfg),
		eventbridge:  eventbridge.NewFromConfig(cfg),
		cloudwatch:   cloudwatch.NewFromConfig(cfg),
		eventBusName: os.Getenv("EVENT_BUS_NAME"),
		environment:  os.Getenv("ENVIRONMENT"),
		budgetLimit:  budgetLimit,
		sensitivity:  defaultSensitivity,
		now:          time.Now,
		log:          log,
	}, nil
}

// dayCost is one day of spend, dated so month boundaries survive the
// trailing window.
type dayCost struct {
	date   time.Time
	amount float64
}

// Handle runs one detection pass.
func (d *Detector) Handle(ctx context.Context) (Finding, error) {
	now := d.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	// The query covers the anomaly baseline and the whole current month,
	// whichever reaches further back.
	start := now.AddDate(0, 0, -lookbackDays)
	if monthStart.Before(start) {
		start = monthStart
	}

	daily, err := d.dailyCosts(ctx, start, now)
	if err != nil {
		return Finding{}, err
	}
	if len(daily) == 0 {
		d.log.Warn().Msg("No cost data returned")
		return Finding{}, nil
	}

	finding := d.evaluate(daily, monthStart)
	d.log.Info().
		Float64("latest", finding.LatestDailyCost).
		Float64("threshold", finding.BaselineThreshold).
		Float64("month_to_date", finding.MonthToDateCost).
		Str("trend", finding.Trend).
		Bool("anomalous", finding.Anomalous).
		Bool("over_budget", finding.OverBudget).
		Msg("Cost evaluation complete")

	if err := d.publishSpendMetric(ctx, finding.MonthToDateCost); err != nil {
		d.log.Warn().Err(err).Msg("Failed to publish spend metric")
	}

	if finding.Anomalous || finding.OverBudget {
		if err := d.emitAnomalyEvent(ctx, finding); err != nil {
			return finding, err
		}
	}
	return finding, nil
}

// evaluate applies the baseline and budget checks to the daily spend,
// oldest first. The anomaly baseline uses only the trailing lookback
// window; the budget check sums the days of the current calendar month.
func (d *Detector) evaluate(daily []dayCost, monthStart time.Time) Finding {
	amounts := make([]float64, len(daily))
	var monthToDate float64
	for i, day := range daily {
		amounts[i] = day.amount
		if !day.date.Before(monthStart) {
			monthToDate += day.amount
		}
	}

	latest := amounts[len(amounts)-1]
	historical := amounts[:len(amounts)-1]
	if excess := len(historical) - (lookbackDays - 1); excess > 0 {
		historical = historical[excess:]
	}
	threshold := metrics.AnomalyThreshold(historical, d.sensitivity)

	return Finding{
		LatestDailyCost:   latest,
		BaselineThreshold: threshold,
		MonthToDateCost:   monthToDate,
		BudgetLimit:       d.budgetLimit,
		Trend:             metrics.DetectTrend(amounts, 3),
		Anomalous:         threshold > 0 && latest > threshold,
		OverBudget:        d.budgetLimit > 0 && monthToDate > d.budgetLimit,
	}
}

func (d *Detector) dailyCosts(ctx context.Context, start, end time.Time) ([]dayCost, error) {
	out, err := d.costexplorer.GetCostAndUsage(ctx, &costexplorer.GetCostAndUsageInput{
		TimePeriod: &cetypes.DateInterval{
			Start: aws.String(start.Format(costDateLayout)),
			End:   aws.String(end.Format(costDateLayout)),
		},
		Granularity: cetypes.GranularityDaily,
		Metrics:     []string{"UnblendedCost"},
	})
	if err != nil {
		return nil, fmt.Errorf("get cost and usage: %w", err)
	}

	var daily []dayCost
	for _, result := range out.ResultsByTime {
		if result.TimePeriod == nil || result.TimePeriod.Start == nil {
			continue
		}
		date, err := time.Parse(costDateLayout, *result.TimePeriod.Start)
		if err != nil {
			d.log.Warn().Str("start", *result.TimePeriod.Start).Msg("Unparseable cost period, skipping day")
			continue
		}
		metric, ok := result.Total["UnblendedCost"]
		if !ok || metric.Amount == nil {
			continue
		}
		amount, err := strconv.ParseFloat(*metric.Amount, 64)
		if err != nil {
			d.log.Warn().Str("amount", *metric.Amount).Msg("Unparseable cost amount, skipping day")
			continue
		}
		daily = append(daily, dayCost{date: date, amount: amount})
	}
	return daily, nil
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
				DetailType:   aws.String(events.DetailTypeCostAnomaly),
				Detail:       aws.String(string(detail)),
				EventBusName: aws.String(d.eventBusName),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("emit cost anomaly event: %w", err)
	}

	d.log.Info().Msg("Emitted cost anomaly event")
	return nil
}

func (d *Detector) publishSpendMetric(ctx context.Context, monthToDate float64) error {
	_, err := d.cloudwatch.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String("Observability/Cost"),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String("EstimatedMonthlySpend"),
				Value:      aws.Float64(monthToDate),
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String("Environment"), Value: aws.String(d.environment)},
				},
			},
		},
	})
	return err
}

func main() {
	detector, err := NewDetector(context.Background())
	if err != nil {
		panic(err)
	}
	lambda.Start(detector.Handle)
}
