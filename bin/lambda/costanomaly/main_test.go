package main

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platform-team/observability/events"
	"github.com/platform-team/observability/metrics"
)

type mockCostExplorer struct {
	daily    []float64
	err      error
	requests []*costexplorer.GetCostAndUsageInput
}

// GetCostAndUsage answers with one result per configured day, consecutive
// and ending the day before the requested period end, the way Cost
// Explorer slices a daily-granularity window.
func (m *mockCostExplorer) GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.requests = append(m.requests, params)

	end, err := time.Parse(costDateLayout, aws.ToString(params.TimePeriod.End))
	if err != nil {
		return nil, err
	}

	out := &costexplorer.GetCostAndUsageOutput{}
	for i, v := range m.daily {
		day := end.AddDate(0, 0, i-len(m.daily))
		out.ResultsByTime = append(out.ResultsByTime, cetypes.ResultByTime{
			TimePeriod: &cetypes.DateInterval{
				Start: aws.String(day.Format(costDateLayout)),
				End:   aws.String(day.AddDate(0, 0, 1).Format(costDateLayout)),
			},
			Total: map[string]cetypes.MetricValue{
				"UnblendedCost": {Amount: aws.String(fmt.Sprintf("%f", v))},
			},
		})
	}
	return out, nil
}

type mockEventBridge struct {
	entries []*eventbridge.PutEventsInput
}

func (m *mockEventBridge) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	m.entries = append(m.entries, params)
	return &eventbridge.PutEventsOutput{}, nil
}

type mockCloudWatch struct {
	metrics []*cloudwatch.PutMetricDataInput
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.metrics = append(m.metrics, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func newTestDetector(ce *mockCostExplorer, eb *mockEventBridge, cw *mockCloudWatch) *Detector {
	return &Detector{
		costexplorer: ce,
		eventbridge:  eb,
		cloudwatch:   cw,
		eventBusName: "observability-dev",
		environment:  "dev",
		budgetLimit:  100,
		sensitivity:  defaultSensitivity,
		now:          func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) },
		log:          zerolog.New(io.Discard),
	}
}

func TestSteadySpendIsNotAnomalous(t *testing.T) {
	ce := &mockCostExplorer{daily: []float64{5, 5, 5, 5, 5, 5, 5}}
	eb := &mockEventBridge{}
	cw := &mockCloudWatch{}

	finding, err := newTestDetector(ce, eb, cw).Handle(context.Background())
	require.NoError(t, err)

	assert.False(t, finding.Anomalous)
	assert.False(t, finding.OverBudget)
	assert.Empty(t, eb.entries)
	// Spend metric always published.
	require.Len(t, cw.metrics, 1)
	assert.Equal(t, "Observability/Cost", *cw.metrics[0].Namespace)
}

func TestSpikeEmitsAnomalyEvent(t *testing.T) {
	ce := &mockCostExplorer{daily: []float64{5, 5.2, 4.8, 5.1, 4.9, 5, 40}}
	eb := &mockEventBridge{}

	finding, err := newTestDetector(ce, eb, &mockCloudWatch{}).Handle(context.Background())
	require.NoError(t, err)

	assert.True(t, finding.Anomalous)
	require.Len(t, eb.entries, 1)
	entry := eb.entries[0].Entries[0]
	assert.Equal(t, events.SourcePlatform, *entry.Source)
	assert.Equal(t, events.DetailTypeCostAnomaly, *entry.DetailType)
}

func TestBudgetOverrunEmitsEvent(t *testing.T) {
	// Flat spend, no statistical anomaly, but the month total blows the
	// 100 USD budget.
	ce := &mockCostExplorer{daily: []float64{30, 30, 30, 30}}
	eb := &mockEventBridge{}

	finding, err := newTestDetector(ce, eb, &mockCloudWatch{}).Handle(context.Background())
	require.NoError(t, err)

	assert.False(t, finding.Anomalous)
	assert.True(t, finding.OverBudget)
	assert.Len(t, eb.entries, 1)
}

func TestEvaluateTrend(t *testing.T) {
	d := newTestDetector(&mockCostExplorer{}, &mockEventBridge{}, &mockCloudWatch{})
	d.budgetLimit = 1e9

	monthStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	finding := d.evaluate(costDays(monthStart, 5, 5, 5, 10, 10, 10), monthStart)
	assert.Equal(t, metrics.TrendIncreasing, finding.Trend)
}

func costDays(start time.Time, amounts ...float64) []dayCost {
	days := make([]dayCost, len(amounts))
	for i, v := range amounts {
		days[i] = dayCost{date: start.AddDate(0, 0, i), amount: v}
	}
	return days
}

func TestMonthToDateCountsCurrentMonthOnly(t *testing.T) {
	// Five days into March the window reaches back into February. The
	// February days feed the baseline but not the month-to-date total.
	ce := &mockCostExplorer{daily: []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10}}
	eb := &mockEventBridge{}
	cw := &mockCloudWatch{}
	d := newTestDetector(ce, eb, cw)
	d.now = func() time.Time { return time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC) }

	finding, err := d.Handle(context.Background())
	require.NoError(t, err)

	// March 1st through 4th only, not the 140 total the window saw.
	assert.Equal(t, 40.0, finding.MonthToDateCost)
	assert.False(t, finding.OverBudget)
	assert.Empty(t, eb.entries)
	require.Len(t, cw.metrics, 1)
	assert.Equal(t, 40.0, *cw.metrics[0].MetricData[0].Value)
}

func TestQueryWindowCoversMonthStart(t *testing.T) {
	// Deep into the month the query must stretch past the trailing
	// baseline window back to the 1st.
	ce := &mockCostExplorer{daily: []float64{5}}
	d := newTestDetector(ce, &mockEventBridge{}, &mockCloudWatch{})
	d.now = func() time.Time { return time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC) }

	_, err := d.Handle(context.Background())
	require.NoError(t, err)

	require.Len(t, ce.requests, 1)
	assert.Equal(t, "2026-03-01", *ce.requests[0].TimePeriod.Start)
	assert.Equal(t, "2026-03-20", *ce.requests[0].TimePeriod.End)
}

func TestNoDataIsQuiet(t *testing.T) {
	ce := &mockCostExplorer{}
	eb := &mockEventBridge{}
	cw := &mockCloudWatch{}

	finding, err := newTestDetector(ce, eb, cw).Handle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, finding)
	assert.Empty(t, eb.entries)
	assert.Empty(t, cw.metrics)
}

func TestCostExplorerErrorPropagates(t *testing.T) {
	ce := &mockCostExplorer{err: fmt.Errorf("access denied")}

	_, err := newTestDetector(ce, &mockEventBridge{}, &mockCloudWatch{}).Handle(context.Background())
	assert.Error(t, err)
}
