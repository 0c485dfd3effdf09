package main

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platform-team/observability/events"
)

type mockCloudWatch struct {
	counts []float64
	err    error
}

func (m *mockCloudWatch) GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	base := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	out := &cloudwatch.GetMetricStatisticsOutput{}
	// Reverse order on purpose, the detector must sort by timestamp.
	for i := len(m.counts) - 1; i >= 0; i-- {
		out.Datapoints = append(out.Datapoints, cwtypes.Datapoint{
			Timestamp: aws.Time(base.Add(time.Duration(i) * time.Hour)),
			Sum:       aws.Float64(m.counts[i]),
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

func newTestDetector(cw *mockCloudWatch, eb *mockEventBridge) *Detector {
	return &Detector{
		cloudwatch:   cw,
		eventbridge:  eb,
		eventBusName: "observability-dev",
		environment:  "dev",
		sensitivity:  defaultSensitivity,
		now:          func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) },
		log:          zerolog.New(io.Discard),
	}
}

func TestSteadyErrorRateIsQuiet(t *testing.T) {
	cw := &mockCloudWatch{counts: []float64{10, 11, 9, 10, 10, 12, 10}}
	eb := &mockEventBridge{}

	finding, err := newTestDetector(cw, eb).Handle(context.Background())
	require.NoError(t, err)

	assert.False(t, finding.Anomalous)
	assert.Empty(t, eb.entries)
}

func TestErrorSpikeEmitsEvent(t *testing.T) {
	cw := &mockCloudWatch{counts: []float64{10, 11, 9, 10, 10, 12, 500}}
	eb := &mockEventBridge{}

	finding, err := newTestDetector(cw, eb).Handle(context.Background())
	require.NoError(t, err)

	assert.True(t, finding.Anomalous)
	assert.Equal(t, 500.0, finding.LatestErrorCount)
	require.Len(t, eb.entries, 1)
	entry := eb.entries[0].Entries[0]
	assert.Equal(t, events.SourcePlatform, *entry.Source)
	assert.Equal(t, events.DetailTypeLogAnomaly, *entry.DetailType)
	assert.Equal(t, "observability-dev", *entry.EventBusName)
}

func TestLatestWindowPickedByTimestamp(t *testing.T) {
	// The mock returns datapoints newest first; without sorting the
	// detector would compare the wrong window.
	cw := &mockCloudWatch{counts: []float64{500, 10, 10, 10, 10, 10, 10}}
	eb := &mockEventBridge{}

	finding, err := newTestDetector(cw, eb).Handle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10.0, finding.LatestErrorCount)
	assert.False(t, finding.Anomalous)
}

func TestSparseHistoryIsQuiet(t *testing.T) {
	cw := &mockCloudWatch{counts: []float64{10, 12}}
	eb := &mockEventBridge{}

	finding, err := newTestDetector(cw, eb).Handle(context.Background())
	require.NoError(t, err)

	assert.Zero(t, finding)
	assert.Empty(t, eb.entries)
}

func TestMetricFetchErrorPropagates(t *testing.T) {
	cw := &mockCloudWatch{err: fmt.Errorf("throttled")}

	_, err := newTestDetector(cw, &mockEventBridge{}).Handle(context.Background())
	assert.Error(t, err)
}
