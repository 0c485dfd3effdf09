package main

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog"

	"github.com/platform-team/observability/events"
)

// mockSNS implements SNSAPI for testing.
type mockSNS struct {
	publishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	published   []*sns.PublishInput
}

func (m *mockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.published = append(m.published, params)
	if m.publishFunc != nil {
		return m.publishFunc(ctx, params, optFns...)
	}
	return &sns.PublishOutput{}, nil
}

// mockEventBridge implements EventBridgeAPI for testing.
type mockEventBridge struct {
	putEventsFunc func(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
	entries       []*eventbridge.PutEventsInput
}

func (m *mockEventBridge) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	m.entries = append(m.entries, params)
	if m.putEventsFunc != nil {
		return m.putEventsFunc(ctx, params, optFns...)
	}
	return &eventbridge.PutEventsOutput{}, nil
}

func testTopicARNs() map[string]string {
	return map[string]string{
		events.SeverityCritical: "arn:aws:sns:us-east-1:123456789012:observability-critical-dev",
		events.SeverityHigh:     "arn:aws:sns:us-east-1:123456789012:observability-high-dev",
		events.SeverityMedium:   "arn:aws:sns:us-east-1:123456789012:observability-medium-dev",
		events.SeverityLow:      "arn:aws:sns:us-east-1:123456789012:observability-low-dev",
	}
}

func newTestProcessor(snsClient *mockSNS, ebClient *mockEventBridge) *Processor {
	return &Processor{
		sns:          snsClient,
		eventbridge:  ebClient,
		topicARNs:    testTopicARNs(),
		eventBusName: "observability-dev",
		environment:  "dev",
		runbookBase:  "https://runbooks.example.com",
		region:       "us-east-1",
		log:          zerolog.New(io.Discard),
	}
}
