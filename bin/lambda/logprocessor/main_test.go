package main

import (
	"context"
	"testing"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMarksRecordsIndividually(t *testing.T) {
	event := awsevents.KinesisFirehoseEvent{
		Records: []awsevents.KinesisFirehoseEventRecord{
			{RecordID: "1", Data: []byte(`{"level":"error","msg":"boom"}`)},
			{RecordID: "2", Data: []byte{0xff, 0xfe}},
			{RecordID: "3", Data: []byte("plain text line")},
			{RecordID: "4", Data: []byte(`{"unterminated":`)},
			{RecordID: "5", Data: nil},
		},
	}

	resp, err := Handle(context.Background(), event)
	require.NoError(t, err)
	require.Len(t, resp.Records, 5)

	want := map[string]string{
		"1": awsevents.KinesisFirehoseTransformedStateOk,
		"2": awsevents.KinesisFirehoseTransformedStateProcessingFailed,
		"3": awsevents.KinesisFirehoseTransformedStateOk,
		"4": awsevents.KinesisFirehoseTransformedStateProcessingFailed,
		"5": awsevents.KinesisFirehoseTransformedStateProcessingFailed,
	}
	for _, record := range resp.Records {
		assert.Equal(t, want[record.RecordID], record.Result, "record %s", record.RecordID)
	}
}

func TestHandleEmptyBatch(t *testing.T) {
	resp, err := Handle(context.Background(), awsevents.KinesisFirehoseEvent{})
	require.NoError(t, err)
	assert.Empty(t, resp.Records)
}

func TestDataPassedThroughUnchanged(t *testing.T) {
	payload := []byte(`{"level":"info","msg":"hello"}`)
	resp, err := Handle(context.Background(), awsevents.KinesisFirehoseEvent{
		Records: []awsevents.KinesisFirehoseEventRecord{{RecordID: "1", Data: payload}},
	})
	require.NoError(t, err)
	assert.Equal(t, payload, []byte(resp.Records[0].Data))
}
