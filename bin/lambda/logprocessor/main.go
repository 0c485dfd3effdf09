// Log processor. Firehose transformation stage for the log delivery
// stream: validates each record and passes it through, isolating failures
// per record so one bad payload never stalls the batch.
package main

import (
	"context"
	"encoding/json"
	"os"
	"unicode/utf8"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"
)

var log = zerolog.New(os.Stdout).With().Timestamp().Str("handler", "log-processor").Logger()

// Handle transforms one Firehose batch. Records that are not valid UTF-8 or
// JSON-decodable log lines are marked ProcessingFailed and land in the
// error prefix; everything else is passed through unchanged.
func Handle(ctx context.Context, event awsevents.KinesisFirehoseEvent) (awsevents.KinesisFirehoseResponse, error) {
	var response awsevents.KinesisFirehoseResponse

	ok, failed := 0, 0
	for _, record := range event.Records {
		result := awsevents.KinesisFirehoseResponseRecord{
			RecordID: record.RecordID,
			Data:     record.Data,
		}

		if validRecord(record.Data) {
			result.Result = awsevents.KinesisFirehoseTransformedStateOk
			ok++
		} else {
			result.Result = awsevents.KinesisFirehoseTransformedStateProcessingFailed
			failed++
		}
		response.Records = append(response.Records, result)
	}

	log.Info().Int("ok", ok).Int("failed", failed).Msg("Processed batch")
	return response, nil
}

// validRecord accepts UTF-8 text; JSON payloads must additionally decode.
func validRecord(data []byte) bool {
	if len(data) == 0 || !utf8.Valid(data) {
		return false
	}
	trimmed := firstNonSpace(data)
	if trimmed == '{' || trimmed == '[' {
		return json.Valid(data)
	}
	return true
}

func firstNonSpace(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b
		}
	}
	return 0
}

func main() {
	lambda.Start(Handle)
}
