package messaging

import (
	"context"
	"encoding/json"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bardlex/guardreport/internal/report"
	"github.com/bardlex/guardreport/pkg/errors"
)

// ReportSink publishes reports to a JSON topic and its protobuf companion
type ReportSink struct {
	client *KafkaClient
	topic  string
}

// NewReportSink creates a sink publishing to topic and ProtoTopic(topic)
func NewReportSink(client *KafkaClient, topic string) *ReportSink {
	if topic == "" {
		topic = TopicReports
	}
	return &ReportSink{client: client, topic: topic}
}

// Name implements report.Sink
func (s *ReportSink) Name() string {
	return "kafka"
}

// Publish implements report.Sink. Both messages are keyed by request txid.
func (s *ReportSink) Publish(ctx context.Context, r *report.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "encode_report",
			"failed to encode report")
	}
	if err := s.client.PublishJSON(ctx, s.topic, r.RequestTxID, data); err != nil {
		return err
	}

	msg, err := ReportStruct(data)
	if err != nil {
		return err
	}
	return s.client.PublishProto(ctx, ProtoTopic(s.topic), r.RequestTxID, msg)
}

// ReportStruct converts an encoded report into a protobuf Struct
func ReportStruct(data []byte) (*structpb.Struct, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "encode_report",
			"report is not a JSON object")
	}

	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "encode_report",
			"report does not fit a protobuf Struct")
	}
	return msg, nil
}
