// Package kafka publishes assembly verdicts to a Kafka audit topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/cordexkit/evaltools/internal/domain"
)

// AuditWriter produces verdict events to a Kafka topic. It implements
// assemble.AuditSink.
type AuditWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewAuditWriter creates a Kafka producer for the audit topic.
func NewAuditWriter(brokers []string, topic string, logger *slog.Logger) *AuditWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &AuditWriter{writer: w, logger: logger}
}

// Publish serializes and publishes the verdicts of one assembly run in a
// single WriteMessages call.
func (w *AuditWriter) Publish(ctx context.Context, verdicts []domain.Verdict) error {
	if len(verdicts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(verdicts))
	for i := range verdicts {
		msg, err := serializeToMessage(verdicts[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	w.logger.Debug("audit verdicts published", "count", len(verdicts))
	return nil
}

func (w *AuditWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a verdict into a Kafka message keyed by
// instance identifier, so one run's verdicts for a dataset stay in order.
func serializeToMessage(v domain.Verdict) (kafkago.Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize verdict: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(v.InstanceID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "outcome", Value: []byte(v.Outcome)},
			{Key: "stage", Value: []byte(v.Stage)},
			{Key: "decided_at", Value: []byte(v.Time.Format(time.RFC3339))},
		},
	}, nil
}
