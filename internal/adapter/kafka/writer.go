package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/ej-indicator-service/internal/config"
	"github.com/couchcryptid/ej-indicator-service/internal/domain"
)

// Writer produces analysis results to the sink topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch publishes results in a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, results []domain.AnalysisResult) error {
	if len(results) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(results))
	for i := range results {
		msg, err := serializeToMessage(results[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write analysis results: %w", err)
	}
	w.logger.Debug("analysis results published", "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an AnalysisResult into a Kafka message keyed by
// the result ID.
func serializeToMessage(res domain.AnalysisResult) (kafkago.Message, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize analysis result: %w", err)
	}
	headers := []kafkago.Header{
		{Key: "source_mode", Value: []byte(res.SourceMode)},
		{Key: "analyzed_at", Value: []byte(res.AnalyzedAt.Format(time.RFC3339))},
	}
	if res.FallbackReason != domain.ReasonNone {
		headers = append(headers, kafkago.Header{Key: "fallback_reason", Value: []byte(res.FallbackReason)})
	}
	return kafkago.Message{
		Key:     []byte(res.ID),
		Value:   data,
		Headers: headers,
	}, nil
}
