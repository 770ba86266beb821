package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/ej-indicator-service/internal/config"
	"github.com/couchcryptid/ej-indicator-service/internal/domain"
)

// Reader consumes location query messages from the source topic.
// It implements pipeline.BatchExtractor.
type Reader struct {
	reader        *kafkago.Reader
	flushInterval time.Duration
	logger        *slog.Logger
}

// NewReader creates a consumer-group reader for the configured source topic.
// Offsets are committed explicitly after each message is handled.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaSourceTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
	return &Reader{reader: r, flushInterval: cfg.BatchFlushInterval, logger: logger}
}

// ExtractBatch fetches up to batchSize messages. It returns early with a
// partial (possibly empty) batch once the flush interval elapses.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawMessage, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.flushInterval)
	defer cancel()

	batch := make([]domain.RawMessage, 0, batchSize)
	for len(batch) < batchSize {
		msg, err := r.reader.FetchMessage(fetchCtx)
		if err != nil {
			if ctx.Err() != nil {
				return batch, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return batch, nil
			}
			return batch, fmt.Errorf("fetch message: %w", err)
		}
		batch = append(batch, r.mapMessage(msg))
	}
	return batch, nil
}

func (r *Reader) mapMessage(msg kafkago.Message) domain.RawMessage {
	raw := mapMessageToRaw(msg)
	raw.Commit = func(ctx context.Context) error {
		return r.reader.CommitMessages(ctx, msg)
	}
	return raw
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

// mapMessageToRaw copies a Kafka message into the domain representation.
func mapMessageToRaw(msg kafkago.Message) domain.RawMessage {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.RawMessage{
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}
}
