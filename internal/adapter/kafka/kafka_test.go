package kafka

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ej-indicator-service/internal/domain"
)

func TestMapMessageToRaw(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("key-1"),
		Value:     []byte(`{"query":"Chicago"}`),
		Topic:     "ej-location-queries",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("batch-import")},
		},
	}

	raw := mapMessageToRaw(msg)

	assert.Equal(t, []byte("key-1"), raw.Key)
	assert.JSONEq(t, `{"query":"Chicago"}`, string(raw.Value))
	assert.Equal(t, "ej-location-queries", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "batch-import", raw.Headers["source"])
	assert.Nil(t, raw.Commit)

	q, err := domain.ParseQueryMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.LocationQuery("Chicago"), q)
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	res := domain.AnalysisResult{
		ID:         "res-1",
		Seq:        7,
		Query:      "Chicago",
		SourceMode: domain.SourceLive,
		Schema:     domain.SchemaAirQuality,
		AnalyzedAt: now,
	}

	msg, err := serializeToMessage(res)
	require.NoError(t, err)

	assert.Equal(t, []byte("res-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"source_mode":"LIVE"`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "source_mode", msg.Headers[0].Key)
	assert.Equal(t, []byte("LIVE"), msg.Headers[0].Value)
	assert.Equal(t, "analyzed_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestSerializeToMessage_FallbackReasonHeader(t *testing.T) {
	res := domain.AnalysisResult{
		ID:             "res-2",
		SourceMode:     domain.SourceFallback,
		FallbackReason: domain.ReasonNotFound,
		FallbackEntry:  "default",
	}

	msg, err := serializeToMessage(res)
	require.NoError(t, err)

	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "fallback_reason", msg.Headers[2].Key)
	assert.Equal(t, []byte("not_found"), msg.Headers[2].Value)
	assert.Contains(t, string(msg.Value), `"fallback_reason":"not_found"`)
}
