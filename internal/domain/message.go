package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RawMessage is an unprocessed message from the batch source topic.
type RawMessage struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// QueryPayload is the JSON body of a batch query message.
type QueryPayload struct {
	Query string `json:"query"`
}

// ParseQueryMessage decodes a raw message into a validated query.
func ParseQueryMessage(raw RawMessage) (LocationQuery, error) {
	var p QueryPayload
	if err := json.Unmarshal(raw.Value, &p); err != nil {
		return "", fmt.Errorf("unmarshal query message: %w", err)
	}
	q, err := NewLocationQuery(p.Query)
	if err != nil {
		return "", fmt.Errorf("validate query message: %w", err)
	}
	return q, nil
}
