package events

import (
	"context"
	"encoding/json"
	"fmt"

	"talent-match/internal/pipeline"

	"github.com/redis/go-redis/v9"
)

// StreamPublisher emits match batches onto the outbound stream for the
// delivery and realtime systems to consume.
type StreamPublisher struct {
	client *redis.Client
	stream string
}

func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream}
}

func (p *StreamPublisher) PublishMatchBatch(ctx context.Context, batch pipeline.MatchBatch) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("nil publisher")
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"type":    TypeMatchBatch,
			"payload": payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish %s: %w", TypeMatchBatch, err)
	}
	return nil
}
