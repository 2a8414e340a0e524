package events

import (
	"context"
	"fmt"
	"time"

	"talent-match/internal/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Inbound domain event types this engine reacts to.
const (
	TypeSubjectCreated     = "subject.created"
	TypeSubjectUpdated     = "subject.updated"
	TypeOpportunityCreated = "opportunity.created"
)

// TypeMatchBatch is the outbound event type for per-trigger match batches.
const TypeMatchBatch = "match.created-batch"

// TriggerEvent is the inbound payload. Producers may attach more attributes;
// only the type and entity id matter here since the pipeline always fetches
// full snapshots.
type TriggerEvent struct {
	Type     string    `json:"type"`
	EntityID uuid.UUID `json:"entity_id"`
}

// NewClient connects to the broker and verifies it is reachable. Unlike a
// cache, the stream connection is load-bearing: failure to reach it is a
// startup error, not a degraded mode.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis unreachable at %s: %w", cfg.Addr(), err)
	}
	return client, nil
}
