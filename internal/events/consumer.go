package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"talent-match/internal/config"
	"talent-match/internal/pipeline"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TriggerHandler is the unit of work invoked per routed event. The match
// Generator satisfies it; tests substitute fakes.
type TriggerHandler interface {
	ForSubject(ctx context.Context, subjectID uuid.UUID) (pipeline.Summary, error)
	ForOpportunity(ctx context.Context, opportunityID uuid.UUID) (pipeline.Summary, error)
}

// Consumer reads domain events from the inbound stream through a consumer
// group and routes them to the matching pipeline. Successfully handled
// messages are acked; failed ones stay pending and are re-claimed after
// ClaimMinIdle, which is the broker-redelivery half of the failure
// contract. Malformed messages are acked away so they cannot loop forever.
type Consumer struct {
	client  *redis.Client
	cfg     config.RedisConfig
	handler TriggerHandler
	log     *zap.Logger
}

func NewConsumer(client *redis.Client, cfg config.RedisConfig, handler TriggerHandler, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{client: client, cfg: cfg, handler: handler, log: logger}
}

// Run blocks until ctx is cancelled. In-flight messages finish their
// current unit of work before Run returns.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	workers := c.cfg.ConsumerWorkers
	if workers <= 0 {
		workers = 1
	}

	msgs := make(chan redis.XMessage, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for msg := range msgs {
				c.handle(ctx, msg)
			}
		}()
	}

	defer func() {
		close(msgs)
		wg.Wait()
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		for _, msg := range c.claimStale(ctx) {
			select {
			case msgs <- msg:
			case <-ctx.Done():
				return nil
			}
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.cfg.ConsumerGroup,
			Consumer: c.cfg.ConsumerName,
			Streams:  []string{c.cfg.InboundStream, ">"},
			Count:    int64(workers),
			Block:    c.cfg.BlockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			c.log.Error("read inbound stream", zap.Error(err))
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				select {
				case msgs <- msg:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.InboundStream, c.cfg.ConsumerGroup, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// claimStale takes over messages another consumer read but never acked,
// so a crashed worker's triggers get re-processed.
func (c *Consumer) claimStale(ctx context.Context) []redis.XMessage {
	if c.cfg.ClaimMinIdle <= 0 {
		return nil
	}
	msgs, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.cfg.InboundStream,
		Group:    c.cfg.ConsumerGroup,
		Consumer: c.cfg.ConsumerName,
		MinIdle:  c.cfg.ClaimMinIdle,
		Start:    "0",
		Count:    16,
	}).Result()
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, redis.Nil) {
			c.log.Error("claim stale messages", zap.Error(err))
		}
		return nil
	}
	return msgs
}

func (c *Consumer) handle(ctx context.Context, msg redis.XMessage) {
	ev, ok := decodeTrigger(msg)
	if !ok {
		c.log.Warn("malformed event dropped", zap.String("message_id", msg.ID))
		c.ack(ctx, msg.ID)
		return
	}

	var err error
	switch ev.Type {
	case TypeSubjectCreated, TypeSubjectUpdated:
		_, err = c.handler.ForSubject(ctx, ev.EntityID)
	case TypeOpportunityCreated:
		_, err = c.handler.ForOpportunity(ctx, ev.EntityID)
	default:
		c.log.Warn("unknown event type dropped",
			zap.String("message_id", msg.ID),
			zap.String("type", ev.Type),
		)
		c.ack(ctx, msg.ID)
		return
	}

	if err != nil {
		// Leave the message pending; XAutoClaim redelivers it later.
		c.log.Warn("trigger failed, leaving for redelivery",
			zap.String("message_id", msg.ID),
			zap.String("type", ev.Type),
			zap.String("entity_id", ev.EntityID.String()),
			zap.Error(err),
		)
		return
	}
	c.ack(ctx, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, c.cfg.InboundStream, c.cfg.ConsumerGroup, id).Err(); err != nil {
		c.log.Error("ack failed", zap.String("message_id", id), zap.Error(err))
	}
}

func decodeTrigger(msg redis.XMessage) (TriggerEvent, bool) {
	raw, ok := msg.Values["payload"]
	if !ok {
		return TriggerEvent{}, false
	}

	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return TriggerEvent{}, false
	}

	var ev TriggerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return TriggerEvent{}, false
	}
	if ev.Type == "" {
		if t, ok := msg.Values["type"].(string); ok {
			ev.Type = t
		}
	}
	if ev.EntityID == uuid.Nil || ev.Type == "" {
		return TriggerEvent{}, false
	}
	return ev, true
}
