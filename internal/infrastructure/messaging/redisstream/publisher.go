package redisstream

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/claims-service/internal/application/port"
)

type streamAdder interface {
	XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd
}

// Publisher appends events to a stream named after the topic
type Publisher struct {
	rdb    streamAdder
	maxLen int64
	closer func() error
	logger *zap.Logger
}

// NewPublisher creates a stream publisher. maxLen caps each stream
// approximately; zero leaves streams unbounded.
func NewPublisher(rdb *goredis.Client, maxLen int64, logger *zap.Logger) *Publisher {
	return &Publisher{rdb: rdb, maxLen: maxLen, closer: rdb.Close, logger: logger}
}

// Publish adds one entry carrying the key and payload
func (p *Publisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	args := &goredis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{
			fieldKey:     key,
			fieldPayload: payload,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.rdb.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("%w: xadd %s: %v", port.ErrPublishFailure, topic, err)
	}

	p.logger.Debug("Stream entry added",
		zap.String("stream", topic),
		zap.String("key", key),
		zap.String("entry_id", id))
	return nil
}

// Close closes the underlying client
func (p *Publisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

var _ port.EventPublisher = (*Publisher)(nil)
