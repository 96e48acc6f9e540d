package redisstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// HandleFunc processes one entry's payload. Ack decides from its error
// whether the entry is acknowledged.
type HandleFunc func(ctx context.Context, stream string, payload []byte) error

type streamReader interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *goredis.StatusCmd
	XReadGroup(ctx context.Context, a *goredis.XReadGroupArgs) *goredis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *goredis.IntCmd
	XAutoClaim(ctx context.Context, a *goredis.XAutoClaimArgs) *goredis.XAutoClaimCmd
}

// ConsumerConfig configures a consumer group reader
type ConsumerConfig struct {
	Streams  []string
	Group    string
	Consumer string
	// Block is how long one read waits for new entries
	Block time.Duration
	Count int64
	// ReclaimIdle is how long an un-acknowledged entry stays with a consumer
	// before it is claimed again for redelivery; zero disables reclaiming.
	ReclaimIdle time.Duration
}

// Consumer reads entries for a consumer group and acknowledges them once handled
type Consumer struct {
	config ConsumerConfig
	rdb    streamReader
	handle HandleFunc
	ack    func(error) bool
	logger *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewConsumer creates a consumer. ack reports whether an entry handled with
// the given error may be acknowledged.
func NewConsumer(rdb *goredis.Client, config ConsumerConfig, handle HandleFunc, ack func(error) bool, logger *zap.Logger) *Consumer {
	return newConsumer(rdb, config, handle, ack, logger)
}

func newConsumer(rdb streamReader, config ConsumerConfig, handle HandleFunc, ack func(error) bool, logger *zap.Logger) *Consumer {
	if config.Block <= 0 {
		config.Block = 2 * time.Second
	}
	if config.Count <= 0 {
		config.Count = 10
	}
	if ack == nil {
		ack = func(err error) bool { return err == nil }
	}
	return &Consumer{
		config: config,
		rdb:    rdb,
		handle: handle,
		ack:    ack,
		logger: logger,
	}
}

// Name identifies the consumer by its group membership
func (c *Consumer) Name() string {
	return c.config.Group + "/" + c.config.Consumer
}

// Start creates the consumer groups and begins reading in the background
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isRunning {
		return fmt.Errorf("stream consumer already running")
	}
	if len(c.config.Streams) == 0 {
		return fmt.Errorf("no streams configured")
	}

	for _, stream := range c.config.Streams {
		err := c.rdb.XGroupCreateMkStream(ctx, stream, c.config.Group, "0").Err()
		if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("create group %s on %s: %w", c.config.Group, stream, err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.isRunning = true

	go c.run(runCtx)

	c.logger.Info("Stream consumer started",
		zap.Strings("streams", c.config.Streams),
		zap.String("group", c.config.Group),
		zap.String("consumer", c.config.Consumer))
	return nil
}

// Stop cancels reading and waits for the loop to exit
func (c *Consumer) Stop() error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
	c.logger.Info("Stream consumer stopped")
	return nil
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)

	var lastReclaim time.Time
	for {
		if ctx.Err() != nil {
			return
		}

		if c.config.ReclaimIdle > 0 && time.Since(lastReclaim) >= c.config.ReclaimIdle {
			for _, stream := range c.config.Streams {
				if err := c.reclaim(ctx, stream); err != nil && ctx.Err() == nil {
					c.logger.Warn("Failed to reclaim idle entries", zap.String("stream", stream), zap.Error(err))
				}
			}
			lastReclaim = time.Now()
		}

		if err := c.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Stream read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

// poll reads one batch of new entries and handles them
func (c *Consumer) poll(ctx context.Context) error {
	streams := make([]string, 0, 2*len(c.config.Streams))
	streams = append(streams, c.config.Streams...)
	for range c.config.Streams {
		streams = append(streams, ">")
	}

	res, err := c.rdb.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    c.config.Group,
		Consumer: c.config.Consumer,
		Streams:  streams,
		Count:    c.config.Count,
		Block:    c.config.Block,
	}).Result()
	if errors.Is(err, goredis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, s := range res {
		for _, msg := range s.Messages {
			c.process(ctx, s.Stream, msg)
		}
	}
	return nil
}

// reclaim takes over entries another delivery left un-acknowledged
func (c *Consumer) reclaim(ctx context.Context, stream string) error {
	start := "0-0"
	for {
		msgs, next, err := c.rdb.XAutoClaim(ctx, &goredis.XAutoClaimArgs{
			Stream:   stream,
			Group:    c.config.Group,
			Consumer: c.config.Consumer,
			MinIdle:  c.config.ReclaimIdle,
			Start:    start,
			Count:    c.config.Count,
		}).Result()
		if err != nil {
			return err
		}
		for _, msg := range msgs {
			c.process(ctx, stream, msg)
		}
		if next == "0-0" || next == "" || len(msgs) == 0 {
			return nil
		}
		start = next
	}
}

func (c *Consumer) process(ctx context.Context, stream string, msg goredis.XMessage) {
	payload, ok := payloadOf(msg)
	if !ok {
		c.logger.Warn("Stream entry without payload", zap.String("stream", stream), zap.String("entry_id", msg.ID))
	}
	// Entries without a payload still reach the handler so they are counted
	// as malformed. They are acknowledged whatever it returns.
	err := c.handle(ctx, stream, payload)

	if ok && !c.ack(err) {
		c.logger.Warn("Stream entry left pending for redelivery",
			zap.String("stream", stream),
			zap.String("entry_id", msg.ID),
			zap.Error(err))
		return
	}

	if ackErr := c.rdb.XAck(ctx, stream, c.config.Group, msg.ID).Err(); ackErr != nil {
		c.logger.Error("Failed to acknowledge stream entry",
			zap.String("stream", stream),
			zap.String("entry_id", msg.ID),
			zap.Error(ackErr))
	}
}

func payloadOf(msg goredis.XMessage) ([]byte, bool) {
	switch v := msg.Values[fieldPayload].(type) {
	case string:
		return []byte(v), true
	case []byte:
		return v, true
	default:
		return nil, false
	}
}
