// Package notify publishes checkpoint commit notifications to Redis Pub/Sub.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/longcipher/sui-indexer/internal/ingester"
	"github.com/longcipher/sui-indexer/internal/logger"
	"github.com/longcipher/sui-indexer/pkg/config"
	"github.com/redis/go-redis/v9"
)

const (
	publishTimeout = 3 * time.Second
	drainTimeout   = 5 * time.Second
)

// CheckpointCommitted is the JSON payload published after every commit.
type CheckpointCommitted struct {
	Stream       string    `json:"stream"`
	Sequence     uint64    `json:"sequence"`
	Digest       string    `json:"digest"`
	Latest       uint64    `json:"latest"`
	Events       int       `json:"events"`
	Transactions int       `json:"transactions"`
	DurationMs   int64     `json:"duration_ms"`
	CommittedAt  time.Time `json:"committed_at"`
}

// NewCheckpointCommitted builds the payload for a commit summary.
func NewCheckpointCommitted(s ingester.CommitSummary, at time.Time) CheckpointCommitted {
	return CheckpointCommitted{
		Stream:       s.Stream,
		Sequence:     s.Sequence,
		Digest:       s.Digest,
		Latest:       s.Latest,
		Events:       s.Events,
		Transactions: s.Transactions,
		DurationMs:   s.Duration.Milliseconds(),
		CommittedAt:  at.UTC(),
	}
}

// Publisher sends commit notifications. Publishing is best-effort: messages are
// queued by the commit hook and sent by a single worker, so a slow or unreachable
// Redis never holds up the ingestion loop. A full queue drops the message.
type Publisher struct {
	client  *redis.Client
	channel string
	log     *logger.Logger

	queue   chan CheckpointCommitted
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// New creates a publisher for cfg and starts its worker. An unreachable server is
// reported in the log only.
func New(ctx context.Context, cfg config.NotifyConfig, log *logger.Logger) (*Publisher, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid notify.redis_url: %w", err)
	}

	opts.PoolSize = 2
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = publishTimeout
	opts.WriteTimeout = publishTimeout

	queueSize := cfg.QueueSize
	if queueSize < 1 {
		queueSize = config.DefaultNotifyQueueSize
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		client:  redis.NewClient(opts),
		channel: cfg.Channel,
		log:     log,
		queue:   make(chan CheckpointCommitted, queueSize),
		ctx:     workerCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()

	if err := p.client.Ping(pingCtx).Err(); err != nil {
		log.Warnw("redis is not reachable, notifications will be dropped until it is",
			"addr", opts.Addr, "error", err)
	} else {
		log.Infow("connected to redis", "addr", opts.Addr, "db", opts.DB, "channel", cfg.Channel)
	}

	go p.run()

	return p, nil
}

// Channel returns the Pub/Sub channel notifications go to.
func (p *Publisher) Channel() string {
	return p.channel
}

// Dropped returns how many notifications were discarded because the queue was full
// or the publisher was closed.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Enqueue queues msg for publishing without blocking.
func (p *Publisher) Enqueue(msg CheckpointCommitted) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.drop(msg, "closed")
		return false
	}

	select {
	case p.queue <- msg:
		return true
	default:
		p.drop(msg, "queue full")
		return false
	}
}

func (p *Publisher) drop(msg CheckpointCommitted, reason string) {
	p.dropped.Add(1)
	notificationsTotal.WithLabelValues(statusDropped).Inc()
	p.log.Debugw("dropped checkpoint notification", "sequence", msg.Sequence, "reason", reason)
}

func (p *Publisher) run() {
	defer close(p.done)

	for msg := range p.queue {
		if p.ctx.Err() != nil {
			p.drop(msg, "shutting down")
			continue
		}
		p.Publish(p.ctx, msg)
	}
}

// Publish sends msg to the channel synchronously.
func (p *Publisher) Publish(ctx context.Context, msg CheckpointCommitted) {
	payload, err := json.Marshal(msg)
	if err != nil {
		notificationsTotal.WithLabelValues(statusFailed).Inc()
		p.log.Warnw("failed to encode notification", "sequence", msg.Sequence, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		notificationsTotal.WithLabelValues(statusFailed).Inc()
		p.log.Warnw("failed to publish notification",
			"channel", p.channel,
			"sequence", msg.Sequence,
			"error", err)
		return
	}

	notificationsTotal.WithLabelValues(statusPublished).Inc()
	p.log.Debugw("published checkpoint notification", "channel", p.channel, "sequence", msg.Sequence)
}

// Observer adapts the publisher to the ingestion loop's commit hook.
func (p *Publisher) Observer() ingester.Observer {
	return func(s ingester.CommitSummary) {
		p.Enqueue(NewCheckpointCommitted(s, time.Now()))
	}
}

// Close stops accepting notifications, gives the worker drainTimeout to flush the
// queue, then drops whatever is left and closes the Redis connection pool.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	timer := time.NewTimer(drainTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
	case <-timer.C:
		p.log.Warnw("notification queue not drained in time", "pending", len(p.queue))
		p.cancel()
		<-p.done
	}
	p.cancel()

	return p.client.Close()
}
