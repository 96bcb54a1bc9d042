package notify

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/longcipher/sui-indexer/internal/ingester"
	"github.com/longcipher/sui-indexer/internal/logger"
	"github.com/longcipher/sui-indexer/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestNewCheckpointCommitted(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	msg := NewCheckpointCommitted(ingester.CommitSummary{
		Stream:       "checkpoints",
		Sequence:     101,
		Digest:       "CP101",
		Latest:       150,
		Events:       12,
		Transactions: 4,
		Duration:     1500 * time.Millisecond,
	}, at)

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"stream": "checkpoints",
		"sequence": 101,
		"digest": "CP101",
		"latest": 150,
		"events": 12,
		"transactions": 4,
		"duration_ms": 1500,
		"committed_at": "2025-03-01T11:00:00Z"
	}`, string(data))
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(context.Background(), config.NotifyConfig{RedisURL: "http://localhost:6379"}, logger.NewNopLogger())
	require.ErrorContains(t, err, "invalid notify.redis_url")
}

// closedAddr returns a local address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestPublisher_UnreachableIsBestEffort(t *testing.T) {
	cfg := config.NotifyConfig{Enabled: true, RedisURL: "redis://" + closedAddr(t) + "/0"}
	cfg.ApplyDefaults()

	p, err := New(context.Background(), cfg, logger.NewNopLogger())
	require.NoError(t, err)
	defer p.Close()

	require.Equal(t, "sui-indexer:checkpoint.committed", p.Channel())

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Observer()(ingester.CommitSummary{Stream: "checkpoints", Sequence: 1})
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("publish blocked")
	}
}

// silentRedis accepts connections and never answers, like a stalled server.
// The returned func hangs up on every client.
func silentRedis(t *testing.T) (string, func()) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		conns   []net.Conn
		stopped bool
	)
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			if stopped {
				c.Close()
			} else {
				conns = append(conns, c)
			}
			mu.Unlock()
		}
	}()

	stop := func() {
		l.Close()
		mu.Lock()
		defer mu.Unlock()
		stopped = true
		for _, c := range conns {
			c.Close()
		}
	}
	t.Cleanup(stop)
	return l.Addr().String(), stop
}

func TestPublisher_StalledRedisDoesNotBlockCommits(t *testing.T) {
	addr, hangUp := silentRedis(t)
	cfg := config.NotifyConfig{Enabled: true, RedisURL: "redis://" + addr + "/0", QueueSize: 1}
	cfg.ApplyDefaults()

	p, err := New(context.Background(), cfg, logger.NewNopLogger())
	require.NoError(t, err)

	observe := p.Observer()
	start := time.Now()
	for seq := uint64(1); seq <= 5; seq++ {
		observe(ingester.CommitSummary{Stream: "checkpoints", Sequence: seq})
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)

	// one message in flight, one queued, the rest dropped
	require.GreaterOrEqual(t, p.Dropped(), uint64(3))

	hangUp()
	require.NoError(t, p.Close())
	require.False(t, p.Enqueue(CheckpointCommitted{Sequence: 6}))
	require.NoError(t, p.Close())
}
