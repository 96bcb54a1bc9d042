package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/longcipher/sui-indexer/internal/db"
	"github.com/longcipher/sui-indexer/internal/logger"
	"github.com/longcipher/sui-indexer/internal/migrations"
	"github.com/longcipher/sui-indexer/internal/retry"
	"github.com/longcipher/sui-indexer/pkg/config"
	"github.com/longcipher/sui-indexer/pkg/types"
	"github.com/stretchr/testify/require"
)

func setupWriter(t *testing.T) (*Writer, *sql.DB) {
	t.Helper()

	cfg := config.DatabaseConfig{URL: "sqlite://" + filepath.Join(t.TempDir(), "store.db")}
	cfg.ApplyDefaults()

	sqlDB, driver, err := db.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	log := logger.NewNopLogger()
	require.NoError(t, migrations.Run(log, sqlDB, driver))

	return New(sqlDB, driver, "checkpoints", retry.Policy{MaxAttempts: 1}, log), sqlDB
}

func processedEvent(seq uint64, digest string, eventSeq uint64) types.ProcessedEvent {
	return types.ProcessedEvent{
		RawEvent: types.RawEvent{
			CheckpointSequence: seq,
			TransactionDigest:  digest,
			EventSequence:      eventSeq,
			PackageID:          "0x2",
			ModuleName:         "coin",
			EventType:          "0x2::coin::CoinMinted",
			Sender:             "0xabc",
			Fields:             json.RawMessage(`{"amount":"10"}`),
			Timestamp:          time.UnixMilli(1700000000000).UTC(),
		},
		Metadata:    types.Metadata{Tags: []string{"mint"}},
		ID:          fmt.Sprintf("ev-%s-%d", digest, eventSeq),
		ProcessedAt: time.UnixMilli(1700000001000).UTC(),
	}
}

func processedTransaction(seq uint64, digest string) types.ProcessedTransaction {
	return types.ProcessedTransaction{
		RawTransaction: types.RawTransaction{
			Digest:             digest,
			CheckpointSequence: seq,
			Sender:             "0xabc",
			GasUsed:            1000,
			Status:             "success",
			Timestamp:          time.UnixMilli(1700000000000).UTC(),
		},
		ID:          "tx-" + digest,
		ProcessedAt: time.UnixMilli(1700000001000).UTC(),
	}
}

func pendingFor(seq uint64, txs int, eventsPerTx int) *Pending {
	p := NewPending(seq)
	for i := range txs {
		digest := fmt.Sprintf("tx-%d-%d", seq, i)
		result := BatchResult{Transactions: []types.ProcessedTransaction{processedTransaction(seq, digest)}}
		for j := range eventsPerTx {
			result.Events = append(result.Events, processedEvent(seq, digest, uint64(j)))
		}
		p.Stage(result)
	}
	return p
}

func TestWriter_Initialize(t *testing.T) {
	w, _ := setupWriter(t)
	ctx := context.Background()

	require.NoError(t, w.Initialize(ctx, 41))

	seq, err := w.CurrentProgress(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(41), seq)

	// an existing row wins over a new seed
	require.NoError(t, w.Initialize(ctx, 100))
	seq, err = w.CurrentProgress(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(41), seq)
}

func TestWriter_ProgressMissing(t *testing.T) {
	w, _ := setupWriter(t)

	_, err := w.CurrentProgress(context.Background())
	require.ErrorIs(t, err, ErrProgressMissing)
	require.True(t, retry.IsFatal(err))
}

func TestWriter_CommitAdvancesProgress(t *testing.T) {
	w, _ := setupWriter(t)
	ctx := context.Background()
	require.NoError(t, w.Initialize(ctx, 0))

	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, w.Commit(ctx, pendingFor(seq, 2, 3)))

		current, err := w.CurrentProgress(ctx)
		require.NoError(t, err)
		require.Equal(t, seq, current)
	}

	events, txs, err := w.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(18), events)
	require.Equal(t, int64(6), txs)
}

func TestWriter_CommitEmptyCheckpoint(t *testing.T) {
	w, _ := setupWriter(t)
	ctx := context.Background()
	require.NoError(t, w.Initialize(ctx, 9))

	require.NoError(t, w.Commit(ctx, NewPending(10)))

	current, err := w.CurrentProgress(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(10), current)
}

func TestWriter_CommitConflict(t *testing.T) {
	tests := []struct {
		name string
		seed uint64
		seq  uint64
	}{
		{name: "gap", seed: 1, seq: 3},
		{name: "behind", seed: 5, seq: 5},
		{name: "far behind", seed: 5, seq: 2},
		{name: "zero", seed: 0, seq: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := setupWriter(t)
			ctx := context.Background()
			require.NoError(t, w.Initialize(ctx, tt.seed))

			err := w.Commit(ctx, pendingFor(tt.seq, 1, 1))
			require.ErrorIs(t, err, ErrProgressConflict)
			require.Equal(t, retry.Fatal, retry.Classify(err))

			current, err := w.CurrentProgress(ctx)
			require.NoError(t, err)
			require.Equal(t, tt.seed, current)

			events, txs, err := w.Counts(ctx)
			require.NoError(t, err)
			require.Zero(t, events)
			require.Zero(t, txs)
		})
	}
}

func TestWriter_RecommitIsIdempotent(t *testing.T) {
	w, sqlDB := setupWriter(t)
	ctx := context.Background()
	require.NoError(t, w.Initialize(ctx, 0))

	require.NoError(t, w.Commit(ctx, pendingFor(1, 3, 2)))

	before, err := w.EventsByCheckpointRange(ctx, 1, 1)
	require.NoError(t, err)

	// simulate a crash after the data was written but before progress was observed
	_, err = sqlDB.Exec(`UPDATE progress SET sequence = 0 WHERE stream = $1`, w.Stream())
	require.NoError(t, err)

	again := pendingFor(1, 3, 2)
	require.NoError(t, w.Commit(ctx, again))

	events, txs, err := w.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(6), events)
	require.Equal(t, int64(3), txs)

	after, err := w.EventsByCheckpointRange(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestWriter_RetryFindsCommittedCheckpoint(t *testing.T) {
	w, _ := setupWriter(t)
	ctx := context.Background()
	require.NoError(t, w.Initialize(ctx, 0))
	require.NoError(t, w.Commit(ctx, pendingFor(1, 1, 1)))

	p := pendingFor(1, 1, 1)
	require.NoError(t, w.commitOnce(ctx, 1, p.Events(), p.Transactions(), true))

	err := w.commitOnce(ctx, 1, p.Events(), p.Transactions(), false)
	require.ErrorIs(t, err, ErrProgressConflict)

	current, err := w.CurrentProgress(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), current)
}

func TestWriter_ReadBack(t *testing.T) {
	w, _ := setupWriter(t)
	ctx := context.Background()
	require.NoError(t, w.Initialize(ctx, 0))

	p := NewPending(1)
	ev := processedEvent(1, "digest-a", 0)
	ev.Attributes = map[string]string{"protocol": "navi"}
	tx := processedTransaction(1, "digest-a")
	tx.Effects = json.RawMessage(`{"status":{"status":"success"}}`)
	p.Stage(BatchResult{Events: []types.ProcessedEvent{ev}, Transactions: []types.ProcessedTransaction{tx}})
	require.NoError(t, w.Commit(ctx, p))

	events, err := w.EventsByCheckpointRange(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, ev.Key(), events[0].Key())
	require.Equal(t, ev.Metadata, events[0].Metadata)
	require.JSONEq(t, string(ev.Fields), string(events[0].Fields))
	require.Equal(t, ev.Timestamp, events[0].Timestamp)
	require.Equal(t, ev.ID, events[0].ID)

	txs, err := w.TransactionsByCheckpointRange(ctx, 0, 5)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, tx.Digest, txs[0].Digest)
	require.Equal(t, tx.GasUsed, txs[0].GasUsed)
	require.JSONEq(t, string(tx.Effects), string(txs[0].Effects))
	require.Empty(t, txs[0].Tags)

	none, err := w.EventsByCheckpointRange(ctx, 2, 10)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestPending_StageDeduplicates(t *testing.T) {
	p := NewPending(7)
	batch := BatchResult{
		Events: []types.ProcessedEvent{
			processedEvent(7, "b", 1),
			processedEvent(7, "a", 0),
			processedEvent(7, "b", 0),
		},
		Transactions: []types.ProcessedTransaction{processedTransaction(7, "b"), processedTransaction(7, "a")},
	}

	p.Stage(batch)
	p.Stage(batch)

	events, txs := p.Len()
	require.Equal(t, 3, events)
	require.Equal(t, 2, txs)
	require.Equal(t, uint64(7), p.Sequence())

	keys := make([]string, 0, events)
	for _, ev := range p.Events() {
		keys = append(keys, ev.Key())
	}
	require.Equal(t, []string{"a:0", "b:0", "b:1"}, keys)
	require.Equal(t, "a", p.Transactions()[0].Digest)
}

func TestWriter_RoundTripsGoThroughRetryPolicy(t *testing.T) {
	w, sqlDB := setupWriter(t)
	require.NoError(t, sqlDB.Close())

	var retryErr *retry.Error

	err := w.Initialize(context.Background(), 0)
	require.ErrorAs(t, err, &retryErr)
	require.Equal(t, "initialize_progress", retryErr.Operation)

	_, _, err = w.Counts(context.Background())
	require.ErrorAs(t, err, &retryErr)
	require.Equal(t, "count_rows", retryErr.Operation)

	_, err = w.Progress(context.Background())
	require.ErrorAs(t, err, &retryErr)
	require.Equal(t, "read_progress", retryErr.Operation)
}
