package store

import (
	"context"
	"testing"

	"github.com/longcipher/sui-indexer/pkg/types"
	"github.com/stretchr/testify/require"
)

func ptr(v uint64) *uint64 { return &v }

// seedCheckpoints commits checkpoints 1..3 with two transactions of three events each.
func seedCheckpoints(t *testing.T) *Writer {
	t.Helper()

	w, sqlDB := setupWriter(t)
	ctx := context.Background()
	require.NoError(t, w.Initialize(ctx, 0))
	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, w.Commit(ctx, pendingFor(seq, 2, 3)))
	}

	_, err := sqlDB.Exec(`UPDATE transactions SET status = 'failure', sender = '0xdef' WHERE digest = 'tx-2-1'`)
	require.NoError(t, err)
	_, err = sqlDB.Exec(`UPDATE events SET sender = '0xdef' WHERE transaction_digest = 'tx-2-1'`)
	require.NoError(t, err)

	return w
}

func TestWriter_QueryEvents(t *testing.T) {
	w := seedCheckpoints(t)

	tests := []struct {
		name      string
		query     types.EventQuery
		total     int64
		wantFirst string
		wantLen   int
	}{
		{name: "all", query: types.EventQuery{}, total: 18, wantLen: 18, wantFirst: "tx-1-0:0"},
		{name: "range", query: types.EventQuery{FromCheckpoint: ptr(2), ToCheckpoint: ptr(2)},
			total: 6, wantLen: 6, wantFirst: "tx-2-0:0"},
		{name: "sender", query: types.EventQuery{Sender: "0xdef"}, total: 3, wantLen: 3, wantFirst: "tx-2-1:0"},
		{name: "digest", query: types.EventQuery{TxDigest: "tx-3-0"}, total: 3, wantLen: 3, wantFirst: "tx-3-0:0"},
		{name: "page", query: types.EventQuery{Limit: 4, Offset: 5}, total: 18, wantLen: 4, wantFirst: "tx-1-1:2"},
		{name: "descending", query: types.EventQuery{Limit: 1, Descending: true}, total: 18, wantLen: 1,
			wantFirst: "tx-3-1:2"},
		{name: "type and module", query: types.EventQuery{Module: "coin", EventType: "0x2::coin::CoinMinted",
			FromCheckpoint: ptr(3)}, total: 6, wantLen: 6, wantFirst: "tx-3-0:0"},
		{name: "no match", query: types.EventQuery{PackageID: "0x3"}, total: 0, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, total, err := w.QueryEvents(context.Background(), tt.query)
			require.NoError(t, err)
			require.Equal(t, tt.total, total)
			require.Len(t, events, tt.wantLen)
			if tt.wantLen > 0 {
				require.Equal(t, tt.wantFirst, events[0].Key())
				require.Equal(t, []string{"mint"}, events[0].Tags)
			}
		})
	}
}

func TestWriter_QueryTransactions(t *testing.T) {
	w := seedCheckpoints(t)
	ctx := context.Background()

	txs, total, err := w.QueryTransactions(ctx, types.TransactionQuery{})
	require.NoError(t, err)
	require.Equal(t, int64(6), total)
	require.Len(t, txs, 6)
	require.Equal(t, "tx-1-0", txs[0].Digest)

	txs, total, err = w.QueryTransactions(ctx, types.TransactionQuery{Status: "failure"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "tx-2-1", txs[0].Digest)
	require.Equal(t, "0xdef", txs[0].Sender)

	txs, total, err = w.QueryTransactions(ctx, types.TransactionQuery{ToCheckpoint: ptr(2), Descending: true, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, int64(4), total)
	require.Equal(t, []string{"tx-2-1", "tx-2-0"}, []string{txs[0].Digest, txs[1].Digest})
}

func TestWriter_TransactionByDigest(t *testing.T) {
	w := seedCheckpoints(t)
	ctx := context.Background()

	tx, err := w.TransactionByDigest(ctx, "tx-3-1")
	require.NoError(t, err)
	require.Equal(t, uint64(3), tx.CheckpointSequence)
	require.Equal(t, uint64(1000), tx.GasUsed)

	_, err = w.TransactionByDigest(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
