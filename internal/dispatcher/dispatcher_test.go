package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/longcipher/sui-indexer/internal/logger"
	"github.com/longcipher/sui-indexer/internal/store"
	"github.com/longcipher/sui-indexer/pkg/processor"
	"github.com/longcipher/sui-indexer/pkg/types"
	"github.com/stretchr/testify/require"
)

func makeEvents(seq uint64, n int) []types.RawEvent {
	out := make([]types.RawEvent, n)
	for i := range n {
		out[i] = types.RawEvent{
			CheckpointSequence: seq,
			TransactionDigest:  fmt.Sprintf("tx-%03d", i),
			PackageID:          "0x2",
			ModuleName:         "coin",
			EventType:          "0x2::coin::CoinMinted",
		}
	}
	return out
}

func makeTransactions(seq uint64, n int) []types.RawTransaction {
	out := make([]types.RawTransaction, n)
	for i := range n {
		out[i] = types.RawTransaction{CheckpointSequence: seq, Digest: fmt.Sprintf("tx-%03d", i)}
	}
	return out
}

// instrumentedProcessor tracks how many items are processed at the same time and
// fails on the configured event keys.
type instrumentedProcessor struct {
	processor.Processor

	delay   time.Duration
	failOn  map[string]bool
	panicOn string

	running  atomic.Int32
	maxSeen  atomic.Int32
	mu       sync.Mutex
	attempts []string
}

func newInstrumented(delay time.Duration) *instrumentedProcessor {
	return &instrumentedProcessor{Processor: processor.NewDefault(), delay: delay, failOn: map[string]bool{}}
}

func (p *instrumentedProcessor) enter() func() {
	n := p.running.Add(1)
	for {
		seen := p.maxSeen.Load()
		if n <= seen || p.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	return func() { p.running.Add(-1) }
}

func (p *instrumentedProcessor) ProcessEvent(ctx context.Context, ev types.RawEvent) (types.ProcessedEvent, error) {
	defer p.enter()()
	time.Sleep(p.delay)

	p.mu.Lock()
	p.attempts = append(p.attempts, ev.Key())
	p.mu.Unlock()

	if ev.Key() == p.panicOn {
		panic("boom")
	}
	if p.failOn[ev.Key()] {
		return types.ProcessedEvent{}, errors.New("processor failure")
	}
	return p.Processor.ProcessEvent(ctx, ev)
}

func (p *instrumentedProcessor) ProcessTransaction(ctx context.Context, tx types.RawTransaction) (types.ProcessedTransaction, error) {
	defer p.enter()()
	time.Sleep(p.delay)
	return p.Processor.ProcessTransaction(ctx, tx)
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name      string
		events    int
		txs       int
		batchSize int
		want      []int
		wantKinds []Kind
	}{
		{
			name:      "events only",
			events:    120,
			batchSize: 50,
			want:      []int{50, 50, 20},
			wantKinds: []Kind{KindEvents, KindEvents, KindEvents},
		},
		{
			name:      "events then transactions",
			events:    3,
			txs:       5,
			batchSize: 4,
			want:      []int{3, 4, 1},
			wantKinds: []Kind{KindEvents, KindTransactions, KindTransactions},
		},
		{
			name:      "exact multiple",
			txs:       10,
			batchSize: 5,
			want:      []int{5, 5},
			wantKinds: []Kind{KindTransactions, KindTransactions},
		},
		{
			name:      "empty checkpoint",
			batchSize: 50,
		},
		{
			name:      "non-positive batch size",
			events:    2,
			batchSize: 0,
			want:      []int{1, 1},
			wantKinds: []Kind{KindEvents, KindEvents},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := Partition(7, makeEvents(7, tt.events), makeTransactions(7, tt.txs), tt.batchSize)
			require.Len(t, jobs, len(tt.want))

			for i, job := range jobs {
				require.Equal(t, i, job.Index)
				require.Equal(t, uint64(7), job.Sequence)
				require.Equal(t, tt.want[i], job.Len())
				require.Equal(t, tt.wantKinds[i], job.Kind)
			}
		})
	}
}

func TestPartition_PreservesOrder(t *testing.T) {
	events := makeEvents(1, 7)
	jobs := Partition(1, events, nil, 3)

	var flattened []types.RawEvent
	for _, job := range jobs {
		flattened = append(flattened, job.Events...)
	}
	require.Equal(t, events, flattened)
}

// 120 events, batch size 50, at most 2 concurrent batches.
func TestDispatch_BoundedConcurrency(t *testing.T) {
	proc := newInstrumented(2 * time.Millisecond)
	d := New(proc, 50, 2, logger.NewNopLogger())
	defer d.Close()

	pending := store.NewPending(100)
	summary, err := d.Dispatch(context.Background(), 100, makeEvents(100, 120), nil, pending)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Batches)
	require.Equal(t, 120, summary.Events)

	events, txs := pending.Len()
	require.Equal(t, 120, events)
	require.Zero(t, txs)
	require.LessOrEqual(t, proc.maxSeen.Load(), int32(2))
	require.Zero(t, proc.running.Load())
}

func TestDispatch_ConcurrencyNeverExceedsPoolSize(t *testing.T) {
	for _, maxConcurrent := range []int{1, 3, 8} {
		t.Run(fmt.Sprintf("max %d", maxConcurrent), func(t *testing.T) {
			proc := newInstrumented(time.Millisecond)
			d := New(proc, 2, maxConcurrent, logger.NewNopLogger())
			defer d.Close()

			_, err := d.Dispatch(context.Background(), 1, makeEvents(1, 40), makeTransactions(1, 40), store.NewPending(1))
			require.NoError(t, err)
			require.LessOrEqual(t, proc.maxSeen.Load(), int32(maxConcurrent))
			require.Equal(t, maxConcurrent, d.MaxConcurrent())
		})
	}
}

// A batch whose third item of five fails stages nothing.
func TestDispatch_FailedBatchIsNotStaged(t *testing.T) {
	events := makeEvents(9, 10)
	proc := newInstrumented(0)
	proc.failOn[events[2].Key()] = true

	d := New(proc, 5, 1, logger.NewNopLogger())
	defer d.Close()

	pending := store.NewPending(9)
	_, err := d.Dispatch(context.Background(), 9, events, nil, pending)
	require.Error(t, err)

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	require.Equal(t, uint64(9), batchErr.Sequence)
	require.Equal(t, 0, batchErr.Index)
	require.Equal(t, KindEvents, batchErr.Kind)
	require.Equal(t, events[2].Key(), batchErr.Item)
	require.Equal(t, 1, batchErr.Failed)

	for _, ev := range pending.Events() {
		require.NotContains(t, []string{events[0].Key(), events[1].Key(), events[2].Key()}, ev.Key())
	}

	// items after the failing one are not processed
	require.NotContains(t, proc.attempts, events[3].Key())
	require.NotContains(t, proc.attempts, events[4].Key())
}

func TestDispatch_OtherBatchesStillFinish(t *testing.T) {
	events := makeEvents(3, 15)
	proc := newInstrumented(time.Millisecond)
	proc.failOn[events[12].Key()] = true

	d := New(proc, 5, 3, logger.NewNopLogger())
	defer d.Close()

	pending := store.NewPending(3)
	_, err := d.Dispatch(context.Background(), 3, events, nil, pending)

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	require.Equal(t, 2, batchErr.Index)

	// Dispatch returned only after every batch reached a terminal state
	require.Zero(t, proc.running.Load())
	failedBatch := map[string]bool{}
	for _, ev := range events[10:] {
		failedBatch[ev.Key()] = true
	}
	for _, ev := range pending.Events() {
		require.False(t, failedBatch[ev.Key()], "item %s of the failed batch was staged", ev.Key())
	}
}

func TestDispatch_ProcessorPanicFailsBatch(t *testing.T) {
	events := makeEvents(4, 3)
	proc := newInstrumented(0)
	proc.panicOn = events[1].Key()

	d := New(proc, 10, 2, logger.NewNopLogger())
	defer d.Close()

	_, err := d.Dispatch(context.Background(), 4, events, nil, store.NewPending(4))
	require.ErrorContains(t, err, "processor panicked")
}

func TestDispatch_EmptyCheckpoint(t *testing.T) {
	d := New(newInstrumented(0), 10, 2, logger.NewNopLogger())
	defer d.Close()

	summary, err := d.Dispatch(context.Background(), 5, nil, nil, store.NewPending(5))
	require.NoError(t, err)
	require.Zero(t, summary.Batches)
}

func TestDispatch_CancelledContextFailsBatch(t *testing.T) {
	d := New(newInstrumented(0), 10, 2, logger.NewNopLogger())
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Dispatch(ctx, 5, makeEvents(5, 3), nil, store.NewPending(5))
	require.ErrorIs(t, err, context.Canceled)
}
