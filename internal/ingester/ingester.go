// Package ingester drives checkpoints from the full node into storage, one at a time.
package ingester

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/longcipher/sui-indexer/internal/common"
	"github.com/longcipher/sui-indexer/internal/dispatcher"
	"github.com/longcipher/sui-indexer/internal/logger"
	"github.com/longcipher/sui-indexer/internal/metrics"
	"github.com/longcipher/sui-indexer/internal/retry"
	"github.com/longcipher/sui-indexer/internal/source"
	"github.com/longcipher/sui-indexer/internal/store"
	"github.com/longcipher/sui-indexer/pkg/types"
)

// Source provides checkpoints.
type Source interface {
	LatestSequence(ctx context.Context) (uint64, error)
	Fetch(ctx context.Context, sequence uint64) (*types.Checkpoint, error)
}

// Store persists checkpoints and reports progress.
type Store interface {
	CurrentProgress(ctx context.Context) (uint64, error)
	Commit(ctx context.Context, p *store.Pending) error
}

// Filter selects the events worth indexing.
type Filter interface {
	Apply(events []types.RawEvent) []types.RawEvent
}

// Dispatcher processes a checkpoint's items into a write set.
type Dispatcher interface {
	Dispatch(ctx context.Context, sequence uint64, events []types.RawEvent,
		transactions []types.RawTransaction, stager dispatcher.Stager) (dispatcher.Summary, error)
}

// CommitSummary describes a committed checkpoint.
type CommitSummary struct {
	Stream       string
	Sequence     uint64
	Digest       string
	Latest       uint64
	Events       int
	TotalEvents  int
	Transactions int
	Batches      int
	Duration     time.Duration
}

// Observer is called after every successful commit, from the loop goroutine.
type Observer func(CommitSummary)

// Config holds the loop timings.
type Config struct {
	Stream       string
	PollInterval time.Duration
	RetryDelay   time.Duration
}

// Ingester is the ingestion loop: poll, fetch, filter, dispatch, commit, repeat.
// Checkpoints are strictly sequential; checkpoint N+1 is never fetched before the
// commit of N has completed.
type Ingester struct {
	source     Source
	store      Store
	filter     Filter
	dispatcher Dispatcher
	cfg        Config
	log        *logger.Logger

	state     atomic.Int32
	observers []Observer

	stopCh   chan struct{}
	stopOnce sync.Once

	lastCommitted atomic.Uint64
	latest        atomic.Uint64
	committed     atomic.Uint64
	startedAt     atomic.Int64
}

// New creates the ingestion loop.
func New(src Source, st Store, f Filter, d Dispatcher, cfg Config, log *logger.Logger) *Ingester {
	return &Ingester{
		source:     src,
		store:      st,
		filter:     f,
		dispatcher: d,
		cfg:        cfg,
		log:        log,
		stopCh:     make(chan struct{}),
	}
}

// OnCommit registers an observer. It must be called before Run.
func (i *Ingester) OnCommit(o Observer) {
	i.observers = append(i.observers, o)
}

// State returns the current loop state.
func (i *Ingester) State() State {
	return State(i.state.Load())
}

func (i *Ingester) setState(s State) {
	i.state.Store(int32(s))
	metrics.IngesterStateSet(i.cfg.Stream, s.String(), StateNames())
}

// Shutdown asks the loop to stop. No new checkpoint is started; a checkpoint that is
// being dispatched or committed is finished first. Run returns once the loop has exited.
func (i *Ingester) Shutdown() {
	i.stopOnce.Do(func() { close(i.stopCh) })
}

func (i *Ingester) stopping() bool {
	select {
	case <-i.stopCh:
		return true
	default:
		return false
	}
}

// Run executes the loop until Shutdown is called, ctx is cancelled, or a fatal error
// occurs. It returns nil on a clean shutdown and a *FatalError otherwise.
func (i *Ingester) Run(ctx context.Context) error {
	i.startedAt.Store(time.Now().UnixNano())
	defer i.setState(StateStopped)

	i.log.Infow("ingestion loop started",
		"stream", i.cfg.Stream,
		"poll_interval", i.cfg.PollInterval,
		"retry_delay", i.cfg.RetryDelay)

	var wait time.Duration
	for {
		i.setState(StateIdle)
		if !i.idle(ctx, wait) {
			i.setState(StateShuttingDown)
			i.log.Infow("ingestion loop stopped", "stream", i.cfg.Stream, "last_committed", i.lastCommitted.Load())
			return nil
		}

		next, err := i.cycle(ctx)
		if err != nil {
			var fatal *FatalError
			if errors.As(err, &fatal) {
				metrics.ErrorsInc(common.ComponentIngester, "fatal")
				i.log.Errorw("ingestion loop halted",
					"stream", i.cfg.Stream,
					"state", fatal.State.String(),
					"last_committed", fatal.LastCommitted,
					"error", fatal.Err)
			}
			return err
		}
		wait = next
	}
}

// idle waits d before the next cycle. It reports false when the loop must stop.
func (i *Ingester) idle(ctx context.Context, d time.Duration) bool {
	if i.stopping() || ctx.Err() != nil {
		return false
	}
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return !i.stopping()
	case <-ctx.Done():
		return false
	case <-i.stopCh:
		return false
	}
}

// cycle runs one pass of the state machine and returns how long to idle before the next.
func (i *Ingester) cycle(ctx context.Context) (time.Duration, error) {
	start := time.Now()

	i.setState(StatePolling)
	current, err := i.store.CurrentProgress(ctx)
	if err != nil {
		return i.failure(ctx, StatePolling, err)
	}
	i.lastCommitted.Store(current)

	latest, err := i.source.LatestSequence(ctx)
	if err != nil {
		return i.failure(ctx, StatePolling, err)
	}
	i.latest.Store(latest)
	metrics.CheckpointLagSet(i.cfg.Stream, latest, current)

	next := current + 1
	if next > latest {
		i.log.Debugw("no new checkpoint", "stream", i.cfg.Stream, "committed", current, "latest", latest)
		return i.cfg.PollInterval, nil
	}

	i.setState(StateFetching)
	checkpoint, err := i.source.Fetch(ctx, next)
	if err != nil {
		if errors.Is(err, source.ErrCheckpointNotFound) {
			i.log.Debugw("checkpoint not available yet", "stream", i.cfg.Stream, "sequence", next)
			return i.cfg.PollInterval, nil
		}
		return i.failure(ctx, StateFetching, err)
	}

	if i.stopping() {
		return 0, nil
	}

	// dispatch and commit run to completion even if shutdown is requested meanwhile
	work := context.WithoutCancel(ctx)

	i.setState(StateFiltering)
	matched := i.filter.Apply(checkpoint.Events)

	i.setState(StateDispatching)
	pending := store.NewPending(next)
	summary, err := i.dispatcher.Dispatch(work, next, matched, checkpoint.Transactions, pending)
	if err != nil {
		metrics.CheckpointRetryInc(i.cfg.Stream)
		i.log.Warnw("checkpoint dispatch failed, will retry",
			"stream", i.cfg.Stream,
			"sequence", next,
			"retry_in", i.cfg.RetryDelay,
			"error", err)
		return i.cfg.RetryDelay, nil
	}

	i.setState(StateCommitting)
	if err := i.store.Commit(work, pending); err != nil {
		return 0, &FatalError{LastCommitted: current, State: StateCommitting, Err: err}
	}

	i.lastCommitted.Store(next)
	i.committed.Add(1)

	commit := CommitSummary{
		Stream:       i.cfg.Stream,
		Sequence:     next,
		Digest:       checkpoint.Digest,
		Latest:       latest,
		Events:       len(matched),
		TotalEvents:  len(checkpoint.Events),
		Transactions: len(checkpoint.Transactions),
		Batches:      summary.Batches,
		Duration:     time.Since(start),
	}

	metrics.CheckpointCommitted(i.cfg.Stream, next, commit.Events, commit.Transactions, commit.Duration)
	metrics.CheckpointLagSet(i.cfg.Stream, latest, next)
	metrics.IndexingRateLog(i.cfg.Stream, i.Stats().Rate)

	i.log.Infow("checkpoint committed",
		"stream", i.cfg.Stream,
		"sequence", next,
		"events", commit.Events,
		"transactions", commit.Transactions,
		"batches", commit.Batches,
		"lag", latest-next,
		"duration", commit.Duration)

	for _, o := range i.observers {
		o(commit)
	}

	// drain the backlog without sleeping
	return 0, nil
}

// failure decides what a polling or fetching error means for the loop.
func (i *Ingester) failure(ctx context.Context, state State, err error) (time.Duration, error) {
	if ctx.Err() != nil {
		// shutting down; idle notices and stops the loop
		return 0, nil
	}

	if retry.IsFatal(err) || retry.Classify(err) == retry.Fatal {
		return 0, &FatalError{LastCommitted: i.lastCommitted.Load(), State: state, Err: err}
	}

	metrics.ErrorsInc(common.ComponentIngester, "transient")
	i.log.Warnw("transient failure, will retry",
		"stream", i.cfg.Stream,
		"state", state.String(),
		"retry_in", i.cfg.RetryDelay,
		"error", err)
	return i.cfg.RetryDelay, nil
}

// Stats describes catch-up progress since Run started.
type Stats struct {
	Stream        string
	State         State
	LastCommitted uint64
	Latest        uint64
	Committed     uint64
	Remaining     uint64
	Rate          float64
	ETA           time.Duration
}

// Stats returns a snapshot of the loop's progress. Rate is in checkpoints per second;
// ETA is zero until a rate is known.
func (i *Ingester) Stats() Stats {
	s := Stats{
		Stream:        i.cfg.Stream,
		State:         i.State(),
		LastCommitted: i.lastCommitted.Load(),
		Latest:        i.latest.Load(),
		Committed:     i.committed.Load(),
	}

	if s.Latest > s.LastCommitted {
		s.Remaining = s.Latest - s.LastCommitted
	}

	if started := i.startedAt.Load(); started > 0 {
		elapsed := time.Since(time.Unix(0, started)).Seconds()
		if elapsed > 0 {
			s.Rate = float64(s.Committed) / elapsed
		}
	}

	if s.Rate > 0 && s.Remaining > 0 {
		s.ETA = time.Duration(float64(s.Remaining) / s.Rate * float64(time.Second))
	}

	return s
}
