// Package dispatcher runs a checkpoint's batches on a bounded worker pool.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/longcipher/sui-indexer/internal/logger"
	"github.com/longcipher/sui-indexer/internal/store"
	"github.com/longcipher/sui-indexer/pkg/processor"
	"github.com/longcipher/sui-indexer/pkg/types"
)

// Stager receives the result of every successful batch.
type Stager interface {
	Stage(r store.BatchResult)
}

// Summary describes one dispatched checkpoint.
type Summary struct {
	Sequence     uint64
	Batches      int
	Events       int
	Transactions int
	Duration     time.Duration
}

// Dispatcher partitions a checkpoint into batches and processes them concurrently.
// At most maxConcurrent batches run at the same time; the rest wait in the pool queue.
type Dispatcher struct {
	pool          pond.Pool
	processor     processor.Processor
	batchSize     int
	maxConcurrent int
	log           *logger.Logger
}

// New creates a dispatcher with its own worker pool.
func New(proc processor.Processor, batchSize, maxConcurrent int, log *logger.Logger) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	return &Dispatcher{
		pool:          pond.NewPool(maxConcurrent),
		processor:     proc,
		batchSize:     batchSize,
		maxConcurrent: maxConcurrent,
		log:           log,
	}
}

// Dispatch processes every event and transaction of checkpoint sequence and stages the
// results. It returns only once every batch has finished. If any batch fails, the error
// is a *BatchError and the caller must discard the staged results; batches that had not
// started when the failure happened are skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, sequence uint64,
	events []types.RawEvent, transactions []types.RawTransaction, stager Stager) (Summary, error) {
	start := time.Now()
	jobs := Partition(sequence, events, transactions, d.batchSize)

	summary := Summary{
		Sequence:     sequence,
		Batches:      len(jobs),
		Events:       len(events),
		Transactions: len(transactions),
	}
	if len(jobs) == 0 {
		return summary, nil
	}

	var (
		failed   atomic.Bool
		failures atomic.Int32
		errOnce  sync.Once
		firstErr *BatchError
	)

	group := d.pool.NewGroup()
	for _, job := range jobs {
		group.Submit(func() {
			if failed.Load() {
				BatchSkippedInc(job.Kind)
				return
			}

			InFlightInc()
			defer InFlightDec()

			batchStart := time.Now()
			result, batchErr := d.runBatch(ctx, job)
			BatchObserve(job.Kind, time.Since(batchStart), job.Len(), batchErr == nil)

			if batchErr != nil {
				failed.Store(true)
				failures.Add(1)
				errOnce.Do(func() { firstErr = batchErr })
				d.log.Warnw("batch failed",
					"sequence", sequence,
					"batch", job.Index,
					"kind", job.Kind.String(),
					"error", batchErr.Error())
				return
			}

			stager.Stage(result)
		})
	}

	// tasks never return errors, so Wait only returns once every task has finished
	_ = group.Wait()

	summary.Duration = time.Since(start)

	if failed.Load() {
		firstErr.Failed = int(failures.Load())
		return summary, firstErr
	}

	d.log.Debugw("checkpoint dispatched",
		"sequence", sequence,
		"batches", summary.Batches,
		"workers", d.MaxConcurrent(),
		"events", summary.Events,
		"transactions", summary.Transactions,
		"duration", summary.Duration)

	return summary, nil
}

// runBatch processes the items of job in order. The first failing item fails the batch.
func (d *Dispatcher) runBatch(ctx context.Context, job BatchJob) (result store.BatchResult, batchErr *BatchError) {
	fail := func(item string, err error) *BatchError {
		return &BatchError{Sequence: job.Sequence, Index: job.Index, Kind: job.Kind, Item: item, Err: err}
	}

	defer func() {
		if r := recover(); r != nil {
			result = store.BatchResult{}
			batchErr = fail("", fmt.Errorf("processor panicked: %v", r))
		}
	}()

	switch job.Kind {
	case KindEvents:
		result.Events = make([]types.ProcessedEvent, 0, len(job.Events))
		for _, ev := range job.Events {
			if err := ctx.Err(); err != nil {
				return store.BatchResult{}, fail(ev.Key(), err)
			}

			processed, err := d.processor.ProcessEvent(ctx, ev)
			if err != nil {
				return store.BatchResult{}, fail(ev.Key(), err)
			}
			result.Events = append(result.Events, processed)
		}

	case KindTransactions:
		result.Transactions = make([]types.ProcessedTransaction, 0, len(job.Transactions))
		for _, tx := range job.Transactions {
			if err := ctx.Err(); err != nil {
				return store.BatchResult{}, fail(tx.Digest, err)
			}

			processed, err := d.processor.ProcessTransaction(ctx, tx)
			if err != nil {
				return store.BatchResult{}, fail(tx.Digest, err)
			}
			result.Transactions = append(result.Transactions, processed)
		}
	}

	return result, nil
}

// MaxConcurrent returns the worker pool size.
func (d *Dispatcher) MaxConcurrent() int {
	return d.maxConcurrent
}

// Close stops the pool after the queued batches have finished.
func (d *Dispatcher) Close() {
	d.pool.StopAndWait()
}
