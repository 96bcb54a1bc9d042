package dispatcher

import (
	"fmt"

	"github.com/longcipher/sui-indexer/pkg/types"
)

// Kind is the type of items a batch carries.
type Kind int

const (
	KindEvents Kind = iota
	KindTransactions
)

func (k Kind) String() string {
	switch k {
	case KindEvents:
		return "events"
	case KindTransactions:
		return "transactions"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// BatchJob is an ordered slice of one checkpoint's items, owned by a single worker.
type BatchJob struct {
	Index        int
	Sequence     uint64
	Kind         Kind
	Events       []types.RawEvent
	Transactions []types.RawTransaction
}

// Len returns the number of items in the batch.
func (j BatchJob) Len() int {
	if j.Kind == KindEvents {
		return len(j.Events)
	}
	return len(j.Transactions)
}

// Partition splits a checkpoint's events and transactions into batches of at most
// batchSize items. Events come first, then transactions; discovery order is kept
// inside and across batches.
func Partition(sequence uint64, events []types.RawEvent, transactions []types.RawTransaction, batchSize int) []BatchJob {
	if batchSize <= 0 {
		batchSize = 1
	}

	jobs := make([]BatchJob, 0, (len(events)+batchSize-1)/batchSize+(len(transactions)+batchSize-1)/batchSize)

	for i := 0; i < len(events); i += batchSize {
		jobs = append(jobs, BatchJob{
			Index:    len(jobs),
			Sequence: sequence,
			Kind:     KindEvents,
			Events:   events[i:min(i+batchSize, len(events))],
		})
	}

	for i := 0; i < len(transactions); i += batchSize {
		jobs = append(jobs, BatchJob{
			Index:        len(jobs),
			Sequence:     sequence,
			Kind:         KindTransactions,
			Transactions: transactions[i:min(i+batchSize, len(transactions))],
		})
	}

	return jobs
}

// BatchError reports the first failure of a checkpoint's dispatch.
type BatchError struct {
	Sequence uint64
	Index    int
	Kind     Kind
	Item     string
	Failed   int
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("checkpoint %d: %s batch %d failed on %s (%d batches failed): %v",
		e.Sequence, e.Kind, e.Index, e.Item, e.Failed, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
