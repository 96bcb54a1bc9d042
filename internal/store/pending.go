package store

import (
	"cmp"
	"slices"

	"github.com/longcipher/sui-indexer/pkg/types"
	"github.com/puzpuzpuz/xsync/v4"
)

// BatchResult is the output of one successfully processed batch.
type BatchResult struct {
	Events       []types.ProcessedEvent
	Transactions []types.ProcessedTransaction
}

// Pending is the write set accumulated for one checkpoint. Batches stage into it
// concurrently; it is read once, by Commit. Items are keyed by their natural key,
// so staging the same item twice keeps one copy.
type Pending struct {
	sequence     uint64
	events       *xsync.Map[string, types.ProcessedEvent]
	transactions *xsync.Map[string, types.ProcessedTransaction]
}

// NewPending creates an empty write set for checkpoint sequence.
func NewPending(sequence uint64) *Pending {
	return &Pending{
		sequence:     sequence,
		events:       xsync.NewMap[string, types.ProcessedEvent](),
		transactions: xsync.NewMap[string, types.ProcessedTransaction](),
	}
}

// Sequence returns the checkpoint this write set belongs to.
func (p *Pending) Sequence() uint64 {
	return p.sequence
}

// Stage adds a batch result to the write set. Safe for concurrent use.
func (p *Pending) Stage(r BatchResult) {
	for _, ev := range r.Events {
		p.events.Store(ev.Key(), ev)
	}
	for _, tx := range r.Transactions {
		p.transactions.Store(tx.Digest, tx)
	}
}

// Len returns the number of staged events and transactions.
func (p *Pending) Len() (events, transactions int) {
	return p.events.Size(), p.transactions.Size()
}

// Events returns the staged events ordered by transaction digest and event sequence.
func (p *Pending) Events() []types.ProcessedEvent {
	out := make([]types.ProcessedEvent, 0, p.events.Size())
	p.events.Range(func(_ string, ev types.ProcessedEvent) bool {
		out = append(out, ev)
		return true
	})

	slices.SortFunc(out, func(a, b types.ProcessedEvent) int {
		if c := cmp.Compare(a.TransactionDigest, b.TransactionDigest); c != 0 {
			return c
		}
		return cmp.Compare(a.EventSequence, b.EventSequence)
	})
	return out
}

// Transactions returns the staged transactions ordered by digest.
func (p *Pending) Transactions() []types.ProcessedTransaction {
	out := make([]types.ProcessedTransaction, 0, p.transactions.Size())
	p.transactions.Range(func(_ string, tx types.ProcessedTransaction) bool {
		out = append(out, tx)
		return true
	})

	slices.SortFunc(out, func(a, b types.ProcessedTransaction) int {
		return cmp.Compare(a.Digest, b.Digest)
	})
	return out
}
