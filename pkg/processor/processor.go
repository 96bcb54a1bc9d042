package processor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/longcipher/sui-indexer/pkg/types"
)

// Processor turns raw items into processed items.
// Implementations are called concurrently from several batch workers and must be
// idempotent: the same checkpoint can be processed again after a failed attempt.
// Any returned error fails the whole batch containing the item.
type Processor interface {
	ProcessEvent(ctx context.Context, ev types.RawEvent) (types.ProcessedEvent, error)
	ProcessTransaction(ctx context.Context, tx types.RawTransaction) (types.ProcessedTransaction, error)
}

// Default is the identity processor: it keeps the raw item and stamps it with an id
// and the processing time.
type Default struct {
	now func() time.Time
}

var _ Processor = (*Default)(nil)

// NewDefault creates the identity processor.
func NewDefault() *Default {
	return &Default{now: time.Now}
}

func (d *Default) ProcessEvent(_ context.Context, ev types.RawEvent) (types.ProcessedEvent, error) {
	return types.ProcessedEvent{
		RawEvent:    ev,
		ID:          uuid.NewString(),
		ProcessedAt: d.now().UTC(),
	}, nil
}

func (d *Default) ProcessTransaction(_ context.Context, tx types.RawTransaction) (types.ProcessedTransaction, error) {
	return types.ProcessedTransaction{
		RawTransaction: tx,
		ID:             uuid.NewString(),
		ProcessedAt:    d.now().UTC(),
	}, nil
}
