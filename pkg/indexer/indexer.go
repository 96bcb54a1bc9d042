package indexer

import (
	"context"

	"github.com/longcipher/sui-indexer/pkg/processor"
)

// Indexer defines the lifecycle of a checkpoint indexer.
type Indexer interface {
	// Initialize connects to the database and the full node, applies migrations and
	// seeds the progress row for the configured stream.
	Initialize(ctx context.Context) error

	// Start runs the ingestion loop and blocks until it stops. It returns nil on a clean
	// shutdown and an error when the loop halted on a fatal failure.
	Start(ctx context.Context) error

	// Shutdown asks a running loop to stop once the checkpoint in flight is committed
	// or abandoned. It is safe to call more than once and before Start.
	Shutdown()

	// SetProcessor overrides the configured processor. It must be called before Start.
	SetProcessor(p processor.Processor) error
}
