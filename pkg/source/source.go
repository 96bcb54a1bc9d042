package source

import (
	"context"

	"github.com/longcipher/sui-indexer/pkg/types"
)

// CheckpointSource defines the upstream operations the ingestion loop needs.
// This abstraction allows for easier testing and alternative transports.
type CheckpointSource interface {
	// LatestSequence returns the highest checkpoint sequence available upstream.
	LatestSequence(ctx context.Context) (uint64, error)

	// Fetch retrieves the full contents of one checkpoint. A checkpoint that is not
	// produced yet is reported as an error wrapping ErrCheckpointNotFound from the
	// implementation package.
	Fetch(ctx context.Context, sequence uint64) (*types.Checkpoint, error)

	// Ping checks that the upstream node is reachable.
	Ping(ctx context.Context) error

	// Close releases the connection pool.
	Close()
}
