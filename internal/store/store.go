// Package store persists processed checkpoints and the ingestion progress.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/longcipher/sui-indexer/internal/logger"
	"github.com/longcipher/sui-indexer/internal/retry"
	"github.com/longcipher/sui-indexer/pkg/config"
	"github.com/longcipher/sui-indexer/pkg/types"
	"github.com/russross/meddler"
)

var (
	// ErrProgressConflict means the stored progress is not the predecessor of the
	// checkpoint being committed. It is never retried.
	ErrProgressConflict = errors.New("checkpoint progress conflict")

	// ErrProgressMissing means the progress row for the stream was never initialized.
	ErrProgressMissing = errors.New("checkpoint progress not initialized")
)

const (
	opReadProgress = "read_progress"
	opCommit       = "commit_checkpoint"
	opInitialize   = "initialize_progress"
	opCount        = "count_rows"
)

// Writer implements the storage side of the ingestion loop on top of database/sql.
// Both SQLite and PostgreSQL are supported; all statements use $n placeholders,
// which both drivers accept.
type Writer struct {
	db      *sql.DB
	dialect *meddler.Database
	stream  string
	policy  retry.Policy
	log     *logger.Logger
	now     func() time.Time
}

// New creates a Writer for stream. driver is the database/sql driver name the
// handle was opened with.
func New(db *sql.DB, driver, stream string, policy retry.Policy, log *logger.Logger) *Writer {
	dialect := meddler.SQLite
	if driver == config.DriverPostgres {
		dialect = meddler.PostgreSQL
	}

	return &Writer{
		db:      db,
		dialect: dialect,
		stream:  stream,
		policy:  policy,
		log:     log,
		now:     time.Now,
	}
}

// Stream returns the name of the progress row this writer advances.
func (w *Writer) Stream() string {
	return w.stream
}

// Ping verifies the database is reachable.
func (w *Writer) Ping(ctx context.Context) error {
	return w.db.PingContext(ctx)
}

// Initialize seeds the progress row with seed if it does not exist yet.
// An existing row is left untouched.
func (w *Writer) Initialize(ctx context.Context, seed uint64) error {
	const query = `
		INSERT INTO progress (stream, sequence, updated_at_ms)
		VALUES ($1, $2, $3)
		ON CONFLICT (stream) DO NOTHING
	`
	err := retry.Do(ctx, w.policy, opInitialize, func(ctx context.Context) error {
		_, err := w.db.ExecContext(ctx, query, w.stream, seed, w.now().UnixMilli())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to initialize progress for stream %s: %w", w.stream, err)
	}

	progress, err := w.Progress(ctx)
	if err != nil {
		return err
	}

	w.log.Infow("checkpoint progress ready",
		"stream", w.stream,
		"sequence", progress.Sequence,
		"seeded", progress.Sequence == seed)
	return nil
}

// CurrentProgress returns the last committed checkpoint sequence.
func (w *Writer) CurrentProgress(ctx context.Context) (uint64, error) {
	progress, err := w.Progress(ctx)
	if err != nil {
		return 0, err
	}
	return progress.Sequence, nil
}

// Progress returns the full progress row.
func (w *Writer) Progress(ctx context.Context) (types.CheckpointProgress, error) {
	var row dbProgress
	err := retry.Do(ctx, w.policy, opReadProgress, func(context.Context) error {
		return w.queryProgress(w.db, &row)
	})
	if err != nil {
		return types.CheckpointProgress{}, err
	}
	return row.toProgress(), nil
}

func (w *Writer) queryProgress(q meddler.DB, dst *dbProgress) error {
	const query = `SELECT stream, sequence, updated_at_ms FROM progress WHERE stream = $1`

	err := w.dialect.QueryRow(q, dst, query, w.stream)
	if errors.Is(err, sql.ErrNoRows) {
		return retry.MarkPermanent(fmt.Errorf("%w: stream %s", ErrProgressMissing, w.stream))
	}
	if err != nil {
		return fmt.Errorf("failed to read progress: %w", err)
	}
	return nil
}

// Commit writes every staged row of p and advances progress from p.Sequence()-1 to
// p.Sequence(), all in one transaction. It fails with ErrProgressConflict if the stored
// progress is not p.Sequence()-1. Transient database failures are retried; a retry that
// finds progress already at p.Sequence() means the previous attempt committed.
func (w *Writer) Commit(ctx context.Context, p *Pending) error {
	seq := p.Sequence()
	if seq == 0 {
		return retry.MarkPermanent(fmt.Errorf("%w: checkpoint 0 has no predecessor", ErrProgressConflict))
	}

	events := p.Events()
	transactions := p.Transactions()
	start := time.Now()

	attempt := 0
	err := retry.Do(ctx, w.policy, opCommit, func(ctx context.Context) error {
		attempt++
		return w.commitOnce(ctx, seq, events, transactions, attempt > 1)
	})
	if err != nil {
		CommitFailureInc()
		return err
	}

	CommitObserve(time.Since(start), len(events), len(transactions))
	w.log.Debugw("checkpoint committed",
		"sequence", seq,
		"events", len(events),
		"transactions", len(transactions),
		"attempts", attempt,
		"duration", time.Since(start))

	return nil
}

func (w *Writer) commitOnce(ctx context.Context, seq uint64,
	events []types.ProcessedEvent, transactions []types.ProcessedTransaction, retrying bool) (err error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				w.log.Errorf("failed to rollback commit of checkpoint %d: %v", seq, rbErr)
			}
		}
	}()

	var current dbProgress
	if err := w.queryProgress(tx, &current); err != nil {
		return err
	}

	if retrying && current.Sequence == seq {
		w.log.Warnw("checkpoint already committed by previous attempt", "sequence", seq)
		return tx.Commit()
	}

	if current.Sequence != seq-1 {
		return retry.MarkPermanent(fmt.Errorf("%w: stream %s is at %d, cannot commit %d",
			ErrProgressConflict, w.stream, current.Sequence, seq))
	}

	if err := w.upsertTransactions(ctx, tx, transactions); err != nil {
		return err
	}

	if err := w.upsertEvents(ctx, tx, events); err != nil {
		return err
	}

	const advance = `
		UPDATE progress SET sequence = $1, updated_at_ms = $2
		WHERE stream = $3 AND sequence = $4
	`
	res, err := tx.ExecContext(ctx, advance, seq, w.now().UnixMilli(), w.stream, seq-1)
	if err != nil {
		return fmt.Errorf("failed to advance progress: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to advance progress: %w", err)
	}
	if affected != 1 {
		return retry.MarkPermanent(fmt.Errorf("%w: progress for stream %s moved during commit of %d",
			ErrProgressConflict, w.stream, seq))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkpoint %d: %w", seq, err)
	}

	return nil
}

func (w *Writer) upsertTransactions(ctx context.Context, tx *sql.Tx, transactions []types.ProcessedTransaction) error {
	if len(transactions) == 0 {
		return nil
	}

	const query = `
		INSERT INTO transactions (digest, checkpoint_sequence, timestamp_ms, sender, gas_used, status,
			effects, processed_id, processed_at_ms, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (digest) DO NOTHING
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare transaction insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range transactions {
		meta, err := metadataArg(t.Metadata)
		if err != nil {
			return retry.MarkPermanent(err)
		}

		_, err = stmt.ExecContext(ctx,
			t.Digest,
			t.CheckpointSequence,
			t.Timestamp.UnixMilli(),
			t.Sender,
			t.GasUsed,
			t.Status,
			jsonArg(t.Effects),
			t.ID,
			t.ProcessedAt.UnixMilli(),
			meta,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", t.Digest, err)
		}
	}

	return nil
}

func (w *Writer) upsertEvents(ctx context.Context, tx *sql.Tx, events []types.ProcessedEvent) error {
	if len(events) == 0 {
		return nil
	}

	const query = `
		INSERT INTO events (transaction_digest, event_sequence, checkpoint_sequence, package_id, module_name,
			event_type, sender, fields, timestamp_ms, processed_id, processed_at_ms, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (transaction_digest, event_sequence) DO NOTHING
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		meta, err := metadataArg(e.Metadata)
		if err != nil {
			return retry.MarkPermanent(err)
		}

		_, err = stmt.ExecContext(ctx,
			e.TransactionDigest,
			e.EventSequence,
			e.CheckpointSequence,
			e.PackageID,
			e.ModuleName,
			e.EventType,
			e.Sender,
			jsonArg(e.Fields),
			e.Timestamp.UnixMilli(),
			e.ID,
			e.ProcessedAt.UnixMilli(),
			meta,
		)
		if err != nil {
			return fmt.Errorf("failed to insert event %s: %w", e.Key(), err)
		}
	}

	return nil
}

// EventsByCheckpointRange returns the stored events of checkpoints from..to inclusive,
// ordered by checkpoint, transaction digest and event sequence.
func (w *Writer) EventsByCheckpointRange(ctx context.Context, from, to uint64) ([]types.ProcessedEvent, error) {
	const query = `
		SELECT transaction_digest, event_sequence, checkpoint_sequence, package_id, module_name,
			event_type, sender, fields, timestamp_ms, processed_id, processed_at_ms, metadata
		FROM events
		WHERE checkpoint_sequence >= $1 AND checkpoint_sequence <= $2
		ORDER BY checkpoint_sequence, transaction_digest, event_sequence
	`
	var rows []*dbEvent
	if err := w.dialect.QueryAll(w.db, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to query events for checkpoints %d-%d: %w", from, to, err)
	}

	out := make([]types.ProcessedEvent, 0, len(rows))
	for _, row := range rows {
		ev, err := row.toProcessed()
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// TransactionsByCheckpointRange returns the stored transactions of checkpoints from..to
// inclusive, ordered by checkpoint and digest.
func (w *Writer) TransactionsByCheckpointRange(ctx context.Context, from, to uint64) ([]types.ProcessedTransaction, error) {
	const query = `
		SELECT digest, checkpoint_sequence, timestamp_ms, sender, gas_used, status,
			effects, processed_id, processed_at_ms, metadata
		FROM transactions
		WHERE checkpoint_sequence >= $1 AND checkpoint_sequence <= $2
		ORDER BY checkpoint_sequence, digest
	`
	var rows []*dbTransaction
	if err := w.dialect.QueryAll(w.db, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to query transactions for checkpoints %d-%d: %w", from, to, err)
	}

	out := make([]types.ProcessedTransaction, 0, len(rows))
	for _, row := range rows {
		tx, err := row.toProcessed()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// Counts returns the number of stored events and transactions.
func (w *Writer) Counts(ctx context.Context) (events, transactions int64, err error) {
	err = retry.Do(ctx, w.policy, opCount, func(ctx context.Context) error {
		if err := w.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&events); err != nil {
			return fmt.Errorf("failed to count events: %w", err)
		}
		if err := w.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&transactions); err != nil {
			return fmt.Errorf("failed to count transactions: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return events, transactions, nil
}
