package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/longcipher/sui-indexer/pkg/types"
)

// ErrNotFound is returned by point lookups that match no row.
var ErrNotFound = errors.New("not found")

// DefaultQueryLimit applies when a query does not set a limit.
const DefaultQueryLimit = 100

// where accumulates conditions with $n placeholders numbered in order of appearance.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *where) addString(column, value string) {
	if value != "" {
		w.add(column+" = $%d", value)
	}
}

func (w *where) addRange(from, to *uint64) {
	if from != nil {
		w.add("checkpoint_sequence >= $%d", *from)
	}
	if to != nil {
		w.add("checkpoint_sequence <= $%d", *to)
	}
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}

// page appends LIMIT and OFFSET placeholders and returns the clause with its args.
func (w *where) page(limit, offset int) (string, []any) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if offset < 0 {
		offset = 0
	}
	n := len(w.args)
	args := append(append([]any(nil), w.args...), limit, offset)
	return fmt.Sprintf("LIMIT $%d OFFSET $%d", n+1, n+2), args
}

func order(desc bool) string {
	if desc {
		return "DESC"
	}
	return "ASC"
}

// QueryEvents returns one page of events matching q and the total number of matches.
func (w *Writer) QueryEvents(ctx context.Context, q types.EventQuery) ([]types.ProcessedEvent, int64, error) {
	var cond where
	cond.addRange(q.FromCheckpoint, q.ToCheckpoint)
	cond.addString("package_id", q.PackageID)
	cond.addString("module_name", q.Module)
	cond.addString("event_type", q.EventType)
	cond.addString("sender", q.Sender)
	cond.addString("transaction_digest", q.TxDigest)

	var total int64
	countQuery := "SELECT COUNT(*) FROM events " + cond.String()
	if err := w.db.QueryRowContext(ctx, countQuery, cond.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	dir := order(q.Descending)
	limit, args := cond.page(q.Limit, q.Offset)
	query := fmt.Sprintf(`
		SELECT transaction_digest, event_sequence, checkpoint_sequence, package_id, module_name,
			event_type, sender, fields, timestamp_ms, processed_id, processed_at_ms, metadata
		FROM events %s
		ORDER BY checkpoint_sequence %s, transaction_digest %s, event_sequence %s
		%s`, cond.String(), dir, dir, dir, limit)

	var rows []*dbEvent
	if err := w.dialect.QueryAll(w.db, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to query events: %w", err)
	}

	out := make([]types.ProcessedEvent, 0, len(rows))
	for _, row := range rows {
		ev, err := row.toProcessed()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, ev)
	}
	return out, total, nil
}

// QueryTransactions returns one page of transactions matching q and the total number of matches.
func (w *Writer) QueryTransactions(ctx context.Context, q types.TransactionQuery) ([]types.ProcessedTransaction, int64, error) {
	var cond where
	cond.addRange(q.FromCheckpoint, q.ToCheckpoint)
	cond.addString("sender", q.Sender)
	cond.addString("status", q.Status)

	var total int64
	countQuery := "SELECT COUNT(*) FROM transactions " + cond.String()
	if err := w.db.QueryRowContext(ctx, countQuery, cond.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	dir := order(q.Descending)
	limit, args := cond.page(q.Limit, q.Offset)
	query := fmt.Sprintf(`
		SELECT digest, checkpoint_sequence, timestamp_ms, sender, gas_used, status,
			effects, processed_id, processed_at_ms, metadata
		FROM transactions %s
		ORDER BY checkpoint_sequence %s, digest %s
		%s`, cond.String(), dir, dir, limit)

	var rows []*dbTransaction
	if err := w.dialect.QueryAll(w.db, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to query transactions: %w", err)
	}

	out := make([]types.ProcessedTransaction, 0, len(rows))
	for _, row := range rows {
		tx, err := row.toProcessed()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, tx)
	}
	return out, total, nil
}

// TransactionByDigest returns a stored transaction, or ErrNotFound.
func (w *Writer) TransactionByDigest(ctx context.Context, digest string) (types.ProcessedTransaction, error) {
	const query = `
		SELECT digest, checkpoint_sequence, timestamp_ms, sender, gas_used, status,
			effects, processed_id, processed_at_ms, metadata
		FROM transactions
		WHERE digest = $1
	`
	var row dbTransaction
	err := w.dialect.QueryRow(w.db, &row, query, digest)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ProcessedTransaction{}, fmt.Errorf("transaction %s: %w", digest, ErrNotFound)
	}
	if err != nil {
		return types.ProcessedTransaction{}, fmt.Errorf("failed to query transaction %s: %w", digest, err)
	}
	return row.toProcessed()
}
