// Package types holds the data model shared by the checkpoint source, the
// processors and the storage writer.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Checkpoint is one finalized, append-only unit of chain history as fetched from a full node.
// It is transient: it lives for one ingestion cycle only.
type Checkpoint struct {
	Sequence     uint64
	Digest       string
	TimestampMs  uint64
	Transactions []RawTransaction
	Events       []RawEvent
}

// Timestamp returns the checkpoint timestamp as a time.Time.
func (c *Checkpoint) Timestamp() time.Time {
	return time.UnixMilli(int64(c.TimestampMs)).UTC() //nolint:gosec
}

// RawEvent is an event emitted by a transaction inside a checkpoint.
type RawEvent struct {
	CheckpointSequence uint64          `json:"checkpoint_sequence"`
	TransactionDigest  string          `json:"transaction_digest"`
	EventSequence      uint64          `json:"event_sequence"`
	PackageID          string          `json:"package_id"`
	ModuleName         string          `json:"module_name"`
	EventType          string          `json:"event_type"`
	Sender             string          `json:"sender"`
	Fields             json.RawMessage `json:"fields,omitempty"`
	Timestamp          time.Time       `json:"timestamp"`
}

// Key returns the natural key of the event: transaction digest plus event sequence.
func (e RawEvent) Key() string {
	return fmt.Sprintf("%s:%d", e.TransactionDigest, e.EventSequence)
}

// RawTransaction is a transaction included in a checkpoint.
type RawTransaction struct {
	Digest             string          `json:"digest"`
	CheckpointSequence uint64          `json:"checkpoint_sequence"`
	Sender             string          `json:"sender"`
	GasUsed            uint64          `json:"gas_used"`
	Status             string          `json:"status"`
	Effects            json.RawMessage `json:"effects,omitempty"`
	Timestamp          time.Time       `json:"timestamp"`
}

// Metadata is what a processor attaches to a raw item.
type Metadata struct {
	Tags       []string          `json:"tags,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ProcessedEvent is a RawEvent after processing, ready to be stored.
type ProcessedEvent struct {
	RawEvent
	Metadata

	ID          string    `json:"id"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ProcessedTransaction is a RawTransaction after processing, ready to be stored.
type ProcessedTransaction struct {
	RawTransaction
	Metadata

	ID          string    `json:"id"`
	ProcessedAt time.Time `json:"processed_at"`
}

// CheckpointProgress records the highest checkpoint whose data is fully committed for a stream.
type CheckpointProgress struct {
	Stream    string    `json:"stream"`
	Sequence  uint64    `json:"sequence"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SplitEventType splits a fully qualified type "pkg::module::Name" into its parts.
// Generic parameters on Name are kept. ok is false when the string has fewer than three parts.
func SplitEventType(eventType string) (pkg, module, name string, ok bool) {
	parts := strings.SplitN(eventType, "::", 3) //nolint:mnd
	if len(parts) != 3 {                        //nolint:mnd
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// EventQuery selects stored events. Zero-valued fields do not constrain the result.
type EventQuery struct {
	FromCheckpoint *uint64
	ToCheckpoint   *uint64
	PackageID      string
	Module         string
	EventType      string
	Sender         string
	TxDigest       string
	Limit          int
	Offset         int
	Descending     bool
}

// TransactionQuery selects stored transactions. Zero-valued fields do not constrain the result.
type TransactionQuery struct {
	FromCheckpoint *uint64
	ToCheckpoint   *uint64
	Sender         string
	Status         string
	Limit          int
	Offset         int
	Descending     bool
}
