package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/longcipher/sui-indexer/pkg/types"
)

type dbProgress struct {
	Stream      string `meddler:"stream"`
	Sequence    uint64 `meddler:"sequence"`
	UpdatedAtMs int64  `meddler:"updated_at_ms"`
}

type dbEvent struct {
	TransactionDigest  string `meddler:"transaction_digest"`
	EventSequence      uint64 `meddler:"event_sequence"`
	CheckpointSequence uint64 `meddler:"checkpoint_sequence"`
	PackageID          string `meddler:"package_id"`
	ModuleName         string `meddler:"module_name"`
	EventType          string `meddler:"event_type"`
	Sender             string `meddler:"sender"`
	Fields             string `meddler:"fields,zeroisnull"`
	TimestampMs        int64  `meddler:"timestamp_ms"`
	ProcessedID        string `meddler:"processed_id"`
	ProcessedAtMs      int64  `meddler:"processed_at_ms"`
	Metadata           string `meddler:"metadata,zeroisnull"`
}

type dbTransaction struct {
	Digest             string `meddler:"digest"`
	CheckpointSequence uint64 `meddler:"checkpoint_sequence"`
	TimestampMs        int64  `meddler:"timestamp_ms"`
	Sender             string `meddler:"sender"`
	GasUsed            uint64 `meddler:"gas_used"`
	Status             string `meddler:"status"`
	Effects            string `meddler:"effects,zeroisnull"`
	ProcessedID        string `meddler:"processed_id"`
	ProcessedAtMs      int64  `meddler:"processed_at_ms"`
	Metadata           string `meddler:"metadata,zeroisnull"`
}

func (p *dbProgress) toProgress() types.CheckpointProgress {
	return types.CheckpointProgress{
		Stream:    p.Stream,
		Sequence:  p.Sequence,
		UpdatedAt: time.UnixMilli(p.UpdatedAtMs).UTC(),
	}
}

func (e *dbEvent) toProcessed() (types.ProcessedEvent, error) {
	meta, err := decodeMetadata(e.Metadata)
	if err != nil {
		return types.ProcessedEvent{}, fmt.Errorf("event %s:%d: %w", e.TransactionDigest, e.EventSequence, err)
	}

	return types.ProcessedEvent{
		RawEvent: types.RawEvent{
			CheckpointSequence: e.CheckpointSequence,
			TransactionDigest:  e.TransactionDigest,
			EventSequence:      e.EventSequence,
			PackageID:          e.PackageID,
			ModuleName:         e.ModuleName,
			EventType:          e.EventType,
			Sender:             e.Sender,
			Fields:             rawOrNil(e.Fields),
			Timestamp:          time.UnixMilli(e.TimestampMs).UTC(),
		},
		Metadata:    meta,
		ID:          e.ProcessedID,
		ProcessedAt: time.UnixMilli(e.ProcessedAtMs).UTC(),
	}, nil
}

func (t *dbTransaction) toProcessed() (types.ProcessedTransaction, error) {
	meta, err := decodeMetadata(t.Metadata)
	if err != nil {
		return types.ProcessedTransaction{}, fmt.Errorf("transaction %s: %w", t.Digest, err)
	}

	return types.ProcessedTransaction{
		RawTransaction: types.RawTransaction{
			Digest:             t.Digest,
			CheckpointSequence: t.CheckpointSequence,
			Sender:             t.Sender,
			GasUsed:            t.GasUsed,
			Status:             t.Status,
			Effects:            rawOrNil(t.Effects),
			Timestamp:          time.UnixMilli(t.TimestampMs).UTC(),
		},
		Metadata:    meta,
		ID:          t.ProcessedID,
		ProcessedAt: time.UnixMilli(t.ProcessedAtMs).UTC(),
	}, nil
}

// jsonArg converts a raw JSON payload into a query argument, NULL when empty.
func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func metadataArg(m types.Metadata) (any, error) {
	if len(m.Tags) == 0 && len(m.Attributes) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(data), nil
}

func decodeMetadata(s string) (types.Metadata, error) {
	var m types.Metadata
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return m, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return m, nil
}

func rawOrNil(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}
