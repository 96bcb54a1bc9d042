package source

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/longcipher/sui-indexer/internal/common"
	"github.com/longcipher/sui-indexer/pkg/types"
)

// suiCheckpoint is the subset of the sui_getCheckpoint response the indexer uses.
type suiCheckpoint struct {
	Epoch          common.StringUint64 `json:"epoch"`
	SequenceNumber common.StringUint64 `json:"sequenceNumber"`
	Digest         string              `json:"digest"`
	PreviousDigest string              `json:"previousDigest"`
	TimestampMs    common.StringUint64 `json:"timestampMs"`
	Transactions   []string            `json:"transactions"`
}

type suiTransactionBlock struct {
	Digest      string              `json:"digest"`
	Transaction *suiTransaction     `json:"transaction"`
	Effects     json.RawMessage     `json:"effects"`
	Events      []suiEvent          `json:"events"`
	TimestampMs common.StringUint64 `json:"timestampMs"`
	Checkpoint  common.StringUint64 `json:"checkpoint"`
}

type suiTransaction struct {
	Data struct {
		Sender string `json:"sender"`
	} `json:"data"`
}

type suiEffects struct {
	Status struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	} `json:"status"`
	GasUsed struct {
		ComputationCost common.StringUint64 `json:"computationCost"`
		StorageCost     common.StringUint64 `json:"storageCost"`
		StorageRebate   common.StringUint64 `json:"storageRebate"`
	} `json:"gasUsed"`
}

type suiEvent struct {
	ID struct {
		TxDigest string              `json:"txDigest"`
		EventSeq common.StringUint64 `json:"eventSeq"`
	} `json:"id"`
	PackageID         string              `json:"packageId"`
	TransactionModule string              `json:"transactionModule"`
	Sender            string              `json:"sender"`
	Type              string              `json:"type"`
	ParsedJSON        json.RawMessage     `json:"parsedJson"`
	TimestampMs       common.StringUint64 `json:"timestampMs"`
}

// gasUsed is computation plus storage cost minus the storage rebate, floored at zero.
func (e *suiEffects) gasUsed() uint64 {
	cost := uint64(e.GasUsed.ComputationCost) + uint64(e.GasUsed.StorageCost)
	rebate := uint64(e.GasUsed.StorageRebate)
	if rebate >= cost {
		return 0
	}
	return cost - rebate
}

func millis(ms common.StringUint64, fallback time.Time) time.Time {
	if ms == 0 {
		return fallback
	}
	return time.UnixMilli(int64(ms)).UTC() //nolint:gosec
}

// buildCheckpoint assembles the domain checkpoint. blocks must be in the order of
// cp.Transactions.
func buildCheckpoint(cp *suiCheckpoint, blocks []suiTransactionBlock) (*types.Checkpoint, error) {
	if len(blocks) != len(cp.Transactions) {
		return nil, fmt.Errorf("checkpoint %d lists %d transactions, node returned %d",
			cp.SequenceNumber, len(cp.Transactions), len(blocks))
	}

	seq := uint64(cp.SequenceNumber)
	checkpoint := &types.Checkpoint{
		Sequence:     seq,
		Digest:       cp.Digest,
		TimestampMs:  uint64(cp.TimestampMs),
		Transactions: make([]types.RawTransaction, 0, len(blocks)),
	}
	checkpointTime := checkpoint.Timestamp()

	for i, block := range blocks {
		if block.Digest != cp.Transactions[i] {
			return nil, fmt.Errorf("checkpoint %d: expected transaction %s at position %d, got %s",
				seq, cp.Transactions[i], i, block.Digest)
		}

		txTime := millis(block.TimestampMs, checkpointTime)

		var effects suiEffects
		if len(block.Effects) > 0 {
			if err := json.Unmarshal(block.Effects, &effects); err != nil {
				return nil, fmt.Errorf("failed to decode effects of transaction %s: %w", block.Digest, err)
			}
		}

		sender := ""
		if block.Transaction != nil {
			sender = block.Transaction.Data.Sender
		}

		checkpoint.Transactions = append(checkpoint.Transactions, types.RawTransaction{
			Digest:             block.Digest,
			CheckpointSequence: seq,
			Sender:             sender,
			GasUsed:            effects.gasUsed(),
			Status:             effects.Status.Status,
			Effects:            block.Effects,
			Timestamp:          txTime,
		})

		for _, ev := range block.Events {
			digest := ev.ID.TxDigest
			if digest == "" {
				digest = block.Digest
			}

			checkpoint.Events = append(checkpoint.Events, types.RawEvent{
				CheckpointSequence: seq,
				TransactionDigest:  digest,
				EventSequence:      uint64(ev.ID.EventSeq),
				PackageID:          ev.PackageID,
				ModuleName:         ev.TransactionModule,
				EventType:          ev.Type,
				Sender:             ev.Sender,
				Fields:             ev.ParsedJSON,
				Timestamp:          millis(ev.TimestampMs, txTime),
			})
		}
	}

	return checkpoint, nil
}
