package api

import (
	"time"

	"github.com/longcipher/sui-indexer/pkg/types"
)

// EventsResponse is a page of events.
type EventsResponse struct {
	Events     []types.ProcessedEvent `json:"events"`
	Pagination PaginationResult       `json:"pagination"`
}

// TransactionsResponse is a page of transactions.
type TransactionsResponse struct {
	Transactions []types.ProcessedTransaction `json:"transactions"`
	Pagination   PaginationResult             `json:"pagination"`
}

// PaginationResult contains pagination metadata.
type PaginationResult struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	Stream        string    `json:"stream,omitempty"`
	LastCommitted uint64    `json:"last_committed"`
	Error         string    `json:"error,omitempty"`
}

// StatsResponse summarizes the stored data.
type StatsResponse struct {
	Progress     types.CheckpointProgress `json:"progress"`
	Events       int64                    `json:"events"`
	Transactions int64                    `json:"transactions"`
}
