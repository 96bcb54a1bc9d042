package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/longcipher/sui-indexer/internal/logger"
	"github.com/longcipher/sui-indexer/internal/store"
	"github.com/longcipher/sui-indexer/pkg/types"
)

// Reader is the read side of the store the API serves from.
type Reader interface {
	Progress(ctx context.Context) (types.CheckpointProgress, error)
	Counts(ctx context.Context) (events, transactions int64, err error)
	QueryEvents(ctx context.Context, q types.EventQuery) ([]types.ProcessedEvent, int64, error)
	QueryTransactions(ctx context.Context, q types.TransactionQuery) ([]types.ProcessedTransaction, int64, error)
	TransactionByDigest(ctx context.Context, digest string) (types.ProcessedTransaction, error)
}

// Handler handles HTTP requests for the API.
type Handler struct {
	reader      Reader
	maxPageSize int
	log         *logger.Logger
}

// NewHandler creates a new API handler. maxPageSize caps the limit parameter.
func NewHandler(reader Reader, maxPageSize int, log *logger.Logger) *Handler {
	if maxPageSize < 1 {
		maxPageSize = store.DefaultQueryLimit
	}
	return &Handler{
		reader:      reader,
		maxPageSize: maxPageSize,
		log:         log,
	}
}

// GetEvents retrieves stored events.
// @Summary Query events
// @Description Retrieve indexed events with optional filtering and pagination, ordered by checkpoint, transaction digest and event sequence
// @Tags Events
// @Produce json
// @Param from_checkpoint query integer false "Lowest checkpoint sequence, inclusive"
// @Param to_checkpoint query integer false "Highest checkpoint sequence, inclusive"
// @Param package query string false "Package id"
// @Param module query string false "Module name"
// @Param event_type query string false "Fully qualified event type"
// @Param sender query string false "Sender address"
// @Param tx_digest query string false "Transaction digest"
// @Param limit query int false "Maximum number of events to return" default(100)
// @Param offset query int false "Number of events to skip" default(0)
// @Param order query string false "Sort order" Enums(asc, desc)
// @Success 200 {object} EventsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /events [get]
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	page, err := h.parsePage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	query := types.EventQuery{
		FromCheckpoint: page.from,
		ToCheckpoint:   page.to,
		PackageID:      q.Get("package"),
		Module:         q.Get("module"),
		EventType:      q.Get("event_type"),
		Sender:         q.Get("sender"),
		TxDigest:       q.Get("tx_digest"),
		Limit:          page.limit,
		Offset:         page.offset,
		Descending:     page.desc,
	}

	events, total, err := h.reader.QueryEvents(r.Context(), query)
	if err != nil {
		h.log.Errorf("failed to query events: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to query events")
		return
	}

	respondJSON(w, http.StatusOK, EventsResponse{
		Events:     events,
		Pagination: page.result(total, len(events)),
	})
}

// GetCheckpointEvents retrieves the events of a single checkpoint.
// @Summary Events of a checkpoint
// @Tags Events
// @Produce json
// @Param sequence path integer true "Checkpoint sequence"
// @Param limit query int false "Maximum number of events to return" default(100)
// @Param offset query int false "Number of events to skip" default(0)
// @Success 200 {object} EventsResponse
// @Failure 400 {object} ErrorResponse
// @Router /checkpoints/{sequence}/events [get]
func (h *Handler) GetCheckpointEvents(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.ParseUint(r.PathValue("sequence"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid checkpoint sequence")
		return
	}

	page, err := h.parsePage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, total, err := h.reader.QueryEvents(r.Context(), types.EventQuery{
		FromCheckpoint: &seq,
		ToCheckpoint:   &seq,
		Limit:          page.limit,
		Offset:         page.offset,
		Descending:     page.desc,
	})
	if err != nil {
		h.log.Errorf("failed to query events of checkpoint %d: %v", seq, err)
		respondError(w, http.StatusInternalServerError, "failed to query events")
		return
	}

	respondJSON(w, http.StatusOK, EventsResponse{
		Events:     events,
		Pagination: page.result(total, len(events)),
	})
}

// GetTransactions retrieves stored transactions.
// @Summary Query transactions
// @Tags Transactions
// @Produce json
// @Param from_checkpoint query integer false "Lowest checkpoint sequence, inclusive"
// @Param to_checkpoint query integer false "Highest checkpoint sequence, inclusive"
// @Param sender query string false "Sender address"
// @Param status query string false "Execution status" Enums(success, failure)
// @Param limit query int false "Maximum number of transactions to return" default(100)
// @Param offset query int false "Number of transactions to skip" default(0)
// @Param order query string false "Sort order" Enums(asc, desc)
// @Success 200 {object} TransactionsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /transactions [get]
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	page, err := h.parsePage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	txs, total, err := h.reader.QueryTransactions(r.Context(), types.TransactionQuery{
		FromCheckpoint: page.from,
		ToCheckpoint:   page.to,
		Sender:         q.Get("sender"),
		Status:         q.Get("status"),
		Limit:          page.limit,
		Offset:         page.offset,
		Descending:     page.desc,
	})
	if err != nil {
		h.log.Errorf("failed to query transactions: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to query transactions")
		return
	}

	respondJSON(w, http.StatusOK, TransactionsResponse{
		Transactions: txs,
		Pagination:   page.result(total, len(txs)),
	})
}

// GetTransaction retrieves one transaction by digest.
// @Summary Get a transaction
// @Tags Transactions
// @Produce json
// @Param digest path string true "Transaction digest"
// @Success 200 {object} types.ProcessedTransaction
// @Failure 404 {object} ErrorResponse
// @Router /transactions/{digest} [get]
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	digest := r.PathValue("digest")

	tx, err := h.reader.TransactionByDigest(r.Context(), digest)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, fmt.Sprintf("transaction '%s' not found", digest))
		return
	}
	if err != nil {
		h.log.Errorf("failed to get transaction %s: %v", digest, err)
		respondError(w, http.StatusInternalServerError, "failed to get transaction")
		return
	}

	respondJSON(w, http.StatusOK, tx)
}

// GetStats returns the ingestion progress and row counts.
// @Summary Indexing statistics
// @Tags Stats
// @Produce json
// @Success 200 {object} StatsResponse
// @Failure 500 {object} ErrorResponse
// @Router /stats [get]
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	progress, err := h.reader.Progress(r.Context())
	if err != nil {
		h.log.Errorf("failed to read progress: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to read progress")
		return
	}

	events, txs, err := h.reader.Counts(r.Context())
	if err != nil {
		h.log.Errorf("failed to count rows: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to count rows")
		return
	}

	respondJSON(w, http.StatusOK, StatsResponse{Progress: progress, Events: events, Transactions: txs})
}

// Health reports whether the store is readable.
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Timestamp: time.Now().UTC()}

	progress, err := h.reader.Progress(r.Context())
	if err != nil {
		resp.Status = "unavailable"
		resp.Error = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	resp.Stream = progress.Stream
	resp.LastCommitted = progress.Sequence
	respondJSON(w, http.StatusOK, resp)
}

type pageParams struct {
	from, to *uint64
	limit    int
	offset   int
	desc     bool
}

func (p pageParams) result(total int64, n int) PaginationResult {
	return PaginationResult{
		Total:   total,
		Limit:   p.limit,
		Offset:  p.offset,
		HasMore: int64(p.offset+n) < total,
	}
}

func (h *Handler) parsePage(r *http.Request) (pageParams, error) {
	q := r.URL.Query()
	p := pageParams{limit: store.DefaultQueryLimit}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return p, fmt.Errorf("invalid limit %q", v)
		}
		p.limit = limit
	}
	p.limit = min(p.limit, h.maxPageSize)

	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return p, fmt.Errorf("invalid offset %q", v)
		}
		p.offset = offset
	}

	for key, dst := range map[string]**uint64{"from_checkpoint": &p.from, "to_checkpoint": &p.to} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return p, fmt.Errorf("invalid %s %q", key, v)
		}
		*dst = &n
	}
	if p.from != nil && p.to != nil && *p.from > *p.to {
		return p, fmt.Errorf("from_checkpoint must not exceed to_checkpoint")
	}

	switch q.Get("order") {
	case "", "asc":
	case "desc":
		p.desc = true
	default:
		return p, fmt.Errorf("invalid order %q (asc or desc)", q.Get("order"))
	}

	return p, nil
}

// respondJSON writes data as a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.GetDefaultLogger().Errorf("failed to encode response: %v", err)
	}
}

// respondError writes an ErrorResponse.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: status})
}
