// Package source reads checkpoints from a Sui full node over JSON-RPC.
package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/longcipher/sui-indexer/internal/common"
	"github.com/longcipher/sui-indexer/internal/logger"
	"github.com/longcipher/sui-indexer/internal/retry"
	"github.com/longcipher/sui-indexer/pkg/config"
	pkgsource "github.com/longcipher/sui-indexer/pkg/source"
	"github.com/longcipher/sui-indexer/pkg/types"
	"golang.org/x/sync/errgroup"
)

// Compile-time check to ensure Client implements pkgsource.CheckpointSource interface.
var _ pkgsource.CheckpointSource = (*Client)(nil)

const (
	methodLatestCheckpoint  = "sui_getLatestCheckpointSequenceNumber"
	methodGetCheckpoint     = "sui_getCheckpoint"
	methodMultiGetTxBlocks  = "sui_multiGetTransactionBlocks"
	maxDigestsPerMultiGet   = 50
	defaultMaxConcurrentRPC = 10
)

var txBlockOptions = map[string]bool{
	"showInput":   true,
	"showEffects": true,
	"showEvents":  true,
}

// Client is the Checkpoint Source backed by a full node's JSON-RPC API.
// Every call goes through the retry policy; the HTTP connection pool is shared by all calls.
type Client struct {
	rpc           *rpc.Client
	transport     *http.Transport
	policy        retry.Policy
	maxConcurrent int
	log           *logger.Logger
}

// NewClient creates a new client connected to cfg.GRPCURL.
func NewClient(ctx context.Context, cfg config.NetworkConfig, policy retry.Policy, log *logger.Logger) (*Client, error) {
	timeout := cfg.Pool.Timeout.Duration
	keepAlive := cfg.Pool.KeepAlive.Duration

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: keepAlive,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxConnsPerHost:     cfg.Pool.MaxConnections,
		MaxIdleConns:        cfg.Pool.MaxConnections,
		MaxIdleConnsPerHost: cfg.Pool.MaxConnections,
		IdleConnTimeout:     keepAlive,
	}

	rpcClient, err := rpc.DialOptions(ctx, cfg.GRPCURL,
		rpc.WithHTTPClient(&http.Client{Transport: transport, Timeout: timeout}))
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.GRPCURL, err)
	}

	maxConcurrent := cfg.Pool.MaxConnections
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentRPC
	}

	return &Client{
		rpc:           rpcClient,
		transport:     transport,
		policy:        policy,
		maxConcurrent: maxConcurrent,
		log:           log,
	}, nil
}

// Close closes the RPC client and its idle connections.
func (c *Client) Close() {
	c.rpc.Close()
	c.transport.CloseIdleConnections()
}

// Ping performs a single, non-retried request against the node.
func (c *Client) Ping(ctx context.Context) error {
	var latest common.StringUint64
	if err := c.rpc.CallContext(ctx, &latest, methodLatestCheckpoint); err != nil {
		return fmt.Errorf("full node is not reachable: %w", err)
	}
	return nil
}

// LatestSequence returns the highest checkpoint sequence the node has produced.
func (c *Client) LatestSequence(ctx context.Context) (uint64, error) {
	var latest common.StringUint64
	if err := c.call(ctx, &latest, methodLatestCheckpoint); err != nil {
		return 0, err
	}

	LatestUpstreamCheckpoint.Set(float64(latest))
	return uint64(latest), nil
}

// Fetch retrieves checkpoint sequence with all of its transactions and events.
// Transactions are fetched in chunks that run concurrently, bounded by the pool size.
func (c *Client) Fetch(ctx context.Context, sequence uint64) (*types.Checkpoint, error) {
	var cp *suiCheckpoint
	if err := c.call(ctx, &cp, methodGetCheckpoint, strconv.FormatUint(sequence, 10)); err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, fmt.Errorf("%w: %d", ErrCheckpointNotFound, sequence)
	}

	blocks, err := c.fetchTransactionBlocks(ctx, cp.Transactions)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions of checkpoint %d: %w", sequence, err)
	}

	checkpoint, err := buildCheckpoint(cp, blocks)
	if err != nil {
		return nil, err
	}

	c.log.Debugw("fetched checkpoint",
		"sequence", checkpoint.Sequence,
		"transactions", len(checkpoint.Transactions),
		"events", len(checkpoint.Events))

	return checkpoint, nil
}

func (c *Client) fetchTransactionBlocks(ctx context.Context, digests []string) ([]suiTransactionBlock, error) {
	if len(digests) == 0 {
		return nil, nil
	}

	chunks := make([][]string, 0, (len(digests)+maxDigestsPerMultiGet-1)/maxDigestsPerMultiGet)
	for i := 0; i < len(digests); i += maxDigestsPerMultiGet {
		chunks = append(chunks, digests[i:min(i+maxDigestsPerMultiGet, len(digests))])
	}

	results := make([][]suiTransactionBlock, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrent)

	for i, chunk := range chunks {
		g.Go(func() error {
			return retry.Do(gctx, c.policy, methodMultiGetTxBlocks, func(ctx context.Context) error {
				var out []suiTransactionBlock
				if err := c.callOnce(ctx, &out, methodMultiGetTxBlocks, chunk, txBlockOptions); err != nil {
					return err
				}
				if err := verifyChunk(chunk, out); err != nil {
					return err
				}
				results[i] = out
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	blocks := make([]suiTransactionBlock, 0, len(digests))
	for _, chunk := range results {
		blocks = append(blocks, chunk...)
	}

	return blocks, nil
}

// verifyChunk checks the node answered every requested digest, in order. A short
// answer usually means the node has not indexed the transactions yet.
func verifyChunk(requested []string, got []suiTransactionBlock) error {
	if len(got) != len(requested) {
		return retry.MarkTransient(fmt.Errorf("requested %d transactions, node returned %d", len(requested), len(got)))
	}
	for i := range requested {
		if got[i].Digest != requested[i] {
			return retry.MarkTransient(fmt.Errorf("expected transaction %s, node returned %s", requested[i], got[i].Digest))
		}
	}
	return nil
}

// call performs one JSON-RPC method under the retry policy.
func (c *Client) call(ctx context.Context, result any, method string, args ...any) error {
	return retry.Do(ctx, c.policy, method, func(ctx context.Context) error {
		return c.callOnce(ctx, result, method, args...)
	})
}

func (c *Client) callOnce(ctx context.Context, result any, method string, args ...any) error {
	start := time.Now()
	RPCMethodInc(method)

	err := c.rpc.CallContext(ctx, result, method, args...)
	RPCMethodDuration(method, time.Since(start))
	if err == nil {
		return nil
	}

	if isNotFound(err) {
		RPCMethodError(method, "not_found")
		return retry.MarkPermanent(fmt.Errorf("%w: %w", ErrCheckpointNotFound, err))
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	RPCMethodError(method, retry.Classify(err).String())
	c.log.Debugw("rpc call failed", "method", method, "error", err)
	return err
}
