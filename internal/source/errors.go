package source

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// ErrCheckpointNotFound means the requested checkpoint is not produced upstream yet.
// It is not retried; the caller should poll again later.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

var notFoundFragments = []string{
	"could not find",
	"not found",
	"does not exist",
}

// isNotFound reports whether a JSON-RPC error says the referenced checkpoint is missing.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}

	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return false
	}

	msg := strings.ToLower(rpcErr.Error())
	for _, fragment := range notFoundFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
