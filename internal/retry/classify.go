package retry

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/rpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Class tells Do whether a failure is worth another attempt.
type Class int

const (
	// Fatal failures are returned to the caller immediately.
	Fatal Class = iota
	// Transient failures are retried with backoff.
	Transient
)

func (c Class) String() string {
	if c == Transient {
		return "transient"
	}
	return "fatal"
}

type markedError struct {
	err   error
	class Class
}

func (e *markedError) Error() string { return e.err.Error() }
func (e *markedError) Unwrap() error { return e.err }

// MarkTransient forces err to be classified as Transient.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &markedError{err: err, class: Transient}
}

// MarkPermanent forces err to be classified as Fatal, so it is never retried.
func MarkPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &markedError{err: err, class: Fatal}
}

// Classify decides whether err is Transient or Fatal.
// Unknown errors are Fatal.
func Classify(err error) Class {
	if err == nil {
		return Fatal
	}

	var marked *markedError
	if errors.As(err, &marked) {
		return marked.class
	}

	// Cancellation means the caller is going away.
	if errors.Is(err, context.Canceled) {
		return Fatal
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}

	if s, ok := status.FromError(err); ok && s.Code() != codes.OK && s.Code() != codes.Unknown {
		return classifyCode(s.Code())
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return classifyHTTPStatus(httpErr.StatusCode)
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		// -32700 parse error and -32600..-32602 are malformed requests
		if code := rpcErr.ErrorCode(); code == -32700 || (code <= -32600 && code >= -32602) {
			return Fatal
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, driver.ErrBadConn) {
		return Transient
	}

	if transientMessage(strings.ToLower(err.Error())) {
		return Transient
	}

	return Fatal
}

func classifyCode(code codes.Code) Class {
	switch code {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return Transient
	default:
		return Fatal
	}
}

func classifyHTTPStatus(code int) Class {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout, code >= http.StatusInternalServerError:
		return Transient
	default:
		return Fatal
	}
}

var transientFragments = []string{
	"timeout",
	"deadline exceeded",
	"too many requests",
	"rate limit",
	"bad gateway",
	"service unavailable",
	"gateway timeout",
	"connection reset",
	"connection refused",
	"broken pipe",
	"unexpected eof",
	"connection pool",
	"no available connection",
	"database is locked",
	"database table is locked",
}

func transientMessage(msg string) bool {
	for _, fragment := range transientFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
