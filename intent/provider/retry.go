package provider

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/openai/openai-go/responses"
)

const maxAttempts = 3

var (
	rateLimitWaitTimes   = []time.Duration{65 * time.Second, 100 * time.Second, 135 * time.Second}
	serverErrorWaitTimes = []time.Duration{5 * time.Second, 30 * time.Second, 60 * time.Second}
	networkBackoffBase   = time.Second
)

// callFunc performs one attempt against the backend.
type callFunc func(context.Context) (*responses.Response, error)

func callWithRetry(ctx context.Context, call callFunc) (*responses.Response, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := call(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !Retryable(err) || attempt == maxAttempts-1 {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoffFor(err, attempt)):
		}
	}
	return nil, lastErr
}

func backoffFor(err error, attempt int) time.Duration {
	switch {
	case isRateLimitError(err):
		return rateLimitWaitTimes[attempt]
	case isServerError(err):
		return serverErrorWaitTimes[attempt]
	default:
		return networkBackoffBase << attempt
	}
}

// Retryable reports whether err is transient: rate limiting, server-side
// failures, and network-level problems. Anything else (auth, bad request,
// cancellation) propagates immediately.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return isRateLimitError(err) || isServerError(err) || isNetworkError(err)
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isServerError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "service unavailable")
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE)
}
