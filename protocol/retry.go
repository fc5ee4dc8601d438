// Package protocol implements the chunked upload and download protocols as
// queue.Unit work items with inter-unit dependencies: initial probe -> N
// block units -> finalize.
package protocol

import (
	"context"
	"errors"
	"time"

	"github.com/blobxfer/blobxfer/common"
	"github.com/blobxfer/blobxfer/transport"
)

// DefaultMaxRetries is the bounded retry count for a retryable
// TransportFailure.
const DefaultMaxRetries = 3

const retryBaseDelay = 200 * time.Millisecond

// runWithRetry runs fn, retrying up to maxRetries times with exponential
// backoff when fn's error is a retryable transport.StatusError. A
// non-retryable error, or exhaustion of the retry budget, is returned
// wrapped as a *common.TransferError so the manager can classify it without
// re-inspecting the transport error.
func runWithRetry(ctx context.Context, maxRetries int, fn func() error) error {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return common.NewTransferError(common.EErrorCode.Canceled(), "canceled", ctx.Err())
		}
		var statusErr *transport.StatusError
		if !errors.As(lastErr, &statusErr) || !common.Retryable(statusErr.StatusCode) {
			return common.NewTransferError(common.EErrorCode.TransportFailure(), "non-retryable transport failure", lastErr)
		}
		if attempt == maxRetries {
			break
		}
		delay := retryBaseDelay * time.Duration(1<<uint(attempt))
		select {
		case <-ctx.Done():
			return common.NewTransferError(common.EErrorCode.Canceled(), "canceled", ctx.Err())
		case <-time.After(delay):
		}
	}
	return common.NewTransferError(common.EErrorCode.TransportFailure(), "retries exhausted", lastErr)
}
