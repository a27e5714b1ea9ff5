package storage

import (
	"context"
	"errors"
	"time"

	"github.com/teamvault/backend/pkg/logger"
)

// KeyError records one key that could not be deleted after the retry.
type KeyError struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// DeleteResult aggregates a batch delete. Any entry in Errors marks the
// whole batch as failed: partial success at the key level never constitutes
// overall success, because the orchestrator must not touch metadata for a
// request whose payloads may still exist.
type DeleteResult struct {
	Deleted int
	Errors  []KeyError
}

func (r DeleteResult) Failed() bool {
	return len(r.Errors) > 0
}

// BatchDeleter issues idempotent deletes against the object store. A missing
// object counts as deleted; any other failure is retried exactly once. The
// timeout bounds each individual attempt, so the retry after a timed-out
// attempt starts with a fresh deadline.
type BatchDeleter struct {
	store   ObjectRemover
	timeout time.Duration
}

func NewBatchDeleter(store ObjectRemover, attemptTimeout time.Duration) *BatchDeleter {
	return &BatchDeleter{store: store, timeout: attemptTimeout}
}

// DeleteAll processes keys sequentially to bound concurrent load on the
// store's API. It always visits every key, so the caller gets the complete
// error set rather than the first failure.
func (d *BatchDeleter) DeleteAll(ctx context.Context, keys []string) DeleteResult {
	var result DeleteResult
	for _, key := range keys {
		if err := d.deleteOne(ctx, key); err != nil {
			result.Errors = append(result.Errors, KeyError{Key: key, Message: err.Error()})
			continue
		}
		result.Deleted++
	}

	if result.Failed() {
		logger.Error("store_batch_delete_failed", nil, map[string]interface{}{
			"requested": len(keys),
			"deleted":   result.Deleted,
			"failed":    len(result.Errors),
		})
	}
	return result
}

func (d *BatchDeleter) deleteOne(ctx context.Context, key string) error {
	err := d.attempt(ctx, key)
	if err == nil || errors.Is(err, ErrObjectMissing) {
		return nil
	}

	logger.Warn("store_delete_retry", map[string]interface{}{
		"key":   key,
		"error": err.Error(),
	})

	// Timeouts and transient faults get exactly one more attempt.
	err = d.attempt(ctx, key)
	if err == nil || errors.Is(err, ErrObjectMissing) {
		return nil
	}
	return err
}

func (d *BatchDeleter) attempt(ctx context.Context, key string) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return d.store.Remove(ctx, key)
}
