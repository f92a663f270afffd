package repositories

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "workroom/errors"

	"github.com/dgraph-io/badger/v4"
)

const (
	retryAttempts = 3
	retryBackoff  = 25 * time.Millisecond
)

// withRetry runs a badger transaction function, retrying conflicts
// with bounded backoff. Per-room writes are serialized upstream, so
// conflicts only come from cross-key races (indexes, counters);
// exhaustion surfaces as a retryable transient failure.
func withRetry(log *slog.Logger, fn func() error) error {
	backoff := retryBackoff
	var err error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, badger.ErrConflict) {
			return err
		}
		log.Debug(fmt.Sprintf("Store conflict, retrying (attempt %d/%d)", attempt, retryAttempts))
		time.Sleep(backoff)
		backoff *= 2
	}
	return fmt.Errorf("%w: %v", apperrors.ErrTransientStore, err)
}
