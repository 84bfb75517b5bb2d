package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

const defaultPollInterval = 5 * time.Second

// errProcessing marks a container that has not finished processing yet.
var errProcessing = errors.New("media still processing")

// pollUntilReady calls check every interval until it reports done, returns a
// permanent error, or maxPolls is exhausted. check returns (false, nil) while
// the platform is still processing and a non-nil error for a poll that
// should be retried anyway (e.g. a flaky status endpoint).
func pollUntilReady(ctx context.Context, interval time.Duration, maxPolls int, check func(ctx context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if maxPolls < 1 {
		maxPolls = 1
	}

	var permanent error
	backoff := retry.WithMaxRetries(uint64(maxPolls-1), retry.NewConstant(interval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		done, err := check(ctx)
		var stop *processingFailedError
		switch {
		case errors.As(err, &stop):
			permanent = err
			return err
		case err != nil:
			return retry.RetryableError(err)
		case !done:
			return retry.RetryableError(errProcessing)
		}
		return nil
	})
	if permanent != nil {
		return permanent
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("processing timeout after %d polls: %w", maxPolls, err)
	}
	return nil
}

// processingFailedError is a terminal container state reported by the
// platform. Polling stops immediately.
type processingFailedError struct {
	status  string
	message string
}

func (e *processingFailedError) Error() string {
	if e.message == "" {
		return fmt.Sprintf("media processing failed (status: %s)", e.status)
	}
	return fmt.Sprintf("media processing failed (status: %s): %s", e.status, e.message)
}
