// Package wait implements the polling primitive used whenever bottlectl has
// to wait on an external process that offers no completion signal, such as
// wineserver materializing registry files.
package wait

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrTimeout is returned when a condition is still false after the timeout.
var ErrTimeout = errors.New("wait: timed out")

// DefaultInterval is the polling interval used when none is given.
const DefaultInterval = 500 * time.Millisecond

// Until polls cond every interval until it returns true, the timeout
// elapses or ctx is cancelled. A zero timeout means no bound other than ctx.
func Until(ctx context.Context, timeout, interval time.Duration, cond func() (bool, error)) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for {
		ok, err := cond()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrTimeout
			}
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// ForFiles blocks until every path exists.
func ForFiles(ctx context.Context, timeout, interval time.Duration, paths ...string) error {
	err := Until(ctx, timeout, interval, func() (bool, error) {
		for _, p := range paths {
			if _, err := os.Stat(p); err != nil {
				return false, nil
			}
		}
		return true, nil
	})
	if errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w waiting for %v", ErrTimeout, paths)
	}
	return err
}
