// Package pollx runs a check at a fixed interval until it reports done,
// fails, the timeout elapses or the context is cancelled.
package pollx

import (
	"context"
	"errors"
	"time"
)

var ErrTimeout = errors.New("poll timed out")

// CheckFunc reports whether polling can stop. A non-nil error stops polling
// and is returned unchanged.
type CheckFunc func(ctx context.Context) (done bool, err error)

// Until calls check immediately and then every interval. It returns nil once
// check reports done, ErrTimeout after timeout, or ctx.Err() on cancellation.
//
// check runs under a context that ends at the timeout, so a check blocked
// in I/O is cut short too. Whatever it returns after that point is
// discarded in favour of ErrTimeout.
func Until(ctx context.Context, interval, timeout time.Duration, check CheckFunc) error {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stopped := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrTimeout
	}

	tick := time.NewTimer(0)
	defer tick.Stop()

	for {
		select {
		case <-pollCtx.Done():
			return stopped()
		case <-tick.C:
		}

		done, err := check(pollCtx)
		if err == nil && done {
			return nil
		}
		if pollCtx.Err() != nil {
			return stopped()
		}
		if err != nil {
			return err
		}
		tick.Reset(interval)
	}
}
