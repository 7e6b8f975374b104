// Package waiter polls a condition until it holds or a deadline passes.
package waiter

import (
	"context"
	"time"

	"github.com/pkg/errors"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// ErrTerminal marks a condition error that will not clear by waiting, such
// as a failed fix-layout. Wrap it to stop polling early.
var ErrTerminal = errors.New("terminal state")

// Terminal wraps err so that For stops polling.
func Terminal(err error) error {
	return errors.Wrap(ErrTerminal, err.Error())
}

// Condition reports (true, nil) when met and (false, nil) when not met yet.
// A non-nil error means the state could not be observed and the poll is
// retried, unless the error wraps ErrTerminal.
type Condition func() (bool, error)

// For polls cond every interval until it holds, ctx is done or timeout
// elapses. It never leaves anything running once it returns.
func For(ctx context.Context, what string, timeout, interval time.Duration, cond Condition) bool {
	deadline := time.Now().Add(timeout)
	var lastErr error
	polls := 0
	for {
		polls++
		ok, err := cond()
		switch {
		case err == nil && ok:
			logf.Log.Info("Condition met", "condition", what, "polls", polls)
			return true
		case errors.Is(err, ErrTerminal):
			logf.Log.Info("Condition reached a terminal state", "condition", what, "error", err)
			return false
		}
		lastErr = err

		remaining := time.Until(deadline)
		if remaining <= 0 {
			logf.Log.Info("Timed out waiting", "condition", what, "timeout", timeout, "polls", polls, "lastError", lastErr)
			return false
		}
		sleep := interval
		if sleep > remaining {
			sleep = remaining
		}
		t := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			t.Stop()
			logf.Log.Info("Wait cancelled", "condition", what, "polls", polls, "lastError", lastErr)
			return false
		case <-t.C:
		}
	}
}
