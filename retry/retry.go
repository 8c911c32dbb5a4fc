// Package retry implements the bounded fixed-interval attempt loop used by
// the model gateway (per-model call attempts) and the writeback client
// (commit polling). Both sides share the same shape: try, classify, sleep a
// fixed interval, try again, give up after a hard cap.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Verdict classifies the outcome of a single attempt.
type Verdict int

const (
	// Done ends the loop successfully.
	Done Verdict = iota
	// Again schedules another attempt after the policy interval.
	Again
	// Abort ends the loop immediately with the attempt's error.
	Abort
)

// ErrExhausted is returned when every attempt asked to go Again and the
// budget ran out. Callers wrap it with their own terminal error.
var ErrExhausted = errors.New("attempt budget exhausted")

// Policy bounds a loop: at most MaxAttempts tries, with a fixed Interval
// slept between consecutive tries. No sleep follows the final attempt.
type Policy struct {
	MaxAttempts int
	Interval    time.Duration
}

// Do runs op until it reports Done or Abort, or the budget runs out.
// Attempts are numbered from 1. The sleep between attempts honors ctx, so a
// cancelled context surfaces as ctx.Err() instead of a blocked timer.
func (p Policy) Do(ctx context.Context, op func(attempt int) (Verdict, error)) error {
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("retry policy: max attempts must be positive, got %d", p.MaxAttempts)
	}
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		verdict, err := op(attempt)
		switch verdict {
		case Done:
			return nil
		case Abort:
			if err == nil {
				err = errors.New("attempt aborted")
			}
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := sleep(ctx, p.Interval); err != nil {
			return err
		}
	}
	return ErrExhausted
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
