package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDoStopsOnDone(t *testing.T) {
	var attempts []int
	p := Policy{MaxAttempts: 5}

	err := p.Do(context.Background(), func(attempt int) (Verdict, error) {
		attempts = append(attempts, attempt)
		if attempt == 3 {
			return Done, nil
		}
		return Again, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestDoAbortReturnsImmediately(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	p := Policy{MaxAttempts: 5}

	err := p.Do(context.Background(), func(int) (Verdict, error) {
		calls++
		return Abort, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsBudget(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 4}

	err := p.Do(context.Background(), func(int) (Verdict, error) {
		calls++
		return Again, errors.New("transient")
	})

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 4, calls)
}

func TestDoRejectsNonPositiveBudget(t *testing.T) {
	err := Policy{MaxAttempts: 0}.Do(context.Background(), func(int) (Verdict, error) {
		t.Fatal("op should not run")
		return Done, nil
	})
	assert.Error(t, err)
}

func TestDoSkipsSleepAfterFinalAttempt(t *testing.T) {
	// A one-hour interval would hang the test if the loop slept after the
	// last attempt.
	p := Policy{MaxAttempts: 1, Interval: time.Hour}

	start := time.Now()
	err := p.Do(context.Background(), func(int) (Verdict, error) {
		return Again, nil
	})

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDoSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, Interval: time.Hour}

	err := p.Do(ctx, func(int) (Verdict, error) {
		cancel()
		return Again, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoChecksContextBeforeAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Policy{MaxAttempts: 3}.Do(ctx, func(int) (Verdict, error) {
		t.Fatal("op should not run on a dead context")
		return Done, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}
