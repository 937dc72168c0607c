package verification

import (
	"context"
	"time"
)

const (
	DefaultMaxAttempts = 5
	DefaultBackoffUnit = time.Second
)

// Backoff is the polling schedule for chain lookups. After failed attempt n
// the caller waits n*Unit, for at most MaxAttempts attempts in total.
type Backoff struct {
	MaxAttempts int
	Unit        time.Duration

	attempt int
	elapsed time.Duration
}

func NewBackoff(maxAttempts int, unit time.Duration) *Backoff {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Backoff{MaxAttempts: maxAttempts, Unit: unit}
}

// Next records a failed attempt and returns the delay before the next one.
// ok is false once the attempt budget is spent.
func (b *Backoff) Next() (delay time.Duration, ok bool) {
	b.attempt++
	if b.attempt >= b.MaxAttempts {
		return 0, false
	}
	delay = time.Duration(b.attempt) * b.Unit
	b.elapsed += delay
	return delay, true
}

// Attempts returns the number of failed attempts recorded so far.
func (b *Backoff) Attempts() int {
	return b.attempt
}

// Elapsed returns the total backoff handed out so far.
func (b *Backoff) Elapsed() time.Duration {
	return b.elapsed
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
