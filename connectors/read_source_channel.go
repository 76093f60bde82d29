package connectors

import (
	"context"
	"math"
	"time"
)

const (
	// initialBackoffDuration is the starting duration for exponential backoff
	initialBackoffDuration = 100 * time.Millisecond

	// maxBackoffDuration is the maximum duration for backoff
	maxBackoffDuration = 10 * time.Second
)

// Fetcher produces one batch per call.
type Fetcher[T any] interface {
	Fetch(ctx context.Context) (T, error)
}

// ReadFunc fetches one batch when the caller invokes it.
type ReadFunc[T any] func() (T, error)

type ReadSourceChannel[T any] struct {
	// The channel to read from
	C chan ReadFunc[T]

	fetcher        Fetcher[T]
	initialBackoff time.Duration
	maxBackoff     time.Duration

	// signal to stop sending read functions
	cancel context.CancelFunc

	// Flag that the channel is already running
	started bool
}

type ReadSourceChannelOption func(*readSourceChannelOptions)

type readSourceChannelOptions struct {
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// WithBackoff overrides the delay after the first retryable failure and the
// cap that repeated failures grow to.
func WithBackoff(initial, max time.Duration) ReadSourceChannelOption {
	return func(o *readSourceChannelOptions) {
		o.initialBackoff = initial
		o.maxBackoff = max
	}
}

func NewReadSourceChannel[T any](fetcher Fetcher[T], opts ...ReadSourceChannelOption) *ReadSourceChannel[T] {
	o := readSourceChannelOptions{
		initialBackoff: initialBackoffDuration,
		maxBackoff:     maxBackoffDuration,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &ReadSourceChannel[T]{
		C:              make(chan ReadFunc[T]),
		fetcher:        fetcher,
		initialBackoff: o.initialBackoff,
		maxBackoff:     o.maxBackoff,
	}
}

// Start sends read functions over a channel. The caller invokes each one on its
// own goroutine, so fetches never overlap with other work the caller does
// between reads. The next read function is sent only after the previous one
// returned, delayed by a backoff while retryable failures accumulate.
func (c *ReadSourceChannel[T]) Start(ctx context.Context) {
	if c.started {
		return
	}
	c.started = true

	// Allow Stop to cancel the loop
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go func() {
		// Track consecutive failures for backoff calculations
		consecutiveFailures := 0

		// Signal that the previous `ReadFunc` finished
		readComplete := make(chan struct{}, 1)
		readComplete <- struct{}{}

		for {
			// Wait for the previous read function to finish and possibly apply
			// a backoff.
			select {
			case <-ctx.Done():
				return
			case <-readComplete:
				c.backoff(ctx, consecutiveFailures)
			}

			select {
			case <-ctx.Done():
				return
			case c.C <- func() (T, error) {
				defer func() { readComplete <- struct{}{} }()

				batch, err := c.fetcher.Fetch(ctx)
				if err != nil && IsRetryable(err) {
					consecutiveFailures++
					return batch, err
				}

				// Reset backoff state on success or terminal error
				consecutiveFailures = 0
				return batch, err
			}:
			}
		}
	}()
}

// Stop stops sending read functions over the channel. The channel can be
// Started again.
func (c *ReadSourceChannel[T]) Stop() {
	c.started = false

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// backoff sleeps for an increasingly longer duration as failures accumulate, up
// to a maximum duration.
func (c *ReadSourceChannel[T]) backoff(ctx context.Context, consecutiveFailures int) {
	if consecutiveFailures == 0 {
		return
	}

	factor := math.Pow(2, float64(consecutiveFailures))
	duration := min(time.Duration(float64(c.initialBackoff)*factor), c.maxBackoff)

	select {
	case <-ctx.Done():
		return
	case <-time.After(duration):
	}
}
