// Package poller drives a set of independently paced splits. Each Poll fetches
// every split whose timer is due and collects the results into one Batch.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mangrobe.dev/streamsource/clocks"
)

// SplitState is the mutable per-split progress a Poller schedules.
type SplitState interface {
	ID() string
	PollDue(now time.Time) bool
	NextPollAt() time.Time
	DeferPoll(until time.Time)
}

// QuarantineFunc reports whether a fetch failure is confined to its split.
// A quarantined split is parked for the quarantine backoff and its error is
// kept out of the Poll result.
type QuarantineFunc[S SplitState] func(state S, err error) bool

// FetchFunc reads the next records of one split. It is responsible for
// advancing the split's cursor when it returns records.
type FetchFunc[S SplitState, R any] func(ctx context.Context, state S) ([]R, error)

type Poller[S SplitState, R any] struct {
	fetch       FetchFunc[S, R]
	clock       clocks.Clock
	idleBackoff time.Duration
	logger      *slog.Logger

	quarantine        QuarantineFunc[S]
	quarantineBackoff time.Duration

	states []S
	index  map[string]int

	// Consecutive empty polls across all splits, for diagnostics only.
	emptyPolls int
}

type Params[S SplitState, R any] struct {
	Fetch FetchFunc[S, R]
	Clock clocks.Clock
	// How long a split waits after a poll that returned nothing.
	IdleBackoff time.Duration
	Logger      *slog.Logger

	// Optional. Without it every failure is returned from Poll.
	Quarantine        QuarantineFunc[S]
	QuarantineBackoff time.Duration
}

func New[S SplitState, R any](params Params[S, R]) *Poller[S, R] {
	if params.Clock == nil {
		params.Clock = clocks.NewSystemClock()
	}
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	return &Poller[S, R]{
		fetch:       params.Fetch,
		clock:       params.Clock,
		idleBackoff: params.IdleBackoff,
		logger:      params.Logger,
		index:       make(map[string]int),

		quarantine:        params.Quarantine,
		quarantineBackoff: params.QuarantineBackoff,
	}
}

// Add takes ownership of states. A state whose ID is already owned is ignored
// so that a duplicate assignment can't rewind a cursor.
func (p *Poller[S, R]) Add(states ...S) {
	for _, s := range states {
		if _, ok := p.index[s.ID()]; ok {
			p.logger.Warn("ignoring duplicate split", "split", s.ID())
			continue
		}
		p.index[s.ID()] = len(p.states)
		p.states = append(p.states, s)
	}
}

// Splits returns the owned states in the order they were added.
func (p *Poller[S, R]) Splits() []S {
	return append([]S(nil), p.states...)
}

func (p *Poller[S, R]) Len() int {
	return len(p.states)
}

// NextPollAt returns the earliest time any split may be polled. It returns
// false when there are no splits.
func (p *Poller[S, R]) NextPollAt() (time.Time, bool) {
	if len(p.states) == 0 {
		return time.Time{}, false
	}
	next := p.states[0].NextPollAt()
	for _, s := range p.states[1:] {
		if at := s.NextPollAt(); at.Before(next) {
			next = at
		}
	}
	return next, true
}

func (p *Poller[S, R]) EmptyPolls() int {
	return p.emptyPolls
}

// Poll fetches each due split once. The returned batch holds the records of
// every split that succeeded, even when others failed. Quarantined failures
// park their split; the rest are joined into the error and leave the failed
// split's timer untouched.
func (p *Poller[S, R]) Poll(ctx context.Context) (*Batch[R], error) {
	now := p.clock.Now()
	batch := &Batch[R]{}
	var errs []error

	for _, s := range p.states {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if !s.PollDue(now) {
			continue
		}

		recs, err := p.fetch(ctx, s)
		if err != nil {
			if p.quarantine != nil && p.quarantine(s, err) {
				s.DeferPoll(now.Add(p.quarantineBackoff))
				p.logger.Error("split quarantined", "split", s.ID(), "err", err, "retryIn", p.quarantineBackoff)
				continue
			}
			errs = append(errs, fmt.Errorf("split %s: %w", s.ID(), err))
			continue
		}

		if len(recs) == 0 {
			s.DeferPoll(now.Add(p.idleBackoff))
			p.emptyPolls++
			if p.emptyPolls%3 == 0 {
				p.logger.Debug("no new commits", "split", s.ID(), "emptyPolls", p.emptyPolls, "retryIn", p.idleBackoff)
			}
			continue
		}

		p.emptyPolls = 0
		batch.Add(s.ID(), recs)
	}

	return batch, errors.Join(errs...)
}
