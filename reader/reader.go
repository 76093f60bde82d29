// Package reader implements the split reader: it polls the table service for
// new commits of each assigned split and translates them into records.
package reader

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mangrobe.dev/streamsource/clocks"
	"mangrobe.dev/streamsource/connectors"
	"mangrobe.dev/streamsource/poller"
	"mangrobe.dev/streamsource/records"
	"mangrobe.dev/streamsource/splits"
	"mangrobe.dev/streamsource/tableapi"
	"mangrobe.dev/streamsource/telemetry"
)

// DefaultIdleBackoff is how long a split waits after a poll with no new commits.
const DefaultIdleBackoff = 5 * time.Second

// DefaultQuarantineBackoff is how long a split waits after a terminal fetch
// error, such as its stream no longer existing.
const DefaultQuarantineBackoff = 10 * time.Minute

var ErrClosed = errors.New("split reader closed")

// CommitFetcher is the part of the table service a reader calls. The reader
// owns it and closes it on Close.
type CommitFetcher interface {
	GetCommits(ctx context.Context, req *tableapi.GetCommitsRequest) (*tableapi.GetCommitsResponse, error)
	Close() error
}

// Batch is the result of one Fetch.
type Batch = poller.Batch[records.Record]

// SplitReader is not safe for concurrent use except for Close and WakeUp,
// which may be called while a Fetch is in flight.
type SplitReader struct {
	client CommitFetcher
	poller *poller.Poller[*splits.State, records.Record]
	logger *slog.Logger

	closed      context.Context
	cancelClose context.CancelFunc
}

type NewParams struct {
	Client      CommitFetcher
	Clock       clocks.Clock
	IdleBackoff time.Duration
	// Delay before retrying a split whose last fetch failed terminally.
	QuarantineBackoff time.Duration
	Logger            *slog.Logger
}

func New(params NewParams) *SplitReader {
	if params.IdleBackoff == 0 {
		params.IdleBackoff = DefaultIdleBackoff
	}
	if params.QuarantineBackoff == 0 {
		params.QuarantineBackoff = DefaultQuarantineBackoff
	}
	if params.Logger == nil {
		params.Logger = slog.Default()
	}

	closed, cancel := context.WithCancel(context.Background())
	r := &SplitReader{
		client:      params.Client,
		logger:      params.Logger,
		closed:      closed,
		cancelClose: cancel,
	}
	r.poller = poller.New(poller.Params[*splits.State, records.Record]{
		Fetch:       r.fetchSplit,
		Clock:       params.Clock,
		IdleBackoff: params.IdleBackoff,
		Logger:      params.Logger,

		Quarantine:        quarantineTerminal,
		QuarantineBackoff: params.QuarantineBackoff,
	})
	return r
}

// Fetch polls every split that is due and returns the new records of all of
// them. A split failing with a terminal error is quarantined and retried
// later. Other errors are joined into the returned error while the batch still
// carries the records of the splits that succeeded.
func (r *SplitReader) Fetch(ctx context.Context) (*Batch, error) {
	if r.closed.Err() != nil {
		return &Batch{}, ErrClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(r.closed, cancel)
	defer stop()

	return r.poller.Poll(ctx)
}

// HandleSplitsChanges starts reading newly assigned splits from their
// starting commit.
func (r *SplitReader) HandleSplitsChanges(added []splits.Split) {
	for _, s := range added {
		r.logger.Info("split assigned", "split", s.ID(), "startingCommitID", s.StartingCommitID)
		r.poller.Add(splits.NewState(s))
	}
}

// States returns the owned split states.
func (r *SplitReader) States() []*splits.State {
	return r.poller.Splits()
}

// Snapshot returns a split per owned state that resumes after its cursor.
func (r *SplitReader) Snapshot() []splits.Split {
	states := r.poller.Splits()
	out := make([]splits.Split, len(states))
	for i, s := range states {
		out[i] = s.ToSplit()
	}
	return out
}

// NextPollAt returns when the next split becomes due, false without splits.
func (r *SplitReader) NextPollAt() (time.Time, bool) {
	return r.poller.NextPollAt()
}

// WakeUp is a no-op: Fetch never blocks waiting for data.
func (r *SplitReader) WakeUp() {}

// Close cancels an in-flight Fetch and releases the client.
func (r *SplitReader) Close() error {
	r.cancelClose()
	return r.client.Close()
}

func (r *SplitReader) fetchSplit(ctx context.Context, state *splits.State) ([]records.Record, error) {
	split := state.Split()
	table := split.Table.String()

	resp, err := r.client.GetCommits(ctx, &tableapi.GetCommitsRequest{
		TableName:     table,
		StreamID:      split.StreamID,
		CommitIDAfter: state.CurrentCommitID(),
	})
	if err != nil {
		telemetry.CommitFetches.WithLabelValues(table, "error").Inc()
		return nil, err
	}
	telemetry.CommitFetches.WithLabelValues(table, "ok").Inc()

	recs := records.TranslateAll(split.Table, split.StreamID, resp.Commits)
	if len(recs) == 0 {
		telemetry.EmptyPolls.WithLabelValues(table).Inc()
		return nil, nil
	}

	// Commits arrive in ascending order, so the last one is the new cursor.
	state.Advance(recs[len(recs)-1].CommitID)
	telemetry.RecordsFetched.WithLabelValues(table).Add(float64(len(recs)))
	return recs, nil
}

// quarantineTerminal parks splits whose fetch can't succeed by retrying
// right away. The rest of the reader keeps going.
func quarantineTerminal(state *splits.State, err error) bool {
	if connectors.IsRetryable(err) {
		return false
	}
	telemetry.SplitsQuarantined.WithLabelValues(state.Split().Table.String()).Inc()
	return true
}
