package source

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"mangrobe.dev/streamsource/clocks"
	"mangrobe.dev/streamsource/connectors"
	"mangrobe.dev/streamsource/reader"
	"mangrobe.dev/streamsource/splits"
)

// Reader runs one split reader. Fetches, split assignments and snapshots all
// happen on the goroutine that calls Run, so they never overlap.
type Reader struct {
	context     ReaderContext
	splitReader *reader.SplitReader
	emitter     RecordEmitter
	output      Output
	clock       clocks.Clock
	log         *slog.Logger
	backoff     []connectors.ReadSourceChannelOption

	mu       sync.Mutex
	incoming []splits.Split
	wake     chan struct{}

	snapshotRequests chan chan []splits.Split
	closed           chan struct{}
	closeOnce        sync.Once
	stopped          chan struct{}
}

type readerParams struct {
	context     ReaderContext
	splitReader *reader.SplitReader
	output      Output
	clock       clocks.Clock
	logger      *slog.Logger
	backoff     []connectors.ReadSourceChannelOption
}

func newReader(params readerParams) *Reader {
	return &Reader{
		context:          params.context,
		splitReader:      params.splitReader,
		output:           params.output,
		clock:            params.clock,
		log:              params.logger,
		backoff:          params.backoff,
		wake:             make(chan struct{}, 1),
		snapshotRequests: make(chan chan []splits.Split),
		closed:           make(chan struct{}),
		stopped:          make(chan struct{}),
	}
}

func (r *Reader) ID() string {
	return r.context.ReaderID()
}

// AddSplits queues assigned splits for the run loop. It is safe to call from
// any goroutine and never blocks.
func (r *Reader) AddSplits(assigned []splits.Split) {
	r.mu.Lock()
	r.incoming = append(r.incoming, assigned...)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run requests splits and then fetches until the context is canceled, the
// reader is closed, or the output rejects a record. Splits that fail
// terminally are quarantined by the split reader and don't stop Run.
func (r *Reader) Run(ctx context.Context) error {
	defer close(r.stopped)
	r.context.SendSplitRequest()

	rsc := connectors.NewReadSourceChannel[*reader.Batch](r.splitReader, r.backoff...)
	rsc.Start(ctx)
	defer rsc.Stop()

	// While idle no read functions are taken and idle fires when the next
	// split is due. A nil idle with idling set waits for an assignment.
	var idle <-chan time.Time
	idling := false

	for {
		reads := rsc.C
		if idling {
			reads = nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-r.closed:
			return nil
		case <-r.wake:
			r.applyAssignments()
			idle, idling = nil, false
		case <-idle:
			idle, idling = nil, false
		case reply := <-r.snapshotRequests:
			reply <- r.snapshot()
		case read := <-reads:
			batch, err := read()
			if emitErr := r.emit(batch); emitErr != nil {
				return fmt.Errorf("reader %s emitting records: %w", r.ID(), emitErr)
			}
			if err != nil {
				if !connectors.IsRetryable(err) {
					return fmt.Errorf("reader %s: %w", r.ID(), err)
				}
				r.log.Warn("fetch failed", "err", err)
				continue
			}
			if batch.Len() > 0 {
				continue
			}

			next, ok := r.splitReader.NextPollAt()
			if !ok {
				idle, idling = nil, true
				continue
			}
			if wait := next.Sub(r.clock.Now()); wait > 0 {
				idle, idling = r.clock.After(wait), true
			}
		}
	}
}

// SnapshotState returns a split per owned split that resumes after the last
// emitted commit, followed by assigned splits the loop hasn't picked up yet.
func (r *Reader) SnapshotState(ctx context.Context) ([]splits.Split, error) {
	reply := make(chan []splits.Split, 1)
	select {
	case r.snapshotRequests <- reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.closed:
		return nil, fmt.Errorf("reader %s closed", r.ID())
	case <-r.stopped:
		return nil, fmt.Errorf("reader %s stopped", r.ID())
	}
	return <-reply, nil
}

// Close stops Run and releases the split reader's client.
func (r *Reader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.closed)
		err = r.splitReader.Close()
	})
	return err
}

func (r *Reader) applyAssignments() {
	r.mu.Lock()
	assigned := r.incoming
	r.incoming = nil
	r.mu.Unlock()

	if len(assigned) > 0 {
		r.splitReader.HandleSplitsChanges(assigned)
	}
}

func (r *Reader) emit(batch *reader.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	states := make(map[string]*splits.State)
	for _, s := range r.splitReader.States() {
		states[s.ID()] = s
	}
	for splitID, rec := range batch.All() {
		if err := r.emitter.Emit(rec, r.output, states[splitID]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) snapshot() []splits.Split {
	owned := r.splitReader.Snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()
	return append(owned, slices.Clone(r.incoming)...)
}
