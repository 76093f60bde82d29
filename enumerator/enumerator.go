// Package enumerator discovers the streams of a table and hands them out as
// splits to readers.
//
// All enumerator state is owned by a single coordinator goroutine. Public
// methods and discovery results are posted to it as functions over a channel
// and applied one at a time.
package enumerator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mangrobe.dev/streamsource/clocks"
	"mangrobe.dev/streamsource/splits"
	"mangrobe.dev/streamsource/tableapi"
	"mangrobe.dev/streamsource/telemetry"
	"mangrobe.dev/streamsource/util/ds"
)

const (
	DefaultDiscoveryInterval = 3 * time.Second
	DefaultRequestTimeout    = 10 * time.Second
)

var ErrClosed = errors.New("enumerator closed")

// StreamLister is the part of the table service the enumerator calls. The
// enumerator owns it and closes it on Close.
type StreamLister interface {
	ListStreams(ctx context.Context, req *tableapi.ListStreamsRequest) (*tableapi.ListStreamsResponse, error)
	Close() error
}

// Context is implemented by the host that runs the readers.
type Context interface {
	// AssignSplits delivers splits keyed by reader ID. It is called from the
	// coordinator goroutine and must not call back into the enumerator. On
	// error none of the splits count as assigned.
	AssignSplits(assignments map[string][]splits.Split) error
}

type Enumerator struct {
	host              Context
	client            StreamLister
	table             splits.TableID
	clock             clocks.Clock
	discoveryInterval time.Duration
	requestTimeout    time.Duration
	pageSize          int32
	log               *slog.Logger

	stateUpdates    chan func()
	done            chan struct{}
	stopped         chan struct{}
	closeOnce       sync.Once
	ctx             context.Context
	cancel          context.CancelFunc
	status          *enumeratorStatus
	discoveryTicker *clocks.Ticker
	discovering     atomic.Bool

	// Coordinator-owned state
	knownStreams   *ds.Set[int64]
	discoveredOnce bool
	pending        []splits.Split
	readers        *ds.Set[string]
	nextReader     int
}

type NewParams struct {
	Host   Context
	Client StreamLister
	Table  splits.TableID
	Clock  clocks.Clock
	// Time between discovery passes. Defaults to 3s.
	DiscoveryInterval time.Duration
	// Deadline of one discovery pass including all pages. Defaults to 10s.
	RequestTimeout time.Duration
	// Streams per ListStreams page. Zero leaves the choice to the server.
	PageSize int32
	Logger   *slog.Logger
	// State to resume from. Nil starts fresh.
	Checkpoint *splits.EnumeratorCheckpoint
}

func New(params NewParams) *Enumerator {
	if params.Clock == nil {
		params.Clock = clocks.NewSystemClock()
	}
	if params.DiscoveryInterval == 0 {
		params.DiscoveryInterval = DefaultDiscoveryInterval
	}
	if params.RequestTimeout == 0 {
		params.RequestTimeout = DefaultRequestTimeout
	}
	if params.Logger == nil {
		params.Logger = slog.With("instanceID", "enumerator")
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Enumerator{
		host:              params.Host,
		client:            params.Client,
		table:             params.Table,
		clock:             params.Clock,
		discoveryInterval: params.DiscoveryInterval,
		requestTimeout:    params.RequestTimeout,
		pageSize:          params.PageSize,
		log:               params.Logger,
		stateUpdates:      make(chan func()),
		done:              make(chan struct{}),
		stopped:           make(chan struct{}),
		ctx:               ctx,
		cancel:            cancel,
		status:            &enumeratorStatus{},
		knownStreams:      ds.NewSet[int64](0),
		readers:           ds.NewSet[string](0),
	}

	if ckpt := params.Checkpoint; ckpt != nil {
		e.knownStreams.Add(ckpt.KnownStreamIDs...)
		e.pending = append(e.pending, ckpt.PendingSplits...)
		e.discoveredOnce = ckpt.Discovered
		e.log.Info("restored", "knownStreams", e.knownStreams.Size(), "pending", len(e.pending), "discovered", e.discoveredOnce)
	}

	go e.processStateUpdates()

	return e
}

// Start schedules stream discovery now and then every discovery interval.
func (e *Enumerator) Start() {
	if !e.status.transition(StatusInitializing, StatusRunning) {
		return
	}
	e.log.Info("starting", "table", e.table, "interval", e.discoveryInterval)

	e.discoveryTicker = e.clock.Every(e.discoveryInterval, e.discover, "discover")
	go e.discoveryTicker.Trigger()
}

func (e *Enumerator) Status() Status {
	return e.status.Value()
}

// HandleSplitRequest is called when a reader asks for more work.
func (e *Enumerator) HandleSplitRequest(readerID string) {
	e.post(func() {
		e.log.Debug("split request", "reader", readerID)
		e.assignToReaders()
	})
}

// AddSplitsBack requeues splits a reader gave up, for example after it
// failed. Their streams count as known from then on.
func (e *Enumerator) AddSplitsBack(returned []splits.Split, readerID string) {
	e.post(func() {
		e.log.Info("splits returned", "reader", readerID, "count", len(returned))
		for _, s := range returned {
			if s.Table == e.table {
				e.knownStreams.Add(s.StreamID)
			}
			if e.isPending(s.ID()) {
				e.log.Warn("dropping duplicate returned split", "split", s.ID())
				continue
			}
			e.pending = append(e.pending, s)
		}
		e.assignToReaders()
	})
}

// AddReader registers a reader. Registering the same ID twice is a no-op.
func (e *Enumerator) AddReader(readerID string) {
	e.post(func() {
		if e.readers.Add(readerID) > 0 {
			e.log.Info("reader registered", "reader", readerID, "readers", e.readers.Size())
		}
		e.assignToReaders()
	})
}

// RemoveReader unregisters a reader. Splits it owned are not requeued; the
// host returns them with AddSplitsBack.
func (e *Enumerator) RemoveReader(readerID string) {
	e.post(func() {
		idx := e.readers.Index(readerID)
		if idx < 0 {
			return
		}
		e.readers.Remove(readerID)
		// Readers after the removed one shift down by one
		if idx < e.nextReader {
			e.nextReader--
		}
		if e.readers.Size() > 0 {
			e.nextReader %= e.readers.Size()
		} else {
			e.nextReader = 0
		}
		e.log.Info("reader removed", "reader", readerID, "readers", e.readers.Size())
	})
}

// SnapshotState captures the known streams and the unassigned splits. It
// waits for all previously posted updates to be applied.
func (e *Enumerator) SnapshotState(checkpointID uint64) (splits.EnumeratorCheckpoint, error) {
	result := make(chan splits.EnumeratorCheckpoint, 1)
	if !e.post(func() {
		result <- splits.EnumeratorCheckpoint{
			KnownStreamIDs: e.knownStreams.Slice(),
			PendingSplits:  append([]splits.Split(nil), e.pending...),
			Discovered:     e.discoveredOnce,
		}
	}) {
		return splits.EnumeratorCheckpoint{}, ErrClosed
	}

	select {
	case ckpt := <-result:
		e.log.Debug("snapshot", "checkpointID", checkpointID, "pending", len(ckpt.PendingSplits))
		return ckpt, nil
	case <-e.done:
		return splits.EnumeratorCheckpoint{}, ErrClosed
	}
}

// Close stops discovery and releases the client once an update in flight on
// the coordinator has finished. Pending splits are dropped. Close must not be
// called from a host callback.
func (e *Enumerator) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.status.Set(StatusClosed)
		if e.discoveryTicker != nil {
			e.discoveryTicker.Stop()
		}
		e.cancel()
		close(e.done)
		<-e.stopped
		err = e.client.Close()
		e.log.Info("closed")
	})
	return err
}

func (e *Enumerator) processStateUpdates() {
	defer close(e.stopped)
	for {
		select {
		case update := <-e.stateUpdates:
			update()
		case <-e.done:
			return
		}
	}
}

// post hands an update to the coordinator and reports false when the
// enumerator is closed.
func (e *Enumerator) post(update func()) bool {
	select {
	case e.stateUpdates <- update:
		return true
	case <-e.done:
		return false
	}
}

// discover lists the table's streams on the calling goroutine and posts the
// result to the coordinator. A pass is skipped while another is in flight.
func (e *Enumerator) discover() {
	if !e.discovering.CompareAndSwap(false, true) {
		e.log.Debug("discovery already in flight")
		telemetry.DiscoveryPasses.WithLabelValues(e.table.String(), "skipped").Inc()
		return
	}

	streams, err := e.fetchStreams(e.ctx)
	e.discovering.Store(false)

	e.post(func() {
		e.handleDiscovery(streams, err)
	})
}

// fetchStreams pages through ListStreams until the server reports the last
// page. It runs off the coordinator and must not touch its state.
func (e *Enumerator) fetchStreams(ctx context.Context) ([]tableapi.StreamInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, e.requestTimeout)
	defer cancel()

	var streams []tableapi.StreamInfo
	token := ""
	for {
		resp, err := e.client.ListStreams(ctx, &tableapi.ListStreamsRequest{
			TableName:  e.table.String(),
			Pagination: tableapi.PaginationRequest{Size: e.pageSize, Token: token},
		})
		if err != nil {
			return nil, err
		}
		streams = append(streams, resp.Streams...)

		next := resp.NextToken()
		if next == "" {
			return streams, nil
		}
		if next == token {
			return nil, fmt.Errorf("%w: ListStreams repeated page token %q", tableapi.ErrMalformedResponse, next)
		}
		token = next
	}
}

// handleDiscovery turns unknown streams into pending splits. Streams found on
// the first successful pass start from their latest commit; streams that
// appear later are read from the beginning.
func (e *Enumerator) handleDiscovery(streams []tableapi.StreamInfo, err error) {
	table := e.table.String()
	if err != nil {
		e.log.Warn("stream discovery failed", "err", err)
		telemetry.DiscoveryPasses.WithLabelValues(table, "error").Inc()
		return
	}
	telemetry.DiscoveryPasses.WithLabelValues(table, "ok").Inc()

	var discovered []splits.Split
	for _, s := range streams {
		if e.knownStreams.Has(s.StreamID) {
			continue
		}
		e.knownStreams.Add(s.StreamID)

		startingCommitID := ""
		if !e.discoveredOnce {
			startingCommitID = s.LastCommitID
		}
		discovered = append(discovered, splits.New(e.table, s.StreamID, startingCommitID))
	}
	e.discoveredOnce = true

	if len(discovered) > 0 {
		e.log.Info("discovered streams", "count", len(discovered), "known", e.knownStreams.Size())
		telemetry.SplitsDiscovered.WithLabelValues(table).Add(float64(len(discovered)))
		e.pending = append(e.pending, discovered...)
	}
	e.assignToReaders()
}

// assignToReaders deals all pending splits to readers round-robin, continuing
// from where the previous pass stopped.
func (e *Enumerator) assignToReaders() {
	defer func() {
		telemetry.PendingSplits.WithLabelValues(e.table.String()).Set(float64(len(e.pending)))
	}()

	if len(e.pending) == 0 || e.readers.Size() == 0 {
		return
	}

	start := e.nextReader
	assignments := make(map[string][]splits.Split)
	for _, s := range e.pending {
		readerID := e.readers.At(e.nextReader)
		e.nextReader = (e.nextReader + 1) % e.readers.Size()
		assignments[readerID] = append(assignments[readerID], s)
	}

	assigned := e.pending
	e.pending = nil
	if err := e.host.AssignSplits(assignments); err != nil {
		e.log.Error("assigning splits failed", "err", err, "count", len(assigned))
		e.pending = assigned
		e.nextReader = start
		return
	}

	e.log.Debug("assigned splits", "count", len(assigned), "readers", len(assignments))
	telemetry.SplitsAssigned.WithLabelValues(e.table.String()).Add(float64(len(assigned)))
}

func (e *Enumerator) isPending(splitID string) bool {
	for _, s := range e.pending {
		if s.ID() == splitID {
			return true
		}
	}
	return false
}
