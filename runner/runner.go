// Package runner hosts a source in one process: an enumerator, a fixed set of
// readers, and periodic checkpoints of both.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"golang.org/x/sync/errgroup"

	"mangrobe.dev/streamsource/clocks"
	"mangrobe.dev/streamsource/enumerator"
	"mangrobe.dev/streamsource/source"
	"mangrobe.dev/streamsource/splits"
	"mangrobe.dev/streamsource/storage/locations"
	"mangrobe.dev/streamsource/telemetry"
)

type Runner struct {
	source             *source.Source
	readerCount        int
	output             source.Output
	store              *checkpointStore
	checkpointInterval time.Duration
	clock              clocks.Clock
	log                *slog.Logger

	// Set up by Run before running is closed
	enumerator *enumerator.Enumerator
	readers    map[string]*source.Reader
	readerID   []string
	running    chan struct{}

	ckptMu       sync.Mutex
	checkpointID uint64
}

type Params struct {
	Source      *source.Source
	ReaderCount int
	Output      source.Output
	// Where checkpoints are kept. Nil disables checkpoints.
	Location            locations.StorageLocation
	CheckpointInterval  time.Duration
	CheckpointRetention int
	Clock               clocks.Clock
	Logger              *slog.Logger
}

func New(params Params) *Runner {
	if params.ReaderCount == 0 {
		params.ReaderCount = 1
	}
	if params.CheckpointRetention == 0 {
		params.CheckpointRetention = 3
	}
	if params.Clock == nil {
		params.Clock = clocks.NewSystemClock()
	}
	if params.Logger == nil {
		params.Logger = slog.With("instanceID", "runner-"+ksuid.New().String())
	}

	r := &Runner{
		source:             params.Source,
		readerCount:        params.ReaderCount,
		output:             params.Output,
		checkpointInterval: params.CheckpointInterval,
		clock:              params.Clock,
		log:                params.Logger,
		readers:            make(map[string]*source.Reader),
		running:            make(chan struct{}),
	}
	if params.Location != nil {
		r.store = &checkpointStore{
			location:  params.Location,
			retention: params.CheckpointRetention,
			log:       params.Logger,
		}
	}
	return r
}

// Run restores from the newest checkpoint, starts the enumerator and readers,
// and blocks until ctx is canceled or a reader fails.
func (r *Runner) Run(ctx context.Context) error {
	restored, readerSplits, err := r.restore(ctx)
	if err != nil {
		return err
	}

	for range r.readerCount {
		id := ksuid.New().String()
		r.readerID = append(r.readerID, id)
		r.readers[id] = r.source.CreateReader(&readerContext{id: id, runner: r}, r.output)
	}

	if restored != nil {
		r.enumerator = r.source.RestoreEnumerator(r, *restored)
	} else {
		r.enumerator = r.source.CreateEnumerator(r)
	}
	defer r.close()

	if len(readerSplits) > 0 {
		r.enumerator.AddSplitsBack(readerSplits, "")
	}
	for _, id := range r.readerID {
		r.enumerator.AddReader(id)
	}
	r.enumerator.Start()
	close(r.running)

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range r.readerID {
		rd := r.readers[id]
		g.Go(func() error {
			return rd.Run(gctx)
		})
	}

	if r.store != nil && r.checkpointInterval > 0 {
		ticker := r.clock.Every(r.checkpointInterval, func() {
			if _, err := r.Checkpoint(gctx); err != nil && gctx.Err() == nil {
				r.log.Warn("checkpoint failed", "err", err)
			}
		}, "checkpoint")
		defer ticker.Stop()
	}

	r.log.Info("running", "table", r.source.Table(), "readers", r.readerCount)
	err = g.Wait()
	if err != nil {
		r.log.Error("stopped", "err", err)
	}
	return err
}

// Checkpoint snapshots the enumerator and then every reader and writes the
// result. Splits handed to a reader after the enumerator snapshot show up in
// both and are de-duplicated on restore.
func (r *Runner) Checkpoint(ctx context.Context) (uint64, error) {
	if r.store == nil {
		return 0, errors.New("checkpoints are not configured")
	}
	select {
	case <-r.running:
	default:
		return 0, errors.New("runner is not running")
	}

	r.ckptMu.Lock()
	defer r.ckptMu.Unlock()

	id := r.checkpointID + 1
	uri, err := r.checkpoint(ctx, id)
	if err != nil {
		telemetry.CheckpointsWritten.WithLabelValues("error").Inc()
		return 0, err
	}
	r.checkpointID = id
	telemetry.CheckpointsWritten.WithLabelValues("ok").Inc()
	r.log.Info("checkpoint written", "id", id, "uri", uri)
	return id, nil
}

func (r *Runner) checkpoint(ctx context.Context, id uint64) (string, error) {
	enumCkpt, err := r.enumerator.SnapshotState(id)
	if err != nil {
		return "", fmt.Errorf("enumerator snapshot: %w", err)
	}
	enumData, err := r.source.CheckpointSerializer().Serialize(enumCkpt)
	if err != nil {
		return "", err
	}

	ckpt := &Checkpoint{
		ID:                id,
		SplitVersion:      r.source.SplitSerializer().Version(),
		EnumeratorVersion: r.source.CheckpointSerializer().Version(),
		Enumerator:        enumData,
	}
	for _, readerID := range r.readerID {
		owned, err := r.readers[readerID].SnapshotState(ctx)
		if err != nil {
			return "", fmt.Errorf("reader %s snapshot: %w", readerID, err)
		}
		for _, s := range owned {
			data, err := r.source.SplitSerializer().Serialize(s)
			if err != nil {
				return "", err
			}
			ckpt.ReaderSplits = append(ckpt.ReaderSplits, data)
		}
	}

	return r.store.write(ctx, ckpt)
}

// AssignSplits routes splits to the readers' queues. It fails without
// delivering anything when any reader ID is unknown.
func (r *Runner) AssignSplits(assignments map[string][]splits.Split) error {
	for readerID := range assignments {
		if _, ok := r.readers[readerID]; !ok {
			return fmt.Errorf("assigning splits to unknown reader %s", readerID)
		}
	}
	for readerID, assigned := range assignments {
		r.readers[readerID].AddSplits(assigned)
	}
	return nil
}

func (r *Runner) restore(ctx context.Context) (*splits.EnumeratorCheckpoint, []splits.Split, error) {
	if r.store == nil {
		return nil, nil, nil
	}

	ckpt, err := r.store.latest(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading checkpoint: %w", err)
	}
	if ckpt == nil {
		r.log.Info("no checkpoint found, starting fresh")
		return nil, nil, nil
	}

	enumCkpt, readerSplits, err := ckpt.Restore()
	if err != nil {
		return nil, nil, err
	}
	r.checkpointID = ckpt.ID
	r.log.Info("restoring checkpoint", "id", ckpt.ID, "readerSplits", len(readerSplits), "pending", len(enumCkpt.PendingSplits))
	return &enumCkpt, readerSplits, nil
}

func (r *Runner) close() {
	var errs []error
	if r.enumerator != nil {
		errs = append(errs, r.enumerator.Close())
	}
	for _, id := range r.readerID {
		errs = append(errs, r.readers[id].Close())
	}
	if err := errors.Join(errs...); err != nil {
		r.log.Warn("closing", "err", err)
	}
}

var _ enumerator.Context = (*Runner)(nil)

type readerContext struct {
	id     string
	runner *Runner
}

func (c *readerContext) ReaderID() string {
	return c.id
}

func (c *readerContext) SendSplitRequest() {
	c.runner.enumerator.HandleSplitRequest(c.id)
}

var _ source.ReaderContext = (*readerContext)(nil)
