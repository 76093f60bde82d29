// Package source assembles the table source: an enumerator that discovers
// splits, readers that poll them, and the codecs a host uses to checkpoint
// both.
package source

import (
	"log/slog"
	"time"

	"mangrobe.dev/streamsource/clocks"
	"mangrobe.dev/streamsource/enumerator"
	"mangrobe.dev/streamsource/reader"
	"mangrobe.dev/streamsource/records"
	"mangrobe.dev/streamsource/splits"
	"mangrobe.dev/streamsource/tableapi"
)

type Boundedness int

const (
	// ContinuousUnbounded sources never signal the end of input.
	ContinuousUnbounded Boundedness = iota
	Bounded
)

func (b Boundedness) String() string {
	if b == Bounded {
		return "BOUNDED"
	}
	return "CONTINUOUS_UNBOUNDED"
}

// Output receives the records a reader emits.
type Output interface {
	Collect(r records.Record) error
}

// ReaderContext is the host side of one reader.
type ReaderContext interface {
	ReaderID() string
	// SendSplitRequest tells the enumerator the reader wants work.
	SendSplitRequest()
}

type Source struct {
	addr              string
	table             splits.TableID
	clock             clocks.Clock
	discoveryInterval time.Duration
	idleBackoff       time.Duration
	quarantineBackoff time.Duration
	requestTimeout    time.Duration
	pageSize          int32
	maxAttempts       int
}

type Params struct {
	// Table service address
	Addr              string
	Table             splits.TableID
	Clock             clocks.Clock
	DiscoveryInterval time.Duration
	IdleBackoff       time.Duration
	QuarantineBackoff time.Duration
	RequestTimeout    time.Duration
	PageSize          int32
	// Attempts per RPC while the table service is unavailable
	MaxAttempts int
}

func New(params Params) *Source {
	if params.Clock == nil {
		params.Clock = clocks.NewSystemClock()
	}
	return &Source{
		addr:              params.Addr,
		table:             params.Table,
		clock:             params.Clock,
		discoveryInterval: params.DiscoveryInterval,
		idleBackoff:       params.IdleBackoff,
		quarantineBackoff: params.QuarantineBackoff,
		requestTimeout:    params.RequestTimeout,
		pageSize:          params.PageSize,
		maxAttempts:       params.MaxAttempts,
	}
}

func (s *Source) Boundedness() Boundedness {
	return ContinuousUnbounded
}

func (s *Source) Table() splits.TableID {
	return s.table
}

// CreateEnumerator returns an enumerator that starts from scratch. Streams
// found by its first discovery pass are read from their latest commit.
func (s *Source) CreateEnumerator(host enumerator.Context) *enumerator.Enumerator {
	return s.newEnumerator(host, nil)
}

// RestoreEnumerator resumes an enumerator from a checkpoint. An empty
// checkpoint is the same as CreateEnumerator.
func (s *Source) RestoreEnumerator(host enumerator.Context, ckpt splits.EnumeratorCheckpoint) *enumerator.Enumerator {
	if ckpt.IsEmpty() {
		return s.newEnumerator(host, nil)
	}
	return s.newEnumerator(host, &ckpt)
}

// CreateReader wires a split reader with its own table service client to the
// host and an output.
func (s *Source) CreateReader(rctx ReaderContext, out Output) *Reader {
	logger := slog.With("instanceID", "reader-"+rctx.ReaderID())
	splitReader := reader.New(reader.NewParams{
		Client:            s.newClient("reader"),
		Clock:             s.clock,
		IdleBackoff:       s.idleBackoff,
		QuarantineBackoff: s.quarantineBackoff,
		Logger:            logger,
	})
	return newReader(readerParams{
		context:     rctx,
		splitReader: splitReader,
		output:      out,
		clock:       s.clock,
		logger:      logger,
	})
}

func (s *Source) SplitSerializer() splits.SplitSerializer {
	return splits.SplitSerializer{}
}

func (s *Source) CheckpointSerializer() splits.CheckpointSerializer {
	return splits.CheckpointSerializer{}
}

func (s *Source) newEnumerator(host enumerator.Context, ckpt *splits.EnumeratorCheckpoint) *enumerator.Enumerator {
	return enumerator.New(enumerator.NewParams{
		Host:              host,
		Client:            s.newClient("enumerator"),
		Table:             s.table,
		Clock:             s.clock,
		DiscoveryInterval: s.discoveryInterval,
		RequestTimeout:    s.requestTimeout,
		PageSize:          s.pageSize,
		Checkpoint:        ckpt,
	})
}

func (s *Source) newClient(role string) *tableapi.Client {
	return tableapi.NewClient(tableapi.NewClientParams{
		Addr:        s.addr,
		MetricName:  "tableapi-" + role,
		MaxAttempts: s.maxAttempts,
	})
}
