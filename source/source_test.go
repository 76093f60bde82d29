package source_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mangrobe.dev/streamsource/clocks"
	"mangrobe.dev/streamsource/connectors/recording"
	"mangrobe.dev/streamsource/enumerator"
	"mangrobe.dev/streamsource/records"
	"mangrobe.dev/streamsource/source"
	"mangrobe.dev/streamsource/splits"
	"mangrobe.dev/streamsource/tableapi/tablefake"
)

func TestSource_EndToEnd(t *testing.T) {
	server, fake := tablefake.StartFake()
	t.Cleanup(server.Close)
	c0 := fake.AddFiles("T", 42, "seed.parquet")

	clock := clocks.NewFrozenClock()
	src := source.New(source.Params{Addr: server.URL, Table: "T", Clock: clock, MaxAttempts: 1})
	assert.Equal(t, source.ContinuousUnbounded, src.Boundedness())

	host := newTestHost()
	enum := src.CreateEnumerator(host)
	host.enum = enum
	t.Cleanup(func() { enum.Close() })

	sink := &recording.Sink{}
	rd := src.CreateReader(host.readerContext("r1"), sink)
	host.readers["r1"] = rd
	t.Cleanup(func() { rd.Close() })

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- rd.Run(ctx) }()

	enum.AddReader("r1")
	enum.Start()

	// The only stream is discovered on the first pass and starts at its tail
	var owned []splits.Split
	require.Eventually(t, func() bool {
		owned, _ = rd.SnapshotState(ctx)
		return len(owned) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, splits.New("T", 42, c0), owned[0])

	c1 := fake.AddFiles("T", 42, "a.parquet")
	c2 := fake.AddUnknownCommit("T", 42)

	require.Eventually(t, func() bool {
		clock.Advance(5 * time.Second)
		return sink.Len() == 2
	}, 2*time.Second, 5*time.Millisecond)

	recs := sink.Records()
	assert.Equal(t, records.Record{
		TableID:    "T",
		StreamID:   42,
		CommitID:   c1,
		Kind:       records.AddedFiles,
		AddedFiles: []string{"a.parquet"},
	}, recs[0])
	assert.Equal(t, records.Record{TableID: "T", StreamID: 42, CommitID: c2, Kind: records.Unknown}, recs[1])

	assert.Equal(t, c0, fake.GetCommitsRequests()[0].CommitIDAfter)

	owned, err := rd.SnapshotState(ctx)
	require.NoError(t, err)
	assert.Equal(t, []splits.Split{splits.New("T", 42, c2)}, owned)

	cancel()
	assert.NoError(t, <-runErr)
}

func TestReader_UnknownStreamDoesNotStopOtherSplits(t *testing.T) {
	server, fake := tablefake.StartFake()
	t.Cleanup(server.Close)
	c1 := fake.AddFiles("T", 1, "a.parquet")

	clock := clocks.NewFrozenClock()
	src := source.New(source.Params{
		Addr:              server.URL,
		Table:             "T",
		Clock:             clock,
		QuarantineBackoff: time.Hour,
		MaxAttempts:       1,
	})
	host := newTestHost()
	sink := &recording.Sink{}
	rd := src.CreateReader(host.readerContext("r1"), sink)
	t.Cleanup(func() { rd.Close() })

	rd.AddSplits([]splits.Split{splits.New("T", 404, ""), splits.New("T", 1, "")})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- rd.Run(ctx) }()

	require.Eventually(t, func() bool {
		return sink.Len() == 1
	}, 2*time.Second, 5*time.Millisecond)

	c2 := fake.AddFiles("T", 1, "b.parquet")
	require.Eventually(t, func() bool {
		clock.Advance(5 * time.Second)
		return sink.Len() == 2
	}, 2*time.Second, 5*time.Millisecond)

	recs := sink.Records()
	assert.Equal(t, c1, recs[0].CommitID)
	assert.Equal(t, c2, recs[1].CommitID)

	var unknownFetches int
	for _, req := range fake.GetCommitsRequests() {
		if req.StreamID == 404 {
			unknownFetches++
		}
	}
	assert.Equal(t, 1, unknownFetches, "the unknown stream is parked")

	owned, err := rd.SnapshotState(ctx)
	require.NoError(t, err)
	assert.Equal(t, []splits.Split{splits.New("T", 404, ""), splits.New("T", 1, c2)}, owned)

	select {
	case err := <-runErr:
		t.Fatalf("Run stopped early: %v", err)
	default:
	}
	cancel()
	assert.NoError(t, <-runErr)
}

func TestReader_StopsWhenOutputFails(t *testing.T) {
	server, fake := tablefake.StartFake()
	t.Cleanup(server.Close)
	fake.AddFiles("T", 1, "a.parquet")

	src := source.New(source.Params{Addr: server.URL, Table: "T", Clock: clocks.NewFrozenClock(), MaxAttempts: 1})
	host := newTestHost()
	rd := src.CreateReader(host.readerContext("r1"), failingOutput{})
	t.Cleanup(func() { rd.Close() })

	rd.AddSplits([]splits.Split{splits.New("T", 1, "")})

	err := rd.Run(t.Context())
	assert.ErrorContains(t, err, "emitting records")
	assert.ErrorIs(t, err, errOutputFull)
	assert.Equal(t, 1, host.splitRequests())
}

var errOutputFull = errors.New("output full")

type failingOutput struct{}

func (failingOutput) Collect(records.Record) error {
	return errOutputFull
}

func TestReader_CloseStopsRun(t *testing.T) {
	server, fake := tablefake.StartFake()
	t.Cleanup(server.Close)
	fake.CreateStream("T", 1)

	src := source.New(source.Params{Addr: server.URL, Table: "T", Clock: clocks.NewFrozenClock(), MaxAttempts: 1})
	rd := src.CreateReader(newTestHost().readerContext("r1"), &recording.Sink{})
	rd.AddSplits([]splits.Split{splits.New("T", 1, "")})

	runErr := make(chan error, 1)
	go func() { runErr <- rd.Run(t.Context()) }()

	require.NoError(t, rd.Close())
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestSource_RestoreFromEmptyCheckpointStartsFresh(t *testing.T) {
	server, fake := tablefake.StartFake()
	t.Cleanup(server.Close)
	c1 := fake.AddFiles("T", 7, "a.parquet")

	clock := clocks.NewFrozenClock()
	src := source.New(source.Params{Addr: server.URL, Table: "T", Clock: clock, MaxAttempts: 1})

	ckpt, err := src.CheckpointSerializer().Deserialize(1, []byte(""))
	require.NoError(t, err)

	host := newTestHost()
	enum := src.RestoreEnumerator(host, ckpt)
	t.Cleanup(func() { enum.Close() })
	enum.Start()

	require.Eventually(t, func() bool {
		snap, err := enum.SnapshotState(1)
		return err == nil && snap.Discovered
	}, 2*time.Second, 5*time.Millisecond)

	snap, err := enum.SnapshotState(2)
	require.NoError(t, err)
	assert.Equal(t, []splits.Split{splits.New("T", 7, c1)}, snap.PendingSplits)
}

func TestRecordEmitter_PassesRecordsThrough(t *testing.T) {
	sink := &recording.Sink{}
	rec := records.Record{TableID: "T", StreamID: 1, CommitID: "3", Kind: records.ChangedFiles, DeletedFiles: []string{"x"}}

	state := splits.NewState(splits.New("T", 1, "2"))
	require.NoError(t, source.RecordEmitter{}.Emit(rec, sink, state))

	assert.Equal(t, []records.Record{rec}, sink.Records())
	assert.Equal(t, "2", state.CurrentCommitID(), "the emitter doesn't move cursors")
}

type testHost struct {
	enum     *enumerator.Enumerator
	readers  map[string]*source.Reader
	mu       sync.Mutex
	requests int
}

func newTestHost() *testHost {
	return &testHost{readers: make(map[string]*source.Reader)}
}

func (h *testHost) AssignSplits(assignments map[string][]splits.Split) error {
	for id, s := range assignments {
		h.readers[id].AddSplits(s)
	}
	return nil
}

func (h *testHost) readerContext(id string) source.ReaderContext {
	return &testReaderContext{id: id, host: h}
}

func (h *testHost) splitRequests() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.requests
}

type testReaderContext struct {
	id   string
	host *testHost
}

func (c *testReaderContext) ReaderID() string {
	return c.id
}

func (c *testReaderContext) SendSplitRequest() {
	c.host.mu.Lock()
	c.host.requests++
	c.host.mu.Unlock()
	if c.host.enum != nil {
		c.host.enum.HandleSplitRequest(c.id)
	}
}
