// Package tablefake is an in-memory table service for tests and local runs.
package tablefake

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"connectrpc.com/connect"
	"github.com/google/btree"
	"mangrobe.dev/streamsource/rpc"
	"mangrobe.dev/streamsource/tableapi"
)

const defaultPageSize = 1000

func StartFake() (*httptest.Server, *Fake) {
	fk := New()
	return httptest.NewServer(fk.Handler()), fk
}

func New() *Fake {
	return &Fake{
		db: &db{tables: make(map[string]*table)},
	}
}

// Handler serves the fake over the same connect procedures as the real service.
func (f *Fake) Handler() http.Handler {
	return tableapi.NewHandler(f,
		connect.WithInterceptors(rpc.NewLoggingInterceptor(slog.With("instanceID", "tablefake"), slog.LevelDebug)))
}

type db struct {
	tables map[string]*table
	// Commit IDs come from one sequence so they ascend within every stream.
	lastCommitID int64
}

type table struct {
	streams *btree.BTreeG[*stream]
}

type stream struct {
	id      int64
	commits []tableapi.Commit
}

func (s *stream) lastCommitID() string {
	if len(s.commits) == 0 {
		return ""
	}
	return s.commits[len(s.commits)-1].CommitID
}

func streamLess(a, b *stream) bool {
	return a.id < b.id
}

func (d *db) table(name string) *table {
	t, ok := d.tables[name]
	if !ok {
		t = &table{streams: btree.NewG(8, streamLess)}
		d.tables[name] = t
	}
	return t
}

func (t *table) stream(id int64) *stream {
	s, ok := t.streams.Get(&stream{id: id})
	if !ok {
		s = &stream{id: id}
		t.streams.ReplaceOrInsert(s)
	}
	return s
}

func (d *db) nextCommitID() string {
	d.lastCommitID++
	return strconv.FormatInt(d.lastCommitID, 10)
}

type Fake struct {
	mu                 sync.Mutex
	db                 *db
	pageSize           int
	commitsLimit       int
	listStreamsError   error
	getCommitsError    error
	getCommitsHold     chan struct{}
	listStreamsCalls   int
	getCommitsRequests []tableapi.GetCommitsRequest
}

var _ tableapi.Service = (*Fake)(nil)
