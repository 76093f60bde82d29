// Package print writes records to a stream as JSON lines.
package print

import (
	"io"
	"os"
	"sync"

	"github.com/goccy/go-json"
	"mangrobe.dev/streamsource/records"
)

type Sink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewSink writes to w, or stdout when w is nil.
func NewSink(w io.Writer) *Sink {
	if w == nil {
		w = os.Stdout
	}
	return &Sink{enc: json.NewEncoder(w)}
}

func (s *Sink) Collect(r records.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(r)
}
