// Package recording keeps emitted records in memory for tests.
package recording

import (
	"slices"
	"sync"

	"mangrobe.dev/streamsource/records"
)

type Sink struct {
	mu      sync.Mutex
	records []records.Record
}

func (s *Sink) Collect(r records.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

// Records returns a copy of everything collected so far.
func (s *Sink) Records() []records.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records)
}

func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
