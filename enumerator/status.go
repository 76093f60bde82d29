package enumerator

import (
	"fmt"
	"sync/atomic"
)

type Status uint32

const (
	// StatusInitializing is the status until Start is called
	StatusInitializing Status = iota

	// StatusRunning indicates discovery is scheduled
	StatusRunning

	// StatusClosed indicates the enumerator released its resources
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusInitializing:
		return "Initializing"
	case StatusRunning:
		return "Running"
	case StatusClosed:
		return "Closed"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

type enumeratorStatus struct {
	status atomic.Uint32
}

func (s *enumeratorStatus) Value() Status {
	return Status(s.status.Load())
}

func (s *enumeratorStatus) Set(value Status) {
	s.status.Store(uint32(value))
}

// transition moves from one status to another and reports whether the
// current status was from.
func (s *enumeratorStatus) transition(from, to Status) bool {
	return s.status.CompareAndSwap(uint32(from), uint32(to))
}
