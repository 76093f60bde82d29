package source

import (
	"mangrobe.dev/streamsource/records"
	"mangrobe.dev/streamsource/splits"
)

// RecordEmitter hands records to the output unchanged. The split state is
// accepted for hosts that track per-split emission, and is not modified.
type RecordEmitter struct{}

func (RecordEmitter) Emit(r records.Record, out Output, state *splits.State) error {
	return out.Collect(r)
}
