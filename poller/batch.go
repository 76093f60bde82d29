package poller

import "iter"

// Batch groups the records of one poll by the split they came from.
type Batch[R any] struct {
	splitIDs []string
	records  map[string][]R
	size     int
}

func (b *Batch[R]) Add(splitID string, records []R) {
	if b.records == nil {
		b.records = make(map[string][]R)
	}
	if _, ok := b.records[splitID]; !ok {
		b.splitIDs = append(b.splitIDs, splitID)
	}
	b.records[splitID] = append(b.records[splitID], records...)
	b.size += len(records)
}

// SplitIDs lists splits with records in the order they were polled.
func (b *Batch[R]) SplitIDs() []string {
	return b.splitIDs
}

func (b *Batch[R]) Records(splitID string) []R {
	return b.records[splitID]
}

// Len is the total number of records.
func (b *Batch[R]) Len() int {
	if b == nil {
		return 0
	}
	return b.size
}

// All yields each record with its split ID.
func (b *Batch[R]) All() iter.Seq2[string, R] {
	return func(yield func(string, R) bool) {
		if b == nil {
			return
		}
		for _, id := range b.splitIDs {
			for _, r := range b.records[id] {
				if !yield(id, r) {
					return
				}
			}
		}
	}
}
