package runner

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"mangrobe.dev/streamsource/splits"
)

// Checkpoint is what the runner persists: the enumerator state and every
// split owned by a reader, each serialized with its versioned serializer.
type Checkpoint struct {
	ID                uint64
	SplitVersion      int
	EnumeratorVersion int
	Enumerator        []byte
	ReaderSplits      [][]byte
}

const (
	fieldID                protowire.Number = 1
	fieldSplitVersion      protowire.Number = 2
	fieldEnumeratorVersion protowire.Number = 3
	fieldEnumerator        protowire.Number = 4
	fieldReaderSplit       protowire.Number = 5
)

func (c *Checkpoint) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldID, protowire.VarintType)
	b = protowire.AppendVarint(b, c.ID)
	b = protowire.AppendTag(b, fieldSplitVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.SplitVersion))
	b = protowire.AppendTag(b, fieldEnumeratorVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.EnumeratorVersion))
	b = protowire.AppendTag(b, fieldEnumerator, protowire.BytesType)
	b = protowire.AppendBytes(b, c.Enumerator)
	for _, s := range c.ReaderSplits {
		b = protowire.AppendTag(b, fieldReaderSplit, protowire.BytesType)
		b = protowire.AppendBytes(b, s)
	}
	return b
}

func UnmarshalCheckpoint(data []byte) (*Checkpoint, error) {
	c := &Checkpoint{}
	for b := data; len(b) > 0; {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("corrupt checkpoint: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.VarintType && (num == fieldID || num == fieldSplitVersion || num == fieldEnumeratorVersion):
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("corrupt checkpoint: %w", protowire.ParseError(n))
			}
			switch num {
			case fieldID:
				c.ID = v
			case fieldSplitVersion:
				c.SplitVersion = int(v)
			case fieldEnumeratorVersion:
				c.EnumeratorVersion = int(v)
			}
			b = b[n:]
		case typ == protowire.BytesType && (num == fieldEnumerator || num == fieldReaderSplit):
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("corrupt checkpoint: %w", protowire.ParseError(n))
			}
			v = append([]byte(nil), v...)
			if num == fieldEnumerator {
				c.Enumerator = v
			} else {
				c.ReaderSplits = append(c.ReaderSplits, v)
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("corrupt checkpoint: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return c, nil
}

// Restore decodes the enumerator state and reader splits. A pending split
// that a reader also owned is dropped in favor of the reader's copy, which
// carries the newer cursor.
func (c *Checkpoint) Restore() (splits.EnumeratorCheckpoint, []splits.Split, error) {
	ckpt, err := splits.CheckpointSerializer{}.Deserialize(c.EnumeratorVersion, c.Enumerator)
	if err != nil {
		return splits.EnumeratorCheckpoint{}, nil, fmt.Errorf("checkpoint %d enumerator: %w", c.ID, err)
	}

	owned := make(map[string]bool, len(c.ReaderSplits))
	readerSplits := make([]splits.Split, 0, len(c.ReaderSplits))
	for _, data := range c.ReaderSplits {
		s, err := splits.SplitSerializer{}.Deserialize(c.SplitVersion, data)
		if err != nil {
			return splits.EnumeratorCheckpoint{}, nil, fmt.Errorf("checkpoint %d reader split: %w", c.ID, err)
		}
		if owned[s.ID()] {
			continue
		}
		owned[s.ID()] = true
		readerSplits = append(readerSplits, s)
	}

	pending := ckpt.PendingSplits[:0:0]
	for _, s := range ckpt.PendingSplits {
		if !owned[s.ID()] {
			pending = append(pending, s)
		}
	}
	ckpt.PendingSplits = pending

	return ckpt, readerSplits, nil
}
