package splits

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// EnumeratorCheckpoint is the enumerator state persisted at a checkpoint.
// Splits already assigned to readers are checkpointed by the readers.
type EnumeratorCheckpoint struct {
	// Streams that were already turned into a split.
	KnownStreamIDs []int64
	// Splits not yet assigned to any reader.
	PendingSplits []Split
	// At least one discovery pass completed. Streams found afterwards start
	// from the beginning instead of their current tail.
	Discovered bool
}

func (c EnumeratorCheckpoint) IsEmpty() bool {
	return len(c.KnownStreamIDs) == 0 && len(c.PendingSplits) == 0 && !c.Discovered
}

const (
	fieldKnownStreamID protowire.Number = 1
	fieldPendingSplit  protowire.Number = 2
	fieldDiscovered    protowire.Number = 3
)

func marshalCheckpoint(c EnumeratorCheckpoint) []byte {
	var b []byte
	for _, id := range c.KnownStreamIDs {
		b = protowire.AppendTag(b, fieldKnownStreamID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(id))
	}
	for _, s := range c.PendingSplits {
		b = protowire.AppendTag(b, fieldPendingSplit, protowire.BytesType)
		b = protowire.AppendBytes(b, Encode(s))
	}
	if c.Discovered {
		b = protowire.AppendTag(b, fieldDiscovered, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b
}

func unmarshalCheckpoint(data []byte) (EnumeratorCheckpoint, error) {
	var c EnumeratorCheckpoint
	corrupt := func(reason string) error {
		return &CorruptSplitError{Data: fmt.Sprintf("%x", data), Reason: "enumerator checkpoint: " + reason}
	}

	for b := data; len(b) > 0; {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return EnumeratorCheckpoint{}, corrupt(protowire.ParseError(n).Error())
		}
		b = b[n:]

		switch {
		case num == fieldKnownStreamID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return EnumeratorCheckpoint{}, corrupt(protowire.ParseError(n).Error())
			}
			c.KnownStreamIDs = append(c.KnownStreamIDs, int64(v))
			b = b[n:]
		case num == fieldPendingSplit && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return EnumeratorCheckpoint{}, corrupt(protowire.ParseError(n).Error())
			}
			split, err := Decode(v)
			if err != nil {
				return EnumeratorCheckpoint{}, fmt.Errorf("enumerator checkpoint pending split: %w", err)
			}
			c.PendingSplits = append(c.PendingSplits, split)
			b = b[n:]
		case num == fieldDiscovered && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return EnumeratorCheckpoint{}, corrupt(protowire.ParseError(n).Error())
			}
			c.Discovered = v != 0
			b = b[n:]
		default:
			// Skip fields written by newer versions.
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return EnumeratorCheckpoint{}, corrupt(protowire.ParseError(n).Error())
			}
			b = b[n:]
		}
	}

	return c, nil
}
