package splits

import (
	"fmt"
)

// VersionedSerializer persists values for the host's checkpointing. The
// version written alongside the bytes is passed back on deserialization.
type VersionedSerializer[T any] interface {
	Version() int
	Serialize(v T) ([]byte, error)
	Deserialize(version int, data []byte) (T, error)
}

type SplitSerializer struct{}

const splitSerializerVersion = 1

func (SplitSerializer) Version() int {
	return splitSerializerVersion
}

func (SplitSerializer) Serialize(s Split) ([]byte, error) {
	return Encode(s), nil
}

func (SplitSerializer) Deserialize(version int, data []byte) (Split, error) {
	if version != splitSerializerVersion {
		return Split{}, &CorruptSplitError{Data: string(data), Reason: fmt.Sprintf("unknown split serializer version %d", version)}
	}
	return Decode(data)
}

var _ VersionedSerializer[Split] = SplitSerializer{}

// CheckpointSerializer persists EnumeratorCheckpoint values.
//
// Version 1 checkpoints are an opaque UTF-8 token that never carried state;
// they decode to an empty checkpoint, which restores as a fresh start.
type CheckpointSerializer struct{}

const (
	checkpointVersionOpaqueToken = 1
	checkpointVersionProto       = 2
)

func (CheckpointSerializer) Version() int {
	return checkpointVersionProto
}

func (CheckpointSerializer) Serialize(c EnumeratorCheckpoint) ([]byte, error) {
	return marshalCheckpoint(c), nil
}

func (CheckpointSerializer) Deserialize(version int, data []byte) (EnumeratorCheckpoint, error) {
	switch version {
	case checkpointVersionOpaqueToken:
		return EnumeratorCheckpoint{}, nil
	case checkpointVersionProto:
		return unmarshalCheckpoint(data)
	default:
		return EnumeratorCheckpoint{}, &CorruptSplitError{Data: fmt.Sprintf("%x", data), Reason: fmt.Sprintf("unknown checkpoint serializer version %d", version)}
	}
}

var _ VersionedSerializer[EnumeratorCheckpoint] = CheckpointSerializer{}
