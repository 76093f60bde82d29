package splits

import (
	"strconv"
)

// TableID identifies a remote table. Depending on the deployment it holds a
// table name or a numeric table id. The connector treats it as an opaque
// token and never parses it.
type TableID string

func TableName(name string) TableID {
	return TableID(name)
}

func NumericTableID(id int64) TableID {
	return TableID(strconv.FormatInt(id, 10))
}

func (t TableID) String() string {
	return string(t)
}

// Split describes one stream of a table to read. A Split is never mutated
// after creation; the reader tracks progress in a State instead.
type Split struct {
	Table    TableID
	StreamID int64
	// The commit to resume after. Empty means read the stream from the
	// beginning.
	StartingCommitID string
}

func New(table TableID, streamID int64, startingCommitID string) Split {
	return Split{
		Table:            table,
		StreamID:         streamID,
		StartingCommitID: startingCommitID,
	}
}

// ID is the identity of the split, `table:stream`. Splits with equal IDs are
// interchangeable for assignment.
func (s Split) ID() string {
	return s.Table.String() + ":" + strconv.FormatInt(s.StreamID, 10)
}

func (s Split) HasStartingCommit() bool {
	return s.StartingCommitID != ""
}

func (s Split) String() string {
	if s.HasStartingCommit() {
		return s.ID() + "@" + s.StartingCommitID
	}
	return s.ID()
}
