package splits

import (
	"fmt"
	"strconv"
	"strings"
)

const fieldSeparator = ":"

// CorruptSplitError is returned when persisted split or checkpoint data
// cannot be decoded.
type CorruptSplitError struct {
	Data   string
	Reason string
}

func (e *CorruptSplitError) Error() string {
	return fmt.Sprintf("corrupt split %q: %s", e.Data, e.Reason)
}

// Encode writes a split as UTF-8 text: `table:stream` or
// `table:stream:commit` when the split has a starting commit.
func Encode(s Split) []byte {
	var b strings.Builder
	b.WriteString(s.Table.String())
	b.WriteString(fieldSeparator)
	b.WriteString(strconv.FormatInt(s.StreamID, 10))
	if s.HasStartingCommit() {
		b.WriteString(fieldSeparator)
		b.WriteString(s.StartingCommitID)
	}
	return []byte(b.String())
}

// Decode parses the output of Encode. An empty commit field (`t:1:`) is read
// as no starting commit, so an empty cursor and an absent cursor can't be
// told apart.
func Decode(data []byte) (Split, error) {
	text := string(data)
	fields := strings.Split(text, fieldSeparator)
	if len(fields) != 2 && len(fields) != 3 {
		return Split{}, &CorruptSplitError{Data: text, Reason: fmt.Sprintf("expected 2 or 3 fields, got %d", len(fields))}
	}

	if fields[0] == "" {
		return Split{}, &CorruptSplitError{Data: text, Reason: "empty table"}
	}

	streamID, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Split{}, &CorruptSplitError{Data: text, Reason: "stream id is not an integer"}
	}

	var commitID string
	if len(fields) == 3 {
		commitID = fields[2]
	}

	return New(TableID(fields[0]), streamID, commitID), nil
}
