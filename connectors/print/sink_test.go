package print_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mangrobe.dev/streamsource/connectors/print"
	"mangrobe.dev/streamsource/records"
)

func TestSinkWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	sink := print.NewSink(&buf)

	require.NoError(t, sink.Collect(records.Record{
		TableID:    "T",
		StreamID:   42,
		CommitID:   "1",
		Kind:       records.AddedFiles,
		AddedFiles: []string{"a.parquet"},
	}))
	require.NoError(t, sink.Collect(records.Record{TableID: "T", StreamID: 42, CommitID: "2"}))

	assert.Equal(t,
		`{"tableId":"T","streamId":42,"commitId":"1","kind":"ADDED_FILES","addedFiles":["a.parquet"]}`+"\n"+
			`{"tableId":"T","streamId":42,"commitId":"2","kind":"UNKNOWN"}`+"\n",
		buf.String())
}
