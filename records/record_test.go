package records_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"mangrobe.dev/streamsource/records"
	"mangrobe.dev/streamsource/splits"
	"mangrobe.dev/streamsource/tableapi"
)

var table = splits.TableName("T")

func TestTranslateAddedFiles(t *testing.T) {
	r := records.Translate(table, 42, &tableapi.Commit{
		CommitID: "7",
		AddedFiles: &tableapi.AddedFiles{AddedFiles: []tableapi.CommittedFile{
			{Path: "b.parquet"}, {Path: "a.parquet"},
		}},
	})

	assert.Equal(t, records.Record{
		TableID:    table,
		StreamID:   42,
		CommitID:   "7",
		Kind:       records.AddedFiles,
		AddedFiles: []string{"b.parquet", "a.parquet"},
	}, r)
}

func TestTranslateChangedFiles(t *testing.T) {
	r := records.Translate(table, 42, &tableapi.Commit{
		CommitID:     "8",
		ChangedFiles: &tableapi.ChangedFiles{DeletedFiles: []tableapi.CommittedFile{{Path: "a.parquet"}}},
	})

	assert.Equal(t, records.ChangedFiles, r.Kind)
	assert.Equal(t, "8", r.CommitID)
	assert.Equal(t, []string{"a.parquet"}, r.DeletedFiles)
	assert.Nil(t, r.AddedFiles)
	assert.Nil(t, r.CompactedFiles)
}

func TestTranslateCompactedFiles(t *testing.T) {
	r := records.Translate(table, 42, &tableapi.Commit{
		CommitID: "9",
		CompactedFiles: &tableapi.CompactedFiles{CompactedFiles: []tableapi.CompactedFile{
			{
				SrcFiles: []tableapi.CommittedFile{{Path: "a.parquet"}, {Path: "b.parquet"}},
				DstFile:  &tableapi.CommittedFile{Path: "ab.parquet"},
			},
			{SrcFiles: []tableapi.CommittedFile{{Path: "c.parquet"}}},
		}},
	})

	assert.Equal(t, records.CompactedFiles, r.Kind)
	assert.Equal(t, []records.CompactedFile{
		{SrcFiles: []string{"a.parquet", "b.parquet"}, DstFile: "ab.parquet"},
		{SrcFiles: []string{"c.parquet"}, DstFile: ""},
	}, r.CompactedFiles)
	assert.Nil(t, r.AddedFiles)
	assert.Nil(t, r.DeletedFiles)
}

func TestTranslateUnknown(t *testing.T) {
	r := records.Translate(table, 42, &tableapi.Commit{CommitID: "10"})

	assert.Equal(t, records.Record{
		TableID:  table,
		StreamID: 42,
		CommitID: "10",
		Kind:     records.Unknown,
	}, r)
}

func TestTranslateEmptyListsAreNotErrors(t *testing.T) {
	r := records.Translate(table, 1, &tableapi.Commit{
		CommitID:   "1",
		AddedFiles: &tableapi.AddedFiles{},
	})

	assert.Equal(t, records.AddedFiles, r.Kind)
	assert.Empty(t, r.AddedFiles)
}

func TestTranslateAllPreservesOrder(t *testing.T) {
	rs := records.TranslateAll(table, 1, []tableapi.Commit{{CommitID: "3"}, {CommitID: "1"}})
	assert.Equal(t, "3", rs[0].CommitID)
	assert.Equal(t, "1", rs[1].CommitID)
}
