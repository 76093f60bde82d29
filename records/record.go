// Package records turns table service commits into the records a source
// emits downstream.
package records

import (
	"mangrobe.dev/streamsource/splits"
	"mangrobe.dev/streamsource/tableapi"
)

type ChangeKind int

const (
	// Unknown marks a commit shape this connector doesn't recognize. It still
	// carries a commit ID so cursors advance past it.
	Unknown ChangeKind = iota
	AddedFiles
	ChangedFiles
	CompactedFiles
)

func (k ChangeKind) String() string {
	switch k {
	case AddedFiles:
		return "ADDED_FILES"
	case ChangedFiles:
		return "CHANGED_FILES"
	case CompactedFiles:
		return "COMPACTED_FILES"
	default:
		return "UNKNOWN"
	}
}

func (k ChangeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

type CompactedFile struct {
	SrcFiles []string `json:"srcFiles"`
	DstFile  string   `json:"dstFile"`
}

// Record is one commit of one stream. Only the file list matching Kind is
// populated.
type Record struct {
	TableID        splits.TableID  `json:"tableId"`
	StreamID       int64           `json:"streamId"`
	CommitID       string          `json:"commitId"`
	Kind           ChangeKind      `json:"kind"`
	AddedFiles     []string        `json:"addedFiles,omitempty"`
	DeletedFiles   []string        `json:"deletedFiles,omitempty"`
	CompactedFiles []CompactedFile `json:"compactedFiles,omitempty"`
}

// Translate maps a commit to a Record. It never fails: unrecognized commits
// become Unknown records.
func Translate(table splits.TableID, streamID int64, commit *tableapi.Commit) Record {
	r := Record{
		TableID:  table,
		StreamID: streamID,
		CommitID: commit.CommitID,
	}

	switch commit.ChangesCase() {
	case tableapi.ChangesAddedFiles:
		r.Kind = AddedFiles
		r.AddedFiles = paths(commit.AddedFiles.AddedFiles)
	case tableapi.ChangesChangedFiles:
		r.Kind = ChangedFiles
		r.DeletedFiles = paths(commit.ChangedFiles.DeletedFiles)
	case tableapi.ChangesCompactedFiles:
		r.Kind = CompactedFiles
		r.CompactedFiles = make([]CompactedFile, len(commit.CompactedFiles.CompactedFiles))
		for i, c := range commit.CompactedFiles.CompactedFiles {
			r.CompactedFiles[i] = CompactedFile{SrcFiles: paths(c.SrcFiles)}
			if c.DstFile != nil {
				r.CompactedFiles[i].DstFile = c.DstFile.Path
			}
		}
	default:
		r.Kind = Unknown
	}

	return r
}

// TranslateAll translates a page of commits in order.
func TranslateAll(table splits.TableID, streamID int64, commits []tableapi.Commit) []Record {
	out := make([]Record, len(commits))
	for i := range commits {
		out[i] = Translate(table, streamID, &commits[i])
	}
	return out
}

func paths(files []tableapi.CommittedFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}
