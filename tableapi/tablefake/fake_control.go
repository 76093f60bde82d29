package tablefake

import (
	"slices"

	"mangrobe.dev/streamsource/tableapi"
)

// CreateTable registers an empty table. Tables are also created implicitly by
// the other control methods.
func (f *Fake) CreateTable(tableName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.db.table(tableName)
}

// CreateStream registers a stream with no commits.
func (f *Fake) CreateStream(tableName string, streamID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.db.table(tableName).stream(streamID)
}

// AddFiles appends an added-files commit and returns its ID.
func (f *Fake) AddFiles(tableName string, streamID int64, paths ...string) string {
	return f.appendCommit(tableName, streamID, tableapi.Commit{
		AddedFiles: &tableapi.AddedFiles{AddedFiles: committedFiles(paths)},
	})
}

// DeleteFiles appends a changed-files commit and returns its ID.
func (f *Fake) DeleteFiles(tableName string, streamID int64, paths ...string) string {
	return f.appendCommit(tableName, streamID, tableapi.Commit{
		ChangedFiles: &tableapi.ChangedFiles{DeletedFiles: committedFiles(paths)},
	})
}

// CompactFiles appends a compaction of srcs into dst and returns its ID.
func (f *Fake) CompactFiles(tableName string, streamID int64, dst string, srcs ...string) string {
	return f.appendCommit(tableName, streamID, tableapi.Commit{
		CompactedFiles: &tableapi.CompactedFiles{CompactedFiles: []tableapi.CompactedFile{{
			SrcFiles: committedFiles(srcs),
			DstFile:  &tableapi.CommittedFile{Path: dst},
		}}},
	})
}

// AddUnknownCommit appends a commit with no change payload, the shape a newer
// server version would send for a change kind this client doesn't know.
func (f *Fake) AddUnknownCommit(tableName string, streamID int64) string {
	return f.appendCommit(tableName, streamID, tableapi.Commit{})
}

// SetListStreamsError sets an error that will be returned by ListStreams calls.
// Set to nil to clear the error.
func (f *Fake) SetListStreamsError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listStreamsError = err
}

// SetGetCommitsError sets an error that will be returned by GetCommits calls.
// Set to nil to clear the error.
func (f *Fake) SetGetCommitsError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCommitsError = err
}

// SetPageSize sets the ListStreams page size used when a request doesn't ask
// for one.
func (f *Fake) SetPageSize(size int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageSize = size
}

// SetGetCommitsLimit caps the number of commits returned per GetCommits call.
func (f *Fake) SetGetCommitsLimit(limit int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitsLimit = limit
}

// HoldGetCommits makes GetCommits calls block until the returned func is
// called or the request is canceled.
func (f *Fake) HoldGetCommits() (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hold := make(chan struct{})
	f.getCommitsHold = hold
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.getCommitsHold == hold {
			f.getCommitsHold = nil
			close(hold)
		}
	}
}

func (f *Fake) ListStreamsCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listStreamsCalls
}

func (f *Fake) GetCommitsRequests() []tableapi.GetCommitsRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.getCommitsRequests)
}

func (f *Fake) appendCommit(tableName string, streamID int64, c tableapi.Commit) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.db.table(tableName).stream(streamID)
	c.CommitID = f.db.nextCommitID()
	s.commits = append(s.commits, c)
	return c.CommitID
}

func committedFiles(paths []string) []tableapi.CommittedFile {
	files := make([]tableapi.CommittedFile, len(paths))
	for i, p := range paths {
		files[i] = tableapi.CommittedFile{Path: p}
	}
	return files
}
