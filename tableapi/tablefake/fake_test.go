package tablefake_test

import (
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mangrobe.dev/streamsource/connectors"
	"mangrobe.dev/streamsource/tableapi"
	"mangrobe.dev/streamsource/tableapi/tablefake"
)

func newClient(t *testing.T) (*tableapi.Client, *tablefake.Fake) {
	server, fake := tablefake.StartFake()
	t.Cleanup(server.Close)
	client := tableapi.NewClient(tableapi.NewClientParams{Addr: server.URL, MaxAttempts: 1})
	t.Cleanup(func() { client.Close() })
	return client, fake
}

func TestListStreamsPaginates(t *testing.T) {
	client, fake := newClient(t)
	for _, id := range []int64{30, 10, 20} {
		fake.CreateStream("T", id)
	}
	c := fake.AddFiles("T", 20, "a.parquet")

	page1, err := client.ListStreams(t.Context(), &tableapi.ListStreamsRequest{
		TableName:  "T",
		Pagination: tableapi.PaginationRequest{Size: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []tableapi.StreamInfo{
		{StreamID: 10},
		{StreamID: 20, LastCommitID: c},
	}, page1.Streams)
	assert.Equal(t, "T:20", page1.NextToken())

	page2, err := client.ListStreams(t.Context(), &tableapi.ListStreamsRequest{
		TableName:  "T",
		Pagination: tableapi.PaginationRequest{Size: 2, Token: page1.NextToken()},
	})
	require.NoError(t, err)
	assert.Equal(t, []tableapi.StreamInfo{{StreamID: 30}}, page2.Streams)
	assert.Nil(t, page2.Pagination, "last page has no pagination")
}

func TestGetCommitsAfterCursor(t *testing.T) {
	client, fake := newClient(t)
	c1 := fake.AddFiles("T", 1, "a.parquet")
	c2 := fake.DeleteFiles("T", 1, "a.parquet")
	c3 := fake.CompactFiles("T", 1, "bc.parquet", "b.parquet", "c.parquet")
	c4 := fake.AddUnknownCommit("T", 1)

	resp, err := client.GetCommits(t.Context(), &tableapi.GetCommitsRequest{TableName: "T", StreamID: 1})
	require.NoError(t, err)
	require.Len(t, resp.Commits, 4)
	assert.Equal(t, []string{c1, c2, c3, c4}, commitIDs(resp.Commits))
	assert.Equal(t, tableapi.ChangesAddedFiles, resp.Commits[0].ChangesCase())
	assert.Equal(t, tableapi.ChangesChangedFiles, resp.Commits[1].ChangesCase())
	assert.Equal(t, tableapi.ChangesCompactedFiles, resp.Commits[2].ChangesCase())
	assert.Equal(t, tableapi.ChangesNotSet, resp.Commits[3].ChangesCase())

	resp, err = client.GetCommits(t.Context(), &tableapi.GetCommitsRequest{TableName: "T", StreamID: 1, CommitIDAfter: c2})
	require.NoError(t, err)
	assert.Equal(t, []string{c3, c4}, commitIDs(resp.Commits))
}

func TestGetCommitsErrorsAreClassified(t *testing.T) {
	client, fake := newClient(t)
	fake.CreateStream("T", 1)

	_, err := client.GetCommits(t.Context(), &tableapi.GetCommitsRequest{TableName: "T", StreamID: 1, CommitIDAfter: "abc"})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	assert.False(t, connectors.IsRetryable(err))

	_, err = client.GetCommits(t.Context(), &tableapi.GetCommitsRequest{TableName: "missing", StreamID: 1})
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	fake.SetGetCommitsError(connect.NewError(connect.CodeUnavailable, assert.AnError))
	_, err = client.GetCommits(t.Context(), &tableapi.GetCommitsRequest{TableName: "T", StreamID: 1})
	assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(err))
	assert.True(t, connectors.IsRetryable(err))
}

func commitIDs(commits []tableapi.Commit) []string {
	ids := make([]string, len(commits))
	for i, c := range commits {
		ids[i] = c.CommitID
	}
	return ids
}
