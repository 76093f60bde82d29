package tablefake

import (
	"context"
	"fmt"
	"strconv"

	"connectrpc.com/connect"
	"mangrobe.dev/streamsource/tableapi"
)

func (f *Fake) GetCommits(ctx context.Context, req *tableapi.GetCommitsRequest) (*tableapi.GetCommitsResponse, error) {
	f.mu.Lock()
	f.getCommitsRequests = append(f.getCommitsRequests, *req)
	hold := f.getCommitsHold
	f.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, connect.NewError(connect.CodeCanceled, ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getCommitsError != nil {
		return nil, f.getCommitsError
	}

	t, ok := f.db.tables[req.TableName]
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("table %q not found", req.TableName))
	}
	s, ok := t.streams.Get(&stream{id: req.StreamID})
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("stream %d not found", req.StreamID))
	}

	after := int64(-1)
	if req.CommitIDAfter != "" {
		var err error
		after, err = strconv.ParseInt(req.CommitIDAfter, 10, 64)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid commit_id_after %q", req.CommitIDAfter))
		}
	}

	resp := &tableapi.GetCommitsResponse{TableName: req.TableName, StreamID: req.StreamID}
	for _, c := range s.commits {
		id, _ := strconv.ParseInt(c.CommitID, 10, 64)
		if id <= after {
			continue
		}
		if f.commitsLimit > 0 && len(resp.Commits) == f.commitsLimit {
			break
		}
		resp.Commits = append(resp.Commits, c)
	}

	return resp, nil
}
