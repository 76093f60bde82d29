package tablefake

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"connectrpc.com/connect"
	"mangrobe.dev/streamsource/tableapi"
)

func (f *Fake) ListStreams(ctx context.Context, req *tableapi.ListStreamsRequest) (*tableapi.ListStreamsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listStreamsCalls++
	if f.listStreamsError != nil {
		return nil, f.listStreamsError
	}

	t, ok := f.db.tables[req.TableName]
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("table %q not found", req.TableName))
	}

	after, err := parsePageToken(req.TableName, req.Pagination.Token)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	size := int(req.Pagination.Size)
	if size <= 0 {
		size = f.pageSize
	}
	if size <= 0 {
		size = defaultPageSize
	}

	resp := &tableapi.ListStreamsResponse{TableName: req.TableName}
	more := false
	t.streams.AscendGreaterOrEqual(&stream{id: after}, func(s *stream) bool {
		if s.id == after && req.Pagination.Token != "" {
			return true
		}
		if len(resp.Streams) == size {
			more = true
			return false
		}
		resp.Streams = append(resp.Streams, tableapi.StreamInfo{
			StreamID:     s.id,
			LastCommitID: s.lastCommitID(),
		})
		return true
	})

	if more {
		last := resp.Streams[len(resp.Streams)-1].StreamID
		resp.Pagination = &tableapi.PaginationResponse{
			NextToken: req.TableName + ":" + strconv.FormatInt(last, 10),
		}
	}

	return resp, nil
}

// Tokens are `table:lastStreamID`. An empty token starts from the first
// stream.
func parsePageToken(tableName, token string) (int64, error) {
	if token == "" {
		return math.MinInt64, nil
	}
	idx := strings.LastIndex(token, ":")
	if idx < 0 || token[:idx] != tableName {
		return 0, fmt.Errorf("invalid page token %q", token)
	}
	id, err := strconv.ParseInt(token[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid page token %q: %w", token, err)
	}
	return id, nil
}
