package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"mangrobe.dev/streamsource/clocks"
	"mangrobe.dev/streamsource/logging"
	"mangrobe.dev/streamsource/tableapi/tablefake"
	"mangrobe.dev/streamsource/util/httpu"
)

type fakeServerParams struct {
	addr           string
	table          string
	streams        int
	commitInterval time.Duration
}

func serveFake(ctx context.Context, params fakeServerParams) error {
	if params.streams < 1 {
		return fmt.Errorf("streams must be at least 1 but was %d", params.streams)
	}

	logger := slog.With("instanceID", "fake-server")
	fake := tablefake.New()
	for i := range params.streams {
		fake.CreateStream(params.table, int64(i+1))
	}

	if params.commitInterval > 0 {
		ticker := clocks.NewSystemClock().Every(params.commitInterval, commitGenerator(fake, params, logger), "commit")
		defer ticker.Stop()
	}

	listener, err := net.Listen("tcp", params.addr)
	if err != nil {
		return err
	}
	logger.Info("serving table service", "addr", listener.Addr().String(), "table", params.table, "streams", params.streams)

	server := httpu.NewServer(logging.NewHTTPHandler(fake.Handler(), logger))
	if err := server.Serve(ctx, listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// commitGenerator cycles through the streams adding one file per call and
// compacting a stream's files every fifth commit to it.
func commitGenerator(fake *tablefake.Fake, params fakeServerParams, logger *slog.Logger) func() {
	var n int
	files := make(map[int64][]string)
	return func() {
		streamID := int64(n%params.streams + 1)
		n++

		if len(files[streamID]) == 4 {
			dst := fmt.Sprintf("stream-%d/compacted-%d.parquet", streamID, n)
			id := fake.CompactFiles(params.table, streamID, dst, files[streamID]...)
			files[streamID] = []string{dst}
			logger.Debug("compacted files", "stream", streamID, "commit", id)
			return
		}

		path := fmt.Sprintf("stream-%d/part-%d.parquet", streamID, n)
		id := fake.AddFiles(params.table, streamID, path)
		files[streamID] = append(files[streamID], path)
		logger.Debug("added file", "stream", streamID, "commit", id)
	}
}
