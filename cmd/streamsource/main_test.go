package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangrobe.dev/streamsource/config"
	"mangrobe.dev/streamsource/tableapi/tablefake"
)

func TestRun_PrintsRecordsAsJSONLines(t *testing.T) {
	server, fake := tablefake.StartFake()
	t.Cleanup(server.Close)
	fake.CreateStream("orders", 1)

	cfg := config.Default()
	cfg.Addr = server.URL
	cfg.Table = "orders"
	cfg.DiscoveryInterval = config.Duration(10 * time.Millisecond)
	cfg.IdleBackoff = config.Duration(10 * time.Millisecond)
	cfg.CheckpointLocation = t.TempDir()
	cfg.CheckpointInterval = config.Duration(20 * time.Millisecond)
	require.NoError(t, cfg.Validate())

	out := &syncBuffer{}
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- run(ctx, &cfg, "", out) }()

	// Wait for the stream's split to exist before committing so the commit
	// isn't taken as the starting point.
	require.Eventually(t, func() bool {
		return len(fake.GetCommitsRequests()) > 0
	}, 5*time.Second, 5*time.Millisecond)
	commitID := fake.AddFiles("orders", 1, "a.parquet")

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `"commitId":"`+commitID+`"`)
	}, 5*time.Second, 5*time.Millisecond)
	assert.Contains(t, out.String(), `"kind":"ADDED_FILES"`)

	cancel()
	assert.NoError(t, <-done)
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"HOST=tables", "EMPTY="})
	require.NoError(t, err)

	value, ok := params.Get("HOST")
	assert.True(t, ok)
	assert.Equal(t, "tables", value)
	value, ok = params.Get("EMPTY")
	assert.True(t, ok)
	assert.Equal(t, "", value)

	_, err = parseParams([]string{"novalue"})
	assert.Error(t, err)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
