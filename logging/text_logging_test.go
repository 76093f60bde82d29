package logging_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"mangrobe.dev/streamsource/logging"
)

func TestTextHandlerInstanceIDAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(logging.NewTextHandlerWriter(&buf)).
		With("instanceID", "reader-1").
		With("table", "orders")

	logger.Info("fetched", "split", "orders:42", "note", "two words")

	line := buf.String()
	assert.Contains(t, line, "INFO [reader-1] fetched")
	assert.Contains(t, line, " table=orders split=orders:42")
	assert.Contains(t, line, `note="two words"`)
	assert.NotContains(t, line, "instanceID=")
}

func TestParseLevel(t *testing.T) {
	level, err := logging.ParseLevel("DEBUG")
	assert.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	_, err = logging.ParseLevel("loud")
	assert.Error(t, err)
}
