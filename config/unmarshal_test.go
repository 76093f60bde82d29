package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangrobe.dev/streamsource/config"
)

func TestUnmarshal_Defaults(t *testing.T) {
	cfg, err := config.Unmarshal([]byte(`{"addr": "localhost:50051", "table": "orders"}`), nil)
	require.NoError(t, err)

	assert.Equal(t, "localhost:50051", cfg.Addr)
	assert.Equal(t, "orders", cfg.TableID().String())
	assert.Equal(t, 1, cfg.ReaderCount)
	assert.Equal(t, config.Duration(3*time.Second), cfg.DiscoveryInterval)
	assert.Equal(t, config.Duration(5*time.Second), cfg.IdleBackoff)
	assert.Equal(t, config.Duration(10*time.Minute), cfg.QuarantineBackoff)
	assert.Equal(t, config.Duration(10*time.Second), cfg.RequestTimeout)
	assert.Equal(t, config.Duration(30*time.Second), cfg.CheckpointInterval)
	assert.Equal(t, 3, cfg.CheckpointRetention)
	assert.False(t, cfg.CheckpointsEnabled(), "no location means no checkpoints")
}

func TestUnmarshal_AllFields(t *testing.T) {
	cfg, err := config.Unmarshal([]byte(`{
		"addr": "http://tables:8080",
		"table": "orders",
		"readerCount": 4,
		"discoveryInterval": "1m",
		"idleBackoff": "250ms",
		"requestTimeout": "2s",
		"pageSize": 50,
		"maxAttempts": 5,
		"checkpointInterval": "0s",
		"checkpointLocation": "s3://bucket/orders",
		"checkpointRetention": 10,
		"logLevel": "debug",
		"s3": {"region": "eu-west-1", "endpoint": "http://minio:9000"}
	}`), nil)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.ReaderCount)
	assert.Equal(t, config.Duration(time.Minute), cfg.DiscoveryInterval)
	assert.Equal(t, config.Duration(250*time.Millisecond), cfg.IdleBackoff)
	assert.Equal(t, int32(50), cfg.PageSize)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, config.Duration(0), cfg.CheckpointInterval)
	assert.False(t, cfg.CheckpointsEnabled(), "a zero interval disables checkpoints")
	assert.Equal(t, "eu-west-1", cfg.S3.Options().Region)
	assert.Equal(t, "http://minio:9000", cfg.S3.Options().Endpoint)
}

func TestUnmarshal_ResolvesParams(t *testing.T) {
	t.Setenv("STREAMSOURCE_TEST_TABLE", "from-env")
	params := config.NewParams()
	params.Set("HOST", "tables")

	cfg, err := config.Unmarshal([]byte(`{
		"addr": "http://${HOST}:8080",
		"table": "${STREAMSOURCE_TEST_TABLE}",
		"idleBackoff": "${STREAMSOURCE_TEST_BACKOFF}"
	}`), withBackoff(params, "1s"))
	require.NoError(t, err)

	assert.Equal(t, "http://tables:8080", cfg.Addr)
	assert.Equal(t, "from-env", cfg.Table)
	assert.Equal(t, config.Duration(time.Second), cfg.IdleBackoff)
}

func TestUnmarshal_MissingParam(t *testing.T) {
	_, err := config.Unmarshal([]byte(`{"addr": "${STREAMSOURCE_TEST_UNSET}", "table": "t"}`), nil)
	assert.ErrorContains(t, err, `missing parameter "STREAMSOURCE_TEST_UNSET"`)
}

func TestUnmarshal_InvalidDocument(t *testing.T) {
	_, err := config.Unmarshal([]byte(`{"addr": `), nil)
	assert.ErrorContains(t, err, "invalid config document format")

	_, err = config.Unmarshal([]byte(`{"addr": "a", "table": "t", "idleBackoff": "soon"}`), nil)
	assert.ErrorContains(t, err, "invalid config document format")
}

func TestValidate_JoinsAllViolations(t *testing.T) {
	cfg := config.Default()
	cfg.ReaderCount = 0
	cfg.CheckpointLocation = "/tmp/ckpt"
	cfg.CheckpointRetention = 0
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "addr is required")
	assert.ErrorContains(t, err, "table is required")
	assert.ErrorContains(t, err, "readerCount must be at least 1")
	assert.ErrorContains(t, err, "checkpointRetention must be at least 1")
	assert.ErrorContains(t, err, "loud")
}

func TestLoad_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"addr": "a:1", "table": "t", "readerCount": 2}`), 0o644))

	cfg, err := config.Load(t.Context(), path, config.NewParams())
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.ReaderCount)

	_, err = config.Load(t.Context(), filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)
}

func withBackoff(params *config.Params, value string) *config.Params {
	params.Set("STREAMSOURCE_TEST_BACKOFF", value)
	return params
}
