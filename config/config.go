package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mangrobe.dev/streamsource/logging"
	"mangrobe.dev/streamsource/splits"
	"mangrobe.dev/streamsource/storage/locations"
	"mangrobe.dev/streamsource/util/netu"
)

// The object representing the runner configuration.
type Config struct {
	// Address of the table service
	Addr  string `json:"addr"`
	Table string `json:"table"`

	ReaderCount       int      `json:"readerCount"`
	DiscoveryInterval Duration `json:"discoveryInterval"`
	IdleBackoff       Duration `json:"idleBackoff"`
	QuarantineBackoff Duration `json:"quarantineBackoff"`
	RequestTimeout    Duration `json:"requestTimeout"`
	PageSize          int32    `json:"pageSize"`
	MaxAttempts       int      `json:"maxAttempts"`

	// Zero disables checkpoints.
	CheckpointInterval  Duration `json:"checkpointInterval"`
	CheckpointLocation  string   `json:"checkpointLocation"`
	CheckpointRetention int      `json:"checkpointRetention"`

	LogLevel string   `json:"logLevel"`
	S3       S3Config `json:"s3"`
}

type S3Config struct {
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
}

func (c S3Config) Options() locations.S3Options {
	return locations.S3Options{
		Region:          c.Region,
		Endpoint:        c.Endpoint,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
	}
}

// Default returns a config with every optional field set.
func Default() Config {
	return Config{
		ReaderCount:         1,
		DiscoveryInterval:   Duration(3 * time.Second),
		IdleBackoff:         Duration(5 * time.Second),
		QuarantineBackoff:   Duration(10 * time.Minute),
		RequestTimeout:      Duration(10 * time.Second),
		MaxAttempts:         3,
		CheckpointInterval:  Duration(30 * time.Second),
		CheckpointRetention: 3,
		LogLevel:            "info",
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	} else if _, err := netu.ResolveAddr(c.Addr); err != nil {
		errs = append(errs, fmt.Errorf("addr: %w", err))
	}
	if c.Table == "" {
		errs = append(errs, errors.New("table is required"))
	}
	if c.ReaderCount < 1 {
		errs = append(errs, fmt.Errorf("readerCount must be at least 1 but was %d", c.ReaderCount))
	}
	if c.DiscoveryInterval <= 0 {
		errs = append(errs, fmt.Errorf("discoveryInterval must be positive but was %s", time.Duration(c.DiscoveryInterval)))
	}
	if c.IdleBackoff <= 0 {
		errs = append(errs, fmt.Errorf("idleBackoff must be positive but was %s", time.Duration(c.IdleBackoff)))
	}
	if c.QuarantineBackoff <= 0 {
		errs = append(errs, fmt.Errorf("quarantineBackoff must be positive but was %s", time.Duration(c.QuarantineBackoff)))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("requestTimeout must be positive but was %s", time.Duration(c.RequestTimeout)))
	}
	if c.PageSize < 0 {
		errs = append(errs, fmt.Errorf("pageSize must not be negative but was %d", c.PageSize))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("maxAttempts must be at least 1 but was %d", c.MaxAttempts))
	}
	if c.CheckpointInterval < 0 {
		errs = append(errs, fmt.Errorf("checkpointInterval must not be negative but was %s", time.Duration(c.CheckpointInterval)))
	}
	if c.CheckpointsEnabled() && c.CheckpointRetention < 1 {
		errs = append(errs, fmt.Errorf("checkpointRetention must be at least 1 but was %d", c.CheckpointRetention))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CheckpointsEnabled is true when there is both a location and an interval.
func (c *Config) CheckpointsEnabled() bool {
	return c.CheckpointLocation != "" && c.CheckpointInterval > 0
}

func (c *Config) TableID() splits.TableID {
	return splits.TableName(c.Table)
}

// Load reads a config document from a local path or an S3 URI.
func Load(ctx context.Context, path string, params *Params) (*Config, error) {
	data, err := locations.ReadFile(ctx, path, locations.S3Options{})
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Unmarshal(data, params)
}
