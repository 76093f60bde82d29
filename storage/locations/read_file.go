package locations

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"mangrobe.dev/streamsource/storage/objstore"
)

// ReadFile reads a single file from a local path or an s3:// URI.
func ReadFile(ctx context.Context, path string, opts S3Options) ([]byte, error) {
	if strings.HasPrefix(path, "s3://") {
		client, err := NewS3Client(ctx, opts)
		if err != nil {
			return nil, err
		}
		return ReadS3File(ctx, client, path)
	}
	return ReadLocalFile(path)
}

func ReadLocalFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func ReadS3File(ctx context.Context, client objstore.S3Service, uri string) ([]byte, error) {
	bucket, key, err := splitS3URI(uri)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("invalid S3 path, must include bucket and key: %s", uri)
	}
	return readS3Object(ctx, client, bucket, key)
}
