package locations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"mangrobe.dev/streamsource/storage/objstore"
)

type S3Location struct {
	s3     objstore.S3Service
	bucket string
	prefix string
}

func NewS3Location(s3 objstore.S3Service, path string) (*S3Location, error) {
	bucket, prefix, err := splitS3URI(path)
	if err != nil {
		return nil, err
	}

	// Ensure the prefix ends with a slash. No one wants pathnames like
	// "prefixfile.txt".
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &S3Location{
		s3:     s3,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (l *S3Location) Write(ctx context.Context, path string, data io.Reader) (string, error) {
	key := resolveKey(l.prefix, path)
	_, err := l.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &l.bucket,
		Key:    &key,
		Body:   data,
	})
	if err != nil {
		return "", fmt.Errorf("failed to write object: %w", err)
	}

	return s3URI(l.bucket, key), nil
}

func (l *S3Location) Read(ctx context.Context, path string) ([]byte, error) {
	return readS3Object(ctx, l.s3, l.bucket, resolveKey(l.prefix, path))
}

// List pages through ListObjectsV2 under the location's prefix.
func (l *S3Location) List(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var token *string
		for {
			result, err := l.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket:            &l.bucket,
				Prefix:            &l.prefix,
				ContinuationToken: token,
			})
			if err != nil {
				yield("", err)
				return
			}

			for _, obj := range result.Contents {
				if !yield(s3URI(l.bucket, aws.ToString(obj.Key)), nil) {
					return
				}
			}

			if !aws.ToBool(result.IsTruncated) {
				return
			}
			token = result.NextContinuationToken
		}
	}
}

func (l *S3Location) Remove(ctx context.Context, paths ...string) error {
	var errs []error
	for _, path := range paths {
		key := resolveKey(l.prefix, path)
		_, err := l.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: &l.bucket,
			Key:    &key,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to delete object %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

var _ StorageLocation = (*S3Location)(nil)

func readS3Object(ctx context.Context, client objstore.S3Service, bucket, key string) ([]byte, error) {
	output, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("failed reading key %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read object: %w", err)
	}

	defer output.Body.Close()
	return io.ReadAll(output.Body)
}

// resolveKey returns an absolute bucket key. The prefix is added to relative
// paths while URIs have the protocol and bucket name removed.
//
// example:
//
//	resolveKey("prefix/", "s3://bucket/path") => "path"
//	resolveKey("prefix/", "path") => "prefix/path"
func resolveKey(prefix string, path string) string {
	if strings.HasPrefix(path, "s3://") {
		_, key, _ := splitS3URI(path)
		return key
	}

	// Always remove any leading slash
	path = strings.TrimPrefix(path, "/")

	return prefix + path
}

func splitS3URI(uri string) (bucket, key string, err error) {
	parts := strings.SplitN(strings.TrimPrefix(uri, "s3://"), "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("S3 path must include bucket: %s", uri)
	}
	if len(parts) > 1 {
		key = parts[1]
	}
	return parts[0], key, nil
}

func s3URI(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}
