package locations

import (
	"context"
	"errors"
	"io"
	"iter"
)

// StorageLocation is a directory-like place to keep checkpoint documents,
// either on local disk or under an S3 prefix.
type StorageLocation interface {
	// Write data to the given file path. The path is relative to whatever path
	// prefixes the location was initialized with. However the returned URI
	// represents the full path to this file.
	Write(ctx context.Context, path string, data io.Reader) (uri string, err error)
	// Read accepts a relative path or a URI returned by Write or List.
	Read(ctx context.Context, path string) ([]byte, error)
	// List yields the URIs of all files in lexical order.
	List(ctx context.Context) iter.Seq2[string, error]
	Remove(ctx context.Context, paths ...string) error
}

var ErrNotFound = errors.New("path not found")
