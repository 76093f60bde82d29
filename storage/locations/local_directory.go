package locations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
)

type LocalDirectory struct {
	path string
}

func NewLocalDirectory(path string) *LocalDirectory {
	return &LocalDirectory{path: path}
}

// Write creates the file through a temporary file and a rename so that
// readers never see a partial document.
func (d *LocalDirectory) Write(ctx context.Context, path string, data io.Reader) (string, error) {
	fullPath := d.resolve(path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("creating directory for %s: %w", fullPath, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".tmp-"+filepath.Base(fullPath)+"-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file for %s: %w", fullPath, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing %s: %w", fullPath, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", fullPath, err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", fmt.Errorf("renaming to %s: %w", fullPath, err)
	}
	return fullPath, nil
}

func (d *LocalDirectory) Read(ctx context.Context, path string) ([]byte, error) {
	return ReadLocalFile(d.resolve(path))
}

func (d *LocalDirectory) List(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		err := filepath.WalkDir(d.path, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() || strings.HasPrefix(entry.Name(), ".tmp-") {
				return nil
			}
			if !yield(path, nil) {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			yield("", err)
		}
	}
}

// Remove deletes files and ignores ones that don't exist.
func (d *LocalDirectory) Remove(ctx context.Context, paths ...string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(d.resolve(p)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// resolve keeps absolute paths and joins relative ones to the directory.
func (d *LocalDirectory) resolve(path string) string {
	path = strings.TrimPrefix(path, "file://")
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(d.path, path)
}

var _ StorageLocation = (*LocalDirectory)(nil)
