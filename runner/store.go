package runner

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"

	"mangrobe.dev/streamsource/storage/locations"
)

const checkpointPrefix = "ckpt-"

// checkpointStore keeps checkpoint documents under checkpoints/ in a storage
// location. Names embed a zero-padded ID so lexical order is ID order.
type checkpointStore struct {
	location  locations.StorageLocation
	retention int
	log       *slog.Logger
}

func checkpointPath(id uint64) string {
	return fmt.Sprintf("checkpoints/%s%020d", checkpointPrefix, id)
}

func (s *checkpointStore) write(ctx context.Context, ckpt *Checkpoint) (string, error) {
	uri, err := s.location.Write(ctx, checkpointPath(ckpt.ID), bytes.NewReader(ckpt.Marshal()))
	if err != nil {
		return "", err
	}

	if err := s.prune(ctx); err != nil {
		s.log.Warn("removing old checkpoints failed", "err", err)
	}
	return uri, nil
}

// latest returns the newest checkpoint or nil if there is none.
func (s *checkpointStore) latest(ctx context.Context) (*Checkpoint, error) {
	uris, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	if len(uris) == 0 {
		return nil, nil
	}

	uri := uris[len(uris)-1]
	data, err := s.location.Read(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint %s: %w", uri, err)
	}
	ckpt, err := UnmarshalCheckpoint(data)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", uri, err)
	}
	return ckpt, nil
}

// prune removes all but the newest retained checkpoints.
func (s *checkpointStore) prune(ctx context.Context) error {
	uris, err := s.list(ctx)
	if err != nil {
		return err
	}
	if len(uris) <= s.retention {
		return nil
	}
	return s.location.Remove(ctx, uris[:len(uris)-s.retention]...)
}

func (s *checkpointStore) list(ctx context.Context) ([]string, error) {
	var uris []string
	for uri, err := range s.location.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("listing checkpoints: %w", err)
		}
		if path.Base(path.Dir(uri)) == "checkpoints" && strings.HasPrefix(path.Base(uri), checkpointPrefix) {
			uris = append(uris, uri)
		}
	}
	slices.SortFunc(uris, func(a, b string) int {
		return strings.Compare(path.Base(a), path.Base(b))
	})
	return uris, nil
}
