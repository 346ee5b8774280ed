package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/slateos/backend/internal/domain/snapshot"
	"github.com/slateos/backend/internal/shared/types"
)

// FileGateway persists one zstd-compressed snapshot file per context under
// a storage root. Writes go to a temp file first and are renamed into
// place, so a crash mid-write never corrupts the last good snapshot.
type FileGateway struct {
	root    string
	codec   *snapshot.Codec
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewFileGateway creates a file-backed gateway rooted at dir
func NewFileGateway(dir string) (*FileGateway, error) {
	contextsDir := filepath.Join(dir, "contexts")
	if err := os.MkdirAll(contextsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &FileGateway{
		root:    dir,
		codec:   snapshot.NewCodec(),
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// Load reads and decodes the persisted snapshot for a context
func (g *FileGateway) Load(_ context.Context, contextID string) (*types.Snapshot, bool, error) {
	path, err := g.snapshotPath(contextID)
	if err != nil {
		return nil, false, err
	}

	compressed, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read snapshot %s: %w", contextID, err)
	}

	data, err := g.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decompress snapshot %s: %w", contextID, err)
	}

	snap, err := g.codec.Decode(data)
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

// Save encodes, compresses, and atomically replaces the context's snapshot
func (g *FileGateway) Save(_ context.Context, contextID string, snap *types.Snapshot) error {
	path, err := g.snapshotPath(contextID)
	if err != nil {
		return err
	}

	data, err := g.codec.Encode(snap)
	if err != nil {
		return err
	}
	compressed := g.encoder.EncodeAll(data, nil)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snap-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write snapshot %s: %w", contextID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close snapshot %s: %w", contextID, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace snapshot %s: %w", contextID, err)
	}
	return nil
}

// Delete removes the context's snapshot file. Deleting a never-persisted
// context is not an error.
func (g *FileGateway) Delete(_ context.Context, contextID string) error {
	path, err := g.snapshotPath(contextID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete snapshot %s: %w", contextID, err)
	}
	return nil
}

// snapshotPath maps a context id to its snapshot file, rejecting ids that
// would escape the storage root
func (g *FileGateway) snapshotPath(contextID string) (string, error) {
	if contextID == "" || strings.ContainsAny(contextID, "/\\") || strings.Contains(contextID, "..") {
		return "", fmt.Errorf("invalid context id %q", contextID)
	}
	return filepath.Join(g.root, "contexts", contextID+".snap"), nil
}
