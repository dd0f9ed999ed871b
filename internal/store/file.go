package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	sitelog "sitecms/api/internal/log"
)

// Backend reads and replaces the whole configuration artifact.
type Backend interface {
	ReadArtifact(ctx context.Context) ([]byte, error)
	WriteArtifact(ctx context.Context, artifact []byte) error
	Ping(ctx context.Context) error
}

// FileBackend keeps the artifact as a file on disk.
type FileBackend struct {
	path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) Path() string {
	return b.path
}

func (b *FileBackend) ReadArtifact(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, b.path)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

// WriteArtifact replaces the file atomically: readers see either the old or
// the new artifact, never a partial one.
func (b *FileBackend) WriteArtifact(_ context.Context, artifact []byte) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	pending, err := renameio.NewPendingFile(b.path, renameio.WithPermissions(0o644), renameio.WithExistingPermissions())
	if err != nil {
		return fmt.Errorf("create pending artifact: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger := sitelog.WithComponent("store")
			logger.Debug().Err(err).Msg("cleanup pending artifact")
		}
	}()

	if _, err := pending.Write(artifact); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace artifact: %w", err)
	}
	return nil
}

func (b *FileBackend) Ping(_ context.Context) error {
	dir := filepath.Dir(b.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat artifact dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("artifact dir %s is not a directory", dir)
	}
	return nil
}
