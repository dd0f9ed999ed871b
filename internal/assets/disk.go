package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sitecms/api/internal/schema"
)

// DiskStorage writes uploads into a directory served under publicBase.
type DiskStorage struct {
	dir        string
	publicBase string
}

func NewDiskStorage(dir, publicBase string) *DiskStorage {
	return &DiskStorage{dir: dir, publicBase: strings.TrimRight(publicBase, "/")}
}

// Put creates the directory if needed and writes the file. An existing file of
// the same name is never overwritten.
func (s *DiskStorage) Put(_ context.Context, name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(s.dir, name)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return fmt.Errorf("sync %s: %w", name, err)
	}
	return file.Close()
}

func (s *DiskStorage) Ref(name string) schema.AssetRef {
	return schema.AssetRef(s.publicBase + "/" + name)
}

func (s *DiskStorage) Dir() string {
	return s.dir
}
