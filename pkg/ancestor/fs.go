package ancestor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vango-dev/blueprint/internal/errors"
	"github.com/vango-dev/blueprint/pkg/repository"
)

// FS stores manifests as files in a directory.
type FS struct {
	dir string
}

// NewFS creates a filesystem store rooted at dir.
func NewFS(dir string) (*FS, error) {
	if dir == "" {
		return nil, errors.New(errors.CodeStoreUnavailable).
			WithDetail("filesystem store needs a directory")
	}
	return &FS{dir: dir}, nil
}

// Load implements Store.
func (s *FS) Load(_ context.Context, key string) (repository.Snapshot, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return repository.Snapshot{}, nil
		}
		return nil, fmt.Errorf("read ancestor %s: %w", key, err)
	}
	return decodeManifest(key, data)
}

// Save implements Store. The manifest is written to a temporary file and
// renamed into place.
func (s *FS) Save(_ context.Context, key string, snap repository.Snapshot) error {
	data, err := encodeManifest(key, snap)
	if err != nil {
		return fmt.Errorf("encode ancestor %s: %w", key, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create ancestor dir: %w", err)
	}
	target := s.path(key)
	tmp, err := os.CreateTemp(s.dir, ".ancestor-*")
	if err != nil {
		return fmt.Errorf("save ancestor %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save ancestor %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save ancestor %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("save ancestor %s: %w", key, err)
	}
	return nil
}

// Driver implements Store.
func (s *FS) Driver() Driver { return DriverFilesystem }

func (s *FS) path(key string) string {
	return filepath.Join(s.dir, objectName(key))
}
