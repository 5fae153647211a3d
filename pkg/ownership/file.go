package ownership

import (
	"fmt"
	"os"
	"path/filepath"
)

// ReadFile loads the ownership file at path. A missing file yields an empty
// descriptor.
func ReadFile(path string, opts ...ParseOption) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Descriptor{}, nil
		}
		return Descriptor{}, fmt.Errorf("read ownership file: %w", err)
	}
	opts = append([]ParseOption{WithFile(path)}, opts...)
	return AsObject(string(data), opts...)
}

// WriteFile renders d and writes it to path, creating parent directories.
func WriteFile(path, owner string, d Descriptor) error {
	text, err := AsString(owner, d)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create ownership directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write ownership file: %w", err)
	}
	return nil
}
