package repository

import (
	"bytes"
	"path"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/vango-dev/blueprint/internal/errors"
)

// File is one file of a snapshot, keyed by its repository-relative path.
type File struct {
	Path    string
	Content []byte
}

// NewFile returns a File holding a private copy of content.
func NewFile(p string, content []byte) *File {
	return &File{Path: p, Content: bytes.Clone(content)}
}

// Digest returns the xxh3-128 digest of the file content.
func (f *File) Digest() [16]byte {
	if f == nil {
		return [16]byte{}
	}
	return xxh3.Hash128(f.Content).Bytes()
}

// SameContent reports whether a and b are both absent or both present with
// identical bytes.
func SameContent(a, b *File) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return bytes.Equal(a.Content, b.Content)
}

// Snapshot is a point-in-time mapping of path to file.
type Snapshot map[string]*File

// Get returns the file at p, or nil.
func (s Snapshot) Get(p string) *File {
	if s == nil {
		return nil
	}
	return s[p]
}

// Paths returns the snapshot paths in lexical order.
func (s Snapshot) Paths() []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for p, f := range s {
		out[p] = NewFile(f.Path, f.Content)
	}
	return out
}

// Equal reports whether both snapshots hold the same paths with the same content.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for p, f := range s {
		if !SameContent(f, other[p]) {
			return false
		}
	}
	return true
}

// Union returns the sorted set of paths present in any of the snapshots.
func Union(snapshots ...Snapshot) []string {
	seen := make(map[string]struct{})
	for _, s := range snapshots {
		for p := range s {
			seen[p] = struct{}{}
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// NormalizePath turns p into the canonical repository-relative form used as
// a snapshot key. Backslashes become slashes, duplicate separators collapse,
// and leading "./" or "/" and trailing "/" are dropped. Paths that escape
// the repository root are rejected.
func NormalizePath(p string) (string, error) {
	raw := p
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimLeft(p, "/")
	p = path.Clean(p)
	if p == "." || p == "" {
		return "", errors.New(errors.CodeInvalidPath).
			WithDetailf("%q does not name a file", raw)
	}
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", errors.New(errors.CodeInvalidPath).
			WithDetailf("%q escapes the repository root", raw).
			WithSuggestion("Use a path relative to the repository root")
	}
	return p, nil
}
