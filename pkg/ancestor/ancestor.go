// Package ancestor persists the snapshot each resynthesis generates so the
// next run can use it as the common ancestor of a three-way merge.
//
// The stored snapshot is the proposed fileset of the last successful run,
// keyed by repository title. It is written as a JSON manifest whose entries
// carry an xxh3 digest; a manifest that fails verification is reported as
// corrupt rather than silently treated as empty.
package ancestor

import (
	"context"
	"strings"

	"github.com/vango-dev/blueprint/internal/errors"
	"github.com/vango-dev/blueprint/pkg/repository"
)

// Driver identifies a Store implementation.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverMemory     Driver = "memory"
	DriverS3         Driver = "s3"
)

// Store loads and saves ancestor snapshots.
type Store interface {
	// Load returns the snapshot saved under key, or an empty snapshot if
	// none was saved.
	Load(ctx context.Context, key string) (repository.Snapshot, error)

	// Save replaces the snapshot stored under key.
	Save(ctx context.Context, key string, snap repository.Snapshot) error

	Driver() Driver
}

// Config selects and configures a Store.
type Config struct {
	Driver Driver

	// Dir is the filesystem driver's storage directory.
	Dir string

	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// Open creates the Store described by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverFilesystem, "":
		return NewFS(cfg.Dir)
	case DriverMemory:
		return NewMemory(), nil
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Prefix:    cfg.Prefix,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			PathStyle: cfg.PathStyle,
		})
	default:
		return nil, errors.New(errors.CodeStoreDriver).
			WithDetailf("driver %q", cfg.Driver).
			WithSuggestion("Use one of: fs, memory, s3")
	}
}

// objectName maps a repository key to a storage object name.
func objectName(key string) string {
	key = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, key)
	return key + ".json"
}
