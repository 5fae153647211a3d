package ancestor

import (
	"encoding/hex"
	"encoding/json"

	"github.com/vango-dev/blueprint/internal/errors"
	"github.com/vango-dev/blueprint/pkg/repository"
)

const manifestVersion = 1

type manifest struct {
	Version    int            `json:"version"`
	Repository string         `json:"repository"`
	Files      []manifestFile `json:"files"`
}

type manifestFile struct {
	Path    string `json:"path"`
	Digest  string `json:"digest"`
	Content []byte `json:"content"`
}

func encodeManifest(key string, snap repository.Snapshot) ([]byte, error) {
	m := manifest{Version: manifestVersion, Repository: key, Files: make([]manifestFile, 0, len(snap))}
	for _, p := range snap.Paths() {
		f := snap[p]
		digest := f.Digest()
		m.Files = append(m.Files, manifestFile{
			Path:    p,
			Digest:  hex.EncodeToString(digest[:]),
			Content: f.Content,
		})
	}
	return json.MarshalIndent(m, "", "  ")
}

func decodeManifest(key string, data []byte) (repository.Snapshot, error) {
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, corrupt(key, "manifest is not valid JSON").Wrap(err)
	}
	if m.Version != manifestVersion {
		return nil, corrupt(key, "unsupported manifest version")
	}
	if m.Repository != key {
		return nil, corrupt(key, "manifest belongs to repository "+m.Repository)
	}
	snap := make(repository.Snapshot, len(m.Files))
	for _, mf := range m.Files {
		f := repository.NewFile(mf.Path, mf.Content)
		digest := f.Digest()
		if hex.EncodeToString(digest[:]) != mf.Digest {
			return nil, corrupt(key, "digest mismatch for "+mf.Path)
		}
		snap[mf.Path] = f
	}
	return snap, nil
}

func corrupt(key, detail string) *errors.BlueprintError {
	return errors.New(errors.CodeAncestorCorrupt).
		WithDetailf("%s: %s", key, detail).
		WithSuggestion("Delete the stored ancestor to fall back to a two-way resynthesis")
}
