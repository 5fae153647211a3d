package difference

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/blueprint/pkg/repository"
)

// Bundle layout.
const (
	DiffDir        = "src-diffs"
	PullRequestDir = "pull-request"
)

// Set holds the patches of one repository against one origin branch.
type Set struct {
	// Identifier is "<repository>-<originBranch>" and names the patch directory.
	Identifier string
	Repository string
	// Patches maps repository-relative paths to their patch text.
	Patches map[string][]byte
}

// Compute diffs every path of before and after. Paths with no difference are
// left out of the set.
func Compute(repo, originBranch string, before, after repository.Snapshot) (*Set, error) {
	set := &Set{
		Identifier: repo + "-" + originBranch,
		Repository: repo,
		Patches:    make(map[string][]byte),
	}
	for _, p := range repository.Union(before, after) {
		patch, err := Patch(p, before.Get(p), after.Get(p))
		if err != nil {
			return nil, fmt.Errorf("diff %s: %w", p, err)
		}
		if len(patch) > 0 {
			set.Patches[p] = patch
		}
	}
	return set, nil
}

// Empty reports whether the set holds no patch.
func (s *Set) Empty() bool {
	return s == nil || len(s.Patches) == 0
}

// Dir returns the bundle-relative directory of the set's patches.
func (s *Set) Dir() string {
	return path.Join(DiffDir, s.Identifier)
}

// Write stores each patch at <bundle>/src-diffs/<identifier>/<path>.
func (s *Set) Write(bundle string) error {
	for p, patch := range s.Patches {
		dest := filepath.Join(bundle, filepath.FromSlash(s.Dir()), filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
		}
		if err := os.WriteFile(dest, patch, 0644); err != nil {
			return fmt.Errorf("write %s: %w", dest, err)
		}
	}
	return nil
}

// Change points a pull request at one repository's patches.
type Change struct {
	Repository   string `yaml:"repository"`
	Diffs        string `yaml:"diffs"`
	OriginBranch string `yaml:"originBranch"`
	TargetBranch string `yaml:"targetBranch,omitempty"`
}

// PullRequest is the descriptor written to <bundle>/pull-request/<id>.yaml.
type PullRequest struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Changes     []Change `yaml:"changes"`
}

// Options describes the pull request raised for a resynthesis run.
type Options struct {
	// ID names the descriptor file. A random UUID is used when empty.
	ID           string
	Title        string
	Description  string
	OriginBranch string
	TargetBranch string
}

// Lifecycle writes the non-empty sets into bundle and a pull request
// descriptor covering them. Nothing is written when every set is empty, and
// the returned path is then "".
func Lifecycle(bundle string, sets []*Set, opts Options) (string, error) {
	pr := &PullRequest{Title: opts.Title, Description: opts.Description}
	for _, s := range sets {
		if s.Empty() {
			continue
		}
		if err := s.Write(bundle); err != nil {
			return "", err
		}
		pr.Changes = append(pr.Changes, Change{
			Repository:   s.Repository,
			Diffs:        s.Dir(),
			OriginBranch: opts.OriginBranch,
			TargetBranch: opts.TargetBranch,
		})
	}
	if len(pr.Changes) == 0 {
		return "", nil
	}

	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	return WritePullRequest(bundle, id, pr)
}

// WritePullRequest encodes pr as YAML under <bundle>/pull-request/<id>.yaml
// and returns the file path.
func WritePullRequest(bundle, id string, pr *PullRequest) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(pr); err != nil {
		return "", fmt.Errorf("encode pull request: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode pull request: %w", err)
	}

	dest := filepath.Join(bundle, PullRequestDir, id+".yaml")
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}
	if err := os.WriteFile(dest, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", dest, err)
	}
	return dest, nil
}

// ReadPullRequest decodes a descriptor written by WritePullRequest.
func ReadPullRequest(file string) (*PullRequest, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var pr PullRequest
	if err := yaml.Unmarshal(data, &pr); err != nil {
		return nil, fmt.Errorf("decode %s: %w", file, err)
	}
	return &pr, nil
}
