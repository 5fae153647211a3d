package repository

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/vango-dev/blueprint/internal/errors"
	"github.com/vango-dev/blueprint/pkg/ownership"
)

// SynthesisStep is a deferred side effect that runs once after the
// repository's files have been reconciled on disk.
type SynthesisStep func(ctx context.Context) error

// Repository is the proposed state of one generated repository.
type Repository struct {
	// Title is the sanitised repository name.
	Title string

	// RelativePath is the repository location relative to the output root ("src/<title>").
	RelativePath string

	// Path is the absolute repository location on disk.
	Path string

	files      Snapshot
	steps      []SynthesisStep
	strategies []ownership.Strategy
}

// New creates an empty repository named title under root.
func New(root, title string) (*Repository, error) {
	clean := ValidFolder(title)
	if clean == "" {
		return nil, errors.New(errors.CodeInvalidRepository).
			WithDetailf("title %q is empty after removing invalid characters", title)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve output root: %w", err)
	}
	rel := path.Join(SourceRoot, clean)
	return &Repository{
		Title:        clean,
		RelativePath: rel,
		Path:         filepath.Join(abs, filepath.FromSlash(rel)),
		files:        make(Snapshot),
	}, nil
}

// Track records content for p, replacing any earlier content.
func (r *Repository) Track(p string, content []byte) error {
	key, err := NormalizePath(p)
	if err != nil {
		return err
	}
	r.files[key] = NewFile(key, content)
	return nil
}

// Remove drops p from the proposed files. Removing an untracked path is a no-op.
func (r *Repository) Remove(p string) {
	key, err := NormalizePath(p)
	if err != nil {
		return
	}
	delete(r.files, key)
}

// Has reports whether p is tracked.
func (r *Repository) Has(p string) bool {
	key, err := NormalizePath(p)
	if err != nil {
		return false
	}
	_, ok := r.files[key]
	return ok
}

// Snapshot returns a copy of the proposed files.
func (r *Repository) Snapshot() Snapshot {
	return r.files.Clone()
}

// AddSynthesisStep queues step to run after reconciliation.
func (r *Repository) AddSynthesisStep(step SynthesisStep) {
	r.steps = append(r.steps, step)
}

// RunSynthesisSteps runs the queued steps in registration order and stops at
// the first failure. Each step runs at most once.
func (r *Repository) RunSynthesisSteps(ctx context.Context) error {
	steps := r.steps
	r.steps = nil
	for i, step := range steps {
		if err := step(ctx); err != nil {
			return errors.New(errors.CodeSynthesisStep).
				WithDetailf("step %d of %d in %s", i+1, len(steps), r.Title).
				Wrap(err)
		}
	}
	return nil
}

// AddStrategy registers s after every strategy registered so far, giving it
// precedence over them for overlapping globs.
func (r *Repository) AddStrategy(s ownership.Strategy) {
	r.strategies = append(r.strategies, s)
}

// SetStrategies replaces the registered strategies.
func (r *Repository) SetStrategies(strategies []ownership.Strategy) {
	r.strategies = append([]ownership.Strategy(nil), strategies...)
}

// Strategies returns the registered strategies in registration order.
func (r *Repository) Strategies() []ownership.Strategy {
	return append([]ownership.Strategy(nil), r.strategies...)
}
