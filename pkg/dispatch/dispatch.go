// Package dispatch resolves which ownership strategy governs a path.
//
// Strategies are consulted in reverse registration order: the most recently
// registered strategy with a glob matching the path wins. This lets a derived
// blueprint layer override the policy of the layers it builds on. A path that
// no strategy covers is an error; the dispatcher never falls back to a
// default on its own.
package dispatch

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/vango-dev/blueprint/internal/errors"
	"github.com/vango-dev/blueprint/pkg/ownership"
)

// Dispatcher matches paths against strategy globs.
type Dispatcher struct {
	dotfiles bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithDotfiles controls whether wildcards match path segments that begin
// with a dot. When disabled, a hidden segment only matches a pattern
// segment that itself starts with a dot. Enabled by default.
func WithDotfiles(enabled bool) Option {
	return func(d *Dispatcher) { d.dotfiles = enabled }
}

// New creates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{dotfiles: true}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Resolve returns the strategy governing p. The returned pointer refers to
// an element of strategies.
func (d *Dispatcher) Resolve(p string, strategies []ownership.Strategy) (*ownership.Strategy, error) {
	for i := len(strategies) - 1; i >= 0; i-- {
		s := &strategies[i]
		for _, glob := range s.Globs {
			ok, err := d.Match(glob, p)
			if err != nil {
				return nil, errors.New(errors.CodeInvalidGlob).
					WithDetailf("strategy %q: %q", s.Identifier, glob).
					Wrap(err)
			}
			if ok {
				return s, nil
			}
		}
	}
	return nil, errors.New(errors.CodeUnresolvedPath).
		WithDetail(p).
		WithSuggestion("Register a catch-all '**' strategy so every path has an owner")
}

// Match reports whether p matches glob under the dispatcher's dotfile rule.
func (d *Dispatcher) Match(glob, p string) (bool, error) {
	if !doublestar.ValidatePattern(glob) {
		return false, doublestar.ErrBadPattern
	}
	if d.dotfiles || !hasHiddenSegment(p) {
		return doublestar.Match(glob, p)
	}
	return matchSegments(splitPath(glob), splitPath(p)), nil
}

func splitPath(s string) []string {
	return strings.Split(s, "/")
}

func hasHiddenSegment(p string) bool {
	for _, seg := range splitPath(p) {
		if isHidden(seg) {
			return true
		}
	}
	return false
}

func isHidden(seg string) bool {
	return strings.HasPrefix(seg, ".") && seg != "." && seg != ".."
}

// explicitDot reports whether a pattern segment names a leading dot, either
// directly or as a brace alternative.
func explicitDot(seg string) bool {
	return strings.HasPrefix(seg, ".") || strings.Contains(seg, "{.") || strings.Contains(seg, ",.")
}

// matchSegments matches path segments one by one. "**" spans any number of
// visible segments. A hidden path segment requires a pattern segment that
// starts with a dot. Each segment pair is matched with doublestar.
func matchSegments(pattern, segs []string) bool {
	if len(pattern) == 0 {
		return len(segs) == 0
	}
	if pattern[0] == "**" {
		if matchSegments(pattern[1:], segs) {
			return true
		}
		if len(segs) == 0 || isHidden(segs[0]) {
			return false
		}
		return matchSegments(pattern, segs[1:])
	}
	if len(segs) == 0 {
		return false
	}
	if isHidden(segs[0]) && !explicitDot(pattern[0]) {
		return false
	}
	ok, err := doublestar.Match(pattern[0], segs[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], segs[1:])
}
