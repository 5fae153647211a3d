package resynth

import (
	"github.com/vango-dev/blueprint/internal/errors"
	"github.com/vango-dev/blueprint/pkg/dispatch"
	"github.com/vango-dev/blueprint/pkg/merge"
	"github.com/vango-dev/blueprint/pkg/ownership"
	"github.com/vango-dev/blueprint/pkg/repository"
)

// Outcome describes what resolving a path does to the file on disk.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeDeleted   Outcome = "deleted"
	// OutcomeAbsent means the path resolves to nothing and is not on disk.
	OutcomeAbsent Outcome = "absent"
)

// Changes reports whether the outcome touches the filesystem.
func (o Outcome) Changes() bool {
	return o == OutcomeCreated || o == OutcomeUpdated || o == OutcomeDeleted
}

// Resolution is the decision taken for one path.
type Resolution struct {
	Path string

	// Strategy is the identifier of the ownership strategy that matched.
	Strategy string

	// Merge is the merge strategy name that produced the result.
	Merge string

	Outcome Outcome

	// Overrode is set when an audited strategy replaced different existing content.
	Overrode bool

	Result *repository.File
}

// PlanInput is everything DispatchAndMerge needs.
type PlanInput struct {
	Ancestor repository.Snapshot
	Existing repository.Snapshot
	Proposed repository.Snapshot

	// Strategies in registration order; later entries take precedence.
	Strategies []ownership.Strategy

	// Fallback governs paths no strategy matches. When nil such paths fail
	// the plan.
	Fallback *ownership.Strategy

	// Dispatcher defaults to dispatch.New().
	Dispatcher *dispatch.Dispatcher
}

// Plan is the result of DispatchAndMerge: the final snapshot and the
// per-path decisions that produced it.
type Plan struct {
	Final       repository.Snapshot
	Resolutions []Resolution
}

// BuildPlan dispatches every path in the union of the three snapshots and
// applies the matched merge strategy. It performs no I/O. A path without a
// strategy and no fallback, or a strategy naming an unknown merge function,
// fails the whole plan.
func BuildPlan(in PlanInput) (*Plan, error) {
	d := in.Dispatcher
	if d == nil {
		d = dispatch.New()
	}
	plan := &Plan{Final: make(repository.Snapshot)}

	for _, p := range repository.Union(in.Ancestor, in.Existing, in.Proposed) {
		s, err := d.Resolve(p, in.Strategies)
		if err != nil {
			if in.Fallback == nil || !errors.IsUnresolvedPath(err) {
				return nil, err
			}
			s = in.Fallback
		}
		fn, ok := merge.Lookup(s.Strategy)
		if !ok {
			return nil, errors.New(errors.CodeUnknownStrategy).
				WithDetailf("strategy %q uses %q", s.Identifier, s.Strategy)
		}

		ancestor, existing, proposed := in.Ancestor.Get(p), in.Existing.Get(p), in.Proposed.Get(p)
		result := fn.Resolve(ancestor, existing, proposed)
		if result != nil {
			result = repository.NewFile(p, result.Content)
			plan.Final[p] = result
		}

		plan.Resolutions = append(plan.Resolutions, Resolution{
			Path:     p,
			Strategy: s.Identifier,
			Merge:    fn.Name,
			Outcome:  outcome(existing, result),
			Overrode: fn.Audited && existing != nil && !repository.SameContent(existing, result),
			Result:   result,
		})
	}
	return plan, nil
}

func outcome(existing, result *repository.File) Outcome {
	switch {
	case result == nil && existing == nil:
		return OutcomeAbsent
	case result == nil:
		return OutcomeDeleted
	case existing == nil:
		return OutcomeCreated
	case repository.SameContent(existing, result):
		return OutcomeUnchanged
	default:
		return OutcomeUpdated
	}
}

// Changed returns the resolutions that touch the filesystem.
func (p *Plan) Changed() []Resolution {
	var out []Resolution
	for _, r := range p.Resolutions {
		if r.Outcome.Changes() {
			out = append(out, r)
		}
	}
	return out
}

// Deleted returns the paths the plan removes from disk.
func (p *Plan) Deleted() []string {
	var out []string
	for _, r := range p.Resolutions {
		if r.Outcome == OutcomeDeleted {
			out = append(out, r.Path)
		}
	}
	return out
}

// Counts tallies resolutions by outcome.
func (p *Plan) Counts() map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, r := range p.Resolutions {
		counts[r.Outcome]++
	}
	return counts
}
