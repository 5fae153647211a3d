// Package merge provides the closed set of named merge strategies used during
// resynthesis.
//
// A strategy is a pure function of the common ancestor, existing and proposed
// versions of one file. Any of the three may be nil. It returns the file that
// should be persisted, or nil to delete the path. Strategies never perform I/O
// and never see more than one path at a time.
package merge

import (
	"sort"

	"github.com/vango-dev/blueprint/pkg/repository"
)

// Func computes the resolved file from the three versions of a path.
type Func func(ancestor, existing, proposed *repository.File) *repository.File

// Strategy is a registered merge function.
type Strategy struct {
	Name string

	// Audited strategies have overrides of existing content logged.
	Audited bool

	Description string

	Func Func
}

// Resolve applies the strategy.
func (s Strategy) Resolve(ancestor, existing, proposed *repository.File) *repository.File {
	return s.Func(ancestor, existing, proposed)
}

// Strategy names.
const (
	UseProposed    = "useProposed"
	UseExisting    = "useExisting"
	NeverUpdate    = "neverUpdate"
	AlwaysUpdate   = "alwaysUpdate"
	OnlyAdd        = "onlyAdd"
	ThreeWayMerge  = "threeWayMerge"
	PreferProposed = "preferProposed"
	PreferExisting = "preferExisting"
)

var builtins = map[string]Strategy{
	UseProposed: {
		Name:        UseProposed,
		Description: "Always take the generated file.",
		Func:        useProposed,
	},
	UseExisting: {
		Name:        UseExisting,
		Description: "Keep the file on disk; take the generated file only if none exists.",
		Func:        useExisting,
	},
	NeverUpdate: {
		Name:        NeverUpdate,
		Description: "Keep the file on disk; take the generated file only if none exists.",
		Func:        useExisting,
	},
	AlwaysUpdate: {
		Name:        AlwaysUpdate,
		Audited:     true,
		Description: "Always take the generated file and log when it replaces different content.",
		Func:        useProposed,
	},
	OnlyAdd: {
		Name:        OnlyAdd,
		Description: "Add the generated file when missing; never change an existing one.",
		Func:        useExisting,
	},
	ThreeWayMerge: {
		Name:        ThreeWayMerge,
		Description: "Line merge of both sides against the last generated file; conflicts get markers.",
		Func:        threeWay(TrimEnds, preferProposedSide),
	},
	PreferProposed: {
		Name:        PreferProposed,
		Description: "Line merge; conflicting hunks take the generated side.",
		Func:        threeWay(PreferProposedFormatter, preferProposedSide),
	},
	PreferExisting: {
		Name:        PreferExisting,
		Description: "Line merge; conflicting hunks keep the side on disk.",
		Func:        threeWay(PreferExistingFormatter, preferExistingSide),
	},
}

// Lookup returns the strategy registered under name.
func Lookup(name string) (Strategy, bool) {
	s, ok := builtins[name]
	return s, ok
}

// Names returns every registered strategy name in lexical order.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func useProposed(_, _, proposed *repository.File) *repository.File {
	return proposed
}

func useExisting(_, existing, proposed *repository.File) *repository.File {
	if existing != nil {
		return existing
	}
	return proposed
}
