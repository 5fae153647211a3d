package ownership

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Package identifies the blueprint package running a resynthesis.
type Package struct {
	Name    string
	Version string
}

// String returns "name@version", or just the name when no version is known.
func (p Package) String() string {
	if p.Version == "" {
		return p.Name
	}
	return p.Name + "@" + p.Version
}

// OwnedBy returns the strategies whose owner pattern matches pkg, in order.
// Strategies without an owner are kept.
//
// An owner pattern is a package name glob optionally followed by
// "@<version glob>": "*", "@acme/*", "@acme/web@1.*.*", "*/*@1.*".
func (d Descriptor) OwnedBy(pkg Package) Descriptor {
	var out Descriptor
	for _, s := range d.Strategies {
		if s.Owner == "" || OwnerMatches(s.Owner, pkg) {
			out.Strategies = append(out.Strategies, cloneStrategy(s))
		}
	}
	return out
}

// OwnerMatches reports whether the owner pattern selects pkg.
func OwnerMatches(pattern string, pkg Package) bool {
	if pattern == "*" {
		return true
	}
	namePattern, versionPattern := pattern, ""
	if at := strings.LastIndex(pattern, "@"); at > 0 {
		namePattern, versionPattern = pattern[:at], pattern[at+1:]
	}
	if ok, err := doublestar.Match(namePattern, pkg.Name); err != nil || !ok {
		return false
	}
	if versionPattern == "" {
		return true
	}
	ok, err := doublestar.Match(versionPattern, pkg.Version)
	return err == nil && ok
}
