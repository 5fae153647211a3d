package merge

import (
	"bytes"

	"github.com/vango-dev/blueprint/pkg/repository"
)

const binarySniffLength = 8000

// IsBinary reports whether f looks binary: a NUL byte within its first 8000 bytes.
func IsBinary(f *repository.File) bool {
	if f == nil {
		return false
	}
	head := f.Content
	if len(head) > binarySniffLength {
		head = head[:binarySniffLength]
	}
	return bytes.IndexByte(head, 0) >= 0
}

type binarySide int

const (
	preferProposedSide binarySide = iota
	preferExistingSide
)

// mergeBinary takes whichever side changed relative to the ancestor. When both
// changed, prefer decides.
func mergeBinary(ancestor, existing, proposed *repository.File, prefer binarySide) *repository.File {
	existingUnchanged := repository.SameContent(ancestor, existing)
	proposedUnchanged := repository.SameContent(ancestor, proposed)

	switch {
	case existingUnchanged && proposedUnchanged:
		return ancestor
	case existingUnchanged:
		return proposed
	case proposedUnchanged:
		return existing
	case prefer == preferExistingSide:
		return existing
	default:
		return proposed
	}
}
