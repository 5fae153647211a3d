package merge

import (
	"github.com/vango-dev/blueprint/pkg/repository"
)

// threeWay builds a diff3-based strategy. Binary inputs fall back to
// whole-file selection.
func threeWay(format ConflictFormatter, prefer binarySide) Func {
	return func(ancestor, existing, proposed *repository.File) *repository.File {
		if IsBinary(proposed) || IsBinary(existing) || IsBinary(ancestor) {
			return mergeBinary(ancestor, existing, proposed, prefer)
		}

		// One side deleted the file and the other left it as generated.
		if existing == nil && proposed != nil && ancestor != nil && repository.SameContent(proposed, ancestor) {
			return nil
		}
		if proposed == nil && existing != nil && ancestor != nil && repository.SameContent(existing, ancestor) {
			return nil
		}
		if existing == nil && proposed == nil {
			return nil
		}

		merged := Diff3(text(existing), text(ancestor), text(proposed), Options{
			ExistingLabel: "existing",
			ProposedLabel: "proposed",
			Formatter:     format,
		})
		return repository.NewFile(pathOf(existing, proposed, ancestor), []byte(merged))
	}
}

func text(f *repository.File) string {
	if f == nil {
		return ""
	}
	return string(f.Content)
}

func pathOf(files ...*repository.File) string {
	for _, f := range files {
		if f != nil {
			return f.Path
		}
	}
	return ""
}
