// Package errors provides structured, actionable error messages for blueprint.
//
// Every failure the resynthesis engine can report has a registered code that
// maps to a category, a short message and a longer explanation. Callers
// decorate the error with a detail line, a location inside a file and a hint:
//
//	err := errors.New(errors.CodeOwnershipParse).
//	    WithLocation("src/web/blueprint.ownership", 7, 0).
//	    WithDetail("strategy \"keep\" has no globs").
//	    WithSuggestion("List at least one glob under the strategy")
//
//	fmt.Println(err.Format())
//
// # Error Categories
//
//   - config: blueprint.json could not be loaded or is invalid
//   - ownership: an ownership file cannot be written or read
//   - resolution: a path matches no merge strategy
//   - merge: a merge strategy is unknown or failed
//   - storage: the ancestor snapshot store failed or is corrupted
//   - template: static assets could not be rendered
//   - cli: command line usage errors
//
// The three fatal conditions of a reconciliation pass have dedicated
// predicates: IsConfiguration, IsParse and IsUnresolvedPath.
package errors
