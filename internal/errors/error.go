package errors

import (
	stderrors "errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig     Category = "config"
	CategoryOwnership  Category = "ownership"
	CategoryResolution Category = "resolution"
	CategoryMerge      Category = "merge"
	CategoryStorage    Category = "storage"
	CategoryTemplate   Category = "template"
	CategoryCLI        Category = "cli"
)

// Location points at a line inside a file, such as a malformed ownership file.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	if l.Line > 0 {
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return l.File
}

// BlueprintError is a structured error with a code, an optional location and a fix hint.
type BlueprintError struct {
	// Code is a unique error identifier (e.g., "E210").
	Code string

	// Category is the error type (config, ownership, ...).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of this occurrence.
	Detail string

	// Location is the file position the error refers to.
	Location *Location

	// Source is the text of Location.File, when the caller had it at hand.
	// Format prints the lines around Location.Line from it.
	Source string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *BlueprintError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Location != nil {
		msg = e.Location.String() + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *BlueprintError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is a BlueprintError with the same code.
func (e *BlueprintError) Is(target error) bool {
	t, ok := target.(*BlueprintError)
	if !ok || t.Code == "" {
		return false
	}
	return t.Code == e.Code
}

// WithLocation records the file position the error refers to.
func (e *BlueprintError) WithLocation(file string, line, column int) *BlueprintError {
	e.Location = &Location{File: file, Line: line, Column: column}
	return e
}

// WithSource keeps the text the location points into.
func (e *BlueprintError) WithSource(text string) *BlueprintError {
	e.Source = text
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *BlueprintError) WithSuggestion(s string) *BlueprintError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *BlueprintError) WithDetail(d string) *BlueprintError {
	e.Detail = d
	return e
}

// WithDetailf adds a formatted detail to the error.
func (e *BlueprintError) WithDetailf(format string, args ...any) *BlueprintError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// Wrap wraps another error.
func (e *BlueprintError) Wrap(err error) *BlueprintError {
	e.Wrapped = err
	return e
}

// New creates a BlueprintError from a registered error code.
func New(code string) *BlueprintError {
	template, ok := registry[code]
	if !ok {
		return &BlueprintError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &BlueprintError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new BlueprintError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *BlueprintError {
	return &BlueprintError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a BlueprintError.
func FromError(err error, code string) *BlueprintError {
	if err == nil {
		return nil
	}
	var be *BlueprintError
	if stderrors.As(err, &be) {
		return be
	}
	return New(code).Wrap(err)
}

// HasCode reports whether err, or any error it wraps, carries code.
func HasCode(err error, code string) bool {
	var be *BlueprintError
	for err != nil {
		if !stderrors.As(err, &be) {
			return false
		}
		if be.Code == code {
			return true
		}
		err = be.Wrapped
	}
	return false
}

// IsConfiguration reports whether err is an ownership ConfigurationError.
func IsConfiguration(err error) bool {
	return HasCode(err, CodeOwnerUnresolved)
}

// IsParse reports whether err is a ParseError for an ownership file or ancestor snapshot.
func IsParse(err error) bool {
	return HasCode(err, CodeOwnershipParse) || HasCode(err, CodeAncestorCorrupt)
}

// IsUnresolvedPath reports whether err is an UnresolvedPathError.
func IsUnresolvedPath(err error) bool {
	return HasCode(err, CodeUnresolvedPath)
}
