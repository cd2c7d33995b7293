// Package errors defines the typed error taxonomy for the projection and
// matching core. Errors carry a category, a specific code, optional context
// and a stack trace, so callers can branch on kind (conflict vs not-found)
// without string matching, and the CLI can map categories to exit codes.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Category groups errors by how the caller should react.
type Category string

const (
	// CategoryValidation covers malformed input: bad series patterns,
	// invalid exception combinations, out-of-range tolerances.
	CategoryValidation Category = "validation"

	// CategoryConflict covers state conflicts: accepting or manually
	// linking an instance or transaction that already has a
	// resolved-positive match. Reported to the caller, never retried
	// automatically.
	CategoryConflict Category = "conflict"

	// CategoryNotFound covers operations on unknown match, series or
	// transaction ids.
	CategoryNotFound Category = "not_found"

	// CategoryConfiguration covers invalid tolerance or logging
	// configuration.
	CategoryConfiguration Category = "configuration"

	// CategoryMatching covers failures inside a matching pass (including
	// cancellation of a batch scan).
	CategoryMatching Category = "matching"

	// CategoryInternal covers unexpected internal failures.
	CategoryInternal Category = "internal"
)

// Code identifies the specific error within a category.
type Code string

const (
	// Validation codes
	CodeInvalidPattern   Code = "invalid_pattern"
	CodeInvalidException Code = "invalid_exception"
	CodeInvalidArgument  Code = "invalid_argument"

	// Conflict codes
	CodeInstanceClaimed    Code = "instance_claimed"
	CodeTransactionClaimed Code = "transaction_claimed"
	CodeInvalidTransition  Code = "invalid_transition"

	// Not-found codes
	CodeMatchNotFound  Code = "match_not_found"
	CodeSeriesNotFound Code = "series_not_found"

	// Configuration codes
	CodeInvalidTolerances Code = "invalid_tolerances"
	CodeInvalidLogging    Code = "invalid_logging"

	// Matching codes
	CodeScanCanceled Code = "scan_canceled"
	CodeStoreFailure Code = "store_failure"

	// Internal codes
	CodeUnexpected Code = "unexpected_error"
)

// Error is the typed error for the reconciliation core.
type Error struct {
	Category   Category          `json:"category"`
	Code       Code              `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context carries structured detail about the error.
type Context map[string]interface{}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode maps the category to a CLI exit code.
func (e *Error) ExitCode() int {
	switch e.Category {
	case CategoryValidation:
		return 2
	case CategoryNotFound:
		return 3
	case CategoryConflict:
		return 4
	case CategoryConfiguration:
		return 5
	case CategoryMatching, CategoryInternal:
		return 6
	default:
		return 1
	}
}

// WithContext attaches one structured detail to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion attaches advice about how to resolve the error.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// New creates a typed error with a captured stack trace.
func New(category Category, code Code, message string) *Error {
	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap attaches taxonomy and a stack trace to an existing error. Returns
// nil when err is nil.
func Wrap(err error, category Category, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// ValidationError reports malformed input for a named field or object.
func ValidationError(code Code, what string, err error) *Error {
	msg := fmt.Sprintf("invalid %s", what)
	if err != nil {
		msg = fmt.Sprintf("invalid %s: %v", what, err)
	}
	result := New(CategoryValidation, code, msg)
	result.Cause = err
	return result.WithContext("subject", what)
}

// ConflictError reports a state conflict discovered during a lifecycle
// transition. Conflicts are surfaced to the caller, never silently
// overwritten.
func ConflictError(code Code, operation, detail string) *Error {
	return New(CategoryConflict, code,
		fmt.Sprintf("%s conflicts with existing state: %s", operation, detail)).
		WithSuggestion("reject or unlink the existing match first").
		WithContext("operation", operation)
}

// NotFoundError reports an operation on an unknown id.
func NotFoundError(code Code, kind, id string) *Error {
	return New(CategoryNotFound, code, fmt.Sprintf("%s not found: %s", kind, id)).
		WithContext("kind", kind).
		WithContext("id", id)
}

// ConfigurationError reports invalid configuration for a named setting.
func ConfigurationError(code Code, setting string, err error) *Error {
	msg := fmt.Sprintf("invalid configuration for '%s'", setting)
	if err != nil {
		msg = fmt.Sprintf("invalid configuration for '%s': %v", setting, err)
	}
	result := New(CategoryConfiguration, code, msg)
	result.Cause = err
	return result.
		WithSuggestion("check the configuration documentation for valid values").
		WithContext("setting", setting)
}

// MatchingError reports a failure inside a matching pass.
func MatchingError(code Code, operation string, err error) *Error {
	result := Wrap(err, CategoryMatching, code,
		fmt.Sprintf("matching failed during %s", operation))
	if result == nil {
		result = New(CategoryMatching, code, fmt.Sprintf("matching failed during %s", operation))
	}
	return result.WithContext("operation", operation)
}

// InternalError reports an unexpected failure.
func InternalError(operation string, err error) *Error {
	result := Wrap(err, CategoryInternal, CodeUnexpected,
		fmt.Sprintf("unexpected error during %s", operation))
	if result == nil {
		result = New(CategoryInternal, CodeUnexpected, fmt.Sprintf("unexpected error during %s", operation))
	}
	return result.WithSuggestion("this is likely a bug - please report it with the error details")
}

// As extracts a typed *Error from an error chain.
func As(err error) (*Error, bool) {
	var typed *Error
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

// IsConflict reports whether the error (or its chain) is a state conflict.
func IsConflict(err error) bool {
	typed, ok := As(err)
	return ok && typed.Category == CategoryConflict
}

// IsNotFound reports whether the error (or its chain) is a not-found error.
func IsNotFound(err error) bool {
	typed, ok := As(err)
	return ok && typed.Category == CategoryNotFound
}

// IsValidation reports whether the error (or its chain) is a validation
// error.
func IsValidation(err error) bool {
	typed, ok := As(err)
	return ok && typed.Category == CategoryValidation
}

// Summary aggregates errors from a batch operation.
type Summary struct {
	Total      int              `json:"total"`
	ByCategory map[Category]int `json:"by_category"`
	Errors     []*Error         `json:"errors"`
}

// NewSummary builds a summary from collected errors.
func NewSummary(errs []*Error) *Summary {
	summary := &Summary{
		Total:      len(errs),
		ByCategory: make(map[Category]int),
		Errors:     errs,
	}
	for _, e := range errs {
		summary.ByCategory[e.Category]++
	}
	return summary
}

// Error returns a formatted message covering the whole batch.
func (s *Summary) Error() string {
	if s.Total == 0 {
		return "no errors"
	}
	if s.Total == 1 {
		return s.Errors[0].Error()
	}
	var parts []string
	for category, count := range s.ByCategory {
		parts = append(parts, fmt.Sprintf("%s: %d", category, count))
	}
	return fmt.Sprintf("%d errors occurred (%s)", s.Total, strings.Join(parts, ", "))
}
