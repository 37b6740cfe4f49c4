// Package validation defines payload validators and their outcomes.
//
// A [Validator] is bound to one payload type. Three implementations are
// provided: [Struct] for go-playground/validator struct tags, [Rules] for
// hand-written rule sets, and [Func] for adapting a plain function.
package validation

import (
	"context"
	"errors"
)

// Validator validates values of type T.
//
// A non-nil error means the validator itself failed (as opposed to v being
// invalid) and is propagated to the caller's error handling.
type Validator[T any] interface {
	Validate(ctx context.Context, v T) (*Result, error)
}

// Func adapts a function to a Validator.
type Func[T any] func(ctx context.Context, v T) (*Result, error)

// ErrNilValidator is returned by validators that were never set up: a nil
// *Struct or *Rules, a Struct not created with NewStruct, or a nil Func.
var ErrNilValidator = errors.New("validation: nil or uninitialized validator")

// Validate calls f(ctx, v).
func (f Func[T]) Validate(ctx context.Context, v T) (*Result, error) {
	if f == nil {
		return nil, ErrNilValidator
	}
	return f(ctx, v)
}

// Failure is a single rule violation.
type Failure struct {
	Field   string
	Message string
}

// Result is the outcome of validating one value.
// The zero value and nil are both valid (no failures).
type Result struct {
	failures []Failure
}

// Add records a failure for field.
func (r *Result) Add(field, message string) *Result {
	r.failures = append(r.failures, Failure{Field: field, Message: message})
	return r
}

// IsValid reports whether no failures were recorded.
func (r *Result) IsValid() bool {
	return r == nil || len(r.failures) == 0
}

// Failures returns the failures in the order they were recorded.
func (r *Result) Failures() []Failure {
	if r == nil {
		return nil
	}
	return r.failures
}

// ToDictionary groups failure messages by field.
// Messages for a field keep the order in which they were recorded.
func (r *Result) ToDictionary() map[string][]string {
	if r.IsValid() {
		return map[string][]string{}
	}
	dict := make(map[string][]string)
	for _, f := range r.failures {
		dict[f.Field] = append(dict[f.Field], f.Message)
	}
	return dict
}
