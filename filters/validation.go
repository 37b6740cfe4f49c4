// Package filters provides endpoint filters for the rawendpoints pipeline.
package filters

import (
	"reflect"

	"github.com/broady/rawendpoints"
	"github.com/broady/rawendpoints/validation"
)

// Validation returns a filter that validates the request payload of type T
// before the handler runs.
//
// The filter looks for the first invocation argument whose dynamic type is
// exactly T. If there is none, or v is a nil interface, the request passes
// through untouched. A typed nil such as (*validation.Struct[T])(nil) fails
// with validation.ErrNilValidator. Otherwise v runs with the invocation
// context, so the request's cancellation reaches the validator. If the payload is invalid the filter
// returns a validation problem keyed by field and the handler is not called.
// Errors returned by v itself are propagated unchanged.
//
//	e.MapPost("/users").AddEndpointFilter(filters.Validation(validation.NewStruct[*CreateUserRequest]()))
func Validation[T any](v validation.Validator[T]) rawendpoints.EndpointFilter {
	want := reflect.TypeFor[T]()
	return func(ic *rawendpoints.InvocationContext, next rawendpoints.EndpointFilterDelegate) (any, error) {
		if v == nil {
			return next(ic)
		}
		model, ok := findArgument[T](ic.Arguments(), want)
		if !ok {
			return next(ic)
		}
		res, err := v.Validate(ic, model)
		if err != nil {
			return nil, err
		}
		if !res.IsValid() {
			return rawendpoints.ValidationProblem(res.ToDictionary()), nil
		}
		return next(ic)
	}
}

// findArgument returns the first argument whose dynamic type is want.
// Interface-typed T never matches, since dynamic types are always concrete.
func findArgument[T any](args []any, want reflect.Type) (T, bool) {
	for _, arg := range args {
		if arg != nil && reflect.TypeOf(arg) == want {
			return arg.(T), true
		}
	}
	var zero T
	return zero, false
}
