package validation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Struct validates struct values using `validate` tags.
//
//	type CreateUserRequest struct {
//	    Name  string `json:"name" validate:"required,min=3"`
//	    Email string `json:"email" validate:"required,email"`
//	}
//
//	v := validation.NewStruct[*CreateUserRequest]()
//
// Failures are keyed by Go field name (dotted for nested fields) unless
// [WithJSONFieldNames] is used.
type Struct[T any] struct {
	validate *validator.Validate
}

// StructOption configures a Struct validator.
type StructOption func(*validator.Validate)

// WithJSONFieldNames reports fields by their json tag name instead of the Go field name.
func WithJSONFieldNames() StructOption {
	return func(v *validator.Validate) {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// WithValidation registers a custom validation tag.
func WithValidation(tag string, fn validator.Func) StructOption {
	return func(v *validator.Validate) {
		// RegisterValidation only fails for an empty tag or nil func.
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("validation: register %q: %v", tag, err))
		}
	}
}

// NewStruct returns a struct-tag validator for T.
func NewStruct[T any](opts ...StructOption) *Struct[T] {
	v := validator.New(validator.WithRequiredStructEnabled())
	for _, opt := range opts {
		opt(v)
	}
	return &Struct[T]{validate: v}
}


// Validate runs the tag rules against v.
// Values that are not structs (or pointers to structs) produce an error.
func (s *Struct[T]) Validate(ctx context.Context, v T) (*Result, error) {
	if s == nil || s.validate == nil {
		return nil, ErrNilValidator
	}
	err := s.validate.StructCtx(ctx, v)
	if err == nil {
		return &Result{}, nil
	}
	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return nil, err
	}
	res := &Result{}
	for _, fe := range valErrs {
		res.Add(FieldPath(fe), Message(fe))
	}
	return res, nil
}

// FieldPath returns the field's path without the root struct name,
// e.g. "Address.City".
func FieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

// Message returns a human-readable message for a field error,
// e.g. "Name is required".
func Message(fe validator.FieldError) string {
	return fe.Field() + " " + phrase(fe)
}

func phrase(fe validator.FieldError) string {
	unit := ""
	switch fe.Kind() {
	case reflect.String:
		unit = " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		unit = " items"
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s%s", fe.Param(), unit)
	case "max":
		return fmt.Sprintf("must be at most %s%s", fe.Param(), unit)
	case "len":
		return fmt.Sprintf("must be exactly %s%s", fe.Param(), unit)
	case "eq":
		return fmt.Sprintf("must equal %s", fe.Param())
	case "ne":
		return fmt.Sprintf("must not equal %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
