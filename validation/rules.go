package validation

import "context"

type rule[T any] struct {
	field   string
	check   func(T) bool
	message string
}

// Rules is an ordered rule set for values of type T.
//
//	var createUserRules = validation.NewRules[*CreateUserRequest]().
//	    RuleFor("Name", func(r *CreateUserRequest) bool { return r.Name != "" }, "Name is required").
//	    RuleFor("Age", func(r *CreateUserRequest) bool { return r.Age >= 0 }, "Age must not be negative")
//
// Every rule runs; a value can fail several rules for the same field.
type Rules[T any] struct {
	rules []rule[T]
}

// NewRules returns an empty rule set.
func NewRules[T any]() *Rules[T] {
	return &Rules[T]{}
}

// RuleFor adds a rule: when check returns false, message is recorded for field.
func (r *Rules[T]) RuleFor(field string, check func(T) bool, message string) *Rules[T] {
	r.rules = append(r.rules, rule[T]{field: field, check: check, message: message})
	return r
}

// Validate runs every rule in the order they were added.
// It stops early only if ctx is done.
func (r *Rules[T]) Validate(ctx context.Context, v T) (*Result, error) {
	if r == nil {
		return nil, ErrNilValidator
	}
	res := &Result{}
	for _, rl := range r.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !rl.check(v) {
			res.Add(rl.field, rl.message)
		}
	}
	return res, nil
}
