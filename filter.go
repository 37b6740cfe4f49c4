package rawendpoints

// EndpointFilterDelegate invokes the next stage of the filter pipeline,
// ending with the endpoint handler.
type EndpointFilterDelegate func(ic *InvocationContext) (any, error)

// EndpointFilter runs before (and around) an endpoint handler.
//
//	func timing(ic *rawendpoints.InvocationContext, next rawendpoints.EndpointFilterDelegate) (any, error) {
//	    start := time.Now()
//	    res, err := next(ic)
//	    log.Printf("%s took %v", ic.Route(), time.Since(start))
//	    return res, err
//	}
//
// A filter can:
//   - Inspect the arguments before calling next
//   - Short-circuit by returning a result or an error without calling next
//   - Inspect or replace the result after calling next
//
// A returned value implementing [Result] writes its own response.
type EndpointFilter func(ic *InvocationContext, next EndpointFilterDelegate) (any, error)

// chainFilters wraps final with filters.
// The first filter in the slice is the outer-most one (runs first).
func chainFilters(filters []EndpointFilter, final EndpointFilterDelegate) EndpointFilterDelegate {
	chain := final
	for i := len(filters) - 1; i >= 0; i-- {
		current := filters[i]
		next := chain
		chain = func(ic *InvocationContext) (any, error) {
			return current(ic, next)
		}
	}
	return chain
}
