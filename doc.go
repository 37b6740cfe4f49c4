// Package rawendpoints is a small HTTP routing runtime whose route
// registration boilerplate is generated at build time.
//
// An endpoint is a struct that embeds [Mount] and declares a Define method
// plus a Run method:
//
//	type CreateUser struct {
//	    rawendpoints.Mount
//	    Store *Store
//	}
//
//	func (e *CreateUser) Define() {
//	    e.MapPost("/users").AddEndpointFilter(filters.Validation(createUserRules))
//	}
//
//	func (e *CreateUser) Run(ctx context.Context, req *CreateUserRequest) (*User, error) {
//	    return e.Store.Create(ctx, req)
//	}
//
// Running the rawendpoints generator (usually via go:generate) writes the
// MapGet, MapPost, MapPut, MapPatch and MapDelete helpers plus a
// CreateUserWithRouter factory next to the type, and a single
// MapRawEndpoints function that binds and defines every endpoint:
//
//	app := MapRawEndpoints(rawendpoints.NewApp())
//	http.ListenAndServe(":8080", app.Handler())
//
// Run may be a typed handler, func(context.Context, Req) (Res, error), or a
// plain func(http.ResponseWriter, *http.Request).
package rawendpoints
