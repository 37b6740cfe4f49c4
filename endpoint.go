package rawendpoints

// Endpoint is the capability marker the generator scans for.
//
// It is sealed: a type satisfies it only by embedding [Mount], and by
// declaring Define, which registers the endpoint's routes. The generator
// additionally requires an exported Run method that serves the route.
type Endpoint interface {
	Define()
	mount() *Mount
}

// Mount holds the router an endpoint is bound to.
// Embed it in endpoint structs; the generated <Type>WithRouter factory binds it.
type Mount struct {
	router Router
}

func (m *Mount) mount() *Mount { return m }

// BindRouter binds the endpoint to r.
func (m *Mount) BindRouter(r Router) {
	m.router = r
}

// BoundRouter returns the router the endpoint is bound to.
// It panics if the endpoint was not created through its generated factory.
func (m *Mount) BoundRouter() Router {
	if m.router == nil {
		panic("rawendpoints: endpoint is not bound to a router; create it with the generated <Type>WithRouter factory")
	}
	return m.router
}

// IsBound reports whether the endpoint has a router.
func (m *Mount) IsBound() bool {
	return m.router != nil
}
