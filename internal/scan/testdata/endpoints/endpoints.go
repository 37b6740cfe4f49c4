// Package endpoints is scanned by the scan tests. It does not type-check
// until helpers are generated, which the scanner must tolerate.
package endpoints

import (
	"context"
	"net/http"

	"github.com/broady/rawendpoints"
)

type CreateThing struct {
	rawendpoints.Mount
}

type CreateThingRequest struct {
	Name string `json:"name"`
}

func (e *CreateThing) Define() {
	e.MapPost("/things")
}

func (e *CreateThing) Run(ctx context.Context, req *CreateThingRequest) (*CreateThingRequest, error) {
	return req, nil
}

type Health struct {
	rawendpoints.Mount
}

func (e *Health) Define() {
	e.MapGet("/health")
}

func (e *Health) Run(w http.ResponseWriter, r *http.Request) {}

type NoRun struct {
	rawendpoints.Mount
}

func (e *NoRun) Define() {}

type BadRun struct {
	rawendpoints.Mount
}

func (e *BadRun) Define() {}

func (e *BadRun) Run(n int) string { return "" }

type Plain struct {
	Name string
}

type Definer interface {
	Define()
}

type Box[T any] struct {
	rawendpoints.Mount
	V T
}

func (b *Box[T]) Define() {}

type hidden struct {
	rawendpoints.Mount
}

func (e *hidden) Define() {}

func (e *hidden) Run(ctx context.Context, _ struct{}) (struct{}, error) {
	return struct{}{}, nil
}

type NotMounted struct{}

func (NotMounted) Define() {}
