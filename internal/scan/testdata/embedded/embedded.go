// Package embedded declares endpoints that reach rawendpoints.Mount only
// through base.Base.
package embedded

import (
	"context"

	"github.com/broady/rawendpoints/internal/scan/testdata/embedded/base"
)

type Indirect struct {
	base.Base
}

func (e *Indirect) Define() {}

func (e *Indirect) Run(ctx context.Context, _ struct{}) (string, error) {
	return "indirect", nil
}

type IndirectPointer struct {
	*base.Base
}

func (e *IndirectPointer) Define() {}

type NoDefine struct {
	base.Base
}
