// Package base provides an endpoint base type shared by other packages.
package base

import "github.com/broady/rawendpoints"

// Base is embedded by endpoints that never import rawendpoints themselves.
type Base struct {
	rawendpoints.Mount
	Prefix string
}
