// Package diag defines the diagnostics reported while scanning and generating.
package diag

import (
	"context"
	"fmt"
	"go/token"
	"log/slog"
	"sync"
)

// Severity is the importance of a diagnostic.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Diagnostic codes.
const (
	CodeInspected       = "GEN001" // a type declaration was inspected
	CodeMissingRun      = "ME001"  // endpoint has no exported Run method
	CodeInvalidRun      = "ME002"  // Run has an unsupported signature
	CodeUnreachable     = "ME003"  // endpoint cannot be referenced from the aggregate package
	CodeGeneric         = "ME004"  // generic type looks like an endpoint but cannot be instantiated
	CodeTypeCheckFailed = "GEN002" // package has type errors; results may be incomplete
)

// Diagnostic is a message tied to an optional source position.
type Diagnostic struct {
	Severity Severity
	Code     string
	Message  string
	Pos      token.Position
}

// String formats d like compiler output: "file:line:col: error ME001: message".
func (d Diagnostic) String() string {
	if d.Pos.IsValid() {
		return fmt.Sprintf("%s: %s %s: %s", d.Pos, d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s %s: %s", d.Severity, d.Code, d.Message)
}

// Reporter receives diagnostics.
type Reporter interface {
	Report(Diagnostic)
}

// ReporterFunc adapts a function to a Reporter.
type ReporterFunc func(Diagnostic)

func (f ReporterFunc) Report(d Diagnostic) { f(d) }

// Collector records diagnostics in order. It is safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	diags []Diagnostic
}

func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diags = append(c.diags, d)
}

// Diagnostics returns a copy of the recorded diagnostics.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Diagnostic(nil), c.diags...)
}

// HasErrors reports whether any error diagnostic was recorded.
func (c *Collector) HasErrors() bool {
	return HasErrors(c.Diagnostics())
}

// HasErrors reports whether diags contains an error diagnostic.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Log writes d to logger at the level matching its severity.
// Info diagnostics are emitted once per inspected type and are logged at
// debug level.
func Log(ctx context.Context, logger *slog.Logger, d Diagnostic) {
	level := slog.LevelDebug
	switch d.Severity {
	case Warning:
		level = slog.LevelWarn
	case Error:
		level = slog.LevelError
	}
	attrs := []slog.Attr{slog.String("code", d.Code)}
	if d.Pos.IsValid() {
		attrs = append(attrs, slog.String("pos", d.Pos.String()))
	}
	logger.LogAttrs(ctx, level, d.Message, attrs...)
}
