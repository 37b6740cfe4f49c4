// Package gen implements the gen command.
package gen

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/broady/rawendpoints/internal/diag"
	"github.com/broady/rawendpoints/rawgen"
)

// ErrDiagnostics is returned when generation reported error diagnostics.
var ErrDiagnostics = errors.New("generation reported errors")

type Cmd struct {
	Patterns     []string      `arg:"" optional:"" default:"./..." help:"Package patterns to scan." env:"RAWENDPOINTS_PATTERNS"`
	Dir          string        `help:"Directory patterns are resolved against." short:"C" default:"." type:"existingdir"`
	AggregateDir string        `help:"Package directory that receives WebApplicationExtensions.go, relative to --dir." short:"a" default:"." name:"aggregate-dir" env:"RAWENDPOINTS_AGGREGATE_DIR"`
	Tags         []string      `help:"Build tags." sep:","`
	SkipInvalid  bool          `help:"Do not generate helpers for endpoints without a usable Run method." name:"skip-invalid" env:"RAWENDPOINTS_SKIP_INVALID"`
	Watch        bool          `help:"Watch for changes and regenerate." short:"w"`
	Debounce     time.Duration `help:"Quiet period before regenerating in watch mode." default:"250ms"`
}

// Generator returns the configured generator.
func (c *Cmd) Generator(logger *slog.Logger) *rawgen.Generator {
	g := rawgen.FromPatterns(c.Patterns...).
		Dir(c.Dir).
		AggregateDir(c.AggregateDir).
		Tags(c.Tags...).
		WithLogger(logger)
	if c.SkipInvalid {
		g = g.SkipInvalid()
	}
	return g
}

func (c *Cmd) Run(ctx context.Context, logger *slog.Logger) error {
	if c.Watch {
		return c.watch(ctx, logger)
	}
	_, err := c.runOnce(ctx, logger)
	return err
}

func (c *Cmd) runOnce(ctx context.Context, logger *slog.Logger) (*rawgen.Result, error) {
	start := time.Now()
	res, err := c.Generator(logger).ToDir(ctx, "")
	if err != nil {
		return res, err
	}
	logger.InfoContext(ctx, "generated",
		slog.Int("endpoints", len(res.Declarations)),
		slog.Int("files", len(res.Artifacts)),
		slog.Int("errors", countErrors(res)),
		slog.Duration("took", time.Since(start).Round(time.Millisecond)),
	)
	if res.HasErrors() {
		return res, ErrDiagnostics
	}
	return res, nil
}

func countErrors(res *rawgen.Result) int {
	n := 0
	for _, d := range res.Diagnostics {
		if d.Severity == diag.Error {
			n++
		}
	}
	return n
}
