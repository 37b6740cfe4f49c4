// Package check implements the check command.
package check

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/broady/rawendpoints/rawgen"
)

type Cmd struct {
	Patterns     []string `arg:"" optional:"" default:"./..." help:"Package patterns to scan." env:"RAWENDPOINTS_PATTERNS"`
	Dir          string   `help:"Directory patterns are resolved against." short:"C" default:"." type:"existingdir"`
	AggregateDir string   `help:"Package directory that holds WebApplicationExtensions.go, relative to --dir." short:"a" default:"." name:"aggregate-dir" env:"RAWENDPOINTS_AGGREGATE_DIR"`
	Tags         []string `help:"Build tags." sep:","`
	SkipInvalid  bool     `help:"Ignore endpoints without a usable Run method when comparing files." name:"skip-invalid" env:"RAWENDPOINTS_SKIP_INVALID"`
}

func (c *Cmd) Run(ctx context.Context, logger *slog.Logger) error {
	g := rawgen.FromPatterns(c.Patterns...).
		Dir(c.Dir).
		AggregateDir(c.AggregateDir).
		Tags(c.Tags...).
		WithLogger(logger)
	if c.SkipInvalid {
		g = g.SkipInvalid()
	}
	res, err := g.Generate(ctx)
	if err != nil {
		return err
	}

	stale, err := Stale(res)
	if err != nil {
		return err
	}
	for _, p := range stale {
		logger.WarnContext(ctx, "generated file is out of date", "file", p)
	}
	logger.InfoContext(ctx, "checked",
		slog.Int("endpoints", len(res.Declarations)),
		slog.Int("stale", len(stale)),
	)

	var errs []error
	if res.HasErrors() {
		errs = append(errs, errors.New("endpoint declarations have errors"))
	}
	if len(stale) > 0 {
		errs = append(errs, fmt.Errorf("%d generated files are out of date; run rawendpoints gen", len(stale)))
	}
	return errors.Join(errs...)
}

// Stale returns the paths, relative to the module root, of artifacts whose
// file on disk is missing or differs from the generated content.
func Stale(res *rawgen.Result) ([]string, error) {
	var stale []string
	for _, a := range res.Artifacts {
		rel, err := a.Rel(res.Root)
		if err != nil {
			return nil, err
		}
		existing, err := os.ReadFile(filepath.Join(a.Dir, a.Name))
		if errors.Is(err, os.ErrNotExist) {
			stale = append(stale, rel)
			continue
		}
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(existing, a.Content) {
			stale = append(stale, rel)
		}
	}
	return stale, nil
}
