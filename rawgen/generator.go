// Package rawgen generates the Map<Verb> helpers and the MapRawEndpoints
// aggregate for endpoint types.
//
// For each type T that embeds rawendpoints.Mount and declares Define, rawgen
// writes T_GeneratedMinimalApiMapMethods.go next to T with a TWithRouter
// factory and MapGet, MapPost, MapPut, MapPatch and MapDelete methods. It
// then writes WebApplicationExtensions.go in the aggregate package:
//
//	func MapRawEndpoints[R rawendpoints.Router](app R) R
//
// which creates and defines every endpoint. Usually invoked through go:generate:
//
//	//go:generate go run github.com/broady/rawendpoints/cmd/rawendpoints gen ./...
//
// or programmatically:
//
//	res, err := rawgen.FromPatterns("./...").AggregateDir("./cmd/server").ToDir(ctx, "")
package rawgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/broady/rawendpoints/internal/diag"
	"github.com/broady/rawendpoints/internal/scan"
	"github.com/broady/rawendpoints/rawgen/sink"
)

// Config holds the configuration for code generation.
type Config struct {
	// Dir is the directory patterns are resolved against.
	// Default: the current directory.
	Dir string

	// Patterns select the packages to scan, with go command semantics.
	// Default: ["./..."].
	Patterns []string

	// AggregateDir is the directory of the package that receives
	// WebApplicationExtensions.go, relative to Dir. Default: ".".
	AggregateDir string

	// Tags are build tags used when loading packages.
	Tags []string

	// SkipInvalid suppresses artifacts for endpoints whose Run method is
	// missing or has an unsupported signature. By default those endpoints are
	// reported as errors and still generated.
	SkipInvalid bool

	// Logger receives diagnostics as they are reported. Nil disables logging.
	Logger *slog.Logger

	// Observer replaces the default GEN001 reporting for inspected types.
	Observer scan.Observer
}

// applyConfigDefaults returns a copy of cfg with defaults filled in.
func applyConfigDefaults(cfg *Config) *Config {
	result := *cfg
	if result.Dir == "" {
		result.Dir = "."
	}
	if len(result.Patterns) == 0 {
		result.Patterns = []string{"./..."}
	}
	if result.AggregateDir == "" {
		result.AggregateDir = "."
	}
	return &result
}

// Result is the outcome of one generation run.
type Result struct {
	// Root is the module root directory. Artifact paths are relative to it.
	Root string

	// Artifacts holds one file per generated endpoint, followed by the aggregate.
	Artifacts []Artifact

	// Declarations are the discovered endpoints, ordered by fully qualified name.
	Declarations []*scan.Declaration

	// Diagnostics are all diagnostics reported during the run, in order.
	Diagnostics []diag.Diagnostic

	// Dirs are the source directories of the scanned packages.
	Dirs []string
}

// HasErrors reports whether any error diagnostic was reported.
func (r *Result) HasErrors() bool {
	return diag.HasErrors(r.Diagnostics)
}

// Aggregate returns the aggregate artifact, if one was generated.
func (r *Result) Aggregate() (Artifact, bool) {
	for _, a := range r.Artifacts {
		if a.Declaration == nil {
			return a, true
		}
	}
	return Artifact{}, false
}

// WriteTo writes every artifact to s, using paths relative to root.
// An empty root means r.Root.
func (r *Result) WriteTo(ctx context.Context, s sink.OutputSink, root string) error {
	if root == "" {
		root = r.Root
	}
	var errs []error
	for _, a := range r.Artifacts {
		rel, err := a.Rel(root)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.WriteFile(ctx, rel, a.Content); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", rel, err))
		}
	}
	return errors.Join(errs...)
}

// Generate scans the configured packages and builds all artifacts in memory.
// The returned error covers load and render failures; problems with
// individual endpoints are reported as diagnostics on the Result.
func Generate(ctx context.Context, cfg *Config) (*Result, error) {
	cfg = applyConfigDefaults(cfg)

	var collector diag.Collector
	var reporter diag.Reporter = &collector
	if cfg.Logger != nil {
		reporter = diag.ReporterFunc(func(d diag.Diagnostic) {
			collector.Report(d)
			diag.Log(ctx, cfg.Logger, d)
		})
	}

	pkgs, err := scan.Load(ctx, scan.Config{
		Dir:      cfg.Dir,
		Patterns: cfg.Patterns,
		Tags:     cfg.Tags,
	}, reporter)
	if err != nil {
		return nil, err
	}

	target, err := scan.LoadTarget(ctx, filepath.Join(cfg.Dir, cfg.AggregateDir), cfg.Tags)
	if err != nil {
		return nil, err
	}

	scanner := &scan.Scanner{Reporter: reporter, Observe: cfg.Observer}
	decls := scanner.Scan(pkgs)
	scan.SortByFullName(decls)

	res := &Result{
		Root: scan.ModuleRoot(pkgs),
		Dirs: scan.Dirs(pkgs),
	}
	if res.Root == "" {
		res.Root = target.Module
	}
	if res.Root == "" {
		if res.Root, err = filepath.Abs(cfg.Dir); err != nil {
			return nil, err
		}
	}

	for _, d := range decls {
		if cfg.SkipInvalid && !d.HasRun() {
			continue
		}
		res.Declarations = append(res.Declarations, d)
		a, err := Synthesize(d)
		if err != nil {
			return nil, err
		}
		res.Artifacts = append(res.Artifacts, a)
	}

	agg, err := Aggregate(res.Declarations, target, reporter)
	if err != nil {
		return nil, err
	}
	res.Artifacts = append(res.Artifacts, agg)
	res.Diagnostics = collector.Diagnostics()

	if cfg.Logger != nil {
		cfg.Logger.DebugContext(ctx, "generation finished",
			slog.Int("packages", len(pkgs)),
			slog.Int("endpoints", len(res.Declarations)),
			slog.Int("artifacts", len(res.Artifacts)),
		)
	}
	return res, nil
}

// Generator provides a fluent API for code generation.
//
//	rawgen.FromPatterns("./internal/...").
//	    AggregateDir("./cmd/server").
//	    ToDir(ctx, "")
type Generator struct {
	cfg Config
}

// FromPatterns creates a Generator scanning the given package patterns.
func FromPatterns(patterns ...string) *Generator {
	return &Generator{cfg: Config{Patterns: patterns}}
}

// Dir sets the directory patterns are resolved against.
func (g *Generator) Dir(dir string) *Generator {
	g.cfg.Dir = dir
	return g
}

// AggregateDir sets the package directory that receives the aggregate, relative to Dir.
func (g *Generator) AggregateDir(dir string) *Generator {
	g.cfg.AggregateDir = dir
	return g
}

// Tags sets build tags.
func (g *Generator) Tags(tags ...string) *Generator {
	g.cfg.Tags = tags
	return g
}

// SkipInvalid suppresses artifacts for endpoints without a usable Run method.
func (g *Generator) SkipInvalid() *Generator {
	g.cfg.SkipInvalid = true
	return g
}

// WithLogger logs diagnostics to logger as they are reported.
func (g *Generator) WithLogger(logger *slog.Logger) *Generator {
	g.cfg.Logger = logger
	return g
}

// WithObserver installs a hook called for every inspected type.
func (g *Generator) WithObserver(o scan.Observer) *Generator {
	g.cfg.Observer = o
	return g
}

// Config returns a copy of the accumulated configuration.
func (g *Generator) Config() Config {
	return g.cfg
}

// Generate builds all artifacts in memory without writing them.
func (g *Generator) Generate(ctx context.Context) (*Result, error) {
	return Generate(ctx, &g.cfg)
}

// ToDir generates and writes artifacts below root. An empty root writes
// each file in place, below the module root.
// Stale artifacts for endpoints that no longer exist are left alone.
func (g *Generator) ToDir(ctx context.Context, root string) (*Result, error) {
	res, err := g.Generate(ctx)
	if err != nil {
		return nil, err
	}
	if root == "" {
		root = res.Root
	}
	return res, res.WriteTo(ctx, sink.NewFilesystemSink(root), res.Root)
}

// ToSink generates and writes artifacts to s, with paths relative to the module root.
func (g *Generator) ToSink(ctx context.Context, s sink.OutputSink) (*Result, error) {
	res, err := g.Generate(ctx)
	if err != nil {
		return nil, err
	}
	return res, res.WriteTo(ctx, s, res.Root)
}
