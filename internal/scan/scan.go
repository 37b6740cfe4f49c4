// Package scan finds endpoint types in Go packages.
//
// An endpoint type is a package-level named type T whose pointer *T
// implements rawendpoints.Endpoint (that is: it embeds rawendpoints.Mount and
// declares Define). No directives or annotations are needed; the method set
// is the marker.
//
// Scanning happens in two explicitly separate steps per declaration:
// observation (every resolved type declaration is reported to the Observer)
// and qualification (only marker implementers become Declarations).
package scan

import (
	"cmp"
	"context"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"path/filepath"
	"slices"
	"strings"

	"github.com/broady/rawendpoints/internal/diag"
	"golang.org/x/tools/go/packages"
)

const (
	// MarkerPackage is the import path declaring the endpoint marker.
	MarkerPackage = "github.com/broady/rawendpoints"
	// MarkerName is the name of the marker interface.
	MarkerName = "Endpoint"
)

// RunKind classifies an endpoint's Run method.
type RunKind int

const (
	RunMissing RunKind = iota // no exported Run method
	RunTyped                  // func(context.Context, Req) (Res, error)
	RunHTTP                   // func(http.ResponseWriter, *http.Request)
	RunInvalid                // Run exists with another signature
)

func (k RunKind) String() string {
	switch k {
	case RunMissing:
		return "missing"
	case RunTyped:
		return "typed"
	case RunHTTP:
		return "http"
	case RunInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Declaration is a discovered endpoint type.
type Declaration struct {
	PkgPath string         // import path of the declaring package
	PkgName string         // package name
	Dir     string         // directory of the file declaring the type
	Name    string         // type name
	Pos     token.Position // position of the type name
	Run     RunKind
}

// FullName returns the fully qualified type name, e.g. "example.com/app/users.CreateUser".
func (d *Declaration) FullName() string {
	return d.PkgPath + "." + d.Name
}

// HasRun reports whether Run exists with a supported signature.
func (d *Declaration) HasRun() bool {
	return d.Run == RunTyped || d.Run == RunHTTP
}

// Exported reports whether the type name is exported.
func (d *Declaration) Exported() bool {
	return token.IsExported(d.Name)
}

// Config configures package loading.
type Config struct {
	// Dir is the working directory for pattern resolution. Empty means the current directory.
	Dir string

	// Patterns follow go command semantics: ".", "./...", import paths or directories.
	// Default: ".".
	Patterns []string

	// Tags are build tags passed to the go command.
	Tags []string
}

const loadMode = packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
	packages.NeedTypes | packages.NeedTypesInfo | packages.NeedImports | packages.NeedModule

// Load loads the packages matching cfg.Patterns.
//
// Type errors are tolerated: before the first generation, endpoint code calls
// helpers (MapGet, ...) that do not exist yet. They are reported as GEN002
// info diagnostics. List and parse errors fail the load.
func Load(ctx context.Context, cfg Config, reporter diag.Reporter) ([]*packages.Package, error) {
	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = []string{"."}
	}

	pcfg := &packages.Config{
		Context: ctx,
		Mode:    loadMode,
		Dir:     cfg.Dir,
	}
	if len(cfg.Tags) > 0 {
		pcfg.BuildFlags = []string{"-tags=" + strings.Join(cfg.Tags, ",")}
	}

	pkgs, err := packages.Load(pcfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found matching %v", patterns)
	}

	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			if e.Kind != packages.TypeError {
				return nil, fmt.Errorf("package %s: %v", pkg.PkgPath, e)
			}
		}
		if len(pkg.Errors) > 0 && reporter != nil {
			reporter.Report(diag.Diagnostic{
				Severity: diag.Info,
				Code:     diag.CodeTypeCheckFailed,
				Message:  fmt.Sprintf("package %s has %d type errors, first: %s", pkg.PkgPath, len(pkg.Errors), pkg.Errors[0].Msg),
			})
		}
	}
	return pkgs, nil
}

// Observer is called for every package-level type declaration that resolves
// to a type name, whether or not it qualifies as an endpoint.
type Observer func(tn *types.TypeName, pos token.Position)

// Scanner finds endpoint declarations in loaded packages.
type Scanner struct {
	// Reporter receives diagnostics. It may be nil.
	Reporter diag.Reporter

	// Observe is the traversal hook. If nil, each inspected type is reported
	// as a GEN001 info diagnostic.
	Observe Observer
}

// Scan returns the endpoint declarations of pkgs in discovery order:
// package order as given, then file order, then declaration order.
func (s *Scanner) Scan(pkgs []*packages.Package) []*Declaration {
	var decls []*Declaration
	for _, pkg := range pkgs {
		if pkg.Types == nil || pkg.TypesInfo == nil {
			continue
		}
		marker := lookupMarker(pkg.Types)
		for _, file := range pkg.Syntax {
			for _, decl := range file.Decls {
				gd, ok := decl.(*ast.GenDecl)
				if !ok || gd.Tok != token.TYPE {
					continue
				}
				for _, spec := range gd.Specs {
					ts, ok := spec.(*ast.TypeSpec)
					if !ok {
						continue
					}
					tn, ok := pkg.TypesInfo.Defs[ts.Name].(*types.TypeName)
					if !ok || tn == nil {
						continue
					}
					pos := pkg.Fset.Position(ts.Name.Pos())
					s.observe(tn, pos)
					if d, ok := s.qualify(pkg, tn, marker, pos); ok {
						decls = append(decls, d)
					}
				}
			}
		}
	}
	return decls
}

func (s *Scanner) observe(tn *types.TypeName, pos token.Position) {
	if s.Observe != nil {
		s.Observe(tn, pos)
		return
	}
	s.report(diag.Diagnostic{
		Severity: diag.Info,
		Code:     diag.CodeInspected,
		Message:  fmt.Sprintf("inspected type %s", tn.Name()),
		Pos:      pos,
	})
}

// qualify decides whether tn is an endpoint. A qualifying type without a
// usable Run method is reported as an error but still returned.
func (s *Scanner) qualify(pkg *packages.Package, tn *types.TypeName, marker *types.Interface, pos token.Position) (*Declaration, bool) {
	if tn.IsAlias() {
		return nil, false
	}
	named, ok := tn.Type().(*types.Named)
	if !ok || types.IsInterface(named) {
		return nil, false
	}
	mount := findMount(named, make(map[*types.Named]bool))
	if marker == nil && mount != nil {
		// The package reaches Mount only through another package's type.
		marker = markerIn(mount.Obj().Pkg())
	}
	if marker == nil {
		return nil, false
	}
	if named.TypeParams().Len() > 0 {
		if mount != nil && hasMethod(named, "Define") {
			s.report(diag.Diagnostic{
				Severity: diag.Warning,
				Code:     diag.CodeGeneric,
				Message:  fmt.Sprintf("generic type %s cannot be an endpoint; declare a concrete type embedding it instead", tn.Name()),
				Pos:      pos,
			})
		}
		return nil, false
	}
	ptr := types.NewPointer(named)
	if !types.Implements(ptr, marker) {
		return nil, false
	}

	d := &Declaration{
		PkgPath: pkg.PkgPath,
		PkgName: pkg.Name,
		Dir:     filepath.Dir(pos.Filename),
		Name:    tn.Name(),
		Pos:     pos,
		Run:     classifyRun(ptr),
	}

	switch d.Run {
	case RunMissing:
		s.report(diag.Diagnostic{
			Severity: diag.Error,
			Code:     diag.CodeMissingRun,
			Message:  fmt.Sprintf("type %s should declare an exported method Run", d.Name),
			Pos:      pos,
		})
	case RunInvalid:
		s.report(diag.Diagnostic{
			Severity: diag.Error,
			Code:     diag.CodeInvalidRun,
			Message: fmt.Sprintf("method %s.Run must be func(context.Context, Req) (Res, error) or func(http.ResponseWriter, *http.Request)",
				d.Name),
			Pos: pos,
		})
	}
	return d, true
}

func (s *Scanner) report(d diag.Diagnostic) {
	if s.Reporter != nil {
		s.Reporter.Report(d)
	}
}

// lookupMarker returns the marker interface as seen from pkg, or nil if the
// marker package is not among pkg's transitive imports.
//
// Import lists of packages read from export data may be incomplete, so
// qualify falls back to the package of an embedded Mount.
func lookupMarker(pkg *types.Package) *types.Interface {
	seen := make(map[*types.Package]bool)
	var walk func(p *types.Package) *types.Package
	walk = func(p *types.Package) *types.Package {
		if p.Path() == MarkerPackage {
			return p
		}
		seen[p] = true
		for _, imp := range p.Imports() {
			if seen[imp] {
				continue
			}
			if found := walk(imp); found != nil {
				return found
			}
		}
		return nil
	}
	markerPkg := walk(pkg)
	if markerPkg == nil {
		return nil
	}
	return markerIn(markerPkg)
}

// markerIn returns the marker interface declared in pkg.
func markerIn(pkg *types.Package) *types.Interface {
	if pkg == nil || pkg.Path() != MarkerPackage {
		return nil
	}
	tn, ok := pkg.Scope().Lookup(MarkerName).(*types.TypeName)
	if !ok {
		return nil
	}
	iface, _ := tn.Type().Underlying().(*types.Interface)
	return iface
}

// findMount returns rawendpoints.Mount if t embeds it, directly or through
// other embedded structs.
func findMount(t *types.Named, seen map[*types.Named]bool) *types.Named {
	if seen[t] {
		return nil
	}
	seen[t] = true
	st, ok := t.Underlying().(*types.Struct)
	if !ok {
		return nil
	}
	for i := range st.NumFields() {
		f := st.Field(i)
		if !f.Embedded() {
			continue
		}
		ft := types.Unalias(f.Type())
		if p, ok := ft.(*types.Pointer); ok {
			ft = types.Unalias(p.Elem())
		}
		named, ok := ft.(*types.Named)
		if !ok {
			continue
		}
		if isNamed(named, MarkerPackage, "Mount") {
			return named
		}
		if m := findMount(named, seen); m != nil {
			return m
		}
	}
	return nil
}

// hasMethod reports whether *t has a method called name.
func hasMethod(t *types.Named, name string) bool {
	obj, _, _ := types.LookupFieldOrMethod(types.NewPointer(t), true, t.Obj().Pkg(), name)
	_, ok := obj.(*types.Func)
	return ok
}

// classifyRun inspects the Run method in the method set of ptr.
func classifyRun(ptr types.Type) RunKind {
	sel := types.NewMethodSet(ptr).Lookup(nil, "Run")
	if sel == nil {
		return RunMissing
	}
	fn, ok := sel.Obj().(*types.Func)
	if !ok {
		return RunInvalid
	}
	sig, ok := fn.Type().(*types.Signature)
	if !ok || sig.Variadic() {
		return RunInvalid
	}
	switch {
	case isTypedRun(sig):
		return RunTyped
	case isHTTPRun(sig):
		return RunHTTP
	default:
		return RunInvalid
	}
}

// isTypedRun matches func(context.Context, Req) (Res, error).
func isTypedRun(sig *types.Signature) bool {
	params, results := sig.Params(), sig.Results()
	if params.Len() != 2 || results.Len() != 2 {
		return false
	}
	if !isNamed(params.At(0).Type(), "context", "Context") {
		return false
	}
	return types.Identical(results.At(1).Type(), types.Universe.Lookup("error").Type())
}

// isHTTPRun matches func(http.ResponseWriter, *http.Request).
func isHTTPRun(sig *types.Signature) bool {
	params := sig.Params()
	if params.Len() != 2 || sig.Results().Len() != 0 {
		return false
	}
	if !isNamed(params.At(0).Type(), "net/http", "ResponseWriter") {
		return false
	}
	ptr, ok := types.Unalias(params.At(1).Type()).(*types.Pointer)
	return ok && isNamed(ptr.Elem(), "net/http", "Request")
}

func isNamed(t types.Type, pkgPath, name string) bool {
	named, ok := types.Unalias(t).(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj.Pkg() != nil && obj.Pkg().Path() == pkgPath && obj.Name() == name
}

// SortByFullName orders declarations by fully qualified name so that
// generated output does not depend on package load order.
func SortByFullName(decls []*Declaration) {
	slices.SortStableFunc(decls, func(a, b *Declaration) int {
		return cmp.Compare(a.FullName(), b.FullName())
	})
}

// Dirs returns the sorted, de-duplicated source directories of pkgs.
func Dirs(pkgs []*packages.Package) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, pkg := range pkgs {
		for _, f := range pkg.GoFiles {
			dir := filepath.Dir(f)
			if !seen[dir] {
				seen[dir] = true
				dirs = append(dirs, dir)
			}
		}
	}
	slices.Sort(dirs)
	return dirs
}

// Target is the package that receives the aggregate file.
type Target struct {
	PkgPath string
	PkgName string
	Dir     string // absolute directory
	Module  string // module root directory, if known

	// Names are the package-scope identifiers already declared in the
	// package. Import names in the aggregate must not shadow them.
	Names map[string]bool
}

// LoadTarget resolves the Go package in dir. The directory must already
// contain at least one Go file so that the package name is known.
func LoadTarget(ctx context.Context, dir string, tags []string) (*Target, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	pcfg := &packages.Config{
		Context: ctx,
		Mode:    packages.NeedName | packages.NeedFiles | packages.NeedModule | packages.NeedTypes,
		Dir:     abs,
	}
	if len(tags) > 0 {
		pcfg.BuildFlags = []string{"-tags=" + strings.Join(tags, ",")}
	}
	pkgs, err := packages.Load(pcfg, ".")
	if err != nil {
		return nil, fmt.Errorf("load aggregate package: %w", err)
	}
	if len(pkgs) != 1 {
		return nil, fmt.Errorf("aggregate directory %s: expected one package, found %d", dir, len(pkgs))
	}
	pkg := pkgs[0]
	if len(pkg.Errors) > 0 && pkg.Name == "" {
		return nil, fmt.Errorf("aggregate directory %s: %v", dir, pkg.Errors[0])
	}
	t := &Target{PkgPath: pkg.PkgPath, PkgName: pkg.Name, Dir: abs, Names: make(map[string]bool)}
	if pkg.Module != nil {
		t.Module = pkg.Module.Dir
	}
	if pkg.Types != nil {
		for _, name := range pkg.Types.Scope().Names() {
			t.Names[name] = true
		}
	}
	return t, nil
}

// ModuleRoot returns the module directory of the first package that has one.
func ModuleRoot(pkgs []*packages.Package) string {
	for _, pkg := range pkgs {
		if pkg.Module != nil && pkg.Module.Dir != "" {
			return pkg.Module.Dir
		}
	}
	return ""
}
