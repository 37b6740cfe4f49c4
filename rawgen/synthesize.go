package rawgen

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/token"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/broady/rawendpoints/internal/diag"
	"github.com/broady/rawendpoints/internal/scan"
	"golang.org/x/tools/imports"
)

const (
	// Header is the first line of every generated file.
	Header = "// Code generated by rawendpoints. DO NOT EDIT."

	// ArtifactSuffix is appended to the type name to form the per-endpoint file name.
	ArtifactSuffix = "_GeneratedMinimalApiMapMethods.go"

	// AggregateFile is the name of the aggregate file.
	AggregateFile = "WebApplicationExtensions.go"

	// AggregateFunc is the name of the generated aggregate function.
	AggregateFunc = "MapRawEndpoints"

	runtimePkg  = scan.MarkerPackage
	runtimeName = "rawendpoints"
)

// Verbs are the HTTP methods a helper is generated for, in output order.
var Verbs = []string{"Get", "Post", "Put", "Patch", "Delete"}

// Artifact is one generated Go file.
type Artifact struct {
	Dir     string // absolute directory the file belongs in
	Name    string // file name
	Content []byte

	// Declaration is the endpoint the file was generated for; nil for the aggregate.
	Declaration *scan.Declaration
}

// Rel returns the artifact path relative to root, slash-separated.
func (a Artifact) Rel(root string) (string, error) {
	rel, err := filepath.Rel(root, filepath.Join(a.Dir, a.Name))
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside %s", filepath.Join(a.Dir, a.Name), root)
	}
	return rel, nil
}

// Synthesize builds the helper file for one endpoint declaration: a
// <Name>WithRouter factory and one Map<Verb> method per verb, each forwarding
// the endpoint's Run method to the bound router.
func Synthesize(decl *scan.Declaration) (Artifact, error) {
	adapter := "Handle"
	if decl.Run == scan.RunHTTP {
		adapter = "HandlerFunc"
	}
	name := decl.Name

	decls := []docDecl{{
		doc: fmt.Sprintf("%sWithRouter returns a new %s bound to r.", name, name),
		decl: &ast.FuncDecl{
			Name: ast.NewIdent(name + "WithRouter"),
			Type: &ast.FuncType{
				Params:  fields(field("r", qual("Router"))),
				Results: fields(field("", star(ast.NewIdent(name)))),
			},
			Body: block(
				&ast.AssignStmt{
					Lhs: []ast.Expr{ast.NewIdent("e")},
					Tok: token.DEFINE,
					Rhs: []ast.Expr{call(ast.NewIdent("new"), ast.NewIdent(name))},
				},
				&ast.ExprStmt{X: call(sel(ast.NewIdent("e"), "BindRouter"), ast.NewIdent("r"))},
				&ast.ReturnStmt{Results: []ast.Expr{ast.NewIdent("e")}},
			),
		},
	}}

	for _, verb := range Verbs {
		method := "Map" + verb
		// e.BoundRouter().MapX(pattern, rawendpoints.Adapter(e.Run))
		target := sel(call(sel(ast.NewIdent("e"), "BoundRouter")), method)
		handler := call(qual(adapter), sel(ast.NewIdent("e"), "Run"))
		decls = append(decls, docDecl{
			doc: fmt.Sprintf("%s maps e.Run to %s requests matching pattern.", method, strings.ToUpper(verb)),
			decl: &ast.FuncDecl{
				Recv: fields(field("e", star(ast.NewIdent(name)))),
				Name: ast.NewIdent(method),
				Type: &ast.FuncType{
					Params:  fields(field("pattern", ast.NewIdent("string"))),
					Results: fields(field("", star(qual("RouteBuilder")))),
				},
				Body: block(&ast.ReturnStmt{
					Results: []ast.Expr{call(target, ast.NewIdent("pattern"), handler)},
				}),
			},
		})
	}

	file := name + ArtifactSuffix
	specs := []*ast.ImportSpec{importSpec("", runtimePkg)}
	content, err := render(file, decl.PkgName, specs, decls)
	if err != nil {
		return Artifact{}, fmt.Errorf("render %s: %w", decl.FullName(), err)
	}
	return Artifact{Dir: decl.Dir, Name: file, Content: content, Declaration: decl}, nil
}

// Aggregate builds the file declaring MapRawEndpoints in the target package.
// decls must already be ordered; one statement is emitted per reachable
// declaration. Declarations the target cannot reference are reported as
// ME003 errors and left out.
func Aggregate(decls []*scan.Declaration, target *scan.Target, reporter diag.Reporter) (Artifact, error) {
	var reachable []*scan.Declaration
	for _, d := range decls {
		if reason := unreachable(d, target); reason != "" {
			if reporter != nil {
				reporter.Report(diag.Diagnostic{
					Severity: diag.Error,
					Code:     diag.CodeUnreachable,
					Message:  fmt.Sprintf("%s cannot be mapped from package %s: %s", d.FullName(), target.PkgPath, reason),
					Pos:      d.Pos,
				})
			}
			continue
		}
		reachable = append(reachable, d)
	}

	aliases := assignAliases(reachable, target)

	var stmts []ast.Stmt
	for _, d := range reachable {
		var factory ast.Expr = ast.NewIdent(d.Name + "WithRouter")
		if d.PkgPath != target.PkgPath {
			factory = sel(ast.NewIdent(aliases[d.PkgPath]), d.Name+"WithRouter")
		}
		// <alias>.<Name>WithRouter(app).Define()
		stmts = append(stmts, &ast.ExprStmt{
			X: call(sel(call(factory, ast.NewIdent("app")), "Define")),
		})
	}
	stmts = append(stmts, &ast.ReturnStmt{Results: []ast.Expr{ast.NewIdent("app")}})

	fn := docDecl{
		doc: AggregateFunc + " binds every endpoint to app and calls its Define method.",
		decl: &ast.FuncDecl{
			Name: ast.NewIdent(AggregateFunc),
			Type: &ast.FuncType{
				TypeParams: fields(field("R", qual("Router"))),
				Params:     fields(field("app", ast.NewIdent("R"))),
				Results:    fields(field("", ast.NewIdent("R"))),
			},
			Body: block(stmts...),
		},
	}

	specs := []*ast.ImportSpec{importSpec("", runtimePkg)}
	paths := make([]string, 0, len(aliases))
	for p := range aliases {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	for _, p := range paths {
		alias := aliases[p]
		name := ""
		if alias != path.Base(p) || alias != pkgNameOf(reachable, p) {
			name = alias
		}
		specs = append(specs, importSpec(name, p))
	}

	content, err := render(AggregateFile, target.PkgName, specs, []docDecl{fn})
	if err != nil {
		return Artifact{}, fmt.Errorf("render aggregate: %w", err)
	}
	return Artifact{Dir: target.Dir, Name: AggregateFile, Content: content}, nil
}

// unreachable explains why target cannot refer to d, or returns "".
func unreachable(d *scan.Declaration, target *scan.Target) string {
	if d.PkgPath == target.PkgPath {
		return ""
	}
	switch {
	case d.PkgName == "main":
		return "package main cannot be imported"
	case !d.Exported():
		return "type is not exported"
	}
	if parent, ok := internalParent(d.PkgPath); ok {
		if target.PkgPath != parent && !strings.HasPrefix(target.PkgPath, parent+"/") {
			return "internal package is not importable"
		}
	}
	return ""
}

// internalParent returns the path that may import pkgPath when pkgPath has an
// internal element.
func internalParent(pkgPath string) (string, bool) {
	if pkgPath == "internal" || strings.HasPrefix(pkgPath, "internal/") {
		return "", true
	}
	if i := strings.LastIndex(pkgPath, "/internal/"); i >= 0 {
		return pkgPath[:i], true
	}
	if before, ok := strings.CutSuffix(pkgPath, "/internal"); ok {
		return before, true
	}
	return "", false
}

// reservedNames are identifiers visible inside the aggregate function body.
var reservedNames = map[string]bool{
	runtimeName:   true,
	"app":         true,
	"R":           true,
	AggregateFunc: true,
}

// assignAliases gives each imported package a unique identifier that does
// not collide with reservedNames or with the target's package-scope names.
// Paths are processed in sorted order so the result does not depend on input
// order.
func assignAliases(decls []*scan.Declaration, target *scan.Target) map[string]string {
	names := make(map[string]string)
	for _, d := range decls {
		if d.PkgPath != target.PkgPath {
			names[d.PkgPath] = d.PkgName
		}
	}
	paths := make([]string, 0, len(names))
	for p := range names {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	used := make(map[string]bool)
	aliases := make(map[string]string, len(paths))
	for _, p := range paths {
		base := sanitizeIdent(names[p])
		alias := base
		for n := 2; used[alias] || reservedNames[alias] || target.Names[alias] || token.IsKeyword(alias); n++ {
			alias = base + strconv.Itoa(n)
		}
		used[alias] = true
		aliases[p] = alias
	}
	return aliases
}

func pkgNameOf(decls []*scan.Declaration, pkgPath string) string {
	for _, d := range decls {
		if d.PkgPath == pkgPath {
			return d.PkgName
		}
	}
	return ""
}

func sanitizeIdent(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z'):
			b.WriteRune(r)
		case '0' <= r && r <= '9' && i > 0:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "pkg"
	}
	return b.String()
}

type docDecl struct {
	doc  string
	decl ast.Decl
}

// render prints the header, package clause, imports and declarations, then
// normalizes the result with gofmt and goimports ordering.
func render(filename, pkgName string, specs []*ast.ImportSpec, decls []docDecl) ([]byte, error) {
	fset := token.NewFileSet()
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\n\npackage %s\n\n", Header, pkgName)

	if len(specs) > 0 {
		gd := &ast.GenDecl{Tok: token.IMPORT}
		for _, s := range specs {
			gd.Specs = append(gd.Specs, s)
		}
		if err := format.Node(&buf, fset, gd); err != nil {
			return nil, err
		}
		buf.WriteString("\n\n")
	}

	for _, d := range decls {
		if d.doc != "" {
			fmt.Fprintf(&buf, "// %s\n", d.doc)
		}
		if err := format.Node(&buf, fset, d.decl); err != nil {
			return nil, err
		}
		buf.WriteString("\n\n")
	}

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, err
	}
	return imports.Process(filename, src, &imports.Options{
		FormatOnly: true,
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
	})
}

func qual(name string) *ast.SelectorExpr { return sel(ast.NewIdent(runtimeName), name) }

func sel(x ast.Expr, name string) *ast.SelectorExpr {
	return &ast.SelectorExpr{X: x, Sel: ast.NewIdent(name)}
}

func star(x ast.Expr) *ast.StarExpr { return &ast.StarExpr{X: x} }

func call(fn ast.Expr, args ...ast.Expr) *ast.CallExpr {
	return &ast.CallExpr{Fun: fn, Args: args}
}

func block(stmts ...ast.Stmt) *ast.BlockStmt { return &ast.BlockStmt{List: stmts} }

func field(name string, typ ast.Expr) *ast.Field {
	f := &ast.Field{Type: typ}
	if name != "" {
		f.Names = []*ast.Ident{ast.NewIdent(name)}
	}
	return f
}

func fields(fs ...*ast.Field) *ast.FieldList { return &ast.FieldList{List: fs} }

func importSpec(name, path string) *ast.ImportSpec {
	s := &ast.ImportSpec{Path: &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(path)}}
	if name != "" {
		s.Name = ast.NewIdent(name)
	}
	return s
}
