package rawgen

import (
	"bytes"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/broady/rawendpoints/internal/diag"
	"github.com/broady/rawendpoints/internal/scan"
)

func decl(pkgPath, pkgName, name string, run scan.RunKind) *scan.Declaration {
	return &scan.Declaration{
		PkgPath: pkgPath,
		PkgName: pkgName,
		Dir:     "/src/" + pkgPath,
		Name:    name,
		Run:     run,
		Pos:     token.Position{Filename: "/src/" + pkgPath + "/" + strings.ToLower(name) + ".go", Line: 1, Column: 6},
	}
}

func parseArtifact(t *testing.T, a Artifact) *ast.File {
	t.Helper()
	f, err := parser.ParseFile(token.NewFileSet(), a.Name, a.Content, parser.ParseComments)
	if err != nil {
		t.Fatalf("generated %s does not parse: %v\n%s", a.Name, err, a.Content)
	}
	return f
}

// funcNames returns top-level function names, with methods as "Recv.Name".
func funcNames(f *ast.File) []string {
	var names []string
	for _, d := range f.Decls {
		fn, ok := d.(*ast.FuncDecl)
		if !ok {
			continue
		}
		name := fn.Name.Name
		if fn.Recv != nil {
			star := fn.Recv.List[0].Type.(*ast.StarExpr)
			name = star.X.(*ast.Ident).Name + "." + name
		}
		names = append(names, name)
	}
	return names
}

func TestSynthesize(t *testing.T) {
	d := decl("example.com/app/users", "users", "CreateUser", scan.RunTyped)
	a, err := Synthesize(d)
	if err != nil {
		t.Fatal(err)
	}

	if a.Name != "CreateUser_GeneratedMinimalApiMapMethods.go" {
		t.Errorf("Name = %q", a.Name)
	}
	if a.Dir != d.Dir {
		t.Errorf("Dir = %q, want %q", a.Dir, d.Dir)
	}
	if a.Declaration != d {
		t.Error("Declaration not set")
	}
	if !bytes.HasPrefix(a.Content, []byte(Header+"\n")) {
		t.Errorf("missing header:\n%s", a.Content)
	}

	f := parseArtifact(t, a)
	if f.Name.Name != "users" {
		t.Errorf("package = %q, want users", f.Name.Name)
	}
	if len(f.Imports) != 1 || f.Imports[0].Path.Value != `"github.com/broady/rawendpoints"` {
		t.Errorf("imports = %v", f.Imports)
	}

	want := []string{
		"CreateUserWithRouter",
		"CreateUser.MapGet",
		"CreateUser.MapPost",
		"CreateUser.MapPut",
		"CreateUser.MapPatch",
		"CreateUser.MapDelete",
	}
	got := funcNames(f)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("functions = %v, want %v", got, want)
	}

	for _, snippet := range []string{
		"func CreateUserWithRouter(r rawendpoints.Router) *CreateUser {\n\te := new(CreateUser)\n\te.BindRouter(r)\n\treturn e\n}",
		"func (e *CreateUser) MapPost(pattern string) *rawendpoints.RouteBuilder {\n\treturn e.BoundRouter().MapPost(pattern, rawendpoints.Handle(e.Run))\n}",
		"func (e *CreateUser) MapDelete(pattern string) *rawendpoints.RouteBuilder {\n\treturn e.BoundRouter().MapDelete(pattern, rawendpoints.Handle(e.Run))\n}",
	} {
		if !bytes.Contains(a.Content, []byte(snippet)) {
			t.Errorf("missing:\n%s\n\nin:\n%s", snippet, a.Content)
		}
	}
}

func TestSynthesizeAdapter(t *testing.T) {
	tests := []struct {
		run  scan.RunKind
		want string
	}{
		{scan.RunTyped, "rawendpoints.Handle(e.Run)"},
		{scan.RunHTTP, "rawendpoints.HandlerFunc(e.Run)"},
		{scan.RunMissing, "rawendpoints.Handle(e.Run)"},
		{scan.RunInvalid, "rawendpoints.Handle(e.Run)"},
	}
	for _, tt := range tests {
		t.Run(tt.run.String(), func(t *testing.T) {
			a, err := Synthesize(decl("example.com/app", "app", "Ping", tt.run))
			if err != nil {
				t.Fatal(err)
			}
			parseArtifact(t, a)
			if n := bytes.Count(a.Content, []byte(tt.want)); n != len(Verbs) {
				t.Errorf("%q appears %d times, want %d", tt.want, n, len(Verbs))
			}
		})
	}
}

func TestSynthesizeIsDeterministic(t *testing.T) {
	d := decl("example.com/app/users", "users", "GetUser", scan.RunTyped)
	first, err := Synthesize(d)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Synthesize(d)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first.Content, second.Content) {
		t.Errorf("outputs differ:\n%s\n---\n%s", first.Content, second.Content)
	}
}

func TestAggregate(t *testing.T) {
	target := &scan.Target{PkgPath: "example.com/app/cmd/server", PkgName: "main", Dir: "/src/example.com/app/cmd/server"}
	decls := []*scan.Declaration{
		decl("example.com/app/orders", "orders", "CreateOrder", scan.RunTyped),
		decl("example.com/app/users", "users", "CreateUser", scan.RunTyped),
		decl("example.com/app/users", "users", "GetUser", scan.RunTyped),
		decl("example.com/app/cmd/server", "main", "Health", scan.RunHTTP),
	}

	var c diag.Collector
	a, err := Aggregate(decls, target, &c)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Diagnostics()) != 0 {
		t.Errorf("unexpected diagnostics: %v", c.Diagnostics())
	}
	if a.Name != AggregateFile || a.Dir != target.Dir || a.Declaration != nil {
		t.Errorf("artifact = %s/%s decl=%v", a.Dir, a.Name, a.Declaration)
	}

	f := parseArtifact(t, a)
	if f.Name.Name != "main" {
		t.Errorf("package = %q", f.Name.Name)
	}

	body := string(a.Content)
	want := "func MapRawEndpoints[R rawendpoints.Router](app R) R {\n" +
		"\torders.CreateOrderWithRouter(app).Define()\n" +
		"\tusers.CreateUserWithRouter(app).Define()\n" +
		"\tusers.GetUserWithRouter(app).Define()\n" +
		"\tHealthWithRouter(app).Define()\n" +
		"\treturn app\n}"
	if !strings.Contains(body, want) {
		t.Errorf("aggregate body mismatch, want:\n%s\n\ngot:\n%s", want, body)
	}

	var paths []string
	for _, imp := range f.Imports {
		if imp.Name != nil {
			t.Errorf("unexpected import name %s for %s", imp.Name.Name, imp.Path.Value)
		}
		paths = append(paths, imp.Path.Value)
	}
	wantPaths := `"example.com/app/orders","example.com/app/users","github.com/broady/rawendpoints"`
	if strings.Join(paths, ",") != wantPaths {
		t.Errorf("imports = %v", paths)
	}
}

func TestAggregateEmpty(t *testing.T) {
	target := &scan.Target{PkgPath: "example.com/app", PkgName: "app", Dir: "/src/app"}
	a, err := Aggregate(nil, target, nil)
	if err != nil {
		t.Fatal(err)
	}
	parseArtifact(t, a)
	want := "func MapRawEndpoints[R rawendpoints.Router](app R) R {\n\treturn app\n}"
	if !bytes.Contains(a.Content, []byte(want)) {
		t.Errorf("got:\n%s", a.Content)
	}
}

func TestAggregateAliases(t *testing.T) {
	target := &scan.Target{PkgPath: "example.com/app/cmd/server", PkgName: "main", Dir: "/src/server"}
	decls := []*scan.Declaration{
		decl("example.com/app/v1/users", "users", "List", scan.RunTyped),
		decl("example.com/app/v2/users", "users", "List", scan.RunTyped),
		decl("example.com/app/app", "app", "Ping", scan.RunTyped),
		decl("example.com/app/go-things", "things", "Get", scan.RunTyped),
	}
	a, err := Aggregate(decls, target, nil)
	if err != nil {
		t.Fatal(err)
	}
	f := parseArtifact(t, a)

	names := make(map[string]string)
	for _, imp := range f.Imports {
		n := ""
		if imp.Name != nil {
			n = imp.Name.Name
		}
		names[strings.Trim(imp.Path.Value, `"`)] = n
	}

	tests := []struct {
		path string
		name string
	}{
		{"example.com/app/app", "app2"},
		{"example.com/app/go-things", "things"},
		{"example.com/app/v1/users", ""},
		{"example.com/app/v2/users", "users2"},
	}
	for _, tt := range tests {
		if got, ok := names[tt.path]; !ok || got != tt.name {
			t.Errorf("import %s: name = %q (present=%v), want %q", tt.path, got, ok, tt.name)
		}
	}

	for _, call := range []string{
		"app2.PingWithRouter(app).Define()",
		"things.GetWithRouter(app).Define()",
		"users.ListWithRouter(app).Define()",
		"users2.ListWithRouter(app).Define()",
	} {
		if !bytes.Contains(a.Content, []byte(call)) {
			t.Errorf("missing %s in:\n%s", call, a.Content)
		}
	}
}

func TestAggregateAvoidsTargetNames(t *testing.T) {
	target := &scan.Target{
		PkgPath: "example.com/app/cmd/server",
		PkgName: "main",
		Dir:     "/src/server",
		Names:   map[string]bool{"users": true, "users2": true, "main": true},
	}
	decls := []*scan.Declaration{
		decl("example.com/app/users", "users", "List", scan.RunTyped),
		decl("example.com/app/orders", "orders", "List", scan.RunTyped),
	}
	a, err := Aggregate(decls, target, nil)
	if err != nil {
		t.Fatal(err)
	}
	f := parseArtifact(t, a)

	names := make(map[string]string)
	for _, imp := range f.Imports {
		if imp.Name != nil {
			names[strings.Trim(imp.Path.Value, `"`)] = imp.Name.Name
		}
	}
	if got := names["example.com/app/users"]; got != "users3" {
		t.Errorf("users import name = %q, want users3", got)
	}
	if _, ok := names["example.com/app/orders"]; ok {
		t.Errorf("orders import should keep its default name: %v", names)
	}
	if !bytes.Contains(a.Content, []byte("users3.ListWithRouter(app).Define()")) {
		t.Errorf("aggregate does not use the alias:\n%s", a.Content)
	}
}

func TestAggregateUnreachable(t *testing.T) {
	target := &scan.Target{PkgPath: "example.com/app/cmd/server", PkgName: "main", Dir: "/src/server"}
	tests := []struct {
		name   string
		decl   *scan.Declaration
		reason string
	}{
		{"other main package", decl("example.com/app/cmd/tool", "main", "Ping", scan.RunTyped), "package main"},
		{"unexported type", decl("example.com/app/users", "users", "ping", scan.RunTyped), "not exported"},
		{"foreign internal package", decl("example.com/other/internal/x", "x", "Ping", scan.RunTyped), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c diag.Collector
			a, err := Aggregate([]*scan.Declaration{tt.decl}, target, &c)
			if err != nil {
				t.Fatal(err)
			}
			diags := c.Diagnostics()
			if len(diags) != 1 {
				t.Fatalf("got %d diagnostics, want 1: %v", len(diags), diags)
			}
			if diags[0].Code != diag.CodeUnreachable || diags[0].Severity != diag.Error {
				t.Errorf("diagnostic = %v", diags[0])
			}
			if !strings.Contains(diags[0].Message, tt.reason) {
				t.Errorf("message %q does not contain %q", diags[0].Message, tt.reason)
			}
			if bytes.Contains(a.Content, []byte("PingWithRouter")) || bytes.Contains(a.Content, []byte("pingWithRouter")) {
				t.Errorf("unreachable endpoint was aggregated:\n%s", a.Content)
			}
		})
	}

	t.Run("own internal package", func(t *testing.T) {
		var c diag.Collector
		d := decl("example.com/app/internal/users", "users", "Get", scan.RunTyped)
		a, err := Aggregate([]*scan.Declaration{d}, target, &c)
		if err != nil {
			t.Fatal(err)
		}
		if len(c.Diagnostics()) != 0 {
			t.Errorf("unexpected diagnostics: %v", c.Diagnostics())
		}
		if !bytes.Contains(a.Content, []byte("users.GetWithRouter(app).Define()")) {
			t.Errorf("missing call in:\n%s", a.Content)
		}
	})

	t.Run("unexported in same package", func(t *testing.T) {
		var c diag.Collector
		d := decl(target.PkgPath, "main", "health", scan.RunHTTP)
		a, err := Aggregate([]*scan.Declaration{d}, target, &c)
		if err != nil {
			t.Fatal(err)
		}
		if len(c.Diagnostics()) != 0 {
			t.Errorf("unexpected diagnostics: %v", c.Diagnostics())
		}
		if !bytes.Contains(a.Content, []byte("\thealthWithRouter(app).Define()")) {
			t.Errorf("missing call in:\n%s", a.Content)
		}
	})
}

func TestArtifactRel(t *testing.T) {
	tests := []struct {
		dir, root string
		want      string
		wantErr   bool
	}{
		{dir: "/m/users", root: "/m", want: "users/" + AggregateFile},
		{dir: "/m", root: "/m", want: AggregateFile},
		{dir: "/other", root: "/m", wantErr: true},
	}
	for _, tt := range tests {
		got, err := Artifact{Dir: tt.dir, Name: AggregateFile}.Rel(tt.root)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Rel(%s, %s) = %q, want error", tt.dir, tt.root, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Rel(%s, %s) = %q, %v; want %q", tt.dir, tt.root, got, err, tt.want)
		}
	}
}
