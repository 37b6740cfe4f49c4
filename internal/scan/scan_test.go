package scan

import (
	"context"
	"go/token"
	"go/types"
	"slices"
	"strings"
	"testing"

	"github.com/broady/rawendpoints/internal/diag"
	"golang.org/x/tools/go/packages"
)

func loadTestdata(t *testing.T, reporter diag.Reporter) []*packages.Package {
	t.Helper()
	return loadPattern(t, "./testdata/endpoints", reporter)
}

func loadPattern(t *testing.T, pattern string, reporter diag.Reporter) []*packages.Package {
	t.Helper()
	pkgs, err := Load(context.Background(), Config{
		Dir:      ".",
		Patterns: []string{pattern},
	}, reporter)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return pkgs
}

func TestScan(t *testing.T) {
	var c diag.Collector
	pkgs := loadTestdata(t, &c)

	s := &Scanner{Reporter: &c}
	decls := s.Scan(pkgs)

	want := []struct {
		name string
		run  RunKind
	}{
		{"CreateThing", RunTyped},
		{"Health", RunHTTP},
		{"NoRun", RunMissing},
		{"BadRun", RunInvalid},
		{"hidden", RunTyped},
	}
	if len(decls) != len(want) {
		var got []string
		for _, d := range decls {
			got = append(got, d.Name)
		}
		t.Fatalf("got declarations %v, want %d", got, len(want))
	}
	for i, w := range want {
		d := decls[i]
		if d.Name != w.name {
			t.Errorf("decls[%d].Name = %q, want %q", i, d.Name, w.name)
		}
		if d.Run != w.run {
			t.Errorf("%s: Run = %v, want %v", d.Name, d.Run, w.run)
		}
		if d.PkgName != "endpoints" {
			t.Errorf("%s: PkgName = %q", d.Name, d.PkgName)
		}
		if !strings.HasSuffix(d.PkgPath, "/internal/scan/testdata/endpoints") {
			t.Errorf("%s: PkgPath = %q", d.Name, d.PkgPath)
		}
		if !d.Pos.IsValid() {
			t.Errorf("%s: position not set", d.Name)
		}
	}
}

func TestScanDiagnostics(t *testing.T) {
	var c diag.Collector
	pkgs := loadTestdata(t, &c)
	(&Scanner{Reporter: &c}).Scan(pkgs)

	counts := make(map[string]int)
	for _, d := range c.Diagnostics() {
		counts[d.Code]++
	}

	tests := []struct {
		code string
		want int
	}{
		{diag.CodeInspected, 10},
		{diag.CodeMissingRun, 1},
		{diag.CodeInvalidRun, 1},
		{diag.CodeTypeCheckFailed, 1},
		{diag.CodeGeneric, 1},
	}
	for _, tt := range tests {
		if counts[tt.code] != tt.want {
			t.Errorf("%s: got %d diagnostics, want %d", tt.code, counts[tt.code], tt.want)
		}
	}

	for _, d := range c.Diagnostics() {
		switch d.Code {
		case diag.CodeMissingRun:
			if d.Severity != diag.Error {
				t.Errorf("ME001 severity = %v, want error", d.Severity)
			}
			if !strings.Contains(d.Message, "NoRun") {
				t.Errorf("ME001 message %q does not name the type", d.Message)
			}
		case diag.CodeInspected:
			if d.Severity != diag.Info {
				t.Errorf("GEN001 severity = %v, want info", d.Severity)
			}
		case diag.CodeGeneric:
			if d.Severity != diag.Warning || !strings.Contains(d.Message, "Box") {
				t.Errorf("ME004 = %v", d)
			}
		}
	}
	if !c.HasErrors() {
		t.Error("expected error diagnostics")
	}
}

func TestScanObserverSeesEveryType(t *testing.T) {
	pkgs := loadTestdata(t, nil)

	var seen []string
	var c diag.Collector
	s := &Scanner{
		Reporter: &c,
		Observe: func(tn *types.TypeName, pos token.Position) {
			seen = append(seen, tn.Name())
		},
	}
	decls := s.Scan(pkgs)

	want := []string{
		"CreateThing", "CreateThingRequest", "Health", "NoRun", "BadRun",
		"Plain", "Definer", "Box", "hidden", "NotMounted",
	}
	if !slices.Equal(seen, want) {
		t.Errorf("observed %v, want %v", seen, want)
	}
	if len(decls) != 5 {
		t.Errorf("got %d declarations, want 5", len(decls))
	}
	for _, d := range c.Diagnostics() {
		if d.Code == diag.CodeInspected {
			t.Errorf("custom observer should replace GEN001 reporting, got %v", d)
		}
	}
}

func TestScanEmbeddedMount(t *testing.T) {
	var c diag.Collector
	pkgs := loadPattern(t, "./testdata/embedded", &c)
	decls := (&Scanner{Reporter: &c}).Scan(pkgs)

	want := []struct {
		name string
		run  RunKind
	}{
		{"Indirect", RunTyped},
		{"IndirectPointer", RunMissing},
	}
	if len(decls) != len(want) {
		var got []string
		for _, d := range decls {
			got = append(got, d.Name)
		}
		t.Fatalf("got declarations %v, want %v", got, want)
	}
	for i, w := range want {
		if decls[i].Name != w.name || decls[i].Run != w.run {
			t.Errorf("decls[%d] = %s (%v), want %s (%v)", i, decls[i].Name, decls[i].Run, w.name, w.run)
		}
		if decls[i].PkgName != "embedded" {
			t.Errorf("%s: PkgName = %q", decls[i].Name, decls[i].PkgName)
		}
	}
}

func TestLookupMarkerTransitive(t *testing.T) {
	pkgs := loadPattern(t, "./testdata/embedded", nil)
	if len(pkgs) != 1 {
		t.Fatalf("loaded %d packages", len(pkgs))
	}
	for _, imp := range pkgs[0].Types.Imports() {
		if imp.Path() == MarkerPackage {
			t.Fatalf("testdata should not import %s directly", MarkerPackage)
		}
	}

	named := pkgs[0].Types.Scope().Lookup("Indirect").Type().(*types.Named)
	mount := findMount(named, make(map[*types.Named]bool))
	if mount == nil {
		t.Fatal("Mount not found through base.Base")
	}
	if markerIn(mount.Obj().Pkg()) == nil {
		t.Error("marker not found in the package of Mount")
	}
	noDefine := pkgs[0].Types.Scope().Lookup("NoDefine").Type().(*types.Named)
	if hasMethod(noDefine, "Define") {
		t.Error("NoDefine should not have Define")
	}
}

func TestLoadTarget(t *testing.T) {
	target, err := LoadTarget(context.Background(), "./testdata/endpoints", nil)
	if err != nil {
		t.Fatal(err)
	}
	if target.PkgName != "endpoints" || !strings.HasSuffix(target.PkgPath, "/testdata/endpoints") {
		t.Errorf("target = %+v", target)
	}
	if target.Module == "" {
		t.Error("module root not set")
	}
	for _, name := range []string{"CreateThing", "Box", "hidden"} {
		if !target.Names[name] {
			t.Errorf("package-scope name %s missing from %v", name, target.Names)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(context.Background(), Config{
		Dir:      ".",
		Patterns: []string{"./testdata/does-not-exist"},
	}, nil)
	if err == nil {
		t.Fatal("expected error for missing package")
	}
}

func TestSortByFullName(t *testing.T) {
	decls := []*Declaration{
		{PkgPath: "example.com/b", Name: "A"},
		{PkgPath: "example.com/a", Name: "Z"},
		{PkgPath: "example.com/a", Name: "B"},
	}
	SortByFullName(decls)

	var got []string
	for _, d := range decls {
		got = append(got, d.FullName())
	}
	want := []string{"example.com/a.B", "example.com/a.Z", "example.com/b.A"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRunKindString(t *testing.T) {
	tests := []struct {
		kind RunKind
		want string
	}{
		{RunMissing, "missing"},
		{RunTyped, "typed"},
		{RunHTTP, "http"},
		{RunInvalid, "invalid"},
		{RunKind(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("RunKind(%d).String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}
