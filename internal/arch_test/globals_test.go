package arch_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
	"testing"
)

// globalPrefixes names, per package, var prefixes that are treated as
// constants. ui keeps its lipgloss palette and styles at package level.
var globalPrefixes = map[string][]string{
	"ui": {"style", "color"},
}

// packageVar is one name of a package-level var declaration.
type packageVar struct {
	name string
	typ  ast.Expr
	val  ast.Expr
}

// TestNoMutableGlobalState rejects package-level vars other than error
// sentinels, interface assertions, literal lookup tables (column schemas,
// label lists) and the prefixed ui styles. Pipeline state belongs in
// values passed through a run.
func TestNoMutableGlobalState(t *testing.T) {
	t.Parallel()

	dir := internalDirPath(t)
	for _, pkg := range internalPackages(t) {
		t.Run(pkg, func(t *testing.T) {
			t.Parallel()
			for _, file := range goFilesIn(t, filepath.Join(dir, pkg)) {
				for _, v := range packageVars(t, file, nil) {
					if !allowedGlobal(v, globalPrefixes[pkg]) {
						t.Errorf("%s: var %s (%s) is mutable package state; pass it through the run instead",
							filepath.Base(file), v.name, typeString(v.typ))
					}
				}
			}
		})
	}
}

// packageVars parses a file, or src when non-nil, and lists its
// package-level vars.
func packageVars(t *testing.T, filename string, src any) []packageVar {
	t.Helper()
	node, err := parser.ParseFile(token.NewFileSet(), filename, src, 0)
	if err != nil {
		t.Fatalf("parsing %s: %v", filename, err)
	}
	var vars []packageVar
	for _, decl := range node.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.VAR {
			continue
		}
		for _, spec := range gd.Specs {
			vs := spec.(*ast.ValueSpec)
			for i, name := range vs.Names {
				v := packageVar{name: name.Name, typ: vs.Type}
				if i < len(vs.Values) {
					v.val = vs.Values[i]
				}
				vars = append(vars, v)
			}
		}
	}
	return vars
}

func allowedGlobal(v packageVar, prefixes []string) bool {
	if v.name == "_" || isErrorSentinel(v.typ, v.val) {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(v.name, p) {
			return true
		}
	}
	switch v.val.(type) {
	case *ast.BasicLit, *ast.CompositeLit:
		return true
	}
	return false
}

// isErrorSentinel matches vars typed error and vars built by errors.New
// or fmt.Errorf.
func isErrorSentinel(typ, val ast.Expr) bool {
	if id, ok := typ.(*ast.Ident); ok && id.Name == "error" {
		return true
	}
	call, ok := val.(*ast.CallExpr)
	if !ok {
		return false
	}
	switch typeString(call.Fun) {
	case "errors.New", "fmt.Errorf":
		return true
	}
	return false
}

// typeString renders a type or selector expression for messages.
func typeString(expr ast.Expr) string {
	switch e := expr.(type) {
	case nil:
		return "inferred"
	case *ast.Ident:
		return e.Name
	case *ast.SelectorExpr:
		return typeString(e.X) + "." + e.Sel.Name
	case *ast.StarExpr:
		return "*" + typeString(e.X)
	case *ast.ArrayType:
		return "[]" + typeString(e.Elt)
	case *ast.MapType:
		return "map[" + typeString(e.Key) + "]" + typeString(e.Value)
	}
	return "complex"
}

func TestGlobalStateRules(t *testing.T) {
	t.Parallel()

	ui := globalPrefixes["ui"]
	tests := []struct {
		name     string
		src      string
		prefixes []string
		allowed  bool
	}{
		{
			name:    "graph sentinel",
			src:     `package linkgraph; import "errors"; var ErrEmptyGraph = errors.New("empty link graph")`,
			allowed: true,
		},
		{
			name:    "re-exported sentinel",
			src:     `package analysis; var ErrMalformedInput error = ingest.ErrMalformedInput`,
			allowed: true,
		},
		{
			name:    "wrapped sentinel",
			src:     `package ingest; import "fmt"; var errHeader = fmt.Errorf("header: %w", ErrMalformedInput)`,
			allowed: true,
		},
		{
			name:    "column schema",
			src:     `package ingest; var edgeColumns = []column{{name: "src", required: true}}`,
			allowed: true,
		},
		{
			name:    "interface assertion",
			src:     `package fusion; import "io"; var _ io.Closer = (*Session)(nil)`,
			allowed: true,
		},
		{
			name:     "ui style",
			src:      `package ui; var styleTitle = lipgloss.NewStyle().Bold(true)`,
			prefixes: ui,
			allowed:  true,
		},
		{
			name:     "ui color",
			src:      `package ui; var colorDanger = lipgloss.Color("#FF5252")`,
			prefixes: ui,
			allowed:  true,
		},
		{
			name:    "style outside ui",
			src:     `package export; var styleTitle = lipgloss.NewStyle()`,
			allowed: false,
		},
		{
			name:     "unprefixed ui var",
			src:      `package ui; var header = lipgloss.NewStyle()`,
			prefixes: ui,
			allowed:  false,
		},
		{
			name:    "score cache",
			src:     `package scoring; var cache = make(map[string]float64)`,
			allowed: false,
		},
		{
			name:    "computed defaults",
			src:     `package scoring; var defaults = DefaultWeights()`,
			allowed: false,
		},
		{
			name:    "shared session",
			src:     `package fusion; var current *Session`,
			allowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			vars := packageVars(t, "snippet.go", tt.src)
			if len(vars) != 1 {
				t.Fatalf("vars = %d, want 1", len(vars))
			}
			if got := allowedGlobal(vars[0], tt.prefixes); got != tt.allowed {
				t.Errorf("allowedGlobal(%s) = %v, want %v", vars[0].name, got, tt.allowed)
			}
		})
	}
}

// TestUIPrefixesStillMatch keeps the ui prefix allowance from outliving
// the styles it exists for.
func TestUIPrefixesStillMatch(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for _, file := range goFilesIn(t, filepath.Join(internalDirPath(t), "ui")) {
		for _, v := range packageVars(t, file, nil) {
			for _, p := range globalPrefixes["ui"] {
				if strings.HasPrefix(v.name, p) {
					seen[p] = true
				}
			}
		}
	}
	for _, p := range globalPrefixes["ui"] {
		if !seen[p] {
			t.Errorf("no ui var starts with %q; drop the prefix from globalPrefixes", p)
		}
	}
}
