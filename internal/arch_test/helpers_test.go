package arch_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
)

const (
	modulePath  = "github.com/papapumpkin/siterank"
	internalPfx = modulePath + "/internal/"
)

// repoRoot walks up from this file until it finds go.mod.
func repoRoot(t *testing.T) string {
	t.Helper()
	_, here, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	for dir := filepath.Dir(here); ; {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found above arch_test")
		}
		dir = parent
	}
}

func internalDirPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(repoRoot(t), "internal")
}

// internalPackages lists the directories under internal/ that hold Go
// code, arch_test excluded.
func internalPackages(t *testing.T) []string {
	t.Helper()
	dir := internalDirPath(t)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	var pkgs []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "arch_test" {
			continue
		}
		if len(goFilesIn(t, filepath.Join(dir, e.Name()))) > 0 {
			pkgs = append(pkgs, e.Name())
		}
	}
	return pkgs
}

// goFilesIn returns the non-test Go files of dir, sorted.
func goFilesIn(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go") {
			files = append(files, filepath.Join(dir, name))
		}
	}
	return files
}

// importPaths returns every import path used by the non-test files of
// pkgDir, deduplicated and sorted.
func importPaths(t *testing.T, pkgDir string) []string {
	t.Helper()
	var paths []string
	fset := token.NewFileSet()
	for _, f := range goFilesIn(t, pkgDir) {
		node, err := parser.ParseFile(fset, f, nil, parser.ImportsOnly)
		if err != nil {
			t.Fatalf("parsing imports of %s: %v", f, err)
		}
		for _, imp := range node.Imports {
			paths = append(paths, strings.Trim(imp.Path.Value, `"`))
		}
	}
	slices.Sort(paths)
	return slices.Compact(paths)
}

// importsOf narrows importPaths to sibling packages under internal/, named
// by their first path element (e.g. "site").
func importsOf(t *testing.T, pkgDir string) []string {
	t.Helper()
	var pkgs []string
	for _, p := range importPaths(t, pkgDir) {
		rel, ok := strings.CutPrefix(p, internalPfx)
		if !ok {
			continue
		}
		rel, _, _ = strings.Cut(rel, "/")
		pkgs = append(pkgs, rel)
	}
	slices.Sort(pkgs)
	return slices.Compact(pkgs)
}

// lineCount counts lines, including a final line without a newline.
func lineCount(t *testing.T, filePath string) int {
	t.Helper()
	data, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("reading %s: %v", filePath, err)
	}
	n := strings.Count(string(data), "\n")
	if len(data) > 0 && data[len(data)-1] != '\n' {
		n++
	}
	return n
}

// docText returns the text of the first comment group present.
func docText(groups ...*ast.CommentGroup) string {
	for _, g := range groups {
		if g != nil {
			return g.Text()
		}
	}
	return ""
}

type interfaceDecl struct {
	Name    string
	Methods []string
}

// interfaceDecls returns the interface types declared in filePath.
func interfaceDecls(t *testing.T, filePath string) []interfaceDecl {
	t.Helper()
	node, err := parser.ParseFile(token.NewFileSet(), filePath, nil, 0)
	if err != nil {
		t.Fatalf("parsing %s: %v", filePath, err)
	}
	var decls []interfaceDecl
	ast.Inspect(node, func(n ast.Node) bool {
		ts, ok := n.(*ast.TypeSpec)
		if !ok {
			return true
		}
		iface, ok := ts.Type.(*ast.InterfaceType)
		if !ok {
			return false
		}
		d := interfaceDecl{Name: ts.Name.Name}
		for _, m := range iface.Methods.List {
			for _, name := range m.Names {
				d.Methods = append(d.Methods, name.Name)
			}
		}
		decls = append(decls, d)
		return false
	})
	return decls
}
