// Package testutil holds test helpers that keep labbook's package layering
// honest: domain below persistence, persistence below the service, commands
// on top.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// Module is the import path prefix of every labbook package.
const Module = "labbook"

// AssertNoDirectImports parses the non-test Go files in dir and fails when an
// import matches forbidden. Subdirectories are not visited.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	reportViolations(t, "forbidden direct imports", reason, viols)
}

// AssertNoTransitiveDependency lists the dependency closure of pattern with
// `go list -deps` and fails when any entry matches forbidden.
func AssertNoTransitiveDependency(t testing.TB, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	out, err := goListDeps(pattern)
	if err != nil {
		t.Fatalf("go list -deps %s: %v\n%s", pattern, err, out)
	}
	var viols []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" && forbidden(line) {
			viols = append(viols, line)
		}
	}
	reportViolations(t, "forbidden transitive dependency", reason, viols)
}

// Under returns a predicate matching the given labbook package paths and
// everything nested below them, e.g. Under("internal/core").
func Under(rels ...string) func(string) bool {
	prefixes := make([]string, 0, len(rels))
	for _, rel := range rels {
		prefixes = append(prefixes, Module+"/"+strings.Trim(rel, "/"))
	}
	return func(path string) bool {
		for _, p := range prefixes {
			if path == p || strings.HasPrefix(path, p+"/") {
				return true
			}
		}
		return false
	}
}

// InternalImport matches any path with an internal element, labbook's or a
// dependency's.
func InternalImport(path string) bool {
	return strings.Contains(path, "/internal/") || strings.HasPrefix(path, "internal/")
}

var goListDeps = func(pattern string) ([]byte, error) {
	return exec.Command("go", "list", "-deps", pattern).CombinedOutput()
}

func directImportViolations(dir string, forbidden func(string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, spec := range file.Imports {
			ip, err := strconv.Unquote(spec.Path.Value)
			if err != nil {
				return nil, err
			}
			if forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

type fatalf interface {
	Fatalf(format string, args ...any)
}

func reportViolations(t fatalf, what, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("%s (%s):\n%s", what, reason, strings.Join(viols, "\n"))
	}
}
