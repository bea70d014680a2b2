package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recorder struct{ msg string }

func (r *recorder) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func writeFile(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestUnder(t *testing.T) {
	match := Under("internal/core", "/cmd/")
	cases := map[string]bool{
		"labbook/internal/core":       true,
		"labbook/internal/core/seed":  true,
		"labbook/internal/corelike":   false,
		"labbook/cmd/labbook":         true,
		"labbook/pkg/domain":          false,
		"example.com/x/internal/core": false,
	}
	for in, want := range cases {
		if got := match(in); got != want {
			t.Fatalf("Under(%q) = %v want %v", in, got, want)
		}
	}
}

func TestInternalImport(t *testing.T) {
	if !InternalImport("labbook/internal/xref") || !InternalImport("golang.org/x/tools/internal/gcimporter") {
		t.Fatalf("expected internal paths to match")
	}
	if InternalImport("labbook/pkg/domain") {
		t.Fatalf("pkg path must not match")
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package tmp\nimport (\n\t\"fmt\"\n\t\"labbook/internal/core\"\n)\nvar _ = fmt.Sprint\nvar _ core.Service\n")
	writeFile(t, dir, "a_test.go", "package tmp\nimport \"labbook/cmd/labbook\"\n")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, filepath.Join(dir, "sub"), "b.go", "package sub\nimport \"labbook/cmd/labbook\"\n")

	viols, err := directImportViolations(dir, Under("internal", "cmd"))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "labbook/internal/core (in a.go)" {
		t.Fatalf("unexpected violations %v", viols)
	}

	AssertNoDirectImports(t, dir, Under("cmd"), "test files and subdirectories are skipped")
}

func TestDirectImportViolationsParseError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.go", "package\n")
	if _, err := directImportViolations(dir, InternalImport); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := directImportViolations(filepath.Join(dir, "missing"), InternalImport); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestReportViolations(t *testing.T) {
	var r recorder
	reportViolations(&r, "forbidden direct imports", "layering", nil)
	if r.msg != "" {
		t.Fatalf("no violations must not fail: %q", r.msg)
	}
	reportViolations(&r, "forbidden direct imports", "layering", []string{"a", "b"})
	if !strings.Contains(r.msg, "(layering)") || !strings.HasSuffix(r.msg, "a\nb") {
		t.Fatalf("unexpected message %q", r.msg)
	}
}

func TestAssertNoTransitiveDependencyUsesGoList(t *testing.T) {
	orig := goListDeps
	t.Cleanup(func() { goListDeps = orig })
	var pattern string
	goListDeps = func(p string) ([]byte, error) {
		pattern = p
		return []byte("fmt\nlabbook/pkg/domain\n\n"), nil
	}
	AssertNoTransitiveDependency(t, "./pkg/...", Under("internal"), "pkg stays public")
	if pattern != "./pkg/..." {
		t.Fatalf("unexpected pattern %q", pattern)
	}
}
