package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(f), 0o644); err != nil {
			t.Fatalf("write %s: %v", f, err)
		}
	}
}

func rel(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		r, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatalf("rel: %v", err)
		}
		out = append(out, filepath.ToSlash(r))
	}
	return out
}

func TestScan_AllExcludesRootIncludesDirs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "Main.class", "com/example/App.class")

	got, err := Scan(root, All())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []string{"Main.class", "com", "com/example", "com/example/App.class"}
	if diff := cmp.Diff(want, rel(t, root, got)); diff != "" {
		t.Fatalf("Scan mismatch (-want +got):\n%s", diff)
	}
}

func TestScan_ExtensionFilterSkipsDirsAndOtherFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "Main.java", "README.md", "pkg/Util.java", "pkg/notes.txt")
	if err := os.MkdirAll(filepath.Join(root, "weird.java"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	set, err := Sources(root, ".java")
	if err != nil {
		t.Fatalf("Sources: %v", err)
	}
	want := []string{"Main.java", "pkg/Util.java"}
	if diff := cmp.Diff(want, rel(t, root, set.Files)); diff != "" {
		t.Fatalf("Sources mismatch (-want +got):\n%s", diff)
	}
	if set.Root != root {
		t.Fatalf("Root = %q, want %q", set.Root, root)
	}
}

func TestScan_StableAcrossCalls(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "b/B.java", "a/A.java", "c.java")
	first, err := Scan(root, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	second, err := Scan(root, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("order changed between calls:\n%s", diff)
	}
}

func TestScan_MissingRootFails(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "missing"), All()); err == nil {
		t.Fatalf("expected error for missing root")
	}
}

func TestScan_EmptyRoot(t *testing.T) {
	got, err := Scan(t.TempDir(), All())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no paths, got %v", got)
	}
}

func TestScan_FilesOnly(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "com/example/App.class")
	got, err := Scan(root, FilesOnly(All()))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if diff := cmp.Diff([]string{"com/example/App.class"}, rel(t, root, got)); diff != "" {
		t.Fatalf("FilesOnly mismatch (-want +got):\n%s", diff)
	}
}
