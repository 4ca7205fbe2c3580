package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	digest "github.com/opencontainers/go-digest"
)

func TestCoordinate_FileNameIsLastSegment(t *testing.T) {
	c := Coordinate("org/apache/commons/commons-lang3/3.14.0/commons-lang3-3.14.0.jar")
	if got := c.FileName(); got != "commons-lang3-3.14.0.jar" {
		t.Fatalf("FileName() = %q", got)
	}
	if got := Coordinate("plain.jar").FileName(); got != "plain.jar" {
		t.Fatalf("FileName() without slash = %q", got)
	}
}

func TestCoordinate_ValidateRejectsMalformed(t *testing.T) {
	bad := []string{"", " a/b.jar", "/abs/x.jar", "a/b/", "a//b.jar", "a/../b.jar", "a/./b.jar", `a\b.jar`}
	for _, raw := range bad {
		if err := Coordinate(raw).Validate(); err == nil {
			t.Errorf("Validate(%q) = nil, want error", raw)
		}
	}
	if err := Coordinate("org/junit/junit/4.13.2/junit-4.13.2.jar").Validate(); err != nil {
		t.Fatalf("valid coordinate rejected: %v", err)
	}
}

func TestCoordinates_PreservesOrderAndDuplicates(t *testing.T) {
	got := Coordinates("b/x.jar", "a/y.jar", "b/x.jar")
	want := []Coordinate{"b/x.jar", "a/y.jar", "b/x.jar"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Coordinates mismatch (-want +got):\n%s", diff)
	}
}

func TestFileDigest_MatchesContent(t *testing.T) {
	p := filepath.Join(t.TempDir(), "x.jar")
	if err := os.WriteFile(p, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := FileDigest(p)
	if err != nil {
		t.Fatalf("FileDigest: %v", err)
	}
	if want := digest.FromString("payload"); got != want {
		t.Fatalf("digest = %s, want %s", got, want)
	}
}

func TestBuildArtifact_Exists(t *testing.T) {
	dir := t.TempDir()
	b := BuildArtifact{Path: filepath.Join(dir, "app.jar")}
	if b.Exists() {
		t.Fatalf("expected missing archive")
	}
	if err := os.WriteFile(b.Path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !b.Exists() {
		t.Fatalf("expected archive to exist")
	}
	if (BuildArtifact{Path: dir}).Exists() {
		t.Fatalf("a directory is not an archive")
	}
}

func TestManifest_BytesFormat(t *testing.T) {
	b, err := NewManifest("Main").Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	want := "Manifest-Version: 1.0\r\nMain-Class: Main\r\n\r\n"
	if string(b) != want {
		t.Fatalf("manifest = %q, want %q", b, want)
	}
}

func TestManifest_FoldsLongLines(t *testing.T) {
	long := "com.example." + strings.Repeat("deeply.", 12) + "Main"
	b, err := NewManifest(long).Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	for _, line := range strings.Split(strings.TrimSuffix(string(b), "\r\n\r\n"), "\r\n") {
		if len(line) > 72 {
			t.Fatalf("line exceeds 72 bytes: %q", line)
		}
	}
	unfolded := strings.ReplaceAll(string(b), "\r\n ", "")
	if !strings.Contains(unfolded, "Main-Class: "+long+"\r\n") {
		t.Fatalf("folded manifest does not unfold to the main class: %q", b)
	}
}

func TestManifest_FoldsOnRuneBoundary(t *testing.T) {
	// "Main-Class: " plus 59 bytes puts the two-byte rune across byte 72.
	class := "p." + strings.Repeat("a", 57) + "été.Main"
	b, err := NewManifest(class).Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	for _, line := range strings.Split(strings.TrimSuffix(string(b), "\r\n\r\n"), "\r\n") {
		if !utf8.ValidString(line) {
			t.Fatalf("line splits a rune: %q", line)
		}
		if len(line) > 72 {
			t.Fatalf("line exceeds 72 bytes: %q", line)
		}
	}
	unfolded := strings.ReplaceAll(string(b), "\r\n ", "")
	if !strings.Contains(unfolded, "Main-Class: "+class+"\r\n") {
		t.Fatalf("folded manifest does not unfold to the main class: %q", b)
	}
}

func TestManifest_RejectsLineBreaks(t *testing.T) {
	if _, err := NewManifest("Main\nEvil: yes").Bytes(); err == nil {
		t.Fatalf("expected error for line break in attribute")
	}
}

func TestNewCompilationUnit_CopiesInputs(t *testing.T) {
	src := SourceSet{Root: "src", Files: []string{"src/Main.java"}}
	cp := []string{"lib/a.jar"}
	u := NewCompilationUnit(src, cp, "out")
	src.Files[0] = "mutated"
	cp[0] = "mutated"
	if u.Files[0] != "src/Main.java" || u.Classpath[0] != "lib/a.jar" {
		t.Fatalf("unit aliases caller slices: %+v", u)
	}
	if NewCompilationUnit(src, nil, "out").Classpath != nil {
		t.Fatalf("empty classpath must stay nil")
	}
}
