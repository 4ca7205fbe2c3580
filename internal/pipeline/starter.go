package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"buildweaver/internal/config"
	"buildweaver/internal/fsutil"
)

type starterFile struct {
	path    string
	content string
}

// splitClass splits "com.acme.Main" into "com.acme" and "Main".
func splitClass(name string) (pkg, simple string) {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

func classFile(root, className string) string {
	return filepath.Join(root, filepath.FromSlash(strings.ReplaceAll(className, ".", "/"))+".java")
}

func packageClause(pkg string) string {
	if pkg == "" {
		return ""
	}
	return "package " + pkg + ";\n\n"
}

func mainSource(className string) string {
	pkg, simple := splitClass(className)
	return packageClause(pkg) + fmt.Sprintf(`public class %s {
    public static void main(String... args) {
        System.out.println("Hello, World!");
    }
}
`, simple)
}

func testSource(className string) string {
	pkg, simple := splitClass(className)
	return packageClause(pkg) + fmt.Sprintf(`import org.junit.jupiter.api.Test;

import static org.junit.jupiter.api.Assertions.assertDoesNotThrow;

class %sTest {
    @Test
    void mainRuns() {
        assertDoesNotThrow(() -> %s.main());
    }
}
`, simple, simple)
}

// starterFiles returns the files init writes for p.
func starterFiles(p *config.Project) []starterFile {
	files := []starterFile{{path: classFile(p.SourceDir, p.MainClass), content: mainSource(p.MainClass)}}
	if p.Layout == config.LayoutSplit {
		files = append(files, starterFile{
			path:    classFile(p.TestSourceDir, p.MainClass+"Test"),
			content: testSource(p.MainClass),
		})
	}
	return files
}

// initProject writes the starter sources, overwriting existing files.
func (o *Orchestrator) initProject() error {
	for _, f := range starterFiles(o.project) {
		if err := o.writeStarter(f); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) writeStarter(f starterFile) error {
	if existing, err := os.ReadFile(f.path); err == nil {
		if bytes.Equal(existing, []byte(f.content)) {
			o.log.V(1).Info("starter file unchanged", "path", f.path)
			return nil
		}
		o.log.V(1).Info("overwriting file with starter", "path", f.path, "diff", renderUnifiedDiff(string(existing), f.content, o.rel(f.path)))
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("reading %s: %w", f.path, err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(f.path), err)
	}
	if err := fsutil.WriteFileAtomic(f.path, []byte(f.content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", f.path, err)
	}
	return nil
}

func renderUnifiedDiff(before, after, path string) string {
	before = strings.TrimRight(before, "\n")
	after = strings.TrimRight(after, "\n")
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before + "\n"),
		B:        difflib.SplitLines(after + "\n"),
		FromFile: path + " (existing)",
		ToFile:   path + " (starter)",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return ""
	}
	return text
}
