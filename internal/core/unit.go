package core

// SourceSet is the ordered list of compilable files under Root.
// It is recomputed on every build.
type SourceSet struct {
	Root  string
	Files []string
}

// Empty reports whether the set has no files.
func (s SourceSet) Empty() bool { return len(s.Files) == 0 }

// CompilationUnit is the input to a single compiler invocation.
//
// An empty Classpath means "no classpath configured", which is distinct
// from a classpath setting with no entries.
type CompilationUnit struct {
	SourceRoot string
	Files      []string
	Classpath  []string
	OutputDir  string
}

// NewCompilationUnit builds a unit from a source set.
func NewCompilationUnit(src SourceSet, classpath []string, outputDir string) CompilationUnit {
	files := make([]string, len(src.Files))
	copy(files, src.Files)
	var cp []string
	if len(classpath) > 0 {
		cp = make([]string, len(classpath))
		copy(cp, classpath)
	}
	return CompilationUnit{
		SourceRoot: src.Root,
		Files:      files,
		Classpath:  cp,
		OutputDir:  outputDir,
	}
}
