// Package core provides the domain models for the build pipeline.
//
// # Core Types
//
// Coordinate: a remote artifact path (group/artifact/version/file).
// LocalArtifact: a Coordinate resolved to a file in the lib directory.
// SourceSet: the compilable files found under a source root.
// CompilationUnit: everything one compiler invocation needs.
// Manifest: the jar manifest declaring the entry point.
//
// All types are plain values; they are created fresh per invocation and
// never persisted, except LocalArtifact digests which the fetch package
// records in its lockfile.
package core
