// Package fetch downloads declared library coordinates into a local lib
// directory and keeps them there as a cache keyed by file name.
//
// Every fetched artifact's sha256 digest is recorded in a lockfile. A cached
// file that no longer matches is downloaded again; a download that does not
// match a known digest fails the batch.
package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	digest "github.com/opencontainers/go-digest"
	"github.com/pkg/errors"

	"buildweaver/internal/core"
	"buildweaver/internal/fsutil"
	"buildweaver/internal/trace"
)

// DefaultRepository is the Maven Central base URL.
const DefaultRepository = "https://repo1.maven.org/maven2"

// Options configures a Fetcher.
type Options struct {
	// Repository is the base URL coordinates are appended to.
	Repository string

	// Client performs the downloads. Nil means http.DefaultClient.
	Client *http.Client

	// Progress receives one " << path" line per actual download.
	Progress io.Writer

	Log logr.Logger

	// Verify enables digest checks. When false, presence of the file is a
	// cache hit and no lockfile is read or written.
	Verify bool

	// Pins are digests declared in the project config. They take precedence
	// over the lockfile.
	Pins map[core.Coordinate]digest.Digest

	// LockfilePath defaults to LockfileName inside the fetch directory.
	LockfilePath string

	// Sink receives DependencyFetched, DependencyCached and
	// DependencyRefetched events.
	Sink trace.Sink

	// Action labels trace events.
	Action string
}

// Fetcher resolves coordinates to local files.
type Fetcher struct {
	opts Options
	base *url.URL
}

// New validates opts and returns a Fetcher.
func New(opts Options) (*Fetcher, error) {
	if opts.Repository == "" {
		opts.Repository = DefaultRepository
	}
	base, err := parseRepository(opts.Repository)
	if err != nil {
		return nil, err
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	if opts.Sink == nil {
		opts.Sink = trace.NopSink{}
	}
	return &Fetcher{opts: opts, base: base}, nil
}

func parseRepository(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid repository URL %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("invalid repository URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return nil, errors.Errorf("invalid repository URL %q: missing host", raw)
	}
	return u, nil
}

// WithAction returns a copy of f whose trace events are labelled action.
func (f *Fetcher) WithAction(action string) *Fetcher {
	cp := *f
	cp.opts.Action = action
	return &cp
}

// URL returns the download URL for c.
func (f *Fetcher) URL(c core.Coordinate) string {
	return f.base.JoinPath(string(c)).String()
}

// Fetch ensures every coordinate is present in dir and returns the local
// artifacts in input order. Duplicates are allowed and resolve to the same
// file. The first failure aborts the batch.
func (f *Fetcher) Fetch(ctx context.Context, dir string, coords ...core.Coordinate) ([]core.LocalArtifact, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating lib directory %s", dir)
	}

	var lock *Lockfile
	lockPath := f.opts.LockfilePath
	if lockPath == "" {
		lockPath = filepath.Join(dir, LockfileName)
	}
	if f.opts.Verify {
		var err error
		if lock, err = LoadLockfile(lockPath); err != nil {
			return nil, err
		}
	}

	out := make([]core.LocalArtifact, 0, len(coords))
	var fetchErr error
	for _, c := range coords {
		if err := c.Validate(); err != nil {
			fetchErr = err
			break
		}
		art, err := f.fetchOne(ctx, dir, c, lock)
		if err != nil {
			fetchErr = err
			break
		}
		out = append(out, art)
	}

	if lock != nil {
		if err := lock.Save(lockPath); err != nil && fetchErr == nil {
			fetchErr = err
		}
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	return out, nil
}

func (f *Fetcher) expected(c core.Coordinate, lock *Lockfile) digest.Digest {
	if d, ok := f.opts.Pins[c]; ok && d != "" {
		return d
	}
	if lock != nil {
		if d, ok := lock.Lookup(c); ok {
			return d
		}
	}
	return ""
}

func (f *Fetcher) fetchOne(ctx context.Context, dir string, c core.Coordinate, lock *Lockfile) (core.LocalArtifact, error) {
	path := filepath.Join(dir, c.FileName())
	art := core.LocalArtifact{Coordinate: c, Path: path}
	want := f.expected(c, lock)

	present, err := fsutil.Exists(path)
	if err != nil {
		return art, errors.Wrapf(err, "checking %s", path)
	}

	refetch := false
	if present {
		if !f.opts.Verify {
			f.record(trace.EventDependencyCached, c, "")
			f.opts.Log.V(1).Info("dependency cached", "coordinate", c, "path", path)
			return art, nil
		}
		got, err := core.FileDigest(path)
		if err != nil {
			return art, errors.Wrapf(err, "hashing %s", path)
		}
		if want == "" || got == want {
			lock.Record(c, got)
			art.Digest = got
			f.record(trace.EventDependencyCached, c, "")
			f.opts.Log.V(1).Info("dependency cached", "coordinate", c, "path", path, "digest", got)
			return art, nil
		}
		f.opts.Log.Info("cached dependency does not match its digest, downloading again",
			"coordinate", c, "path", path, "expected", want, "actual", got)
		refetch = true
	}

	got, err := f.download(ctx, dir, path, c, want)
	if err != nil {
		return art, err
	}
	if lock != nil {
		lock.Record(c, got)
		art.Digest = got
	}
	if refetch {
		f.record(trace.EventDependencyRefetched, c, "DigestMismatch")
	} else {
		f.record(trace.EventDependencyFetched, c, "")
	}
	color.New(color.FgCyan).Fprintf(f.opts.Progress, " << %s\n", path)
	return art, nil
}

// download streams the coordinate into a temp file in dir and renames it
// to path once the transfer completed and the digest is acceptable.
func (f *Fetcher) download(ctx context.Context, dir, path string, c core.Coordinate, want digest.Digest) (digest.Digest, error) {
	src := f.URL(c)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", errors.Wrapf(err, "building request for %s", c)
	}
	f.opts.Log.V(1).Info("downloading dependency", "coordinate", c, "url", src)
	resp, err := f.opts.Client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "fetch %s", c)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Coordinate: c, URL: src, StatusCode: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(dir, "."+c.FileName()+".part-*")
	if err != nil {
		return "", errors.Wrapf(err, "creating temp file in %s", dir)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	digester := digest.SHA256.Digester()
	if _, err := io.Copy(io.MultiWriter(tmp, digester.Hash()), resp.Body); err != nil {
		return "", errors.Wrapf(err, "downloading %s", c)
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrapf(err, "writing %s", tmpName)
	}
	got := digester.Digest()
	if f.opts.Verify && want != "" && got != want {
		return "", &IntegrityError{Coordinate: c, Expected: want, Actual: got}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", errors.Wrapf(err, "moving %s into place", path)
	}
	return got, nil
}

func (f *Fetcher) record(kind trace.EventKind, c core.Coordinate, reason string) {
	trace.SafeRecord(f.opts.Sink, trace.Event{
		Kind:    kind,
		Action:  f.opts.Action,
		Subject: string(c),
		Reason:  reason,
	})
}
