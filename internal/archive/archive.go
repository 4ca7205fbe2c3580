// Package archive packages a compiled output tree into an executable jar.
package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"buildweaver/internal/core"
	"buildweaver/internal/scan"
)

// Archiver writes a jar for an output tree.
type Archiver interface {
	Archive(outDir, dest string, manifest core.Manifest) error
}

// Jar is the zip-based Archiver.
type Jar struct {
	Log logr.Logger
}

// Archive writes dest from scratch: the manifest first, then every file and
// directory under outDir in walk order. Directory entries end in "/" and are
// stored; files are deflated and keep their modification time.
//
// The jar is assembled in a temp file beside dest and renamed over it, so
// a failure leaves any previous jar untouched. The parent of dest must
// exist.
func (j Jar) Archive(outDir, dest string, manifest core.Manifest) error {
	mf, err := manifest.Bytes()
	if err != nil {
		return errors.Wrap(err, "rendering manifest")
	}
	paths, err := scan.Scan(outDir, scan.All())
	if err != nil {
		return errors.Wrap(err, "listing output tree")
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "creating archive %s", dest)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	zw := zip.NewWriter(tmp)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: core.ManifestPath, Method: zip.Deflate})
	if err != nil {
		return errors.Wrap(err, "writing manifest entry")
	}
	if _, err := w.Write(mf); err != nil {
		return errors.Wrap(err, "writing manifest entry")
	}

	for _, p := range paths {
		if err := j.addEntry(zw, outDir, p); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return errors.Wrapf(err, "finishing archive %s", dest)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "closing archive %s", dest)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return errors.Wrapf(err, "moving archive to %s", dest)
	}
	j.Log.V(1).Info("archive written", "path", dest, "entries", len(paths)+1)
	return nil
}

func (j Jar) addEntry(zw *zip.Writer, outDir, path string) error {
	rel, err := filepath.Rel(outDir, path)
	if err != nil {
		return errors.Wrapf(err, "relativizing %s", path)
	}
	name := filepath.ToSlash(rel)
	// Links are followed: a linked file is stored with its target's content,
	// a linked directory becomes a directory entry.
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "stat %s", path)
	}

	if info.IsDir() {
		_, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name + "/",
			Method:   zip.Store,
			Modified: info.ModTime(),
		})
		return errors.Wrapf(err, "adding directory %s", name)
	}
	if name == core.ManifestPath {
		j.Log.Info("skipping manifest found in output tree", "path", path)
		return nil
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return errors.Wrapf(err, "header for %s", name)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate
	hdr.Modified = info.ModTime()
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return errors.Wrapf(err, "adding %s", name)
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return errors.Wrapf(err, "compressing %s", name)
	}
	return nil
}

// Entries lists the entry names of the jar at path in archive order.
func Entries(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening archive %s", path)
	}
	defer r.Close()
	out := make([]string, len(r.File))
	for i, f := range r.File {
		out[i] = f.Name
	}
	return out, nil
}
