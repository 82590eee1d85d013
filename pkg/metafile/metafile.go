// pkg/metafile/metafile.go
package metafile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"
)

// File is a metadata file in the process of being produced. Writes go to a
// temporary sibling in the destination directory; Close promotes the data to
// the final path with an atomic rename, but only when something was written.
// An empty temp file is discarded so a stale metadata file from an earlier
// build is never clobbered with nothing.
type File struct {
	finalPath string
	temp      *os.File
	compress  bool
	closed    bool
}

// Option adjusts how a metadata file is finalized
type Option func(*File)

// WithCompression makes Close write an xz stream to the final path instead
// of the raw bytes
func WithCompression() Option {
	return func(f *File) {
		f.compress = true
	}
}

// Create prepares a metadata file destined for finalPath. The parent
// directory is created when absent, and the temporary file is placed in that
// same directory so the finalizing rename stays on one filesystem.
func Create(finalPath string, opts ...Option) (*File, error) {
	name := filepath.Base(finalPath)
	if finalPath == "" || name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("metadata path has no file name: %q", finalPath)
	}
	dir := filepath.Dir(finalPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating metadata directory: %w", err)
	}
	temp, err := os.CreateTemp(dir, name+".*.new")
	if err != nil {
		return nil, fmt.Errorf("creating temp metadata file: %w", err)
	}
	f := &File{
		finalPath: finalPath,
		temp:      temp,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Path returns the final destination path
func (f *File) Path() string {
	return f.finalPath
}

// TempPath returns the temporary sibling the data is written to
func (f *File) TempPath() string {
	return f.temp.Name()
}

// Write appends to the temporary file
func (f *File) Write(p []byte) (int, error) {
	return f.temp.Write(p)
}

// Discard abandons the metadata file without touching the final path,
// for when instrumentation fails partway through
func (f *File) Discard() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.temp.Close()
	if err := os.Remove(f.temp.Name()); err != nil {
		return fmt.Errorf("discarding temp metadata file: %w", err)
	}
	return nil
}

// Close finalizes the metadata file. Non-empty data is renamed over the
// final path; an empty temp file is removed and any pre-existing final file
// is left untouched. Closing twice is a no-op.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	info, err := f.temp.Stat()
	if err != nil {
		f.temp.Close()
		os.Remove(f.temp.Name())
		return fmt.Errorf("stat temp metadata file: %w", err)
	}
	if err := f.temp.Close(); err != nil {
		os.Remove(f.temp.Name())
		return fmt.Errorf("closing temp metadata file: %w", err)
	}
	if info.Size() == 0 {
		if err := os.Remove(f.temp.Name()); err != nil {
			return fmt.Errorf("removing empty temp metadata file: %w", err)
		}
		return nil
	}
	if f.compress {
		if err := f.compressTemp(); err != nil {
			os.Remove(f.temp.Name())
			return err
		}
	}
	if err := os.Rename(f.temp.Name(), f.finalPath); err != nil {
		os.Remove(f.temp.Name())
		return fmt.Errorf("finalizing metadata file: %w", err)
	}
	return nil
}

// compressTemp replaces the temp file's contents with their xz encoding,
// writing through a second sibling so the rename in Close stays atomic.
func (f *File) compressTemp() error {
	src, err := os.Open(f.temp.Name())
	if err != nil {
		return fmt.Errorf("reopening temp metadata file: %w", err)
	}
	defer src.Close()

	dir := filepath.Dir(f.finalPath)
	name := filepath.Base(f.finalPath)
	dst, err := os.CreateTemp(dir, name+".*.xz")
	if err != nil {
		return fmt.Errorf("creating xz temp file: %w", err)
	}
	xzWriter, err := xz.NewWriter(dst)
	if err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return fmt.Errorf("creating xz writer: %w", err)
	}
	if _, err := io.Copy(xzWriter, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return fmt.Errorf("compressing metadata: %w", err)
	}
	if err := xzWriter.Close(); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return fmt.Errorf("flushing xz stream: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return fmt.Errorf("closing xz temp file: %w", err)
	}
	if err := os.Remove(f.temp.Name()); err != nil {
		os.Remove(dst.Name())
		return fmt.Errorf("removing raw temp file: %w", err)
	}
	return os.Rename(dst.Name(), f.temp.Name())
}
