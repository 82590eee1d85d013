// pkg/sysroot/sysroot.go
package sysroot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"unicode/utf8"

	"zombiezen.com/go/nix"

	"github.com/rustprobe/rustprobe/pkg/subproc"
)

var (
	// ErrBadSysroot indicates the probed sysroot does not exist as a directory
	ErrBadSysroot = errors.New("invalid sysroot")

	// ErrEncoding indicates the probe output could not be decoded
	ErrEncoding = errors.New("output is not valid UTF-8")
)

// Resolve asks the compiler driver where its sysroot lives and validates the
// answer. The probe output is split on ASCII whitespace at the byte level
// rather than by lines, since nothing guarantees it is valid UTF-8.
//
// The directory check happens up front: rustc reports a flood of unrelated
// errors when handed a bad sysroot, so one clear failure here beats a
// diagnostic cascade later.
func Resolve(rustc *subproc.Tool) (string, error) {
	out, err := rustc.Output("--print", "sysroot")
	if err != nil {
		return "", fmt.Errorf("probing rustc for sysroot: %w", err)
	}
	path, err := stringFromBytes(firstToken(out))
	if err != nil {
		return "", err
	}
	info, statErr := os.Stat(path)
	if statErr != nil || !info.IsDir() {
		return "", fmt.Errorf("%w (not a directory): %s", ErrBadSysroot, path)
	}
	return path, nil
}

// Describe returns a short human-readable name for a sysroot, for debug
// output. Toolchains provisioned through nix resolve to store paths like
// /nix/store/<digest>-rust-default-1.74.0; for those the store object name is
// far more useful than the raw path.
func Describe(path string) string {
	if storePath, _, err := nix.DefaultStoreDirectory.ParsePath(path); err == nil {
		return storePath.Name()
	}
	return filepath.Base(path)
}

// firstToken returns the first run of non-whitespace bytes
func firstToken(out []byte) []byte {
	start := 0
	for start < len(out) && isASCIISpace(out[start]) {
		start++
	}
	end := start
	for end < len(out) && !isASCIISpace(out[end]) {
		end++
	}
	return out[start:end]
}

func isASCIISpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// stringFromBytes converts probe output bytes to a path string. On POSIX
// systems paths are arbitrary bytes and the conversion always succeeds; on
// Windows the bytes must be valid UTF-8.
func stringFromBytes(b []byte) (string, error) {
	if runtime.GOOS == "windows" && !utf8.Valid(b) {
		return "", fmt.Errorf("%w: %q", ErrEncoding, b)
	}
	return string(b), nil
}
