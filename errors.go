// errors.go
package rustprobe

import (
	"fmt"

	"github.com/rustprobe/rustprobe/pkg/envvar"
	"github.com/rustprobe/rustprobe/pkg/sysroot"
	"github.com/rustprobe/rustprobe/pkg/toolchain"
)

// Sentinel errors, re-exported from the packages that raise them so callers
// can match with errors.Is against this package alone.
var (
	// ErrEnvNotSet indicates a required environment binding is missing.
	// In the rustc role this is a contract violation: the cargo role is
	// required to have set the binding before spawning cargo.
	ErrEnvNotSet = envvar.ErrNotSet

	// ErrBadSysroot indicates the resolved sysroot does not exist as a directory
	ErrBadSysroot = sysroot.ErrBadSysroot

	// ErrMalformedToolchain indicates the toolchain document could not be parsed
	ErrMalformedToolchain = toolchain.ErrMalformed

	// ErrEncoding indicates tool output could not be decoded as a usable string
	ErrEncoding = sysroot.ErrEncoding
)

// Error wraps an error with the failing operation and, when applicable,
// the environment key involved.
type Error struct {
	Op  string // Operation that failed
	Key string // Environment variable key if applicable
	Err error  // Underlying error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
