// rustprobe.go
package rustprobe

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rustprobe/rustprobe/pkg/envvar"
	"github.com/rustprobe/rustprobe/pkg/subproc"
	"github.com/rustprobe/rustprobe/pkg/sysroot"
	"github.com/rustprobe/rustprobe/pkg/toolchain"
)

// Environment variables carrying state from the cargo role to the rustc role.
// These are the whole contract surface between the two process generations.
const (
	// RustcWrapperVar is cargo's wrapper hook. The cargo role points it at
	// this same executable; seeing it equal to our own path is how a process
	// knows it is the nested rustc-role invocation.
	RustcWrapperVar = "RUSTC_WRAPPER"

	// SysrootVar carries the resolved rustc sysroot to the rustc role
	SysrootVar = "RUSTPROBE_SYSROOT"

	// ToolchainVar forces a rustup toolchain channel on cargo invocations
	ToolchainVar = "RUSTUP_TOOLCHAIN"

	// MetadataVar carries the final metadata file path to the rustc role
	MetadataVar = "RUSTPROBE_METADATA_PATH"
)

// Cargo-provided per-unit variables read in the rustc role.
const (
	primaryPackageVar = "CARGO_PRIMARY_PACKAGE"
	binNameVar        = "CARGO_BIN_NAME"
)

// Role classifies which half of the wrapper protocol this process is running.
// It is computed once per process from (own executable path, $RUSTC_WRAPPER)
// and passed down explicitly from there.
type Role int

const (
	// CargoRole is the outer orchestration invocation
	CargoRole Role = iota
	// RustcRole is a nested per-compilation-unit invocation
	RustcRole
)

func (r Role) String() string {
	if r == RustcRole {
		return "rustc"
	}
	return "cargo"
}

// DetectRole decides the role for a process whose executable lives at
// exePath. Only an exact key/value match selects RustcRole; anything else,
// including an unset variable on the first outer invocation, is CargoRole.
func DetectRole(exePath string) Role {
	own := envvar.New(RustcWrapperVar, exePath)
	if current, ok := envvar.Lookup(RustcWrapperVar); ok && current.Equal(own) {
		return RustcRole
	}
	return CargoRole
}

// Wrapper is a tool that can play both halves of the protocol
type Wrapper interface {
	// WrapCargo runs as a cargo front-end, the default invocation
	WrapCargo(*CargoWrapper) error

	// WrapRustc runs as the $RUSTC_WRAPPER substitute for one compilation unit
	WrapRustc(*RustcWrapper) error
}

// Run dispatches the current process to the matching half of w
func Run(w Wrapper) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating own executable: %w", err)
	}
	if DetectRole(exe) == RustcRole {
		rustcWrapper, err := NewRustcWrapper(os.Args[1:])
		if err != nil {
			return err
		}
		return w.WrapRustc(rustcWrapper)
	}
	cargoWrapper, err := NewCargoWrapper(exe)
	if err != nil {
		return err
	}
	return w.WrapCargo(cargoWrapper)
}

// CargoWrapper is the outer-role context: the bindings every instrumented
// cargo invocation must carry. The sysroot is resolved once here and only
// ever travels onward through the environment.
type CargoWrapper struct {
	rustcWrapper envvar.Var
	sysroot      envvar.Var
	toolchain    *envvar.Var
}

// NewCargoWrapper resolves the outer context for the executable at exePath
func NewCargoWrapper(exePath string) (*CargoWrapper, error) {
	path, err := sysroot.Resolve(subproc.Rustc())
	if err != nil {
		return nil, err
	}
	return &CargoWrapper{
		rustcWrapper: envvar.New(RustcWrapperVar, exePath),
		sysroot:      envvar.New(SysrootVar, path),
	}, nil
}

// Sysroot returns the resolved sysroot directory
func (w *CargoWrapper) Sysroot() string {
	return w.sysroot.Value
}

// SetToolchain pins the rustup toolchain channel named by a rust-toolchain
// document. Subsequent cargo runs carry the channel so toolchain-specific
// library linkage stays consistent. A document without a channel leaves the
// ambient default in place.
func (w *CargoWrapper) SetToolchain(doc []byte) error {
	channel, err := toolchain.Channel(doc)
	if err != nil {
		return err
	}
	w.SetToolchainChannel(channel)
	return nil
}

// SetToolchainChannel pins an already-selected channel; empty means ambient
func (w *CargoWrapper) SetToolchainChannel(channel string) {
	if channel == "" {
		return
	}
	v := envvar.New(ToolchainVar, channel)
	w.toolchain = &v
}

// ToolchainChannel returns the pinned channel, if any
func (w *CargoWrapper) ToolchainChannel() (string, bool) {
	if w.toolchain == nil {
		return "", false
	}
	return w.toolchain.Value, true
}

// RunCargo runs cargo with the pinned toolchain, blocking until it exits.
// configure may add arguments and environment bindings to the child.
func (w *CargoWrapper) RunCargo(configure func(*exec.Cmd) error) error {
	return subproc.Cargo().Run(func(cmd *exec.Cmd) error {
		if w.toolchain != nil {
			w.toolchain.ApplyTo(cmd)
		}
		return configure(cmd)
	})
}

// RunCargoWithRustcWrapper runs cargo set up to re-invoke this executable as
// its rustc wrapper for every compilation unit
func (w *CargoWrapper) RunCargoWithRustcWrapper(configure func(*exec.Cmd) error) error {
	return w.RunCargo(func(cmd *exec.Cmd) error {
		w.rustcWrapper.ApplyTo(cmd)
		w.sysroot.ApplyTo(cmd)
		return configure(cmd)
	})
}

// RustcWrapper is the inner-role context for a single compilation unit.
// cargo invokes the wrapper as `<wrapper> <real-rustc> <args...>`, so args[0]
// names the real compiler driver.
type RustcWrapper struct {
	args    []string
	sysroot envvar.Var
}

// NewRustcWrapper reconstructs the per-unit context strictly from the
// environment and the forwarded argument list. A missing sysroot binding is
// a contract violation: it means the cargo role never ran correctly, so it
// is fatal rather than defaulted.
func NewRustcWrapper(args []string) (*RustcWrapper, error) {
	sysrootVar, err := envvar.Require(SysrootVar)
	if err != nil {
		return nil, &Error{Op: "recovering rustc-role state", Key: SysrootVar, Err: err}
	}
	return &RustcWrapper{args: args, sysroot: sysrootVar}, nil
}

// Sysroot returns the sysroot the cargo role resolved
func (w *RustcWrapper) Sysroot() string {
	return w.sysroot.Value
}

// IsPrimaryPackage reports whether cargo marked this unit as belonging to
// the target project rather than a dependency
func (w *RustcWrapper) IsPrimaryPackage() bool {
	_, ok := envvar.Lookup(primaryPackageVar)
	return ok
}

// BinCrateName returns the binary target name cargo is building, when this
// unit is a named bin target
func (w *RustcWrapper) BinCrateName() (string, bool) {
	v, ok := envvar.Lookup(binNameVar)
	if !ok {
		return "", false
	}
	return v.Value, true
}

// IsBinCrate reports whether this unit is compiled as a bin crate. cargo
// passes the crate type explicitly on the rustc command line for bin targets
// and build scripts alike, so the argument list is the authoritative signal.
func (w *RustcWrapper) IsBinCrate() bool {
	for _, t := range w.CrateTypes() {
		if t == "bin" {
			return true
		}
	}
	return false
}

// IsBuildScript reports whether this unit is the project's build script:
// a bin crate that cargo did not give a bin target name.
func (w *RustcWrapper) IsBuildScript() bool {
	_, named := w.BinCrateName()
	return w.IsBinCrate() && !named
}

// CrateName returns the --crate-name argument, when present
func (w *RustcWrapper) CrateName() (string, bool) {
	return w.argValue("--crate-name")
}

// CrateTypes returns every crate type named in the argument list
func (w *RustcWrapper) CrateTypes() []string {
	var types []string
	compileArgs := w.compileArgs()
	for i := 0; i < len(compileArgs); i++ {
		arg := compileArgs[i]
		var value string
		switch {
		case arg == "--crate-type" && i+1 < len(compileArgs):
			value = compileArgs[i+1]
			i++
		case strings.HasPrefix(arg, "--crate-type="):
			value = strings.TrimPrefix(arg, "--crate-type=")
		default:
			continue
		}
		for _, t := range strings.Split(value, ",") {
			if t != "" {
				types = append(types, t)
			}
		}
	}
	return types
}

// RustcArgs returns the unit's compile arguments with the sysroot appended,
// ready for a compiler driver that does not know its own sysroot
func (w *RustcWrapper) RustcArgs() []string {
	args := append([]string(nil), w.compileArgs()...)
	return append(args, "--sysroot", w.sysroot.Value)
}

// RunRustc forwards the unit verbatim to the real compiler driver.
// Its exit code propagates as this process's own exit code on failure.
func (w *RustcWrapper) RunRustc() error {
	if len(w.args) == 0 {
		return fmt.Errorf("rustc-role invocation carries no compiler driver path")
	}
	return subproc.New(w.args[0], "RUSTC").Run(func(cmd *exec.Cmd) error {
		cmd.Args = append(cmd.Args, w.compileArgs()...)
		return nil
	})
}

// compileArgs returns the arguments after the real compiler driver path
func (w *RustcWrapper) compileArgs() []string {
	if len(w.args) <= 1 {
		return nil
	}
	return w.args[1:]
}

func (w *RustcWrapper) argValue(flag string) (string, bool) {
	compileArgs := w.compileArgs()
	for i, arg := range compileArgs {
		if arg == flag && i+1 < len(compileArgs) {
			return compileArgs[i+1], true
		}
		if strings.HasPrefix(arg, flag+"=") {
			return strings.TrimPrefix(arg, flag+"="), true
		}
	}
	return "", false
}
