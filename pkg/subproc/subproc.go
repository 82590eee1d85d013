// pkg/subproc/subproc.go
package subproc

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rustprobe/rustprobe/pkg/envvar"
)

// exit seam so tests can observe forwarded codes without killing the test process
var osExit = os.Exit

// Tool is an external program invoked by the wrapper. Its path comes from an
// override environment variable when set, otherwise the bare name is resolved
// through the OS search path at spawn time.
type Tool struct {
	path string
}

// New creates a tool named name, honoring overrideVar when it is set and non-empty
func New(name, overrideVar string) *Tool {
	path := name
	if v, ok := envvar.Lookup(overrideVar); ok && v.Value != "" {
		path = v.Value
	}
	return &Tool{path: path}
}

// Cargo is the package manager, overridable via $CARGO
func Cargo() *Tool {
	return New("cargo", "CARGO")
}

// Rustc is the compiler driver, overridable via $RUSTC
func Rustc() *Tool {
	return New("rustc", "RUSTC")
}

// Path returns the program path or name the tool will spawn
func (t *Tool) Path() string {
	return t.path
}

// Command builds a child process description for the tool
func (t *Tool) Command(args ...string) *exec.Cmd {
	return exec.Command(t.path, args...)
}

// Output runs the tool with args and captures its standard output.
// Standard error passes through to the caller's stderr.
func (t *Tool) Output(args ...string) ([]byte, error) {
	cmd := t.Command(args...)
	cmd.Stderr = os.Stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", strings.Join(cmd.Args, " "), err)
	}
	return out, nil
}

// Run spawns the tool with inherited stdio and blocks until it exits.
// The configure callback may add arguments, environment bindings, or a
// working directory before the spawn; a configure error propagates without
// spawning anything.
//
// A child that exits non-zero does not return control to the caller: Run
// prints a diagnostic and terminates the current process with the child's
// own exit code (1 when no code is available), so the wrapped pipeline's
// failure signaling reaches the outside world unchanged.
func (t *Tool) Run(configure func(*exec.Cmd) error) error {
	cmd := t.Command()
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if configure != nil {
		if err := configure(cmd); err != nil {
			return err
		}
	}
	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintf(os.Stderr, "error (%v) running: %s\n", err, strings.Join(cmd.Args, " "))
		code := exitErr.ExitCode()
		if code < 0 {
			code = 1
		}
		osExit(code)
		return nil
	}
	return fmt.Errorf("running %s: %w", t.path, err)
}
