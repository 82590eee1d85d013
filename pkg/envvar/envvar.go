// pkg/envvar/envvar.go
package envvar

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// ErrNotSet indicates a required environment variable is absent
var ErrNotSet = errors.New("environment variable not set")

// Var is a single environment binding, the only channel for state passed
// between the cargo role and the rustc role of the wrapper.
type Var struct {
	Key   string
	Value string
}

// New creates a binding for key with the given value
func New(key, value string) Var {
	return Var{Key: key, Value: value}
}

// Lookup reads key from the live process environment. The boolean reports
// whether the variable was set at all; an empty value with ok=true is a
// legitimate binding.
func Lookup(key string) (Var, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return Var{}, false
	}
	return Var{Key: key, Value: value}, true
}

// Require reads key and fails with ErrNotSet when it is absent. Callers in
// the rustc role use this for bindings the cargo role is contractually
// required to have set.
func Require(key string) (Var, error) {
	v, ok := Lookup(key)
	if !ok {
		return Var{}, fmt.Errorf("%s: %w", key, ErrNotSet)
	}
	return v, nil
}

// ApplyTo attaches the binding to a child process about to be spawned.
// The calling process's own environment is left untouched.
func (v Var) ApplyTo(cmd *exec.Cmd) {
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env, v.String())
}

// Export sets the binding on the current process. Only re-exec paths that
// replace the process image should need this; everything else goes through
// ApplyTo so state stays scoped to one child.
func (v Var) Export() error {
	return os.Setenv(v.Key, v.Value)
}

// Equal reports whether both key and value match
func (v Var) Equal(o Var) bool {
	return v.Key == o.Key && v.Value == o.Value
}

// String renders the binding in KEY=VALUE form
func (v Var) String() string {
	return v.Key + "=" + v.Value
}
