// internal/cli/instrument.go
package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rustprobe/rustprobe"
	"github.com/rustprobe/rustprobe/pkg/config"
	"github.com/rustprobe/rustprobe/pkg/envvar"
	"github.com/rustprobe/rustprobe/pkg/metafile"
	"github.com/rustprobe/rustprobe/pkg/sysroot"
	"github.com/rustprobe/rustprobe/pkg/toolchain"
)

// compressVar tells the rustc role to finalize metadata as an xz stream.
// Like every other cross-role setting it travels through the environment.
const compressVar = "RUSTPROBE_COMPRESS"

// Instrumenter is the hook run on every instrumented compilation unit.
// Output written to out ends up in the metadata file; writing nothing is
// legal and leaves any previous metadata file untouched.
type Instrumenter interface {
	Instrument(unit *rustprobe.RustcWrapper, out io.Writer) error
}

// probeTool plays both halves of the wrapper protocol
type probeTool struct {
	cfg          *config.Config
	metadataPath string
	runtimePath  string
	setRuntime   bool
	rustflags    string
	compress     bool
	cargoArgs    []string
	instrumenter Instrumenter
}

var _ rustprobe.Wrapper = (*probeTool)(nil)

// newProbeFromEnv builds the rustc-role tool. Everything it needs beyond the
// config file arrives through the environment the cargo role prepared.
func newProbeFromEnv(cfg *config.Config) *probeTool {
	return &probeTool{
		cfg:          cfg,
		instrumenter: &recordingInstrumenter{},
	}
}

func (t *probeTool) run() error {
	return rustprobe.Run(t)
}

func (t *probeTool) debugf(format string, v ...interface{}) {
	if t.cfg != nil && t.cfg.Debug {
		log.New(os.Stderr, "rustprobe: ", 0).Printf(format, v...)
	}
}

// WrapCargo is the outer role: register the runtime dependency when asked,
// then run cargo set up to bounce every compilation unit back through this
// executable.
func (t *probeTool) WrapCargo(w *rustprobe.CargoWrapper) error {
	channel, err := toolchain.ChannelFromProject(".")
	if err != nil {
		return err
	}
	w.SetToolchainChannel(channel)

	t.debugf("sysroot: %s (%s)", w.Sysroot(), sysroot.Describe(w.Sysroot()))
	if channel != "" {
		t.debugf("toolchain channel: %s", channel)
	}

	if t.setRuntime {
		err := w.RunCargo(func(cmd *exec.Cmd) error {
			cmd.Args = append(cmd.Args, "add", "--optional", t.cfg.RuntimeCrate)
			if t.runtimePath != "" {
				runtimePath, err := filepath.Abs(t.runtimePath)
				if err != nil {
					return fmt.Errorf("resolving runtime path: %w", err)
				}
				cmd.Args = append(cmd.Args, "--offline", "--path", runtimePath)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	metadataPath, err := filepath.Abs(t.metadataPath)
	if err != nil {
		return fmt.Errorf("resolving metadata path: %w", err)
	}

	cargoArgs := t.cargoArgs
	if len(cargoArgs) == 0 {
		cargoArgs = []string{"build"}
	}
	if t.setRuntime {
		cargoArgs = spliceFeature(cargoArgs, t.cfg.RuntimeCrate)
	}

	rustflags := mergeRustflags(os.Getenv("RUSTFLAGS"), "-A warnings", t.cfg.Rustflags, t.rustflags)

	return w.RunCargoWithRustcWrapper(func(cmd *exec.Cmd) error {
		cmd.Args = append(cmd.Args, cargoArgs...)
		envvar.New("CARGO_TARGET_DIR", "rustprobe.target").ApplyTo(cmd)
		envvar.New("RUSTFLAGS", rustflags).ApplyTo(cmd)
		envvar.New(rustprobe.MetadataVar, metadataPath).ApplyTo(cmd)
		if t.compress {
			envvar.New(compressVar, "1").ApplyTo(cmd)
		}
		return nil
	})
}

// WrapRustc is the inner role, run once per compilation unit. Dependency
// crates and the build script pass straight through to the real rustc; units
// of the target project are compiled first and then instrumented, with the
// metadata file only materializing when the instrumenter produced output.
func (t *probeTool) WrapRustc(w *rustprobe.RustcWrapper) error {
	shouldInstrument := w.IsPrimaryPackage() && !w.IsBuildScript()
	if !shouldInstrument {
		return w.RunRustc()
	}

	if err := w.RunRustc(); err != nil {
		return err
	}

	metadata, err := envvar.Require(rustprobe.MetadataVar)
	if err != nil {
		return &rustprobe.Error{Op: "recovering rustc-role state", Key: rustprobe.MetadataVar, Err: err}
	}
	var opts []metafile.Option
	if _, ok := envvar.Lookup(compressVar); ok {
		opts = append(opts, metafile.WithCompression())
	}
	file, err := metafile.Create(metadata.Value, opts...)
	if err != nil {
		return err
	}
	if err := t.instrumenter.Instrument(w, file); err != nil {
		file.Discard()
		return err
	}
	return file.Close()
}

// spliceFeature enables a cargo feature right after the subcommand, so it
// lands before any trailing `--` separator in the user's cargo args
func spliceFeature(cargoArgs []string, feature string) []string {
	spliced := make([]string, 0, len(cargoArgs)+2)
	spliced = append(spliced, cargoArgs[0])
	spliced = append(spliced, "--features", feature)
	return append(spliced, cargoArgs[1:]...)
}

// mergeRustflags space-joins the non-empty flag sets
func mergeRustflags(sets ...string) string {
	var parts []string
	for _, s := range sets {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// recordingInstrumenter is the shipped instrumentation hook: it records one
// YAML document describing the compilation unit. Real analyses plug in by
// implementing Instrumenter instead.
type recordingInstrumenter struct{}

type unitRecord struct {
	Crate      string   `yaml:"crate"`
	CrateTypes []string `yaml:"crate_types,omitempty"`
	BinTarget  string   `yaml:"bin_target,omitempty"`
	Args       []string `yaml:"args"`
}

func (r *recordingInstrumenter) Instrument(unit *rustprobe.RustcWrapper, out io.Writer) error {
	crate, _ := unit.CrateName()
	binTarget, _ := unit.BinCrateName()
	record := unitRecord{
		Crate:      crate,
		CrateTypes: unit.CrateTypes(),
		BinTarget:  binTarget,
		Args:       unit.RustcArgs(),
	}
	data, err := yaml.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling unit record: %w", err)
	}
	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("writing unit record: %w", err)
	}
	return nil
}
