// internal/cli/build.go
package cli

import (
	"github.com/spf13/cobra"
)

var (
	buildMetadata    string
	buildRuntimePath string
	buildSetRuntime  bool
	buildRustflags   string
	buildCompress    bool
)

var buildCmd = &cobra.Command{
	Use:   "build [-- cargo args...]",
	Short: "Run an instrumented cargo build",
	Long: `Run cargo with rustprobe installed as the rustc wrapper.

Arguments after -- are forwarded verbatim to cargo; without them cargo is
invoked with its build subcommand.

Examples:
  rustprobe build --metadata target.meta
  rustprobe build --metadata target.meta --set-runtime
  rustprobe build --metadata target.meta -- build --release --workspace`,
	Args: cobra.ArbitraryArgs,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildMetadata, "metadata", "", "destination path for the instrumentation metadata file")
	buildCmd.Flags().StringVar(&buildRuntimePath, "runtime-path", "", "local path to the runtime crate (implies an offline cargo add)")
	buildCmd.Flags().BoolVar(&buildSetRuntime, "set-runtime", false, "register the runtime crate as an optional dependency first")
	buildCmd.Flags().StringVar(&buildRustflags, "rustflags", "", "extra RUSTFLAGS for the instrumented build")
	buildCmd.Flags().BoolVar(&buildCompress, "compress", false, "finalize the metadata file as an xz stream")
	buildCmd.MarkFlagRequired("metadata")
}

func runBuild(cmd *cobra.Command, args []string) error {
	probe := &probeTool{
		cfg:          cfg,
		metadataPath: buildMetadata,
		runtimePath:  buildRuntimePath,
		setRuntime:   buildSetRuntime,
		rustflags:    buildRustflags,
		compress:     buildCompress || cfg.Compress,
		cargoArgs:    args,
		instrumenter: &recordingInstrumenter{},
	}
	return probe.run()
}
