// internal/cli/root.go
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustprobe/rustprobe"
	"github.com/rustprobe/rustprobe/pkg/config"
)

var (
	cfgFile string
	debug   bool
	cfg     *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "rustprobe",
	Short: "Instrument cargo builds without touching the project",
	Long: `rustprobe - transparent cargo build instrumentation

rustprobe runs a cargo build with itself installed as the rustc wrapper,
so every compilation unit of the target project passes through its
instrumentation hook. The project's own build configuration is never
modified.`,
	Version: "0.1.0",
}

// Execute runs the CLI. When this process is the nested rustc-role
// invocation arranged by an outer rustprobe, the arguments on the command
// line belong to rustc, not to us, so command parsing is skipped entirely
// and the process goes straight to the wrapper protocol.
func Execute() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating own executable: %w", err)
	}
	if rustprobe.DetectRole(exe) == rustprobe.RustcRole {
		initConfig()
		return rustprobe.Run(newProbeFromEnv(cfg))
	}
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/rustprobe/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Add commands
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	var err error
	cfg, err = config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		cfg = config.DefaultConfig()
	}

	if debug {
		cfg.Debug = true
	}
}
