// Package commands provides the CLI commands for stagerouter.
package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/dshills/stagerouter/internal/config"
	"github.com/dshills/stagerouter/internal/logging"
)

// Version information (set via ldflags during build).
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// env holds what the persistent flags resolve to.
type env struct {
	fs      afero.Fs
	environ []string

	configPath string
	logLevel   string
	pretty     bool
	noColor    bool

	cfg    *config.Config
	logger zerolog.Logger
}

// NewRootCmd builds the command tree. Files are read from fs and
// STAGEROUTER_* overrides from environ.
func NewRootCmd(fs afero.Fs, environ []string) *cobra.Command {
	e := &env{fs: fs, environ: environ, logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "stagerouter",
		Short: "Run and inspect staged event routing scenarios",
		Long: `stagerouter drives a staged publish/subscribe event router.

Models and observers are Lua scripts. Observer handlers run in three
phases per event: preview, normal and, when a normal handler commits,
committed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.resolve(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&e.configPath, "config", "c", "", "Path to configuration file (.yaml, .toml, .json, .jsonc)")
	root.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "Log level (debug|info|warn|error|off)")
	root.PersistentFlags().BoolVar(&e.pretty, "pretty", false, "Human-readable log output")
	root.PersistentFlags().BoolVar(&e.noColor, "no-color", false, "Disable coloured output")

	root.AddCommand(newRunCmd(e), newInspectCmd(e), newVersionCmd())
	return root
}

// Execute runs the root command against the OS file system.
func Execute() error {
	return NewRootCmd(afero.NewOsFs(), os.Environ()).Execute()
}

// resolve loads the configuration and applies overrides: file, then
// environment, then flags.
func (e *env) resolve(cmd *cobra.Command) error {
	cfg := config.Default()
	if e.configPath != "" {
		loaded, err := config.Load(e.fs, e.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := config.ApplyEnv(cfg, e.environ); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = e.logLevel
	}
	if flags.Changed("pretty") {
		cfg.Logging.Pretty = e.pretty
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	if e.noColor {
		color.NoColor = true
	}

	e.cfg = cfg
	e.logger = logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		Output:  cmd.ErrOrStderr(),
		Pretty:  cfg.Logging.Pretty,
		NoColor: color.NoColor,
	})
	return nil
}
