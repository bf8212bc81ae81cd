// Package cmd provides the CLI commands for ofdb-search.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/magdaddy/openfairdb/internal/config"
	"github.com/magdaddy/openfairdb/internal/logging"
	"github.com/magdaddy/openfairdb/internal/service"
	"github.com/magdaddy/openfairdb/pkg/version"
)

// skipConfigAnnotation marks commands that must work with a broken or
// missing configuration. They run on defaults if loading fails.
const skipConfigAnnotation = "skip-config"

// rootOptions is the state shared by all subcommands of one invocation.
type rootOptions struct {
	configPath string
	debug      bool

	cfg            *config.Config
	loggingCleanup func()
}

// NewRootCmd creates the root command of the ofdb-search CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   version.Name,
		Short: "Search index for the OpenFairDB entry map",
		Long: `ofdb-search maintains the search index of OpenFairDB entries and
queries it by area, free text, categories and tags, ranked by rating.

Configuration is read from ~/.config/ofdb-search/config.yaml and
.ofdb.yaml in the working directory, or from the file given with --config.`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.setup,
		PersistentPostRun: func(*cobra.Command, []string) { opts.teardown() },
	}
	cmd.SetVersionTemplate(version.Name + " version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default: user and project config)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to "+logging.DefaultLogPath())

	cmd.AddCommand(newReindexCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newImportCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// setup loads the configuration and installs the logger.
func (o *rootOptions) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := o.load()
	if err != nil {
		if cmd.Annotations[skipConfigAnnotation] == "" {
			return err
		}
		cfg = config.NewConfig()
	}
	o.cfg = cfg

	cleanup, err := logging.SetupDefault(logging.FromConfig(cfg.Logging, o.debug))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	o.loggingCleanup = cleanup

	if o.debug {
		slog.Debug("debug_logging_enabled",
			slog.String("version", version.Version),
			slog.String("index_path", cfg.Index.Path),
			slog.String("store_path", cfg.Store.Path))
	}
	return nil
}

func (o *rootOptions) load() (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(o.configPath)
	}
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return config.Load(wd)
}

func (o *rootOptions) teardown() {
	if o.loggingCleanup != nil {
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
}

// openService opens the store and index named by the loaded configuration.
func (o *rootOptions) openService() (*service.Service, error) {
	return service.Open(o.cfg)
}
