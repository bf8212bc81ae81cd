package cmd

import (
	"fmt"
	"os"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/magdaddy/openfairdb/internal/logging"
)

func newLogsCmd() *cobra.Command {
	var (
		file    string
		level   string
		pattern string
		lines   int
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the last lines of the log file",
		Long: `Show the last lines of the JSON log file written with --debug or
logging.file, formatted for reading.

Examples:
  ofdb-search logs
  ofdb-search logs --level warn -n 100
  ofdb-search logs --grep 'search_(text|entry)'`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := logging.FindLogFile(file)
			if err != nil {
				return err
			}

			cfg := logging.ViewerConfig{
				Level:   level,
				NoColor: noColor || !isTerminalOutput(cmd),
			}
			if pattern != "" {
				re, err := regexp.Compile(pattern)
				if err != nil {
					return fmt.Errorf("invalid pattern: %w", err)
				}
				cfg.Pattern = re
			}

			viewer := logging.NewViewer(cfg, cmd.OutOrStdout())
			entries, err := viewer.Tail(path, lines)
			if err != nil {
				return err
			}
			viewer.Print(entries)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Log file (default: "+logging.DefaultLogPath()+")")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&pattern, "grep", "", "Only lines matching this regular expression")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines (0 for all)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colors")

	return cmd
}

func isTerminalOutput(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && logging.IsTerminal(f)
}
