package cmd

import (
	"github.com/spf13/cobra"

	"github.com/magdaddy/openfairdb/internal/output"
	"github.com/magdaddy/openfairdb/internal/store"
)

// statsJSON is the --json representation of the stats command.
type statsJSON struct {
	IndexPath      string `json:"index_path"`
	StorePath      string `json:"store_path"`
	IndexedEntries uint64 `json:"indexed_entries"`
	StoredEntries  int    `json:"stored_entries"`
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index and store statistics",
		Long: `Show the number of committed index documents next to the number of
entries in the store. A difference means the index needs a reindex.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			stats := statsJSON{
				IndexPath: opts.cfg.Index.Path,
				StorePath: opts.cfg.Store.Path,
			}

			repo, err := store.Open(opts.cfg.Store.Path)
			if err != nil {
				return err
			}
			stats.StoredEntries, err = repo.CountEntries(cmd.Context())
			_ = repo.Close()
			if err != nil {
				return err
			}

			svc, err := opts.openService()
			if err != nil {
				return err
			}
			defer func() {
				if cerr := svc.Close(); err == nil {
					err = cerr
				}
			}()
			if stats.IndexedEntries, err = svc.Count(); err != nil {
				return err
			}

			if jsonOutput {
				return output.JSON(cmd.OutOrStdout(), stats)
			}
			out := output.New(cmd.OutOrStdout())
			out.Status("📊", "Search index")
			out.Field("index", 15, orInMemory(stats.IndexPath))
			out.Field("store", 15, orInMemory(stats.StorePath))
			out.Field("indexed entries", 15, stats.IndexedEntries)
			out.Field("stored entries", 15, stats.StoredEntries)
			if uint64(stats.StoredEntries) != stats.IndexedEntries {
				out.Warningf("Index and store differ, run 'ofdb-search reindex'")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output statistics as JSON")
	return cmd
}

func orInMemory(path string) string {
	if path == "" {
		return "(in memory)"
	}
	return path
}
