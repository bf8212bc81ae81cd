package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/magdaddy/openfairdb/internal/output"
)

func newReindexCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from the entry store",
		Long: `Recompute the rating of every entry and write all entries of the store
into the search index.

The index directory is locked while reindexing; stop other ofdb-search
processes using the same index first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			svc, err := opts.openService()
			if err != nil {
				return err
			}
			defer func() {
				if cerr := svc.Close(); err == nil {
					err = cerr
				}
			}()

			start := time.Now()
			n, err := svc.Reindex(cmd.Context())
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Successf("Indexed %d entries in %s", n, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
