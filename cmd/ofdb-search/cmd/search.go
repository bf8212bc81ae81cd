package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/magdaddy/openfairdb/internal/index"
	"github.com/magdaddy/openfairdb/internal/output"
	"github.com/magdaddy/openfairdb/internal/searchquery"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	bbox       string
	categories string
	tags       string
	near       string
	limit      int
	jsonOutput bool
}

// searchResultJSON is the --json representation of one result.
type searchResultJSON struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Categories  []string `json:"categories"`
	Tags        []string `json:"tags"`
	Rating      float64  `json:"rating"`
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search indexed entries",
		Long: `Search indexed entries by area, free text, categories and tags.
Results are ordered by rating, best first.

#tags in the text are used as tag filters. Several categories or tags
match entries having any of them.

Examples:
  ofdb-search search --bbox 48.7,9.1,48.8,9.3
  ofdb-search search "repair cafe" --tags diy
  ofdb-search search "#bio bakery" --limit 5 --json
  ofdb-search search --bbox -10,170,10,-170 --near 0,180`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, root, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.bbox, "bbox", "", "Bounding box swLat,swLng,neLat,neLng")
	cmd.Flags().StringVar(&opts.categories, "categories", "", "Comma separated category ids")
	cmd.Flags().StringVar(&opts.tags, "tags", "", "Comma separated tags")
	cmd.Flags().StringVar(&opts.near, "near", "", "Order results by distance to lat,lng")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")

	return cmd
}

func runSearch(cmd *cobra.Command, root *rootOptions, text string, opts searchOptions) (err error) {
	req, err := searchquery.Parse(searchquery.Params{
		BBox:       opts.bbox,
		Categories: opts.categories,
		Text:       text,
		Tags:       opts.tags,
		Limit:      opts.limit,
		Near:       opts.near,
	}, searchquery.Limits{
		Default: root.cfg.Search.DefaultLimit,
		Max:     root.cfg.Search.MaxLimit,
	})
	if err != nil {
		return err
	}

	svc, err := root.openService()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(); err == nil {
			err = cerr
		}
	}()

	results, err := svc.Search(cmd.Context(), req)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		return output.JSON(cmd.OutOrStdout(), toJSON(results))
	}
	printResults(output.New(cmd.OutOrStdout()), results)
	return nil
}

func toJSON(results []index.Result) []searchResultJSON {
	out := make([]searchResultJSON, 0, len(results))
	for _, r := range results {
		out = append(out, searchResultJSON{
			ID:          r.Entry.ID,
			Title:       r.Entry.Title,
			Description: r.Entry.Description,
			Lat:         r.Entry.Location.Lat,
			Lng:         r.Entry.Location.Lng,
			Categories:  nonNil(r.Entry.Categories),
			Tags:        nonNil(r.Entry.Tags),
			Rating:      r.Rating.Float64(),
		})
	}
	return out
}

func printResults(out *output.Writer, results []index.Result) {
	if len(results) == 0 {
		out.Status("🔍", "No entries found")
		return
	}
	out.Statusf("🔍", "%d entries", len(results))
	for i, r := range results {
		out.Newline()
		out.Status("", fmt.Sprintf("%d. %s", i+1, r.Entry.Title))
		out.Field("id", 10, r.Entry.ID)
		out.Field("rating", 10, fmt.Sprintf("%.2f", r.Rating.Float64()))
		out.Field("location", 10, fmt.Sprintf("%.5f, %.5f", r.Entry.Location.Lat, r.Entry.Location.Lng))
		out.Field("categories", 10, output.List(r.Entry.Categories))
		out.Field("tags", 10, output.List(r.Entry.Tags))
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
