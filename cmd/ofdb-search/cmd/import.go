package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/magdaddy/openfairdb/internal/entity"
	ofdberrors "github.com/magdaddy/openfairdb/internal/errors"
	"github.com/magdaddy/openfairdb/internal/output"
	"github.com/magdaddy/openfairdb/internal/store"
)

// importFile is the JSON layout read by the import command.
type importFile struct {
	Entries []importEntry  `json:"entries"`
	Ratings []importRating `json:"ratings"`
}

type importEntry struct {
	ID          string   `json:"id"`
	Version     uint64   `json:"version"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Street      string   `json:"street"`
	Zip         string   `json:"zip"`
	City        string   `json:"city"`
	Country     string   `json:"country"`
	Categories  []string `json:"categories"`
	Tags        []string `json:"tags"`
}

type importRating struct {
	ID      string `json:"id"`
	EntryID string `json:"entry_id"`
	Created int64  `json:"created"`
	Title   string `json:"title"`
	Value   int8   `json:"value"`
	Context string `json:"context"`
	Source  string `json:"source"`
}

func (e importEntry) toEntity() *entity.Entry {
	out := &entity.Entry{
		ID:          e.ID,
		Version:     e.Version,
		Title:       e.Title,
		Description: e.Description,
		Location:    entity.Location{Lat: e.Lat, Lng: e.Lng},
		Categories:  e.Categories,
		Tags:        e.Tags,
	}
	addr := entity.Address{Street: e.Street, Zip: e.Zip, City: e.City, Country: e.Country}
	if !addr.IsEmpty() {
		out.Location.Address = &addr
	}
	return out
}

func (r importRating) toEntity() *entity.Rating {
	return &entity.Rating{
		ID:      r.ID,
		EntryID: r.EntryID,
		Created: r.Created,
		Title:   r.Title,
		Value:   entity.RatingValue(r.Value),
		Context: entity.RatingContext(r.Context),
		Source:  r.Source,
	}
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var reindex bool

	cmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Load entries and ratings into the entry store",
		Long: `Load entries and ratings from a JSON file of the form
  {"entries": [{"id": "...", "title": "...", "lat": 48.7, "lng": 9.1, "tags": ["bio"]}],
   "ratings": [{"id": "...", "entry_id": "...", "value": 2, "context": "fairness"}]}
into the entry store. Existing entries with the same id are replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, m, err := importData(cmd, opts, args[0])
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())
			out.Successf("Imported %d entries and %d ratings", n, m)
			if !reindex {
				return nil
			}
			return newReindexCmd(opts).RunE(cmd, nil)
		},
	}

	cmd.Flags().BoolVar(&reindex, "reindex", true, "Rebuild the search index after importing")
	return cmd
}

func importData(cmd *cobra.Command, opts *rootOptions, path string) (entries, ratings int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, ofdberrors.IOError(fmt.Sprintf("failed to read %s", path), err)
	}
	var file importFile
	if err := json.Unmarshal(data, &file); err != nil {
		return 0, 0, ofdberrors.ValidationError(fmt.Sprintf("failed to parse %s", path), err)
	}

	repo, err := store.Open(opts.cfg.Store.Path)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if cerr := repo.Close(); err == nil {
			err = cerr
		}
	}()

	ctx := cmd.Context()
	for _, e := range file.Entries {
		if err := repo.SaveEntry(ctx, e.toEntity()); err != nil {
			return entries, ratings, err
		}
		entries++
	}
	for _, r := range file.Ratings {
		if err := repo.SaveRating(ctx, r.toEntity()); err != nil {
			return entries, ratings, err
		}
		ratings++
	}
	return entries, ratings, nil
}
