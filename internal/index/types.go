// Package index is the entry search index: a derived, rebuildable projection
// of the entry repository supporting geospatial, text, category and tag
// filtering, ranked by the aggregated rating.
//
// The index is backed by bleve. All access from the rest of the program goes
// through SearchEngine, which serializes mutations and queries.
package index

import (
	"context"

	"github.com/magdaddy/openfairdb/internal/entity"
	"github.com/magdaddy/openfairdb/internal/geo"
)

// EntryGateway resolves index matches back to full entries.
// The category and tag hints are the values stored in the index; an
// implementation may use them to skip its own relation lookups.
type EntryGateway interface {
	GetEntryWithRelations(ctx context.Context, id string, categories, tags []string) (*entity.Entry, error)
}

// Query describes a search. All clauses are optional and combined with AND.
type Query struct {
	// BBox restricts results to a region. May wrap the antimeridian.
	BBox *geo.BoundingBox
	// Text is matched against title and description.
	Text string
	// Categories matches entries having at least one of the categories.
	Categories []string
	// Tags matches entries having at least one of the tags.
	Tags []string
}

// Result is a resolved search hit.
type Result struct {
	Entry  entity.Entry
	Rating entity.AvgRatingValue
}

// Indexer is the mutation capability of the index.
// Mutations are buffered and become visible to queries on Commit.
type Indexer interface {
	Upsert(entry *entity.Entry, rating entity.AvgRatingValue) error
	Remove(id string) error
	Commit() error
}

// Searcher is the query capability of the index.
type Searcher interface {
	Search(ctx context.Context, entries EntryGateway, q Query, limit int) ([]Result, error)
}

// Engine is implemented by the concrete index.
type Engine interface {
	Indexer
	Searcher
	// Count returns the number of committed documents.
	Count() (uint64, error)
	// IDs returns the ids of all committed documents.
	IDs(ctx context.Context) ([]string, error)
	// Pending returns the number of buffered, uncommitted operations.
	Pending() int
	Close() error
}

// Recorder receives notifications about degraded queries.
type Recorder interface {
	RecordDegraded(reason string)
}

// Degradation reasons reported to the Recorder.
const (
	DegradedTextParse     = "text_parse"
	DegradedMissingID     = "missing_id"
	DegradedEntryNotFound = "entry_not_found"
)

// Options configures an EntryIndex.
type Options struct {
	// TextQueryCacheSize is the number of parsed free-text queries kept in memory.
	TextQueryCacheSize int
	// Recorder is optional.
	Recorder Recorder
}

// DefaultTextQueryCacheSize is used when Options.TextQueryCacheSize is not positive.
const DefaultTextQueryCacheSize = 256

// DefaultOptions returns the default index options.
func DefaultOptions() Options {
	return Options{TextQueryCacheSize: DefaultTextQueryCacheSize}
}
