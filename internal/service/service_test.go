package service

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magdaddy/openfairdb/internal/config"
	"github.com/magdaddy/openfairdb/internal/entity"
	ofdberrors "github.com/magdaddy/openfairdb/internal/errors"
	"github.com/magdaddy/openfairdb/internal/geo"
	"github.com/magdaddy/openfairdb/internal/index"
	"github.com/magdaddy/openfairdb/internal/searchquery"
	"github.com/magdaddy/openfairdb/internal/store"
	"github.com/magdaddy/openfairdb/internal/telemetry"
)

type fixture struct {
	svc     *Service
	repo    *store.Store
	metrics *telemetry.Metrics
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	repo, err := store.Open("")
	require.NoError(t, err)

	metrics := telemetry.NewMetrics()
	idx, err := index.NewInMemory(index.Options{Recorder: metrics})
	require.NoError(t, err)

	opts = append([]Option{
		WithMetrics(metrics),
		WithPatterns(telemetry.NewSearchPatterns(telemetry.DefaultPatternsConfig())),
		withCloser(repo.Close),
	}, opts...)
	svc, err := New(index.NewSearchEngine(idx), repo, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	return &fixture{svc: svc, repo: repo, metrics: metrics}
}

func (f *fixture) addEntry(t *testing.T, id string, lat, lng float64, tags ...string) {
	t.Helper()
	require.NoError(t, f.repo.SaveEntry(context.Background(), &entity.Entry{
		ID:       id,
		Title:    "Entry " + id,
		Location: entity.Location{Lat: lat, Lng: lng},
		Tags:     tags,
	}))
}

func (f *fixture) rate(t *testing.T, id, entryID string, v entity.RatingValue) {
	t.Helper()
	require.NoError(t, f.repo.SaveRating(context.Background(), &entity.Rating{
		ID: id, EntryID: entryID, Value: v, Context: entity.RatingContextFairness,
	}))
}

func ids(results []index.Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Entry.ID)
	}
	return out
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}

func TestReindex_OrdersByRating(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithReindexBatchSize(2))

	// Given: three entries with different ratings
	f.addEntry(t, "low", 10, 10)
	f.addEntry(t, "mid", 11, 11)
	f.addEntry(t, "top", 12, 12)
	f.rate(t, "r1", "top", 3)
	f.rate(t, "r2", "low", -3)

	// When: reindexing
	n, err := f.svc.Reindex(ctx)

	// Then: all entries are searchable, best rated first
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	results, err := f.svc.Search(ctx, searchquery.Request{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"top", "mid", "low"}, ids(results))
	assert.InDelta(t, 0.5, results[0].Rating.Float64(), 1e-6)

	count, err := f.svc.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
	assert.NoError(t, testutil.GatherAndCompare(f.metrics.Registry(), strings.NewReader(`
# HELP ofdb_indexed_entries Committed documents in the search index
# TYPE ofdb_indexed_entries gauge
ofdb_indexed_entries 3
`), "ofdb_indexed_entries"))
	assert.Equal(t, 3, f.svc.Ratings().Len())
}

func TestReindex_RemovesStaleDocuments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Given: an indexed, best rated entry that is later deleted from the repository
	f.addEntry(t, "gone", 10, 10)
	f.addEntry(t, "kept", 11, 11)
	f.addEntry(t, "broken", 12, 12)
	f.rate(t, "r1", "gone", 3)
	_, err := f.svc.Reindex(ctx)
	require.NoError(t, err)
	require.NoError(t, f.repo.DeleteEntry(ctx, "gone"))

	// And: an entry that can no longer be indexed
	require.NoError(t, f.repo.SaveEntry(ctx, &entity.Entry{
		ID: "broken", Title: "Entry broken", Location: entity.Location{Lat: 95, Lng: 12},
	}))

	// When: reindexing again
	n, err := f.svc.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Then: only documents of indexable repository entries remain
	count, err := f.svc.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	results, err := f.svc.Search(ctx, searchquery.Request{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, ids(results))
	_, ok := f.svc.Ratings().Get("gone")
	assert.False(t, ok)
}

func TestReindex_Cancelled(t *testing.T) {
	f := newFixture(t)
	f.addEntry(t, "a", 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Reindex(ctx)
	assert.Error(t, err)
}

func TestIndexEntry_And_RemoveEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addEntry(t, "a", 1, 1, "bio")

	// When: indexing a single entry after a new rating
	f.rate(t, "r1", "a", 2)
	require.NoError(t, f.svc.IndexEntry(ctx, "a"))

	results, err := f.svc.Search(ctx, searchquery.Request{Query: index.Query{Tags: []string{"bio"}}, Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 2.0/6.0, results[0].Rating.Float64(), 1e-6)

	// Then: removing makes it unsearchable and forgets its rating
	require.NoError(t, f.svc.RemoveEntry(ctx, "a"))
	results, err = f.svc.Search(ctx, searchquery.Request{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
	_, ok := f.svc.Ratings().Get("a")
	assert.False(t, ok)

	err = f.svc.IndexEntry(ctx, "ghost")
	assert.True(t, ofdberrors.HasCode(err, ofdberrors.ErrCodeEntryNotFound), err)
}

func TestSearch_Near(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addEntry(t, "far", 10, 10)
	f.addEntry(t, "near", 1, 1)
	f.addEntry(t, "best", 5, 5)
	f.rate(t, "r1", "best", 3)
	_, err := f.svc.Reindex(ctx)
	require.NoError(t, err)

	center := geo.NewMapPoint(0, 0)
	results, err := f.svc.Search(ctx, searchquery.Request{Limit: 10, Near: &center})

	require.NoError(t, err)
	assert.Equal(t, []string{"near", "best", "far"}, ids(results))
	assert.InDelta(t, 0.5, results[1].Rating.Float64(), 1e-6)
}

func TestSearch_RecordsPatterns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addEntry(t, "a", 1, 1, "bio")
	_, err := f.svc.Reindex(ctx)
	require.NoError(t, err)

	req, err := searchquery.Parse(searchquery.Params{Text: "#bio"}, searchquery.Limits{Default: 10})
	require.NoError(t, err)
	_, err = f.svc.Search(ctx, req)
	require.NoError(t, err)
	_, err = f.svc.Search(ctx, searchquery.Request{Query: index.Query{Text: "nowhere"}, Limit: 10})
	require.NoError(t, err)

	s := f.svc.SearchPatterns()
	assert.Equal(t, int64(2), s.TotalSearches)
	assert.Equal(t, int64(1), s.KindCounts[telemetry.SearchKindFacet])
	assert.Equal(t, []string{"nowhere"}, s.ZeroResultSearches)
}

func TestSearch_UnresolvableEntryIsSkipped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addEntry(t, "a", 1, 1)
	f.addEntry(t, "b", 2, 2)
	_, err := f.svc.Reindex(ctx)
	require.NoError(t, err)

	// Given: an entry deleted from the repository but still indexed
	require.NoError(t, f.repo.DeleteEntry(ctx, "b"))

	results, err := f.svc.Search(ctx, searchquery.Request{Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(results))
	assert.NoError(t, testutil.GatherAndCompare(f.metrics.Registry(), strings.NewReader(`
# HELP ofdb_search_degraded_total Searches that dropped a clause or a result
# TYPE ofdb_search_degraded_total counter
ofdb_search_degraded_total{reason="entry_not_found"} 1
`), "ofdb_search_degraded_total"))
}

func TestRatingOf_Clamps(t *testing.T) {
	f := newFixture(t)
	f.svc.Ratings().Set("x", 7)

	assert.Equal(t, entity.AvgRatingMax, f.svc.ratingOf("x"))
	assert.Equal(t, entity.AvgRatingValue(0), f.svc.ratingOf("unknown"))
}

func TestOpen_FromConfig(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := config.NewConfig()
	cfg.Index.Path = filepath.Join(dir, "index")
	cfg.Store.Path = filepath.Join(dir, "ofdb.sqlite")

	svc, err := Open(cfg)
	require.NoError(t, err)
	require.NotNil(t, svc.Metrics())

	// Then: the index directory is owned until Close
	_, err = Open(cfg)
	assert.True(t, ofdberrors.HasCode(err, ofdberrors.ErrCodeIndexLocked), err)

	n, err := svc.Reindex(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, svc.Close())

	svc, err = Open(cfg)
	require.NoError(t, err)
	require.NoError(t, svc.Close())
}
