// Package service ties the entry repository, the rating cache and the search
// index together. It replaces process-wide state with one explicit object
// that owns all three.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magdaddy/openfairdb/internal/config"
	"github.com/magdaddy/openfairdb/internal/entity"
	"github.com/magdaddy/openfairdb/internal/geo"
	"github.com/magdaddy/openfairdb/internal/index"
	"github.com/magdaddy/openfairdb/internal/rating"
	"github.com/magdaddy/openfairdb/internal/searchquery"
	"github.com/magdaddy/openfairdb/internal/sorting"
	"github.com/magdaddy/openfairdb/internal/store"
	"github.com/magdaddy/openfairdb/internal/telemetry"
)

// Repository is the entry storage the service indexes from.
type Repository interface {
	rating.Source
	rating.EntrySource
	index.EntryGateway
	GetEntry(ctx context.Context, id string) (*entity.Entry, error)
}

// DefaultReindexBatchSize is the number of upserts between commits during
// Reindex when no other size is configured.
const DefaultReindexBatchSize = 1000

// Service is the search service context.
type Service struct {
	engine   *index.SearchEngine
	repo     Repository
	ratings  *rating.Cache
	metrics  *telemetry.Metrics
	patterns *telemetry.SearchPatterns

	batchSize int
	closers   []func() error
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPatterns sets the search pattern collector.
func WithPatterns(p *telemetry.SearchPatterns) Option {
	return func(s *Service) {
		s.patterns = p
	}
}

// WithRatingCache replaces the default rating cache.
func WithRatingCache(c *rating.Cache) Option {
	return func(s *Service) {
		s.ratings = c
	}
}

// WithReindexBatchSize sets the number of upserts between commits in Reindex.
func WithReindexBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// withCloser registers a resource released by Close after the engine.
func withCloser(fn func() error) Option {
	return func(s *Service) {
		s.closers = append(s.closers, fn)
	}
}

// New creates a service over an index engine and a repository.
func New(engine *index.SearchEngine, repo Repository, opts ...Option) (*Service, error) {
	if engine == nil || repo == nil {
		return nil, errors.New("service: nil engine or repository")
	}
	s := &Service{
		engine:    engine,
		repo:      repo,
		batchSize: DefaultReindexBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ratings == nil {
		s.ratings = rating.NewCache(0)
	}
	return s, nil
}

// Open builds a service from configuration: it opens the SQLite store and
// the index directory and wires metrics into both the index and the service.
func Open(cfg *config.Config) (*Service, error) {
	repo, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	metrics := telemetry.NewMetrics()
	idx, err := index.Open(cfg.Index.Path, index.Options{
		TextQueryCacheSize: cfg.Index.TextQueryCacheSize,
		Recorder:           metrics,
	})
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	return New(index.NewSearchEngine(idx), repo,
		WithMetrics(metrics),
		WithPatterns(telemetry.NewSearchPatterns(telemetry.DefaultPatternsConfig())),
		WithRatingCache(rating.NewCache(cfg.Ratings.Workers)),
		WithReindexBatchSize(cfg.Index.ReindexBatchSize),
		withCloser(repo.Close),
	)
}

// Ratings returns the rating cache.
func (s *Service) Ratings() *rating.Cache {
	return s.ratings
}

// Metrics returns the Prometheus collectors, possibly nil.
func (s *Service) Metrics() *telemetry.Metrics {
	return s.metrics
}

// SearchPatterns returns a snapshot of the recorded search patterns.
func (s *Service) SearchPatterns() *telemetry.PatternsSnapshot {
	return s.patterns.Snapshot()
}

// Reindex rebuilds the index from the repository. It refreshes the rating
// cache, upserts every entry with its rating and commits every batch size
// upserts and once at the end. Documents of entries no longer in the
// repository, or skipped because they cannot be indexed, are removed.
// It returns the number of indexed entries.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	start := time.Now()

	if err := s.ratings.Refresh(ctx, s.repo); err != nil {
		return 0, err
	}
	entries, err := s.repo.AllEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load entries: %w", err)
	}

	stale, err := s.engine.IDs(ctx)
	if err != nil {
		return 0, err
	}
	known := make(map[string]struct{}, len(entries))

	indexed, skipped := 0, 0
	for i := range entries {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		e := &entries[i]
		if err := s.engine.Upsert(e, s.ratingOf(e.ID)); err != nil {
			skipped++
			slog.Warn("reindex_entry_skipped",
				slog.String("id", e.ID),
				slog.String("error", err.Error()))
			continue
		}
		known[e.ID] = struct{}{}
		indexed++
		s.metrics.IndexOperation("upsert", 1)

		if indexed%s.batchSize == 0 {
			if err := s.commit(); err != nil {
				return indexed, err
			}
		}
	}

	removed := 0
	for _, id := range stale {
		if _, ok := known[id]; ok {
			continue
		}
		if err := s.engine.Remove(id); err != nil {
			return indexed, err
		}
		s.ratings.Delete(id)
		removed++
		s.metrics.IndexOperation("remove", 1)
	}
	if err := s.commit(); err != nil {
		return indexed, err
	}

	slog.Info("reindex_completed",
		slog.Int("indexed", indexed),
		slog.Int("skipped", skipped),
		slog.Int("removed", removed),
		slog.Duration("duration", time.Since(start)))
	return indexed, nil
}

// IndexEntry recomputes the rating of one entry and upserts it.
func (s *Service) IndexEntry(ctx context.Context, id string) error {
	e, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.ratings.RefreshEntry(ctx, s.repo, id); err != nil {
		return err
	}
	if err := s.engine.Upsert(e, s.ratingOf(id)); err != nil {
		return err
	}
	s.metrics.IndexOperation("upsert", 1)
	return s.commit()
}

// RemoveEntry removes one entry from the index and the rating cache.
func (s *Service) RemoveEntry(_ context.Context, id string) error {
	if err := s.engine.Remove(id); err != nil {
		return err
	}
	s.ratings.Delete(id)
	s.metrics.IndexOperation("remove", 1)
	return s.commit()
}

// Search runs a parsed request against the index and resolves the hits
// from the repository. With req.Near set, the rating-ordered hits are
// reordered by distance to that point.
func (s *Service) Search(ctx context.Context, req searchquery.Request) ([]index.Result, error) {
	start := time.Now()

	results, err := s.engine.Search(ctx, s.repo, req.Query, req.Limit)
	if err != nil {
		return nil, err
	}
	if req.Near != nil {
		results = sortByDistance(results, *req.Near)
	}

	latency := time.Since(start)
	s.metrics.ObserveSearch(latency, len(results))
	s.patterns.Record(telemetry.SearchEvent{
		Text: req.Query.Text,
		Tags: req.Query.Tags,
		Kind: telemetry.ClassifySearch(
			req.Query.Text != "",
			len(req.Query.Categories) > 0 || len(req.Query.Tags) > 0,
			req.Query.BBox != nil),
		ResultCount: len(results),
		Latency:     latency,
	})
	return results, nil
}

// Count returns the number of committed index documents.
func (s *Service) Count() (uint64, error) {
	return s.engine.Count()
}

// Close drops pending index operations, closes the index and then every
// other owned resource.
func (s *Service) Close() error {
	errs := []error{s.engine.Close()}
	for _, fn := range s.closers {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}

// ratingOf returns the cached rating of an entry, clamped to the valid
// range so a bad aggregate can never poison the index.
func (s *Service) ratingOf(id string) entity.AvgRatingValue {
	avg := s.ratings.GetOrDefault(id)
	if clamped := avg.Clamp(); clamped != avg {
		slog.Warn("rating_clamped",
			slog.String("id", id),
			slog.Float64("rating", avg.Float64()),
			slog.Float64("clamped", clamped.Float64()))
		return clamped
	}
	return avg
}

func (s *Service) commit() error {
	if err := s.engine.Commit(); err != nil {
		return err
	}
	s.metrics.IndexOperation("commit", 1)
	if n, err := s.engine.Count(); err == nil {
		s.metrics.SetIndexedEntries(n)
	}
	return nil
}

func sortByDistance(results []index.Result, center geo.MapPoint) []index.Result {
	entries := make([]entity.Entry, len(results))
	ratings := make(map[string]entity.AvgRatingValue, len(results))
	for i, r := range results {
		entries[i] = r.Entry
		ratings[r.Entry.ID] = r.Rating
	}
	sorting.SortByDistanceTo(entries, center)

	out := make([]index.Result, len(entries))
	for i, e := range entries {
		out[i] = index.Result{Entry: e, Rating: ratings[e.ID]}
	}
	return out
}
