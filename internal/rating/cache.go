package rating

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/magdaddy/openfairdb/internal/entity"
)

// Source provides the full data set for a batch aggregation pass.
type Source interface {
	AllEntries(ctx context.Context) ([]entity.Entry, error)
	AllRatings(ctx context.Context) ([]entity.Rating, error)
}

// EntrySource provides the ratings of a single entry.
type EntrySource interface {
	RatingsOfEntry(ctx context.Context, entryID string) ([]entity.Rating, error)
}

// minChunkSize keeps tiny data sets from being split across many goroutines.
const minChunkSize = 64

// Cache holds the aggregated rating of every known entry.
// It is owned by the service that drives search and is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	ratings map[string]entity.AvgRatingValue
	workers int
}

// NewCache creates an empty cache. workers bounds the parallelism of Refresh;
// values <= 0 use runtime.NumCPU().
func NewCache(workers int) *Cache {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Cache{
		ratings: make(map[string]entity.AvgRatingValue),
		workers: workers,
	}
}

// Get returns the cached rating of an entry.
func (c *Cache) Get(entryID string) (entity.AvgRatingValue, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.ratings[entryID]
	return v, ok
}

// GetOrDefault returns the cached rating or zero if the entry is unknown.
func (c *Cache) GetOrDefault(entryID string) entity.AvgRatingValue {
	v, _ := c.Get(entryID)
	return v
}

// Set stores the rating of an entry.
func (c *Cache) Set(entryID string, v entity.AvgRatingValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ratings[entryID] = v
}

// Delete forgets an entry.
func (c *Cache) Delete(entryID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ratings, entryID)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ratings)
}

// Snapshot returns a copy of all cached ratings.
func (c *Cache) Snapshot() map[string]entity.AvgRatingValue {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]entity.AvgRatingValue, len(c.ratings))
	for k, v := range c.ratings {
		out[k] = v
	}
	return out
}

// Refresh recomputes the rating of every entry of src and replaces the cache
// content. On error the previous content is kept.
func (c *Cache) Refresh(ctx context.Context, src Source) error {
	start := time.Now()

	entries, err := src.AllEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to load entries: %w", err)
	}
	ratings, err := src.AllRatings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load ratings: %w", err)
	}
	byEntry := GroupByEntry(ratings)

	chunkSize := (len(entries) + c.workers - 1) / c.workers
	if chunkSize < minChunkSize {
		chunkSize = minChunkSize
	}

	var mu sync.Mutex
	fresh := make(map[string]entity.AvgRatingValue, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for lo := 0; lo < len(entries); lo += chunkSize {
		chunk := entries[lo:min(lo+chunkSize, len(entries))]
		g.Go(func() error {
			local := make(map[string]entity.AvgRatingValue, len(chunk))
			for i := range chunk {
				if err := gctx.Err(); err != nil {
					return err
				}
				id := chunk[i].ID
				local[id] = Aggregate(id, byEntry[id])
			}
			mu.Lock()
			for k, v := range local {
				fresh[k] = v
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("rating aggregation aborted: %w", err)
	}

	c.mu.Lock()
	c.ratings = fresh
	c.mu.Unlock()

	slog.Info("rating_cache_refreshed",
		slog.Int("entries", len(entries)),
		slog.Int("ratings", len(ratings)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// RefreshEntry recomputes and stores the rating of a single entry.
func (c *Cache) RefreshEntry(ctx context.Context, src EntrySource, entryID string) (entity.AvgRatingValue, error) {
	ratings, err := src.RatingsOfEntry(ctx, entryID)
	if err != nil {
		return 0, fmt.Errorf("failed to load ratings of entry %s: %w", entryID, err)
	}
	avg := Aggregate(entryID, ratings)
	c.Set(entryID, avg)
	return avg, nil
}
