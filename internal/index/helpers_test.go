package index

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	ofdberrors "github.com/magdaddy/openfairdb/internal/errors"
	"github.com/magdaddy/openfairdb/internal/entity"
)

// fakeGateway resolves entries from a map and remembers the hints it got.
type fakeGateway struct {
	mu      sync.Mutex
	entries map[string]entity.Entry
	hints   map[string][2][]string
}

func newFakeGateway(entries ...entity.Entry) *fakeGateway {
	g := &fakeGateway{entries: map[string]entity.Entry{}, hints: map[string][2][]string{}}
	for _, e := range entries {
		g.entries[e.ID] = e
	}
	return g
}

func (g *fakeGateway) GetEntryWithRelations(_ context.Context, id string, categories, tags []string) (*entity.Entry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hints[id] = [2][]string{categories, tags}
	e, ok := g.entries[id]
	if !ok {
		return nil, ofdberrors.New(ofdberrors.ErrCodeEntryNotFound, fmt.Sprintf("entry %s not found", id), nil)
	}
	return &e, nil
}

// countingRecorder counts degradation reasons.
type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) RecordDegraded(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[reason]++
}

func (r *countingRecorder) count(reason string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[reason]
}

func entryAt(id string, lat, lng float64) entity.Entry {
	return entity.Entry{
		ID:       id,
		Title:    "Entry " + id,
		Location: entity.Location{Lat: lat, Lng: lng},
	}
}

func newTestIndex(t *testing.T) *EntryIndex {
	t.Helper()
	idx, err := NewInMemory(DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

// indexEntries upserts all entries with the given ratings and commits.
func indexEntries(t *testing.T, idx Indexer, entries []entity.Entry, ratings map[string]entity.AvgRatingValue) {
	t.Helper()
	for i := range entries {
		require.NoError(t, idx.Upsert(&entries[i], ratings[entries[i].ID]))
	}
	require.NoError(t, idx.Commit())
}

func resultIDs(results []Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Entry.ID
	}
	return ids
}
