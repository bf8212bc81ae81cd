package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ofdberrors "github.com/magdaddy/openfairdb/internal/errors"
	"github.com/magdaddy/openfairdb/internal/entity"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleEntry(id string) *entity.Entry {
	return &entity.Entry{
		ID:          id,
		Version:     2,
		Title:       "Repair Cafe " + id,
		Description: "Fix things together",
		Location: entity.Location{
			Lat:     48.77,
			Lng:     9.18,
			Address: &entity.Address{Street: "Hauptstr. 1", City: "Stuttgart"},
		},
		Categories: []string{"c2", "c1"},
		Tags:       []string{"repair", "diy"},
	}
}

func TestStore_SaveAndGetEntry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Given: a saved entry
	require.NoError(t, s.SaveEntry(ctx, sampleEntry("a")))

	// When: loading it
	got, err := s.GetEntry(ctx, "a")

	// Then: every field round trips, relations come back sorted
	require.NoError(t, err)
	assert.Equal(t, "Repair Cafe a", got.Title)
	assert.Equal(t, uint64(2), got.Version)
	assert.InDelta(t, 48.77, got.Location.Lat, 1e-9)
	require.NotNil(t, got.Location.Address)
	assert.Equal(t, "Stuttgart", got.Location.Address.City)
	assert.Equal(t, []string{"c1", "c2"}, got.Categories)
	assert.Equal(t, []string{"diy", "repair"}, got.Tags)
}

func TestStore_SaveEntryReplacesRelations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := sampleEntry("a")
	require.NoError(t, s.SaveEntry(ctx, e))

	e.Tags = []string{"bio"}
	e.Categories = nil
	e.Location.Address = nil
	require.NoError(t, s.SaveEntry(ctx, e))

	got, err := s.GetEntry(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"bio"}, got.Tags)
	assert.Empty(t, got.Categories)
	assert.Nil(t, got.Location.Address)

	n, err := s.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_GetEntryWithRelationsUsesHints(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SaveEntry(ctx, sampleEntry("a")))

	got, err := s.GetEntryWithRelations(ctx, "a", []string{"hinted"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"hinted"}, got.Categories)
	assert.Nil(t, got.Tags)
}

func TestStore_MissingEntry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetEntry(ctx, "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, ofdberrors.HasCode(err, ofdberrors.ErrCodeEntryNotFound))

	err = s.DeleteEntry(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_DeleteEntryCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SaveEntry(ctx, sampleEntry("a")))
	require.NoError(t, s.SaveEntry(ctx, sampleEntry("b")))
	require.NoError(t, s.SaveRating(ctx, &entity.Rating{
		ID: "r1", EntryID: "a", Created: 1, Value: 2, Context: entity.RatingContextFairness,
	}))

	require.NoError(t, s.DeleteEntry(ctx, "a"))

	ratings, err := s.AllRatings(ctx)
	require.NoError(t, err)
	assert.Empty(t, ratings)

	entries, err := s.AllEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].ID)
	assert.Equal(t, []string{"diy", "repair"}, entries[0].Tags)
}

func TestStore_Ratings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SaveEntry(ctx, sampleEntry("a")))
	require.NoError(t, s.SaveEntry(ctx, sampleEntry("b")))

	tests := []struct {
		name    string
		rating  entity.Rating
		wantErr string
	}{
		{"valid", entity.Rating{ID: "1", EntryID: "a", Created: 2, Value: 3, Context: "Diversity"}, ""},
		{"second", entity.Rating{ID: "2", EntryID: "a", Created: 1, Value: -1, Context: entity.RatingContextHumanity}, ""},
		{"other entry", entity.Rating{ID: "3", EntryID: "b", Created: 1, Value: 0, Context: entity.RatingContextSolidarity}, ""},
		{"value out of range", entity.Rating{ID: "4", EntryID: "a", Value: 4, Context: entity.RatingContextFairness}, ofdberrors.ErrCodeInvalidInput},
		{"unknown context", entity.Rating{ID: "5", EntryID: "a", Value: 1, Context: "taste"}, ofdberrors.ErrCodeInvalidInput},
		{"unknown entry", entity.Rating{ID: "6", EntryID: "ghost", Value: 1, Context: entity.RatingContextFairness}, ofdberrors.ErrCodeEntryNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.rating
			err := s.SaveRating(ctx, &r)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, ofdberrors.HasCode(err, tt.wantErr), err)
		})
	}

	ratings, err := s.RatingsOfEntry(ctx, "a")
	require.NoError(t, err)
	require.Len(t, ratings, 2)
	assert.Equal(t, "2", ratings[0].ID)
	assert.Equal(t, entity.RatingContextDiversity, ratings[1].Context)
	assert.Equal(t, entity.RatingValue(3), ratings[1].Value)

	all, err := s.AllRatings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStore_FileBacked(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "ofdb.sqlite")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveEntry(ctx, sampleEntry("a")))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.GetEntry(ctx, "a")
	assert.True(t, ofdberrors.HasCode(err, ofdberrors.ErrCodeStoreFailed))

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	got, err := s.GetEntry(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
}
