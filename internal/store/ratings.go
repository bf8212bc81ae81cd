package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	ofdberrors "github.com/magdaddy/openfairdb/internal/errors"
	"github.com/magdaddy/openfairdb/internal/entity"
)

const ratingColumns = `id, entry_id, created, title, value, context, source`

// SaveRating inserts or replaces a rating. The rated entry must exist.
func (s *Store) SaveRating(ctx context.Context, r *entity.Rating) error {
	if r.ID == "" || r.EntryID == "" {
		return ofdberrors.ValidationError("rating needs an id and an entry id", nil)
	}
	if !r.Value.IsValid() {
		return ofdberrors.ValidationError(fmt.Sprintf("rating value %d out of range", r.Value), nil)
	}
	ratingCtx, err := entity.ParseRatingContext(string(r.Context))
	if err != nil {
		return ofdberrors.ValidationError(fmt.Sprintf("invalid rating context %q", r.Context), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM entries WHERE id = ?`, r.EntryID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("entry", r.EntryID)
	}
	if err != nil {
		return storeFailed("failed to look up rated entry", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO ratings (`+ratingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.EntryID, r.Created, r.Title, int(r.Value), string(ratingCtx), r.Source)
	if err != nil {
		return storeFailed(fmt.Sprintf("failed to save rating %s", r.ID), err)
	}
	return nil
}

// AllRatings returns every rating, ordered by entry and creation time.
func (s *Store) AllRatings(ctx context.Context) ([]entity.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.queryRatings(ctx, `SELECT `+ratingColumns+` FROM ratings ORDER BY entry_id, created, id`)
}

// RatingsOfEntry returns the ratings of one entry.
func (s *Store) RatingsOfEntry(ctx context.Context, entryID string) ([]entity.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.queryRatings(ctx,
		`SELECT `+ratingColumns+` FROM ratings WHERE entry_id = ? ORDER BY created, id`, entryID)
}

func (s *Store) queryRatings(ctx context.Context, query string, args ...any) ([]entity.Rating, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeFailed("failed to query ratings", err)
	}
	defer rows.Close()

	var ratings []entity.Rating
	for rows.Next() {
		var r entity.Rating
		var value int
		var ctxName string
		if err := rows.Scan(&r.ID, &r.EntryID, &r.Created, &r.Title, &value, &ctxName, &r.Source); err != nil {
			return nil, storeFailed("failed to scan rating", err)
		}
		r.Value = entity.RatingValue(value)
		r.Context = entity.RatingContext(ctxName)
		ratings = append(ratings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFailed("failed to iterate ratings", err)
	}
	return ratings, nil
}
