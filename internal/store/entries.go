package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	ofdberrors "github.com/magdaddy/openfairdb/internal/errors"
	"github.com/magdaddy/openfairdb/internal/entity"
)

const entryColumns = `id, version, title, description, lat, lng, street, zip, city, country`

// SaveEntry inserts or replaces an entry together with its categories and tags.
func (s *Store) SaveEntry(ctx context.Context, e *entity.Entry) error {
	if e.ID == "" {
		return ofdberrors.ValidationError("entry has no id", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeFailed("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	var street, zip, city, country sql.NullString
	if a := e.Location.Address; a != nil && !a.IsEmpty() {
		street = nullString(a.Street)
		zip = nullString(a.Zip)
		city = nullString(a.City)
		country = nullString(a.Country)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			version = excluded.version,
			title = excluded.title,
			description = excluded.description,
			lat = excluded.lat,
			lng = excluded.lng,
			street = excluded.street,
			zip = excluded.zip,
			city = excluded.city,
			country = excluded.country`,
		e.ID, e.Version, e.Title, e.Description, e.Location.Lat, e.Location.Lng,
		street, zip, city, country)
	if err != nil {
		return storeFailed(fmt.Sprintf("failed to save entry %s", e.ID), err)
	}

	if err := replaceRelation(ctx, tx, "entry_categories", "category_id", e.ID, e.Categories); err != nil {
		return err
	}
	if err := replaceRelation(ctx, tx, "entry_tags", "tag", e.ID, e.Tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storeFailed("failed to commit entry", err)
	}
	return nil
}

func replaceRelation(ctx context.Context, tx *sql.Tx, table, column, entryID string, values []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE entry_id = ?`, entryID); err != nil {
		return storeFailed(fmt.Sprintf("failed to clear %s", table), err)
	}
	if len(values) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO `+table+` (entry_id, `+column+`) VALUES (?, ?)`)
	if err != nil {
		return storeFailed(fmt.Sprintf("failed to prepare %s insert", table), err)
	}
	defer stmt.Close()
	for _, v := range values {
		if _, err := stmt.ExecContext(ctx, entryID, v); err != nil {
			return storeFailed(fmt.Sprintf("failed to insert into %s", table), err)
		}
	}
	return nil
}

// DeleteEntry removes an entry, its relations and its ratings.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return storeFailed(fmt.Sprintf("failed to delete entry %s", id), err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound("entry", id)
	}
	return nil
}

// GetEntry loads an entry with its categories and tags.
func (s *Store) GetEntry(ctx context.Context, id string) (*entity.Entry, error) {
	return s.GetEntryWithRelations(ctx, id, nil, nil)
}

// GetEntryWithRelations loads an entry. When categories or tags are given
// they are used as the entry's relations instead of querying them.
func (s *Store) GetEntryWithRelations(ctx context.Context, id string, categories, tags []string) (*entity.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("entry", id)
	}
	if err != nil {
		return nil, storeFailed(fmt.Sprintf("failed to load entry %s", id), err)
	}

	if categories != nil || tags != nil {
		e.Categories = categories
		e.Tags = tags
		return e, nil
	}

	if e.Categories, err = s.relation(ctx, "entry_categories", "category_id", id); err != nil {
		return nil, err
	}
	if e.Tags, err = s.relation(ctx, "entry_tags", "tag", id); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) relation(ctx context.Context, table, column, entryID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+column+` FROM `+table+` WHERE entry_id = ? ORDER BY `+column, entryID)
	if err != nil {
		return nil, storeFailed(fmt.Sprintf("failed to query %s", table), err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, storeFailed(fmt.Sprintf("failed to scan %s", table), err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// AllEntries returns every entry with its relations, ordered by id.
func (s *Store) AllEntries(ctx context.Context) ([]entity.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM entries ORDER BY id`)
	if err != nil {
		return nil, storeFailed("failed to query entries", err)
	}
	var entries []entity.Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, storeFailed("failed to scan entry", err)
		}
		entries = append(entries, *e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storeFailed("failed to iterate entries", err)
	}

	categories, err := s.allRelations(ctx, "entry_categories", "category_id")
	if err != nil {
		return nil, err
	}
	tags, err := s.allRelations(ctx, "entry_tags", "tag")
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Categories = categories[entries[i].ID]
		entries[i].Tags = tags[entries[i].ID]
	}
	return entries, nil
}

func (s *Store) allRelations(ctx context.Context, table, column string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_id, `+column+` FROM `+table+` ORDER BY entry_id, `+column)
	if err != nil {
		return nil, storeFailed(fmt.Sprintf("failed to query %s", table), err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var id, v string
		if err := rows.Scan(&id, &v); err != nil {
			return nil, storeFailed(fmt.Sprintf("failed to scan %s", table), err)
		}
		out[id] = append(out[id], v)
	}
	return out, rows.Err()
}

// CountEntries returns the number of stored entries.
func (s *Store) CountEntries(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, storeFailed("failed to count entries", err)
	}
	return n, nil
}

func scanEntry(scan func(dest ...any) error) (*entity.Entry, error) {
	var e entity.Entry
	var street, zip, city, country sql.NullString
	err := scan(&e.ID, &e.Version, &e.Title, &e.Description, &e.Location.Lat, &e.Location.Lng,
		&street, &zip, &city, &country)
	if err != nil {
		return nil, err
	}
	if street.Valid || zip.Valid || city.Valid || country.Valid {
		e.Location.Address = &entity.Address{
			Street:  street.String,
			Zip:     zip.String,
			City:    city.String,
			Country: country.String,
		}
	}
	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
