package index

import (
	"context"
	"log/slog"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	ofdberrors "github.com/magdaddy/openfairdb/internal/errors"
	"github.com/magdaddy/openfairdb/internal/geo"
)

// storedFields are read back for every hit.
var storedFields = []string{FieldID, FieldCategory, FieldTag, FieldRating}

// Search runs q against the committed documents and resolves every hit
// through entries, best rated first.
//
// A free-text clause that fails to parse is dropped. Hits that cannot be
// resolved are skipped. Both cases are logged and the remaining results are
// returned without error.
func (x *EntryIndex) Search(ctx context.Context, entries EntryGateway, q Query, limit int) ([]Result, error) {
	if x.closed {
		return nil, errIndexClosed()
	}
	if limit <= 0 {
		return []Result{}, nil
	}
	if q.BBox != nil && !q.BBox.IsValid() {
		return nil, ofdberrors.New(ofdberrors.ErrCodeInvalidBoundingBox,
			"invalid bounding box "+q.BBox.String(), nil)
	}

	req := bleve.NewSearchRequestOptions(x.buildQuery(q), limit, 0, false)
	req.Fields = storedFields
	req.SortBy([]string{"-" + FieldRating})

	res, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, ofdberrors.New(ofdberrors.ErrCodeSearchFailed, "index search failed", err)
	}

	results := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		stored, ok := readStoredHit(hit)
		if !ok {
			slog.Warn("search_hit_without_id", slog.String("doc", hit.ID))
			x.degraded(DegradedMissingID)
			continue
		}
		entry, err := entries.GetEntryWithRelations(ctx, stored.ID, stored.Categories, stored.Tags)
		if err != nil || entry == nil {
			slog.Warn("search_entry_not_found",
				slog.String("id", stored.ID),
				slog.Any("error", err))
			x.degraded(DegradedEntryNotFound)
			continue
		}
		results = append(results, Result{Entry: *entry, Rating: stored.Rating})
	}
	return results, nil
}

// buildQuery combines the clauses of q with AND. A query without clauses
// matches every document.
func (x *EntryIndex) buildQuery(q Query) query.Query {
	var must []query.Query
	var mustNot []query.Query

	if q.BBox != nil {
		m, n := bboxClauses(*q.BBox)
		must = append(must, m...)
		mustNot = append(mustNot, n...)
	}

	if text := strings.ToLower(strings.TrimSpace(q.Text)); text != "" {
		parsed, err := x.texts.Get(text)
		if err != nil {
			slog.Warn("search_text_unparsable",
				slog.String("text", text),
				slog.String("error", err.Error()))
			x.degraded(DegradedTextParse)
		} else {
			must = append(must, parsed)
		}
	}

	if terms := normalizeTerms(q.Categories); len(terms) > 0 {
		must = append(must, anyTerm(FieldCategory, terms))
	}
	if terms := normalizeTerms(q.Tags); len(terms) > 0 {
		must = append(must, anyTerm(FieldTag, terms))
	}

	if len(must) == 0 && len(mustNot) == 0 {
		return bleve.NewMatchAllQuery()
	}
	b := bleve.NewBooleanQuery()
	if len(must) == 0 {
		// MustNot alone matches nothing in bleve.
		b.AddMust(bleve.NewMatchAllQuery())
	}
	if len(must) > 0 {
		b.AddMust(must...)
	}
	if len(mustNot) > 0 {
		b.AddMustNot(mustNot...)
	}
	return b
}

// bboxClauses restricts latitude to the box and longitude either to the box
// or, when the box wraps the antimeridian, to everything outside the band
// strictly between the north-east and south-west longitudes.
func bboxClauses(box geo.BoundingBox) (must, mustNot []query.Query) {
	sw, ne := box.SouthWest, box.NorthEast
	must = append(must, numericRange(FieldLat, sw.Lat.ToRaw(), ne.Lat.ToRaw(), true))

	swLng, neLng := sw.Lng.ToRaw(), ne.Lng.ToRaw()
	if swLng <= neLng {
		must = append(must, numericRange(FieldLng, swLng, neLng, true))
	} else {
		mustNot = append(mustNot, numericRange(FieldLng, neLng, swLng, false))
	}
	return must, mustNot
}

func numericRange(field string, lo, hi uint32, inclusive bool) query.Query {
	from, to := float64(lo), float64(hi)
	q := bleve.NewNumericRangeInclusiveQuery(&from, &to, &inclusive, &inclusive)
	q.SetField(field)
	return q
}

// anyTerm matches documents having at least one of the terms in field.
func anyTerm(field string, terms []string) query.Query {
	clauses := make([]query.Query, 0, len(terms))
	for _, t := range terms {
		tq := bleve.NewTermQuery(t)
		tq.SetField(field)
		clauses = append(clauses, tq)
	}
	return bleve.NewDisjunctionQuery(clauses...)
}
