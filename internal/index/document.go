package index

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2/search"

	ofdberrors "github.com/magdaddy/openfairdb/internal/errors"
	"github.com/magdaddy/openfairdb/internal/entity"
	"github.com/magdaddy/openfairdb/internal/geo"
	"github.com/magdaddy/openfairdb/internal/quantize"
)

// entryDocument is the indexed projection of an entry.
// Numeric fields hold quantized values so that range checks and sorting
// happen on exact integers.
type entryDocument struct {
	ID          string   `json:"id"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    []string `json:"category"`
	Tag         []string `json:"tag"`
	Rating      float64  `json:"rating"`
}

// BleveType selects the entry document mapping.
func (entryDocument) BleveType() string {
	return entryDocType
}

// newEntryDocument projects an entry into its index document.
// Returns a validation error if the entry has no identifier or no valid
// location. Panics if rating is out of range.
func newEntryDocument(e *entity.Entry, rating entity.AvgRatingValue) (*entryDocument, error) {
	if e.ID == "" {
		return nil, ofdberrors.ValidationError("entry has no id", nil)
	}
	pos, ok := geo.TryMapPoint(e.Location.Lat, e.Location.Lng)
	if !ok {
		return nil, ofdberrors.New(ofdberrors.ErrCodeInvalidPosition,
			fmt.Sprintf("entry %s has invalid location (%v, %v)", e.ID, e.Location.Lat, e.Location.Lng), nil)
	}
	return &entryDocument{
		ID:          e.ID,
		Lat:         float64(pos.Lat.ToRaw()),
		Lng:         float64(pos.Lng.ToRaw()),
		Title:       e.Title,
		Description: e.Description,
		Category:    e.Categories,
		Tag:         e.Tags,
		Rating:      float64(encodeRating(rating)),
	}, nil
}

// encodeRating quantizes an aggregated rating. Panics if it is out of range.
func encodeRating(v entity.AvgRatingValue) uint32 {
	if !v.IsValid() {
		panic(fmt.Sprintf("index: invalid rating %v", float64(v)))
	}
	return quantize.Encode(float64(v), float64(entity.AvgRatingMin), float64(entity.AvgRatingMax))
}

func decodeRating(raw uint32) entity.AvgRatingValue {
	return entity.AvgRatingValue(quantize.Decode(raw, float64(entity.AvgRatingMin), float64(entity.AvgRatingMax)))
}

// storedHit holds the stored fields read back from a search hit.
type storedHit struct {
	ID         string
	Categories []string
	Tags       []string
	Rating     entity.AvgRatingValue
}

// readStoredHit extracts the stored fields of a hit. ok is false when the
// hit carries no identifier.
func readStoredHit(hit *search.DocumentMatch) (storedHit, bool) {
	id, _ := hit.Fields[FieldID].(string)
	if id == "" {
		return storedHit{}, false
	}
	out := storedHit{
		ID:         id,
		Categories: storedStrings(hit.Fields[FieldCategory]),
		Tags:       storedStrings(hit.Fields[FieldTag]),
	}
	if raw, ok := hit.Fields[FieldRating].(float64); ok {
		out.Rating = decodeRating(uint32(raw))
	}
	return out, true
}

// storedStrings normalizes a stored text field. bleve returns a single
// value as a string and several values as a slice.
func storedStrings(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return t
	}
	return nil
}

// normalizeTerms lower-cases and trims facet values, dropping empty ones.
func normalizeTerms(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
