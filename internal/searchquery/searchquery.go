// Package searchquery turns raw search parameters, as typed by a user, into
// an index query.
package searchquery

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	ofdberrors "github.com/magdaddy/openfairdb/internal/errors"
	"github.com/magdaddy/openfairdb/internal/geo"
	"github.com/magdaddy/openfairdb/internal/index"
)

// IDListSeparator separates identifiers in list parameters.
const IDListSeparator = ","

var hashTagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+(?:-[\p{L}\p{N}_]+)*)`)

// ExtractIDs splits a comma separated list, dropping blanks.
func ExtractIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, IDListSeparator) {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// ExtractHashTags returns the tags written as #tag in text, without the hash.
func ExtractHashTags(text string) []string {
	var tags []string
	for _, m := range hashTagPattern.FindAllStringSubmatch(text, -1) {
		tags = append(tags, m[1])
	}
	return tags
}

// RemoveHashTags strips all #tags from text along with commas and the
// double spaces they leave behind.
func RemoveHashTags(text string) string {
	s := hashTagPattern.ReplaceAllString(text, "")
	s = strings.ReplaceAll(s, "  ", " ")
	s = strings.ReplaceAll(s, ",", "")
	return strings.TrimSpace(s)
}

// Params are the raw parameters of a search request.
type Params struct {
	// BBox is "swLat,swLng,neLat,neLng". Empty means no region restriction.
	BBox string
	// Categories is a comma separated list of category ids.
	Categories string
	// Text is free text. #tags inside it are treated as tag filters.
	Text string
	// Tags is a comma separated list of tags.
	Tags string
	// Limit is the maximum number of results. Zero selects the default.
	Limit int
	// Near is "lat,lng". When set, results are ordered by distance to it
	// instead of by rating.
	Near string
}

// Limits bound the result count of a request.
type Limits struct {
	Default int
	Max     int
}

// Request is a parsed search request.
type Request struct {
	Query index.Query
	Limit int
	Near  *geo.MapPoint
}

// Parse validates p and builds the request.
func Parse(p Params, limits Limits) (Request, error) {
	var req Request

	if strings.TrimSpace(p.BBox) != "" {
		box, err := geo.ParseBoundingBox(p.BBox)
		if err != nil {
			return Request{}, err
		}
		req.Query.BBox = &box
	}

	if strings.TrimSpace(p.Near) != "" {
		near, err := parsePoint(p.Near)
		if err != nil {
			return Request{}, err
		}
		req.Near = &near
	}

	req.Query.Categories = ExtractIDs(p.Categories)
	req.Query.Tags = append(ExtractHashTags(p.Text), ExtractIDs(p.Tags)...)
	req.Query.Text = RemoveHashTags(p.Text)

	switch {
	case p.Limit < 0:
		return Request{}, ofdberrors.New(ofdberrors.ErrCodeInvalidQuery, "limit must not be negative", nil)
	case p.Limit == 0:
		req.Limit = limits.Default
	default:
		req.Limit = p.Limit
	}
	if limits.Max > 0 && req.Limit > limits.Max {
		req.Limit = limits.Max
	}
	return req, nil
}

func parsePoint(s string) (geo.MapPoint, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geo.MapPoint{}, ofdberrors.New(ofdberrors.ErrCodeInvalidPosition,
			fmt.Sprintf("position needs 2 comma separated values, got %d", len(parts)), nil)
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLng != nil {
		return geo.MapPoint{}, ofdberrors.New(ofdberrors.ErrCodeInvalidPosition,
			fmt.Sprintf("position %q is not numeric", s), nil)
	}
	p, ok := geo.TryMapPoint(lat, lng)
	if !ok {
		return geo.MapPoint{}, ofdberrors.New(ofdberrors.ErrCodeInvalidPosition,
			fmt.Sprintf("position %s is out of range", p), nil)
	}
	return p, nil
}
