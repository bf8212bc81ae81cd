// Package sorting orders already fetched entries without going through the
// search index.
package sorting

import (
	"cmp"
	"math"
	"slices"

	"github.com/magdaddy/openfairdb/internal/entity"
	"github.com/magdaddy/openfairdb/internal/geo"
)

// DistanceTo returns the great-circle distance from the entry's location to
// p. Entries without a valid location are infinitely far away.
func DistanceTo(e *entity.Entry, p geo.MapPoint) geo.Distance {
	here, ok := geo.TryMapPoint(e.Location.Lat, e.Location.Lng)
	if !ok {
		return geo.InfiniteDistance
	}
	return geo.Haversine(here, p)
}

// SortByDistanceTo sorts entries by ascending distance to center.
// If center is not a valid point the slice is left untouched.
func SortByDistanceTo(entries []entity.Entry, center geo.MapPoint) {
	if !center.IsValid() {
		return
	}
	slices.SortStableFunc(entries, func(a, b entity.Entry) int {
		return compareDistance(DistanceTo(&a, center), DistanceTo(&b, center))
	})
}

// compareDistance treats incomparable (NaN) pairs as equal.
func compareDistance(a, b geo.Distance) int {
	if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) {
		return 0
	}
	return cmp.Compare(a, b)
}
