package sorting

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magdaddy/openfairdb/internal/entity"
	"github.com/magdaddy/openfairdb/internal/geo"
)

func newEntry(id string, lat, lng float64) entity.Entry {
	return entity.Entry{ID: id, Location: entity.Location{Lat: lat, Lng: lng}}
}

func ids(entries []entity.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestSortByDistanceTo(t *testing.T) {
	entries := []entity.Entry{
		newEntry("a", 1.0, 0.0),
		newEntry("b", 0.0, 0.0),
		newEntry("c", 1.0, 1.0),
		newEntry("d", 0.0, 0.5),
		newEntry("e", -1.0, -1.0),
	}

	SortByDistanceTo(entries, geo.NewMapPoint(0, 0))

	assert.Equal(t, []string{"b", "d", "a"}, ids(entries)[:3])
	assert.ElementsMatch(t, []string{"c", "e"}, ids(entries)[3:])
}

func TestSortByDistanceTo_InvalidCoordinatesLast(t *testing.T) {
	entries := []entity.Entry{
		newEntry("a", 1.0, math.NaN()),
		newEntry("b", 1.0, math.Inf(1)),
		newEntry("c", 2.0, 0.0),
		newEntry("d", math.NaN(), math.NaN()),
		newEntry("e", 1.0, 0.0),
	}

	SortByDistanceTo(entries, geo.NewMapPoint(0, 0))

	assert.Equal(t, []string{"e", "c"}, ids(entries)[:2])
	assert.ElementsMatch(t, []string{"a", "b", "d"}, ids(entries)[2:])
}

func TestSortByDistanceTo_InvalidCenterKeepsOrder(t *testing.T) {
	entries := []entity.Entry{
		newEntry("a", 2.0, 0.0),
		newEntry("b", 0.0, 0.0),
		newEntry("c", 1.0, 0.0),
	}

	SortByDistanceTo(entries, geo.NewMapPoint(math.NaN(), 0))
	assert.Equal(t, []string{"a", "b", "c"}, ids(entries))

	SortByDistanceTo(entries, geo.NewMapPoint(0, 200))
	assert.Equal(t, []string{"a", "b", "c"}, ids(entries))
}

func TestCompareDistance_NaNIsEqual(t *testing.T) {
	nan := geo.Distance(math.NaN())
	assert.Equal(t, 0, compareDistance(nan, 1))
	assert.Equal(t, 0, compareDistance(1, nan))
	assert.Equal(t, -1, compareDistance(1, 2))
	assert.Equal(t, 1, compareDistance(geo.InfiniteDistance, 2))
}
