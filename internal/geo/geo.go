// Package geo provides coordinates, map points, bounding boxes and
// great-circle distances, plus the quantized integer representation of
// coordinates used by the search index.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	ofdberrors "github.com/magdaddy/openfairdb/internal/errors"
	"github.com/magdaddy/openfairdb/internal/quantize"
)

const (
	LatMin = -90.0
	LatMax = 90.0
	LngMin = -180.0
	LngMax = 180.0
)

// EarthRadiusMeters is the mean radius of Earth used for Haversine distance.
const EarthRadiusMeters = 6_371_008.8

// LatCoord is a latitude in degrees.
type LatCoord float64

// IsValid reports whether the latitude is finite and within [-90, 90].
func (c LatCoord) IsValid() bool {
	return !math.IsNaN(float64(c)) && float64(c) >= LatMin && float64(c) <= LatMax
}

// ToRaw returns the quantized latitude. Panics if the coordinate is invalid.
func (c LatCoord) ToRaw() uint32 {
	if !c.IsValid() {
		panic(fmt.Sprintf("geo: invalid latitude %v", float64(c)))
	}
	return quantize.Encode(float64(c), LatMin, LatMax)
}

// LatFromRaw decodes a quantized latitude.
func LatFromRaw(raw uint32) LatCoord {
	return LatCoord(quantize.Decode(raw, LatMin, LatMax))
}

// LngCoord is a longitude in degrees.
type LngCoord float64

// IsValid reports whether the longitude is finite and within [-180, 180].
func (c LngCoord) IsValid() bool {
	return !math.IsNaN(float64(c)) && float64(c) >= LngMin && float64(c) <= LngMax
}

// ToRaw returns the quantized longitude. Panics if the coordinate is invalid.
func (c LngCoord) ToRaw() uint32 {
	if !c.IsValid() {
		panic(fmt.Sprintf("geo: invalid longitude %v", float64(c)))
	}
	return quantize.Encode(float64(c), LngMin, LngMax)
}

// LngFromRaw decodes a quantized longitude.
func LngFromRaw(raw uint32) LngCoord {
	return LngCoord(quantize.Decode(raw, LngMin, LngMax))
}

// MapPoint is a position on the map.
type MapPoint struct {
	Lat LatCoord
	Lng LngCoord
}

// NewMapPoint creates a point from degrees without validation.
func NewMapPoint(lat, lng float64) MapPoint {
	return MapPoint{Lat: LatCoord(lat), Lng: LngCoord(lng)}
}

// TryMapPoint creates a point from degrees if both coordinates are valid.
func TryMapPoint(lat, lng float64) (MapPoint, bool) {
	p := NewMapPoint(lat, lng)
	return p, p.IsValid()
}

// IsValid reports whether both coordinates are valid.
func (p MapPoint) IsValid() bool {
	return p.Lat.IsValid() && p.Lng.IsValid()
}

// String implements fmt.Stringer.
func (p MapPoint) String() string {
	return fmt.Sprintf("(%g,%g)", float64(p.Lat), float64(p.Lng))
}

// Distance is a great-circle distance in meters.
type Distance float64

// InfiniteDistance is the distance to or from an invalid point.
var InfiniteDistance = Distance(math.Inf(1))

// Meters returns the distance as a plain float.
func (d Distance) Meters() float64 {
	return float64(d)
}

// Haversine returns the great-circle distance between two points.
// If either point is invalid the distance is infinite.
func Haversine(a, b MapPoint) Distance {
	if !a.IsValid() || !b.IsValid() {
		return InfiniteDistance
	}
	lat1r := float64(a.Lat) * math.Pi / 180
	lat2r := float64(b.Lat) * math.Pi / 180
	dLat := float64(b.Lat-a.Lat) * math.Pi / 180
	dLng := float64(b.Lng-a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return Distance(EarthRadiusMeters * c)
}

// BoundingBox is a rectangular region between its south-west and north-east
// corners. A box whose south-west longitude is greater than its north-east
// longitude wraps the antimeridian.
type BoundingBox struct {
	SouthWest MapPoint
	NorthEast MapPoint
}

// NewBoundingBox creates a box from its corners.
func NewBoundingBox(sw, ne MapPoint) BoundingBox {
	return BoundingBox{SouthWest: sw, NorthEast: ne}
}

// IsValid reports whether both corners are valid and the latitudes are ordered.
func (b BoundingBox) IsValid() bool {
	return b.SouthWest.IsValid() && b.NorthEast.IsValid() && b.SouthWest.Lat <= b.NorthEast.Lat
}

// IsEmpty reports whether the box covers no area.
func (b BoundingBox) IsEmpty() bool {
	return b.SouthWest.Lat == b.NorthEast.Lat || b.SouthWest.Lng == b.NorthEast.Lng
}

// WrapsAntimeridian reports whether the box crosses the 180th meridian.
func (b BoundingBox) WrapsAntimeridian() bool {
	return b.SouthWest.Lng > b.NorthEast.Lng
}

// Contains reports whether p lies inside the box (boundaries included).
func (b BoundingBox) Contains(p MapPoint) bool {
	if !p.IsValid() || p.Lat < b.SouthWest.Lat || p.Lat > b.NorthEast.Lat {
		return false
	}
	if b.WrapsAntimeridian() {
		return p.Lng >= b.SouthWest.Lng || p.Lng <= b.NorthEast.Lng
	}
	return p.Lng >= b.SouthWest.Lng && p.Lng <= b.NorthEast.Lng
}

// String implements fmt.Stringer using the same format ParseBoundingBox reads.
func (b BoundingBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g",
		float64(b.SouthWest.Lat), float64(b.SouthWest.Lng),
		float64(b.NorthEast.Lat), float64(b.NorthEast.Lng))
}

// ParseBoundingBox parses "swLat,swLng,neLat,neLng".
func ParseBoundingBox(s string) (BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, ofdberrors.New(ofdberrors.ErrCodeInvalidBoundingBox,
			fmt.Sprintf("bounding box needs 4 comma separated values, got %d", len(parts)), nil)
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BoundingBox{}, ofdberrors.New(ofdberrors.ErrCodeInvalidBoundingBox,
				fmt.Sprintf("invalid bounding box value %q", p), err)
		}
		vals[i] = v
	}
	bbox := NewBoundingBox(NewMapPoint(vals[0], vals[1]), NewMapPoint(vals[2], vals[3]))
	if !bbox.IsValid() {
		return BoundingBox{}, ofdberrors.New(ofdberrors.ErrCodeInvalidBoundingBox,
			fmt.Sprintf("bounding box %q is out of range", s), nil)
	}
	return bbox, nil
}
