// Package entity defines the domain types shared by the index, the rating
// aggregation and the entry repository.
package entity

import (
	"fmt"
	"math"
	"strings"
)

// Address is the optional postal address of an entry.
type Address struct {
	Street  string
	Zip     string
	City    string
	Country string
}

// IsEmpty reports whether no address component is set.
func (a Address) IsEmpty() bool {
	return a.Street == "" && a.Zip == "" && a.City == "" && a.Country == ""
}

// Location is the geographic position of an entry in degrees.
type Location struct {
	Lat     float64
	Lng     float64
	Address *Address
}

// Entry is an initiative or business listed on the map.
// The repository is the source of truth; the search index only holds a
// projection of it.
type Entry struct {
	ID          string
	Version     uint64
	Title       string
	Description string
	Location    Location
	Categories  []string
	Tags        []string
}

// RatingContext is one of the fixed evaluation dimensions of an entry.
type RatingContext string

const (
	RatingContextDiversity    RatingContext = "diversity"
	RatingContextRenewable    RatingContext = "renewable"
	RatingContextFairness     RatingContext = "fairness"
	RatingContextHumanity     RatingContext = "humanity"
	RatingContextTransparency RatingContext = "transparency"
	RatingContextSolidarity   RatingContext = "solidarity"
)

var ratingContexts = [...]RatingContext{
	RatingContextDiversity,
	RatingContextRenewable,
	RatingContextFairness,
	RatingContextHumanity,
	RatingContextTransparency,
	RatingContextSolidarity,
}

// RatingContexts returns all rating contexts in their canonical order.
func RatingContexts() []RatingContext {
	out := make([]RatingContext, len(ratingContexts))
	copy(out, ratingContexts[:])
	return out
}

// NumRatingContexts is the number of rating contexts.
const NumRatingContexts = len(ratingContexts)

// ParseRatingContext parses a rating context name (case-insensitive).
func ParseRatingContext(s string) (RatingContext, error) {
	ctx := RatingContext(strings.ToLower(strings.TrimSpace(s)))
	for _, c := range ratingContexts {
		if c == ctx {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown rating context %q", s)
}

// String implements fmt.Stringer.
func (c RatingContext) String() string {
	return string(c)
}

// RatingValue is the integer score of a single rating.
type RatingValue int8

const (
	RatingValueMin RatingValue = -3
	RatingValueMax RatingValue = 3
)

// IsValid reports whether v lies in [RatingValueMin, RatingValueMax].
func (v RatingValue) IsValid() bool {
	return v >= RatingValueMin && v <= RatingValueMax
}

// Rating is a single rating of an entry in one context.
type Rating struct {
	ID      string
	EntryID string
	Created int64
	Title   string
	Value   RatingValue
	Context RatingContext
	Source  string
}

// AvgRatingValue is the aggregated, normalized rating score of an entry.
type AvgRatingValue float64

const (
	AvgRatingMin AvgRatingValue = -3.0
	AvgRatingMax AvgRatingValue = 3.0
)

// IsValid reports whether v is finite and lies in [AvgRatingMin, AvgRatingMax].
func (v AvgRatingValue) IsValid() bool {
	f := float64(v)
	return !math.IsNaN(f) && v >= AvgRatingMin && v <= AvgRatingMax
}

// Clamp limits v to [AvgRatingMin, AvgRatingMax]. NaN becomes zero.
func (v AvgRatingValue) Clamp() AvgRatingValue {
	switch {
	case math.IsNaN(float64(v)):
		return 0
	case v < AvgRatingMin:
		return AvgRatingMin
	case v > AvgRatingMax:
		return AvgRatingMax
	}
	return v
}

// Add returns v + o.
func (v AvgRatingValue) Add(o AvgRatingValue) AvgRatingValue {
	return v + o
}

// Div returns v / d.
func (v AvgRatingValue) Div(d float64) AvgRatingValue {
	return AvgRatingValue(float64(v) / d)
}

// Float64 returns v as a plain float.
func (v AvgRatingValue) Float64() float64 {
	return float64(v)
}
