// Package rating computes the aggregated rating score of entries and keeps
// the per-entry scores in an explicitly owned cache.
package rating

import (
	"fmt"

	"github.com/magdaddy/openfairdb/internal/entity"
)

// Aggregate computes the AvgRatingValue of an entry from its ratings.
//
// The score is the mean of the six per-context means. A context without any
// rating contributes zero instead of being left out, so an entry rated in only
// one context scores a sixth of that context's mean. This bias is kept as is.
//
// All ratings must belong to entryID; anything else is a caller bug and panics.
func Aggregate(entryID string, ratings []entity.Rating) entity.AvgRatingValue {
	for i := range ratings {
		if ratings[i].EntryID != entryID {
			panic(fmt.Sprintf("rating: rating %s belongs to entry %s, not %s",
				ratings[i].ID, ratings[i].EntryID, entryID))
		}
	}

	var sum entity.AvgRatingValue
	for _, ctx := range entity.RatingContexts() {
		if avg, ok := AggregateContext(ratings, ctx); ok {
			sum = sum.Add(avg)
		}
	}
	return sum.Div(float64(entity.NumRatingContexts))
}

// AggregateContext returns the arithmetic mean of the rating values in one
// context. ok is false if there is no rating for ctx.
func AggregateContext(ratings []entity.Rating, ctx entity.RatingContext) (avg entity.AvgRatingValue, ok bool) {
	var (
		cnt int
		sum int64
	)
	for i := range ratings {
		if ratings[i].Context == ctx {
			cnt++
			sum += int64(ratings[i].Value)
		}
	}
	if cnt == 0 {
		return 0, false
	}
	return entity.AvgRatingValue(float64(sum) / float64(cnt)), true
}

// GroupByEntry partitions ratings by entry ID.
func GroupByEntry(ratings []entity.Rating) map[string][]entity.Rating {
	grouped := make(map[string][]entity.Rating)
	for _, r := range ratings {
		grouped[r.EntryID] = append(grouped[r.EntryID], r)
	}
	return grouped
}
