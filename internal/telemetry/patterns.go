// Package telemetry records how the search index is used: Prometheus
// collectors for operators and an in-process summary of search patterns.
// Nothing is reported to external services.
package telemetry

import (
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SearchKind classifies a search by its most selective clause.
type SearchKind string

const (
	SearchKindText   SearchKind = "text"
	SearchKindFacet  SearchKind = "facet"
	SearchKindArea   SearchKind = "area"
	SearchKindBrowse SearchKind = "browse"
)

// ClassifySearch picks the kind of a search from the clauses it used.
func ClassifySearch(hasText, hasFacets, hasBBox bool) SearchKind {
	switch {
	case hasText:
		return SearchKindText
	case hasFacets:
		return SearchKindFacet
	case hasBBox:
		return SearchKindArea
	default:
		return SearchKindBrowse
	}
}

// LatencyBucket is a coarse latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// SearchEvent describes one completed search.
type SearchEvent struct {
	Text        string
	Tags        []string
	Kind        SearchKind
	ResultCount int
	Latency     time.Duration
}

// ExtractTerms splits free text into lower-cased terms of at least three bytes.
func ExtractTerms(text string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

// CircularBuffer is a fixed-capacity FIFO; the oldest item is evicted when full.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int
	size     int
	capacity int
}

// NewCircularBuffer creates a buffer. A non-positive capacity means 100.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{items: make([]T, capacity), capacity: capacity}
}

// Add appends item, evicting the oldest one if the buffer is full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items, oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]T, b.size)
	if b.size < b.capacity {
		copy(out, b.items[:b.size])
	} else {
		n := copy(out, b.items[b.head:])
		copy(out[n:], b.items[:b.head])
	}
	return out
}

// Size returns the number of buffered items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// TermCount is a term with its frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// PatternsSnapshot is a copy of the collected search patterns.
type PatternsSnapshot struct {
	KindCounts          map[SearchKind]int64    `json:"kind_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	TopTags             []TermCount             `json:"top_tags"`
	ZeroResultSearches  []string                `json:"zero_result_searches"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalSearches       int64                   `json:"total_searches"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of searches without results.
func (s *PatternsSnapshot) ZeroResultPercentage() float64 {
	if s.TotalSearches == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalSearches) * 100
}

// PatternsConfig bounds the memory used by SearchPatterns.
type PatternsConfig struct {
	TopTermsCapacity    int
	ZeroResultsCapacity int
}

// DefaultPatternsConfig returns the default capacities.
func DefaultPatternsConfig() PatternsConfig {
	return PatternsConfig{TopTermsCapacity: 100, ZeroResultsCapacity: 100}
}

// SearchPatterns aggregates search events in memory. Safe for concurrent use.
// A nil *SearchPatterns records nothing.
type SearchPatterns struct {
	mu sync.Mutex

	kinds           map[SearchKind]int64
	terms           *lru.Cache[string, int64]
	tags            *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	latencies       map[LatencyBucket]int64
	total           int64
	zeroResultCount int64
	since           time.Time
}

// NewSearchPatterns creates a collector.
func NewSearchPatterns(cfg PatternsConfig) *SearchPatterns {
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = 100
	}
	terms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	tags, _ := lru.New[string, int64](cfg.TopTermsCapacity)

	return &SearchPatterns{
		kinds:       make(map[SearchKind]int64),
		terms:       terms,
		tags:        tags,
		zeroResults: NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		latencies:   make(map[LatencyBucket]int64),
		since:       time.Now(),
	}
}

// Record adds one search event.
func (p *SearchPatterns) Record(ev SearchEvent) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total++
	p.kinds[ev.Kind]++
	p.latencies[LatencyToBucket(ev.Latency)]++

	for _, term := range ExtractTerms(ev.Text) {
		n, _ := p.terms.Get(term)
		p.terms.Add(term, n+1)
	}
	for _, tag := range ev.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		n, _ := p.tags.Get(tag)
		p.tags.Add(tag, n+1)
	}

	if ev.ResultCount == 0 {
		p.zeroResultCount++
		p.zeroResults.Add(describe(ev))
	}
}

func describe(ev SearchEvent) string {
	parts := make([]string, 0, 1+len(ev.Tags))
	if t := strings.TrimSpace(ev.Text); t != "" {
		parts = append(parts, t)
	}
	for _, tag := range ev.Tags {
		parts = append(parts, "#"+tag)
	}
	if len(parts) == 0 {
		return string(ev.Kind)
	}
	return strings.Join(parts, " ")
}

// Snapshot returns a copy of the current aggregates.
func (p *SearchPatterns) Snapshot() *PatternsSnapshot {
	if p == nil {
		return &PatternsSnapshot{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	kinds := make(map[SearchKind]int64, len(p.kinds))
	for k, v := range p.kinds {
		kinds[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(p.latencies))
	for k, v := range p.latencies {
		latencies[k] = v
	}

	return &PatternsSnapshot{
		KindCounts:          kinds,
		TopTerms:            sortedCounts(p.terms),
		TopTags:             sortedCounts(p.tags),
		ZeroResultSearches:  p.zeroResults.Items(),
		LatencyDistribution: latencies,
		TotalSearches:       p.total,
		ZeroResultCount:     p.zeroResultCount,
		Since:               p.since,
	}
}

// sortedCounts returns the cache content by descending count, then term.
func sortedCounts(c *lru.Cache[string, int64]) []TermCount {
	out := make([]TermCount, 0, c.Len())
	for _, key := range c.Keys() {
		if n, ok := c.Peek(key); ok {
			out = append(out, TermCount{Term: key, Count: n})
		}
	}
	slices.SortFunc(out, func(a, b TermCount) int {
		if a.Count != b.Count {
			if a.Count > b.Count {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Term, b.Term)
	})
	return out
}
