package index

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	lru "github.com/hashicorp/golang-lru/v2"
)

// parsedText is a cached parse outcome. Failures are cached too so that a
// malformed query repeated by a client is not parsed again.
type parsedText struct {
	query query.Query
	err   error
}

// textQueryCache memoizes free-text query parsing.
type textQueryCache struct {
	parse   func(string) (query.Query, error)
	entries *lru.Cache[string, parsedText]
}

func newTextQueryCache(size int) (*textQueryCache, error) {
	if size <= 0 {
		size = DefaultTextQueryCacheSize
	}
	entries, err := lru.New[string, parsedText](size)
	if err != nil {
		return nil, err
	}
	return &textQueryCache{parse: parseQueryString, entries: entries}, nil
}

// Get returns the parsed query for text, which must already be normalized.
func (c *textQueryCache) Get(text string) (query.Query, error) {
	if p, ok := c.entries.Get(text); ok {
		return p.query, p.err
	}
	q, err := c.parse(text)
	c.entries.Add(text, parsedText{query: q, err: err})
	return q, err
}

// parseQueryString parses text with the bleve query string syntax against
// the default field.
func parseQueryString(text string) (query.Query, error) {
	return bleve.NewQueryStringQuery(text).Parse()
}
