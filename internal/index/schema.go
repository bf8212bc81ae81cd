package index

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

// Field names of an indexed entry document.
const (
	FieldID          = "id"
	FieldLat         = "lat"
	FieldLng         = "lng"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldCategory    = "category"
	FieldTag         = "tag"
	FieldRating      = "rating"
)

const (
	// IDAnalyzerName keeps identifiers verbatim: no case folding, no splitting.
	IDAnalyzerName = keyword.Name

	// TagAnalyzerName is the case-normalized single-token analyzer for
	// category and tag facets. Registered globally at init.
	TagAnalyzerName = "entry_tag"

	// TextAnalyzerName splits free text into lower-cased words.
	TextAnalyzerName = "entry_text"

	entryDocType = "entry"
)

func init() {
	// A second registration of the same name is a startup bug.
	if err := registry.RegisterAnalyzer(TagAnalyzerName, tagAnalyzerConstructor); err != nil {
		panic(fmt.Sprintf("index: %v", err))
	}
}

// tagAnalyzerConstructor builds the single-token, lower-casing tag analyzer.
func tagAnalyzerConstructor(_ map[string]interface{}, cache *registry.Cache) (analysis.Analyzer, error) {
	return custom.AnalyzerConstructor(map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	}, cache)
}

// buildIndexMapping creates the bleve mapping of entry documents.
//
// Only title and description feed the composite _all field, which is the
// default field of free-text queries.
func buildIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(TextAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add text analyzer: %w", err)
	}
	indexMapping.DefaultAnalyzer = TextAnalyzerName

	doc := bleve.NewDocumentMapping()
	doc.Dynamic = false

	id := bleve.NewTextFieldMapping()
	id.Analyzer = IDAnalyzerName
	id.Store = true
	id.IncludeInAll = false
	id.IncludeTermVectors = false
	doc.AddFieldMappingsAt(FieldID, id)

	for _, name := range []string{FieldLat, FieldLng} {
		coord := bleve.NewNumericFieldMapping()
		coord.Store = true
		coord.Index = true
		coord.IncludeInAll = false
		doc.AddFieldMappingsAt(name, coord)
	}

	for _, name := range []string{FieldTitle, FieldDescription} {
		text := bleve.NewTextFieldMapping()
		text.Analyzer = TextAnalyzerName
		text.Store = false
		text.IncludeTermVectors = true
		text.IncludeInAll = true
		doc.AddFieldMappingsAt(name, text)
	}

	for _, name := range []string{FieldCategory, FieldTag} {
		facet := bleve.NewTextFieldMapping()
		facet.Analyzer = TagAnalyzerName
		facet.Store = true
		facet.IncludeTermVectors = true
		facet.IncludeInAll = false
		doc.AddFieldMappingsAt(name, facet)
	}

	rating := bleve.NewNumericFieldMapping()
	rating.Store = true
	rating.Index = true
	rating.DocValues = true
	rating.IncludeInAll = false
	doc.AddFieldMappingsAt(FieldRating, rating)

	indexMapping.AddDocumentMapping(entryDocType, doc)
	indexMapping.DefaultMapping = doc

	if err := validateMapping(indexMapping); err != nil {
		return nil, err
	}
	return indexMapping, nil
}

// validateMapping fails if an analyzer the schema relies on cannot be resolved.
func validateMapping(m *mapping.IndexMappingImpl) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid index mapping: %w", err)
	}
	for _, name := range []string{IDAnalyzerName, TagAnalyzerName, TextAnalyzerName} {
		if m.AnalyzerNamed(name) == nil {
			return fmt.Errorf("analyzer %q is not registered", name)
		}
	}
	return nil
}
