package index

import (
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// SourceFile describes one indexed file.
type SourceFile struct {
	Path         string // Absolute path, forward slashes
	RelativePath string // Path relative to the project root
	Kind         string // classify.FileKind name
	SizeBytes    int64
	ModTime      time.Time
	LineCount    int
}

// bleveDocument is what gets stored in Bleve for each file.
type bleveDocument struct {
	Content string `json:"content"`
	Path    string `json:"path"`
	Kind    string `json:"kind"`
}

func buildIndexMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	// Content is kept in memory for line extraction, not in Bleve.
	contentField := bleve.NewTextFieldMapping()
	contentField.Store = false
	contentField.IncludeInAll = true
	docMapping.AddFieldMappingsAt("content", contentField)

	pathField := bleve.NewTextFieldMapping()
	pathField.Store = true
	pathField.IncludeInAll = false
	docMapping.AddFieldMappingsAt("path", pathField)

	kindField := bleve.NewKeywordFieldMapping()
	kindField.Store = true
	kindField.IncludeInAll = false
	docMapping.AddFieldMappingsAt("kind", kindField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}
