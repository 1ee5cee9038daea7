package index

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/bmatcuk/doublestar/v4"
)

const defaultMaxResults = 50

// SearchResult groups the matching lines of one file.
type SearchResult struct {
	RelativePath string
	Kind         string
	Matches      []LineMatch
}

// LineMatch is one matching line with optional context.
type LineMatch struct {
	LineNumber    int
	LineText      string
	ContextBefore []string
	ContextAfter  []string
}

// SearchOptions configures a content search.
type SearchOptions struct {
	Query        string
	FilePath     string // exact relative path, overrides FileGlob
	FileGlob     string
	Kind         string
	MaxResults   int
	ContextLines int
}

// Search runs a full-text query over indexed content. Query forms:
//   - plain words: match query
//   - "quoted text": phrase query
//   - /regex/: regexp query
//
// Returns per-file results and the total number of matching lines.
func (si *SourceIndex) Search(opts SearchOptions) ([]SearchResult, int, error) {
	if strings.TrimSpace(opts.Query) == "" {
		return nil, 0, fmt.Errorf("empty query")
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaultMaxResults
	}
	if opts.ContextLines < 0 {
		opts.ContextLines = 0
	}
	glob := strings.ReplaceAll(opts.FileGlob, "\\", "/")
	if glob != "" && !doublestar.ValidatePattern(glob) {
		return nil, 0, fmt.Errorf("invalid glob pattern: %s", opts.FileGlob)
	}
	filePath := strings.ReplaceAll(opts.FilePath, "\\", "/")

	si.mu.RLock()
	defer si.mu.RUnlock()

	request := bleve.NewSearchRequest(buildQuery(opts.Query))
	// Filtering happens after the query, so over-fetch.
	request.Size = opts.MaxResults * 5
	request.Fields = []string{"path", "kind"}

	hits, err := si.bleve.Search(request)
	if err != nil {
		return nil, 0, fmt.Errorf("searching index: %w", err)
	}

	var results []SearchResult
	total := 0
	for _, hit := range hits.Hits {
		rel := hit.ID
		content, ok := si.contents[rel]
		if !ok {
			continue
		}
		file := si.files[rel]
		if filePath != "" {
			if rel != filePath {
				continue
			}
		} else if glob != "" {
			if matched, _ := doublestar.Match(glob, rel); !matched {
				continue
			}
		}
		if opts.Kind != "" && !strings.EqualFold(file.Kind, opts.Kind) {
			continue
		}

		lines := findMatchingLines(content, opts.Query, opts.ContextLines)
		if len(lines) == 0 {
			continue
		}
		total += len(lines)
		results = append(results, SearchResult{RelativePath: rel, Kind: file.Kind, Matches: lines})
		if len(results) >= opts.MaxResults {
			break
		}
	}
	return results, total, nil
}

// Glob returns indexed files whose relative path matches a doublestar pattern.
func (si *SourceIndex) Glob(pattern string, maxResults int) ([]SourceFile, error) {
	pattern = strings.ReplaceAll(pattern, "\\", "/")
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern: %s", pattern)
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	si.mu.RLock()
	defer si.mu.RUnlock()

	var out []SourceFile
	for _, p := range si.sortedPaths {
		if len(out) >= maxResults {
			break
		}
		if matched, _ := doublestar.Match(pattern, p); matched {
			out = append(out, si.files[p])
		}
	}
	return out, nil
}

func buildQuery(queryString string) query.Query {
	queryString = strings.TrimSpace(queryString)
	if term, ok := unwrap(queryString, "/"); ok {
		return bleve.NewRegexpQuery(term)
	}
	if term, ok := unwrap(queryString, `"`); ok {
		return bleve.NewMatchPhraseQuery(term)
	}
	return bleve.NewMatchQuery(queryString)
}

// unwrap strips matching delimiters from s.
func unwrap(s, delim string) (string, bool) {
	if len(s) > 2 && strings.HasPrefix(s, delim) && strings.HasSuffix(s, delim) {
		return s[1 : len(s)-1], true
	}
	return s, false
}

// findMatchingLines locates the query term line by line, case-insensitively.
func findMatchingLines(content string, queryString string, contextLines int) []LineMatch {
	queryString = strings.TrimSpace(queryString)
	term, ok := unwrap(queryString, "/")
	if !ok {
		term, _ = unwrap(queryString, `"`)
	}
	term = strings.ToLower(term)

	lines := strings.Split(content, "\n")
	var matches []LineMatch
	for i, line := range lines {
		if !strings.Contains(strings.ToLower(line), term) {
			continue
		}
		m := LineMatch{LineNumber: i + 1, LineText: line}
		if contextLines > 0 {
			from := max(i-contextLines, 0)
			to := min(i+contextLines+1, len(lines))
			m.ContextBefore = append(m.ContextBefore, lines[from:i]...)
			m.ContextAfter = append(m.ContextAfter, lines[i+1:to]...)
		}
		matches = append(matches, m)
	}
	return matches
}
