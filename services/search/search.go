// Package search is the query engine: it parses a query with the same
// tokenizer used at index time, merges postings, ranks line-level
// candidates, and returns results with exact file/line provenance.
package search

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/agentmemory/memsearch/invindex"
	"github.com/agentmemory/memsearch/logger"
	"github.com/agentmemory/memsearch/metrics"
	"github.com/agentmemory/memsearch/tokenizer"
)

const (
	// maxLinesPerDocument caps how many lines one document may contribute
	// to a result list, so a single large daily log cannot drown out the
	// rest.
	maxLinesPerDocument = 3

	// contextLines is how many neighboring lines are returned on each side
	// of a matched line.
	contextLines = 1
)

// Indexer is the slice of the index service the query engine needs.
type Indexer interface {
	EnsureReady(ctx context.Context) error
	Index() *invindex.Index
}

// SnippetReader reads back the literal line text for a match.
type SnippetReader interface {
	ReadLineAt(rel string, offset int64) (string, error)
	ReadLines(rel string) ([]string, error)
}

// Result is one ranked hit. Plain data only; no index internals leak out.
// Context holds the matched line with up to contextLines neighbors on each
// side, in file order.
type Result struct {
	Path    string   `json:"path"`
	Line    int      `json:"line"`
	Snippet string   `json:"snippet"`
	Context []string `json:"context,omitempty"`
	Score   float64  `json:"score"`
}

type Service struct {
	logger   logger.Logger
	indexer  Indexer
	snippets SnippetReader
	metrics  *metrics.Metrics
}

func New(logger logger.Logger, indexer Indexer, snippets SnippetReader, m *metrics.Metrics) *Service {
	return &Service{
		logger:   logger,
		indexer:  indexer,
		snippets: snippets,
		metrics:  m,
	}
}

// candidate accumulates the score components for one (path, line).
type candidate struct {
	path       string
	line       int
	lineOffset int64
	distinct   int
	freq       int
	modTimeNS  int64
}

// Search returns up to topK ranked results for a plain-term query. A topK
// of zero or less means unbounded. An empty query, or one whose terms are
// all below the minimum token length, returns an empty result set.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	start := time.Now()

	terms := dedupe(tokenizer.Terms(query))
	if len(terms) == 0 {
		s.metrics.ObserveSearch(time.Since(start), 0, true)
		return []Result{}, nil
	}

	// No index built this run yet: build, then search.
	if err := s.indexer.EnsureReady(ctx); err != nil {
		return nil, err
	}

	idx := s.indexer.Index()
	candidates := s.collect(idx, terms)
	ranked := rank(candidates)
	results := s.assemble(ranked, len(terms), topK)

	s.metrics.ObserveSearch(time.Since(start), len(results), false)
	s.logger.Debug("search completed", "query", query, "terms", len(terms), "results", len(results))

	return results, nil
}

type lineKey struct {
	path string
	line int
}

// collect OR-merges the posting lists of every query term. A term with no
// postings contributes nothing; no term is mandatory.
func (s *Service) collect(idx *invindex.Index, terms []string) map[lineKey]*candidate {
	candidates := make(map[lineKey]*candidate)
	for _, term := range terms {
		for _, posting := range idx.Postings(term) {
			key := lineKey{path: posting.Path, line: posting.Line}
			c, ok := candidates[key]
			if !ok {
				c = &candidate{
					path:       posting.Path,
					line:       posting.Line,
					lineOffset: posting.LineOffset,
				}
				if info, found := idx.Document(posting.Path); found {
					c.modTimeNS = info.ModTime.UnixNano()
				}
				candidates[key] = c
			}
			// Postings are unique per (term, path, line), so each term
			// counts once here.
			c.distinct++
			c.freq += posting.Freq
		}
	}

	return candidates
}

// rank orders candidates by distinct query terms matched, then summed line
// frequency, then document recency; path and line break remaining ties so
// the order is deterministic.
func rank(candidates map[lineKey]*candidate) []*candidate {
	ranked := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, c)
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.distinct != b.distinct {
			return a.distinct > b.distinct
		}
		if a.freq != b.freq {
			return a.freq > b.freq
		}
		if a.modTimeNS != b.modTimeNS {
			return a.modTimeNS > b.modTimeNS
		}
		if a.path != b.path {
			return a.path < b.path
		}
		return a.line < b.line
	})

	return ranked
}

// assemble applies the per-document cap and topK truncation, then reads
// back the literal line snippets.
func (s *Service) assemble(ranked []*candidate, queryTerms, topK int) []Result {
	results := make([]Result, 0, len(ranked))
	perDoc := make(map[string]int)
	lineCache := make(map[string][]string)

	for _, c := range ranked {
		if perDoc[c.path] >= maxLinesPerDocument {
			continue
		}
		if topK > 0 && len(results) >= topK {
			break
		}
		perDoc[c.path]++

		results = append(results, Result{
			Path:    c.path,
			Line:    c.line,
			Snippet: s.snippet(c.path, c.lineOffset),
			Context: s.context(lineCache, c.path, c.line),
			Score:   float64(c.distinct) / float64(queryTerms),
		})
	}

	return results
}

// context returns the matched line and its neighbors. The file's lines are
// read at most once per search, however many hits it contributed.
func (s *Service) context(cache map[string][]string, path string, line int) []string {
	lines, ok := cache[path]
	if !ok {
		var err error
		lines, err = s.snippets.ReadLines(path)
		if err != nil {
			if !os.IsNotExist(err) {
				s.logger.Warn("could not read context lines", "path", path, "err", err.Error())
			}
			lines = nil
		}
		cache[path] = lines
	}

	if line < 1 || line > len(lines) {
		return nil
	}
	lo := line - 1 - contextLines
	if lo < 0 {
		lo = 0
	}
	hi := line + contextLines
	if hi > len(lines) {
		hi = len(lines)
	}
	return append([]string{}, lines[lo:hi]...)
}

func (s *Service) snippet(path string, offset int64) string {
	line, err := s.snippets.ReadLineAt(path, offset)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("could not read snippet", "path", path, "err", err.Error())
		}
		return ""
	}
	return line
}

func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	unique := terms[:0]
	for _, term := range terms {
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		unique = append(unique, term)
	}
	return unique
}
