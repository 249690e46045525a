// Package invindex holds the in-memory inverted index: a mapping from each
// normalized term to the ordered set of line-level occurrences across all
// live memory files, plus the per-document bookkeeping needed to update it
// incrementally.
package invindex

import (
	"sort"
	"sync"
	"time"

	"github.com/agentmemory/memsearch/docstore"
	"github.com/agentmemory/memsearch/tokenizer"
)

// Posting records one term's occurrences on a single line of a document.
// Postings are owned by their term's index entry; documents are referenced
// by path only.
type Posting struct {
	Path string `json:"path"`
	// Line is 1-based.
	Line int `json:"line"`
	// Freq is the term frequency within that line.
	Freq int `json:"freq"`
	// LineOffset is the byte offset of the line start, for snippet reads.
	LineOffset int64 `json:"offset"`
}

// DocInfo is the per-document record kept alongside the postings.
type DocInfo struct {
	Fingerprint docstore.Fingerprint `json:"fingerprint"`
	ModTime     time.Time            `json:"mod_time"`
	Lines       int                  `json:"lines"`
	Tokens      int                  `json:"tokens"`
}

// TermEntry is one term with its postings ordered by (path, line). The
// serialized snapshot is a sorted slice of these.
type TermEntry struct {
	Term     string    `json:"term"`
	Postings []Posting `json:"postings"`
}

// Stats are the index size metrics exposed to callers.
type Stats struct {
	Documents int `json:"documents"`
	Terms     int `json:"terms"`
	Postings  int `json:"postings"`
}

// Index supports a single writer and multiple concurrent readers. An update
// cycle mutates it through ApplyUpdate, which holds the write lock for the
// whole batch so queries never observe a half-applied cycle.
type Index struct {
	mu sync.RWMutex

	// term -> path -> postings ordered by line
	postings map[string]map[string][]Posting
	// path -> terms, the reverse lookup used to purge a document
	docTerms map[string]map[string]struct{}
	docs     map[string]DocInfo

	postingCount int
}

func New() *Index {
	return &Index{
		postings: make(map[string]map[string][]Posting),
		docTerms: make(map[string]map[string]struct{}),
		docs:     make(map[string]DocInfo),
	}
}

// DocUpdate describes one document's contribution to an update batch. When
// FingerprintOnly is set the document's content hash was unchanged, so only
// its recorded fingerprint is refreshed and its postings are left alone.
type DocUpdate struct {
	Path            string
	Info            DocInfo
	Tokens          []tokenizer.Token
	FingerprintOnly bool
}

// ApplyUpdate removes all postings for the given paths, then inserts the
// given documents (purging any prior postings of theirs first). Everything
// happens under one write lock.
func (idx *Index) ApplyUpdate(deleted []string, updates []DocUpdate) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, path := range deleted {
		idx.removeDocument(path)
	}

	for _, update := range updates {
		if update.FingerprintOnly {
			if info, ok := idx.docs[update.Path]; ok {
				info.Fingerprint = update.Info.Fingerprint
				info.ModTime = update.Info.ModTime
				idx.docs[update.Path] = info
			}
			continue
		}

		idx.removeDocument(update.Path)
		idx.addDocument(update.Path, update.Info, update.Tokens)
	}
}

// AddDocument indexes one document's tokens. Any postings previously
// recorded for the path are purged first, so the index never mixes old and
// new lines of the same file.
func (idx *Index) AddDocument(path string, info DocInfo, tokens []tokenizer.Token) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.removeDocument(path)
	idx.addDocument(path, info, tokens)
}

// RemoveDocument purges every posting referencing the path and drops its
// document record.
func (idx *Index) RemoveDocument(path string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.removeDocument(path)
}

func (idx *Index) addDocument(path string, info DocInfo, tokens []tokenizer.Token) {
	terms := make(map[string]struct{})

	for _, token := range tokens {
		byPath, ok := idx.postings[token.Term]
		if !ok {
			byPath = make(map[string][]Posting)
			idx.postings[token.Term] = byPath
		}

		list := byPath[path]
		// Tokens arrive in line order, so a repeat on the same line is
		// always the tail posting.
		if n := len(list); n > 0 && list[n-1].Line == token.Line {
			list[n-1].Freq++
		} else {
			list = append(list, Posting{
				Path:       path,
				Line:       token.Line,
				Freq:       1,
				LineOffset: token.LineOffset,
			})
			idx.postingCount++
		}
		byPath[path] = list
		terms[token.Term] = struct{}{}
	}

	idx.docTerms[path] = terms
	idx.docs[path] = info
}

func (idx *Index) removeDocument(path string) {
	for term := range idx.docTerms[path] {
		byPath := idx.postings[term]
		idx.postingCount -= len(byPath[path])
		delete(byPath, path)
		if len(byPath) == 0 {
			delete(idx.postings, term)
		}
	}
	delete(idx.docTerms, path)
	delete(idx.docs, path)
}

// Postings returns the postings for a term ordered by (path, line). The
// returned slice is a copy.
func (idx *Index) Postings(term string) []Posting {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.mergedPostings(term)
}

func (idx *Index) mergedPostings(term string) []Posting {
	byPath, ok := idx.postings[term]
	if !ok {
		return nil
	}

	paths := make([]string, 0, len(byPath))
	for path := range byPath {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var merged []Posting
	for _, path := range paths {
		merged = append(merged, byPath[path]...)
	}
	return merged
}

// TermsFor returns the sorted terms a document currently contributes.
func (idx *Index) TermsFor(path string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	terms := make([]string, 0, len(idx.docTerms[path]))
	for term := range idx.docTerms[path] {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// Document returns the record for a path, if indexed.
func (idx *Index) Document(path string) (DocInfo, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	info, ok := idx.docs[path]
	return info, ok
}

// Fingerprints returns a copy of the per-document fingerprint table, the
// input for change detection on the next scan.
func (idx *Index) Fingerprints() map[string]docstore.Fingerprint {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	fingerprints := make(map[string]docstore.Fingerprint, len(idx.docs))
	for path, info := range idx.docs {
		fingerprints[path] = info.Fingerprint
	}
	return fingerprints
}

// Documents returns a copy of the document table.
func (idx *Index) Documents() map[string]DocInfo {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	docs := make(map[string]DocInfo, len(idx.docs))
	for path, info := range idx.docs {
		docs[path] = info
	}
	return docs
}

func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return Stats{
		Documents: len(idx.docs),
		Terms:     len(idx.postings),
		Postings:  idx.postingCount,
	}
}

// Entries returns every term with its postings, sorted by term then by
// (path, line), the deterministic form used by persistence and by tests
// asserting index equivalence.
func (idx *Index) Entries() []TermEntry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	entries := make([]TermEntry, 0, len(idx.postings))
	for term := range idx.postings {
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: idx.mergedPostings(term),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// Restore rebuilds an index from a snapshot's document table and term
// entries, reconstructing the reverse lookup and posting counts.
func Restore(docs map[string]DocInfo, entries []TermEntry) *Index {
	idx := New()

	for path, info := range docs {
		idx.docs[path] = info
		idx.docTerms[path] = make(map[string]struct{})
	}

	for _, entry := range entries {
		byPath := make(map[string][]Posting)
		for _, posting := range entry.Postings {
			byPath[posting.Path] = append(byPath[posting.Path], posting)
			idx.postingCount++

			terms, ok := idx.docTerms[posting.Path]
			if !ok {
				terms = make(map[string]struct{})
				idx.docTerms[posting.Path] = terms
			}
			terms[entry.Term] = struct{}{}
		}
		idx.postings[entry.Term] = byPath
	}

	return idx
}
