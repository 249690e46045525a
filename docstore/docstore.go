// Package docstore enumerates the text files under a memory root, tracks
// their change fingerprints and exposes their line-addressable content.
package docstore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"

	"github.com/agentmemory/memsearch/logger"
)

// Recognized memory-file extensions: daily logs and compressed summaries
// are markdown, the standing summary may be json or plain text.
var textExtensions = map[string]bool{
	".md":   true,
	".json": true,
	".txt":  true,
}

// maxReportedPaths caps how many skipped paths a ScanReport keeps verbatim.
const maxReportedPaths = 5

// FileMeta describes one candidate file found during a scan. Content is not
// read at scan time.
type FileMeta struct {
	// Path is relative to the memory root, slash-separated.
	Path    string
	Size    int64
	ModTime time.Time
}

// Fingerprint detects content changes without a full re-read. Size and
// modification time are the cheap screen filled in at scan time; Hash is
// the xxhash of the content, computed by the updater from bytes it reads
// anyway, and is the authority when metadata differs.
type Fingerprint struct {
	Size      int64  `json:"size"`
	ModTimeNS int64  `json:"mtime_ns"`
	Hash      uint64 `json:"hash"`
}

// MetaMatches reports whether the scanned metadata still matches the
// fingerprint recorded when the file was last indexed.
func (f Fingerprint) MetaMatches(meta FileMeta) bool {
	return f.Size == meta.Size && f.ModTimeNS == meta.ModTime.UnixNano()
}

// ScanReport accumulates per-file failures that were skipped rather than
// aborting the scan.
type ScanReport struct {
	Skipped int
	Paths   []string
}

// Record notes one skipped path, keeping at most maxReportedPaths verbatim.
func (r *ScanReport) Record(path string) {
	r.Skipped++
	if len(r.Paths) < maxReportedPaths {
		r.Paths = append(r.Paths, path)
	}
}

// Merge folds another report into this one, preserving the path cap.
func (r *ScanReport) Merge(other ScanReport) {
	r.Skipped += other.Skipped
	for _, path := range other.Paths {
		if len(r.Paths) >= maxReportedPaths {
			break
		}
		r.Paths = append(r.Paths, path)
	}
}

// HashContent returns the content fingerprint hash for a file's bytes.
func HashContent(content string) uint64 {
	return xxhash.Sum64String(content)
}

type Store struct {
	root   string
	logger logger.Logger
}

func New(root string, logger logger.Logger) *Store {
	return &Store{root: root, logger: logger}
}

func (s *Store) Root() string {
	return s.root
}

// Scan walks the memory root and returns metadata for every recognized
// text file. Per-file stat and permission failures are recorded in the
// report and skipped; only an unreadable root is fatal.
func (s *Store) Scan() ([]FileMeta, *ScanReport, error) {
	if _, err := os.Stat(s.root); err != nil {
		return nil, nil, fmt.Errorf("cannot read memory root %s: %w", s.root, err)
	}

	var files []FileMeta
	report := &ScanReport{}

	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// An unreadable root is the only fatal scan error; treating it
			// as a skip would diff an empty scan against the fingerprint
			// table and purge the whole index.
			if path == s.root {
				return fmt.Errorf("cannot read memory root %s: %w", s.root, err)
			}
			s.logger.Warn("skipping unreadable path during scan", "path", path, "err", err.Error())
			report.Record(path)
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		// Skip dot-directories (and the state dir if it lives under the
		// root), but never the root itself.
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != s.root {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(info.Name(), ".") {
			return nil
		}
		if !textExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			s.logger.Warn("could not relativize path", "path", path, "err", err.Error())
			report.Record(path)
			return nil
		}

		files = append(files, FileMeta{
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scan of %s failed: %w", s.root, err)
	}

	return files, report, nil
}

// ReadFile returns the full content of a document. Content that is not
// valid UTF-8 text yields a DecodeError; a missing file surfaces the
// underlying not-exist error so the updater can treat it as deleted.
func (s *Store) ReadFile(rel string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil {
		return "", err
	}

	if !utf8.Valid(data) || strings.ContainsRune(string(data), 0) {
		return "", &DecodeError{Path: rel}
	}

	return string(data), nil
}

// ReadLines returns the current line content of a document, newline
// stripped, for snippet extraction and re-indexing.
func (s *Store) ReadLines(rel string) ([]string, error) {
	content, err := s.ReadFile(rel)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines, nil
}

// ReadLineAt reads the single line starting at the given byte offset. Used
// at query time to produce the literal snippet for a match.
func (s *Store) ReadLineAt(rel string, offset int64) (string, error) {
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek in %s: %w", rel, err)
	}

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read line in %s: %w", rel, err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}
