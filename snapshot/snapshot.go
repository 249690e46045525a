// Package snapshot persists the inverted index and its fingerprint table as
// a single versioned artifact, so startup can skip a full rescan.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentmemory/memsearch/invindex"
)

// FormatVersion identifies the snapshot schema. A reader seeing any other
// value must rebuild rather than misinterpret the payload.
const FormatVersion = 1

type snapshotFile struct {
	Version   int                         `json:"version"`
	CreatedAt time.Time                   `json:"created_at"`
	Documents map[string]invindex.DocInfo `json:"documents"`
	Terms     []invindex.TermEntry        `json:"terms"`
}

// Save writes the index to path atomically: the snapshot is marshaled into
// a temporary file in the same directory, fsynced, and renamed into place.
// A crash mid-write leaves the previous snapshot intact.
func Save(idx *invindex.Index, path string) error {
	payload, err := json.Marshal(snapshotFile{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		Documents: idx.Documents(),
		Terms:     idx.Entries(),
	})
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp snapshot file: %w", err)
	}

	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming snapshot into place: %w", err)
	}

	return nil
}

// Load reads a snapshot back into an index. It returns a NotFoundError if
// no snapshot exists, a VersionMismatchError for a foreign schema version,
// and a CorruptError if the payload does not parse. Callers treat all
// three the same way: rebuild from scratch.
func Load(path string) (*invindex.Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}

	if file.Version != FormatVersion {
		return nil, &VersionMismatchError{Path: path, Found: file.Version}
	}

	return invindex.Restore(file.Documents, file.Terms), nil
}
