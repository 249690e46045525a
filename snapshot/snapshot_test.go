package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentmemory/memsearch/docstore"
	"github.com/agentmemory/memsearch/invindex"
	"github.com/agentmemory/memsearch/tokenizer"
)

func buildTestIndex(t *testing.T) *invindex.Index {
	t.Helper()
	idx := invindex.New()

	docs := map[string]string{
		"2024-06-01.md": "rotate the moltbook credentials\nalpha beta",
		"MEMORY.md":     "standing summary with alpha",
	}
	for path, content := range docs {
		info := invindex.DocInfo{
			Fingerprint: docstore.Fingerprint{
				Size:      int64(len(content)),
				ModTimeNS: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC).UnixNano(),
				Hash:      docstore.HashContent(content),
			},
			ModTime: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		}
		idx.AddDocument(path, info, tokenizer.Tokenize(content))
	}
	return idx
}

func TestSaveLoadRoundTrip(t *testing.T) {
	assert := require.New(t)
	path := filepath.Join(t.TempDir(), "state", "index.json")

	idx := buildTestIndex(t)
	assert.NoError(Save(idx, path))

	loaded, err := Load(path)
	assert.NoError(err)

	// A loaded snapshot must answer every query identically.
	assert.Equal(idx.Entries(), loaded.Entries())
	assert.Equal(idx.Documents(), loaded.Documents())
	assert.Equal(idx.Stats(), loaded.Stats())
	assert.Equal(idx.Postings("moltbook"), loaded.Postings("moltbook"))
	assert.Equal(idx.Fingerprints(), loaded.Fingerprints())
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	assert := require.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	assert.NoError(Save(buildTestIndex(t), path))

	_, err := os.Stat(path + ".tmp")
	assert.True(os.IsNotExist(err))
}

func TestSaveReplacesExistingSnapshot(t *testing.T) {
	assert := require.New(t)
	path := filepath.Join(t.TempDir(), "index.json")

	assert.NoError(Save(invindex.New(), path))
	idx := buildTestIndex(t)
	assert.NoError(Save(idx, path))

	loaded, err := Load(path)
	assert.NoError(err)
	assert.Equal(idx.Stats(), loaded.Stats())
}

func TestLoadMissingSnapshot(t *testing.T) {
	assert := require.New(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(err, ErrNotFound)
	assert.True(Recoverable(err))
}

func TestLoadVersionMismatch(t *testing.T) {
	assert := require.New(t)
	path := filepath.Join(t.TempDir(), "index.json")

	payload, err := json.Marshal(map[string]any{"version": FormatVersion + 99})
	assert.NoError(err)
	assert.NoError(os.WriteFile(path, payload, 0644))

	_, err = Load(path)
	assert.ErrorIs(err, ErrVersionMismatch)
	assert.True(Recoverable(err))

	var mismatch *VersionMismatchError
	assert.ErrorAs(err, &mismatch)
	assert.Equal(FormatVersion+99, mismatch.Found)
}

func TestLoadCorruptSnapshot(t *testing.T) {
	assert := require.New(t)
	path := filepath.Join(t.TempDir(), "index.json")
	assert.NoError(os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	assert.ErrorIs(err, ErrCorrupt)
	assert.True(Recoverable(err))
}
