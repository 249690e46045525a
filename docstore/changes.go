package docstore

import "sort"

// ChangeSet is the outcome of comparing a scan against the fingerprints
// recorded at the last update. Detection is kept separate from index
// mutation so both sides stay independently testable.
type ChangeSet struct {
	// Added are files with no recorded fingerprint.
	Added []FileMeta
	// Changed are files whose size or mtime no longer match. The updater
	// still compares content hashes before reindexing, so a touched but
	// unmodified file costs one read, not a reindex.
	Changed []FileMeta
	// Deleted are previously indexed paths absent from the scan.
	Deleted []string
}

func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Changed) == 0 && len(c.Deleted) == 0
}

// Changes diffs a scan against known fingerprints. Pure function.
func Changes(known map[string]Fingerprint, scanned []FileMeta) ChangeSet {
	var set ChangeSet

	seen := make(map[string]struct{}, len(scanned))
	for _, meta := range scanned {
		seen[meta.Path] = struct{}{}

		fingerprint, ok := known[meta.Path]
		switch {
		case !ok:
			set.Added = append(set.Added, meta)
		case !fingerprint.MetaMatches(meta):
			set.Changed = append(set.Changed, meta)
		}
	}

	for path := range known {
		if _, ok := seen[path]; !ok {
			set.Deleted = append(set.Deleted, path)
		}
	}
	sort.Strings(set.Deleted)

	return set
}
