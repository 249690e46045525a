// Package index runs the update cycle: load snapshot, scan the memory
// root, diff fingerprints, mutate the inverted index incrementally, and
// persist the result.
package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentmemory/memsearch/db/kvdb"
	"github.com/agentmemory/memsearch/docstore"
	"github.com/agentmemory/memsearch/invindex"
	"github.com/agentmemory/memsearch/logger"
	"github.com/agentmemory/memsearch/metrics"
	"github.com/agentmemory/memsearch/snapshot"
	"github.com/agentmemory/memsearch/tokenizer"
)

// MetadataStore is the slice of kvdb used for request bookkeeping.
type MetadataStore interface {
	Set(bucket string, key string, value string) error
	Get(bucket string, key string) (string, error)
	Delete(bucket string, key string) error
}

const (
	ProgressStatusQueued   = 0
	ProgressStatusRunning  = 50
	ProgressStatusComplete = 100
	ProgressStatusFailed   = -1

	maxConcurrentFileReads = 8
	maxUpdateCycleTime     = 30 * time.Minute
)

// RefreshStats summarizes one completed update cycle.
type RefreshStats struct {
	Documents int `json:"documents"`
	Terms     int `json:"terms"`
	Postings  int `json:"postings"`
	Added     int `json:"added"`
	Changed   int `json:"changed"`
	Deleted   int `json:"deleted"`
	Skipped   int `json:"skipped"`
}

type Service struct {
	logger        logger.Logger
	store         *docstore.Store
	metadataStore MetadataStore
	metrics       *metrics.Metrics
	snapshotPath  string

	idx     *invindex.Index
	buildC  chan buildRequest
	updates sync.Mutex // serializes update cycles; queries share the index's read lock
	ready   bool       // guarded by updates: at least one cycle ran this process
}

type buildRequest struct {
	requestID string
}

// New creates the service and loads the persisted snapshot if a compatible
// one exists. A missing, corrupt, or version-mismatched snapshot degrades
// to an empty index and the next update cycle rebuilds from scratch.
func New(ctx context.Context, logger logger.Logger, store *docstore.Store, metadataStore MetadataStore, m *metrics.Metrics, snapshotPath string) *Service {
	s := &Service{
		logger:        logger,
		store:         store,
		metadataStore: metadataStore,
		metrics:       m,
		snapshotPath:  snapshotPath,
		buildC:        make(chan buildRequest),
	}

	idx, err := snapshot.Load(snapshotPath)
	switch {
	case err == nil:
		stats := idx.Stats()
		logger.Info("loaded index snapshot", "path", snapshotPath, "documents", stats.Documents, "terms", stats.Terms)
	case snapshot.Recoverable(err):
		logger.Warn("no usable index snapshot, starting empty", "path", snapshotPath, "reason", err.Error())
		idx = invindex.New()
	default:
		logger.Warn("could not read index snapshot, starting empty", "path", snapshotPath, "err", err.Error())
		idx = invindex.New()
	}
	s.idx = idx

	go s.runBuilds(ctx)
	return s
}

// Index exposes the live inverted index for the query engine. Readers go
// through the index's own read lock.
func (s *Service) Index() *invindex.Index {
	return s.idx
}

// Refresh runs one full update cycle synchronously.
func (s *Service) Refresh(ctx context.Context) (RefreshStats, error) {
	s.updates.Lock()
	defer s.updates.Unlock()

	return s.refresh(ctx)
}

// EnsureReady guarantees at least one update cycle has completed in this
// process, so a search against a fresh process triggers a build rather
// than answering from nothing.
func (s *Service) EnsureReady(ctx context.Context) error {
	s.updates.Lock()
	defer s.updates.Unlock()

	if s.ready {
		return nil
	}
	_, err := s.refresh(ctx)
	return err
}

// Build queues an asynchronous update cycle. Only one may be in flight; a
// request arriving while one runs is rejected, matching the single-writer
// discipline.
func (s *Service) Build(requestID string) error {
	s.setRequestStatus(requestID, ProgressStatusQueued)

	select {
	case s.buildC <- buildRequest{requestID: requestID}:
		return nil
	default:
		s.logger.Warn("request to update index while an update is already in progress")
		return errors.New("index update already in progress")
	}
}

// Status returns the progress recorded for an async build request.
func (s *Service) Status(requestID string) (int, error) {
	value, err := s.metadataStore.Get(kvdb.RequestsBucket, requestID)
	if err != nil {
		return 0, fmt.Errorf("request not found: %w", err)
	}

	status, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid status value: %w", err)
	}

	return status, nil
}

// StatsReport is the index state surface exposed to callers, including the
// excluded promotion/compression/budget collaborators.
type StatsReport struct {
	invindex.Stats
	LastUpdate string `json:"last_update,omitempty"`
	Skipped    int    `json:"skipped,omitempty"`
}

func (s *Service) Stats() StatsReport {
	report := StatsReport{Stats: s.idx.Stats()}
	if lastUpdate, err := s.metadataStore.Get(kvdb.MetaBucket, kvdb.LastUpdateKey); err == nil {
		report.LastUpdate = lastUpdate
	}
	if skipped, err := s.metadataStore.Get(kvdb.MetaBucket, kvdb.LastSkippedKey); err == nil {
		report.Skipped, _ = strconv.Atoi(skipped)
	}
	return report
}

func (s *Service) runBuilds(ctx context.Context) {
	for {
		select {
		case req := <-s.buildC:
			s.runBuild(ctx, req.requestID)
		case <-ctx.Done():
			s.logger.Info("index service stopped", "reason", ctx.Err())
			return
		}
	}
}

func (s *Service) runBuild(ctx context.Context, requestID string) {
	cycleCtx, cancel := context.WithTimeout(ctx, maxUpdateCycleTime)
	defer cancel()

	s.setRequestStatus(requestID, ProgressStatusRunning)

	stats, err := s.Refresh(cycleCtx)
	if err != nil {
		s.logger.Error("index update failed", "request_id", requestID, "err", err.Error())
		s.setRequestStatus(requestID, ProgressStatusFailed)
		return
	}

	s.logger.Info("index update finished",
		"request_id", requestID,
		"documents", stats.Documents,
		"added", stats.Added,
		"changed", stats.Changed,
		"deleted", stats.Deleted,
		"skipped", stats.Skipped,
	)
	s.setRequestStatus(requestID, ProgressStatusComplete)
}

// refresh is the update cycle proper. Caller holds s.updates.
func (s *Service) refresh(ctx context.Context) (RefreshStats, error) {
	files, report, err := s.store.Scan()
	if err != nil {
		s.metrics.ObserveUpdateCycle(false, 0, 0, 0, 0)
		return RefreshStats{}, err
	}

	changes := docstore.Changes(s.idx.Fingerprints(), files)
	stats := RefreshStats{
		Added:   len(changes.Added),
		Changed: len(changes.Changed),
		Deleted: len(changes.Deleted),
	}

	deleted, updates, skipped := s.prepareUpdates(ctx, changes)
	if err := ctx.Err(); err != nil {
		s.metrics.ObserveUpdateCycle(false, 0, 0, 0, 0)
		return RefreshStats{}, err
	}

	s.idx.ApplyUpdate(deleted, updates)

	report.Merge(skipped)
	if report.Skipped > 0 {
		s.logger.Warn("some files were skipped during the update cycle",
			"skipped", report.Skipped, "first_paths", report.Paths)
	}

	if err := snapshot.Save(s.idx, s.snapshotPath); err != nil {
		// Degrades to an in-memory index for this run; search stays up.
		s.logger.Warn("could not persist index snapshot", "path", s.snapshotPath, "err", err.Error())
	}

	if err := s.metadataStore.Set(kvdb.MetaBucket, kvdb.LastUpdateKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		s.logger.Warn("could not record last update time", "err", err.Error())
	}
	if err := s.metadataStore.Set(kvdb.MetaBucket, kvdb.LastSkippedKey, strconv.Itoa(report.Skipped)); err != nil {
		s.logger.Warn("could not record skipped file count", "err", err.Error())
	}

	indexStats := s.idx.Stats()
	stats.Documents = indexStats.Documents
	stats.Terms = indexStats.Terms
	stats.Postings = indexStats.Postings
	stats.Skipped = report.Skipped

	s.metrics.ObserveUpdateCycle(true, stats.Documents, stats.Terms, stats.Postings, stats.Skipped)
	s.ready = true

	return stats, nil
}

// prepareUpdates reads and tokenizes every added or changed file with
// bounded parallelism. Mutation of the index happens afterwards, in one
// batch, on the caller's goroutine.
func (s *Service) prepareUpdates(ctx context.Context, changes docstore.ChangeSet) ([]string, []invindex.DocUpdate, docstore.ScanReport) {
	known := s.idx.Fingerprints()

	candidates := append(append([]docstore.FileMeta{}, changes.Added...), changes.Changed...)
	results := make([]*invindex.DocUpdate, len(candidates))
	vanished := make([]bool, len(candidates))
	var skippedMu sync.Mutex
	var skipped docstore.ScanReport

	group := &errgroup.Group{}
	group.SetLimit(maxConcurrentFileReads)

	for i, meta := range candidates {
		i, meta := i, meta
		group.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			content, err := s.store.ReadFile(meta.Path)
			if err != nil {
				if os.IsNotExist(err) {
					// Disappeared between scan and read: deleted this cycle.
					vanished[i] = true
					return nil
				}
				s.logger.Warn("skipping unreadable file", "path", meta.Path, "err", err.Error())
				skippedMu.Lock()
				skipped.Record(meta.Path)
				skippedMu.Unlock()
				return nil
			}

			hash := docstore.HashContent(content)
			update := &invindex.DocUpdate{
				Path: meta.Path,
				Info: invindex.DocInfo{
					Fingerprint: docstore.Fingerprint{
						Size:      meta.Size,
						ModTimeNS: meta.ModTime.UnixNano(),
						Hash:      hash,
					},
					ModTime: meta.ModTime,
				},
			}

			// Metadata changed but content did not (e.g. touch): refresh
			// the fingerprint, keep the postings.
			if prior, ok := known[meta.Path]; ok && prior.Hash == hash {
				update.FingerprintOnly = true
				results[i] = update
				return nil
			}

			tokens := tokenizer.Tokenize(content)
			update.Tokens = tokens
			update.Info.Lines = countLines(content)
			update.Info.Tokens = len(tokens)
			results[i] = update
			return nil
		})
	}
	group.Wait()

	deleted := append([]string{}, changes.Deleted...)
	updates := make([]invindex.DocUpdate, 0, len(candidates))
	for i := range candidates {
		switch {
		case vanished[i]:
			// Purge only if it was previously indexed.
			if _, ok := known[candidates[i].Path]; ok {
				deleted = append(deleted, candidates[i].Path)
			}
		case results[i] != nil:
			updates = append(updates, *results[i])
		}
	}

	return deleted, updates, skipped
}

func (s *Service) setRequestStatus(requestID string, status int) {
	if err := s.metadataStore.Set(kvdb.RequestsBucket, requestID, strconv.Itoa(status)); err != nil {
		s.logger.Error("failed to update request status", "request_id", requestID, "status", status, "err", err.Error())
	}
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	lines := 1
	for _, r := range content {
		if r == '\n' {
			lines++
		}
	}
	return lines
}
