// Package dedup owns the durable set of already-processed post identifiers.
// A post ID is committed only after its terminal outcome (notified, or judged
// not relevant), so anything uncommitted is retried on the next run.
package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wefunai/reddit-leads-bot/internal/storage"
)

// CorruptError means the persisted record exists but cannot be parsed.
// There is no safe default: starting empty would re-notify everything, so the
// run must abort instead.
type CorruptError struct {
	Name string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("dedup store %s is corrupt: %v", e.Name, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// WriteError means a commit could not be persisted. The post involved must
// not be treated as processed.
type WriteError struct {
	PostID string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to persist processed record for %s: %v", e.PostID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// fileLayout is the persisted JSON shape. Kept flat and human-readable so the
// store can be inspected and repaired by hand.
type fileLayout struct {
	Processed   map[string]time.Time `json:"processed"`
	LastUpdated time.Time            `json:"last_updated"`
}

// Store is the durable processed-post set. It is not safe for concurrent
// use; the orchestrator guarantees a single run at a time.
type Store struct {
	backend    storage.Backend
	name       string
	maxEntries int
	processed  map[string]time.Time
	loaded     bool
}

// NewStore creates a store persisted under name in the given backend.
// maxEntries <= 0 disables trimming.
func NewStore(backend storage.Backend, name string, maxEntries int) *Store {
	return &Store{
		backend:    backend,
		name:       name,
		maxEntries: maxEntries,
		processed:  make(map[string]time.Time),
	}
}

// Load reads the persisted record set. A missing object initializes an empty
// set; unparseable data is a CorruptError.
func (s *Store) Load(ctx context.Context) error {
	data, err := s.backend.Retrieve(ctx, s.name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.processed = make(map[string]time.Time)
			s.loaded = true
			logrus.Infof("No existing dedup store %s, starting empty", s.name)
			return nil
		}
		return fmt.Errorf("failed to load dedup store: %w", err)
	}

	var layout fileLayout
	if err := json.Unmarshal(data, &layout); err != nil {
		return &CorruptError{Name: s.name, Err: err}
	}
	if layout.Processed == nil {
		layout.Processed = make(map[string]time.Time)
	}

	s.processed = layout.Processed
	s.loaded = true
	logrus.Debugf("Loaded %d processed records from %s", len(s.processed), s.name)
	return nil
}

// Contains reports whether a ProcessedRecord exists for the post ID,
// including records committed in prior runs.
func (s *Store) Contains(postID string) bool {
	_, ok := s.processed[postID]
	return ok
}

// Len returns the number of processed records currently held.
func (s *Store) Len() int {
	return len(s.processed)
}

// Commit idempotently records the post ID as processed and persists the set
// before returning. If persisting fails the in-memory mark is rolled back and
// a WriteError is returned, so the caller retries the post next run.
func (s *Store) Commit(ctx context.Context, postID string) error {
	if !s.loaded {
		return fmt.Errorf("dedup store used before Load")
	}
	if _, ok := s.processed[postID]; ok {
		return nil
	}

	s.processed[postID] = time.Now().UTC()
	if err := s.save(ctx); err != nil {
		delete(s.processed, postID)
		return &WriteError{PostID: postID, Err: err}
	}
	return nil
}

func (s *Store) save(ctx context.Context) error {
	trimmed, dropped := s.trimmed()

	data, err := json.MarshalIndent(fileLayout{
		Processed:   trimmed,
		LastUpdated: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal dedup store: %w", err)
	}

	if err := s.backend.Store(ctx, s.name, data); err != nil {
		return err
	}

	// The trim takes effect in memory only once it is durable; a failed write
	// must not lose records the file still carries.
	if dropped > 0 {
		s.processed = trimmed
		logrus.Debugf("Trimmed %d oldest records from dedup store", dropped)
	}
	return nil
}

// trimmed returns the record set with the oldest entries beyond maxEntries
// removed, keeping the file from growing without bound. Old entries only
// matter while their posts are still visible in the feeds, which is a matter
// of days.
func (s *Store) trimmed() (map[string]time.Time, int) {
	if s.maxEntries <= 0 || len(s.processed) <= s.maxEntries {
		return s.processed, 0
	}

	type entry struct {
		id string
		at time.Time
	}
	entries := make([]entry, 0, len(s.processed))
	for id, at := range s.processed {
		entries = append(entries, entry{id, at})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].at.Before(entries[j].at)
	})

	kept := make(map[string]time.Time, s.maxEntries)
	for _, e := range entries[len(entries)-s.maxEntries:] {
		kept[e.id] = e.at
	}
	return kept, len(entries) - s.maxEntries
}
