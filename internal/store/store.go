// Package store is the durable-state collaborator: JSON snapshots of the
// games, members, and aliases collections, written by a periodic flush
// routine instead of per-mutation. Mutating code only marks collections
// dirty; every dirty mark is recorded as a discrete change record and audited
// to the sqlite change log on flush.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"

	"github.com/jvanvolken/pandacogs/internal/database"
)

// Collection identifies one durable collection.
type Collection string

const (
	Games   Collection = "games"
	Members Collection = "members"
	Aliases Collection = "aliases"
)

// Change is one recorded mutation awaiting flush.
type Change struct {
	Collection Collection
	Comment    string
	At         time.Time
}

// Snapshotter returns the current value of a collection for serialization.
type Snapshotter func() any

// Store owns the dirty-bit set, the pending change log, and the flush timer.
type Store struct {
	mu        sync.Mutex
	dir       string
	dirty     map[Collection]bool
	pending   []Change
	snapshots map[Collection]Snapshotter
	db        *database.DB
	cron      *cron.Cron
	logger    *log.Logger
}

// New creates a store rooted at dir. db may be nil; the change audit log is
// then kept in memory only for the life of the process.
func New(dir string, db *database.DB, logger *log.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Store{
		dir:       dir,
		dirty:     make(map[Collection]bool),
		snapshots: make(map[Collection]Snapshotter),
		db:        db,
		logger:    logger,
	}, nil
}

// Register wires a collection's snapshot function. Must be called before the
// first flush touches that collection.
func (s *Store) Register(c Collection, snap Snapshotter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[c] = snap
}

// Load reads a collection's JSON file into v. A missing file is not an
// error; the collection simply starts empty and the file appears on the
// first flush.
func (s *Store) Load(c Collection, v any) error {
	path := s.path(c)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// MarkDirty flags a collection for the next flush and records what changed.
func (s *Store) MarkDirty(c Collection, comment string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty[c] = true
	s.pending = append(s.pending, Change{Collection: c, Comment: comment, At: time.Now()})
}

// PendingChanges returns a copy of the unflushed change records.
func (s *Store) PendingChanges() []Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Change, len(s.pending))
	copy(out, s.pending)
	return out
}

// Flush writes every dirty collection to disk and audits the accumulated
// change records. Collections that fail to serialize stay dirty for the next
// cycle.
func (s *Store) Flush() error {
	s.mu.Lock()
	dirty := make([]Collection, 0, len(s.dirty))
	for c, d := range s.dirty {
		if d {
			dirty = append(dirty, c)
		}
	}
	changes := s.pending
	s.pending = nil
	snaps := make(map[Collection]any, len(dirty))
	for _, c := range dirty {
		if snap, ok := s.snapshots[c]; ok {
			snaps[c] = snap()
			s.dirty[c] = false
		}
	}
	s.mu.Unlock()

	var firstErr error
	for _, c := range dirty {
		v, ok := snaps[c]
		if !ok {
			continue
		}
		if err := s.writeJSON(c, v); err != nil {
			s.logger.Errorf("flush of %s failed: %v", c, err)
			s.mu.Lock()
			s.dirty[c] = true
			s.mu.Unlock()
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.logger.Debugf("flushed %s to %s", c, s.path(c))
	}

	if s.db != nil && len(changes) > 0 {
		records := make([]database.ChangeRecord, 0, len(changes))
		for _, ch := range changes {
			records = append(records, database.ChangeRecord{
				Collection: string(ch.Collection),
				Comment:    ch.Comment,
				CreatedAt:  ch.At,
			})
		}
		if err := s.db.RecordChanges(records); err != nil {
			s.logger.Errorf("failed to audit change log: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// Start schedules the periodic flush. The flush runs on the cron goroutine,
// never blocking event handling.
func (s *Store) Start(every time.Duration) error {
	if s.cron != nil {
		return fmt.Errorf("store flush already started")
	}
	s.cron = cron.New()
	spec := fmt.Sprintf("@every %s", every)
	if _, err := s.cron.AddFunc(spec, func() {
		s.logger.Debug("initiating routine data backup sequence")
		if err := s.Flush(); err != nil {
			s.logger.Errorf("routine backup failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule flush: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the flush schedule and performs a final synchronous flush.
func (s *Store) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.cron = nil
	}
	if err := s.Flush(); err != nil {
		s.logger.Errorf("final flush failed: %v", err)
	}
}

func (s *Store) path(c Collection) string {
	return filepath.Join(s.dir, string(c)+".json")
}

// writeJSON writes atomically via a temp file so a crash mid-write never
// corrupts the previous snapshot.
func (s *Store) writeJSON(c Collection, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", c, err)
	}

	tmp, err := os.CreateTemp(s.dir, string(c)+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", c, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), s.path(c))
}
