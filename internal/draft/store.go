// Package draft persists proposal draft snapshots to a local bbolt database,
// independent of network submission. Saves are debounced; restore is
// tolerant of partial or corrupt data.
package draft

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketDrafts = []byte("drafts")

// envelope wraps a snapshot with its write time so the janitor can judge
// staleness without understanding the draft shape.
type envelope struct {
	UpdatedAt time.Time       `json:"updated_at"`
	Draft     json.RawMessage `json:"draft"`
}

// Store is the durable draft snapshot store. One timer per draft id gives
// debounced saves last-write-wins semantics.
type Store struct {
	db    *bolt.DB
	delay time.Duration
	log   *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// Open creates or opens the bbolt database at path.
func Open(path string, debounce time.Duration, log *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create draft db dir: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open draft db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDrafts)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init draft bucket: %w", err)
	}

	return &Store{
		db:     db,
		delay:  debounce,
		log:    log,
		timers: make(map[string]*time.Timer),
	}, nil
}

// Save serializes the snapshot and writes it immediately, cancelling any
// pending debounced save for the same draft.
func (s *Store) Save(id string, snapshot any) error {
	s.Cancel(id)
	data, err := s.encode(snapshot)
	if err != nil {
		return err
	}
	return s.write(id, data)
}

// Schedule captures the snapshot now and writes it after the quiet period.
// A newer Schedule or Save supersedes the pending write.
func (s *Store) Schedule(id string, snapshot any) {
	data, err := s.encode(snapshot)
	if err != nil {
		s.log.Error("failed to encode draft snapshot", "draft_id", id, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
	}
	s.timers[id] = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		if err := s.write(id, data); err != nil {
			s.log.Error("debounced draft save failed", "draft_id", id, "error", err)
		}
	})
}

// Restore deserializes the stored snapshot into dest, which must be a
// non-nil pointer. Missing drafts and corrupt payloads both report
// found=false without error: a fresh draft is always an acceptable answer.
// dest is written only when the whole payload decodes, so a snapshot that
// fails halfway cannot leak partial state. Restoring twice yields the same
// state.
func (s *Store) Restore(id string, dest any) (bool, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketDrafts).Get([]byte(id)); v != nil {
			raw = append(raw, v...)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("read draft: %w", err)
	}
	if raw == nil {
		return false, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.log.Warn("discarding corrupt draft snapshot", "draft_id", id, "error", err)
		return false, nil
	}
	// decode into a scratch value first: json.Unmarshal fills fields up to
	// the point of failure, and a half-restored draft must never escape
	scratch := reflect.New(reflect.ValueOf(dest).Elem().Type())
	if err := json.Unmarshal(env.Draft, scratch.Interface()); err != nil {
		s.log.Warn("discarding unreadable draft payload", "draft_id", id, "error", err)
		return false, nil
	}
	reflect.ValueOf(dest).Elem().Set(scratch.Elem())
	return true, nil
}

// Clear removes the stored snapshot and cancels any pending save, so a late
// debounced write can never resurrect a cleared draft.
func (s *Store) Clear(id string) error {
	s.Cancel(id)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDrafts).Delete([]byte(id))
	})
}

// Cancel invalidates a pending debounced save without touching stored data.
func (s *Store) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// Purge deletes drafts whose last write is older than the retention period
// and returns how many were removed.
func (s *Store) Purge(retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)
	var removed int
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDrafts)
		c := b.Cursor()
		var stale [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var env envelope
			if err := json.Unmarshal(v, &env); err != nil || env.UpdatedAt.Before(cutoff) {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// Close stops all pending timers and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	return s.db.Close()
}

func (s *Store) encode(snapshot any) ([]byte, error) {
	draft, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode draft: %w", err)
	}
	return json.Marshal(envelope{UpdatedAt: time.Now().UTC(), Draft: draft})
}

func (s *Store) write(id string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDrafts).Put([]byte(id), data)
	})
}
