package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"contractbot/internal/logging"
	"contractbot/internal/session"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefixSession = "session:"

// Snapshots keeps copies of in-memory sessions in Badger so a restart can
// resume in-progress tasks. Entries expire with the session TTL.
type Snapshots struct {
	db  *badger.DB
	ttl time.Duration
}

// Source is anything that can enumerate live sessions; *session.MemoryStore
// satisfies it.
type Source interface {
	Range(fn func(*session.ConversationSession) bool)
}

// OpenSnapshots opens the snapshot database in dir. An empty dir keeps it in
// memory.
func OpenSnapshots(dir string, ttl time.Duration) (*Snapshots, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		logging.StoreError("Failed to open snapshot store at %q: %v", dir, err)
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	logging.Store("Snapshot store ready at %q (ttl %s)", dir, ttl)
	return &Snapshots{db: db, ttl: ttl}, nil
}

func sessionKey(id string) []byte { return []byte(keyPrefixSession + id) }

// Save writes every session in one batch.
func (s *Snapshots) Save(sessions []*session.ConversationSession) error {
	if len(sessions) == 0 {
		return nil
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, sess := range sessions {
		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("marshal session %s: %w", sess.ID, err)
		}
		e := badger.NewEntry(sessionKey(sess.ID), data)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		if err := wb.SetEntry(e); err != nil {
			return fmt.Errorf("stage session %s: %w", sess.ID, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush snapshots: %w", err)
	}
	logging.StoreDebug("Saved %d session snapshots", len(sessions))
	return nil
}

// LoadAll returns every unexpired snapshot. Corrupt entries are skipped.
func (s *Snapshots) LoadAll() ([]*session.ConversationSession, error) {
	var out []*session.ConversationSession
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixSession)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.Valid(); it.Next() {
			item := it.Item()
			var sess session.ConversationSession
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &sess)
			})
			if err != nil {
				logging.Get(logging.CategoryStore).Warn("skipping corrupt snapshot %s: %v", item.Key(), err)
				continue
			}
			out = append(out, &sess)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	return out, nil
}

// Delete removes one session's snapshot. Missing keys are not an error.
func (s *Snapshots) Delete(id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(sessionKey(id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	return nil
}

// SaveFrom snapshots every session src currently holds.
func (s *Snapshots) SaveFrom(src Source) error {
	var sessions []*session.ConversationSession
	src.Range(func(sess *session.ConversationSession) bool {
		sessions = append(sessions, sess)
		return true
	})
	return s.Save(sessions)
}

// Run snapshots src every interval until ctx is done, then once more.
func (s *Snapshots) Run(ctx context.Context, interval time.Duration, src Source) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := s.SaveFrom(src); err != nil {
				logging.StoreError("final snapshot failed: %v", err)
			}
			return nil
		case <-ticker.C:
			if err := s.SaveFrom(src); err != nil {
				logging.StoreError("snapshot failed: %v", err)
			}
		}
	}
}

// Close closes the database.
func (s *Snapshots) Close() error {
	return s.db.Close()
}
