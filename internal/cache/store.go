// Package cache persists the FIFO sequence of telemetry records awaiting
// delivery. The in-memory slice is authoritative for the process lifetime;
// every mutation rewrites the persisted form in full before returning.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/juju/errors"

	"github.com/edgesim/edgesim/log2"
	"github.com/edgesim/edgesim/telemetry"
)

// Store contract:
// - Load() never fails on absent or malformed state, worst case starts empty
// - Append() keeps the record in memory even when the disk write failed
// - DrainAll() is atomic: concurrent Append goes either before the snapshot
//   or after the clear, never both
// The coordinator is the single mutator; the mutex only guards against its
// tick and reconnect paths racing.
type Store struct {
	sync.Mutex
	log     *log2.Log
	records []telemetry.Record
	storage storage
}

func NewStore(root string, guarded bool, log *log2.Log) (*Store, error) {
	if root == "" {
		return nil, errors.NotValidf("cache: empty persist root")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Annotatef(err, "cache: mkdir root=%s", root)
	}
	s := &Store{log: log}
	if guarded {
		s.storage = newGuardedStorage(root)
	} else {
		s.storage = newFileStorage(filepath.Join(root, "cache.json"))
	}
	return s, nil
}

// Load reads persisted state at startup. Absent state is a normal first
// boot. Malformed state is recoverable data loss, logged and discarded.
func (s *Store) Load() error {
	s.Lock()
	defer s.Unlock()

	b, err := s.storage.Read()
	if b == nil {
		if err != nil {
			s.log.Errorf("cache: load storage err=%v, starting empty", err)
		}
		s.records = nil
		return nil
	}
	if err != nil {
		s.log.Errorf("cache: load ignore non-critical storage err=%v", err)
	}
	var rs []telemetry.Record
	if err := json.Unmarshal(b, &rs); err != nil {
		s.log.Errorf("cache: malformed persisted state len=%d err=%v, starting empty", len(b), err)
		s.records = nil
		return nil
	}
	s.records = rs
	s.log.Debugf("cache: loaded records=%d", len(rs))
	return nil
}

// Append adds the record and synchronously rewrites the persisted
// sequence. On persist failure the record stays in memory and the error is
// returned for the caller to log.
func (s *Store) Append(r telemetry.Record) error {
	s.Lock()
	defer s.Unlock()

	s.records = append(s.records, r)
	return errors.Annotate(s.persistLocked(), "cache: append persist")
}

// DrainAll removes and returns every cached record in insertion order and
// persists the now-empty sequence. Persist failure does not affect the
// returned snapshot.
func (s *Store) DrainAll() []telemetry.Record {
	s.Lock()
	defer s.Unlock()

	snapshot := s.records
	s.records = nil
	if err := s.persistLocked(); err != nil {
		s.log.Errorf("cache: drain persist err=%v", err)
	}
	return snapshot
}

// Flush rewrites the persisted form of the current in-memory sequence.
// Called on shutdown to retry a possibly failed earlier persist.
func (s *Store) Flush() error {
	s.Lock()
	defer s.Unlock()
	return errors.Annotate(s.persistLocked(), "cache: flush persist")
}

func (s *Store) Len() int {
	s.Lock()
	defer s.Unlock()
	return len(s.records)
}

func (s *Store) persistLocked() error {
	rs := s.records
	if rs == nil {
		rs = []telemetry.Record{}
	}
	b, err := json.Marshal(rs)
	if err != nil {
		// Record is a plain value struct, this cannot happen
		return errors.Annotate(err, "marshal")
	}
	_, err = s.storage.Write(b)
	return errors.Trace(err)
}
