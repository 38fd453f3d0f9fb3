package replication

import (
	"encoding/binary"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var stateBucket = []byte("replication_state")

const lastAppliedSeqKey = "last_applied_seq"

// StateStore persists a replica's last_applied_seq across restarts so
// recovery can resume streaming from the master instead of re-applying a
// full snapshot every time (spec.md §4.J "the replica persists its
// last_applied_seq so a restart resumes without a full resync"). Grounded
// on cuemby-warren's BoltStore: a single bbolt file opened once
// with buckets created up front, read/write via db.View/db.Update closures.
type StateStore struct {
	db *bolt.DB
}

// OpenStateStore opens (creating if needed) the bbolt file at
// <dataDir>/replica_state.db.
func OpenStateStore(dataDir string) (*StateStore, error) {
	path := filepath.Join(dataDir, "replica_state.db")
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open replica state store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create replication_state bucket: %w", err)
	}
	return &StateStore{db: db}, nil
}

// Close releases the underlying bbolt file.
func (s *StateStore) Close() error {
	return s.db.Close()
}

// LastAppliedSeq returns the persisted sequence number, or 0 if none has
// ever been saved.
func (s *StateStore) LastAppliedSeq() (uint64, error) {
	var seq uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(stateBucket)
		v := b.Get([]byte(lastAppliedSeqKey))
		if v == nil {
			return nil
		}
		seq = binary.BigEndian.Uint64(v)
		return nil
	})
	return seq, err
}

// SaveLastAppliedSeq persists seq, overwriting any prior value.
func (s *StateStore) SaveLastAppliedSeq(seq uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(stateBucket)
		return b.Put([]byte(lastAppliedSeqKey), buf)
	})
}
