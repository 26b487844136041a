package calendar

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var activeBucket = []byte("active_reminders")

// Store keeps the references of posted reminder messages across restarts.
type Store interface {
	Load() ([]MessageRef, error)
	Save(refs []MessageRef) error
}

// BoltStore is a Store backed by a bbolt database file.
type BoltStore struct {
	db *bolt.DB
}

var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens, or creates, the database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open state file %s: %w", path, err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Load returns the stored references. An empty database yields no references.
func (s *BoltStore) Load() ([]MessageRef, error) {
	var refs []MessageRef
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(activeBucket)
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var ref MessageRef
			if err := json.Unmarshal(v, &ref); err != nil {
				return fmt.Errorf("invalid reference %s: %w", k, err)
			}
			refs = append(refs, ref)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// Save replaces the stored references with refs.
func (s *BoltStore) Save(refs []MessageRef) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(activeBucket) != nil {
			if err := tx.DeleteBucket(activeBucket); err != nil {
				return err
			}
		}

		b, err := tx.CreateBucket(activeBucket)
		if err != nil {
			return err
		}

		for _, ref := range refs {
			v, err := json.Marshal(ref)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(ref.MessageID), v); err != nil {
				return err
			}
		}
		return nil
	})
}
