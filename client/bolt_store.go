package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	sessionBucket = []byte("session")
	currentKey    = []byte("current")
)

// BoltSessionStore keeps the session in a bbolt file so a CLI can reuse it
// between runs.
type BoltSessionStore struct {
	db *bolt.DB
}

// OpenBoltSessionStore opens (or creates) the store at path.
func OpenBoltSessionStore(path string) (*BoltSessionStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init session store: %w", err)
	}

	return &BoltSessionStore{db: db}, nil
}

func (b *BoltSessionStore) Save(s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionBucket).Put(currentKey, raw)
	})
}

func (b *BoltSessionStore) Load() (*Session, error) {
	var s *Session
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(sessionBucket).Get(currentKey)
		if raw == nil {
			return ErrNoSession
		}
		s = &Session{}
		return json.Unmarshal(raw, s)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (b *BoltSessionStore) Clear() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionBucket).Delete(currentKey)
	})
}

// Close releases the file lock.
func (b *BoltSessionStore) Close() error {
	return b.db.Close()
}
