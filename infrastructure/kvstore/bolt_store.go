package kvstore

import (
	"context"
	"encoding/binary"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltStore implements Store on an embedded bbolt database. It is the
// single-node fallback used when no Valkey address is configured.
// Expiry is lazy: stale entries are dropped the first time they are read.
type BoltStore struct {
	db       *bolt.DB
	bucket   []byte
	maxValue int
}

// OpenBoltStore opens (or creates) the store at path.
func OpenBoltStore(path string, maxValue int) (*BoltStore, error) {
	if maxValue <= 0 {
		maxValue = DefaultMaxValueSize
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	bucket := []byte("kv")
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db, bucket: bucket, maxValue: maxValue}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BoltStore) Get(ctx context.Context, key string) (string, bool, error) {
	var out []byte
	var found, expired bool
	if err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		// A value shorter than the expiry header is corrupt; treat as a miss.
		if len(v) < 8 {
			expired = true
			return nil
		}
		expiresAt := int64(binary.BigEndian.Uint64(v[:8]))
		if expiresAt > 0 && time.Now().Unix() > expiresAt {
			expired = true
			return nil
		}
		found = true
		out = append([]byte(nil), v[8:]...)
		return nil
	}); err != nil {
		return "", false, err
	}
	if expired {
		// Best effort cleanup; a failed delete just leaves a stale entry
		// that the next read skips again.
		_ = s.Delete(ctx, key)
		return "", false, nil
	}
	if !found {
		return "", false, nil
	}
	return string(out), true, nil
}

func (s *BoltStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if len(value) > s.maxValue {
		return ErrValueTooLarge
	}

	expiresAt := int64(0)
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).Unix()
	}
	// Layout: 8 bytes big endian expiresAt || raw value
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(expiresAt))
	copy(buf[8:], value)

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), buf)
	})
}

func (s *BoltStore) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

func (s *BoltStore) MaxValueSize() int {
	return s.maxValue
}

func (s *BoltStore) Ping(ctx context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error { return nil })
}
