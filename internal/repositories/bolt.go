package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketEntries = []byte("entries")

// BoltRepository implements [storage.Engine] backed by BoltDB.
//
// Bolt holds an exclusive file lock, so only one process can open the file.
// Cross-process sync still goes through the SQLite journal.
type BoltRepository struct {
	db *bolt.DB
}

// NewBoltRepository opens (or creates) a BoltDB database at path.
func NewBoltRepository(path string) (*BoltRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEntries)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &BoltRepository{db: db}, nil
}

// Get reads the document stored under key.
func (r *BoltRepository) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	found := false
	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketEntries).Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		// v is only valid for the life of the transaction.
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

// Set stores value under key.
func (r *BoltRepository) Set(_ context.Context, key string, value []byte) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Put([]byte(key), value)
	})
}

// Remove deletes key.
func (r *BoltRepository) Remove(_ context.Context, key string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Delete([]byte(key))
	})
}

// Clear drops and recreates the bucket.
func (r *BoltRepository) Clear(_ context.Context) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketEntries); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(bucketEntries)
		return err
	})
}

// Keys returns every key in byte order.
func (r *BoltRepository) Keys(_ context.Context) ([]string, error) {
	var keys []string
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// Close closes the underlying BoltDB.
func (r *BoltRepository) Close() error {
	return r.db.Close()
}
