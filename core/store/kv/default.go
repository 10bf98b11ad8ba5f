package kv

import (
	"bytes"
	"time"

	"go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

// openTimeout bounds the wait on the file lock held by another process.
const openTimeout = 5 * time.Second

// diskDB is the bbolt implementation of the database. The whole database is a
// single file and every call runs in its own transaction.
//
// - implements kv.DB
type diskDB struct {
	bolt *bbolt.DB
}

// New opens the database file at the path, or creates it if the directory
// exists.
func New(path string) (DB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, xerrors.Errorf("failed to open db '%s': %v", path, err)
	}

	return diskDB{bolt: db}, nil
}

// View implements kv.DB. The bucket is not created, an error wrapping
// ErrBucketNotFound is returned instead.
func (db diskDB) View(name []byte, fn func(Bucket) error) error {
	return db.bolt.View(func(txn *bbolt.Tx) error {
		b := txn.Bucket(name)
		if b == nil {
			return xerrors.Errorf("bucket '%x': %w", name, ErrBucketNotFound)
		}

		return fn(diskBucket{inner: b})
	})
}

// Update implements kv.DB. The bucket is created on the first write and the
// transaction is rolled back when the function fails.
func (db diskDB) Update(name []byte, fn func(Bucket) error) error {
	return db.bolt.Update(func(txn *bbolt.Tx) error {
		b, err := txn.CreateBucketIfNotExists(name)
		if err != nil {
			return xerrors.Errorf("failed to create bucket: %v", err)
		}

		err = fn(diskBucket{inner: b})
		if err != nil {
			return xerrors.Errorf("update failed: %v", err)
		}

		return nil
	})
}

// Close implements kv.DB.
func (db diskDB) Close() error {
	err := db.bolt.Close()
	if err != nil {
		return xerrors.Errorf("failed to close db: %v", err)
	}

	return nil
}

// diskBucket is a bucket bound to the transaction of a View or an Update.
//
// - implements kv.Bucket
type diskBucket struct {
	inner *bbolt.Bucket
}

// Get implements kv.Bucket. The value is a copy that stays valid after the
// transaction.
func (b diskBucket) Get(key []byte) []byte {
	value := b.inner.Get(key)
	if value == nil {
		return nil
	}

	return append([]byte{}, value...)
}

// Set implements kv.Bucket.
func (b diskBucket) Set(key, value []byte) error {
	err := b.inner.Put(key, value)
	if err != nil {
		return xerrors.Errorf("failed to set key '%x': %v", key, err)
	}

	return nil
}

// Delete implements kv.Bucket.
func (b diskBucket) Delete(key []byte) error {
	err := b.inner.Delete(key)
	if err != nil {
		return xerrors.Errorf("failed to delete key '%x': %v", key, err)
	}

	return nil
}

// ForEach implements kv.Bucket. The keys are visited in byte order.
func (b diskBucket) ForEach(fn func(k, v []byte) error) error {
	err := b.inner.ForEach(fn)
	if err != nil {
		return xerrors.Errorf("callback failed: %v", err)
	}

	return nil
}

// Scan implements kv.Bucket. The keys matching the prefix are visited in byte
// order.
func (b diskBucket) Scan(prefix []byte, fn func(k, v []byte) error) error {
	cursor := b.inner.Cursor()

	k, v := cursor.Seek(prefix)
	for k != nil && bytes.HasPrefix(k, prefix) {
		err := fn(k, v)
		if err != nil {
			return xerrors.Errorf("callback failed: %v", err)
		}

		k, v = cursor.Next()
	}

	return nil
}
