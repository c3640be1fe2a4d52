// Package boltlocator is a locator.Store backed by go.etcd.io/bbolt, used
// as the durable stand-in for the versioned znode store the original
// BookKeeper-backed schema storage used ZooKeeper for. Bolt's serialized,
// single-writer transactions give the CAS in Update its atomicity for
// free: the read-compare-write all happens inside one bolt.Update call. A
// ristretto cache sits in front of Read, invalidated on every successful
// Create/Update for that path.
package boltlocator

import (
	"encoding/binary"

	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/chn0318/schemastore/future"
	"github.com/chn0318/schemastore/locator"
)

var bucketName = []byte("schemas")

// Store is a bbolt-backed locator.Store with a read cache in front.
type Store struct {
	db    *bolt.DB
	cache *ristretto.Cache
}

// Open opens (creating if necessary) a bolt database file at path and
// wraps it as a locator.Store.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrap(err, "boltlocator: open")
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "boltlocator: create bucket")
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 24, // 16MiB of cached locator bytes
		BufferItems: 64,
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "boltlocator: new cache")
	}

	return &Store{db: db, cache: cache}, nil
}

// Close releases the underlying bolt database and cache.
func (s *Store) Close() error {
	s.cache.Close()
	return s.db.Close()
}

func encodeRecord(version int64, data []byte) []byte {
	buf := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(buf[:8], uint64(version))
	copy(buf[8:], data)
	return buf
}

func decodeRecord(buf []byte) (int64, []byte) {
	version := int64(binary.BigEndian.Uint64(buf[:8]))
	return version, append([]byte(nil), buf[8:]...)
}

func (s *Store) invalidate(path string) {
	s.cache.Del(path)
}

func (s *Store) Read(path string) *future.Future[locator.Node] {
	return future.Go(func() (locator.Node, error) {
		if v, ok := s.cache.Get(path); ok {
			logrus.WithField("path", path).Debug("boltlocator: read cache hit")
			return v.(locator.Node), nil
		}

		var n locator.Node
		err := s.db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucketName)
			raw := b.Get([]byte(path))
			if raw == nil {
				return locator.ErrNotFound
			}
			version, data := decodeRecord(raw)
			n = locator.Node{Bytes: data, NodeVersion: version}
			return nil
		})
		if err != nil {
			if err == locator.ErrNotFound {
				return locator.Node{}, locator.ErrNotFound
			}
			return locator.Node{}, &locator.IOError{Path: path, Err: err}
		}

		s.cache.Set(path, n, int64(len(n.Bytes)))
		// Set is buffered; Wait makes the entry visible before Read returns.
		s.cache.Wait()
		return n, nil
	})
}

func (s *Store) Create(path string, data []byte) *future.Future[struct{}] {
	return future.Go(func() (struct{}, error) {
		err := s.db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucketName)
			if b.Get([]byte(path)) != nil {
				return locator.ErrAlreadyExists
			}
			return b.Put([]byte(path), encodeRecord(0, data))
		})
		if err != nil {
			if err == locator.ErrAlreadyExists {
				return struct{}{}, locator.ErrAlreadyExists
			}
			return struct{}{}, &locator.IOError{Path: path, Err: err}
		}
		s.invalidate(path)
		return struct{}{}, nil
	})
}

func (s *Store) Update(path string, data []byte, expectedNodeVersion int64) *future.Future[struct{}] {
	return future.Go(func() (struct{}, error) {
		err := s.db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucketName)
			raw := b.Get([]byte(path))
			if raw == nil {
				return locator.ErrNotFound
			}
			version, _ := decodeRecord(raw)
			if version != expectedNodeVersion {
				return locator.ErrVersionMismatch
			}
			return b.Put([]byte(path), encodeRecord(version+1, data))
		})
		if err != nil {
			switch err {
			case locator.ErrNotFound, locator.ErrVersionMismatch:
				return struct{}{}, err
			default:
				return struct{}{}, &locator.IOError{Path: path, Err: err}
			}
		}
		s.invalidate(path)
		return struct{}{}, nil
	})
}

func (s *Store) EnsureRoot(path string) *future.Future[struct{}] {
	return future.Go(func() (struct{}, error) {
		err := s.db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucketName)
			if b.Get([]byte(path)) != nil {
				return nil
			}
			return b.Put([]byte(path), encodeRecord(0, []byte{}))
		})
		if err != nil {
			return struct{}{}, &locator.IOError{Path: path, Err: err}
		}
		return struct{}{}, nil
	})
}
