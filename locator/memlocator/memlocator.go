// Package memlocator is an in-memory locator.Store, grounded on the
// teacher repo's mapservice package shape (a mutex-guarded map), adapted
// to carry a per-key node version and to enforce CAS on write instead of
// the teacher's last-writer-wins ApplyCommit.
package memlocator

import (
	"sync"

	"github.com/chn0318/schemastore/future"
	"github.com/chn0318/schemastore/locator"
)

type node struct {
	bytes   []byte
	version int64
}

// Store is a process-local, goroutine-safe locator.Store.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]*node
	roots map[string]bool
}

// New creates an empty in-memory locator store.
func New() *Store {
	return &Store{
		nodes: make(map[string]*node),
		roots: make(map[string]bool),
	}
}

func (s *Store) Read(path string) *future.Future[locator.Node] {
	return future.Go(func() (locator.Node, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		n, ok := s.nodes[path]
		if !ok {
			return locator.Node{}, locator.ErrNotFound
		}
		return locator.Node{Bytes: append([]byte(nil), n.bytes...), NodeVersion: n.version}, nil
	})
}

func (s *Store) Create(path string, data []byte) *future.Future[struct{}] {
	return future.Go(func() (struct{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.nodes[path]; ok {
			return struct{}{}, locator.ErrAlreadyExists
		}
		s.nodes[path] = &node{bytes: append([]byte(nil), data...), version: 0}
		return struct{}{}, nil
	})
}

func (s *Store) Update(path string, data []byte, expectedNodeVersion int64) *future.Future[struct{}] {
	return future.Go(func() (struct{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		n, ok := s.nodes[path]
		if !ok {
			return struct{}{}, locator.ErrNotFound
		}
		if n.version != expectedNodeVersion {
			return struct{}{}, locator.ErrVersionMismatch
		}
		n.bytes = append([]byte(nil), data...)
		n.version++
		return struct{}{}, nil
	})
}

func (s *Store) EnsureRoot(path string) *future.Future[struct{}] {
	return future.Go(func() (struct{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.roots[path] = true
		return struct{}{}, nil
	})
}
