// Package locator adapts the storage engine to a versioned metadata
// store: a keyed binary node with optimistic concurrency control via a
// per-key integer node version. This is the CAS primitive the write path
// uses to advance a schema's version atomically.
package locator

import (
	"fmt"

	"github.com/chn0318/schemastore/future"
)

// Node is a locator store entry as returned by Read: the raw bytes and
// the CAS token (node version) they were read at.
type Node struct {
	Bytes       []byte
	NodeVersion int64
}

// ErrNotFound is returned by Read when no node exists at path.
var ErrNotFound = fmt.Errorf("locator: not found")

// ErrAlreadyExists is returned by Create when another writer already
// created the node. Callers must treat this as a retry signal and never
// surface it.
var ErrAlreadyExists = fmt.Errorf("locator: already exists")

// ErrVersionMismatch is returned by Update when the caller's CAS token is
// stale. Callers must treat this as a retry signal and never surface it.
var ErrVersionMismatch = fmt.Errorf("locator: version mismatch")

// IOError wraps a locator store failure that is not one of the CAS
// signals above — these are genuine, surfaced failures.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("locator I/O failed: path=%s: %v", e.Path, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// Store is the engine's view of the versioned keyed metadata store.
type Store interface {
	// Read returns the node at path, or ErrNotFound.
	Read(path string) *future.Future[Node]

	// Create creates a brand-new node at path. Fails with
	// ErrAlreadyExists if another writer won the creation race.
	Create(path string, data []byte) *future.Future[struct{}]

	// Update performs a compare-and-swap write: it succeeds only if the
	// store's current node version for path equals expectedNodeVersion.
	// Fails with ErrVersionMismatch otherwise.
	Update(path string, data []byte, expectedNodeVersion int64) *future.Future[struct{}]

	// EnsureRoot ensures the well-known root path exists, tolerating a
	// concurrent creation by another process.
	EnsureRoot(path string) *future.Future[struct{}]
}
