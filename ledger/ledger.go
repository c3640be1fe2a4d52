// Package ledger adapts the storage engine to an append-only entry store:
// create a ledger, append a single entry to it, close it; later open it
// again, read that one entry, close it. A ledger is never mutated once its
// single write completes.
package ledger

import (
	"fmt"

	"github.com/chn0318/schemastore/future"
)

// Position identifies a single entry within an append-only log.
type Position struct {
	LedgerID int64
	EntryID  int64
}

// NoPosition is the sentinel used by the placeholder index entry created
// while a brand-new schema history is being written.
var NoPosition = Position{LedgerID: -1, EntryID: -1}

// IsNoPosition reports whether p is the sentinel "no backing entry"
// position.
func (p Position) IsNoPosition() bool {
	return p == NoPosition
}

// Handle is an opaque reference to an open ledger, returned by
// CreateLedger and OpenLedger and consumed by Append, ReadSingleEntry and
// Close. Concrete Client implementations embed whatever state they need
// behind this interface.
type Handle interface {
	ID() int64
}

// Op names an operation for error reporting, mirroring the
// operation/ledger/entry context the original BookKeeper-backed adapter
// attaches to every I/O failure.
type Op string

const (
	OpCreate  Op = "create_ledger"
	OpAppend  Op = "append"
	OpOpen    Op = "open_ledger"
	OpRead    Op = "read_entry"
	OpClose   Op = "close_ledger"
)

// IOError wraps a ledger I/O failure with enough context to diagnose it
// offline, the same context the original attaches via its bkException
// helper (operation, ledger ID, entry ID).
type IOError struct {
	Op       Op
	LedgerID int64
	EntryID  int64
	Err      error
}

func (e *IOError) Error() string {
	if e.EntryID >= 0 {
		return fmt.Sprintf("ledger %s failed: ledger=%d entry=%d: %v", e.Op, e.LedgerID, e.EntryID, e.Err)
	}
	return fmt.Sprintf("ledger %s failed: ledger=%d: %v", e.Op, e.LedgerID, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// NewIOError builds an IOError; entryID of -1 means "not applicable".
func NewIOError(op Op, ledgerID, entryID int64, err error) *IOError {
	return &IOError{Op: op, LedgerID: ledgerID, EntryID: entryID, Err: err}
}

// ErrEntryNotFound is returned by ReadSingleEntry when the requested
// entry does not exist in an otherwise-reachable ledger.
var ErrEntryNotFound = fmt.Errorf("ledger: entry not found")

// ErrLedgerNotFound is returned by OpenLedger when the backing store
// reports the ledger itself does not exist.
var ErrLedgerNotFound = fmt.Errorf("ledger: not found")

// Client is the engine's view of the append-only entry store. Every
// operation is a suspension point: it returns immediately with a Future
// and performs its I/O off the calling goroutine.
type Client interface {
	// CreateLedger creates a brand-new ledger tagged with schemaID for
	// offline diagnostics.
	CreateLedger(schemaID string) *future.Future[Handle]

	// Append appends a single entry to an open ledger and returns the
	// assigned entry ID. A ledger accepts exactly one Append during its
	// lifetime in this engine.
	Append(h Handle, data []byte) *future.Future[int64]

	// OpenLedger opens an existing ledger for reading.
	OpenLedger(ledgerID int64) *future.Future[Handle]

	// ReadSingleEntry reads exactly one entry from an open ledger.
	ReadSingleEntry(h Handle, entryID int64) *future.Future[[]byte]

	// Close closes a ledger handle. Close is idempotent; a failure here
	// must never retroactively invalidate a prior successful Append or
	// ReadSingleEntry.
	Close(h Handle) *future.Future[struct{}]
}
