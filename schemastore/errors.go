package schemastore

import "errors"

// Error kinds surfaced to callers of the public API. AlreadyExists and
// VersionMismatch from the locator adapter are deliberately absent here:
// the write path handles them internally as retry signals and never lets
// them escape (see put.go).
var (
	// ErrNotFound is returned when a schemaId, or a requested version of
	// it, does not exist.
	ErrNotFound = errors.New("schemastore: not found")

	// ErrLedgerIO covers unrecoverable ledger store failures other than
	// the specific not-found cases below.
	ErrLedgerIO = errors.New("schemastore: ledger I/O error")

	// ErrEntryNotFound means the ledger itself was reachable but the
	// requested entry was not present in it.
	ErrEntryNotFound = errors.New("schemastore: ledger entry not found")

	// ErrLedgerNotFound means the ledger store reported the ledger does
	// not exist at all.
	ErrLedgerNotFound = errors.New("schemastore: ledger not found")

	// ErrLocatorIO covers locator store failures surfaced after the
	// write path's own retry policy has been exhausted.
	ErrLocatorIO = errors.New("schemastore: locator I/O error")

	// ErrDecode means on-disk data could not be parsed by wireformat —
	// corruption, or a format this codec cannot read.
	ErrDecode = errors.New("schemastore: decode error")
)
