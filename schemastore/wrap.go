package schemastore

import (
	"errors"

	"github.com/chn0318/schemastore/ledger"
	"github.com/chn0318/schemastore/locator"
)

// wrapLedgerErr maps a ledger-adapter error onto the engine's public
// error taxonomy while keeping the original error reachable via
// errors.Is/errors.As (errors.Join preserves both operands in the
// resulting error's tree).
func wrapLedgerErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ledger.ErrLedgerNotFound):
		return errors.Join(ErrLedgerNotFound, err)
	case errors.Is(err, ledger.ErrEntryNotFound):
		return errors.Join(ErrEntryNotFound, err)
	default:
		return errors.Join(ErrLedgerIO, err)
	}
}

// wrapLocatorErr maps a locator-adapter error onto the engine's public
// error taxonomy. AlreadyExists/VersionMismatch must never reach this
// function from the write path (they are handled as retry signals); if
// they do, they are still surfaced as ErrLocatorIO rather than leaking
// the adapter-private sentinel.
func wrapLocatorErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, locator.ErrNotFound) {
		return ErrNotFound
	}
	return errors.Join(ErrLocatorIO, err)
}

func wrapDecodeErr(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrDecode, err)
}
