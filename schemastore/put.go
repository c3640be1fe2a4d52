package schemastore

import (
	"bytes"
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"

	"github.com/chn0318/schemastore/future"
	"github.com/chn0318/schemastore/ledger"
	"github.com/chn0318/schemastore/locator"
	"github.com/chn0318/schemastore/wireformat"
)

// Put registers data under schemaId, tagged with hash, and returns the
// version it was assigned. A re-registration whose hash matches the
// currently stored hash is idempotent: it performs no write and returns
// the existing version.
func (e *Engine) Put(ctx context.Context, schemaID string, data, hash []byte) *future.Future[uint64] {
	return future.Go(func() (uint64, error) {
		return e.putWithRetry(ctx, schemaID, data, hash)
	})
}

// Delete logically deletes schemaId by writing an empty-data,
// empty-hash tombstone entry — a normal Put that advances the version
// like any other write. If schemaId has no prior version, Delete returns
// ErrNotFound and performs no write.
func (e *Engine) Delete(ctx context.Context, schemaID string) *future.Future[uint64] {
	return future.Go(func() (uint64, error) {
		if _, err := e.getLatestOnce(ctx, schemaID); err != nil {
			return 0, err
		}
		return e.putWithRetry(ctx, schemaID, []byte{}, []byte{})
	})
}

// putWithRetry retries putOnce from its first step whenever the locator
// adapter signals a lost creation or CAS race, per spec §4.4: "restart
// from step 1". The orphaned ledger created during a lost race is never
// cleaned up (§4.4, §9) — only the retry itself is automatic.
func (e *Engine) putWithRetry(ctx context.Context, schemaID string, data, hash []byte) (uint64, error) {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = e.cfg.RetryMaxElapsed
	bo := backoff.WithContext(b, ctx)

	var result uint64
	err := backoff.Retry(func() error {
		v, err := e.putOnce(ctx, schemaID, data, hash)
		if err == nil {
			result = v
			return nil
		}
		if errors.Is(err, locator.ErrAlreadyExists) || errors.Is(err, locator.ErrVersionMismatch) {
			e.log.WithField("schema_id", schemaID).Debug("locator CAS lost race, retrying put")
			return err
		}
		return backoff.Permanent(err)
	}, bo)

	if err != nil {
		if errors.Is(err, locator.ErrAlreadyExists) || errors.Is(err, locator.ErrVersionMismatch) {
			return 0, errors.Join(ErrLocatorIO, err)
		}
		return 0, err
	}
	return result, nil
}

// putOnce is a single, non-retrying attempt at the write-path algorithm
// from spec §4.4. Its only retry signals are locator.ErrAlreadyExists
// (branch A, step 2.d) and locator.ErrVersionMismatch (branch B, step
// 3.d); every other error is terminal.
func (e *Engine) putOnce(ctx context.Context, schemaID string, data, hash []byte) (uint64, error) {
	path := e.locatorPath(schemaID)
	node, err := e.locatorStore.Read(path).Await(ctx)
	if err != nil && !errors.Is(err, locator.ErrNotFound) {
		return 0, wrapLocatorErr(err)
	}

	if errors.Is(err, locator.ErrNotFound) {
		return e.createNewSchema(ctx, schemaID, path, data, hash)
	}

	loc, decErr := wireformat.DecodeSchemaLocator(node.Bytes)
	if decErr != nil {
		return 0, wrapDecodeErr(decErr)
	}

	// Idempotent short-circuit: an empty stored hash (from a prior
	// logical delete) never short-circuits a re-put.
	if len(loc.Info.Hash) > 0 && bytes.Equal(loc.Info.Hash, hash) {
		return loc.Info.Version, nil
	}

	nextVersion := loc.Info.Version + 1
	entry := wireformat.SchemaEntry{SchemaData: data, Index: loc.Index}
	pos, err := e.appendSchemaEntry(ctx, schemaID, entry)
	if err != nil {
		return 0, err
	}

	newEntry := wireformat.IndexEntry{Version: nextVersion, Hash: hash, Position: pos}
	newIndex := make([]wireformat.IndexEntry, len(loc.Index)+1)
	copy(newIndex, loc.Index)
	newIndex[len(loc.Index)] = newEntry
	newLoc := wireformat.SchemaLocator{Info: newEntry, Index: newIndex}

	_, err = e.locatorStore.Update(path, newLoc.Encode(), node.NodeVersion).Await(ctx)
	if err != nil {
		if errors.Is(err, locator.ErrVersionMismatch) {
			return 0, locator.ErrVersionMismatch
		}
		return 0, wrapLocatorErr(err)
	}
	return nextVersion, nil
}

func (e *Engine) createNewSchema(ctx context.Context, schemaID, path string, data, hash []byte) (uint64, error) {
	placeholder := wireformat.IndexEntry{Version: 0, Hash: hash, Position: wireformat.NoPosition}
	entry := wireformat.SchemaEntry{SchemaData: data, Index: []wireformat.IndexEntry{placeholder}}

	pos, err := e.appendSchemaEntry(ctx, schemaID, entry)
	if err != nil {
		return 0, err
	}

	final := wireformat.IndexEntry{Version: 0, Hash: hash, Position: pos}
	loc := wireformat.SchemaLocator{Info: final, Index: []wireformat.IndexEntry{final}}

	_, err = e.locatorStore.Create(path, loc.Encode()).Await(ctx)
	if err != nil {
		if errors.Is(err, locator.ErrAlreadyExists) {
			// Another writer won the race. The ledger we just created
			// and appended to is intentionally left orphaned — see
			// spec §4.4/§9: cleanup would risk deleting a ledger a
			// concurrent reader might still be opening.
			return 0, locator.ErrAlreadyExists
		}
		return 0, wrapLocatorErr(err)
	}
	return 0, nil
}

// appendSchemaEntry creates a fresh ledger, appends entry to it, and
// closes it, returning the position the entry now lives at. The close
// happens before the caller's locator CAS, per spec §4.1/§5; a close
// failure here is logged and does not fail the write, since the append
// already durably succeeded.
func (e *Engine) appendSchemaEntry(ctx context.Context, schemaID string, entry wireformat.SchemaEntry) (wireformat.PositionInfo, error) {
	h, err := e.ledgerClient.CreateLedger(schemaID).Await(ctx)
	if err != nil {
		return wireformat.PositionInfo{}, wrapLedgerErr(err)
	}

	entryID, err := e.ledgerClient.Append(h, entry.Encode()).Await(ctx)
	if err != nil {
		e.closeLedgerBestEffort(ctx, h)
		return wireformat.PositionInfo{}, wrapLedgerErr(err)
	}

	if _, closeErr := e.ledgerClient.Close(h).Await(ctx); closeErr != nil {
		e.log.WithError(closeErr).WithField("ledger_id", h.ID()).Warn("close ledger after append failed")
	}

	return wireformat.PositionInfo{LedgerID: h.ID(), EntryID: entryID}, nil
}

func (e *Engine) closeLedgerBestEffort(ctx context.Context, h ledger.Handle) {
	if _, err := e.ledgerClient.Close(h).Await(ctx); err != nil {
		e.log.WithError(err).WithField("ledger_id", h.ID()).Warn("close ledger failed")
	}
}
