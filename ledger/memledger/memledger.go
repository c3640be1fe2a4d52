// Package memledger is an in-memory ledger.Client, grounded on the
// teacher repo's sharedlog/memorylog package. Unlike that package's flat,
// single shared log, entries here are scoped per ledger, matching the
// create-once-entry-only contract the storage engine relies on.
package memledger

import (
	"sync"

	"github.com/chn0318/schemastore/future"
	"github.com/chn0318/schemastore/ledger"
)

type ledgerRecord struct {
	schemaID string
	entries  map[int64][]byte
	nextSeq  int64
	closed   bool
}

type handle struct {
	id int64
}

func (h handle) ID() int64 { return h.id }

// Client is a process-local, goroutine-safe ledger.Client backed by a
// map. It is the default backend for tests and for a zero-configuration
// engine.
type Client struct {
	mu       sync.Mutex
	nextID   int64
	ledgers  map[int64]*ledgerRecord
}

// New creates an empty in-memory ledger store.
func New() *Client {
	return &Client{ledgers: make(map[int64]*ledgerRecord)}
}

func (c *Client) CreateLedger(schemaID string) *future.Future[ledger.Handle] {
	return future.Go(func() (ledger.Handle, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		id := c.nextID
		c.nextID++
		c.ledgers[id] = &ledgerRecord{schemaID: schemaID, entries: make(map[int64][]byte)}
		return handle{id: id}, nil
	})
}

func (c *Client) Append(h ledger.Handle, data []byte) *future.Future[int64] {
	return future.Go(func() (int64, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		rec, ok := c.ledgers[h.ID()]
		if !ok {
			return 0, ledger.NewIOError(ledger.OpAppend, h.ID(), -1, ledger.ErrLedgerNotFound)
		}
		if rec.closed {
			return 0, ledger.NewIOError(ledger.OpAppend, h.ID(), -1, errClosed)
		}
		entryID := rec.nextSeq
		rec.nextSeq++
		rec.entries[entryID] = append([]byte(nil), data...)
		return entryID, nil
	})
}

func (c *Client) OpenLedger(ledgerID int64) *future.Future[ledger.Handle] {
	return future.Go(func() (ledger.Handle, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.ledgers[ledgerID]; !ok {
			return nil, ledger.NewIOError(ledger.OpOpen, ledgerID, -1, ledger.ErrLedgerNotFound)
		}
		return handle{id: ledgerID}, nil
	})
}

func (c *Client) ReadSingleEntry(h ledger.Handle, entryID int64) *future.Future[[]byte] {
	return future.Go(func() ([]byte, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		rec, ok := c.ledgers[h.ID()]
		if !ok {
			return nil, ledger.NewIOError(ledger.OpRead, h.ID(), entryID, ledger.ErrLedgerNotFound)
		}
		data, ok := rec.entries[entryID]
		if !ok {
			return nil, ledger.NewIOError(ledger.OpRead, h.ID(), entryID, ledger.ErrEntryNotFound)
		}
		return data, nil
	})
}

func (c *Client) Close(h ledger.Handle) *future.Future[struct{}] {
	return future.Go(func() (struct{}, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if rec, ok := c.ledgers[h.ID()]; ok {
			rec.closed = true
		}
		return struct{}{}, nil
	})
}

var errClosed = &closedError{}

type closedError struct{}

func (*closedError) Error() string { return "ledger closed" }
