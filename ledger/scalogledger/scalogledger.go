// Package scalogledger is a ledger.Client backed by
// github.com/chn0318/scalog, grounded on the teacher repo's
// sharedlog/scalog package. Scalog itself has no concept of a ledger: it
// is one continuous, globally-ordered append log addressed by
// (shardID, GSN). This adapter layers the engine's create/append/open/
// read/close-on-one-entry ledger model on top of it by keeping a local
// directory from the engine's own monotonically increasing ledger IDs to
// the (shardID, GSN) scalog assigned the ledger's single entry.
package scalogledger

import (
	"encoding/json"
	"sync"

	"github.com/chn0318/scalog/client"
	"github.com/chn0318/scalog/pkg/address"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/chn0318/schemastore/future"
	"github.com/chn0318/schemastore/ledger"
)

// entryEnvelope is the JSON frame scalog actually stores; it carries the
// engine's own ledger ID and diagnostic schemaID tag alongside the raw
// payload, since scalog has no separate metadata channel for either.
type entryEnvelope struct {
	SchemaID string `json:"schema_id"`
	LedgerID int64  `json:"ledger_id"`
	Data     []byte `json:"data"`
}

type ref struct {
	schemaID string
	gsn      int64
	shardID  int32
	written  bool
}

type handle struct {
	id int64
}

func (h handle) ID() int64 { return h.id }

// Client adapts a pool of scalog clients into a ledger.Client.
type Client struct {
	clients []*client.Client

	pickMu sync.Mutex
	next   int

	dirMu        sync.RWMutex
	directory    map[int64]*ref
	nextLedgerID int64
}

// Config mirrors the viper keys the teacher's ScalogSystem reads.
type Config struct {
	NumReplica    int32
	DiscPort      uint16
	DiscIP        string
	DataPort      uint16
	NumClients    int
}

// ConfigFromViper loads Config the same way the teacher's
// NewScalogSystem does, via the global viper instance.
func ConfigFromViper() Config {
	numClients := viper.GetInt("scalog-num-clients")
	if numClients <= 0 {
		numClients = 4
	}
	return Config{
		NumReplica: int32(viper.GetInt("data-replication-factor")),
		DiscPort:   uint16(viper.GetInt("disc-port")),
		DiscIP:     viper.GetString("disc-ip"),
		DataPort:   uint16(viper.GetInt("data-port")),
		NumClients: numClients,
	}
}

// New dials NumClients scalog clients and returns a ledger.Client backed
// by round-robin use of that pool.
func New(cfg Config) (*Client, error) {
	discAddr := address.NewGeneralDiscAddr(cfg.DiscIP, cfg.DiscPort)
	dataAddr := address.NewGeneralDataAddr("data-%v-%v-ip", cfg.NumReplica, cfg.DataPort)

	clients := make([]*client.Client, 0, cfg.NumClients)
	for i := 0; i < cfg.NumClients; i++ {
		c, err := client.NewClient(dataAddr, discAddr, cfg.NumReplica)
		if err != nil {
			return nil, errors.Wrap(err, "scalogledger: dial client")
		}
		clients = append(clients, c)
	}

	return &Client{
		clients:   clients,
		directory: make(map[int64]*ref),
	}, nil
}

func (c *Client) pickClient() *client.Client {
	c.pickMu.Lock()
	defer c.pickMu.Unlock()
	cl := c.clients[c.next]
	c.next = (c.next + 1) % len(c.clients)
	return cl
}

func (c *Client) CreateLedger(schemaID string) *future.Future[ledger.Handle] {
	return future.Go(func() (ledger.Handle, error) {
		c.dirMu.Lock()
		id := c.nextLedgerID
		c.nextLedgerID++
		c.directory[id] = &ref{schemaID: schemaID}
		c.dirMu.Unlock()

		logrus.WithFields(logrus.Fields{"schema_id": schemaID, "ledger_id": id}).Debug("scalogledger: created ledger")
		return handle{id: id}, nil
	})
}

func (c *Client) Append(h ledger.Handle, data []byte) *future.Future[int64] {
	return future.Go(func() (int64, error) {
		c.dirMu.Lock()
		r, ok := c.directory[h.ID()]
		c.dirMu.Unlock()
		if !ok {
			return 0, ledger.NewIOError(ledger.OpAppend, h.ID(), -1, ledger.ErrLedgerNotFound)
		}

		envelope := entryEnvelope{SchemaID: r.schemaID, LedgerID: h.ID(), Data: data}
		payload, err := json.Marshal(envelope)
		if err != nil {
			return 0, ledger.NewIOError(ledger.OpAppend, h.ID(), -1, errors.Wrap(err, "encode entry envelope"))
		}

		gsn, sid, err := c.pickClient().AppendOne(string(payload))
		if err != nil {
			return 0, ledger.NewIOError(ledger.OpAppend, h.ID(), -1, errors.Wrap(err, "scalog append"))
		}

		c.dirMu.Lock()
		r.gsn, r.shardID, r.written = int64(gsn), int32(sid), true
		c.dirMu.Unlock()

		// Entries are addressed within the engine's own ledger/entry space
		// as entry 0: a ledger here ever receives exactly one Append.
		return 0, nil
	})
}

func (c *Client) OpenLedger(ledgerID int64) *future.Future[ledger.Handle] {
	return future.Go(func() (ledger.Handle, error) {
		c.dirMu.RLock()
		_, ok := c.directory[ledgerID]
		c.dirMu.RUnlock()
		if !ok {
			return nil, ledger.NewIOError(ledger.OpOpen, ledgerID, -1, ledger.ErrLedgerNotFound)
		}
		return handle{id: ledgerID}, nil
	})
}

func (c *Client) ReadSingleEntry(h ledger.Handle, entryID int64) *future.Future[[]byte] {
	return future.Go(func() ([]byte, error) {
		c.dirMu.RLock()
		r, ok := c.directory[h.ID()]
		c.dirMu.RUnlock()
		if !ok || !r.written {
			return nil, ledger.NewIOError(ledger.OpRead, h.ID(), entryID, ledger.ErrEntryNotFound)
		}

		payload, err := c.pickClient().Read(r.gsn, r.shardID, 0)
		if err != nil {
			return nil, ledger.NewIOError(ledger.OpRead, h.ID(), entryID, errors.Wrap(err, "scalog read"))
		}

		var envelope entryEnvelope
		if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
			return nil, ledger.NewIOError(ledger.OpRead, h.ID(), entryID, errors.Wrap(err, "decode entry envelope"))
		}
		return envelope.Data, nil
	})
}

func (c *Client) Close(h ledger.Handle) *future.Future[struct{}] {
	// Scalog owns no per-ledger handle to release; this is bookkeeping
	// only, and is always successful, matching the idempotent-close
	// contract.
	return future.Completed(struct{}{}, nil)
}
