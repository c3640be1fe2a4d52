// Package schemastore is the versioned, append-only schema registry
// storage engine: it composes a ledger store (ledger.Client) and a
// locator store (locator.Store) to provide atomic version advancement,
// idempotent re-registration, and coalesced latest-version reads on top
// of those two primitives.
package schemastore

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/chn0318/schemastore/ledger"
	"github.com/chn0318/schemastore/ledger/memledger"
	"github.com/chn0318/schemastore/ledger/scalogledger"
	"github.com/chn0318/schemastore/locator"
	"github.com/chn0318/schemastore/locator/boltlocator"
	"github.com/chn0318/schemastore/locator/memlocator"
)

// closer is implemented by locator stores that own a resource (a file
// handle) that must be released on shutdown. locator.Store does not
// require it in its public contract; Close checks for it
// opportunistically.
type closer interface {
	Close() error
}

// Engine is the storage engine. The zero value is not usable; construct
// one with New.
type Engine struct {
	cfg Config

	ledgerClient ledger.Client
	locatorStore locator.Store

	ownsLedgerClient bool
	ownsLocatorStore bool

	coalescer singleflight.Group

	log *logrus.Entry
}

// Option customizes an Engine at construction time, primarily to inject
// test doubles in place of the config-driven backends.
type Option func(*Engine)

// WithLedgerClient injects a pre-constructed ledger.Client. Start will
// not construct or close one itself.
func WithLedgerClient(c ledger.Client) Option {
	return func(e *Engine) { e.ledgerClient = c }
}

// WithLocatorStore injects a pre-constructed locator.Store. Start will
// not construct or close one itself.
func WithLocatorStore(s locator.Store) Option {
	return func(e *Engine) { e.locatorStore = s }
}

// New constructs an Engine from cfg. Call Start then Init before issuing
// Put/Get/GetAll/Delete (Init needs the locator store Start provides,
// unless one was injected with WithLocatorStore).
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg: cfg,
		log: logrus.WithField("component", "schemastore"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) locatorPath(schemaID string) string {
	return fmt.Sprintf("%s/%s", e.cfg.RootPath, schemaID)
}

// Init idempotently ensures the locator root exists. It tolerates a
// concurrent creation by another process racing to do the same thing.
func (e *Engine) Init(ctx context.Context) error {
	if e.locatorStore == nil {
		return fmt.Errorf("schemastore: Init called before Start")
	}
	_, err := e.locatorStore.EnsureRoot(e.cfg.RootPath).Await(ctx)
	return err
}

// Start constructs the configured ledger client and locator store when
// the caller has not injected one via WithLedgerClient/WithLocatorStore.
func (e *Engine) Start(ctx context.Context) error {
	if e.ledgerClient == nil {
		client, err := newLedgerClient(e.cfg)
		if err != nil {
			return fmt.Errorf("schemastore: start ledger client: %w", err)
		}
		e.ledgerClient = client
		e.ownsLedgerClient = true
	}
	if e.locatorStore == nil {
		store, err := newLocatorStore(e.cfg)
		if err != nil {
			return fmt.Errorf("schemastore: start locator store: %w", err)
		}
		e.locatorStore = store
		e.ownsLocatorStore = true
	}
	return nil
}

func newLedgerClient(cfg Config) (ledger.Client, error) {
	switch cfg.LedgerBackend {
	case LedgerBackendScalog:
		return scalogledger.New(scalogledger.ConfigFromViper())
	case LedgerBackendMemory, "":
		return memledger.New(), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}

func newLocatorStore(cfg Config) (locator.Store, error) {
	switch cfg.LocatorBackend {
	case LocatorBackendBolt:
		return boltlocator.Open(cfg.BoltPath)
	case LocatorBackendMemory, "":
		return memlocator.New(), nil
	default:
		return nil, fmt.Errorf("unknown locator backend %q", cfg.LocatorBackend)
	}
}

// Close closes the locator store if this Engine constructed it itself and
// it implements closer; an injected store is left for the caller to
// manage. The ledger client is not closed: ledger.Client's Close releases
// a single ledger handle, and no ledger backend exposes a client-level
// release.
func (e *Engine) Close(ctx context.Context) error {
	var result *multierror.Error

	if e.ownsLocatorStore {
		if c, ok := e.locatorStore.(closer); ok {
			if err := c.Close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("close locator store: %w", err))
			}
		}
	}

	return result.ErrorOrNil()
}
