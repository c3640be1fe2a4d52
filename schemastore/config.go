package schemastore

import (
	"time"

	"github.com/spf13/viper"
)

// LedgerBackend selects which ledger.Client implementation Start
// constructs when the caller has not injected one directly.
type LedgerBackend string

const (
	LedgerBackendMemory LedgerBackend = "memory"
	LedgerBackendScalog LedgerBackend = "scalog"
)

// LocatorBackend selects which locator.Store implementation Start
// constructs when the caller has not injected one directly.
type LocatorBackend string

const (
	LocatorBackendMemory LocatorBackend = "memory"
	LocatorBackendBolt   LocatorBackend = "bolt"
)

// Config carries the engine's tunables. The ensemble/quorum/digest
// fields describe the ledger the way the original BookKeeper-backed
// storage engine configures one. ConfigFromViper loads them, but no
// ledger backend reads them: the in-memory backend has no ensemble, and
// the scalog backend is dialed from scalogledger.ConfigFromViper.
type Config struct {
	// RootPath is the locator store prefix every schemaId's node is
	// created under. Default "/schemas".
	RootPath string

	LedgerBackend  LedgerBackend
	LocatorBackend LocatorBackend

	// BoltPath is the database file boltlocator opens when
	// LocatorBackend is LocatorBackendBolt.
	BoltPath string

	EnsembleSize int
	WriteQuorum  int
	AckQuorum    int
	DigestType   string

	// RetryMaxElapsed bounds how long the write path's CAS retry loop
	// keeps retrying an AlreadyExists/VersionMismatch race before giving
	// up and surfacing ErrLocatorIO.
	RetryMaxElapsed time.Duration
}

// DefaultConfig returns the engine's zero-configuration defaults: an
// in-memory ledger and locator store rooted at "/schemas".
func DefaultConfig() Config {
	return Config{
		RootPath:        "/schemas",
		LedgerBackend:   LedgerBackendMemory,
		LocatorBackend:  LocatorBackendMemory,
		EnsembleSize:    3,
		WriteQuorum:     2,
		AckQuorum:       2,
		DigestType:      "CRC32C",
		RetryMaxElapsed: 5 * time.Second,
	}
}

// ConfigFromViper overlays values read from the global viper instance
// onto DefaultConfig, mirroring the teacher repo's own
// viper.GetInt/viper.GetString configuration style.
func ConfigFromViper() Config {
	cfg := DefaultConfig()
	if v := viper.GetString("schema-root-path"); v != "" {
		cfg.RootPath = v
	}
	if v := viper.GetString("schema-ledger-backend"); v != "" {
		cfg.LedgerBackend = LedgerBackend(v)
	}
	if v := viper.GetString("schema-locator-backend"); v != "" {
		cfg.LocatorBackend = LocatorBackend(v)
	}
	if v := viper.GetString("schema-bolt-path"); v != "" {
		cfg.BoltPath = v
	}
	if v := viper.GetInt("managed-ledger-ensemble-size"); v > 0 {
		cfg.EnsembleSize = v
	}
	if v := viper.GetInt("managed-ledger-write-quorum"); v > 0 {
		cfg.WriteQuorum = v
	}
	if v := viper.GetInt("managed-ledger-ack-quorum"); v > 0 {
		cfg.AckQuorum = v
	}
	if v := viper.GetString("managed-ledger-digest-type"); v != "" {
		cfg.DigestType = v
	}
	if v := viper.GetDuration("schema-retry-max-elapsed"); v > 0 {
		cfg.RetryMaxElapsed = v
	}
	return cfg
}
