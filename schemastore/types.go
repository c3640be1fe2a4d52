package schemastore

// StoredSchema is the value returned to a caller by Get or one of the
// futures produced by GetAll: the schema's raw bytes and the version
// they were stored under.
type StoredSchema struct {
	Data    []byte
	Version uint64
}

// VersionSelector is the tagged variant a caller passes to Get: either
// "the latest version" or a specific historical version.
type VersionSelector struct {
	latest bool
	value  uint64
}

// Latest selects the most recently written version of a schema.
func Latest() VersionSelector {
	return VersionSelector{latest: true}
}

// AtVersion selects a specific historical version.
func AtVersion(v uint64) VersionSelector {
	return VersionSelector{value: v}
}

// IsLatest reports whether the selector requests the latest version.
func (s VersionSelector) IsLatest() bool { return s.latest }

// Value returns the requested specific version; only meaningful when
// IsLatest is false.
func (s VersionSelector) Value() uint64 { return s.value }
