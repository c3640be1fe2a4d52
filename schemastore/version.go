package schemastore

import "github.com/chn0318/schemastore/wireformat"

// VersionFromBytes recovers a Version from the bytes a caller received
// out-of-band (for example, embedded in a client-side cache key),
// accepting either the current or legacy wire encoding.
func VersionFromBytes(b []byte) (uint64, error) {
	v, err := wireformat.DecodeVersion(b)
	if err != nil {
		return 0, wrapDecodeErr(err)
	}
	return v, nil
}
