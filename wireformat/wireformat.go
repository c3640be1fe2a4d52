// Package wireformat implements the self-describing, tag-length-value
// binary encoding for the schema storage engine's on-disk records:
// PositionInfo, IndexEntry, SchemaEntry and SchemaLocator. The format is
// deliberately simple: every field is a (tag byte, 4-byte big-endian
// length, value) triple, so a decoder that does not recognize a tag can
// skip it (forward compatibility) and a struct with an absent scalar
// field decodes that field to its zero value (backward compatibility).
// Encoding order is not significant; decoding never assumes one.
package wireformat

import (
	"encoding/binary"
	"fmt"
)

// rawField is an unrecognized (tag, value) pair preserved verbatim across
// a decode/encode round trip, so a record written by a newer version of
// this format is not corrupted by an older decoder re-encoding it.
type rawField struct {
	tag   byte
	value []byte
}

// Version is the dense, monotonic per-schema sequence number. On the
// wire it is always emitted as 8 big-endian bytes; DecodeVersion also
// accepts a 64-byte legacy encoding that carries the same 8 bytes in its
// leading position (see spec §4.3 / §6).
type Version = uint64

// EncodeVersion renders v as the current 8-byte big-endian wire form.
func EncodeVersion(v Version) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// DecodeVersion reads a Version from either the current 8-byte encoding
// or the legacy 64-byte encoding (whose leading 8 bytes carry the
// big-endian value; the remaining 56 bytes, if present, are discarded).
func DecodeVersion(b []byte) (Version, error) {
	if len(b) < 8 {
		return 0, fmt.Errorf("wireformat: version requires at least 8 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint64(b[:8]), nil
}

// tag values. New fields must get a new tag; a tag is never reused for a
// different field shape once a format version ships.
const (
	tagPositionLedgerID byte = 1
	tagPositionEntryID  byte = 2

	tagIndexVersion  byte = 1
	tagIndexHash     byte = 2
	tagIndexPosition byte = 3

	tagEntrySchemaData byte = 1
	tagEntryIndex      byte = 2

	tagLocatorInfo  byte = 1
	tagLocatorIndex byte = 2
)

func putTLV(buf []byte, tag byte, value []byte) []byte {
	buf = append(buf, tag)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(value)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, value...)
	return buf
}

// nextTLV reads one (tag, value) pair from the front of data and returns
// the remaining bytes after it.
func nextTLV(data []byte) (tag byte, value, rest []byte, err error) {
	if len(data) < 5 {
		return 0, nil, nil, fmt.Errorf("wireformat: truncated field header")
	}
	tag = data[0]
	length := binary.BigEndian.Uint32(data[1:5])
	data = data[5:]
	if uint32(len(data)) < length {
		return 0, nil, nil, fmt.Errorf("wireformat: truncated field value for tag %d", tag)
	}
	value = data[:length]
	rest = data[length:]
	return tag, value, rest, nil
}

func putUint64(buf []byte, tag byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return putTLV(buf, tag, b[:])
}

func putInt64(buf []byte, tag byte, v int64) []byte {
	return putUint64(buf, tag, uint64(v))
}

func decodeUint64(value []byte) (uint64, error) {
	if len(value) < 8 {
		return 0, fmt.Errorf("wireformat: expected 8-byte integer field, got %d bytes", len(value))
	}
	return binary.BigEndian.Uint64(value[:8]), nil
}

// PositionInfo identifies one entry within the ledger store.
type PositionInfo struct {
	LedgerID int64
	EntryID  int64

	unknown []rawField
}

// NoPosition is the sentinel "no backing entry" position.
var NoPosition = PositionInfo{LedgerID: -1, EntryID: -1}

// Encode renders p in TLV form.
func (p PositionInfo) Encode() []byte {
	var buf []byte
	buf = putInt64(buf, tagPositionLedgerID, p.LedgerID)
	buf = putInt64(buf, tagPositionEntryID, p.EntryID)
	for _, f := range p.unknown {
		buf = putTLV(buf, f.tag, f.value)
	}
	return buf
}

// DecodePositionInfo parses the TLV form written by Encode.
func DecodePositionInfo(data []byte) (PositionInfo, error) {
	var p PositionInfo
	for len(data) > 0 {
		tag, value, rest, err := nextTLV(data)
		if err != nil {
			return PositionInfo{}, err
		}
		switch tag {
		case tagPositionLedgerID:
			v, err := decodeUint64(value)
			if err != nil {
				return PositionInfo{}, err
			}
			p.LedgerID = int64(v)
		case tagPositionEntryID:
			v, err := decodeUint64(value)
			if err != nil {
				return PositionInfo{}, err
			}
			p.EntryID = int64(v)
		default:
			p.unknown = append(p.unknown, rawField{tag: tag, value: append([]byte(nil), value...)})
		}
		data = rest
	}
	return p, nil
}

// IndexEntry associates a version with the schema hash stored at that
// version and the ledger position holding the schema bytes.
type IndexEntry struct {
	Version  Version
	Hash     []byte
	Position PositionInfo

	unknown []rawField
}

// Encode renders e in TLV form.
func (e IndexEntry) Encode() []byte {
	var buf []byte
	buf = putUint64(buf, tagIndexVersion, e.Version)
	buf = putTLV(buf, tagIndexHash, e.Hash)
	buf = putTLV(buf, tagIndexPosition, e.Position.Encode())
	for _, f := range e.unknown {
		buf = putTLV(buf, f.tag, f.value)
	}
	return buf
}

// DecodeIndexEntry parses the TLV form written by Encode. Absent Hash
// decodes to an empty (non-nil) slice; absent Position decodes to its
// zero value (ledger/entry ID 0), per the "absent scalar fields decode
// to zero value" requirement.
func DecodeIndexEntry(data []byte) (IndexEntry, error) {
	e := IndexEntry{Hash: []byte{}}
	for len(data) > 0 {
		tag, value, rest, err := nextTLV(data)
		if err != nil {
			return IndexEntry{}, err
		}
		switch tag {
		case tagIndexVersion:
			v, err := decodeUint64(value)
			if err != nil {
				return IndexEntry{}, err
			}
			e.Version = v
		case tagIndexHash:
			e.Hash = append([]byte{}, value...)
		case tagIndexPosition:
			pos, err := DecodePositionInfo(value)
			if err != nil {
				return IndexEntry{}, err
			}
			e.Position = pos
		default:
			e.unknown = append(e.unknown, rawField{tag: tag, value: append([]byte(nil), value...)})
		}
		data = rest
	}
	return e, nil
}

// SchemaEntry is the payload stored in a single ledger entry: the schema
// bytes themselves, plus the chain of index entries known at the moment
// this entry was written (used as the one-hop fallback for historical
// lookups against an inline index truncated by an older format).
type SchemaEntry struct {
	SchemaData []byte
	Index      []IndexEntry

	unknown []rawField
}

// Encode renders s in TLV form.
func (s SchemaEntry) Encode() []byte {
	var buf []byte
	buf = putTLV(buf, tagEntrySchemaData, s.SchemaData)
	for _, e := range s.Index {
		buf = putTLV(buf, tagEntryIndex, e.Encode())
	}
	for _, f := range s.unknown {
		buf = putTLV(buf, f.tag, f.value)
	}
	return buf
}

// DecodeSchemaEntry parses the TLV form written by Encode.
func DecodeSchemaEntry(data []byte) (SchemaEntry, error) {
	s := SchemaEntry{SchemaData: []byte{}}
	for len(data) > 0 {
		tag, value, rest, err := nextTLV(data)
		if err != nil {
			return SchemaEntry{}, err
		}
		switch tag {
		case tagEntrySchemaData:
			s.SchemaData = append([]byte(nil), value...)
		case tagEntryIndex:
			e, err := DecodeIndexEntry(value)
			if err != nil {
				return SchemaEntry{}, err
			}
			s.Index = append(s.Index, e)
		default:
			s.unknown = append(s.unknown, rawField{tag: tag, value: append([]byte(nil), value...)})
		}
		data = rest
	}
	return s, nil
}

// SchemaLocator is the locator store's payload for one schemaId: the
// most recently appended index entry (Info) and the full ordered index
// of every version from 0 to Info.Version inclusive.
type SchemaLocator struct {
	Info  IndexEntry
	Index []IndexEntry

	unknown []rawField
}

// Encode renders l in TLV form.
func (l SchemaLocator) Encode() []byte {
	var buf []byte
	buf = putTLV(buf, tagLocatorInfo, l.Info.Encode())
	for _, e := range l.Index {
		buf = putTLV(buf, tagLocatorIndex, e.Encode())
	}
	for _, f := range l.unknown {
		buf = putTLV(buf, f.tag, f.value)
	}
	return buf
}

// DecodeSchemaLocator parses the TLV form written by Encode.
func DecodeSchemaLocator(data []byte) (SchemaLocator, error) {
	var l SchemaLocator
	for len(data) > 0 {
		tag, value, rest, err := nextTLV(data)
		if err != nil {
			return SchemaLocator{}, err
		}
		switch tag {
		case tagLocatorInfo:
			e, err := DecodeIndexEntry(value)
			if err != nil {
				return SchemaLocator{}, err
			}
			l.Info = e
		case tagLocatorIndex:
			e, err := DecodeIndexEntry(value)
			if err != nil {
				return SchemaLocator{}, err
			}
			l.Index = append(l.Index, e)
		default:
			l.unknown = append(l.unknown, rawField{tag: tag, value: append([]byte(nil), value...)})
		}
		data = rest
	}
	return l, nil
}
