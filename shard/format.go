// Package shard implements the on-disk shard file format, loading into
// an immutable, optionally memory-mapped LaneSnapshot of NTT-form
// plaintext records, and lane/CRS metadata.
package shard

import (
	"encoding/binary"
	"fmt"
)

// magic identifies a shard file.
var magic = [4]byte{'P', 'I', 'R', '2'}

const (
	headerSize     = 32
	cacheLineBytes = 64
)

// Header is the 32-byte fixed shard file header: magic PIR2, version,
// record width w, record count in shard, reserved.
type Header struct {
	Version     uint16
	RecordWidth uint16 // ring coefficients per record, not bytes
	RecordCount uint64
}

func (h Header) encode() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], magic[:])
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint16(buf[6:8], h.RecordWidth)
	binary.LittleEndian.PutUint64(buf[8:16], h.RecordCount)
	// buf[16:32] reserved, left zero.
	return buf
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, fmt.Errorf("shard: header truncated: got %d bytes, want %d", len(buf), headerSize)
	}
	var m [4]byte
	copy(m[:], buf[0:4])
	if m != magic {
		return Header{}, fmt.Errorf("shard: bad magic %q, want %q", m, magic)
	}
	return Header{
		Version:     binary.LittleEndian.Uint16(buf[4:6]),
		RecordWidth: binary.LittleEndian.Uint16(buf[6:8]),
		RecordCount: binary.LittleEndian.Uint64(buf[8:16]),
	}, nil
}

// bodyOffset rounds the header up to the next cache-line boundary
// (reference 64 B).
func bodyOffset() int64 {
	if headerSize%cacheLineBytes == 0 {
		return headerSize
	}
	return int64((headerSize/cacheLineBytes + 1) * cacheLineBytes)
}

// recordByteWidth returns the on-disk size in bytes of one record's
// d coefficients, each serialized as a little-endian uint64.
func recordByteWidth(d int) int64 {
	return int64(d) * 8
}
