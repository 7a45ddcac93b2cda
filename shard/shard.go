package shard

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/exp/mmap"

	"ethpir/ringmath"
)

// LoadMode selects how a shard file's body is brought into the process.
type LoadMode int

const (
	// ReadIntoMemory copies the whole shard body into a heap buffer.
	ReadIntoMemory LoadMode = iota
	// MemoryMap maps the shard file read-only and decodes records from
	// the mapped pages on demand: O(1) load time, at the cost of letting
	// the OS page the body in lazily rather than locking it resident.
	MemoryMap
)

// Shard is one immutable, append-only slice of the grid's rows. It
// implements protocol.RecordSource over its own local index range;
// LaneSnapshot composes several Shards into the full grid.
type Shard struct {
	header Header
	d      int // ring dimension; every record is exactly d coefficients

	// Exactly one of buf/ra is set, selected by the LoadMode passed to Open.
	buf []byte
	ra  *mmap.ReaderAt
}

// Open loads a shard file under mode. d is the ring dimension every
// record must have been encoded for (ringmath.Engine.D()); a header
// whose RecordWidth/RecordCount is inconsistent with the file's actual
// size is rejected rather than silently truncated.
func Open(path string, d int, mode LoadMode) (*Shard, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("shard: opening %s: %w", path, err)
	}
	defer f.Close()

	hdrBuf := make([]byte, headerSize)
	if _, err := f.ReadAt(hdrBuf, 0); err != nil {
		return nil, fmt.Errorf("shard: reading header of %s: %w", path, err)
	}
	hdr, err := decodeHeader(hdrBuf)
	if err != nil {
		return nil, fmt.Errorf("shard: %s: %w", path, err)
	}
	if int(hdr.RecordWidth) != d {
		return nil, fmt.Errorf("shard: %s header record width %d does not match ring dimension %d", path, hdr.RecordWidth, d)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("shard: stat %s: %w", path, err)
	}
	wantSize := bodyOffset() + int64(hdr.RecordCount)*recordByteWidth(d)
	if info.Size() < wantSize {
		return nil, fmt.Errorf("shard: %s is %d bytes, want at least %d for %d records of width %d", path, info.Size(), wantSize, hdr.RecordCount, d)
	}

	s := &Shard{header: hdr, d: d}
	switch mode {
	case ReadIntoMemory:
		buf := make([]byte, wantSize-bodyOffset())
		if _, err := f.ReadAt(buf, bodyOffset()); err != nil {
			return nil, fmt.Errorf("shard: reading body of %s: %w", path, err)
		}
		s.buf = buf
	case MemoryMap:
		ra, err := mmap.Open(path)
		if err != nil {
			return nil, fmt.Errorf("shard: mmap %s: %w", path, err)
		}
		s.ra = ra
	default:
		return nil, fmt.Errorf("shard: unknown load mode %v", mode)
	}
	return s, nil
}

// Write serializes records (each exactly d coefficients, NTT-evaluation
// form) into a new shard file at path. Used by tests and by offline
// shard-building tooling; records must already be in NTT form, matching
// what AnswerGen expects to read back.
func Write(path string, version uint16, d int, records []*ringmath.Element) error {
	for i, r := range records {
		if r.Form != ringmath.Evaluation {
			return fmt.Errorf("shard: record %d is not in NTT-evaluation form", i)
		}
		if len(r.Coeffs) != d {
			return fmt.Errorf("shard: record %d has %d coefficients, want %d", i, len(r.Coeffs), d)
		}
	}
	hdr := Header{Version: version, RecordWidth: uint16(d), RecordCount: uint64(len(records))}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("shard: creating %s: %w", path, err)
	}
	defer f.Close()

	padded := make([]byte, bodyOffset())
	copy(padded, hdr.encode())
	if _, err := f.Write(padded); err != nil {
		return fmt.Errorf("shard: writing header of %s: %w", path, err)
	}

	recBuf := make([]byte, recordByteWidth(d))
	for _, r := range records {
		for i, c := range r.Coeffs {
			binary.LittleEndian.PutUint64(recBuf[i*8:i*8+8], c)
		}
		if _, err := f.Write(recBuf); err != nil {
			return fmt.Errorf("shard: writing body of %s: %w", path, err)
		}
	}
	return nil
}

// Len returns the number of records this shard holds.
func (s *Shard) Len() int { return int(s.header.RecordCount) }

// At returns the NTT-form plaintext record at local index idx within
// this shard. Out-of-range idx is a programming error: callers (shard
// composition in LaneSnapshot, protocol.AnswerGen) are responsible for
// treating indices beyond the logical record count N as the implicit
// zero record, never by reading past this shard.
func (s *Shard) At(idx int) (*ringmath.Element, error) {
	if idx < 0 || idx >= s.Len() {
		return nil, fmt.Errorf("shard: index %d out of range [0, %d)", idx, s.Len())
	}
	width := recordByteWidth(s.d)
	var raw []byte
	if s.buf != nil {
		start := int64(idx) * width
		raw = s.buf[start : start+width]
	} else {
		raw = make([]byte, width)
		off := bodyOffset() + int64(idx)*width
		if _, err := s.ra.ReadAt(raw, off); err != nil {
			return nil, fmt.Errorf("shard: reading record %d: %w", idx, err)
		}
	}

	coeffs := make([]uint64, s.d)
	for i := range coeffs {
		coeffs[i] = binary.LittleEndian.Uint64(raw[i*8 : i*8+8])
	}
	return &ringmath.Element{Form: ringmath.Evaluation, Coeffs: coeffs}, nil
}

// Close releases the shard's memory map, if it has one. Read-into-memory
// shards hold no OS resources and Close is a no-op for them.
func (s *Shard) Close() error {
	if s.ra != nil {
		return s.ra.Close()
	}
	return nil
}
