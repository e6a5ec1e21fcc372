// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package archive implements the DAT container envelope: the file header,
// Master File Table (MFT), and per-entry extraction. Nothing in this
// package decodes a compressed payload itself; it locates one entry's raw
// bytes, strips per-chunk CRC words, and returns them with the entry's
// compression flag, leaving any inflation to the caller.
package archive

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ChunkSize is the size, in bytes, of the on-disk chunks each MFT entry's
// payload is split into, each with a trailing 4-byte CRC-32C word. The
// DatHeader itself carries its own chunk-size field, which this package
// honors rather than hardcoding, but every archive observed in practice
// uses this value.
const ChunkSize = 0x10000

// datHeaderSize is the fixed on-disk size of DatHeader, used to size the
// read in readDatHeader.
const datHeaderSize = 40

// StructuralError is returned when the archive container itself is
// syntactically invalid: a bad magic number or an out-of-range MFT entry
// index. A failed read (a truncated header included) is returned as the
// wrapped I/O error instead. Unlike the compressed-stream decoders' own
// tolerant, best-effort stance toward corrupt bitstreams, a malformed
// envelope means there is no entry to extract at all, so these are
// returned rather than logged-and-ignored.
type StructuralError string

func (s StructuralError) Error() string {
	return "archive: invalid structure: " + string(s)
}

// DatHeader is the fixed 40-byte header at the start of a .dat container.
// Two fields (Unknown1, Unknown2) are of genuinely unknown purpose; they
// are carried for completeness and never validated.
type DatHeader struct {
	Version    uint8
	Identifier [3]byte // typically "AN("
	HeaderSize uint32
	Unknown1   uint32
	ChunkSize  uint32
	CRC        uint32
	Unknown2   uint32
	MFTOffset  uint64
	MFTSize    uint32
	Flags      uint32
}

func readDatHeader(r io.ReaderAt) (DatHeader, error) {
	var buf [datHeaderSize]byte
	if _, err := r.ReadAt(buf[:], 0); err != nil {
		return DatHeader{}, fmt.Errorf("archive: reading dat header: %w", err)
	}
	var h DatHeader
	h.Version = buf[0]
	copy(h.Identifier[:], buf[1:4])
	h.HeaderSize = binary.LittleEndian.Uint32(buf[4:8])
	h.Unknown1 = binary.LittleEndian.Uint32(buf[8:12])
	h.ChunkSize = binary.LittleEndian.Uint32(buf[12:16])
	h.CRC = binary.LittleEndian.Uint32(buf[16:20])
	h.Unknown2 = binary.LittleEndian.Uint32(buf[20:24])
	h.MFTOffset = binary.LittleEndian.Uint64(buf[24:32])
	h.MFTSize = binary.LittleEndian.Uint32(buf[32:36])
	h.Flags = binary.LittleEndian.Uint32(buf[36:40])
	return h, nil
}

// MftHeader is the header at DatHeader.MFTOffset. Unknown1/2/3 are, again,
// of unknown purpose and carried but unvalidated.
type MftHeader struct {
	Identifier [4]byte // typically "Mft\xe2\x86\x92" ("Mft→")
	Unknown1   uint64
	EntryCount uint32
	Unknown2   uint32
	Unknown3   uint32
}

const mftHeaderSize = 24

func readMftHeader(r io.ReaderAt, offset int64) (MftHeader, error) {
	var buf [mftHeaderSize]byte
	if _, err := r.ReadAt(buf[:], offset); err != nil {
		return MftHeader{}, fmt.Errorf("archive: reading mft header: %w", err)
	}
	var h MftHeader
	copy(h.Identifier[:], buf[0:4])
	h.Unknown1 = binary.LittleEndian.Uint64(buf[4:12])
	h.EntryCount = binary.LittleEndian.Uint32(buf[12:16])
	h.Unknown2 = binary.LittleEndian.Uint32(buf[16:20])
	h.Unknown3 = binary.LittleEndian.Uint32(buf[20:24])
	// The header consumes the first conceptual entry slot.
	if h.EntryCount > 0 {
		h.EntryCount--
	}
	return h, nil
}

// MftData is one entry of the Master File Table.
type MftData struct {
	Offset          uint64
	Size            uint32
	CompressionFlag uint16 // 8 means DAT-compressed; 0 means stored raw.
	EntryFlag       uint16
	Counter         uint32
	CRC             uint32
}

const mftDataSize = 24

// Compressed reports whether this entry's payload is DAT-compressed and
// must be run through package dat's Inflate before use.
func (e MftData) Compressed() bool {
	return e.CompressionFlag != 0
}

func readMftData(r io.ReaderAt, offset int64, count uint32) ([]MftData, error) {
	entries := make([]MftData, count)
	buf := make([]byte, mftDataSize*int(count))
	if count > 0 {
		if _, err := r.ReadAt(buf, offset); err != nil {
			return nil, fmt.Errorf("archive: reading mft data entries: %w", err)
		}
	}
	for i := range entries {
		b := buf[i*mftDataSize : (i+1)*mftDataSize]
		entries[i] = MftData{
			Offset:          binary.LittleEndian.Uint64(b[0:8]),
			Size:            binary.LittleEndian.Uint32(b[8:12]),
			CompressionFlag: binary.LittleEndian.Uint16(b[12:14]),
			EntryFlag:       binary.LittleEndian.Uint16(b[14:16]),
			Counter:         binary.LittleEndian.Uint32(b[16:20]),
			CRC:             binary.LittleEndian.Uint32(b[20:24]),
		}
	}
	return entries, nil
}

// MftIndexData resolves a requested file or base identifier to an MFT
// entry index. It lives in the MFT's second entry (index 1), a flat array
// of (FileID, BaseID) pairs.
type MftIndexData struct {
	FileID uint32
	BaseID uint32
}

const mftIndexDataSize = 8

// mftIndexEntry is the fixed index, within the MFT data array, that holds
// the index-data blob. The DAT format always places it second.
const mftIndexEntry = 1

func readMftIndexData(r io.ReaderAt, entries []MftData) ([]MftIndexData, error) {
	if len(entries) <= mftIndexEntry {
		return nil, nil
	}
	indexEntry := entries[mftIndexEntry]
	count := indexEntry.Size / mftIndexDataSize
	buf := make([]byte, mftIndexDataSize*int(count))
	if count > 0 {
		if _, err := r.ReadAt(buf, int64(indexEntry.Offset)); err != nil {
			return nil, fmt.Errorf("archive: reading mft index data: %w", err)
		}
	}
	out := make([]MftIndexData, count)
	for i := range out {
		b := buf[i*mftIndexDataSize : (i+1)*mftIndexDataSize]
		out[i] = MftIndexData{
			FileID: binary.LittleEndian.Uint32(b[0:4]),
			BaseID: binary.LittleEndian.Uint32(b[4:8]),
		}
	}
	return out, nil
}
