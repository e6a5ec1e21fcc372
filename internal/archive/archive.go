// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package archive

import (
	"fmt"
	"io"
)

// File is an open .dat container: its header, Master File Table, and the
// index table resolving a file ID to an MFT entry. It holds no compressed
// payload in memory; RawEntry and Entry read and clean one entry's bytes on
// demand.
type File struct {
	r io.ReaderAt

	Header  DatHeader
	Mft     MftHeader
	Entries []MftData
	Index   []MftIndexData
}

// Open reads a .dat container's header, MFT, and index table from r. r must
// support random access; callers reading from local disk can pass an
// *os.File directly, and callers reading from a remote source (S3, HTTP)
// should buffer the whole object into a bytes.Reader first, since neither
// this package nor its callers depend on any one storage backend's API.
func Open(r io.ReaderAt) (*File, error) {
	header, err := readDatHeader(r)
	if err != nil {
		return nil, err
	}
	if header.Identifier != [3]byte{'A', 'N', '('} {
		return nil, StructuralError(fmt.Sprintf("unrecognized dat header identifier %q", header.Identifier))
	}

	mft, err := readMftHeader(r, int64(header.MFTOffset))
	if err != nil {
		return nil, err
	}
	entries, err := readMftData(r, int64(header.MFTOffset)+mftHeaderSize, mft.EntryCount)
	if err != nil {
		return nil, err
	}
	index, err := readMftIndexData(r, entries)
	if err != nil {
		return nil, err
	}

	return &File{
		r:       r,
		Header:  header,
		Mft:     mft,
		Entries: entries,
		Index:   index,
	}, nil
}

// NumEntries returns the number of extractable MFT entries.
func (f *File) NumEntries() int {
	return len(f.Entries)
}

// ResolveFileID returns the MFT entry index holding the given file ID, or
// -1 if no index entry names it. The index table maps a file ID to a
// one-based base ID; the matching entry's BaseID minus one is the MFT data
// index. A file ID that appears more than once resolves to its last
// occurrence.
func (f *File) ResolveFileID(fileID uint32) int {
	found := -1
	for _, idx := range f.Index {
		if idx.FileID == fileID {
			found = int(idx.BaseID) - 1
		}
	}
	return found
}

// ResolveBaseID returns the MFT entry index for a one-based base ID, or -1
// if no index entry carries it.
func (f *File) ResolveBaseID(baseID uint32) int {
	found := -1
	for _, idx := range f.Index {
		if idx.BaseID == baseID {
			found = int(idx.BaseID) - 1
		}
	}
	return found
}

// RawEntry reads one MFT entry's bytes from the underlying source and
// strips its per-chunk CRC-32C words, but does not run it through either
// compressed-stream inflater. Entry returns the same bytes together with
// the entry's compression flag; RawEntry exists for inspection tools and
// for entries whose payload is not DAT-compressed at all
// (CompressionFlag == 0).
func (f *File) RawEntry(index int) ([]byte, error) {
	if index < 0 || index >= len(f.Entries) {
		return nil, StructuralError(fmt.Sprintf("entry index %d out of range (have %d entries)", index, len(f.Entries)))
	}
	entry := f.Entries[index]
	buf := make([]byte, entry.Size)
	if entry.Size > 0 {
		if _, err := f.r.ReadAt(buf, int64(entry.Offset)); err != nil {
			return nil, fmt.Errorf("archive: reading entry %d: %w", index, err)
		}
	}

	chunkSize := int(f.Header.ChunkSize)
	if chunkSize == 0 {
		chunkSize = ChunkSize
	}
	verifyChunkCRCs(buf, chunkSize)
	return stripChunkCRCs(buf, chunkSize), nil
}

// Entry returns the raw, CRC-stripped bytes for MFT entry index along with
// whether the caller still needs to run them through a compressed-stream
// inflater before use.
func (f *File) Entry(index int) (data []byte, compressed bool, err error) {
	if index < 0 || index >= len(f.Entries) {
		return nil, false, StructuralError(fmt.Sprintf("entry index %d out of range (have %d entries)", index, len(f.Entries)))
	}
	raw, err := f.RawEntry(index)
	if err != nil {
		return nil, false, err
	}
	return raw, f.Entries[index].Compressed(), nil
}
