// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package datkit extracts entries from proprietary .dat game archives,
// decompressing each DAT-compressed (Huffman+LZ77) entry as required, and
// fans extraction of many entries out across a worker pool that
// reassembles results in request order. Extraction does not run the
// block-compressed texture decoder; texture payloads are returned as
// stored.
package datkit

import (
	"io"

	"github.com/mistveil/datkit/internal/archive"
	"github.com/mistveil/datkit/internal/dat"
)

// File wraps an open .dat container, exposing entry listing and
// single-entry decompression on top of the internal archive envelope
// reader.
type File struct {
	arc *archive.File
}

// Open parses the .dat header, Master File Table, and index table from r.
// r must support random access; see archive.Open for guidance on adapting
// local, S3, and HTTP sources to io.ReaderAt.
func Open(r io.ReaderAt) (*File, error) {
	arc, err := archive.Open(r)
	if err != nil {
		return nil, err
	}
	return &File{arc: arc}, nil
}

// NumEntries returns the number of extractable MFT entries.
func (f *File) NumEntries() int {
	return f.arc.NumEntries()
}

// ResolveFileID returns the MFT entry index holding the given file ID, or
// -1 if none does.
func (f *File) ResolveFileID(fileID uint32) int {
	return f.arc.ResolveFileID(fileID)
}

// EntryInfo summarizes one MFT entry without reading its payload.
type EntryInfo struct {
	Offset     uint64
	Size       uint32
	Compressed bool
}

// Info returns the MFT metadata for entry index.
func (f *File) Info(index int) EntryInfo {
	e := f.arc.Entries[index]
	return EntryInfo{Offset: e.Offset, Size: e.Size, Compressed: e.Compressed()}
}

// RawEntry returns an MFT entry's bytes with per-chunk CRC words stripped
// but without running it through either compressed-stream inflater,
// useful for inspecting an entry that is stored uncompressed or for
// debugging the compressed bitstream itself.
func (f *File) RawEntry(index int) ([]byte, error) {
	return f.arc.RawEntry(index)
}

// Extract decompresses a single MFT entry by index. Entries whose
// CompressionFlag marks them stored rather than DAT-compressed are
// returned as-is.
func (f *File) Extract(index int) ([]byte, error) {
	raw, compressed, err := f.arc.Entry(index)
	if err != nil {
		return nil, err
	}
	if !compressed {
		return raw, nil
	}
	return dat.Inflate(raw)
}
