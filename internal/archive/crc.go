// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package archive

import (
	"hash/crc32"
	"log"
)

// castagnoli is the CRC-32C polynomial table, built once.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// stripChunkCRCs removes the trailing 4-byte CRC-32C word from each
// 64KB-chunked window of raw, distinguishing three cases by the entry's
// declared size relative to chunkSize:
//
//   - larger than one chunk: drop the 4 bytes at the end of each
//     successive chunkSize window (each window starting where the
//     previous one's payload ended), then drop a final trailing 4 bytes
//     if more than 4 remain;
//   - exactly one chunk: drop the single trailing 4-byte word;
//   - smaller than one chunk: no mid-buffer removal, just a trailing
//     4-byte truncation if more than 4 bytes are present.
func stripChunkCRCs(raw []byte, chunkSize int) []byte {
	size := len(raw)
	cleaned := make([]byte, len(raw))
	copy(cleaned, raw)

	switch {
	case size > chunkSize:
		// Once a chunk's CRC word is gone, the next chunk's word sits
		// chunkSize-4 bytes further on; the last one is the trailing word.
		start := chunkSize - 4
		for start+4 < len(cleaned) {
			cleaned = append(cleaned[:start], cleaned[start+4:]...)
			start += chunkSize - 4
		}
		if len(cleaned) > 4 {
			cleaned = cleaned[:len(cleaned)-4]
		}
	case size == chunkSize:
		start := chunkSize - 4
		cleaned = append(cleaned[:start], cleaned[chunkSize:]...)
	default:
		if len(cleaned) > 4 {
			cleaned = cleaned[:len(cleaned)-4]
		}
	}
	return cleaned
}

// verifyChunkCRCs recomputes the CRC-32C of each chunkSize-minus-4-byte
// payload window against the 4-byte word that was stripped from the end
// of it, logging (not failing) on a mismatch. This matches the stream
// decoders' own non-fatal stance toward corruption: a bad chunk CRC does
// not abort extraction.
func verifyChunkCRCs(raw []byte, chunkSize int) {
	size := len(raw)
	if size <= chunkSize {
		return
	}
	pos := 0
	for pos+chunkSize <= size {
		payload := raw[pos : pos+chunkSize-4]
		wantBytes := raw[pos+chunkSize-4 : pos+chunkSize]
		want := uint32(wantBytes[0]) | uint32(wantBytes[1])<<8 | uint32(wantBytes[2])<<16 | uint32(wantBytes[3])<<24
		got := crc32.Checksum(payload, castagnoli)
		if got != want {
			log.Printf("archive: chunk CRC mismatch at offset %d: got %#x, want %#x", pos, got, want)
		}
		pos += chunkSize
	}
}
