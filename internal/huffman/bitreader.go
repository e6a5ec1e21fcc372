// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package huffman implements the bit-level reader and canonical Huffman
// table machinery shared by the DAT and texture stream decoders. Both
// decoders are structurally identical at this layer: a 32-bit prefetching
// bit register feeding a table built from (symbol, bit-length)
// declarations.
package huffman

import (
	"encoding/binary"
	"log"
)

// BitReader is a 32-bit-word-oriented, MSB-first bit reader. It maintains
// two 32-bit registers: head, from which bits are peeked and consumed, and
// buffer, which holds the next word's worth of not-yet-promoted bits. Together
// they expose up to 64 bits of lookahead.
//
// BitReader never returns an error. On input underflow it degrades to
// returning zero-padded bits, leaving truncation detection to the caller
// (typically: the decoded output buffer was not fully written).
type BitReader struct {
	data      []byte
	pos       int
	remaining uint32

	head   uint32
	buffer uint32
	live   uint8 // number of valid bits in head and buffer together

	// skipPeriod, when non-zero, causes one 32-bit word to be discarded
	// every skipPeriod-th word read, to step over framing/CRC words
	// embedded in the stream. Zero disables skipping.
	skipPeriod uint32
}

// NewBitReader constructs a BitReader over data. skipPeriod is the
// framing-word skip period in 32-bit words; pass 0 to disable skipping.
func NewBitReader(data []byte, skipPeriod uint32) *BitReader {
	br := &BitReader{
		data:       data,
		remaining:  uint32(len(data)),
		skipPeriod: skipPeriod,
	}
	br.head, br.live = br.pull()
	return br
}

// pull reads one little-endian 32-bit word from the input, honoring the
// skip period, and returns it along with the number of valid bits (32, or
// 0 if fewer than four bytes remain).
func (br *BitReader) pull() (word uint32, live uint8) {
	if br.skipPeriod != 0 && br.remaining >= 4 {
		if (uint64(br.pos)/4+1)%uint64(br.skipPeriod) == 0 {
			br.pos += 4
			br.remaining -= 4
		}
	}
	if br.remaining < 4 {
		return 0, 0
	}
	word = binary.LittleEndian.Uint32(br.data[br.pos : br.pos+4])
	br.pos += 4
	br.remaining -= 4
	return word, 32
}

// Peek returns the top n bits of the head register, right-justified, without
// consuming them. n must be in [0, 32]; n == 32 returns head unchanged.
func (br *BitReader) Peek(n uint8) uint32 {
	return br.head >> (32 - n)
}

// Drop consumes n bits (n in [0, 32]), shifting new bits in from the buffer
// register and refilling the buffer from the input as needed.
//
// Shifting a uint32 by 32 in Go yields zero rather than being undefined, so
// the n == 32 case falls out of the same arithmetic as every other case and
// needs no special branch.
func (br *BitReader) Drop(n uint8) {
	if n > br.live {
		log.Printf("huffman: dropping %d bits with only %d available", n, br.live)
	}
	newLive := br.live - n
	if newLive >= 32 {
		br.head = (br.head << n) | (br.buffer >> (32 - n))
		br.buffer <<= n
		br.live = newLive
		return
	}
	word, pulledLive := br.pull()
	br.head = (br.head << n) | (br.buffer >> (32 - n)) | (word >> newLive)
	if newLive > 0 {
		br.buffer = word << (32 - newLive)
	}
	br.live = newLive + pulledLive
}

// ReadBits peeks n bits and then drops them; a convenience for the common
// "read a fixed-width header field" case.
func (br *BitReader) ReadBits(n uint8) uint32 {
	v := br.Peek(n)
	br.Drop(n)
	return v
}

// Exhausted reports whether the underlying byte cursor has reached the end
// of the input; the block decode loops use it to stop pulling tokens.
func (br *BitReader) Exhausted() bool {
	return br.pos >= len(br.data)
}
