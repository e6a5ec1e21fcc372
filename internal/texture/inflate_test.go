// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package texture

import (
	"encoding/binary"
	"testing"
)

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func le16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

// buildStream assembles a minimal header for an 8x8 DXT1 texture with no
// compression flags set, so the body loop never touches the Huffman
// machinery and the output is exactly the zero-filled pixel-block array.
func buildStream() []byte {
	var buf []byte
	buf = append(buf, le32(0)...)          // discarded header word
	buf = append(buf, le32(fourCCDXT1)...) // fourcc
	buf = append(buf, le16(8)...)          // width
	buf = append(buf, le16(8)...)          // height
	buf = append(buf, le32(0)...)          // data_size, unused
	buf = append(buf, le32(0)...)          // compression flags: none set
	return buf
}

func TestInflateNoSubDecoders(t *testing.T) {
	out, full, err := Inflate(buildStream(), SkipPeriod(0))
	if err != nil {
		t.Fatalf("Inflate: %v", err)
	}
	if full.PixelBlocks != 4 {
		t.Fatalf("PixelBlocks = %d, want 4", full.PixelBlocks)
	}
	if full.BytesPerBlock != 8 {
		t.Fatalf("BytesPerBlock = %d, want 8 (DXT1 pixel_size_bits=4 * 2)", full.BytesPerBlock)
	}
	if len(out) != 32 {
		t.Fatalf("output length = %d, want 32", len(out))
	}
	for i, b := range out {
		if b != 0 {
			t.Fatalf("output[%d] = %#x, want 0 (no sub-decoder ran)", i, b)
		}
	}
}

func TestInflateUnknownFourCC(t *testing.T) {
	buf := append(le32(0), le32(0xFFFFFFFF)...)
	if _, _, err := Inflate(buf, SkipPeriod(0)); err != ErrUnknownFourCC {
		t.Fatalf("Inflate with bad fourcc: got %v, want ErrUnknownFourCC", err)
	}
}

// buildStreamWithBody is buildStream with caller-chosen compression flags
// and hand-packed body bits appended as one little-endian word, MSB-first
// within the word.
func buildStreamWithBody(flags uint32, bodyBits uint32, bodyBitCount uint8) []byte {
	var buf []byte
	buf = append(buf, le32(0)...)
	buf = append(buf, le32(fourCCDXT1)...)
	buf = append(buf, le16(8)...)
	buf = append(buf, le16(8)...)
	buf = append(buf, le32(0)...)
	buf = append(buf, le32(flags)...)
	buf = append(buf, le32(bodyBits<<(32-bodyBitCount))...)
	return buf
}

// TestInflateWhiteColor drives the white-color sub-decoder over all four
// pixel blocks of an 8x8 DXT1 texture with a single run: the 2-bit run
// code 01 decodes to a run of 18, clamped by the block count, and the
// following set bit paints every block's first byte.
func TestInflateWhiteColor(t *testing.T) {
	// Bits: 01 (run code for 18) then 1 (paint).
	out, full, err := Inflate(buildStreamWithBody(DecodeWhiteColor, 0b011, 3), SkipPeriod(0))
	if err != nil {
		t.Fatalf("Inflate: %v", err)
	}
	for block := uint32(0); block < full.PixelBlocks; block++ {
		for i := uint32(0); i < full.BytesPerBlock; i++ {
			want := byte(0)
			if i == 0 {
				want = 0xFF
			}
			if got := out[block*full.BytesPerBlock+i]; got != want {
				t.Fatalf("block %d byte %d = %#x, want %#x", block, i, got, want)
			}
		}
	}
}

// TestInflateConstAlpha4 paints every block with a replicated 4-bit
// constant alpha of 0xF: the nibble doubles up to 0xFF and then across
// all eight bytes of each DXT1 block.
func TestInflateConstAlpha4(t *testing.T) {
	// Bits: 1111 (alpha nibble), 01 (run code for 18), 1 (paint), 1 (exist).
	out, _, err := Inflate(buildStreamWithBody(DecodeConstAlpha4, 0b11110111, 8), SkipPeriod(0))
	if err != nil {
		t.Fatalf("Inflate: %v", err)
	}
	for i, b := range out {
		if b != 0xFF {
			t.Fatalf("output[%d] = %#x, want 0xFF", i, b)
		}
	}
}

func TestDefaultCapabilitiesExcludePlainColor(t *testing.T) {
	if DefaultCapabilities&Capabilities(DecodePlainColor) != 0 {
		t.Fatal("DefaultCapabilities unexpectedly permits plain-color decoding")
	}
}
