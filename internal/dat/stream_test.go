// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package dat

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/mistveil/datkit/internal/huffman"
)

// bitWriter assembles a compressed body bit by bit, MSB-first, and emits
// it as the little-endian 32-bit words the bit reader pulls. It exists so
// the full-stream tests below can hand-encode token streams without an
// encoder (none exists for this format).
type bitWriter struct {
	bits []uint8
}

// write appends the low n bits of v, most significant first.
func (w *bitWriter) write(v uint32, n uint8) {
	for i := int(n) - 1; i >= 0; i-- {
		w.bits = append(w.bits, uint8((v>>uint(i))&1))
	}
}

// bytes pads the stream with zero bits to a 32-bit word boundary and
// packs it the way the reader consumes it: each word's bits MSB-first,
// words serialized little-endian.
func (w *bitWriter) bytes() []byte {
	bits := append([]uint8{}, w.bits...)
	for len(bits)%32 != 0 {
		bits = append(bits, 0)
	}
	out := make([]byte, 0, len(bits)/8)
	for i := 0; i < len(bits); i += 32 {
		var word uint32
		for j := 0; j < 32; j++ {
			word = word<<1 | uint32(bits[i+j])
		}
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], word)
		out = append(out, b[:]...)
	}
	return out
}

// Canonical codes of the static dictionary symbols the tests below need,
// derived by walking the build procedure over the declaration list in
// dict.go. Each declares (bits-per-symbol, run) when decoded during
// dynamic table parsing.
const (
	dictDeclare1Code = 27 // symbol 0x01: declare 1 symbol of length 1
	dictDeclare1Bits = 10
	dictSkip8Code    = 8 // symbol 0xE0: skip 8 positions
	dictSkip8Bits    = 5
	dictSkip7Code    = 14 // symbol 0xC0: skip 7 positions
	dictSkip7Bits    = 10
	dictSkip1Code    = 9 // symbol 0x00: skip 1 position
	dictSkip1Bits    = 4
)

func writeFrameHeader(w *bytes.Buffer, outputSize uint32) {
	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[4:8], outputSize)
	w.Write(hdr[:])
}

// framePadding follows the encoded body in the test frames below. The
// decoder's token loop stops once the input cursor reaches the end of the
// buffer, and the reader prefetches up to two words ahead of the bits
// actually consumed, so a frame that ends flush with its last token would
// cut the final tokens off. Real streams carry trailing block data that
// keeps the cursor ahead of the decode position.
var framePadding = make([]byte, 32)

// writePrologue emits the stream prologue: four discarded bits followed
// by the write-size addend (addend-1 on the wire).
func writePrologue(w *bitWriter, addend uint32) {
	w.write(0, 4)
	w.write(addend-1, 4)
}

// writeTokenCap emits the per-refresh token cap nibble: (0+1)<<12 tokens,
// plenty for these streams.
func writeTokenCap(w *bitWriter) {
	w.write(0, 4)
}

// writeSingleSymbolTable declares a one-entry table (symbol 0, length 1),
// the smallest copy table the block header accepts.
func writeSingleSymbolTable(w *bitWriter) {
	w.write(1, 16)
	w.write(dictDeclare1Code, dictDeclare1Bits)
}

// TestInflateLiteralStream hand-encodes a two-literal stream: a symbol
// table assigning 1-bit codes to 'H' (0x48) and 'i' (0x69), a minimal
// copy table, and two literal tokens.
func TestInflateLiteralStream(t *testing.T) {
	var w bitWriter
	writePrologue(&w, 1)

	// Symbol table: 106 declaration slots. Counting down from 105 (0x69):
	// declare 0x69, skip 32 down to 0x48, declare it, skip the remaining
	// 72 slots.
	w.write(0x6A, 16)
	w.write(dictDeclare1Code, dictDeclare1Bits)
	for i := 0; i < 4; i++ {
		w.write(dictSkip8Code, dictSkip8Bits)
	}
	w.write(dictDeclare1Code, dictDeclare1Bits)
	for i := 0; i < 9; i++ {
		w.write(dictSkip8Code, dictSkip8Bits)
	}

	writeSingleSymbolTable(&w)
	writeTokenCap(&w)

	// 0x48 was declared later, so it heads the length-1 chain and takes
	// code 1; 0x69 takes code 0.
	w.write(1, 1)
	w.write(0, 1)

	var buf bytes.Buffer
	writeFrameHeader(&buf, 2)
	buf.Write(w.bytes())
	buf.Write(framePadding)

	out, err := Inflate(buf.Bytes())
	if err != nil {
		t.Fatalf("Inflate: %v", err)
	}
	if !bytes.Equal(out, []byte("Hi")) {
		t.Fatalf("Inflate = %q, want %q", out, "Hi")
	}
}

// TestInflateBackReference hand-encodes literal 'A' followed by a
// length-code token (symbol 257, no extra bits, addend 1 giving a
// two-byte copy) at offset 1, the run-length-extension case.
func TestInflateBackReference(t *testing.T) {
	var w bitWriter
	writePrologue(&w, 1)

	// Symbol table: 258 slots. Counting down from 257: declare the length
	// symbol 257, skip 191 down to 0x41, declare it, skip the last 65.
	w.write(0x102, 16)
	w.write(dictDeclare1Code, dictDeclare1Bits)
	for i := 0; i < 23; i++ {
		w.write(dictSkip8Code, dictSkip8Bits)
	}
	w.write(dictSkip7Code, dictSkip7Bits)
	w.write(dictDeclare1Code, dictDeclare1Bits)
	for i := 0; i < 8; i++ {
		w.write(dictSkip8Code, dictSkip8Bits)
	}
	w.write(dictSkip1Code, dictSkip1Bits)

	writeSingleSymbolTable(&w)
	writeTokenCap(&w)

	// Literal 0x41 heads the length-1 chain (code 1); 257 takes code 0.
	// The copy table's sole symbol 0 has code 1 and decodes to offset 1
	// after the +1 bias.
	w.write(1, 1)
	w.write(0, 1)
	w.write(1, 1)

	var buf bytes.Buffer
	writeFrameHeader(&buf, 3)
	buf.Write(w.bytes())
	buf.Write(framePadding)

	out, err := Inflate(buf.Bytes())
	if err != nil {
		t.Fatalf("Inflate: %v", err)
	}
	if !bytes.Equal(out, []byte{0x41, 0x41, 0x41}) {
		t.Fatalf("Inflate = %v, want [0x41 0x41 0x41]", out)
	}
}

// TestStaticDictCanonicalCodes pins the static dictionary's canonical
// code assignment: the 3-bit codes 111, 110 and 101 belong to 0x08, 0x09
// and 0x0A, and a following 4-bit 1001 decodes to 0x00, proving exactly
// three bits were consumed by the first decode.
func TestStaticDictCanonicalCodes(t *testing.T) {
	dict, err := newStaticDict()
	if err != nil {
		t.Fatalf("newStaticDict: %v", err)
	}

	cases := []struct {
		bits uint32
		n    uint8
		want uint16
	}{
		{0b111, 3, 0x08},
		{0b110, 3, 0x09},
		{0b101, 3, 0x0A},
		{0b1001, 4, 0x00},
	}
	for _, c := range cases {
		var w bitWriter
		w.write(c.bits, c.n)
		br := huffman.NewBitReader(w.bytes(), 0)
		if got := dict.Decode(br); got != c.want {
			t.Errorf("decode %0*b = %#x, want %#x", int(c.n), c.bits, got, c.want)
		}
	}

	// Consumption check: 110 then 1001 back to back.
	var w bitWriter
	w.write(0b110, 3)
	w.write(0b1001, 4)
	br := huffman.NewBitReader(w.bytes(), 0)
	if got := dict.Decode(br); got != 0x09 {
		t.Fatalf("first decode = %#x, want 0x09", got)
	}
	if got := dict.Decode(br); got != 0x00 {
		t.Fatalf("second decode = %#x, want 0x00", got)
	}
}
