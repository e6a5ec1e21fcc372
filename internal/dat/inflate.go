// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package dat implements the DAT stream inflater: the general-purpose
// LZ77-with-canonical-Huffman-codes compression scheme used for ordinary
// (non-texture) archive payloads.
package dat

import (
	"fmt"
	"log"

	"github.com/mistveil/datkit/internal/huffman"
)

const maxSymbolValue = huffman.MaxSymbolValue

// Inflate decompresses a single DAT-compressed buffer in full. The input is
// expected to hold exactly one frame: a 4-byte discarded word, a 4-byte
// little-endian uncompressed size, a second discarded word, and then the
// compressed body.
func Inflate(input []byte) ([]byte, error) {
	br := huffman.NewBitReader(input, 0)

	// The first word pulled by NewBitReader is itself discarded; the word
	// that follows it carries the uncompressed size, and the third header
	// word is discarded too before the compressed body begins.
	br.Drop(32)
	outputSize := br.Peek(32)
	br.Drop(32)
	br.Drop(32)

	output := make([]byte, outputSize)
	if err := inflateBody(br, output); err != nil {
		return nil, err
	}
	return output, nil
}

func inflateBody(br *huffman.BitReader, output []byte) error {
	// The stream prologue: four discarded bits, then the write-size addend
	// in the next four. This appears once per stream, not once per block
	// refresh, and the addend carries across every block below.
	br.Drop(4)
	writeSizeConstAddition := br.Peek(4) + 1
	br.Drop(4)

	staticDict, err := newStaticDict()
	if err != nil {
		return fmt.Errorf("dat: building static dictionary: %w", err)
	}

	var literalTable, copyTable huffman.Table
	var pos uint32
	size := uint32(len(output))

	for pos < size {
		if err := parseHuffmanTree(br, staticDict, &literalTable); err != nil {
			log.Printf("dat: failed to parse literal huffman tree: %v", err)
			break
		}
		if err := parseHuffmanTree(br, staticDict, &copyTable); err != nil {
			log.Printf("dat: failed to parse copy huffman tree: %v", err)
			break
		}

		maxCount := (br.ReadBits(4) + 1) << 12

		var readCount uint32
		for readCount < maxCount && pos < size {
			if br.Exhausted() {
				break
			}
			readCount++

			symbol := literalTable.Decode(br)
			if symbol < 0x100 {
				output[pos] = byte(symbol)
				pos++
				continue
			}
			symbol -= 0x100

			writeSize, err := decodeLength(br, symbol)
			if err != nil {
				log.Printf("dat: %v", err)
			}
			writeSize += writeSizeConstAddition

			offsetSymbol := copyTable.Decode(br)
			writeOffset, err := decodeOffset(br, offsetSymbol)
			if err != nil {
				log.Printf("dat: %v", err)
			}
			writeOffset++

			if writeOffset > pos {
				// A corrupt or truncated stream can decode a back-reference
				// pointing before the start of the output; there is nothing
				// to copy from, so stop early rather than index out of range.
				log.Printf("dat: back-reference offset %d exceeds current position %d", writeOffset, pos)
				return nil
			}

			var written uint32
			for written < writeSize && pos < size {
				output[pos] = output[pos-writeOffset]
				pos++
				written++
			}
		}

		if br.Exhausted() {
			break
		}
	}
	return nil
}

// decodeLength turns a length symbol (already rebased so that 0 corresponds
// to the smallest length code) into a copy length, consuming any extra
// literal bits the code implies.
func decodeLength(br *huffman.BitReader, symbol uint16) (uint32, error) {
	quot := symbol / 4
	rem := symbol % 4

	var size uint32
	switch {
	case quot == 0:
		size = uint32(symbol)
	case quot < 7:
		size = (1 << (quot - 1)) * uint32(4+rem)
	case symbol == 28:
		size = 0xFF
	default:
		return 0, fmt.Errorf("invalid length code %d", symbol)
	}

	if quot > 1 && symbol != 28 {
		extraBits := uint8(quot - 1)
		size |= br.ReadBits(extraBits)
	}
	return size, nil
}

// decodeOffset turns a copy-distance symbol into a back-reference offset
// (still missing the final +1 bias), consuming any extra literal bits the
// code implies.
func decodeOffset(br *huffman.BitReader, symbol uint16) (uint32, error) {
	quot := symbol / 2
	rem := symbol % 2

	var offset uint32
	switch {
	case quot == 0:
		offset = uint32(symbol)
	case quot < 17:
		offset = (1 << (quot - 1)) * uint32(2+rem)
	default:
		return 0, fmt.Errorf("invalid offset code %d", symbol)
	}

	if quot > 1 {
		extraBits := uint8(quot - 1)
		offset |= br.ReadBits(extraBits)
	}
	return offset, nil
}

// parseHuffmanTree reads one dynamic table header (a symbol count followed
// by dict-encoded (bit-length, run-length) declarations) and builds t from
// it using dict to decode the declarations themselves.
func parseHuffmanTree(br *huffman.BitReader, dict *huffman.Table, t *huffman.Table) error {
	symbolNumber := uint16(br.ReadBits(16))
	if symbolNumber > maxSymbolValue {
		log.Printf("dat: too many symbols to decode (%d)", symbolNumber)
		symbolNumber = maxSymbolValue
	}

	var builder huffman.Builder
	remaining := int32(symbolNumber) - 1
	for remaining >= 0 {
		code := dict.Decode(br)
		bits := uint8(code & 0x1F)
		run := uint16(code>>5) + 1

		if bits == 0 {
			remaining -= int32(run)
			continue
		}
		for ; run > 0 && remaining >= 0; run-- {
			builder.Add(uint16(remaining), bits)
			remaining--
		}
	}
	return builder.Build(t)
}
