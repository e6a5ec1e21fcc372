// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package huffman

import "errors"

const (
	// MaxBitsHash is the width of the short-code fast-path hash table.
	MaxBitsHash = 8
	// MaxCodeBits is the widest canonical code length a Table supports.
	MaxCodeBits = 32
	// MaxSymbolValue is the largest symbol value + 1 a Table supports.
	MaxSymbolValue = 285
)

// ErrEmptyTable is returned by Builder.Build when no symbols were declared
// at all. Callers treat it as fatal for the table being built; the
// containing block is abandoned.
var ErrEmptyTable = errors.New("huffman: no symbols declared")

// Table is a canonical Huffman decode table. Codes of at most MaxBitsHash
// bits resolve through a flat hash lookup over the next 8 bits of input;
// longer codes resolve through a small linear scan over length classes.
//
// The zero value is a valid, empty table (Decode on it will not be called
// until Build has populated it).
type Table struct {
	codeCompare [MaxCodeBits]uint32
	symOffset   [MaxCodeBits]uint16
	codeBits    [MaxCodeBits]uint8
	symbolValue [MaxSymbolValue]uint16

	hashPresent [1 << MaxBitsHash]bool
	hashSymbol  [1 << MaxBitsHash]uint16
	hashBits    [1 << MaxBitsHash]uint8
}

// Decode reads one symbol from br using this table, consuming exactly as
// many bits as the code's length.
func (t *Table) Decode(br *BitReader) uint16 {
	h := br.Peek(MaxBitsHash)
	if t.hashPresent[h] {
		sym := t.hashSymbol[h]
		br.Drop(t.hashBits[h])
		return sym
	}

	v := br.Peek(32)
	var i uint16
	for v < t.codeCompare[i] {
		i++
	}
	bits := t.codeBits[i]
	shifted := (v - t.codeCompare[i]) >> (32 - bits)
	sym := t.symbolValue[t.symOffset[i]-uint16(shifted)]
	br.Drop(bits)
	return sym
}

// Builder accumulates (symbol, bit-length) declarations, one at a time, and
// materializes them into a Table. For each length it keeps a LIFO chain of
// the symbols declared at that length, via a next-pointer array indexed by
// symbol rather than a pointer graph.
type Builder struct {
	headExist [MaxCodeBits]bool
	head      [MaxCodeBits]uint16
	nextExist [MaxSymbolValue]bool
	next      [MaxSymbolValue]uint16
}

// Add declares that symbol has the given canonical code bit-length.
// Declaring the same symbol twice overwrites its place in the chain for its
// new length; the table parsers declare symbols in descending order, which
// is what gives canonical codes of the same length increasing numeric
// value as later (smaller-index) symbols are declared.
func (b *Builder) Add(symbol uint16, bits uint8) {
	if b.headExist[bits] {
		b.next[symbol] = b.head[bits]
		b.nextExist[symbol] = true
		b.head[bits] = symbol
	} else {
		b.head[bits] = symbol
		b.headExist[bits] = true
	}
}

// empty reports whether no length class has any symbols at all.
func (b *Builder) empty() bool {
	for _, ok := range b.headExist {
		if ok {
			return false
		}
	}
	return true
}

// Build materializes t from the declarations accumulated so far. t is reset
// to its zero value first, so a Table can be rebuilt from a fresh Builder
// call after call (as the DAT inflater does once per block).
func (b *Builder) Build(t *Table) error {
	if b.empty() {
		return ErrEmptyTable
	}
	*t = Table{}

	var code uint32
	var bits uint8

	// Lengths 0..MaxBitsHash: fill the flat hash table. Every 8-bit prefix
	// that begins with a code of this length is mapped to it.
	for bits = 0; bits <= MaxBitsHash; bits++ {
		exist := b.headExist[bits]
		sym := b.head[bits]
		for exist {
			// An over-subscribed (corrupt) length set drives code past the
			// range of this length; such codes get no hash entries.
			lo := code << (MaxBitsHash - bits)
			hi := (code + 1) << (MaxBitsHash - bits)
			for h := lo; h < hi && h < 1<<MaxBitsHash; h++ {
				t.hashPresent[h] = true
				t.hashSymbol[h] = sym
				t.hashBits[h] = bits
			}
			exist = b.nextExist[sym]
			sym = b.next[sym]
			code--
		}
		code = (code << 1) + 1
	}

	var classIndex uint16
	var symOffset uint16

	// Lengths MaxBitsHash+1..MaxCodeBits-1: the linear length-class tables.
	for ; bits < MaxCodeBits; bits++ {
		exist := b.headExist[bits]
		sym := b.head[bits]
		if exist {
			for exist {
				t.symbolValue[symOffset] = sym
				symOffset++
				exist = b.nextExist[sym]
				sym = b.next[sym]
				code--
			}
			t.codeCompare[classIndex] = (code + 1) << (32 - bits)
			t.codeBits[classIndex] = bits
			t.symOffset[classIndex] = symOffset - 1
			classIndex++
		}
		code = (code << 1) + 1
	}
	return nil
}
