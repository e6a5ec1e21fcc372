// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package texture

import "github.com/mistveil/datkit/internal/huffman"

// staticSymbols and staticBitLengths declare the texture variant's own,
// much smaller, static dictionary: 18 symbols with lengths 1, 2, and 6,
// used directly as the run-length code for every sub-decoder's "how many
// undecoded blocks to skip" loop. Unlike the DAT static dictionary, this
// one is not used to decode a table header: it is the only Huffman table
// the texture inflater ever needs.
var staticSymbols = [18]uint16{
	0x01,
	0x12,
	0x11, 0x10, 0x0F, 0x0E, 0x0D, 0x0C, 0x0B, 0x0A, 0x09, 0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02,
}

var staticBitLengths = [18]uint8{
	1,
	2,
	6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6,
}

// newStaticDict builds the texture variant's fixed run-length table once
// per decompression call, mirroring the DAT variant's own per-call rebuild
// of its static dictionary.
func newStaticDict() (*huffman.Table, error) {
	var b huffman.Builder
	for i, sym := range staticSymbols {
		b.Add(sym, staticBitLengths[i])
	}
	t := &huffman.Table{}
	if err := b.Build(t); err != nil {
		return nil, err
	}
	return t, nil
}
