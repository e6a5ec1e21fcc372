// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package texture implements the block-compressed texture payload
// decoder: a structural variant of the DAT inflater (package dat) that
// shares the bit reader and canonical Huffman machinery from package
// huffman but decodes a different wire format built around fixed-size
// pixel blocks instead of an LZ77 literal/copy token stream.
package texture

import (
	"errors"
	"fmt"

	"github.com/mistveil/datkit/internal/huffman"
)

// DefaultSkipPeriod is the texture variant's historical bit-reader skip
// period in 32-bit words (the DAT variant uses 0). It is a configuration
// knob rather than something detected from the stream itself; callers
// decoding archives that do not interleave a framing word every 16384
// words should override it with SkipPeriod(0).
const DefaultSkipPeriod = 16384

// Bits of the per-texture compression-flag word, each gating one of the
// four sub-decoders.
const (
	DecodeWhiteColor  uint32 = 0x01
	DecodeConstAlpha4 uint32 = 0x02
	DecodeConstAlpha8 uint32 = 0x04
	DecodePlainColor  uint32 = 0x08
	AllSubDecoders    uint32 = DecodeWhiteColor | DecodeConstAlpha4 | DecodeConstAlpha8 | DecodePlainColor
)

// Capabilities gates which sub-decoders this implementation is willing to
// invoke, independent of which bits the stream itself requests. The
// plain-color sub-decoder's block-painting step is not understood (see
// ErrPlainColorUnsupported); callers must opt into it explicitly, and
// doing so still only gets the sub-stream's header consumed before the
// decode fails.
type Capabilities uint32

// DefaultCapabilities omits plain-color decoding, since this
// implementation cannot faithfully complete it.
const DefaultCapabilities = Capabilities(DecodeWhiteColor | DecodeConstAlpha4 | DecodeConstAlpha8)

// ErrPlainColorUnsupported is returned when the stream requests
// plain-color decoding and the caller's Capabilities permit attempting it.
// The sub-stream's reference-color header is understood, but how the
// per-texel index bits are derived and painted into each block is not;
// rather than guess at it, the decoder stops and reports the gap.
var ErrPlainColorUnsupported = errors.New("texture: plain-color block painting is not supported")

type options struct {
	skipPeriod   uint32
	capabilities Capabilities
}

// Option configures Inflate, following the functional-options convention
// used throughout this module's decompression and CLI entry points.
type Option func(*options)

// SkipPeriod overrides DefaultSkipPeriod.
func SkipPeriod(words uint32) Option {
	return func(o *options) { o.skipPeriod = words }
}

// WithCapabilities overrides DefaultCapabilities.
func WithCapabilities(c Capabilities) Option {
	return func(o *options) { o.capabilities = c }
}

// FullFormat carries everything the inflater derives from the stream
// header before it starts decoding pixel blocks.
type FullFormat struct {
	Format        Format
	Width, Height uint16
	PixelBlocks   uint32
	BytesPerBlock uint32
}

// Inflate decompresses a single texture-compressed buffer in full,
// returning the painted pixel-block byte array and the format header it
// was decoded from.
func Inflate(input []byte, opts ...Option) ([]byte, FullFormat, error) {
	o := options{skipPeriod: DefaultSkipPeriod, capabilities: DefaultCapabilities}
	for _, fn := range opts {
		fn(&o)
	}

	dict, err := newStaticDict()
	if err != nil {
		return nil, FullFormat{}, fmt.Errorf("texture: building static dictionary: %w", err)
	}

	br := huffman.NewBitReader(input, o.skipPeriod)
	br.Drop(32) // discarded header word, provenance unknown

	fourcc := br.ReadBits(32)
	format, err := DeduceFormat(fourcc)
	if err != nil {
		return nil, FullFormat{}, err
	}

	width := uint16(br.ReadBits(16))
	height := uint16(br.ReadBits(16))

	blocksWide := (uint32(width) + 3) / 4
	blocksHigh := (uint32(height) + 3) / 4
	full := FullFormat{
		Format:        format,
		Width:         width,
		Height:        height,
		PixelBlocks:   blocksWide * blocksHigh,
		BytesPerBlock: uint32(format.PixelSizeBits) * 2,
	}

	output := make([]byte, full.BytesPerBlock*full.PixelBlocks)
	if err := inflateBody(br, dict, full, output, o.capabilities); err != nil {
		return nil, full, err
	}
	return output, full, nil
}

func inflateBody(br *huffman.BitReader, dict *huffman.Table, full FullFormat, output []byte, caps Capabilities) error {
	br.Drop(32) // data size word, unused by this implementation
	flags := br.Peek(32)
	br.Drop(32)

	colorBitmap := make([]bool, full.PixelBlocks)
	alphaBitmap := make([]bool, full.PixelBlocks)

	if flags&DecodeWhiteColor != 0 && caps&Capabilities(DecodeWhiteColor) != 0 {
		decodeWhiteColor(br, dict, colorBitmap, alphaBitmap, full, output)
	}
	if flags&DecodeConstAlpha4 != 0 && caps&Capabilities(DecodeConstAlpha4) != 0 {
		decodeConstAlpha(br, dict, alphaBitmap, full, output, 4)
	}
	if flags&DecodeConstAlpha8 != 0 && caps&Capabilities(DecodeConstAlpha8) != 0 {
		decodeConstAlpha(br, dict, alphaBitmap, full, output, 8)
	}
	if flags&DecodePlainColor != 0 {
		if caps&Capabilities(DecodePlainColor) == 0 {
			return nil
		}
		return decodePlainColor(br, dict, colorBitmap, full)
	}
	return nil
}

// decodeWhiteColor paints the "this block is pure white" marker for every
// pixel block the stream selects: a Huffman-decoded run count of
// still-undecoded blocks, followed by one decision bit that, when set,
// paints each block's first byte 0xFF and marks it decoded in both
// bitmaps.
func decodeWhiteColor(br *huffman.BitReader, dict *huffman.Table, colorBitmap, alphaBitmap []bool, full FullFormat, output []byte) {
	pos := uint32(0)
	for pos < full.PixelBlocks {
		run := dict.Decode(br)
		set := br.ReadBits(1) != 0
		for run > 0 {
			if !colorBitmap[pos] {
				if set {
					output[full.BytesPerBlock*pos] = 0xFF
					alphaBitmap[pos] = true
					colorBitmap[pos] = true
				}
				run--
			}
			pos++
			if pos >= full.PixelBlocks {
				break
			}
		}
	}
}

// decodeConstAlpha paints blocks with a constant alpha value read from
// the stream, as either a 4-bit nibble or a full 8-bit byte; the
// block-selection loop (run count, value bit, existence bit,
// paint-or-zero) is the same for both widths.
func decodeConstAlpha(br *huffman.BitReader, dict *huffman.Table, alphaBitmap []bool, full FullFormat, output []byte, valueBits uint8) {
	alphaByte := byte(br.ReadBits(valueBits))
	var alphaValue uint64
	if valueBits == 4 {
		// The nibble doubles up to a byte and replicates across the whole
		// alpha word.
		alphaByte |= alphaByte << 4
		w16 := uint16(alphaByte) | uint16(alphaByte)<<8
		w32 := uint32(w16) | uint32(w16)<<16
		alphaValue = uint64(w32) | uint64(w32)<<32
	} else {
		// The 8-bit value occupies only the low byte of the alpha word; it
		// is not replicated the way the 4-bit case is.
		alphaValue = uint64(alphaByte)
	}

	pos := uint32(0)
	for pos < full.PixelBlocks {
		run := dict.Decode(br)
		set := br.ReadBits(1) != 0
		// The existence bit is only peeked here; it is consumed just
		// below, and only when set is true, leaving it still pending on
		// the next iteration otherwise.
		exist := br.Peek(1) != 0
		if set {
			br.Drop(1)
		}

		for run > 0 {
			if !alphaBitmap[pos] {
				if set {
					var buf [8]byte
					src := uint64(0)
					if exist {
						src = alphaValue
					}
					putUint64LE(buf[:], src)
					// The constant-alpha sub-block is always 8 bytes,
					// regardless of the format's total BytesPerBlock (16 for
					// the 8-bit-per-channel DXT2-5/DXTL/DXTN/3DCX formats);
					// it occupies the start of the pixel block.
					n := full.BytesPerBlock
					if n > uint32(len(buf)) {
						n = uint32(len(buf))
					}
					copy(output[full.BytesPerBlock*pos:full.BytesPerBlock*pos+n], buf[:n])
					alphaBitmap[pos] = true
				}
				run--
			}
			pos++
			if pos >= full.PixelBlocks {
				break
			}
		}
		for pos < full.PixelBlocks && alphaBitmap[pos] {
			pos++
		}
	}
}

func putUint64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// plainColorHeader consumes the plain-color sub-stream's three reference
// color bytes and performs the DXT1-style 5:6:5 reduction and
// re-expansion used to pick the two interpolation endpoints. The
// per-channel comparison step that would follow divides by a quantity
// that can be zero and its intended behavior is unknown, so decoding
// stops here without painting any output.
func plainColorHeader(br *huffman.BitReader) {
	blue := uint16(br.ReadBits(8))
	green := uint16(br.ReadBits(8))
	red := uint16(br.ReadBits(8))

	r5 := uint8((red - (red >> 5)) >> 3)
	b5 := uint8((blue - (blue >> 5)) >> 3)
	g6 := (green - (green >> 6)) >> 2

	_ = (r5 << 3) + (r5 >> 2)
	_ = (b5 << 3) + (b5 >> 2)
	_ = (g6 << 2) + (g6 >> 4)
}

// decodePlainColor consumes the sub-stream's color header and then
// reports ErrPlainColorUnsupported rather than guessing at the missing
// block-painting step.
func decodePlainColor(br *huffman.BitReader, dict *huffman.Table, colorBitmap []bool, full FullFormat) error {
	plainColorHeader(br)
	return ErrPlainColorUnsupported
}
