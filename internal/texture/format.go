// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package texture

import "fmt"

// Format flag bits carried in each per-FourCC format descriptor. Nothing
// here currently branches on them; they are preserved so callers can
// classify a format without re-deriving them from the FourCC.
const (
	FlagColor            = 0x10
	FlagAlpha            = 0x20
	FlagDeducedAlphaComp = 0x40
	FlagPlainComp        = 0x80
	FlagBicolorComp      = 0x200
)

// Format describes one block-compressed pixel format: its flag bits and
// the number of bits each 4x4 pixel block occupies in the output.
type Format struct {
	Flags         uint16
	PixelSizeBits uint16
}

// Recognized FourCC values, little-endian ASCII packed into a uint32.
const (
	fourCCDXT1 = 0x31545844
	fourCCDXT2 = 0x32545844
	fourCCDXT3 = 0x33545844
	fourCCDXT4 = 0x34545844
	fourCCDXT5 = 0x35545844
	fourCCDXTA = 0x41545844
	fourCCDXTL = 0x4C545844
	fourCCDXTN = 0x4E545844
	fourCC3DCX = 0x58434433
)

// formats holds one descriptor per recognized FourCC, in the order the
// DeduceFormat switch dispatches them.
var formats = [9]Format{
	{Flags: FlagColor | FlagAlpha | FlagDeducedAlphaComp, PixelSizeBits: 4},
	{Flags: FlagColor | FlagAlpha | FlagPlainComp, PixelSizeBits: 8},
	{Flags: FlagColor | FlagAlpha | FlagPlainComp, PixelSizeBits: 8},
	{Flags: FlagColor | FlagAlpha | FlagPlainComp, PixelSizeBits: 8},
	{Flags: FlagColor | FlagAlpha | FlagPlainComp, PixelSizeBits: 8},
	{Flags: FlagAlpha | FlagPlainComp, PixelSizeBits: 4},
	{Flags: FlagColor, PixelSizeBits: 8},
	{Flags: FlagBicolorComp, PixelSizeBits: 8},
	{Flags: FlagBicolorComp, PixelSizeBits: 8},
}

// ErrUnknownFourCC is returned by DeduceFormat for an unrecognized
// FourCC.
var ErrUnknownFourCC = fmt.Errorf("texture: unrecognized fourcc")

// DeduceFormat maps a raw FourCC word to its Format.
func DeduceFormat(fourcc uint32) (Format, error) {
	switch fourcc {
	case fourCCDXT1:
		return formats[0], nil
	case fourCCDXT2:
		return formats[1], nil
	case fourCCDXT3:
		return formats[2], nil
	case fourCCDXT4:
		return formats[3], nil
	case fourCCDXT5:
		return formats[4], nil
	case fourCCDXTA:
		return formats[5], nil
	case fourCCDXTL:
		return formats[6], nil
	case fourCCDXTN:
		return formats[7], nil
	case fourCC3DCX:
		return formats[8], nil
	default:
		return Format{}, ErrUnknownFourCC
	}
}
