// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package texture

import "testing"

func TestDeduceFormatKnown(t *testing.T) {
	cases := []struct {
		name   string
		fourcc uint32
		want   Format
	}{
		{"DXT1", fourCCDXT1, formats[0]},
		{"DXT5", fourCCDXT5, formats[4]},
		{"DXTA", fourCCDXTA, formats[5]},
		{"3DCX", fourCC3DCX, formats[8]},
	}
	for _, c := range cases {
		got, err := DeduceFormat(c.fourcc)
		if err != nil {
			t.Fatalf("%s: DeduceFormat: %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("%s: DeduceFormat = %+v, want %+v", c.name, got, c.want)
		}
	}
}

func TestDeduceFormatUnknown(t *testing.T) {
	if _, err := DeduceFormat(0xdeadbeef); err != ErrUnknownFourCC {
		t.Fatalf("DeduceFormat(unknown) = %v, want ErrUnknownFourCC", err)
	}
}

func TestPixelBlockSizing(t *testing.T) {
	// A 5x5 image rounds up to 2x2 = 4 pixel blocks under the
	// ceil(w/4) x ceil(h/4) rule.
	blocksWide := (uint32(5) + 3) / 4
	blocksHigh := (uint32(5) + 3) / 4
	if got, want := blocksWide*blocksHigh, uint32(4); got != want {
		t.Fatalf("pixel blocks for 5x5 = %d, want %d", got, want)
	}
}
