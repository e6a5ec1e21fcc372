// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package texture

import (
	"testing"

	"github.com/mistveil/datkit/internal"
)

// TestInflateRandomInputDoesNotPanic mirrors package dat's own random-input
// defense test: a texture stream with an unrecognized fourcc must fail
// cleanly, and one with a recognized fourcc but garbage body data must not
// index any fixed-size table or slice out of bounds.
func TestInflateRandomInputDoesNotPanic(t *testing.T) {
	for _, size := range []int{0, 4, 8, 32, 128, 1024} {
		data := internal.GenPredictableRandomDataSeeded(size, int64(size)+7)
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Inflate panicked on %d random bytes: %v", size, r)
				}
			}()
			_, _, _ = Inflate(data, SkipPeriod(0))
		}()
	}
}
