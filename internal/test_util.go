// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package internal holds test-data generators shared across this module's
// packages: the compressed-stream decoders (package dat, package texture)
// and the archive envelope reader (package archive) all need repeatable
// byte buffers to drive round-trip and robustness tests, none of which
// call out to any external tool to produce compressed fixtures, since no
// encoder exists to generate them from.
package internal

import "math/rand"

// fixedRandSeed seeds GenPredictableRandomData so the same call always
// produces the same bytes across test runs.
const fixedRandSeed = 0x1234

// GenPredictableRandomData generates size bytes of pseudorandom data from
// a fixed seed, for tests that need the same "random-looking" input on
// every run.
func GenPredictableRandomData(size int) []byte {
	gen := rand.New(rand.NewSource(fixedRandSeed))
	out := make([]byte, size)
	for i := range out {
		out[i] = byte(gen.Intn(256))
	}
	return out
}

// GenPredictableRandomDataSeeded is GenPredictableRandomData with a
// caller-chosen seed, for tests that want several distinct but
// reproducible buffers (e.g. one per sub-decoder fuzz case).
func GenPredictableRandomDataSeeded(size int, seed int64) []byte {
	gen := rand.New(rand.NewSource(seed))
	out := make([]byte, size)
	for i := range out {
		out[i] = byte(gen.Intn(256))
	}
	return out
}

// FirstN returns at most the first n bytes of b.
func FirstN(n int, b []byte) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
