// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package datkit

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"testing"
)

// buildMultiEntryDat assembles a .dat container with several stored
// (uncompressed) entries, letting the parallel/sequential equivalence test
// below extract the same entries both ways without needing a real
// compressed payload.
func buildMultiEntryDat(t *testing.T, payloads [][]byte) []byte {
	t.Helper()

	const headerSize = 40
	const mftHeaderSize = 24
	const mftDataSize = 24
	mftOffset := int64(headerSize)

	n := len(payloads)
	dataStart := mftOffset + mftHeaderSize + int64(n)*mftDataSize

	var buf bytes.Buffer
	buf.WriteByte(1)
	buf.Write([]byte{'A', 'N', '('})
	wU32(&buf, headerSize)
	wU32(&buf, 0)
	wU32(&buf, 0x10000)
	wU32(&buf, 0)
	wU32(&buf, 0)
	wU64(&buf, uint64(mftOffset))
	wU32(&buf, 0)
	wU32(&buf, 0)

	buf.Write([]byte{'M', 'f', 't', 0})
	wU64(&buf, 0)
	wU32(&buf, uint32(n+1)) // decremented by 1 on read
	wU32(&buf, 0)
	wU32(&buf, 0)

	offset := dataStart
	for _, p := range payloads {
		wU64(&buf, uint64(offset))
		wU32(&buf, uint32(len(p)))
		wU16(&buf, 0)
		wU16(&buf, 0)
		wU32(&buf, 0)
		wU32(&buf, 0)
		offset += int64(len(p))
	}
	for _, p := range payloads {
		buf.Write(p)
	}
	return buf.Bytes()
}

func wU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func wU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func wU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func TestExtractorMatchesSequential(t *testing.T) {
	payloads := [][]byte{
		[]byte("entry zero"),
		[]byte("entry number one, a bit longer"),
		[]byte("two"),
		[]byte("the fourth and final entry"),
	}
	raw := buildMultiEntryDat(t, payloads)

	f, err := Open(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if f.NumEntries() != len(payloads) {
		t.Fatalf("NumEntries = %d, want %d", f.NumEntries(), len(payloads))
	}

	var sequential bytes.Buffer
	for i := range payloads {
		data, err := f.Extract(i)
		if err != nil {
			t.Fatalf("sequential Extract(%d): %v", i, err)
		}
		sequential.Write(data)
	}

	ctx := context.Background()
	ex := NewExtractor(ctx, f, WithConcurrency(3))
	for i := range payloads {
		if err := ex.Submit(i); err != nil {
			t.Fatalf("Submit(%d): %v", i, err)
		}
	}

	var parallel bytes.Buffer
	readDone := make(chan error, 1)
	go func() {
		_, err := io.Copy(&parallel, ex)
		readDone <- err
	}()

	if err := ex.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := <-readDone; err != nil && err != io.EOF {
		t.Fatalf("reading extractor output: %v", err)
	}

	if !bytes.Equal(parallel.Bytes(), sequential.Bytes()) {
		t.Fatalf("parallel extraction = %q, want %q", parallel.Bytes(), sequential.Bytes())
	}
}
