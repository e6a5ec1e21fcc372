// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package pf declares the record layout of the secondary ".pf" container
// format that accompanies some .dat archives. Only the on-disk layouts are
// pinned down so far; nothing here walks a .pf file's records yet.
package pf

// Header is the fixed header at the start of a .pf file.
type Header struct {
	Identifier [2]byte
	Version    uint16
	Zero       uint16
	HeaderSize uint16
	ChunkID    [4]byte
}

// ChunkHeader precedes each chunk's data within a .pf file.
type ChunkHeader struct {
	Identifier    [4]byte
	ChunkSize     uint32
	Version       uint16
	HeaderSize    uint16
	OffsetTableAt uint32
}

// ChunkData pairs a ChunkHeader with its payload and offset table.
type ChunkData struct {
	Header      ChunkHeader
	Data        []byte
	OffsetCount uint32
	Offsets     []uint32
	Padding     []byte
}
