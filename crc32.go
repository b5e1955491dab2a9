// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/meg

package meg

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// crcSize is the serialized Crc32 size in bytes.
const crcSize = 4

// Crc32 is the 32-bit checksum of an encoded entry path.
// It is the only sort and lookup key of a MEG archive.
type Crc32 uint32

// Crc32FromBytes decodes a little-endian Crc32 from the first four bytes of b.
func Crc32FromBytes(b []byte) (Crc32, error) {
	if len(b) < crcSize {
		return 0, fmt.Errorf("%w: crc32 needs %d bytes, got %d", ErrInvalidArgument, crcSize, len(b))
	}

	return Crc32(binary.LittleEndian.Uint32(b)), nil
}

// Bytes returns little-endian representation of the checksum.
func (c Crc32) Bytes() []byte {
	var b [crcSize]byte
	binary.LittleEndian.PutUint32(b[:], uint32(c))
	return b[:]
}

// Compare returns -1, 0 or +1 when c is less than, equal to or greater than other.
func (c Crc32) Compare(other Crc32) int {
	switch {
	case c < other:
		return -1
	case c > other:
		return 1
	default:
		return 0
	}
}

// String formats the checksum as 8 hex digits.
func (c Crc32) String() string {
	return fmt.Sprintf("%08X", uint32(c))
}

// Hasher computes entry path checksums. Construction and load flows receive it
// from options so callers can swap the algorithm in tests.
type Hasher interface {
	Checksum(data []byte) Crc32
}

// IEEEHasher computes standard CRC-32 (IEEE polynomial), as used by Petroglyph tooling.
type IEEEHasher struct{}

// Checksum returns CRC-32/IEEE of data.
func (IEEEHasher) Checksum(data []byte) Crc32 {
	return Crc32(crc32.ChecksumIEEE(data))
}
