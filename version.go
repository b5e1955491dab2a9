// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/meg

package meg

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Version is a MEG binary layout revision.
type Version uint8

// MEG layout revisions. There is no explicit version field in the format,
// revisions are told apart by the first header fields.
const (
	// VersionUnknown is the zero value and never returned by Identify.
	VersionUnknown Version = iota
	// V1 has no magic and starts with the two table counts.
	V1
	// V2 starts with flags + id magic and a 20-byte header.
	V2
	// V3 starts with flags + id magic, has a 24-byte header and supports encryption.
	V3
)

// Magic header values of V2/V3 archives (little-endian u32 fields).
const (
	magicFlagsUnencrypted uint32 = 0xFFFFFFFF
	magicFlagsEncrypted   uint32 = 0xFFFFFF8F
	magicID               uint32 = 0x3F7D70A4
)

// Header sizes per revision.
const (
	headerSizeV1 = 8
	headerSizeV2 = 20
	headerSizeV3 = 24
)

// String returns short revision name.
func (v Version) String() string {
	switch v {
	case V1:
		return "V1"
	case V2:
		return "V2"
	case V3:
		return "V3"
	default:
		return fmt.Sprintf("Version(%d)", uint8(v))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	switch string(text) {
	case "V1", "v1", "1":
		*v = V1
	case "V2", "v2", "2":
		*v = V2
	case "V3", "v3", "3":
		*v = V3
	default:
		return fmt.Errorf("%w: unknown MEG version %q", ErrInvalidArgument, text)
	}

	return nil
}

// headerSize returns fixed header size of revision.
func (v Version) headerSize() int64 {
	switch v {
	case V2:
		return headerSizeV2
	case V3:
		return headerSizeV3
	default:
		return headerSizeV1
	}
}

// Identification is the result of sniffing an archive prefix.
type Identification struct {
	Version   Version `json:"version" yaml:"version"`
	Encrypted bool    `json:"encrypted,omitempty" yaml:"encrypted,omitempty"`
}

// magicClass is the outcome of the first decision step over the two leading fields.
type magicClass uint8

const (
	// magicNone means no V2/V3 magic: the archive is V1.
	magicNone magicClass = iota
	// magicPlain means unencrypted V2 or V3.
	magicPlain
	// magicEncrypted means encrypted V3.
	magicEncrypted
)

// classifyMagic applies the priority-ordered magic table. Both fields must match
// together, a match on only one of them falls through to V1.
func classifyMagic(flags uint32, id uint32) magicClass {
	if id != magicID {
		return magicNone
	}

	switch flags {
	case magicFlagsUnencrypted:
		return magicPlain
	case magicFlagsEncrypted:
		return magicEncrypted
	default:
		return magicNone
	}
}

// Identify detects layout revision and encryption of an archive stream.
// The stream is read from offset 0 and rewound to offset 0 on success.
func Identify(rs io.ReadSeeker) (Identification, error) {
	if rs == nil {
		return Identification{}, fmt.Errorf("%w: %w", ErrInvalidArgument, ErrNilReader)
	}

	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return Identification{}, fmt.Errorf("%w: stream is not seekable: %w", ErrInvalidArgument, err)
	}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return Identification{}, fmt.Errorf("%w: stream is not seekable: %w", ErrInvalidArgument, err)
	}

	id, err := identifyStream(bufio.NewReader(rs), size)
	if err != nil {
		return Identification{}, err
	}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return Identification{}, fmt.Errorf("rewind after identify: %w", err)
	}

	return id, nil
}

// identifyStream runs identification over a sequential reader of known total size.
func identifyStream(r io.Reader, size int64) (Identification, error) {
	var prefix [8]byte
	if err := readExact(r, prefix[:], "version prefix"); err != nil {
		return Identification{}, err
	}

	flags := binary.LittleEndian.Uint32(prefix[0:4])
	id := binary.LittleEndian.Uint32(prefix[4:8])

	switch classifyMagic(flags, id) {
	case magicPlain:
		return identifyExtended(r, size, false)
	case magicEncrypted:
		return identifyExtended(r, size, true)
	default:
		return Identification{Version: V1}, nil
	}
}

// identifyExtended tells V2 from V3 by checking declared sizes against available bytes.
func identifyExtended(r io.Reader, size int64, encrypted bool) (Identification, error) {
	var fields [12]byte
	if err := readExact(r, fields[:], "extended header"); err != nil {
		return Identification{}, err
	}

	dataStart := int64(binary.LittleEndian.Uint32(fields[0:4]))
	numFileNames := binary.LittleEndian.Uint32(fields[4:8])
	numFiles := binary.LittleEndian.Uint32(fields[8:12])

	if numFileNames != numFiles {
		return Identification{}, fmt.Errorf(
			"%w: header declares %d file names and %d files", ErrCorruptedData, numFileNames, numFiles,
		)
	}

	if dataStart > size {
		return Identification{}, fmt.Errorf(
			"%w: data start %d is beyond archive size %d", ErrCorruptedData, dataStart, size,
		)
	}

	if encrypted {
		if err := checkV3Header(r, size, dataStart, numFiles); err != nil {
			return Identification{}, err
		}

		return Identification{Version: V3, Encrypted: true}, nil
	}

	// Empty V2 archive: nothing follows the fixed header.
	if size == headerSizeV2 {
		if numFiles == 0 && (dataStart == 0 || dataStart == headerSizeV2) {
			return Identification{Version: V2}, nil
		}

		return Identification{}, fmt.Errorf(
			"%w: header declares %d files but archive ends after header", ErrCorruptedData, numFiles,
		)
	}

	// The word after a V2 header is the first name record (u16 length + bytes);
	// after a V3 header it is the declared name table size.
	var next [4]byte
	if err := readExact(r, next[:], "name table size"); err != nil {
		return Identification{}, err
	}

	nameTableSize := int64(binary.LittleEndian.Uint32(next[:]))
	if v3DataStart(nameTableSize, numFiles) == dataStart && headerSizeV3+nameTableSize <= size {
		return Identification{Version: V3}, nil
	}

	if err := checkV2NameTable(r, next[:], size, dataStart, numFiles); err != nil {
		return Identification{}, err
	}

	return Identification{Version: V2}, nil
}

// checkV3Header validates encrypted V3 header sizes against the stream.
func checkV3Header(r io.Reader, size int64, dataStart int64, numFiles uint32) error {
	var next [4]byte
	if err := readExact(r, next[:], "name table size"); err != nil {
		return err
	}

	nameTableSize := int64(binary.LittleEndian.Uint32(next[:]))
	minDataStart := headerSizeV3 + nameTableSize + int64(numFiles)*fileRecordSize
	if minDataStart > size {
		return fmt.Errorf(
			"%w: declared metadata size %d exceeds archive size %d", ErrCorruptedData, minDataStart, size,
		)
	}

	if dataStart < minDataStart {
		return fmt.Errorf(
			"%w: data start %d overlaps metadata of %d bytes", ErrCorruptedData, dataStart, minDataStart,
		)
	}

	return nil
}

// v3DataStart returns data start implied by an unencrypted V3 header.
func v3DataStart(nameTableSize int64, numFiles uint32) int64 {
	return headerSizeV3 + nameTableSize + int64(numFiles)*fileRecordSize
}

// checkV2NameTable walks V2 name records and checks that tables end exactly at dataStart.
// first holds the four bytes already consumed after the header.
func checkV2NameTable(r io.Reader, first []byte, size int64, dataStart int64, numFiles uint32) error {
	mr := io.MultiReader(bytes.NewReader(first), r)

	consumed := int64(headerSizeV2)
	var lenBuf [2]byte
	for i := uint32(0); i < numFiles; i++ {
		if err := readExact(mr, lenBuf[:], "name record length"); err != nil {
			return err
		}

		n := int64(binary.LittleEndian.Uint16(lenBuf[:]))
		consumed += nameLengthSize + n
		if consumed > size {
			return fmt.Errorf("%w: name table exceeds archive size %d", ErrCorruptedData, size)
		}

		if _, err := io.CopyN(io.Discard, mr, n); err != nil {
			return fmt.Errorf("%w: read name record %d: %w", ErrCorruptedData, i, err)
		}
	}

	expected := consumed + int64(numFiles)*fileRecordSize
	if expected > size {
		return fmt.Errorf(
			"%w: declared metadata size %d exceeds archive size %d", ErrCorruptedData, expected, size,
		)
	}

	if expected != dataStart && !(numFiles == 0 && dataStart == 0) {
		return fmt.Errorf(
			"%w: data start %d does not match metadata size %d", ErrCorruptedData, dataStart, expected,
		)
	}

	return nil
}

// readExact reads len(buf) bytes and maps short reads to ErrCorruptedData.
func readExact(r io.Reader, buf []byte, what string) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: not enough bytes for %s", ErrCorruptedData, what)
		}

		return fmt.Errorf("read %s: %w", what, err)
	}

	return nil
}
