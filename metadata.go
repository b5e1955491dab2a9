// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/meg

package meg

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Binary layout sizes of V1 records.
const (
	nameLengthSize = 2  // u16 length prefix of one name record
	fileRecordSize = 20 // crc, index, size, offset, name index
)

// Header is the fixed V1 header: two equal table counts.
type Header struct {
	NumFileNames uint32 `json:"num_file_names" yaml:"num_file_names"`
	NumFiles     uint32 `json:"num_files" yaml:"num_files"`
}

// NewHeader validates counts and returns a header.
func NewHeader(numFileNames uint32, numFiles uint32) (Header, error) {
	h := Header{NumFileNames: numFileNames, NumFiles: numFiles}
	if err := h.validate(); err != nil {
		return Header{}, err
	}

	return h, nil
}

// validate enforces count range and equality.
func (h Header) validate() error {
	if h.NumFileNames > math.MaxInt32 || h.NumFiles > math.MaxInt32 {
		return fmt.Errorf(
			"%w: header counts %d/%d exceed %d", ErrUnsupportedFormat, h.NumFileNames, h.NumFiles, math.MaxInt32,
		)
	}

	if h.NumFileNames != h.NumFiles {
		return fmt.Errorf(
			"%w: header declares %d file names and %d files", ErrCorruptedData, h.NumFileNames, h.NumFiles,
		)
	}

	return nil
}

// Size returns serialized header size.
func (Header) Size() int64 {
	return headerSizeV1
}

// Bytes returns serialized header.
func (h Header) Bytes() []byte {
	out := make([]byte, headerSizeV1)
	binary.LittleEndian.PutUint32(out[0:4], h.NumFileNames)
	binary.LittleEndian.PutUint32(out[4:8], h.NumFiles)
	return out
}

// NameTableRecord is one length-prefixed ASCII entry path.
type NameTableRecord struct {
	// Name holds encoded path bytes as stored in archive.
	Name string `json:"name" yaml:"name"`
}

// NewNameTableRecord checks that the encoded name fits the u16 length prefix.
func NewNameTableRecord(name string) (NameTableRecord, error) {
	if len(name) > MaxEntryPathLength {
		return NameTableRecord{}, fmt.Errorf(
			"%w: name length %d exceeds %d", ErrInvalidEntryPath, len(name), MaxEntryPathLength,
		)
	}

	return NameTableRecord{Name: name}, nil
}

// Size returns serialized record size.
func (r NameTableRecord) Size() int64 {
	return nameLengthSize + int64(len(r.Name))
}

// Bytes returns serialized record. It does not check the name length;
// WriteMetadata rejects names longer than MaxEntryPathLength.
func (r NameTableRecord) Bytes() []byte {
	out := make([]byte, nameLengthSize+len(r.Name))
	binary.LittleEndian.PutUint16(out[0:2], uint16(len(r.Name))) //nolint:gosec // bounded by NewNameTableRecord and NewMetadata
	copy(out[nameLengthSize:], r.Name)
	return out
}

// NameTable holds name records in table order.
type NameTable []NameTableRecord

// Size returns sum of record sizes.
func (t NameTable) Size() int64 {
	var total int64
	for i := range t {
		total += t[i].Size()
	}

	return total
}

// Bytes returns records concatenated in table order.
func (t NameTable) Bytes() []byte {
	out := make([]byte, 0, t.Size())
	for i := range t {
		out = append(out, t[i].Bytes()...)
	}

	return out
}

// FileTableRecord is one fixed-size V1 file record.
// Natural ordering of records is by Crc32 only.
type FileTableRecord struct {
	Crc32                Crc32  `json:"crc32" yaml:"crc32"`
	FileTableRecordIndex uint32 `json:"index" yaml:"index"`
	FileSize             uint32 `json:"size" yaml:"size"`
	FileOffset           uint32 `json:"offset" yaml:"offset"`
	FileNameIndex        uint32 `json:"name_index" yaml:"name_index"`
}

// Compare orders records by Crc32.
func (r FileTableRecord) Compare(other FileTableRecord) int {
	return r.Crc32.Compare(other.Crc32)
}

// Size returns serialized record size.
func (FileTableRecord) Size() int64 {
	return fileRecordSize
}

// Bytes returns serialized record.
func (r FileTableRecord) Bytes() []byte {
	out := make([]byte, fileRecordSize)
	r.put(out)
	return out
}

// put writes record fields into dst (at least fileRecordSize bytes).
func (r FileTableRecord) put(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], uint32(r.Crc32))
	binary.LittleEndian.PutUint32(dst[4:8], r.FileTableRecordIndex)
	binary.LittleEndian.PutUint32(dst[8:12], r.FileSize)
	binary.LittleEndian.PutUint32(dst[12:16], r.FileOffset)
	binary.LittleEndian.PutUint32(dst[16:20], r.FileNameIndex)
}

// FileTable holds file records in table order.
type FileTable []FileTableRecord

// Size returns sum of record sizes.
func (t FileTable) Size() int64 {
	return int64(len(t)) * fileRecordSize
}

// Bytes returns records concatenated in table order.
func (t FileTable) Bytes() []byte {
	out := make([]byte, t.Size())
	for i := range t {
		t[i].put(out[i*fileRecordSize:])
	}

	return out
}

// DataSize returns sum of declared entry sizes.
func (t FileTable) DataSize() int64 {
	var total int64
	for i := range t {
		total += int64(t[i].FileSize)
	}

	return total
}

// Metadata is everything in a V1 archive except entry data:
// header, name table and file table.
type Metadata struct {
	Header    Header    `json:"header" yaml:"header"`
	NameTable NameTable `json:"name_table" yaml:"name_table"`
	FileTable FileTable `json:"file_table" yaml:"file_table"`
}

// NewMetadata validates that tables match header counts and that every name
// fits the u16 length prefix, and returns metadata.
func NewMetadata(header Header, names NameTable, files FileTable) (*Metadata, error) {
	if err := header.validate(); err != nil {
		return nil, err
	}

	for i := range names {
		if len(names[i].Name) > MaxEntryPathLength {
			return nil, fmt.Errorf(
				"%w: name record %d length %d exceeds %d", ErrInvalidEntryPath, i, len(names[i].Name), MaxEntryPathLength,
			)
		}
	}

	if uint64(len(names)) != uint64(header.NumFileNames) || uint64(len(files)) != uint64(header.NumFiles) {
		return nil, fmt.Errorf(
			"%w: header declares %d entries, name table has %d, file table has %d",
			ErrCorruptedData, header.NumFiles, len(names), len(files),
		)
	}

	return &Metadata{Header: header, NameTable: names, FileTable: files}, nil
}

// Size returns total serialized metadata size.
func (m *Metadata) Size() int64 {
	return m.Header.Size() + m.NameTable.Size() + m.FileTable.Size()
}

// Bytes returns header, name table and file table concatenated.
func (m *Metadata) Bytes() []byte {
	out := make([]byte, 0, m.Size())
	out = append(out, m.Header.Bytes()...)
	out = append(out, m.NameTable.Bytes()...)
	out = append(out, m.FileTable.Bytes()...)
	return out
}
