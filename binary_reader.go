// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/meg

package meg

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// readerTableBufferSize is a sequential read buffer for table parsing.
const readerTableBufferSize = 64 * 1024

// MetadataReader builds Metadata for one layout revision from a stream.
type MetadataReader interface {
	// Version returns layout revision handled by reader.
	Version() Version
	// ReadMetadata reads header, name table and file table and returns
	// parsed metadata with number of consumed bytes.
	ReadMetadata(r io.Reader) (*Metadata, int64, error)
}

// NewMetadataReader returns metadata reader for version.
// Only V1 metadata is parsed; V2/V3 are identified but not read.
func NewMetadataReader(version Version) (MetadataReader, error) {
	switch version {
	case V1:
		return v1MetadataReader{}, nil
	case V2, V3:
		return nil, fmt.Errorf("%w: %s metadata reading is not implemented", ErrUnsupportedFormat, version)
	default:
		return nil, fmt.Errorf("%w: unknown version %s", ErrInvalidArgument, version)
	}
}

// v1MetadataReader reads V1 metadata.
type v1MetadataReader struct{}

// Version returns V1.
func (v1MetadataReader) Version() Version {
	return V1
}

// ReadMetadata reads full V1 metadata block.
func (v1MetadataReader) ReadMetadata(r io.Reader) (*Metadata, int64, error) {
	if r == nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrInvalidArgument, ErrNilReader)
	}

	br := bufio.NewReaderSize(r, readerTableBufferSize)

	header, err := ReadHeader(br)
	if err != nil {
		return nil, 0, err
	}

	names, err := ReadNameTable(br, int(header.NumFileNames))
	if err != nil {
		return nil, 0, err
	}

	files, err := ReadFileTable(br, int(header.NumFiles))
	if err != nil {
		return nil, 0, err
	}

	md, err := NewMetadata(header, names, files)
	if err != nil {
		return nil, 0, err
	}

	return md, md.Size(), nil
}

// ReadHeader reads and validates V1 header.
func ReadHeader(r io.Reader) (Header, error) {
	var raw [headerSizeV1]byte
	if err := readExact(r, raw[:], "header"); err != nil {
		return Header{}, err
	}

	return NewHeader(
		binary.LittleEndian.Uint32(raw[0:4]),
		binary.LittleEndian.Uint32(raw[4:8]),
	)
}

// ReadNameTable reads count length-prefixed name records.
func ReadNameTable(r io.Reader, count int) (NameTable, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: negative name count %d", ErrInvalidArgument, count)
	}

	names := make(NameTable, 0, estimateRecordCapacity(count))
	var lenBuf [nameLengthSize]byte
	for i := 0; i < count; i++ {
		if err := readExact(r, lenBuf[:], fmt.Sprintf("name record %d length", i)); err != nil {
			return nil, err
		}

		name := make([]byte, binary.LittleEndian.Uint16(lenBuf[:]))
		if err := readExact(r, name, fmt.Sprintf("name record %d", i)); err != nil {
			return nil, err
		}

		names = append(names, NameTableRecord{Name: string(name)})
	}

	return names, nil
}

// ReadFileTable reads count fixed-size file records.
func ReadFileTable(r io.Reader, count int) (FileTable, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: negative file count %d", ErrInvalidArgument, count)
	}

	files := make(FileTable, 0, estimateRecordCapacity(count))
	var raw [fileRecordSize]byte
	for i := 0; i < count; i++ {
		if err := readExact(r, raw[:], fmt.Sprintf("file record %d", i)); err != nil {
			return nil, err
		}

		record, err := decodeFileTableRecord(raw[:])
		if err != nil {
			return nil, fmt.Errorf("file record %d: %w", i, err)
		}

		files = append(files, record)
	}

	return files, nil
}

// decodeFileTableRecord decodes one record and rejects fields above MaxInt32.
func decodeFileTableRecord(raw []byte) (FileTableRecord, error) {
	var fields [5]uint32
	for i := range fields {
		fields[i] = binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
	}

	// Crc32 is a checksum, the other fields are consumed as signed indices and sizes.
	for i := 1; i < len(fields); i++ {
		if fields[i] > math.MaxInt32 {
			return FileTableRecord{}, fmt.Errorf(
				"%w: field value %d exceeds %d", ErrUnsupportedFormat, fields[i], math.MaxInt32,
			)
		}
	}

	return FileTableRecord{
		Crc32:                Crc32(fields[0]),
		FileTableRecordIndex: fields[1],
		FileSize:             fields[2],
		FileOffset:           fields[3],
		FileNameIndex:        fields[4],
	}, nil
}

// estimateRecordCapacity returns a conservative initial capacity for declared record count.
// Counts come from untrusted headers, so allocation grows with actually parsed records.
func estimateRecordCapacity(count int) int {
	const maxCap = 8192
	if count > maxCap {
		return maxCap
	}

	return count
}
