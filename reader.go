// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/meg

package meg

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// File is a parsed MEG archive on disk. It does not hold an open handle:
// every entry stream opens its own file descriptor.
type File struct {
	// Archive is the parsed entry model.
	Archive *Archive
	// Path is archive file path.
	Path string
	// opts are reader options used for open.
	opts ReaderOptions
	// Version is identified layout revision.
	Version Version
	// Encrypted reports encrypted archive flags.
	Encrypted bool
}

// Open opens MEG file by path and parses metadata.
func Open(path string) (*File, error) {
	return OpenWithOptions(path, ReaderOptions{})
}

// OpenWithOptions opens MEG file by path and parses metadata using explicit reader options.
func OpenWithOptions(path string, opts ReaderOptions) (*File, error) {
	opts.applyDefaults()

	f, size, err := openFileWithSize(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	ident, archive, err := loadArchive(f, size, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	opts.Logger.WithFields(logrus.Fields{
		"path":      path,
		"version":   ident.Version.String(),
		"encrypted": ident.Encrypted,
		"entries":   archive.Len(),
	}).Debug("opened MEG archive")

	return &File{
		Archive:   archive,
		Path:      path,
		opts:      opts,
		Version:   ident.Version,
		Encrypted: ident.Encrypted,
	}, nil
}

// Load parses archive model from a seekable stream of known size.
func Load(rs io.ReadSeeker, size int64, opts ReaderOptions) (*Archive, error) {
	opts.applyDefaults()

	if rs == nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, ErrNilReader)
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: negative archive size %d", ErrInvalidArgument, size)
	}

	_, archive, err := loadArchive(rs, size, opts)
	if err != nil {
		return nil, err
	}

	return archive, nil
}

// loadArchive identifies, reads and validates V1 metadata and converts it into archive model.
func loadArchive(rs io.ReadSeeker, size int64, opts ReaderOptions) (Identification, *Archive, error) {
	md, ident, err := readV1Metadata(rs)
	if err != nil {
		return Identification{}, nil, err
	}

	info := SizeInfo{
		Metadata:    md,
		BytesRead:   bytesConsumed(md, size),
		ArchiveSize: size,
	}

	res := ValidateTables(md)
	if res.Valid && !opts.SkipSizeValidation {
		res = ValidateSize(info)
	}
	if !res.Valid {
		opts.Logger.WithField("reason", res.Reason).Warn("MEG integrity check failed")
		return Identification{}, nil, fmt.Errorf("%w: %s", ErrCorruptedData, res.Reason)
	}

	if err := validateEntryBounds(md, size); err != nil {
		return Identification{}, nil, err
	}

	if opts.VerifyNameChecksums {
		if err := verifyNameChecksums(md, opts.Hasher); err != nil {
			return Identification{}, nil, err
		}
	}

	archive, err := BinaryToModel(md)
	if err != nil {
		return Identification{}, nil, err
	}

	return ident, archive, nil
}

// readV1Metadata identifies stream and reads V1 metadata from its start.
func readV1Metadata(rs io.ReadSeeker) (*Metadata, Identification, error) {
	ident, err := Identify(rs)
	if err != nil {
		return nil, Identification{}, err
	}

	mr, err := NewMetadataReader(ident.Version)
	if err != nil {
		return nil, Identification{}, err
	}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, Identification{}, fmt.Errorf("seek archive start: %w", err)
	}

	md, _, err := mr.ReadMetadata(rs)
	if err != nil {
		return nil, Identification{}, err
	}

	return md, ident, nil
}

// bytesConsumed returns metadata size plus the part of declared data region
// that the stream actually holds.
func bytesConsumed(md *Metadata, size int64) int64 {
	read := md.Size()
	remaining := size - read
	if remaining <= 0 {
		return read
	}

	return read + min(md.FileTable.DataSize(), remaining)
}

// validateEntryBounds checks that every entry region lies after metadata and inside archive.
func validateEntryBounds(md *Metadata, size int64) error {
	dataStart := md.Size()
	for i := range md.FileTable {
		record := md.FileTable[i]
		start := int64(record.FileOffset)
		end := start + int64(record.FileSize)
		if start < dataStart || end > size {
			return fmt.Errorf(
				"%w: file record %d region [%d, %d) outside data region [%d, %d)",
				ErrCorruptedData, i, start, end, dataStart, size,
			)
		}
	}

	return nil
}

// verifyNameChecksums recomputes checksum of every referenced name.
func verifyNameChecksums(md *Metadata, hasher Hasher) error {
	for i := range md.FileTable {
		record := md.FileTable[i]
		name := md.NameTable[record.FileNameIndex].Name
		if got := hasher.Checksum([]byte(name)); got != record.Crc32 {
			return fmt.Errorf(
				"%w: file record %d %q checksum %s, computed %s", ErrCorruptedData, i, name, record.Crc32, got,
			)
		}
	}

	return nil
}

// openFileWithSize opens file and returns its size.
func openFileWithSize(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open MEG: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat: %w", err)
	}

	return f, fi.Size(), nil
}

// Entries returns a copy of archive entries.
func (f *File) Entries() []DataEntry {
	if f == nil {
		return nil
	}

	return f.Archive.Entries()
}

// FindEntry returns the first entry stored under exact encoded path.
func (f *File) FindEntry(filePath string) (DataEntry, bool) {
	if f == nil || f.Archive == nil {
		return DataEntry{}, false
	}

	crc := f.opts.hasher().Checksum([]byte(filePath))
	for _, entry := range f.Archive.EntriesWithCrc(crc) {
		if entry.FilePath == filePath {
			return entry, true
		}
	}

	return DataEntry{}, false
}

// OpenEntry opens a new stream over entry data. Every call opens its own
// file descriptor; callers must close the returned stream.
func (f *File) OpenEntry(entry DataEntry) (*EntryStream, error) {
	if f == nil || f.Archive == nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, ErrNilReader)
	}
	if !f.Archive.Contains(entry) {
		return nil, fmt.Errorf("%w: %q in %s", ErrEntryNotFound, entry.FilePath, f.Path)
	}
	if entry.Encrypted {
		return nil, fmt.Errorf("%w: entry %q is encrypted", ErrUnsupportedFormat, entry.FilePath)
	}

	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open MEG: %w", err)
	}

	stream, err := NewEntryStream(fh, int64(entry.Location.Offset), int64(entry.Location.Size))
	if err != nil {
		_ = fh.Close()
		if errors.Is(err, ErrInvalidArgument) {
			return nil, fmt.Errorf("%w: entry %q: %w", ErrEntryStreamTruncated, entry.FilePath, err)
		}

		return nil, err
	}

	return stream, nil
}

// ReadEntry reads full entry data into memory.
func (f *File) ReadEntry(entry DataEntry) ([]byte, error) {
	stream, err := f.OpenEntry(entry)
	if err != nil {
		return nil, err
	}
	defer func() { _ = stream.Close() }()

	out := make([]byte, stream.Size())
	if _, err := io.ReadFull(stream, out); err != nil {
		return nil, fmt.Errorf("read entry %q: %w", entry.FilePath, err)
	}

	return out, nil
}
