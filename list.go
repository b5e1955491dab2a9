// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/meg

package meg

import (
	"fmt"
	"io"
)

// ReadMetadataFile opens a MEG and returns raw metadata tables without
// integrity validation or model conversion.
func ReadMetadataFile(path string) (*Metadata, error) {
	f, _, err := openFileWithSize(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return ReadMetadataFrom(f)
}

// ReadMetadataFrom identifies stream and returns its raw metadata tables.
func ReadMetadataFrom(rs io.ReadSeeker) (*Metadata, error) {
	if rs == nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, ErrNilReader)
	}

	md, _, err := readV1Metadata(rs)
	if err != nil {
		return nil, err
	}

	return md, nil
}

// ListEntries opens a MEG and returns validated entries without payload reads.
func ListEntries(path string) ([]DataEntry, error) {
	return ListEntriesWithOptions(path, ReaderOptions{})
}

// ListEntriesWithOptions opens a MEG and returns validated entries using reader options.
func ListEntriesWithOptions(path string, opts ReaderOptions) ([]DataEntry, error) {
	opts.applyDefaults()

	f, size, err := openFileWithSize(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	_, archive, err := loadArchive(f, size, opts)
	if err != nil {
		return nil, err
	}

	return archive.Entries(), nil
}
