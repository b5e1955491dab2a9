// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/meg

package meg

import (
	"fmt"
	"strings"
)

// OriginInfo tells where the bytes of an entry to pack currently live.
// Implementations are LocalOrigin and EntryOrigin only.
type OriginInfo interface {
	fmt.Stringer
	isOriginInfo()
}

// LocalOrigin points to a file on the local filesystem.
type LocalOrigin struct {
	Path string
}

// NewLocalOrigin returns origin for a local file path.
func NewLocalOrigin(path string) (LocalOrigin, error) {
	if strings.TrimSpace(path) == "" {
		return LocalOrigin{}, fmt.Errorf("%w: empty local origin path", ErrInvalidArgument)
	}

	return LocalOrigin{Path: path}, nil
}

// String returns origin description.
func (o LocalOrigin) String() string {
	return "file:" + o.Path
}

func (LocalOrigin) isOriginInfo() {}

// EntryOrigin points to an entry stored inside another opened archive.
type EntryOrigin struct {
	File  *File
	Entry DataEntry
}

// NewEntryOrigin returns origin for entry of file; the entry must belong to file.
func NewEntryOrigin(file *File, entry DataEntry) (EntryOrigin, error) {
	if file == nil || file.Archive == nil {
		return EntryOrigin{}, fmt.Errorf("%w: origin archive is nil", ErrInvalidArgument)
	}

	if !file.Archive.Contains(entry) {
		return EntryOrigin{}, fmt.Errorf("%w: %q in %s", ErrEntryNotFound, entry.FilePath, file.Path)
	}

	return EntryOrigin{File: file, Entry: entry}, nil
}

// String returns origin description.
func (o EntryOrigin) String() string {
	archivePath := "<nil>"
	if o.File != nil {
		archivePath = o.File.Path
	}

	return "meg:" + archivePath + "!" + o.Entry.FilePath
}

func (EntryOrigin) isOriginInfo() {}
