// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/meg

package meg

import (
	"fmt"
	"sort"
)

// Location is the data region of one entry, offset is absolute from archive start.
type Location struct {
	Offset uint32 `json:"offset" yaml:"offset"`
	Size   uint32 `json:"size" yaml:"size"`
}

// DataEntry describes one archive entry.
type DataEntry struct {
	// FilePath is the encoded path as stored in the name table.
	FilePath string `json:"path" yaml:"path"`
	// OriginalFilePath is the path before encoding; equal to FilePath for entries read from disk.
	OriginalFilePath string `json:"original_path,omitempty" yaml:"original_path,omitempty"`
	// Location is the entry data region.
	Location Location `json:"location" yaml:"location"`
	// Crc32 is computed over encoded FilePath bytes.
	Crc32 Crc32 `json:"crc32" yaml:"crc32"`
	// Encrypted reports whether entry data is encrypted.
	Encrypted bool `json:"encrypted,omitempty" yaml:"encrypted,omitempty"`
}

// Archive is an immutable list of entries sorted by Crc32.
// Duplicate checksums and names are allowed and keep table order.
type Archive struct {
	entries []DataEntry
}

// NewArchive copies entries and checks that they are sorted by Crc32.
func NewArchive(entries []DataEntry) (*Archive, error) {
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Crc32 > entries[i].Crc32 {
			return nil, fmt.Errorf(
				"%w: entry %d %q crc %s is lower than previous %s",
				ErrCorruptedData, i, entries[i].FilePath, entries[i].Crc32, entries[i-1].Crc32,
			)
		}
	}

	out := make([]DataEntry, len(entries))
	copy(out, entries)
	return &Archive{entries: out}, nil
}

// BinaryToModel converts V1 metadata into archive entries in file table order.
func BinaryToModel(md *Metadata) (*Archive, error) {
	if md == nil {
		return nil, fmt.Errorf("%w: metadata is nil", ErrInvalidArgument)
	}

	entries := make([]DataEntry, 0, len(md.FileTable))
	for i := range md.FileTable {
		record := md.FileTable[i]
		if uint64(record.FileNameIndex) >= uint64(len(md.NameTable)) {
			return nil, fmt.Errorf(
				"%w: file record %d name index %d out of range", ErrCorruptedData, i, record.FileNameIndex,
			)
		}

		name := md.NameTable[record.FileNameIndex].Name
		entries = append(entries, DataEntry{
			FilePath:         name,
			OriginalFilePath: name,
			Crc32:            record.Crc32,
			Location: Location{
				Offset: record.FileOffset,
				Size:   record.FileSize,
			},
		})
	}

	return NewArchive(entries)
}

// Len returns number of entries.
func (a *Archive) Len() int {
	if a == nil {
		return 0
	}

	return len(a.entries)
}

// Entries returns a copy of entries in archive order.
func (a *Archive) Entries() []DataEntry {
	if a == nil {
		return nil
	}

	out := make([]DataEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Entry returns entry at index i. Like slice indexing it panics when i is
// out of range; a nil archive has no entries, so every index is out of range.
func (a *Archive) Entry(i int) DataEntry {
	if a == nil {
		panic(fmt.Sprintf("meg: Entry(%d) on nil archive", i))
	}

	return a.entries[i]
}

// Contains reports whether an equal entry exists in archive.
func (a *Archive) Contains(entry DataEntry) bool {
	return a.IndexOf(entry) >= 0
}

// IndexOf returns index of the first equal entry, or -1.
func (a *Archive) IndexOf(entry DataEntry) int {
	if a == nil {
		return -1
	}

	for i := range a.entries {
		if a.entries[i] == entry {
			return i
		}
	}

	return -1
}

// EntriesWithCrc returns the contiguous run of entries keyed by crc in archive order.
func (a *Archive) EntriesWithCrc(crc Crc32) []DataEntry {
	start, end := a.crcRange(crc)
	if start == end {
		return nil
	}

	out := make([]DataEntry, end-start)
	copy(out, a.entries[start:end])
	return out
}

// FirstEntryWithCrc returns the first entry keyed by crc.
func (a *Archive) FirstEntryWithCrc(crc Crc32) (DataEntry, bool) {
	start, end := a.crcRange(crc)
	if start == end {
		return DataEntry{}, false
	}

	return a.entries[start], true
}

// crcRange returns half-open index range of entries keyed by crc.
func (a *Archive) crcRange(crc Crc32) (int, int) {
	if a == nil {
		return 0, 0
	}

	start := sort.Search(len(a.entries), func(i int) bool { return a.entries[i].Crc32 >= crc })
	end := start
	for end < len(a.entries) && a.entries[end].Crc32 == crc {
		end++
	}

	return start, end
}

// FindAllEntries returns entries whose FilePath matches glob pattern, in archive order.
// Both "/" and "\" are archive separators regardless of host OS. The pattern is
// matched against the full path from the archive root: "*" stays within one
// segment, "**" crosses separators.
func (a *Archive) FindAllEntries(pattern string, caseInsensitive bool) ([]DataEntry, error) {
	matcher, err := newEntryMatcher(pattern, caseInsensitive)
	if err != nil {
		return nil, err
	}

	if a == nil {
		return nil, nil
	}

	var out []DataEntry
	for i := range a.entries {
		if matcher.Match(a.entries[i].FilePath) {
			out = append(out, a.entries[i])
		}
	}

	return out, nil
}
