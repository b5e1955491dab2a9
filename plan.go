// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/meg

package meg

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// BuilderEntry is one entry to pack. FilePath must already be normalized.
type BuilderEntry struct {
	// Origin tells where entry bytes live.
	Origin OriginInfo
	// Size is explicit data size; nil means resolve from Origin.
	Size *int64
	// FilePath is normalized archive path before encoding.
	FilePath string
	// Encrypted requests entry encryption (V3 only).
	Encrypted bool
}

// PlannedEntry pairs laid out entry with the origin of its bytes.
type PlannedEntry struct {
	Origin OriginInfo
	Entry  DataEntry
}

// Plan is the layout of an archive that is not written yet.
// It holds no entry bytes, only offsets, sizes and origins.
type Plan struct {
	// Entries are sorted by Crc32; equal checksums keep input order.
	Entries []PlannedEntry
	// MetadataSize is header + name table + file table size.
	MetadataSize int64
	// ArchiveSize is MetadataSize plus all entry binary sizes.
	ArchiveSize int64
	// Version is target layout revision.
	Version Version
	// Encrypted reports whether any entry is encrypted.
	Encrypted bool
}

// Archive returns archive model of planned entries.
func (p *Plan) Archive() (*Archive, error) {
	entries := make([]DataEntry, len(p.Entries))
	for i := range p.Entries {
		entries[i] = p.Entries[i].Entry
	}

	return NewArchive(entries)
}

// plannedItem is a resolved entry before sorting and offset assignment.
type plannedItem struct {
	origin     OriginInfo
	entry      DataEntry
	binarySize int64
}

// BuildPlan resolves paths, checksums and sizes of entries and lays them out
// in Crc32 order after the metadata block.
func BuildPlan(entries []BuilderEntry, opts PlanOptions) (*Plan, error) {
	opts.applyDefaults()

	if opts.Version != V1 && opts.Version != V2 && opts.Version != V3 {
		return nil, fmt.Errorf("%w: unknown version %s", ErrInvalidArgument, opts.Version)
	}

	items := make([]plannedItem, 0, len(entries))
	var (
		nameTableSize int64
		fileTableSize int64
		encrypted     bool
	)

	for i := range entries {
		item, err := planEntry(entries[i], opts)
		if err != nil {
			return nil, fmt.Errorf("entry %d %q: %w", i, entries[i].FilePath, err)
		}

		nameTableSize += nameLengthSize + int64(len(item.entry.FilePath))
		fileTableSize += fileRecordSize
		encrypted = encrypted || item.entry.Encrypted
		items = append(items, item)
	}

	if encrypted && opts.Version != V3 {
		return nil, fmt.Errorf("%w: encrypted entries require V3, got %s", ErrUnsupportedFormat, opts.Version)
	}

	metadataSize := opts.Version.headerSize() + nameTableSize + fileTableSize
	if metadataSize > MaxArchiveSize {
		return nil, fmt.Errorf("%w: metadata size %d", ErrFileTooLarge, metadataSize)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].entry.Crc32 < items[j].entry.Crc32
	})

	plan := &Plan{
		Entries:      make([]PlannedEntry, len(items)),
		MetadataSize: metadataSize,
		Version:      opts.Version,
		Encrypted:    encrypted,
	}

	offset := metadataSize
	for i := range items {
		if offset+items[i].binarySize > MaxArchiveSize {
			return nil, fmt.Errorf(
				"%w: entry %q ends past 4 GiB archive limit", ErrFileTooLarge, items[i].entry.FilePath,
			)
		}

		entry := items[i].entry
		entry.Location = Location{
			Offset: uint32(offset),              //nolint:gosec // bounded by MaxArchiveSize check above
			Size:   uint32(items[i].binarySize), //nolint:gosec // bounded by MaxArchiveSize check above
		}

		plan.Entries[i] = PlannedEntry{Origin: items[i].origin, Entry: entry}
		offset += items[i].binarySize
	}

	plan.ArchiveSize = offset

	opts.Logger.WithFields(logrus.Fields{
		"entries":       len(plan.Entries),
		"metadata_size": plan.MetadataSize,
		"archive_size":  plan.ArchiveSize,
		"version":       plan.Version.String(),
		"encrypted":     plan.Encrypted,
	}).Debug("planned MEG archive")

	return plan, nil
}

// planEntry encodes path, computes checksum and resolves sizes of one entry.
func planEntry(in BuilderEntry, opts PlanOptions) (plannedItem, error) {
	if in.Origin == nil {
		return plannedItem{}, fmt.Errorf("%w: origin is nil", ErrInvalidArgument)
	}

	encoded, err := EncodeEntryPath(in.FilePath)
	if err != nil {
		return plannedItem{}, err
	}

	dataSize, err := resolveDataSize(in, opts.Stat)
	if err != nil {
		return plannedItem{}, err
	}

	binSize := binarySize(dataSize)
	if binSize < dataSize {
		return plannedItem{}, fmt.Errorf(
			"%w: binary size %d is smaller than data size %d", ErrSizeOverflow, binSize, dataSize,
		)
	}

	return plannedItem{
		origin: in.Origin,
		entry: DataEntry{
			FilePath:         encoded,
			OriginalFilePath: in.FilePath,
			Crc32:            opts.Hasher.Checksum([]byte(encoded)),
			Encrypted:        in.Encrypted,
		},
		binarySize: binSize,
	}, nil
}

// resolveDataSize returns explicit size or size of the origin data.
func resolveDataSize(in BuilderEntry, stat StatFunc) (int64, error) {
	var size int64
	switch origin := in.Origin.(type) {
	case LocalOrigin:
		if in.Size != nil {
			size = *in.Size
			break
		}

		fi, err := stat(origin.Path)
		if err != nil {
			return 0, fmt.Errorf("stat %s: %w", origin.Path, err)
		}
		if fi.IsDir() {
			return 0, fmt.Errorf("%w: %s is a directory", ErrInvalidArgument, origin.Path)
		}

		size = fi.Size()
	case EntryOrigin:
		if in.Size != nil {
			size = *in.Size
			break
		}

		size = int64(origin.Entry.Location.Size)
	default:
		return 0, fmt.Errorf("%w: unsupported origin %T", ErrInvalidArgument, in.Origin)
	}

	if size < 0 {
		return 0, fmt.Errorf("%w: negative size %d", ErrInvalidArgument, size)
	}
	if size > MaxArchiveSize {
		return 0, fmt.Errorf("%w: size %d", ErrFileTooLarge, size)
	}

	return size, nil
}

// binarySize returns on-disk size for data size. Stored entries are not transformed.
func binarySize(dataSize int64) int64 {
	return dataSize
}
