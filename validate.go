// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/meg

package meg

import "fmt"

// ValidationResult is the outcome of an integrity check.
// A failed check is a normal result, not an error.
type ValidationResult struct {
	// Reason describes the first violated rule; empty when Valid.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Valid  bool   `json:"valid" yaml:"valid"`
}

// validResult is the shared passing result.
var validResult = ValidationResult{Valid: true}

// invalid builds a failed result with formatted reason.
func invalid(format string, args ...any) ValidationResult {
	return ValidationResult{Reason: fmt.Sprintf(format, args...)}
}

// SizeInfo carries what ValidateSize compares.
type SizeInfo struct {
	// Metadata is parsed archive metadata.
	Metadata *Metadata
	// BytesRead is how far the reader walked through the archive layout.
	BytesRead int64
	// ArchiveSize is the real length of the archive stream.
	ArchiveSize int64
}

// ValidateTables checks that the file table is sorted by Crc32 (duplicates allowed)
// and that every record points to an existing name record.
func ValidateTables(md *Metadata) ValidationResult {
	if md == nil {
		return invalid("metadata is nil")
	}

	names := len(md.NameTable)
	for i := range md.FileTable {
		record := md.FileTable[i]
		if i > 0 && md.FileTable[i-1].Crc32 > record.Crc32 {
			return invalid("file record %d crc %s is lower than previous %s", i, record.Crc32, md.FileTable[i-1].Crc32)
		}

		if uint64(record.FileNameIndex) >= uint64(names) {
			return invalid("file record %d name index %d out of range [0, %d)", i, record.FileNameIndex, names)
		}
	}

	return validResult
}

// ValidateSize checks that the archive was consumed exactly and that its length
// equals metadata size plus all declared entry sizes.
func ValidateSize(info SizeInfo) ValidationResult {
	if info.Metadata == nil {
		return invalid("metadata is nil")
	}
	if info.BytesRead < 0 || info.ArchiveSize < 0 {
		return invalid("negative sizes: bytes read %d, archive size %d", info.BytesRead, info.ArchiveSize)
	}
	if info.BytesRead != info.ArchiveSize {
		return invalid("bytes read %d differs from archive size %d", info.BytesRead, info.ArchiveSize)
	}

	expected := info.Metadata.Size() + info.Metadata.FileTable.DataSize()
	if info.ArchiveSize != expected {
		return invalid("archive size %d differs from expected %d", info.ArchiveSize, expected)
	}

	return validResult
}

// ValidateMetadata runs table and size validation and returns the first failure.
func ValidateMetadata(info SizeInfo) ValidationResult {
	if res := ValidateTables(info.Metadata); !res.Valid {
		return res
	}

	return ValidateSize(info)
}
