// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/meg

package meg

import (
	"io"
	"io/fs"
	"math"
	"os"

	"github.com/sirupsen/logrus"
)

// Format limits.
const (
	// MaxArchiveSize is the largest addressable archive (offsets and sizes are u32).
	MaxArchiveSize = math.MaxUint32
)

// Default writer tuning values.
const (
	DefaultWriteBuffer = 16 * 1024 * 1024
	minWriteBuffer     = 4096
)

// StatFunc resolves file info of a local path.
type StatFunc func(path string) (fs.FileInfo, error)

// ReaderOptions configures archive loading.
type ReaderOptions struct {
	// Logger receives debug and warning events; nil means silent.
	Logger logrus.FieldLogger `json:"-" yaml:"-"`
	// Hasher is used by VerifyNameChecksums; nil means IEEEHasher.
	Hasher Hasher `json:"-" yaml:"-"`
	// VerifyNameChecksums recomputes every name checksum and rejects mismatches.
	VerifyNameChecksums bool `json:"verify_name_checksums,omitempty" yaml:"verify_name_checksums,omitempty"`
	// SkipSizeValidation disables the size gate for archives with trailing bytes.
	SkipSizeValidation bool `json:"skip_size_validation,omitempty" yaml:"skip_size_validation,omitempty"`
}

// PlanOptions configures archive construction planning.
type PlanOptions struct {
	// Logger receives debug events; nil means silent.
	Logger logrus.FieldLogger `json:"-" yaml:"-"`
	// Hasher computes entry path checksums; nil means IEEEHasher.
	Hasher Hasher `json:"-" yaml:"-"`
	// Stat resolves local entry sizes; nil means os.Stat.
	Stat StatFunc `json:"-" yaml:"-"`
	// Version is target layout revision; zero means V1.
	Version Version `json:"version,omitempty" yaml:"version,omitempty"`
}

// WriteOptions configures writing a planned archive.
type WriteOptions struct {
	// Logger receives debug events; nil means silent.
	Logger logrus.FieldLogger `json:"-" yaml:"-"`
	// OnEntryDone is called after one entry payload is fully written.
	OnEntryDone func(entry PlannedEntry) `json:"-" yaml:"-"`
	// WriterBufferSize is buffered writer size in bytes.
	WriterBufferSize int `json:"writer_buffer_size,omitempty" yaml:"writer_buffer_size,omitempty"`
}

// WriteResult contains write statistics.
type WriteResult struct {
	// WrittenEntries is number of entries written to archive.
	WrittenEntries int `json:"written_entries" yaml:"written_entries"`
	// MetadataSize is total metadata bytes written.
	MetadataSize int64 `json:"metadata_size" yaml:"metadata_size"`
	// DataSize is total payload bytes written.
	DataSize int64 `json:"data_size" yaml:"data_size"`
}

// ExtractFileMode controls output file open behavior during extraction.
type ExtractFileMode string

// Output file creation policies for extraction.
const (
	// ExtractFileModeAuto first tries create-only, then falls back to truncate for existing files.
	ExtractFileModeAuto ExtractFileMode = "auto"
	// ExtractFileModeOverwriteSmart rewrites files in place and truncates only when existing file is larger.
	ExtractFileModeOverwriteSmart ExtractFileMode = "overwrite_smart"
	// ExtractFileModeTruncate opens existing files with truncate and creates missing files.
	ExtractFileModeTruncate ExtractFileMode = "truncate"
	// ExtractFileModeCreateOnly creates files only when absent and fails on existing files.
	ExtractFileModeCreateOnly ExtractFileMode = "create_only"
)

// ExtractOptions configures Extract behavior.
type ExtractOptions struct {
	// Logger receives debug events; nil means silent.
	Logger logrus.FieldLogger `json:"-" yaml:"-"`
	// OnEntryDone is called after one entry is fully written to disk.
	OnEntryDone func(entry DataEntry, written int64, outputPath string) `json:"-" yaml:"-"`
	// Entries limits extraction to selected entries; nil means all entries.
	Entries []DataEntry `json:"-" yaml:"-"`
	// Pattern limits extraction to entries matching glob; empty means no filter.
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	// FileMode controls output file creation policy.
	FileMode ExtractFileMode `json:"file_mode,omitempty" yaml:"file_mode,omitempty"`
	// MaxWorkers is number of extraction workers (zero means GOMAXPROCS).
	MaxWorkers int `json:"max_workers,omitempty" yaml:"max_workers,omitempty"`
	// SanitizeNames rewrites output path segments to filesystem-safe names.
	SanitizeNames bool `json:"sanitize_names,omitempty" yaml:"sanitize_names,omitempty"`
	// CaseSensitive disables case-insensitive Pattern matching.
	CaseSensitive bool `json:"case_sensitive,omitempty" yaml:"case_sensitive,omitempty"`
}

// EditOptions configures file-based archive edit flow.
type EditOptions struct {
	// PlanOptions are applied when planning the rewritten archive.
	PlanOptions PlanOptions `json:"plan_options,omitzero" yaml:"plan_options,omitzero"`
	// WriteOptions are applied when writing the rewritten archive.
	WriteOptions WriteOptions `json:"write_options,omitzero" yaml:"write_options,omitzero"`
	// ReaderOptions are applied when opening the source archive.
	ReaderOptions ReaderOptions `json:"reader_options,omitzero" yaml:"reader_options,omitzero"`
	// BackupKeep controls how many backup generations are kept after successful commit.
	// 0 means remove backup, 1 keeps only `<archive>.bak`, N keeps `.bak` + `.bak.1..N-1`.
	BackupKeep int `json:"backup_keep,omitempty" yaml:"backup_keep,omitempty"`
}

// discardLogger returns a logger that drops every event.
func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}

// applyDefaults fills zero-valued reader options with defaults.
func (opts *ReaderOptions) applyDefaults() {
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}

	if opts.Hasher == nil {
		opts.Hasher = IEEEHasher{}
	}
}

// hasher returns configured hasher or IEEEHasher.
func (opts ReaderOptions) hasher() Hasher {
	if opts.Hasher == nil {
		return IEEEHasher{}
	}

	return opts.Hasher
}

// applyDefaults fills zero-valued plan options with defaults.
func (opts *PlanOptions) applyDefaults() {
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}

	if opts.Hasher == nil {
		opts.Hasher = IEEEHasher{}
	}

	if opts.Stat == nil {
		opts.Stat = os.Stat
	}

	if opts.Version == VersionUnknown {
		opts.Version = V1
	}
}

// applyDefaults fills zero-valued write options with defaults.
func (opts *WriteOptions) applyDefaults() {
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}

	if opts.WriterBufferSize < minWriteBuffer {
		opts.WriterBufferSize = DefaultWriteBuffer
	}
}

// applyDefaults fills zero-valued extract options with defaults.
func (opts *ExtractOptions) applyDefaults() {
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}

	if opts.FileMode == "" {
		opts.FileMode = ExtractFileModeAuto
	}
}

// applyDefaults fills zero-valued edit options with defaults.
func (opts *EditOptions) applyDefaults() {
	opts.PlanOptions.applyDefaults()
	opts.WriteOptions.applyDefaults()
	opts.ReaderOptions.applyDefaults()

	if opts.BackupKeep < 0 {
		opts.BackupKeep = 0
	}
}
