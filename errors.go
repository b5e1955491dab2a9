// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/meg

package meg

import "errors"

// Sentinel errors for MEG operations. Use errors.Is in callers.
var (
	// ErrInvalidArgument means a caller passed nil, empty or out-of-range input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNilReader means the reader or stream is nil.
	ErrNilReader = errors.New("reader is nil")
	// ErrNilWriter means the writer is nil.
	ErrNilWriter = errors.New("writer is nil")
	// ErrUnsupportedFormat means counts, sizes or layout exceed what the format revision supports.
	ErrUnsupportedFormat = errors.New("unsupported MEG format")
	// ErrCorruptedData means a structural invariant was violated while parsing.
	ErrCorruptedData = errors.New("corrupted MEG data")
	// ErrFileTooLarge means an entry or the archive exceeds the 4 GiB MEG limit.
	ErrFileTooLarge = errors.New("file exceeds 4 GiB MEG limit")
	// ErrSizeOverflow means a computed on-disk size is smaller than its source size.
	ErrSizeOverflow = errors.New("size overflow")
	// ErrEntryStreamTruncated means the backing stream no longer holds the bytes an entry promises.
	ErrEntryStreamTruncated = errors.New("entry backing stream is truncated")
	// ErrClosed means the stream or resource is already closed.
	ErrClosed = errors.New("stream or resource already closed")
	// ErrEntryNotFound means the entry is not found.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrEmptyPattern means a glob pattern is empty.
	ErrEmptyPattern = errors.New("empty glob pattern")
	// ErrInvalidEntryPath means an entry path is empty or invalid after normalization or encoding.
	ErrInvalidEntryPath = errors.New("invalid entry path")
	// ErrDuplicateEntryPath means an added entry collides with an existing path.
	ErrDuplicateEntryPath = errors.New("duplicate entry path")
	// ErrInvalidExtractPath means archive entry path is invalid for extraction destination.
	ErrInvalidExtractPath = errors.New("invalid extract path")
	// ErrExtractPathOutsideRoot means resolved extraction path escapes destination root.
	ErrExtractPathOutsideRoot = errors.New("extract path escapes destination root")
)
