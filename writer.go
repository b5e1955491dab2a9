// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/meg

package meg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	// defaultPackWriterPool reuses default-sized bufio writers between writes.
	defaultPackWriterPool = sync.Pool{
		New: func() any {
			return bufio.NewWriterSize(io.Discard, DefaultWriteBuffer)
		},
	}
	// defaultPackCopyBufferPool reuses payload copy buffers between writes.
	defaultPackCopyBufferPool = sync.Pool{
		New: func() any {
			return new([packCopyBufferSize]byte)
		},
	}
)

const (
	// packCopyBufferSize is per-write temporary buffer used by streaming payload copy.
	packCopyBufferSize = 64 * 1024
)

// MetadataFromPlan builds V1 metadata for plan. Name and file tables follow
// plan order, record i references name i.
func MetadataFromPlan(plan *Plan) (*Metadata, error) {
	if plan == nil {
		return nil, fmt.Errorf("%w: plan is nil", ErrInvalidArgument)
	}
	if plan.Version != V1 {
		return nil, fmt.Errorf("%w: writing %s metadata is not implemented", ErrUnsupportedFormat, plan.Version)
	}
	if plan.Encrypted {
		return nil, fmt.Errorf("%w: encrypted entries require V3", ErrUnsupportedFormat)
	}

	count := uint64(len(plan.Entries))
	if count > uint64(^uint32(0)) {
		return nil, fmt.Errorf("%w: %d entries", ErrUnsupportedFormat, count)
	}

	header, err := NewHeader(uint32(count), uint32(count)) //nolint:gosec // bounded above
	if err != nil {
		return nil, err
	}

	names := make(NameTable, len(plan.Entries))
	files := make(FileTable, len(plan.Entries))
	for i := range plan.Entries {
		entry := plan.Entries[i].Entry

		names[i], err = NewNameTableRecord(entry.FilePath)
		if err != nil {
			return nil, err
		}

		files[i] = FileTableRecord{
			Crc32:                entry.Crc32,
			FileTableRecordIndex: uint32(i), //nolint:gosec // bounded by header count
			FileSize:             entry.Location.Size,
			FileOffset:           entry.Location.Offset,
			FileNameIndex:        uint32(i), //nolint:gosec // bounded by header count
		}
	}

	return NewMetadata(header, names, files)
}

// WriteArchive writes plan metadata followed by data of every planned entry
// read from its origin. Every origin must provide exactly the planned size.
func WriteArchive(ctx context.Context, out io.Writer, plan *Plan, opts WriteOptions) (*WriteResult, error) {
	if out == nil {
		return nil, ErrNilWriter
	}

	opts.applyDefaults()

	md, err := MetadataFromPlan(plan)
	if err != nil {
		return nil, err
	}
	if md.Size() != plan.MetadataSize {
		return nil, fmt.Errorf(
			"%w: plan metadata size %d, tables serialize to %d", ErrInvalidArgument, plan.MetadataSize, md.Size(),
		)
	}

	bw, releaseWriter := acquirePackWriter(out, opts.WriterBufferSize)
	defer releaseWriter()

	copyBuf, releaseCopyBuf := acquirePackCopyBuffer()
	defer releaseCopyBuf()

	metaSize, err := WriteMetadata(bw, md)
	if err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}

	res := &WriteResult{MetadataSize: metaSize}
	offset := metaSize
	for i := range plan.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		planned := plan.Entries[i]
		if int64(planned.Entry.Location.Offset) != offset {
			return nil, fmt.Errorf(
				"%w: entry %q planned at %d, writer is at %d",
				ErrInvalidArgument, planned.Entry.FilePath, planned.Entry.Location.Offset, offset,
			)
		}

		written, err := writePlannedEntry(bw, planned, copyBuf)
		if err != nil {
			return nil, fmt.Errorf("write entry %q from %s: %w", planned.Entry.FilePath, planned.Origin, err)
		}

		offset += written
		res.DataSize += written
		res.WrittenEntries++

		opts.Logger.WithFields(logrus.Fields{
			"entry":  planned.Entry.FilePath,
			"origin": planned.Origin.String(),
			"size":   written,
		}).Debug("wrote MEG entry")

		if opts.OnEntryDone != nil {
			opts.OnEntryDone(planned)
		}
	}

	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("flush archive: %w", err)
	}

	return res, nil
}

// Pack plans entries and writes the archive to outPath through a temp file.
func Pack(
	ctx context.Context,
	outPath string,
	entries []BuilderEntry,
	planOpts PlanOptions,
	writeOpts WriteOptions,
) (*WriteResult, error) {
	plan, err := BuildPlan(entries, planOpts)
	if err != nil {
		return nil, err
	}

	return WritePlanFile(ctx, outPath, plan, writeOpts)
}

// WritePlanFile writes plan into a temp file next to outPath and renames it
// over outPath after a successful sync.
func WritePlanFile(ctx context.Context, outPath string, plan *Plan, opts WriteOptions) (*WriteResult, error) {
	if outPath == "" {
		return nil, fmt.Errorf("%w: empty output path", ErrInvalidArgument)
	}

	f, err := os.CreateTemp(filepath.Dir(outPath), filepath.Base(outPath)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create MEG temp file: %w", err)
	}

	tmpPath := f.Name()
	committed := false
	defer func() {
		if f != nil {
			_ = f.Close()
		}
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	res, err := WriteArchive(ctx, f, plan, opts)
	if err != nil {
		return nil, err
	}

	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("sync MEG file: %w", err)
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close MEG file: %w", err)
	}
	f = nil

	if err := os.Rename(tmpPath, outPath); err != nil {
		return nil, fmt.Errorf("replace %s: %w", outPath, err)
	}
	committed = true

	return res, nil
}

// writePlannedEntry copies exactly the planned entry size from its origin.
func writePlannedEntry(dst io.Writer, planned PlannedEntry, copyBuf []byte) (int64, error) {
	src, err := openOrigin(planned.Origin)
	if err != nil {
		return 0, err
	}
	defer func() { _ = src.Close() }()

	want := int64(planned.Entry.Location.Size)
	written, err := copyPayloadBounded(dst, src, want, copyBuf)
	if err != nil {
		return written, err
	}
	if written != want {
		return written, fmt.Errorf("%w: source has %d bytes, planned %d", ErrCorruptedData, written, want)
	}

	return written, nil
}

// openOrigin opens data stream of origin.
func openOrigin(origin OriginInfo) (io.ReadCloser, error) {
	switch o := origin.(type) {
	case LocalOrigin:
		f, err := os.Open(o.Path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}

		return f, nil
	case EntryOrigin:
		if o.File == nil {
			return nil, fmt.Errorf("%w: origin archive is nil", ErrInvalidArgument)
		}

		return o.File.OpenEntry(o.Entry)
	default:
		return nil, fmt.Errorf("%w: unsupported origin %T", ErrInvalidArgument, origin)
	}
}

// acquirePackWriter returns a buffered writer and release callback.
func acquirePackWriter(out io.Writer, size int) (*bufio.Writer, func()) {
	if size == DefaultWriteBuffer {
		w := defaultPackWriterPool.Get().(*bufio.Writer) //nolint:forcetypeassert // pool contains only *bufio.Writer
		w.Reset(out)

		return w, func() {
			w.Reset(io.Discard)
			defaultPackWriterPool.Put(w)
		}
	}

	return bufio.NewWriterSize(out, size), func() {}
}

// acquirePackCopyBuffer returns reusable payload copy buffer and release callback.
func acquirePackCopyBuffer() ([]byte, func()) {
	arr := defaultPackCopyBufferPool.Get().(*[packCopyBufferSize]byte) //nolint:forcetypeassert // pool contains only fixed-size buffers
	buf := arr[:]

	return buf, func() {
		defaultPackCopyBufferPool.Put(arr)
	}
}

// copyPayloadBounded streams payload from src to dst and enforces strict size limit.
func copyPayloadBounded(dst io.Writer, src io.Reader, limit int64, buf []byte) (int64, error) {
	if dst == nil {
		return 0, ErrNilWriter
	}
	if src == nil {
		return 0, ErrNilReader
	}
	if limit < 0 {
		return 0, ErrSizeOverflow
	}
	if len(buf) == 0 {
		buf = make([]byte, 32*1024)
	}

	var written int64
	emptyReads := 0
	for written < limit {
		chunkSize := len(buf)
		remaining := limit - written
		if int64(chunkSize) > remaining {
			chunkSize = int(remaining)
		}

		n, readErr := src.Read(buf[:chunkSize])
		if n > 0 {
			emptyReads = 0
			nw, writeErr := dst.Write(buf[:n])
			written += int64(nw)

			if writeErr != nil {
				return written, writeErr
			}
			if nw != n {
				return written, io.ErrShortWrite
			}
		}
		if n == 0 && readErr == nil {
			emptyReads++
			if emptyReads > 100 {
				return written, io.ErrNoProgress
			}

			continue
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}

			return written, readErr
		}
	}

	// Source must end exactly at limit.
	if written == limit {
		var probe [1]byte
		n, err := src.Read(probe[:])
		if n > 0 {
			return written, fmt.Errorf("%w: source is longer than %d bytes", ErrSizeOverflow, limit)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return written, err
		}
	}

	return written, nil
}
