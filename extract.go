// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/meg

package meg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// extractCopyBufferSize defines per-worker buffer size for file copy during extraction.
const extractCopyBufferSize = 64 * 1024

// extractWorkItem stores one selected entry with prepared output relative paths.
type extractWorkItem struct {
	relPath string
	relDir  string
	entry   DataEntry
}

// Extract writes selected entries of the archive to dstDir. Extraction is
// parallelized by MaxWorkers; on failure it returns the first encountered error.
// When several entries map to one output path, the last one in archive order wins.
func (f *File) Extract(ctx context.Context, dstDir string, opts ExtractOptions) error {
	if f == nil || f.Archive == nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, ErrNilReader)
	}

	opts.applyDefaults()

	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers < 1 {
		workers = 1
	}

	entries, err := f.selectExtractEntries(opts)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	dstRootAbs, err := filepath.Abs(dstDir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}

	if err := os.MkdirAll(dstRootAbs, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	workItems, err := prepareExtractWorkItems(entries, opts.SanitizeNames)
	if err != nil {
		return err
	}
	if len(workItems) == 0 {
		return nil
	}

	if err := prepareExtractDirs(dstRootAbs, workItems); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	bufs := make(chan []byte, workers)
	for _, task := range workItems {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			var copyBuf []byte
			select {
			case copyBuf = <-bufs:
			default:
				copyBuf = make([]byte, extractCopyBufferSize)
			}
			defer func() {
				select {
				case bufs <- copyBuf:
				default:
				}
			}()

			return f.extractPreparedEntry(gctx, dstRootAbs, task, opts, copyBuf)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	return ctx.Err()
}

// selectExtractEntries applies Entries and Pattern filters.
func (f *File) selectExtractEntries(opts ExtractOptions) ([]DataEntry, error) {
	entries := f.Archive.Entries()
	if opts.Entries != nil {
		entries = make([]DataEntry, 0, len(opts.Entries))
		for _, entry := range opts.Entries {
			if !f.Archive.Contains(entry) {
				return nil, fmt.Errorf("%w: %q in %s", ErrEntryNotFound, entry.FilePath, f.Path)
			}

			entries = append(entries, entry)
		}
	}

	if opts.Pattern == "" {
		return entries, nil
	}

	matcher, err := newEntryMatcher(opts.Pattern, !opts.CaseSensitive)
	if err != nil {
		return nil, err
	}

	selected := entries[:0]
	for _, entry := range entries {
		if matcher.Match(entry.FilePath) {
			selected = append(selected, entry)
		}
	}

	return selected, nil
}

// prepareExtractWorkItems validates selected entries and prepares relative fs paths.
// Entries sharing an output path collapse to the last one.
func prepareExtractWorkItems(entries []DataEntry, sanitize bool) ([]extractWorkItem, error) {
	workItems := make([]extractWorkItem, 0, len(entries))
	byPath := make(map[string]int, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.FilePath) == "" {
			continue
		}

		normalizedPath, err := normalizeExtractEntryPath(entry.FilePath)
		if err == nil && sanitize {
			normalizedPath, err = sanitizeRelativePath(normalizedPath)
		}
		if err != nil {
			return nil, fmt.Errorf("normalize entry path %s: %w", entry.FilePath, err)
		}

		relPath := filepath.FromSlash(normalizedPath)
		relDir := filepath.Dir(relPath)
		if relDir == "." {
			relDir = ""
		}

		item := extractWorkItem{
			entry:   entry,
			relPath: relPath,
			relDir:  relDir,
		}

		key := strings.ToLower(relPath)
		if i, ok := byPath[key]; ok {
			workItems[i] = item
			continue
		}

		byPath[key] = len(workItems)
		workItems = append(workItems, item)
	}

	return workItems, nil
}

// prepareExtractDirs creates all unique parent directories needed by work items.
func prepareExtractDirs(dstRootAbs string, workItems []extractWorkItem) error {
	seen := make(map[string]struct{}, len(workItems))
	for _, task := range workItems {
		if task.relDir == "" {
			continue
		}

		dirPath := filepath.Join(dstRootAbs, task.relDir)
		key := strings.ToLower(dirPath)
		if _, exists := seen[key]; exists {
			continue
		}

		seen[key] = struct{}{}
		if err := os.MkdirAll(dirPath, 0o750); err != nil {
			return fmt.Errorf("create output directory %s: %w", dirPath, err)
		}
	}

	return nil
}

// extractPreparedEntry writes one prepared work item to destination root.
func (f *File) extractPreparedEntry(
	ctx context.Context,
	dstRootAbs string,
	task extractWorkItem,
	opts ExtractOptions,
	copyBuf []byte,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	outPath := filepath.Join(dstRootAbs, task.relPath)
	if err := ensureInsideRoot(dstRootAbs, outPath); err != nil {
		return fmt.Errorf("%s: %w", task.entry.FilePath, err)
	}

	rc, err := f.OpenEntry(task.entry)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	file, needsTruncate, err := openExtractFile(outPath, opts.FileMode, rc.Size())
	if err != nil {
		return fmt.Errorf("open %s: %w", task.entry.FilePath, err)
	}

	written, copyErr := copyExtractData(file, rc, copyBuf)
	if copyErr == nil && needsTruncate {
		if truncErr := file.Truncate(written); truncErr != nil {
			_ = file.Close()
			return fmt.Errorf("truncate %s: %w", task.entry.FilePath, truncErr)
		}
	}

	closeErr := file.Close()
	if copyErr != nil {
		return fmt.Errorf("write %s: %w", task.entry.FilePath, copyErr)
	}

	if closeErr != nil {
		return fmt.Errorf("close %s: %w", task.entry.FilePath, closeErr)
	}

	opts.Logger.WithFields(logrus.Fields{
		"entry":  task.entry.FilePath,
		"output": outPath,
		"size":   written,
	}).Debug("extracted MEG entry")

	if opts.OnEntryDone != nil {
		opts.OnEntryDone(task.entry, written, outPath)
	}

	return nil
}

// ensureInsideRoot rejects output paths that resolve outside root.
func ensureInsideRoot(root string, path string) error {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtractPathOutsideRoot, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return ErrExtractPathOutsideRoot
	}

	return nil
}

// openExtractFile opens output path according to selected extract file mode.
func openExtractFile(path string, mode ExtractFileMode, expectedSize int64) (*os.File, bool, error) {
	switch mode {
	case ExtractFileModeAuto:
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			return file, false, nil
		}

		if !os.IsExist(err) {
			return nil, false, err
		}

		file, truncErr := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
		return file, false, truncErr
	case ExtractFileModeOverwriteSmart:
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o600)
		if err != nil {
			return nil, false, err
		}

		info, err := file.Stat()
		if err != nil {
			_ = file.Close()
			return nil, false, err
		}

		needsTruncate := info.Size() > expectedSize
		return file, needsTruncate, nil
	case ExtractFileModeTruncate:
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
		return file, false, err
	case ExtractFileModeCreateOnly:
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		return file, false, err
	default:
		return nil, false, fmt.Errorf("%w: unknown extract file mode %q", ErrInvalidArgument, mode)
	}
}

// copyExtractData copies one entry stream to output file using fixed worker buffer.
func copyExtractData(dst *os.File, src io.Reader, buf []byte) (int64, error) {
	if len(buf) == 0 {
		return 0, io.ErrShortBuffer
	}

	var total int64
	for {
		readN, readErr := src.Read(buf)
		if readN > 0 {
			writeN, writeErr := dst.Write(buf[:readN])
			total += int64(writeN)

			if writeErr != nil {
				return total, writeErr
			}

			if writeN != readN {
				return total, io.ErrShortWrite
			}
		}

		if readErr == nil {
			continue
		}

		if errors.Is(readErr, io.EOF) {
			return total, nil
		}

		return total, readErr
	}
}

// normalizeExtractEntryPath normalizes entry path and rejects absolute or traversal inputs.
func normalizeExtractEntryPath(entryPath string) (string, error) {
	raw := strings.TrimSpace(entryPath)
	if raw == "" {
		return "", ErrInvalidExtractPath
	}
	if strings.ContainsRune(raw, 0) {
		return "", ErrInvalidExtractPath
	}
	if strings.HasPrefix(raw, `/`) || strings.HasPrefix(raw, `\`) {
		return "", ErrInvalidExtractPath
	}

	raw = strings.ReplaceAll(raw, `\`, `/`)
	if hasWindowsDrivePrefix(raw) {
		return "", ErrInvalidExtractPath
	}

	parts := strings.Split(raw, `/`)
	cleanParts := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			return "", ErrInvalidExtractPath
		default:
			cleanParts = append(cleanParts, part)
		}
	}
	if len(cleanParts) == 0 {
		return "", ErrInvalidExtractPath
	}

	return strings.Join(cleanParts, `/`), nil
}

// hasWindowsDrivePrefix reports whether path starts with drive prefix like C:.
func hasWindowsDrivePrefix(path string) bool {
	if len(path) < 2 {
		return false
	}

	return isASCIIAlpha(path[0]) && path[1] == ':'
}

// isASCIIAlpha reports whether byte is ASCII latin letter.
func isASCIIAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
