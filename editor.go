// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/meg

package meg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Editor accumulates archive edit operations and applies them on Commit.
// Commit rewrites the archive, referencing kept entries inside the previous
// archive generation instead of loading them into memory.
type Editor struct {
	path string
	ops  []editOperation
	opts EditOptions
}

// editOperation stores one staged editor operation.
type editOperation struct {
	entries []BuilderEntry
	paths   []string
	pattern string
	kind    editOperationKind
}

// editOperationKind identifies staged edit action type.
type editOperationKind uint8

const (
	// editOperationAdd appends new entries and fails on existing path.
	editOperationAdd editOperationKind = iota + 1
	// editOperationReplace rewrites existing entries.
	editOperationReplace
	// editOperationDelete removes exact paths.
	editOperationDelete
	// editOperationDeleteMatching removes entries matching glob pattern.
	editOperationDeleteMatching
)

// editItem is one entry of the edited archive state.
type editItem struct {
	entry BuilderEntry
	key   string
}

// OpenEditor creates staged editor for file-based archive rewrite workflow.
// A missing archive is created on Commit.
func OpenEditor(path string, opts EditOptions) (*Editor, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return nil, fmt.Errorf("%w: empty archive path", ErrInvalidArgument)
	}

	opts.applyDefaults()

	return &Editor{
		path: trimmedPath,
		opts: opts,
		ops:  make([]editOperation, 0, 8),
	}, nil
}

// Add schedules adding new entries and fails on path collision during commit.
func (e *Editor) Add(entries ...BuilderEntry) error {
	return e.stageEntries(editOperationAdd, entries)
}

// Replace schedules replacing existing entries. All entries stored under the
// same path collapse into the replacement.
func (e *Editor) Replace(entries ...BuilderEntry) error {
	return e.stageEntries(editOperationReplace, entries)
}

// Delete schedules exact-path removal of every entry stored under paths.
func (e *Editor) Delete(paths ...string) error {
	if e == nil {
		return fmt.Errorf("%w: editor is nil", ErrInvalidArgument)
	}

	normalized := make([]string, 0, len(paths))
	for _, raw := range paths {
		canonical, err := NormalizeEntryPath(raw)
		if err != nil {
			return err
		}

		normalized = append(normalized, canonical)
	}

	if len(normalized) == 0 {
		return nil
	}

	e.ops = append(e.ops, editOperation{
		kind:  editOperationDelete,
		paths: normalized,
	})

	return nil
}

// DeleteMatching schedules removal of entries whose path matches glob pattern.
func (e *Editor) DeleteMatching(pattern string) error {
	if e == nil {
		return fmt.Errorf("%w: editor is nil", ErrInvalidArgument)
	}

	// Compile now so a bad pattern fails before Commit.
	if _, err := newEntryMatcher(pattern, true); err != nil {
		return err
	}

	e.ops = append(e.ops, editOperation{
		kind:    editOperationDeleteMatching,
		pattern: pattern,
	})

	return nil
}

// stageEntries normalizes entry paths and stages add or replace operation.
func (e *Editor) stageEntries(kind editOperationKind, entries []BuilderEntry) error {
	if e == nil {
		return fmt.Errorf("%w: editor is nil", ErrInvalidArgument)
	}

	normalized := make([]BuilderEntry, 0, len(entries))
	for i := range entries {
		if entries[i].Origin == nil {
			return fmt.Errorf("%w: entry %q origin is nil", ErrInvalidArgument, entries[i].FilePath)
		}

		canonical, err := NormalizeEntryPath(entries[i].FilePath)
		if err != nil {
			return err
		}

		item := entries[i]
		item.FilePath = canonical
		normalized = append(normalized, item)
	}

	if len(normalized) == 0 {
		return nil
	}

	e.ops = append(e.ops, editOperation{
		kind:    kind,
		entries: normalized,
	})

	return nil
}

// Commit applies all staged operations in one rewrite transaction.
// On failure the previous archive is restored.
func (e *Editor) Commit(ctx context.Context) (*WriteResult, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: editor is nil", ErrInvalidArgument)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	logger := e.opts.WriteOptions.Logger.WithField("path", e.path)

	_, statErr := os.Stat(e.path)
	if errors.Is(statErr, os.ErrNotExist) {
		res, err := e.commitFrom(ctx, nil)
		if err != nil {
			return nil, err
		}

		logger.WithField("entries", res.WrittenEntries).Info("created MEG archive")
		return res, nil
	}
	if statErr != nil {
		return nil, fmt.Errorf("stat archive: %w", statErr)
	}

	backupPath := e.path + ".bak"
	if err := prepareBackupSlot(backupPath, e.opts.BackupKeep); err != nil {
		return nil, err
	}

	if err := os.Rename(e.path, backupPath); err != nil {
		return nil, fmt.Errorf("move archive to backup: %w", err)
	}

	res, err := e.commitFromBackup(ctx, backupPath)
	if err != nil {
		logger.WithError(err).Warn("MEG edit failed, restoring backup")

		rollbackErr := rollbackFromBackup(e.path, backupPath)
		if rollbackErr != nil {
			return nil, fmt.Errorf("%w (rollback failed: %w)", err, rollbackErr)
		}

		return nil, err
	}

	if e.opts.BackupKeep == 0 {
		if err := removeIfExists(backupPath); err != nil {
			return nil, fmt.Errorf("remove backup: %w", err)
		}
	}

	logger.WithFields(logrus.Fields{
		"entries":   res.WrittenEntries,
		"data_size": res.DataSize,
	}).Info("committed MEG edit")

	return res, nil
}

// commitFromBackup writes edited archive referencing entries of backup archive.
func (e *Editor) commitFromBackup(ctx context.Context, backupPath string) (*WriteResult, error) {
	src, err := OpenWithOptions(backupPath, e.opts.ReaderOptions)
	if err != nil {
		return nil, fmt.Errorf("parse backup: %w", err)
	}

	return e.commitFrom(ctx, src)
}

// commitFrom applies staged operations over src entries and writes the result.
func (e *Editor) commitFrom(ctx context.Context, src *File) (*WriteResult, error) {
	state, err := sourceEditState(src)
	if err != nil {
		return nil, err
	}

	state, err = applyEditOperations(state, e.ops)
	if err != nil {
		return nil, err
	}

	entries := make([]BuilderEntry, len(state))
	for i := range state {
		entries[i] = state[i].entry
	}

	plan, err := BuildPlan(entries, e.opts.PlanOptions)
	if err != nil {
		return nil, err
	}

	return WritePlanFile(ctx, e.path, plan, e.opts.WriteOptions)
}

// sourceEditState converts archive entries into edit state of entry references.
func sourceEditState(src *File) ([]editItem, error) {
	if src == nil {
		return nil, nil
	}

	entries := src.Entries()
	state := make([]editItem, 0, len(entries))
	for i := range entries {
		origin, err := NewEntryOrigin(src, entries[i])
		if err != nil {
			return nil, err
		}

		state = append(state, editItem{
			key: editorPathKey(entries[i].FilePath),
			entry: BuilderEntry{
				Origin:    origin,
				FilePath:  entries[i].FilePath,
				Encrypted: entries[i].Encrypted,
			},
		})
	}

	return state, nil
}

// applyEditOperations applies staged operations in order and returns new state.
func applyEditOperations(state []editItem, ops []editOperation) ([]editItem, error) {
	var err error
	for _, op := range ops {
		switch op.kind {
		case editOperationAdd:
			state, err = applyEditAdd(state, op.entries)
		case editOperationReplace:
			state, err = applyEditReplace(state, op.entries)
		case editOperationDelete:
			state = applyEditDelete(state, op.paths)
		case editOperationDeleteMatching:
			state, err = applyEditDeleteMatching(state, op.pattern)
		default:
			err = fmt.Errorf("%w: unknown edit operation kind %d", ErrInvalidArgument, op.kind)
		}

		if err != nil {
			return nil, err
		}
	}

	return state, nil
}

// applyEditAdd appends new entries and fails on existing paths.
func applyEditAdd(state []editItem, entries []BuilderEntry) ([]editItem, error) {
	for _, entry := range entries {
		key := editorPathKey(entry.FilePath)
		if indexOfEditKey(state, key) >= 0 {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateEntryPath, entry.FilePath)
		}

		state = append(state, editItem{key: key, entry: entry})
	}

	return state, nil
}

// applyEditReplace puts replacement at the first matching position and drops
// other entries with the same path. Fails on missing paths.
func applyEditReplace(state []editItem, entries []BuilderEntry) ([]editItem, error) {
	for _, entry := range entries {
		key := editorPathKey(entry.FilePath)
		first := indexOfEditKey(state, key)
		if first < 0 {
			return nil, fmt.Errorf("%w: %q", ErrEntryNotFound, entry.FilePath)
		}

		out := state[:0]
		for i := range state {
			switch {
			case i == first:
				out = append(out, editItem{key: key, entry: entry})
			case state[i].key != key:
				out = append(out, state[i])
			}
		}

		state = out
	}

	return state, nil
}

// applyEditDelete removes every entry stored under paths.
func applyEditDelete(state []editItem, paths []string) []editItem {
	remove := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		remove[editorPathKey(p)] = struct{}{}
	}

	out := state[:0]
	for i := range state {
		if _, ok := remove[state[i].key]; !ok {
			out = append(out, state[i])
		}
	}

	return out
}

// applyEditDeleteMatching removes entries matching glob pattern.
func applyEditDeleteMatching(state []editItem, pattern string) ([]editItem, error) {
	matcher, err := newEntryMatcher(pattern, true)
	if err != nil {
		return nil, err
	}

	out := state[:0]
	for i := range state {
		if !matcher.Match(state[i].entry.FilePath) {
			out = append(out, state[i])
		}
	}

	return out, nil
}

// indexOfEditKey returns index of first item with key, or -1.
func indexOfEditKey(state []editItem, key string) int {
	for i := range state {
		if state[i].key == key {
			return i
		}
	}

	return -1
}

// editorPathKey returns case-insensitive key for archive path with unified separators.
func editorPathKey(path string) string {
	return strings.ToUpper(strings.ReplaceAll(path, "/", `\`))
}

// prepareBackupSlot rotates or removes existing backup generations before new commit.
func prepareBackupSlot(backupPath string, keep int) error {
	if keep < 0 {
		keep = 0
	}

	switch keep {
	case 0, 1:
		return removeIfExists(backupPath)
	default:
		oldest := fmt.Sprintf("%s.%d", backupPath, keep-1)
		if err := removeIfExists(oldest); err != nil {
			return err
		}

		for i := keep - 2; i >= 1; i-- {
			from := fmt.Sprintf("%s.%d", backupPath, i)
			to := fmt.Sprintf("%s.%d", backupPath, i+1)
			if err := renameIfExists(from, to); err != nil {
				return err
			}
		}

		return renameIfExists(backupPath, backupPath+".1")
	}
}

// renameIfExists renames source to destination when source exists.
func renameIfExists(from string, to string) error {
	_, err := os.Stat(from)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", from, err)
	}

	if err := removeIfExists(to); err != nil {
		return err
	}

	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("rename %s to %s: %w", from, to, err)
	}

	return nil
}

// removeIfExists removes file when present.
func removeIfExists(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) || err == nil {
		return nil
	}

	return fmt.Errorf("remove %s: %w", path, err)
}

// rollbackFromBackup restores backup on failed commit.
func rollbackFromBackup(path string, backupPath string) error {
	_ = os.Remove(path)

	if err := os.Rename(backupPath, path); err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}

	return nil
}
