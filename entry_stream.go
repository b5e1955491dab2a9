// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/meg

package meg

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// EntryStream is a read-only seekable window over one entry data region of a
// backing stream. It owns the backing stream: Close closes it, so one backing
// stream must never be wrapped twice.
type EntryStream struct {
	// base is the owned backing stream; nil for empty streams.
	base io.ReadSeekCloser
	// start is absolute window start in base.
	start int64
	// length is window length.
	length int64
	// pos is position inside window, always within [0, length].
	pos int64
	// mu guards closed state and close operation.
	mu sync.Mutex
	// closed reports whether Close was already called.
	closed bool
}

var (
	_ io.ReadSeekCloser = (*EntryStream)(nil)
	_ io.ByteReader     = (*EntryStream)(nil)
)

// NewEntryStream wraps base in a window [start, start+length).
// On error base is not closed and stays owned by the caller.
func NewEntryStream(base io.ReadSeekCloser, start int64, length int64) (*EntryStream, error) {
	if base == nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, ErrNilReader)
	}
	if start < 0 {
		return nil, fmt.Errorf("%w: negative entry start %d", ErrInvalidArgument, start)
	}
	if length < 0 {
		return nil, fmt.Errorf("%w: negative entry length %d", ErrInvalidArgument, length)
	}

	end := start + length
	if end < start {
		return nil, fmt.Errorf("%w: entry window overflows", ErrInvalidArgument)
	}

	baseSize, err := base.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: backing stream is not seekable: %w", ErrInvalidArgument, err)
	}
	if end > baseSize {
		return nil, fmt.Errorf(
			"%w: entry window [%d, %d) exceeds backing stream size %d", ErrInvalidArgument, start, end, baseSize,
		)
	}

	return &EntryStream{base: base, start: start, length: length}, nil
}

// EmptyEntryStream returns a zero-length stream without backing stream.
func EmptyEntryStream() *EntryStream {
	return &EntryStream{}
}

// Size returns window length.
func (s *EntryStream) Size() int64 {
	return s.length
}

// Read reads up to len(p) bytes from the window. It returns io.EOF at window end
// and ErrEntryStreamTruncated when the backing stream no longer holds the window.
func (s *EntryStream) Read(p []byte) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	if s.pos >= s.length {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	n := int64(len(p))
	if remaining := s.length - s.pos; n > remaining {
		n = remaining
	}

	if _, err := s.base.Seek(s.start+s.pos, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek backing stream: %w", err)
	}

	read, err := io.ReadFull(s.base, p[:n])
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, fmt.Errorf(
				"%w: read %d of %d bytes at offset %d", ErrEntryStreamTruncated, read, n, s.start+s.pos,
			)
		}

		return 0, fmt.Errorf("read backing stream: %w", err)
	}

	s.pos += int64(read)
	return read, nil
}

// ReadByte reads one byte; io.EOF at window end.
func (s *EntryStream) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := s.Read(b[:]); err != nil {
		return 0, err
	}

	return b[0], nil
}

// Seek sets window position relative to start, current position or end.
// Resulting position must stay within [0, Size()].
func (s *EntryStream) Seek(offset int64, whence int) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = s.pos + offset
	case io.SeekEnd:
		next = s.length + offset
	default:
		return 0, fmt.Errorf("%w: invalid whence %d", ErrInvalidArgument, whence)
	}

	if next < 0 {
		return 0, fmt.Errorf("%w: negative position %d", ErrInvalidArgument, next)
	}
	if next > s.length {
		return 0, fmt.Errorf("%w: position %d beyond entry size %d", ErrInvalidArgument, next, s.length)
	}

	s.pos = next
	return next, nil
}

// Flush is a no-op kept for writer-style callers.
func (s *EntryStream) Flush() error {
	return nil
}

// Close closes the backing stream. Repeated calls return nil.
func (s *EntryStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.base != nil {
		return s.base.Close()
	}

	return nil
}

// checkOpen returns ErrClosed after Close.
func (s *EntryStream) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	return nil
}
