// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/meg

package meg

import (
	"fmt"
	"io"
)

// WriteMetadata writes header, name table and file table to w and returns written bytes.
func WriteMetadata(w io.Writer, md *Metadata) (int64, error) {
	if w == nil {
		return 0, ErrNilWriter
	}
	if md == nil {
		return 0, fmt.Errorf("%w: metadata is nil", ErrInvalidArgument)
	}

	if _, err := NewMetadata(md.Header, md.NameTable, md.FileTable); err != nil {
		return 0, err
	}

	n, err := w.Write(md.Bytes())
	if err != nil {
		return int64(n), fmt.Errorf("write metadata: %w", err)
	}

	return int64(n), nil
}
