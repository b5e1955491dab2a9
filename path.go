// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/meg

package meg

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"
)

// MaxEntryPathLength is the longest encoded path a name record can hold (u16 length prefix).
const MaxEntryPathLength = 0xFFFF

// NormalizeEntryPath converts a raw path to canonical archive form used by
// Petroglyph tooling: upper case, "\" separators, no leading separator or dot segments.
func NormalizeEntryPath(raw string) (string, error) {
	normalized := normalizePathForMatching(raw)
	normalized = strings.TrimPrefix(normalized, "/")
	normalized = path.Clean("/" + normalized)
	normalized = strings.Trim(normalized, "/")
	if normalized == "" || normalized == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntryPath, raw)
	}

	return strings.ToUpper(strings.ReplaceAll(normalized, "/", `\`)), nil
}

// EncodeEntryPath encodes path with the fixed archive text encoding (ASCII).
// Runes outside ASCII are replaced by '?'.
func EncodeEntryPath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidEntryPath)
	}

	encoded := p
	if !isASCII(p) {
		var b strings.Builder
		b.Grow(len(p))
		for _, r := range p {
			if r < utf8.RuneSelf {
				b.WriteRune(r)
				continue
			}

			b.WriteByte('?')
		}

		encoded = b.String()
	}

	if len(encoded) > MaxEntryPathLength {
		return "", fmt.Errorf(
			"%w: encoded length %d exceeds %d", ErrInvalidEntryPath, len(encoded), MaxEntryPathLength,
		)
	}

	return encoded, nil
}

// isASCII reports whether s contains only ASCII bytes.
func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}

	return true
}

// normalizePathForMatching unifies separators to "/" for matcher use.
func normalizePathForMatching(p string) string {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, `\`, `/`)
	p = strings.TrimPrefix(p, "./")
	return p
}
