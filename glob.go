// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/meg

package meg

import (
	"fmt"
	"strings"

	"github.com/woozymasta/pathrules"
)

// entryMatcher holds a compiled single-pattern glob over archive paths.
type entryMatcher struct {
	matcher *pathrules.Matcher
}

// newEntryMatcher compiles glob pattern for archive entry paths.
func newEntryMatcher(pattern string, caseInsensitive bool) (*entryMatcher, error) {
	normalized := normalizePathForMatching(pattern)
	if normalized == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, ErrEmptyPattern)
	}

	// Anchor at archive root so "*" never matches a basename at depth.
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}

	matcher, err := pathrules.NewMatcher(
		[]pathrules.Rule{{Action: pathrules.ActionInclude, Pattern: normalized}},
		pathrules.MatcherOptions{
			CaseInsensitive: caseInsensitive,
			DefaultAction:   pathrules.ActionExclude,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: compile pattern %q: %w", ErrInvalidArgument, pattern, err)
	}

	return &entryMatcher{matcher: matcher}, nil
}

// Match reports whether archive path is included by pattern.
func (m *entryMatcher) Match(path string) bool {
	if m == nil || m.matcher == nil {
		return false
	}

	candidate := normalizePathForMatching(path)
	if candidate == "" {
		return false
	}

	return m.matcher.Included(candidate, false)
}
