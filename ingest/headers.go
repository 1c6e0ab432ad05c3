package ingest

import (
	"fmt"
	"regexp"
	"strings"
)

var newlineSeq = regexp.MustCompile(`[\r\n]+`)

// NormalizeHeaders canonicalizes a raw CSV header row. The same function is
// meant to back any upload-side preview, so the worker and the ingress agree
// on header names.
//
// Rules, in order: strip a leading BOM from the first header, collapse any
// internal newline sequence to a single space, trim surrounding whitespace,
// replace an empty header with the positional placeholder _col_N (1-indexed),
// and deduplicate by suffixing later occurrences with _2, _3, ... while the
// first occurrence stays unchanged. A suffix candidate that is already taken
// by another header is skipped, so the output never contains duplicates and
// the function is idempotent.
func NormalizeHeaders(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	counts := make(map[string]int, len(raw))

	for i, h := range raw {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		h = newlineSeq.ReplaceAllString(h, " ")
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("_col_%d", i+1)
		}

		name := h
		for seen[name] {
			counts[h]++
			name = fmt.Sprintf("%s_%d", h, counts[h]+1)
		}
		seen[name] = true
		out[i] = name
	}
	return out
}
