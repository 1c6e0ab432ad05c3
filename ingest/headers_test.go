package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHeadersTrimsAndPlaceholders(t *testing.T) {
	got := NormalizeHeaders([]string{"  email ", "", "Email"})
	assert.Equal(t, []string{"email", "_col_2", "Email"}, got)
}

func TestNormalizeHeadersStripsBOM(t *testing.T) {
	got := NormalizeHeaders([]string{"\uFEFFemail", "name"})
	assert.Equal(t, []string{"email", "name"}, got)
}

func TestNormalizeHeadersBOMOnlyOnFirst(t *testing.T) {
	got := NormalizeHeaders([]string{"email", "\uFEFFname"})
	assert.Equal(t, []string{"email", "\uFEFFname"}, got)
}

func TestNormalizeHeadersCollapsesNewlines(t *testing.T) {
	got := NormalizeHeaders([]string{"first\r\nname", "last\n\nname"})
	assert.Equal(t, []string{"first name", "last name"}, got)
}

func TestNormalizeHeadersDeduplicates(t *testing.T) {
	got := NormalizeHeaders([]string{"email", "email", "email"})
	assert.Equal(t, []string{"email", "email_2", "email_3"}, got)
}

func TestNormalizeHeadersSuffixCollision(t *testing.T) {
	// A literal header may already occupy a dedup suffix; the generated name
	// skips past it in either order.
	got := NormalizeHeaders([]string{"a", "a", "a_2"})
	assert.Equal(t, []string{"a", "a_2", "a_2_2"}, got)

	got = NormalizeHeaders([]string{"a", "a_2", "a"})
	assert.Equal(t, []string{"a", "a_2", "a_3"}, got)

	got = NormalizeHeaders([]string{"_col_2", ""})
	assert.Equal(t, []string{"_col_2", "_col_2_2"}, got)
}

func TestNormalizeHeadersCaseSensitiveDedup(t *testing.T) {
	// Case is not folded; "Email" and "email" are distinct headers.
	got := NormalizeHeaders([]string{"email", "Email"})
	assert.Equal(t, []string{"email", "Email"}, got)
}

func TestNormalizeHeadersBlankDuplicates(t *testing.T) {
	got := NormalizeHeaders([]string{"", ""})
	assert.Equal(t, []string{"_col_1", "_col_2"}, got)
}

func TestNormalizeHeadersIdempotent(t *testing.T) {
	inputs := [][]string{
		{"  email ", "", "Email"},
		{"\uFEFFa", "a", "b\nc"},
		{"", "x", "x", ""},
		{"a", "a", "a_2"},
		{"a", "a_2", "a"},
		{"_col_2", "", "_col_2"},
	}
	for _, in := range inputs {
		once := NormalizeHeaders(in)
		twice := NormalizeHeaders(once)
		assert.Equal(t, once, twice, "normalization must be stable for %v", in)

		uniq := make(map[string]bool, len(once))
		for _, h := range once {
			assert.False(t, uniq[h], "duplicate normalized header %q in %v", h, once)
			uniq[h] = true
		}
	}
}
