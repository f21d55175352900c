// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package textbuf

import (
	"strings"
	"testing"
)

// =============================================================================
// APPEND / FULLTEXT TESTS
// =============================================================================

func TestBufferAppendAndFullText(t *testing.T) {
	b := New(64)

	b.Append("Hello")
	b.Append(", ")
	b.Append("world")

	if got := b.FullText(); got != "Hello, world" {
		t.Errorf("Expected 'Hello, world', got %q", got)
	}
	if b.Len() != 12 {
		t.Errorf("Expected length 12, got %d", b.Len())
	}
}

func TestBufferFullTextEqualsConcatenationUnderCapacity(t *testing.T) {
	b := New(256)

	parts := []string{"one ", "two ", "three ", "four"}
	for _, p := range parts {
		b.Append(p)
	}

	want := strings.Join(parts, "")
	if got := b.FullText(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestBufferWrapAroundKeepsNewest(t *testing.T) {
	b := New(8)

	b.Append("abcdefgh")
	b.Append("ij")

	// Capacity 8: the two oldest runes are discarded.
	if got := b.FullText(); got != "cdefghij" {
		t.Errorf("Expected 'cdefghij', got %q", got)
	}
	if b.Total() != 10 {
		t.Errorf("Expected total 10, got %d", b.Total())
	}
}

func TestBufferUnicodeNotSplit(t *testing.T) {
	b := New(4)

	b.Append("héllo")

	// 5 runes into a 4-rune buffer: 'h' drops.
	if got := b.FullText(); got != "éllo" {
		t.Errorf("Expected 'éllo', got %q", got)
	}
}

// =============================================================================
// DRAIN TESTS
// =============================================================================

func TestDrainNewPartitionsAppends(t *testing.T) {
	b := New(128)

	parts := []string{"alpha", " beta", " gamma", "", " delta"}
	var drained strings.Builder

	for _, p := range parts {
		b.Append(p)
		drained.WriteString(b.DrainNew())
	}

	// Drained segments must partition the appended text: no gaps, no overlap.
	want := strings.Join(parts, "")
	if got := drained.String(); got != want {
		t.Errorf("Expected drained %q, got %q", want, got)
	}

	// Nothing new: next drain is empty.
	if got := b.DrainNew(); got != "" {
		t.Errorf("Expected empty drain, got %q", got)
	}
}

func TestDrainNewAfterWrapSkipsLostData(t *testing.T) {
	b := New(4)

	b.Append("abcdef")

	// "ab" fell out of the window before being drained; only the retained
	// suffix comes back.
	if got := b.DrainNew(); got != "cdef" {
		t.Errorf("Expected 'cdef', got %q", got)
	}
}

func TestDrainNewEmptyBuffer(t *testing.T) {
	b := New(16)
	if got := b.DrainNew(); got != "" {
		t.Errorf("Expected empty drain on fresh buffer, got %q", got)
	}
}

// =============================================================================
// SUFFIX TESTS
// =============================================================================

func TestSuffix(t *testing.T) {
	b := New(32)
	b.Append("some text ```")

	if got := b.Suffix(3); got != "```" {
		t.Errorf("Expected '```', got %q", got)
	}
	if got := b.Suffix(100); got != "some text ```" {
		t.Errorf("Expected full text for oversized n, got %q", got)
	}
	if got := b.Suffix(0); got != "" {
		t.Errorf("Expected empty suffix for n=0, got %q", got)
	}
}

func TestHasSuffix(t *testing.T) {
	b := New(8)
	b.Append("0123```")

	if !b.HasSuffix("```") {
		t.Error("Expected HasSuffix('```') to be true")
	}
	if b.HasSuffix("``x") {
		t.Error("Expected HasSuffix('``x') to be false")
	}
	if !b.HasSuffix("") {
		t.Error("Empty marker should always match")
	}
	if b.HasSuffix("longer than buffer") {
		t.Error("Marker longer than content should not match")
	}

	// Works across a wrap boundary too.
	b.Append("ab```")
	if !b.HasSuffix("```") {
		t.Error("Expected HasSuffix('```') after wrap")
	}
}

// =============================================================================
// RESET TESTS
// =============================================================================

func TestBufferReset(t *testing.T) {
	b := New(16)
	b.Append("content")
	b.DrainNew()

	b.Reset()

	if b.Len() != 0 || b.Total() != 0 {
		t.Errorf("Expected empty buffer after reset, len=%d total=%d", b.Len(), b.Total())
	}
	if got := b.FullText(); got != "" {
		t.Errorf("Expected empty text after reset, got %q", got)
	}

	b.Append("new")
	if got := b.DrainNew(); got != "new" {
		t.Errorf("Expected 'new' after reset+append, got %q", got)
	}
}

func TestDefaultCapacityFallback(t *testing.T) {
	b := New(0)
	if cap := len(b.data); cap != DefaultCapacity {
		t.Errorf("Expected default capacity %d, got %d", DefaultCapacity, cap)
	}
}
