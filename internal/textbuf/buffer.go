// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package textbuf

// =============================================================================
// CONSTANTS
// =============================================================================

// DefaultCapacity holds a full multi-thousand-character response without
// wrapping. 16 Ki runes covers typical model output several times over.
const DefaultCapacity = 16 * 1024

// =============================================================================
// BUFFER
// =============================================================================

// Buffer is a fixed-capacity circular rune buffer. All operations are total;
// there are no error conditions.
//
// Buffer operates on runes rather than bytes so that a wrap never splits a
// multi-byte UTF-8 character.
//
// Thread-safety: none. The buffer is confined to the single stream task that
// owns it (one logical writer per session).
type Buffer struct {
	data  []rune
	start int // index of the oldest retained rune
	size  int // retained rune count, <= cap

	total   int // total runes ever appended
	drained int // total runes returned by DrainNew so far
}

// New creates a buffer with the given capacity in runes. Non-positive
// capacities fall back to DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		data: make([]rune, capacity),
	}
}

// Append stores new characters, overwriting the oldest data once capacity is
// exceeded.
func (b *Buffer) Append(text string) {
	for _, r := range text {
		idx := (b.start + b.size) % len(b.data)
		b.data[idx] = r
		if b.size < len(b.data) {
			b.size++
		} else {
			// Oldest rune overwritten; the window slides forward.
			b.start = (b.start + 1) % len(b.data)
		}
		b.total++
	}

	// If unread data fell out of the retained window, the drain cursor
	// catches up so DrainNew never reports stale positions.
	if oldest := b.total - b.size; b.drained < oldest {
		b.drained = oldest
	}
}

// Len returns the number of retained runes.
func (b *Buffer) Len() int {
	return b.size
}

// Total returns the total number of runes ever appended, including any that
// have been discarded by wrapping.
func (b *Buffer) Total() int {
	return b.total
}

// FullText reconstructs the entire retained text in O(n).
func (b *Buffer) FullText() string {
	if b.size == 0 {
		return ""
	}
	out := make([]rune, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.data[(b.start+i)%len(b.data)]
	}
	return string(out)
}

// DrainNew returns only the characters appended since the previous DrainNew
// call and advances the internal cursor. Returns empty if nothing is new.
func (b *Buffer) DrainNew() string {
	if b.drained >= b.total {
		return ""
	}
	count := b.total - b.drained
	oldest := b.total - b.size

	// Offset of the first undrained rune within the retained window.
	offset := b.drained - oldest
	out := make([]rune, count)
	for i := 0; i < count; i++ {
		out[i] = b.data[(b.start+offset+i)%len(b.data)]
	}
	b.drained = b.total
	return string(out)
}

// Suffix returns the last n retained runes (or all of them if fewer).
func (b *Buffer) Suffix(n int) string {
	if n <= 0 || b.size == 0 {
		return ""
	}
	if n > b.size {
		n = b.size
	}
	out := make([]rune, n)
	offset := b.size - n
	for i := 0; i < n; i++ {
		out[i] = b.data[(b.start+offset+i)%len(b.data)]
	}
	return string(out)
}

// HasSuffix reports whether the retained text currently ends with marker,
// without materializing the full text. Used for boundary detection such as
// "does the buffer end with an unterminated code fence marker".
func (b *Buffer) HasSuffix(marker string) bool {
	runes := []rune(marker)
	if len(runes) == 0 {
		return true
	}
	if len(runes) > b.size {
		return false
	}
	offset := b.size - len(runes)
	for i, r := range runes {
		if b.data[(b.start+offset+i)%len(b.data)] != r {
			return false
		}
	}
	return true
}

// Reset discards all content and cursors, returning the buffer to its
// initial state.
func (b *Buffer) Reset() {
	b.start = 0
	b.size = 0
	b.total = 0
	b.drained = 0
}
