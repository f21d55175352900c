// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"strings"
	"sync"
)

// =============================================================================
// PARSE STATE
// =============================================================================

// parseState holds the per-message differential parsing state.
//
// Invariant: len(seen) is monotonically non-decreasing across calls for a
// given message unless a shrink or prefix mismatch is detected, in which
// case the state is discarded and rebuilt from scratch.
type parseState struct {
	// seen is the full content processed so far; its length is the cursor.
	seen string

	// tokens are the committed (finalized) tokens.
	tokens []Token

	// pending is the trailing line fragment not yet terminated by a newline.
	pending string

	// Open code fence state. Lines inside the fence are collected verbatim
	// until the closing fence commits them as one code block token.
	inFence    bool
	fenceLang  string
	fenceLines []string
}

func (st *parseState) reset() {
	st.seen = ""
	st.tokens = nil
	st.pending = ""
	st.inFence = false
	st.fenceLang = ""
	st.fenceLines = nil
}

// =============================================================================
// TOKENIZER
// =============================================================================

// Tokenizer converts streamed markdown into structural tokens, processing
// only newly-arrived text on each call.
//
// Thread-safety: all operations are protected by a mutex. The render cache
// is shared across sessions and forwards streaming calls here, so the state
// map must be safe under concurrent access.
type Tokenizer struct {
	mu     sync.Mutex
	states map[string]*parseState
}

// NewTokenizer creates an empty tokenizer.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{
		states: make(map[string]*parseState),
	}
}

// Parse tokenizes the content seen so far for the given message and returns
// the flat ordered token list. Only the suffix beyond the stored cursor is
// processed; the committed prefix is reused as-is.
//
// If content is not an extension of the previously seen content (it shrank,
// or the prefix no longer matches), the state is discarded and parsing
// restarts from empty. This handles edits conservatively at the cost of a
// full re-parse in that rare case.
func (t *Tokenizer) Parse(content, messageID string) []Token {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.states[messageID]
	if !ok {
		st = &parseState{}
		t.states[messageID] = st
	}

	if !strings.HasPrefix(content, st.seen) {
		st.reset()
	}

	newText := content[len(st.seen):]
	st.seen = content

	if newText != "" {
		chunk := st.pending + newText
		lines := strings.Split(chunk, "\n")
		// The last element is the new pending fragment (empty when the
		// chunk ended in a newline).
		for _, line := range lines[:len(lines)-1] {
			t.commitLine(st, line)
		}
		st.pending = lines[len(lines)-1]
	}

	return t.snapshot(st)
}

// ClearState drops the parse state for a message. Must be called once the
// message finishes streaming or is abandoned, to bound memory.
func (t *Tokenizer) ClearState(messageID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, messageID)
}

// ClearAll drops all parse state (session reset).
func (t *Tokenizer) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states = make(map[string]*parseState)
}

// StateCount returns the number of messages with live parse state.
func (t *Tokenizer) StateCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.states)
}

// =============================================================================
// LINE COMMITMENT
// =============================================================================

// commitLine finalizes one newline-terminated line into committed state.
func (t *Tokenizer) commitLine(st *parseState, line string) {
	line = strings.TrimSuffix(line, "\r")

	if st.inFence {
		if isFenceLine(line) {
			st.tokens = append(st.tokens, Token{
				Kind:     TokenCodeBlock,
				Language: st.fenceLang,
				Text:     strings.Join(st.fenceLines, "\n"),
			})
			st.inFence = false
			st.fenceLang = ""
			st.fenceLines = nil
			return
		}
		// Inside an open fence every line, including blank ones, is code
		// content verbatim. Never reinterpreted as markdown.
		st.fenceLines = append(st.fenceLines, line)
		return
	}

	if isFenceLine(line) {
		st.inFence = true
		st.fenceLang = fenceLanguage(line)
		return
	}

	if strings.TrimSpace(line) == "" {
		// Blank lines outside fences separate blocks; no token.
		return
	}

	st.tokens = append(st.tokens, parseLine(line))
}

// snapshot returns the committed tokens plus any provisional tail.
func (t *Tokenizer) snapshot(st *parseState) []Token {
	out := make([]Token, len(st.tokens), len(st.tokens)+1)
	copy(out, st.tokens)

	if st.inFence {
		// The open code block grows as lines arrive; the pending fragment
		// is shown as its last (incomplete) line.
		body := st.fenceLines
		if st.pending != "" {
			body = append(body[:len(body):len(body)], st.pending)
		}
		out = append(out, Token{
			Kind:        TokenCodeBlock,
			Language:    st.fenceLang,
			Text:        strings.Join(body, "\n"),
			Provisional: true,
		})
		return out
	}

	if st.pending != "" {
		// The trailing unterminated line is shown provisionally as plain
		// text so the UI has something to display. It is replaced by the
		// finalized token(s) once the newline arrives.
		out = append(out, Token{
			Kind:        TokenParagraph,
			Text:        st.pending,
			Spans:       []Span{{Kind: SpanText, Text: st.pending}},
			Provisional: true,
		})
	}
	return out
}

// =============================================================================
// LINE PARSING
// =============================================================================

// isFenceLine reports whether a line opens or closes a code fence.
func isFenceLine(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), "```")
}

// fenceLanguage extracts the language tag from a fence opener.
func fenceLanguage(line string) string {
	rest := strings.TrimPrefix(strings.TrimLeft(line, " \t"), "```")
	return strings.TrimSpace(rest)
}

// parseLine converts one finalized non-blank line into a token.
func parseLine(line string) Token {
	trimmed := strings.TrimLeft(line, " \t")

	// ATX heading: 1-6 '#' followed by a space.
	if strings.HasPrefix(trimmed, "#") {
		level := 0
		for level < len(trimmed) && trimmed[level] == '#' {
			level++
		}
		if level <= 6 && level < len(trimmed) && trimmed[level] == ' ' {
			return Token{
				Kind:  TokenHeading,
				Level: level,
				Text:  strings.TrimSpace(trimmed[level+1:]),
			}
		}
	}

	// Unordered list item.
	for _, marker := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(trimmed, marker) {
			text := trimmed[len(marker):]
			return Token{
				Kind:  TokenBullet,
				Text:  text,
				Spans: parseInline(text),
			}
		}
	}

	// Ordered list item: digits then '.' or ')' then a space.
	if num, text, ok := splitOrdered(trimmed); ok {
		return Token{
			Kind:   TokenNumbered,
			Number: num,
			Text:   text,
			Spans:  parseInline(text),
		}
	}

	return Token{
		Kind:  TokenParagraph,
		Text:  line,
		Spans: parseInline(line),
	}
}

// splitOrdered parses "12. rest" or "12) rest" into (12, "rest", true).
func splitOrdered(line string) (int, string, bool) {
	i := 0
	num := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		num = num*10 + int(line[i]-'0')
		i++
	}
	if i == 0 || i+1 >= len(line) {
		return 0, "", false
	}
	if (line[i] != '.' && line[i] != ')') || line[i+1] != ' ' {
		return 0, "", false
	}
	return num, line[i+2:], true
}

// =============================================================================
// INLINE SPANS
// =============================================================================

// parseInline splits a line into bold, italic, code and plain spans.
// Unterminated markers are treated conservatively as plain text.
func parseInline(text string) []Span {
	var spans []Span
	var plain strings.Builder

	flushPlain := func() {
		if plain.Len() > 0 {
			spans = append(spans, Span{Kind: SpanText, Text: plain.String()})
			plain.Reset()
		}
	}

	runes := []rune(text)
	i := 0
	for i < len(runes) {
		switch {
		case i+1 < len(runes) && runes[i] == '*' && runes[i+1] == '*':
			if end := indexFrom(runes, i+2, "**"); end >= 0 {
				flushPlain()
				spans = append(spans, Span{Kind: SpanBold, Text: string(runes[i+2 : end])})
				i = end + 2
				continue
			}
			plain.WriteRune(runes[i])
			i++

		case runes[i] == '*':
			if end := indexFrom(runes, i+1, "*"); end >= 0 {
				flushPlain()
				spans = append(spans, Span{Kind: SpanItalic, Text: string(runes[i+1 : end])})
				i = end + 1
				continue
			}
			plain.WriteRune(runes[i])
			i++

		case runes[i] == '`':
			if end := indexFrom(runes, i+1, "`"); end >= 0 {
				flushPlain()
				spans = append(spans, Span{Kind: SpanCode, Text: string(runes[i+1 : end])})
				i = end + 1
				continue
			}
			plain.WriteRune(runes[i])
			i++

		default:
			plain.WriteRune(runes[i])
			i++
		}
	}
	flushPlain()

	if spans == nil {
		spans = []Span{{Kind: SpanText, Text: text}}
	}
	return spans
}

// indexFrom finds the first occurrence of marker at or after start.
// Returns -1 if not found.
func indexFrom(runes []rune, start int, marker string) int {
	m := []rune(marker)
	for i := start; i+len(m) <= len(runes); i++ {
		match := true
		for j := range m {
			if runes[i+j] != m[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
