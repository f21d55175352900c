// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

// =============================================================================
// TOKEN TYPES
// =============================================================================

// TokenKind identifies the structural kind of a token.
type TokenKind int

const (
	// TokenParagraph is a plain text line with inline spans.
	TokenParagraph TokenKind = iota

	// TokenHeading is an ATX heading (# through ######).
	TokenHeading

	// TokenBullet is an unordered list item (-, * or +).
	TokenBullet

	// TokenNumbered is an ordered list item (1. or 1)).
	TokenNumbered

	// TokenCodeBlock is a fenced code block. While the fence is still open
	// the block is emitted as a provisional token that grows line by line.
	TokenCodeBlock
)

// String returns the token kind name.
func (k TokenKind) String() string {
	switch k {
	case TokenParagraph:
		return "paragraph"
	case TokenHeading:
		return "heading"
	case TokenBullet:
		return "bullet"
	case TokenNumbered:
		return "numbered"
	case TokenCodeBlock:
		return "code_block"
	default:
		return "unknown"
	}
}

// SpanKind identifies the kind of an inline span.
type SpanKind int

const (
	SpanText SpanKind = iota
	SpanBold
	SpanItalic
	SpanCode
)

// Span is one inline run of styled text within a line token.
type Span struct {
	Kind SpanKind
	Text string
}

// Token is one structural element of the parsed message.
type Token struct {
	Kind TokenKind

	// Level is the heading level (1-6) for TokenHeading.
	Level int

	// Number is the ordinal for TokenNumbered.
	Number int

	// Language is the fence language tag for TokenCodeBlock.
	Language string

	// Text is the raw text: heading/item text, paragraph content, or the
	// verbatim code block body.
	Text string

	// Spans is the inline breakdown for paragraph, bullet and numbered
	// tokens. Empty for headings and code blocks.
	Spans []Span

	// Provisional marks a token built from a not-yet-terminated line or an
	// open code fence. The next call that completes the line replaces it
	// with the finalized token(s).
	Provisional bool
}
