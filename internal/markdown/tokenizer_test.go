// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"reflect"
	"testing"
)

// =============================================================================
// BASIC TOKENIZATION TESTS
// =============================================================================

func TestParseHeading(t *testing.T) {
	tok := NewTokenizer()

	tokens := tok.Parse("## Setup\n", "m1")

	if len(tokens) != 1 {
		t.Fatalf("Expected 1 token, got %d", len(tokens))
	}
	if tokens[0].Kind != TokenHeading || tokens[0].Level != 2 || tokens[0].Text != "Setup" {
		t.Errorf("Unexpected heading token: %+v", tokens[0])
	}
}

func TestParseListItems(t *testing.T) {
	tok := NewTokenizer()

	tokens := tok.Parse("- first\n* second\n3. third\n", "m1")

	if len(tokens) != 3 {
		t.Fatalf("Expected 3 tokens, got %d", len(tokens))
	}
	if tokens[0].Kind != TokenBullet || tokens[0].Text != "first" {
		t.Errorf("Unexpected bullet token: %+v", tokens[0])
	}
	if tokens[1].Kind != TokenBullet || tokens[1].Text != "second" {
		t.Errorf("Unexpected bullet token: %+v", tokens[1])
	}
	if tokens[2].Kind != TokenNumbered || tokens[2].Number != 3 || tokens[2].Text != "third" {
		t.Errorf("Unexpected numbered token: %+v", tokens[2])
	}
}

func TestParseInlineSpans(t *testing.T) {
	tok := NewTokenizer()

	tokens := tok.Parse("use **bold** and `code` here\n", "m1")

	if len(tokens) != 1 {
		t.Fatalf("Expected 1 token, got %d", len(tokens))
	}
	want := []Span{
		{Kind: SpanText, Text: "use "},
		{Kind: SpanBold, Text: "bold"},
		{Kind: SpanText, Text: " and "},
		{Kind: SpanCode, Text: "code"},
		{Kind: SpanText, Text: " here"},
	}
	if !reflect.DeepEqual(tokens[0].Spans, want) {
		t.Errorf("Unexpected spans: %+v", tokens[0].Spans)
	}
}

func TestUnterminatedMarkerStaysPlain(t *testing.T) {
	tok := NewTokenizer()

	tokens := tok.Parse("a **dangling marker\n", "m1")

	if len(tokens) != 1 {
		t.Fatalf("Expected 1 token, got %d", len(tokens))
	}
	for _, span := range tokens[0].Spans {
		if span.Kind != SpanText {
			t.Errorf("Expected only plain spans, got %+v", tokens[0].Spans)
		}
	}
}

// =============================================================================
// PENDING LINE TESTS
// =============================================================================

func TestPendingLineIsProvisional(t *testing.T) {
	tok := NewTokenizer()

	tokens := tok.Parse("# Title\npartial", "m1")

	if len(tokens) != 2 {
		t.Fatalf("Expected 2 tokens, got %d", len(tokens))
	}
	if tokens[0].Provisional {
		t.Error("Committed heading should not be provisional")
	}
	if !tokens[1].Provisional || tokens[1].Kind != TokenParagraph || tokens[1].Text != "partial" {
		t.Errorf("Unexpected provisional token: %+v", tokens[1])
	}
}

func TestPendingLineFinalizedOnNewline(t *testing.T) {
	tok := NewTokenizer()

	tok.Parse("## He", "m1")
	tok.Parse("## Head", "m1")
	tokens := tok.Parse("## Heading\n", "m1")

	// The provisional plain-text token is replaced by the finalized heading.
	if len(tokens) != 1 {
		t.Fatalf("Expected 1 token, got %d", len(tokens))
	}
	if tokens[0].Kind != TokenHeading || tokens[0].Text != "Heading" || tokens[0].Provisional {
		t.Errorf("Unexpected finalized token: %+v", tokens[0])
	}
}

// =============================================================================
// DIFFERENTIAL PARSING TESTS
// =============================================================================

func TestReparseIdenticalContentIsIdempotent(t *testing.T) {
	tok := NewTokenizer()
	content := "# Title\ntext line\n- item\npending tail"

	first := tok.Parse(content, "m1")
	second := tok.Parse(content, "m1")

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Re-parsing identical content changed tokens:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestIncrementalMatchesOneShot(t *testing.T) {
	doc := "# Title\n\nIntro with **bold** text.\n\n```go\nfunc main() {\n\n\tprintln(\"hi\")\n}\n```\n\n- one\n- two\n1. first\ntrailing tail"

	oneShot := NewTokenizer().Parse(doc, "whole")

	charByChar := NewTokenizer()
	var incremental []Token
	for i := 1; i <= len(doc); i++ {
		incremental = charByChar.Parse(doc[:i], "inc")
	}

	if !reflect.DeepEqual(oneShot, incremental) {
		t.Errorf("Incremental parse diverged from one-shot:\none-shot:    %+v\nincremental: %+v", oneShot, incremental)
	}
}

func TestShrinkDiscardsStateAndReparses(t *testing.T) {
	tok := NewTokenizer()

	tok.Parse("# Original heading\nbody\n", "m1")
	tokens := tok.Parse("new text\n", "m1")

	if len(tokens) != 1 {
		t.Fatalf("Expected 1 token after shrink, got %d", len(tokens))
	}
	if tokens[0].Kind != TokenParagraph || tokens[0].Text != "new text" {
		t.Errorf("Unexpected token after shrink: %+v", tokens[0])
	}
}

func TestPrefixMismatchDiscardsState(t *testing.T) {
	tok := NewTokenizer()

	tok.Parse("abc def\n", "m1")
	tokens := tok.Parse("abc XYZ rewritten\n", "m1")

	if len(tokens) != 1 || tokens[0].Text != "abc XYZ rewritten" {
		t.Errorf("Expected full re-parse after prefix mismatch, got %+v", tokens)
	}
}

// =============================================================================
// CODE FENCE TESTS
// =============================================================================

func TestCodeFenceContainment(t *testing.T) {
	tok := NewTokenizer()

	doc := "```python\n# not a heading\n\n- not a bullet\n```\n"
	tokens := tok.Parse(doc, "m1")

	if len(tokens) != 1 {
		t.Fatalf("Expected 1 token, got %d", len(tokens))
	}
	block := tokens[0]
	if block.Kind != TokenCodeBlock || block.Provisional {
		t.Fatalf("Expected committed code block, got %+v", block)
	}
	if block.Language != "python" {
		t.Errorf("Expected language 'python', got %q", block.Language)
	}
	// Every line between the fences is captured verbatim, including the
	// blank one; nothing is reinterpreted as heading or list.
	want := "# not a heading\n\n- not a bullet"
	if block.Text != want {
		t.Errorf("Expected code %q, got %q", want, block.Text)
	}
}

func TestOpenFenceIsProvisional(t *testing.T) {
	tok := NewTokenizer()

	tokens := tok.Parse("```go\nfunc main() {\n\tpri", "m1")

	if len(tokens) != 1 {
		t.Fatalf("Expected 1 token, got %d", len(tokens))
	}
	block := tokens[0]
	if block.Kind != TokenCodeBlock || !block.Provisional {
		t.Fatalf("Expected provisional code block, got %+v", block)
	}
	if block.Language != "go" {
		t.Errorf("Expected language 'go', got %q", block.Language)
	}
	if block.Text != "func main() {\n\tpri" {
		t.Errorf("Unexpected provisional code: %q", block.Text)
	}
}

func TestFenceCloseCommitsBlock(t *testing.T) {
	tok := NewTokenizer()

	tok.Parse("```\ncode line\n", "m1")
	tokens := tok.Parse("```\ncode line\n```\nafter\n", "m1")

	if len(tokens) != 2 {
		t.Fatalf("Expected 2 tokens, got %d", len(tokens))
	}
	if tokens[0].Kind != TokenCodeBlock || tokens[0].Provisional || tokens[0].Text != "code line" {
		t.Errorf("Unexpected code block: %+v", tokens[0])
	}
	if tokens[1].Kind != TokenParagraph || tokens[1].Text != "after" {
		t.Errorf("Unexpected trailing token: %+v", tokens[1])
	}
}

// =============================================================================
// STATE LIFECYCLE TESTS
// =============================================================================

func TestClearState(t *testing.T) {
	tok := NewTokenizer()

	tok.Parse("content\n", "m1")
	tok.Parse("content\n", "m2")
	if tok.StateCount() != 2 {
		t.Fatalf("Expected 2 live states, got %d", tok.StateCount())
	}

	tok.ClearState("m1")
	if tok.StateCount() != 1 {
		t.Errorf("Expected 1 live state after ClearState, got %d", tok.StateCount())
	}

	tok.ClearAll()
	if tok.StateCount() != 0 {
		t.Errorf("Expected 0 live states after ClearAll, got %d", tok.StateCount())
	}
}

func TestIndependentMessagesDoNotInterfere(t *testing.T) {
	tok := NewTokenizer()

	a := tok.Parse("# A\n", "a")
	b := tok.Parse("plain b\n", "b")

	if a[0].Kind != TokenHeading {
		t.Errorf("Message a: expected heading, got %+v", a[0])
	}
	if b[0].Kind != TokenParagraph {
		t.Errorf("Message b: expected paragraph, got %+v", b[0])
	}
}
