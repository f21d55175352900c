// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/glamour/styles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/streamchat/internal/markdown"
)

func TestRenderTokensPreservesText(t *testing.T) {
	r, err := NewTerminalRenderer(80)
	require.NoError(t, err)

	tokens := []markdown.Token{
		{Kind: markdown.TokenHeading, Level: 2, Text: "Setup"},
		{Kind: markdown.TokenParagraph, Text: "Install it first.", Spans: []markdown.Span{
			{Kind: markdown.SpanText, Text: "Install it "},
			{Kind: markdown.SpanBold, Text: "first"},
			{Kind: markdown.SpanText, Text: "."},
		}},
		{Kind: markdown.TokenBullet, Text: "step one", Spans: []markdown.Span{
			{Kind: markdown.SpanText, Text: "step one"},
		}},
		{Kind: markdown.TokenNumbered, Number: 2, Text: "step two", Spans: []markdown.Span{
			{Kind: markdown.SpanText, Text: "step two"},
		}},
	}

	out := r.RenderTokens(tokens)
	assert.Contains(t, out, "Setup")
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "step one")
	assert.Contains(t, out, "step two")
	assert.Equal(t, 4, len(strings.Split(out, "\n")), "one line per token")
}

func TestRenderCodeBlockKeepsCode(t *testing.T) {
	r, err := NewTerminalRenderer(80)
	require.NoError(t, err)

	tok := markdown.Token{
		Kind:     markdown.TokenCodeBlock,
		Language: "go",
		Text:     "func main() {\n\tprintln(\"hi\")\n}",
	}
	out := r.RenderTokens([]markdown.Token{tok})
	assert.Contains(t, stripANSI(out), "func main()")
	assert.Contains(t, stripANSI(out), "println")
}

func TestHighlightCodeUnknownLanguageFallsBack(t *testing.T) {
	code := "SOME ARBITRARY TEXT ::= weird"
	out := highlightCode(code, "nosuchlang")
	assert.Contains(t, stripANSI(out), "SOME ARBITRARY TEXT")
}

func TestRenderMarkdown(t *testing.T) {
	r, err := NewTerminalRenderer(80)
	require.NoError(t, err)

	out, err := r.RenderMarkdown("# Title\n\nBody text.")
	require.NoError(t, err)
	assert.Contains(t, stripANSI(out), "Title")
	assert.Contains(t, stripANSI(out), "Body text.")
	assert.False(t, strings.HasSuffix(out, "\n"), "trailing newlines trimmed")
}

func TestGlamourStyleIsKnown(t *testing.T) {
	got := glamourStyle()
	assert.Contains(t, []string{styles.NoTTYStyle, styles.DarkStyle, styles.LightStyle}, got)
}

func TestRenderFinalConcurrent(t *testing.T) {
	r, err := NewTerminalRenderer(80)
	require.NoError(t, err)
	c := NewCache(r, markdown.NewTokenizer(), DefaultOptions())

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				out, err := c.RenderFinal("# Heading "+strconv.Itoa(i%5)+"\n\nBody.", "assistant")
				if err != nil {
					t.Errorf("RenderFinal: %v", err)
					return
				}
				if !strings.Contains(stripANSI(out), "Heading") {
					t.Error("rendered output lost the heading")
					return
				}
			}
		}()
	}
	wg.Wait()
}

// stripANSI removes escape sequences so assertions can match plain text.
func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
		case r == 0x1b:
			inEscape = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
