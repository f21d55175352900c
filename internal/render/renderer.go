// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/streamchat/internal/markdown"
)

// =============================================================================
// RENDERER INTERFACE
// =============================================================================

// Renderer turns parsed tokens or raw markdown into terminal-styled text.
type Renderer interface {
	// RenderTokens renders a streaming token list. Cheap per call; used on
	// every delta while a message is streaming.
	RenderTokens(tokens []markdown.Token) string

	// RenderMarkdown renders a complete markdown document. More expensive;
	// used once a message has finished streaming.
	RenderMarkdown(content string) (string, error)
}

// =============================================================================
// TERMINAL RENDERER
// =============================================================================

// TerminalRenderer renders tokens with lipgloss styles and chroma syntax
// highlighting, and finished documents with glamour.
type TerminalRenderer struct {
	wordWrap int
	glamour  *glamour.TermRenderer

	headingStyle lipgloss.Style
	bulletStyle  lipgloss.Style
	boldStyle    lipgloss.Style
	italicStyle  lipgloss.Style
	codeStyle    lipgloss.Style
}

// NewTerminalRenderer creates a renderer with the given word wrap width.
func NewTerminalRenderer(wordWrap int) (*TerminalRenderer, error) {
	if wordWrap <= 0 {
		wordWrap = 80
	}

	gr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(glamourStyle()),
		glamour.WithWordWrap(wordWrap),
	)
	if err != nil {
		return nil, err
	}

	return &TerminalRenderer{
		wordWrap:     wordWrap,
		glamour:      gr,
		headingStyle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		bulletStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		boldStyle:    lipgloss.NewStyle().Bold(true),
		italicStyle:  lipgloss.NewStyle().Italic(true),
		codeStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
	}, nil
}

// RenderTokens renders a streaming token list line by line.
func (r *TerminalRenderer) RenderTokens(tokens []markdown.Token) string {
	var sb strings.Builder

	for i, tok := range tokens {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch tok.Kind {
		case markdown.TokenHeading:
			prefix := strings.Repeat("#", tok.Level) + " "
			sb.WriteString(r.headingStyle.Render(prefix + tok.Text))

		case markdown.TokenBullet:
			sb.WriteString(r.bulletStyle.Render("• "))
			sb.WriteString(r.renderSpans(tok.Spans))

		case markdown.TokenNumbered:
			sb.WriteString(r.bulletStyle.Render(strconv.Itoa(tok.Number) + ". "))
			sb.WriteString(r.renderSpans(tok.Spans))

		case markdown.TokenCodeBlock:
			sb.WriteString(r.renderCodeBlock(tok))

		default:
			sb.WriteString(r.renderSpans(tok.Spans))
		}
	}

	return sb.String()
}

// RenderMarkdown renders a complete document with glamour.
func (r *TerminalRenderer) RenderMarkdown(content string) (string, error) {
	out, err := r.glamour.Render(content)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

// renderSpans renders the inline spans of a line token.
func (r *TerminalRenderer) renderSpans(spans []markdown.Span) string {
	var sb strings.Builder
	for _, span := range spans {
		switch span.Kind {
		case markdown.SpanBold:
			sb.WriteString(r.boldStyle.Render(span.Text))
		case markdown.SpanItalic:
			sb.WriteString(r.italicStyle.Render(span.Text))
		case markdown.SpanCode:
			sb.WriteString(r.codeStyle.Render(span.Text))
		default:
			sb.WriteString(span.Text)
		}
	}
	return sb.String()
}

// renderCodeBlock renders a fenced code block with chroma highlighting.
// Provisional (still-open) blocks are rendered the same way; highlighting a
// partial program is fine since chroma recovers from truncated input.
func (r *TerminalRenderer) renderCodeBlock(tok markdown.Token) string {
	highlighted := highlightCode(tok.Text, tok.Language)

	var sb strings.Builder
	if tok.Language != "" {
		sb.WriteString(r.codeStyle.Render(tok.Language))
		sb.WriteString("\n")
	}
	sb.WriteString(highlighted)
	return sb.String()
}

// =============================================================================
// SYNTAX HIGHLIGHTING
// =============================================================================

// highlightCode applies syntax highlighting using the chroma library.
// Returns the original code if highlighting fails.
func highlightCode(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}

// glamourStyle picks a glamour style matching the terminal background.
// Pipes and dumb terminals get the unstyled renderer.
func glamourStyle() string {
	if termenv.ColorProfile() == termenv.Ascii {
		return styles.NoTTYStyle
	}
	if termenv.HasDarkBackground() {
		return styles.DarkStyle
	}
	return styles.LightStyle
}
