// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/provider"
	"github.com/jeranaias/streamchat/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	userLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	assistantLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	listSelectedStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212"))

	listItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat screen.
func (m *Model) View() string {
	if !m.ready {
		return "starting..."
	}
	if m.showList {
		return m.viewChatList()
	}

	var b strings.Builder
	b.WriteString(m.viewHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.viewStatus())
	b.WriteString("\n")
	b.WriteString("> " + m.input.View())
	return b.String()
}

// viewHeader shows the chat title and model name.
func (m *Model) viewHeader() string {
	title := "streamchat"
	if chat := m.coord.ActiveChat(); chat != nil {
		title = chat.Title
	}
	left := headerStyle.Render(util.TruncateWidth(title, m.width-20))
	right := statusStyle.Render(m.modelName)

	gap := m.width - util.StringWidth(title) - util.StringWidth(m.modelName)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

// viewStatus shows the spinner, stats, or the last error.
func (m *Model) viewStatus() string {
	switch {
	case m.errMsg != "":
		return errorStyle.Render(util.TruncateWidth(m.errMsg, m.width))
	case m.state == StateStreaming:
		return statusStyle.Render(m.spinner.View() + " " + m.streamingLabel())
	case m.statusMsg != "":
		return statusStyle.Render(util.TruncateWidth(m.statusMsg, m.width))
	default:
		return statusStyle.Render("enter send · ctrl+n new · ctrl+l chats · ctrl+c quit")
	}
}

// streamingLabel distinguishes waiting from receiving.
func (m *Model) streamingLabel() string {
	if m.streamingID == "" {
		return "waiting..."
	}
	return "responding... (esc to cancel)"
}

// viewChatList renders the chat picker overlay.
func (m *Model) viewChatList() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Chats"))
	b.WriteString("\n\n")

	if len(m.chats) == 0 {
		b.WriteString(statusStyle.Render("no chats yet"))
	}
	for i, chat := range m.chats {
		line := fmt.Sprintf("%s  (%d messages)", chat.Title, chat.MessageCount)
		line = util.TruncateWidth(line, m.width-4)
		if i == m.listIndex {
			b.WriteString(listSelectedStyle.Render("> " + line))
		} else {
			b.WriteString(listItemStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(statusStyle.Render("enter open · ctrl+d delete · esc back"))
	return b.String()
}

// =============================================================================
// VIEWPORT CONTENT
// =============================================================================

// refreshViewport rebuilds the viewport content from the transcript.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	var b strings.Builder
	for i, e := range m.transcript {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderEntry(e))
		b.WriteString("\n")
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(b.String())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// renderEntry renders one transcript row with its role label.
func (m *Model) renderEntry(e entry) string {
	var label string
	switch e.msg.Role {
	case model.RoleUser:
		label = userLabelStyle.Render("You")
	case model.RoleAssistant:
		label = assistantLabelStyle.Render("Assistant")
	default:
		label = statusStyle.Render(e.msg.Role.DisplayName())
	}
	return label + "\n" + strings.TrimRight(e.rendered, "\n")
}

// =============================================================================
// HELPERS
// =============================================================================

// formatStats summarizes generation statistics for the status line.
func formatStats(msg *model.Message) string {
	if msg.TokenCount == 0 {
		return ""
	}
	return fmt.Sprintf("%d tokens · %.1f tok/s · first token %dms",
		msg.TokenCount,
		msg.TokensPerSec,
		msg.TTFT.Milliseconds())
}

// userFacing maps a stream error to a short human-readable message.
func userFacing(err error) string {
	return provider.Classify(err).UserMessage()
}
