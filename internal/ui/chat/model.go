// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/render"
	"github.com/jeranaias/streamchat/internal/session"
)

// renderInterval caps streaming redraws at roughly 30fps. Redrawing on
// every delta causes flicker and wastes CPU.
const renderInterval = 33 * time.Millisecond

// =============================================================================
// CHAT STATE
// =============================================================================

// State represents the current state of the chat view.
type State int

const (
	StateReady     State = iota // Ready for input
	StateStreaming              // Receiving streaming response
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// entry is one transcript row: the message plus its rendered form.
type entry struct {
	msg      *model.Message
	rendered string
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	// State
	state State

	// Dimensions
	width  int
	height int

	// Collaborators
	coord *session.Coordinator
	cache *render.Cache

	// Transcript of the active chat
	transcript []entry

	// Current streaming message
	streamingID string

	// Frame pacing: the latest streaming render waits for the next tick
	// instead of redrawing on every delta.
	viewportDirty bool

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	keyMap   KeyMap

	// Chat picker overlay
	showList  bool
	chats     []*model.ChatSession
	listIndex int

	// Status
	modelName string
	showStats bool
	statusMsg string
	errMsg    string

	ready bool
}

// New creates the chat view over the coordinator and render cache.
func New(coord *session.Coordinator, cache *render.Cache, cfg *config.Config) *Model {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 0
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		state:     StateReady,
		coord:     coord,
		cache:     cache,
		input:     input,
		spinner:   sp,
		keyMap:    DefaultKeyMap(),
		modelName: cfg.DefaultModel,
		showStats: cfg.UI.ShowStats,
	}
}

// Init starts event delivery and the spinner.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), m.spinner.Tick, m.bootstrap())
}

// bootstrap activates the most recent chat, or creates one if none exist.
func (m *Model) bootstrap() tea.Cmd {
	return func() tea.Msg {
		chats, err := m.coord.ListChats(context.Background())
		if err != nil {
			return errMsg{err: err}
		}
		if len(chats) == 0 {
			chat, err := m.coord.NewChat(context.Background(), m.modelName)
			if err != nil {
				return errMsg{err: err}
			}
			return chatSwitchedMsg{chat: chat}
		}
		chat, messages, err := m.coord.SwitchChat(context.Background(), chats[0].ID)
		if err != nil {
			return errMsg{err: err}
		}
		return chatSwitchedMsg{chat: chat, messages: messages}
	}
}

// setTranscript replaces the transcript with rendered history.
func (m *Model) setTranscript(messages []*model.Message) {
	m.transcript = m.transcript[:0]
	for _, msg := range messages {
		m.transcript = append(m.transcript, entry{msg: msg, rendered: m.renderStored(msg)})
	}
}

// renderStored renders a persisted (non-streaming) message.
func (m *Model) renderStored(msg *model.Message) string {
	if msg.Role != model.RoleAssistant {
		return msg.Content
	}
	rendered, err := m.cache.RenderFinal(msg.Content, msg.Role.String())
	if err != nil {
		return msg.Content
	}
	return rendered
}

// findEntry returns the transcript index of a message, or -1.
func (m *Model) findEntry(messageID string) int {
	for i := range m.transcript {
		if m.transcript[i].msg.ID == messageID {
			return i
		}
	}
	return -1
}
