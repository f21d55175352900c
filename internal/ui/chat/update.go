// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/streamchat/internal/model"
)

// =============================================================================
// UPDATE LOOP
// =============================================================================

// Update handles Bubble Tea messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case streamEventMsg:
		return m.handleStreamEvent(msg.event)

	case eventsClosedMsg:
		return m, tea.Quit

	case renderTickMsg:
		if m.viewportDirty {
			m.viewportDirty = false
			m.refreshViewport()
		}
		if m.state == StateStreaming {
			return m, renderTick()
		}
		return m, nil

	case chatSwitchedMsg:
		m.setTranscript(msg.messages)
		m.streamingID = ""
		m.state = StateReady
		m.statusMsg = ""
		m.errMsg = ""
		m.showList = false
		m.input.SetValue(msg.chat.Draft)
		m.refreshViewport()
		m.viewport.GotoBottom()
		return m, nil

	case chatListMsg:
		m.chats = msg.chats
		if m.listIndex >= len(m.chats) {
			m.listIndex = 0
		}
		m.showList = true
		return m, nil

	case errMsg:
		m.errMsg = msg.err.Error()
		return m, nil

	case ConfigReloadedMsg:
		m.modelName = msg.Config.DefaultModel
		m.showStats = msg.Config.UI.ShowStats
		m.cache.SetBounds(msg.Config.Cache.MaxEntries, time.Duration(msg.Config.Cache.TTLSecs)*time.Second)
		m.statusMsg = "config reloaded"
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleResize fits the viewport and input to the terminal.
func (m *Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	chromeHeight := 4 // header, status, input
	if !m.ready {
		m.viewport = viewport.New(msg.Width, msg.Height-chromeHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - chromeHeight
	}
	m.input.Width = msg.Width - 4
	m.refreshViewport()
	return m, nil
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showList {
		return m.handleListKey(msg)
	}

	switch {
	case key.Matches(msg, m.keyMap.Quit):
		m.coord.SaveDraft(context.Background(), m.input.Value())
		m.coord.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Cancel):
		if m.state == StateStreaming {
			m.coord.CancelStream()
			m.dropStreamingEntry()
			m.state = StateReady
			m.statusMsg = "cancelled"
			m.refreshViewport()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Send):
		return m.handleSend()

	case key.Matches(msg, m.keyMap.NewChat):
		return m, m.newChat()

	case key.Matches(msg, m.keyMap.ChatList):
		return m, m.loadChatList()

	case key.Matches(msg, m.keyMap.UpdateModel):
		if err := m.coord.UpdateModel(context.Background(), m.modelName); err != nil {
			m.errMsg = err.Error()
		} else {
			m.statusMsg = "model set to " + m.modelName
		}
		return m, nil

	case key.Matches(msg, m.keyMap.ScrollUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.ScrollDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleListKey navigates the chat picker overlay.
func (m *Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.listIndex > 0 {
			m.listIndex--
		}
	case "down", "j":
		if m.listIndex < len(m.chats)-1 {
			m.listIndex++
		}
	case "enter":
		if m.listIndex < len(m.chats) {
			return m, m.switchChat(m.chats[m.listIndex].ID)
		}
	case "ctrl+d":
		if m.listIndex < len(m.chats) {
			return m, m.deleteChat(m.chats[m.listIndex].ID)
		}
	case "esc", "ctrl+l":
		m.showList = false
	case "ctrl+c":
		m.coord.Close()
		return m, tea.Quit
	}
	return m, nil
}

// handleSend starts a streaming turn with the input text.
func (m *Model) handleSend() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if err := m.coord.SendMessage(text, nil); err != nil {
		m.errMsg = err.Error()
		return m, nil
	}

	// Sending during a stream supersedes it; the unfinished reply goes away.
	m.dropStreamingEntry()

	userMsg := model.NewUserMessage(text)
	m.transcript = append(m.transcript, entry{msg: userMsg, rendered: text})
	m.input.SetValue("")
	m.state = StateStreaming
	m.statusMsg = ""
	m.errMsg = ""
	m.refreshViewport()
	m.viewport.GotoBottom()
	return m, renderTick()
}

// =============================================================================
// STREAM EVENTS
// =============================================================================

// handleStreamEvent applies one pipeline event to the transcript.
func (m *Model) handleStreamEvent(ev model.StreamEvent) (tea.Model, tea.Cmd) {
	next := m.waitForEvent()

	switch ev.Kind {
	case model.EventStarted:
		m.streamingID = ev.Message.ID
		m.transcript = append(m.transcript, entry{msg: ev.Message, rendered: ev.Rendered})
		m.viewportDirty = true

	case model.EventUpdated:
		if i := m.findEntry(ev.Message.ID); i >= 0 {
			m.transcript[i] = entry{msg: ev.Message, rendered: ev.Rendered}
			m.viewportDirty = true
		}

	case model.EventCompleted:
		if i := m.findEntry(ev.Message.ID); i >= 0 {
			m.transcript[i] = entry{msg: ev.Message, rendered: ev.Rendered}
		} else if ev.Message != nil && ev.Message.HasVisibleContent() {
			m.transcript = append(m.transcript, entry{msg: ev.Message, rendered: ev.Rendered})
		}
		m.streamingID = ""
		m.state = StateReady
		if m.showStats && ev.Message != nil {
			m.statusMsg = formatStats(ev.Message)
		}
		m.refreshViewport()
		m.viewport.GotoBottom()

	case model.EventToolCallStarted:
		if ev.ToolCall != nil {
			m.statusMsg = "running " + ev.ToolCall.Name + "..."
		}

	case model.EventToolCallCompleted:
		if ev.ToolCall != nil {
			m.statusMsg = ev.ToolCall.Name + " finished"
		}

	case model.EventError:
		m.dropStreamingEntryIfEmpty()
		m.streamingID = ""
		m.state = StateReady
		if ev.Err != nil {
			m.errMsg = userFacing(ev.Err)
		}
		m.refreshViewport()
	}

	return m, next
}

// dropStreamingEntry removes the in-progress assistant message, if any.
func (m *Model) dropStreamingEntry() {
	if m.streamingID == "" {
		return
	}
	if i := m.findEntry(m.streamingID); i >= 0 {
		m.transcript = append(m.transcript[:i], m.transcript[i+1:]...)
	}
	m.streamingID = ""
}

// dropStreamingEntryIfEmpty removes the in-progress message only when it
// never received visible content; partial replies stay on screen.
func (m *Model) dropStreamingEntryIfEmpty() {
	if m.streamingID == "" {
		return
	}
	if i := m.findEntry(m.streamingID); i >= 0 && !m.transcript[i].msg.HasVisibleContent() {
		m.transcript = append(m.transcript[:i], m.transcript[i+1:]...)
	}
}
