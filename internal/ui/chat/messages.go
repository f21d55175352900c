// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/model"
)

// =============================================================================
// BUBBLE TEA MESSAGES
// =============================================================================

// streamEventMsg wraps one pipeline event for the Update loop.
type streamEventMsg struct {
	event model.StreamEvent
}

// eventsClosedMsg signals that the coordinator's event channel closed.
type eventsClosedMsg struct{}

// chatListMsg delivers the chat list for the picker overlay.
type chatListMsg struct {
	chats []*model.ChatSession
}

// chatSwitchedMsg delivers the messages of a newly activated chat.
type chatSwitchedMsg struct {
	chat     *model.ChatSession
	messages []*model.Message
}

// renderTickMsg paces viewport redraws during streaming.
type renderTickMsg time.Time

// errMsg carries an error to display in the status line.
type errMsg struct {
	err error
}

// ConfigReloadedMsg is sent from outside the program when the config file
// changes on disk. Only UI-safe settings are applied to a running session.
type ConfigReloadedMsg struct {
	Config *config.Config
}

// =============================================================================
// COMMANDS
// =============================================================================

// waitForEvent blocks on the coordinator's event channel and delivers the
// next event. Re-issued by Update after each delivery.
func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.coord.Events()
		if !ok {
			return eventsClosedMsg{}
		}
		return streamEventMsg{event: ev}
	}
}

// renderTick caps streaming redraws at the configured frame rate.
func renderTick() tea.Cmd {
	return tea.Tick(renderInterval, func(t time.Time) tea.Msg {
		return renderTickMsg(t)
	})
}

// loadChatList fetches all chats for the picker.
func (m *Model) loadChatList() tea.Cmd {
	return func() tea.Msg {
		chats, err := m.coord.ListChats(context.Background())
		if err != nil {
			return errMsg{err: err}
		}
		return chatListMsg{chats: chats}
	}
}

// switchChat activates a chat and loads its history.
func (m *Model) switchChat(chatID string) tea.Cmd {
	return func() tea.Msg {
		chat, messages, err := m.coord.SwitchChat(context.Background(), chatID)
		if err != nil {
			return errMsg{err: err}
		}
		return chatSwitchedMsg{chat: chat, messages: messages}
	}
}

// newChat creates and activates a fresh chat.
func (m *Model) newChat() tea.Cmd {
	return func() tea.Msg {
		chat, err := m.coord.NewChat(context.Background(), m.modelName)
		if err != nil {
			return errMsg{err: err}
		}
		return chatSwitchedMsg{chat: chat, messages: nil}
	}
}

// deleteChat removes a chat, then reloads the picker.
func (m *Model) deleteChat(chatID string) tea.Cmd {
	return func() tea.Msg {
		if err := m.coord.DeleteChat(context.Background(), chatID); err != nil {
			return errMsg{err: err}
		}
		chats, err := m.coord.ListChats(context.Background())
		if err != nil {
			return errMsg{err: err}
		}
		return chatListMsg{chats: chats}
	}
}
