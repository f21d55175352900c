// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"

	"github.com/jeranaias/streamchat/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrChatNotFound is returned when a chat doesn't exist.
	ErrChatNotFound = errors.New("chat not found")

	// ErrMessageNotFound is returned when a message doesn't exist.
	ErrMessageNotFound = errors.New("message not found")
)

// =============================================================================
// CHANGE NOTIFICATIONS
// =============================================================================

// ChangeKind identifies what a change notification refers to.
type ChangeKind int

const (
	// ChangeChat means chat metadata changed (title, token, deletion).
	ChangeChat ChangeKind = iota

	// ChangeMessages means a chat's message list changed.
	ChangeMessages
)

// Change is one change notification. Emitted for every mutation so that
// external observers (cloud sync, a second window) can refresh.
type Change struct {
	Kind   ChangeKind
	ChatID string
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is the persistence collaborator consumed by the pipeline and the
// session coordinator.
type Store interface {
	// LoadMessages returns all messages of a chat, oldest first.
	LoadMessages(ctx context.Context, chatID string) ([]*model.Message, error)

	// SaveMessage inserts a message. The streaming flag marks content that
	// is still being appended to.
	SaveMessage(ctx context.Context, msg *model.Message, chatID string, streaming bool) error

	// UpdateMessage replaces a stored message's content and streaming flag.
	UpdateMessage(ctx context.Context, msg *model.Message, chatID string, streaming bool) error

	// DeleteMessage removes a message.
	DeleteMessage(ctx context.Context, messageID string) error

	// SetContinuationToken records the provider's continuation token for
	// the chat's next turn.
	SetContinuationToken(ctx context.Context, chatID, token string) error

	// SetTitle updates a chat's title.
	SetTitle(ctx context.Context, chatID, title string) error

	// SetModel updates the model a chat's future turns are sent to.
	SetModel(ctx context.Context, chatID, model string) error

	// SetDraft stores provisional (unsent) input text for a chat.
	SetDraft(ctx context.Context, chatID, draft string) error

	// ListChats returns all chats, most recently active first.
	ListChats(ctx context.Context) ([]*model.ChatSession, error)

	// GetChat returns one chat by id.
	GetChat(ctx context.Context, chatID string) (*model.ChatSession, error)

	// CreateChat inserts a new chat.
	CreateChat(ctx context.Context, chat *model.ChatSession) error

	// DeleteChat removes a chat and its messages.
	DeleteChat(ctx context.Context, chatID string) error

	// Changes is the change-notification stream. Notifications are
	// best-effort: slow consumers may miss intermediate updates but always
	// observe the latest state on reload.
	Changes() <-chan Change

	// Close releases the underlying database.
	Close() error
}
