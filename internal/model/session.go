// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// CHAT SESSION TYPE
// =============================================================================

// ChatSession represents one chat and its provider-side conversation state.
//
// ContinuationToken is the provider's "previous response" reference. Sending
// it with the next request resumes the same logical conversation server-side
// without resending full history. It is opaque to this client and updated
// after every completed stream.
type ChatSession struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Model string `json:"model"`

	// ContinuationToken threads multi-turn context across requests.
	ContinuationToken string `json:"continuation_token,omitempty"`

	// Draft holds provisional (unsent) input text for the chat.
	Draft string `json:"draft,omitempty"`

	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`

	MessageCount int `json:"message_count,omitempty"`
}

// NewChatSession creates a new chat session for the given model.
func NewChatSession(modelName string) *ChatSession {
	now := time.Now()
	return &ChatSession{
		ID:           generateChatID(),
		Title:        "New chat",
		Model:        modelName,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// generateChatID creates a unique chat ID.
func generateChatID() string {
	return "chat_" + uuid.NewString()
}
