// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Message is one history entry sent with a request.
type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"` // base64-encoded attachments
}

// StreamRequest describes one streaming chat request.
type StreamRequest struct {
	// Model is the provider model identifier.
	Model string

	// History is the full message history for the chat.
	History []Message

	// ContinuationToken is the provider's previous-response reference. When
	// set, the provider resumes the same logical conversation server-side.
	ContinuationToken string

	// Attachments are base64-encoded images attached to the latest user
	// message.
	Attachments []string
}

// chatRequest is the wire-level request body.
type chatRequest struct {
	Model              string    `json:"model"`
	Messages           []Message `json:"messages"`
	Stream             bool      `json:"stream"`
	PreviousResponseID string    `json:"previous_response_id,omitempty"`
}

// =============================================================================
// STREAM CHUNK TYPES
// =============================================================================

// ToolCall describes a tool invocation reported on the stream.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
	Result    string `json:"result,omitempty"`
}

// Chunk is one unit delivered on the stream channel. Exactly one of the
// variant fields is meaningful per chunk:
//
//   - Delta:             incremental text content
//   - ToolCallStarted:   a tool invocation began
//   - ToolCallCompleted: a tool invocation finished
//   - Done:              terminal success; FinalText and ContinuationToken
//     are set
//   - Err:               terminal failure
//
// After a chunk with Done or Err, the channel closes.
type Chunk struct {
	Delta string

	ToolCallStarted   *ToolCall
	ToolCallCompleted *ToolCall

	Done              bool
	FinalText         string
	ContinuationToken string

	// Image is decoded image data generated by the provider, delivered with
	// the terminal chunk when the response included one.
	Image []byte

	Err error
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// wireToolCall is the SSE representation of a tool call notification.
type wireToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
	Result    string `json:"result,omitempty"`
	Status    string `json:"status"` // "started" or "completed"
}

// wireChunk is one decoded SSE data payload.
type wireChunk struct {
	ID      string `json:"id"`
	Choices []struct {
		Delta struct {
			Content   string         `json:"content"`
			Images    []string       `json:"images,omitempty"` // base64-encoded
			ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *wireError `json:"error,omitempty"`
}

// wireError is an error payload embedded in a response body.
type wireError struct {
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

// content returns the text delta from the first choice.
func (c *wireChunk) content() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// images returns generated image payloads from the first choice.
func (c *wireChunk) images() []string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Images
	}
	return nil
}

// toolCalls returns tool call notifications from the first choice.
func (c *wireChunk) toolCalls() []wireToolCall {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.ToolCalls
	}
	return nil
}

// done reports whether the chunk carries a finish reason.
func (c *wireChunk) done() bool {
	return len(c.Choices) > 0 && c.Choices[0].FinishReason != ""
}

// =============================================================================
// NON-STREAMING TYPES
// =============================================================================

// completionResponse is the body of a non-streaming chat completion.
type completionResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *wireError `json:"error,omitempty"`
}
