// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// TOOL CALL TYPE
// =============================================================================

// ToolCall describes a provider-initiated tool invocation observed on the
// stream. The pipeline forwards these as their own event variants; they do
// not affect the waiting/receiving state.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
	Result    string `json:"result,omitempty"`
}

// =============================================================================
// STREAM EVENT TYPE
// =============================================================================

// EventKind identifies the variant of a StreamEvent.
type EventKind int

const (
	// EventStarted is emitted once per stream, when the first visible
	// (non-whitespace) content arrives.
	EventStarted EventKind = iota

	// EventUpdated is emitted for each delta after the stream has started.
	EventUpdated

	// EventCompleted is the successful terminal event, exactly one per stream.
	EventCompleted

	// EventToolCallStarted reports a tool invocation beginning mid-stream.
	EventToolCallStarted

	// EventToolCallCompleted reports a tool invocation finishing mid-stream.
	EventToolCallCompleted

	// EventError is the failing terminal event, exactly one per stream.
	EventError
)

// String returns the event kind name for logging.
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventUpdated:
		return "updated"
	case EventCompleted:
		return "completed"
	case EventToolCallStarted:
		return "tool_call_started"
	case EventToolCallCompleted:
		return "tool_call_completed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the event ends its stream.
func (k EventKind) IsTerminal() bool {
	return k == EventCompleted || k == EventError
}

// StreamEvent is one entry in the ordered event sequence a stream produces:
// exactly one started, zero or more updated, then exactly one completed or
// error. Tool call events may interleave before the terminal event.
type StreamEvent struct {
	Kind   EventKind
	ChatID string

	// Message is a snapshot of the assistant message for started, updated
	// and completed events.
	Message *Message

	// Rendered carries the incrementally rendered content for the snapshot.
	Rendered string

	// ToolCall is set for the tool call variants.
	ToolCall *ToolCall

	// Err is set for error events.
	Err error
}
