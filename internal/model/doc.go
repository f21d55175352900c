// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared across the streaming
// pipeline: messages, chat sessions, tool calls, and the ordered stream
// events delivered to the UI layer.
package model
