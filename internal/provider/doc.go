// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider implements the streaming HTTP client for the hosted
// model API.
//
// The wire protocol is SSE: each event carries a JSON chunk with a content
// delta, optional tool call notifications, and a terminal completion or
// error. Consumers receive chunks over a channel (push, not poll); the
// channel closes after the terminal chunk.
package provider
