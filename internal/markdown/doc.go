// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package markdown provides a differential markdown tokenizer for streaming
// message content.
//
// The tokenizer keeps per-message parse state so that each call only
// processes the newly-arrived suffix of a growing text, never re-scanning
// the already-committed prefix. A high-frequency token stream (tens of
// updates per second) therefore costs O(new text) per update instead of
// O(full text).
package markdown
