// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pipeline orchestrates one provider stream per chat session.
//
// A run maps raw provider chunks into the ordered domain event sequence
// (started, updated*, completed|error, with tool-call events interleaved),
// drives the waiting/receiving state machine, checkpoints streamed content
// to storage, and threads the conversation continuation token across turns.
//
// Content reaching the user takes priority over durability of intermediate
// checkpoints: storage failures during a stream are logged and swallowed,
// with one best-effort retry, and streaming continues in memory.
package pipeline
