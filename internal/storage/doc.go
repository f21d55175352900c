// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides durable persistence for chats and messages.
//
// The pipeline checkpoints streaming content here; checkpoint failures are
// logged and swallowed by the caller so the user still sees the response.
// A change-notification channel reports external modifications (for example
// by a sync process) so the UI can refresh.
package storage
