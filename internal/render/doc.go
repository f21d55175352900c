// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render provides memoized rendering of message content.
//
// The Cache maps (content, role) to rendered output with count- and
// age-based eviction, plus a streaming path keyed by message identity for
// content that changes on every call. Rendering itself is delegated to a
// Renderer; the cache's own responsibility is solely memoization and
// eviction.
package render
