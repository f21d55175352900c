// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package textbuf provides a fixed-capacity circular text buffer used to
// accumulate streamed response content with O(1) amortized append.
//
// The buffer is newest-biased: once the logical content exceeds capacity the
// oldest characters are silently discarded. Callers that need the complete
// text for persistence must persist incrementally rather than relying on
// buffer retention.
package textbuf
