// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"strings"
)

// =============================================================================
// SSE STREAM READER
// =============================================================================

// maxLineSize is the largest accepted SSE line (256KB). Guards against a
// misbehaving server streaming an unbounded line.
const maxLineSize = 256 * 1024

// streamReader parses SSE events line by line and converts them to chunks.
type streamReader struct {
	scanner *bufio.Scanner

	// accumulator builds the full response text for the terminal chunk.
	accumulator strings.Builder

	// responseID is the last chunk id seen; on completion it becomes the
	// continuation token for the next turn.
	responseID string

	// image is the last generated image payload seen, delivered with the
	// terminal chunk.
	image []byte
}

// newStreamReader creates a reader over the SSE response body.
func newStreamReader(r io.Reader) *streamReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &streamReader{scanner: scanner}
}

// process reads the stream until the terminal event, the context is
// cancelled, or the connection drops, delivering chunks on ch. Once the
// context is cancelled nothing more is delivered: in-flight data is
// discarded rather than applied.
func (s *streamReader) process(ctx context.Context, ch chan<- Chunk) {
	for s.scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			// Blank keep-alive or SSE comment.
			continue
		}

		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)

		if data == "[DONE]" {
			s.deliver(ctx, ch, Chunk{
				Done:              true,
				FinalText:         s.accumulator.String(),
				ContinuationToken: s.responseID,
				Image:             s.image,
			})
			return
		}

		var chunk wireChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Skip malformed events rather than aborting the stream.
			continue
		}

		if chunk.Error != nil {
			s.deliver(ctx, ch, Chunk{Err: &Error{
				Kind:    KindInvalidContent,
				Message: chunk.Error.Message,
			}})
			return
		}

		if chunk.ID != "" {
			s.responseID = chunk.ID
		}

		for _, img := range chunk.images() {
			decoded, err := base64.StdEncoding.DecodeString(img)
			if err != nil {
				// Skip undecodable payloads, keep the stream alive.
				continue
			}
			s.image = decoded
		}

		for _, tc := range chunk.toolCalls() {
			call := &ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments, Result: tc.Result}
			if tc.Status == "completed" {
				if !s.deliver(ctx, ch, Chunk{ToolCallCompleted: call}) {
					return
				}
			} else {
				if !s.deliver(ctx, ch, Chunk{ToolCallStarted: call}) {
					return
				}
			}
		}

		if content := chunk.content(); content != "" {
			s.accumulator.WriteString(content)
			if !s.deliver(ctx, ch, Chunk{Delta: content}) {
				return
			}
		}

		if chunk.done() {
			s.deliver(ctx, ch, Chunk{
				Done:              true,
				FinalText:         s.accumulator.String(),
				ContinuationToken: s.responseID,
				Image:             s.image,
			})
			return
		}
	}

	// The connection dropped without a terminal event.
	if err := s.scanner.Err(); err != nil {
		s.deliver(ctx, ch, Chunk{Err: classifyTransport(err)})
		return
	}
	s.deliver(ctx, ch, Chunk{Err: &Error{
		Kind:    KindTransport,
		Message: "stream ended unexpectedly",
	}})
}

// deliver sends a chunk unless the context is done. Reports whether the
// send happened.
func (s *streamReader) deliver(ctx context.Context, ch chan<- Chunk, chunk Chunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
