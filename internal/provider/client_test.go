// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// sseHandler writes the given SSE lines and closes the response.
func sseHandler(t *testing.T, lines []string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("ResponseWriter does not support flushing")
		}
		for _, line := range lines {
			_, _ = w.Write([]byte(line + "\n\n"))
			flusher.Flush()
		}
	}
}

func newTestClient(url string) *Client {
	return NewClient(&ClientConfig{BaseURL: url, APIKey: "test-key", DefaultModel: "test-model"})
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

func TestOpenStreamDeliversDeltasAndCompletion(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		`data: {"id":"resp_1","choices":[{"delta":{"content":"Hello"}}]}`,
		`data: {"id":"resp_1","choices":[{"delta":{"content":" world"}}]}`,
		`data: {"id":"resp_2","choices":[{"delta":{},"finish_reason":"stop"}]}`,
	}))
	defer srv.Close()

	ch, err := newTestClient(srv.URL).OpenStream(context.Background(), StreamRequest{
		History: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}

	var deltas []string
	var final Chunk
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("Unexpected stream error: %v", chunk.Err)
		}
		if chunk.Done {
			final = chunk
			continue
		}
		deltas = append(deltas, chunk.Delta)
	}

	if len(deltas) != 2 || deltas[0] != "Hello" || deltas[1] != " world" {
		t.Errorf("Unexpected deltas: %v", deltas)
	}
	if !final.Done || final.FinalText != "Hello world" {
		t.Errorf("Unexpected final chunk: %+v", final)
	}
	if final.ContinuationToken != "resp_2" {
		t.Errorf("Expected continuation token 'resp_2', got %q", final.ContinuationToken)
	}
}

func TestOpenStreamForwardsToolCalls(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		`data: {"id":"r1","choices":[{"delta":{"tool_calls":[{"id":"t1","name":"search","status":"started"}]}}]}`,
		`data: {"id":"r1","choices":[{"delta":{"tool_calls":[{"id":"t1","name":"search","status":"completed","result":"ok"}]}}]}`,
		`data: [DONE]`,
	}))
	defer srv.Close()

	ch, err := newTestClient(srv.URL).OpenStream(context.Background(), StreamRequest{})
	if err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}

	var started, completed *ToolCall
	for chunk := range ch {
		if chunk.ToolCallStarted != nil {
			started = chunk.ToolCallStarted
		}
		if chunk.ToolCallCompleted != nil {
			completed = chunk.ToolCallCompleted
		}
	}

	if started == nil || started.Name != "search" {
		t.Errorf("Expected started tool call, got %+v", started)
	}
	if completed == nil || completed.Result != "ok" {
		t.Errorf("Expected completed tool call, got %+v", completed)
	}
}

func TestOpenStreamDoneMarkerWithoutFinishReason(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		`data: {"id":"r9","choices":[{"delta":{"content":"partial"}}]}`,
		`data: [DONE]`,
	}))
	defer srv.Close()

	ch, err := newTestClient(srv.URL).OpenStream(context.Background(), StreamRequest{})
	if err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}

	var final Chunk
	for chunk := range ch {
		if chunk.Done {
			final = chunk
		}
	}
	if final.FinalText != "partial" || final.ContinuationToken != "r9" {
		t.Errorf("Unexpected final chunk: %+v", final)
	}
}

func TestOpenStreamDeliversGeneratedImage(t *testing.T) {
	img := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	srv := httptest.NewServer(sseHandler(t, []string{
		`data: {"id":"r1","choices":[{"delta":{"content":"here"}}]}`,
		`data: {"id":"r1","choices":[{"delta":{"images":["` + img + `"]}}]}`,
		`data: [DONE]`,
	}))
	defer srv.Close()

	ch, err := newTestClient(srv.URL).OpenStream(context.Background(), StreamRequest{})
	if err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}

	var final Chunk
	for chunk := range ch {
		if chunk.Done {
			final = chunk
		}
	}
	if string(final.Image) != "png-bytes" {
		t.Errorf("Expected decoded image on the terminal chunk, got %q", final.Image)
	}
}

func TestOpenStreamDroppedConnectionReportsTransportError(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		`data: {"id":"r1","choices":[{"delta":{"content":"a"}}]}`,
	}))
	defer srv.Close()

	ch, err := newTestClient(srv.URL).OpenStream(context.Background(), StreamRequest{})
	if err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}

	var streamErr error
	for chunk := range ch {
		if chunk.Err != nil {
			streamErr = chunk.Err
		}
	}
	if streamErr == nil {
		t.Fatal("Expected a transport error after dropped connection")
	}
	if Classify(streamErr) != KindTransport {
		t.Errorf("Expected transport kind, got %v", Classify(streamErr))
	}
}

// =============================================================================
// ERROR MAPPING TESTS
// =============================================================================

func TestStatusErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, KindAuthentication},
		{"forbidden", http.StatusForbidden, KindAuthentication},
		{"rate limited", http.StatusTooManyRequests, KindRateLimited},
		{"server error", http.StatusInternalServerError, KindTransport},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).OpenStream(context.Background(), StreamRequest{})
			if err == nil {
				t.Fatal("Expected error")
			}
			if Classify(err) != tc.want {
				t.Errorf("Expected kind %v, got %v", tc.want, Classify(err))
			}
		})
	}
}

func TestClassifyContextCancellation(t *testing.T) {
	if Classify(context.Canceled) != KindCancelled {
		t.Error("Expected context.Canceled to classify as cancelled")
	}
	if !errors.Is(&Error{Kind: KindRateLimited, Message: "x"}, ErrRateLimited) {
		t.Error("Expected kind-based errors.Is match")
	}
}

// =============================================================================
// NON-STREAMING TESTS
// =============================================================================

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"r1","choices":[{"message":{"role":"assistant","content":"A short title"}}]}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Complete(context.Background(), "", []Message{{Role: "user", Content: "title please"}})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "A short title" {
		t.Errorf("Expected 'A short title', got %q", got)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"r1","choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), "m", nil)
	if err == nil {
		t.Fatal("Expected error for empty choices")
	}
	if Classify(err) != KindInvalidContent {
		t.Errorf("Expected invalid content kind, got %v", Classify(err))
	}
}
