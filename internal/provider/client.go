// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the provider client.
type ClientConfig struct {
	// BaseURL is the API base URL.
	BaseURL string

	// APIKey authenticates requests. Sent as a bearer token.
	APIKey string

	// Timeout for non-streaming requests (default: 60s).
	Timeout time.Duration

	// DefaultModel to use if none specified.
	DefaultModel string
}

// DefaultClientConfig returns the default client configuration.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:      "https://api.streamchat.dev/v1",
		Timeout:      60 * time.Second,
		DefaultModel: "sc-standard",
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the model provider API.
// The Client is thread-safe for concurrent use.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

// NewClient creates a provider client with the given configuration.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultClientConfig().BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.DefaultModel == "" {
		config.DefaultModel = DefaultClientConfig().DefaultModel
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// =============================================================================
// STREAMING
// =============================================================================

// OpenStream starts a streaming chat request and returns a channel of
// chunks. The channel closes after a terminal chunk (Done or Err). Cancel
// the context to abort the stream; in-flight chunks after cancellation are
// dropped by the reader, never delivered.
func (c *Client) OpenStream(ctx context.Context, req StreamRequest) (<-chan Chunk, error) {
	model := req.Model
	if model == "" {
		model = c.config.DefaultModel
	}

	history := req.History
	if len(req.Attachments) > 0 && len(history) > 0 {
		// Attachments ride on the latest user message.
		last := history[len(history)-1]
		last.Images = append(append([]string{}, last.Images...), req.Attachments...)
		history = append(append([]Message{}, history[:len(history)-1]...), last)
	}

	body, err := json.Marshal(chatRequest{
		Model:              model,
		Messages:           history,
		Stream:             true,
		PreviousResponseID: req.ContinuationToken,
	})
	if err != nil {
		return nil, &Error{Kind: KindInvalidContent, Message: "failed to marshal request", Cause: err}
	}

	// Streaming uses a client without timeout; lifetime is governed by the
	// caller's context.
	streamClient := &http.Client{}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Message: "failed to create request", Cause: err}
	}
	c.setHeaders(httpReq)

	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.statusError(resp)
	}

	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		reader := newStreamReader(resp.Body)
		reader.process(ctx, ch)
	}()

	return ch, nil
}

// =============================================================================
// NON-STREAMING
// =============================================================================

// Complete sends a non-streaming chat request and returns the full response
// text. Used for one-shot calls such as title generation.
func (c *Client) Complete(ctx context.Context, model string, history []Message) (string, error) {
	if model == "" {
		model = c.config.DefaultModel
	}

	body, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: history,
		Stream:   false,
	})
	if err != nil {
		return "", &Error{Kind: KindInvalidContent, Message: "failed to marshal request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindTransport, Message: "failed to create request", Cause: err}
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.statusError(resp)
	}

	var result completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &Error{Kind: KindInvalidContent, Message: "failed to decode response", Cause: err}
	}
	if result.Error != nil {
		return "", &Error{Kind: KindInvalidContent, Message: result.Error.Message}
	}
	if len(result.Choices) == 0 {
		return "", &Error{Kind: KindInvalidContent, Message: "empty completion response"}
	}
	return result.Choices[0].Message.Content, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// setHeaders applies content type and authentication headers.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
}

// statusError maps a non-200 response to a categorized error.
func (c *Client) statusError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthenticationRequired
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}

	var payload struct {
		Error *wireError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != nil {
		return &Error{Kind: KindTransport, Message: payload.Error.Message}
	}
	return &Error{Kind: KindTransport, Message: "request failed: " + resp.Status}
}

// classifyTransport maps a low-level HTTP error to a categorized error.
func classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTransport, Message: "request timed out", Cause: err}
	}
	return &Error{Kind: KindTransport, Message: "connection failed", Cause: err}
}
