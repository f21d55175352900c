// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/provider"
	"github.com/jeranaias/streamchat/internal/render"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/textbuf"
)

// =============================================================================
// STATE MACHINE
// =============================================================================

// State is the per-session streaming state.
type State int

const (
	// StateIdle means no stream is active.
	StateIdle State = iota

	// StateWaiting means a stream was requested but no visible content has
	// arrived yet.
	StateWaiting

	// StateReceiving means visible content is arriving.
	StateReceiving
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateReceiving:
		return "receiving"
	default:
		return "idle"
	}
}

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Provider is the transport collaborator: it opens streams and serves
// one-shot completions. *provider.Client satisfies it.
type Provider interface {
	OpenStream(ctx context.Context, req provider.StreamRequest) (<-chan provider.Chunk, error)
	Complete(ctx context.Context, model string, history []provider.Message) (string, error)
}

// EmitFunc receives pipeline events in order. Called from the stream task.
type EmitFunc func(model.StreamEvent)

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline runs at most one provider stream at a time. Starting a new run
// is the caller's (session coordinator's) job; it cancels any previous run
// first, so all ParseState and buffer mutation stays confined to a single
// stream task.
type Pipeline struct {
	store storage.Store
	prov  Provider
	cache *render.Cache

	bufferCapacity int

	// titleLimiter bounds best-effort title generation calls.
	titleLimiter *rate.Limiter

	// runMu serializes Run. The caller cancels the previous turn before
	// starting a new one; the new turn still waits here for the cancelled
	// turn to unwind so state transitions never interleave.
	runMu sync.Mutex

	mu    sync.Mutex
	state State
}

// New creates a pipeline over the given collaborators.
func New(store storage.Store, prov Provider, cache *render.Cache, bufferCapacity int) *Pipeline {
	return &Pipeline{
		store:          store,
		prov:           prov,
		cache:          cache,
		bufferCapacity: bufferCapacity,
		titleLimiter:   rate.NewLimiter(rate.Every(10*time.Second), 3),
	}
}

// State returns the current streaming state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// =============================================================================
// RUN
// =============================================================================

// Run executes one send-message turn for the chat: persists the user
// message, opens the provider stream, and emits the ordered event sequence.
// Blocks until the terminal event or cancellation.
//
// On cancellation nothing further is emitted: the partially streamed
// message is discarded and its parse/cache state cleared.
func (p *Pipeline) Run(ctx context.Context, chat *model.ChatSession, text string, attachments []model.Attachment, emit EmitFunc) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if ctx.Err() != nil {
		// Superseded while waiting for the previous turn to unwind.
		return ctx.Err()
	}

	p.setState(StateWaiting)
	defer p.setState(StateIdle)

	userMsg := model.NewUserMessage(text)
	userMsg.Attachments = attachments
	p.checkpoint(ctx, "save user message", func(ctx context.Context) error {
		return p.store.SaveMessage(ctx, userMsg, chat.ID, false)
	})

	history, err := p.store.LoadMessages(ctx, chat.ID)
	if err != nil {
		// Fall back to just the new message; the provider still has the
		// conversation server-side via the continuation token.
		log.Printf("pipeline: loading history failed, sending latest message only: %v", err)
		history = []*model.Message{userMsg}
	}

	req := provider.StreamRequest{
		Model:             chat.Model,
		History:           toProviderHistory(history),
		ContinuationToken: chat.ContinuationToken,
	}
	for _, att := range attachments {
		req.Attachments = append(req.Attachments, att.Data)
	}

	ch, err := p.prov.OpenStream(ctx, req)
	if err != nil {
		if provider.Classify(err) == provider.KindCancelled {
			return err
		}
		emit(model.StreamEvent{Kind: model.EventError, ChatID: chat.ID, Err: err})
		return err
	}

	return p.consume(ctx, chat, ch, len(history), emit)
}

// consume drains the chunk channel, driving the state machine.
func (p *Pipeline) consume(ctx context.Context, chat *model.ChatSession, ch <-chan provider.Chunk, historyLen int, emit EmitFunc) error {
	assistant := model.NewAssistantMessage()
	buf := textbuf.New(p.bufferCapacity)
	stats := model.NewStatistics()

	started := false
	tokens := 0

	cleanup := func() {
		p.cache.ClearStreamingState(assistant.ID)
		buf.Reset()
	}

	for {
		select {
		case <-ctx.Done():
			// Session switch or explicit cancel: discard without emitting.
			cleanup()
			return ctx.Err()

		case chunk, ok := <-ch:
			if !ok {
				cleanup()
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// Channel closed without a terminal chunk.
				err := &provider.Error{Kind: provider.KindTransport, Message: "stream closed unexpectedly"}
				emit(model.StreamEvent{Kind: model.EventError, ChatID: chat.ID, Err: err})
				return err
			}
			if ctx.Err() != nil {
				// A chunk raced with cancellation; discard it.
				cleanup()
				return ctx.Err()
			}

			switch {
			case chunk.Err != nil:
				return p.finishError(ctx, chat, assistant, chunk.Err, started, cleanup, emit)

			case chunk.Done:
				return p.finishSuccess(ctx, chat, assistant, chunk, buf, stats, tokens, started, historyLen, emit)

			case chunk.ToolCallStarted != nil:
				emit(model.StreamEvent{
					Kind:     model.EventToolCallStarted,
					ChatID:   chat.ID,
					ToolCall: toModelToolCall(chunk.ToolCallStarted),
				})

			case chunk.ToolCallCompleted != nil:
				emit(model.StreamEvent{
					Kind:     model.EventToolCallCompleted,
					ChatID:   chat.ID,
					ToolCall: toModelToolCall(chunk.ToolCallCompleted),
				})

			case chunk.Delta != "":
				tokens++
				buf.Append(chunk.Delta)
				assistant.SetContent(buf.FullText())

				if !started {
					if !assistant.HasVisibleContent() {
						// Only whitespace so far: still waiting, no UI event.
						continue
					}
					started = true
					stats.RecordFirstToken()
					p.setState(StateReceiving)

					rendered := p.cache.RenderStreaming(assistant.Content, assistant.Role.String(), assistant.ID)
					p.checkpoint(ctx, "checkpoint streaming message", func(ctx context.Context) error {
						return p.store.SaveMessage(ctx, assistant, chat.ID, true)
					})
					emit(model.StreamEvent{Kind: model.EventStarted, ChatID: chat.ID, Message: assistant.Clone(), Rendered: rendered})
					emit(model.StreamEvent{Kind: model.EventUpdated, ChatID: chat.ID, Message: assistant.Clone(), Rendered: rendered})
					continue
				}

				rendered := p.cache.RenderStreaming(assistant.Content, assistant.Role.String(), assistant.ID)
				p.checkpoint(ctx, "checkpoint streaming message", func(ctx context.Context) error {
					return p.store.UpdateMessage(ctx, assistant, chat.ID, true)
				})
				emit(model.StreamEvent{Kind: model.EventUpdated, ChatID: chat.ID, Message: assistant.Clone(), Rendered: rendered})
			}
		}
	}
}

// =============================================================================
// TERMINAL TRANSITIONS
// =============================================================================

// finishSuccess finalizes the assistant message, records the continuation
// token, and emits the completed event.
func (p *Pipeline) finishSuccess(ctx context.Context, chat *model.ChatSession, assistant *model.Message, chunk provider.Chunk, buf *textbuf.Buffer, stats *model.Statistics, tokens int, started bool, historyLen int, emit EmitFunc) error {
	final := chunk.FinalText
	if final == "" {
		final = buf.FullText()
	}
	assistant.SetContent(final)
	if len(chunk.Image) > 0 {
		assistant.GeneratedImage = chunk.Image
	}
	stats.Finalize(tokens)
	assistant.FinalizeStream(stats)

	if assistant.HasVisibleContent() || len(assistant.GeneratedImage) > 0 {
		if started {
			p.checkpoint(ctx, "persist final message", func(ctx context.Context) error {
				return p.store.UpdateMessage(ctx, assistant, chat.ID, false)
			})
		} else {
			// The whole response arrived with the terminal chunk.
			p.checkpoint(ctx, "persist final message", func(ctx context.Context) error {
				return p.store.SaveMessage(ctx, assistant, chat.ID, false)
			})
		}
	}

	if chunk.ContinuationToken != "" {
		chat.ContinuationToken = chunk.ContinuationToken
		p.checkpoint(ctx, "record continuation token", func(ctx context.Context) error {
			return p.store.SetContinuationToken(ctx, chat.ID, chunk.ContinuationToken)
		})
	}

	p.cache.ClearStreamingState(assistant.ID)

	rendered, err := p.cache.RenderFinal(assistant.Content, assistant.Role.String())
	if err != nil {
		rendered = assistant.Content
	}
	emit(model.StreamEvent{Kind: model.EventCompleted, ChatID: chat.ID, Message: assistant.Clone(), Rendered: rendered})

	// After the first user/assistant exchange, derive a chat title.
	if historyLen == 1 {
		go p.generateTitle(chat, assistant.Content)
	}
	return nil
}

// finishError handles a terminal provider failure: a message that never
// received content is discarded rather than persisted; partial content is
// retained and marked non-streaming.
func (p *Pipeline) finishError(ctx context.Context, chat *model.ChatSession, assistant *model.Message, streamErr error, started bool, cleanup func(), emit EmitFunc) error {
	if provider.Classify(streamErr) == provider.KindCancelled {
		cleanup()
		return streamErr
	}

	if started {
		if assistant.HasVisibleContent() {
			assistant.FinalizeStream(nil)
			p.checkpoint(ctx, "retain partial message", func(ctx context.Context) error {
				return p.store.UpdateMessage(ctx, assistant, chat.ID, false)
			})
		} else {
			// Checkpointed but never got visible content: remove it.
			if err := p.store.DeleteMessage(ctx, assistant.ID); err != nil {
				log.Printf("pipeline: removing empty streamed message failed: %v", err)
			}
		}
	}

	cleanup()
	emit(model.StreamEvent{Kind: model.EventError, ChatID: chat.ID, Err: streamErr})
	return streamErr
}

// =============================================================================
// TITLE GENERATION
// =============================================================================

const titlePrompt = "Write a title of at most five words for a conversation that begins with the message below. Reply with the title only."

// generateTitle derives a chat title from the first exchange. Best-effort:
// failures are logged, never surfaced, and calls are rate limited.
func (p *Pipeline) generateTitle(chat *model.ChatSession, firstReply string) {
	if !p.titleLimiter.Allow() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	out, err := p.prov.Complete(ctx, chat.Model, []provider.Message{
		{Role: "system", Content: titlePrompt},
		{Role: "user", Content: firstReply},
	})
	if err != nil {
		log.Printf("pipeline: title generation failed: %v", err)
		return
	}

	title := strings.Trim(strings.TrimSpace(out), `"`)
	if title == "" {
		return
	}
	if runes := []rune(title); len(runes) > 60 {
		title = string(runes[:60])
	}
	if err := p.store.SetTitle(ctx, chat.ID, title); err != nil {
		log.Printf("pipeline: saving generated title failed: %v", err)
	}
}

// =============================================================================
// CHECKPOINTS
// =============================================================================

// checkpoint runs a storage write, retrying once on failure. Failures are
// swallowed: intermediate durability never interrupts the stream.
func (p *Pipeline) checkpoint(ctx context.Context, what string, fn func(context.Context) error) {
	if err := fn(ctx); err == nil {
		return
	} else if ctx.Err() != nil {
		return
	} else {
		log.Printf("pipeline: %s failed, retrying: %v", what, err)
	}
	if err := fn(ctx); err != nil {
		log.Printf("pipeline: %s retry failed, continuing in memory: %v", what, err)
	}
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// toProviderHistory converts stored messages to wire history.
func toProviderHistory(messages []*model.Message) []provider.Message {
	out := make([]provider.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, provider.Message{
			Role:    m.Role.String(),
			Content: m.Content,
		})
	}
	return out
}

// toModelToolCall converts a wire tool call to the domain type.
func toModelToolCall(tc *provider.ToolCall) *model.ToolCall {
	return &model.ToolCall{
		ID:        tc.ID,
		Name:      tc.Name,
		Arguments: tc.Arguments,
		Result:    tc.Result,
	}
}
