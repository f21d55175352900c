// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session coordinates chats, drafts, and the active stream.
package session

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/pipeline"
	"github.com/jeranaias/streamchat/internal/storage"
)

// ErrNoActiveChat is returned by operations that need a selected chat.
var ErrNoActiveChat = errors.New("no active chat")

// =============================================================================
// COORDINATOR
// =============================================================================

// Runner runs one streaming turn. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, chat *model.ChatSession, text string, attachments []model.Attachment, emit pipeline.EmitFunc) error
	State() pipeline.State
}

// Coordinator owns the active chat and the single in-flight stream, and
// republishes pipeline events to the UI. Events from a superseded stream
// (after a chat switch or a newer send) are dropped rather than delivered.
//
// Thread-safety: all exported methods are safe for concurrent use.
type Coordinator struct {
	store storage.Store
	pipe  Runner

	cancelMgr *cancelManager

	mu         sync.Mutex
	active     *model.ChatSession
	generation uint64
	streaming  bool

	events chan model.StreamEvent
	quit   chan struct{}
	once   sync.Once
}

// NewCoordinator creates a coordinator over the store and stream runner.
func NewCoordinator(store storage.Store, pipe Runner) *Coordinator {
	c := &Coordinator{
		store:     store,
		pipe:      pipe,
		cancelMgr: newCancelManager(),
		events:    make(chan model.StreamEvent, 256),
		quit:      make(chan struct{}),
	}
	go c.consumeChanges()
	return c
}

// consumeChanges follows the store's change feed so that writes landing
// outside a stream turn (generated titles in particular) reach the active
// chat's in-memory state.
func (c *Coordinator) consumeChanges() {
	for {
		select {
		case change := <-c.store.Changes():
			if change.Kind == storage.ChangeChat {
				c.refreshActiveChat(change.ChatID)
			}
		case <-c.quit:
			return
		}
	}
}

// refreshActiveChat re-reads metadata for the active chat after a store-side
// change. Deleted or non-active chats are ignored.
func (c *Coordinator) refreshActiveChat(chatID string) {
	c.mu.Lock()
	active := c.active != nil && c.active.ID == chatID
	c.mu.Unlock()
	if !active {
		return
	}

	fresh, err := c.store.GetChat(context.Background(), chatID)
	if err != nil {
		return
	}

	c.mu.Lock()
	if c.active != nil && c.active.ID == chatID {
		// Swap in the re-read snapshot instead of mutating the shared one.
		c.active = fresh
	}
	c.mu.Unlock()
}

// Events is the ordered event stream for the UI. Events for a chat that is
// no longer active are filtered out before delivery.
func (c *Coordinator) Events() <-chan model.StreamEvent {
	return c.events
}

// State reports the current streaming state.
func (c *Coordinator) State() pipeline.State {
	return c.pipe.State()
}

// ActiveChat returns the currently selected chat, or nil.
func (c *Coordinator) ActiveChat() *model.ChatSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// IsStreaming reports whether a stream task is in flight.
func (c *Coordinator) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// Close cancels any active stream and stops event delivery.
func (c *Coordinator) Close() {
	c.cancelMgr.cancel()
	c.once.Do(func() { close(c.quit) })
}

// =============================================================================
// CHAT LIFECYCLE
// =============================================================================

// NewChat creates a chat, persists it, and makes it active. Any in-flight
// stream is cancelled first.
func (c *Coordinator) NewChat(ctx context.Context, modelName string) (*model.ChatSession, error) {
	c.cancelMgr.cancel()

	chat := model.NewChatSession(modelName)
	if err := c.store.CreateChat(ctx, chat); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.active = chat
	c.generation++
	c.streaming = false
	c.mu.Unlock()
	return chat, nil
}

// SwitchChat cancels any in-flight stream, makes the chat active, and
// returns its messages. Events from the superseded stream will not be
// delivered.
func (c *Coordinator) SwitchChat(ctx context.Context, chatID string) (*model.ChatSession, []*model.Message, error) {
	c.cancelMgr.cancel()

	chat, err := c.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := c.store.LoadMessages(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	c.active = chat
	c.generation++
	c.streaming = false
	c.mu.Unlock()
	return chat, messages, nil
}

// DeleteChat removes a chat and its messages. Deleting the active chat
// cancels any stream and deselects it.
func (c *Coordinator) DeleteChat(ctx context.Context, chatID string) error {
	c.mu.Lock()
	isActive := c.active != nil && c.active.ID == chatID
	c.mu.Unlock()

	if isActive {
		c.cancelMgr.cancel()
		c.mu.Lock()
		c.active = nil
		c.generation++
		c.streaming = false
		c.mu.Unlock()
	}
	return c.store.DeleteChat(ctx, chatID)
}

// UpdateModel changes the model used for the active chat's future turns.
// The in-flight stream, if any, finishes on the model it started with.
func (c *Coordinator) UpdateModel(ctx context.Context, modelName string) error {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return ErrNoActiveChat
	}
	chatID := c.active.ID
	updated := *c.active
	updated.Model = modelName
	c.active = &updated
	c.mu.Unlock()

	return c.store.SetModel(ctx, chatID, modelName)
}

// ListChats returns all chats, most recently active first.
func (c *Coordinator) ListChats(ctx context.Context) ([]*model.ChatSession, error) {
	return c.store.ListChats(ctx)
}

// SaveDraft persists unsent input text for the active chat. Best-effort.
func (c *Coordinator) SaveDraft(ctx context.Context, draft string) {
	c.mu.Lock()
	chat := c.active
	c.mu.Unlock()
	if chat == nil {
		return
	}
	chat.Draft = draft
	if err := c.store.SetDraft(ctx, chat.ID, draft); err != nil {
		log.Printf("session: saving draft failed: %v", err)
	}
}

// =============================================================================
// STREAMING
// =============================================================================

// SendMessage starts a streaming turn on the active chat. A stream already
// in flight is implicitly cancelled first: its partial response is discarded
// and no further events are delivered for it.
func (c *Coordinator) SendMessage(text string, attachments []model.Attachment) error {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return ErrNoActiveChat
	}
	chat := c.active
	c.generation++
	gen := c.generation
	c.streaming = true
	c.mu.Unlock()

	// replace cancels the superseded run before installing the new cancel.
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelMgr.replace(cancel)

	go func() {
		defer func() {
			c.mu.Lock()
			// A superseded run must not clear the flag of its successor.
			if c.generation == gen {
				c.streaming = false
			}
			c.mu.Unlock()
		}()

		err := c.pipe.Run(ctx, chat, text, attachments, func(ev model.StreamEvent) {
			c.publish(gen, ev)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("session: stream for %s ended: %v", chat.ID, err)
		}
	}()
	return nil
}

// CancelStream aborts the in-flight stream, if any. The partial response is
// discarded and no further events are delivered for it.
func (c *Coordinator) CancelStream() {
	c.cancelMgr.cancel()
}

// publish delivers an event unless the originating stream was superseded.
func (c *Coordinator) publish(gen uint64, ev model.StreamEvent) {
	c.mu.Lock()
	stale := gen != c.generation
	c.mu.Unlock()
	if stale {
		return
	}

	select {
	case c.events <- ev:
	case <-c.quit:
	}
}
