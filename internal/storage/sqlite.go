// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/streamchat/internal/model"
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id                 TEXT PRIMARY KEY,
	title              TEXT NOT NULL DEFAULT 'New chat',
	model              TEXT NOT NULL DEFAULT '',
	continuation_token TEXT NOT NULL DEFAULT '',
	draft              TEXT NOT NULL DEFAULT '',
	created_at         INTEGER NOT NULL,
	last_activity      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	chat_id         TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL DEFAULT '',
	streaming       INTEGER NOT NULL DEFAULT 0,
	attachments     TEXT NOT NULL DEFAULT '[]',
	generated_image BLOB,
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, created_at);
`

// =============================================================================
// SQLITE STORE
// =============================================================================

// SQLiteStore persists chats and messages in a local SQLite database.
//
// Thread-safety: database/sql serializes access; the change channel uses
// non-blocking sends so a slow consumer never stalls a write.
type SQLiteStore struct {
	db      *sql.DB
	changes chan Change
}

// NewSQLiteStore opens (or creates) the database at dir/streamchat.db.
func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	return openSQLite(filepath.Join(dir, "streamchat.db"))
}

// NewMemoryStore opens an in-memory database, used by tests.
func NewMemoryStore() (*SQLiteStore, error) {
	return openSQLite(":memory:")
}

func openSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// modernc sqlite allows one writer; a single connection avoids
	// SQLITE_BUSY under concurrent checkpoint writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{
		db:      db,
		changes: make(chan Change, 64),
	}, nil
}

// Close releases the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Changes returns the change-notification stream.
func (s *SQLiteStore) Changes() <-chan Change {
	return s.changes
}

// notify emits a change notification without blocking.
func (s *SQLiteStore) notify(kind ChangeKind, chatID string) {
	select {
	case s.changes <- Change{Kind: kind, ChatID: chatID}:
	default:
		// Consumer is behind; it will observe the latest state on reload.
	}
}

// =============================================================================
// MESSAGE OPERATIONS
// =============================================================================

// LoadMessages returns all messages of a chat, oldest first.
func (s *SQLiteStore) LoadMessages(ctx context.Context, chatID string) ([]*model.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, streaming, attachments, generated_image, created_at, updated_at
		FROM messages WHERE chat_id = ? ORDER BY created_at, id`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		var (
			msg         model.Message
			role        string
			streaming   int
			attachments string
			image       []byte
			created     int64
			updated     int64
		)
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &streaming, &attachments, &image, &created, &updated); err != nil {
			return nil, err
		}
		msg.Role = model.Role(role)
		msg.IsStreaming = streaming != 0
		msg.GeneratedImage = image
		msg.CreatedAt = time.UnixMilli(created)
		msg.UpdatedAt = time.UnixMilli(updated)
		if attachments != "" && attachments != "[]" {
			if err := json.Unmarshal([]byte(attachments), &msg.Attachments); err != nil {
				// Corrupted attachment metadata is dropped, not fatal.
				msg.Attachments = nil
			}
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

// SaveMessage inserts a message and bumps the chat's activity timestamp.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *model.Message, chatID string, streaming bool) error {
	attachments, err := json.Marshal(msg.Attachments)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, role, content, streaming, attachments, generated_image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, chatID, msg.Role.String(), msg.Content, boolToInt(streaming),
		string(attachments), msg.GeneratedImage,
		msg.CreatedAt.UnixMilli(), msg.UpdatedAt.UnixMilli())
	if err != nil {
		return err
	}

	s.touchChat(ctx, chatID)
	s.notify(ChangeMessages, chatID)
	return nil
}

// UpdateMessage replaces a stored message's content and streaming flag.
func (s *SQLiteStore) UpdateMessage(ctx context.Context, msg *model.Message, chatID string, streaming bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET content = ?, streaming = ?, generated_image = ?, updated_at = ?
		WHERE id = ?`,
		msg.Content, boolToInt(streaming), msg.GeneratedImage, time.Now().UnixMilli(), msg.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrMessageNotFound
	}

	s.touchChat(ctx, chatID)
	s.notify(ChangeMessages, chatID)
	return nil
}

// DeleteMessage removes a message.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, messageID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, messageID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// CreateChat inserts a new chat.
func (s *SQLiteStore) CreateChat(ctx context.Context, chat *model.ChatSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (id, title, model, continuation_token, draft, created_at, last_activity)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		chat.ID, chat.Title, chat.Model, chat.ContinuationToken, chat.Draft,
		chat.CreatedAt.UnixMilli(), chat.LastActivity.UnixMilli())
	if err != nil {
		return err
	}
	s.notify(ChangeChat, chat.ID)
	return nil
}

// GetChat returns one chat by id.
func (s *SQLiteStore) GetChat(ctx context.Context, chatID string) (*model.ChatSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, model, continuation_token, draft, created_at, last_activity,
			(SELECT COUNT(*) FROM messages WHERE chat_id = chats.id)
		FROM chats WHERE id = ?`, chatID)

	chat, err := scanChat(row)
	if err == sql.ErrNoRows {
		return nil, ErrChatNotFound
	}
	return chat, err
}

// ListChats returns all chats, most recently active first.
func (s *SQLiteStore) ListChats(ctx context.Context) ([]*model.ChatSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, model, continuation_token, draft, created_at, last_activity,
			(SELECT COUNT(*) FROM messages WHERE chat_id = chats.id)
		FROM chats ORDER BY last_activity DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []*model.ChatSession
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

// DeleteChat removes a chat and (via cascade) its messages.
func (s *SQLiteStore) DeleteChat(ctx context.Context, chatID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, chatID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrChatNotFound
	}
	s.notify(ChangeChat, chatID)
	return nil
}

// SetContinuationToken records the provider's continuation token.
func (s *SQLiteStore) SetContinuationToken(ctx context.Context, chatID, token string) error {
	return s.updateChatField(ctx, chatID, "continuation_token", token)
}

// SetTitle updates a chat's title.
func (s *SQLiteStore) SetTitle(ctx context.Context, chatID, title string) error {
	return s.updateChatField(ctx, chatID, "title", title)
}

// SetModel updates the model a chat's future turns are sent to.
func (s *SQLiteStore) SetModel(ctx context.Context, chatID, model string) error {
	return s.updateChatField(ctx, chatID, "model", model)
}

// SetDraft stores provisional input text for a chat.
func (s *SQLiteStore) SetDraft(ctx context.Context, chatID, draft string) error {
	return s.updateChatField(ctx, chatID, "draft", draft)
}

// =============================================================================
// HELPERS
// =============================================================================

// updateChatField sets one column on a chat row. The column name is always
// a compile-time constant from this package, never user input.
func (s *SQLiteStore) updateChatField(ctx context.Context, chatID, column, value string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chats SET `+column+` = ?, last_activity = ? WHERE id = ?`,
		value, time.Now().UnixMilli(), chatID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrChatNotFound
	}
	s.notify(ChangeChat, chatID)
	return nil
}

// touchChat bumps a chat's last-activity timestamp, best-effort.
func (s *SQLiteStore) touchChat(ctx context.Context, chatID string) {
	_, _ = s.db.ExecContext(ctx,
		`UPDATE chats SET last_activity = ? WHERE id = ?`,
		time.Now().UnixMilli(), chatID)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner) (*model.ChatSession, error) {
	var (
		chat     model.ChatSession
		created  int64
		activity int64
	)
	err := row.Scan(&chat.ID, &chat.Title, &chat.Model, &chat.ContinuationToken,
		&chat.Draft, &created, &activity, &chat.MessageCount)
	if err != nil {
		return nil, err
	}
	chat.CreatedAt = time.UnixMilli(created)
	chat.LastActivity = time.UnixMilli(activity)
	return &chat, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
