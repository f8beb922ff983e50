package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/glebarez/go-sqlite"
)

// Store persists chats and messages in sqlite.
type Store struct {
	DB *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Create tables if not exist
	queries := []string{
		`CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			scope_id TEXT,
			provider TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			chat_id TEXT,
			role TEXT,
			content TEXT,
			status TEXT DEFAULT 'pending',
			metadata TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return nil, err
		}
	}

	return &Store{DB: db}, nil
}

func (s *Store) CreateChat(ctx context.Context, chat Chat) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO chats (id, user_id, scope_id, provider) VALUES (?, ?, ?, ?)`,
		chat.ID, chat.UserID, chat.ScopeID, chat.Provider)
	return err
}

func (s *Store) FindChatByID(ctx context.Context, chatID string) (*Chat, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, user_id, scope_id, provider, created_at FROM chats WHERE id = ?`, chatID)

	var c Chat
	if err := row.Scan(&c.ID, &c.UserID, &c.ScopeID, &c.Provider, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("chat %s not found", chatID)
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) AddMessage(ctx context.Context, msg Message) error {
	if msg.Status == "" {
		msg.Status = StatusPending
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, role, content, status, metadata) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ChatID, msg.Role, msg.Content, msg.Status, msg.Metadata)
	return err
}

func (s *Store) FindMessageByID(ctx context.Context, messageID string) (*Message, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, chat_id, role, content, status, metadata, created_at FROM messages WHERE id = ?`,
		messageID)

	var m Message
	if err := row.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.Status, &m.Metadata, &m.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("message %s not found", messageID)
		}
		return nil, err
	}
	return &m, nil
}

// GetChatMessages returns the most recent completed messages of a chat in
// chronological order, at most limit of them. rowid breaks ties between
// messages written within the same timestamp second.
func (s *Store) GetChatMessages(ctx context.Context, chatID string, limit int) ([]Message, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, chat_id, role, content, status, metadata, created_at
		 FROM messages WHERE chat_id = ? AND status = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		chatID, StatusComplete, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.Status, &m.Metadata, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ClaimMessage atomically marks a pending message as in progress. Returns
// false when another run already owns it. The conditional UPDATE is the
// mutual-exclusion boundary; there is no read-then-write window.
func (s *Store) ClaimMessage(ctx context.Context, messageID string) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE messages SET status = ? WHERE id = ? AND status = ?`,
		StatusInProgress, messageID, StatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateAssistantMessage writes the final content, metadata bundle and
// terminal status for an assistant message.
func (s *Store) UpdateAssistantMessage(ctx context.Context, messageID, content string, metadata any, status string) error {
	encoded := ""
	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		encoded = string(data)
	}
	_, err := s.DB.ExecContext(ctx,
		`UPDATE messages SET content = ?, metadata = ?, status = ? WHERE id = ?`,
		content, encoded, status, messageID)
	return err
}
