package store

import (
	"database/sql"
	"time"
)

// unreadExpr counts incoming, unread, undeleted messages newer than the
// conversation's read marker.
const unreadExpr = `(
	SELECT COUNT(*) FROM messages m
	WHERE m.conversation_id = c.id AND m.from_me = 0 AND m.deleted = 0
	  AND m.read_at IS NULL AND m.timestamp > c.last_read_at)`

// UpsertConversation inserts or updates a conversation's metadata. List state
// (preview, read marker) is left untouched.
func (db *DB) UpsertConversation(c *Conversation) error {
	if err := db.writable(); err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (id, name, description, is_group, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE conversations.name END,
			description = CASE WHEN excluded.description != '' THEN excluded.description ELSE conversations.description END,
			is_group = excluded.is_group,
			updated_at = excluded.updated_at`,
		c.ID, c.Name, c.Description, c.IsGroup, now)
	return err
}

// UpdatePreview records the latest message text of a conversation. An older
// timestamp never replaces a newer preview.
func (db *DB) UpdatePreview(conversationID, preview string, at int64) error {
	if err := db.writable(); err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (id, last_message_at, last_message_preview, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_message_preview = CASE WHEN excluded.last_message_at >= conversations.last_message_at
				THEN excluded.last_message_preview ELSE conversations.last_message_preview END,
			last_message_at = MAX(conversations.last_message_at, excluded.last_message_at),
			updated_at = excluded.updated_at`,
		conversationID, at, preview, now)
	return err
}

// MarkConversationRead moves the read marker forward to at.
func (db *DB) MarkConversationRead(conversationID string, at int64) error {
	if err := db.writable(); err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (id, last_read_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_read_at = MAX(conversations.last_read_at, excluded.last_read_at),
			updated_at = excluded.updated_at`,
		conversationID, at, now)
	return err
}

// ListConversations returns conversations with the most recent activity first.
func (db *DB) ListConversations(limit, offset int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT c.id, COALESCE(NULLIF(c.name, ''), c.id), c.description, c.is_group,
			`+unreadExpr+`, c.last_message_at, c.last_message_preview, c.last_read_at
		FROM conversations c
		ORDER BY c.last_message_at DESC, c.id
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.IsGroup, &c.UnreadCount, &c.LastMessageAt, &c.LastMessagePreview, &c.LastReadAt); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// GetConversation returns a single conversation, or nil if unknown.
func (db *DB) GetConversation(id string) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT c.id, COALESCE(NULLIF(c.name, ''), c.id), c.description, c.is_group,
			`+unreadExpr+`, c.last_message_at, c.last_message_preview, c.last_read_at
		FROM conversations c
		WHERE c.id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.IsGroup, &c.UnreadCount, &c.LastMessageAt, &c.LastMessagePreview, &c.LastReadAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
