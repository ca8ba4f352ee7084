package store

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertMessage inserts or updates a message, idempotent on conversation_id +
// msg_id. When a message carries a temp id different from its server id, the
// optimistic row stored under the temp id is replaced.
func (db *DB) UpsertMessage(m *Message) error {
	if err := db.writable(); err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if m.TempID != "" && m.MsgID != m.TempID {
		if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ? AND msg_id = ?`, m.ConversationID, m.TempID); err != nil {
			return fmt.Errorf("drop placeholder %q: %w", m.TempID, err)
		}
	}

	now := time.Now().UnixMilli()
	if _, err := tx.Exec(`
		INSERT INTO messages (conversation_id, msg_id, temp_id, sender_id, sender_name, body, status,
			from_me, edited, deleted, timestamp, delivered_at, read_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, msg_id) DO UPDATE SET
			temp_id = CASE WHEN excluded.temp_id != '' THEN excluded.temp_id ELSE messages.temp_id END,
			sender_id = CASE WHEN excluded.sender_id != '' THEN excluded.sender_id ELSE messages.sender_id END,
			sender_name = CASE WHEN excluded.sender_name != '' THEN excluded.sender_name ELSE messages.sender_name END,
			body = CASE WHEN excluded.body != '' THEN excluded.body ELSE messages.body END,
			status = CASE WHEN excluded.status != '' THEN excluded.status ELSE messages.status END,
			from_me = excluded.from_me,
			edited = MAX(messages.edited, excluded.edited),
			deleted = MAX(messages.deleted, excluded.deleted),
			timestamp = CASE WHEN excluded.timestamp > 0 THEN excluded.timestamp ELSE messages.timestamp END,
			delivered_at = COALESCE(messages.delivered_at, excluded.delivered_at),
			read_at = COALESCE(messages.read_at, excluded.read_at)`,
		m.ConversationID, m.MsgID, m.TempID, m.SenderID, m.SenderName, m.Body, m.Status,
		m.FromMe, m.Edited, m.Deleted, m.Timestamp, nullMillis(m.DeliveredAt), nullMillis(m.ReadAt), now); err != nil {
		return fmt.Errorf("upsert message %q: %w", m.MsgID, err)
	}
	return tx.Commit()
}

// BulkUpsertMessages upserts a batch, for example a history page.
func (db *DB) BulkUpsertMessages(msgs []Message) error {
	for i := range msgs {
		if err := db.UpsertMessage(&msgs[i]); err != nil {
			return err
		}
	}
	return nil
}

// ListMessages returns messages of a conversation older than beforeTs,
// newest first. Sender names fall back to the participants table.
func (db *DB) ListMessages(conversationID string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT m.id, m.conversation_id, m.msg_id, m.temp_id, m.sender_id,
			COALESCE(NULLIF(m.sender_name, ''), NULLIF(p.name, ''), m.sender_id),
			m.body, m.status, m.from_me, m.edited, m.deleted, m.timestamp, m.delivered_at, m.read_at
		FROM messages m
		LEFT JOIN participants p ON p.user_id = m.sender_id
		WHERE m.conversation_id = ? AND m.timestamp < ?
		ORDER BY m.timestamp DESC, m.id DESC
		LIMIT ?`, conversationID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MessageCount returns the total number of archived messages.
func (db *DB) MessageCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner, extra ...any) (Message, error) {
	var (
		m                   Message
		deliveredAt, readAt sql.NullInt64
	)
	dest := []any{
		&m.ID, &m.ConversationID, &m.MsgID, &m.TempID, &m.SenderID, &m.SenderName,
		&m.Body, &m.Status, &m.FromMe, &m.Edited, &m.Deleted, &m.Timestamp, &deliveredAt, &readAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return Message{}, err
	}
	m.DeliveredAt = deliveredAt.Int64
	m.ReadAt = readAt.Int64
	return m, nil
}

func nullMillis(ms int64) sql.NullInt64 {
	return sql.NullInt64{Int64: ms, Valid: ms > 0}
}
