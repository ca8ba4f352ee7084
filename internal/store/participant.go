package store

import (
	"database/sql"
	"fmt"
	"time"
)

// BulkUpsertParticipants records display names for user ids in a single
// transaction. Empty names never overwrite known ones.
func (db *DB) BulkUpsertParticipants(ps []Participant) error {
	if err := db.writable(); err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, p := range ps {
		if _, err := tx.Exec(`
			INSERT INTO participants (user_id, name, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				name = CASE WHEN excluded.name != '' THEN excluded.name ELSE participants.name END,
				updated_at = excluded.updated_at`,
			p.UserID, p.Name, now); err != nil {
			return fmt.Errorf("upsert participant %q: %w", p.UserID, err)
		}
	}
	return tx.Commit()
}

// GetParticipant returns a participant by user id, or nil if unknown.
func (db *DB) GetParticipant(userID string) (*Participant, error) {
	var p Participant
	err := db.QueryRow(`SELECT user_id, name FROM participants WHERE user_id = ?`, userID).
		Scan(&p.UserID, &p.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
