package store

import "database/sql"

// Keys used in sync_state.
const (
	StateLastConversation = "last_conversation"
)

// SetState stores a key/value pair.
func (db *DB) SetState(key, value string) error {
	if err := db.writable(); err != nil {
		return err
	}
	_, err := db.Exec(`
		INSERT INTO sync_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// GetState returns the value for key, or "" if unset.
func (db *DB) GetState(key string) (string, error) {
	var v string
	err := db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}
