package store

import (
	"errors"
	"strings"
)

// SearchMessages performs a full-text search on message bodies. Every word of
// query must match; words are matched literally, so FTS operators in user
// input are inert.
func (db *DB) SearchMessages(query string, conversationID string, limit int) ([]SearchResult, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, errors.New("empty search query")
	}
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT m.id, m.conversation_id, m.msg_id, m.temp_id, m.sender_id,
			COALESCE(NULLIF(m.sender_name, ''), NULLIF(p.name, ''), m.sender_id),
			m.body, m.status, m.from_me, m.edited, m.deleted, m.timestamp, m.delivered_at, m.read_at,
			snippet(messages_fts, '<<', '>>', '...', -1, 16)
		FROM messages_fts
		JOIN messages m ON m.id = messages_fts.docid
		LEFT JOIN participants p ON p.user_id = m.sender_id
		WHERE messages_fts MATCH ? AND m.deleted = 0`

	args := []any{match}
	if conversationID != "" {
		q += " AND m.conversation_id = ?"
		args = append(args, conversationID)
	}
	q += " ORDER BY m.timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		m, err := scanMessage(rows, &r.Snippet)
		if err != nil {
			return nil, err
		}
		r.Message = m
		results = append(results, r)
	}
	return results, rows.Err()
}

// ftsQuery quotes every word so it is matched as a term.
func ftsQuery(query string) string {
	var terms []string
	for _, w := range strings.Fields(strings.ReplaceAll(query, `"`, " ")) {
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " ")
}
