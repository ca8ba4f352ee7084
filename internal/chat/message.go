package chat

import (
	"strings"
	"time"
)

// Message statuses used locally. Servers may send other strings; those are
// kept verbatim and rank below StatusSending.
const (
	StatusSending   = "sending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

var statusRank = map[string]int{
	StatusSending:   1,
	StatusSent:      2,
	StatusDelivered: 3,
	StatusRead:      4,
}

// StatusRank orders statuses from least to most advanced. Unknown and empty
// statuses rank 0.
func StatusRank(s string) int {
	return statusRank[strings.ToLower(s)]
}

// RicherStatus returns the most advanced of the given statuses. Ties keep
// the earliest argument, so an unknown server status never replaces a known one.
func RicherStatus(statuses ...string) string {
	best := ""
	for _, s := range statuses {
		if s == "" {
			continue
		}
		if best == "" || StatusRank(s) > StatusRank(best) {
			best = s
		}
	}
	return best
}

// Message is one chat message in canonical form.
type Message struct {
	ID             string
	TempID         string
	ConversationID string
	Content        string
	SenderID       string
	SenderName     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeliveredAt    *time.Time
	ReadAt         *time.Time
	Status         string
	Edited         bool
	Deleted        bool
}

// IsPlaceholder reports whether the message is still identified only by its
// client-generated temp id.
func (m Message) IsPlaceholder() bool {
	return m.TempID != "" && (m.ID == "" || m.ID == m.TempID)
}

// Key returns the identifier lookups should use: the server id when known,
// otherwise the temp id.
func (m Message) Key() string {
	if m.ID != "" {
		return m.ID
	}
	return m.TempID
}

// Unattributed reports whether the message carries no sender identity at all.
func (m Message) Unattributed() bool {
	return m.SenderID == "" && m.SenderName == ""
}

// PendingOutgoing is an optimistic send that has not been matched to a server echo.
type PendingOutgoing struct {
	TempID    string
	Content   string
	CreatedAt time.Time
}

// TypingUser is a remote participant currently typing.
type TypingUser struct {
	Key    string
	Name   string
	UserID string
}

// TypingKey returns the dedup key for a typist: id:<userId> when the id is
// known, name:<name> otherwise.
func TypingKey(userID, name string) string {
	if userID != "" {
		return "id:" + userID
	}
	return "name:" + name
}

// ReceiptUpdate mutates an existing message's delivery state.
type ReceiptUpdate struct {
	MessageID   string
	ReaderID    string
	Status      string
	DeliveredAt *time.Time
	ReadAt      *time.Time
}

// ImpliedStatus derives the status a receipt stands for from its explicit
// status and timestamps.
func (r ReceiptUpdate) ImpliedStatus() string {
	var derived string
	switch {
	case r.ReadAt != nil:
		derived = StatusRead
	case r.DeliveredAt != nil:
		derived = StatusDelivered
	}
	return RicherStatus(r.Status, derived)
}

// Identity is the local user as known from the auth token or config.
type Identity struct {
	ID       string
	Username string
	Email    string
}

// Known reports whether any identifying field is set.
func (i Identity) Known() bool {
	return i.ID != "" || i.Username != "" || i.Email != ""
}

// Matches reports whether any of the given identifiers belongs to the local
// user. id is compared exactly, names case-insensitively against username
// and email.
func (i Identity) Matches(id string, names ...string) bool {
	if id != "" && i.ID != "" && id == i.ID {
		return true
	}
	for _, n := range names {
		if n == "" {
			continue
		}
		if i.Username != "" && strings.EqualFold(n, i.Username) {
			return true
		}
		if i.Email != "" && strings.EqualFold(n, i.Email) {
			return true
		}
	}
	return false
}

// IsSelf reports whether m was authored by the local user.
func (i Identity) IsSelf(m Message) bool {
	return i.Matches(m.SenderID, m.SenderName)
}

// Roster maps participant ids to display names.
type Roster map[string]string

// Resolve fills in SenderName from the roster when the message only carries an id.
func (r Roster) Resolve(m Message) Message {
	if m.SenderName == "" && m.SenderID != "" {
		if name, ok := r[m.SenderID]; ok {
			m.SenderName = name
		}
	}
	return m
}

// Merge copies entries from other into r.
func (r Roster) Merge(other Roster) {
	for id, name := range other {
		r[id] = name
	}
}
