package chat

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Field aliases seen across server versions, in lookup order.
var (
	idFields           = []string{"id", "message_id", "messageId", "_id"}
	tempIDFields       = []string{"temp_id", "tempId", "client_temp_id", "clientTempId", "client_msg_id"}
	conversationFields = []string{"conversation_id", "conversationId", "chat_id", "chatId"}
	contentFields      = []string{"content", "text", "body", "message"}
	senderIDFields     = []string{"sender_id", "senderId", "user_id", "userId", "sender.id", "sender.user_id", "user.id", "author.id", "sender", "from"}
	senderNameFields   = []string{"sender_username", "sender_name", "senderName", "senderUsername", "username", "sender.username", "sender.name", "user.username", "author.username", "sender.email", "sender_email"}
	createdFields      = []string{"created_at", "createdAt", "timestamp", "sent_at", "sentAt"}
	updatedFields      = []string{"updated_at", "updatedAt", "edited_at"}
	deliveredFields    = []string{"delivered_at", "deliveredAt"}
	readFields         = []string{"read_at", "readAt"}
	editedFields       = []string{"is_edited", "isEdited", "edited"}
	deletedFields      = []string{"is_deleted", "isDeleted", "deleted"}
)

// ParseMessage normalizes a JSON message object.
func ParseMessage(data []byte) (Message, bool) {
	if !gjson.ValidBytes(data) {
		return Message{}, false
	}
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return Message{}, false
	}
	return NormalizeMessage(res), true
}

// NormalizeMessage maps every known alternate field name onto the canonical
// Message shape. It is the only place raw message payloads are interpreted.
func NormalizeMessage(res gjson.Result) Message {
	m := Message{
		ID:             FirstString(res, idFields...),
		TempID:         FirstString(res, tempIDFields...),
		ConversationID: FirstString(res, conversationFields...),
		Content:        FirstString(res, contentFields...),
		SenderID:       FirstString(res, senderIDFields...),
		SenderName:     FirstString(res, senderNameFields...),
		CreatedAt:      FirstTime(res, createdFields...),
		UpdatedAt:      FirstTime(res, updatedFields...),
		Status:         strings.ToLower(FirstString(res, "status")),
		Edited:         firstBool(res, editedFields...),
		Deleted:        firstBool(res, deletedFields...),
	}
	if t := FirstTime(res, deliveredFields...); !t.IsZero() {
		m.DeliveredAt = &t
	}
	if t := FirstTime(res, readFields...); !t.IsZero() {
		m.ReadAt = &t
	}
	return m
}

// ParseParticipants builds a roster from a participants array. Entries may
// be flat user objects or wrap the user under "user".
func ParseParticipants(res gjson.Result) Roster {
	roster := Roster{}
	res.ForEach(func(_, p gjson.Result) bool {
		if u := p.Get("user"); u.IsObject() {
			p = u
		}
		id := FirstString(p, "id", "user_id", "userId")
		name := FirstString(p, "username", "full_name", "name", "email")
		if id != "" && name != "" {
			roster[id] = name
		}
		return true
	})
	return roster
}

// FirstString returns the first path that holds a non-empty string or number.
func FirstString(res gjson.Result, paths ...string) string {
	for _, p := range paths {
		v := res.Get(p)
		switch v.Type {
		case gjson.String, gjson.Number:
			if s := v.String(); s != "" {
				return s
			}
		}
	}
	return ""
}

// FirstTime returns the first path that parses as a timestamp, or the zero time.
func FirstTime(res gjson.Result, paths ...string) time.Time {
	for _, p := range paths {
		if t, ok := ParseTime(res.Get(p)); ok {
			return t
		}
	}
	return time.Time{}
}

func firstBool(res gjson.Result, paths ...string) bool {
	for _, p := range paths {
		v := res.Get(p)
		if v.Type == gjson.True {
			return true
		}
	}
	return false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTime accepts ISO-8601 strings (with or without zone, zone-less values
// are UTC) and unix epochs in seconds or milliseconds.
func ParseTime(v gjson.Result) (time.Time, bool) {
	switch v.Type {
	case gjson.Number:
		return fromEpoch(v.Float()), true
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return time.Time{}, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return fromEpoch(f), true
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func fromEpoch(f float64) time.Time {
	if f > 1e12 {
		return time.UnixMilli(int64(f)).UTC()
	}
	sec := int64(f)
	return time.Unix(sec, int64((f-float64(sec))*1e9)).UTC()
}
