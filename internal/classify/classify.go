// Package classify turns untyped inbound WebSocket frames into a closed set
// of events. Frames that match nothing yield nil; unrecognized frames are
// expected protocol evolution, not faults.
package classify

import (
	"strings"
	"time"

	"github.com/matheus3301/pulse/internal/chat"
	"github.com/tidwall/gjson"
)

// Event is one of MessageEvent, ReceiptEvent, TypingEvent, DeleteEvent or
// ServerErrorEvent.
type Event interface {
	event()
}

// MessageEvent carries a normalized chat message.
type MessageEvent struct {
	Message chat.Message
}

// ReceiptEvent carries a delivery or read receipt for an existing message.
type ReceiptEvent struct {
	Receipt chat.ReceiptUpdate
}

// TypingEvent signals that a remote user started or stopped typing.
type TypingEvent struct {
	Started  bool
	User     chat.TypingUser
	Username string
	Email    string
}

// DeleteEvent signals that a message was soft-deleted.
type DeleteEvent struct {
	MessageID string
	DeletedBy string
	Content   string
	At        time.Time
}

// ServerErrorEvent is an error frame sent by the server, e.g. a rate limit.
type ServerErrorEvent struct {
	Detail string
}

func (MessageEvent) event()     {}
func (ReceiptEvent) event()     {}
func (TypingEvent) event()      {}
func (DeleteEvent) event()      {}
func (ServerErrorEvent) event() {}

var (
	typingStartTags = set("typing_start", "typing.start", "typing")
	typingStopTags  = set("typing_stop", "typing.stop")
	receiptTags     = set("message_read", "receipt", "read", "delivered", "message_delivered", "read_receipt", "message.read", "message.delivered")
	messageTags     = set("message", "new_message", "chat_message", "message.new", "message.created", "message.edited")
	deleteTags      = set("message_delete", "message.deleted", "message_deleted")
	errorTags       = set("error")

	envelopeKeys = []string{"message", "data", "payload", "msg"}
)

// Classify decodes one frame. Precedence is typing, then receipt, then
// message, because payload shapes overlap across protocol versions.
func Classify(data []byte) Event {
	if !gjson.ValidBytes(data) {
		return nil
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil
	}
	tag := strings.ToLower(chat.FirstString(root, "type", "event", "event_type"))

	if ev, ok := typingEvent(root, tag); ok {
		return ev
	}
	if _, ok := errorTags[tag]; ok {
		return ServerErrorEvent{Detail: chat.FirstString(root, "detail", "message", "error", "payload.detail")}
	}
	if ev, ok := deleteEvent(root, tag); ok {
		return ev
	}
	if ev, ok := receiptEvent(root, tag); ok {
		return ev
	}
	if ev, ok := messageEvent(root, tag); ok {
		return ev
	}
	return nil
}

func typingEvent(root gjson.Result, tag string) (TypingEvent, bool) {
	_, start := typingStartTags[tag]
	_, stop := typingStopTags[tag]
	if !start && !stop {
		return TypingEvent{}, false
	}
	body := unwrap(root)
	if v := body.Get("is_typing"); v.Type == gjson.False {
		start = false
	}

	actor := firstObject(body, "user", "sender", "actor")
	if !actor.Exists() {
		actor = firstObject(root, "user", "sender", "actor")
	}
	userID := chat.FirstString(actor, "id", "user_id", "userId")
	username := chat.FirstString(actor, "username", "name", "full_name")
	email := chat.FirstString(actor, "email")
	for _, src := range []gjson.Result{body, root} {
		if userID == "" {
			userID = chat.FirstString(src, "sender_id", "user_id", "senderId", "userId")
		}
		if username == "" {
			username = chat.FirstString(src, "sender_username", "username", "sender_name", "senderName")
		}
		if email == "" {
			email = chat.FirstString(src, "email", "sender_email")
		}
	}

	name := displayName(userID, username, email)
	return TypingEvent{
		Started:  start,
		User:     chat.TypingUser{Key: chat.TypingKey(userID, name), Name: name, UserID: userID},
		Username: username,
		Email:    email,
	}, true
}

func displayName(userID, username, email string) string {
	switch {
	case username != "":
		return username
	case email != "":
		return email
	case userID != "":
		return "User " + userID
	default:
		return "Someone"
	}
}

func deleteEvent(root gjson.Result, tag string) (DeleteEvent, bool) {
	if _, ok := deleteTags[tag]; !ok {
		return DeleteEvent{}, false
	}
	body := unwrap(root)
	id := chat.FirstString(body, "message_id", "messageId", "id", "message.id")
	if id == "" {
		return DeleteEvent{}, false
	}
	return DeleteEvent{
		MessageID: id,
		DeletedBy: chat.FirstString(body, "deleted_by", "sender_id", "user_id"),
		Content:   chat.FirstString(body, "content"),
		At:        chat.FirstTime(body, "updated_at", "deleted_at", "timestamp"),
	}, true
}

// receiptEvent applies the broad net: a receipt tag, read/delivered
// timestamps, or a read/delivered status. It runs before message
// classification, so a frame carrying any of these is a receipt even when it
// also has content; a receipt never creates a message.
func receiptEvent(root gjson.Result, tag string) (ReceiptEvent, bool) {
	body := unwrap(root)
	if _, tagged := receiptTags[tag]; !tagged && !hasReceiptFields(body) {
		return ReceiptEvent{}, false
	}

	id := chat.FirstString(body, "message_id", "messageId", "id", "message.id")
	if id == "" {
		return ReceiptEvent{}, false
	}

	r := chat.ReceiptUpdate{
		MessageID: id,
		ReaderID:  chat.FirstString(body, "reader_id", "readerId", "user_id"),
		Status:    strings.ToLower(chat.FirstString(body, "status")),
	}
	if t := chat.FirstTime(body, "delivered_at", "deliveredAt"); !t.IsZero() {
		r.DeliveredAt = &t
	}
	if t := chat.FirstTime(body, "read_at", "readAt"); !t.IsZero() {
		r.ReadAt = &t
	}
	if r.Status == "" {
		switch {
		case strings.Contains(tag, "read"):
			r.Status = chat.StatusRead
		case strings.Contains(tag, "delivered"):
			r.Status = chat.StatusDelivered
		}
	}
	return ReceiptEvent{Receipt: r}, true
}

func hasReceiptFields(body gjson.Result) bool {
	if !chat.FirstTime(body, "read_at", "readAt", "delivered_at", "deliveredAt").IsZero() {
		return true
	}
	status := strings.ToLower(chat.FirstString(body, "status"))
	return status == chat.StatusRead || status == chat.StatusDelivered
}

func messageEvent(root gjson.Result, tag string) (MessageEvent, bool) {
	for _, k := range envelopeKeys {
		c := root.Get(k)
		if c.IsObject() && looksLikeMessage(c) {
			m := chat.NormalizeMessage(c)
			// Correlation and routing fields sometimes live on the envelope.
			if m.TempID == "" {
				m.TempID = chat.FirstString(root, "temp_id", "tempId", "client_temp_id", "clientTempId")
			}
			if m.ConversationID == "" {
				m.ConversationID = chat.FirstString(root, "conversation_id", "conversationId")
			}
			return accept(m)
		}
	}
	_, tagged := messageTags[tag]
	if !tagged && chat.FirstString(root, "content", "text", "body") == "" {
		return MessageEvent{}, false
	}
	return accept(chat.NormalizeMessage(root))
}

func accept(m chat.Message) (MessageEvent, bool) {
	if m.ID == "" && m.TempID == "" && m.Content == "" {
		return MessageEvent{}, false
	}
	return MessageEvent{Message: m}, true
}

func looksLikeMessage(c gjson.Result) bool {
	return chat.FirstString(c, "id", "message_id", "messageId", "content", "text", "body") != ""
}

// unwrap returns the payload/data envelope when present, else root.
func unwrap(root gjson.Result) gjson.Result {
	if p := firstObject(root, "payload", "data"); p.Exists() {
		return p
	}
	return root
}

func firstObject(res gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := res.Get(k); v.IsObject() {
			return v
		}
	}
	return gjson.Result{}
}

func set(tags ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		m[t] = struct{}{}
	}
	return m
}
