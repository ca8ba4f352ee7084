// Package wire defines the outbound WebSocket frames the client sends.
package wire

// Outbound frame types.
const (
	TypeMessage       = "message"
	TypeMessageRead   = "message_read"
	TypeMessageDelete = "message_delete"
	TypeTypingStart   = "typing_start"
	TypeTypingStop    = "typing_stop"
)

// SendMessage carries a new message. The temp id is sent under both names so
// servers that only know one of them can echo it back.
type SendMessage struct {
	Type         string `json:"type"`
	Content      string `json:"content"`
	TempID       string `json:"temp_id"`
	ClientTempID string `json:"client_temp_id"`
}

// NewSendMessage builds a message frame.
func NewSendMessage(content, tempID string) SendMessage {
	return SendMessage{Type: TypeMessage, Content: content, TempID: tempID, ClientTempID: tempID}
}

// ReadReceipt marks a message as read by the local user.
type ReadReceipt struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
}

// NewReadReceipt builds a read receipt frame.
func NewReadReceipt(messageID string) ReadReceipt {
	return ReadReceipt{Type: TypeMessageRead, MessageID: messageID}
}

// DeleteMessage asks the server to soft-delete one of the local user's messages.
type DeleteMessage struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
}

// NewDeleteMessage builds a delete frame.
func NewDeleteMessage(messageID string) DeleteMessage {
	return DeleteMessage{Type: TypeMessageDelete, MessageID: messageID}
}

// Typing is a typing start or stop signal.
type Typing struct {
	Type string `json:"type"`
}

// TypingStart is sent when the local user starts typing.
var TypingStart = Typing{Type: TypeTypingStart}

// TypingStop is sent when the local user stops typing.
var TypingStop = Typing{Type: TypeTypingStop}
