package conversation

import (
	"github.com/matheus3301/pulse/internal/bus"
	"github.com/matheus3301/pulse/internal/chat"
)

// Preview is the payload for preview events.
type Preview struct {
	ConversationID string
	Text           string
}

// HistoryLoaded is the payload for history loaded events.
type HistoryLoaded struct {
	ConversationID string
	Messages       []chat.Message
	Participants   chat.Roster
}

// ServerError is the payload for server error events.
type ServerError struct {
	ConversationID string
	Detail         string
}

// Collaborator is the conversation list: it shows the latest preview and
// unread state of each conversation.
type Collaborator interface {
	PreviewUpdated(conversationID, text string)
	MarkedRead(conversationID string)
}

// BusCollaborator forwards collaborator calls to the bus, where the archive
// and the conversation list pick them up.
type BusCollaborator struct {
	Bus *bus.Bus
}

func (c BusCollaborator) PreviewUpdated(conversationID, text string) {
	c.Bus.Emit(bus.KindPreviewUpdated, Preview{ConversationID: conversationID, Text: text})
}

func (c BusCollaborator) MarkedRead(conversationID string) {
	c.Bus.Emit(bus.KindMarkedRead, conversationID)
}
