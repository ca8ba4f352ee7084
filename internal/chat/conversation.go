package chat

import (
	"time"

	"github.com/tidwall/gjson"
)

// Conversation is a chat the local user participates in.
type Conversation struct {
	ID          string
	Name        string
	Description string
	IsGroup     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Title returns the display name, falling back to the id.
func (c Conversation) Title() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// NormalizeConversation maps a conversation payload onto Conversation.
func NormalizeConversation(res gjson.Result) Conversation {
	return Conversation{
		ID:          FirstString(res, "id", "conversation_id", "conversationId"),
		Name:        FirstString(res, "name", "title"),
		Description: FirstString(res, "description"),
		IsGroup:     firstBool(res, "is_group", "isGroup"),
		CreatedAt:   FirstTime(res, createdFields...),
		UpdatedAt:   FirstTime(res, updatedFields...),
	}
}
