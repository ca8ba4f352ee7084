package store

// Conversation is an archived conversation with its list state.
type Conversation struct {
	ID                 string
	Name               string
	Description        string
	IsGroup            bool
	UnreadCount        int
	LastMessageAt      int64
	LastMessagePreview string
	LastReadAt         int64
}

// Participant maps a user id to a display name.
type Participant struct {
	UserID string
	Name   string
}

// Message is an archived message. Timestamps are unix milliseconds; zero
// means unknown.
type Message struct {
	ID             int64
	ConversationID string
	MsgID          string
	TempID         string
	SenderID       string
	SenderName     string
	Body           string
	Status         string
	FromMe         bool
	Edited         bool
	Deleted        bool
	Timestamp      int64
	DeliveredAt    int64
	ReadAt         int64
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
