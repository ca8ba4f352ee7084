package bus

import "time"

// Event kinds published by the client.
const (
	KindStatusChanged     = "transport.status_changed"
	KindMessageUpserted   = "conversation.message_upserted"
	KindPreviewUpdated    = "conversation.preview_updated"
	KindMarkedRead        = "conversation.marked_read"
	KindConversationOpen  = "conversation.opened"
	KindViewChanged       = "conversation.view_changed"
	KindHistoryLoaded     = "conversation.history_loaded"
	KindServerError       = "conversation.server_error"
	KindSendFailed        = "outbox.send_failed"
	KindSendAccepted      = "outbox.send_accepted"
	KindNotificationShown = "notify.shown"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
