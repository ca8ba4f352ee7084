package archive

import (
	"context"
	"fmt"

	"github.com/matheus3301/pulse/internal/bus"
	"github.com/matheus3301/pulse/internal/chat"
	"github.com/matheus3301/pulse/internal/conversation"
	"github.com/matheus3301/pulse/internal/store"
	"go.uber.org/zap"
)

// KindArchived is published after a history page has been written.
const KindArchived = "archive.history_written"

// previewLen caps the preview text kept per conversation.
const previewLen = 100

// Written is the payload of KindArchived.
type Written struct {
	ConversationID string
	Messages       int
	Participants   int
}

// Engine writes conversation events into the local archive. It subscribes
// to "conversation." events on the bus; every write is idempotent, so a
// replayed or dropped-then-refetched event never duplicates rows.
type Engine struct {
	db     *store.DB
	bus    *bus.Bus
	self   chat.Identity
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a new archive engine.
func NewEngine(db *store.DB, b *bus.Bus, self chat.Identity, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:     db,
		bus:    b,
		self:   self,
		logger: logger,
	}
}

// Start subscribes to conversation events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("conversation.", 256)
	e.done = make(chan struct{})

	go func() {
		defer close(e.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for the in-flight event.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindMessageUpserted:
		msg, ok := evt.Payload.(chat.Message)
		if !ok {
			return
		}
		if err := e.IngestMessage(msg); err != nil {
			e.logger.Error("failed to archive message", zap.Error(err), zap.String("msg_id", msg.Key()))
		}
	case bus.KindPreviewUpdated:
		p, ok := evt.Payload.(conversation.Preview)
		if !ok {
			return
		}
		if err := e.db.UpdatePreview(p.ConversationID, truncate(p.Text, previewLen), evt.Timestamp.UnixMilli()); err != nil {
			e.logger.Error("failed to archive preview", zap.Error(err), zap.String("conversation_id", p.ConversationID))
		}
	case bus.KindMarkedRead:
		id, ok := evt.Payload.(string)
		if !ok {
			return
		}
		if err := e.db.MarkConversationRead(id, evt.Timestamp.UnixMilli()); err != nil {
			e.logger.Error("failed to archive read marker", zap.Error(err), zap.String("conversation_id", id))
		}
	case bus.KindConversationOpen:
		id, ok := evt.Payload.(string)
		if !ok {
			return
		}
		if err := e.db.SetState(store.StateLastConversation, id); err != nil {
			e.logger.Warn("failed to record last conversation", zap.Error(err))
		}
	case bus.KindHistoryLoaded:
		h, ok := evt.Payload.(conversation.HistoryLoaded)
		if !ok {
			return
		}
		if err := e.IngestHistory(h); err != nil {
			e.logger.Error("failed to archive history", zap.Error(err), zap.String("conversation_id", h.ConversationID))
		}
	}
}

// IngestMessage writes a single message into the archive (idempotent).
// Messages without a conversation are skipped.
func (e *Engine) IngestMessage(m chat.Message) error {
	if m.ConversationID == "" || m.Key() == "" {
		return nil
	}
	if err := e.db.UpsertConversation(&store.Conversation{ID: m.ConversationID}); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	row := e.toRow(m)
	if err := e.db.UpsertMessage(&row); err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	return nil
}

// IngestHistory writes a loaded history page and its participants.
func (e *Engine) IngestHistory(h conversation.HistoryLoaded) error {
	if len(h.Participants) > 0 {
		ps := make([]store.Participant, 0, len(h.Participants))
		for id, name := range h.Participants {
			ps = append(ps, store.Participant{UserID: id, Name: name})
		}
		if err := e.db.BulkUpsertParticipants(ps); err != nil {
			return fmt.Errorf("upsert participants: %w", err)
		}
	}

	if err := e.db.UpsertConversation(&store.Conversation{ID: h.ConversationID}); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	rows := make([]store.Message, 0, len(h.Messages))
	var latest *store.Message
	for _, m := range h.Messages {
		if m.Key() == "" {
			continue
		}
		if m.ConversationID == "" {
			m.ConversationID = h.ConversationID
		}
		rows = append(rows, e.toRow(m))
		if r := &rows[len(rows)-1]; latest == nil || r.Timestamp >= latest.Timestamp {
			latest = r
		}
	}
	if err := e.db.BulkUpsertMessages(rows); err != nil {
		return fmt.Errorf("upsert history: %w", err)
	}
	if latest != nil && latest.Body != "" {
		if err := e.db.UpdatePreview(h.ConversationID, truncate(latest.Body, previewLen), latest.Timestamp); err != nil {
			return fmt.Errorf("update preview: %w", err)
		}
	}

	e.bus.Emit(KindArchived, Written{
		ConversationID: h.ConversationID,
		Messages:       len(rows),
		Participants:   len(h.Participants),
	})
	return nil
}

func (e *Engine) toRow(m chat.Message) store.Message {
	id := m.ID
	if id == "" {
		id = m.TempID
	}
	return store.Message{
		ConversationID: m.ConversationID,
		MsgID:          id,
		TempID:         m.TempID,
		SenderID:       m.SenderID,
		SenderName:     m.SenderName,
		Body:           m.Content,
		Status:         m.Status,
		FromMe:         e.self.IsSelf(m),
		Edited:         m.Edited,
		Deleted:        m.Deleted,
		Timestamp:      millis(m.CreatedAt),
		DeliveredAt:    ptrMillis(m.DeliveredAt),
		ReadAt:         ptrMillis(m.ReadAt),
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}
