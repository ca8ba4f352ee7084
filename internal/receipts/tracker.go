// Package receipts decides when to tell the server a message was read.
package receipts

import (
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/pulse/internal/chat"
	"github.com/matheus3301/pulse/internal/metrics"
	"github.com/matheus3301/pulse/internal/wire"
)

// Sender writes frames to the conversation socket.
type Sender interface {
	IsOpen() bool
	Send(v any) error
}

// Messages is the message store the tracker reads and marks.
type Messages interface {
	Lookup(id string) (chat.Message, bool)
	MarkRead(ids ...string) int
}

// Tracker sends at most one read receipt per message. Receipts considered
// while the socket is closed are queued and sent by Flush.
type Tracker struct {
	sender   Sender
	messages Messages
	self     chat.Identity
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	sent    map[string]struct{}
	pending []string
	queued  map[string]struct{}
}

// New creates a tracker. logger and m may be nil.
func New(sender Sender, messages Messages, self chat.Identity, logger *zap.Logger, m *metrics.Metrics) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		sender:   sender,
		messages: messages,
		self:     self,
		logger:   logger,
		metrics:  m,
		sent:     make(map[string]struct{}),
		queued:   make(map[string]struct{}),
	}
}

// ConsiderRead handles a message the user has visibly consumed. The message
// is marked read locally right away; the receipt is sent now or queued.
// Self-authored and placeholder messages are ignored. It reports whether the
// message was accepted.
func (t *Tracker) ConsiderRead(id string) bool {
	if id == "" {
		return false
	}
	m, ok := t.messages.Lookup(id)
	if !ok || m.IsPlaceholder() || t.self.IsSelf(m) {
		return false
	}
	id = m.Key()

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, done := t.sent[id]; done {
		return false
	}
	t.messages.MarkRead(id)

	if t.sender.IsOpen() && t.sendLocked(id) {
		return true
	}
	if _, ok := t.queued[id]; !ok {
		t.queued[id] = struct{}{}
		t.pending = append(t.pending, id)
	}
	return true
}

// MarkAllRead considers every unread incoming message. It returns how many
// were accepted.
func (t *Tracker) MarkAllRead(msgs []chat.Message) int {
	n := 0
	for _, m := range msgs {
		if m.ReadAt != nil || m.Status == chat.StatusRead {
			continue
		}
		if t.ConsiderRead(m.Key()) {
			n++
		}
	}
	return n
}

// Flush sends queued receipts in the order they were queued. It stops at the
// first write error and keeps the rest queued. Call it when the socket opens.
func (t *Tracker) Flush() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	sent := 0
	for len(t.pending) > 0 {
		id := t.pending[0]
		if _, done := t.sent[id]; !done {
			if !t.sendLocked(id) {
				break
			}
			sent++
		}
		t.pending = t.pending[1:]
		delete(t.queued, id)
	}
	return sent
}

func (t *Tracker) sendLocked(id string) bool {
	if err := t.sender.Send(wire.NewReadReceipt(id)); err != nil {
		t.logger.Debug("read receipt deferred", zap.String("message_id", id), zap.Error(err))
		return false
	}
	t.sent[id] = struct{}{}
	t.metrics.ReceiptSent()
	return true
}

// Pending returns the queued message ids.
func (t *Tracker) Pending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.pending...)
}

// Sent reports whether a receipt for id was already transmitted.
func (t *Tracker) Sent(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.sent[id]
	return ok
}
