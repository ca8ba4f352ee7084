// Package conversation hosts one open conversation: its socket, message
// store, receipts, typing and notifications.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/matheus3301/pulse/internal/bus"
	"github.com/matheus3301/pulse/internal/chat"
	"github.com/matheus3301/pulse/internal/classify"
	"github.com/matheus3301/pulse/internal/notify"
	"github.com/matheus3301/pulse/internal/outbox"
	"github.com/matheus3301/pulse/internal/receipts"
	"github.com/matheus3301/pulse/internal/reconcile"
	"github.com/matheus3301/pulse/internal/status"
	"github.com/matheus3301/pulse/internal/transport"
	"github.com/matheus3301/pulse/internal/typing"
)

var ErrUnmounted = errors.New("conversation view is not mounted")

type lifecycle int

const (
	created lifecycle = iota
	mounted
	unmounted
)

// View is a single mount of a conversation. It is not reusable: after
// Unmount build a new one from the Factory.
type View struct {
	id     string
	key    string
	deps   Deps
	logger *zap.Logger

	store    *reconcile.Store
	socket   *transport.Socket
	receipts *receipts.Tracker
	typing   *typing.Coordinator
	gate     *notify.Gate
	outbox   *outbox.Sender

	mu        sync.Mutex
	state     lifecycle
	cancel    context.CancelFunc
	roster    chat.Roster
	err       string
	serverErr string
	loaded    bool
}

func newView(conversationID string, d Deps) (*View, error) {
	url, err := transport.BuildURL(d.ServerURL, conversationID, d.Token)
	if err != nil {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, err)
	}
	logger := d.Logger.With(zap.String("conversation_id", conversationID))
	v := &View{
		id:     conversationID,
		key:    transport.ConversationKey(conversationID),
		deps:   d,
		logger: logger,
		roster: chat.Roster{},
	}

	v.store = reconcile.NewStore(conversationID, d.Self,
		reconcile.WithPolicy(d.Policy),
		reconcile.WithClock(d.Now),
		reconcile.WithPreview(d.Collaborator.PreviewUpdated),
	)
	v.socket = transport.New(transport.Options{
		URL:    url,
		Key:    v.key,
		Dialer: d.Dialer,
		Handlers: transport.Handlers{
			OnOpen:    v.onOpen,
			OnMessage: v.handleFrame,
			OnError:   v.onError,
			OnClose:   v.onClose,
		},
		InitialBackoff: d.InitialBackoff,
		MaxBackoff:     d.MaxBackoff,
		After:          d.After,
		Bus:            d.Bus,
		Logger:         logger,
		Metrics:        d.Metrics,
	})
	v.receipts = receipts.New(v.socket, v.store, d.Self, logger, d.Metrics)
	v.typing = typing.New(v.socket, d.Self, typing.Options{
		Idle:     d.TypingIdle,
		TTL:      d.TypingTTL,
		After:    d.After,
		OnChange: func([]chat.TypingUser) { v.changed() },
		Logger:   logger,
	})
	v.gate = notify.New(d.Platform, d.Window, d.Self, notify.Options{
		Dismiss: d.NotifyDismiss,
		After:   d.After,
		Bus:     d.Bus,
		Logger:  logger,
		Metrics: d.Metrics,
	})
	v.outbox = outbox.NewSender(v.socket, v.store, d.Limiter, d.Bus, logger, d.Metrics)
	return v, nil
}

// ID returns the conversation id.
func (v *View) ID() string { return v.id }

// Mount registers and opens the socket and starts loading history.
func (v *View) Mount(ctx context.Context) error {
	v.mu.Lock()
	switch v.state {
	case mounted:
		v.mu.Unlock()
		return nil
	case unmounted:
		v.mu.Unlock()
		return ErrUnmounted
	}
	v.state = mounted
	ctx, v.cancel = context.WithCancel(ctx)
	v.mu.Unlock()

	v.deps.Registry.Register(v.key, v.socket)
	v.socket.Open(ctx)
	v.deps.Bus.Emit(bus.KindConversationOpen, v.id)
	v.logger.Info("conversation mounted")

	go v.loadHistory(ctx)
	return nil
}

// Unmount stops typing, closes the socket without reconnecting and discards
// any history response still in flight.
func (v *View) Unmount() {
	v.mu.Lock()
	if v.state != mounted {
		v.state = unmounted
		v.mu.Unlock()
		return
	}
	v.state = unmounted
	cancel := v.cancel
	v.mu.Unlock()

	v.typing.Close()
	v.socket.FlagManualClose()
	if err := v.socket.Close(); err != nil {
		v.logger.Debug("socket close", zap.Error(err))
	}
	v.deps.Registry.Unregister(v.key, v.socket)
	cancel()
	v.store.Reset()
	v.logger.Info("conversation unmounted")
}

func (v *View) isMounted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state == mounted
}

func (v *View) loadHistory(ctx context.Context) {
	if v.deps.History == nil {
		v.mu.Lock()
		v.loaded = true
		v.mu.Unlock()
		return
	}
	page, err := v.deps.History.Fetch(ctx, v.id, v.deps.HistoryLimit, 0)

	v.mu.Lock()
	if v.state != mounted || ctx.Err() != nil {
		v.mu.Unlock()
		v.logger.Debug("discarding history for unmounted view")
		return
	}
	if err != nil {
		v.err = fmt.Sprintf("could not load messages: %v", err)
		v.mu.Unlock()
		v.logger.Warn("history fetch failed", zap.Error(err))
		v.changed()
		return
	}
	v.roster.Merge(page.Participants)
	msgs := make([]chat.Message, len(page.Messages))
	for i, m := range page.Messages {
		msgs[i] = v.roster.Resolve(m)
	}
	v.err = ""
	v.loaded = true
	appended := v.store.LoadHistory(msgs)
	v.mu.Unlock()

	v.logger.Info("history loaded", zap.Int("messages", len(msgs)), zap.Int("appended", appended))
	v.deps.Bus.Emit(bus.KindHistoryLoaded, HistoryLoaded{
		ConversationID: v.id,
		Messages:       v.store.Messages(),
		Participants:   page.Participants,
	})
	if v.attentive() {
		v.MarkAllRead()
	}
	v.changed()
}

func (v *View) onOpen() {
	if n := v.receipts.Flush(); n > 0 {
		v.logger.Debug("flushed read receipts", zap.Int("count", n))
	}
	v.changed()
}

func (v *View) onError(error) {
	v.changed()
}

func (v *View) onClose(code websocket.StatusCode, reason string) {
	if code == websocket.StatusPolicyViolation {
		v.mu.Lock()
		v.serverErr = reason
		v.mu.Unlock()
	}
	v.changed()
}

// handleFrame runs on the socket reader goroutine, one frame at a time.
func (v *View) handleFrame(data []byte) {
	switch ev := classify.Classify(data).(type) {
	case classify.MessageEvent:
		v.deps.Metrics.Frame("message")
		v.handleMessage(ev.Message)
	case classify.ReceiptEvent:
		v.deps.Metrics.Frame("receipt")
		if v.store.ApplyReceipt(ev.Receipt) {
			v.publish(ev.Receipt.MessageID)
		}
	case classify.TypingEvent:
		v.deps.Metrics.Frame("typing")
		v.typing.HandleRemote(ev)
	case classify.DeleteEvent:
		v.deps.Metrics.Frame("delete")
		if v.store.MarkDeleted(ev.MessageID, ev.Content, ev.At) {
			v.publish(ev.MessageID)
		}
	case classify.ServerErrorEvent:
		v.deps.Metrics.Frame("error")
		v.mu.Lock()
		v.serverErr = ev.Detail
		v.mu.Unlock()
		v.logger.Warn("server error", zap.String("detail", ev.Detail))
		v.deps.Bus.Emit(bus.KindServerError, ServerError{ConversationID: v.id, Detail: ev.Detail})
	default:
		v.deps.Metrics.Frame("unrecognized")
		return
	}
	v.changed()
}

func (v *View) handleMessage(m chat.Message) {
	if m.ConversationID != "" && m.ConversationID != v.id {
		v.logger.Debug("dropping message for another conversation", zap.String("target", m.ConversationID))
		return
	}
	m.ConversationID = v.id
	v.mu.Lock()
	m = v.roster.Resolve(m)
	v.mu.Unlock()

	res := v.store.Upsert(m)
	v.deps.Metrics.Reconciled(string(res.Rule))
	v.deps.Bus.Emit(bus.KindMessageUpserted, res.Message)

	if v.deps.Self.IsSelf(res.Message) {
		return
	}
	v.gate.Consider(res.Message)
	if v.attentive() {
		v.receipts.ConsiderRead(res.Message.Key())
	}
}

func (v *View) publish(id string) {
	if m, ok := v.store.Lookup(id); ok {
		v.deps.Bus.Emit(bus.KindMessageUpserted, m)
	}
}

func (v *View) changed() {
	v.deps.Bus.Emit(bus.KindViewChanged, v.id)
}

// attentive reports whether the user is looking at the conversation.
func (v *View) attentive() bool {
	return notify.Attentive(v.deps.Window)
}

// Send sends a message optimistically.
func (v *View) Send(content string) (chat.Message, error) {
	if !v.isMounted() {
		return chat.Message{}, ErrUnmounted
	}
	m, err := v.outbox.Send(content)
	if err == nil {
		v.typing.Sent()
	}
	v.changed()
	return m, err
}

// Delete asks the server to delete a message.
func (v *View) Delete(messageID string) error {
	if !v.isMounted() {
		return ErrUnmounted
	}
	return v.outbox.Delete(messageID)
}

// Seen reports messages the user has scrolled past.
func (v *View) Seen(ids ...string) {
	if !v.attentive() {
		return
	}
	for _, id := range ids {
		v.receipts.ConsiderRead(id)
	}
	v.changed()
}

// MarkAllRead considers every unread incoming message as read and tells the
// conversation list.
func (v *View) MarkAllRead() int {
	n := v.receipts.MarkAllRead(v.store.Messages())
	v.deps.Collaborator.MarkedRead(v.id)
	if n > 0 {
		v.changed()
	}
	return n
}

func (v *View) Keystroke() { v.typing.Keystroke() }
func (v *View) Focus()     { v.typing.Focus() }
func (v *View) Blur()      { v.typing.Blur() }

// Messages returns the messages ordered by creation time.
func (v *View) Messages() []chat.Message { return v.store.Messages() }

// TypingUsers returns the remote participants currently typing.
func (v *View) TypingUsers() []chat.TypingUser { return v.typing.Users() }

// Status returns the connection status.
func (v *View) Status() status.State { return v.socket.Status() }

// Err returns the page-level error, if history failed to load.
func (v *View) Err() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// ServerError returns the last error the server reported over the socket.
func (v *View) ServerError() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.serverErr
}

// Loaded reports whether history has been applied.
func (v *View) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loaded
}
