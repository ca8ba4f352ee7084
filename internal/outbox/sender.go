package outbox

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/matheus3301/pulse/internal/bus"
	"github.com/matheus3301/pulse/internal/chat"
	"github.com/matheus3301/pulse/internal/metrics"
	"github.com/matheus3301/pulse/internal/wire"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrNotConnected = errors.New("not connected, message not sent")
	ErrThrottled    = errors.New("sending too fast, slow down")
)

// The server drops socket events beyond 60 per 30 seconds. Messages get a
// burst below that so typing and receipts still fit.
const (
	ServerEventLimit  = 60
	ServerEventWindow = 30 * time.Second
	messageBurst      = 20
)

// TempIDPrefix marks client-generated message ids.
const TempIDPrefix = "tmp-"

// Transport writes frames to the conversation socket.
type Transport interface {
	IsOpen() bool
	Send(v any) error
}

// Optimistic is the message store side of a send.
type Optimistic interface {
	AddOptimistic(tempID, content string) chat.Message
	MarkFailed(tempID string)
}

// SendFailed is the payload for send failure events.
type SendFailed struct {
	TempID string
	Err    string
}

// NewLimiter returns the send throttle matching the server's event limit.
func NewLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(ServerEventWindow/ServerEventLimit), messageBurst)
}

// Sender performs optimistic sends: the message is shown under a temp id
// before the server echoes it back.
type Sender struct {
	transport Transport
	store     Optimistic
	limiter   *rate.Limiter
	bus       *bus.Bus
	logger    *zap.Logger
	metrics   *metrics.Metrics
	newTempID func() string
}

// NewSender creates a new outbox sender. A nil limiter disables throttling.
func NewSender(t Transport, store Optimistic, limiter *rate.Limiter, b *bus.Bus, logger *zap.Logger, m *metrics.Metrics) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		transport: t,
		store:     store,
		limiter:   limiter,
		bus:       b,
		logger:    logger,
		metrics:   m,
		newTempID: func() string { return TempIDPrefix + uuid.NewString() },
	}
}

// Send inserts an optimistic placeholder and writes the message frame.
// Nothing is queued: when the socket is closed the user has to resend.
func (s *Sender) Send(content string) (chat.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return chat.Message{}, ErrEmptyMessage
	}
	if !s.transport.IsOpen() {
		s.metrics.SendFailed("not_connected")
		return chat.Message{}, ErrNotConnected
	}
	if s.limiter != nil && !s.limiter.Allow() {
		s.metrics.SendFailed("throttled")
		return chat.Message{}, ErrThrottled
	}

	tempID := s.newTempID()
	placeholder := s.store.AddOptimistic(tempID, content)
	s.bus.Emit(bus.KindMessageUpserted, placeholder)

	if err := s.transport.Send(wire.NewSendMessage(content, tempID)); err != nil {
		s.logger.Error("failed to send message", zap.Error(err), zap.String("temp_id", tempID))
		s.store.MarkFailed(tempID)
		s.metrics.SendFailed("write")
		placeholder.Status = chat.StatusFailed
		s.bus.Emit(bus.KindSendFailed, SendFailed{TempID: tempID, Err: err.Error()})
		return placeholder, fmt.Errorf("send message: %w", err)
	}

	s.logger.Debug("message sent", zap.String("temp_id", tempID))
	s.bus.Emit(bus.KindSendAccepted, placeholder)
	return placeholder, nil
}

// Delete asks the server to delete one of the user's messages. The message
// is marked deleted once the server broadcasts the deletion.
func (s *Sender) Delete(messageID string) error {
	if messageID == "" {
		return errors.New("message id is required")
	}
	if strings.HasPrefix(messageID, TempIDPrefix) {
		return fmt.Errorf("message %s has not reached the server yet", messageID)
	}
	if !s.transport.IsOpen() {
		return ErrNotConnected
	}
	if err := s.transport.Send(wire.NewDeleteMessage(messageID)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}
