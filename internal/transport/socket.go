// Package transport maintains one reconnecting websocket per conversation.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/matheus3301/pulse/internal/bus"
	"github.com/matheus3301/pulse/internal/clock"
	"github.com/matheus3301/pulse/internal/metrics"
	"github.com/matheus3301/pulse/internal/status"
)

const (
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 30 * time.Second

	readLimit    = 1 << 20
	dialTimeout  = 15 * time.Second
	writeTimeout = 10 * time.Second
)

// ErrNotOpen is returned by Send when the socket has no open connection.
var ErrNotOpen = errors.New("socket is not open")

// Conn is the subset of *websocket.Conn the socket uses.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Dialer opens a connection to url.
type Dialer func(ctx context.Context, url string) (Conn, error)

// DialWebsocket is the default Dialer.
func DialWebsocket(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c.SetReadLimit(readLimit)
	return c, nil
}

// Handlers receive socket lifecycle callbacks. All are optional and run on
// the socket's reader goroutine, so frames arrive strictly in order.
type Handlers struct {
	OnOpen    func()
	OnMessage func(data []byte)
	OnError   func(err error)
	OnClose   func(code websocket.StatusCode, reason string)
}

// Options configures a Socket.
type Options struct {
	URL      string
	Key      string
	Dialer   Dialer
	Handlers Handlers

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	After          clock.AfterFunc

	Bus     *bus.Bus
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Socket is a websocket that redials with exponential backoff after an
// unexpected close. A socket flagged for manual close never redials.
type Socket struct {
	opts    Options
	logger  *zap.Logger
	machine *status.Machine
	backoff *backoff.ExponentialBackOff

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	conn    Conn
	open    bool
	manual  bool
	started bool
	attempt int
	retry   clock.Timer
}

// New builds a socket without dialing.
func New(opts Options) *Socket {
	if opts.Dialer == nil {
		opts.Dialer = DialWebsocket
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if opts.After == nil {
		opts.After = clock.System
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.InitialBackoff
	b.MaxInterval = opts.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	return &Socket{
		opts:    opts,
		logger:  logger.With(zap.String("socket", opts.Key)),
		machine: status.NewMachine(opts.Key, opts.Bus),
		backoff: b,
	}
}

// Connect builds a socket and starts dialing.
func Connect(ctx context.Context, opts Options) *Socket {
	s := New(opts)
	s.Open(ctx)
	return s
}

// Open starts the dial loop. It returns immediately; progress is reported
// through Handlers and the status machine. Calling Open twice is a no-op.
func (s *Socket) Open(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	go s.dial()
}

func (s *Socket) dial() {
	s.mu.Lock()
	s.retry = nil
	if s.manual || s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.mu.Unlock()

	s.transition(status.Connecting)

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, err := s.opts.Dialer(dialCtx, s.opts.URL)
	cancel()
	if err != nil {
		if s.isManual() {
			s.transition(status.Disconnected)
			return
		}
		s.logger.Warn("dial failed", zap.Error(err))
		s.fail(err)
		s.closed(-1, err.Error())
		return
	}

	s.mu.Lock()
	if s.manual {
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.transition(status.Disconnected)
		return
	}
	s.conn = conn
	s.open = true
	s.attempt = 0
	s.backoff.Reset()
	s.mu.Unlock()

	s.logger.Info("socket open")
	s.opts.Metrics.SocketOpened()
	s.transition(status.Connected)
	if h := s.opts.Handlers.OnOpen; h != nil {
		h()
	}
	s.readLoop(ctx, conn)
}

func (s *Socket) readLoop(ctx context.Context, conn Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			s.readFailed(conn, err)
			return
		}
		if h := s.opts.Handlers.OnMessage; h != nil {
			h(data)
		}
	}
}

func (s *Socket) readFailed(conn Conn, err error) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.open = false
	manual := s.manual
	s.mu.Unlock()
	s.opts.Metrics.SocketClosed()

	code := websocket.CloseStatus(err)
	reason := ""
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		reason = ce.Reason
	}
	if code == -1 && !manual {
		s.logger.Warn("socket error", zap.Error(err))
		s.fail(err)
		_ = conn.Close(websocket.StatusInternalError, "read failed")
	}
	s.logger.Info("socket closed", zap.Int("code", int(code)), zap.String("reason", reason), zap.Bool("manual", manual))
	s.closed(code, reason)
}

// fail moves to the error state. It never schedules a retry.
func (s *Socket) fail(err error) {
	s.transition(status.Error)
	if h := s.opts.Handlers.OnError; h != nil {
		h(err)
	}
}

func (s *Socket) closed(code websocket.StatusCode, reason string) {
	s.transition(status.Disconnected)
	if h := s.opts.Handlers.OnClose; h != nil {
		h(code, reason)
	}
	s.scheduleRetry()
}

func (s *Socket) scheduleRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manual || s.ctx.Err() != nil {
		return
	}
	delay := s.backoff.NextBackOff()
	s.attempt++
	s.logger.Info("scheduling reconnect", zap.Duration("delay", delay), zap.Int("attempt", s.attempt))
	s.opts.Metrics.Reconnect()
	s.retry = s.opts.After(delay, func() { go s.dial() })
}

func (s *Socket) transition(to status.State) {
	// Same-state and out-of-order transitions are harmless here.
	_ = s.machine.Transition(to)
}

func (s *Socket) isManual() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manual
}

// FlagManualClose marks the socket as deliberately closed. A flagged socket
// never schedules a reconnect, and a pending reconnect is cancelled.
func (s *Socket) FlagManualClose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manual = true
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
}

// Close flags the socket for manual close and closes the connection.
func (s *Socket) Close() error {
	s.FlagManualClose()

	s.mu.Lock()
	conn := s.conn
	cancel := s.cancel
	s.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close(websocket.StatusNormalClosure, "")
	}
	if cancel != nil {
		cancel()
	}
	return err
}

// Send JSON-encodes v and writes it as one text frame.
func (s *Socket) Send(v any) error {
	s.mu.Lock()
	conn, open, ctx := s.conn, s.open, s.ctx
	s.mu.Unlock()
	if !open || conn == nil {
		return ErrNotOpen
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := conn.Write(wctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// IsOpen reports whether the socket currently has an open connection.
func (s *Socket) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Status returns the connection status.
func (s *Socket) Status() status.State {
	return s.machine.Current()
}

// Attempt returns the number of reconnects scheduled since the last open.
func (s *Socket) Attempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

// Key returns the registry key.
func (s *Socket) Key() string {
	return s.opts.Key
}
