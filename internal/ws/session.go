// Package ws implements the persistent websocket session to an XRPL server:
// correlated request/response, stream subscriptions, and supervised
// reconnection with bounded exponential backoff. Server pushes are queued on
// an event channel; the receive loop never blocks on a slow consumer.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/LeJamon/xrpltop/internal/metrics"
)

// Status is the connection state exposed to the snapshot publisher.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

var (
	// ErrConnectionLost fails requests that were in flight when the
	// connection dropped. Reconnection proceeds in the background.
	ErrConnectionLost = errors.New("connection lost")
	// ErrConnectionUnavailable is returned once reconnection attempts are
	// exhausted.
	ErrConnectionUnavailable = errors.New("connection unavailable")
	ErrNotConnected          = errors.New("not connected")
	ErrRequestTimeout        = errors.New("request timed out")
	ErrSessionClosed         = errors.New("session closed")
	// ErrAlreadyStarted rejects a second Connect: a session runs one
	// supervisor for its lifetime.
	ErrAlreadyStarted = errors.New("session already started")
)

// RequestError is a server-side rejection of a correlated request.
type RequestError struct {
	Code    string
	Message string
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed: %s", e.Code)
	}
	return fmt.Sprintf("request failed: %s (%s)", e.Code, e.Message)
}

// Event is a server push message tagged with its stream type.
type Event struct {
	Type string
	Raw  json.RawMessage
}

// Config carries the session tunables. Zero values fall back to defaults.
type Config struct {
	Endpoint              string
	RequestTimeout        time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	// MaxReconnectAttempts bounds consecutive failed attempts before the
	// session gives up. Zero means retry forever.
	MaxReconnectAttempts int
	EventBuffer          int
	HandshakeTimeout     time.Duration
}

func (c *Config) applyDefaults() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.ReconnectInitialDelay == 0 {
		c.ReconnectInitialDelay = time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.EventBuffer == 0 {
		c.EventBuffer = 256
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
}

// StatusFunc observes connection status transitions.
type StatusFunc func(Status)

type rpcOutcome struct {
	result json.RawMessage
	err    error
}

// Session is a supervised websocket client. Connect starts the supervisor;
// Request and Subscribe may be called from any goroutine.
type Session struct {
	cfg      Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	onStatus StatusFunc

	events chan Event

	mu          sync.Mutex
	conn        *websocket.Conn
	status      Status
	pending     map[string]chan rpcOutcome
	streams     map[string]struct{}
	accounts    map[string]struct{}
	started     bool
	closed      bool
	terminalErr error
	cancel      context.CancelFunc

	writeMu sync.Mutex
}

func NewSession(cfg Config, logger *zap.Logger, m *metrics.Metrics, onStatus StatusFunc) *Session {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		onStatus: onStatus,
		events:   make(chan Event, cfg.EventBuffer),
		pending:  make(map[string]chan rpcOutcome),
		streams:  make(map[string]struct{}),
		accounts: make(map[string]struct{}),
	}
}

// Events returns the server push queue. The channel is closed when the
// session terminates.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Status returns the current connection status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetOnStatus replaces the status observer. Call before Connect.
func (s *Session) SetOnStatus(fn StatusFunc) {
	s.mu.Lock()
	s.onStatus = fn
	s.mu.Unlock()
}

// TerminalErr reports why the session stopped for good:
// ErrConnectionUnavailable after reconnection attempts are exhausted, nil
// after a clean Close or context cancellation. Read it once Events() closes.
func (s *Session) TerminalErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminalErr
}

// Connect dials the endpoint and starts the supervisor loop. It returns once
// the first connection is established, or with ErrConnectionUnavailable if
// the configured attempts are exhausted before ever connecting.
func (s *Session) Connect(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return ErrSessionClosed
	}
	if s.started {
		s.mu.Unlock()
		cancel()
		return ErrAlreadyStarted
	}
	s.started = true
	s.cancel = cancel
	s.mu.Unlock()

	s.setStatus(StatusConnecting)

	ready := make(chan error, 1)
	go s.run(runCtx, ready)

	select {
	case err := <-ready:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears the session down. In-flight requests fail with
// ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	conn := s.conn
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	s.failPending(ErrSessionClosed)
	return nil
}

// run is the connection supervisor: it dials, re-issues subscriptions,
// pumps inbound messages, and backs off between attempts.
func (s *Session) run(ctx context.Context, ready chan<- error) {
	defer close(s.events)

	delay := s.cfg.ReconnectInitialDelay
	attempts := 0
	connectedOnce := false

	for {
		err := s.runOnce(ctx, func() {
			attempts = 0
			delay = s.cfg.ReconnectInitialDelay
			if !connectedOnce {
				connectedOnce = true
				ready <- nil
			}
		})

		s.failPending(ErrConnectionLost)

		if ctx.Err() != nil || s.isClosed() {
			s.setStatus(StatusDisconnected)
			return
		}

		attempts++
		if s.cfg.MaxReconnectAttempts > 0 && attempts >= s.cfg.MaxReconnectAttempts {
			s.logger.Error("reconnection attempts exhausted",
				zap.Int("attempts", attempts), zap.Error(err))
			s.mu.Lock()
			s.terminalErr = ErrConnectionUnavailable
			s.mu.Unlock()
			s.setStatus(StatusDisconnected)
			if !connectedOnce {
				ready <- ErrConnectionUnavailable
			}
			return
		}

		s.logger.Warn("connection lost, reconnecting",
			zap.Error(err), zap.Duration("delay", delay))
		s.setStatus(StatusReconnecting)
		s.metrics.SessionReconnect()

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			s.setStatus(StatusDisconnected)
			if !connectedOnce {
				ready <- ctx.Err()
			}
			return
		}

		delay *= 2
		if delay > s.cfg.ReconnectMaxDelay {
			delay = s.cfg.ReconnectMaxDelay
		}
	}
}

// runOnce establishes a single connection and processes messages until it
// fails. onConnected fires after the connection is registered.
func (s *Session) runOnce(ctx context.Context, onConnected func()) error {
	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.cfg.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", s.cfg.Endpoint, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return ErrSessionClosed
	}
	s.conn = conn
	s.mu.Unlock()

	s.setStatus(StatusConnected)
	onConnected()

	if err := s.resubscribe(); err != nil {
		s.logger.Warn("resubscribe failed", zap.Error(err))
	}

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(conn, done)

	conn.SetReadLimit(512 * 1024)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			s.conn = nil
			s.mu.Unlock()
			conn.Close()
			return err
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		s.dispatch(payload)
	}
}

func (s *Session) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

type envelope struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Status       string          `json:"status"`
	Result       json.RawMessage `json:"result"`
	ErrorCode    string          `json:"error"`
	ErrorMessage string          `json:"error_message"`
}

// dispatch routes an inbound message either to the pending request matching
// its correlation id or to the event queue - never both.
func (s *Session) dispatch(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		s.logger.Warn("discarding unparseable message", zap.Error(err))
		return
	}

	if env.ID != "" {
		s.mu.Lock()
		ch, ok := s.pending[env.ID]
		if ok {
			delete(s.pending, env.ID)
		}
		s.mu.Unlock()

		if !ok {
			// Response to a request that already timed out.
			s.logger.Debug("response for unknown request id", zap.String("id", env.ID))
			return
		}

		if env.Status == "success" {
			ch <- rpcOutcome{result: env.Result}
		} else {
			ch <- rpcOutcome{err: &RequestError{Code: env.ErrorCode, Message: env.ErrorMessage}}
		}
		return
	}

	if env.Type == "" || env.Type == "response" {
		return
	}

	select {
	case s.events <- Event{Type: env.Type, Raw: payload}:
	default:
		s.metrics.EventDropped()
		s.logger.Warn("event queue full, dropping event", zap.String("type", env.Type))
	}
}

// Request sends a correlated command and blocks until the matching response
// arrives, the context ends, or the request timeout elapses.
func (s *Session) Request(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	id := uuid.NewString()
	ch := make(chan rpcOutcome, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.status != StatusConnected || s.conn == nil {
		s.mu.Unlock()
		s.metrics.Request(method, "not_connected")
		return nil, ErrNotConnected
	}
	conn := s.conn
	s.pending[id] = ch
	s.mu.Unlock()

	msg := make(map[string]any, len(params)+2)
	for k, v := range params {
		msg[k] = v
	}
	msg["id"] = id
	msg["command"] = method

	if err := s.write(conn, msg); err != nil {
		s.dropPending(id)
		s.metrics.Request(method, "write_error")
		return nil, fmt.Errorf("sending %s: %w", method, err)
	}

	timer := time.NewTimer(s.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		if out.err != nil {
			s.metrics.Request(method, "error")
			return nil, out.err
		}
		s.metrics.Request(method, "success")
		return out.result, nil
	case <-timer.C:
		s.dropPending(id)
		s.metrics.Request(method, "timeout")
		return nil, ErrRequestTimeout
	case <-ctx.Done():
		s.dropPending(id)
		s.metrics.Request(method, "canceled")
		return nil, ctx.Err()
	}
}

// Subscribe registers interest in streams and account update feeds. The
// subscription set is remembered and re-issued after every reconnect.
func (s *Session) Subscribe(ctx context.Context, streams, accounts []string) error {
	s.mu.Lock()
	for _, st := range streams {
		s.streams[st] = struct{}{}
	}
	for _, a := range accounts {
		s.accounts[a] = struct{}{}
	}
	s.mu.Unlock()

	params := make(map[string]any)
	if len(streams) > 0 {
		params["streams"] = streams
	}
	if len(accounts) > 0 {
		params["accounts"] = accounts
	}
	if len(params) == 0 {
		return nil
	}

	_, err := s.Request(ctx, "subscribe", params)
	return err
}

// resubscribe re-issues the accumulated subscription set after a reconnect.
// It is fire-and-forget: the server confirms with a response the dispatcher
// discards as an unknown id.
func (s *Session) resubscribe() error {
	s.mu.Lock()
	streams := make([]string, 0, len(s.streams))
	for st := range s.streams {
		streams = append(streams, st)
	}
	accounts := make([]string, 0, len(s.accounts))
	for a := range s.accounts {
		accounts = append(accounts, a)
	}
	conn := s.conn
	s.mu.Unlock()

	if len(streams) == 0 && len(accounts) == 0 {
		return nil
	}
	if conn == nil {
		return ErrNotConnected
	}

	msg := map[string]any{
		"id":      uuid.NewString(),
		"command": "subscribe",
	}
	if len(streams) > 0 {
		msg["streams"] = streams
	}
	if len(accounts) > 0 {
		msg["accounts"] = accounts
	}

	s.logger.Info("re-issuing subscriptions",
		zap.Strings("streams", streams), zap.Int("accounts", len(accounts)))
	return s.write(conn, msg)
}

func (s *Session) write(conn *websocket.Conn, msg any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(msg)
}

func (s *Session) dropPending(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// failPending completes every in-flight request with err.
func (s *Session) failPending(err error) {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[string]chan rpcOutcome)
	s.mu.Unlock()

	for _, ch := range pending {
		ch <- rpcOutcome{err: err}
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	if s.status == status {
		s.mu.Unlock()
		return
	}
	s.status = status
	onStatus := s.onStatus
	s.mu.Unlock()

	s.metrics.SessionStatus(status.String())
	if onStatus != nil {
		onStatus(status)
	}
}
