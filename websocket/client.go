package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tradingiq/koscom-client/interfaces"
	"github.com/tradingiq/koscom-client/translate"
	"github.com/tradingiq/koscom-client/types"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultURL = "wss://newmobile.koscom.co.kr"

	DefaultReconnectDelay   = time.Second
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultReadLimit        = 1 << 20

	closeTimeout = 2 * time.Second
	pingTimeout  = 5 * time.Second
)

var (
	ErrAlreadyRunning = errors.New("session is already running")
	ErrNilRegistry    = errors.New("session requires a registry")
	ErrNilTable       = errors.New("session requires a translation table")
	ErrNilSubscriber  = errors.New("session requires a subscriber")
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateStreaming
	StateBackoff
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateStreaming:
		return "STREAMING"
	case StateBackoff:
		return "BACKOFF"
	case StateStopped:
		return "STOPPED"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

type Stats struct {
	Epochs         uint64
	Delivered      uint64
	DecodeErrors   uint64
	CallbackPanics uint64
}

// Session keeps one connection to the streaming endpoint alive, resubscribing
// every registry entry after each reconnect. A Session owns its Registry.
type Session struct {
	url      string
	registry *Registry
	table    *translate.Table
	logger   *zap.Logger
	backoff  Backoff

	handshakeTimeout time.Duration
	readTimeout      time.Duration
	pingInterval     time.Duration
	readLimit        int64

	state   atomic.Int32
	running atomic.Bool

	epochs         atomic.Uint64
	delivered      atomic.Uint64
	decodeErrors   atomic.Uint64
	callbackPanics atomic.Uint64
}

type SessionOption func(*Session)

func WithURL(url string) SessionOption {
	return func(s *Session) {
		s.url = url
	}
}

func WithBackoff(backoff Backoff) SessionOption {
	return func(s *Session) {
		if backoff != nil {
			s.backoff = backoff
		}
	}
}

func WithReconnectDelay(delay time.Duration) SessionOption {
	return WithBackoff(FixedBackoff(delay))
}

// WithReadTimeout forces a reconnect when no message arrives within d. Zero disables it.
func WithReadTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		s.readTimeout = d
	}
}

// WithPingInterval sends a keepalive ping every d; a missed pong forces a
// reconnect. Zero disables it.
func WithPingInterval(d time.Duration) SessionOption {
	return func(s *Session) {
		s.pingInterval = d
	}
}

func WithHandshakeTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.handshakeTimeout = d
		}
	}
}

func WithReadLimit(n int64) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.readLimit = n
		}
	}
}

func NewSession(registry *Registry, table *translate.Table, logger *zap.Logger, opts ...SessionOption) (*Session, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if table == nil {
		return nil, ErrNilTable
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		url:              DefaultURL,
		registry:         registry,
		table:            table,
		logger:           logger,
		backoff:          FixedBackoff(DefaultReconnectDelay),
		handshakeTimeout: DefaultHandshakeTimeout,
		readLimit:        DefaultReadLimit,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) Stats() Stats {
	return Stats{
		Epochs:         s.epochs.Load(),
		Delivered:      s.delivered.Load(),
		DecodeErrors:   s.decodeErrors.Load(),
		CallbackPanics: s.callbackPanics.Load(),
	}
}

func (s *Session) setState(state State) {
	prev := State(s.state.Swap(int32(state)))
	if prev != state {
		s.logger.Debug("Session state changed", zap.Stringer("from", prev), zap.Stringer("to", state))
	}
}

// Run streams until ctx is cancelled. Connection failures never end the loop;
// they are logged and retried after the backoff delay. Run returns nil once
// stopped by ctx.
func (s *Session) Run(ctx context.Context, subscriber interfaces.TickSubscriber) error {
	if subscriber == nil {
		return ErrNilSubscriber
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)
	defer s.setState(StateStopped)

	attempt := 0
	for {
		if ctx.Err() != nil {
			s.logger.Info("Stream stopped")
			return nil
		}

		s.setState(StateConnecting)
		streamed, err := s.runEpoch(ctx, subscriber)
		s.registry.MarkAll(types.Unsubscribed)

		if ctx.Err() != nil {
			s.logger.Info("Stream stopped")
			return nil
		}

		if streamed {
			attempt = 0
		}
		attempt++

		delay := s.backoff.Next(attempt)
		s.setState(StateBackoff)
		s.logger.Error("Stream disconnected, reconnecting",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
		)

		if !sleepContext(ctx, delay) {
			s.logger.Info("Stream stopped")
			return nil
		}
	}
}

// runEpoch covers one connection: dial, subscribe, read until failure. The
// connection is always closed before it returns. streamed reports whether
// the subscribe batch went out.
func (s *Session) runEpoch(ctx context.Context, subscriber interfaces.TickSubscriber) (streamed bool, err error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return false, err
	}

	epoch := uuid.NewString()
	logger := s.logger.With(zap.String("epoch", epoch))

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			s.closeGracefully(conn, logger)
		case <-done:
		}
	}()
	pingCtx, stopPing := context.WithCancel(context.Background())
	if s.pingInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.keepalive(pingCtx, conn, logger)
		}()
	}
	defer func() {
		close(done)
		stopPing()
		wg.Wait()
		conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}()

	if err := s.subscribeAll(ctx, conn, logger); err != nil {
		return false, err
	}
	s.registry.MarkAll(types.Subscribed)
	s.epochs.Add(1)
	s.setState(StateStreaming)

	return true, s.readLoop(conn, epoch, logger, subscriber)
}

func (s *Session) connect(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, s.handshakeTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to websocket: %w", err)
	}
	conn.SetReadLimit(s.readLimit)

	s.logger.Info("Connected to KOSCOM WebSocket", zap.String("url", s.url))
	return conn, nil
}

func (s *Session) subscribeAll(ctx context.Context, conn *websocket.Conn, logger *zap.Logger) error {
	msgs := s.registry.BuildSubscribeBatch()
	frame, err := EncodeFrame(msgs)
	if err != nil {
		return err
	}

	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("failed to send subscribe request: %w", err)
	}

	logger.Info("Sent subscribe request", zap.Int("subscriptions", len(msgs)))
	return nil
}

// closeGracefully tells the vendor to stop streaming and closes the socket.
func (s *Session) closeGracefully(conn *websocket.Conn, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	frame, err := EncodeFrame(s.registry.BuildUnsubscribeBatch())
	if err == nil {
		err = conn.Write(ctx, websocket.MessageText, frame)
	}
	if err != nil {
		logger.Debug("Failed to send unsubscribe request", zap.Error(err))
	} else {
		logger.Info("Sent unsubscribe request", zap.Int("subscriptions", s.registry.Len()))
	}

	conn.Close(websocket.StatusNormalClosure, "client shutdown")
}

// keepalive pings until ctx ends; ctx is scoped to the epoch, not to Run.
func (s *Session) keepalive(ctx context.Context, conn *websocket.Conn, logger *zap.Logger) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				logger.Error("Failed to send ping", zap.Error(err))
				conn.Close(websocket.StatusGoingAway, "ping failed")
				return
			}
		}
	}
}

func (s *Session) readLoop(conn *websocket.Conn, epoch string, logger *zap.Logger, subscriber interfaces.TickSubscriber) error {
	for {
		ctx, cancel := s.readContext()
		_, data, err := conn.Read(ctx)
		cancel()
		if err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				return fmt.Errorf("connection closed with status %d: %w", status, err)
			}
			return fmt.Errorf("failed to read message: %w", err)
		}

		s.handleMessage(data, epoch, logger, subscriber)
	}
}

// The read context is detached from Run's ctx; cancellation reaches the
// reader through the socket close instead.
func (s *Session) readContext() (context.Context, context.CancelFunc) {
	if s.readTimeout > 0 {
		return context.WithTimeout(context.Background(), s.readTimeout)
	}
	return context.WithCancel(context.Background())
}

func (s *Session) handleMessage(data []byte, epoch string, logger *zap.Logger, subscriber interfaces.TickSubscriber) {
	fields, err := decodeFields(data, s.table, s.registry)
	if err != nil {
		s.decodeErrors.Add(1)
		logger.Warn("Dropping undecodable message", zap.Error(err))
		return
	}
	if len(fields) == 0 {
		logger.Debug("Message carried no translated fields", zap.Int("bytes", len(data)))
		return
	}

	s.deliver(subscriber, types.Tick{
		Epoch:      epoch,
		ReceivedAt: time.Now(),
		Fields:     fields,
	}, logger)
}

func (s *Session) deliver(subscriber interfaces.TickSubscriber, tick types.Tick, logger *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			s.callbackPanics.Add(1)
			logger.Error("Subscriber panicked", zap.Any("panic", r))
		}
	}()

	subscriber.OnTick(tick)
	s.delivered.Add(1)
}

// decodeFields parses one JSON object and keeps only fields that translate
// and that the registry considers relevant, under their canonical names.
func decodeFields(data []byte, table *translate.Table, registry *Registry) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, &types.DecodeError{Payload: data, Err: err}
	}
	if raw == nil {
		return nil, &types.DecodeError{Payload: data, Err: errors.New("payload is not a JSON object")}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &types.DecodeError{Payload: data, Err: errors.New("trailing data after JSON object")}
	}

	fields := make(map[string]string, len(raw))
	for key, value := range raw {
		name, ok := table.Lookup(key)
		if !ok || !registry.IsRelevant(key) {
			continue
		}
		fields[name] = types.FormatValue(value)
	}
	return fields, nil
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
