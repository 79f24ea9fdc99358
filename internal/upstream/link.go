package upstream

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luftujha/luftujha-core/internal/infrastructure/backoff"
	"github.com/luftujha/luftujha-core/internal/infrastructure/config"
)

// LinkState is one phase of the event stream connection lifecycle.
type LinkState string

// Connection lifecycle states, in handshake order.
const (
	StateDisconnected       LinkState = "disconnected"
	StateConnecting         LinkState = "connecting"
	StateAwaitingAuth       LinkState = "awaiting_auth"
	StateSendingCredentials LinkState = "sending_credentials"
	StateSubscribing        LinkState = "subscribing"
	StateSubscribed         LinkState = "subscribed"
)

// Default timings for the event stream.
const (
	// defaultDialTimeout bounds the WebSocket dial.
	defaultDialTimeout = 10 * time.Second

	// defaultReconnectDelay is the fixed pause before re-dialling.
	defaultReconnectDelay = 5 * time.Second

	// subscribeCommandID identifies the state_changed subscription.
	// The link issues exactly one command per connection.
	subscribeCommandID = 1
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Link maintains the WebSocket connection to the controller's event
// stream and delivers prefix-filtered state changes to a handler.
//
// Every connection attempt walks the state machine Disconnected →
// Connecting → AwaitingAuth → SendingCredentials → Subscribing →
// Subscribed. Any error from any state returns to Disconnected and arms
// a fixed-delay reconnect; Close is the only way out of the cycle.
//
// Thread Safety: all exported methods are safe for concurrent use. The
// handler and status callbacks run on the link's goroutine and must not
// block.
type Link struct {
	cfg    config.UpstreamConfig
	wsURL  string
	prefix string

	onChange func(StateChange)
	onStatus func(LinkState)
	logger   Logger

	retry *backoff.Timer

	mu     sync.Mutex
	conn   *websocket.Conn
	state  LinkState
	closed bool

	lifetime context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewLink creates an event stream link. onChange receives every
// accepted state change; it runs on the link goroutine.
func NewLink(cfg config.UpstreamConfig, onChange func(StateChange)) *Link {
	delay := time.Duration(cfg.ReconnectDelay) * time.Second
	if delay <= 0 {
		delay = defaultReconnectDelay
	}

	return &Link{
		cfg:      cfg,
		wsURL:    websocketURL(cfg.BaseURL),
		prefix:   cfg.EntityPrefix,
		onChange: onChange,
		logger:   noopLogger{},
		retry:    backoff.NewTimer(backoff.NewPolicy(delay)),
		state:    StateDisconnected,
	}
}

// websocketURL derives the event stream endpoint from the REST base URL.
func websocketURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/api/websocket"
}

// SetLogger sets an optional logger. Must be called before Start.
func (l *Link) SetLogger(logger Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// SetOnStatus sets a callback invoked on every state transition.
// Must be called before Start.
func (l *Link) SetOnStatus(onStatus func(LinkState)) {
	l.onStatus = onStatus
}

// State returns the current connection state.
func (l *Link) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Start launches the connection loop. The first attempt begins
// immediately; failures reschedule via the reconnect timer.
func (l *Link) Start(ctx context.Context) {
	l.mu.Lock()
	if l.lifetime != nil {
		l.mu.Unlock()
		return
	}
	l.lifetime, l.cancel = context.WithCancel(ctx)
	l.mu.Unlock()

	l.wg.Add(1)
	go l.attempt()
}

// Close tears down the connection and stops reconnection. The link
// cannot be restarted after Close.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	cancel := l.cancel
	conn := l.conn
	l.mu.Unlock()

	l.retry.Stop()
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	l.wg.Wait()
	return nil
}

// setState records a transition and notifies the status callback.
func (l *Link) setState(state LinkState) {
	l.mu.Lock()
	if l.closed && state != StateDisconnected {
		l.mu.Unlock()
		return
	}
	l.state = state
	onStatus := l.onStatus
	l.mu.Unlock()

	l.logger.Debug("upstream link state", "state", string(state))
	if onStatus != nil {
		onStatus(state)
	}
}

// attempt runs one full connection attempt and schedules the next one
// on any failure. Runs on its own goroutine; wg tracks it.
func (l *Link) attempt() {
	defer l.wg.Done()

	err := l.runConnection()

	l.mu.Lock()
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
	closed := l.closed
	l.mu.Unlock()

	l.setState(StateDisconnected)

	if closed || l.lifetime.Err() != nil {
		return
	}

	if err != nil {
		l.logger.Warn("upstream link lost", "error", err)
	}

	l.retry.Arm(func() {
		// Add while holding mu so Close cannot observe a zero
		// WaitGroup between the closed check and the Add.
		l.mu.Lock()
		if !l.closed {
			l.wg.Add(1)
			go l.attempt()
		}
		l.mu.Unlock()
	})
}

// runConnection performs the handshake and pumps events until the
// connection fails.
func (l *Link) runConnection() error {
	l.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(l.lifetime, defaultDialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, l.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", l.wsURL, err)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	l.conn = conn
	l.mu.Unlock()

	if err := l.handshake(conn); err != nil {
		return err
	}

	l.setState(StateSubscribed)
	l.logger.Info("upstream event stream subscribed", "url", l.wsURL)

	return l.readLoop(conn)
}

// handshake walks the auth and subscribe phases on a fresh connection.
func (l *Link) handshake(conn *websocket.Conn) error {
	l.setState(StateAwaitingAuth)

	var challenge wsMessage
	if err := conn.ReadJSON(&challenge); err != nil {
		return fmt.Errorf("read auth challenge: %w", err)
	}
	if challenge.Type != msgAuthRequired {
		return fmt.Errorf("%w: expected %s, got %q", ErrHandshakeFailed, msgAuthRequired, challenge.Type)
	}

	l.setState(StateSendingCredentials)

	if err := conn.WriteJSON(authMessage{Type: msgAuth, AccessToken: l.cfg.Token}); err != nil {
		return fmt.Errorf("send credentials: %w", err)
	}

	var verdict wsMessage
	if err := conn.ReadJSON(&verdict); err != nil {
		return fmt.Errorf("read auth verdict: %w", err)
	}
	switch verdict.Type {
	case msgAuthOK:
	case msgAuthInvalid:
		l.logger.Error("upstream rejected credentials", "message", verdict.Message)
		return fmt.Errorf("%w: %s", ErrAuthRejected, verdict.Message)
	default:
		return fmt.Errorf("%w: expected auth verdict, got %q", ErrHandshakeFailed, verdict.Type)
	}

	l.setState(StateSubscribing)

	sub := subscribeMessage{
		ID:        subscribeCommandID,
		Type:      "subscribe_events",
		EventType: "state_changed",
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// readLoop pumps event frames until the connection errors.
func (l *Link) readLoop(conn *websocket.Conn) error {
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read event: %w", err)
		}

		switch msg.Type {
		case msgEvent:
			l.handleEvent(msg)
		case msgResult:
			// Command acks carry nothing we act on.
		default:
			l.logger.Debug("upstream frame ignored", "type", msg.Type)
		}
	}
}

// handleEvent filters and delivers one state_changed event.
func (l *Link) handleEvent(msg wsMessage) {
	if msg.Event == nil || msg.Event.Data.NewState == nil {
		return
	}
	entityID := msg.Event.Data.EntityID
	if !strings.HasPrefix(entityID, l.prefix) {
		return
	}

	if l.onChange != nil {
		l.onChange(StateChange{
			EntityID: entityID,
			NewState: *msg.Event.Data.NewState,
		})
	}
}
