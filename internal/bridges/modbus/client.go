package modbus

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	gomodbus "github.com/goburrow/modbus"

	"github.com/luftujha/luftujha-core/internal/infrastructure/backoff"
)

// Default timeouts for device communication.
const (
	// defaultTimeout bounds a single Modbus transaction.
	defaultTimeout = 5 * time.Second

	// defaultReconnectDelay is the pause between reconnection attempts.
	defaultReconnectDelay = 5 * time.Second

	// maxReadQuantity is the Modbus protocol limit for a single
	// read-holding-registers transaction.
	maxReadQuantity = 125
)

// Config describes a Modbus TCP endpoint.
type Config struct {
	// Host is the device hostname or IP address.
	Host string

	// Port is the Modbus TCP port, typically 502.
	Port int

	// UnitID is the Modbus unit (slave) identifier.
	UnitID byte

	// Timeout bounds a single transaction. Default: 5 seconds.
	Timeout time.Duration

	// ReconnectDelay is the pause between reconnection attempts
	// after a lost connection. Default: 5 seconds.
	ReconnectDelay time.Duration
}

// address returns the dial target in host:port form.
func (c Config) address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Identity returns a stable key for this endpoint, used by Pool to
// deduplicate clients. Two configs with the same identity address the
// same device unit.
func (c Config) Identity() string {
	return fmt.Sprintf("%s:%d/%d", c.Host, c.Port, c.UnitID)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Transport is the register access surface shared by the persistent and
// ephemeral strategies. Consumers that only read and write registers
// should depend on this interface rather than on *Client.
type Transport interface {
	ReadHoldingRegisters(ctx context.Context, addr uint16, quantity uint16) ([]uint16, error)
	ReadInputRegisters(ctx context.Context, addr uint16, quantity uint16) ([]uint16, error)
	WriteRegister(ctx context.Context, addr uint16, value uint16) error
	WriteRegisters(ctx context.Context, addr uint16, values []uint16) error
}

// Ensure Client implements Transport.
var _ Transport = (*Client)(nil)

// Client is a persistent Modbus TCP client with automatic recovery.
//
// The connection is established lazily on first use. When a transaction
// fails the connection is torn down and a background reconnect is
// scheduled; calls made before the reconnect succeeds return
// ErrNotConnected.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Transactions are serialized; the device handles one request at a time.
type Client struct {
	cfg Config

	// mu serializes transactions and guards the fields below.
	mu        sync.Mutex
	handler   *gomodbus.TCPClientHandler
	conn      gomodbus.Client
	connected bool
	closed    bool

	retry *backoff.Timer

	logger Logger
}

// NewClient creates a persistent client for the given endpoint.
//
// No connection is made until the first register operation or an
// explicit Connect call.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}

	return &Client{
		cfg:    cfg,
		retry:  backoff.NewTimer(backoff.NewPolicy(cfg.ReconnectDelay)),
		logger: noopLogger{},
	}
}

// SetLogger sets an optional logger for connection lifecycle events.
// Must be called before the first register operation.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if logger != nil {
		c.logger = logger
	}
}

// Connect eagerly establishes the connection.
//
// Useful at startup to surface configuration errors before the first
// poll cycle. Operations connect lazily, so calling Connect is optional.
func (c *Client) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureConnectedLocked()
}

// ensureConnectedLocked dials the device if no connection is active.
// Caller must hold c.mu.
func (c *Client) ensureConnectedLocked() error {
	if c.closed {
		return ErrClosed
	}
	if c.connected {
		return nil
	}
	// A pending retry means the last dial failed recently. Hold off
	// until the timer fires rather than hammering the device.
	if c.retry.Pending() {
		return ErrNotConnected
	}
	return c.dialLocked()
}

// dialLocked establishes a fresh connection. Caller must hold c.mu.
func (c *Client) dialLocked() error {
	handler := gomodbus.NewTCPClientHandler(c.cfg.address())
	handler.Timeout = c.cfg.Timeout
	handler.SlaveId = c.cfg.UnitID

	if err := handler.Connect(); err != nil {
		c.scheduleReconnectLocked()
		return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, c.cfg.Identity(), err)
	}

	c.handler = handler
	c.conn = gomodbus.NewClient(handler)
	c.connected = true
	c.logger.Info("modbus connected", "endpoint", c.cfg.Identity())
	return nil
}

// dropConnectionLocked tears down the connection after a transaction
// failure and schedules a background reconnect. Caller must hold c.mu.
func (c *Client) dropConnectionLocked(cause error) {
	if c.handler != nil {
		c.handler.Close()
		c.handler = nil
	}
	c.conn = nil
	c.connected = false
	c.logger.Warn("modbus connection lost",
		"endpoint", c.cfg.Identity(),
		"error", cause,
	)
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the retry timer. Caller must hold c.mu.
func (c *Client) scheduleReconnectLocked() {
	c.retry.Arm(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || c.connected {
			return
		}
		if err := c.dialLocked(); err != nil {
			c.logger.Debug("modbus reconnect attempt failed",
				"endpoint", c.cfg.Identity(),
				"error", err,
			)
		}
	})
}

// ReadHoldingRegisters reads quantity registers starting at addr.
//
// Returns the register values in address order. The connection is
// established lazily if needed.
func (c *Client) ReadHoldingRegisters(ctx context.Context, addr uint16, quantity uint16) ([]uint16, error) {
	return c.read(ctx, addr, quantity, func(conn gomodbus.Client) ([]byte, error) {
		return conn.ReadHoldingRegisters(addr, quantity)
	})
}

// ReadInputRegisters reads quantity input registers starting at addr.
func (c *Client) ReadInputRegisters(ctx context.Context, addr uint16, quantity uint16) ([]uint16, error) {
	return c.read(ctx, addr, quantity, func(conn gomodbus.Client) ([]byte, error) {
		return conn.ReadInputRegisters(addr, quantity)
	})
}

// read runs a read transaction with shared validation and recovery.
func (c *Client) read(ctx context.Context, addr uint16, quantity uint16, op func(gomodbus.Client) ([]byte, error)) ([]uint16, error) {
	if quantity == 0 || quantity > maxReadQuantity {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnectedLocked(); err != nil {
		return nil, err
	}

	raw, err := op(c.conn)
	if err != nil {
		c.dropConnectionLocked(err)
		return nil, fmt.Errorf("%w: addr %d qty %d: %w", ErrReadFailed, addr, quantity, err)
	}

	regs, err := bytesToRegisters(raw, quantity)
	if err != nil {
		return nil, fmt.Errorf("addr %d: %w", addr, err)
	}
	return regs, nil
}

// WriteRegister writes a single register at addr.
func (c *Client) WriteRegister(ctx context.Context, addr uint16, value uint16) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnectedLocked(); err != nil {
		return err
	}

	if _, err := c.conn.WriteSingleRegister(addr, value); err != nil {
		c.dropConnectionLocked(err)
		return fmt.Errorf("%w: addr %d value %d: %w", ErrWriteFailed, addr, value, err)
	}
	return nil
}

// WriteRegisters writes consecutive registers starting at addr in a
// single transaction.
func (c *Client) WriteRegisters(ctx context.Context, addr uint16, values []uint16) error {
	if len(values) == 0 || len(values) > maxReadQuantity {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, len(values))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnectedLocked(); err != nil {
		return err
	}

	if _, err := c.conn.WriteMultipleRegisters(addr, uint16(len(values)), registersToBytes(values)); err != nil {
		c.dropConnectionLocked(err)
		return fmt.Errorf("%w: addr %d qty %d: %w", ErrWriteFailed, addr, len(values), err)
	}
	return nil
}

// IsConnected reports whether a connection is currently established.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close tears down the connection and stops reconnection attempts.
// The client cannot be reused after Close.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.retry.Stop()

	if c.handler != nil {
		c.handler.Close()
		c.handler = nil
	}
	c.conn = nil
	c.connected = false
	return nil
}

// registersToBytes encodes register values as a big-endian Modbus
// request payload.
func registersToBytes(values []uint16) []byte {
	raw := make([]byte, len(values)*2)
	for i, v := range values {
		binary.BigEndian.PutUint16(raw[i*2:i*2+2], v)
	}
	return raw
}

// bytesToRegisters converts a big-endian Modbus response payload into
// register values, validating the length against the requested quantity.
func bytesToRegisters(raw []byte, quantity uint16) ([]uint16, error) {
	if len(raw) < int(quantity)*2 {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrShortResponse, len(raw), int(quantity)*2)
	}

	regs := make([]uint16, quantity)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(raw[i*2 : i*2+2])
	}
	return regs, nil
}
