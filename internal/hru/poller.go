package hru

import (
	"context"
	"sync"
	"time"
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

// Poller samples the unit's readable quantities on a fixed interval.
//
// Each successful sample is handed to the OnSample callback; telemetry
// fan-out lives with the caller. A failed read logs and skips the cycle
// rather than surfacing an error, because the persistent transport
// recovers on its own and the next cycle retries naturally.
type Poller struct {
	interp   *Interpreter
	interval time.Duration
	onSample func(State)
	logger   Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewPoller creates a poller over the given interpreter.
//
// onSample must be non-blocking or fast; it runs on the poll loop.
func NewPoller(interp *Interpreter, interval time.Duration, onSample func(State)) *Poller {
	return &Poller{
		interp:   interp,
		interval: interval,
		onSample: onSample,
		logger:   noopLogger{},
	}
}

// SetLogger sets an optional logger. Must be called before Start.
func (p *Poller) SetLogger(logger Logger) {
	if logger != nil {
		p.logger = logger
	}
}

// Start launches the poll loop. The first sample is taken immediately.
// Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go p.loop(loopCtx)
}

// Stop halts the poll loop and waits for the current cycle to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	cancel()
	<-done
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.sample(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sample(ctx)
		}
	}
}

func (p *Poller) sample(ctx context.Context) {
	state, err := p.interp.ReadState(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Warn("device poll failed, skipping cycle", "error", err)
		return
	}

	p.logger.Debug("device sampled",
		"power", state.Power,
		"mode", state.ModeLabel,
		"temperature", state.Temperature,
	)

	if p.onSample != nil {
		p.onSample(state)
	}
}
