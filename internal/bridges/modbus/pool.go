package modbus

import "sync"

// Pool deduplicates persistent clients by endpoint identity.
//
// The poller and any other long-lived consumer request clients through
// the pool so a single device unit never ends up with two competing
// sessions. Clients are created on first request and live until
// Invalidate or Close.
//
// Thread Safety: all methods are safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	clients map[string]*Client
	closed  bool
	logger  Logger
}

// NewPool creates an empty client pool.
func NewPool() *Pool {
	return &Pool{
		clients: make(map[string]*Client),
		logger:  noopLogger{},
	}
}

// SetLogger sets an optional logger passed to clients the pool creates.
func (p *Pool) SetLogger(logger Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if logger != nil {
		p.logger = logger
	}
}

// Get returns the persistent client for the endpoint, creating one if
// none exists. The returned client is shared; callers must not Close it
// directly. Use Invalidate to retire an endpoint.
func (p *Pool) Get(cfg Config) (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}

	identity := cfg.Identity()
	if client, ok := p.clients[identity]; ok {
		return client, nil
	}

	client := NewClient(cfg)
	client.SetLogger(p.logger)
	p.clients[identity] = client
	p.logger.Debug("modbus client created", "endpoint", identity)
	return client, nil
}

// Invalidate closes and removes the client for the given endpoint
// identity. A subsequent Get creates a fresh client. Unknown identities
// are a no-op.
func (p *Pool) Invalidate(identity string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	client, ok := p.clients[identity]
	if !ok {
		return
	}
	delete(p.clients, identity)
	client.Close()
	p.logger.Debug("modbus client invalidated", "endpoint", identity)
}

// Size returns the number of pooled clients.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// Close closes every pooled client. The pool cannot be reused after
// Close; Get returns ErrClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for identity, client := range p.clients {
		client.Close()
		delete(p.clients, identity)
	}
	return nil
}
