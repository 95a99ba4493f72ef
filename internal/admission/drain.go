// Package admission provides the request gate used during graceful drains.
package admission

import (
	"context"
	"sync"
)

// InFlight gates admission requests during shutdown. Once closed it turns
// new work away, and Wait unblocks after the last accepted request ends.
type InFlight struct {
	mu      sync.Mutex
	active  int64
	closed  bool
	drained chan struct{}
}

// NewInFlight returns an open gate.
func NewInFlight() *InFlight {
	return &InFlight{drained: make(chan struct{})}
}

// Begin admits one request through the gate. It reports false once the
// gate is closed, and every true return must be paired with End.
func (g *InFlight) Begin() bool {
	if g == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.active++
	return true
}

// End retires a request previously admitted by Begin.
func (g *InFlight) End() {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active--
	if g.closed && g.active == 0 {
		close(g.drained)
	}
}

// Close shuts the gate so Begin refuses all further requests.
func (g *InFlight) Close() {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	if g.active == 0 {
		close(g.drained)
	}
}

// Wait blocks until the closed gate has no active requests left, or the
// context expires.
func (g *InFlight) Wait(ctx context.Context) error {
	if g == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-g.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
