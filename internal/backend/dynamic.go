package backend

import (
	"context"
	"sync"
)

// DynamicClient wraps a Client with atomic hot-swap support.
//
// All Chat() calls are proxied to the current inner client. Swap() atomically
// replaces the inner client with zero downtime: in-flight requests finish on
// the old client, new requests use the new one.
type DynamicClient struct {
	mu    sync.RWMutex
	inner Client
}

// NewDynamicClient creates a DynamicClient wrapping the given client.
func NewDynamicClient(initial Client) *DynamicClient {
	return &DynamicClient{inner: initial}
}

// Chat delegates to the current inner client (read-lock).
func (d *DynamicClient) Chat(ctx context.Context, req Request) (*Response, error) {
	d.mu.RLock()
	c := d.inner
	d.mu.RUnlock()
	return c.Chat(ctx, req)
}

// DefaultModel returns the current inner client's default model.
func (d *DynamicClient) DefaultModel() string {
	d.mu.RLock()
	c := d.inner
	d.mu.RUnlock()
	return c.DefaultModel()
}

// Swap atomically replaces the inner client.
func (d *DynamicClient) Swap(newClient Client) {
	d.mu.Lock()
	d.inner = newClient
	d.mu.Unlock()
}

// Inner returns the current inner client (for inspection/debugging).
func (d *DynamicClient) Inner() Client {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.inner
}
