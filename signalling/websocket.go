// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package signalling

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/meshnet-foundation/meshnet/lib/envelope"
)

// Compile-time interface check.
var _ Signaller = (*WebSocketClient)(nil)

// WebSocketClient dials a remote node's signalling hub. One client
// serves one negotiation; once the channel is stable it is disconnected
// and discarded.
//
// gorilla/websocket permits one concurrent writer per connection, so all
// writes go through writeMu.
type WebSocketClient struct {
	url    string
	logger *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	open    bool
	pending []*envelope.Envelope // queued while closed

	onOpen    func()
	onReceive func(*envelope.Envelope)

	writeMu   sync.Mutex
	deliverMu sync.Mutex
	inbound   []*envelope.Envelope
}

// NewWebSocketClient builds a client for the given ws:// or wss:// URL.
func NewWebSocketClient(url string, logger *slog.Logger) *WebSocketClient {
	return &WebSocketClient{
		url:    url,
		logger: logger.With("component", "signalling", "url", url),
	}
}

// IsOpen reports whether the websocket is connected.
func (c *WebSocketClient) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Connect dials the hub, starts the read pump, fires the open callback,
// and flushes queued sends in order.
func (c *WebSocketClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.open {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conn, response, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dialing signalling hub %s: %w", c.url, err)
	}
	if response != nil && response.Body != nil {
		response.Body.Close()
	}

	c.mu.Lock()
	c.conn = conn
	c.open = true
	queued := c.pending
	c.pending = nil
	opened := c.onOpen
	c.mu.Unlock()

	go c.readPump(conn)

	if opened != nil {
		opened()
	}
	for _, env := range queued {
		if err := c.Send(env); err != nil {
			c.logger.Warn("flushing queued signalling envelope failed", "error", err)
		}
	}
	return nil
}

// Disconnect closes the websocket. Idempotent.
func (c *WebSocketClient) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.open = false
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Send transmits one envelope as a text frame, queueing while closed.
func (c *WebSocketClient) Send(env *envelope.Envelope) error {
	c.mu.Lock()
	if !c.open || c.conn == nil {
		c.pending = append(c.pending, env)
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	c.mu.Unlock()

	text, err := envelope.Serialize(env)
	if err != nil {
		return fmt.Errorf("encoding signalling envelope: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("writing signalling frame: %w", err)
	}
	return nil
}

// OnOpen registers the open callback, firing it immediately when already
// connected.
func (c *WebSocketClient) OnOpen(handler func()) {
	c.mu.Lock()
	c.onOpen = handler
	alreadyOpen := c.open
	c.mu.Unlock()

	if alreadyOpen && handler != nil {
		handler()
	}
}

// OnReceiveMessage registers the inbound handler and flushes any frames
// buffered before registration.
func (c *WebSocketClient) OnReceiveMessage(handler func(*envelope.Envelope)) {
	c.mu.Lock()
	c.onReceive = handler
	buffered := c.inbound
	c.inbound = nil
	c.mu.Unlock()

	if handler == nil {
		return
	}
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	for _, env := range buffered {
		handler(env)
	}
}

// readPump reads frames until the connection dies. Non-envelope frames
// are ignored per the wire contract.
func (c *WebSocketClient) readPump(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
				c.open = false
			}
			c.mu.Unlock()
			c.logger.Debug("signalling read pump ended", "error", err)
			return
		}

		text := string(data)
		if !envelope.IsEnvelope(text) {
			continue
		}
		env, err := envelope.Deserialize(text)
		if err != nil {
			c.logger.Warn("dropping undecodable signalling frame", "error", err)
			continue
		}
		c.dispatch(env)
	}
}

func (c *WebSocketClient) dispatch(env *envelope.Envelope) {
	c.mu.Lock()
	handler := c.onReceive
	if handler == nil {
		c.inbound = append(c.inbound, env)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	handler(env)
}
