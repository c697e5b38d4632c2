// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package signalling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/meshnet-foundation/meshnet/lib/envelope"
)

// Compile-time interface check.
var _ Signaller = (*HubSession)(nil)

// Hub is the WebSocket signalling server. Each accepted connection is
// wrapped as a HubSession — a Signaller born open — and handed to the
// registered session handler. The node wires that handler to the channel
// manager's inbound-offer admission.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader
	server   *http.Server

	mu        sync.Mutex
	onSession func(*HubSession)
	sessions  map[*HubSession]struct{}
}

// NewHub builds a signalling hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger.With("component", "signalling-hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The mesh authenticates envelopes, not origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sessions: make(map[*HubSession]struct{}),
	}
}

// OnSession registers the handler invoked for every accepted connection.
func (h *Hub) OnSession(handler func(*HubSession)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onSession = handler
}

// Listen binds the given port and serves websocket upgrades until the
// context is cancelled. The bind happens synchronously so a busy port
// fails the caller immediately; serving continues in the background.
func (h *Hub) Listen(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handleUpgrade)

	h.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	listener, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", port, err)
	}

	go func() {
		<-ctx.Done()
		h.server.Close()
		h.closeAllSessions()
	}()
	go func() {
		if err := h.server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("signalling hub stopped", "error", err)
		}
	}()

	h.logger.Info("signalling hub listening", "port", port)
	return nil
}

func (h *Hub) handleUpgrade(writer http.ResponseWriter, request *http.Request) {
	conn, err := h.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", request.RemoteAddr, "error", err)
		return
	}

	session := &HubSession{
		hub:    h,
		conn:   conn,
		open:   true,
		logger: h.logger.With("remote", request.RemoteAddr),
	}

	h.mu.Lock()
	h.sessions[session] = struct{}{}
	handler := h.onSession
	h.mu.Unlock()

	if handler != nil {
		handler(session)
	}
	go session.readPump()
}

func (h *Hub) closeAllSessions() {
	h.mu.Lock()
	sessions := make([]*HubSession, 0, len(h.sessions))
	for session := range h.sessions {
		sessions = append(sessions, session)
	}
	h.mu.Unlock()

	for _, session := range sessions {
		session.Disconnect()
	}
}

func (h *Hub) dropSession(session *HubSession) {
	h.mu.Lock()
	delete(h.sessions, session)
	h.mu.Unlock()
}

// HubSession is the server-side Signaller for one accepted connection.
// Unlike the client, a session starts out open: Connect is a no-op and
// the open callback fires at registration.
type HubSession struct {
	hub    *Hub
	logger *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	open      bool
	onOpen    func()
	onReceive func(*envelope.Envelope)
	inbound   []*envelope.Envelope

	writeMu   sync.Mutex
	deliverMu sync.Mutex
}

// IsOpen reports whether the underlying connection is alive.
func (s *HubSession) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Connect is a no-op: hub sessions are born open.
func (s *HubSession) Connect(_ context.Context) error {
	return nil
}

// Disconnect closes the connection and removes the session from the hub.
// Idempotent.
func (s *HubSession) Disconnect() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.open = false
	s.mu.Unlock()

	s.hub.dropSession(s)
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Send transmits one envelope as a text frame.
func (s *HubSession) Send(env *envelope.Envelope) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("hub session is closed")
	}

	text, err := envelope.Serialize(env)
	if err != nil {
		return fmt.Errorf("encoding signalling envelope: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("writing signalling frame: %w", err)
	}
	return nil
}

// OnOpen registers the open callback. Sessions are born open, so the
// callback fires immediately while the connection is alive.
func (s *HubSession) OnOpen(handler func()) {
	s.mu.Lock()
	s.onOpen = handler
	alive := s.open
	s.mu.Unlock()

	if alive && handler != nil {
		handler()
	}
}

// OnReceiveMessage registers the inbound handler and flushes buffered
// frames in arrival order.
func (s *HubSession) OnReceiveMessage(handler func(*envelope.Envelope)) {
	s.mu.Lock()
	s.onReceive = handler
	buffered := s.inbound
	s.inbound = nil
	s.mu.Unlock()

	if handler == nil {
		return
	}
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	for _, env := range buffered {
		handler(env)
	}
}

func (s *HubSession) readPump() {
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			s.open = false
			s.conn = nil
			s.mu.Unlock()
			s.hub.dropSession(s)
			s.logger.Debug("hub session read pump ended", "error", err)
			return
		}

		text := string(data)
		if !envelope.IsEnvelope(text) {
			continue
		}
		env, err := envelope.Deserialize(text)
		if err != nil {
			s.logger.Warn("dropping undecodable signalling frame", "error", err)
			continue
		}

		s.mu.Lock()
		handler := s.onReceive
		if handler == nil {
			s.inbound = append(s.inbound, env)
			s.mu.Unlock()
			continue
		}
		s.mu.Unlock()

		s.deliverMu.Lock()
		handler(env)
		s.deliverMu.Unlock()
	}
}
