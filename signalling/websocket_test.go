// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package signalling

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/meshnet-foundation/meshnet/lib/envelope"
	"github.com/meshnet-foundation/meshnet/lib/logging"
)

// startHub serves a Hub's upgrade handler on an httptest server and
// returns the hub plus the ws:// URL to dial.
func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(logging.Discard())
	server := httptest.NewServer(http.HandlerFunc(hub.handleUpgrade))
	t.Cleanup(server.Close)
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebSocket_ClientToHubSessionRoundTrip(t *testing.T) {
	hub, url := startHub(t)

	sessions := make(chan *HubSession, 1)
	hub.OnSession(func(session *HubSession) {
		sessions <- session
	})

	client := NewWebSocketClient(url, logging.Discard())

	// Sends issued before Connect queue and flush in order on open.
	if err := client.Send(broadcastEnvelope("queued")); err != nil {
		t.Fatalf("Send before Connect: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Disconnect()

	var session *HubSession
	select {
	case session = <-sessions:
	case <-time.After(5 * time.Second):
		t.Fatal("hub never surfaced a session")
	}
	if !session.IsOpen() {
		t.Error("session not open on arrival")
	}

	inbound := make(chan *envelope.Envelope, 4)
	session.OnReceiveMessage(func(env *envelope.Envelope) {
		inbound <- env
	})

	if err := client.Send(broadcastEnvelope("live")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	for _, want := range []string{"queued", "live"} {
		select {
		case env := <-inbound:
			got := env.Payload.(*envelope.Broadcast).Text
			if got != want {
				t.Errorf("received %q, want %q", got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("hub never received %q", want)
		}
	}

	// The session can answer back through the same connection.
	fromHub := make(chan *envelope.Envelope, 1)
	client.OnReceiveMessage(func(env *envelope.Envelope) {
		fromHub <- env
	})
	if err := session.Send(broadcastEnvelope("answer")); err != nil {
		t.Fatalf("session Send: %v", err)
	}
	select {
	case env := <-fromHub:
		if env.Payload.(*envelope.Broadcast).Text != "answer" {
			t.Errorf("client received %+v", env.Payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("client never received the session's envelope")
	}
}

func TestWebSocket_SessionDisconnect(t *testing.T) {
	hub, url := startHub(t)

	sessions := make(chan *HubSession, 1)
	hub.OnSession(func(session *HubSession) { sessions <- session })

	client := NewWebSocketClient(url, logging.Discard())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Disconnect()

	session := <-sessions
	if err := session.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if session.IsOpen() {
		t.Error("session open after Disconnect")
	}
	if err := session.Send(broadcastEnvelope("x")); err == nil {
		t.Error("Send on closed session succeeded")
	}
	// Idempotent.
	if err := session.Disconnect(); err != nil {
		t.Errorf("second Disconnect: %v", err)
	}
}
