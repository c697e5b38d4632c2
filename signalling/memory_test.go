// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package signalling

import (
	"context"
	"testing"

	"github.com/meshnet-foundation/meshnet/lib/envelope"
	"github.com/meshnet-foundation/meshnet/lib/identity"
)

func broadcastEnvelope(text string) *envelope.Envelope {
	return &envelope.Envelope{
		Timestamp: 1700000000,
		MaxAge:    60,
		Sender:    envelope.NodeParty(identity.EmptyAddress),
		Receiver:  envelope.NodeParty(identity.EmptyAddress),
		Payload:   &envelope.Broadcast{Text: text},
	}
}

func TestMemory_DeliversInOrder(t *testing.T) {
	first, second := NewMemoryPair()

	var received []string
	second.OnReceiveMessage(func(env *envelope.Envelope) {
		received = append(received, env.Payload.(*envelope.Broadcast).Text)
	})

	ctx := context.Background()
	if err := first.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := second.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	for _, text := range []string{"one", "two", "three"} {
		if err := first.Send(broadcastEnvelope(text)); err != nil {
			t.Fatalf("Send(%s): %v", text, err)
		}
	}

	if len(received) != 3 || received[0] != "one" || received[2] != "three" {
		t.Errorf("received = %v, want [one two three]", received)
	}
}

func TestMemory_QueuesWhileClosedAndFlushesOnConnect(t *testing.T) {
	first, second := NewMemoryPair()

	var received []string
	second.OnReceiveMessage(func(env *envelope.Envelope) {
		received = append(received, env.Payload.(*envelope.Broadcast).Text)
	})

	// Sends before Connect must queue, not drop.
	if err := first.Send(broadcastEnvelope("queued-1")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := first.Send(broadcastEnvelope("queued-2")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(received) != 0 {
		t.Fatalf("delivered before Connect: %v", received)
	}

	if err := first.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if len(received) != 2 || received[0] != "queued-1" || received[1] != "queued-2" {
		t.Errorf("received = %v, want queued envelopes in order", received)
	}
}

func TestMemory_OnOpenFiresOnConnect(t *testing.T) {
	first, _ := NewMemoryPair()

	opened := 0
	first.OnOpen(func() { opened++ })

	if opened != 0 {
		t.Fatal("OnOpen fired before Connect")
	}
	if err := first.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if opened != 1 {
		t.Errorf("opened = %d, want 1", opened)
	}

	// Registration after open fires immediately.
	late := 0
	first.OnOpen(func() { late++ })
	if late != 1 {
		t.Errorf("late registration fired %d times, want 1", late)
	}
}

func TestMemory_BuffersInboundUntilHandler(t *testing.T) {
	first, second := NewMemoryPair()

	ctx := context.Background()
	if err := first.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	if err := first.Send(broadcastEnvelope("early")); err != nil {
		t.Fatal(err)
	}

	var received []string
	second.OnReceiveMessage(func(env *envelope.Envelope) {
		received = append(received, env.Payload.(*envelope.Broadcast).Text)
	})
	if len(received) != 1 || received[0] != "early" {
		t.Errorf("received = %v, want buffered envelope", received)
	}
}

func TestMemory_DisconnectStopsDelivery(t *testing.T) {
	first, second := NewMemoryPair()
	ctx := context.Background()
	first.Connect(ctx)
	second.Connect(ctx)

	if !first.IsOpen() {
		t.Fatal("IsOpen = false after Connect")
	}
	if err := first.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if first.IsOpen() {
		t.Error("IsOpen = true after Disconnect")
	}

	// Sends after disconnect queue again rather than delivering.
	var received []string
	second.OnReceiveMessage(func(env *envelope.Envelope) {
		received = append(received, env.Payload.(*envelope.Broadcast).Text)
	})
	first.Send(broadcastEnvelope("after-close"))
	if len(received) != 0 {
		t.Errorf("delivered after Disconnect: %v", received)
	}
}
