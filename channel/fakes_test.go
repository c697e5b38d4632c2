// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/meshnet-foundation/meshnet/lib/envelope"
)

// fakeTransport is an in-process DataTransport the tests drive by hand:
// open it, feed it frames, inflate its buffered amount.
type fakeTransport struct {
	label string

	mu        sync.Mutex
	open      bool
	closed    bool
	buffered  uint64
	sent      [][]byte
	failSend  bool
	onOpen    func()
	onClose   func()
	onMessage func([]byte)
	onError   func(error)
}

func newFakeTransport(label string) *fakeTransport {
	return &fakeTransport{label: label}
}

func (t *fakeTransport) Label() string { return t.label }

func (t *fakeTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

func (t *fakeTransport) Send(data []byte) error {
	t.mu.Lock()
	if t.failSend || !t.open {
		t.mu.Unlock()
		return fmt.Errorf("fake transport %s: send failed", t.label)
	}
	t.sent = append(t.sent, append([]byte(nil), data...))
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) BufferedAmount() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buffered
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	wasOpen := t.open
	t.open = false
	t.closed = true
	handler := t.onClose
	t.mu.Unlock()
	if wasOpen && handler != nil {
		handler()
	}
	return nil
}

func (t *fakeTransport) OnOpen(handler func()) {
	t.mu.Lock()
	t.onOpen = handler
	t.mu.Unlock()
}

func (t *fakeTransport) OnClose(handler func()) {
	t.mu.Lock()
	t.onClose = handler
	t.mu.Unlock()
}

func (t *fakeTransport) OnMessage(handler func([]byte)) {
	t.mu.Lock()
	t.onMessage = handler
	t.mu.Unlock()
}

func (t *fakeTransport) OnError(handler func(error)) {
	t.mu.Lock()
	t.onError = handler
	t.mu.Unlock()
}

// setOpen flips the transport open and fires the open handler.
func (t *fakeTransport) setOpen() {
	t.mu.Lock()
	t.open = true
	handler := t.onOpen
	t.mu.Unlock()
	if handler != nil {
		handler()
	}
}

// receive feeds one inbound frame through the message handler.
func (t *fakeTransport) receive(data []byte) {
	t.mu.Lock()
	handler := t.onMessage
	t.mu.Unlock()
	if handler != nil {
		handler(data)
	}
}

func (t *fakeTransport) fail(err error) {
	t.mu.Lock()
	handler := t.onError
	t.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

func (t *fakeTransport) setBuffered(amount uint64) {
	t.mu.Lock()
	t.buffered = amount
	t.mu.Unlock()
}

// sentTokens returns everything sent on the transport as strings.
func (t *fakeTransport) sentTokens() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	tokens := make([]string, 0, len(t.sent))
	for _, frame := range t.sent {
		tokens = append(tokens, string(frame))
	}
	return tokens
}

func (t *fakeTransport) wasClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// fakePeer is an in-process PeerConnection. Transports created through
// it (either side) are retained by label for the test to drive.
type fakePeer struct {
	mu           sync.Mutex
	iceConnected bool
	closed       bool
	transports   map[string][]*fakeTransport
	remoteSet    []envelope.SessionDescription
	localSet     []envelope.SessionDescription
	candidates   []ICECandidate
	failCreate   bool

	onCandidate func(ICECandidate)
	onICEChange func(bool)
	onTransport func(DataTransport)
}

func newFakePeer() *fakePeer {
	return &fakePeer{transports: make(map[string][]*fakeTransport)}
}

func (p *fakePeer) factory() PeerConnectionFactory {
	return func([]ICEServer) (PeerConnection, error) {
		return p, nil
	}
}

func (p *fakePeer) CreateDataTransport(label string) (DataTransport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failCreate {
		return nil, fmt.Errorf("fake peer: create refused")
	}
	transport := newFakeTransport(label)
	p.transports[label] = append(p.transports[label], transport)
	return transport, nil
}

func (p *fakePeer) CreateOffer() (envelope.SessionDescription, error) {
	return envelope.SessionDescription{Type: "offer", SDP: "v=0 fake offer"}, nil
}

func (p *fakePeer) CreateAnswer() (envelope.SessionDescription, error) {
	return envelope.SessionDescription{Type: "answer", SDP: "v=0 fake answer"}, nil
}

func (p *fakePeer) SetLocalDescription(description envelope.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.localSet = append(p.localSet, description)
	return nil
}

func (p *fakePeer) SetRemoteDescription(description envelope.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remoteSet = append(p.remoteSet, description)
	return nil
}

func (p *fakePeer) AddICECandidate(candidate ICECandidate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candidates = append(p.candidates, candidate)
	return nil
}

func (p *fakePeer) ICEConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.iceConnected
}

func (p *fakePeer) OnICECandidate(handler func(ICECandidate)) {
	p.mu.Lock()
	p.onCandidate = handler
	p.mu.Unlock()
}

func (p *fakePeer) OnICEConnectionStateChange(handler func(bool)) {
	p.mu.Lock()
	p.onICEChange = handler
	p.mu.Unlock()
}

func (p *fakePeer) OnDataTransport(handler func(DataTransport)) {
	p.mu.Lock()
	p.onTransport = handler
	p.mu.Unlock()
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// setICEConnected flips the ICE state and fires the state handler.
func (p *fakePeer) setICEConnected(connected bool) {
	p.mu.Lock()
	p.iceConnected = connected
	handler := p.onICEChange
	p.mu.Unlock()
	if handler != nil {
		handler(connected)
	}
}

// announceTransport simulates the remote side opening a transport
// (the responder path).
func (p *fakePeer) announceTransport(label string) *fakeTransport {
	transport := newFakeTransport(label)
	p.mu.Lock()
	p.transports[label] = append(p.transports[label], transport)
	handler := p.onTransport
	p.mu.Unlock()
	if handler != nil {
		handler(transport)
	}
	return transport
}

// transport returns the latest transport created with the label.
func (p *fakePeer) transport(label string) *fakeTransport {
	p.mu.Lock()
	defer p.mu.Unlock()
	created := p.transports[label]
	if len(created) == 0 {
		return nil
	}
	return created[len(created)-1]
}

func (p *fakePeer) transportCount(label string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.transports[label])
}

// eventually polls until the condition holds or the deadline passes.
// The channel's loops run on their own goroutines, so assertions on
// their effects need a grace period even with a mock clock.
func eventually(t *testing.T, condition func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(message)
}
