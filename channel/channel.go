// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/meshnet-foundation/meshnet/lib/envelope"
	"github.com/meshnet-foundation/meshnet/signalling"
)

// Negotiation and supervision defaults.
const (
	DefaultSignallingTimeout = 10 * time.Second
	DefaultHeartbeatInterval = time.Second
	DefaultHeartbeatTimeout  = time.Second
	DefaultMaxLatency        = 500 * time.Millisecond
	DefaultAuditInterval     = 200 * time.Millisecond
	DefaultDrainTimeout      = 500 * time.Millisecond
	DefaultDrainPoll         = 50 * time.Millisecond
)

// Options configures a channel. Zero durations select the defaults
// above; a nil clock selects the wall clock.
type Options struct {
	// Polite channels yield in negotiation glare; a polite channel also
	// refuses to re-initiate after a rejection.
	Polite bool

	// InitiatedByUs records which side started the negotiation. It is
	// immutable and gates the initiator/responder paths.
	InitiatedByUs bool

	SignallingTimeout time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	MaxLatency        time.Duration
	AuditInterval     time.Duration
	DrainTimeout      time.Duration
	DrainPoll         time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
	Events Events
}

func (o *Options) applyDefaults() {
	if o.SignallingTimeout == 0 {
		o.SignallingTimeout = DefaultSignallingTimeout
	}
	if o.HeartbeatInterval == 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.HeartbeatTimeout == 0 {
		o.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if o.MaxLatency == 0 {
		o.MaxLatency = DefaultMaxLatency
	}
	if o.AuditInterval == 0 {
		o.AuditInterval = DefaultAuditInterval
	}
	if o.DrainTimeout == 0 {
		o.DrainTimeout = DefaultDrainTimeout
	}
	if o.DrainPoll == 0 {
		o.DrainPoll = DefaultDrainPoll
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
}

// Channel is the per-peer state machine shared by node and account
// channels. It owns its peer connection, its two data transports, the
// signalling timer, the heartbeat loop, and the audit loop; all of them
// are released on Dispose.
//
// Three monitors guard the mutable state: mu (state, stability,
// transports, peer connection, signalling timer), heartbeatMu (latency
// bookkeeping), and auditMu (the running audit task). None of them is
// ever held across I/O or while firing an event.
type Channel struct {
	polite        bool
	initiatedByUs bool
	options       Options

	clock      clock.Clock
	logger     *slog.Logger
	events     Events
	addressing Addressing
	signalling signalling.Signaller
	factory    PeerConnectionFactory

	rootCtx    context.Context
	rootCancel context.CancelFunc

	sequence    atomic.Int64
	disposeOnce sync.Once

	// Channel monitor.
	mu              sync.Mutex
	state           State
	stable          bool
	peer            PeerConnection
	command         DataTransport
	data            DataTransport
	signallingTimer *CancellableDelay

	// Heartbeat monitor.
	heartbeatMu       sync.Mutex
	heartbeatCancel   context.CancelFunc
	heartbeatPending  bool
	heartbeatSentAt   time.Time
	heartbeatTimedOut bool
	latency           time.Duration
	highLatency       bool

	// Audit monitor.
	auditMu        sync.Mutex
	auditCancel    context.CancelFunc
	commandAuditor *BufferAuditor
	dataAuditor    *BufferAuditor
}

// newChannel wires the shared machinery. Node and account constructors
// supply the addressing.
func newChannel(addressing Addressing, sig signalling.Signaller, factory PeerConnectionFactory, options Options) *Channel {
	options.applyDefaults()
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	ch := &Channel{
		polite:         options.Polite,
		initiatedByUs:  options.InitiatedByUs,
		options:        options,
		clock:          options.Clock,
		logger:         logger.With(addressing.LogAttrs()...),
		events:         options.Events,
		addressing:     addressing,
		signalling:     sig,
		factory:        factory,
		rootCtx:        rootCtx,
		rootCancel:     rootCancel,
		state:          StateInitiating,
		commandAuditor: NewBufferAuditor(options.Clock),
		dataAuditor:    NewBufferAuditor(options.Clock),
	}

	sig.OnReceiveMessage(ch.handleSignal)

	// Safety net only: the manager owns disposal. A channel collected
	// without it means an ownership bug worth a log line.
	runtime.SetFinalizer(ch, func(leaked *Channel) {
		if leaked.State() != StateDisposed {
			leaked.logger.Warn("channel finalized without dispose")
		}
	})

	return ch
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsStable reports whether the command channel is open and ICE is
// connected.
func (c *Channel) IsStable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stable
}

// Polite reports the channel's glare role.
func (c *Channel) Polite() bool { return c.polite }

// InitiatedByUs reports which side started the negotiation.
func (c *Channel) InitiatedByUs() bool { return c.initiatedByUs }

// Latency returns the last heartbeat round-trip time. Zero means "no
// data" — the heartbeat is not running — not a measurement.
func (c *Channel) Latency() time.Duration {
	c.heartbeatMu.Lock()
	defer c.heartbeatMu.Unlock()
	return c.latency
}

// MaxLatency returns the high-latency threshold.
func (c *Channel) MaxLatency() time.Duration { return c.options.MaxLatency }

// transitionLocked applies a state change if the graph permits it. The
// caller holds mu and is responsible for firing the state-change event
// after unlocking when this returns true.
func (c *Channel) transitionLocked(next State) bool {
	if !c.state.CanTransition(next) {
		if c.state != next {
			c.logger.Debug("refusing state transition",
				"from", c.state.String(),
				"to", next.String(),
			)
		}
		return false
	}
	c.state = next
	return true
}

// StartPeerConnection creates the peer connection and wires its event
// handlers. One-shot: a second call fails with ErrAlreadyInitialized.
func (c *Channel) StartPeerConnection(servers []ICEServer) error {
	c.mu.Lock()
	if c.state == StateDisposing || c.state == StateDisposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	if c.peer != nil {
		c.mu.Unlock()
		c.logger.Error("peer connection initialized twice")
		return ErrAlreadyInitialized
	}
	c.mu.Unlock()

	peer, err := c.factory(servers)
	if err != nil {
		return fmt.Errorf("starting peer connection: %w", err)
	}

	c.mu.Lock()
	if c.peer != nil {
		c.mu.Unlock()
		peer.Close()
		return ErrAlreadyInitialized
	}
	c.peer = peer
	c.mu.Unlock()

	peer.OnICECandidate(c.forwardLocalCandidate)
	peer.OnICEConnectionStateChange(func(bool) { c.evaluateStability() })
	peer.OnDataTransport(c.adoptTransport)
	return nil
}

// Open drives the initiator path: create the data and command
// transports, generate an offer, and send it over signalling. On a
// Closed channel whose ICE connection survived, only the data channel
// is re-created.
func (c *Channel) Open() error {
	c.mu.Lock()
	state := c.state
	peer := c.peer
	c.mu.Unlock()

	switch {
	case state == StateOpen:
		c.logger.Info("open requested on an already open channel")
		return nil
	case state == StateDisposing || state == StateDisposed:
		c.logger.Warn("open requested after dispose")
		return ErrDisposed
	case state == StateRejected && c.polite:
		c.logger.Warn("open refused: polite channel was rejected")
		return fmt.Errorf("%w: rejected", ErrBadState)
	}
	if peer == nil {
		c.logger.Error("open requested before peer connection initialization")
		return ErrNotInitialized
	}

	if state == StateClosed && peer.ICEConnected() {
		return c.reopenData(peer)
	}

	if err := c.beginNegotiation(); err != nil {
		return err
	}

	// Data first, then command: the command transport must exist before
	// the data transport completes.
	data, err := peer.CreateDataTransport(DataLabel)
	if err != nil {
		return c.failNegotiation(fmt.Errorf("creating data transport: %w", err))
	}
	c.installDataTransport(data)

	command, err := peer.CreateDataTransport(CommandLabel)
	if err != nil {
		return c.failNegotiation(fmt.Errorf("creating command transport: %w", err))
	}
	c.installCommandTransport(command)

	offer, err := peer.CreateOffer()
	if err != nil {
		return c.failNegotiation(fmt.Errorf("creating offer: %w", err))
	}
	if err := peer.SetLocalDescription(offer); err != nil {
		return c.failNegotiation(err)
	}

	if err := c.sendSignal(&envelope.Offer{Offer: offer}); err != nil {
		return c.failNegotiation(err)
	}
	c.logger.Info("offer sent")
	return nil
}

// Accept drives the responder path for an inbound offer envelope.
func (c *Channel) Accept(offer *envelope.Envelope) error {
	if c.initiatedByUs {
		c.logger.Error("accept called on an initiator channel")
		return fmt.Errorf("%w: accept on initiator", ErrBadState)
	}
	payload, ok := offer.Payload.(*envelope.Offer)
	if !ok {
		return fmt.Errorf("%w: accept needs an Offer payload", ErrBadState)
	}

	c.mu.Lock()
	state := c.state
	peer := c.peer
	c.mu.Unlock()
	if state != StateInitiating {
		c.logger.Warn("accept refused", "state", state.String())
		return fmt.Errorf("%w: accept in %s", ErrBadState, state)
	}
	if peer == nil {
		return ErrNotInitialized
	}

	if err := c.beginNegotiation(); err != nil {
		return err
	}

	if err := peer.SetRemoteDescription(payload.Offer); err != nil {
		return c.failNegotiation(err)
	}
	answer, err := peer.CreateAnswer()
	if err != nil {
		return c.failNegotiation(fmt.Errorf("creating answer: %w", err))
	}
	if err := peer.SetLocalDescription(answer); err != nil {
		return c.failNegotiation(err)
	}

	if err := c.sendSignal(&envelope.Answer{Answer: answer}); err != nil {
		return c.failNegotiation(err)
	}
	c.logger.Info("answer sent")
	return nil
}

// Reject declines an inbound offer: a Rejection envelope goes back over
// signalling, the channel transitions to Rejected, and the peer
// connection is released.
func (c *Channel) Reject(offer *envelope.Envelope) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state != StateInitiating {
		c.logger.Warn("reject refused", "state", state.String())
		return fmt.Errorf("%w: reject in %s", ErrBadState, state)
	}

	ctx, cancel := context.WithTimeout(c.rootCtx, c.options.SignallingTimeout/2)
	err := c.signalling.Connect(ctx)
	cancel()
	if err != nil {
		c.logger.Warn("signalling connect for rejection failed", "error", err)
	} else if err := c.sendSignal(&envelope.Rejection{}); err != nil {
		c.logger.Warn("sending rejection failed", "error", err)
	}

	c.mu.Lock()
	changed := c.transitionLocked(StateRejected)
	peer := c.peer
	c.peer = nil
	c.mu.Unlock()

	if changed {
		c.events.fireStateChange(StateRejected)
	}
	if peer != nil {
		peer.Close()
	}
	return nil
}

// beginNegotiation runs the shared front half of Open and Accept: arm
// the signalling timer, transition to Connecting, connect signalling
// within half the timer budget, transition to Signalling.
func (c *Channel) beginNegotiation() error {
	timer := NewCancellableDelay(c.clock, c.options.SignallingTimeout, c.handleSignallingExpiry, nil)

	c.mu.Lock()
	if previous := c.signallingTimer; previous != nil {
		previous.Cancel(true)
	}
	c.signallingTimer = timer
	changed := c.transitionLocked(StateConnecting)
	c.mu.Unlock()

	if err := timer.Start(); err != nil {
		return err
	}
	if changed {
		c.events.fireStateChange(StateConnecting)
	}

	ctx, cancel := context.WithTimeout(c.rootCtx, c.options.SignallingTimeout/2)
	err := c.signalling.Connect(ctx)
	cancel()
	if err != nil {
		timer.Cancel(true)
		c.logger.Warn("signalling connect failed", "error", err)
		c.toFailed()
		c.events.fireTimeout()
		return fmt.Errorf("connecting signalling: %w", err)
	}

	c.mu.Lock()
	changed = c.transitionLocked(StateSignalling)
	c.mu.Unlock()
	if changed {
		c.events.fireStateChange(StateSignalling)
	}
	return nil
}

// failNegotiation cancels the signalling timer, fails the channel, and
// passes the error through.
func (c *Channel) failNegotiation(err error) error {
	c.mu.Lock()
	timer := c.signallingTimer
	c.mu.Unlock()
	if timer != nil {
		timer.Cancel(true)
	}
	c.logger.Error("negotiation failed", "error", err)
	c.toFailed()
	return err
}

// toFailed transitions to Failed and notifies.
func (c *Channel) toFailed() {
	c.mu.Lock()
	changed := c.transitionLocked(StateFailed)
	c.mu.Unlock()
	if changed {
		c.events.fireStateChange(StateFailed)
	}
}

// handleSignallingExpiry fires when negotiation outlives the signalling
// timer.
func (c *Channel) handleSignallingExpiry() {
	c.mu.Lock()
	inNegotiation := c.state == StateConnecting || c.state == StateSignalling
	var changed bool
	if inNegotiation {
		changed = c.transitionLocked(StateFailed)
	}
	c.mu.Unlock()

	if !inNegotiation {
		return
	}
	c.logger.Warn("signalling timed out")
	if changed {
		c.events.fireStateChange(StateFailed)
	}
	c.events.fireTimeout()
}

// reopenData re-creates only the data transport on a surviving peer
// connection. The command channel and ICE session carry over, so no
// renegotiation happens; the channel returns to Open when the new data
// transport opens.
func (c *Channel) reopenData(peer PeerConnection) error {
	c.logger.Info("reopening data transport on live peer connection")
	data, err := peer.CreateDataTransport(DataLabel)
	if err != nil {
		return fmt.Errorf("reopening data transport: %w", err)
	}
	c.installDataTransport(data)
	return nil
}

// sendSignal wraps a payload in an addressed, signed envelope and sends
// it over signalling.
func (c *Channel) sendSignal(payload envelope.Message) error {
	env, err := c.addressing.Envelope(c.clock.Now(), c.sequence.Add(1), payload)
	if err != nil {
		return err
	}
	if err := c.signalling.Send(env); err != nil {
		return fmt.Errorf("sending %s over signalling: %w", payload.Kind(), err)
	}
	return nil
}

// handleSignal dispatches one inbound signalling envelope.
func (c *Channel) handleSignal(env *envelope.Envelope) {
	if err := c.addressing.Admit(env, c.clock.Now()); err != nil {
		c.logger.Warn("dropping signalling envelope", "error", err)
		return
	}

	switch payload := env.Payload.(type) {
	case *envelope.Answer:
		if !c.initiatedByUs {
			c.logger.Warn("dropping answer on responder channel")
			return
		}
		c.mu.Lock()
		peer := c.peer
		c.mu.Unlock()
		if peer == nil {
			c.logger.Warn("dropping answer: no peer connection")
			return
		}
		if err := peer.SetRemoteDescription(payload.Answer); err != nil {
			c.logger.Error("applying remote answer failed", "error", err)
			c.toFailed()
		}

	case *envelope.Candidate:
		c.addRemoteCandidate(payload)

	case *envelope.Rejection:
		c.mu.Lock()
		changed := c.transitionLocked(StateRejected)
		c.mu.Unlock()
		c.logger.Info("offer rejected by peer")
		if changed {
			c.events.fireStateChange(StateRejected)
		}

	default:
		c.logger.Debug("ignoring signalling payload", "kind", string(env.Payload.Kind()))
	}
}

// addRemoteCandidate applies one trickled candidate. The wire uses "0"
// where the local side had no sdpMid; normalize it back to null.
func (c *Channel) addRemoteCandidate(payload *envelope.Candidate) {
	c.mu.Lock()
	peer := c.peer
	c.mu.Unlock()
	if peer == nil {
		c.logger.Warn("dropping candidate: no peer connection")
		return
	}

	candidate := ICECandidate{
		Candidate:     payload.Candidate,
		SDPMLineIndex: payload.SDPMLineIndex,
	}
	if payload.SDPMid != "0" {
		mid := payload.SDPMid
		candidate.SDPMid = &mid
	}
	if err := peer.AddICECandidate(candidate); err != nil {
		c.logger.Warn("adding remote candidate failed", "error", err)
	}
}

// forwardLocalCandidate sends one locally gathered candidate to the
// peer. A null sdpMid serializes as "0" for interop.
func (c *Channel) forwardLocalCandidate(candidate ICECandidate) {
	payload := &envelope.Candidate{
		Candidate:     candidate.Candidate,
		SDPMid:        "0",
		SDPMLineIndex: candidate.SDPMLineIndex,
	}
	if candidate.SDPMid != nil {
		payload.SDPMid = *candidate.SDPMid
	}
	if err := c.sendSignal(payload); err != nil {
		c.logger.Warn("forwarding local candidate failed", "error", err)
	}
}

// adoptTransport takes ownership of a transport announced by the remote
// side (responder path).
func (c *Channel) adoptTransport(transport DataTransport) {
	switch transport.Label() {
	case CommandLabel:
		c.installCommandTransport(transport)
	case DataLabel:
		c.installDataTransport(transport)
	default:
		c.logger.Warn("closing unexpected transport", "label", transport.Label())
		transport.Close()
	}
}

func (c *Channel) installCommandTransport(transport DataTransport) {
	c.mu.Lock()
	c.command = transport
	c.mu.Unlock()

	transport.OnOpen(c.evaluateStability)
	transport.OnClose(c.evaluateStability)
	transport.OnMessage(c.handleCommandFrame)
	transport.OnError(c.handleTransportError)
}

func (c *Channel) installDataTransport(transport DataTransport) {
	c.mu.Lock()
	c.data = transport
	c.mu.Unlock()

	transport.OnOpen(c.evaluateStability)
	transport.OnClose(c.evaluateStability)
	transport.OnMessage(c.handleDataFrame)
	transport.OnError(c.handleTransportError)
}

// evaluateStability recomputes isStable and the Open transition. It runs
// on every transport and ICE event. On the rising edge of stability the
// signalling timer is cancelled silently and signalling is disconnected;
// on every transition into Open, heartbeat and audit supervision start.
func (c *Channel) evaluateStability() {
	c.mu.Lock()
	peer := c.peer
	if peer == nil {
		c.mu.Unlock()
		return
	}
	stable := c.command != nil && c.command.IsOpen() && peer.ICEConnected()
	rose := stable && !c.stable
	c.stable = stable

	becameOpen := false
	if stable && c.data != nil && c.data.IsOpen() {
		if c.transitionLocked(StateOpen) {
			becameOpen = true
		}
	}
	timer := c.signallingTimer
	c.mu.Unlock()

	if rose && timer != nil {
		// Silent: this path can run from inside transport callbacks; a
		// loud cancel would re-enter the channel.
		timer.Cancel(true)
	}
	if becameOpen {
		c.events.fireStateChange(StateOpen)
		c.events.fireOpen()
	}
	if rose {
		c.logger.Info("channel stable")
		c.events.fireStable()
		if err := c.signalling.Disconnect(); err != nil {
			c.logger.Warn("disconnecting signalling failed", "error", err)
		}
	}
	if becameOpen {
		// Heartbeat runs only while Open; a reopen restarts it just like
		// the first negotiation did. The audit loop keeps running across
		// a close, so starting it again here is then a no-op.
		c.StartHeartbeat(0, 0)
		c.StartAuditor()
	}
}

// Send transmits application text over the data channel. Fails with
// ErrNotOpen unless the channel is Open with a live data transport.
func (c *Channel) Send(text string) error {
	c.mu.Lock()
	state := c.state
	data := c.data
	c.mu.Unlock()

	if state != StateOpen || data == nil || !data.IsOpen() {
		c.logger.Warn("send refused", "state", state.String())
		return ErrNotOpen
	}

	payload := []byte(text)
	c.dataAuditor.Record(len(payload))
	return data.Send(payload)
}

// sendCommand transmits a control token. Restricted to the channel
// itself: heartbeats and close/dispose notifications.
func (c *Channel) sendCommand(token string) error {
	c.mu.Lock()
	command := c.command
	c.mu.Unlock()

	if command == nil || !command.IsOpen() {
		return fmt.Errorf("command transport is not open")
	}
	payload := []byte(token)
	c.commandAuditor.Record(len(payload))
	return command.Send(payload)
}

// handleCommandFrame processes one inbound control token.
func (c *Channel) handleCommandFrame(data []byte) {
	switch token := string(data); token {
	case TokenPing:
		if err := c.sendCommand(TokenPong); err != nil {
			c.logger.Warn("replying to ping failed", "error", err)
		}
	case TokenPong:
		c.completeHeartbeat()
	case TokenClose:
		// The peer already closed its side; don't echo a Close back.
		go c.close(false)
	case TokenDispose:
		go c.Dispose()
	default:
		c.logger.Warn("ignoring unknown command token", "token", token)
	}
}

// handleDataFrame processes one inbound data channel frame: the ping and
// echo utilities first, then envelope decode.
func (c *Channel) handleDataFrame(data []byte) {
	text := string(data)

	if strings.EqualFold(text, "ping") {
		c.dataAuditor.Record(len("pong"))
		c.mu.Lock()
		transport := c.data
		c.mu.Unlock()
		if transport != nil {
			if err := transport.Send([]byte("pong")); err != nil {
				c.logger.Warn("ping reply failed", "error", err)
			}
		}
		return
	}

	if rest, ok := strings.CutPrefix(text, "echo:"); ok {
		reply := strings.TrimLeft(rest, " \t")
		c.dataAuditor.Record(len(reply))
		c.mu.Lock()
		transport := c.data
		c.mu.Unlock()
		if transport != nil {
			if err := transport.Send([]byte(reply)); err != nil {
				c.logger.Warn("echo reply failed", "error", err)
			}
		}
		return
	}

	if !envelope.IsEnvelope(text) {
		return
	}
	env, err := envelope.Deserialize(text)
	if err != nil {
		c.logger.Warn("dropping undecodable data frame", "error", err)
		return
	}
	if err := c.addressing.Admit(env, c.clock.Now()); err != nil {
		c.logger.Warn("dropping data envelope", "error", err)
		return
	}

	// No deliveries after close or dispose.
	c.mu.Lock()
	deliverable := c.state == StateOpen
	c.mu.Unlock()
	if !deliverable {
		return
	}
	c.events.fireMessage(env)
}

// handleTransportError surfaces a transport error and fails the
// channel. The timeout event fires alongside the state change so the
// manager removes and disposes the channel, the same way signalling and
// heartbeat timeouts end.
func (c *Channel) handleTransportError(err error) {
	c.logger.Error("transport error", "error", err)
	c.mu.Lock()
	changed := c.transitionLocked(StateFailed)
	c.mu.Unlock()
	if changed {
		c.events.fireStateChange(StateFailed)
		c.events.fireTimeout()
	}
}

// Close performs the graceful close: notify the peer, drain and close
// the data channel, keep the command channel so the session can reopen.
func (c *Channel) Close() error {
	return c.close(true)
}

func (c *Channel) close(notify bool) error {
	c.mu.Lock()
	if c.state != StateOpen {
		state := c.state
		c.mu.Unlock()
		c.logger.Warn("close requested outside Open", "state", state.String())
		return nil
	}
	c.transitionLocked(StateClosing)
	command := c.command
	data := c.data
	c.mu.Unlock()

	c.events.fireStateChange(StateClosing)

	// Heartbeat runs only while Open.
	c.StopHeartbeat()

	if notify && command != nil && command.IsOpen() {
		if err := c.sendCommand(TokenClose); err != nil {
			c.logger.Warn("sending close notification failed", "error", err)
		} else {
			c.waitForDrain(command)
		}
	}

	if data != nil {
		if err := data.Close(); err != nil {
			c.logger.Warn("closing data transport failed", "error", err)
		}
	}

	c.mu.Lock()
	c.data = nil
	changed := c.transitionLocked(StateClosed)
	c.mu.Unlock()
	if changed {
		c.events.fireStateChange(StateClosed)
	}
	c.logger.Info("channel closed")
	return nil
}

// Dispose performs the hard teardown: best-effort Dispose notification,
// close both transports and the peer connection, release everything,
// mark Disposed. Idempotent.
func (c *Channel) Dispose() {
	c.mu.Lock()
	if c.state == StateDisposing || c.state == StateDisposed {
		c.mu.Unlock()
		return
	}
	c.transitionLocked(StateDisposing)
	timer := c.signallingTimer
	c.signallingTimer = nil
	c.mu.Unlock()

	c.events.fireStateChange(StateDisposing)

	if timer != nil {
		timer.Cancel(true)
	}
	c.StopAuditor()
	c.StopHeartbeat()

	c.mu.Lock()
	command := c.command
	data := c.data
	peer := c.peer
	c.mu.Unlock()

	if command != nil && command.IsOpen() {
		if err := c.sendCommand(TokenDispose); err != nil {
			c.logger.Debug("dispose notification failed", "error", err)
		} else {
			c.waitForDrain(command)
		}
	}

	if command != nil {
		command.Close()
	}
	if data != nil {
		data.Close()
	}
	if peer != nil {
		peer.Close()
	}
	if err := c.signalling.Disconnect(); err != nil {
		c.logger.Debug("disconnecting signalling on dispose failed", "error", err)
	}

	c.mu.Lock()
	c.command = nil
	c.data = nil
	c.peer = nil
	c.stable = false
	changed := c.transitionLocked(StateDisposed)
	c.mu.Unlock()

	c.rootCancel()
	if changed {
		c.events.fireStateChange(StateDisposed)
	}
	c.logger.Info("channel disposed")
	c.disposeOnce.Do(c.events.fireDispose)
}

// waitForDrain polls the transport's buffered amount until it empties or
// the drain budget runs out.
func (c *Channel) waitForDrain(transport DataTransport) {
	deadline := c.clock.Now().Add(c.options.DrainTimeout)
	for c.clock.Now().Before(deadline) {
		if transport.BufferedAmount() == 0 {
			return
		}
		select {
		case <-c.clock.After(c.options.DrainPoll):
		case <-c.rootCtx.Done():
			return
		}
	}
	c.logger.Warn("command buffer did not drain before deadline",
		"buffered", transport.BufferedAmount(),
	)
}
