// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/meshnet-foundation/meshnet/lib/envelope"
	"github.com/meshnet-foundation/meshnet/lib/identity"
	"github.com/meshnet-foundation/meshnet/signalling"
)

// DefaultSTUNServer is baked into every peer connection configuration;
// additional servers from ManagerOptions pass through after it.
const DefaultSTUNServer = "stun:stun.l.google.com:19302"

type managerState int

const (
	managerRunning managerState = iota
	managerDisposed
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// ICEServers are appended after the stock STUN server.
	ICEServers []ICEServer

	// ValidateNode and ValidateAccount are the out-of-core admission
	// predicates (on-chain discovery lives elsewhere). Nil admits
	// everything.
	ValidateNode    func(signer identity.Address) bool
	ValidateAccount func(account identity.Address) bool

	// Channel carries per-channel tunables applied to every channel the
	// manager creates. Polite/InitiatedByUs and Events are owned by the
	// manager and overwritten.
	Channel Options

	Clock  clock.Clock
	Logger *slog.Logger

	// OnEnvelope receives every admitted application envelope whose
	// payload is not routed by the manager itself.
	OnEnvelope func(env *envelope.Envelope)
}

// Manager is the process-wide channel registry: node channels keyed by
// signer, account channels keyed by (account, signer). The manager owns
// every channel it creates and guarantees the registry never holds a
// disposed one.
type Manager struct {
	accounts *identity.AccountManager
	factory  PeerConnectionFactory
	options  ManagerOptions
	logger   *slog.Logger
	clock    clock.Clock

	mu              sync.Mutex
	state           managerState
	nodeChannels    map[identity.Address]*NodeChannel
	accountChannels map[identity.Address]map[identity.Address]*AccountChannel
}

// NewManager builds a running manager.
func NewManager(accounts *identity.AccountManager, factory PeerConnectionFactory, options ManagerOptions) *Manager {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Manager{
		accounts: accounts,
		factory:  factory,
		options:  options,
		logger:   logger.With("component", "channel-manager"),
		clock:    clk,
		nodeChannels:    make(map[identity.Address]*NodeChannel),
		accountChannels: make(map[identity.Address]map[identity.Address]*AccountChannel),
	}
}

// iceServers returns the stock STUN server plus the configured extras.
func (m *Manager) iceServers() []ICEServer {
	servers := []ICEServer{{URLs: []string{DefaultSTUNServer}}}
	return append(servers, m.options.ICEServers...)
}

// IsKnownNode reports whether a node channel exists for the signer.
func (m *Manager) IsKnownNode(signer identity.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.nodeChannels[signer]
	return ok
}

// Node returns the node channel for the signer, or nil.
func (m *Manager) Node(signer identity.Address) *NodeChannel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nodeChannels[signer]
}

// Nodes returns a snapshot copy of the node registry. Mutating the
// returned map does not affect the manager.
func (m *Manager) Nodes() map[identity.Address]*NodeChannel {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[identity.Address]*NodeChannel, len(m.nodeChannels))
	for signer, ch := range m.nodeChannels {
		snapshot[signer] = ch
	}
	return snapshot
}

// IsKnownAccount reports whether any channel exists for the account.
func (m *Manager) IsKnownAccount(account identity.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accountChannels[account]) > 0
}

// IsKnownAccountSigner reports whether a channel exists for the
// (account, signer) pair.
func (m *Manager) IsKnownAccountSigner(account, signer identity.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.accountChannels[account][signer]
	return ok
}

// Account returns the channel for the (account, signer) pair, or nil.
func (m *Manager) Account(account, signer identity.Address) *AccountChannel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accountChannels[account][signer]
}

// Accounts returns a snapshot copy of the account registry.
func (m *Manager) Accounts() map[identity.Address]map[identity.Address]*AccountChannel {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[identity.Address]map[identity.Address]*AccountChannel, len(m.accountChannels))
	for account, signers := range m.accountChannels {
		inner := make(map[identity.Address]*AccountChannel, len(signers))
		for signer, ch := range signers {
			inner[signer] = ch
		}
		snapshot[account] = inner
	}
	return snapshot
}

// CreateNodeChannel constructs, registers, and wires a polite,
// not-initiated-by-us node channel. A live existing channel for the
// signer is returned unchanged; a dead one (Failed, Rejected, or
// disposing) is torn down and replaced so the peer can reconnect.
func (m *Manager) CreateNodeChannel(signer identity.Address, sig signalling.Signaller) (*NodeChannel, error) {
	m.mu.Lock()
	if m.state == managerDisposed {
		m.mu.Unlock()
		return nil, fmt.Errorf("channel manager is disposed")
	}
	if existing, ok := m.nodeChannels[signer]; ok {
		if !isDeadChannel(existing.Channel) {
			m.mu.Unlock()
			return existing, nil
		}
		// Entry is dead. Tear down and re-establish so the peer can
		// reconnect.
		delete(m.nodeChannels, signer)
		m.mu.Unlock()
		go existing.Dispose()
	} else {
		m.mu.Unlock()
	}

	var ch *NodeChannel
	options := m.channelOptions()
	options.Events = m.channelEvents(
		func() *Channel { return ch.Channel },
		func() { m.removeNode(signer, ch.Channel) },
	)
	ch = NewNodeChannel(m.accounts.Signer(), signer, sig, m.factory, options)

	if err := ch.StartPeerConnection(m.iceServers()); err != nil {
		ch.Dispose()
		return nil, err
	}

	m.mu.Lock()
	if m.state == managerDisposed {
		m.mu.Unlock()
		ch.Dispose()
		return nil, fmt.Errorf("channel manager is disposed")
	}
	if existing, ok := m.nodeChannels[signer]; ok {
		if !isDeadChannel(existing.Channel) {
			// Lost the creation race; keep the registered one.
			m.mu.Unlock()
			ch.Dispose()
			return existing, nil
		}
		delete(m.nodeChannels, signer)
		go existing.Dispose()
	}
	m.nodeChannels[signer] = ch
	m.mu.Unlock()

	m.logger.Info("node channel created", "signer", signer.Short())
	return ch, nil
}

// CreateAccountChannel is the account analogue of CreateNodeChannel.
func (m *Manager) CreateAccountChannel(account, signer identity.Address, sig signalling.Signaller) (*AccountChannel, error) {
	m.mu.Lock()
	if m.state == managerDisposed {
		m.mu.Unlock()
		return nil, fmt.Errorf("channel manager is disposed")
	}
	if existing, ok := m.accountChannels[account][signer]; ok {
		if !isDeadChannel(existing.Channel) {
			m.mu.Unlock()
			return existing, nil
		}
		// Entry is dead. Tear down and re-establish so the peer can
		// reconnect.
		m.dropAccountLocked(account, signer)
		m.mu.Unlock()
		go existing.Dispose()
	} else {
		m.mu.Unlock()
	}

	var ch *AccountChannel
	options := m.channelOptions()
	options.Events = m.channelEvents(
		func() *Channel { return ch.Channel },
		func() { m.removeAccount(account, signer, ch.Channel) },
	)
	ch = NewAccountChannel(m.accounts.Signer(), account, signer, sig, m.factory, options)

	if err := ch.StartPeerConnection(m.iceServers()); err != nil {
		ch.Dispose()
		return nil, err
	}

	m.mu.Lock()
	if m.state == managerDisposed {
		m.mu.Unlock()
		ch.Dispose()
		return nil, fmt.Errorf("channel manager is disposed")
	}
	if existing, ok := m.accountChannels[account][signer]; ok {
		if !isDeadChannel(existing.Channel) {
			m.mu.Unlock()
			ch.Dispose()
			return existing, nil
		}
		m.dropAccountLocked(account, signer)
		go existing.Dispose()
	}
	if m.accountChannels[account] == nil {
		m.accountChannels[account] = make(map[identity.Address]*AccountChannel)
	}
	m.accountChannels[account][signer] = ch
	m.mu.Unlock()

	m.logger.Info("account channel created",
		"account", account.Short(),
		"signer", signer.Short(),
	)
	return ch, nil
}

// channelOptions derives per-channel options: registry channels are
// polite responders.
func (m *Manager) channelOptions() Options {
	options := m.options.Channel
	options.Polite = true
	options.InitiatedByUs = false
	if options.Clock == nil {
		options.Clock = m.clock
	}
	if options.Logger == nil {
		options.Logger = m.logger
	}
	return options
}

// channelEvents subscribes the manager to a channel's lifecycle. The
// channel accessor is late-bound: the events struct must exist before
// the channel it observes, and none of these callbacks can fire before
// negotiation starts.
func (m *Manager) channelEvents(ch func() *Channel, remove func()) Events {
	return Events{
		OnMessage: m.route,
		OnStable:  func() { ch().StartHeartbeat(0, 0) },
		OnTimeout: func() {
			remove()
			go ch().Dispose()
		},
		OnDispose: remove,
	}
}

// isDeadChannel reports whether a registered channel can no longer
// serve its peer: once Failed or Rejected (or mid-disposal), an inbound
// offer must get a fresh channel, since Accept only runs in Initiating.
func isDeadChannel(ch *Channel) bool {
	switch ch.State() {
	case StateFailed, StateRejected, StateDisposing, StateDisposed:
		return true
	}
	return false
}

// removeNode drops a channel from the registry only while the entry
// still is that channel: a dead entry may already have been replaced
// by a reconnect, and its late dispose must not evict the successor.
func (m *Manager) removeNode(signer identity.Address, ch *Channel) {
	m.mu.Lock()
	current, ok := m.nodeChannels[signer]
	if !ok || current.Channel != ch {
		m.mu.Unlock()
		return
	}
	delete(m.nodeChannels, signer)
	m.mu.Unlock()
	m.logger.Info("node channel removed", "signer", signer.Short())
}

func (m *Manager) removeAccount(account, signer identity.Address, ch *Channel) {
	m.mu.Lock()
	current := m.accountChannels[account][signer]
	if current == nil || current.Channel != ch {
		m.mu.Unlock()
		return
	}
	m.dropAccountLocked(account, signer)
	m.mu.Unlock()
	m.logger.Info("account channel removed",
		"account", account.Short(),
		"signer", signer.Short(),
	)
}

func (m *Manager) dropAccountLocked(account, signer identity.Address) {
	if signers, ok := m.accountChannels[account]; ok {
		delete(signers, signer)
		if len(signers) == 0 {
			delete(m.accountChannels, account)
		}
	}
}

// route dispatches an admitted application envelope: Relay and Broadcast
// are the manager's business, everything else goes to the host.
func (m *Manager) route(env *envelope.Envelope) {
	switch payload := env.Payload.(type) {
	case *envelope.Relay:
		// TODO(routing): deliver to payload.Receiver once multi-hop
		// account lookup lands.
		m.logger.Info("relay envelope received",
			"receiver", payload.Receiver.Short(),
		)
	case *envelope.Broadcast:
		m.broadcast(env)
	default:
		if m.options.OnEnvelope != nil {
			m.options.OnEnvelope(env)
		}
	}
}

// broadcast forwards the serialized envelope to every account channel
// except the sender's own account. Per-channel failures are logged and
// skipped; the rest still receive.
func (m *Manager) broadcast(env *envelope.Envelope) {
	text, err := envelope.Serialize(env)
	if err != nil {
		m.logger.Error("serializing broadcast envelope failed", "error", err)
		return
	}

	senderAccount, err := env.Sender.AccountAddress()
	if err != nil {
		// Node-originated broadcast: no account to exclude.
		senderAccount = identity.EmptyAddress
	}

	for account, signers := range m.Accounts() {
		if account == senderAccount {
			continue
		}
		for signer, ch := range signers {
			if err := ch.Send(text); err != nil {
				m.logger.Warn("broadcast delivery failed",
					"account", account.Short(),
					"signer", signer.Short(),
					"error", err,
				)
			}
		}
	}
}

// HandleInbound is the admission path for envelopes arriving on a fresh
// signalling session: verify signature and expiry, check the receiver is
// this node, classify the sender, validate it, then create the channel
// and accept the offer.
func (m *Manager) HandleInbound(env *envelope.Envelope, sig signalling.Signaller) error {
	if err := env.VerifySignature(); err != nil {
		return fmt.Errorf("inbound envelope rejected: %w", err)
	}
	if env.Expired(m.clock.Now()) {
		return fmt.Errorf("inbound envelope rejected: expired")
	}
	if !m.accounts.IsSigner(env.Receiver.Signer) {
		return fmt.Errorf("inbound envelope rejected: receiver %s is not this node", env.Receiver.Signer.Short())
	}
	if _, ok := env.Payload.(*envelope.Offer); !ok {
		return fmt.Errorf("inbound envelope rejected: %s is not an offer", env.Payload.Kind())
	}

	if env.Sender.IsNode() {
		signer := env.Sender.Signer
		if m.options.ValidateNode != nil && !m.options.ValidateNode(signer) {
			return fmt.Errorf("inbound offer rejected: unknown node %s", signer.Short())
		}
		ch, err := m.CreateNodeChannel(signer, sig)
		if err != nil {
			return err
		}
		return ch.Accept(env)
	}

	account, err := env.Sender.AccountAddress()
	if err != nil {
		return fmt.Errorf("inbound offer rejected: %w", err)
	}
	if m.options.ValidateAccount != nil && !m.options.ValidateAccount(account) {
		return fmt.Errorf("inbound offer rejected: unknown account %s", account.Short())
	}
	ch, err := m.CreateAccountChannel(account, env.Sender.Signer, sig)
	if err != nil {
		return err
	}
	return ch.Accept(env)
}

// Dispose tears down every channel (best-effort, failures logged) and
// clears the registries. The manager is unusable afterwards.
func (m *Manager) Dispose() {
	m.mu.Lock()
	if m.state == managerDisposed {
		m.mu.Unlock()
		return
	}
	m.state = managerDisposed
	nodes := m.nodeChannels
	accounts := m.accountChannels
	m.nodeChannels = make(map[identity.Address]*NodeChannel)
	m.accountChannels = make(map[identity.Address]map[identity.Address]*AccountChannel)
	m.mu.Unlock()

	for signer, ch := range nodes {
		m.disposeQuietly(ch.Channel, "signer", signer.Short())
	}
	for account, signers := range accounts {
		for signer, ch := range signers {
			m.disposeQuietly(ch.Channel, "account", account.Short()+"/"+signer.Short())
		}
	}
	m.logger.Info("channel manager disposed")
}

func (m *Manager) disposeQuietly(ch *Channel, key, value string) {
	defer func() {
		if failure := recover(); failure != nil {
			m.logger.Error("channel dispose panicked", key, value, "panic", failure)
		}
	}()
	ch.Dispose()
}
