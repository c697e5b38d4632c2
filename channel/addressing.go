// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"fmt"
	"sync"
	"time"

	"github.com/meshnet-foundation/meshnet/lib/envelope"
	"github.com/meshnet-foundation/meshnet/lib/identity"
)

// DefaultMaxAge bounds how long an outbound envelope stays valid.
const DefaultMaxAge = 60 * time.Second

// Addressing is the specialization point between node and account
// channels: how envelopes name the counterpart, which inbound envelopes
// the channel admits, and what the channel's logger says about it.
type Addressing interface {
	// Envelope wraps and signs a payload addressed to the counterpart.
	Envelope(now time.Time, sequence int64, payload envelope.Message) (*envelope.Envelope, error)

	// Admit validates an inbound envelope's addressing against this
	// channel. Expiry and signature checks are included where the
	// channel kind requires them.
	Admit(env *envelope.Envelope, now time.Time) error

	// LogAttrs contributes channel-kind context as slog attributes.
	LogAttrs() []any
}

// nodeAddressing addresses the counterpart as {account: "Node", signer}.
type nodeAddressing struct {
	account *identity.LocalAccount
	origin  identity.Address

	// destination may start empty for outbound dials and is pinned by
	// the first admitted envelope; mu guards it.
	mu          sync.Mutex
	destination identity.Address
}

func (a *nodeAddressing) Envelope(now time.Time, sequence int64, payload envelope.Message) (*envelope.Envelope, error) {
	a.mu.Lock()
	destination := a.destination
	a.mu.Unlock()

	env := &envelope.Envelope{
		Timestamp: now.Unix(),
		MaxAge:    int32(DefaultMaxAge / time.Second),
		Sequence:  sequence,
		Sender:    envelope.NodeParty(a.origin),
		Receiver:  envelope.NodeParty(destination),
		Payload:   payload,
	}
	if err := env.Sign(a.account); err != nil {
		return nil, fmt.Errorf("signing %s envelope: %w", payload.Kind(), err)
	}
	return env, nil
}

func (a *nodeAddressing) Admit(env *envelope.Envelope, _ time.Time) error {
	// An empty destination marks an outbound dial whose peer signer is
	// not known yet; the first admitted envelope pins it.
	a.mu.Lock()
	if a.destination.IsEmpty() {
		a.destination = env.Sender.Signer
	}
	destination := a.destination
	a.mu.Unlock()

	if env.Sender.Signer != destination {
		return fmt.Errorf("%w: sender signer %s is not %s", ErrAdmissionRejected, env.Sender.Signer, destination)
	}
	if env.Receiver.Signer != a.origin {
		return fmt.Errorf("%w: receiver signer %s is not %s", ErrAdmissionRejected, env.Receiver.Signer, a.origin)
	}
	return nil
}

func (a *nodeAddressing) LogAttrs() []any {
	a.mu.Lock()
	destination := a.destination
	a.mu.Unlock()
	return []any{
		"type", "node",
		"origin", a.origin.Short(),
		"destination", destination.Short(),
	}
}

// accountAddressing addresses the counterpart as {account, signer}: one
// registered account reachable through one of its devices.
type accountAddressing struct {
	account            *identity.LocalAccount
	origin             identity.Address
	destinationAccount identity.Address
	destinationSigner  identity.Address
}

func (a *accountAddressing) Envelope(now time.Time, sequence int64, payload envelope.Message) (*envelope.Envelope, error) {
	env := &envelope.Envelope{
		Timestamp: now.Unix(),
		MaxAge:    int32(DefaultMaxAge / time.Second),
		Sequence:  sequence,
		Sender:    envelope.NodeParty(a.origin),
		Receiver:  envelope.AccountParty(a.destinationAccount, a.destinationSigner),
		Payload:   payload,
	}
	if err := env.Sign(a.account); err != nil {
		return nil, fmt.Errorf("signing %s envelope: %w", payload.Kind(), err)
	}
	return env, nil
}

func (a *accountAddressing) Admit(env *envelope.Envelope, now time.Time) error {
	if env.Expired(now) {
		return fmt.Errorf("%w: envelope expired", ErrAdmissionRejected)
	}
	if err := env.VerifySignature(); err != nil {
		return fmt.Errorf("%w: %v", ErrAdmissionRejected, err)
	}
	if env.Sender.Signer != a.destinationSigner {
		return fmt.Errorf("%w: sender signer %s is not %s", ErrAdmissionRejected, env.Sender.Signer, a.destinationSigner)
	}
	senderAccount, err := env.Sender.AccountAddress()
	if err != nil || senderAccount != a.destinationAccount {
		return fmt.Errorf("%w: sender account does not match %s", ErrAdmissionRejected, a.destinationAccount.Short())
	}
	if env.Receiver.Signer != a.origin {
		return fmt.Errorf("%w: receiver signer %s is not %s", ErrAdmissionRejected, env.Receiver.Signer, a.origin)
	}
	return nil
}

func (a *accountAddressing) LogAttrs() []any {
	return []any{
		"type", "account",
		"origin", a.origin.Short(),
		"destination", a.destinationSigner.Short(),
		"destination_account", a.destinationAccount.Short(),
	}
}
