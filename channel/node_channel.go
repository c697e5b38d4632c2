// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"github.com/meshnet-foundation/meshnet/lib/identity"
	"github.com/meshnet-foundation/meshnet/signalling"
)

// NodeChannel is a channel to another mesh node. The counterpart is
// addressed purely by its signer: node envelopes carry the literal
// "Node" account on both sides.
type NodeChannel struct {
	*Channel
	destination identity.Address
}

// NewNodeChannel builds a node channel. The account signs outbound
// envelopes; origin is its address, destination the remote node's
// signer.
func NewNodeChannel(account *identity.LocalAccount, destination identity.Address, sig signalling.Signaller, factory PeerConnectionFactory, options Options) *NodeChannel {
	addressing := &nodeAddressing{
		account:     account,
		origin:      account.Address(),
		destination: destination,
	}
	return &NodeChannel{
		Channel:     newChannel(addressing, sig, factory, options),
		destination: destination,
	}
}

// Destination returns the remote node's signer address — the channel's
// registry key. For an outbound dial it is empty until the first admitted
// envelope pins the peer's signer.
func (c *NodeChannel) Destination() identity.Address {
	if addressing, ok := c.addressing.(*nodeAddressing); ok {
		addressing.mu.Lock()
		defer addressing.mu.Unlock()
		return addressing.destination
	}
	return c.destination
}
