// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import "github.com/meshnet-foundation/meshnet/lib/identity"

// Kind is the wire tag of a payload variant. Comparison is exact: no
// aliases, no case folding.
type Kind string

const (
	KindOffer     Kind = "Offer"
	KindAnswer    Kind = "Answer"
	KindRejection Kind = "Rejection"
	KindCandidate Kind = "Candidate"
	KindBroadcast Kind = "Broadcast"
	KindRelay     Kind = "Relay"
)

// Message is the closed payload union. The concrete types below are the
// only implementations; consumers switch on the concrete type rather
// than extending the interface.
type Message interface {
	Kind() Kind
}

// SessionDescription mirrors an SDP description as exchanged during
// negotiation.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Offer carries the initiator's session description.
type Offer struct {
	Offer SessionDescription `json:"offer"`
}

func (Offer) Kind() Kind { return KindOffer }

// Answer carries the responder's session description.
type Answer struct {
	Answer SessionDescription `json:"answer"`
}

func (Answer) Kind() Kind { return KindAnswer }

// Rejection tells the initiator the offer was declined. It has no body.
type Rejection struct{}

func (Rejection) Kind() Kind { return KindRejection }

// Candidate carries one trickled ICE candidate. SDPMLineIndex is optional
// on the wire.
type Candidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        string  `json:"sdpMid"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

func (Candidate) Kind() Kind { return KindCandidate }

// Broadcast carries application text fanned out to every account channel.
type Broadcast struct {
	Text string `json:"text"`
}

func (Broadcast) Kind() Kind { return KindBroadcast }

// Relay carries application text routed to a single named receiver.
type Relay struct {
	Receiver identity.Address `json:"receiver"`
	Text     string           `json:"text"`
}

func (Relay) Kind() Kind { return KindRelay }
