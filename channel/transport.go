// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import "github.com/meshnet-foundation/meshnet/lib/envelope"

// Data channel labels. The command channel is created before the data
// channel completes; both ride the same peer connection.
const (
	CommandLabel = "command"
	DataLabel    = "data"
)

// Command tokens exchanged over the command channel. Case-sensitive.
const (
	TokenPing    = "Ping"
	TokenPong    = "Pong"
	TokenClose   = "Close"
	TokenDispose = "Dispose"
)

// DataTransport abstracts one WebRTC data channel. The production
// implementation wraps pion; tests use in-process fakes.
type DataTransport interface {
	Label() string
	IsOpen() bool
	Send(data []byte) error
	BufferedAmount() uint64
	Close() error

	OnOpen(handler func())
	OnMessage(handler func(data []byte))
	OnError(handler func(err error))
	OnClose(handler func())
}

// ICECandidate is one trickled candidate, local or remote. A nil SDPMid
// means the candidate carries no media stream identification; the wire
// format serializes that as "0" for interop.
type ICECandidate struct {
	Candidate     string
	SDPMid        *string
	SDPMLineIndex *uint16
}

// PeerConnection abstracts the slice of a WebRTC peer connection the
// channel state machine drives.
type PeerConnection interface {
	// CreateDataTransport opens an ordered, reliable data channel with
	// the given label.
	CreateDataTransport(label string) (DataTransport, error)

	CreateOffer() (envelope.SessionDescription, error)
	CreateAnswer() (envelope.SessionDescription, error)
	SetLocalDescription(description envelope.SessionDescription) error
	SetRemoteDescription(description envelope.SessionDescription) error
	AddICECandidate(candidate ICECandidate) error

	// ICEConnected reports whether the ICE connection state is
	// currently connected (or completed).
	ICEConnected() bool

	OnICECandidate(handler func(candidate ICECandidate))
	OnICEConnectionStateChange(handler func(connected bool))
	OnDataTransport(handler func(transport DataTransport))

	Close() error
}

// PeerConnectionFactory builds peer connections from ICE server URLs and
// credentials. The Manager injects the pion-backed factory; tests inject
// fakes.
type PeerConnectionFactory func(servers []ICEServer) (PeerConnection, error)

// ICEServer is one STUN or TURN server for candidate gathering.
type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}
