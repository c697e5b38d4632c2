// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/meshnet-foundation/meshnet/lib/envelope"
)

// Compile-time interface checks.
var (
	_ PeerConnection = (*pionPeerConnection)(nil)
	_ DataTransport  = (*pionDataTransport)(nil)
)

// NewPionFactory returns the production PeerConnectionFactory backed by
// pion/webrtc. Loopback candidates are enabled so same-machine nodes and
// test environments negotiate without external interfaces.
func NewPionFactory() PeerConnectionFactory {
	return func(servers []ICEServer) (PeerConnection, error) {
		iceServers := make([]webrtc.ICEServer, 0, len(servers))
		for _, server := range servers {
			iceServers = append(iceServers, webrtc.ICEServer{
				URLs:       server.URLs,
				Username:   server.Username,
				Credential: server.Credential,
			})
		}

		settingEngine := webrtc.SettingEngine{}
		settingEngine.SetIncludeLoopbackCandidate(true)

		api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
		connection, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
		if err != nil {
			return nil, fmt.Errorf("creating peer connection: %w", err)
		}
		return &pionPeerConnection{connection: connection}, nil
	}
}

type pionPeerConnection struct {
	connection *webrtc.PeerConnection
}

func (p *pionPeerConnection) CreateDataTransport(label string) (DataTransport, error) {
	ordered := true
	dataChannel, err := p.connection.CreateDataChannel(label, &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		return nil, fmt.Errorf("creating data channel %s: %w", label, err)
	}
	return &pionDataTransport{channel: dataChannel}, nil
}

func (p *pionPeerConnection) CreateOffer() (envelope.SessionDescription, error) {
	offer, err := p.connection.CreateOffer(nil)
	if err != nil {
		return envelope.SessionDescription{}, fmt.Errorf("creating offer: %w", err)
	}
	return envelope.SessionDescription{Type: offer.Type.String(), SDP: offer.SDP}, nil
}

func (p *pionPeerConnection) CreateAnswer() (envelope.SessionDescription, error) {
	answer, err := p.connection.CreateAnswer(nil)
	if err != nil {
		return envelope.SessionDescription{}, fmt.Errorf("creating answer: %w", err)
	}
	return envelope.SessionDescription{Type: answer.Type.String(), SDP: answer.SDP}, nil
}

func (p *pionPeerConnection) SetLocalDescription(description envelope.SessionDescription) error {
	converted, err := toPionDescription(description)
	if err != nil {
		return err
	}
	if err := p.connection.SetLocalDescription(converted); err != nil {
		return fmt.Errorf("setting local description: %w", err)
	}
	return nil
}

func (p *pionPeerConnection) SetRemoteDescription(description envelope.SessionDescription) error {
	converted, err := toPionDescription(description)
	if err != nil {
		return err
	}
	if err := p.connection.SetRemoteDescription(converted); err != nil {
		return fmt.Errorf("setting remote description: %w", err)
	}
	return nil
}

func toPionDescription(description envelope.SessionDescription) (webrtc.SessionDescription, error) {
	var descriptionType webrtc.SDPType
	switch description.Type {
	case "offer":
		descriptionType = webrtc.SDPTypeOffer
	case "answer":
		descriptionType = webrtc.SDPTypeAnswer
	case "pranswer":
		descriptionType = webrtc.SDPTypePranswer
	case "rollback":
		descriptionType = webrtc.SDPTypeRollback
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("unknown SDP type %q", description.Type)
	}
	return webrtc.SessionDescription{Type: descriptionType, SDP: description.SDP}, nil
}

func (p *pionPeerConnection) AddICECandidate(candidate ICECandidate) error {
	if err := p.connection.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     candidate.Candidate,
		SDPMid:        candidate.SDPMid,
		SDPMLineIndex: candidate.SDPMLineIndex,
	}); err != nil {
		return fmt.Errorf("adding ICE candidate: %w", err)
	}
	return nil
}

func (p *pionPeerConnection) ICEConnected() bool {
	state := p.connection.ICEConnectionState()
	return state == webrtc.ICEConnectionStateConnected ||
		state == webrtc.ICEConnectionStateCompleted
}

func (p *pionPeerConnection) OnICECandidate(handler func(ICECandidate)) {
	p.connection.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		// A nil candidate marks the end of gathering; the trickle
		// protocol has nothing to forward for it.
		if candidate == nil {
			return
		}
		converted := candidate.ToJSON()
		handler(ICECandidate{
			Candidate:     converted.Candidate,
			SDPMid:        converted.SDPMid,
			SDPMLineIndex: converted.SDPMLineIndex,
		})
	})
}

func (p *pionPeerConnection) OnICEConnectionStateChange(handler func(connected bool)) {
	p.connection.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		handler(state == webrtc.ICEConnectionStateConnected ||
			state == webrtc.ICEConnectionStateCompleted)
	})
}

func (p *pionPeerConnection) OnDataTransport(handler func(DataTransport)) {
	p.connection.OnDataChannel(func(dataChannel *webrtc.DataChannel) {
		handler(&pionDataTransport{channel: dataChannel})
	})
}

func (p *pionPeerConnection) Close() error {
	return p.connection.Close()
}

type pionDataTransport struct {
	channel *webrtc.DataChannel
}

func (t *pionDataTransport) Label() string {
	return t.channel.Label()
}

func (t *pionDataTransport) IsOpen() bool {
	return t.channel.ReadyState() == webrtc.DataChannelStateOpen
}

func (t *pionDataTransport) Send(data []byte) error {
	if err := t.channel.Send(data); err != nil {
		return fmt.Errorf("sending on %s channel: %w", t.channel.Label(), err)
	}
	return nil
}

func (t *pionDataTransport) BufferedAmount() uint64 {
	return t.channel.BufferedAmount()
}

func (t *pionDataTransport) Close() error {
	return t.channel.Close()
}

func (t *pionDataTransport) OnOpen(handler func()) {
	t.channel.OnOpen(handler)
}

func (t *pionDataTransport) OnMessage(handler func([]byte)) {
	t.channel.OnMessage(func(message webrtc.DataChannelMessage) {
		handler(message.Data)
	})
}

func (t *pionDataTransport) OnError(handler func(error)) {
	t.channel.OnError(handler)
}

func (t *pionDataTransport) OnClose(handler func()) {
	t.channel.OnClose(handler)
}
