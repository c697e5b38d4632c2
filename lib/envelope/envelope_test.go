// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/meshnet-foundation/meshnet/lib/identity"
)

const testPrivateKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func testEnvelope(payload Message) *Envelope {
	return &Envelope{
		Timestamp: 1700000000,
		MaxAge:    60,
		Priority:  1,
		Sequence:  42,
		Sender:    NodeParty(identity.Address("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")),
		Receiver:  NodeParty(identity.Address("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")),
		Payload:   payload,
	}
}

func TestRoundTrip_AllVariants(t *testing.T) {
	index := uint16(0)
	variants := []Message{
		&Offer{Offer: SessionDescription{Type: "offer", SDP: "v=0\r\no=- 1 1 IN IP4 0.0.0.0"}},
		&Answer{Answer: SessionDescription{Type: "answer", SDP: "v=0"}},
		&Rejection{},
		&Candidate{Candidate: "candidate:1 1 udp 2130706431 192.0.2.1 54400 typ host", SDPMid: "0", SDPMLineIndex: &index},
		&Broadcast{Text: "hi"},
		&Relay{Receiver: identity.Address("cccccccccccccccccccccccccccccccccccccccc"), Text: "private"},
	}

	for _, payload := range variants {
		t.Run(string(payload.Kind()), func(t *testing.T) {
			original := testEnvelope(payload)
			text, err := Serialize(original)
			if err != nil {
				t.Fatalf("Serialize: %v", err)
			}
			if !IsEnvelope(text) {
				t.Fatalf("IsEnvelope(%q) = false", text)
			}
			decoded, err := Deserialize(text)
			if err != nil {
				t.Fatalf("Deserialize: %v", err)
			}
			if !reflect.DeepEqual(original, decoded) {
				t.Errorf("round trip mismatch:\n got %#v\nwant %#v", decoded, original)
			}
		})
	}
}

func TestDeserialize_UnknownKind(t *testing.T) {
	text := `{"timestamp":1,"maxAge":60,"priority":0,"sequence":0,` +
		`"sender":{"account":"node","signer":""},"receiver":{"account":"node","signer":""},` +
		`"payload":{"type":"Gossip"},"signature":""}`
	if _, err := Deserialize(text); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Deserialize = %v, want ErrUnknownKind", err)
	}

	// Tag matching is case-sensitive: "offer" is not "Offer".
	lowered := `{"payload":{"type":"offer"}}`
	if _, err := Deserialize(lowered); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Deserialize(lower-case tag) = %v, want ErrUnknownKind", err)
	}
}

func TestDeserialize_MissingPayload(t *testing.T) {
	for _, text := range []string{
		`{"timestamp":1}`,
		`{"payload":{}}`,
		`{"payload":{"sdp":"v=0"}}`,
	} {
		if _, err := Deserialize(text); !errors.Is(err, ErrMissingPayload) {
			t.Errorf("Deserialize(%q) = %v, want ErrMissingPayload", text, err)
		}
	}
}

func TestDeserialize_BadFormat(t *testing.T) {
	for _, text := range []string{"", "not json", `["array"]`, `{"payload":"string"}`} {
		if _, err := Deserialize(text); !errors.Is(err, ErrBadFormat) {
			t.Errorf("Deserialize(%q) = %v, want ErrBadFormat", text, err)
		}
	}
}

func TestIsEnvelope(t *testing.T) {
	if IsEnvelope("ping") {
		t.Error("IsEnvelope(ping) = true")
	}
	if IsEnvelope(`{"timestamp":1}`) {
		t.Error("IsEnvelope without payload = true")
	}
	if IsEnvelope(`{"payload":{"text":"x"}}`) {
		t.Error("IsEnvelope without payload.type = true")
	}
	if !IsEnvelope(`{"payload":{"type":"Broadcast","text":"x"}}`) {
		t.Error("IsEnvelope with tagged payload = false")
	}
}

func TestPayloadFieldOrderIrrelevant(t *testing.T) {
	text := `{"timestamp":1,"maxAge":60,"priority":0,"sequence":0,` +
		`"sender":{"account":"node","signer":""},"receiver":{"account":"node","signer":""},` +
		`"payload":{"text":"hello","type":"Broadcast"},"signature":""}`
	decoded, err := Deserialize(text)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	broadcast, ok := decoded.Payload.(*Broadcast)
	if !ok {
		t.Fatalf("payload type = %T", decoded.Payload)
	}
	if broadcast.Text != "hello" {
		t.Errorf("text = %q", broadcast.Text)
	}
}

func TestExpired(t *testing.T) {
	env := testEnvelope(&Broadcast{Text: "x"})
	env.Timestamp = 1000
	env.MaxAge = 60

	if env.Expired(time.Unix(1030, 0)) {
		t.Error("expired inside max age")
	}
	if env.Expired(time.Unix(1060, 0)) {
		t.Error("expired exactly at max age")
	}
	if !env.Expired(time.Unix(1061, 0)) {
		t.Error("not expired past max age")
	}
}

func TestParty_IsNode(t *testing.T) {
	for _, account := range []string{"node", "Node", "NODE"} {
		if !(Party{Account: account}).IsNode() {
			t.Errorf("IsNode(%q) = false", account)
		}
	}
	if (Party{Account: "0xabc"}).IsNode() {
		t.Error("IsNode(address) = true")
	}
}

func TestSignAndVerify(t *testing.T) {
	account, err := identity.NewLocalAccount(testPrivateKey, -1)
	if err != nil {
		t.Fatalf("NewLocalAccount: %v", err)
	}
	defer account.Lock()

	env := testEnvelope(&Broadcast{Text: "signed"})
	env.Sender = NodeParty(account.Address())

	if err := env.Sign(account); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := env.VerifySignature(); err != nil {
		t.Errorf("VerifySignature: %v", err)
	}

	// Verification survives a wire round trip.
	text, err := Serialize(env)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	decoded, err := Deserialize(text)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if err := decoded.VerifySignature(); err != nil {
		t.Errorf("VerifySignature after round trip: %v", err)
	}

	// A sender swap breaks verification.
	decoded.Sender = NodeParty(identity.Address("dddddddddddddddddddddddddddddddddddddddd"))
	if err := decoded.VerifySignature(); err == nil {
		t.Error("VerifySignature accepted a forged sender")
	}
}
