// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meshnet-foundation/meshnet/lib/identity"
)

// Codec error taxonomy. Callers distinguish these with errors.Is.
var (
	// ErrBadFormat marks text that is not a well-formed JSON envelope.
	ErrBadFormat = errors.New("envelope: bad format")
	// ErrUnknownKind marks a payload whose type tag is not in the union.
	ErrUnknownKind = errors.New("envelope: unknown payload kind")
	// ErrMissingPayload marks an envelope without a tagged payload.
	ErrMissingPayload = errors.New("envelope: missing payload")
)

// nodeAccountLiteral in a Party's Account field marks the party as a mesh
// node rather than a user account. Matching is case-insensitive.
const nodeAccountLiteral = "node"

// Party identifies one side of an envelope: the account it speaks for and
// the signer device carrying the conversation.
type Party struct {
	Account string           `json:"account"`
	Signer  identity.Address `json:"signer"`
}

// NodeParty builds the party form nodes use: the literal "Node" account
// plus the node's signer address.
func NodeParty(signer identity.Address) Party {
	return Party{Account: "Node", Signer: signer}
}

// AccountParty builds the party form user accounts use.
func AccountParty(account identity.Address, signer identity.Address) Party {
	return Party{Account: account.String(), Signer: signer}
}

// IsNode reports whether the party is a mesh node.
func (p Party) IsNode() bool {
	return strings.EqualFold(p.Account, nodeAccountLiteral)
}

// AccountAddress parses the party's account field as an address. Fails
// for node parties.
func (p Party) AccountAddress() (identity.Address, error) {
	if p.IsNode() {
		return "", fmt.Errorf("party is a node, not an account")
	}
	return identity.ParseAddress(p.Account)
}

// Envelope is the outer message shape carried over signalling and over
// data channels.
type Envelope struct {
	Timestamp int64   `json:"timestamp"` // unix seconds
	MaxAge    int32   `json:"maxAge"`    // seconds
	Priority  int32   `json:"priority"`
	Sequence  int64   `json:"sequence"`
	Sender    Party   `json:"sender"`
	Receiver  Party   `json:"receiver"`
	Payload   Message `json:"-"`
	Signature string  `json:"signature"`
}

// wireEnvelope is the JSON shape: identical to Envelope, but with the
// payload held raw so the tag can be dispatched after the outer decode.
type wireEnvelope struct {
	Timestamp int64           `json:"timestamp"`
	MaxAge    int32           `json:"maxAge"`
	Priority  int32           `json:"priority"`
	Sequence  int64           `json:"sequence"`
	Sender    Party           `json:"sender"`
	Receiver  Party           `json:"receiver"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// Expired reports whether the envelope's age at the given instant exceeds
// its MaxAge.
func (e *Envelope) Expired(now time.Time) bool {
	return now.Unix()-e.Timestamp > int64(e.MaxAge)
}

// Serialize encodes the envelope as one JSON text frame.
func Serialize(env *Envelope) (string, error) {
	if env.Payload == nil {
		return "", ErrMissingPayload
	}

	payload, err := marshalPayload(env.Payload)
	if err != nil {
		return "", fmt.Errorf("encoding %s payload: %w", env.Payload.Kind(), err)
	}

	encoded, err := json.Marshal(wireEnvelope{
		Timestamp: env.Timestamp,
		MaxAge:    env.MaxAge,
		Priority:  env.Priority,
		Sequence:  env.Sequence,
		Sender:    env.Sender,
		Receiver:  env.Receiver,
		Payload:   payload,
		Signature: env.Signature,
	})
	if err != nil {
		return "", fmt.Errorf("encoding envelope: %w", err)
	}
	return string(encoded), nil
}

// marshalPayload encodes a payload variant with its type tag spliced in.
// Going through a field map keeps the tag injection independent of the
// variant's own field set.
func marshalPayload(message Message) (json.RawMessage, error) {
	body, err := json.Marshal(message)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	tag, err := json.Marshal(message.Kind())
	if err != nil {
		return nil, err
	}
	fields["type"] = tag
	return json.Marshal(fields)
}

// IsEnvelope reports whether the text looks like an envelope: well-formed
// JSON with a payload carrying a string type tag. Frames that fail this
// probe are dropped by callers without logging an error — the data
// channel also carries non-envelope utility frames.
func IsEnvelope(text string) bool {
	var probe struct {
		Payload *struct {
			Type *string `json:"type"`
		} `json:"payload"`
	}
	if err := json.Unmarshal([]byte(text), &probe); err != nil {
		return false
	}
	return probe.Payload != nil && probe.Payload.Type != nil
}

// Deserialize decodes one JSON frame into an envelope, dispatching the
// payload variant on its type tag.
func Deserialize(text string) (*Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if len(wire.Payload) == 0 {
		return nil, ErrMissingPayload
	}

	payload, err := unmarshalPayload(wire.Payload)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Timestamp: wire.Timestamp,
		MaxAge:    wire.MaxAge,
		Priority:  wire.Priority,
		Sequence:  wire.Sequence,
		Sender:    wire.Sender,
		Receiver:  wire.Receiver,
		Payload:   payload,
		Signature: wire.Signature,
	}, nil
}

func unmarshalPayload(raw json.RawMessage) (Message, error) {
	var tag struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if tag.Type == nil {
		return nil, ErrMissingPayload
	}

	var message Message
	switch Kind(*tag.Type) {
	case KindOffer:
		message = &Offer{}
	case KindAnswer:
		message = &Answer{}
	case KindRejection:
		message = &Rejection{}
	case KindCandidate:
		message = &Candidate{}
	case KindBroadcast:
		message = &Broadcast{}
	case KindRelay:
		message = &Relay{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, *tag.Type)
	}

	if err := json.Unmarshal(raw, message); err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", *tag.Type, err)
	}
	return message, nil
}

// SigningHash is the Keccak-256 digest envelope signatures cover: the
// canonical serialization with an empty signature field.
func (e *Envelope) SigningHash() ([]byte, error) {
	unsigned := *e
	unsigned.Signature = ""
	text, err := Serialize(&unsigned)
	if err != nil {
		return nil, err
	}
	return identity.Keccak256([]byte(text)), nil
}

// Sign computes the signing hash and stores the account's signature in
// the envelope.
func (e *Envelope) Sign(account *identity.LocalAccount) error {
	hash, err := e.SigningHash()
	if err != nil {
		return err
	}
	signature, err := account.SignHash(hash)
	if err != nil {
		return err
	}
	e.Signature = signature
	return nil
}

// VerifySignature recovers the signing address from the envelope's
// signature and checks it against the sender's signer.
func (e *Envelope) VerifySignature() error {
	hash, err := e.SigningHash()
	if err != nil {
		return err
	}
	recovered, err := identity.RecoverSigner(hash, e.Signature)
	if err != nil {
		return fmt.Errorf("envelope signature: %w", err)
	}
	if recovered != e.Sender.Signer {
		return fmt.Errorf("envelope signed by %s, sender claims %s", recovered, e.Sender.Signer)
	}
	return nil
}
