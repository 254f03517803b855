package wire

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Envelope is the common frame every kind travels in: a header
// (message-id, sender-id, kind, timestamp) plus exactly one populated
// kind-specific body. An Envelope is immutable once constructed —
// message-id is generated at construction and never rewritten when an
// envelope is forwarded.
type Envelope struct {
	MessageID string `cbor:"0,keyasint"`
	SenderID  string `cbor:"1,keyasint"`
	Kind      Kind   `cbor:"2,keyasint"`
	Timestamp int64  `cbor:"3,keyasint"`

	HandshakeInit     *HandshakeInitBody     `cbor:"10,keyasint,omitempty"`
	HandshakeResponse *HandshakeResponseBody `cbor:"11,keyasint,omitempty"`
	HandshakeConfirm  *HandshakeConfirmBody  `cbor:"12,keyasint,omitempty"`
	Data              *DataBody              `cbor:"13,keyasint,omitempty"`
	Routing           *RoutingBody           `cbor:"14,keyasint,omitempty"`
	DiscoveryRequest  *DiscoveryRequestBody  `cbor:"15,keyasint,omitempty"`
	DiscoveryResponse *DiscoveryResponseBody `cbor:"16,keyasint,omitempty"`
	PeerListRequest   *PeerListRequestBody   `cbor:"17,keyasint,omitempty"`
	PeerListResponse  *PeerListResponseBody  `cbor:"18,keyasint,omitempty"`
}

// NewMessageID returns a fresh random message identifier.
func NewMessageID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate message id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func newHeader(senderID string, kind Kind) (Envelope, error) {
	id, err := NewMessageID()
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		MessageID: id,
		SenderID:  senderID,
		Kind:      kind,
		Timestamp: time.Now().UnixNano(),
	}, nil
}

// NewHandshakeInit builds a HandshakeInit envelope.
func NewHandshakeInit(senderID string, body HandshakeInitBody) (Envelope, error) {
	env, err := newHeader(senderID, KindHandshakeInit)
	if err != nil {
		return Envelope{}, err
	}
	env.HandshakeInit = &body
	return env, nil
}

// NewHandshakeResponse builds a HandshakeResponse envelope.
func NewHandshakeResponse(senderID string, body HandshakeResponseBody) (Envelope, error) {
	env, err := newHeader(senderID, KindHandshakeResponse)
	if err != nil {
		return Envelope{}, err
	}
	env.HandshakeResponse = &body
	return env, nil
}

// NewHandshakeConfirm builds a HandshakeConfirm envelope.
func NewHandshakeConfirm(senderID string, body HandshakeConfirmBody) (Envelope, error) {
	env, err := newHeader(senderID, KindHandshakeConfirm)
	if err != nil {
		return Envelope{}, err
	}
	env.HandshakeConfirm = &body
	return env, nil
}

// NewData builds a Data envelope.
func NewData(senderID string, body DataBody) (Envelope, error) {
	env, err := newHeader(senderID, KindData)
	if err != nil {
		return Envelope{}, err
	}
	env.Data = &body
	return env, nil
}

// NewRouting wraps payload in a RoutingBody with the given target and
// strategy, route starting at originator.
func NewRouting(senderID, target string, route []string, strategy Strategy, payload Envelope) (Envelope, error) {
	env, err := newHeader(senderID, KindRouting)
	if err != nil {
		return Envelope{}, err
	}
	env.Routing = &RoutingBody{
		TargetID: target,
		Route:    route,
		Payload:  &payload,
		Strategy: strategy,
	}
	return env, nil
}

// NewDiscoveryRequest builds a DiscoveryRequest envelope.
func NewDiscoveryRequest(senderID string) (Envelope, error) {
	return newHeader(senderID, KindDiscoveryRequest)
}

// NewDiscoveryResponse builds a DiscoveryResponse envelope.
func NewDiscoveryResponse(senderID string, body DiscoveryResponseBody) (Envelope, error) {
	env, err := newHeader(senderID, KindDiscoveryResponse)
	if err != nil {
		return Envelope{}, err
	}
	env.DiscoveryResponse = &body
	return env, nil
}

// NewPeerListRequest builds a PeerListRequest envelope.
func NewPeerListRequest(senderID string) (Envelope, error) {
	return newHeader(senderID, KindPeerListRequest)
}

// NewPeerListResponse builds a PeerListResponse envelope.
func NewPeerListResponse(senderID string, peers []PeerRecordWire) (Envelope, error) {
	env, err := newHeader(senderID, KindPeerListResponse)
	if err != nil {
		return Envelope{}, err
	}
	env.PeerListResponse = &PeerListResponseBody{Peers: peers}
	return env, nil
}
