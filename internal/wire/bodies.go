package wire

// HandshakeInitBody is the body of the first handshake message: the
// initiator's public key, a signature over its own sender-id, and a fresh
// random challenge for the responder to echo back signed.
type HandshakeInitBody struct {
	PublicKey []byte `cbor:"0,keyasint"`
	Signature []byte `cbor:"1,keyasint"`
	Challenge []byte `cbor:"2,keyasint"`
}

// HandshakeResponseBody is the body of the second handshake message: the
// responder's public key, a signature over (local-id || peer challenge),
// and the responder's own fresh challenge.
type HandshakeResponseBody struct {
	PublicKey []byte `cbor:"0,keyasint"`
	Signature []byte `cbor:"1,keyasint"`
	Challenge []byte `cbor:"2,keyasint"`
	// InReplyTo carries the message-id of the HandshakeInit this responds
	// to, so the initiator can locate the challenge it stored for that
	// exchange without a shared/global pending-challenge namespace.
	InReplyTo string `cbor:"3,keyasint"`
}

// HandshakeConfirmBody is the body of the third handshake message: a
// signature over the responder's challenge, with no new challenge issued.
type HandshakeConfirmBody struct {
	Signature []byte `cbor:"0,keyasint"`
	// InReplyTo carries the message-id of the HandshakeResponse this
	// confirms, mirroring HandshakeResponseBody.InReplyTo.
	InReplyTo string `cbor:"1,keyasint"`
}

// DataBody carries one message in a chunked payload-group transfer. State
// tags which of the four roles (chunk, ack, retransmit request, complete)
// this message plays.
type DataBody struct {
	GroupID  string    `cbor:"0,keyasint"`
	Total    int       `cbor:"1,keyasint"`
	Index    int       `cbor:"2,keyasint"`
	Data     []byte    `cbor:"3,keyasint,omitempty"`
	Checksum []byte    `cbor:"4,keyasint,omitempty"`
	State    DataState `cbor:"5,keyasint"`
}

// RoutingBody wraps a payload Envelope for multi-hop forwarding. Route
// always begins with the original sender; each forwarding node appends
// its own id exactly once before forwarding.
type RoutingBody struct {
	TargetID string    `cbor:"0,keyasint"`
	Route    []string  `cbor:"1,keyasint"`
	Payload  *Envelope `cbor:"2,keyasint"`
	Strategy Strategy  `cbor:"3,keyasint"`
}

// DiscoveryRequestBody carries no fields; presence of the kind is the
// whole message.
type DiscoveryRequestBody struct{}

// DiscoveryResponseBody advertises the responder's identity and reachable
// TCP service address. TransportID carries the libp2p peer id backing that
// address: the mesh-level sender-id in the envelope header authenticates
// nothing by itself, but the Connection Registry needs a concrete
// transport peer to dial, and discovery is the only place that peer id
// and the advertised host/port are ever seen together.
type DiscoveryResponseBody struct {
	Host        string `cbor:"0,keyasint"`
	Port        int    `cbor:"1,keyasint"`
	TransportID string `cbor:"2,keyasint"`
}

// PeerListRequestBody carries no fields.
type PeerListRequestBody struct{}

// PeerRecordWire is the wire form of a PeerRecord, extended with the
// transport peer id for the same reason as DiscoveryResponseBody.
type PeerRecordWire struct {
	PeerID      string `cbor:"0,keyasint"`
	Host        string `cbor:"1,keyasint"`
	Port        int    `cbor:"2,keyasint"`
	TransportID string `cbor:"3,keyasint"`
}

// PeerListResponseBody carries a snapshot of the responder's known peers.
type PeerListResponseBody struct {
	Peers []PeerRecordWire `cbor:"0,keyasint"`
}
