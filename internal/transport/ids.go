package transport

import "github.com/libp2p/go-libp2p/core/protocol"

// SessionProtocolID is the single libp2p protocol every authenticated and
// pre-authenticated envelope travels over. There is no per-stream-kind
// multiplexing: handshake, data, and routing envelopes all share one
// bidirectional stream per peer, dispatched by Envelope.Kind. Discovery
// envelopes travel over the discovery service's own UDP socket.
const SessionProtocolID protocol.ID = "/labyrinth/session/1.0.0"
