package handshake

import (
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/signature"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/wire"
)

// ChallengeSize is the length in bytes of a handshake challenge.
const ChallengeSize = 32

// ErrAuthenticationFailed indicates a signature failed verification during
// the handshake. It is fatal for the session that raised it.
var ErrAuthenticationFailed = fmt.Errorf("handshake: signature verification failed")

// Engine drives the challenge/response cryptography for a single
// connection's 3-message handshake. It is not safe for use across more
// than one peer — one Engine is created per session.
type Engine struct {
	mu      sync.Mutex
	localID string
	sig     *signature.Service

	// pending maps a message-id this engine generated to the challenge
	// bytes it carried, until the corresponding reply consumes it.
	pending map[string][]byte

	// peerPublicKey is learned the first time a signature from the peer
	// verifies successfully, and used to verify the final confirm.
	peerPublicKey []byte
}

// NewEngine creates a handshake engine for one connection.
func NewEngine(localID string, sig *signature.Service) *Engine {
	return &Engine{
		localID: localID,
		sig:     sig,
		pending: make(map[string][]byte),
	}
}

func randomChallenge() ([]byte, error) {
	b := make([]byte, ChallengeSize)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate challenge: %w", err)
	}
	return b, nil
}

// CreateInitial produces the first handshake message: a fresh challenge
// and a signature over the local node-id, proving the sender holds the
// private key for the advertised public key.
func (e *Engine) CreateInitial() (wire.Envelope, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	challenge, err := randomChallenge()
	if err != nil {
		return wire.Envelope{}, err
	}
	sig, err := e.sig.Sign([]byte(e.localID))
	if err != nil {
		return wire.Envelope{}, fmt.Errorf("sign handshake init: %w", err)
	}

	env, err := wire.NewHandshakeInit(e.localID, wire.HandshakeInitBody{
		PublicKey: e.sig.PublicKey(),
		Signature: sig,
		Challenge: challenge,
	})
	if err != nil {
		return wire.Envelope{}, err
	}
	e.pending[env.MessageID] = challenge
	return env, nil
}

// HandleInit verifies an incoming HandshakeInit and produces the
// HandshakeResponse. Returns ErrAuthenticationFailed if the signature does
// not verify — fatal for the session.
func (e *Engine) HandleInit(msg *wire.Envelope) (wire.Envelope, error) {
	if msg.HandshakeInit == nil {
		return wire.Envelope{}, fmt.Errorf("handshake: HandleInit called on non-init envelope")
	}
	body := msg.HandshakeInit

	if !signature.Verify([]byte(msg.SenderID), body.Signature, body.PublicKey) {
		return wire.Envelope{}, ErrAuthenticationFailed
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.peerPublicKey = append([]byte(nil), body.PublicKey...)

	challenge, err := randomChallenge()
	if err != nil {
		return wire.Envelope{}, err
	}
	toSign := append(append([]byte(nil), []byte(e.localID)...), body.Challenge...)
	sig, err := e.sig.Sign(toSign)
	if err != nil {
		return wire.Envelope{}, fmt.Errorf("sign handshake response: %w", err)
	}

	resp, err := wire.NewHandshakeResponse(e.localID, wire.HandshakeResponseBody{
		PublicKey: e.sig.PublicKey(),
		Signature: sig,
		Challenge: challenge,
		InReplyTo: msg.MessageID,
	})
	if err != nil {
		return wire.Envelope{}, err
	}
	e.pending[resp.MessageID] = challenge
	return resp, nil
}

// HandleResponse verifies an incoming HandshakeResponse against the
// challenge stored for the Init it replies to, then produces the
// HandshakeConfirm. Returns ErrAuthenticationFailed on signature mismatch,
// and ErrUnknownChallenge for a replayed/unknown message-id — callers
// distinguish by checking the returned error with errors.Is against
// ErrAuthenticationFailed vs. ErrUnknownChallenge.
func (e *Engine) HandleResponse(msg *wire.Envelope) (wire.Envelope, error) {
	if msg.HandshakeResponse == nil {
		return wire.Envelope{}, fmt.Errorf("handshake: HandleResponse called on non-response envelope")
	}
	body := msg.HandshakeResponse

	e.mu.Lock()
	stored, ok := e.pending[body.InReplyTo]
	if !ok {
		e.mu.Unlock()
		return wire.Envelope{}, ErrUnknownChallenge
	}
	delete(e.pending, body.InReplyTo)
	e.mu.Unlock()

	expected := append(append([]byte(nil), []byte(msg.SenderID)...), stored...)
	if !signature.Verify(expected, body.Signature, body.PublicKey) {
		return wire.Envelope{}, ErrAuthenticationFailed
	}

	e.mu.Lock()
	e.peerPublicKey = append([]byte(nil), body.PublicKey...)
	e.mu.Unlock()

	sig, err := e.sig.Sign(body.Challenge)
	if err != nil {
		return wire.Envelope{}, fmt.Errorf("sign handshake confirm: %w", err)
	}

	confirm, err := wire.NewHandshakeConfirm(e.localID, wire.HandshakeConfirmBody{
		Signature: sig,
		InReplyTo: msg.MessageID,
	})
	if err != nil {
		return wire.Envelope{}, err
	}
	return confirm, nil
}

// VerifyConfirm verifies the final handshake message against the
// challenge stored for the Response it confirms. On success the stored
// entry is erased and true is returned; a missing entry (e.g. replay)
// returns false without error.
func (e *Engine) VerifyConfirm(msg *wire.Envelope) bool {
	if msg.HandshakeConfirm == nil {
		return false
	}
	body := msg.HandshakeConfirm

	e.mu.Lock()
	stored, ok := e.pending[body.InReplyTo]
	peerKey := e.peerPublicKey
	e.mu.Unlock()
	if !ok {
		return false
	}

	if !signature.Verify(stored, body.Signature, peerKey) {
		return false
	}

	e.mu.Lock()
	delete(e.pending, body.InReplyTo)
	e.mu.Unlock()
	return true
}

// PeerPublicKey returns the public key learned from the peer during the
// handshake, or nil if none has been learned yet.
func (e *Engine) PeerPublicKey() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]byte(nil), e.peerPublicKey...)
}

// ErrUnknownChallenge indicates the referenced pending-challenge entry was
// not found — a replay or an out-of-order message, not an authentication
// failure.
var ErrUnknownChallenge = fmt.Errorf("handshake: no pending challenge for message")
