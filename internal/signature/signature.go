// Package signature backs the external lattice-signature primitive named
// by the node: keypair generation, signing, and verification. The backing
// algorithm is Dilithium mode 3 (part of the ML-DSA family), which
// supplies at least 128-bit post-quantum security. Key and signature blobs
// are opaque outside this package.
package signature

import (
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/cloudflare/circl/sign/dilithium"
)

var mode = dilithium.Mode3

// Service holds a node's signing keypair and exposes sign/verify
// operations against it. It is safe for concurrent use; the private key
// is read under the service's read lock.
type Service struct {
	mu      sync.RWMutex
	pub     dilithium.PublicKey
	priv    dilithium.PrivateKey
	pubRaw  []byte
	closed  bool
}

// NewService generates a fresh Dilithium mode-3 keypair.
func NewService() (*Service, error) {
	pub, priv, err := mode.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate signature keypair: %w", err)
	}
	return &Service{pub: pub, priv: priv, pubRaw: pub.Bytes()}, nil
}

// NewServiceFromSeed deterministically derives a keypair from a 32-byte
// seed, for tests and for re-loading a persisted identity.
func NewServiceFromSeed(seed []byte) (*Service, error) {
	if len(seed) != mode.SeedSize() {
		return nil, fmt.Errorf("signature: seed must be %d bytes, got %d", mode.SeedSize(), len(seed))
	}
	pub, priv := mode.NewKeyFromSeed(seed)
	return &Service{pub: pub, priv: priv, pubRaw: pub.Bytes()}, nil
}

// PublicKey returns a copy of this service's public key bytes.
func (s *Service) PublicKey() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]byte, len(s.pubRaw))
	copy(out, s.pubRaw)
	return out
}

// Sign produces a signature over data using the local private key.
func (s *Service) Sign(data []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("signature: service closed")
	}
	sig := mode.Sign(s.priv, data)
	return sig, nil
}

// Verify checks a signature over data against an arbitrary public key,
// which need not belong to this service. It never panics on malformed
// key or signature bytes; malformed input simply fails verification.
func Verify(data, sig, pubKey []byte) bool {
	if len(pubKey) != mode.PublicKeySize() || len(sig) != mode.SignatureSize() {
		return false
	}
	pub, err := unpackPublicKey(pubKey)
	if err != nil {
		return false
	}
	return mode.Verify(pub, data, sig)
}

// unpackPublicKey recovers from the panic mode.PublicKeyFromBytes raises on
// malformed input, turning it into a verification failure instead of a
// crash.
func unpackPublicKey(raw []byte) (pub dilithium.PublicKey, err error) {
	defer func() {
		if r := recover(); r != nil {
			pub, err = nil, fmt.Errorf("signature: malformed public key: %v", r)
		}
	}()
	pub = mode.PublicKeyFromBytes(raw)
	return pub, nil
}

// Close releases this service's private key. The service must not be used
// after Close.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.priv = nil
	s.closed = true
}
