// Package labyrinth implements a peer-to-peer mesh node: authenticated,
// post-quantum-signed peer sessions and reliable, multi-hop delivery of
// byte payloads over libp2p.
package labyrinth

import (
	"errors"
	"fmt"

	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/identity"
)

// ErrorCode identifies the type of error for programmatic handling. The
// seven codes correspond 1:1 with the sentinel errors declared below.
type ErrorCode int

const (
	// ErrCodeUnknown indicates an unknown or unclassified error.
	ErrCodeUnknown ErrorCode = iota

	// ErrCodeTransport indicates a libp2p dial, accept, or stream failure.
	ErrCodeTransport

	// ErrCodeAuthentication indicates a handshake signature failed
	// verification, or the handshake otherwise failed to authenticate a
	// peer.
	ErrCodeAuthentication

	// ErrCodeProtocol indicates a malformed envelope or a message that
	// violates the wire protocol.
	ErrCodeProtocol

	// ErrCodeNoRoute indicates no authenticated session or route exists
	// to the target peer.
	ErrCodeNoRoute

	// ErrCodeChecksum indicates a received chunk failed its
	// checksum.
	ErrCodeChecksum

	// ErrCodeTimeout indicates an operation did not complete within its
	// deadline.
	ErrCodeTimeout

	// ErrCodeConfiguration indicates the node configuration is invalid.
	ErrCodeConfiguration
)

// String returns a human-readable name for the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeUnknown:
		return "Unknown"
	case ErrCodeTransport:
		return "Transport"
	case ErrCodeAuthentication:
		return "Authentication"
	case ErrCodeProtocol:
		return "Protocol"
	case ErrCodeNoRoute:
		return "NoRoute"
	case ErrCodeChecksum:
		return "Checksum"
	case ErrCodeTimeout:
		return "Timeout"
	case ErrCodeConfiguration:
		return "Configuration"
	default:
		return fmt.Sprintf("ErrorCode(%d)", c)
	}
}

// sentinelForCode returns the package sentinel matching code, so that
// errors.Is(err, ErrTransport) holds for any *Error built with
// ErrCodeTransport.
func sentinelForCode(code ErrorCode) error {
	switch code {
	case ErrCodeTransport:
		return ErrTransport
	case ErrCodeAuthentication:
		return ErrAuthentication
	case ErrCodeProtocol:
		return ErrProtocol
	case ErrCodeNoRoute:
		return ErrNoRoute
	case ErrCodeChecksum:
		return ErrChecksum
	case ErrCodeTimeout:
		return ErrTimeout
	case ErrCodeConfiguration:
		return ErrConfiguration
	default:
		return nil
	}
}

// Error represents a node error with rich context. It provides
// structured information for programmatic error handling.
type Error struct {
	// Code identifies the type of error.
	Code ErrorCode

	// Message is a human-readable description of the error.
	Message string

	// PeerID is the peer associated with the error, if any.
	PeerID identity.NodeID

	// Cause is the underlying error, if any.
	Cause error

	// Retriable indicates whether the operation can be retried.
	Retriable bool
}

// Error returns a human-readable error message.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("labyrinth: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("labyrinth: %s", e.Message)
}

// Unwrap returns the underlying error, falling back to the code's
// sentinel so errors.Is matches against the taxonomy even without an
// explicit Cause.
func (e *Error) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return sentinelForCode(e.Code)
}

// Is reports whether target matches this error. Two errors are
// considered equal if they have the same error code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// IsRetriable returns true if err is a node Error with Retriable set.
func IsRetriable(err error) bool {
	var nErr *Error
	if errors.As(err, &nErr) {
		return nErr.Retriable
	}
	return false
}

// IsPermanent returns true if err indicates a permanent failure that
// should not be retried.
func IsPermanent(err error) bool {
	var nErr *Error
	if errors.As(err, &nErr) {
		switch nErr.Code {
		case ErrCodeAuthentication, ErrCodeConfiguration, ErrCodeChecksum:
			return true
		}
	}
	return false
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorWithCause creates a new Error with the given code, message,
// and cause.
func NewErrorWithCause(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// NewPeerError creates a new Error associated with a specific peer.
func NewPeerError(code ErrorCode, message string, peerID identity.NodeID) *Error {
	return &Error{Code: code, Message: message, PeerID: peerID}
}

// Sentinel errors corresponding 1:1 to the taxonomy's error codes.
var (
	// ErrTransport indicates a libp2p dial, accept, or stream failure.
	ErrTransport = errors.New("transport failure")

	// ErrAuthentication indicates a handshake failed to authenticate a
	// peer, whether by signature mismatch, unknown challenge, or replay.
	ErrAuthentication = errors.New("authentication failed")

	// ErrProtocol indicates a malformed envelope or a protocol
	// violation.
	ErrProtocol = errors.New("protocol violation")

	// ErrNoRoute indicates no authenticated session or route exists to
	// the target peer.
	ErrNoRoute = errors.New("no route to peer")

	// ErrChecksum indicates a received chunk failed its checksum.
	ErrChecksum = errors.New("checksum mismatch")

	// ErrTimeout indicates an operation did not complete within its
	// deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrConfiguration indicates the node configuration is invalid.
	ErrConfiguration = errors.New("invalid configuration")
)

// Sentinel errors for node lifecycle.
var (
	// ErrNodeNotStarted indicates the node has not been started.
	ErrNodeNotStarted = errors.New("node not started")

	// ErrNodeAlreadyStarted indicates the node is already running.
	ErrNodeAlreadyStarted = errors.New("node already started")

	// ErrNodeStopped indicates the node has been stopped.
	ErrNodeStopped = errors.New("node stopped")
)
