package transport

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/wire"
)

// IncomingEnvelope pairs a decoded envelope with the session it arrived
// on, for dispatch by the receiving subsystem.
type IncomingEnvelope struct {
	PeerID peer.ID
	Env    *wire.Envelope
}

// EnvelopeDroppedFunc is invoked when an inbound envelope is dropped
// because the delivery channel was full.
type EnvelopeDroppedFunc func(peerID peer.ID)

// Stream provides an envelope-oriented interface over a libp2p stream.
// Reads are handled by a background goroutine that forwards decoded
// envelopes to the incoming channel, non-blocking with drop-on-full.
// Writes are serialized with a mutex. Stream is safe for concurrent use.
type Stream struct {
	peerID peer.ID
	raw    network.Stream

	reader  *wire.Reader
	writer  *wire.Writer
	writeMu sync.Mutex

	incoming  chan<- IncomingEnvelope
	onDropped EnvelopeDroppedFunc

	ctx    context.Context
	cancel context.CancelFunc

	closeMu  sync.Mutex
	closed   bool
	closeErr error
}

// NewStream wraps a libp2p stream and starts its read loop.
func NewStream(ctx context.Context, peerID peer.ID, raw network.Stream, incoming chan<- IncomingEnvelope, onDropped EnvelopeDroppedFunc) *Stream {
	sctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		peerID:    peerID,
		raw:       raw,
		reader:    wire.NewReader(raw),
		writer:    wire.NewWriter(raw),
		incoming:  incoming,
		onDropped: onDropped,
		ctx:       sctx,
		cancel:    cancel,
	}
	go s.readLoop()
	return s
}

// Send writes one envelope to the stream.
func (s *Stream) Send(env *wire.Envelope) error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return fmt.Errorf("transport: stream closed")
	}
	s.closeMu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.writer.WriteEnvelope(env)
}

func (s *Stream) readLoop() {
	defer s.markClosed(nil)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		env, err := s.reader.ReadEnvelope()
		if err != nil {
			if err != io.EOF {
				s.markClosed(fmt.Errorf("transport: read error: %w", err))
			}
			return
		}

		msg := IncomingEnvelope{PeerID: s.peerID, Env: env}
		select {
		case s.incoming <- msg:
		case <-s.ctx.Done():
			return
		default:
			if s.onDropped != nil {
				s.onDropped(s.peerID)
			}
		}
	}
}

// Close closes the stream and stops the read loop. Safe to call more than
// once and from concurrent goroutines.
func (s *Stream) Close() error {
	s.closeMu.Lock()
	if s.closed {
		err := s.closeErr
		s.closeMu.Unlock()
		return err
	}
	s.closed = true
	s.closeMu.Unlock()

	s.cancel()
	err := s.raw.Close()

	s.closeMu.Lock()
	s.closeErr = err
	s.closeMu.Unlock()
	return err
}

func (s *Stream) markClosed(err error) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if !s.closed {
		s.closed = true
		s.closeErr = err
	}
}

// IsClosed reports whether the stream has been closed.
func (s *Stream) IsClosed() bool {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return s.closed
}

// PeerID returns the remote peer's transport-level identity.
func (s *Stream) PeerID() peer.ID {
	return s.peerID
}
