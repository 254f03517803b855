// Package otel provides OpenTelemetry tracing integration for Nexus
// Cipher Labyrinth nodes.
//
// Traces give visibility into session handshakes, envelope routing,
// and chunked delivery across the mesh.
//
// # Span Hierarchy
//
// Tracer provides start helpers for the following spans. No component
// of the node calls them; a span exists only where calling code starts
// it:
//
//	labyrinth.connect
//	├── labyrinth.dial                (outbound sessions)
//	└── labyrinth.handshake
//	    ├── labyrinth.sign            (challenge/response signing)
//	    └── labyrinth.verify          (signature verification)
//
//	labyrinth.send
//	└── labyrinth.fragment            (chunking across the delivery layer)
//
//	labyrinth.receive
//	└── labyrinth.reassemble
//
//	labyrinth.route
//
// # Attributes
//
// Common span attributes include:
//   - peer.id: the remote peer's mesh node id
//   - chunk.group: the delivery group id for a fragmented transfer
//   - message.size: size of the payload being sent or received
//   - connection.direction: "inbound" or "outbound"
//   - handshake.result: "success", "failure", or "timeout"
//
// # Example Usage
//
//	import (
//	    "github.com/sagacious-satadru/Nexus-Cipher-Labyrinth"
//	    labyrinthotel "github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/otel"
//	    "go.opentelemetry.io/otel"
//	)
//
//	func main() {
//	    tp := otel.GetTracerProvider()
//	    tracer := labyrinthotel.NewTracer(tp)
//	    _ = tracer // no node component takes a Tracer; call its Start* helpers directly
//	}
package otel

import (
	"context"

	"github.com/libp2p/go-libp2p/core/peer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// TracerName is the name used for the OpenTelemetry tracer.
	TracerName = "github.com/sagacious-satadru/Nexus-Cipher-Labyrinth"

	// Span names
	SpanConnect     = "labyrinth.connect"
	SpanDial        = "labyrinth.dial"
	SpanHandshake   = "labyrinth.handshake"
	SpanSign        = "labyrinth.sign"
	SpanVerify      = "labyrinth.verify"
	SpanRoute       = "labyrinth.route"
	SpanSend        = "labyrinth.send"
	SpanFragment    = "labyrinth.fragment"
	SpanReceive     = "labyrinth.receive"
	SpanReassemble  = "labyrinth.reassemble"
	SpanDisconnect  = "labyrinth.disconnect"

	// Attribute keys
	AttrPeerID              = "peer.id"
	AttrChunkGroup          = "chunk.group"
	AttrMessageSize         = "message.size"
	AttrConnectionDirection = "connection.direction"
	AttrHandshakeResult     = "handshake.result"
	AttrErrorMessage        = "error.message"
)

// Tracer provides OpenTelemetry tracing for node operations. It wraps
// an OpenTelemetry TracerProvider and creates spans for the handshake,
// routing, and delivery lifecycle.
//
// Tracer is safe for concurrent use.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new Tracer using the given TracerProvider. If
// provider is nil, a no-op tracer is used.
func NewTracer(provider trace.TracerProvider) *Tracer {
	if provider == nil {
		return &Tracer{tracer: noop.NewTracerProvider().Tracer(TracerName)}
	}
	return &Tracer{tracer: provider.Tracer(TracerName)}
}

// StartConnect starts a span for a session connection attempt.
func (t *Tracer) StartConnect(ctx context.Context, peerID peer.ID, direction string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanConnect,
		trace.WithAttributes(
			attribute.String(AttrPeerID, peerID.String()),
			attribute.String(AttrConnectionDirection, direction),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartDial starts a span for dialing a peer's transport address.
func (t *Tracer) StartDial(ctx context.Context, peerID peer.ID) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanDial,
		trace.WithAttributes(
			attribute.String(AttrPeerID, peerID.String()),
		),
	)
}

// StartHandshake starts a span for the challenge/response handshake.
func (t *Tracer) StartHandshake(ctx context.Context, peerID peer.ID) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanHandshake,
		trace.WithAttributes(
			attribute.String(AttrPeerID, peerID.String()),
		),
	)
}

// StartSign starts a span for signing a handshake message.
func (t *Tracer) StartSign(ctx context.Context, peerID peer.ID) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanSign,
		trace.WithAttributes(
			attribute.String(AttrPeerID, peerID.String()),
		),
	)
}

// StartVerify starts a span for verifying a handshake signature.
func (t *Tracer) StartVerify(ctx context.Context, peerID peer.ID) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanVerify,
		trace.WithAttributes(
			attribute.String(AttrPeerID, peerID.String()),
		),
	)
}

// StartRoute starts a span for forwarding an envelope toward its next
// hop.
func (t *Tracer) StartRoute(ctx context.Context, peerID peer.ID) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanRoute,
		trace.WithAttributes(
			attribute.String(AttrPeerID, peerID.String()),
		),
	)
}

// StartSend starts a span for sending a payload to a peer.
func (t *Tracer) StartSend(ctx context.Context, peerID peer.ID, groupID string, size int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanSend,
		trace.WithAttributes(
			attribute.String(AttrPeerID, peerID.String()),
			attribute.String(AttrChunkGroup, groupID),
			attribute.Int(AttrMessageSize, size),
		),
		trace.WithSpanKind(trace.SpanKindProducer),
	)
}

// StartFragment starts a span for chunking a payload into fragments.
func (t *Tracer) StartFragment(ctx context.Context, groupID string, size int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanFragment,
		trace.WithAttributes(
			attribute.String(AttrChunkGroup, groupID),
			attribute.Int(AttrMessageSize, size),
		),
	)
}

// StartReceive starts a span for receiving a payload from a peer.
func (t *Tracer) StartReceive(ctx context.Context, peerID peer.ID, groupID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanReceive,
		trace.WithAttributes(
			attribute.String(AttrPeerID, peerID.String()),
			attribute.String(AttrChunkGroup, groupID),
		),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
}

// StartReassemble starts a span for reassembling fragments into a
// payload.
func (t *Tracer) StartReassemble(ctx context.Context, groupID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanReassemble,
		trace.WithAttributes(
			attribute.String(AttrChunkGroup, groupID),
		),
	)
}

// StartDisconnect starts a span for disconnecting a peer.
func (t *Tracer) StartDisconnect(ctx context.Context, peerID peer.ID) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanDisconnect,
		trace.WithAttributes(
			attribute.String(AttrPeerID, peerID.String()),
		),
	)
}

// RecordHandshakeResult records the result of a handshake on the given
// span.
func (t *Tracer) RecordHandshakeResult(span trace.Span, result string, err error) {
	span.SetAttributes(attribute.String(AttrHandshakeResult, result))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

// RecordError records an error on the given span.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// EndSpan ends a span, optionally recording an error.
func (t *Tracer) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// NopTracer wraps the real Tracer with a noop provider. Used when
// tracing is disabled.
type NopTracer struct {
	*Tracer
}

// NewNopTracer creates a new no-op tracer.
func NewNopTracer() *NopTracer {
	return &NopTracer{
		Tracer: NewTracer(nil),
	}
}
