package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// MaxFrameSize bounds a single encoded envelope to guard against a
// malicious or corrupt length prefix driving an unbounded allocation.
const MaxFrameSize = 16 * 1024 * 1024

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: build cbor encode mode: %v", err))
	}
	decMode, err = cbor.DecOptions{MaxArrayElements: 1 << 20}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wire: build cbor decode mode: %v", err))
	}
}

// Marshal encodes an envelope as CBOR.
func Marshal(env *Envelope) ([]byte, error) {
	return encMode.Marshal(env)
}

// Unmarshal decodes an envelope from CBOR.
func Unmarshal(data []byte, env *Envelope) error {
	return decMode.Unmarshal(data, env)
}

// Writer writes length-delimited CBOR-encoded envelopes to an
// io.Writer — a 4-byte big-endian length prefix followed by the CBOR
// body, matching the delimited-frame convention used for every stream in
// this node.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w for delimited envelope writes.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteEnvelope encodes and writes one envelope, then flushes.
func (fw *Writer) WriteEnvelope(env *Envelope) error {
	data, err := Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if len(data) > MaxFrameSize {
		return fmt.Errorf("encoded envelope exceeds max frame size: %d bytes", len(data))
	}
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(data)))
	if _, err := fw.w.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := fw.w.Write(data); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return fw.w.Flush()
}

// Reader reads length-delimited CBOR-encoded envelopes from an
// io.Reader.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r for delimited envelope reads.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadEnvelope reads and decodes the next envelope, blocking until a full
// frame is available or the underlying reader returns an error (including
// io.EOF on a cleanly closed stream).
func (fr *Reader) ReadEnvelope() (*Envelope, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(fr.r, lenPrefix[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(lenPrefix[:])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("frame length %d exceeds max frame size", size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(fr.r, buf); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	env := &Envelope{}
	if err := Unmarshal(buf, env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}
