package osc

import (
	"bytes"
	"encoding"

	"github.com/pkg/errors"
)

// DefaultMaxDepth is the bundle nesting limit used when none is configured.
// The outermost bundle is at depth 1. The same limit bounds array nesting.
const DefaultMaxDepth = 64

// MaxPacketSize is the largest datagram the server reads.
const MaxPacketSize = 65535

// Packet is the interface for Message and Bundle. It is implemented by
// *Message and *Bundle only.
type Packet interface {
	encoding.BinaryMarshaler

	// appendBinary appends the encoding of the packet at the given bundle
	// nesting depth.
	appendBinary(b []byte, depth int) ([]byte, error)
}

// Decoder decodes packets with a configurable bundle depth limit. The zero
// value is ready to use.
type Decoder struct {
	// MaxDepth bounds bundle nesting. Zero means DefaultMaxDepth.
	MaxDepth int
}

// Decode parses a complete OSC packet.
func (d Decoder) Decode(data []byte) (Packet, error) {
	maxDepth := d.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return parsePacket(data, 0, maxDepth)
}

// ParsePacket parses the given msg and returns an OSC Message or Bundle.
// The returned packet does not reference msg.
func ParsePacket(msg []byte) (Packet, error) {
	return Decoder{}.Decode(msg)
}

// parsePacket dispatches on the first bytes of data. depth is the nesting
// level of the enclosing bundle, 0 at top level.
func parsePacket(data []byte, depth, maxDepth int) (Packet, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrMalformedMessage, "empty packet")
	}

	switch {
	case data[0] == '/':
		msg := &Message{}
		if err := msg.UnmarshalBinary(data); err != nil {
			return nil, err
		}
		return msg, nil

	case isBundle(data):
		b := &Bundle{}
		if err := b.unmarshalBinary(data, depth+1, maxDepth); err != nil {
			return nil, err
		}
		return b, nil

	default:
		return nil, errors.Wrapf(ErrMalformedMessage, "packet starts with %q, want '/' or %s", data[0], bundleTagString)
	}
}

// isBundle reports whether data starts with the padded bundle marker.
func isBundle(data []byte) bool {
	return bytes.HasPrefix(data, bundleMarker)
}
