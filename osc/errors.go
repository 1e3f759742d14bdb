package osc

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
)

// Errors reported by the codec, the framer and the dispatcher. Callers
// match them with errors.Is; the returned errors carry extra context.
var (
	// ErrMalformedArgument is returned when a single argument cannot be
	// encoded or decoded.
	ErrMalformedArgument = errors.New("osc: malformed argument")

	// ErrMalformedMessage is returned when a message is structurally invalid.
	ErrMalformedMessage = errors.New("osc: malformed message")

	// ErrTruncatedBundle is returned when a bundle element length overruns
	// the bundle.
	ErrTruncatedBundle = errors.New("osc: truncated bundle")

	// ErrBundleTooDeep is returned when bundles nest deeper than the
	// configured limit.
	ErrBundleTooDeep = errors.New("osc: bundle nested too deep")

	// ErrMalformedPacket is returned by the UDP receive path for a datagram
	// that failed to decode. The datagram is dropped.
	ErrMalformedPacket = errors.New("osc: malformed packet")

	// ErrIncompleteFrame is returned when a stream ends inside a frame or
	// the framing is violated. The connection is unusable afterwards.
	ErrIncompleteFrame = errors.New("osc: incomplete frame")

	// ErrFrameTooLarge is returned when a frame exceeds MaxFrameSize.
	ErrFrameTooLarge = errors.New("osc: frame too large")

	// ErrNeedMoreData is returned by Unframer.Next when no complete unit is
	// buffered yet. It is not a failure.
	ErrNeedMoreData = errors.New("osc: need more data")

	// ErrInvalidPattern is returned when an address pattern cannot be compiled.
	ErrInvalidPattern = errors.New("osc: invalid address pattern")

	// ErrNotRegistered is returned by UnregisterPattern for an unknown pattern.
	ErrNotRegistered = errors.New("osc: pattern not registered")
)

// PacketError reports a datagram that could not be decoded.
type PacketError struct {
	Addr net.Addr
	Err  error
}

func (e *PacketError) Error() string {
	if e.Addr == nil {
		return fmt.Sprintf("%v: %v", ErrMalformedPacket, e.Err)
	}
	return fmt.Sprintf("%v from %s: %v", ErrMalformedPacket, e.Addr, e.Err)
}

// Unwrap makes both ErrMalformedPacket and the decode cause visible to errors.Is.
func (e *PacketError) Unwrap() []error {
	return []error{ErrMalformedPacket, e.Err}
}
