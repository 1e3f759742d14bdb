package osc

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

const (
	bundleTagString = "#bundle"

	// bundleHeaderSize is the marker plus the time tag.
	bundleHeaderSize = 16
)

// bundleMarker is the padded "#bundle" OSC-string every bundle starts with.
var bundleMarker = []byte(bundleTagString + "\x00")

// Bundle represents an OSC bundle. It consists of the OSC-string "#bundle"
// followed by an OSC Time Tag, followed by zero or more OSC bundle/message
// elements. The OSC-timetag is a 64-bit fixed point time tag. See
// http://opensoundcontrol.org/spec-1_0.html for more information.
type Bundle struct {
	Timetag  Timetag
	Elements []Packet
}

// Verify that Bundle implements the Packet interface.
var _ Packet = (*Bundle)(nil)

// NewBundle returns an OSC Bundle with the given time tag and elements.
func NewBundle(timetag Timetag, elements ...Packet) *Bundle {
	return &Bundle{Timetag: timetag, Elements: elements}
}

// NewBundleWithTime returns an OSC Bundle scheduled at time.
func NewBundleWithTime(time time.Time, elements ...Packet) *Bundle {
	return NewBundle(NewTimetagFromTime(time), elements...)
}

// Append appends an OSC bundle or OSC message to the bundle.
func (b *Bundle) Append(pck Packet) error {
	switch t := pck.(type) {
	default:
		return errors.Errorf("unsupported OSC packet type %T: only Bundle and Message are supported", pck)

	case *Bundle:
		if t == nil {
			return errors.New("cannot append a nil bundle")
		}
	case *Message:
		if t == nil {
			return errors.New("cannot append a nil message")
		}
	}

	b.Elements = append(b.Elements, pck)
	return nil
}

// MarshalBinary serializes the OSC bundle to a byte array with the following
// format:
// 1. Bundle string: '#bundle'
// 2. OSC timetag
// 3. Length of first OSC bundle element
// 4. First bundle element
// 5. Length of n OSC bundle element
// 6. n bundle element
func (b *Bundle) MarshalBinary() ([]byte, error) {
	return b.appendBinary(nil, 1)
}

// appendBinary implements Packet. depth is the nesting level of b, starting
// at 1 for the outermost bundle.
func (b *Bundle) appendBinary(data []byte, depth int) ([]byte, error) {
	if b == nil {
		return nil, errors.New("bundle is nil")
	}
	if depth > DefaultMaxDepth {
		return nil, errors.Wrapf(ErrBundleTooDeep, "depth %d exceeds %d", depth, DefaultMaxDepth)
	}

	data = append(data, bundleMarker...)
	data = binary.BigEndian.AppendUint64(data, uint64(b.Timetag))

	for i, elem := range b.Elements {
		if elem == nil {
			return nil, errors.Errorf("bundle element %d is nil", i)
		}

		// Reserve the size, write the element, then patch the size
		sizeAt := len(data)
		data = append(data, zeros[:]...)

		var err error
		if data, err = elem.appendBinary(data, depth+1); err != nil {
			return nil, err
		}

		binary.BigEndian.PutUint32(data[sizeAt:], uint32(len(data)-sizeAt-bit32Size))
	}

	return data, nil
}

// NewBundleFromData returns a new OSC bundle created from the parsed data.
func NewBundleFromData(data []byte) (b *Bundle, err error) {
	b = &Bundle{}
	if err = b.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return b, nil
}

// EncodeBundle encodes a bundle with the given time tag and elements.
func EncodeBundle(timetag Timetag, elements ...Packet) ([]byte, error) {
	return NewBundle(timetag, elements...).MarshalBinary()
}

// DecodeBundle decodes an OSC bundle using DefaultMaxDepth.
func DecodeBundle(data []byte) (*Bundle, error) {
	return NewBundleFromData(data)
}

// UnmarshalBinary implements the encoding.BinaryUnmarshaler interface.
func (b *Bundle) UnmarshalBinary(data []byte) error {
	return b.unmarshalBinary(data, 1, DefaultMaxDepth)
}

// unmarshalBinary decodes a bundle at nesting level depth.
func (b *Bundle) unmarshalBinary(data []byte, depth, maxDepth int) error {
	if depth > maxDepth {
		return errors.Wrapf(ErrBundleTooDeep, "depth %d exceeds %d", depth, maxDepth)
	}

	if !isBundle(data) {
		return errors.Wrap(ErrMalformedMessage, "invalid bundle start tag")
	}

	if len(data) < bundleHeaderSize {
		return errors.Wrapf(ErrTruncatedBundle, "bundle is too short: %d bytes", len(data))
	}

	// Read the timetag
	timetag := Timetag(binary.BigEndian.Uint64(data[len(bundleMarker):]))
	data = data[bundleHeaderSize:]

	var elements []Packet
	// Read until the end of the buffer
	for len(data) > 0 {
		if len(data) < bit32Size {
			return errors.Wrapf(ErrTruncatedBundle, "%d stray bytes where an element size was expected", len(data))
		}

		// Read the size of the bundle element
		length := int64(int32(binary.BigEndian.Uint32(data)))
		data = data[bit32Size:]
		if length < 0 {
			return errors.Wrapf(ErrTruncatedBundle, "negative element length %d", length)
		}
		if length > int64(len(data)) {
			return errors.Wrapf(ErrTruncatedBundle, "element length %d exceeds remaining %d bytes", length, len(data))
		}

		p, err := parsePacket(data[:length], depth, maxDepth)
		if err != nil {
			return err
		}
		data = data[length:]
		elements = append(elements, p)
	}

	b.Timetag = timetag
	b.Elements = elements
	return nil
}
