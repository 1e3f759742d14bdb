package osc

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// Message represents a single OSC message. An OSC message consists of an OSC
// address pattern and zero or more arguments.
type Message struct {
	Address   string
	Arguments []interface{}
}

// Verify that Messages implements the Packet interface.
var _ Packet = (*Message)(nil)

// NewMessage returns a new Message. The address parameter is the OSC address.
func NewMessage(addr string, args ...interface{}) *Message {
	return &Message{Address: addr, Arguments: args}
}

// Append appends the given arguments to the arguments list. Nothing is
// appended if any argument has an unsupported type.
func (m *Message) Append(args ...interface{}) error {
	if _, err := appendTags(nil, args, 0); err != nil {
		return err
	}
	m.Arguments = append(m.Arguments, args...)
	return nil
}

// Clear clears the OSC address and all arguments.
func (m *Message) Clear() {
	m.Address = ""
	m.Arguments = m.Arguments[:0]
}

// CountArguments returns the number of arguments.
func (m *Message) CountArguments() int {
	return len(m.Arguments)
}

// Equals reports whether m and other have the same address and arguments.
// Nil and empty argument lists, blobs and arrays compare equal.
func (m *Message) Equals(other *Message) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.Address == other.Address && equalArguments(m.Arguments, other.Arguments)
}

func equalArguments(a, b []interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		switch x := a[i].(type) {
		case []byte:
			y, ok := b[i].([]byte)
			if !ok || !bytes.Equal(x, y) {
				return false
			}
		case Array:
			y, ok := b[i].(Array)
			if !ok || !equalArguments(x, y) {
				return false
			}
		default:
			if !reflect.DeepEqual(a[i], b[i]) {
				return false
			}
		}
	}
	return true
}

// Match returns true, if the OSC address pattern of the OSC Message matches the given
// address. The match is case sensitive!
func (m *Message) Match(addr string) bool {
	p, err := compilePattern(m.Address)
	if err != nil {
		return false
	}
	return p.match(addr)
}

// TypeTags returns the type tag string.
func (m *Message) TypeTags() (string, error) {
	if m == nil {
		return "", errors.New("TypeTags: message is nil")
	}
	return TypeTags(m.Arguments...)
}

// String implements the fmt.Stringer interface.
func (m *Message) String() string {
	if m == nil {
		return ""
	}

	tags, _ := m.TypeTags()

	var strBuf strings.Builder
	strBuf.WriteString(m.Address)
	if len(tags) == 0 {
		return strBuf.String()
	}

	strBuf.WriteByte(' ')
	strBuf.WriteString(tags)
	writeArguments(&strBuf, m.Arguments)

	return strBuf.String()
}

func writeArguments(strBuf *strings.Builder, args []interface{}) {
	for _, arg := range args {
		switch arg := arg.(type) {
		case bool, int32, int64, float32, float64, string, Symbol, Char, RGBA:
			fmt.Fprintf(strBuf, " %v", arg)

		case nil:
			strBuf.WriteString(" Nil")

		case Infinitum:
			strBuf.WriteString(" Infinitum")

		case []byte:
			fmt.Fprintf(strBuf, " blob(%d)", len(arg))

		case MIDI:
			fmt.Fprintf(strBuf, " midi(%d %d %d %d)", arg.Port, arg.Status, arg.Data1, arg.Data2)

		case Timetag:
			fmt.Fprintf(strBuf, " %d", arg.TimeTag())

		case Array:
			strBuf.WriteString(" [")
			writeArguments(strBuf, arg)
			strBuf.WriteString(" ]")
		}
	}
}

// MarshalBinary serializes the OSC message to a byte buffer. The byte buffer
// has the following format:
// 1. OSC Address Pattern
// 2. OSC Type Tag String
// 3. OSC Arguments
func (m *Message) MarshalBinary() ([]byte, error) {
	return m.appendBinary(nil, 0)
}

// appendBinary implements Packet. Messages do not nest, so depth is unused.
func (m *Message) appendBinary(b []byte, _ int) ([]byte, error) {
	if m == nil {
		return nil, errors.New("message is nil")
	}
	if err := validateAddress(m.Address); err != nil {
		return nil, err
	}
	b = appendPaddedString(b, m.Address)

	// Write the type tag string
	start := len(b)
	b, err := appendTypeTags(b, m.Arguments)
	if err != nil {
		return nil, err
	}
	b = append(b, 0)
	b = appendPadding(b, len(b)-start)

	// Write the payload (OSC arguments)
	for i, arg := range m.Arguments {
		if b, err = appendArgument(b, arg, 0); err != nil {
			return nil, errors.Wrapf(err, "argument %d", i)
		}
	}

	return b, nil
}

// validateAddress checks an address before it is written to the wire.
func validateAddress(addr string) error {
	switch {
	case !strings.HasPrefix(addr, "/"):
		return errors.Wrapf(ErrMalformedMessage, "address %q does not start with '/'", addr)
	case strings.IndexByte(addr, 0) >= 0:
		return errors.Wrapf(ErrMalformedMessage, "address %q contains NUL", addr)
	case strings.Contains(addr, bundleTagString):
		return errors.Wrapf(ErrMalformedMessage, "address %q contains %s", addr, bundleTagString)
	}
	return nil
}

// NewMessageFromData returns a new OSC message created from the parsed data.
func NewMessageFromData(data []byte) (msg *Message, err error) {
	msg = &Message{}
	if err = msg.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return msg, nil
}

// EncodeMessage encodes a message with the given address and arguments.
func EncodeMessage(addr string, args ...interface{}) ([]byte, error) {
	return NewMessage(addr, args...).MarshalBinary()
}

// DecodeMessage decodes a single OSC message.
func DecodeMessage(data []byte) (*Message, error) {
	return NewMessageFromData(data)
}

// UnmarshalBinary implements the encoding.BinaryUnmarshaler. The decoded
// message does not reference data.
func (m *Message) UnmarshalBinary(data []byte) error {
	if len(data) == 0 || data[0] != '/' {
		return errors.Wrap(ErrMalformedMessage, "data not a valid OSC message")
	}

	if (len(data) % bit32Size) != 0 {
		return errors.Wrapf(ErrMalformedMessage, "length %d isn't 32-bit aligned", len(data))
	}

	// First, read the OSC address
	addr, n, err := parsePaddedString(data)
	if err != nil {
		return errors.Wrapf(ErrMalformedMessage, "address: %v", err)
	}
	if strings.Contains(addr, bundleTagString) {
		return errors.Wrapf(ErrMalformedMessage, "address %q contains %s", addr, bundleTagString)
	}

	args, err := parseArguments(data, n)
	if err != nil {
		return err
	}

	m.Address = addr
	m.Arguments = args
	return nil
}

// parseArguments reads the type tag string at data[offset:] and every
// argument it declares. A message without any type tag string has no
// arguments.
func parseArguments(data []byte, offset int) ([]interface{}, error) {
	if offset == len(data) {
		return nil, nil
	}

	typetags, n, err := parsePaddedString(data[offset:])
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedMessage, "type tags: %v", err)
	}
	// If the typetag doesn't start with ',', it's not valid
	if len(typetags) == 0 || typetags[0] != ',' {
		return nil, errors.Wrapf(ErrMalformedMessage, "unsupported typetag string: %q", typetags)
	}
	offset += n

	// stack[0] holds the message arguments, the rest are open arrays.
	stack := [][]interface{}{nil}
	for i := 1; i < len(typetags); i++ {
		top := len(stack) - 1
		switch tag := TypeTag(typetags[i]); tag {
		case TypeArrayStart:
			if top >= DefaultMaxDepth {
				return nil, errors.Wrap(ErrMalformedArgument, "arrays nested too deep")
			}
			stack = append(stack, []interface{}{})

		case TypeArrayEnd:
			if top == 0 {
				return nil, errors.Wrapf(ErrMalformedArgument, "unbalanced ']' in %q", typetags)
			}
			arr := Array(stack[top])
			stack = stack[:top]
			stack[top-1] = append(stack[top-1], arr)

		default:
			var arg interface{}
			if arg, offset, err = ParseArgument(tag, data, offset); err != nil {
				return nil, errors.Wrapf(err, "argument %d", i-1)
			}
			stack[top] = append(stack[top], arg)
		}
	}

	if len(stack) != 1 {
		return nil, errors.Wrapf(ErrMalformedArgument, "unterminated '[' in %q", typetags)
	}
	if offset != len(data) {
		return nil, errors.Wrapf(ErrMalformedMessage, "%d bytes left after the last argument", len(data)-offset)
	}

	return stack[0], nil
}
