package osc

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"

	"github.com/pkg/errors"
)

const (
	bit32Size = 4
	bit64Size = 8
)

////
// De/Encoding functions
////

// AppendArgument appends the wire encoding of a single argument to b. Only
// the payload is written; the type tag belongs to the type tag string. The
// payload of an Array is the concatenation of its elements.
func AppendArgument(b []byte, arg interface{}) ([]byte, error) {
	return appendArgument(b, arg, 0)
}

func appendArgument(b []byte, arg interface{}, depth int) ([]byte, error) {
	switch t := arg.(type) {
	default:
		return nil, errors.Wrapf(ErrMalformedArgument, "unsupported type %T", t)

	case bool, nil, Infinitum:
		return b, nil
	case int32:
		return binary.BigEndian.AppendUint32(b, uint32(t)), nil
	case float32:
		return binary.BigEndian.AppendUint32(b, math.Float32bits(t)), nil
	case int64:
		return binary.BigEndian.AppendUint64(b, uint64(t)), nil
	case float64:
		return binary.BigEndian.AppendUint64(b, math.Float64bits(t)), nil
	case Timetag:
		return binary.BigEndian.AppendUint64(b, uint64(t)), nil
	case Char:
		return binary.BigEndian.AppendUint32(b, uint32(t)), nil
	case RGBA:
		return append(b, t.R, t.G, t.B, t.A), nil
	case MIDI:
		return append(b, t.Port, t.Status, t.Data1, t.Data2), nil
	case string:
		if strings.IndexByte(t, 0) >= 0 {
			return nil, errors.Wrap(ErrMalformedArgument, "string contains NUL")
		}
		return appendPaddedString(b, t), nil
	case Symbol:
		if strings.IndexByte(string(t), 0) >= 0 {
			return nil, errors.Wrap(ErrMalformedArgument, "symbol contains NUL")
		}
		return appendPaddedString(b, string(t)), nil
	case []byte:
		if int64(len(t)) > math.MaxInt32 {
			return nil, errors.Wrapf(ErrMalformedArgument, "blob too large: %d", len(t))
		}
		return appendBlob(b, t), nil
	case Array:
		if depth >= DefaultMaxDepth {
			return nil, errors.Wrap(ErrMalformedArgument, "arrays nested too deep")
		}
		var err error
		for _, elem := range t {
			if b, err = appendArgument(b, elem, depth+1); err != nil {
				return nil, err
			}
		}
		return b, nil
	}
}

// ParseArgument decodes the argument with the given tag starting at
// data[offset:]. It returns the value and the offset just past it. Array
// brackets are structural and are handled by the message decoder.
func ParseArgument(tag TypeTag, data []byte, offset int) (interface{}, int, error) {
	if offset < 0 || offset > len(data) {
		return nil, offset, errors.Wrapf(ErrMalformedArgument, "offset %d out of range", offset)
	}
	rest := data[offset:]

	switch tag {
	default:
		return nil, offset, errors.Wrapf(ErrMalformedArgument, "unsupported typetag: %q", byte(tag))

	case TypeTrue:
		return true, offset, nil
	case TypeFalse:
		return false, offset, nil
	case TypeNil:
		return nil, offset, nil
	case TypeInfinitum:
		return Infinitum{}, offset, nil

	case TypeInt32, TypeFloat32, TypeChar, TypeRGBA, TypeMIDI:
		if len(rest) < bit32Size {
			return nil, offset, errors.Wrapf(ErrMalformedArgument, "%q needs %d bytes, have %d", byte(tag), bit32Size, len(rest))
		}
		v := binary.BigEndian.Uint32(rest)
		offset += bit32Size
		switch tag {
		case TypeInt32:
			return int32(v), offset, nil
		case TypeFloat32:
			return math.Float32frombits(v), offset, nil
		case TypeChar:
			if v > math.MaxUint8 {
				return nil, offset - bit32Size, errors.Wrapf(ErrMalformedArgument, "char 0x%x out of range", v)
			}
			return Char(v), offset, nil
		case TypeRGBA:
			return RGBA{rest[0], rest[1], rest[2], rest[3]}, offset, nil
		default:
			return MIDI{rest[0], rest[1], rest[2], rest[3]}, offset, nil
		}

	case TypeInt64, TypeFloat64, TypeTimeTag:
		if len(rest) < bit64Size {
			return nil, offset, errors.Wrapf(ErrMalformedArgument, "%q needs %d bytes, have %d", byte(tag), bit64Size, len(rest))
		}
		v := binary.BigEndian.Uint64(rest)
		offset += bit64Size
		switch tag {
		case TypeInt64:
			return int64(v), offset, nil
		case TypeFloat64:
			return math.Float64frombits(v), offset, nil
		default:
			return Timetag(v), offset, nil
		}

	case TypeString, TypeSymbol:
		str, n, err := parsePaddedString(rest)
		if err != nil {
			return nil, offset, err
		}
		if tag == TypeSymbol {
			return Symbol(str), offset + n, nil
		}
		return str, offset + n, nil

	case TypeBlob:
		blob, n, err := parseBlob(rest)
		if err != nil {
			return nil, offset, err
		}
		return blob, offset + n, nil
	}
}

// parseBlob parses an OSC blob from the blob byte array. Padding bytes are
// consumed but not returned. The returned slice is a copy.
func parseBlob(data []byte) ([]byte, int, error) {
	if len(data) < bit32Size {
		return nil, 0, errors.Wrap(ErrMalformedArgument, "blob size missing")
	}
	// First, get the length
	blobLen := int64(int32(binary.BigEndian.Uint32(data)))
	if blobLen < 0 {
		return nil, 0, errors.Wrapf(ErrMalformedArgument, "negative blob length %d", blobLen)
	}
	n := bit32Size + int(blobLen)
	n += padBytesNeeded(n)
	if len(data) < n {
		return nil, 0, errors.Wrapf(ErrMalformedArgument, "blob length %d exceeds remaining %d bytes", blobLen, len(data)-bit32Size)
	}

	blob := make([]byte, blobLen)
	copy(blob, data[bit32Size:])
	return blob, n, nil
}

// appendBlob appends data as an OSC blob. If the length of data isn't
// 32-bit aligned, padding bytes will be added.
func appendBlob(b []byte, data []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(data)))
	b = append(b, data...)
	return appendPadding(b, bit32Size+len(data))
}

// parsePaddedString reads a padded string from the given slice and returns
// the string and the number of bytes read, padding included.
func parsePaddedString(data []byte) (string, int, error) {
	pos := bytes.IndexByte(data, 0)
	if pos == -1 {
		return "", 0, errors.Wrap(ErrMalformedArgument, "string is not NUL terminated")
	}

	n := pos + 1
	n += padBytesNeeded(n)
	if n > len(data) {
		return "", 0, errors.Wrap(ErrMalformedArgument, "string padding is truncated")
	}

	return string(data[:pos]), n, nil
}

// appendPaddedString appends str, its NUL terminator and the padding bytes.
func appendPaddedString(b []byte, str string) []byte {
	b = append(b, str...)
	b = append(b, 0)
	return appendPadding(b, len(str)+1)
}

var zeros [bit32Size]byte

// appendPadding appends the zero bytes needed to align an element of
// elementLen bytes.
func appendPadding(b []byte, elementLen int) []byte {
	return append(b, zeros[:padBytesNeeded(elementLen)]...)
}

// padBytesNeeded determines how many bytes are needed to fill up to the next 4
// byte length.
func padBytesNeeded(elementLen int) int {
	return (4 - (elementLen % 4)) % 4
}
