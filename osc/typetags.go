package osc

import (
	"fmt"

	"github.com/pkg/errors"
)

// TypeTag is a single character of an OSC type tag string.
type TypeTag byte

const (
	TypeInt32      TypeTag = 'i'
	TypeFloat32    TypeTag = 'f'
	TypeString     TypeTag = 's'
	TypeBlob       TypeTag = 'b'
	TypeInt64      TypeTag = 'h'
	TypeFloat64    TypeTag = 'd'
	TypeTimeTag    TypeTag = 't'
	TypeSymbol     TypeTag = 'S'
	TypeChar       TypeTag = 'c'
	TypeRGBA       TypeTag = 'r'
	TypeMIDI       TypeTag = 'm'
	TypeTrue       TypeTag = 'T'
	TypeFalse      TypeTag = 'F'
	TypeNil        TypeTag = 'N'
	TypeInfinitum  TypeTag = 'I'
	TypeArrayStart TypeTag = '['
	TypeArrayEnd   TypeTag = ']'
	TypeInvalid    TypeTag = 0
)

// Symbol is an OSC-string that the receiver treats as a symbol rather than text.
type Symbol string

// Char is a single ASCII character, sent as a 32-bit integer.
type Char byte

// RGBA is a 32-bit color.
type RGBA struct {
	R, G, B, A uint8
}

// MIDI is a 4 byte MIDI message. Bytes from MSB to LSB are port id, status
// byte, data1 and data2.
type MIDI struct {
	Port, Status, Data1, Data2 uint8
}

// Infinitum is the impulse (also called bang) argument. It has no payload.
type Infinitum struct{}

// Array is a nested argument list, tagged with '[' and ']'.
type Array []interface{}

func (c Char) String() string { return string(rune(c)) }

func (c RGBA) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// ToTypeTag returns the OSC TypeTag for the given argument.
// Returns TypeInvalid if the argument type is unsupported. An Array maps to
// TypeArrayStart; use TypeTags to get its full tag sequence.
func ToTypeTag(arg interface{}) TypeTag {
	switch t := arg.(type) {
	case bool:
		if t {
			return TypeTrue
		}
		return TypeFalse
	case nil:
		return TypeNil
	case int32:
		return TypeInt32
	case float32:
		return TypeFloat32
	case string:
		return TypeString
	case Symbol:
		return TypeSymbol
	case []byte:
		return TypeBlob
	case int64:
		return TypeInt64
	case float64:
		return TypeFloat64
	case Timetag:
		return TypeTimeTag
	case Char:
		return TypeChar
	case RGBA:
		return TypeRGBA
	case MIDI:
		return TypeMIDI
	case Infinitum:
		return TypeInfinitum
	case Array:
		return TypeArrayStart
	default:
		return TypeInvalid
	}
}

// TypeTags returns the OSC type tag string, including the leading ',', for
// the given arguments.
func TypeTags(args ...interface{}) (string, error) {
	b, err := appendTypeTags(make([]byte, 0, len(args)+1), args)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// appendTypeTags appends ',' followed by one tag group per argument.
func appendTypeTags(b []byte, args []interface{}) ([]byte, error) {
	b = append(b, ',')
	return appendTags(b, args, 0)
}

func appendTags(b []byte, args []interface{}, depth int) ([]byte, error) {
	if depth > DefaultMaxDepth {
		return nil, errors.Wrap(ErrMalformedArgument, "arrays nested too deep")
	}
	for _, arg := range args {
		tag := ToTypeTag(arg)
		switch tag {
		case TypeInvalid:
			return nil, errors.Wrapf(ErrMalformedArgument, "unsupported type %T", arg)
		case TypeArrayStart:
			var err error
			b = append(b, byte(TypeArrayStart))
			if b, err = appendTags(b, arg.(Array), depth+1); err != nil {
				return nil, err
			}
			b = append(b, byte(TypeArrayEnd))
		default:
			b = append(b, byte(tag))
		}
	}
	return b, nil
}
