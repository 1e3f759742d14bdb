package osc

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundle_MarshalBinary(t *testing.T) {
	for _, tt := range bundleTestCases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.obj.MarshalBinary()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.raw, got)
		})
	}
}

func TestBundle_UnmarshalBinary(t *testing.T) {
	for _, tt := range bundleTestCases {
		t.Run(tt.name, func(t *testing.T) {
			m := new(Bundle)
			err := m.UnmarshalBinary(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.obj, m)
		})
	}
}

func TestBundle_Append(t *testing.T) {
	b := NewBundleWithTime(time.Unix(1700000000, 0))
	require.NoError(t, b.Append(NewMessage("/a")))
	require.NoError(t, b.Append(NewBundle(Immediate)))

	var nilMsg *Message
	assert.Error(t, b.Append(nilMsg))
	var nilBundle *Bundle
	assert.Error(t, b.Append(nilBundle))
	assert.Error(t, b.Append(nil))
	assert.Len(t, b.Elements, 2)
	assert.True(t, time.Unix(1700000000, 0).Equal(b.Timetag.Time()))
}

func TestBundle_ThreeLevels(t *testing.T) {
	inner := NewBundle(Immediate, NewMessage("/c", "deep"))
	middle := NewBundle(Immediate, NewMessage("/b", int32(2)), inner)
	outer := NewBundle(NewTimetagFromParts(10, 20), NewMessage("/a1"), middle, NewMessage("/a2"))

	data, err := outer.MarshalBinary()
	require.NoError(t, err)

	got, err := DecodeBundle(data)
	require.NoError(t, err)
	assert.Equal(t, outer, got)

	// element order is preserved
	require.Len(t, got.Elements, 3)
	assert.Equal(t, "/a1", got.Elements[0].(*Message).Address)
	assert.Equal(t, "/a2", got.Elements[2].(*Message).Address)
	assert.Equal(t, "deep", got.Elements[1].(*Bundle).Elements[1].(*Bundle).Elements[0].(*Message).Arguments[0])
}

func TestBundle_UnmarshalBinaryErrors(t *testing.T) {
	header := raw("#bundle", nulls(1), nulls(7), "\x01")
	msg := raw("/a", nulls(2), ",", nulls(3))

	declared := func(n uint32, rest []byte) []byte {
		b := append([]byte(nil), header...)
		b = binary.BigEndian.AppendUint32(b, n)
		return append(b, rest...)
	}

	tests := []struct {
		name string
		raw  []byte
		want error
	}{
		{"not_a_bundle", msg, ErrMalformedMessage},
		{"short_header", raw("#bundle", nulls(1), nulls(4)), ErrTruncatedBundle},
		{"overrun", declared(100, make([]byte, 50)), ErrTruncatedBundle},
		{"negative_length", declared(0xfffffff8, msg), ErrTruncatedBundle},
		{"stray_bytes", append(declared(8, msg), 0, 0), ErrTruncatedBundle},
		{"bad_element", declared(4, raw("xxxx")), ErrMalformedMessage},
		{"empty_element", declared(0, nil), ErrMalformedMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBundleFromData(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

// nest wraps msg in depth bundles.
func nest(depth int, msg *Message) *Bundle {
	b := NewBundle(Immediate, msg)
	for i := 1; i < depth; i++ {
		b = NewBundle(Immediate, b)
	}
	return b
}

func TestBundle_Depth(t *testing.T) {
	data, err := nest(3, NewMessage("/x")).MarshalBinary()
	require.NoError(t, err)

	_, err = Decoder{MaxDepth: 3}.Decode(data)
	assert.NoError(t, err)

	_, err = Decoder{MaxDepth: 2}.Decode(data)
	assert.True(t, errors.Is(err, ErrBundleTooDeep), "got %v", err)

	data, err = nest(DefaultMaxDepth, NewMessage("/x")).MarshalBinary()
	require.NoError(t, err)
	_, err = DecodeBundle(data)
	assert.NoError(t, err)

	_, err = nest(DefaultMaxDepth+1, NewMessage("/x")).MarshalBinary()
	assert.True(t, errors.Is(err, ErrBundleTooDeep), "got %v", err)
}

func TestBundle_CyclicEncode(t *testing.T) {
	b := NewBundle(Immediate)
	b.Elements = append(b.Elements, b)

	_, err := b.MarshalBinary()
	assert.True(t, errors.Is(err, ErrBundleTooDeep), "got %v", err)
}

func TestBundle_MarshalBinaryErrors(t *testing.T) {
	var b *Bundle
	_, err := b.MarshalBinary()
	assert.Error(t, err)

	_, err = EncodeBundle(Immediate, NewMessage("no-slash"))
	assert.True(t, errors.Is(err, ErrMalformedMessage))

	_, err = NewBundle(Immediate, nil).MarshalBinary()
	assert.Error(t, err)
}
