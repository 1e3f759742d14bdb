package osc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var temp = &Message{Address: "/composition/layers/1/clips/1/transport/position", Arguments: []interface{}{0.123456789, "hello world"}}
var msg, _ = temp.MarshalBinary()

func BenchmarkParsePacket(b *testing.B) {
	b.ResetTimer()
	b.ReportAllocs()
	var p Packet
	for n := 0; n < b.N; n++ {
		p, _ = ParsePacket(msg)
	}
	result = p
}

func TestParsePacket(t *testing.T) {
	tests := []testCase{}
	tests = append(tests, messageTestCases...)
	tests = append(tests, bundleTestCases...)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePacket(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.obj, got)
		})
	}
}

func TestParsePacketErrors(t *testing.T) {
	for _, data := range [][]byte{
		nil,
		raw("x", nulls(3)),
		raw("#bundl", nulls(2)),
		raw("#bundle"),
	} {
		_, err := ParsePacket(data)
		assert.True(t, errors.Is(err, ErrMalformedMessage), "ParsePacket(%q) = %v", data, err)
	}
}

func TestDecoder_ZeroValue(t *testing.T) {
	data, err := nest(DefaultMaxDepth, NewMessage("/x")).MarshalBinary()
	require.NoError(t, err)

	var d Decoder
	_, err = d.Decode(data)
	assert.NoError(t, err)
}

func FuzzParsePacket(f *testing.F) {
	for _, tc := range bundleTestCases {
		f.Add(tc.raw)
	}
	for _, tc := range messageTestCases {
		f.Add(tc.raw)
	}
	f.Fuzz(func(t *testing.T, data []byte) {
		packet, err := ParsePacket(data)
		if err != nil {
			return
		}

		dataNew, err := packet.MarshalBinary()
		if err != nil {
			t.Fatalf("MarshalBinary(): err != nil on parsed packet %#v: %v", packet, err)
		}

		packet, err = ParsePacket(dataNew)
		if err != nil {
			t.Fatalf("ParsePacket(): err != nil on marshaled packet %#v: %v", packet, err)
		}

		dataNew2, err := packet.MarshalBinary()
		if err != nil {
			t.Fatalf("MarshalBinary(): err != nil on double-parsed packet %#v: %v", packet, err)
		}

		assert.Equal(t, dataNew, dataNew2, "packet: %v", packet)
	})
}
