package osc

import (
	"strings"
)

const zero = string(byte(0))

// nulls returns a string of `i` nulls.
func nulls(i int) string {
	return strings.Repeat(zero, i)
}

// raw concatenates wire fragments.
func raw(parts ...string) []byte {
	return []byte(strings.Join(parts, ""))
}

type testCase struct {
	name    string
	raw     []byte
	obj     Packet
	wantErr bool
}

var messageTestCases = []testCase{
	{
		name: "no_args",
		raw:  raw("/a", nulls(2), ",", nulls(3)),
		obj:  &Message{Address: "/a"},
	},
	{
		name: "sync",
		raw:  raw("/SYNC", nulls(3), ",i", nulls(2), "\x00\x00\x00\x01"),
		obj:  NewMessage("/SYNC", int32(1)),
	},
	{
		name: "ifsb",
		raw: raw("/foo", nulls(4), ",ifsb", nulls(3),
			"\x00\x00\x03\xe8",
			"\x3f\xc0\x00\x00",
			"hello", nulls(3),
			"\x00\x00\x00\x03\x01\x02\x03", nulls(1)),
		obj: NewMessage("/foo", int32(1000), float32(1.5), "hello", []byte{1, 2, 3}),
	},
	{
		name: "all_types",
		raw: raw("/all", nulls(4), ",hdtTFNIScrm", nulls(4),
			"\xff\xff\xff\xff\xff\xff\xff\xff",
			"\x3f\xe0\x00\x00\x00\x00\x00\x00",
			"\x00\x00\x00\x00\x00\x00\x00\x01",
			"sym", nulls(1),
			"\x00\x00\x00\x41",
			"\x01\x02\x03\x04",
			"\x00\x90\x3c\x7f"),
		obj: NewMessage("/all", int64(-1), float64(0.5), Immediate, true, false, nil,
			Infinitum{}, Symbol("sym"), Char('A'), RGBA{1, 2, 3, 4}, MIDI{0, 0x90, 60, 127}),
	},
	{
		name: "array",
		raw:  raw("/arr", nulls(4), ",i[s[]]T", nulls(4), "\x00\x00\x00\x01", "x", nulls(3)),
		obj:  NewMessage("/arr", int32(1), Array{"x", Array{}}, true),
	},
	{
		name: "empty_string_and_blob",
		raw:  raw("/e", nulls(2), ",sb", nulls(1), nulls(4), nulls(4)),
		obj:  NewMessage("/e", "", []byte{}),
	},
}

var bundleTestCases = []testCase{
	{
		name: "empty",
		raw:  raw("#bundle", nulls(1), nulls(7), "\x01"),
		obj:  NewBundle(Immediate),
	},
	{
		name: "one_message",
		raw:  raw("#bundle", nulls(1), nulls(7), "\x01", "\x00\x00\x00\x08", "/a", nulls(2), ",", nulls(3)),
		obj:  NewBundle(Immediate, &Message{Address: "/a"}),
	},
	{
		name: "nested",
		raw: raw("#bundle", nulls(1), "\x00\x00\x00\x01\x00\x00\x00\x02",
			"\x00\x00\x00\x1c",
			"#bundle", nulls(1), nulls(7), "\x01", "\x00\x00\x00\x08", "/a", nulls(2), ",", nulls(3),
			"\x00\x00\x00\x0c",
			"/b", nulls(2), ",i", nulls(2), "\x00\x00\x00\x07"),
		obj: NewBundle(NewTimetagFromParts(1, 2),
			NewBundle(Immediate, &Message{Address: "/a"}),
			NewMessage("/b", int32(7))),
	},
}
