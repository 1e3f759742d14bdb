package osc

import (
	"encoding/binary"
	"io"
	"math"
	"net"
	"strings"

	"github.com/pkg/errors"
)

// Framing selects how packets are delimited on a transport. It is chosen
// once per socket or connection.
type Framing int

const (
	// FramingNone sends one packet per datagram (UDP).
	FramingNone Framing = iota
	// FramingOSC10 prefixes every packet with its 4 byte big-endian length
	// (OSC 1.0 over TCP).
	FramingOSC10
	// FramingOSC11 delimits packets with SLIP (RFC 1055) double-END
	// encoding (OSC 1.1 over TCP).
	FramingOSC11
)

const (
	slipEnd    = 0xC0
	slipEsc    = 0xDB
	slipEscEnd = 0xDC
	slipEscEsc = 0xDD
)

// DefaultMaxFrameSize bounds the size of a single stream frame.
const DefaultMaxFrameSize = 16 << 20

func (f Framing) String() string {
	switch f {
	case FramingNone:
		return "none"
	case FramingOSC10:
		return "osc1.0"
	case FramingOSC11:
		return "osc1.1"
	default:
		return "invalid"
	}
}

// ParseFraming parses the names accepted in configuration files.
func ParseFraming(s string) (Framing, error) {
	switch strings.ToLower(s) {
	case "none", "udp", "":
		return FramingNone, nil
	case "osc1.0", "osc10", "1.0", "length":
		return FramingOSC10, nil
	case "osc1.1", "osc11", "1.1", "slip":
		return FramingOSC11, nil
	}
	return FramingNone, errors.Errorf("unknown framing %q", s)
}

// Frame returns data framed for the transport.
func Frame(f Framing, data []byte) ([]byte, error) {
	return AppendFrame(nil, f, data)
}

// AppendFrame appends data framed for the transport to b.
func AppendFrame(b []byte, f Framing, data []byte) ([]byte, error) {
	switch f {
	case FramingNone:
		return append(b, data...), nil

	case FramingOSC10:
		if uint64(len(data)) > math.MaxUint32 {
			return nil, errors.Wrapf(ErrFrameTooLarge, "%d bytes", len(data))
		}
		b = binary.BigEndian.AppendUint32(b, uint32(len(data)))
		return append(b, data...), nil

	case FramingOSC11:
		b = append(b, slipEnd)
		for _, c := range data {
			switch c {
			case slipEnd:
				b = append(b, slipEsc, slipEscEnd)
			case slipEsc:
				b = append(b, slipEsc, slipEscEsc)
			default:
				b = append(b, c)
			}
		}
		return append(b, slipEnd), nil

	default:
		return nil, errors.Errorf("unknown framing %d", f)
	}
}

// Unframer recovers packets from a stream fed in arbitrary pieces. A unit
// may be split anywhere, including between a SLIP escape byte and the byte
// it escapes. After a framing error every call fails with that error.
type Unframer struct {
	framing Framing
	maxSize int

	buf   []byte   // undecoded input
	frame []byte   // SLIP: unescaped bytes of the current unit
	esc   bool     // SLIP: the previous byte was ESC
	units [][]byte // FramingNone: pending datagrams
	err   error
}

// NewUnframer returns an Unframer for f limited to DefaultMaxFrameSize.
func NewUnframer(f Framing) *Unframer {
	return &Unframer{framing: f, maxSize: DefaultMaxFrameSize}
}

// SetMaxFrameSize changes the frame size limit. Values <= 0 restore the default.
func (u *Unframer) SetMaxFrameSize(n int) {
	if n <= 0 {
		n = DefaultMaxFrameSize
	}
	u.maxSize = n
}

// Feed buffers p. With FramingNone every call is one unit. p is copied.
func (u *Unframer) Feed(p []byte) {
	if u.framing == FramingNone {
		u.units = append(u.units, append([]byte(nil), p...))
		return
	}
	u.buf = append(u.buf, p...)
}

// Next returns the next complete unit, or ErrNeedMoreData when the buffered
// input does not contain one yet.
func (u *Unframer) Next() ([]byte, error) {
	if u.err != nil {
		return nil, u.err
	}

	switch u.framing {
	case FramingNone:
		if len(u.units) == 0 {
			return nil, ErrNeedMoreData
		}
		unit := u.units[0]
		u.units[0] = nil
		u.units = u.units[1:]
		return unit, nil

	case FramingOSC10:
		return u.nextLengthPrefixed()

	case FramingOSC11:
		return u.nextSLIP()

	default:
		u.err = errors.Errorf("unknown framing %d", u.framing)
		return nil, u.err
	}
}

func (u *Unframer) nextLengthPrefixed() ([]byte, error) {
	if len(u.buf) < bit32Size {
		return nil, ErrNeedMoreData
	}
	size := binary.BigEndian.Uint32(u.buf)
	if uint64(size) > uint64(u.maxSize) {
		u.err = errors.Wrapf(ErrFrameTooLarge, "declared length %d exceeds %d", size, u.maxSize)
		return nil, u.err
	}
	end := bit32Size + int(size)
	if len(u.buf) < end {
		return nil, ErrNeedMoreData
	}

	unit := make([]byte, size)
	copy(unit, u.buf[bit32Size:end])
	u.buf = u.buf[:copy(u.buf, u.buf[end:])]
	return unit, nil
}

func (u *Unframer) nextSLIP() ([]byte, error) {
	for i, c := range u.buf {
		if u.esc {
			u.esc = false
			switch c {
			case slipEscEnd:
				u.frame = append(u.frame, slipEnd)
			case slipEscEsc:
				u.frame = append(u.frame, slipEsc)
			default:
				u.err = errors.Wrapf(ErrIncompleteFrame, "invalid SLIP escape 0x%02x", c)
				return nil, u.err
			}
		} else {
			switch c {
			case slipEsc:
				u.esc = true
			case slipEnd:
				if len(u.frame) == 0 {
					// empty frame between two ENDs
					continue
				}
				unit := u.frame
				u.frame = nil
				u.buf = u.buf[:copy(u.buf, u.buf[i+1:])]
				return unit, nil
			default:
				u.frame = append(u.frame, c)
			}
		}
		if len(u.frame) > u.maxSize {
			u.err = errors.Wrapf(ErrFrameTooLarge, "frame exceeds %d bytes", u.maxSize)
			return nil, u.err
		}
	}
	u.buf = u.buf[:0]
	return nil, ErrNeedMoreData
}

// Buffered reports whether part of a unit is pending.
func (u *Unframer) Buffered() bool {
	return len(u.buf) > 0 || len(u.frame) > 0 || u.esc || len(u.units) > 0
}

// Close reports ErrIncompleteFrame if the stream ended inside a unit.
// Drain Next before calling it.
func (u *Unframer) Close() error {
	if u.err != nil {
		return u.err
	}
	if u.framing != FramingNone && u.Buffered() {
		u.err = errors.Wrap(ErrIncompleteFrame, "stream ended inside a frame")
		return u.err
	}
	return nil
}

// FrameReader reads complete units from a stream. It returns io.EOF when
// the stream ends on a frame boundary and ErrIncompleteFrame when it ends
// inside one. Once it returns an error the stream is unusable, except for
// read timeouts and datagram read errors, which are reported once.
type FrameReader struct {
	r         io.Reader
	u         *Unframer
	buf       []byte
	readErr   error // from r, reported once the buffered units are drained
	transient error // like readErr but cleared once reported
	err       error
}

// NewFrameReader returns a FrameReader reading from r.
func NewFrameReader(r io.Reader, f Framing) *FrameReader {
	return &FrameReader{
		r:   r,
		u:   NewUnframer(f),
		buf: make([]byte, MaxPacketSize),
	}
}

// SetMaxFrameSize changes the frame size limit.
func (fr *FrameReader) SetMaxFrameSize(n int) {
	fr.u.SetMaxFrameSize(n)
}

// ReadFrame blocks until a complete unit is available.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	for {
		if fr.err != nil {
			return nil, fr.err
		}

		unit, err := fr.u.Next()
		if err == nil {
			return unit, nil
		}
		if !errors.Is(err, ErrNeedMoreData) {
			fr.err = err
			continue
		}

		if fr.transient != nil {
			err := fr.transient
			fr.transient = nil
			return nil, err
		}
		if fr.readErr != nil {
			fr.err = fr.readErr
			if fr.readErr == io.EOF {
				if cerr := fr.u.Close(); cerr != nil {
					fr.err = cerr
				}
			}
			continue
		}

		n, err := fr.r.Read(fr.buf)
		if n > 0 {
			fr.u.Feed(fr.buf[:n])
		}
		if err != nil && fr.recoverable(err) {
			fr.transient = err
			continue
		}
		fr.readErr = err
	}
}

// recoverable reports whether a read error leaves the reader usable. A
// timeout keeps any partial unit buffered. Datagrams are independent.
func (fr *FrameReader) recoverable(err error) bool {
	if err == io.EOF {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return fr.u.framing == FramingNone
}
