package osc

import (
	"encoding/binary"
	"time"
)

const (
	// Immediate is the special time tag (63 zero bits followed by a one)
	// meaning "process immediately".
	Immediate Timetag = 1

	// secondsFrom1900To1970 is the offset between the NTP and Unix epochs.
	secondsFrom1900To1970 = 2208988800

	nanosPerSecond = 1000000000
)

// Timetag represents an OSC Time Tag.
// An OSC Time Tag is defined as follows:
// Time tags are represented by a 64 bit fixed point number. The first 32 bits
// specify the number of seconds since midnight on January 1, 1900, and the
// last 32 bits specify fractional parts of a second to a precision of about
// 200 picoseconds. This is the representation used by Internet NTP timestamps.
type Timetag uint64

// NewTimetag returns a time tag for the current time.
func NewTimetag() Timetag {
	return NewTimetagFromTime(time.Now())
}

// NewImmediateTimetag returns the "immediately" time tag.
func NewImmediateTimetag() Timetag {
	return Immediate
}

// NewTimetagFromTime returns a new OSC time tag object from a time.Time.
func NewTimetagFromTime(timeStamp time.Time) Timetag {
	return timeToTimetag(timeStamp)
}

// NewTimetagFromParts builds a time tag from its seconds and fraction halves.
func NewTimetagFromParts(seconds, fraction uint32) Timetag {
	return Timetag(uint64(seconds)<<32 | uint64(fraction))
}

// Time returns the time.
func (t Timetag) Time() time.Time {
	return timetagToTime(t)
}

// IsImmediate reports whether t is the "immediately" sentinel.
func (t Timetag) IsImmediate() bool {
	return t == Immediate
}

// FractionalSecond returns the last 32 bits of the OSC time tag. Specifies the
// fractional part of a second.
func (t Timetag) FractionalSecond() uint32 {
	return uint32(t)
}

// SecondsSinceEpoch returns the first 32 bits (the number of seconds since the
// midnight 1900) from the OSC time tag.
func (t Timetag) SecondsSinceEpoch() uint32 {
	return uint32(t >> 32)
}

// TimeTag returns the time tag value
func (t Timetag) TimeTag() uint64 {
	return uint64(t)
}

// MarshalBinary converts the OSC time tag to a byte array.
func (t Timetag) MarshalBinary() ([]byte, error) {
	b := make([]byte, bit64Size)
	binary.BigEndian.PutUint64(b, uint64(t))
	return b, nil
}

// SetTime sets the value of the OSC time tag.
func (t *Timetag) SetTime(time time.Time) {
	*t = timeToTimetag(time)
}

// ExpiresIn calculates the duration until the current time is the same as
// the value of the time tag. It returns zero if the value of the time tag
// is immediate or in the past.
func (t Timetag) ExpiresIn() time.Duration {
	if t <= Immediate {
		return 0
	}

	d := time.Until(timetagToTime(t))
	if d <= 0 {
		return 0
	}

	return d
}

// timeToTimetag converts the given time to an OSC time tag.
func timeToTimetag(t time.Time) Timetag {
	seconds := uint64(t.Unix()+secondsFrom1900To1970) << 32
	fraction := uint64(t.Nanosecond()) << 32 / nanosPerSecond
	return Timetag(seconds | fraction)
}

// timetagToTime converts the given timetag to a time object.
func timetagToTime(timetag Timetag) time.Time {
	seconds := int64(timetag.SecondsSinceEpoch()) - secondsFrom1900To1970
	nanos := (uint64(timetag.FractionalSecond())*nanosPerSecond + 1<<31) >> 32
	return time.Unix(seconds, int64(nanos))
}
