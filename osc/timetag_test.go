package osc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImmediateTimetag(t *testing.T) {
	tt := NewImmediateTimetag()
	assert.Equal(t, Immediate, tt)
	assert.True(t, tt.IsImmediate())
	assert.Zero(t, tt.ExpiresIn())
}

func TestNewTimetag(t *testing.T) {
	tt := NewTimetag()
	assert.False(t, tt.IsImmediate())
	assert.Zero(t, tt.ExpiresIn())
}

func TestNewTimetagFromTime(t *testing.T) {
	tt := NewTimetagFromTime(time.Now().Add(time.Second))
	assert.InDelta(t, float64(time.Second), float64(tt.ExpiresIn()), float64(100*time.Millisecond))
}

func TestTimetag_ExpiresIn(t *testing.T) {
	tests := []struct {
		name string
		t    Timetag
		want time.Duration
	}{
		{"one_second", NewTimetagFromTime(time.Now().Add(time.Second)), time.Second},
		{"immediate", NewImmediateTimetag(), 0},
		{"zero", Timetag(0), 0},
		{"late", NewTimetagFromTime(time.Now().Add(-time.Second)), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.t.ExpiresIn()
			assert.InDelta(t, float64(tt.want), float64(got), float64(100*time.Millisecond))
		})
	}
}

func TestTimetag_Parts(t *testing.T) {
	tt := NewTimetagFromParts(3913056000, 0x80000000)
	assert.Equal(t, uint32(3913056000), tt.SecondsSinceEpoch())
	assert.Equal(t, uint32(0x80000000), tt.FractionalSecond())
	assert.Equal(t, uint64(3913056000)<<32|0x80000000, tt.TimeTag())

	b, err := tt.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xe9, 0x3c, 0x7f, 0x00, 0x80, 0, 0, 0}, b)
}

func TestTimetag_Time(t *testing.T) {
	// 2024-01-01T00:00:00.5Z
	tt := NewTimetagFromParts(3913056000, 0x80000000)
	want := time.Date(2024, 1, 1, 0, 0, 0, 500000000, time.UTC)
	assert.True(t, want.Equal(tt.Time()), "got %v", tt.Time())
}

func TestTimetag_SetTime(t *testing.T) {
	var tt Timetag
	now := time.Date(2030, 6, 1, 12, 30, 15, 123456789, time.UTC)
	tt.SetTime(now)
	assert.True(t, now.Equal(tt.Time()), "got %v", tt.Time())
}

func TestTimetag_RoundTrip(t *testing.T) {
	base := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
	for _, ns := range []int{0, 1, 999, 1000, 499999999, 500000000, 999999999} {
		want := base.Add(time.Duration(ns))
		got := timetagToTime(timeToTimetag(want))
		assert.True(t, want.Equal(got), "%d ns: got %v", ns, got)
	}
}
