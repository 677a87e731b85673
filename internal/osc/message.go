// Package osc decodes Open Sound Control messages received as raw UDP
// datagrams and renders them in the JSON form relayed to WebSocket clients.
package osc

import (
	"strings"
)

// Message is a decoded OSC message: an address pattern and its positional
// arguments. Args mirror the type-tag string one to one.
type Message struct {
	Address string     // address pattern, always starts with '/'
	Args    []Argument // arguments in type-tag order
}

// NewMessage builds a message from an address and arguments.
func NewMessage(address string, args ...Argument) *Message {
	if args == nil {
		args = []Argument{}
	}
	return &Message{Address: address, Args: args}
}

// TypeTags returns the OSC type-tag string of the message, leading comma included.
func (m *Message) TypeTags() string {
	var sb strings.Builder
	sb.Grow(len(m.Args) + 1)
	sb.WriteByte(',')
	for _, arg := range m.Args {
		sb.WriteByte(arg.Tag())
	}
	return sb.String()
}

// Argument is one typed OSC argument.
// Implemented by Int32, Float32, String, Blob, TimeTag, Bool, Nil, Impulse,
// Int64, Float64, Char, Color and MIDI.
type Argument interface {
	// Tag returns the type-tag character of the argument.
	Tag() byte
}

type (
	Int32   int32
	Float32 float32
	String  string
	Blob    []byte
	Int64   int64
	Float64 float64
	Char    rune
	// Bool covers both the 'T' and 'F' tags.
	Bool bool
	// Nil is the 'N' tag.
	Nil struct{}
	// Impulse is the 'I' tag (also called bang or infinitum).
	Impulse struct{}
)

func (Int32) Tag() byte   { return 'i' }
func (Float32) Tag() byte { return 'f' }
func (String) Tag() byte  { return 's' }
func (Blob) Tag() byte    { return 'b' }
func (Int64) Tag() byte   { return 'h' }
func (Float64) Tag() byte { return 'd' }
func (Char) Tag() byte    { return 'c' }
func (Nil) Tag() byte     { return 'N' }
func (Impulse) Tag() byte { return 'I' }
func (Color) Tag() byte   { return 'r' }
func (MIDI) Tag() byte    { return 'm' }
func (TimeTag) Tag() byte { return 't' }

func (b Bool) Tag() byte {
	if b {
		return 'T'
	}
	return 'F'
}

// Color is an RGBA color argument.
type Color struct {
	R, G, B, A uint8
}

// MIDI is a four byte MIDI message argument.
type MIDI struct {
	Port, Status, Data1, Data2 uint8
}

// ntpUnixOffset is the number of seconds between the NTP epoch (1900-01-01)
// and the Unix epoch (1970-01-01).
const ntpUnixOffset = 2208988800

// TimeTag is an OSC time tag. RawNTP keeps the on-wire 64-bit value
// (seconds in the high word, fraction in the low word) untouched.
type TimeTag struct {
	RawNTP      uint64
	EpochTimeMs int64 // milliseconds since the Unix epoch, fraction truncated
}

// NewTimeTag builds a time tag from NTP seconds and fraction.
func NewTimeTag(seconds, fraction uint32) TimeTag {
	return TimeTag{
		RawNTP:      uint64(seconds)<<32 | uint64(fraction),
		EpochTimeMs: epochMillis(seconds, fraction),
	}
}

// Seconds returns the NTP seconds field.
func (t TimeTag) Seconds() uint32 { return uint32(t.RawNTP >> 32) }

// Fraction returns the NTP fractional-second field.
func (t TimeTag) Fraction() uint32 { return uint32(t.RawNTP) }

func epochMillis(seconds, fraction uint32) int64 {
	whole := (int64(seconds) - ntpUnixOffset) * 1000
	// floor(fraction / 2^32 * 1000) without going through floating point
	frac := int64((uint64(fraction) * 1000) >> 32)
	return whole + frac
}
