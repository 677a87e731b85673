package osc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// Decode parses a single OSC message from a datagram payload.
//
// Decoding is all-or-nothing: on failure the returned message is nil and the
// error is a *DecodeError whose Kind is ErrMalformed, ErrUnknownType or
// ErrUnsupportedBundle. Bytes left over after the last argument are ignored.
// The returned message never references data.
func Decode(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, malformed(0, "empty packet")
	}

	switch data[0] {
	case '#':
		return nil, &DecodeError{Kind: ErrUnsupportedBundle, Offset: 0}
	case '/':
	default:
		return nil, malformed(0, "packet starts with %q, expected '/'", data[0])
	}

	r := reader{data: data}

	address, err := r.string()
	if err != nil {
		return nil, err
	}

	tagsOffset := r.pos
	tags, err := r.string()
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 || tags[0] != ',' {
		return nil, malformed(tagsOffset, "type tag string must start with ','")
	}

	args := make([]Argument, 0, len(tags)-1)
	for i := 1; i < len(tags); i++ {
		arg, err := r.argument(tags[i])
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	return &Message{Address: address, Args: args}, nil
}

// reader is a cursor over a datagram.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, malformed(r.pos, "need %d bytes, have %d", n, r.remaining())
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// string reads a null-terminated OSC-string padded with zeros to a 4 byte boundary.
func (r *reader) string() (string, error) {
	start := r.pos
	n := bytes.IndexByte(r.data[start:], 0)
	if n < 0 {
		return "", malformed(start, "unterminated string")
	}
	size := padded(n + 1)
	raw, err := r.take(size)
	if err != nil {
		return "", err
	}
	for _, b := range raw[n:] {
		if b != 0 {
			return "", malformed(start, "non-zero string padding")
		}
	}
	if !utf8.Valid(raw[:n]) {
		return "", malformed(start, "string is not valid utf-8")
	}
	return string(raw[:n]), nil
}

func (r *reader) blob() (Blob, error) {
	start := r.pos
	size, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if int32(size) < 0 {
		return nil, malformed(start, "negative blob size %d", int32(size))
	}
	if int64(size) > int64(r.remaining()) {
		return nil, malformed(start, "blob size %d exceeds remaining %d bytes", size, r.remaining())
	}
	raw, err := r.take(padded(int(size)))
	if err != nil {
		return nil, err
	}
	out := make(Blob, size)
	copy(out, raw)
	return out, nil
}

func (r *reader) argument(tag byte) (Argument, error) {
	switch tag {
	case 'i':
		v, err := r.uint32()
		return Int32(int32(v)), err
	case 'f':
		v, err := r.uint32()
		return Float32(math.Float32frombits(v)), err
	case 's':
		v, err := r.string()
		return String(v), err
	case 'b':
		return r.blob()
	case 't':
		v, err := r.uint64()
		if err != nil {
			return nil, err
		}
		return NewTimeTag(uint32(v>>32), uint32(v)), nil
	case 'h':
		v, err := r.uint64()
		return Int64(int64(v)), err
	case 'd':
		v, err := r.uint64()
		return Float64(math.Float64frombits(v)), err
	case 'c':
		v, err := r.uint32()
		return Char(rune(v)), err
	case 'r':
		b, err := r.take(4)
		if err != nil {
			return nil, err
		}
		return Color{R: b[0], G: b[1], B: b[2], A: b[3]}, nil
	case 'm':
		b, err := r.take(4)
		if err != nil {
			return nil, err
		}
		return MIDI{Port: b[0], Status: b[1], Data1: b[2], Data2: b[3]}, nil
	case 'T':
		return Bool(true), nil
	case 'F':
		return Bool(false), nil
	case 'N':
		return Nil{}, nil
	case 'I':
		return Impulse{}, nil
	default:
		return nil, &DecodeError{Kind: ErrUnknownType, Offset: r.pos, Reason: fmt.Sprintf("type tag %q", tag)}
	}
}

// padded rounds n up to the next multiple of 4.
func padded(n int) int {
	return (n + 3) &^ 3
}
