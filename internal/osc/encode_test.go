package osc

import (
	"encoding/binary"
	"math"
)

// encode is the test-side inverse of Decode.
func encode(m *Message) []byte {
	buf := appendString(nil, m.Address)
	buf = appendString(buf, m.TypeTags())
	for _, arg := range m.Args {
		buf = appendArgument(buf, arg)
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	buf = append(buf, 0)
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

func appendArgument(buf []byte, arg Argument) []byte {
	switch v := arg.(type) {
	case Int32:
		return binary.BigEndian.AppendUint32(buf, uint32(v))
	case Float32:
		return binary.BigEndian.AppendUint32(buf, math.Float32bits(float32(v)))
	case String:
		return appendString(buf, string(v))
	case Blob:
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(v)))
		buf = append(buf, v...)
		for len(buf)%4 != 0 {
			buf = append(buf, 0)
		}
		return buf
	case TimeTag:
		return binary.BigEndian.AppendUint64(buf, v.RawNTP)
	case Int64:
		return binary.BigEndian.AppendUint64(buf, uint64(v))
	case Float64:
		return binary.BigEndian.AppendUint64(buf, math.Float64bits(float64(v)))
	case Char:
		return binary.BigEndian.AppendUint32(buf, uint32(v))
	case Color:
		return append(buf, v.R, v.G, v.B, v.A)
	case MIDI:
		return append(buf, v.Port, v.Status, v.Data1, v.Data2)
	default:
		// Bool, Nil and Impulse carry no payload
		return buf
	}
}
