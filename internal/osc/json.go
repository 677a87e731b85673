package osc

import (
	"encoding/json"
	"fmt"
	"math"
)

// wire format of a relayed message, one JSON text frame per message
type wireMessage struct {
	Address string    `json:"address"`
	Args    []wireArg `json:"args"`
}

type wireArg struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

type wireTimeTag struct {
	RawNTP      [2]uint32 `json:"rawNTP"`
	EpochTimeMs int64     `json:"epochTimeMs"`
}

type wireColor struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// ToJSON marshals the message to the relay wire format:
//
//	{"address":"/test","args":[{"type":"i","value":1},{"type":"f","value":2.5}]}
func (m *Message) ToJSON() ([]byte, error) {
	wire := wireMessage{
		Address: m.Address,
		Args:    make([]wireArg, 0, len(m.Args)),
	}
	for i, arg := range m.Args {
		value, err := wireValue(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d of %s: %w", i, m.Address, err)
		}
		wire.Args = append(wire.Args, wireArg{Type: string(arg.Tag()), Value: value})
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal osc message: %w", err)
	}
	return data, nil
}

func wireValue(arg Argument) (any, error) {
	switch v := arg.(type) {
	case Int32:
		return int32(v), nil
	case Int64:
		return int64(v), nil
	case Float32:
		if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, nil
		}
		return float32(v), nil
	case Float64:
		if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, nil
		}
		return float64(v), nil
	case String:
		return string(v), nil
	case Char:
		return string(rune(v)), nil
	case Blob:
		// numbers, not base64, so browsers get a plain byte array
		out := make([]int, len(v))
		for i, b := range v {
			out[i] = int(b)
		}
		return out, nil
	case TimeTag:
		return wireTimeTag{
			RawNTP:      [2]uint32{v.Seconds(), v.Fraction()},
			EpochTimeMs: v.EpochTimeMs,
		}, nil
	case Bool:
		return bool(v), nil
	case Nil:
		return nil, nil
	case Impulse:
		return 1, nil
	case Color:
		return wireColor{R: v.R, G: v.G, B: v.B, A: v.A}, nil
	case MIDI:
		return []int{int(v.Port), int(v.Status), int(v.Data1), int(v.Data2)}, nil
	default:
		return nil, fmt.Errorf("unsupported argument type %T", arg)
	}
}
