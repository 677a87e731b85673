package client

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hypebeast/go-osc/osc"
)

// osc_client.go = sends OSC test messages to a running bridge.

// ParseArgument turns one command line word into an OSC argument. A type
// prefix forces the type (i:, f:, s:, h:, d:); without one, integers become
// int32, other numbers float32, true/false bools and "nil" a nil argument.
func ParseArgument(word string) (any, error) {
	if prefix, value, ok := strings.Cut(word, ":"); ok && len(prefix) == 1 {
		switch prefix {
		case "i":
			n, err := strconv.ParseInt(value, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid int32 %q: %w", value, err)
			}
			return int32(n), nil
		case "h":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid int64 %q: %w", value, err)
			}
			return n, nil
		case "f":
			f, err := strconv.ParseFloat(value, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid float32 %q: %w", value, err)
			}
			return float32(f), nil
		case "d":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid float64 %q: %w", value, err)
			}
			return f, nil
		case "s":
			return value, nil
		}
	}

	switch word {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "nil":
		return nil, nil
	}
	if n, err := strconv.ParseInt(word, 10, 32); err == nil {
		return int32(n), nil
	}
	if f, err := strconv.ParseFloat(word, 32); err == nil {
		return float32(f), nil
	}
	return word, nil
}

// BuildMessage creates an OSC message from an address and argument words.
func BuildMessage(address string, words []string) (*osc.Message, error) {
	if !strings.HasPrefix(address, "/") {
		return nil, fmt.Errorf("OSC address must start with '/': %q", address)
	}
	msg := osc.NewMessage(address)
	for _, w := range words {
		arg, err := ParseArgument(w)
		if err != nil {
			return nil, err
		}
		msg.Append(arg)
	}
	return msg, nil
}

// SendMessage sends msg count times to host:port.
func SendMessage(host string, port int, msg *osc.Message, count int) error {
	c := osc.NewClient(host, port)
	for i := 0; i < count; i++ {
		if err := c.Send(msg); err != nil {
			return fmt.Errorf("failed to send %s: %w", msg.Address, err)
		}
	}
	return nil
}
