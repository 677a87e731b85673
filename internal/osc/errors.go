package osc

import (
	"errors"
	"fmt"
)

// Decode failure kinds. Match with errors.Is.
var (
	ErrMalformed         = errors.New("malformed osc packet")
	ErrUnknownType       = errors.New("unknown osc type tag")
	ErrUnsupportedBundle = errors.New("osc bundles are not supported")
)

// DecodeError describes why a datagram was rejected and where.
type DecodeError struct {
	Kind   error // one of ErrMalformed, ErrUnknownType, ErrUnsupportedBundle
	Offset int   // byte offset at which decoding stopped
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%v at offset %d", e.Kind, e.Offset)
	}
	return fmt.Sprintf("%v at offset %d: %s", e.Kind, e.Offset, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Kind
}

func malformed(offset int, format string, args ...any) error {
	return &DecodeError{Kind: ErrMalformed, Offset: offset, Reason: fmt.Sprintf(format, args...)}
}
