package trafgen

// errors.go holds the error values reported by generators, samplers,
// recorders and the channel models

import (
	"fmt"

	"github.com/pkg/errors"
)

// construction-time errors; these abort experiment setup
var (
	ErrInvalidRate     = errors.New("data rate must be positive and finite")
	ErrInvalidSize     = errors.New("packet size must be positive")
	ErrInvalidInterval = errors.New("sampling interval must be positive")
	ErrInvalidDuration = errors.New("duration must be positive")
	ErrInvalidParam    = errors.New("parameter out of range")
)

// run-time errors; these are reported by the component that sees them and
// do not halt the scheduler
var (
	ErrInvalidState       = errors.New("operation not valid in current state")
	ErrCounterRegression  = errors.New("cumulative counter decreased")
	ErrNonMonotonicSample = errors.New("sample timestamp precedes previous sample")
	ErrChannelClosed      = errors.New("channel closed")
	ErrNotConnected       = errors.New("channel not connected")
	ErrSendBufferFull     = errors.New("send buffer full")
)

// TransportError describes a failed operation on a Channel
type TransportError struct {
	Op   string // "bind", "connect", "send", "close"
	Peer string
	Err  error
}

func (te *TransportError) Error() string {
	if te.Peer == "" {
		return fmt.Sprintf("transport %s: %v", te.Op, te.Err)
	}
	return fmt.Sprintf("transport %s %s: %v", te.Op, te.Peer, te.Err)
}

func (te *TransportError) Unwrap() error {
	return te.Err
}

// Fatal is true when the channel can no longer carry data
func (te *TransportError) Fatal() bool {
	return errors.Is(te.Err, ErrChannelClosed)
}

// IsFatal reports whether err is (or wraps) a fatal TransportError
func IsFatal(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Fatal()
	}
	return false
}

func transportErr(op, peer string, err error) *TransportError {
	return &TransportError{Op: op, Peer: peer, Err: err}
}
