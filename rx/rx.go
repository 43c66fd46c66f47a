// Package rx provides the result shapes of the interaction models:
// Mono is a single value future and Flux is a cancellable lazy sequence.
// Both report completion and failure through the same consuming call.
package rx

import (
	"math"

	"github.com/pkg/errors"
)

// RequestMax means unbounded demand.
const RequestMax = math.MaxInt32

// ErrCancelled is returned by consumers of a cancelled Mono or Flux.
var ErrCancelled = errors.New("rx: cancelled")

// SignalType is the terminal signal of a Mono or Flux.
type SignalType int8

const (
	signalNone SignalType = iota
	// SignalComplete indicates normal completion.
	SignalComplete
	// SignalError indicates failure.
	SignalError
	// SignalCancel indicates cancellation by the consumer.
	SignalCancel
)

func (s SignalType) String() string {
	switch s {
	case SignalComplete:
		return "COMPLETE"
	case SignalError:
		return "ERROR"
	case SignalCancel:
		return "CANCEL"
	default:
		return "NONE"
	}
}

// ToUint32 clamps a demand to the protocol range.
func ToUint32(n int) uint32 {
	if n <= 0 {
		return 0
	}
	if n >= RequestMax {
		return RequestMax
	}
	return uint32(n)
}
