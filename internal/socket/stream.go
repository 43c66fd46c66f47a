package socket

import (
	"context"

	"github.com/rsocket/rsocket-engine/rx"
)

// stream is one in-flight interaction owned by the stream table of a DuplexConnection.
// Every field is guarded by the mutex of the connection.
type stream struct {
	id        uint32
	model     Model
	requester bool
	state     StreamState
	// inbound direction is done
	inDone bool
	// outbound direction is done
	outDone bool
	// a response was delivered to a request-response requester
	delivered bool

	mono    *rx.MonoSink
	inbound *rx.FluxSink

	// demand granted by the peer for outbound payloads
	credit  int64
	creditC chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

func newStream(id uint32, model Model, requester bool) *stream {
	return &stream{
		id:        id,
		model:     model,
		requester: requester,
		state:     StreamIdle,
		creditC:   make(chan struct{}, 1),
	}
}

// addCredit grants outbound demand.
func (s *stream) addCredit(n uint32) {
	if s.credit+int64(n) > rx.RequestMax {
		s.credit = rx.RequestMax
	} else {
		s.credit += int64(n)
	}
	select {
	case s.creditC <- struct{}{}:
	default:
	}
}

// takeCredit consumes one outbound demand.
func (s *stream) takeCredit() bool {
	if s.credit < 1 {
		return false
	}
	if s.credit < rx.RequestMax {
		s.credit--
	}
	return true
}

// completeInbound marks the inbound direction done and returns true if the stream became terminal.
func (s *stream) completeInbound() bool {
	s.inDone = true
	return s.settle()
}

// completeOutbound marks the outbound direction done and returns true if the stream became terminal.
func (s *stream) completeOutbound() bool {
	s.outDone = true
	return s.settle()
}

func (s *stream) settle() bool {
	if s.state.Terminal() {
		return false
	}
	done := false
	switch s.model {
	case ModelRequestChannel:
		done = s.inDone && s.outDone
	case ModelRequestResponse, ModelRequestStream:
		if s.requester {
			done = s.inDone
		} else {
			done = s.outDone
		}
	default:
		done = true
	}
	if done {
		s.state = StreamComplete
	}
	return done
}

// terminate moves the stream to a terminal state and stops its handlers.
func (s *stream) terminate(state StreamState) {
	if !s.state.Terminal() {
		s.state = state
	}
	s.inDone, s.outDone = true, true
	if s.cancel != nil {
		s.cancel()
	}
}
