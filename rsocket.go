// Package rsocket is a reactive engine multiplexing request streams of four
// interaction models over one connection.
//
// Clients are created by Connect and servers by Receive.
package rsocket

import (
	"context"

	"github.com/rsocket/rsocket-engine/internal/socket"
	"github.com/rsocket/rsocket-engine/payload"
	"github.com/rsocket/rsocket-engine/rx"
)

type (
	// RSocket is a requester or a responder of the four interaction models.
	RSocket = socket.RSocket
	// CloseableRSocket is a RSocket which can be closed.
	CloseableRSocket = socket.CloseableRSocket
	// ServerAcceptor creates the responder of a connection accepted by a server.
	// The requester sends requests back to the client. A non-nil error rejects the setup.
	ServerAcceptor = socket.Acceptor
	// ClientAcceptor creates the responder of a client, the requester is the client itself.
	ClientAcceptor = func(ctx context.Context, requester RSocket) RSocket
	// SessionState is the state of a session.
	SessionState = socket.SessionState
	// OptAbstractSocket is an option of NewAbstractSocket.
	OptAbstractSocket func(*socket.AbstractRSocket)
)

// Session states.
const (
	SessionConnecting = socket.SessionConnecting
	SessionActive     = socket.SessionActive
	SessionResuming   = socket.SessionResuming
	SessionClosed     = socket.SessionClosed
)

// NewAbstractSocket returns a RSocket implemented by the given handlers.
// Requests without handler fail.
func NewAbstractSocket(opts ...OptAbstractSocket) RSocket {
	sk := &socket.AbstractRSocket{}
	for _, fn := range opts {
		fn(sk)
	}
	return sk
}

// MetadataPush registers the handler of METADATA_PUSH.
func MetadataPush(fn func(ctx context.Context, msg payload.Payload)) OptAbstractSocket {
	return func(sk *socket.AbstractRSocket) {
		sk.MP = fn
	}
}

// FireAndForget registers the handler of FIRE_AND_FORGET.
func FireAndForget(fn func(ctx context.Context, msg payload.Payload)) OptAbstractSocket {
	return func(sk *socket.AbstractRSocket) {
		sk.FF = fn
	}
}

// RequestResponse registers the handler of REQUEST_RESPONSE.
func RequestResponse(fn func(ctx context.Context, msg payload.Payload) *rx.Mono) OptAbstractSocket {
	return func(sk *socket.AbstractRSocket) {
		sk.RR = fn
	}
}

// RequestStream registers the handler of REQUEST_STREAM.
func RequestStream(fn func(ctx context.Context, msg payload.Payload) *rx.Flux) OptAbstractSocket {
	return func(sk *socket.AbstractRSocket) {
		sk.RS = fn
	}
}

// RequestChannel registers the handler of REQUEST_CHANNEL.
func RequestChannel(fn func(ctx context.Context, msgs *rx.Flux) *rx.Flux) OptAbstractSocket {
	return func(sk *socket.AbstractRSocket) {
		sk.RC = fn
	}
}

// requesterSocket decorates the requester of a session and keeps its lifecycle.
type requesterSocket struct {
	RSocket
	closeable socket.Closeable
}

func (p *requesterSocket) Close() error {
	return p.closeable.Close()
}

func (p *requesterSocket) OnClose(fn func(error)) {
	p.closeable.OnClose(fn)
}
