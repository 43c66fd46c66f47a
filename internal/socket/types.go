package socket

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/core/transport"
	"github.com/rsocket/rsocket-engine/logger"
	"github.com/rsocket/rsocket-engine/payload"
	"github.com/rsocket/rsocket-engine/rx"
)

var (
	errUnimplementedMetadataPush    = errors.New("METADATA_PUSH is unimplemented")
	errUnimplementedFireAndForget   = errors.New("FIRE_AND_FORGET is unimplemented")
	errUnimplementedRequestResponse = errors.New("REQUEST_RESPONSE is unimplemented")
	errUnimplementedRequestStream   = errors.New("REQUEST_STREAM is unimplemented")
	errUnimplementedRequestChannel  = errors.New("REQUEST_CHANNEL is unimplemented")
)

// RSocket is the logical socket of both roles.
// As a requester it sends requests to the peer, as a responder it serves requests of the peer.
// A responder gets a ctx which is done once the stream is cancelled or the session is closed.
type RSocket interface {
	// FireAndForget is a single one-way message.
	FireAndForget(ctx context.Context, msg payload.Payload) error
	// MetadataPush sends asynchronous metadata.
	MetadataPush(ctx context.Context, msg payload.Payload) error
	// RequestResponse requests a single response.
	RequestResponse(ctx context.Context, msg payload.Payload) *rx.Mono
	// RequestStream requests a completable stream.
	RequestStream(ctx context.Context, msg payload.Payload) *rx.Flux
	// RequestChannel requests a completable stream in both directions.
	RequestChannel(ctx context.Context, msgs *rx.Flux) *rx.Flux
}

// Acceptor creates the responder of an accepted connection.
// The requester can be used to send requests back to the client.
// A non-nil error rejects the setup.
type Acceptor = func(ctx context.Context, setup payload.SetupPayload, requester CloseableRSocket) (RSocket, error)

// Closeable represents a closeable target.
type Closeable interface {
	io.Closer
	// OnClose bind a handler when closing.
	OnClose(closer func(error))
}

// CloseableRSocket is a RSocket which can be closed.
type CloseableRSocket interface {
	Closeable
	RSocket
}

// ClientSocket represents a client-side socket.
type ClientSocket interface {
	CloseableRSocket
	// Setup setups current socket.
	Setup(ctx context.Context, connectTimeout time.Duration, setup *SetupInfo) error
	// State returns the session state.
	State() SessionState
}

// ServerSocket represents a server-side socket.
type ServerSocket interface {
	CloseableRSocket
	// SetResponder sets a responder for current socket.
	SetResponder(responder RSocket)
	// SetTransport registers frame handlers on a transport and uses it for writing.
	SetTransport(tp *transport.Transport)
	// Pause detaches the broken transport tp which stopped with err.
	// It returns false if the socket is closed instead of waiting for resume.
	Pause(tp *transport.Transport, err error) bool
	// Start runs the write loop and the lease sender until the socket is closed.
	Start(ctx context.Context) error
	// Token returns token of socket.
	Token() (token []byte, ok bool)
	// Resume attaches a new transport after a RESUME frame.
	Resume(tp *transport.Transport, lastReceivedServerPosition, firstAvailableClientPosition uint64) error
	// State returns the session state.
	State() SessionState
}

// AbstractRSocket implements RSocket with optional functions.
type AbstractRSocket struct {
	FF func(context.Context, payload.Payload)
	MP func(context.Context, payload.Payload)
	RR func(context.Context, payload.Payload) *rx.Mono
	RS func(context.Context, payload.Payload) *rx.Flux
	RC func(context.Context, *rx.Flux) *rx.Flux
}

// MetadataPush starts a request of MetadataPush.
func (p AbstractRSocket) MetadataPush(ctx context.Context, msg payload.Payload) error {
	if p.MP == nil {
		logger.Errorf("%s\n", errUnimplementedMetadataPush)
		return errUnimplementedMetadataPush
	}
	p.MP(ctx, msg)
	return nil
}

// FireAndForget starts a request of FireAndForget.
func (p AbstractRSocket) FireAndForget(ctx context.Context, msg payload.Payload) error {
	if p.FF == nil {
		logger.Errorf("%s\n", errUnimplementedFireAndForget)
		return errUnimplementedFireAndForget
	}
	p.FF(ctx, msg)
	return nil
}

// RequestResponse starts a request of RequestResponse.
func (p AbstractRSocket) RequestResponse(ctx context.Context, msg payload.Payload) *rx.Mono {
	if p.RR == nil {
		return rx.ErrorMono(errUnimplementedRequestResponse)
	}
	return p.RR(ctx, msg)
}

// RequestStream starts a request of RequestStream.
func (p AbstractRSocket) RequestStream(ctx context.Context, msg payload.Payload) *rx.Flux {
	if p.RS == nil {
		return rx.ErrorFlux(errUnimplementedRequestStream)
	}
	return p.RS(ctx, msg)
}

// RequestChannel starts a request of RequestChannel.
func (p AbstractRSocket) RequestChannel(ctx context.Context, msgs *rx.Flux) *rx.Flux {
	if p.RC == nil {
		return rx.ErrorFlux(errUnimplementedRequestChannel)
	}
	return p.RC(ctx, msgs)
}
