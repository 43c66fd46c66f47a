package rsocket

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/transport"
	"github.com/rsocket/rsocket-engine/extension"
	"github.com/rsocket/rsocket-engine/interceptor"
	"github.com/rsocket/rsocket-engine/internal/common"
	"github.com/rsocket/rsocket-engine/internal/fragmentation"
	"github.com/rsocket/rsocket-engine/internal/socket"
	"github.com/rsocket/rsocket-engine/lease"
	"github.com/rsocket/rsocket-engine/payload"
	"github.com/rsocket/rsocket-engine/rx"
)

const defaultConnectTimeout = 30 * time.Second

var errMissingTransport = errors.New("missing transport")

type (
	// Client is a client-side RSocket.
	Client interface {
		CloseableRSocket
		// State returns the state of the session.
		State() SessionState
	}

	// ClientBuilder can be used to build a RSocket client.
	ClientBuilder interface {
		ClientTransportBuilder
		// Scheduler sets the scheduler running responder handlers.
		Scheduler(scheduler rx.Scheduler) ClientBuilder
		// Fragment sets the fragment size, zero disables fragmentation.
		Fragment(mtu int) ClientBuilder
		// KeepAlive sets the keepalive interval and the max lifetime of a silent connection.
		KeepAlive(interval, maxLifetime time.Duration) ClientBuilder
		// ConnectTimeout bounds dialing the transport.
		ConnectTimeout(timeout time.Duration) ClientBuilder
		// DataMimeType sets the MIME type of data.
		DataMimeType(mime string) ClientBuilder
		// MetadataMimeType sets the MIME type of metadata, composite metadata by default.
		MetadataMimeType(mime string) ClientBuilder
		// SetupPayload sets the data and the metadata of SETUP.
		SetupPayload(setup payload.Payload) ClientBuilder
		// Lease makes requests wait for leases of the server, onLease observes them.
		Lease(onLease ...func(lease.Lease)) ClientBuilder
		// Resume enables resuming the session after the transport is lost.
		Resume(opts ...ResumeOption) ClientBuilder
		// Interceptors decorates the requester and the responder.
		Interceptors(registry *interceptor.Registry) ClientBuilder
		// Valve limits the bytes per second read and written, zero means unlimited.
		Valve(rxRate, txRate int64) ClientBuilder
		// OnClose registers a handler called once the client is closed.
		OnClose(fn func(error)) ClientBuilder
		// OnViolation registers a handler of protocol violations of the server.
		OnViolation(fn func(*core.ProtocolViolation)) ClientBuilder
		// Acceptor sets the responder serving requests of the server.
		Acceptor(acceptor ClientAcceptor) ClientTransportBuilder
	}

	// ClientTransportBuilder sets the transport of a client.
	ClientTransportBuilder interface {
		// Transport sets the transport.
		Transport(t transport.ClientTransporter) ClientStarter
	}

	// ClientStarter starts a client.
	ClientStarter interface {
		// Start connects to the server and sends SETUP. The client is closed once ctx is done.
		Start(ctx context.Context) (Client, error)
	}
)

// Connect creates a new ClientBuilder.
func Connect() ClientBuilder {
	return &clientBuilder{
		keepaliveInterval: common.DefaultKeepaliveInterval,
		keepaliveLifetime: common.DefaultKeepaliveMaxLifetime,
		connectTimeout:    defaultConnectTimeout,
		dataMimeType:      extension.ApplicationOctetStream.String(),
		metadataMimeType:  extension.MessageCompositeMetadata.String(),
	}
}

type clientBuilder struct {
	scheduler         rx.Scheduler
	mtu               int
	keepaliveInterval time.Duration
	keepaliveLifetime time.Duration
	connectTimeout    time.Duration
	dataMimeType      string
	metadataMimeType  string
	setup             payload.Payload
	lease             bool
	onLease           []func(lease.Lease)
	resume            *ResumeOptions
	interceptors      *interceptor.Registry
	valve             *transport.Valve
	closers           []func(error)
	violations        []func(*core.ProtocolViolation)
	acceptor          ClientAcceptor
	tp                transport.ClientTransporter
}

func (p *clientBuilder) Scheduler(scheduler rx.Scheduler) ClientBuilder {
	p.scheduler = scheduler
	return p
}

func (p *clientBuilder) Fragment(mtu int) ClientBuilder {
	p.mtu = mtu
	return p
}

func (p *clientBuilder) KeepAlive(interval, maxLifetime time.Duration) ClientBuilder {
	p.keepaliveInterval = interval
	p.keepaliveLifetime = maxLifetime
	return p
}

func (p *clientBuilder) ConnectTimeout(timeout time.Duration) ClientBuilder {
	p.connectTimeout = timeout
	return p
}

func (p *clientBuilder) DataMimeType(mime string) ClientBuilder {
	p.dataMimeType = mime
	return p
}

func (p *clientBuilder) MetadataMimeType(mime string) ClientBuilder {
	p.metadataMimeType = mime
	return p
}

func (p *clientBuilder) SetupPayload(setup payload.Payload) ClientBuilder {
	p.setup = payload.Clone(setup)
	return p
}

func (p *clientBuilder) Lease(onLease ...func(lease.Lease)) ClientBuilder {
	p.lease = true
	p.onLease = append(p.onLease, onLease...)
	return p
}

func (p *clientBuilder) Resume(opts ...ResumeOption) ClientBuilder {
	p.resume = newResumeOptions(opts)
	return p
}

func (p *clientBuilder) Interceptors(registry *interceptor.Registry) ClientBuilder {
	p.interceptors = registry
	return p
}

func (p *clientBuilder) Valve(rxRate, txRate int64) ClientBuilder {
	p.valve = transport.NewValve(rxRate, txRate)
	return p
}

func (p *clientBuilder) OnClose(fn func(error)) ClientBuilder {
	p.closers = append(p.closers, fn)
	return p
}

func (p *clientBuilder) OnViolation(fn func(*core.ProtocolViolation)) ClientBuilder {
	p.violations = append(p.violations, fn)
	return p
}

func (p *clientBuilder) Acceptor(acceptor ClientAcceptor) ClientTransportBuilder {
	p.acceptor = acceptor
	return p
}

func (p *clientBuilder) Transport(t transport.ClientTransporter) ClientStarter {
	p.tp = t
	return p
}

func (p *clientBuilder) setupInfo() *socket.SetupInfo {
	info := &socket.SetupInfo{
		Version:           core.DefaultVersion,
		KeepaliveInterval: p.keepaliveInterval,
		KeepaliveLifetime: p.keepaliveLifetime,
		DataMimeType:      p.dataMimeType,
		MetadataMimeType:  p.metadataMimeType,
		Lease:             p.lease,
	}
	if p.setup != nil {
		info.Data = p.setup.Data()
		info.Metadata, _ = p.setup.Metadata()
	}
	if p.resume != nil {
		info.Token = p.resume.Token()
	}
	return info
}

// transporter binds the valve to every transport dialed.
func (p *clientBuilder) transporter() transport.ClientTransporter {
	if p.valve == nil {
		return p.tp
	}
	return func(ctx context.Context) (*transport.Transport, error) {
		tp, err := p.tp(ctx)
		if err != nil {
			return nil, err
		}
		tp.SetValve(p.valve)
		return tp, nil
	}
}

func (p *clientBuilder) onLeaseReceived(l lease.Lease) {
	for _, fn := range p.onLease {
		fn(l)
	}
}

func (p *clientBuilder) Start(ctx context.Context) (Client, error) {
	if p.tp == nil {
		return nil, errMissingTransport
	}
	if err := fragmentation.CheckFragment(p.mtu); err != nil {
		return nil, err
	}
	opts := socket.DuplexOptions{
		MTU:               p.mtu,
		Scheduler:         p.scheduler,
		KeepaliveInterval: p.keepaliveInterval,
		HonorLease:        p.lease,
		Resumable:         p.resume != nil,
	}
	if len(p.onLease) > 0 {
		opts.OnLease = p.onLeaseReceived
	}
	if len(p.violations) > 0 {
		opts.OnViolation = func(v *core.ProtocolViolation) {
			for _, fn := range p.violations {
				fn(v)
			}
		}
	}
	if p.resume != nil {
		opts.Ledger = p.resume.ledger()
	}
	conn := socket.NewClientDuplexConnection(opts)

	var cs socket.ClientSocket
	if p.resume != nil {
		cs = socket.NewResumableClient(p.transporter(), conn, p.resume.socketOptions())
	} else {
		cs = socket.NewClient(p.transporter(), conn)
	}
	for _, fn := range p.closers {
		cs.OnClose(fn)
	}

	c := &client{
		ClientSocket: cs,
		requester:    p.interceptors.WrapRequester(cs),
	}
	if p.acceptor != nil {
		conn.SetResponder(p.interceptors.WrapResponder(p.acceptor(ctx, c)))
	}
	if err := cs.Setup(ctx, p.connectTimeout, p.setupInfo()); err != nil {
		return nil, err
	}
	return c, nil
}

type client struct {
	socket.ClientSocket
	requester RSocket
}

func (p *client) FireAndForget(ctx context.Context, msg payload.Payload) error {
	return p.requester.FireAndForget(ctx, msg)
}

func (p *client) MetadataPush(ctx context.Context, msg payload.Payload) error {
	return p.requester.MetadataPush(ctx, msg)
}

func (p *client) RequestResponse(ctx context.Context, msg payload.Payload) *rx.Mono {
	return p.requester.RequestResponse(ctx, msg)
}

func (p *client) RequestStream(ctx context.Context, msg payload.Payload) *rx.Flux {
	return p.requester.RequestStream(ctx, msg)
}

func (p *client) RequestChannel(ctx context.Context, msgs *rx.Flux) *rx.Flux {
	return p.requester.RequestChannel(ctx, msgs)
}
