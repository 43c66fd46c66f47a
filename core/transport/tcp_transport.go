package transport

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"
)

type tcpServerTransport struct {
	listenerFactory ListenerFactory
	acceptor        ServerTransportAcceptor
	listener        net.Listener
	onceClose       sync.Once
	transports      *sync.Map
}

func (p *tcpServerTransport) Accept(acceptor ServerTransportAcceptor) {
	p.acceptor = acceptor
}

func (p *tcpServerTransport) Close() (err error) {
	if p.listener == nil {
		return
	}
	p.onceClose.Do(func() {
		err = p.listener.Close()
		p.transports.Range(func(key, _ interface{}) bool {
			_ = key.(*Transport).Close()
			return true
		})
	})
	return
}

func (p *tcpServerTransport) Listen(ctx context.Context, notifier chan<- bool) (err error) {
	p.listener, err = p.listenerFactory(ctx)
	if err != nil {
		err = errors.Wrap(err, "server listen failed")
		notifier <- false
		return
	}
	notifier <- true
	return p.listen(ctx)
}

func (p *tcpServerTransport) listen(ctx context.Context) (err error) {
	done := make(chan struct{})

	defer func() {
		close(done)
		_ = p.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = p.Close()
		case <-done:
		}
	}()

	var c net.Conn
	for {
		c, err = p.listener.Accept()
		if err == io.EOF || isClosedErr(err) {
			err = nil
			break
		}
		if err != nil {
			err = errors.Wrap(err, "accept next conn failed")
			break
		}
		tp := NewTransport(NewTCPConn(c))
		p.transports.Store(tp, struct{}{})
		go p.acceptor(ctx, tp, func(t *Transport) {
			p.transports.Delete(t)
		})
	}
	return
}

// NewTCPServerTransport creates a stream server transport from a listener factory.
func NewTCPServerTransport(gen ListenerFactory) ServerTransport {
	return &tcpServerTransport{
		listenerFactory: gen,
		transports:      &sync.Map{},
	}
}

// NewTCPServerTransportWithAddr creates a server transport listening on network and addr.
func NewTCPServerTransportWithAddr(network, addr string, tlsConfig *tls.Config) ServerTransport {
	return NewTCPServerTransport(func(ctx context.Context) (net.Listener, error) {
		var lc net.ListenConfig
		l, err := lc.Listen(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		if tlsConfig == nil {
			return l, nil
		}
		return tls.NewListener(l, tlsConfig), nil
	})
}

// NewTCPClientTransport creates a client transport from a dialer.
func NewTCPClientTransport(ctx context.Context, dial Dialer) (*Transport, error) {
	c, err := dial(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "dial failed")
	}
	return NewTransport(NewTCPConn(c)), nil
}

// NewTCPClientTransportWithAddr dials network and addr and creates a client transport.
func NewTCPClientTransportWithAddr(ctx context.Context, network, addr string, tlsConfig *tls.Config) (*Transport, error) {
	return NewTCPClientTransport(ctx, func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		if tlsConfig == nil {
			return d.DialContext(ctx, network, addr)
		}
		td := &tls.Dialer{NetDialer: &d, Config: tlsConfig}
		return td.DialContext(ctx, network, addr)
	})
}
