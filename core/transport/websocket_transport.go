package transport

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/logger"
)

const defaultWebsocketPath = "/"

var upgrader websocket.Upgrader

func init() {
	// Default allow CORS.
	cors := true
	if v, ok := os.LookupEnv("RSOCKET_WS_CORS"); ok {
		v = strings.TrimSpace(strings.ToLower(v))
		cors = v == "yes" || v == "on" || v == "1" || v == "true"
	}
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if cors {
		upgrader.CheckOrigin = func(r *http.Request) bool {
			return true
		}
	}
}

type wsServerTransport struct {
	path            string
	acceptor        ServerTransportAcceptor
	onceClose       sync.Once
	listenerFactory ListenerFactory
	listener        net.Listener
	transports      *sync.Map
}

func (p *wsServerTransport) Close() (err error) {
	p.onceClose.Do(func() {
		if p.listener != nil {
			err = p.listener.Close()
		}
		p.transports.Range(func(key, _ interface{}) bool {
			_ = key.(*Transport).Close()
			return true
		})
	})
	return
}

func (p *wsServerTransport) Accept(acceptor ServerTransportAcceptor) {
	p.acceptor = acceptor
}

func (p *wsServerTransport) Listen(ctx context.Context, notifier chan<- bool) (err error) {
	mux := http.NewServeMux()
	mux.HandleFunc(p.path, func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Errorf("create websocket conn failed: %s\n", err.Error())
			return
		}
		tp := NewTransport(NewWebsocketConnection(c))
		p.transports.Store(tp, struct{}{})
		go p.acceptor(ctx, tp, func(tp *Transport) {
			p.transports.Delete(tp)
		})
	})

	p.listener, err = p.listenerFactory(ctx)
	if err != nil {
		err = errors.Wrap(err, "server listen failed")
		notifier <- false
		return
	}

	notifier <- true

	stop := make(chan struct{})
	ctx, cancel := context.WithCancel(ctx)

	go func(ctx context.Context, stop chan struct{}) {
		defer func() {
			_ = p.Close()
			close(stop)
		}()
		<-ctx.Done()
	}(ctx, stop)

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	err = server.Serve(p.listener)
	if err == io.EOF || isClosedErr(err) {
		err = nil
	} else {
		err = errors.Wrap(err, "listen websocket server failed")
	}
	cancel()
	<-stop
	return
}

// NewWebsocketServerTransport creates a websocket server transport from a listener factory.
func NewWebsocketServerTransport(gen ListenerFactory, path string) ServerTransport {
	if path == "" {
		path = defaultWebsocketPath
	}
	return &wsServerTransport{
		path:            path,
		listenerFactory: gen,
		transports:      &sync.Map{},
	}
}

// NewWebsocketServerTransportWithAddr creates a websocket server transport listening on addr.
func NewWebsocketServerTransportWithAddr(addr string, path string, c *tls.Config) ServerTransport {
	return NewWebsocketServerTransport(func(ctx context.Context) (net.Listener, error) {
		var lc net.ListenConfig
		l, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return l, nil
		}
		return tls.NewListener(l, c), nil
	}, path)
}

// NewWebsocketClientTransport dials url and creates a websocket client transport.
func NewWebsocketClientTransport(ctx context.Context, url string, tc *tls.Config, header http.Header) (*Transport, error) {
	var d *websocket.Dialer
	if tc == nil {
		d = websocket.DefaultDialer
	} else {
		d = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 45 * time.Second,
			TLSClientConfig:  tc,
		}
	}
	wsConn, _, err := d.DialContext(ctx, url, header)
	if err != nil {
		return nil, errors.Wrap(err, "dial websocket failed")
	}
	return NewTransport(NewWebsocketConnection(wsConn)), nil
}
