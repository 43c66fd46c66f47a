package rsocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/framing"
	"github.com/rsocket/rsocket-engine/core/transport"
	"github.com/rsocket/rsocket-engine/interceptor"
	"github.com/rsocket/rsocket-engine/internal/common"
	"github.com/rsocket/rsocket-engine/internal/fragmentation"
	"github.com/rsocket/rsocket-engine/internal/session"
	"github.com/rsocket/rsocket-engine/internal/socket"
	"github.com/rsocket/rsocket-engine/lease"
	"github.com/rsocket/rsocket-engine/logger"
	"github.com/rsocket/rsocket-engine/payload"
	"github.com/rsocket/rsocket-engine/rx"
)

const (
	serverWorkerPoolSize       = 10000
	serverSessionCleanInterval = 500 * time.Millisecond
)

var (
	errServerStarted    = errors.New("server started already")
	errServerNotStarted = errors.New("server is not started")
	errServerStopped    = errors.New("server stopped before listening")
	errMissingAcceptor  = errors.New("missing acceptor")
)

type (
	// ServerBuilder can be used to build a RSocket server.
	ServerBuilder interface {
		// Scheduler sets the scheduler running responder handlers.
		Scheduler(scheduler rx.Scheduler) ServerBuilder
		// Fragment sets the fragment size, zero disables fragmentation.
		Fragment(mtu int) ServerBuilder
		// Lease issues leases from factory to clients honouring leases.
		Lease(factory lease.Factory) ServerBuilder
		// Resume enables resume for current server.
		Resume(opts ...ResumeOption) ServerBuilder
		// Interceptors decorates requesters, responders and the acceptor.
		Interceptors(registry *interceptor.Registry) ServerBuilder
		// Valve limits the bytes per second read and written by every connection.
		Valve(rxRate, txRate int64) ServerBuilder
		// ClientID sets how the id of a connection in the registry is derived, the setup data by default.
		ClientID(fn ClientIDFunc) ServerBuilder
		// OnStart registers a handler called once the server is listening.
		OnStart(fn func()) ServerBuilder
		// Acceptor register server acceptor which is used to handle incoming RSockets.
		Acceptor(acceptor ServerAcceptor) ServerTransportBuilder
	}

	// ServerTransportBuilder is used to build a RSocket server with custom Transport string.
	ServerTransportBuilder interface {
		// Transport sets the server transport.
		Transport(t transport.ServerTransporter) Server
	}

	// Server is a RSocket server.
	Server interface {
		// Serve serves until ctx is done or the server is stopped.
		Serve(ctx context.Context) error
		// Start serves in background and returns once the server is listening.
		Start(ctx context.Context) error
		// Stop stops serving and closes every connection.
		Stop() error
		// Connections returns the registry of accepted connections.
		Connections() *ConnectionRegistry
	}
)

// Receive receives server connections from client RSockets.
func Receive() ServerBuilder {
	return &server{
		sm:          session.NewManager(),
		connections: newConnectionRegistry(),
		clientID:    ClientIDFromSetupData,
		resumables:  make(map[string]*resumable),
	}
}

type resumable struct {
	socket   socket.ServerSocket
	lifetime time.Duration
}

type server struct {
	scheduler    rx.Scheduler
	fragment     int
	leaseFactory lease.Factory
	resume       *ResumeOptions
	interceptors *interceptor.Registry
	valve        *transport.Valve
	clientID     ClientIDFunc
	onStart      []func()
	acceptor     ServerAcceptor
	tp           transport.ServerTransporter

	sm          *session.Manager
	connections *ConnectionRegistry
	wg          sync.WaitGroup

	mu         sync.Mutex
	sc         rx.Scheduler
	resumables map[string]*resumable
	closed     bool
	cancel     context.CancelFunc
	done       chan struct{}
}

func (p *server) Scheduler(scheduler rx.Scheduler) ServerBuilder {
	p.scheduler = scheduler
	return p
}

func (p *server) Fragment(mtu int) ServerBuilder {
	p.fragment = mtu
	return p
}

func (p *server) Lease(factory lease.Factory) ServerBuilder {
	p.leaseFactory = factory
	return p
}

func (p *server) Resume(opts ...ResumeOption) ServerBuilder {
	p.resume = newResumeOptions(opts)
	return p
}

func (p *server) Interceptors(registry *interceptor.Registry) ServerBuilder {
	p.interceptors = registry
	return p
}

func (p *server) Valve(rxRate, txRate int64) ServerBuilder {
	p.valve = transport.NewValve(rxRate, txRate)
	return p
}

func (p *server) ClientID(fn ClientIDFunc) ServerBuilder {
	p.clientID = fn
	return p
}

func (p *server) OnStart(fn func()) ServerBuilder {
	p.onStart = append(p.onStart, fn)
	return p
}

func (p *server) Acceptor(acceptor ServerAcceptor) ServerTransportBuilder {
	p.acceptor = acceptor
	return p
}

func (p *server) Transport(t transport.ServerTransporter) Server {
	p.tp = t
	return p
}

func (p *server) Connections() *ConnectionRegistry {
	return p.connections
}

func (p *server) Serve(ctx context.Context) error {
	return p.serve(ctx, nil)
}

func (p *server) Start(ctx context.Context) error {
	listening := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		errc <- p.serve(ctx, func() {
			close(listening)
		})
	}()
	select {
	case <-listening:
		go func() {
			if err := <-errc; err != nil {
				logger.Errorf("server stopped: %s\n", err)
			}
		}()
		return nil
	case err := <-errc:
		if err == nil {
			err = errServerStopped
		}
		return err
	}
}

func (p *server) Stop() error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return errServerNotStarted
	}
	cancel()
	<-done
	return nil
}

func (p *server) serve(ctx context.Context, listening func()) error {
	if p.acceptor == nil {
		return errMissingAcceptor
	}
	if p.tp == nil {
		return errMissingTransport
	}
	if err := fragmentation.CheckFragment(p.fragment); err != nil {
		return err
	}

	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return errServerStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel, p.done = cancel, make(chan struct{})
	done := p.done
	p.mu.Unlock()
	defer close(done)
	defer cancel()

	sc := p.scheduler
	if sc == nil {
		var err error
		if sc, err = rx.NewElasticScheduler(serverWorkerPoolSize); err != nil {
			return err
		}
		defer func() {
			_ = sc.Close()
		}()
	}
	p.mu.Lock()
	p.sc = sc
	p.mu.Unlock()

	t, err := p.tp(ctx)
	if err != nil {
		return err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.loopCleanSession(ctx)
	}()

	t.Accept(func(ctx context.Context, tp *transport.Transport, onClose func(*transport.Transport)) {
		defer onClose(tp)
		if !p.enter() {
			_ = tp.Close()
			return
		}
		defer p.wg.Done()
		p.handle(ctx, tp)
	})

	notifier := make(chan bool, 1)
	go func() {
		select {
		case ok := <-notifier:
			if !ok {
				return
			}
			if logger.IsDebugEnabled() {
				logger.Debugf("server is listening\n")
			}
			for _, fn := range p.onStart {
				fn()
			}
			if listening != nil {
				listening()
			}
		case <-ctx.Done():
		}
	}()

	err = t.Listen(ctx, notifier)

	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	cancel()
	_ = t.Close()
	p.wg.Wait()
	p.destroySessions()
	p.connections.Range(func(_ string, requester CloseableRSocket) bool {
		_ = requester.Close()
		return true
	})
	return err
}

// enter registers a connection handler unless the server is shutting down.
func (p *server) enter() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.wg.Add(1)
	return true
}

func (p *server) handle(ctx context.Context, tp *transport.Transport) {
	tp.SetValve(p.valve)
	first, err := tp.ReadFirst(ctx)
	if err != nil {
		logger.Errorf("read first frame failed: %s\n", err)
		_ = tp.Close()
		return
	}
	switch first.Type {
	case core.FrameTypeSetup:
		p.doSetup(ctx, first, tp)
	case core.FrameTypeResume:
		p.doResume(ctx, first, tp)
	default:
		reject(tp, core.ErrorCodeConnectionError, []byte("first frame must be setup or resume"))
	}
}

func reject(tp *transport.Transport, code core.ErrorCode, msg []byte) {
	if err := tp.Send(framing.NewErrorFrame(0, code, msg), true); err != nil {
		logger.Warnf("send %s failed: %s\n", code, err)
	}
	_ = tp.Close()
}

// setupError returns the code and the message a rejected setup is answered with.
func setupError(err error) (core.ErrorCode, []byte) {
	var e *core.Error
	if !errors.As(err, &e) {
		return core.ErrorCodeRejectedSetup, []byte(err.Error())
	}
	switch e.ErrorCode() {
	case core.ErrorCodeInvalidSetup, core.ErrorCodeUnsupportedSetup, core.ErrorCodeRejectedSetup:
		return e.ErrorCode(), e.ErrorData()
	default:
		return core.ErrorCodeRejectedSetup, e.ErrorData()
	}
}

func (p *server) doSetup(ctx context.Context, f *framing.Frame, tp *transport.Transport) {
	if !core.DefaultVersion.Compatible(f.Version) {
		msg := fmt.Sprintf("unsupported version %d.%d", f.Version.Major(), f.Version.Minor())
		reject(tp, core.ErrorCodeUnsupportedSetup, []byte(msg))
		return
	}
	isResume := f.HasFlag(core.FlagResume)
	if isResume && p.resume == nil {
		reject(tp, core.ErrorCodeUnsupportedSetup, []byte("resume not supported"))
		return
	}
	honorLease := f.HasFlag(core.FlagLease)
	if honorLease && p.leaseFactory == nil {
		reject(tp, core.ErrorCodeUnsupportedSetup, []byte("lease not supported"))
		return
	}

	p.mu.Lock()
	opts := socket.DuplexOptions{
		MTU:       p.fragment,
		Scheduler: p.sc,
		Resumable: isResume,
	}
	p.mu.Unlock()
	if honorLease {
		opts.LeaseFactory = p.leaseFactory
	}
	if isResume {
		opts.Ledger = p.resume.ledger()
	}
	conn := socket.NewServerDuplexConnection(opts)

	var ss socket.ServerSocket
	if isResume {
		token := common.CloneBytes(f.Token)
		ss = socket.NewResumableServerSocket(conn, token)
		if !p.storeResumable(token, ss, f.MaxLifetime) {
			_ = ss.Close()
			reject(tp, core.ErrorCodeRejectedSetup, []byte("duplicated setup token"))
			return
		}
	} else {
		ss = socket.NewSimpleServerSocket(conn)
	}

	requester := &requesterSocket{
		RSocket:   p.interceptors.WrapRequester(ss),
		closeable: ss,
	}
	setup := payload.NewSetupPayload(f)
	responder, err := p.interceptors.WrapAcceptor(p.acceptor)(ctx, setup, requester)
	if err != nil {
		logger.Warnf("setup rejected: %s\n", err)
		_ = ss.Close()
		code, msg := setupError(err)
		reject(tp, code, msg)
		return
	}
	ss.SetResponder(p.interceptors.WrapResponder(responder))
	if p.clientID != nil {
		if id := p.clientID(setup); id != "" {
			p.connections.register(id, requester)
		}
	}

	tp.SetLifetime(f.MaxLifetime)
	ss.SetTransport(tp)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := ss.Start(ctx); err != nil {
			logger.Warnf("server socket stopped: %s\n", err)
		}
	}()
	p.serveTransport(ctx, ss, tp)
}

// storeResumable keeps a resumable socket by its token until it is closed.
func (p *server) storeResumable(token []byte, ss socket.ServerSocket, lifetime time.Duration) bool {
	key := string(token)
	p.mu.Lock()
	if _, ok := p.resumables[key]; ok {
		p.mu.Unlock()
		return false
	}
	p.resumables[key] = &resumable{
		socket:   ss,
		lifetime: lifetime,
	}
	p.mu.Unlock()
	ss.OnClose(func(error) {
		p.mu.Lock()
		if r, ok := p.resumables[key]; ok && r.socket == ss {
			delete(p.resumables, key)
		}
		p.mu.Unlock()
		p.sm.Remove(token)
	})
	return true
}

func (p *server) doResume(ctx context.Context, f *framing.Frame, tp *transport.Transport) {
	if p.resume == nil {
		reject(tp, core.ErrorCodeRejectedResume, []byte("resume not supported"))
		return
	}
	p.mu.Lock()
	r, ok := p.resumables[string(f.Token)]
	p.mu.Unlock()
	if !ok {
		reject(tp, core.ErrorCodeRejectedResume, []byte("no such session"))
		return
	}
	p.sm.Remove(f.Token)
	if err := r.socket.Resume(tp, f.LastReceivedPosition, f.FirstAvailablePosition); err != nil {
		logger.Warnf("resume rejected: %s\n", err)
		msg := []byte(err.Error())
		var e *core.Error
		if errors.As(err, &e) {
			msg = e.ErrorData()
		}
		reject(tp, core.ErrorCodeRejectedResume, msg)
		_ = r.socket.Close()
		return
	}
	tp.SetLifetime(r.lifetime)
	if logger.IsDebugEnabled() {
		logger.Debugf("session resumed: %s\n", f.Token)
	}
	p.serveTransport(ctx, r.socket, tp)
}

// serveTransport reads tp until it is broken. A resumable session is kept for resume afterwards.
func (p *server) serveTransport(ctx context.Context, ss socket.ServerSocket, tp *transport.Transport) {
	err := tp.Start(ctx)
	if err != nil {
		logger.Warnf("transport exit: %s\n", err)
	}
	if !ss.Pause(tp, err) {
		return
	}
	s := session.NewSession(time.Now().Add(p.resume.SessionDuration), ss)
	p.sm.Push(s)
	if logger.IsDebugEnabled() {
		logger.Debugf("store session: %s\n", s)
	}
}

func (p *server) loopCleanSession(ctx context.Context) {
	tk := time.NewTicker(serverSessionCleanInterval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tk.C:
			for _, dead := range p.sm.Evict(now) {
				if err := dead.Close(); err != nil {
					logger.Warnf("close dead session failed: %s\n", err)
				} else if logger.IsDebugEnabled() {
					logger.Debugf("close dead session success: %s\n", dead)
				}
			}
		}
	}
}

func (p *server) destroySessions() {
	for s := p.sm.Pop(); s != nil; s = p.sm.Pop() {
		if err := s.Close(); err != nil {
			logger.Warnf("kill session failed: %s\n", err)
		} else if logger.IsDebugEnabled() {
			logger.Debugf("kill session success: %s\n", s)
		}
	}
}
