package socket

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/framing"
	"github.com/rsocket/rsocket-engine/core/transport"
	"github.com/rsocket/rsocket-engine/internal/fragmentation"
	"github.com/rsocket/rsocket-engine/lease"
	"github.com/rsocket/rsocket-engine/logger"
	"github.com/rsocket/rsocket-engine/rx"
	"go.uber.org/atomic"
)

const closeDrainTimeout = time.Second

var (
	errNoStreamID        = errors.New("no stream id available")
	errWriteLoopStarted  = errors.New("write loop started already")
	errResumeUnavailable = errors.New("resume is not enabled")
)

// DuplexOptions configures a DuplexConnection.
type DuplexOptions struct {
	// MTU enables fragmentation when positive.
	MTU int
	// Scheduler runs responder handlers, the elastic scheduler is used by default.
	Scheduler rx.Scheduler
	// KeepaliveInterval enables sending KEEPALIVE frames when positive.
	KeepaliveInterval time.Duration
	// HonorLease makes requests wait for leases issued by the peer.
	HonorLease bool
	// LeaseFactory issues leases to the peer and enforces them on incoming requests.
	LeaseFactory lease.Factory
	// OnLease observes received leases.
	OnLease func(lease.Lease)
	// OnViolation observes protocol violations of the peer, the session keeps running.
	OnViolation func(*core.ProtocolViolation)
	// Resumable keeps written frames for resume.
	Resumable bool
	// Ledger bounds the frames kept for resume.
	Ledger LedgerOptions
}

type outFrame struct {
	f *framing.Frame
	// recorded in ledger already
	recorded bool
}

// DuplexConnection is a session which can be a requester and a responder at the same time.
// It owns the stream table, the stream id counter and the resume ledger.
type DuplexConnection struct {
	server    bool
	mtu       int
	scheduler rx.Scheduler
	counter   *core.TrafficCounter
	leaseHook func(lease.Lease)
	onViolate func(*core.ProtocolViolation)
	factory   lease.Factory

	mu        sync.Mutex
	cond      *sync.Cond
	state     SessionState
	closing   bool
	tp        *transport.Transport
	outs      []outFrame
	kaPending bool
	streams   map[uint32]*stream
	joiners   map[uint32]*fragmentation.Joiner
	sids      *streamIDs
	ledger    *ledger
	fatal     error
	responder RSocket
	observers []func(*framing.Frame)
	closers   []func(error)

	reqLease    *lease.Controller
	issuedLease *lease.Controller
	keepaliver  *Keepaliver

	ctx         context.Context
	cancel      context.CancelFunc
	loopStarted *atomic.Bool
	done        chan struct{}
	closeOnce   sync.Once
}

// NewClientDuplexConnection creates a client-side session which allocates odd stream ids.
func NewClientDuplexConnection(opts DuplexOptions) *DuplexConnection {
	return newDuplexConnection(false, opts)
}

// NewServerDuplexConnection creates a server-side session which allocates even stream ids.
func NewServerDuplexConnection(opts DuplexOptions) *DuplexConnection {
	return newDuplexConnection(true, opts)
}

func newDuplexConnection(server bool, opts DuplexOptions) *DuplexConnection {
	ctx, cancel := context.WithCancel(context.Background())
	p := &DuplexConnection{
		server:      server,
		mtu:         opts.MTU,
		scheduler:   opts.Scheduler,
		counter:     core.NewTrafficCounter(),
		leaseHook:   opts.OnLease,
		onViolate:   opts.OnViolation,
		factory:     opts.LeaseFactory,
		state:       SessionConnecting,
		streams:     make(map[uint32]*stream),
		joiners:     make(map[uint32]*fragmentation.Joiner),
		sids:        newStreamIDs(server),
		ctx:         ctx,
		cancel:      cancel,
		loopStarted: atomic.NewBool(false),
		done:        make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	if p.scheduler == nil {
		p.scheduler = rx.ElasticScheduler()
	}
	if opts.Resumable {
		p.ledger = newLedger(opts.Ledger)
	}
	if opts.HonorLease {
		p.reqLease = lease.NewController()
	}
	if opts.LeaseFactory != nil {
		p.issuedLease = lease.NewController()
	}
	if opts.KeepaliveInterval > 0 {
		p.keepaliver = NewKeepaliver(opts.KeepaliveInterval)
	}
	return p
}

// SetResponder sets the handler of requests from the peer.
func (p *DuplexConnection) SetResponder(responder RSocket) {
	p.mu.Lock()
	p.responder = responder
	p.mu.Unlock()
}

// State returns the session state.
func (p *DuplexConnection) State() SessionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Counter returns the counter of resumable bytes read from the peer.
func (p *DuplexConnection) Counter() *core.TrafficCounter {
	return p.counter
}

// Context is done once the session is closed.
func (p *DuplexConnection) Context() context.Context {
	return p.ctx
}

// OnFrame registers an observer of every incoming frame.
// Observers run in the read loop and must not block.
func (p *DuplexConnection) OnFrame(fn func(*framing.Frame)) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	p.observers = append(p.observers, fn)
	p.mu.Unlock()
}

// OnClose registers a handler called once the session is closed.
// The error is nil for a normal close.
func (p *DuplexConnection) OnClose(fn func(error)) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	p.closers = append(p.closers, fn)
	p.mu.Unlock()
}

// ActiveStreams returns the number of streams in the stream table.
func (p *DuplexConnection) ActiveStreams() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.streams)
}

// StreamState returns the state of an active stream.
func (p *DuplexConnection) StreamState(id uint32) (state StreamState, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.streams[id]
	if !ok {
		return
	}
	return st.state, true
}

// Send enqueues a raw frame, it is fragmented if needed.
func (p *DuplexConnection) Send(f *framing.Frame) error {
	frames, err := p.split(f)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enqueueLocked(frames...) {
		return core.ErrSocketClosed
	}
	return nil
}

// SetTransport binds a transport and uses it for writing.
func (p *DuplexConnection) SetTransport(tp *transport.Transport) {
	p.bind(tp)
	p.attach(tp, nil)
}

func (p *DuplexConnection) bind(tp *transport.Transport) {
	tp.Connection().SetCounter(p.counter)
	tp.RegisterHandler(transport.OnSetup, p.observed(p.onUnexpected))
	tp.RegisterHandler(transport.OnResume, p.observed(p.onUnexpected))
	tp.RegisterHandler(transport.OnResumeOK, p.observed(p.onUnexpected))
	tp.RegisterHandler(transport.OnFireAndForget, p.observed(p.onRequest))
	tp.RegisterHandler(transport.OnRequestResponse, p.observed(p.onRequest))
	tp.RegisterHandler(transport.OnRequestStream, p.observed(p.onRequest))
	tp.RegisterHandler(transport.OnRequestChannel, p.observed(p.onRequest))
	tp.RegisterHandler(transport.OnMetadataPush, p.observed(p.onMetadataPush))
	tp.RegisterHandler(transport.OnPayload, p.observed(p.onPayload))
	tp.RegisterHandler(transport.OnRequestN, p.observed(p.onRequestN))
	tp.RegisterHandler(transport.OnCancel, p.observed(p.onCancel))
	tp.RegisterHandler(transport.OnError, p.observed(p.onError))
	tp.RegisterHandler(transport.OnErrorWithZeroStreamID, p.observed(p.onConnectionError))
	tp.RegisterHandler(transport.OnKeepalive, p.observed(p.onKeepalive))
	tp.RegisterHandler(transport.OnLease, p.observed(p.onLease))
}

func (p *DuplexConnection) observed(handler transport.FrameHandler) transport.FrameHandler {
	return func(f *framing.Frame) error {
		p.mu.Lock()
		observers := p.observers
		p.mu.Unlock()
		for _, fn := range observers {
			fn(f)
		}
		return handler(f)
	}
}

// attach uses tp for writing, frames in prefix are written before the queued ones.
func (p *DuplexConnection) attach(tp *transport.Transport, prefix []outFrame) {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		_ = tp.Close()
		return
	}
	old := p.tp
	p.tp = tp
	if len(prefix) > 0 {
		p.outs = append(prefix, p.outs...)
	}
	p.state = SessionActive
	p.cond.Broadcast()
	p.mu.Unlock()
	if old != nil && old != tp {
		_ = old.Close()
	}
}

// transportLost detaches a broken transport and returns the session state after it.
func (p *DuplexConnection) transportLost(tp *transport.Transport, cause error) SessionState {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return SessionClosed
	}
	if p.tp != nil && p.tp != tp {
		// superseded by a resumed transport
		state := p.state
		p.mu.Unlock()
		return state
	}
	p.tp = nil
	fatal := p.fatal
	var decodeErr *core.DecodeError
	if p.ledger != nil && fatal == nil && !errors.As(cause, &decodeErr) {
		p.state = SessionResuming
		p.mu.Unlock()
		if cause != nil {
			logger.Warnf("session is resuming: %s\n", cause)
		}
		return SessionResuming
	}
	p.mu.Unlock()
	switch {
	case fatal != nil:
		cause = fatal
	case cause == nil:
		cause = core.NewTransportError(errors.New("connection closed by peer"))
	default:
		cause = core.NewTransportError(cause)
	}
	_ = p.closeWith(cause)
	return SessionClosed
}

func (p *DuplexConnection) send(f *framing.Frame) bool {
	frames, err := p.split(f)
	if err != nil {
		logger.Errorf("drop frame of stream %d: %s\n", f.StreamID, err)
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enqueueLocked(frames...)
}

func (p *DuplexConnection) enqueueLocked(frames ...*framing.Frame) bool {
	if p.closing {
		return false
	}
	for _, f := range frames {
		p.outs = append(p.outs, outFrame{f: f})
	}
	p.cond.Broadcast()
	return true
}

// LoopWrite writes queued frames until the session is closed.
// Frames queued while no transport is attached are kept for the next one.
func (p *DuplexConnection) LoopWrite(ctx context.Context) error {
	if !p.loopStarted.CompareAndSwap(false, true) {
		if p.ctx.Err() != nil {
			// closed before the loop started, queued frames were flushed by Close
			return nil
		}
		return errWriteLoopStarted
	}
	defer close(p.done)

	go func() {
		select {
		case <-ctx.Done():
			_ = p.closeWith(ctx.Err())
		case <-p.ctx.Done():
		}
	}()
	if p.keepaliver != nil {
		go p.loopKeepalive()
	}
	if p.issuedLease != nil {
		go p.loopLease()
	}

	p.drain()
	return nil
}

// drain sends queued frames until the session is closed and nothing is left to send.
func (p *DuplexConnection) drain() {
	for {
		tp, out, flush, ok := p.nextOut()
		if !ok {
			return
		}
		if err := tp.Send(out.f, flush); err != nil {
			logger.Warnf("send frame failed: %s\n", err)
			p.writeFailed(tp, out)
		}
	}
}

func (p *DuplexConnection) nextOut() (tp *transport.Transport, out outFrame, flush bool, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.tp == nil || (len(p.outs) == 0 && !p.kaPending) {
		if p.closing {
			return
		}
		p.cond.Wait()
	}
	tp = p.tp
	if p.kaPending {
		p.kaPending = false
		out.f = framing.NewKeepaliveFrame(p.counter.ReadBytes(), nil, true)
	} else {
		out = p.outs[0]
		p.outs[0] = outFrame{}
		p.outs = p.outs[1:]
		if p.ledger != nil && !out.recorded && out.f.Resumable() {
			p.ledger.append(out.f)
			out.recorded = true
		}
	}
	flush = len(p.outs) == 0
	ok = true
	return
}

// writeFailed drops the broken transport. Recorded frames are replayed by resume.
func (p *DuplexConnection) writeFailed(tp *transport.Transport, out outFrame) {
	p.mu.Lock()
	if !out.recorded && out.f.Type != core.FrameTypeKeepalive && !p.closing {
		p.outs = append([]outFrame{out}, p.outs...)
	}
	if p.tp == tp {
		p.tp = nil
	}
	p.mu.Unlock()
	_ = tp.Close()
}

func (p *DuplexConnection) loopKeepalive() {
	for {
		select {
		case <-p.keepaliver.Done():
			return
		case <-p.ctx.Done():
			return
		case <-p.keepaliver.C():
			p.mu.Lock()
			if p.tp != nil {
				p.kaPending = true
				p.cond.Broadcast()
			}
			p.mu.Unlock()
		}
	}
}

func (p *DuplexConnection) loopLease() {
	ch, ok := p.factory.Next(p.ctx)
	if !ok {
		return
	}
	for next := range ch {
		p.issuedLease.Refresh(next.TimeToLive, next.NumberOfRequests)
		if !p.send(framing.NewLeaseFrame(next.TimeToLive, next.NumberOfRequests, next.Metadata)) {
			return
		}
		if logger.IsDebugEnabled() {
			logger.Debugf("lease issued: ttl=%s, requests=%d\n", next.TimeToLive, next.NumberOfRequests)
		}
	}
}

// Close closes the session normally.
func (p *DuplexConnection) Close() error {
	return p.closeWith(nil)
}

// closeWith closes the session, every active stream fails with a session error wrapping cause.
func (p *DuplexConnection) closeWith(cause error) (err error) {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closing = true
		p.state = SessionClosed
		streams := p.streams
		joiners := p.joiners
		p.streams = make(map[uint32]*stream)
		p.joiners = make(map[uint32]*fragmentation.Joiner)
		p.cond.Broadcast()
		p.mu.Unlock()

		if p.keepaliver != nil {
			p.keepaliver.Stop()
		}
		p.cancel()

		// flush what is queued, in place of a write loop which has not started yet
		if p.loopStarted.CompareAndSwap(false, true) {
			go func() {
				defer close(p.done)
				p.drain()
			}()
		}
		select {
		case <-p.done:
		case <-time.After(closeDrainTimeout):
		}
		p.mu.Lock()
		tp := p.tp
		p.tp = nil
		p.mu.Unlock()
		if tp != nil {
			err = tp.Close()
		}
		<-p.done

		reason := cause
		if reason == nil {
			reason = core.ErrSocketClosed
		}
		sessionErr := core.NewSessionError(reason)
		for _, st := range streams {
			p.mu.Lock()
			st.terminate(StreamError)
			p.mu.Unlock()
			if st.mono != nil {
				st.mono.Error(sessionErr)
			}
			if st.inbound != nil {
				st.inbound.Error(sessionErr)
			}
		}
		for _, j := range joiners {
			j.Release()
		}

		p.mu.Lock()
		closers := p.closers
		p.mu.Unlock()
		for i := len(closers) - 1; i >= 0; i-- {
			func(fn func(error)) {
				defer func() {
					if rec := recover(); rec != nil {
						logger.Errorf("handle socket closer failed: %v\n", rec)
					}
				}()
				fn(cause)
			}(closers[i])
		}
	})
	return
}
