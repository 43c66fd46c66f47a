package transport

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/framing"
	"github.com/rsocket/rsocket-engine/internal/common"
	"github.com/rsocket/rsocket-engine/logger"
)

var errTransportClosed = errors.New("transport closed")

// FrameHandler is an alias of frame handler.
type FrameHandler = func(frame *framing.Frame) (err error)

// ServerTransportAcceptor is an alias of server transport handler.
type ServerTransportAcceptor = func(ctx context.Context, tp *Transport, onClose func(*Transport))

// ServerTransport is server-side RSocket transport.
type ServerTransport interface {
	io.Closer
	// Accept register incoming connection handler.
	Accept(acceptor ServerTransportAcceptor)
	// Listen listens on the network address addr and handles requests on incoming connections.
	// The notifier receives true when server begins listening, false if listen failed.
	// It blocks until the transport is closed or ctx is done.
	Listen(ctx context.Context, notifier chan<- bool) error
}

// EventType is the kind of incoming frame.
type EventType int

// Events of incoming frames.
const (
	OnSetup EventType = iota
	OnResume
	OnLease
	OnResumeOK
	OnFireAndForget
	OnMetadataPush
	OnRequestResponse
	OnRequestStream
	OnRequestChannel
	OnPayload
	OnRequestN
	OnError
	OnErrorWithZeroStreamID
	OnCancel
	OnKeepalive
	OnExt

	handlerLen = int(OnExt) + 1
)

type valved interface {
	SetValve(*Valve)
}

// Transport is RSocket transport which is used to carry RSocket frames.
type Transport struct {
	conn        Conn
	maxLifetime time.Duration
	once        sync.Once
	wmu         sync.Mutex
	handlers    [handlerLen]FrameHandler
}

// RegisterHandler registers the handler of an event.
func (p *Transport) RegisterHandler(event EventType, handler FrameHandler) {
	p.handlers[int(event)] = handler
}

// Connection returns current connection.
func (p *Transport) Connection() Conn {
	return p.conn
}

// SetLifetime set max lifetime for current transport.
// The connection is closed if nothing is received within lifetime.
func (p *Transport) SetLifetime(lifetime time.Duration) {
	if lifetime < 1 {
		return
	}
	p.maxLifetime = lifetime
}

// SetValve binds a rate limiter if the connection supports it.
func (p *Transport) SetValve(v *Valve) {
	if v == nil {
		return
	}
	if c, ok := p.conn.(valved); ok {
		c.SetValve(v)
	}
}

// Send send a frame.
func (p *Transport) Send(frame *framing.Frame, flush bool) (err error) {
	if p == nil || p.conn == nil {
		err = errTransportClosed
		return
	}
	p.wmu.Lock()
	defer p.wmu.Unlock()
	err = p.conn.Write(frame)
	if err != nil {
		return
	}
	if !flush {
		return
	}
	err = p.conn.Flush()
	return
}

// Flush flush all bytes in current connection.
func (p *Transport) Flush() (err error) {
	if p == nil || p.conn == nil {
		err = errTransportClosed
		return
	}
	p.wmu.Lock()
	err = p.conn.Flush()
	p.wmu.Unlock()
	return
}

// Close close current transport.
func (p *Transport) Close() (err error) {
	p.once.Do(func() {
		err = p.conn.Close()
	})
	return
}

// ReadFirst reads first frame.
func (p *Transport) ReadFirst(ctx context.Context) (frame *framing.Frame, err error) {
	select {
	case <-ctx.Done():
		err = ctx.Err()
	default:
		if deadline, ok := ctx.Deadline(); ok {
			_ = p.conn.SetDeadline(deadline)
		}
		frame, err = p.conn.Read()
		if err != nil {
			err = errors.Wrap(err, "read first frame failed")
		}
	}
	if err != nil {
		_ = p.Close()
	}
	return
}

// Start reads and dispatches frames until the connection is broken.
// A nil error is returned if the connection is closed normally.
func (p *Transport) Start(ctx context.Context) (err error) {
	defer p.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		var f *framing.Frame
		f, err = p.conn.Read()
		var decodeErr *core.DecodeError
		if errors.As(err, &decodeErr) {
			// the peer is told before the connection is dropped
			_ = p.Send(framing.NewErrorFrame(0, core.ErrorCodeConnectionError, []byte(decodeErr.Error())), true)
		}
		if err != nil {
			break
		}
		err = p.DispatchFrame(ctx, f)
		if err != nil {
			break
		}
	}
	if IsClosedErr(err) {
		return nil
	}
	return errors.Wrap(err, "read and delivery frame failed")
}

// frameEvents maps frame types to the events they trigger.
var frameEvents = map[core.FrameType]EventType{
	core.FrameTypeSetup:           OnSetup,
	core.FrameTypeResume:          OnResume,
	core.FrameTypeResumeOK:        OnResumeOK,
	core.FrameTypeLease:           OnLease,
	core.FrameTypeKeepalive:       OnKeepalive,
	core.FrameTypeRequestFNF:      OnFireAndForget,
	core.FrameTypeMetadataPush:    OnMetadataPush,
	core.FrameTypeRequestResponse: OnRequestResponse,
	core.FrameTypeRequestStream:   OnRequestStream,
	core.FrameTypeRequestChannel:  OnRequestChannel,
	core.FrameTypePayload:         OnPayload,
	core.FrameTypeRequestN:        OnRequestN,
	core.FrameTypeError:           OnError,
	core.FrameTypeCancel:          OnCancel,
	core.FrameTypeExt:             OnExt,
}

// DispatchFrame hands an incoming frame to the handler of its event.
// A connection level ERROR is returned as error after its handler is called.
func (p *Transport) DispatchFrame(_ context.Context, frame *framing.Frame) error {
	event, ok := frameEvents[frame.Type]
	if !ok {
		return errors.Errorf("unexpected frame: type=%s", frame.Type)
	}
	switch {
	case event == OnSetup:
		p.SetLifetime(frame.MaxLifetime)
	case event == OnError && frame.StreamID == 0:
		if handler := p.handlers[OnErrorWithZeroStreamID]; handler != nil {
			_ = handler(frame)
		}
		return frame.ToError()
	case event == OnExt && p.handlers[OnExt] == nil:
		logger.Debugf("omit extension frame: type=%d\n", frame.ExtendedType)
		return nil
	}

	if err := p.conn.SetDeadline(time.Now().Add(p.maxLifetime)); err != nil {
		return err
	}
	handler := p.handlers[event]
	if handler == nil {
		return errors.Errorf("missing frame handler: type=%s", frame.Type)
	}
	if err := handler(frame); err != nil {
		return errors.Wrap(err, "exec frame handler failed")
	}
	return nil
}

// NewTransport creates a transport over a connection.
func NewTransport(c Conn) *Transport {
	return &Transport{
		conn:        c,
		maxLifetime: common.DefaultKeepaliveMaxLifetime,
	}
}
