package socket

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/framing"
	"github.com/rsocket/rsocket-engine/internal/fragmentation"
	"github.com/rsocket/rsocket-engine/logger"
	"github.com/rsocket/rsocket-engine/payload"
	"github.com/rsocket/rsocket-engine/rx"
	"go.uber.org/atomic"
)

var (
	errMissingMetadata = errors.New("metadata push requires metadata")
	errStreamGone      = errors.New("stream is gone")
)

// split fragments f by the MTU and validates every fragment.
// A frame which can not be written fails alone instead of breaking the transport.
func (p *DuplexConnection) split(f *framing.Frame) ([]*framing.Frame, error) {
	frames := fragmentation.SplitFrame(p.mtu, f)
	for _, it := range frames {
		if err := it.Validate(); err != nil {
			return nil, errors.Wrapf(err, "invalid %s", f.Type)
		}
	}
	return frames, nil
}

// openStream allocates a stream id, takes a lease ticket, registers the stream and enqueues
// its request frame atomically. No lease ticket is taken if it fails.
// A nil init is used for streams which are not retained, like fire-and-forget.
func (p *DuplexConnection) openStream(
	model Model,
	request func(id uint32) *framing.Frame,
	init func(st *stream),
) (*stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closing {
		return nil, core.ErrSocketClosed
	}
	id, ok := p.sids.next(func(id uint32) bool {
		_, used := p.streams[id]
		return used
	})
	if !ok {
		return nil, errNoStreamID
	}
	frames, err := p.split(request(id))
	if err != nil {
		return nil, err
	}
	if err := p.reqLease.Allow(); err != nil {
		return nil, err
	}
	st := newStream(id, model, true)
	st.state = StreamRequested
	st.ctx, st.cancel = context.WithCancel(p.ctx)
	if init != nil {
		init(st)
	}
	p.enqueueLocked(frames...)
	st.state = model.openState()
	if model == ModelFireAndForget {
		st.cancel()
	} else {
		p.streams[id] = st
	}
	return st, nil
}

// FireAndForget sends a one-way message. No stream is retained after sending.
func (p *DuplexConnection) FireAndForget(_ context.Context, msg payload.Payload) error {
	data := msg.Data()
	metadata, _ := msg.Metadata()
	_, err := p.openStream(ModelFireAndForget, func(id uint32) *framing.Frame {
		return framing.NewFireAndForgetFrame(id, data, metadata, 0)
	}, nil)
	return err
}

// MetadataPush sends connection level metadata.
func (p *DuplexConnection) MetadataPush(_ context.Context, msg payload.Payload) error {
	metadata, ok := msg.Metadata()
	if !ok {
		return errMissingMetadata
	}
	frames, err := p.split(framing.NewMetadataPushFrame(metadata))
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

// RequestResponse sends a request and returns the future of its response.
// The request is sent at once, a lease violation fails the returned Mono without sending anything.
func (p *DuplexConnection) RequestResponse(_ context.Context, msg payload.Payload) *rx.Mono {
	sid := atomic.NewUint32(0)
	mono, sink := rx.NewMonoProcessor(func() {
		p.cancelStream(sid.Load())
	})
	data := msg.Data()
	metadata, _ := msg.Metadata()
	st, err := p.openStream(ModelRequestResponse, func(id uint32) *framing.Frame {
		return framing.NewRequestResponseFrame(id, data, metadata, 0)
	}, func(st *stream) {
		st.mono = &sink
	})
	if err != nil {
		sink.Error(err)
		return mono
	}
	sid.Store(st.id)
	return mono
}

// RequestStream returns a lazy sequence. The request is sent on first consumption with the demand of the consumer.
func (p *DuplexConnection) RequestStream(_ context.Context, msg payload.Payload) *rx.Flux {
	sid := atomic.NewUint32(0)
	data := msg.Data()
	metadata, _ := msg.Metadata()
	var sink *rx.FluxSink
	var flux *rx.Flux
	flux, sink = rx.NewFluxProcessor(rx.FluxHooks{
		OnStart: func(n uint32) {
			st, err := p.openStream(ModelRequestStream, func(id uint32) *framing.Frame {
				return framing.NewRequestStreamFrame(id, n, data, metadata, 0)
			}, func(st *stream) {
				st.inbound = sink
			})
			if err != nil {
				sink.Error(err)
				return
			}
			sid.Store(st.id)
		},
		OnRequest: func(n uint32) {
			p.requestN(sid.Load(), n)
		},
		OnCancel: func() {
			p.cancelStream(sid.Load())
		},
	})
	return flux
}

// RequestChannel returns the inbound sequence of a channel whose outbound payloads are taken from msgs.
// The request frame carries the first outbound payload and is sent on first consumption.
func (p *DuplexConnection) RequestChannel(_ context.Context, msgs *rx.Flux) *rx.Flux {
	sid := atomic.NewUint32(0)
	cancelled := atomic.NewBool(false)
	var sink *rx.FluxSink
	var flux *rx.Flux
	flux, sink = rx.NewFluxProcessor(rx.FluxHooks{
		OnStart: func(n uint32) {
			if p.State() == SessionClosed {
				msgs.Cancel()
				sink.Error(core.ErrSocketClosed)
				return
			}
			err := p.scheduler.Do(p.ctx, func(ctx context.Context) {
				p.startChannel(ctx, sid, cancelled, n, msgs, sink)
			})
			if err != nil {
				msgs.Cancel()
				sink.Error(err)
			}
		},
		OnRequest: func(n uint32) {
			p.requestN(sid.Load(), n)
		},
		OnCancel: func() {
			cancelled.Store(true)
			if id := sid.Load(); id != 0 {
				p.cancelStream(id)
			} else {
				msgs.Cancel()
			}
		},
	})
	return flux
}

func (p *DuplexConnection) startChannel(
	ctx context.Context,
	sid *atomic.Uint32,
	cancelled *atomic.Bool,
	n uint32,
	msgs *rx.Flux,
	sink *rx.FluxSink,
) {
	first, err := msgs.Next(ctx)
	var fg core.FrameFlag
	var data, metadata []byte
	switch {
	case err == io.EOF:
		fg = core.FlagComplete
	case err != nil:
		sink.Error(err)
		return
	default:
		data = first.Data()
		metadata, _ = first.Metadata()
	}
	if cancelled.Load() {
		msgs.Cancel()
		return
	}
	st, err := p.openStream(ModelRequestChannel, func(id uint32) *framing.Frame {
		return framing.NewRequestChannelFrame(id, n, data, metadata, fg)
	}, func(st *stream) {
		st.inbound = sink
		st.outDone = fg.Check(core.FlagComplete)
	})
	if err != nil {
		msgs.Cancel()
		sink.Error(err)
		return
	}
	sid.Store(st.id)
	// a cancel which has not seen the id yet is applied here
	if cancelled.Load() {
		p.cancelStream(st.id)
		msgs.Cancel()
		return
	}
	if !st.outDone {
		p.pump(st.ctx, st, msgs)
	}
}

// pump writes outbound payloads of a stream as long as the peer grants demand.
// Completion and errors are sent without demand.
func (p *DuplexConnection) pump(ctx context.Context, st *stream, out *rx.Flux) {
	for {
		item, err := out.Next(ctx)
		if err == io.EOF {
			p.emitComplete(st)
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				p.emitError(st, err)
			}
			return
		}
		if !p.waitCredit(ctx, st) {
			out.Cancel()
			return
		}
		if err := p.emitNext(st, item, false); err != nil {
			out.Cancel()
			if err != errStreamGone {
				p.emitError(st, err)
			}
			return
		}
	}
}

func (p *DuplexConnection) waitCredit(ctx context.Context, st *stream) bool {
	for {
		p.mu.Lock()
		if st.state.Terminal() || st.outDone {
			p.mu.Unlock()
			return false
		}
		if st.takeCredit() {
			p.mu.Unlock()
			return true
		}
		p.mu.Unlock()
		select {
		case <-st.creditC:
		case <-ctx.Done():
			return false
		}
	}
}

// requestN grants the peer more demand on an active stream.
func (p *DuplexConnection) requestN(id uint32, n uint32) {
	if id == 0 || n == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.streams[id]
	if !ok || st.inDone || st.state.Terminal() {
		return
	}
	p.enqueueLocked(framing.NewRequestNFrame(id, n))
}

// cancelStream terminates a local stream and asks the peer to stop.
func (p *DuplexConnection) cancelStream(id uint32) {
	if id == 0 {
		return
	}
	p.mu.Lock()
	st, ok := p.streams[id]
	if !ok || st.state.Terminal() {
		p.mu.Unlock()
		return
	}
	st.terminate(StreamCancelled)
	delete(p.streams, id)
	if j, ok := p.joiners[id]; ok {
		j.Release()
		delete(p.joiners, id)
	}
	p.enqueueLocked(framing.NewCancelFrame(id))
	p.mu.Unlock()
	if logger.IsDebugEnabled() {
		logger.Debugf("stream %d cancelled\n", id)
	}
}

// emitNext sends an outbound payload. It returns errStreamGone if the stream is gone,
// or the error of a payload which can not be written.
func (p *DuplexConnection) emitNext(st *stream, item payload.Payload, complete bool) error {
	fg := core.FlagNext
	if complete {
		fg |= core.FlagComplete
	}
	var data, metadata []byte
	if item != nil {
		data = item.Data()
		metadata, _ = item.Metadata()
	}
	frames, err := p.split(framing.NewPayloadFrame(st.id, data, metadata, fg))
	p.mu.Lock()
	defer p.mu.Unlock()
	if st.state.Terminal() || st.outDone || p.streams[st.id] != st {
		return errStreamGone
	}
	if err != nil {
		return err
	}
	if complete && st.completeOutbound() {
		delete(p.streams, st.id)
	}
	if !p.enqueueLocked(frames...) {
		return errStreamGone
	}
	return nil
}

// emitComplete completes the outbound direction.
func (p *DuplexConnection) emitComplete(st *stream) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st.state.Terminal() || st.outDone || p.streams[st.id] != st {
		return
	}
	if st.completeOutbound() {
		delete(p.streams, st.id)
	}
	p.enqueueLocked(framing.NewPayloadFrame(st.id, nil, nil, core.FlagComplete))
}

// emitError fails a stream in both directions.
func (p *DuplexConnection) emitError(st *stream, err error) {
	p.mu.Lock()
	if st.state.Terminal() || p.streams[st.id] != st {
		p.mu.Unlock()
		return
	}
	inbound := st.inbound
	inDone := st.inDone
	st.terminate(StreamError)
	delete(p.streams, st.id)
	p.enqueueLocked(framing.NewErrorFrameFromError(st.id, err))
	p.mu.Unlock()
	if inbound != nil && !inDone {
		inbound.Error(err)
	}
}
