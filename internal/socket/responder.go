package socket

import (
	"context"
	"fmt"

	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/framing"
	"github.com/rsocket/rsocket-engine/internal/common"
	"github.com/rsocket/rsocket-engine/internal/fragmentation"
	"github.com/rsocket/rsocket-engine/lease"
	"github.com/rsocket/rsocket-engine/logger"
	"github.com/rsocket/rsocket-engine/payload"
	"github.com/rsocket/rsocket-engine/rx"
)

var errNoResponder = core.NewApplicationError("no responder")

func modelOf(t core.FrameType) Model {
	switch t {
	case core.FrameTypeRequestResponse:
		return ModelRequestResponse
	case core.FrameTypeRequestStream:
		return ModelRequestStream
	case core.FrameTypeRequestChannel:
		return ModelRequestChannel
	default:
		return ModelFireAndForget
	}
}

// connectionError sends a zero-stream ERROR and closes the session with it.
func (p *DuplexConnection) connectionError(err *core.Error) error {
	p.mu.Lock()
	if p.fatal == nil {
		p.fatal = err
	}
	p.enqueueLocked(framing.NewErrorFrame(0, err.ErrorCode(), err.ErrorData()))
	p.mu.Unlock()
	logger.Errorf("connection error: %s\n", err)
	_ = p.closeWith(err)
	return err
}

func (p *DuplexConnection) violation(sid uint32, format string, args ...interface{}) {
	err := &core.ProtocolViolation{StreamID: sid, Reason: fmt.Sprintf(format, args...)}
	logger.Warnf("%s\n", err)
	if p.onViolate != nil {
		p.onViolate(err)
	}
}

func (p *DuplexConnection) onUnexpected(f *framing.Frame) error {
	msg := fmt.Sprintf("unexpected frame %s", f.Type)
	return p.connectionError(core.NewError(core.ErrorCodeConnectionError, []byte(msg)))
}

func (p *DuplexConnection) onRequest(f *framing.Frame) error {
	if !f.HasFlag(core.FlagFollow) {
		p.respond(f)
		return nil
	}
	p.mu.Lock()
	if j, ok := p.joiners[f.StreamID]; ok {
		j.Release()
		p.violation(f.StreamID, "request overlaps unfinished fragments")
	}
	p.joiners[f.StreamID] = fragmentation.NewJoiner(f)
	p.mu.Unlock()
	return nil
}

// respond serves a complete request frame of the peer.
func (p *DuplexConnection) respond(f *framing.Frame) {
	sid := f.StreamID
	model := modelOf(f.Type)
	if (sid&1 == 1) != p.server {
		p.violation(sid, "stream id %d can not be allocated by the peer", sid)
		if model != ModelFireAndForget {
			p.send(framing.NewErrorFrame(sid, core.ErrorCodeInvalid, []byte("invalid stream id")))
		}
		return
	}
	if err := p.issuedLease.Allow(); err != nil {
		if model == ModelFireAndForget {
			logger.Warnf("drop %s of stream %d: %s\n", f.Type, sid, err)
			return
		}
		p.send(framing.NewErrorFrame(sid, core.ErrorCodeRejected, []byte(err.Error())))
		return
	}

	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return
	}
	if _, ok := p.streams[sid]; ok {
		p.mu.Unlock()
		p.violation(sid, "stream is active already")
		return
	}
	responder := p.responder
	st := newStream(sid, model, false)
	st.state = StreamRequested
	st.ctx, st.cancel = context.WithCancel(withStreamID(p.ctx, sid))
	var inbound *rx.Flux
	switch model {
	case ModelRequestStream:
		st.addCredit(f.InitialRequestN)
	case ModelRequestChannel:
		st.addCredit(f.InitialRequestN)
		inbound, st.inbound = p.newChannelInbound(sid)
	}
	st.state = model.openState()
	if model != ModelFireAndForget {
		p.streams[sid] = st
	}
	p.mu.Unlock()

	if model == ModelRequestChannel {
		complete := f.HasFlag(core.FlagComplete)
		if !complete || len(f.Data) > 0 || f.Metadata != nil {
			_ = st.inbound.Next(payload.New(f.Data, f.Metadata))
		}
		if complete {
			p.mu.Lock()
			st.completeInbound()
			p.mu.Unlock()
			st.inbound.Complete()
		}
	}

	msg := payload.New(f.Data, f.Metadata)
	err := p.scheduler.Do(st.ctx, func(ctx context.Context) {
		p.serve(ctx, st, responder, msg, inbound)
	})
	if err != nil {
		logger.Errorf("schedule %s of stream %d failed: %s\n", f.Type, sid, err)
		if model != ModelFireAndForget {
			p.emitError(st, core.NewApplicationError(err.Error()))
		}
		st.cancel()
	}
}

func (p *DuplexConnection) newChannelInbound(sid uint32) (*rx.Flux, *rx.FluxSink) {
	return rx.NewFluxProcessor(rx.FluxHooks{
		OnStart: func(n uint32) {
			// the request frame carried the first payload
			if n > 1 && n < rx.RequestMax {
				n--
			}
			p.requestN(sid, n)
		},
		OnRequest: func(n uint32) {
			p.requestN(sid, n)
		},
		OnCancel: func() {
			p.cancelInbound(sid)
		},
	})
}

// cancelInbound stops the payloads of the peer on a responder channel.
// A channel whose outbound is done too is cancelled as a whole.
func (p *DuplexConnection) cancelInbound(sid uint32) {
	p.mu.Lock()
	st, ok := p.streams[sid]
	if !ok || st.inDone || st.state.Terminal() {
		p.mu.Unlock()
		return
	}
	if st.outDone {
		p.mu.Unlock()
		p.cancelStream(sid)
		return
	}
	st.inDone = true
	p.enqueueLocked(framing.NewCancelFrame(sid))
	p.mu.Unlock()
}

// serve runs a responder handler, it is called on the scheduler.
func (p *DuplexConnection) serve(ctx context.Context, st *stream, responder RSocket, msg payload.Payload, inbound *rx.Flux) {
	defer func() {
		if rec := recover(); rec != nil {
			err := common.ToError(rec)
			logger.Errorf("handle %s of stream %d failed: %s\n", st.model, st.id, err)
			if st.model != ModelFireAndForget {
				p.emitError(st, err)
			}
		}
	}()
	if responder == nil {
		if st.model != ModelFireAndForget {
			p.emitError(st, errNoResponder)
		}
		return
	}
	switch st.model {
	case ModelFireAndForget:
		defer st.cancel()
		if err := responder.FireAndForget(ctx, msg); err != nil {
			logger.Warnf("handle %s of stream %d failed: %s\n", st.model, st.id, err)
		}
	case ModelRequestResponse:
		mono := responder.RequestResponse(ctx, msg)
		if mono == nil {
			p.emitError(st, errUnimplementedRequestResponse)
			return
		}
		res, err := mono.Block(ctx)
		switch {
		case ctx.Err() != nil:
		case err != nil:
			p.emitError(st, err)
		case res == nil:
			p.emitComplete(st)
		default:
			if err := p.emitNext(st, res, true); err != nil && err != errStreamGone {
				p.emitError(st, err)
			}
		}
	case ModelRequestStream:
		flux := responder.RequestStream(ctx, msg)
		if flux == nil {
			p.emitError(st, errUnimplementedRequestStream)
			return
		}
		p.pump(ctx, st, flux)
	case ModelRequestChannel:
		flux := responder.RequestChannel(ctx, inbound)
		if flux == nil {
			inbound.Cancel()
			p.emitError(st, errUnimplementedRequestChannel)
			return
		}
		p.pump(ctx, st, flux)
		if !inbound.Started() {
			// nobody is going to consume what the peer sends
			inbound.Cancel()
		}
	}
}

func (p *DuplexConnection) onMetadataPush(f *framing.Frame) error {
	p.mu.Lock()
	responder := p.responder
	p.mu.Unlock()
	if responder == nil {
		return nil
	}
	msg := payload.New(nil, f.Metadata)
	err := p.scheduler.Do(p.ctx, func(ctx context.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Errorf("handle METADATA_PUSH failed: %s\n", common.ToError(rec))
			}
		}()
		if err := responder.MetadataPush(ctx, msg); err != nil {
			logger.Warnf("handle METADATA_PUSH failed: %s\n", err)
		}
	})
	if err != nil {
		logger.Errorf("schedule METADATA_PUSH failed: %s\n", err)
	}
	return nil
}

func (p *DuplexConnection) onPayload(f *framing.Frame) error {
	sid := f.StreamID
	p.mu.Lock()
	j, ok := p.joiners[sid]
	switch {
	case ok:
		done, err := j.Push(f)
		if err != nil {
			delete(p.joiners, sid)
			p.mu.Unlock()
			j.Release()
			p.violation(sid, "%s", err)
			return nil
		}
		if !done {
			p.mu.Unlock()
			return nil
		}
		delete(p.joiners, sid)
		p.mu.Unlock()
		joined := j.Frame()
		j.Release()
		if joined.Type.IsRequest() {
			p.respond(joined)
			return nil
		}
		f = joined
	case f.HasFlag(core.FlagFollow):
		if _, active := p.streams[sid]; active {
			p.joiners[sid] = fragmentation.NewJoiner(f)
		}
		p.mu.Unlock()
		return nil
	default:
		p.mu.Unlock()
	}
	p.deliver(f)
	return nil
}

// deliver passes a complete PAYLOAD to the stream it belongs to.
func (p *DuplexConnection) deliver(f *framing.Frame) {
	sid := f.StreamID
	next, complete := f.HasFlag(core.FlagNext), f.HasFlag(core.FlagComplete)
	p.mu.Lock()
	st, ok := p.streams[sid]
	if !ok || st.inDone {
		p.mu.Unlock()
		if logger.IsDebugEnabled() {
			logger.Debugf("omit PAYLOAD of inactive stream %d\n", sid)
		}
		return
	}
	var msg payload.Payload
	if next {
		msg = payload.New(f.Data, f.Metadata)
	}

	if mono := st.mono; mono != nil {
		if next && st.delivered {
			st.terminate(StreamError)
			delete(p.streams, sid)
			p.enqueueLocked(framing.NewCancelFrame(sid))
			p.mu.Unlock()
			p.violation(sid, "more than one response of REQUEST_RESPONSE")
			return
		}
		delivered := st.delivered
		st.delivered = st.delivered || next
		if complete && st.completeInbound() {
			delete(p.streams, sid)
		}
		p.mu.Unlock()
		if next {
			mono.Success(msg)
		} else if complete && !delivered {
			mono.Success(nil)
		}
		return
	}

	sink := st.inbound
	if sink == nil {
		p.mu.Unlock()
		p.violation(sid, "unexpected PAYLOAD for %s", st.model)
		return
	}
	if complete && st.completeInbound() {
		delete(p.streams, sid)
	}
	p.mu.Unlock()
	if next {
		_ = sink.Next(msg)
	}
	if complete {
		sink.Complete()
	}
}

func (p *DuplexConnection) onRequestN(f *framing.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.streams[f.StreamID]; ok && !st.outDone {
		st.addCredit(f.N)
	}
	return nil
}

func (p *DuplexConnection) onCancel(f *framing.Frame) error {
	sid := f.StreamID
	p.mu.Lock()
	if j, ok := p.joiners[sid]; ok {
		delete(p.joiners, sid)
		j.Release()
	}
	st, ok := p.streams[sid]
	if !ok {
		p.mu.Unlock()
		return nil
	}
	// a requester channel keeps receiving after the peer stopped reading
	if st.model == ModelRequestChannel && st.requester && !st.inDone {
		if st.completeOutbound() {
			delete(p.streams, sid)
		}
		select {
		case st.creditC <- struct{}{}:
		default:
		}
		p.mu.Unlock()
		return nil
	}
	sink, inDone := st.inbound, st.inDone
	st.terminate(StreamCancelled)
	delete(p.streams, sid)
	p.mu.Unlock()
	if sink != nil && !inDone {
		sink.Error(core.NewError(core.ErrorCodeCanceled, []byte("cancelled by peer")))
	}
	return nil
}

func (p *DuplexConnection) onError(f *framing.Frame) error {
	sid := f.StreamID
	p.mu.Lock()
	if j, ok := p.joiners[sid]; ok {
		delete(p.joiners, sid)
		j.Release()
	}
	st, ok := p.streams[sid]
	if !ok {
		p.mu.Unlock()
		return nil
	}
	mono, sink, inDone := st.mono, st.inbound, st.inDone
	st.terminate(StreamError)
	delete(p.streams, sid)
	p.mu.Unlock()
	err := f.ToError()
	if mono != nil {
		mono.Error(err)
	}
	if sink != nil && !inDone {
		sink.Error(err)
	}
	return nil
}

func (p *DuplexConnection) onConnectionError(f *framing.Frame) error {
	err := f.ToError()
	p.mu.Lock()
	if p.fatal == nil {
		p.fatal = err
	}
	p.mu.Unlock()
	logger.Errorf("connection error from peer: %s\n", err)
	return nil
}

func (p *DuplexConnection) onKeepalive(f *framing.Frame) error {
	p.mu.Lock()
	if p.ledger != nil {
		p.ledger.trim(f.LastReceivedPosition)
	}
	if f.HasFlag(core.FlagRespond) {
		p.enqueueLocked(framing.NewKeepaliveFrame(p.counter.ReadBytes(), f.Data, false))
	}
	p.mu.Unlock()
	return nil
}

func (p *DuplexConnection) onLease(f *framing.Frame) error {
	if p.reqLease == nil {
		logger.Warnf("omit LEASE: leases are not honoured\n")
		return nil
	}
	p.reqLease.Refresh(f.TimeToLive, f.NumberOfRequests)
	if p.leaseHook != nil {
		p.leaseHook(lease.Lease{
			TimeToLive:       f.TimeToLive,
			NumberOfRequests: f.NumberOfRequests,
			Metadata:         f.Metadata,
		})
	}
	return nil
}
