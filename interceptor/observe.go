package interceptor

import (
	"context"

	"github.com/rsocket/rsocket-engine/payload"
	"github.com/rsocket/rsocket-engine/rx"
)

// Request describes an intercepted request.
type Request struct {
	Model Model
	// Payload is nil for channels and the payload of metadata push otherwise.
	Payload payload.Payload
	// MetadataPush is true for a METADATA_PUSH, whose model is meaningless.
	MetadataPush bool
}

// Finish receives the outcome of a request, nil for a normal completion.
type Finish = func(err error)

// Hook runs before a request is passed on. It may replace ctx and the payload.
// The returned Finish is called once with the outcome. A non-nil error fails
// the request without passing it on.
type Hook = func(ctx context.Context, req Request) (context.Context, payload.Payload, Finish, error)

// Observe creates an interceptor from a hook.
func Observe(hook Hook) RSocketInterceptor {
	return func(next RSocket) RSocket {
		return &observed{next: next, hook: hook}
	}
}

type observed struct {
	next RSocket
	hook Hook
}

func (o *observed) before(ctx context.Context, req Request) (context.Context, payload.Payload, Finish, error) {
	ctx, msg, finish, err := o.hook(ctx, req)
	if finish == nil {
		finish = func(error) {}
	}
	if err != nil {
		finish(err)
		return ctx, nil, finish, err
	}
	if msg == nil {
		msg = req.Payload
	}
	return ctx, msg, finish, nil
}

func (o *observed) FireAndForget(ctx context.Context, msg payload.Payload) error {
	ctx, msg, finish, err := o.before(ctx, Request{Model: ModelFireAndForget, Payload: msg})
	if err != nil {
		return err
	}
	err = o.next.FireAndForget(ctx, msg)
	finish(err)
	return err
}

func (o *observed) MetadataPush(ctx context.Context, msg payload.Payload) error {
	ctx, msg, finish, err := o.before(ctx, Request{Payload: msg, MetadataPush: true})
	if err != nil {
		return err
	}
	err = o.next.MetadataPush(ctx, msg)
	finish(err)
	return err
}

func (o *observed) RequestResponse(ctx context.Context, msg payload.Payload) *rx.Mono {
	ctx, msg, finish, err := o.before(ctx, Request{Model: ModelRequestResponse, Payload: msg})
	if err != nil {
		return rx.ErrorMono(err)
	}
	mono := o.next.RequestResponse(ctx, msg)
	if mono == nil {
		finish(nil)
		return nil
	}
	return mono.DoFinally(func(_ payload.Payload, err error) {
		finish(err)
	})
}

func (o *observed) RequestStream(ctx context.Context, msg payload.Payload) *rx.Flux {
	ctx, msg, finish, err := o.before(ctx, Request{Model: ModelRequestStream, Payload: msg})
	if err != nil {
		return rx.ErrorFlux(err)
	}
	return finally(o.next.RequestStream(ctx, msg), finish)
}

func (o *observed) RequestChannel(ctx context.Context, msgs *rx.Flux) *rx.Flux {
	ctx, _, finish, err := o.before(ctx, Request{Model: ModelRequestChannel})
	if err != nil {
		msgs.Cancel()
		return rx.ErrorFlux(err)
	}
	return finally(o.next.RequestChannel(ctx, msgs), finish)
}

func finally(flux *rx.Flux, finish Finish) *rx.Flux {
	if flux == nil {
		finish(nil)
		return nil
	}
	return flux.DoFinally(func(sig rx.SignalType, err error) {
		if sig == rx.SignalComplete {
			err = nil
		}
		finish(err)
	})
}
