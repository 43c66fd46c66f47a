package interceptor

import (
	"context"

	"github.com/rsocket/rsocket-engine/payload"
	"github.com/rsocket/rsocket-engine/rx"
)

// ReceiveMetadataPush consumes incoming metadata pushes with fn, they are not passed on.
func ReceiveMetadataPush(fn func(ctx context.Context, msg payload.Payload)) RSocketInterceptor {
	return func(next RSocket) RSocket {
		return &metadataPushReceiver{next: next, fn: fn}
	}
}

type metadataPushReceiver struct {
	next RSocket
	fn   func(context.Context, payload.Payload)
}

func (m *metadataPushReceiver) MetadataPush(ctx context.Context, msg payload.Payload) error {
	m.fn(ctx, msg)
	return nil
}

func (m *metadataPushReceiver) FireAndForget(ctx context.Context, msg payload.Payload) error {
	return m.next.FireAndForget(ctx, msg)
}

func (m *metadataPushReceiver) RequestResponse(ctx context.Context, msg payload.Payload) *rx.Mono {
	return m.next.RequestResponse(ctx, msg)
}

func (m *metadataPushReceiver) RequestStream(ctx context.Context, msg payload.Payload) *rx.Flux {
	return m.next.RequestStream(ctx, msg)
}

func (m *metadataPushReceiver) RequestChannel(ctx context.Context, msgs *rx.Flux) *rx.Flux {
	return m.next.RequestChannel(ctx, msgs)
}
