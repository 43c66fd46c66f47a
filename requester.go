package rsocket

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/extension"
	"github.com/rsocket/rsocket-engine/payload"
	"github.com/rsocket/rsocket-engine/router"
	"github.com/rsocket/rsocket-engine/rx"
)

// Requester builds requests carrying composite metadata.
// The peer is expected to use composite metadata as its metadata MIME type.
type Requester struct {
	s RSocket
}

// NewRequester creates a Requester sending requests to s.
func NewRequester(s RSocket) *Requester {
	return &Requester{s: s}
}

// Route starts a request to route, the variables of a templated route are replaced by vars in order.
func (r *Requester) Route(route string, vars ...interface{}) *RequestSpec {
	spec := &RequestSpec{s: r.s}
	spec.route, spec.err = router.Expand(route, vars...)
	return spec
}

// Metadata starts a request without route carrying a metadata entry.
func (r *Requester) Metadata(mime string, value []byte) *RequestSpec {
	return (&RequestSpec{s: r.s}).Metadata(mime, value)
}

type metadataEntry struct {
	mime  string
	value []byte
}

// RequestSpec is a request being built.
type RequestSpec struct {
	s        RSocket
	route    string
	err      error
	metadata []metadataEntry
	data     []byte
}

// Metadata appends a composite metadata entry.
func (p *RequestSpec) Metadata(mime string, value []byte) *RequestSpec {
	p.metadata = append(p.metadata, metadataEntry{mime: mime, value: value})
	return p
}

// Data sets the data of the request.
func (p *RequestSpec) Data(data []byte) *RequestSpec {
	p.data = data
	return p
}

// DataString sets the data of the request.
func (p *RequestSpec) DataString(data string) *RequestSpec {
	p.data = []byte(data)
	return p
}

// Payload returns the payload to be sent.
func (p *RequestSpec) Payload() (payload.Payload, error) {
	if p.err != nil {
		return nil, p.err
	}
	b := extension.NewCompositeMetadataBuilder()
	if p.route != "" {
		routing, err := extension.EncodeRouting(p.route)
		if err != nil {
			return nil, errors.Wrap(err, "encode routing failed")
		}
		b.PushWellKnown(extension.MessageRouting, routing)
	}
	for _, e := range p.metadata {
		if id, ok := extension.ParseMIME(e.mime); ok {
			b.PushWellKnown(id, e.value)
		} else {
			b.Push(e.mime, e.value)
		}
	}
	metadata, err := b.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build composite metadata failed")
	}
	if len(metadata) == 0 {
		metadata = nil
	}
	return payload.New(p.data, metadata), nil
}

// FireAndForget sends the request as fire-and-forget.
func (p *RequestSpec) FireAndForget(ctx context.Context) error {
	msg, err := p.Payload()
	if err != nil {
		return err
	}
	return p.s.FireAndForget(ctx, msg)
}

// MetadataPush sends the metadata of the request as metadata push.
func (p *RequestSpec) MetadataPush(ctx context.Context) error {
	msg, err := p.Payload()
	if err != nil {
		return err
	}
	return p.s.MetadataPush(ctx, msg)
}

// RequestResponse sends the request as request-response.
func (p *RequestSpec) RequestResponse(ctx context.Context) *rx.Mono {
	msg, err := p.Payload()
	if err != nil {
		return rx.ErrorMono(err)
	}
	return p.s.RequestResponse(ctx, msg)
}

// RequestStream sends the request as request-stream.
func (p *RequestSpec) RequestStream(ctx context.Context) *rx.Flux {
	msg, err := p.Payload()
	if err != nil {
		return rx.ErrorFlux(err)
	}
	return p.s.RequestStream(ctx, msg)
}

// RequestChannel opens a channel, the request is the first payload followed by rest.
// A nil rest sends the request only.
func (p *RequestSpec) RequestChannel(ctx context.Context, rest *rx.Flux) *rx.Flux {
	msg, err := p.Payload()
	if err != nil {
		if rest != nil {
			rest.Cancel()
		}
		return rx.ErrorFlux(err)
	}
	if rest == nil {
		rest = rx.EmptyFlux()
	}
	return p.s.RequestChannel(ctx, rx.StartWith(msg, rest))
}
