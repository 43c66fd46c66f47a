package interceptor

import (
	"context"

	"github.com/rsocket/rsocket-engine/extension"
	"github.com/rsocket/rsocket-engine/internal/common"
	"github.com/rsocket/rsocket-engine/payload"
)

type (
	traceIDKey  struct{}
	metadataKey struct{}
	authKey     struct{}
)

// WithTraceID returns a context carrying a trace id.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceID returns the trace id carried by ctx.
func TraceID(ctx context.Context) (traceID string, ok bool) {
	traceID, ok = ctx.Value(traceIDKey{}).(string)
	return
}

// Metadata returns the metadata extracted from the request being served.
func Metadata(ctx context.Context) (metadata map[string]interface{}, ok bool) {
	metadata, ok = ctx.Value(metadataKey{}).(map[string]interface{})
	return
}

// Authentication returns the authentication verified for the request being served.
func Authentication(ctx context.Context) (auth *extension.Authentication, ok bool) {
	auth, ok = ctx.Value(authKey{}).(*extension.Authentication)
	return
}

// Route returns the route of a payload whose metadata is composite.
func Route(msg payload.Payload) string {
	if msg == nil {
		return ""
	}
	metadata, ok := msg.Metadata()
	if !ok {
		return ""
	}
	raw, ok := extension.FindCompositeMetadata(metadata, extension.MessageRouting.String())
	if !ok {
		return ""
	}
	route, err := extension.ParseRoute(raw)
	if err != nil {
		return ""
	}
	return route
}

// appendEntry adds an entry to the composite metadata of msg unless an entry of mime exists.
func appendEntry(msg payload.Payload, mime string, value []byte) (payload.Payload, error) {
	var metadata []byte
	if msg != nil {
		metadata, _ = msg.Metadata()
	}
	if _, ok := extension.FindCompositeMetadata(metadata, mime); ok {
		return msg, nil
	}
	entry, err := extension.NewCompositeMetadata(mime, value).Bytes()
	if err != nil {
		return nil, err
	}
	var data []byte
	if msg != nil {
		data = msg.Data()
	}
	merged := append(common.CloneBytes(metadata), entry...)
	return payload.New(data, merged), nil
}
