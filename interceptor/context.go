package interceptor

import (
	"context"

	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/extension"
	"github.com/rsocket/rsocket-engine/payload"
)

// InjectTraceID adds a trace id entry to the composite metadata of outgoing requests.
// The trace id of ctx is used if present, a new one is generated otherwise.
func InjectTraceID() RSocketInterceptor {
	return Observe(func(ctx context.Context, req Request) (context.Context, payload.Payload, Finish, error) {
		if req.MetadataPush || req.Payload == nil {
			return ctx, nil, nil, nil
		}
		traceID, ok := TraceID(ctx)
		if !ok {
			traceID = extension.NewTraceID()
			ctx = WithTraceID(ctx, traceID)
		}
		msg, err := appendEntry(req.Payload, extension.MIMETraceID, extension.EncodeTraceID(traceID))
		return ctx, msg, nil, err
	})
}

// InjectBearerToken adds a bearer authentication entry to the composite metadata of outgoing requests.
func InjectBearerToken(token string) RSocketInterceptor {
	auth := extension.NewBearerAuthentication(token).Bytes()
	return Observe(func(ctx context.Context, req Request) (context.Context, payload.Payload, Finish, error) {
		if req.MetadataPush || req.Payload == nil {
			return ctx, nil, nil, nil
		}
		msg, err := appendEntry(req.Payload, extension.MessageAuthentication.String(), auth)
		return ctx, msg, nil, err
	})
}

// Extract decodes the metadata of incoming requests into the handler context.
// The trace id is exposed by TraceID, UnknownTraceID is used when it is missing.
func Extract(extractor *extension.MetadataExtractor, metadataMIME string) RSocketInterceptor {
	return Observe(func(ctx context.Context, req Request) (context.Context, payload.Payload, Finish, error) {
		values := map[string]interface{}{}
		if req.Payload != nil {
			if raw, ok := req.Payload.Metadata(); ok {
				extracted, err := extractor.Extract(metadataMIME, raw)
				if err != nil {
					return ctx, nil, nil, core.NewError(core.ErrorCodeInvalid, []byte(err.Error()))
				}
				values = extracted
			}
		}
		traceID, ok := values[extension.MetadataTraceID].(string)
		if !ok {
			traceID = extension.UnknownTraceID
		}
		ctx = WithTraceID(context.WithValue(ctx, metadataKey{}, values), traceID)
		return ctx, nil, nil, nil
	})
}
