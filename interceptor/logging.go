package interceptor

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/internal/socket"
	"github.com/rsocket/rsocket-engine/payload"
	"github.com/rsocket/rsocket-engine/rx"
	"go.uber.org/zap"
)

func modelName(req Request) string {
	if req.MetadataPush {
		return "METADATA_PUSH"
	}
	return req.Model.String()
}

// Logging logs every request with its route, model, elapsed time and outcome.
// The stream id is logged for requests served by a responder.
func Logging(l *zap.Logger) RSocketInterceptor {
	return Observe(func(ctx context.Context, req Request) (context.Context, payload.Payload, Finish, error) {
		fields := []zap.Field{
			zap.String("model", modelName(req)),
		}
		if route := Route(req.Payload); route != "" {
			fields = append(fields, zap.String("route", route))
		}
		if sid, ok := socket.StreamID(ctx); ok {
			fields = append(fields, zap.Uint32("stream", sid))
		}
		if traceID, ok := TraceID(ctx); ok {
			fields = append(fields, zap.String("traceId", traceID))
		}
		start := time.Now()
		return ctx, nil, func(err error) {
			fields = append(fields, zap.Duration("elapsed", time.Since(start)))
			switch {
			case err == nil:
				l.Info("request completed", fields...)
			case errors.Is(err, rx.ErrCancelled) || errors.Is(err, context.Canceled):
				l.Info("request cancelled", fields...)
			default:
				l.Warn("request failed", append(fields, zap.Error(err))...)
			}
		}, nil
	})
}
