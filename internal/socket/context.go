package socket

import "context"

type streamIDKey struct{}

func withStreamID(ctx context.Context, sid uint32) context.Context {
	return context.WithValue(ctx, streamIDKey{}, sid)
}

// StreamID returns the id of the stream a responder handler is serving.
func StreamID(ctx context.Context) (sid uint32, ok bool) {
	sid, ok = ctx.Value(streamIDKey{}).(uint32)
	return
}
