package transport_test

import (
	"context"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/framing"
	"github.com/rsocket/rsocket-engine/core/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeTransport(t *testing.T) {
	defer leaktest.Check(t)()

	l := transport.NewPipeListener("test")
	assert.Equal(t, "pipe", l.Addr().Network())
	server := transport.NewPipeServerTransport(l)

	received := make(chan *framing.Frame, 1)
	server.Accept(func(ctx context.Context, tp *transport.Transport, onClose func(*transport.Transport)) {
		defer onClose(tp)
		tp.RegisterHandler(transport.OnRequestResponse, func(f *framing.Frame) error {
			received <- f
			return tp.Send(framing.NewPayloadFrame(f.StreamID, f.Data, nil, core.FlagNext|core.FlagComplete), true)
		})
		_ = tp.Start(ctx)
	})

	ctx, cancel := context.WithCancel(context.Background())
	notifier := make(chan bool)
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, server.Listen(ctx, notifier))
	}()
	require.True(t, <-notifier)

	client, err := transport.NewPipeClientTransport(ctx, l)
	require.NoError(t, err)
	response := make(chan *framing.Frame, 1)
	client.RegisterHandler(transport.OnPayload, func(f *framing.Frame) error {
		response <- f
		return nil
	})
	clientDone := make(chan struct{})
	go func() {
		defer close(clientDone)
		_ = client.Start(ctx)
	}()

	require.NoError(t, client.Send(framing.NewRequestResponseFrame(1, []byte("ping"), nil, 0), true))
	select {
	case f := <-received:
		assert.Equal(t, []byte("ping"), f.Data)
	case <-time.After(3 * time.Second):
		require.Fail(t, "timeout")
	}
	select {
	case f := <-response:
		assert.Equal(t, []byte("ping"), f.Data)
		assert.True(t, f.HasFlag(core.FlagComplete))
	case <-time.After(3 * time.Second):
		require.Fail(t, "timeout")
	}

	_ = client.Close()
	<-clientDone
	cancel()
	<-done

	_, err = transport.NewPipeClientTransport(context.Background(), l)
	assert.Error(t, err, "dial closed listener should fail")
}
