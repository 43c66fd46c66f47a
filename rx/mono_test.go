package rx_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rsocket/rsocket-engine/payload"
	"github.com/rsocket/rsocket-engine/rx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

var fakeErr = errors.New("fake error")

func TestMonoProcessor(t *testing.T) {
	m, sink := rx.NewMonoProcessor(nil)
	go func() {
		time.Sleep(10 * time.Millisecond)
		assert.True(t, sink.Success(payload.NewString("hello", "")))
		assert.False(t, sink.Error(fakeErr), "second signal should be dropped")
	}()
	p, err := m.Block(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", p.DataUTF8())
	assert.Equal(t, rx.SignalComplete, m.Signal())
}

func TestMonoError(t *testing.T) {
	_, err := rx.ErrorMono(fakeErr).Block(context.Background())
	assert.Equal(t, fakeErr, err)

	p, err := rx.EmptyMono().Block(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestMonoCancel(t *testing.T) {
	cancelled := atomic.NewInt32(0)
	m, sink := rx.NewMonoProcessor(func() {
		cancelled.Inc()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.Block(ctx)
	assert.Equal(t, context.DeadlineExceeded, err)
	assert.Equal(t, int32(1), cancelled.Load())
	assert.Equal(t, rx.SignalCancel, m.Signal())

	m.Cancel()
	assert.Equal(t, int32(1), cancelled.Load(), "cancel callback should run once")
	assert.False(t, sink.Success(payload.Empty()))
	select {
	case <-sink.Done():
	default:
		assert.Fail(t, "sink should be done")
	}

	_, err = m.Block(context.Background())
	assert.Equal(t, rx.ErrCancelled, err)
}

func TestLazyMono(t *testing.T) {
	calls := atomic.NewInt32(0)
	m := rx.NewMono(func(ctx context.Context) (payload.Payload, error) {
		calls.Inc()
		return payload.NewString("lazy", ""), nil
	})
	assert.Equal(t, int32(0), calls.Load())
	p, err := m.Block(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "lazy", p.DataUTF8())
	_, _ = m.Block(context.Background())
	assert.Equal(t, int32(1), calls.Load())

	_, err = rx.NewMono(func(ctx context.Context) (payload.Payload, error) {
		panic("boom")
	}).Block(context.Background())
	assert.EqualError(t, err, "boom")
}

func TestMonoDoFinally(t *testing.T) {
	var got []error
	m := rx.ErrorMono(fakeErr).DoFinally(func(p payload.Payload, err error) {
		got = append(got, err)
	})
	_, _ = m.Block(context.Background())
	_, _ = m.Block(context.Background())
	assert.Equal(t, []error{fakeErr}, got)
}
