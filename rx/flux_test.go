package rx_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/rsocket/rsocket-engine/payload"
	"github.com/rsocket/rsocket-engine/rx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestJustFlux(t *testing.T) {
	f := rx.JustFlux(payload.NewString("a", ""), payload.NewString("b", ""))
	res, err := rx.ToSlice(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "a", res[0].DataUTF8())
	assert.Equal(t, "b", res[1].DataUTF8())

	_, err = f.Next(context.Background())
	assert.Equal(t, io.EOF, err)

	res, err = rx.ToSlice(context.Background(), rx.EmptyFlux())
	assert.NoError(t, err)
	assert.Empty(t, res)
}

func TestErrorFlux(t *testing.T) {
	_, err := rx.ToSlice(context.Background(), rx.ErrorFlux(fakeErr))
	assert.Equal(t, fakeErr, err)
}

func TestFluxGenerator(t *testing.T) {
	defer leaktest.Check(t)()
	const total = 1000
	f := rx.NewFlux(func(ctx context.Context, sink *rx.FluxSink) {
		for i := 0; i < total; i++ {
			if err := sink.Next(payload.NewString(fmt.Sprint(i), "")); err != nil {
				return
			}
		}
	})
	res, err := rx.ToSlice(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, res, total)
	for i, p := range res {
		assert.Equal(t, fmt.Sprint(i), p.DataUTF8())
	}
}

func TestFluxGeneratorPanic(t *testing.T) {
	f := rx.NewFlux(func(ctx context.Context, sink *rx.FluxSink) {
		_ = sink.Next(payload.NewString("first", ""))
		panic(fakeErr)
	})
	res, err := rx.ToSlice(context.Background(), f)
	assert.Equal(t, fakeErr, err)
	assert.Len(t, res, 1)
}

func TestFluxCancel(t *testing.T) {
	defer leaktest.Check(t)()
	produced := atomic.NewInt32(0)
	f := rx.NewFlux(func(ctx context.Context, sink *rx.FluxSink) {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; i < 10; i++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if sink.Next(payload.NewString(fmt.Sprint(i), "")) != nil {
				return
			}
			produced.Inc()
		}
	})
	var got []string
	for {
		p, err := f.Next(context.Background())
		require.NoError(t, err)
		got = append(got, p.DataUTF8())
		if len(got) == 3 {
			f.Cancel()
			break
		}
	}
	_, err := f.Next(context.Background())
	assert.Equal(t, rx.ErrCancelled, err)
	assert.Equal(t, []string{"0", "1", "2"}, got)
	time.Sleep(30 * time.Millisecond)
	assert.True(t, produced.Load() < 10, "production should stop")
}

func TestFluxProcessorDemand(t *testing.T) {
	var mu sync.Mutex
	var started []uint32
	var requested []uint32
	cancelled := atomic.NewInt32(0)
	f, sink := rx.NewFluxProcessor(rx.FluxHooks{
		OnStart: func(n uint32) {
			mu.Lock()
			started = append(started, n)
			mu.Unlock()
		},
		OnRequest: func(n uint32) {
			mu.Lock()
			requested = append(requested, n)
			mu.Unlock()
		},
		OnCancel: func() {
			cancelled.Inc()
		},
	})
	f.LimitRate(2)
	for i := 0; i < 4; i++ {
		require.NoError(t, sink.Next(payload.NewString(fmt.Sprint(i), "")))
	}
	for i := 0; i < 4; i++ {
		p, err := f.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprint(i), p.DataUTF8())
	}
	mu.Lock()
	assert.Equal(t, []uint32{2}, started)
	assert.Equal(t, []uint32{2, 2}, requested)
	mu.Unlock()

	f.Cancel()
	f.Cancel()
	assert.Equal(t, int32(1), cancelled.Load())
	assert.Equal(t, rx.ErrCancelled, sink.Next(payload.Empty()))
}

func TestFluxUnboundedDemand(t *testing.T) {
	requested := atomic.NewInt32(0)
	var initial uint32
	f, sink := rx.NewFluxProcessor(rx.FluxHooks{
		OnStart: func(n uint32) {
			initial = n
		},
		OnRequest: func(n uint32) {
			requested.Inc()
		},
	})
	go func() {
		for i := 0; i < 100; i++ {
			_ = sink.Next(payload.Empty())
		}
		sink.Complete()
	}()
	res, err := rx.ToSlice(context.Background(), f)
	require.NoError(t, err)
	assert.Len(t, res, 100)
	assert.Equal(t, uint32(rx.RequestMax), initial)
	assert.Equal(t, int32(0), requested.Load())
}

func TestFluxCancelBeforeStart(t *testing.T) {
	started := atomic.NewBool(false)
	f, _ := rx.NewFluxProcessor(rx.FluxHooks{
		OnStart: func(n uint32) {
			started.Store(true)
		},
	})
	f.Cancel()
	_, err := f.Next(context.Background())
	assert.Equal(t, rx.ErrCancelled, err)
	assert.False(t, started.Load())
}

func TestFluxContextDone(t *testing.T) {
	cancelled := atomic.NewBool(false)
	f, _ := rx.NewFluxProcessor(rx.FluxHooks{
		OnCancel: func() {
			cancelled.Store(true)
		},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Next(ctx)
	assert.Equal(t, context.DeadlineExceeded, err)
	assert.True(t, cancelled.Load())
}

func TestFluxHooks(t *testing.T) {
	var nexts int
	var final rx.SignalType
	f := rx.JustFlux(payload.Empty(), payload.Empty()).
		DoOnNext(func(payload.Payload) {
			nexts++
		}).
		DoFinally(func(sig rx.SignalType, err error) {
			final = sig
			assert.Equal(t, io.EOF, err)
		})
	_, err := rx.ToSlice(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 2, nexts)
	assert.Equal(t, rx.SignalComplete, final)
	assert.Equal(t, "COMPLETE", final.String())
}

func TestToUint32(t *testing.T) {
	assert.Equal(t, uint32(0), rx.ToUint32(-1))
	assert.Equal(t, uint32(7), rx.ToUint32(7))
	assert.Equal(t, uint32(rx.RequestMax), rx.ToUint32(rx.RequestMax+1))
}

func TestFluxCancelRunsFinally(t *testing.T) {
	var final rx.SignalType
	f := rx.NewFlux(func(ctx context.Context, sink *rx.FluxSink) {
		<-ctx.Done()
	}).DoFinally(func(sig rx.SignalType, err error) {
		final = sig
		assert.Equal(t, rx.ErrCancelled, err)
	})
	f.Request(1)
	f.Cancel()
	assert.Equal(t, rx.SignalCancel, final)
}

func TestStartWith(t *testing.T) {
	f := rx.StartWith(payload.NewString("a", ""), rx.JustFlux(payload.NewString("b", ""), payload.NewString("c", "")))
	res, err := rx.ToSlice(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "a", res[0].DataUTF8())
	assert.Equal(t, "c", res[2].DataUTF8())

	_, err = rx.ToSlice(context.Background(), rx.StartWith(payload.NewString("a", ""), rx.ErrorFlux(io.ErrUnexpectedEOF)))
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestStartWithCancel(t *testing.T) {
	defer leaktest.Check(t)()
	cancelled := make(chan struct{})
	rest, _ := rx.NewFluxProcessor(rx.FluxHooks{
		OnCancel: func() {
			close(cancelled)
		},
	})
	f := rx.StartWith(payload.NewString("a", ""), rest)
	first, err := f.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", first.DataUTF8())
	f.Cancel()
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("rest should be cancelled")
	}
}
