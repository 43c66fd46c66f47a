package rx

import (
	"context"
	"sync"

	"github.com/rsocket/rsocket-engine/internal/common"
	"github.com/rsocket/rsocket-engine/payload"
)

// Mono is a future of at most one payload.
// An eager Mono is settled by its MonoSink, a lazy one runs its producer on the first Block.
type Mono struct {
	mu       sync.Mutex
	done     chan struct{}
	sig      SignalType
	value    payload.Payload
	err      error
	producer func(context.Context) (payload.Payload, error)
	onCancel func()
	finally  []func(payload.Payload, error)
	once     sync.Once
}

// MonoSink settles a Mono. Only the first signal wins.
type MonoSink struct {
	m *Mono
}

// NewMonoProcessor returns an unsettled Mono and the sink settling it.
// The onCancel callback runs once if the consumer cancels before settlement.
func NewMonoProcessor(onCancel func()) (*Mono, MonoSink) {
	m := &Mono{
		done:     make(chan struct{}),
		onCancel: onCancel,
	}
	return m, MonoSink{m: m}
}

// NewMono returns a lazy Mono. The producer runs in the goroutine of the first Block call,
// a panic raised by it becomes the error of the Mono.
func NewMono(producer func(ctx context.Context) (payload.Payload, error)) *Mono {
	return &Mono{
		done:     make(chan struct{}),
		producer: producer,
	}
}

// JustMono returns a Mono completed with the payload.
func JustMono(p payload.Payload) *Mono {
	m, sink := NewMonoProcessor(nil)
	sink.Success(p)
	return m
}

// EmptyMono returns a Mono completed without a payload.
func EmptyMono() *Mono {
	return JustMono(nil)
}

// ErrorMono returns a failed Mono.
func ErrorMono(err error) *Mono {
	m, sink := NewMonoProcessor(nil)
	sink.Error(err)
	return m
}

// Success completes the Mono with p. It returns false if the Mono was settled before.
func (s MonoSink) Success(p payload.Payload) bool {
	return s.m.settle(SignalComplete, p, nil)
}

// Error fails the Mono. It returns false if the Mono was settled before.
func (s MonoSink) Error(err error) bool {
	return s.m.settle(SignalError, nil, err)
}

// Done is closed once the Mono is settled or cancelled.
func (s MonoSink) Done() <-chan struct{} {
	return s.m.done
}

func (m *Mono) settle(sig SignalType, p payload.Payload, err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sig != signalNone {
		return false
	}
	m.sig, m.value, m.err = sig, p, err
	close(m.done)
	return true
}

// Block waits for the outcome. A done ctx cancels the Mono.
func (m *Mono) Block(ctx context.Context) (payload.Payload, error) {
	if producer := m.takeProducer(); producer != nil {
		p, err := runProducer(ctx, producer)
		if err != nil {
			m.settle(SignalError, nil, err)
		} else {
			m.settle(SignalComplete, p, nil)
		}
	}
	select {
	case <-m.done:
	case <-ctx.Done():
		m.Cancel()
	}
	m.mu.Lock()
	var p payload.Payload
	var err error
	switch m.sig {
	case SignalComplete:
		p = m.value
	case SignalError:
		err = m.err
	default:
		if err = ctx.Err(); err == nil {
			err = ErrCancelled
		}
	}
	hooks := m.finally
	m.mu.Unlock()
	m.once.Do(func() {
		for _, fn := range hooks {
			fn(p, err)
		}
	})
	return p, err
}

// DoFinally registers a hook called once with the outcome observed by the first Block.
func (m *Mono) DoFinally(fn func(p payload.Payload, err error)) *Mono {
	m.mu.Lock()
	m.finally = append(m.finally, fn)
	m.mu.Unlock()
	return m
}

// Done is closed once the Mono is settled. It never closes for a lazy Mono nobody blocks on.
func (m *Mono) Done() <-chan struct{} {
	return m.done
}

// Cancel settles the Mono with SignalCancel and runs the cancel callback.
func (m *Mono) Cancel() {
	m.mu.Lock()
	if m.sig != signalNone {
		m.mu.Unlock()
		return
	}
	m.sig = SignalCancel
	m.producer = nil
	close(m.done)
	fn := m.onCancel
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Signal returns the terminal signal, or zero if unsettled.
func (m *Mono) Signal() SignalType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sig
}

func (m *Mono) takeProducer() (producer func(context.Context) (payload.Payload, error)) {
	m.mu.Lock()
	producer, m.producer = m.producer, nil
	m.mu.Unlock()
	return
}

func runProducer(ctx context.Context, producer func(context.Context) (payload.Payload, error)) (p payload.Payload, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			p, err = nil, common.ToError(rec)
		}
	}()
	return producer(ctx)
}
