package rx

import (
	"context"
	"io"
	"sync"

	"github.com/rsocket/rsocket-engine/internal/common"
	"github.com/rsocket/rsocket-engine/payload"
)

const defaultFluxBuffer = 256

// FluxHooks are the callbacks of a Flux fed by a FluxSink.
type FluxHooks struct {
	// OnStart runs once with the initial demand when the sequence is first consumed.
	OnStart func(n uint32)
	// OnRequest runs when more demand is signalled.
	OnRequest func(n uint32)
	// OnCancel runs once if the consumer cancels before the producer terminated.
	OnCancel func()
}

// Flux is a lazy sequence of payloads consumed by a single reader through Next.
// Production starts on the first Next or Request call.
type Flux struct {
	mu          sync.Mutex
	notify      chan struct{}
	space       chan struct{}
	queue       []payload.Payload
	sig         SignalType
	err         error
	limit       int
	rate        int
	outstanding int
	started     bool
	hooks       FluxHooks
	generator   func(context.Context, *FluxSink)
	ctx         context.Context
	cancel      context.CancelFunc
	onNext      []func(payload.Payload)
	finally     []func(SignalType, error)
	once        sync.Once
}

// FluxSink feeds a Flux.
type FluxSink struct {
	f *Flux
}

func newFlux(limit int) *Flux {
	ctx, cancel := context.WithCancel(context.Background())
	return &Flux{
		notify: make(chan struct{}, 1),
		space:  make(chan struct{}, 1),
		limit:  limit,
		rate:   RequestMax,
		ctx:    ctx,
		cancel: cancel,
	}
}

// NewFluxProcessor returns a Flux with an unbounded buffer and the sink feeding it.
func NewFluxProcessor(hooks FluxHooks) (*Flux, *FluxSink) {
	f := newFlux(0)
	f.hooks = hooks
	return f, &FluxSink{f: f}
}

// NewFlux returns a Flux produced by the generator in its own goroutine.
// The sink blocks while the buffer is full, ctx is done once the Flux is cancelled.
// Returning from the generator completes the Flux, a panic fails it.
func NewFlux(generator func(ctx context.Context, sink *FluxSink)) *Flux {
	f := newFlux(defaultFluxBuffer)
	f.generator = generator
	return f
}

// JustFlux returns a Flux of the given payloads.
func JustFlux(items ...payload.Payload) *Flux {
	f, sink := NewFluxProcessor(FluxHooks{})
	for _, it := range items {
		_ = sink.Next(it)
	}
	sink.Complete()
	return f
}

// EmptyFlux returns a completed Flux.
func EmptyFlux() *Flux {
	return JustFlux()
}

// ErrorFlux returns a failed Flux.
func ErrorFlux(err error) *Flux {
	f, sink := NewFluxProcessor(FluxHooks{})
	sink.Error(err)
	return f
}

// LimitRate sets the demand batch used before the first element is consumed
// and replenished whenever it is used up. Values out of range mean unbounded.
func (f *Flux) LimitRate(n int) *Flux {
	f.mu.Lock()
	if n < 1 || n > RequestMax {
		n = RequestMax
	}
	f.rate = n
	f.mu.Unlock()
	return f
}

// DoOnNext registers a hook called for each element returned by Next.
func (f *Flux) DoOnNext(fn func(payload.Payload)) *Flux {
	f.mu.Lock()
	f.onNext = append(f.onNext, fn)
	f.mu.Unlock()
	return f
}

// DoFinally registers a hook called once the consumer observes the end of the sequence or cancels it.
func (f *Flux) DoFinally(fn func(sig SignalType, err error)) *Flux {
	f.mu.Lock()
	f.finally = append(f.finally, fn)
	f.mu.Unlock()
	return f
}

// Request signals additional demand.
func (f *Flux) Request(n int) {
	if n < 1 {
		return
	}
	if f.start(n) {
		return
	}
	f.mu.Lock()
	if f.sig != signalNone {
		f.mu.Unlock()
		return
	}
	if f.outstanding < RequestMax {
		f.outstanding += n
		if f.outstanding > RequestMax {
			f.outstanding = RequestMax
		}
	}
	fn := f.hooks.OnRequest
	f.mu.Unlock()
	if fn != nil {
		fn(ToUint32(n))
	}
}

// Started returns true once the sequence was consumed or requested.
func (f *Flux) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// Next returns the next element, io.EOF once the sequence completed,
// or the error the sequence failed with. A done ctx cancels the Flux.
func (f *Flux) Next(ctx context.Context) (payload.Payload, error) {
	f.mu.Lock()
	rate := f.rate
	f.mu.Unlock()
	f.start(rate)
	for {
		f.mu.Lock()
		if len(f.queue) > 0 && f.sig != SignalCancel {
			p := f.queue[0]
			f.queue[0] = nil
			f.queue = f.queue[1:]
			var more int
			if f.outstanding < RequestMax {
				f.outstanding--
				if f.outstanding <= 0 && f.sig == signalNone && f.rate < RequestMax {
					f.outstanding = f.rate
					more = f.rate
				}
			}
			onRequest, onNext := f.hooks.OnRequest, f.onNext
			f.mu.Unlock()
			wake(f.space)
			if more > 0 && onRequest != nil {
				onRequest(ToUint32(more))
			}
			for _, fn := range onNext {
				fn(p)
			}
			return p, nil
		}
		if f.sig != signalNone {
			sig, err := f.sig, f.err
			f.mu.Unlock()
			switch sig {
			case SignalComplete:
				err = io.EOF
			case SignalCancel:
				if err == nil {
					err = ErrCancelled
				}
			}
			f.finish(sig, err)
			return nil, err
		}
		f.mu.Unlock()
		select {
		case <-f.notify:
		case <-ctx.Done():
			f.Cancel()
			f.mu.Lock()
			if f.sig == SignalCancel && f.err == nil {
				f.err = ctx.Err()
			}
			f.mu.Unlock()
		}
	}
}

// Cancel drops buffered elements and stops the producer.
func (f *Flux) Cancel() {
	f.mu.Lock()
	if f.sig == SignalCancel {
		f.mu.Unlock()
		return
	}
	terminated := f.sig != signalNone
	f.sig, f.err = SignalCancel, nil
	f.queue = nil
	fn := f.hooks.OnCancel
	f.mu.Unlock()
	f.cancel()
	wake(f.notify)
	wake(f.space)
	if !terminated && fn != nil {
		fn()
	}
	f.finish(SignalCancel, ErrCancelled)
}

// ToSlice drains the Flux.
func ToSlice(ctx context.Context, f *Flux) ([]payload.Payload, error) {
	var ret []payload.Payload
	for {
		p, err := f.Next(ctx)
		if err == io.EOF {
			return ret, nil
		}
		if err != nil {
			return ret, err
		}
		ret = append(ret, p)
	}
}

// StartWith returns a Flux emitting first and then the elements of rest.
// Cancelling it cancels rest.
func StartWith(first payload.Payload, rest *Flux) *Flux {
	return NewFlux(func(ctx context.Context, sink *FluxSink) {
		defer rest.Cancel()
		if sink.Next(first) != nil {
			return
		}
		for {
			next, err := rest.Next(ctx)
			if err == io.EOF {
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					sink.Error(err)
				}
				return
			}
			if sink.Next(next) != nil {
				return
			}
		}
	})
}

func (f *Flux) start(n int) bool {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return false
	}
	f.started = true
	f.outstanding = n
	cancelled := f.sig == SignalCancel
	onStart, gen := f.hooks.OnStart, f.generator
	f.mu.Unlock()
	if cancelled {
		return true
	}
	if onStart != nil {
		onStart(ToUint32(n))
	}
	if gen != nil {
		go f.generate(gen)
	}
	return true
}

func (f *Flux) generate(gen func(context.Context, *FluxSink)) {
	sink := &FluxSink{f: f}
	defer func() {
		if rec := recover(); rec != nil {
			sink.Error(common.ToError(rec))
			return
		}
		sink.Complete()
	}()
	gen(f.ctx, sink)
}

func (f *Flux) finish(sig SignalType, err error) {
	f.once.Do(func() {
		f.cancel()
		f.mu.Lock()
		hooks := f.finally
		f.mu.Unlock()
		for _, fn := range hooks {
			fn(sig, err)
		}
	})
}

// Next appends an element. It fails with ErrCancelled once the Flux is terminated.
func (s *FluxSink) Next(p payload.Payload) error {
	f := s.f
	for {
		f.mu.Lock()
		if f.sig != signalNone {
			f.mu.Unlock()
			return ErrCancelled
		}
		if f.limit < 1 || len(f.queue) < f.limit {
			f.queue = append(f.queue, p)
			f.mu.Unlock()
			wake(f.notify)
			return nil
		}
		f.mu.Unlock()
		select {
		case <-f.space:
		case <-f.ctx.Done():
		}
	}
}

// Complete ends the sequence after the buffered elements.
func (s *FluxSink) Complete() {
	s.terminate(SignalComplete, nil)
}

// Error fails the sequence after the buffered elements.
func (s *FluxSink) Error(err error) {
	s.terminate(SignalError, err)
}

// Done is closed once the Flux is cancelled or fully consumed.
func (s *FluxSink) Done() <-chan struct{} {
	return s.f.ctx.Done()
}

func (s *FluxSink) terminate(sig SignalType, err error) {
	f := s.f
	f.mu.Lock()
	if f.sig != signalNone {
		f.mu.Unlock()
		return
	}
	f.sig, f.err = sig, err
	f.mu.Unlock()
	wake(f.notify)
}

func wake(c chan struct{}) {
	select {
	case c <- struct{}{}:
	default:
	}
}
