package lease

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Factory can be used to generate leases.
type Factory interface {
	// Next generate next lease chan.
	// The chan is closed when ctx is done.
	Next(ctx context.Context) (ch chan Lease, ok bool)
}

// Lease represents lease structure.
type Lease struct {
	TimeToLive       time.Duration
	NumberOfRequests uint32
	Metadata         []byte
}

// NewSimpleFactory creates a lease factory which emits the same lease after delay and then every interval.
func NewSimpleFactory(interval, ttl, delay time.Duration, numberOfRequest uint32) (Factory, error) {
	if interval <= 0 {
		return nil, errors.Errorf("invalid simple lease interval: %s", interval)
	}
	if ttl <= 0 {
		return nil, errors.Errorf("invalid simple lease TTL: %s", ttl)
	}
	if numberOfRequest < 1 {
		return nil, errors.Errorf("invalid simple lease NumberOfRequest: %d", numberOfRequest)
	}
	return &simpleFactory{
		delay:    delay,
		ttl:      ttl,
		n:        numberOfRequest,
		interval: interval,
	}, nil
}

type simpleFactory struct {
	delay    time.Duration
	ttl      time.Duration
	n        uint32
	interval time.Duration
}

func (s *simpleFactory) Next(ctx context.Context) (chan Lease, bool) {
	ch := make(chan Lease)
	go func(ctx context.Context, ch chan Lease) {
		defer close(ch)

		if s.delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.delay):
			}
		}
		if !s.emit(ctx, ch) {
			return
		}

		tk := time.NewTicker(s.interval)
		defer tk.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				if !s.emit(ctx, ch) {
					return
				}
			}
		}
	}(ctx, ch)
	return ch, true
}

func (s *simpleFactory) emit(ctx context.Context, ch chan<- Lease) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- Lease{TimeToLive: s.ttl, NumberOfRequests: s.n}:
		return true
	}
}
