package transport

import (
	"math"

	"github.com/juju/ratelimit"
	"go.uber.org/atomic"
)

// Valve limits the bytes per second flowing through connections.
// One Valve may be shared by many connections.
type Valve struct {
	rxtb *ratelimit.Bucket
	txtb *ratelimit.Bucket
	rx   *atomic.Int64
	tx   *atomic.Int64
}

// NewValve creates a Valve, a rate which is not positive means unlimited.
func NewValve(rxRate, txRate int64) *Valve {
	return &Valve{
		rxtb: newBucket(rxRate),
		txtb: newBucket(txRate),
		rx:   atomic.NewInt64(0),
		tx:   atomic.NewInt64(0),
	}
}

func newBucket(rate int64) *ratelimit.Bucket {
	if rate < 1 {
		return nil
	}
	return ratelimit.NewBucketWithRate(float64(rate), rate)
}

// Rx returns total inbound bytes.
func (v *Valve) Rx() int64 {
	return v.rx.Load()
}

// Tx returns total outbound bytes.
func (v *Valve) Tx() int64 {
	return v.tx.Load()
}

func (v *Valve) rxWait(n int) {
	if v == nil {
		return
	}
	v.rx.Add(int64(n))
	wait(v.rxtb, n)
}

func (v *Valve) txWait(n int) {
	if v == nil {
		return
	}
	v.tx.Add(int64(n))
	wait(v.txtb, n)
}

func wait(tb *ratelimit.Bucket, n int) {
	if tb == nil {
		return
	}
	// a frame larger than the capacity would never be served in one take
	capacity := tb.Capacity()
	left := int64(n)
	for left > 0 {
		take := int64(math.Min(float64(left), float64(capacity)))
		tb.Wait(take)
		left -= take
	}
}
