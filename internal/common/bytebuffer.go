package common

import (
	"github.com/valyala/bytebufferpool"
	"go.uber.org/atomic"
)

var (
	borrowed = atomic.NewInt64(0)
	bPool    bytebufferpool.Pool
)

// ByteBuff is a pooled byte buffer.
type ByteBuff = bytebufferpool.ByteBuffer

// BorrowByteBuff borrows a ByteBuff from pool.
func BorrowByteBuff() *ByteBuff {
	borrowed.Inc()
	return bPool.Get()
}

// ReturnByteBuff returns a ByteBuff to pool.
func ReturnByteBuff(b *ByteBuff) {
	if b == nil {
		return
	}
	borrowed.Dec()
	bPool.Put(b)
}

// CountBorrowed returns amount of ByteBuff which have not been returned.
func CountBorrowed() int64 {
	return borrowed.Load()
}

// CloneBytes returns a copy of b, nil stays nil.
func CloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	clone := make([]byte, len(b))
	copy(clone, b)
	return clone
}
