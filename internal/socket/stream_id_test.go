package socket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamIDs_Next(t *testing.T) {
	client := newStreamIDs(false)
	for _, expect := range []uint32{1, 3, 5, 7} {
		id, ok := client.next(nil)
		assert.True(t, ok)
		assert.Equal(t, expect, id)
	}
	server := newStreamIDs(true)
	for _, expect := range []uint32{2, 4, 6, 8} {
		id, ok := server.next(nil)
		assert.True(t, ok)
		assert.Equal(t, expect, id)
	}
}

func TestStreamIDs_SkipActive(t *testing.T) {
	ids := newStreamIDs(false)
	active := map[uint32]bool{1: true, 3: true, 7: true}
	inUse := func(id uint32) bool {
		return active[id]
	}
	id, ok := ids.next(inUse)
	assert.True(t, ok)
	assert.Equal(t, uint32(5), id)
	id, ok = ids.next(inUse)
	assert.True(t, ok)
	assert.Equal(t, uint32(9), id)
}

func TestStreamIDs_Wrap(t *testing.T) {
	client := &streamIDs{cur: maskStreamID - 2}
	id, _ := client.next(nil)
	assert.Equal(t, maskStreamID, id)
	id, _ = client.next(func(id uint32) bool {
		return id == 1
	})
	assert.Equal(t, uint32(3), id, "active id should be skipped after wrap-around")

	server := &streamIDs{cur: maskStreamID - 1, server: true}
	id, _ = server.next(nil)
	assert.Equal(t, uint32(2), id, "zero should never be used")
}

func BenchmarkStreamIDs_Next(b *testing.B) {
	ids := newStreamIDs(false)
	for i := 0; i < b.N; i++ {
		_, _ = ids.next(nil)
	}
}
