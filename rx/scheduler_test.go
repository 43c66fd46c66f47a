package rx_test

import (
	"context"
	"sync"
	"testing"

	"github.com/rsocket/rsocket-engine/rx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestElasticScheduler(t *testing.T) {
	s, err := rx.NewElasticScheduler(4)
	require.NoError(t, err)
	defer func() {
		_ = s.Close()
	}()
	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	cnt := atomic.NewInt32(0)
	for i := 0; i < n; i++ {
		err := s.Do(context.Background(), func(ctx context.Context) {
			defer wg.Done()
			cnt.Inc()
		})
		require.NoError(t, err)
	}
	wg.Wait()
	assert.Equal(t, int32(n), cnt.Load())
}

func TestImmediateScheduler(t *testing.T) {
	done := false
	err := rx.ImmediateScheduler().Do(context.Background(), func(ctx context.Context) {
		done = true
	})
	assert.NoError(t, err)
	assert.True(t, done)
	assert.NoError(t, rx.ImmediateScheduler().Close())
	assert.NotNil(t, rx.ElasticScheduler())
}
