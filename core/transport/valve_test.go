package transport_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/framing"
	"github.com/rsocket/rsocket-engine/core/transport"
	"github.com/stretchr/testify/assert"
)

func TestValve(t *testing.T) {
	ctrl, nc, tc := InitMockTCPConn(t)
	defer ctrl.Finish()

	valve := transport.NewValve(0, 4096)
	tc.SetValve(valve)

	written := &bytes.Buffer{}
	nc.EXPECT().Write(gomock.Any()).DoAndReturn(written.Write).AnyTimes()

	f := framing.NewPayloadFrame(1, make([]byte, 1024), nil, core.FlagNext)
	start := time.Now()
	// first 4096 bytes are served by the initial bucket
	for i := 0; i < 8; i++ {
		assert.NoError(t, tc.Write(f))
	}
	assert.NoError(t, tc.Flush())
	assert.Equal(t, int64(8*(f.Len()+3)), valve.Tx())
	assert.True(t, time.Since(start) >= 500*time.Millisecond, "should be limited")
	assert.Equal(t, int64(0), valve.Rx())
}
