package socket

import (
	"context"
	"testing"

	"github.com/rsocket/rsocket-engine/rx"
	"github.com/stretchr/testify/assert"
)

func TestStream_Channel(t *testing.T) {
	st := newStream(1, ModelRequestChannel, true)
	st.state = ModelRequestChannel.openState()
	assert.False(t, st.completeOutbound())
	assert.Equal(t, StreamChannelOpen, st.state)
	assert.True(t, st.completeInbound())
	assert.Equal(t, StreamComplete, st.state)
	assert.False(t, st.completeInbound(), "terminal stream should not settle again")
}

func TestStream_RequestResponse(t *testing.T) {
	requester := newStream(1, ModelRequestResponse, true)
	requester.state = ModelRequestResponse.openState()
	assert.Equal(t, StreamResponsePending, requester.state)
	assert.True(t, requester.completeInbound())

	responder := newStream(1, ModelRequestResponse, false)
	responder.state = ModelRequestResponse.openState()
	assert.True(t, responder.completeOutbound())
	assert.Equal(t, StreamComplete, responder.state)
}

func TestStream_Terminate(t *testing.T) {
	st := newStream(2, ModelRequestStream, true)
	st.ctx, st.cancel = context.WithCancel(context.Background())
	st.state = StreamStreaming
	st.terminate(StreamCancelled)
	assert.Equal(t, StreamCancelled, st.state)
	assert.True(t, st.state.Terminal())
	assert.Error(t, st.ctx.Err())
	st.terminate(StreamError)
	assert.Equal(t, StreamCancelled, st.state, "first terminal state wins")
	assert.False(t, st.completeInbound())
}

func TestStream_Credit(t *testing.T) {
	st := newStream(1, ModelRequestStream, false)
	assert.False(t, st.takeCredit())
	st.addCredit(2)
	<-st.creditC
	assert.True(t, st.takeCredit())
	assert.True(t, st.takeCredit())
	assert.False(t, st.takeCredit())

	st.addCredit(rx.RequestMax)
	st.addCredit(10)
	for i := 0; i < 100; i++ {
		assert.True(t, st.takeCredit())
	}
	assert.Equal(t, int64(rx.RequestMax), st.credit, "unbounded demand is never consumed")
}
