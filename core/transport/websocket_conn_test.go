package transport_test

import (
	"io"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/framing"
	"github.com/rsocket/rsocket-engine/core/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func InitMockWsConn(t *testing.T) (*gomock.Controller, *mockRawWsConn, *transport.WsConn) {
	ctrl := gomock.NewController(t)
	raw := newMockRawWsConn(ctrl)
	return ctrl, raw, transport.NewWebsocketConnection(raw)
}

func TestWsConn_Read(t *testing.T) {
	ctrl, raw, wc := InitMockWsConn(t)
	defer ctrl.Finish()

	c := core.NewTrafficCounter()
	wc.SetCounter(c)

	toBeRead := []*framing.Frame{
		framing.NewPayloadFrame(1, fakeData, fakeMetadata, core.FlagNext),
		framing.NewKeepaliveFrame(0, fakeData, true),
	}
	var calls []*gomock.Call
	calls = append(calls, raw.EXPECT().ReadMessage().Return(websocket.TextMessage, []byte("ignored"), nil))
	var readBytes int
	for _, f := range toBeRead {
		b, err := framing.Encode(f)
		require.NoError(t, err)
		if f.Resumable() {
			readBytes += len(b)
		}
		calls = append(calls, raw.EXPECT().ReadMessage().Return(websocket.BinaryMessage, b, nil))
	}
	calls = append(calls, raw.EXPECT().ReadMessage().Return(0, nil, io.EOF))
	gomock.InOrder(calls...)

	var results []*framing.Frame
	for {
		next, err := wc.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		results = append(results, next)
	}
	require.Len(t, results, len(toBeRead))
	for i := range results {
		assert.Equal(t, toBeRead[i].Header(), results[i].Header())
	}
	assert.Equal(t, readBytes, int(c.ReadBytes()))
}

func TestWsConn_ReadBroken(t *testing.T) {
	ctrl, raw, wc := InitMockWsConn(t)
	defer ctrl.Finish()
	raw.EXPECT().ReadMessage().Return(0, nil, fakeErr)
	_, err := wc.Read()
	assert.Equal(t, fakeErr, errors.Cause(err))

	raw.EXPECT().ReadMessage().Return(websocket.BinaryMessage, []byte{1, 2}, nil)
	_, err = wc.Read()
	assert.Error(t, err)
}

func TestWsConn_Write(t *testing.T) {
	ctrl, raw, wc := InitMockWsConn(t)
	defer ctrl.Finish()

	c := core.NewTrafficCounter()
	wc.SetCounter(c)

	f := framing.NewRequestResponseFrame(1, fakeData, fakeMetadata, 0)
	expect, err := framing.Encode(f)
	require.NoError(t, err)

	raw.EXPECT().WriteMessage(websocket.BinaryMessage, expect).Return(nil).Times(1)
	assert.NoError(t, wc.Write(f))
	assert.NoError(t, wc.Flush())
	assert.Equal(t, uint64(len(expect)), c.WriteBytes())

	raw.EXPECT().WriteMessage(gomock.Any(), gomock.Any()).Return(fakeErr).Times(1)
	err = wc.Write(f)
	assert.Equal(t, fakeErr, errors.Cause(err))
}

func TestWsConn_DeadlineAndClose(t *testing.T) {
	ctrl, raw, wc := InitMockWsConn(t)
	defer ctrl.Finish()
	raw.EXPECT().SetReadDeadline(gomock.Any()).Return(nil).Times(1)
	raw.EXPECT().Close().Return(nil).Times(1)
	assert.NoError(t, wc.SetDeadline(time.Now()))
	assert.NoError(t, wc.Close())
}
