package transport_test

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/framing"
	"github.com/rsocket/rsocket-engine/core/transport"
	"github.com/rsocket/rsocket-engine/internal/u24"
	"github.com/rsocket/rsocket-engine/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func InitMockTCPConn(t *testing.T) (*gomock.Controller, *mockNetConn, *transport.TCPConn) {
	ctrl := gomock.NewController(t)
	nc := newMockNetConn(ctrl)
	tc := transport.NewTCPConn(nc)
	return ctrl, nc, tc
}

func writeFrames(t *testing.T, bf *bytes.Buffer, frames ...*framing.Frame) (resumable int) {
	for _, frame := range frames {
		n := frame.Len()
		if frame.Resumable() {
			resumable += n
		}
		_, err := u24.MustNewUint24(n).WriteTo(bf)
		require.NoError(t, err)
		_, err = frame.WriteTo(bf)
		require.NoError(t, err)
	}
	return
}

func TestTCPConn_Read_Empty(t *testing.T) {
	ctrl, nc, tc := InitMockTCPConn(t)
	defer ctrl.Finish()
	nc.EXPECT().Read(gomock.Any()).Return(0, fakeErr).AnyTimes()
	_, err := tc.Read()
	assert.Error(t, err, "should read failed")
}

func TestTCPConn_Read(t *testing.T) {
	ctrl, nc, tc := InitMockTCPConn(t)
	defer ctrl.Finish()

	bf := &bytes.Buffer{}
	c := core.NewTrafficCounter()
	tc.SetCounter(c)

	toBeWritten := []*framing.Frame{
		framing.NewPayloadFrame(1, fakeData, fakeMetadata, core.FlagNext),
		framing.NewKeepaliveFrame(0, fakeData, true),
		framing.NewRequestResponseFrame(2, fakeData, fakeMetadata, 0),
	}
	readBytes := writeFrames(t, bf, toBeWritten...)

	nc.EXPECT().
		Read(gomock.Any()).
		DoAndReturn(func(b []byte) (int, error) {
			return bf.Read(b)
		}).
		AnyTimes()
	var results []*framing.Frame
	for {
		next, err := tc.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err, "read next frame failed")
		results = append(results, next)
	}
	require.Equal(t, len(toBeWritten), len(results), "result amount does not match")
	for i := 0; i < len(results); i++ {
		assert.Equal(t, toBeWritten[i].Header(), results[i].Header(), "header does not match")
		assert.Equal(t, toBeWritten[i].Data, results[i].Data, "data does not match")
	}
	assert.Equal(t, readBytes, int(c.ReadBytes()), "read bytes doesn't match")
}

func TestTCPConn_Read_SkipIgnorable(t *testing.T) {
	ctrl, nc, tc := InitMockTCPConn(t)
	defer ctrl.Finish()

	bf := &bytes.Buffer{}
	unknown := core.NewFrameHeader(1, core.FrameType(0x30), core.FlagIgnore)
	_, _ = u24.MustNewUint24(core.FrameHeaderLen + 2).WriteTo(bf)
	_, _ = unknown.WriteTo(bf)
	bf.Write([]byte{1, 2})
	writeFrames(t, bf, framing.NewCancelFrame(1))

	nc.EXPECT().
		Read(gomock.Any()).
		DoAndReturn(func(b []byte) (int, error) {
			return bf.Read(b)
		}).
		AnyTimes()
	next, err := tc.Read()
	require.NoError(t, err)
	assert.Equal(t, core.FrameTypeCancel, next.Type)
}

func TestTCPConn_Read_Malformed(t *testing.T) {
	ctrl, nc, tc := InitMockTCPConn(t)
	defer ctrl.Finish()

	bf := &bytes.Buffer{}
	unknown := core.NewFrameHeader(1, core.FrameType(0x30), 0)
	_, _ = u24.MustNewUint24(core.FrameHeaderLen).WriteTo(bf)
	_, _ = unknown.WriteTo(bf)

	nc.EXPECT().
		Read(gomock.Any()).
		DoAndReturn(func(b []byte) (int, error) {
			return bf.Read(b)
		}).
		AnyTimes()
	_, err := tc.Read()
	var decodeErr *core.DecodeError
	assert.True(t, errors.As(err, &decodeErr), "should be decode error")
}

func TestTCPConn_SetDeadline(t *testing.T) {
	ctrl, nc, tc := InitMockTCPConn(t)
	defer ctrl.Finish()

	nc.EXPECT().SetReadDeadline(gomock.Any()).Times(1)
	err := tc.SetDeadline(time.Now())
	assert.NoError(t, err, "call setDeadline failed")
}

func TestTCPConn_Flush_Nothing(t *testing.T) {
	ctrl, nc, tc := InitMockTCPConn(t)
	defer ctrl.Finish()

	c := core.NewTrafficCounter()
	tc.SetCounter(c)

	nc.EXPECT().Write(gomock.Any()).Times(0)

	err := tc.Flush()
	assert.NoError(t, err, "flush failed")
	assert.Equal(t, 0, int(c.WriteBytes()), "bytes written should be zero")
}

func TestTCPConn_WriteWithBrokenConn(t *testing.T) {
	logger.SetLevel(logger.LevelDebug)
	defer logger.SetLevel(logger.LevelInfo)
	ctrl, nc, tc := InitMockTCPConn(t)
	defer ctrl.Finish()
	nc.EXPECT().
		Write(gomock.Any()).
		Return(0, fakeErr).
		AnyTimes()
	_ = tc.Write(framing.NewPayloadFrame(1, fakeData, fakeMetadata, core.FlagNext))
	err := tc.Flush()
	assert.Equal(t, fakeErr, errors.Cause(err), "should be fake error")
}

func TestTCPConn_WriteInvalid(t *testing.T) {
	ctrl, nc, tc := InitMockTCPConn(t)
	defer ctrl.Finish()
	nc.EXPECT().Write(gomock.Any()).Times(0)
	err := tc.Write(&framing.Frame{Type: core.FrameTypeRequestN, StreamID: 1})
	assert.Error(t, err)
}

func TestTCPConn_WriteAndFlush(t *testing.T) {
	ctrl, nc, tc := InitMockTCPConn(t)
	defer ctrl.Finish()

	c := core.NewTrafficCounter()
	tc.SetCounter(c)

	written := &bytes.Buffer{}
	nc.EXPECT().
		Write(gomock.Any()).
		DoAndReturn(func(b []byte) (int, error) {
			return written.Write(b)
		}).
		Times(1)

	toBeWritten := []*framing.Frame{
		framing.NewPayloadFrame(1, fakeData, fakeMetadata, core.FlagNext),
		framing.NewKeepaliveFrame(0, fakeData, true),
		framing.NewRequestResponseFrame(2, fakeData, fakeMetadata, 0),
	}

	var bytesWritten uint64
	for _, frame := range toBeWritten {
		err := tc.Write(frame)
		assert.NoError(t, err, "write failed")
		if frame.Resumable() {
			bytesWritten += uint64(frame.Len())
		}
	}
	err := tc.Flush()
	assert.NoError(t, err)
	assert.Equal(t, bytesWritten, c.WriteBytes(), "write bytes doesn't match")

	expect := &bytes.Buffer{}
	writeFrames(t, expect, toBeWritten...)
	assert.Equal(t, expect.Bytes(), written.Bytes())
}

func TestTCPConn_Close(t *testing.T) {
	ctrl, nc, tc := InitMockTCPConn(t)
	defer ctrl.Finish()
	nc.EXPECT().Close().Return(fakeErr).Times(1)
	err := tc.Close()
	assert.Equal(t, fakeErr, err, "should return fake error")
}
