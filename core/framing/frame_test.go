package framing_test

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/framing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fakeData     = []byte("fake-data")
	fakeMetadata = []byte("fake-metadata")
	fakeToken    = []byte("fake-token")
)

func roundTrip(t *testing.T, f *framing.Frame) *framing.Frame {
	raw, err := framing.Encode(f)
	require.NoError(t, err, "encode failed")
	assert.Equal(t, f.Len(), len(raw), "bad frame length")
	decoded, err := framing.Decode(raw)
	require.NoError(t, err, "decode failed")
	assert.Equal(t, f, decoded, "frame doesn't match after round trip")
	again, err := framing.Encode(decoded)
	require.NoError(t, err)
	assert.Equal(t, raw, again)
	return decoded
}

func TestRoundTrip(t *testing.T) {
	all := []*framing.Frame{
		framing.NewSetupFrame(core.DefaultVersion, 20*time.Second, 90*time.Second, fakeToken, "application/json", "text/plain", fakeData, fakeMetadata, true),
		framing.NewSetupFrame(core.DefaultVersion, time.Second, 3*time.Second, nil, "a", "b", nil, nil, false),
		framing.NewLeaseFrame(10*time.Second, 5, nil),
		framing.NewLeaseFrame(10*time.Second, 5, fakeMetadata),
		framing.NewKeepaliveFrame(1234, fakeData, true),
		framing.NewKeepaliveFrame(0, nil, false),
		framing.NewRequestResponseFrame(1, fakeData, fakeMetadata, 0),
		framing.NewRequestResponseFrame(1, fakeData, []byte{}, core.FlagFollow),
		framing.NewFireAndForgetFrame(3, fakeData, nil, 0),
		framing.NewRequestStreamFrame(5, 42, fakeData, fakeMetadata, 0),
		framing.NewRequestChannelFrame(7, 1, fakeData, fakeMetadata, core.FlagComplete),
		framing.NewRequestNFrame(9, 100),
		framing.NewCancelFrame(11),
		framing.NewPayloadFrame(13, fakeData, fakeMetadata, core.FlagNext|core.FlagComplete),
		framing.NewPayloadFrame(13, nil, nil, core.FlagComplete),
		framing.NewErrorFrame(0, core.ErrorCodeRejectedSetup, []byte("bad client")),
		framing.NewErrorFrame(15, core.ErrorCodeApplicationError, []byte("oops")),
		framing.NewMetadataPushFrame(fakeMetadata),
		framing.NewResumeFrame(core.DefaultVersion, fakeToken, 100, 20),
		framing.NewResumeOKFrame(88),
	}
	for _, f := range all {
		roundTrip(t, f)
	}
}

func TestHeaderFlags(t *testing.T) {
	f := framing.NewSetupFrame(core.DefaultVersion, time.Second, time.Minute, fakeToken, "a", "b", fakeData, fakeMetadata, true)
	h := f.Header()
	assert.Equal(t, core.FrameTypeSetup, h.Type())
	assert.True(t, h.Flag().Check(core.FlagResume))
	assert.True(t, h.Flag().Check(core.FlagLease))
	assert.True(t, h.Flag().Check(core.FlagMetadata))
	assert.True(t, f.HasFlag(core.FlagMetadata))

	p := framing.NewPayloadFrame(1, fakeData, nil, core.FlagNext)
	assert.False(t, p.HasFlag(core.FlagMetadata))
	assert.True(t, p.Resumable())
	assert.False(t, framing.NewKeepaliveFrame(0, nil, true).Resumable())
}

func TestDecode_Errors(t *testing.T) {
	var de *core.DecodeError

	_, err := framing.Decode([]byte{0, 0, 0})
	assert.True(t, errors.As(err, &de), "should be decode error")

	// truncated request stream
	raw, _ := framing.Encode(framing.NewRequestStreamFrame(1, 1, nil, nil, 0))
	_, err = framing.Decode(raw[:core.FrameHeaderLen+2])
	assert.True(t, errors.As(err, &de), "should be decode error")

	// malformed metadata length
	raw, _ = framing.Encode(framing.NewPayloadFrame(1, nil, fakeMetadata, core.FlagNext))
	raw[core.FrameHeaderLen+2] = 0xFF
	_, err = framing.Decode(raw)
	assert.True(t, errors.As(err, &de), "should be decode error")

	// unknown flag on cancel
	raw = make([]byte, core.FrameHeaderLen)
	binary.BigEndian.PutUint32(raw, 1)
	binary.BigEndian.PutUint16(raw[4:], uint16(core.FrameTypeCancel)<<10|uint16(core.FlagNext))
	_, err = framing.Decode(raw)
	assert.True(t, errors.As(err, &de), "should be decode error")

	// reserved flag bits
	binary.BigEndian.PutUint16(raw[4:], uint16(core.FrameTypeCancel)<<10|0x01)
	_, err = framing.Decode(raw)
	assert.True(t, errors.As(err, &de), "should be decode error")

	// unknown type
	binary.BigEndian.PutUint16(raw[4:], uint16(0x30)<<10)
	_, err = framing.Decode(raw)
	assert.True(t, errors.As(err, &de), "should be decode error")

	// unknown type which can be ignored
	binary.BigEndian.PutUint16(raw[4:], uint16(0x30)<<10|uint16(core.FlagIgnore))
	_, err = framing.Decode(raw)
	assert.Equal(t, framing.ErrIgnoredFrame, err)

	// request frame on stream 0
	raw, _ = framing.Encode(framing.NewRequestResponseFrame(0, fakeData, nil, 0))
	_, err = framing.Decode(raw)
	assert.True(t, errors.As(err, &de), "should be decode error")

	// keepalive on a stream
	raw, _ = framing.Encode(framing.NewKeepaliveFrame(1, nil, false))
	binary.BigEndian.PutUint32(raw, 3)
	_, err = framing.Decode(raw)
	assert.True(t, errors.As(err, &de), "should be decode error")

	// zero request n
	raw = make([]byte, core.FrameHeaderLen+4)
	binary.BigEndian.PutUint32(raw, 1)
	binary.BigEndian.PutUint16(raw[4:], uint16(core.FrameTypeRequestN)<<10)
	_, err = framing.Decode(raw)
	assert.True(t, errors.As(err, &de), "should be decode error")

	// trailing bytes on cancel
	raw, _ = framing.Encode(framing.NewCancelFrame(1))
	_, err = framing.Decode(append(raw, 1))
	assert.True(t, errors.As(err, &de), "should be decode error")
}

func TestEncode_Invalid(t *testing.T) {
	_, err := framing.Encode(framing.NewRequestNFrame(1, 0))
	assert.Error(t, err)
	long := string(bytes.Repeat([]byte("x"), 256))
	_, err = framing.Encode(framing.NewSetupFrame(core.DefaultVersion, time.Second, time.Second, nil, long, "b", nil, nil, false))
	assert.Error(t, err)
	_, err = framing.Encode(&framing.Frame{Type: core.FrameType(0x30)})
	assert.Error(t, err)
}

func TestToError(t *testing.T) {
	f := framing.NewErrorFrameFromError(1, errors.New("boom"))
	e := f.ToError()
	assert.Equal(t, core.ErrorCodeApplicationError, e.ErrorCode())
	assert.Equal(t, "boom", string(e.ErrorData()))
	f = framing.NewErrorFrameFromError(1, core.NewError(core.ErrorCodeRejected, []byte("no")))
	assert.Equal(t, core.ErrorCodeRejected, f.ErrorCode)
}

func TestPrintFrame(t *testing.T) {
	s := framing.PrintFrame(framing.NewRequestStreamFrame(1, 5, fakeData, fakeMetadata, 0))
	assert.Contains(t, s, "REQUEST_STREAM")
	assert.Contains(t, s, "InitialRequestN: 5")
	assert.NotEmpty(t, framing.NewCancelFrame(1).String())
}
