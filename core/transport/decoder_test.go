package transport_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLengthBasedFrameDecoder_Read(t *testing.T) {
	bf := &bytes.Buffer{}
	for i := 1; i <= 3; i++ {
		body := bytes.Repeat([]byte{byte(i)}, core.FrameHeaderLen+i)
		bf.Write([]byte{0, 0, byte(len(body))})
		bf.Write(body)
	}
	decoder := transport.NewLengthBasedFrameDecoder(bf)
	for i := 1; i <= 3; i++ {
		raw, err := decoder.Read()
		require.NoError(t, err)
		assert.Len(t, raw, core.FrameHeaderLen+i)
	}
	_, err := decoder.Read()
	assert.Equal(t, io.EOF, err)
}

func TestLengthBasedFrameDecoder_Broken(t *testing.T) {
	decoder := transport.NewLengthBasedFrameDecoder(bytes.NewReader([]byte{0, 0, 2, 1, 2}))
	_, err := decoder.Read()
	assert.Equal(t, transport.ErrIncompleteHeader, err)

	decoder = transport.NewLengthBasedFrameDecoder(bytes.NewReader([]byte{0, 0, 0}))
	_, err = decoder.Read()
	assert.Error(t, err)
	assert.NotEqual(t, io.EOF, err)

	decoder = transport.NewLengthBasedFrameDecoder(bytes.NewReader([]byte{0, 0, 9, 1, 2}))
	_, err = decoder.Read()
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}
