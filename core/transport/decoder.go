package transport

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/internal/u24"
)

const (
	lengthFieldSize = 3
	minBuffSize     = 8 * 1024
	maxBuffSize     = u24.MaxUint24 + lengthFieldSize
)

// ErrIncompleteHeader is error of incomplete header.
var ErrIncompleteHeader = errors.New("incomplete frame header")

// LengthBasedFrameDecoder reads frames which are prefixed with a u24 length.
type LengthBasedFrameDecoder bufio.Scanner

// Read reads next raw frame in bytes.
// The returned bytes are only valid until the next call of Read.
func (p *LengthBasedFrameDecoder) Read() (raw []byte, err error) {
	scanner := (*bufio.Scanner)(p)
	if !scanner.Scan() {
		err = scanner.Err()
		if err == nil || isClosedErr(err) {
			err = io.EOF
		}
		return
	}
	raw = scanner.Bytes()[lengthFieldSize:]
	if len(raw) < core.FrameHeaderLen {
		err = ErrIncompleteHeader
	}
	return
}

func splitFrame(data []byte, eof bool) (advance int, token []byte, err error) {
	if len(data) < lengthFieldSize {
		if eof && len(data) > 0 {
			err = io.ErrUnexpectedEOF
		}
		return
	}
	frameLength := u24.ReadUint24ToInt(data)
	if frameLength < 1 {
		err = core.ErrInvalidFrameLength
		return
	}
	frameSize := frameLength + lengthFieldSize
	if frameSize <= len(data) {
		return frameSize, data[:frameSize], nil
	}
	if eof {
		err = io.ErrUnexpectedEOF
	}
	return
}

// NewLengthBasedFrameDecoder creates a new frame decoder.
func NewLengthBasedFrameDecoder(r io.Reader) *LengthBasedFrameDecoder {
	scanner := bufio.NewScanner(r)
	scanner.Split(splitFrame)
	scanner.Buffer(make([]byte, 0, minBuffSize), maxBuffSize)
	return (*LengthBasedFrameDecoder)(scanner)
}
