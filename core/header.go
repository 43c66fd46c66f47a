package core

import (
	"encoding/binary"
	"io"
	"strconv"
	"strings"
)

const (
	// FrameHeaderLen is len of header.
	FrameHeaderLen = 6
	// MaxStreamID is the largest stream id which can be represented on wire.
	MaxStreamID uint32 = 0x7FFFFFFF
)

// FrameHeader is the header of a frame.
// It includes StreamID, FrameType and Flags.
type FrameHeader [FrameHeaderLen]byte

func (h FrameHeader) String() string {
	bu := strings.Builder{}
	bu.WriteString("FrameHeader{id=")
	bu.WriteString(strconv.FormatUint(uint64(h.StreamID()), 10))
	bu.WriteString(",type=")
	bu.WriteString(h.Type().String())
	bu.WriteString(",flag=")
	bu.WriteString(h.Flag().String())
	bu.WriteByte('}')
	return bu.String()
}

// Resumable returns true if frame is kept by the resume ledger.
func (h FrameHeader) Resumable() bool {
	return IsResumable(h.Type(), h.StreamID())
}

// IsResumable returns true if a frame with given type and stream id counts into resume positions.
func IsResumable(t FrameType, streamID uint32) bool {
	switch t {
	case FrameTypeRequestChannel, FrameTypeRequestStream, FrameTypeRequestResponse, FrameTypeRequestFNF,
		FrameTypeRequestN, FrameTypeCancel, FrameTypePayload:
		return true
	case FrameTypeError:
		return streamID != 0
	default:
		return false
	}
}

// WriteTo writes frame header to a writer.
func (h FrameHeader) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(h[:])
	return int64(n), err
}

// StreamID returns StreamID.
func (h FrameHeader) StreamID() uint32 {
	return binary.BigEndian.Uint32(h[:4]) & MaxStreamID
}

// Type returns frame type.
func (h FrameHeader) Type() FrameType {
	return FrameType((h.n() & 0xFC00) >> 10)
}

// Flag returns flag of a frame.
func (h FrameHeader) Flag() FrameFlag {
	return FrameFlag(h.n() & uint16(FlagMask))
}

// Bytes returns raw frame header bytes.
func (h FrameHeader) Bytes() []byte {
	return h[:]
}

func (h FrameHeader) n() uint16 {
	return binary.BigEndian.Uint16(h[4:])
}

// NewFrameHeader returns a new frame header.
func NewFrameHeader(streamID uint32, frameType FrameType, fg FrameFlag) FrameHeader {
	var h [FrameHeaderLen]byte
	binary.BigEndian.PutUint32(h[:], streamID&MaxStreamID)
	binary.BigEndian.PutUint16(h[4:], uint16(frameType)<<10|uint16(fg&FlagMask))
	return h
}

// ParseFrameHeader parse a header from bytes.
func ParseFrameHeader(bs []byte) FrameHeader {
	_ = bs[FrameHeaderLen-1]
	var bb [FrameHeaderLen]byte
	copy(bb[:], bs[:FrameHeaderLen])
	return bb
}
