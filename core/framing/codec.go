package framing

import (
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/internal/u24"
)

// ErrIgnoredFrame is returned by Decode when an unknown frame can be skipped safely.
var ErrIgnoredFrame = errors.New("ignored unknown frame")

const (
	u32Len = 4
	u64Len = 8
)

// Len returns the encoded length of frame, the length prefix of stream transports is excluded.
func (f *Frame) Len() int {
	return core.FrameHeaderLen + f.bodyLen()
}

func (f *Frame) metadataLen() int {
	if f.Metadata == nil {
		return 0
	}
	return 3 + len(f.Metadata)
}

func (f *Frame) bodyLen() int {
	switch f.Type {
	case core.FrameTypeSetup:
		n := core.VersionLen + u32Len + u32Len + 1 + len(f.MetadataMIME) + 1 + len(f.DataMIME)
		if len(f.Token) > 0 {
			n += 2 + len(f.Token)
		}
		return n + f.metadataLen() + len(f.Data)
	case core.FrameTypeLease:
		return u32Len + u32Len + len(f.Metadata)
	case core.FrameTypeKeepalive:
		return u64Len + len(f.Data)
	case core.FrameTypeRequestResponse, core.FrameTypeRequestFNF, core.FrameTypePayload:
		return f.metadataLen() + len(f.Data)
	case core.FrameTypeRequestStream, core.FrameTypeRequestChannel, core.FrameTypeExt:
		return u32Len + f.metadataLen() + len(f.Data)
	case core.FrameTypeRequestN:
		return u32Len
	case core.FrameTypeError:
		return u32Len + len(f.Data)
	case core.FrameTypeMetadataPush:
		return len(f.Metadata)
	case core.FrameTypeResume:
		return core.VersionLen + 2 + len(f.Token) + u64Len + u64Len
	case core.FrameTypeResumeOK:
		return u64Len
	default:
		return 0
	}
}

// Validate returns error if frame can not be encoded.
func (f *Frame) Validate() error {
	if !f.Type.Known() {
		return errors.Errorf("invalid frame type: %d", f.Type)
	}
	if len(f.Metadata) > u24.MaxUint24 {
		return errors.New("metadata length exceeds 16MB")
	}
	switch f.Type {
	case core.FrameTypeSetup:
		if len(f.MetadataMIME) > math.MaxUint8 || len(f.DataMIME) > math.MaxUint8 {
			return errors.New("length of MIME type exceeds 255")
		}
		if len(f.Token) > math.MaxUint16 {
			return errors.New("length of resume token exceeds 65535")
		}
	case core.FrameTypeResume:
		if len(f.Token) > math.MaxUint16 {
			return errors.New("length of resume token exceeds 65535")
		}
	case core.FrameTypeRequestN:
		if f.N < 1 {
			return errors.New("request-n must be positive")
		}
	}
	if f.Len() > u24.MaxUint24 {
		return core.ErrInvalidFrameLength
	}
	return nil
}

// Encode encodes a frame to bytes.
func Encode(f *Frame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	b := make([]byte, f.Len())
	f.put(b)
	return b, nil
}

// WriteTo writes the encoded frame to a writer.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	b, err := Encode(f)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

func (f *Frame) put(b []byte) {
	h := f.Header()
	copy(b, h[:])
	off := core.FrameHeaderLen
	putU32 := func(v uint32) {
		binary.BigEndian.PutUint32(b[off:], v)
		off += u32Len
	}
	putU64 := func(v uint64) {
		binary.BigEndian.PutUint64(b[off:], v)
		off += u64Len
	}
	putBytes := func(v []byte) {
		off += copy(b[off:], v)
	}
	putMetadata := func() {
		if f.Metadata == nil {
			return
		}
		u24.Put(b[off:], len(f.Metadata))
		off += 3
		putBytes(f.Metadata)
	}
	switch f.Type {
	case core.FrameTypeSetup:
		putBytes(f.Version.Bytes())
		putU32(toMillis(f.KeepaliveInterval))
		putU32(toMillis(f.MaxLifetime))
		if len(f.Token) > 0 {
			binary.BigEndian.PutUint16(b[off:], uint16(len(f.Token)))
			off += 2
			putBytes(f.Token)
		}
		b[off] = byte(len(f.MetadataMIME))
		off++
		putBytes([]byte(f.MetadataMIME))
		b[off] = byte(len(f.DataMIME))
		off++
		putBytes([]byte(f.DataMIME))
		putMetadata()
		putBytes(f.Data)
	case core.FrameTypeLease:
		putU32(toMillis(f.TimeToLive))
		putU32(f.NumberOfRequests)
		putBytes(f.Metadata)
	case core.FrameTypeKeepalive:
		putU64(f.LastReceivedPosition)
		putBytes(f.Data)
	case core.FrameTypeRequestResponse, core.FrameTypeRequestFNF, core.FrameTypePayload:
		putMetadata()
		putBytes(f.Data)
	case core.FrameTypeRequestStream, core.FrameTypeRequestChannel:
		putU32(f.InitialRequestN)
		putMetadata()
		putBytes(f.Data)
	case core.FrameTypeExt:
		putU32(f.ExtendedType)
		putMetadata()
		putBytes(f.Data)
	case core.FrameTypeRequestN:
		putU32(f.N)
	case core.FrameTypeError:
		putU32(uint32(f.ErrorCode))
		putBytes(f.Data)
	case core.FrameTypeMetadataPush:
		putBytes(f.Metadata)
	case core.FrameTypeResume:
		putBytes(f.Version.Bytes())
		binary.BigEndian.PutUint16(b[off:], uint16(len(f.Token)))
		off += 2
		putBytes(f.Token)
		putU64(f.LastReceivedPosition)
		putU64(f.FirstAvailablePosition)
	case core.FrameTypeResumeOK:
		putU64(f.LastReceivedPosition)
	}
}

type reader struct {
	b   []byte
	off int
	err *core.DecodeError
}

func (r *reader) need(n int, what string) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.off+n > len(r.b) {
		r.err = core.NewDecodeError("truncated frame: missing %s", what)
		return false
	}
	return true
}

func (r *reader) u8(what string) int {
	if !r.need(1, what) {
		return 0
	}
	v := r.b[r.off]
	r.off++
	return int(v)
}

func (r *reader) u16(what string) int {
	if !r.need(2, what) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.b[r.off:])
	r.off += 2
	return int(v)
}

func (r *reader) u32(what string) uint32 {
	if !r.need(u32Len, what) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.b[r.off:])
	r.off += u32Len
	return v
}

func (r *reader) u64(what string) uint64 {
	if !r.need(u64Len, what) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.b[r.off:])
	r.off += u64Len
	return v
}

func (r *reader) bytes(n int, what string) []byte {
	if !r.need(n, what) {
		return nil
	}
	v := r.b[r.off : r.off+n]
	r.off += n
	return v
}

func (r *reader) metadata() []byte {
	if !r.need(3, "metadata length") {
		return nil
	}
	n := u24.ReadUint24ToInt(r.b[r.off:])
	r.off += 3
	if r.off+n > len(r.b) {
		r.err = core.NewDecodeError("malformed metadata length: %d", n)
		return nil
	}
	v := r.b[r.off : r.off+n]
	r.off += n
	return v
}

func (r *reader) rest() []byte {
	if r.err != nil || r.off >= len(r.b) {
		return nil
	}
	v := r.b[r.off:]
	r.off = len(r.b)
	return v
}

func (r *reader) end() {
	if r.err == nil && r.off != len(r.b) {
		r.err = core.NewDecodeError("unexpected %d trailing bytes", len(r.b)-r.off)
	}
}

// Decode decodes a frame from bytes.
// The returned frame shares memory with raw, so raw must not be reused by caller.
func Decode(raw []byte) (*Frame, error) {
	if len(raw) < core.FrameHeaderLen {
		return nil, core.NewDecodeError("incomplete frame header: %d bytes", len(raw))
	}
	if binary.BigEndian.Uint32(raw)&^core.MaxStreamID != 0 {
		return nil, core.NewDecodeError("reserved bit of stream id is set")
	}
	h := core.ParseFrameHeader(raw)
	t, fg := h.Type(), h.Flag()
	if !t.Known() {
		if fg.Check(core.FlagIgnore) {
			return nil, ErrIgnoredFrame
		}
		return nil, core.NewDecodeError("unknown frame type 0x%02X", uint8(t))
	}
	if unknown := fg &^ allowedFlags(t); unknown != 0 {
		return nil, core.NewDecodeError("unknown flags 0b%010b for %s", unknown, t)
	}
	sid := h.StreamID()
	if connectionLevel(t) && sid != 0 {
		return nil, core.NewDecodeError("%s must use stream id 0, got %d", t, sid)
	}
	if !connectionLevel(t) && t != core.FrameTypeError && t != core.FrameTypeExt && sid == 0 {
		return nil, core.NewDecodeError("%s must not use stream id 0", t)
	}
	f := &Frame{
		StreamID: sid,
		Type:     t,
		Flags:    fg &^ core.FlagMetadata,
	}
	if t == core.FrameTypeSetup {
		f.Flags &^= core.FlagResume
	}
	r := &reader{b: raw, off: core.FrameHeaderLen}
	hasMetadata := fg.Check(core.FlagMetadata)
	switch t {
	case core.FrameTypeSetup:
		f.Version = core.ParseVersion(r.bytes(core.VersionLen, "version"))
		f.KeepaliveInterval = fromMillis(r.u32("keepalive interval"))
		f.MaxLifetime = fromMillis(r.u32("max lifetime"))
		if fg.Check(core.FlagResume) {
			f.Token = r.bytes(r.u16("resume token length"), "resume token")
		}
		f.MetadataMIME = string(r.bytes(r.u8("metadata mime length"), "metadata mime"))
		f.DataMIME = string(r.bytes(r.u8("data mime length"), "data mime"))
		if hasMetadata {
			f.Metadata = r.metadata()
		}
		f.Data = r.rest()
	case core.FrameTypeLease:
		f.TimeToLive = fromMillis(r.u32("time to live"))
		f.NumberOfRequests = r.u32("number of requests")
		if hasMetadata {
			f.Metadata = r.rest()
			if f.Metadata == nil {
				f.Metadata = []byte{}
			}
		}
	case core.FrameTypeKeepalive:
		f.LastReceivedPosition = r.u64("last received position")
		f.Data = r.rest()
	case core.FrameTypeRequestResponse, core.FrameTypeRequestFNF, core.FrameTypePayload:
		if hasMetadata {
			f.Metadata = r.metadata()
		}
		f.Data = r.rest()
		if t == core.FrameTypePayload && !fg.Check(core.FlagNext) && !fg.Check(core.FlagComplete) && !fg.Check(core.FlagFollow) {
			return nil, core.NewDecodeError("payload frame without next or complete flag")
		}
	case core.FrameTypeRequestStream, core.FrameTypeRequestChannel:
		f.InitialRequestN = r.u32("initial request n")
		if hasMetadata {
			f.Metadata = r.metadata()
		}
		f.Data = r.rest()
	case core.FrameTypeExt:
		f.ExtendedType = r.u32("extended type")
		if hasMetadata {
			f.Metadata = r.metadata()
		}
		f.Data = r.rest()
	case core.FrameTypeRequestN:
		f.N = r.u32("request n")
		r.end()
		if r.err == nil && f.N < 1 {
			return nil, core.NewDecodeError("request-n must be positive")
		}
	case core.FrameTypeCancel:
		r.end()
	case core.FrameTypeError:
		f.ErrorCode = core.ErrorCode(r.u32("error code"))
		f.Data = r.rest()
	case core.FrameTypeMetadataPush:
		f.Metadata = r.rest()
		if f.Metadata == nil {
			f.Metadata = []byte{}
		}
	case core.FrameTypeResume:
		f.Version = core.ParseVersion(r.bytes(core.VersionLen, "version"))
		f.Token = r.bytes(r.u16("resume token length"), "resume token")
		f.LastReceivedPosition = r.u64("last received server position")
		f.FirstAvailablePosition = r.u64("first available client position")
		r.end()
	case core.FrameTypeResumeOK:
		f.LastReceivedPosition = r.u64("last received client position")
		r.end()
	}
	if r.err != nil {
		return nil, r.err
	}
	if !hasMetadata {
		f.Metadata = nil
	}
	return f, nil
}

func toMillis(d time.Duration) uint32 {
	ms := d.Milliseconds()
	if ms > math.MaxUint32 {
		return math.MaxUint32
	}
	if ms < 0 {
		return 0
	}
	return uint32(ms)
}

func fromMillis(ms uint32) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
