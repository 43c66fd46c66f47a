package framing

import (
	"strconv"
	"strings"
	"time"

	"github.com/rsocket/rsocket-engine/core"
)

// Frame is a single message of the protocol.
// Only the fields belonging to its Type are meaningful.
type Frame struct {
	StreamID uint32
	Type     core.FrameType
	// Flags holds type specific flags. The metadata flag is derived from Metadata
	// and the resume flag of SETUP is derived from Token when encoding.
	Flags    core.FrameFlag
	Metadata []byte
	Data     []byte

	// SETUP, RESUME
	Version core.Version
	// SETUP
	KeepaliveInterval time.Duration
	MaxLifetime       time.Duration
	MetadataMIME      string
	DataMIME          string
	// SETUP, RESUME
	Token []byte
	// LEASE
	TimeToLive       time.Duration
	NumberOfRequests uint32
	// REQUEST_STREAM, REQUEST_CHANNEL
	InitialRequestN uint32
	// REQUEST_N
	N uint32
	// ERROR
	ErrorCode core.ErrorCode
	// KEEPALIVE, RESUME(server position), RESUME_OK(client position)
	LastReceivedPosition uint64
	// RESUME
	FirstAvailablePosition uint64
	// EXT
	ExtendedType uint32
}

// Header returns the frame header which will be written.
func (f *Frame) Header() core.FrameHeader {
	return core.NewFrameHeader(f.StreamID, f.Type, f.flags())
}

// HasFlag returns true if target frame flag is enabled.
func (f *Frame) HasFlag(flag core.FrameFlag) bool {
	return f.flags().Check(flag)
}

// Resumable returns true if the frame is kept for resume.
func (f *Frame) Resumable() bool {
	return core.IsResumable(f.Type, f.StreamID)
}

// ToError converts an ERROR frame to an error.
func (f *Frame) ToError() *core.Error {
	return core.NewError(f.ErrorCode, f.Data)
}

func (f *Frame) String() string {
	b := strings.Builder{}
	b.WriteString("Frame{id=")
	b.WriteString(strconv.FormatUint(uint64(f.StreamID), 10))
	b.WriteString(",type=")
	b.WriteString(f.Type.String())
	b.WriteString(",flag=")
	b.WriteString(f.flags().String())
	b.WriteString(",len=")
	b.WriteString(strconv.Itoa(f.Len()))
	b.WriteByte('}')
	return b.String()
}

func (f *Frame) flags() core.FrameFlag {
	fg := f.Flags &^ core.FlagMetadata
	switch f.Type {
	case core.FrameTypeMetadataPush:
		fg |= core.FlagMetadata
	case core.FrameTypeRequestN, core.FrameTypeCancel, core.FrameTypeError, core.FrameTypeKeepalive,
		core.FrameTypeResume, core.FrameTypeResumeOK:
	default:
		if f.Metadata != nil {
			fg |= core.FlagMetadata
		}
	}
	if f.Type == core.FrameTypeSetup {
		fg &^= core.FlagResume
		if len(f.Token) > 0 {
			fg |= core.FlagResume
		}
	}
	return fg
}

// allowedFlags lists the flags which may be set for each frame type.
func allowedFlags(t core.FrameType) core.FrameFlag {
	fg := core.FlagIgnore
	switch t {
	case core.FrameTypeSetup:
		fg |= core.FlagMetadata | core.FlagResume | core.FlagLease
	case core.FrameTypeLease, core.FrameTypeMetadataPush:
		fg |= core.FlagMetadata
	case core.FrameTypeKeepalive:
		fg |= core.FlagRespond
	case core.FrameTypeRequestResponse, core.FrameTypeRequestFNF, core.FrameTypeRequestStream:
		fg |= core.FlagMetadata | core.FlagFollow
	case core.FrameTypeRequestChannel:
		fg |= core.FlagMetadata | core.FlagFollow | core.FlagComplete
	case core.FrameTypePayload:
		fg |= core.FlagMetadata | core.FlagFollow | core.FlagComplete | core.FlagNext
	case core.FrameTypeExt:
		fg |= core.FlagMetadata
	}
	return fg
}

func connectionLevel(t core.FrameType) bool {
	switch t {
	case core.FrameTypeSetup, core.FrameTypeLease, core.FrameTypeKeepalive, core.FrameTypeMetadataPush,
		core.FrameTypeResume, core.FrameTypeResumeOK:
		return true
	default:
		return false
	}
}

func hasPrefixedMetadata(t core.FrameType) bool {
	switch t {
	case core.FrameTypeSetup, core.FrameTypeRequestResponse, core.FrameTypeRequestFNF, core.FrameTypeRequestStream,
		core.FrameTypeRequestChannel, core.FrameTypePayload, core.FrameTypeExt:
		return true
	default:
		return false
	}
}
