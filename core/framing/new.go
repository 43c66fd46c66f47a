package framing

import (
	"time"

	"github.com/rsocket/rsocket-engine/core"
)

// NewSetupFrame creates a new SETUP frame. A non-empty token enables resume.
func NewSetupFrame(
	version core.Version,
	keepaliveInterval, maxLifetime time.Duration,
	token []byte,
	metadataMIME, dataMIME string,
	data, metadata []byte,
	lease bool,
) *Frame {
	var fg core.FrameFlag
	if lease {
		fg |= core.FlagLease
	}
	return &Frame{
		Type:              core.FrameTypeSetup,
		Flags:             fg,
		Version:           version,
		KeepaliveInterval: keepaliveInterval,
		MaxLifetime:       maxLifetime,
		Token:             token,
		MetadataMIME:      metadataMIME,
		DataMIME:          dataMIME,
		Metadata:          metadata,
		Data:              data,
	}
}

// NewLeaseFrame creates a new LEASE frame.
func NewLeaseFrame(ttl time.Duration, n uint32, metadata []byte) *Frame {
	return &Frame{
		Type:             core.FrameTypeLease,
		TimeToLive:       ttl,
		NumberOfRequests: n,
		Metadata:         metadata,
	}
}

// NewKeepaliveFrame creates a new KEEPALIVE frame.
func NewKeepaliveFrame(position uint64, data []byte, respond bool) *Frame {
	var fg core.FrameFlag
	if respond {
		fg |= core.FlagRespond
	}
	return &Frame{
		Type:                 core.FrameTypeKeepalive,
		Flags:                fg,
		LastReceivedPosition: position,
		Data:                 data,
	}
}

// NewRequestResponseFrame creates a new REQUEST_RESPONSE frame.
func NewRequestResponseFrame(sid uint32, data, metadata []byte, fg core.FrameFlag) *Frame {
	return &Frame{
		StreamID: sid,
		Type:     core.FrameTypeRequestResponse,
		Flags:    fg,
		Data:     data,
		Metadata: metadata,
	}
}

// NewFireAndForgetFrame creates a new REQUEST_FNF frame.
func NewFireAndForgetFrame(sid uint32, data, metadata []byte, fg core.FrameFlag) *Frame {
	return &Frame{
		StreamID: sid,
		Type:     core.FrameTypeRequestFNF,
		Flags:    fg,
		Data:     data,
		Metadata: metadata,
	}
}

// NewRequestStreamFrame creates a new REQUEST_STREAM frame.
func NewRequestStreamFrame(sid uint32, n uint32, data, metadata []byte, fg core.FrameFlag) *Frame {
	return &Frame{
		StreamID:        sid,
		Type:            core.FrameTypeRequestStream,
		Flags:           fg,
		InitialRequestN: n,
		Data:            data,
		Metadata:        metadata,
	}
}

// NewRequestChannelFrame creates a new REQUEST_CHANNEL frame.
func NewRequestChannelFrame(sid uint32, n uint32, data, metadata []byte, fg core.FrameFlag) *Frame {
	return &Frame{
		StreamID:        sid,
		Type:            core.FrameTypeRequestChannel,
		Flags:           fg,
		InitialRequestN: n,
		Data:            data,
		Metadata:        metadata,
	}
}

// NewRequestNFrame creates a new REQUEST_N frame.
func NewRequestNFrame(sid, n uint32) *Frame {
	return &Frame{
		StreamID: sid,
		Type:     core.FrameTypeRequestN,
		N:        n,
	}
}

// NewCancelFrame creates a new CANCEL frame.
func NewCancelFrame(sid uint32) *Frame {
	return &Frame{
		StreamID: sid,
		Type:     core.FrameTypeCancel,
	}
}

// NewPayloadFrame creates a new PAYLOAD frame.
func NewPayloadFrame(sid uint32, data, metadata []byte, fg core.FrameFlag) *Frame {
	return &Frame{
		StreamID: sid,
		Type:     core.FrameTypePayload,
		Flags:    fg,
		Data:     data,
		Metadata: metadata,
	}
}

// NewErrorFrame creates a new ERROR frame.
func NewErrorFrame(sid uint32, code core.ErrorCode, data []byte) *Frame {
	return &Frame{
		StreamID:  sid,
		Type:      core.FrameTypeError,
		ErrorCode: code,
		Data:      data,
	}
}

// NewErrorFrameFromError creates a new ERROR frame from an error, APPLICATION_ERROR is used by default.
func NewErrorFrameFromError(sid uint32, err error) *Frame {
	e := core.ToError(err)
	return NewErrorFrame(sid, e.ErrorCode(), e.ErrorData())
}

// NewMetadataPushFrame creates a new METADATA_PUSH frame.
func NewMetadataPushFrame(metadata []byte) *Frame {
	if metadata == nil {
		metadata = []byte{}
	}
	return &Frame{
		Type:     core.FrameTypeMetadataPush,
		Metadata: metadata,
	}
}

// NewResumeFrame creates a new RESUME frame.
func NewResumeFrame(version core.Version, token []byte, lastReceivedServerPos, firstAvailableClientPos uint64) *Frame {
	return &Frame{
		Type:                   core.FrameTypeResume,
		Version:                version,
		Token:                  token,
		LastReceivedPosition:   lastReceivedServerPos,
		FirstAvailablePosition: firstAvailableClientPos,
	}
}

// NewResumeOKFrame creates a new RESUME_OK frame.
func NewResumeOKFrame(lastReceivedClientPos uint64) *Frame {
	return &Frame{
		Type:                 core.FrameTypeResumeOK,
		LastReceivedPosition: lastReceivedClientPos,
	}
}
