package payload

import (
	"os"
	"time"

	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/internal/common"
)

type (
	// Payload is a stream message (upstream or downstream).
	// It contains data associated with a stream created by a previous request.
	Payload interface {
		// Metadata returns raw metadata bytes.
		// The ok result indicates whether metadata exists, empty metadata still exists.
		Metadata() (metadata []byte, ok bool)
		// MetadataUTF8 returns metadata as UTF8 string.
		// The ok result indicates whether metadata exists.
		MetadataUTF8() (metadata string, ok bool)
		// Data returns raw data bytes.
		Data() []byte
		// DataUTF8 returns data as UTF8 string.
		DataUTF8() string
	}

	// SetupPayload is particular payload for RSocket Setup.
	SetupPayload interface {
		Payload
		// DataMimeType returns MIME type of data.
		DataMimeType() string
		// MetadataMimeType returns MIME type of metadata.
		MetadataMimeType() string
		// TimeBetweenKeepalive returns interval duration of keepalive.
		TimeBetweenKeepalive() time.Duration
		// MaxLifetime returns max lifetime of RSocket connection.
		MaxLifetime() time.Duration
		// Version return RSocket protocol version.
		Version() core.Version
		// ResumeToken returns resume token, it is nil if resume is disabled.
		ResumeToken() []byte
		// HonorLease returns true if the client honors leases.
		HonorLease() bool
	}
)

// Clone create a copy of original payload.
func Clone(payload Payload) Payload {
	if payload == nil {
		return nil
	}
	switch v := payload.(type) {
	case *rawPayload:
		return &rawPayload{
			data:     common.CloneBytes(v.data),
			metadata: common.CloneBytes(v.metadata),
		}
	case *strPayload:
		return &strPayload{data: v.data, metadata: v.metadata}
	default:
		ret := &rawPayload{
			data: common.CloneBytes(payload.Data()),
		}
		if m, ok := payload.Metadata(); ok {
			ret.metadata = common.CloneBytes(m)
			if ret.metadata == nil {
				ret.metadata = []byte{}
			}
		}
		return ret
	}
}

// Size returns bytes of data and metadata.
func Size(payload Payload) int {
	if payload == nil {
		return 0
	}
	m, _ := payload.Metadata()
	return len(m) + len(payload.Data())
}

// New create a new payload with bytes.
// A nil metadata means no metadata.
func New(data []byte, metadata []byte) Payload {
	return &rawPayload{
		data:     data,
		metadata: metadata,
	}
}

// NewString create a new payload with strings.
// An empty metadata means no metadata.
func NewString(data, metadata string) Payload {
	return &strPayload{
		data:     data,
		metadata: metadata,
	}
}

// Empty returns an empty payload.
func Empty() Payload {
	return &rawPayload{}
}

// NewFile create a new payload from file.
func NewFile(filename string, metadata []byte) (Payload, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return New(bs, metadata), nil
}

// MustNewFile create a new payload from file.
func MustNewFile(filename string, metadata []byte) Payload {
	foo, err := NewFile(filename, metadata)
	if err != nil {
		panic(err)
	}
	return foo
}
