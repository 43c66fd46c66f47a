package payload

import (
	"time"

	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/framing"
)

type setupPayload struct {
	f *framing.Frame
}

// NewSetupPayload wraps a SETUP frame as SetupPayload.
func NewSetupPayload(f *framing.Frame) SetupPayload {
	return setupPayload{f: f}
}

func (p setupPayload) Metadata() ([]byte, bool) {
	return p.f.Metadata, p.f.Metadata != nil
}

func (p setupPayload) MetadataUTF8() (string, bool) {
	return string(p.f.Metadata), p.f.Metadata != nil
}

func (p setupPayload) Data() []byte {
	return p.f.Data
}

func (p setupPayload) DataUTF8() string {
	return string(p.f.Data)
}

func (p setupPayload) DataMimeType() string {
	return p.f.DataMIME
}

func (p setupPayload) MetadataMimeType() string {
	return p.f.MetadataMIME
}

func (p setupPayload) TimeBetweenKeepalive() time.Duration {
	return p.f.KeepaliveInterval
}

func (p setupPayload) MaxLifetime() time.Duration {
	return p.f.MaxLifetime
}

func (p setupPayload) Version() core.Version {
	return p.f.Version
}

func (p setupPayload) ResumeToken() []byte {
	return p.f.Token
}

func (p setupPayload) HonorLease() bool {
	return p.f.Flags.Check(core.FlagLease)
}
