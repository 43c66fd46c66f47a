package socket

import (
	"time"

	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/framing"
)

// SetupInfo represents basic info of setup.
type SetupInfo struct {
	Version           core.Version
	KeepaliveInterval time.Duration
	KeepaliveLifetime time.Duration
	// Token enables resume when it is not empty.
	Token            []byte
	DataMimeType     string
	Data             []byte
	MetadataMimeType string
	Metadata         []byte
	// Lease tells the server that leases are honoured.
	Lease bool
}

func (p *SetupInfo) toFrame() *framing.Frame {
	return framing.NewSetupFrame(
		p.Version,
		p.KeepaliveInterval,
		p.KeepaliveLifetime,
		p.Token,
		p.MetadataMimeType,
		p.DataMimeType,
		p.Data,
		p.Metadata,
		p.Lease,
	)
}
