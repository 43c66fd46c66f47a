package socket

import (
	"context"

	"github.com/rsocket/rsocket-engine/core/transport"
)

type serverSocket struct {
	*DuplexConnection
	token []byte
}

// NewSimpleServerSocket creates a new server-side socket.
func NewSimpleServerSocket(conn *DuplexConnection) ServerSocket {
	return &serverSocket{
		DuplexConnection: conn,
	}
}

// NewResumableServerSocket creates a new server-side socket with resume support.
// The connection must keep a ledger.
func NewResumableServerSocket(conn *DuplexConnection, token []byte) ServerSocket {
	return &serverSocket{
		DuplexConnection: conn,
		token:            token,
	}
}

func (p *serverSocket) Pause(tp *transport.Transport, err error) bool {
	return p.transportLost(tp, err) == SessionResuming
}

func (p *serverSocket) Token() (token []byte, ok bool) {
	return p.token, len(p.token) > 0
}

func (p *serverSocket) Start(ctx context.Context) error {
	defer func() {
		_ = p.Close()
	}()
	return p.LoopWrite(ctx)
}
