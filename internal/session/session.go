package session

import (
	"fmt"
	"time"

	"github.com/rsocket/rsocket-engine/internal/socket"
)

// Session is a paused server socket waiting for RESUME until its deadline.
type Session struct {
	index    int
	deadline time.Time
	socket   socket.ServerSocket
}

// Socket returns RSocket server socket in current session.
func (p *Session) Socket() socket.ServerSocket {
	return p.socket
}

// Close close current session.
func (p *Session) Close() error {
	return p.socket.Close()
}

// Deadline returns the time after which the session can not be resumed.
func (p *Session) Deadline() time.Time {
	return p.deadline
}

// IsDead returns true if the session is expired at now.
func (p *Session) IsDead(now time.Time) bool {
	return now.After(p.deadline)
}

func (p *Session) String() string {
	tk, _ := p.socket.Token()
	return fmt.Sprintf("Session{token=0x%02X,deadline=%s,state=%s}", tk, p.deadline.Format(time.RFC3339), p.socket.State())
}

// Token returns token of session.
func (p *Session) Token() (token []byte) {
	token, _ = p.socket.Token()
	return
}

// NewSession returns a new session.
func NewSession(deadline time.Time, sk socket.ServerSocket) *Session {
	return &Session{
		index:    -1,
		deadline: deadline,
		socket:   sk,
	}
}
