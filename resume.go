package rsocket

import (
	"time"

	"github.com/google/uuid"
	"github.com/rsocket/rsocket-engine/internal/socket"
)

// Default settings of resume.
const (
	DefaultResumeSessionDuration  = socket.DefaultSessionDuration
	DefaultResumeReconnectDelay   = socket.DefaultReconnectDelay
	DefaultResumeHandshakeTimeout = socket.DefaultHandshakeTimeout
)

// ResumeOptions configures session resumption.
type ResumeOptions struct {
	// Token generates the resume token of a client session.
	Token func() []byte
	// SessionDuration is the window in which a lost session can be resumed.
	SessionDuration time.Duration
	// ReconnectDelay is the pause between reconnect attempts of a client.
	ReconnectDelay time.Duration
	// HandshakeTimeout bounds the wait for RESUME_OK.
	HandshakeTimeout time.Duration
	// LedgerMaxBytes bounds the bytes of frames kept for replay, zero means unbounded.
	LedgerMaxBytes int
	// LedgerMaxFrames bounds the number of frames kept for replay, zero means unbounded.
	LedgerMaxFrames int
}

// ResumeOption tunes ResumeOptions.
type ResumeOption func(*ResumeOptions)

// DefaultResumeOptions returns the defaults: uuid tokens, a five minutes session window,
// five seconds between reconnect attempts and a ten seconds handshake timeout.
func DefaultResumeOptions() ResumeOptions {
	return ResumeOptions{
		Token:            uuidToken,
		SessionDuration:  DefaultResumeSessionDuration,
		ReconnectDelay:   DefaultResumeReconnectDelay,
		HandshakeTimeout: DefaultResumeHandshakeTimeout,
	}
}

func uuidToken() []byte {
	return []byte(uuid.New().String())
}

// WithResumeToken sets the token generator of a client.
func WithResumeToken(gen func() []byte) ResumeOption {
	return func(o *ResumeOptions) {
		o.Token = gen
	}
}

// WithResumeSessionDuration sets the window in which a lost session can be resumed.
func WithResumeSessionDuration(d time.Duration) ResumeOption {
	return func(o *ResumeOptions) {
		o.SessionDuration = d
	}
}

// WithResumeReconnectDelay sets the pause between reconnect attempts of a client.
func WithResumeReconnectDelay(d time.Duration) ResumeOption {
	return func(o *ResumeOptions) {
		o.ReconnectDelay = d
	}
}

// WithResumeHandshakeTimeout sets the timeout of the resume handshake.
func WithResumeHandshakeTimeout(d time.Duration) ResumeOption {
	return func(o *ResumeOptions) {
		o.HandshakeTimeout = d
	}
}

// WithResumeLedger bounds the frames kept for replay.
func WithResumeLedger(maxBytes, maxFrames int) ResumeOption {
	return func(o *ResumeOptions) {
		o.LedgerMaxBytes = maxBytes
		o.LedgerMaxFrames = maxFrames
	}
}

func newResumeOptions(opts []ResumeOption) *ResumeOptions {
	o := DefaultResumeOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if o.Token == nil {
		o.Token = uuidToken
	}
	return &o
}

func (o *ResumeOptions) ledger() socket.LedgerOptions {
	return socket.LedgerOptions{
		MaxBytes:  o.LedgerMaxBytes,
		MaxFrames: o.LedgerMaxFrames,
	}
}

func (o *ResumeOptions) socketOptions() socket.ResumeOptions {
	return socket.ResumeOptions{
		SessionDuration:  o.SessionDuration,
		ReconnectDelay:   o.ReconnectDelay,
		HandshakeTimeout: o.HandshakeTimeout,
	}
}
