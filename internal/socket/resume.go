package socket

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/framing"
	"github.com/rsocket/rsocket-engine/core/transport"
	"github.com/rsocket/rsocket-engine/logger"
	"go.uber.org/atomic"
)

// Default resume settings.
const (
	DefaultSessionDuration  = 5 * time.Minute
	DefaultReconnectDelay   = 5 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
)

var (
	errResumeTimeout      = errors.New("resume handshake timeout")
	errResumeWindowPassed = core.NewError(core.ErrorCodeRejectedResume, []byte("resume window exceeded"))
)

// ResumeOptions tunes session resumption.
type ResumeOptions struct {
	// SessionDuration is the window in which a lost session can be resumed.
	SessionDuration time.Duration
	// ReconnectDelay is the pause between reconnect attempts of a client.
	ReconnectDelay time.Duration
	// HandshakeTimeout bounds the wait for RESUME_OK.
	HandshakeTimeout time.Duration
}

func (o ResumeOptions) withDefaults() ResumeOptions {
	if o.SessionDuration <= 0 {
		o.SessionDuration = DefaultSessionDuration
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = DefaultReconnectDelay
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	return o
}

func rejectResume(format string, args ...interface{}) *core.Error {
	return core.NewError(core.ErrorCodeRejectedResume, []byte(errors.Errorf(format, args...).Error()))
}

// positions returns the read position and the first position kept in the ledger.
func (p *DuplexConnection) positions() (received, firstAvailable uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	received = p.counter.ReadBytes()
	if p.ledger != nil {
		firstAvailable = p.ledger.firstAvailable()
	}
	return
}

// resumeAt attaches tp and replays every frame the peer has not received.
// The prefix frames are written before the replayed ones.
func (p *DuplexConnection) resumeAt(tp *transport.Transport, peerReceived uint64, prefix ...*framing.Frame) error {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return core.ErrSocketClosed
	}
	if p.ledger == nil {
		p.mu.Unlock()
		return errResumeUnavailable
	}
	frames, err := p.ledger.replay(peerReceived)
	if err != nil {
		p.mu.Unlock()
		return rejectResume("%s", err)
	}
	p.mu.Unlock()

	outs := make([]outFrame, 0, len(prefix)+len(frames))
	for _, f := range prefix {
		outs = append(outs, outFrame{f: f})
	}
	for _, f := range frames {
		outs = append(outs, outFrame{f: f, recorded: true})
	}
	p.attach(tp, outs)
	if logger.IsDebugEnabled() {
		logger.Debugf("session resumed: replay %d frames from position %d\n", len(frames), peerReceived)
	}
	return nil
}

// Resume serves a RESUME frame received on tp.
// The positions are the last server position received by the client and the first client position it kept.
func (p *DuplexConnection) Resume(tp *transport.Transport, lastReceivedServerPosition, firstAvailableClientPosition uint64) error {
	if p.ledger == nil {
		return errResumeUnavailable
	}
	received, _ := p.positions()
	if firstAvailableClientPosition > received {
		return rejectResume("client dropped frames after position %d, first available is %d", received, firstAvailableClientPosition)
	}
	p.bind(tp)
	return p.resumeAt(tp, lastReceivedServerPosition, framing.NewResumeOKFrame(received))
}

// serve reads tp in a new goroutine, the returned channel receives the result.
func serve(ctx context.Context, tp *transport.Transport) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- tp.Start(ctx)
	}()
	return done
}

// handshakeResume sends RESUME on tp and waits for RESUME_OK.
// The returned channel carries the result of reading tp.
func (p *DuplexConnection) handshakeResume(ctx context.Context, tp *transport.Transport, token []byte, timeout time.Duration) (<-chan error, error) {
	p.bind(tp)
	resumed := make(chan error, 1)
	settled := atomic.NewBool(false)
	tp.RegisterHandler(transport.OnResumeOK, func(f *framing.Frame) error {
		if !settled.CompareAndSwap(false, true) {
			return errResumeTimeout
		}
		err := p.resumeAt(tp, f.LastReceivedPosition)
		resumed <- err
		return err
	})
	tp.RegisterHandler(transport.OnErrorWithZeroStreamID, p.onConnectionError)

	received, firstAvailable := p.positions()
	done := serve(ctx, tp)
	if err := tp.Send(framing.NewResumeFrame(core.DefaultVersion, token, received, firstAvailable), true); err != nil {
		_ = tp.Close()
		<-done
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-resumed:
		if err != nil {
			_ = tp.Close()
			<-done
			return nil, err
		}
		return done, nil
	case err := <-done:
		if err == nil {
			err = errors.New("connection closed during resume")
		}
		p.mu.Lock()
		if p.fatal != nil {
			err = p.fatal
		}
		p.mu.Unlock()
		return nil, err
	case <-timer.C:
		if !settled.CompareAndSwap(false, true) {
			// RESUME_OK is being handled
			if err := <-resumed; err != nil {
				_ = tp.Close()
				<-done
				return nil, err
			}
			return done, nil
		}
		_ = tp.Close()
		<-done
		return nil, errResumeTimeout
	}
}
